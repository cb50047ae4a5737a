package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/GianmarcoBramucci/my-first-chatbot/internal/api/handlers"
	rediscache "github.com/GianmarcoBramucci/my-first-chatbot/internal/cache/redis"
	"github.com/GianmarcoBramucci/my-first-chatbot/internal/corpus"
	"github.com/GianmarcoBramucci/my-first-chatbot/internal/ingestion"
	"github.com/GianmarcoBramucci/my-first-chatbot/internal/llm"
	"github.com/GianmarcoBramucci/my-first-chatbot/internal/match"
	"github.com/GianmarcoBramucci/my-first-chatbot/internal/memory"
	"github.com/GianmarcoBramucci/my-first-chatbot/internal/metrics"
	"github.com/GianmarcoBramucci/my-first-chatbot/internal/middleware/ratelimit"
	"github.com/GianmarcoBramucci/my-first-chatbot/internal/middleware/security"
	"github.com/GianmarcoBramucci/my-first-chatbot/internal/middleware/validation"
	"github.com/GianmarcoBramucci/my-first-chatbot/internal/pipeline"
	"github.com/GianmarcoBramucci/my-first-chatbot/internal/router"
	"github.com/GianmarcoBramucci/my-first-chatbot/internal/search/web"
	"github.com/GianmarcoBramucci/my-first-chatbot/internal/storage/sqlite"
	"github.com/GianmarcoBramucci/my-first-chatbot/internal/ticket"
	milvusindex "github.com/GianmarcoBramucci/my-first-chatbot/internal/vector/milvus"
	"github.com/GianmarcoBramucci/my-first-chatbot/pkg/config"
	appLogger "github.com/GianmarcoBramucci/my-first-chatbot/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting Support Agent API Server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var cacheClient *rediscache.Client
	if cfg.Redis.Enabled {
		cacheClient, err = rediscache.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer cacheClient.Close()
	}

	var vectorIndex *milvusindex.Client
	if cfg.Milvus.Enabled {
		vectorIndex, err = milvusindex.NewClient(
			cfg.Milvus.Endpoint,
			cfg.Milvus.APIKey,
			cfg.Milvus.CollectionName,
			cfg.Milvus.VectorDim,
		)
		if err != nil {
			appLogger.Fatal("Failed to create Milvus client", zap.Error(err))
		}
		defer vectorIndex.Close()

		err = vectorIndex.CreateCollection(context.Background())
		if err != nil {
			appLogger.Fatal("Failed to create collection", zap.Error(err))
		}
	}

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.EmbeddingModel,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
		cfg.LLM.TimeoutSec,
	)

	corpusStore := corpus.NewStore(cfg.Corpus)
	matcher := match.NewMatcher(cfg.Retrieval.FAQThreshold, cfg.Retrieval.KBThreshold)

	var webSearcher router.WebSearcher
	if cfg.Search.Enabled {
		webSearcher = web.NewClient(
			cfg.Search.SerpAPIKey,
			cfg.Search.MaxResults,
			cfg.Search.TimeoutSec,
			cfg.Search.PageCharCap,
		)
	}

	var embedder router.Embedder = llmClient
	if cacheClient != nil {
		embedder = pipeline.NewCachedEmbedder(llmClient, cacheClient, 24*time.Hour)
	}

	var remoteKB router.VectorIndex
	if vectorIndex != nil {
		remoteKB = vectorIndex
	}

	queryRouter := router.NewRouter(corpusStore, matcher, embedder, webSearcher, remoteKB, cfg.Retrieval.KBThreshold)
	memoryStore := memory.NewStore(sqliteClient, cfg.Memory.SummaryInterval)
	ticketEngine := ticket.NewEngine(sqliteClient, cfg.Tickets.DueHours)

	orchestrator := pipeline.NewOrchestrator(
		llmClient,
		queryRouter,
		memoryStore,
		ticketEngine,
		sqliteClient,
		cfg.Memory.RecentLimit,
	)

	var vectorSink ingestion.VectorSink
	if vectorIndex != nil {
		vectorSink = vectorIndex
	}
	var embeddingCache ingestion.EmbeddingCache
	if cacheClient != nil {
		embeddingCache = cacheClient
	}
	processor := ingestion.NewProcessor(cfg.Corpus, llmClient, corpusStore, vectorSink, embeddingCache)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	rateLimiter := ratelimit.New(ratelimit.Config{
		Logger: appLogger.GetLogger(),
	})
	defer rateLimiter.Stop()

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Conversation-ID",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))
	app.Use(rateLimiter.Middleware())
	app.Use(validation.Middleware(validation.Config{
		Logger: appLogger.GetLogger(),
	}))

	chatHandler := handlers.NewChatHandler(orchestrator, memoryStore, sqliteClient)
	ticketsHandler := handlers.NewTicketsHandler(ticketEngine)
	corpusHandler := handlers.NewCorpusHandler(processor)
	wsHandler := handlers.NewWebSocketHandler(orchestrator)

	api := app.Group("/api/v1")

	api.Post("/chat", chatHandler.HandleChat)
	api.Get("/chat/history", chatHandler.GetHistory)
	api.Get("/chat/records", chatHandler.GetQueryRecords)

	api.Get("/tickets", ticketsHandler.GetOpenTickets)
	api.Get("/tickets/stats", ticketsHandler.GetStats)

	api.Post("/corpus/ingest", corpusHandler.HandleIngest)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(wsHandler.HandleConnection))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
