package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "support_agent_query_duration_seconds",
			Help:    "Query pipeline duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"classification"},
	)

	QueryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_agent_query_total",
			Help: "Total number of queries processed",
		},
		[]string{"status"},
	)

	MatchSource = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_agent_match_source_total",
			Help: "Retrieval outcomes by match source",
		},
		[]string{"source"},
	)

	MatchScore = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "support_agent_match_score",
			Help:    "Best similarity score per corpus",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
		[]string{"corpus"},
	)

	WebSearchTriggered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "support_agent_web_search_triggered_total",
			Help: "Total number of web fallback searches",
		},
	)

	SentimentGraded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_agent_sentiment_graded_total",
			Help: "Sentiment grades assigned to queries",
		},
		[]string{"sentiment"},
	)

	TicketsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_agent_tickets_created_total",
			Help: "Support tickets opened by escalation",
		},
		[]string{"sentiment", "priority"},
	)

	SummariesGenerated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "support_agent_summaries_generated_total",
			Help: "Conversation summaries regenerated",
		},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_agent_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_agent_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_agent_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	CorpusEntriesIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_agent_corpus_entries_ingested_total",
			Help: "Corpus entries embedded during ingestion",
		},
		[]string{"corpus"},
	)
)

func Init() {
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(QueryTotal)
	prometheus.MustRegister(MatchSource)
	prometheus.MustRegister(MatchScore)
	prometheus.MustRegister(WebSearchTriggered)
	prometheus.MustRegister(SentimentGraded)
	prometheus.MustRegister(TicketsCreated)
	prometheus.MustRegister(SummariesGenerated)
	prometheus.MustRegister(LLMTokensUsed)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(CorpusEntriesIngested)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
