package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/GianmarcoBramucci/my-first-chatbot/internal/memory"
	"github.com/GianmarcoBramucci/my-first-chatbot/internal/pipeline"
	"github.com/GianmarcoBramucci/my-first-chatbot/internal/storage/models"
	"github.com/GianmarcoBramucci/my-first-chatbot/pkg/logger"
)

// QueryLedger reads the per-query records the pipeline persists.
type QueryLedger interface {
	GetQueryHistory(conversationID string, limit int) ([]models.QueryRecord, error)
}

type ChatHandler struct {
	orchestrator *pipeline.Orchestrator
	memory       *memory.Store
	queries      QueryLedger
}

func NewChatHandler(orchestrator *pipeline.Orchestrator, mem *memory.Store, queries QueryLedger) *ChatHandler {
	return &ChatHandler{
		orchestrator: orchestrator,
		memory:       mem,
		queries:      queries,
	}
}

func (h *ChatHandler) HandleChat(c *fiber.Ctx) error {
	var req struct {
		Query          string `json:"query"`
		UserRole       string `json:"user_role"`
		ConversationID string `json:"conversation_id"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Query is required",
		})
	}

	response, err := h.orchestrator.Process(c.Context(), pipeline.Request{
		Query:          req.Query,
		UserRole:       models.UserRole(req.UserRole),
		ConversationID: req.ConversationID,
	})
	if err != nil {
		logger.Error("Failed to process query", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process query",
		})
	}

	return c.JSON(response)
}

func (h *ChatHandler) GetHistory(c *fiber.Ctx) error {
	conversationID := c.Query("conversation_id")
	if conversationID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "conversation_id is required",
		})
	}

	turns, err := h.memory.History(conversationID)
	if err != nil {
		logger.Error("Failed to load conversation history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load history",
		})
	}

	summary, err := h.memory.Summary(conversationID)
	if err != nil {
		logger.Warn("Failed to load conversation summary", zap.Error(err))
	}

	return c.JSON(fiber.Map{
		"conversation_id": conversationID,
		"turns":           turns,
		"summary":         summary,
	})
}

// GetQueryRecords serves the query-history records: query, response, match
// source, web usage and latency per processed query.
func (h *ChatHandler) GetQueryRecords(c *fiber.Ctx) error {
	conversationID := c.Query("conversation_id")
	if conversationID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "conversation_id is required",
		})
	}

	limit := c.QueryInt("limit", 20)
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	records, err := h.queries.GetQueryHistory(conversationID, limit)
	if err != nil {
		logger.Error("Failed to load query history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load query history",
		})
	}

	return c.JSON(fiber.Map{
		"conversation_id": conversationID,
		"records":         records,
		"count":           len(records),
	})
}
