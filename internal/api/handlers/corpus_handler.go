package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/GianmarcoBramucci/my-first-chatbot/internal/ingestion"
	"github.com/GianmarcoBramucci/my-first-chatbot/pkg/logger"
)

type CorpusHandler struct {
	processor *ingestion.Processor
}

func NewCorpusHandler(processor *ingestion.Processor) *CorpusHandler {
	return &CorpusHandler{processor: processor}
}

// HandleIngest re-embeds both corpora from their record files. Long-running
// for large corpora; the request blocks until the run completes.
func (h *CorpusHandler) HandleIngest(c *fiber.Ctx) error {
	report, err := h.processor.Run(c.Context())
	if err != nil {
		logger.Error("Ingestion failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Ingestion failed",
		})
	}

	return c.JSON(report)
}
