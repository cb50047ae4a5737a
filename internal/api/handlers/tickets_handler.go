package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/GianmarcoBramucci/my-first-chatbot/internal/ticket"
	"github.com/GianmarcoBramucci/my-first-chatbot/pkg/logger"
)

type TicketsHandler struct {
	engine *ticket.Engine
}

func NewTicketsHandler(engine *ticket.Engine) *TicketsHandler {
	return &TicketsHandler{engine: engine}
}

func (h *TicketsHandler) GetOpenTickets(c *fiber.Ctx) error {
	tickets, err := h.engine.OpenTickets()
	if err != nil {
		logger.Error("Failed to load open tickets", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load tickets",
		})
	}

	return c.JSON(fiber.Map{
		"tickets": tickets,
		"count":   len(tickets),
	})
}

func (h *TicketsHandler) GetStats(c *fiber.Ctx) error {
	stats, err := h.engine.Stats()
	if err != nil {
		logger.Error("Failed to load ticket stats", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load ticket stats",
		})
	}

	return c.JSON(stats)
}
