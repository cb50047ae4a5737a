package handlers

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/GianmarcoBramucci/my-first-chatbot/internal/pipeline"
	"github.com/GianmarcoBramucci/my-first-chatbot/internal/storage/models"
	"github.com/GianmarcoBramucci/my-first-chatbot/pkg/logger"
)

type WebSocketHandler struct {
	orchestrator *pipeline.Orchestrator
}

func NewWebSocketHandler(orchestrator *pipeline.Orchestrator) *WebSocketHandler {
	return &WebSocketHandler{orchestrator: orchestrator}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type           string `json:"type"`
			Content        string `json:"content"`
			UserRole       string `json:"user_role"`
			ConversationID string `json:"conversation_id"`
		}

		err := c.ReadJSON(&msg)
		if err != nil {
			logger.Error("Failed to read WebSocket message", zap.Error(err))
			break
		}

		if msg.Type != "query" {
			continue
		}

		req := pipeline.Request{
			Query:          msg.Content,
			UserRole:       models.UserRole(msg.UserRole),
			ConversationID: msg.ConversationID,
		}

		err = h.streamResponse(c, req)
		if err != nil {
			logger.Error("Failed to stream response", zap.Error(err))
			h.sendError(c, "Failed to process query")
		}
	}
}

func (h *WebSocketHandler) streamResponse(c *websocket.Conn, req pipeline.Request) error {
	ctx := context.Background()

	h.sendChunk(c, "status", "Sto elaborando la tua domanda...")

	response, err := h.orchestrator.Process(ctx, req)
	if err != nil {
		return err
	}

	words := splitIntoWords(response.Answer)
	for i, word := range words {
		chunk := word
		if i < len(words)-1 {
			chunk += " "
		}

		err := h.sendChunk(c, "chunk", chunk)
		if err != nil {
			return err
		}
	}

	return h.sendComplete(c, response)
}

func (h *WebSocketHandler) sendChunk(c *websocket.Conn, msgType, content string) error {
	msg := map[string]interface{}{
		"type":    msgType,
		"content": content,
	}

	return c.WriteJSON(msg)
}

func (h *WebSocketHandler) sendComplete(c *websocket.Conn, response *pipeline.Response) error {
	msg := map[string]interface{}{
		"type":            "complete",
		"conversation_id": response.ConversationID,
		"sentiment":       response.Sentiment,
		"match_source":    response.MatchSource,
		"web_search_used": response.WebSearchUsed,
		"ticket_id":       response.TicketID,
		"latency_ms":      response.LatencyMS,
	}

	return c.WriteJSON(msg)
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	msg := map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	}

	c.WriteJSON(msg)
}

func splitIntoWords(text string) []string {
	words := []string{}
	currentWord := ""

	for _, char := range text {
		if char == ' ' || char == '\n' {
			if currentWord != "" {
				words = append(words, currentWord)
				currentWord = ""
			}
			if char == '\n' {
				words = append(words, "\n")
			}
		} else {
			currentWord += string(char)
		}
	}

	if currentWord != "" {
		words = append(words, currentWord)
	}

	return words
}
