package handlers

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GianmarcoBramucci/my-first-chatbot/internal/storage/models"
)

type stubQueryLedger struct {
	records     []models.QueryRecord
	err         error
	gotID       string
	gotLimit    int
	callCounter int
}

func (s *stubQueryLedger) GetQueryHistory(conversationID string, limit int) ([]models.QueryRecord, error) {
	s.callCounter++
	s.gotID = conversationID
	s.gotLimit = limit
	return s.records, s.err
}

func newRecordsApp(ledger *stubQueryLedger) *fiber.App {
	handler := NewChatHandler(nil, nil, ledger)
	app := fiber.New()
	app.Get("/api/v1/chat/records", handler.GetQueryRecords)
	return app
}

func TestGetQueryRecordsRequiresConversationID(t *testing.T) {
	ledger := &stubQueryLedger{}
	app := newRecordsApp(ledger)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/chat/records", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 0, ledger.callCounter)
}

func TestGetQueryRecordsReturnsLedgerRows(t *testing.T) {
	ledger := &stubQueryLedger{
		records: []models.QueryRecord{
			{
				ID:             "rec-1",
				ConversationID: "conv-1",
				UserRole:       models.RolePremium,
				QueryText:      "Il modem non funziona",
				Response:       "Prova a riavviare il modem.",
				MatchSource:    "faq",
				LatencyMS:      120,
				CreatedAt:      time.Now(),
			},
		},
	}
	app := newRecordsApp(ledger)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/chat/records?conversation_id=conv-1", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "conv-1", ledger.gotID)
	assert.Equal(t, 20, ledger.gotLimit)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var payload struct {
		ConversationID string               `json:"conversation_id"`
		Records        []models.QueryRecord `json:"records"`
		Count          int                  `json:"count"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))

	assert.Equal(t, "conv-1", payload.ConversationID)
	assert.Equal(t, 1, payload.Count)
	require.Len(t, payload.Records, 1)
	assert.Equal(t, "Il modem non funziona", payload.Records[0].QueryText)
	assert.Equal(t, "faq", payload.Records[0].MatchSource)
}

func TestGetQueryRecordsClampsLimit(t *testing.T) {
	ledger := &stubQueryLedger{}
	app := newRecordsApp(ledger)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/chat/records?conversation_id=conv-1&limit=5000", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 20, ledger.gotLimit)

	resp, err = app.Test(httptest.NewRequest("GET", "/api/v1/chat/records?conversation_id=conv-1&limit=7", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 7, ledger.gotLimit)
}

func TestGetQueryRecordsLedgerFailure(t *testing.T) {
	ledger := &stubQueryLedger{err: assert.AnError}
	app := newRecordsApp(ledger)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/chat/records?conversation_id=conv-1", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}
