package ticket

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GianmarcoBramucci/my-first-chatbot/internal/storage/models"
)

type fakeLedger struct {
	tickets   []*models.Ticket
	insertErr error
}

func (f *fakeLedger) InsertTicket(ticket *models.Ticket) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.tickets = append(f.tickets, ticket)
	return nil
}

func (f *fakeLedger) GetTicketsByStatus(status models.TicketStatus) ([]models.Ticket, error) {
	var out []models.Ticket
	for _, t := range f.tickets {
		if t.Status == status {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeLedger) GetLedgerStats() (*models.LedgerStats, error) {
	return &models.LedgerStats{TotalTickets: len(f.tickets)}, nil
}

func newTestEngine(ledger Ledger) *Engine {
	engine := NewEngine(ledger, 48)
	engine.now = func() time.Time {
		return time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	}
	return engine
}

func TestEvaluateNonNegativeIsNoOp(t *testing.T) {
	ledger := &fakeLedger{}
	engine := newTestEngine(ledger)

	for _, grade := range []models.Sentiment{
		models.SentimentVeryPositive,
		models.SentimentPositive,
		models.SentimentNeutral,
	} {
		ticket, err := engine.Evaluate("tutto bene", grade, models.RolePremium, "conv-1")
		require.NoError(t, err)
		assert.Nil(t, ticket)
	}

	assert.Empty(t, ledger.tickets)
}

func TestEvaluateNegativeCreatesTicket(t *testing.T) {
	ledger := &fakeLedger{}
	engine := newTestEngine(ledger)

	ticket, err := engine.Evaluate("il servizio non funziona", models.SentimentNegative, models.RoleRegistered, "conv-1")

	require.NoError(t, err)
	require.NotNil(t, ticket)
	assert.NotEmpty(t, ticket.ID)
	assert.Equal(t, "conv-1", ticket.ConversationID)
	assert.Equal(t, "il servizio non funziona", ticket.OriginalQuery)
	assert.Equal(t, models.SentimentNegative, ticket.Sentiment)
	assert.Equal(t, models.TicketOpen, ticket.Status)
	assert.Equal(t, "Insoddisfazione del cliente da gestire - Priorità Media", ticket.Reason)
	assert.Equal(t, ticket.CreatedAt.Add(48*time.Hour), ticket.DueAt)
	require.Len(t, ledger.tickets, 1)
}

func TestEvaluateVeryNegativeReason(t *testing.T) {
	engine := newTestEngine(&fakeLedger{})

	ticket, err := engine.Evaluate("disastro totale", models.SentimentVeryNegative, models.RolePremium, "conv-1")

	require.NoError(t, err)
	assert.Equal(t, "Problema grave che richiede attenzione immediata - Priorità Alta", ticket.Reason)
}

func TestPriorityForRole(t *testing.T) {
	assert.Equal(t, models.PriorityHigh, PriorityForRole(models.RolePremium))
	assert.Equal(t, models.PriorityMedium, PriorityForRole(models.RoleRegistered))
	assert.Equal(t, models.PriorityLow, PriorityForRole(models.RoleOccasional))
	assert.Equal(t, models.PriorityLow, PriorityForRole(models.UserRole("Sconosciuto")))
}

func TestEvaluateDistinctTicketsPerTurn(t *testing.T) {
	ledger := &fakeLedger{}
	engine := newTestEngine(ledger)

	first, err := engine.Evaluate("problema", models.SentimentNegative, models.RoleOccasional, "conv-1")
	require.NoError(t, err)
	second, err := engine.Evaluate("ancora problema", models.SentimentNegative, models.RoleOccasional, "conv-1")
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.ConversationID, second.ConversationID)
}

func TestEvaluateLedgerFailure(t *testing.T) {
	engine := newTestEngine(&fakeLedger{insertErr: errors.New("disk full")})

	ticket, err := engine.Evaluate("problema", models.SentimentNegative, models.RolePremium, "conv-1")

	assert.Error(t, err)
	assert.Nil(t, ticket)
}

func TestNotice(t *testing.T) {
	assert.Empty(t, Notice(nil))

	ticket := &models.Ticket{
		ID:        "abcdef1234567890",
		Sentiment: models.SentimentNegative,
	}

	notice := Notice(ticket)
	assert.Contains(t, notice, "entro 48 ore")
	assert.Contains(t, notice, "Numero ticket: abcdef12")

	ticket.Sentiment = models.SentimentVeryNegative
	assert.Contains(t, Notice(ticket), "al più presto")
}
