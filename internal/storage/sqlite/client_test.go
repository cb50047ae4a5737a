package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GianmarcoBramucci/my-first-chatbot/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	client, err := NewClient(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	require.NoError(t, client.InitSchema())
	return client
}

func sampleTurn(query string, ts time.Time) *models.ConversationTurn {
	return &models.ConversationTurn{
		Timestamp:  ts,
		UserQuery:  query,
		AIResponse: "risposta",
		UserRole:   models.RoleRegistered,
		Sentiment:  models.SentimentNeutral,
	}
}

func TestAppendTurnReturnsCount(t *testing.T) {
	client := newTestClient(t)

	base := time.Now()
	for i := 1; i <= 3; i++ {
		count, err := client.AppendTurn("conv-1", sampleTurn("q", base.Add(time.Duration(i)*time.Second)))
		require.NoError(t, err)
		assert.Equal(t, i, count)
	}

	// Other conversations do not share the count.
	count, err := client.AppendTurn("conv-2", sampleTurn("q", base))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestGetTurnsOldestFirst(t *testing.T) {
	client := newTestClient(t)

	base := time.Now()
	_, err := client.AppendTurn("conv-1", sampleTurn("prima", base))
	require.NoError(t, err)
	_, err = client.AppendTurn("conv-1", sampleTurn("seconda", base.Add(time.Second)))
	require.NoError(t, err)

	turns, err := client.GetTurns("conv-1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "prima", turns[0].UserQuery)
	assert.Equal(t, "seconda", turns[1].UserQuery)
	assert.Equal(t, models.RoleRegistered, turns[0].UserRole)
	assert.Equal(t, models.SentimentNeutral, turns[0].Sentiment)
}

func TestRecentTurnsNewestFirstWithLimit(t *testing.T) {
	client := newTestClient(t)

	base := time.Now()
	for i := 0; i < 5; i++ {
		_, err := client.AppendTurn("conv-1", sampleTurn(string(rune('a'+i)), base.Add(time.Duration(i)*time.Second)))
		require.NoError(t, err)
	}

	turns, err := client.RecentTurns("conv-1", 3)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, "e", turns[0].UserQuery)
	assert.Equal(t, "d", turns[1].UserQuery)
	assert.Equal(t, "c", turns[2].UserQuery)
}

func TestRecentTurnsTieBreaksOnInsertionOrder(t *testing.T) {
	client := newTestClient(t)

	ts := time.Now()
	_, err := client.AppendTurn("conv-1", sampleTurn("prima", ts))
	require.NoError(t, err)
	_, err = client.AppendTurn("conv-1", sampleTurn("seconda", ts))
	require.NoError(t, err)

	turns, err := client.RecentTurns("conv-1", 2)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "seconda", turns[0].UserQuery)
	assert.Equal(t, "prima", turns[1].UserQuery)
}

func TestRecentTurnsUnknownConversation(t *testing.T) {
	client := newTestClient(t)

	turns, err := client.RecentTurns("mai-vista", 3)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestSummaryRoundTrip(t *testing.T) {
	client := newTestClient(t)

	missing, err := client.GetSummary("conv-1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	now := time.Now()
	summary := &models.ConversationSummary{
		ConversationID:    "conv-1",
		TotalInteractions: 10,
		DateStart:         now.Add(-time.Hour),
		DateEnd:           now,
		SentimentDistribution: map[models.Sentiment]int{
			models.SentimentNeutral:  7,
			models.SentimentNegative: 3,
		},
		GeneratedAt: now,
	}

	require.NoError(t, client.UpsertSummary(summary))

	loaded, err := client.GetSummary("conv-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, 10, loaded.TotalInteractions)
	assert.Equal(t, summary.SentimentDistribution, loaded.SentimentDistribution)
	assert.True(t, loaded.DateEnd.Equal(now))

	// Upsert replaces, never duplicates.
	summary.TotalInteractions = 20
	require.NoError(t, client.UpsertSummary(summary))

	loaded, err = client.GetSummary("conv-1")
	require.NoError(t, err)
	assert.Equal(t, 20, loaded.TotalInteractions)
}

func TestInsertTicketBumpsCounters(t *testing.T) {
	client := newTestClient(t)

	now := time.Now()
	tickets := []*models.Ticket{
		{ID: "t1", ConversationID: "c1", CreatedAt: now, OriginalQuery: "q1", Sentiment: models.SentimentNegative, UserRole: models.RolePremium, Reason: "r", Status: models.TicketOpen, DueAt: now},
		{ID: "t2", ConversationID: "c1", CreatedAt: now, OriginalQuery: "q2", Sentiment: models.SentimentVeryNegative, UserRole: models.RolePremium, Reason: "r", Status: models.TicketOpen, DueAt: now},
		{ID: "t3", ConversationID: "c2", CreatedAt: now, OriginalQuery: "q3", Sentiment: models.SentimentNegative, UserRole: models.RoleOccasional, Reason: "r", Status: models.TicketOpen, DueAt: now},
	}

	for _, ticket := range tickets {
		require.NoError(t, client.InsertTicket(ticket))
	}

	stats, err := client.GetLedgerStats()
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalTickets)
	assert.Equal(t, 2, stats.TicketsByRole[models.RolePremium])
	assert.Equal(t, 1, stats.TicketsByRole[models.RoleOccasional])
	assert.Equal(t, 2, stats.TicketsBySentiment[models.SentimentNegative])
	assert.Equal(t, 1, stats.TicketsBySentiment[models.SentimentVeryNegative])
}

func TestGetTicketsByStatus(t *testing.T) {
	client := newTestClient(t)

	now := time.Now()
	require.NoError(t, client.InsertTicket(&models.Ticket{
		ID: "t1", ConversationID: "c1", CreatedAt: now, OriginalQuery: "q",
		Sentiment: models.SentimentNegative, UserRole: models.RoleRegistered,
		Reason: "Insoddisfazione del cliente da gestire - Priorità Media",
		Status: models.TicketOpen, DueAt: now.Add(48 * time.Hour),
	}))

	open, err := client.GetTicketsByStatus(models.TicketOpen)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "t1", open[0].ID)
	assert.Equal(t, models.TicketOpen, open[0].Status)

	closed, err := client.GetTicketsByStatus(models.TicketClosed)
	require.NoError(t, err)
	assert.Empty(t, closed)
}

func TestQueryHistoryRoundTrip(t *testing.T) {
	client := newTestClient(t)

	record := &models.QueryRecord{
		ID:             "q1",
		ConversationID: "c1",
		UserRole:       models.RolePremium,
		QueryText:      "il modem non funziona",
		Response:       "risposta",
		MatchSource:    "faq",
		WebSearchUsed:  false,
		TicketCreated:  true,
		LatencyMS:      120,
		CreatedAt:      time.Now(),
	}

	require.NoError(t, client.InsertQueryRecord(record))

	history, err := client.GetQueryHistory("c1", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "q1", history[0].ID)
	assert.Equal(t, "faq", history[0].MatchSource)
	assert.False(t, history[0].WebSearchUsed)
	assert.True(t, history[0].TicketCreated)
	assert.Equal(t, 120, history[0].LatencyMS)
}
