package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GianmarcoBramucci/my-first-chatbot/internal/storage/models"
	"github.com/GianmarcoBramucci/my-first-chatbot/internal/storage/sqlite"
)

func newTestStore(t *testing.T, summaryInterval int) *Store {
	t.Helper()

	client, err := sqlite.NewClient(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.InitSchema())

	return NewStore(client, summaryInterval)
}

func turnAt(query string, grade models.Sentiment, ts time.Time) models.ConversationTurn {
	return models.ConversationTurn{
		Timestamp:  ts,
		UserQuery:  query,
		AIResponse: "risposta",
		UserRole:   models.RoleRegistered,
		Sentiment:  grade,
	}
}

func TestAppendBelowIntervalNoSummary(t *testing.T) {
	store := newTestStore(t, 10)

	base := time.Now()
	for i := 0; i < 9; i++ {
		err := store.Append("conv-1", turnAt("q", models.SentimentNeutral, base.Add(time.Duration(i)*time.Second)))
		require.NoError(t, err)
	}

	summary, err := store.Summary("conv-1")
	require.NoError(t, err)
	assert.Nil(t, summary)
}

func TestAppendAtIntervalGeneratesSummary(t *testing.T) {
	store := newTestStore(t, 10)

	base := time.Now()
	for i := 0; i < 10; i++ {
		grade := models.SentimentNeutral
		if i < 3 {
			grade = models.SentimentNegative
		}
		err := store.Append("conv-1", turnAt("q", grade, base.Add(time.Duration(i)*time.Second)))
		require.NoError(t, err)
	}

	summary, err := store.Summary("conv-1")
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, 10, summary.TotalInteractions)
	assert.Equal(t, 3, summary.SentimentDistribution[models.SentimentNegative])
	assert.Equal(t, 7, summary.SentimentDistribution[models.SentimentNeutral])
	assert.True(t, summary.DateStart.Before(summary.DateEnd))
}

func TestSummaryRegeneratedAtEveryInterval(t *testing.T) {
	store := newTestStore(t, 5)

	base := time.Now()
	for i := 0; i < 10; i++ {
		err := store.Append("conv-1", turnAt("q", models.SentimentPositive, base.Add(time.Duration(i)*time.Second)))
		require.NoError(t, err)

		summary, err := store.Summary("conv-1")
		require.NoError(t, err)

		switch i + 1 {
		case 5:
			require.NotNil(t, summary)
			assert.Equal(t, 5, summary.TotalInteractions)
		case 10:
			require.NotNil(t, summary)
			assert.Equal(t, 10, summary.TotalInteractions)
		}
	}
}

func TestRecentIsReadOnly(t *testing.T) {
	store := newTestStore(t, 10)

	base := time.Now()
	for i := 0; i < 4; i++ {
		err := store.Append("conv-1", turnAt(string(rune('a'+i)), models.SentimentNeutral, base.Add(time.Duration(i)*time.Second)))
		require.NoError(t, err)
	}

	first, err := store.Recent("conv-1", 3)
	require.NoError(t, err)
	second, err := store.Recent("conv-1", 3)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	require.Len(t, first, 3)
	assert.Equal(t, "d", first[0].UserQuery)
}

func TestRecentUnknownConversation(t *testing.T) {
	store := newTestStore(t, 10)

	turns, err := store.Recent("mai-vista", 3)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestConversationsAreIsolated(t *testing.T) {
	store := newTestStore(t, 2)

	base := time.Now()
	require.NoError(t, store.Append("conv-1", turnAt("a", models.SentimentNeutral, base)))
	require.NoError(t, store.Append("conv-2", turnAt("b", models.SentimentNeutral, base)))

	// Each conversation counts its own turns toward the interval.
	summary, err := store.Summary("conv-1")
	require.NoError(t, err)
	assert.Nil(t, summary)

	require.NoError(t, store.Append("conv-1", turnAt("c", models.SentimentNeutral, base.Add(time.Second))))

	summary, err = store.Summary("conv-1")
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, 2, summary.TotalInteractions)
}

func TestBuildSummaryEmptyHistory(t *testing.T) {
	summary := BuildSummary("conv-1", nil)

	assert.Equal(t, 0, summary.TotalInteractions)
	assert.True(t, summary.DateStart.IsZero())
	assert.Empty(t, summary.SentimentDistribution)
}

func TestFormatContext(t *testing.T) {
	assert.Equal(t, "Nessuna conversazione precedente.", FormatContext(nil))

	// Input is newest-first, as Recent returns it; rendering is oldest-first.
	turns := []models.ConversationTurn{
		{UserQuery: "seconda", AIResponse: "r2"},
		{UserQuery: "prima", AIResponse: "r1"},
	}

	assert.Equal(t, "Utente: prima\nAssistente: r1\nUtente: seconda\nAssistente: r2\n", FormatContext(turns))
}
