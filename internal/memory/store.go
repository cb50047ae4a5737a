// Package memory accumulates per-conversation turn logs and periodically
// compacts them into summaries.
package memory

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GianmarcoBramucci/my-first-chatbot/internal/metrics"
	"github.com/GianmarcoBramucci/my-first-chatbot/internal/storage/models"
	"github.com/GianmarcoBramucci/my-first-chatbot/pkg/logger"
)

type Storage interface {
	AppendTurn(conversationID string, turn *models.ConversationTurn) (int, error)
	GetTurns(conversationID string) ([]models.ConversationTurn, error)
	RecentTurns(conversationID string, limit int) ([]models.ConversationTurn, error)
	UpsertSummary(summary *models.ConversationSummary) error
	GetSummary(conversationID string) (*models.ConversationSummary, error)
}

type Store struct {
	storage         Storage
	summaryInterval int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewStore(storage Storage, summaryInterval int) *Store {
	if summaryInterval <= 0 {
		summaryInterval = 10
	}

	return &Store{
		storage:         storage,
		summaryInterval: summaryInterval,
		locks:           make(map[string]*sync.Mutex),
	}
}

// lockFor serializes writers on the same conversation id. Different
// conversations never block each other.
func (s *Store) lockFor(conversationID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[conversationID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[conversationID] = lock
	}
	return lock
}

// Append records the turn and, whenever the log length reaches a multiple
// of the summary interval, regenerates the conversation summary from the
// entire history.
func (s *Store) Append(conversationID string, turn models.ConversationTurn) error {
	lock := s.lockFor(conversationID)
	lock.Lock()
	defer lock.Unlock()

	count, err := s.storage.AppendTurn(conversationID, &turn)
	if err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}

	logger.Debug("Turn appended",
		zap.String("conversation_id", conversationID),
		zap.Int("turns", count),
	)

	if count%s.summaryInterval != 0 {
		return nil
	}

	turns, err := s.storage.GetTurns(conversationID)
	if err != nil {
		return fmt.Errorf("failed to load turns for summary: %w", err)
	}

	summary := BuildSummary(conversationID, turns)
	if err := s.storage.UpsertSummary(&summary); err != nil {
		return fmt.Errorf("failed to persist summary: %w", err)
	}

	metrics.SummariesGenerated.Inc()

	logger.Info("Conversation summary regenerated",
		zap.String("conversation_id", conversationID),
		zap.Int("total_interactions", summary.TotalInteractions),
	)

	return nil
}

// Recent returns the limit most-recent turns, newest first. An unknown
// conversation id yields an empty slice.
func (s *Store) Recent(conversationID string, limit int) ([]models.ConversationTurn, error) {
	return s.storage.RecentTurns(conversationID, limit)
}

// History returns the full log oldest-first.
func (s *Store) History(conversationID string) ([]models.ConversationTurn, error) {
	return s.storage.GetTurns(conversationID)
}

func (s *Store) Summary(conversationID string) (*models.ConversationSummary, error) {
	return s.storage.GetSummary(conversationID)
}

// BuildSummary recomputes the summary from the full turn history. It is
// never updated incrementally.
func BuildSummary(conversationID string, turns []models.ConversationTurn) models.ConversationSummary {
	summary := models.ConversationSummary{
		ConversationID:        conversationID,
		TotalInteractions:     len(turns),
		SentimentDistribution: make(map[models.Sentiment]int),
		GeneratedAt:           time.Now(),
	}

	if len(turns) > 0 {
		summary.DateStart = turns[0].Timestamp
		summary.DateEnd = turns[len(turns)-1].Timestamp
	}

	for _, turn := range turns {
		summary.SentimentDistribution[turn.Sentiment]++
	}

	return summary
}

// FormatContext renders recent turns for the composition prompt.
func FormatContext(turns []models.ConversationTurn) string {
	if len(turns) == 0 {
		return "Nessuna conversazione precedente."
	}

	var lines string
	for i := len(turns) - 1; i >= 0; i-- {
		turn := turns[i]
		lines += fmt.Sprintf("Utente: %s\nAssistente: %s\n", turn.UserQuery, turn.AIResponse)
	}

	return lines
}
