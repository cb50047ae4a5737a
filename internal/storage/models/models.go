package models

import (
	"strings"
	"time"
)

// Sentiment is the five-point ordinal scale produced by the classifier.
// The Italian labels are the ones the classification prompt asks for and
// the ones stored in the ledger, so they are part of the data contract.
type Sentiment string

const (
	SentimentVeryPositive Sentiment = "Molto Positivo"
	SentimentPositive     Sentiment = "Positivo"
	SentimentNeutral      Sentiment = "Neutro"
	SentimentNegative     Sentiment = "Negativo"
	SentimentVeryNegative Sentiment = "Molto Negativo"
)

func AllSentiments() []Sentiment {
	return []Sentiment{
		SentimentVeryPositive,
		SentimentPositive,
		SentimentNeutral,
		SentimentNegative,
		SentimentVeryNegative,
	}
}

// ParseSentiment normalizes free-form classifier output to a closed grade.
// Unrecognized output maps to Neutro so a flaky classification never
// escalates a ticket on its own.
func ParseSentiment(raw string) Sentiment {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.Trim(normalized, ".'\"")

	switch {
	case strings.Contains(normalized, "molto positivo"):
		return SentimentVeryPositive
	case strings.Contains(normalized, "molto negativo"):
		return SentimentVeryNegative
	case strings.Contains(normalized, "positivo"):
		return SentimentPositive
	case strings.Contains(normalized, "negativo"):
		return SentimentNegative
	case strings.Contains(normalized, "neutro"):
		return SentimentNeutral
	default:
		return SentimentNeutral
	}
}

// IsNegative reports whether the grade triggers ticket escalation.
// Only the two negative grades do.
func (s Sentiment) IsNegative() bool {
	return s == SentimentNegative || s == SentimentVeryNegative
}

type UserRole string

const (
	RolePremium    UserRole = "Cliente Premium"
	RoleRegistered UserRole = "Cliente Registrato"
	RoleOccasional UserRole = "Cliente Occasionale"
)

type Priority string

const (
	PriorityHigh   Priority = "Alta"
	PriorityMedium Priority = "Media"
	PriorityLow    Priority = "Bassa"
)

type TicketStatus string

const (
	TicketOpen   TicketStatus = "Aperto"
	TicketClosed TicketStatus = "Chiuso"
)

// ConversationTurn is one query/response exchange. Immutable once written.
type ConversationTurn struct {
	Timestamp  time.Time `json:"timestamp"`
	UserQuery  string    `json:"user_query"`
	AIResponse string    `json:"ai_response"`
	UserRole   UserRole  `json:"user_role"`
	Sentiment  Sentiment `json:"sentiment"`
}

// ConversationSummary is derived from the full turn history, regenerated
// every N turns and never mutated incrementally.
type ConversationSummary struct {
	ConversationID        string            `json:"conversation_id"`
	TotalInteractions     int               `json:"total_interactions"`
	DateStart             time.Time         `json:"date_start"`
	DateEnd               time.Time         `json:"date_end"`
	SentimentDistribution map[Sentiment]int `json:"sentiment_distribution"`
	GeneratedAt           time.Time         `json:"generated_at"`
}

type Ticket struct {
	ID             string       `json:"id"`
	ConversationID string       `json:"conversation_id"`
	CreatedAt      time.Time    `json:"created_at"`
	OriginalQuery  string       `json:"original_query"`
	Sentiment      Sentiment    `json:"sentiment"`
	UserRole       UserRole     `json:"user_role"`
	Reason         string       `json:"reason"`
	Status         TicketStatus `json:"status"`
	DueAt          time.Time    `json:"due_at"`
}

// LedgerStats are the monotonically incremented ticket counters.
type LedgerStats struct {
	TotalTickets       int               `json:"total_tickets"`
	TicketsByRole      map[UserRole]int  `json:"tickets_by_role"`
	TicketsBySentiment map[Sentiment]int `json:"tickets_by_sentiment"`
}

type QueryRecord struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	UserRole       UserRole  `json:"user_role"`
	QueryText      string    `json:"query_text"`
	Response       string    `json:"response"`
	MatchSource    string    `json:"match_source"`
	WebSearchUsed  bool      `json:"web_search_used"`
	TicketCreated  bool      `json:"ticket_created"`
	LatencyMS      int       `json:"latency_ms"`
	CreatedAt      time.Time `json:"created_at"`
}
