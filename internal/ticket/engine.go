// Package ticket escalates negative interactions into support tickets and
// maintains the shared ticket ledger.
package ticket

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GianmarcoBramucci/my-first-chatbot/internal/storage/models"
	"github.com/GianmarcoBramucci/my-first-chatbot/pkg/logger"
)

type Ledger interface {
	InsertTicket(ticket *models.Ticket) error
	GetTicketsByStatus(status models.TicketStatus) ([]models.Ticket, error)
	GetLedgerStats() (*models.LedgerStats, error)
}

// escalationReasons holds two canned reasons per negative grade; the first
// is the one used on the ticket.
var escalationReasons = map[models.Sentiment][]string{
	models.SentimentVeryNegative: {
		"Problema grave che richiede attenzione immediata",
		"Esperienza utente fortemente compromessa",
	},
	models.SentimentNegative: {
		"Insoddisfazione del cliente da gestire",
		"Problema tecnico da risolvere",
	},
}

var rolePriorities = map[models.UserRole]models.Priority{
	models.RolePremium:    models.PriorityHigh,
	models.RoleRegistered: models.PriorityMedium,
	models.RoleOccasional: models.PriorityLow,
}

var noticeTemplates = map[models.Sentiment]string{
	models.SentimentVeryNegative: "Ci scusiamo per il disagio. Un nostro operatore ti contatterà al più presto per risolvere immediatamente la tua problematica.",
	models.SentimentNegative:     "Abbiamo registrato la tua segnalazione. Un nostro consulente ti contatterà entro 48 ore per supportarti.",
}

const noticeDefault = "Abbiamo registrato la tua segnalazione e provvederemo a gestirla."

// PriorityForRole maps a role to ticket priority. Unknown roles get the
// lowest priority.
func PriorityForRole(role models.UserRole) models.Priority {
	if priority, ok := rolePriorities[role]; ok {
		return priority
	}
	return models.PriorityLow
}

type Engine struct {
	ledger    Ledger
	dueWindow time.Duration
	now       func() time.Time
}

func NewEngine(ledger Ledger, dueHours int) *Engine {
	if dueHours <= 0 {
		dueHours = 48
	}

	return &Engine{
		ledger:    ledger,
		dueWindow: time.Duration(dueHours) * time.Hour,
		now:       time.Now,
	}
}

// Evaluate decides whether the interaction warrants a ticket. Non-negative
// grades produce nothing and leave the ledger untouched. Each escalation
// gets its own ticket id; repeated negative turns in one conversation yield
// distinct tickets that share only the conversation id.
func (e *Engine) Evaluate(query string, sentiment models.Sentiment, role models.UserRole, conversationID string) (*models.Ticket, error) {
	if !sentiment.IsNegative() {
		return nil, nil
	}

	reasons, ok := escalationReasons[sentiment]
	if !ok {
		reasons = escalationReasons[models.SentimentNegative]
	}
	priority := PriorityForRole(role)

	createdAt := e.now()
	ticket := &models.Ticket{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		CreatedAt:      createdAt,
		OriginalQuery:  query,
		Sentiment:      sentiment,
		UserRole:       role,
		Reason:         fmt.Sprintf("%s - Priorità %s", reasons[0], priority),
		Status:         models.TicketOpen,
		DueAt:          createdAt.Add(e.dueWindow),
	}

	if err := e.ledger.InsertTicket(ticket); err != nil {
		return nil, fmt.Errorf("failed to record ticket: %w", err)
	}

	logger.Info("Support ticket created",
		zap.String("ticket_id", ticket.ID),
		zap.String("conversation_id", conversationID),
		zap.String("sentiment", string(sentiment)),
		zap.String("priority", string(priority)),
	)

	return ticket, nil
}

func (e *Engine) OpenTickets() ([]models.Ticket, error) {
	return e.ledger.GetTicketsByStatus(models.TicketOpen)
}

func (e *Engine) Stats() (*models.LedgerStats, error) {
	return e.ledger.GetLedgerStats()
}

// Notice builds the user-facing escalation message, showing the first 8
// characters of the ticket id. A nil ticket yields an empty notice.
func Notice(ticket *models.Ticket) string {
	if ticket == nil {
		return ""
	}

	message, ok := noticeTemplates[ticket.Sentiment]
	if !ok {
		message = noticeDefault
	}

	shortID := ticket.ID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}

	return fmt.Sprintf("%s Numero ticket: %s", message, shortID)
}
