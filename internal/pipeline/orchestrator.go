// Package pipeline runs the per-query stages: sentiment and query rewrite,
// source classification, retrieval routing, answer composition, memory
// append and ticket escalation.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GianmarcoBramucci/my-first-chatbot/internal/match"
	"github.com/GianmarcoBramucci/my-first-chatbot/internal/memory"
	"github.com/GianmarcoBramucci/my-first-chatbot/internal/metrics"
	"github.com/GianmarcoBramucci/my-first-chatbot/internal/profile"
	"github.com/GianmarcoBramucci/my-first-chatbot/internal/router"
	"github.com/GianmarcoBramucci/my-first-chatbot/internal/sentiment"
	"github.com/GianmarcoBramucci/my-first-chatbot/internal/storage/models"
	"github.com/GianmarcoBramucci/my-first-chatbot/internal/ticket"
	"github.com/GianmarcoBramucci/my-first-chatbot/pkg/logger"
)

type LLM interface {
	ClassifySentiment(ctx context.Context, query string) (models.Sentiment, error)
	CleanQuery(ctx context.Context, query string) (string, error)
	ClassifyQuery(ctx context.Context, query string) (string, error)
	ComposeAnswer(ctx context.Context, query string, sentiment models.Sentiment, rolePolicy, memoryContext, retrievedContent string) (string, error)
}

type Retriever interface {
	Route(ctx context.Context, cleanedQuery string, classification router.Classification) router.Result
}

type Memory interface {
	Append(conversationID string, turn models.ConversationTurn) error
	Recent(conversationID string, limit int) ([]models.ConversationTurn, error)
}

type Escalator interface {
	Evaluate(query string, sentimentGrade models.Sentiment, role models.UserRole, conversationID string) (*models.Ticket, error)
}

type HistorySink interface {
	InsertQueryRecord(record *models.QueryRecord) error
}

type Request struct {
	Query          string
	UserRole       models.UserRole
	ConversationID string
}

type Response struct {
	ConversationID string           `json:"conversation_id"`
	Answer         string           `json:"answer"`
	Sentiment      models.Sentiment `json:"sentiment"`
	Classification string           `json:"classification"`
	MatchSource    string           `json:"match_source"`
	FAQScore       float64          `json:"faq_score"`
	KBScore        float64          `json:"kb_score"`
	WebSearchUsed  bool             `json:"web_search_used"`
	TicketID       string           `json:"ticket_id,omitempty"`
	TicketNotice   string           `json:"ticket_notice,omitempty"`
	LatencyMS      int              `json:"latency_ms"`
}

type Orchestrator struct {
	llm         LLM
	retriever   Retriever
	memory      Memory
	escalator   Escalator
	history     HistorySink
	recentLimit int

	// lexical grading stands in when the LLM sentiment call fails, so a
	// degraded run can still escalate.
	lexicalGrade func(string) models.Sentiment
}

func NewOrchestrator(llm LLM, retriever Retriever, mem Memory, escalator Escalator, history HistorySink, recentLimit int) *Orchestrator {
	if recentLimit <= 0 {
		recentLimit = 3
	}

	return &Orchestrator{
		llm:          llm,
		retriever:    retriever,
		memory:       mem,
		escalator:    escalator,
		history:      history,
		recentLimit:  recentLimit,
		lexicalGrade: sentiment.Classify,
	}
}

// Process runs one query through the full pipeline. Sentiment analysis and
// the retrieval rewrite run concurrently; both have degraded fallbacks, so
// the only hard failure is answer composition.
func (o *Orchestrator) Process(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fmt.Errorf("empty query")
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.New().String()
	}

	var (
		wg             sync.WaitGroup
		sentimentGrade models.Sentiment
		cleanedQuery   string
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		grade, err := o.llm.ClassifySentiment(ctx, query)
		if err != nil {
			logger.Warn("LLM sentiment failed, using lexical fallback", zap.Error(err))
			grade = o.lexicalGrade(query)
		}
		sentimentGrade = grade
	}()
	go func() {
		defer wg.Done()
		cleaned, err := o.llm.CleanQuery(ctx, query)
		if err != nil || strings.TrimSpace(cleaned) == "" {
			if err != nil {
				logger.Warn("Query rewrite failed, using raw query", zap.Error(err))
			}
			cleaned = query
		}
		cleanedQuery = cleaned
	}()
	wg.Wait()

	metrics.SentimentGraded.WithLabelValues(string(sentimentGrade)).Inc()

	classification := o.classify(ctx, cleanedQuery)

	routed := o.retriever.Route(ctx, cleanedQuery, classification)
	o.recordRouting(routed)

	memoryContext := o.memoryContext(conversationID)

	answer, err := o.compose(ctx, query, sentimentGrade, req.UserRole, memoryContext, routed)
	if err != nil {
		metrics.QueryTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	// The stored turn carries the composed answer; the escalation notice
	// belongs to response assembly only.
	o.appendTurn(conversationID, query, answer, req.UserRole, sentimentGrade)

	createdTicket := o.escalate(query, sentimentGrade, req.UserRole, conversationID)

	response := &Response{
		ConversationID: conversationID,
		Answer:         answer,
		Sentiment:      sentimentGrade,
		Classification: classification.String(),
		MatchSource:    routed.Match.Source,
		FAQScore:       routed.Match.FAQScore,
		KBScore:        routed.Match.KBScore,
		WebSearchUsed:  routed.WebUsed,
		LatencyMS:      int(time.Since(start).Milliseconds()),
	}

	if createdTicket != nil {
		response.TicketID = createdTicket.ID
		response.TicketNotice = ticket.Notice(createdTicket)
		response.Answer = answer + "\n\n" + response.TicketNotice
	}

	o.recordHistory(req, conversationID, response)

	metrics.QueryTotal.WithLabelValues("success").Inc()
	metrics.QueryDuration.WithLabelValues(classification.String()).Observe(time.Since(start).Seconds())

	logger.Info("Query processed",
		zap.String("conversation_id", conversationID),
		zap.String("sentiment", string(sentimentGrade)),
		zap.String("match_source", routed.Match.Source),
		zap.Bool("web_used", routed.WebUsed),
		zap.Bool("ticket_created", createdTicket != nil),
		zap.Int("latency_ms", response.LatencyMS),
	)

	return response, nil
}

func (o *Orchestrator) classify(ctx context.Context, cleanedQuery string) router.Classification {
	raw, err := o.llm.ClassifyQuery(ctx, cleanedQuery)
	if err != nil {
		logger.Warn("Query classification failed, defaulting to knowledge base", zap.Error(err))
		return router.ClassKnowledgeBase
	}
	return router.ParseClassification(raw)
}

func (o *Orchestrator) recordRouting(routed router.Result) {
	metrics.MatchSource.WithLabelValues(routed.Match.Source).Inc()
	if routed.Match.FAQScore >= 0 {
		metrics.MatchScore.WithLabelValues("faq").Observe(routed.Match.FAQScore)
	}
	if routed.Match.KBScore >= 0 {
		metrics.MatchScore.WithLabelValues("kb").Observe(routed.Match.KBScore)
	}
	if routed.WebUsed {
		metrics.WebSearchTriggered.Inc()
	}
}

func (o *Orchestrator) memoryContext(conversationID string) string {
	recent, err := o.memory.Recent(conversationID, o.recentLimit)
	if err != nil {
		logger.Warn("Failed to load recent turns", zap.Error(err))
		return memory.FormatContext(nil)
	}
	return memory.FormatContext(recent)
}

// compose builds the answer from whichever content the router produced.
// When the internal corpora missed and web search ran, the web content is
// the context; the no-answer marker stays visible to the model otherwise.
func (o *Orchestrator) compose(ctx context.Context, query string, grade models.Sentiment, role models.UserRole, memoryContext string, routed router.Result) (string, error) {
	retrieved := routed.Match.Content
	if routed.WebUsed {
		if routed.Match.Source == match.SourceNone {
			retrieved = routed.WebContent
		} else {
			retrieved = retrieved + "\n\n" + routed.WebContent
		}
	}

	answer, err := o.llm.ComposeAnswer(ctx, query, grade, profile.PolicyFor(role), memoryContext, retrieved)
	if err != nil {
		return "", fmt.Errorf("failed to compose answer: %w", err)
	}

	return answer, nil
}

func (o *Orchestrator) escalate(query string, grade models.Sentiment, role models.UserRole, conversationID string) *models.Ticket {
	createdTicket, err := o.escalator.Evaluate(query, grade, role, conversationID)
	if err != nil {
		logger.Error("Ticket escalation failed", zap.Error(err))
		return nil
	}

	if createdTicket != nil {
		metrics.TicketsCreated.WithLabelValues(
			string(createdTicket.Sentiment),
			string(ticket.PriorityForRole(createdTicket.UserRole)),
		).Inc()
	}

	return createdTicket
}

func (o *Orchestrator) appendTurn(conversationID, query, answer string, role models.UserRole, grade models.Sentiment) {
	turn := models.ConversationTurn{
		Timestamp:  time.Now(),
		UserQuery:  query,
		AIResponse: answer,
		UserRole:   role,
		Sentiment:  grade,
	}

	if err := o.memory.Append(conversationID, turn); err != nil {
		logger.Error("Failed to append conversation turn", zap.Error(err))
	}
}

func (o *Orchestrator) recordHistory(req Request, conversationID string, response *Response) {
	if o.history == nil {
		return
	}

	record := &models.QueryRecord{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		UserRole:       req.UserRole,
		QueryText:      req.Query,
		Response:       response.Answer,
		MatchSource:    response.MatchSource,
		WebSearchUsed:  response.WebSearchUsed,
		TicketCreated:  response.TicketID != "",
		LatencyMS:      response.LatencyMS,
		CreatedAt:      time.Now(),
	}

	if err := o.history.InsertQueryRecord(record); err != nil {
		logger.Warn("Failed to record query history", zap.Error(err))
	}
}
