package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/GianmarcoBramucci/my-first-chatbot/internal/storage/models"
	"github.com/GianmarcoBramucci/my-first-chatbot/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversation_turns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT NOT NULL,
		ts INTEGER NOT NULL,
		user_query TEXT NOT NULL,
		ai_response TEXT NOT NULL,
		user_role TEXT NOT NULL,
		sentiment TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_turns_conversation ON conversation_turns(conversation_id);
	CREATE INDEX IF NOT EXISTS idx_turns_ts ON conversation_turns(ts);

	CREATE TABLE IF NOT EXISTS conversation_summaries (
		conversation_id TEXT PRIMARY KEY,
		total_interactions INTEGER NOT NULL,
		date_start INTEGER NOT NULL,
		date_end INTEGER NOT NULL,
		sentiment_distribution TEXT NOT NULL,
		generated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tickets (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		original_query TEXT NOT NULL,
		sentiment TEXT NOT NULL,
		user_role TEXT NOT NULL,
		reason TEXT NOT NULL,
		status TEXT NOT NULL,
		due_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tickets_conversation ON tickets(conversation_id);
	CREATE INDEX IF NOT EXISTS idx_tickets_status ON tickets(status);

	CREATE TABLE IF NOT EXISTS ticket_stats (
		dimension TEXT NOT NULL,
		key TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (dimension, key)
	);

	CREATE TABLE IF NOT EXISTS query_history (
		id TEXT PRIMARY KEY,
		conversation_id TEXT,
		user_role TEXT,
		query_text TEXT NOT NULL,
		response TEXT,
		match_source TEXT,
		web_search_used INTEGER DEFAULT 0,
		ticket_created INTEGER DEFAULT 0,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_query_conversation ON query_history(conversation_id);
	CREATE INDEX IF NOT EXISTS idx_query_created ON query_history(created_at);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// AppendTurn inserts the turn and returns the number of turns stored for the
// conversation after the insert, both inside one transaction so the count is
// consistent for the summary trigger.
func (c *Client) AppendTurn(conversationID string, turn *models.ConversationTurn) (int, error) {
	tx, err := c.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO conversation_turns (conversation_id, ts, user_query, ai_response, user_role, sentiment)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		conversationID,
		turn.Timestamp.UnixNano(),
		turn.UserQuery,
		turn.AIResponse,
		string(turn.UserRole),
		string(turn.Sentiment),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert turn: %w", err)
	}

	var count int
	err = tx.QueryRow(
		`SELECT COUNT(*) FROM conversation_turns WHERE conversation_id = ?`,
		conversationID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count turns: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit turn: %w", err)
	}

	return count, nil
}

// GetTurns returns the full log oldest-first.
func (c *Client) GetTurns(conversationID string) ([]models.ConversationTurn, error) {
	rows, err := c.db.Query(
		`SELECT ts, user_query, ai_response, user_role, sentiment
		 FROM conversation_turns
		 WHERE conversation_id = ?
		 ORDER BY ts ASC, id ASC`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get turns: %w", err)
	}
	defer rows.Close()

	return scanTurns(rows)
}

// RecentTurns returns the limit most-recent turns newest-first. Ties on
// timestamp break on insertion order so repeated reads are identical.
func (c *Client) RecentTurns(conversationID string, limit int) ([]models.ConversationTurn, error) {
	rows, err := c.db.Query(
		`SELECT ts, user_query, ai_response, user_role, sentiment
		 FROM conversation_turns
		 WHERE conversation_id = ?
		 ORDER BY ts DESC, id DESC
		 LIMIT ?`,
		conversationID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent turns: %w", err)
	}
	defer rows.Close()

	return scanTurns(rows)
}

func scanTurns(rows *sql.Rows) ([]models.ConversationTurn, error) {
	var turns []models.ConversationTurn
	for rows.Next() {
		var t models.ConversationTurn
		var ts int64
		var role, sentiment string

		err := rows.Scan(&ts, &t.UserQuery, &t.AIResponse, &role, &sentiment)
		if err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}

		t.Timestamp = time.Unix(0, ts)
		t.UserRole = models.UserRole(role)
		t.Sentiment = models.Sentiment(sentiment)
		turns = append(turns, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read turns: %w", err)
	}

	return turns, nil
}

func (c *Client) UpsertSummary(summary *models.ConversationSummary) error {
	distJSON, err := json.Marshal(summary.SentimentDistribution)
	if err != nil {
		return fmt.Errorf("failed to marshal sentiment distribution: %w", err)
	}

	_, err = c.db.Exec(
		`INSERT INTO conversation_summaries (conversation_id, total_interactions, date_start, date_end, sentiment_distribution, generated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(conversation_id) DO UPDATE SET
			total_interactions = excluded.total_interactions,
			date_start = excluded.date_start,
			date_end = excluded.date_end,
			sentiment_distribution = excluded.sentiment_distribution,
			generated_at = excluded.generated_at`,
		summary.ConversationID,
		summary.TotalInteractions,
		summary.DateStart.UnixNano(),
		summary.DateEnd.UnixNano(),
		string(distJSON),
		summary.GeneratedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert summary: %w", err)
	}

	logger.Debug("Conversation summary persisted",
		zap.String("conversation_id", summary.ConversationID),
		zap.Int("total_interactions", summary.TotalInteractions),
	)

	return nil
}

func (c *Client) GetSummary(conversationID string) (*models.ConversationSummary, error) {
	var s models.ConversationSummary
	var dateStart, dateEnd, generatedAt int64
	var distJSON string

	err := c.db.QueryRow(
		`SELECT conversation_id, total_interactions, date_start, date_end, sentiment_distribution, generated_at
		 FROM conversation_summaries WHERE conversation_id = ?`,
		conversationID,
	).Scan(&s.ConversationID, &s.TotalInteractions, &dateStart, &dateEnd, &distJSON, &generatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get summary: %w", err)
	}

	if err := json.Unmarshal([]byte(distJSON), &s.SentimentDistribution); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sentiment distribution: %w", err)
	}

	s.DateStart = time.Unix(0, dateStart)
	s.DateEnd = time.Unix(0, dateEnd)
	s.GeneratedAt = time.Unix(0, generatedAt)

	return &s, nil
}

// InsertTicket appends the ticket to the open list and bumps the three
// aggregate counters in the same transaction.
func (c *Client) InsertTicket(ticket *models.Ticket) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO tickets (id, conversation_id, created_at, original_query, sentiment, user_role, reason, status, due_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ticket.ID,
		ticket.ConversationID,
		ticket.CreatedAt.UnixNano(),
		ticket.OriginalQuery,
		string(ticket.Sentiment),
		string(ticket.UserRole),
		ticket.Reason,
		string(ticket.Status),
		ticket.DueAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert ticket: %w", err)
	}

	increments := []struct {
		dimension string
		key       string
	}{
		{"total", "total"},
		{"role", string(ticket.UserRole)},
		{"sentiment", string(ticket.Sentiment)},
	}

	for _, inc := range increments {
		_, err = tx.Exec(
			`INSERT INTO ticket_stats (dimension, key, count) VALUES (?, ?, 1)
			 ON CONFLICT(dimension, key) DO UPDATE SET count = count + 1`,
			inc.dimension,
			inc.key,
		)
		if err != nil {
			return fmt.Errorf("failed to increment ticket counter: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ticket: %w", err)
	}

	logger.Info("Ticket recorded",
		zap.String("ticket_id", ticket.ID),
		zap.String("conversation_id", ticket.ConversationID),
		zap.String("sentiment", string(ticket.Sentiment)),
	)

	return nil
}

func (c *Client) GetTicketsByStatus(status models.TicketStatus) ([]models.Ticket, error) {
	rows, err := c.db.Query(
		`SELECT id, conversation_id, created_at, original_query, sentiment, user_role, reason, status, due_at
		 FROM tickets WHERE status = ? ORDER BY created_at ASC`,
		string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get tickets: %w", err)
	}
	defer rows.Close()

	var tickets []models.Ticket
	for rows.Next() {
		var t models.Ticket
		var createdAt, dueAt int64
		var sentiment, role, st string

		err := rows.Scan(&t.ID, &t.ConversationID, &createdAt, &t.OriginalQuery, &sentiment, &role, &t.Reason, &st, &dueAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}

		t.CreatedAt = time.Unix(0, createdAt)
		t.DueAt = time.Unix(0, dueAt)
		t.Sentiment = models.Sentiment(sentiment)
		t.UserRole = models.UserRole(role)
		t.Status = models.TicketStatus(st)
		tickets = append(tickets, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tickets: %w", err)
	}

	return tickets, nil
}

func (c *Client) GetLedgerStats() (*models.LedgerStats, error) {
	rows, err := c.db.Query(`SELECT dimension, key, count FROM ticket_stats`)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger stats: %w", err)
	}
	defer rows.Close()

	stats := &models.LedgerStats{
		TicketsByRole:      make(map[models.UserRole]int),
		TicketsBySentiment: make(map[models.Sentiment]int),
	}

	for rows.Next() {
		var dimension, key string
		var count int

		err := rows.Scan(&dimension, &key, &count)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger stat: %w", err)
		}

		switch dimension {
		case "total":
			stats.TotalTickets = count
		case "role":
			stats.TicketsByRole[models.UserRole(key)] = count
		case "sentiment":
			stats.TicketsBySentiment[models.Sentiment(key)] = count
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ledger stats: %w", err)
	}

	return stats, nil
}

func (c *Client) InsertQueryRecord(record *models.QueryRecord) error {
	webSearchUsed := 0
	if record.WebSearchUsed {
		webSearchUsed = 1
	}
	ticketCreated := 0
	if record.TicketCreated {
		ticketCreated = 1
	}

	_, err := c.db.Exec(
		`INSERT INTO query_history (id, conversation_id, user_role, query_text, response, match_source, web_search_used, ticket_created, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.ConversationID,
		string(record.UserRole),
		record.QueryText,
		record.Response,
		record.MatchSource,
		webSearchUsed,
		ticketCreated,
		record.LatencyMS,
		record.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert query record: %w", err)
	}

	logger.Info("Query recorded",
		zap.String("query_id", record.ID),
		zap.String("match_source", record.MatchSource),
		zap.Bool("web_search_used", record.WebSearchUsed),
	)

	return nil
}

func (c *Client) GetQueryHistory(conversationID string, limit int) ([]models.QueryRecord, error) {
	rows, err := c.db.Query(
		`SELECT id, query_text, response, match_source, web_search_used, ticket_created, latency_ms, created_at
		 FROM query_history
		 WHERE conversation_id = ?
		 ORDER BY created_at DESC
		 LIMIT ?`,
		conversationID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get query history: %w", err)
	}
	defer rows.Close()

	var records []models.QueryRecord
	for rows.Next() {
		var r models.QueryRecord
		var createdAt int64
		var webSearchUsed, ticketCreated int

		err := rows.Scan(&r.ID, &r.QueryText, &r.Response, &r.MatchSource, &webSearchUsed, &ticketCreated, &r.LatencyMS, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.ConversationID = conversationID
		r.WebSearchUsed = webSearchUsed == 1
		r.TicketCreated = ticketCreated == 1
		r.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, r)
	}

	return records, nil
}
