// Package corpus loads the pre-computed retrieval corpora: curated FAQ
// entries and free-form knowledge-base records, each paired with an
// embedding vector produced by an offline ingestion run.
package corpus

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/GianmarcoBramucci/my-first-chatbot/pkg/config"
	"github.com/GianmarcoBramucci/my-first-chatbot/pkg/logger"
)

const (
	CorpusFAQ = "faq"
	CorpusKB  = "kb"
)

// Entry pairs one corpus record with its vector. Text is what was embedded,
// Content is what gets surfaced to the answer-composition stage. Vector may
// be nil or of a different length than the query embedding; the matcher
// tolerates both.
type Entry struct {
	ID      string
	Text    string
	Content string
	Vector  []float64
}

type faqFile struct {
	FAQ []faqRecord `json:"faq"`
}

type faqRecord struct {
	Domanda  string `json:"domanda"`
	Risposta string `json:"risposta"`
}

type kbFile struct {
	KnowledgeBase []map[string]string `json:"knowledge_base"`
}

type Store struct {
	cfg config.CorpusConfig

	mu      sync.RWMutex
	corpora map[string][]Entry
}

func NewStore(cfg config.CorpusConfig) *Store {
	return &Store{
		cfg:     cfg,
		corpora: make(map[string][]Entry),
	}
}

// Load returns the entries for a corpus, reading from disk on first use.
// A missing corpus file yields an empty corpus, not an error: retrieval
// degrades to the web fallback instead of failing the request.
func (s *Store) Load(corpusID string) ([]Entry, error) {
	s.mu.RLock()
	entries, ok := s.corpora[corpusID]
	s.mu.RUnlock()
	if ok {
		return entries, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if entries, ok := s.corpora[corpusID]; ok {
		return entries, nil
	}

	var err error
	switch corpusID {
	case CorpusFAQ:
		entries, err = loadFAQ(s.cfg.FAQPath, s.cfg.FAQEmbeddingsPath)
	case CorpusKB:
		entries, err = loadKB(s.cfg.KBPath, s.cfg.KBEmbeddingsPath)
	default:
		return nil, fmt.Errorf("unknown corpus %q", corpusID)
	}
	if err != nil {
		return nil, err
	}

	s.corpora[corpusID] = entries

	logger.Info("Corpus loaded",
		zap.String("corpus", corpusID),
		zap.Int("entries", len(entries)),
	)

	return entries, nil
}

// Invalidate drops cached entries so the next Load re-reads the files.
// Called after an ingestion run rewrites the embeddings.
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.corpora = make(map[string][]Entry)
}

func loadFAQ(recordsPath, embeddingsPath string) ([]Entry, error) {
	data, err := os.ReadFile(recordsPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("FAQ corpus file missing, corpus is empty", zap.String("path", recordsPath))
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read FAQ corpus: %w", err)
	}

	var file faqFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse FAQ corpus: %w", err)
	}

	vectors := loadVectors(embeddingsPath)

	entries := make([]Entry, 0, len(file.FAQ))
	for i, record := range file.FAQ {
		entry := Entry{
			ID:      fmt.Sprintf("faq_%d", i),
			Text:    record.Domanda,
			Content: record.Risposta,
		}
		if i < len(vectors) {
			entry.Vector = vectors[i]
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func loadKB(recordsPath, embeddingsPath string) ([]Entry, error) {
	data, err := os.ReadFile(recordsPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("KB corpus file missing, corpus is empty", zap.String("path", recordsPath))
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read KB corpus: %w", err)
	}

	var file kbFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse KB corpus: %w", err)
	}

	vectors := loadVectors(embeddingsPath)

	entries := make([]Entry, 0, len(file.KnowledgeBase))
	for i, record := range file.KnowledgeBase {
		text := RenderRecord(record)
		entry := Entry{
			ID:      fmt.Sprintf("kb_%d", i),
			Text:    text,
			Content: text,
		}
		if i < len(vectors) {
			entry.Vector = vectors[i]
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// loadVectors reads an index-aligned embeddings file. Entries beyond the
// vector count keep a nil vector; the matcher scores those with the
// sentinel. Vector lengths may differ across ingestion runs.
func loadVectors(path string) [][]float64 {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("Failed to read embeddings file", zap.String("path", path), zap.Error(err))
		}
		return nil
	}

	var vectors [][]float64
	if err := json.Unmarshal(data, &vectors); err != nil {
		logger.Warn("Failed to parse embeddings file", zap.String("path", path), zap.Error(err))
		return nil
	}

	return vectors
}

// RenderRecord flattens a structured KB record to deterministic text,
// key-sorted so the same record always embeds the same way.
func RenderRecord(record map[string]string) string {
	keys := make([]string, 0, len(record))
	for key := range record {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var builder strings.Builder
	for i, key := range keys {
		if i > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(key)
		builder.WriteString(": ")
		builder.WriteString(record[key])
	}

	return builder.String()
}
