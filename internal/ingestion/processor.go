// Package ingestion embeds the corpus record files and writes the
// index-aligned embeddings the retrieval layer reads at query time.
package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/GianmarcoBramucci/my-first-chatbot/internal/corpus"
	"github.com/GianmarcoBramucci/my-first-chatbot/internal/metrics"
	"github.com/GianmarcoBramucci/my-first-chatbot/pkg/config"
	"github.com/GianmarcoBramucci/my-first-chatbot/pkg/logger"
)

type Embedder interface {
	GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float64, error)
}

// VectorSink mirrors the remote KB index insert; nil when Milvus is
// disabled.
type VectorSink interface {
	Insert(ctx context.Context, ids []string, vectors [][]float64, contents []string) error
}

type EmbeddingCache interface {
	InvalidateEmbeddings(ctx context.Context) error
}

type Processor struct {
	cfg      config.CorpusConfig
	embedder Embedder
	store    *corpus.Store
	sink     VectorSink
	cache    EmbeddingCache
}

func NewProcessor(cfg config.CorpusConfig, embedder Embedder, store *corpus.Store, sink VectorSink, cache EmbeddingCache) *Processor {
	return &Processor{
		cfg:      cfg,
		embedder: embedder,
		store:    store,
		sink:     sink,
		cache:    cache,
	}
}

type Report struct {
	FAQEntries int `json:"faq_entries"`
	KBEntries  int `json:"kb_entries"`
}

// Run re-embeds both corpora from their record files and rewrites the
// embeddings files, then invalidates the in-process corpus cache so the
// next query sees the new vectors. Corpus files stay index-aligned: the
// i-th vector in the embeddings file belongs to the i-th record.
func (p *Processor) Run(ctx context.Context) (*Report, error) {
	faqCount, err := p.ingestFAQ(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ingest FAQ corpus: %w", err)
	}

	kbCount, err := p.ingestKB(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ingest KB corpus: %w", err)
	}

	p.store.Invalidate()

	if p.cache != nil {
		if err := p.cache.InvalidateEmbeddings(ctx); err != nil {
			logger.Warn("Failed to invalidate embedding cache", zap.Error(err))
		}
	}

	logger.Info("Ingestion completed",
		zap.Int("faq_entries", faqCount),
		zap.Int("kb_entries", kbCount),
	)

	return &Report{FAQEntries: faqCount, KBEntries: kbCount}, nil
}

func (p *Processor) ingestFAQ(ctx context.Context) (int, error) {
	data, err := os.ReadFile(p.cfg.FAQPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("FAQ record file missing, skipping", zap.String("path", p.cfg.FAQPath))
			return 0, nil
		}
		return 0, err
	}

	var file struct {
		FAQ []struct {
			Domanda  string `json:"domanda"`
			Risposta string `json:"risposta"`
		} `json:"faq"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("failed to parse FAQ records: %w", err)
	}

	texts := make([]string, 0, len(file.FAQ))
	for _, record := range file.FAQ {
		texts = append(texts, record.Domanda)
	}

	vectors, err := p.embedTexts(ctx, texts)
	if err != nil {
		return 0, err
	}

	if err := writeVectors(p.cfg.FAQEmbeddingsPath, vectors); err != nil {
		return 0, err
	}

	metrics.CorpusEntriesIngested.WithLabelValues(corpus.CorpusFAQ).Add(float64(len(texts)))

	return len(texts), nil
}

func (p *Processor) ingestKB(ctx context.Context) (int, error) {
	data, err := os.ReadFile(p.cfg.KBPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("KB record file missing, skipping", zap.String("path", p.cfg.KBPath))
			return 0, nil
		}
		return 0, err
	}

	var file struct {
		KnowledgeBase []map[string]string `json:"knowledge_base"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("failed to parse KB records: %w", err)
	}

	texts := make([]string, 0, len(file.KnowledgeBase))
	for _, record := range file.KnowledgeBase {
		texts = append(texts, corpus.RenderRecord(record))
	}

	vectors, err := p.embedTexts(ctx, texts)
	if err != nil {
		return 0, err
	}

	if err := writeVectors(p.cfg.KBEmbeddingsPath, vectors); err != nil {
		return 0, err
	}

	if p.sink != nil && len(texts) > 0 {
		ids := make([]string, len(texts))
		for i := range texts {
			ids[i] = fmt.Sprintf("kb_%d", i)
		}
		if err := p.sink.Insert(ctx, ids, vectors, texts); err != nil {
			logger.Warn("Failed to push KB records to vector index", zap.Error(err))
		}
	}

	metrics.CorpusEntriesIngested.WithLabelValues(corpus.CorpusKB).Add(float64(len(texts)))

	return len(texts), nil
}

func (p *Processor) embedTexts(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors, err := p.embedder.GenerateBatchEmbeddings(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}

	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, expected %d", len(vectors), len(texts))
	}

	return vectors, nil
}

// writeVectors replaces the embeddings file atomically so a crashed run
// never leaves a half-written file behind.
func writeVectors(path string, vectors [][]float64) error {
	if vectors == nil {
		vectors = [][]float64{}
	}

	data, err := json.Marshal(vectors)
	if err != nil {
		return fmt.Errorf("failed to marshal embeddings: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create embeddings directory: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write embeddings file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace embeddings file: %w", err)
	}

	return nil
}
