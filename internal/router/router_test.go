package router

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GianmarcoBramucci/my-first-chatbot/internal/corpus"
	"github.com/GianmarcoBramucci/my-first-chatbot/internal/match"
	"github.com/GianmarcoBramucci/my-first-chatbot/internal/search/web"
	"github.com/GianmarcoBramucci/my-first-chatbot/pkg/config"
)

type stubEmbedder struct {
	vector []float64
	err    error
}

func (s *stubEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float64, error) {
	return s.vector, s.err
}

type stubWebSearcher struct {
	results []web.SearchResult
	err     error
	calls   int
}

func (s *stubWebSearcher) Search(ctx context.Context, query string) ([]web.SearchResult, error) {
	s.calls++
	return s.results, s.err
}

type stubVectorIndex struct {
	content string
	score   float64
	found   bool
	err     error
	calls   int
}

func (s *stubVectorIndex) SearchKB(ctx context.Context, vector []float64) (string, float64, bool, error) {
	s.calls++
	return s.content, s.score, s.found, s.err
}

// testCorpora builds a FAQ corpus whose single entry matches [1,0] exactly
// and a KB corpus orthogonal to it.
func testCorpora(t *testing.T) *corpus.Store {
	t.Helper()
	dir := t.TempDir()

	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	cfg := config.CorpusConfig{
		FAQPath:           write("faq.json", `{"faq":[{"domanda":"come resetto la password","risposta":"usa il link dimenticata"}]}`),
		FAQEmbeddingsPath: write("faq_embeddings.json", `[[1,0]]`),
		KBPath:            write("knowledgeBase.json", `{"knowledge_base":[{"soluzione":"verifica alimentatore"}]}`),
		KBEmbeddingsPath:  write("kb_embeddings.json", `[[0,1]]`),
	}

	return corpus.NewStore(cfg)
}

func newTestRouter(t *testing.T, embedder Embedder, searcher WebSearcher, index VectorIndex) *Router {
	t.Helper()
	return NewRouter(testCorpora(t), match.NewMatcher(0.55, 0.40), embedder, searcher, index, 0.40)
}

func TestParseClassification(t *testing.T) {
	assert.Equal(t, ClassWeb, ParseClassification("Web"))
	assert.Equal(t, ClassWeb, ParseClassification("cerca sul web"))
	assert.Equal(t, ClassFAQ, ParseClassification("FAQ"))
	assert.Equal(t, ClassKnowledgeBase, ParseClassification("Knowledge Base"))
	assert.Equal(t, ClassKnowledgeBase, ParseClassification("qualcosa di strano"))
	assert.Equal(t, ClassKnowledgeBase, ParseClassification(""))
}

func TestRouteInternalMatchSkipsWeb(t *testing.T) {
	searcher := &stubWebSearcher{}
	r := newTestRouter(t, &stubEmbedder{vector: []float64{1, 0}}, searcher, nil)

	result := r.Route(context.Background(), "come resetto la password", ClassFAQ)

	assert.Equal(t, match.SourceFAQ, result.Match.Source)
	assert.Equal(t, "usa il link dimenticata", result.Match.Content)
	assert.False(t, result.WebUsed)
	assert.Zero(t, searcher.calls)
}

func TestRouteNoMatchFallsBackToWebExactlyOnce(t *testing.T) {
	searcher := &stubWebSearcher{
		results: []web.SearchResult{{Title: "Guida", URL: "https://example.it", Snippet: "testo"}},
	}
	// Orthogonal to both corpora: neither clears its threshold.
	r := newTestRouter(t, &stubEmbedder{vector: []float64{-1, -1}}, searcher, nil)

	result := r.Route(context.Background(), "domanda fuori corpus", ClassKnowledgeBase)

	assert.Equal(t, match.SourceNone, result.Match.Source)
	assert.Equal(t, match.NoAnswerMarker, result.Match.Content)
	assert.True(t, result.WebUsed)
	assert.Equal(t, 1, searcher.calls)
	assert.Contains(t, result.WebContent, "Guida")
}

func TestRouteWebClassificationSkipsInternal(t *testing.T) {
	searcher := &stubWebSearcher{
		results: []web.SearchResult{{Title: "Notizia", URL: "https://example.it", Snippet: "s"}},
	}
	embedder := &stubEmbedder{err: errors.New("must not be called")}
	r := newTestRouter(t, embedder, searcher, nil)

	result := r.Route(context.Background(), "ultime notizie", ClassWeb)

	assert.Equal(t, match.SourceNone, result.Match.Source)
	assert.True(t, result.WebUsed)
	assert.Equal(t, 1, searcher.calls)
}

func TestRouteWebZeroResults(t *testing.T) {
	searcher := &stubWebSearcher{}
	r := newTestRouter(t, &stubEmbedder{vector: []float64{-1, -1}}, searcher, nil)

	result := r.Route(context.Background(), "introvabile", ClassKnowledgeBase)

	assert.True(t, result.WebUsed)
	assert.Equal(t, web.NoResultsMessage, result.WebContent)
}

func TestRouteWebSearcherFailure(t *testing.T) {
	searcher := &stubWebSearcher{err: errors.New("timeout")}
	r := newTestRouter(t, &stubEmbedder{vector: []float64{-1, -1}}, searcher, nil)

	result := r.Route(context.Background(), "introvabile", ClassKnowledgeBase)

	assert.True(t, result.WebUsed)
	assert.Equal(t, WebUnavailableMessage, result.WebContent)
}

func TestRouteNoWebSearcherConfigured(t *testing.T) {
	r := newTestRouter(t, &stubEmbedder{vector: []float64{-1, -1}}, nil, nil)

	result := r.Route(context.Background(), "introvabile", ClassKnowledgeBase)

	assert.True(t, result.WebUsed)
	assert.Equal(t, web.NoResultsMessage, result.WebContent)
}

func TestRouteEmbeddingFailureDegradesToWeb(t *testing.T) {
	searcher := &stubWebSearcher{
		results: []web.SearchResult{{Title: "Guida", URL: "https://example.it", Snippet: "s"}},
	}
	r := newTestRouter(t, &stubEmbedder{err: errors.New("service down")}, searcher, nil)

	result := r.Route(context.Background(), "qualsiasi", ClassFAQ)

	assert.Equal(t, match.SourceNone, result.Match.Source)
	assert.True(t, result.WebUsed)
	assert.Equal(t, 1, searcher.calls)
}

func TestRouteRemoteKBMergesWithFAQ(t *testing.T) {
	index := &stubVectorIndex{content: "record remoto", score: 0.9, found: true}
	r := newTestRouter(t, &stubEmbedder{vector: []float64{1, 0}}, nil, index)

	result := r.Route(context.Background(), "come resetto la password", ClassFAQ)

	assert.Equal(t, match.SourceBoth, result.Match.Source)
	assert.Equal(t, "record remoto", result.Match.KBContent)
	assert.Equal(t, "usa il link dimenticata\n\nrecord remoto", result.Match.Content)
	assert.False(t, result.WebUsed)
}

func TestRouteRemoteKBBelowThresholdIgnored(t *testing.T) {
	index := &stubVectorIndex{content: "record remoto", score: 0.2, found: true}
	searcher := &stubWebSearcher{}
	r := newTestRouter(t, &stubEmbedder{vector: []float64{-1, -1}}, searcher, index)

	result := r.Route(context.Background(), "introvabile", ClassKnowledgeBase)

	assert.Equal(t, match.SourceNone, result.Match.Source)
	assert.True(t, result.WebUsed)
}

func TestRouteRemoteKBNotConsultedWhenLocalKBMatches(t *testing.T) {
	index := &stubVectorIndex{content: "record remoto", score: 0.9, found: true}
	r := newTestRouter(t, &stubEmbedder{vector: []float64{0, 1}}, nil, index)

	result := r.Route(context.Background(), "guasto alimentatore", ClassKnowledgeBase)

	assert.Equal(t, match.SourceKB, result.Match.Source)
	assert.Zero(t, index.calls)
}
