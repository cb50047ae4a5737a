// Package router decides, from the query classification and the matcher
// results, which knowledge source answers a query: FAQ, knowledge base,
// web search, or a combination.
package router

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/GianmarcoBramucci/my-first-chatbot/internal/corpus"
	"github.com/GianmarcoBramucci/my-first-chatbot/internal/match"
	"github.com/GianmarcoBramucci/my-first-chatbot/internal/search/web"
	"github.com/GianmarcoBramucci/my-first-chatbot/pkg/logger"
)

type Classification int

const (
	ClassFAQ Classification = iota
	ClassKnowledgeBase
	ClassWeb
)

func (c Classification) String() string {
	switch c {
	case ClassFAQ:
		return "faq"
	case ClassKnowledgeBase:
		return "knowledge base"
	case ClassWeb:
		return "web"
	default:
		return "unknown"
	}
}

// ParseClassification maps the classifier's free-form output onto the
// three-way scheme. Unrecognized output goes to the knowledge base: the
// internal path still falls back to web on a miss, so a misparse can only
// cost one extra corpus scan, never a lost answer.
func ParseClassification(raw string) Classification {
	normalized := strings.ToLower(strings.TrimSpace(raw))

	switch {
	case strings.Contains(normalized, "web"):
		return ClassWeb
	case strings.Contains(normalized, "faq"):
		return ClassFAQ
	default:
		return ClassKnowledgeBase
	}
}

// WebUnavailableMessage replaces web results when the search collaborator
// fails; the pipeline still completes with a degraded answer.
const WebUnavailableMessage = "Ricerca su Internet momentaneamente non disponibile"

type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float64, error)
}

type WebSearcher interface {
	Search(ctx context.Context, query string) ([]web.SearchResult, error)
}

// VectorIndex is an optional remote backend for the KB corpus, used instead
// of the in-process scan when the KB outgrows memory.
type VectorIndex interface {
	SearchKB(ctx context.Context, vector []float64) (content string, score float64, found bool, err error)
}

type Result struct {
	Match      match.Result
	WebUsed    bool
	WebContent string
	WebResults []web.SearchResult
}

type Router struct {
	corpora     *corpus.Store
	matcher     *match.Matcher
	embedder    Embedder
	webSearcher WebSearcher
	vectorIndex VectorIndex
	kbThreshold float64
}

func NewRouter(corpora *corpus.Store, matcher *match.Matcher, embedder Embedder, webSearcher WebSearcher, vectorIndex VectorIndex, kbThreshold float64) *Router {
	return &Router{
		corpora:     corpora,
		matcher:     matcher,
		embedder:    embedder,
		webSearcher: webSearcher,
		vectorIndex: vectorIndex,
		kbThreshold: kbThreshold,
	}
}

// Route resolves the query against the chosen source. Internal results take
// precedence: web search runs only when the classification demands it or
// when no corpus entry clears its threshold, and at most once per query.
func (r *Router) Route(ctx context.Context, cleanedQuery string, classification Classification) Result {
	if classification == ClassWeb {
		result := Result{
			Match: match.Result{Source: match.SourceNone, Content: match.NoAnswerMarker},
		}
		r.searchWeb(ctx, cleanedQuery, &result)
		return result
	}

	result := Result{Match: r.matchInternal(ctx, cleanedQuery)}

	if result.Match.Source == match.SourceNone {
		r.searchWeb(ctx, cleanedQuery, &result)
	}

	logger.Info("Query routed",
		zap.String("classification", classification.String()),
		zap.String("match_source", result.Match.Source),
		zap.Bool("web_used", result.WebUsed),
	)

	return result
}

func (r *Router) matchInternal(ctx context.Context, cleanedQuery string) match.Result {
	queryVec, err := r.embedder.GenerateEmbedding(ctx, cleanedQuery)
	if err != nil {
		logger.Warn("Query embedding failed, skipping internal retrieval", zap.Error(err))
		return match.Result{Source: match.SourceNone, Content: match.NoAnswerMarker}
	}

	faqEntries, err := r.corpora.Load(corpus.CorpusFAQ)
	if err != nil {
		logger.Warn("Failed to load FAQ corpus", zap.Error(err))
	}

	kbEntries, err := r.corpora.Load(corpus.CorpusKB)
	if err != nil {
		logger.Warn("Failed to load KB corpus", zap.Error(err))
	}

	result := r.matcher.Match(queryVec, faqEntries, kbEntries)

	if r.vectorIndex != nil && result.KBContent == "" {
		r.matchRemoteKB(ctx, queryVec, &result)
	}

	return result
}

// matchRemoteKB consults the remote vector index with the same threshold
// semantics as the in-process KB scan and merges a hit into the result.
func (r *Router) matchRemoteKB(ctx context.Context, queryVec []float64, result *match.Result) {
	content, score, found, err := r.vectorIndex.SearchKB(ctx, queryVec)
	if err != nil {
		logger.Warn("Remote KB search failed", zap.Error(err))
		return
	}
	if !found || score <= r.kbThreshold {
		return
	}

	result.KBContent = content
	result.KBScore = score

	switch result.Source {
	case match.SourceFAQ:
		result.Source = match.SourceBoth
		result.Content = result.FAQContent + "\n\n" + content
	case match.SourceNone:
		result.Source = match.SourceKB
		result.Content = content
	}
}

func (r *Router) searchWeb(ctx context.Context, cleanedQuery string, result *Result) {
	result.WebUsed = true

	if r.webSearcher == nil {
		result.WebContent = web.NoResultsMessage
		return
	}

	results, err := r.webSearcher.Search(ctx, cleanedQuery)
	if err != nil {
		logger.Warn("Web search failed", zap.Error(err))
		result.WebContent = WebUnavailableMessage
		return
	}

	result.WebResults = results
	result.WebContent = web.FormatResults(results)
}
