// Package match scores a query embedding against the retrieval corpora
// using cosine similarity with per-corpus acceptance thresholds.
package match

import (
	"math"

	"go.uber.org/zap"

	"github.com/GianmarcoBramucci/my-first-chatbot/internal/corpus"
	"github.com/GianmarcoBramucci/my-first-chatbot/pkg/logger"
)

const (
	SourceFAQ  = "faq"
	SourceKB   = "kb"
	SourceBoth = "faq+kb"
	SourceNone = "none"
)

// NoAnswerMarker is the literal surfaced when neither corpus clears its
// threshold. The router treats it as the signal to fall back to web search.
const NoAnswerMarker = "Nessuna risposta trovata nei dati interni"

// sentinelScore is assigned to entries whose vector is missing or malformed,
// below any valid threshold so one corrupt entry never blocks the scan.
const sentinelScore = -1.0

type Result struct {
	Source     string
	Content    string
	FAQContent string
	KBContent  string
	FAQScore   float64
	KBScore    float64
}

type Matcher struct {
	faqThreshold float64
	kbThreshold  float64
}

func NewMatcher(faqThreshold, kbThreshold float64) *Matcher {
	return &Matcher{
		faqThreshold: faqThreshold,
		kbThreshold:  kbThreshold,
	}
}

// BestMatch returns the index and score of the best-scoring entry strictly
// above threshold. With zero entries or nothing above threshold, ok is false.
func BestMatch(queryVec []float64, entries []corpus.Entry, threshold float64) (int, float64, bool) {
	bestIndex := -1
	bestScore := sentinelScore
	dimMismatches := 0

	for i, entry := range entries {
		score := entryScore(queryVec, entry.Vector)
		if score != sentinelScore && len(entry.Vector) != len(queryVec) {
			dimMismatches++
		}
		if score > bestScore {
			bestScore = score
			bestIndex = i
		}
	}

	if dimMismatches > 0 {
		// Tolerated for embedding-model drift across ingestion runs, but
		// the truncated scores are not comparable to full-dimension ones.
		logger.Warn("Embedding dimension mismatch, similarity truncated to common dimensions",
			zap.Int("query_dim", len(queryVec)),
			zap.Int("mismatched_entries", dimMismatches),
		)
	}

	if bestIndex < 0 || bestScore <= threshold {
		return -1, bestScore, false
	}

	return bestIndex, bestScore, true
}

// Match runs both corpora and composes the per-query result: both clear ->
// combined source with both contents, one clears -> that source, neither ->
// the none source carrying the no-answer marker.
func (m *Matcher) Match(queryVec []float64, faqEntries, kbEntries []corpus.Entry) Result {
	result := Result{Source: SourceNone, Content: NoAnswerMarker}

	faqIndex, faqScore, faqOK := BestMatch(queryVec, faqEntries, m.faqThreshold)
	kbIndex, kbScore, kbOK := BestMatch(queryVec, kbEntries, m.kbThreshold)

	result.FAQScore = faqScore
	result.KBScore = kbScore

	switch {
	case faqOK && kbOK:
		result.Source = SourceBoth
		result.FAQContent = faqEntries[faqIndex].Content
		result.KBContent = kbEntries[kbIndex].Content
		result.Content = result.FAQContent + "\n\n" + result.KBContent
	case faqOK:
		result.Source = SourceFAQ
		result.FAQContent = faqEntries[faqIndex].Content
		result.Content = result.FAQContent
	case kbOK:
		result.Source = SourceKB
		result.KBContent = kbEntries[kbIndex].Content
		result.Content = result.KBContent
	}

	logger.Debug("Corpora matched",
		zap.String("source", result.Source),
		zap.Float64("faq_score", faqScore),
		zap.Float64("kb_score", kbScore),
	)

	return result
}

// entryScore is the cosine similarity between query and entry vectors,
// restricted to the common dimension count when they disagree. Missing or
// degenerate vectors score the sentinel.
func entryScore(query, entry []float64) float64 {
	if len(query) == 0 || len(entry) == 0 {
		return sentinelScore
	}

	dim := len(query)
	if len(entry) < dim {
		dim = len(entry)
	}

	var dotProduct, normQuery, normEntry float64
	for i := 0; i < dim; i++ {
		dotProduct += query[i] * entry[i]
		normQuery += query[i] * query[i]
		normEntry += entry[i] * entry[i]
	}

	if normQuery == 0 || normEntry == 0 {
		return sentinelScore
	}

	score := dotProduct / (math.Sqrt(normQuery) * math.Sqrt(normEntry))
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return sentinelScore
	}

	return score
}
