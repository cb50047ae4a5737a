// Package sentiment provides a lexical fallback classifier used when the
// LLM sentiment call fails: the pipeline still grades the turn instead of
// dropping escalation entirely.
package sentiment

import (
	"strings"

	prose "github.com/jdkato/prose/v2"
	"go.uber.org/zap"

	"github.com/GianmarcoBramucci/my-first-chatbot/internal/storage/models"
	"github.com/GianmarcoBramucci/my-first-chatbot/pkg/logger"
)

var positiveWords = map[string]struct{}{
	"bene":       {},
	"grazie":     {},
	"ottimo":     {},
	"perfetto":   {},
	"eccellente": {},
}

var negativeWords = map[string]struct{}{
	"problema":   {},
	"guasto":     {},
	"difficoltà": {},
	"errore":     {},
}

// negativePhrases are multi-word markers a token scan would miss.
var negativePhrases = []string{
	"non funziona",
}

// Classify grades the text by counting lexicon hits over its tokens.
// Balanced or empty counts grade Neutro; this classifier never produces
// the Molto grades, so it can escalate but only at the lower grade.
func Classify(text string) models.Sentiment {
	positive, negative := 0, 0

	doc, err := prose.NewDocument(text,
		prose.WithExtraction(false),
		prose.WithTagging(false),
	)
	if err != nil {
		logger.Warn("Tokenization failed, grading neutral", zap.Error(err))
		return models.SentimentNeutral
	}

	for _, token := range doc.Tokens() {
		word := strings.ToLower(token.Text)
		if _, ok := positiveWords[word]; ok {
			positive++
		}
		if _, ok := negativeWords[word]; ok {
			negative++
		}
	}

	lowered := strings.ToLower(text)
	for _, phrase := range negativePhrases {
		if strings.Contains(lowered, phrase) {
			negative++
		}
	}

	switch {
	case positive > negative:
		return models.SentimentPositive
	case negative > positive:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}
