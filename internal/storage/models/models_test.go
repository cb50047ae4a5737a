package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSentiment(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Sentiment
	}{
		{"exact very positive", "Molto Positivo", SentimentVeryPositive},
		{"exact very negative", "Molto Negativo", SentimentVeryNegative},
		{"exact positive", "Positivo", SentimentPositive},
		{"exact negative", "Negativo", SentimentNegative},
		{"exact neutral", "Neutro", SentimentNeutral},
		{"lowercase", "negativo", SentimentNegative},
		{"trailing period", "Positivo.", SentimentPositive},
		{"quoted", "'Neutro'", SentimentNeutral},
		{"surrounding prose", "Il sentimento è Molto Negativo", SentimentVeryNegative},
		{"whitespace", "  Positivo  ", SentimentPositive},
		{"garbage defaults to neutral", "boh", SentimentNeutral},
		{"empty defaults to neutral", "", SentimentNeutral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSentiment(tt.raw))
		})
	}
}

func TestParseSentimentChecksCompoundGradesFirst(t *testing.T) {
	// "molto positivo" contains "positivo"; the compound grade must win.
	assert.Equal(t, SentimentVeryPositive, ParseSentiment("molto positivo"))
	assert.Equal(t, SentimentVeryNegative, ParseSentiment("molto negativo"))
}

func TestIsNegative(t *testing.T) {
	assert.True(t, SentimentNegative.IsNegative())
	assert.True(t, SentimentVeryNegative.IsNegative())
	assert.False(t, SentimentNeutral.IsNegative())
	assert.False(t, SentimentPositive.IsNegative())
	assert.False(t, SentimentVeryPositive.IsNegative())
}
