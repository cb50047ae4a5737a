package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/GianmarcoBramucci/my-first-chatbot/internal/metrics"
	"github.com/GianmarcoBramucci/my-first-chatbot/internal/storage/models"
	"github.com/GianmarcoBramucci/my-first-chatbot/pkg/circuitbreaker"
	"github.com/GianmarcoBramucci/my-first-chatbot/pkg/logger"
	"github.com/GianmarcoBramucci/my-first-chatbot/pkg/retry"
)

type Client struct {
	client         *openai.Client
	model          string
	embeddingModel string
	temperature    float32
	maxTokens      int
	timeout        time.Duration
	cb             *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float32
	MaxTokens    int
}

type CompletionResponse struct {
	Content string
	Usage   Usage
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

func NewClient(apiKey, model, embeddingModel string, temperature float32, maxTokens, timeoutSec int) *Client {
	client := openai.NewClient(apiKey)

	cb := circuitbreaker.NewCircuitBreaker("llm", circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	if timeoutSec <= 0 {
		timeoutSec = 30
	}

	logger.Info("LLM client initialized",
		zap.String("model", model),
		zap.String("embedding_model", embeddingModel),
	)

	return &Client{
		client:         client,
		model:          model,
		embeddingModel: embeddingModel,
		temperature:    temperature,
		maxTokens:      maxTokens,
		timeout:        time.Duration(timeoutSec) * time.Second,
		cb:             cb,
		retryConfig:    retryConfig,
	}
}

func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		},
		{
			Role:    openai.ChatMessageRoleUser,
			Content: req.UserPrompt,
		},
	}

	var result *CompletionResponse

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateChatCompletion(
				ctx,
				openai.ChatCompletionRequest{
					Model:       c.model,
					Messages:    messages,
					Temperature: temperature,
					MaxTokens:   maxTokens,
				},
			)

			if err != nil {
				return fmt.Errorf("failed to create completion: %w", err)
			}

			logger.Debug("LLM completion generated",
				zap.Int("prompt_tokens", resp.Usage.PromptTokens),
				zap.Int("completion_tokens", resp.Usage.CompletionTokens),
			)

			metrics.LLMTokensUsed.WithLabelValues(c.model, "prompt").Add(float64(resp.Usage.PromptTokens))
			metrics.LLMTokensUsed.WithLabelValues(c.model, "completion").Add(float64(resp.Usage.CompletionTokens))

			result = &CompletionResponse{
				Content: resp.Choices[0].Message.Content,
				Usage: Usage{
					PromptTokens:     resp.Usage.PromptTokens,
					CompletionTokens: resp.Usage.CompletionTokens,
					TotalTokens:      resp.Usage.TotalTokens,
				},
			}

			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	return result, nil
}

func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var embedding []float64

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateEmbeddings(
				ctx,
				openai.EmbeddingRequest{
					Input: []string{text},
					Model: openai.EmbeddingModel(c.embeddingModel),
				},
			)

			if err != nil {
				return fmt.Errorf("failed to generate embedding: %w", err)
			}

			embedding = make([]float64, len(resp.Data[0].Embedding))
			for i, v := range resp.Data[0].Embedding {
				embedding[i] = float64(v)
			}

			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	return embedding, nil
}

func (c *Client) GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var embeddings [][]float64

	batchSize := 100
	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch := texts[i:end]

		err := c.cb.Execute(ctx, func() error {
			return retry.Do(ctx, c.retryConfig, func() error {
				resp, err := c.client.CreateEmbeddings(
					ctx,
					openai.EmbeddingRequest{
						Input: batch,
						Model: openai.EmbeddingModel(c.embeddingModel),
					},
				)

				if err != nil {
					return fmt.Errorf("failed to generate batch embeddings: %w", err)
				}

				for _, data := range resp.Data {
					embedding := make([]float64, len(data.Embedding))
					for j, v := range data.Embedding {
						embedding[j] = float64(v)
					}
					embeddings = append(embeddings, embedding)
				}

				return nil
			})
		})

		if err != nil {
			return nil, err
		}
	}

	logger.Debug("Batch embeddings generated", zap.Int("count", len(embeddings)))

	return embeddings, nil
}

// ClassifySentiment grades the query on the five-point Italian scale.
func (c *Client) ClassifySentiment(ctx context.Context, query string) (models.Sentiment, error) {
	systemPrompt := `Analizza il sentimento del seguente testo e classificalo come:
- Molto Positivo
- Positivo
- Neutro
- Negativo
- Molto Negativo
Rispondi solo con una delle cinque categorie sopra.`

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   query,
		Temperature:  0.1,
		MaxTokens:    10,
	})
	if err != nil {
		return models.SentimentNeutral, fmt.Errorf("failed to classify sentiment: %w", err)
	}

	sentiment := models.ParseSentiment(resp.Content)

	logger.Debug("Sentiment classified",
		zap.String("raw", resp.Content),
		zap.String("sentiment", string(sentiment)),
	)

	return sentiment, nil
}

// CleanQuery rewrites the question for retrieval, keeping its language.
func (c *Client) CleanQuery(ctx context.Context, query string) (string, error) {
	systemPrompt := "Sei un assistente che riscrive domande per ottimizzare la ricerca, mantenendo la lingua originale."
	userPrompt := fmt.Sprintf("Pulisci la seguente domanda: %s", query)

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Temperature:  0.1,
		MaxTokens:    100,
	})
	if err != nil {
		return "", fmt.Errorf("failed to clean query: %w", err)
	}

	cleaned := strings.TrimSpace(resp.Content)

	logger.Debug("Query cleaned",
		zap.String("original", query),
		zap.String("cleaned", cleaned),
	)

	return cleaned, nil
}

// ClassifyQuery decides where the answer should be looked up. The returned
// string is normalized lowercase; the router parses it into its enum.
func (c *Client) ClassifyQuery(ctx context.Context, query string) (string, error) {
	systemPrompt := `Sei un assistente intelligente.
Decidi dove è meglio cercare la risposta:
- 'FAQ' se la domanda è comune
- 'Knowledge Base' se serve più dettaglio
- 'Web' se la risposta non è nei dati interni
Rispondi SOLO con 'FAQ', 'Knowledge Base' o 'Web'.`

	userPrompt := fmt.Sprintf("Classifica la seguente domanda: %s", query)

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Temperature:  0.1,
		MaxTokens:    10,
	})
	if err != nil {
		return "", fmt.Errorf("failed to classify query: %w", err)
	}

	return strings.ToLower(strings.TrimSpace(resp.Content)), nil
}

// ComposeAnswer builds the final user-facing answer from the retrieved
// content, conditioned on sentiment, role policy and recent memory.
func (c *Client) ComposeAnswer(ctx context.Context, query string, sentiment models.Sentiment, rolePolicy, memoryContext, retrievedContent string) (string, error) {
	systemPrompt := fmt.Sprintf(`Sei un assistente di supporto clienti.
Rispondi nella lingua della domanda, in modo chiaro e cortese.
Tieni conto del sentimento dell'utente: %s.
Linee guida per questo utente: %s
Usa ESCLUSIVAMENTE le informazioni fornite nel contesto. Se il contesto non
contiene la risposta, dillo apertamente.`, sentiment, rolePolicy)

	userPrompt := fmt.Sprintf(`Domanda: %s

Conversazione recente:
%s

Contesto recuperato:
%s`, query, memoryContext, retrievedContent)

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Temperature:  0.3,
		MaxTokens:    c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to compose answer: %w", err)
	}

	logger.Info("Answer composed",
		zap.String("sentiment", string(sentiment)),
		zap.Int("answer_length", len(resp.Content)),
	)

	return resp.Content, nil
}
