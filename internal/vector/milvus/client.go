// Package milvus is an optional remote backend for the knowledge-base
// corpus, used when the record set outgrows the in-process scan.
package milvus

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/GianmarcoBramucci/my-first-chatbot/pkg/logger"
)

type Client struct {
	client         client.Client
	collectionName string
	vectorDim      int
}

func NewClient(endpoint, apiKey, collectionName string, vectorDim int) (*Client, error) {
	c, err := client.NewGrpcClient(
		context.Background(),
		endpoint,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Milvus client initialized",
		zap.String("endpoint", endpoint),
		zap.String("collection", collectionName),
	)

	return &Client{
		client:         c,
		collectionName: collectionName,
		vectorDim:      vectorDim,
	}, nil
}

func (m *Client) Close() error {
	return m.client.Close()
}

func (m *Client) CreateCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if has {
		logger.Info("Collection already exists", zap.String("collection", m.collectionName))
		return nil
	}

	schema := &entity.Schema{
		CollectionName: m.collectionName,
		Description:    "Knowledge-base record embeddings",
		Fields: []*entity.Field{
			{
				Name:       "record_id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "embedding",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", m.vectorDim),
				},
			},
			{
				Name:     "content",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "4096",
				},
			},
		},
	}

	err = m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	// IP over normalized embeddings matches the cosine scores the
	// in-process matcher produces, so thresholds stay comparable.
	idx, err := entity.NewIndexIvfFlat(entity.IP, 1024)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	err = m.client.CreateIndex(ctx, m.collectionName, "embedding", idx, false)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	err = m.client.LoadCollection(ctx, m.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded", zap.String("collection", m.collectionName))

	return nil
}

func (m *Client) Insert(ctx context.Context, ids []string, vectors [][]float64, contents []string) error {
	if len(ids) == 0 {
		return nil
	}

	embeddings := make([][]float32, len(vectors))
	for i, vector := range vectors {
		embedding := make([]float32, len(vector))
		for j, v := range vector {
			embedding[j] = float32(v)
		}
		embeddings[i] = embedding
	}

	_, err := m.client.Insert(
		ctx,
		m.collectionName,
		"",
		entity.NewColumnVarChar("record_id", ids),
		entity.NewColumnFloatVector("embedding", m.vectorDim, embeddings),
		entity.NewColumnVarChar("content", contents),
	)
	if err != nil {
		return fmt.Errorf("failed to insert records: %w", err)
	}

	err = m.client.Flush(ctx, m.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	logger.Info("Records inserted into vector index", zap.Int("count", len(ids)))

	return nil
}

// SearchKB returns the best-scoring KB record for the query vector.
// Implements the router's VectorIndex contract.
func (m *Client) SearchKB(ctx context.Context, vector []float64) (string, float64, bool, error) {
	queryVec := make([]float32, len(vector))
	for i, v := range vector {
		queryVec[i] = float32(v)
	}

	sp, _ := entity.NewIndexIvfFlatSearchParam(16)

	searchResult, err := m.client.Search(
		ctx,
		m.collectionName,
		[]string{},
		"",
		[]string{"record_id", "content"},
		[]entity.Vector{entity.FloatVector(queryVec)},
		"embedding",
		entity.IP,
		1,
		sp,
	)
	if err != nil {
		return "", 0, false, fmt.Errorf("failed to search: %w", err)
	}

	for _, sr := range searchResult {
		if sr.ResultCount == 0 {
			continue
		}

		contentCol := sr.Fields.GetColumn("content")
		content, err := contentCol.Get(0)
		if err != nil {
			return "", 0, false, fmt.Errorf("failed to read result: %w", err)
		}

		score := float64(sr.Scores[0])

		logger.Debug("Vector index search completed", zap.Float64("score", score))

		return content.(string), score, true, nil
	}

	return "", 0, false, nil
}
