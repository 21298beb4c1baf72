package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"kisan-ai-pipeline/internal/config"
	"kisan-ai-pipeline/internal/models"
	"kisan-ai-pipeline/internal/pkg/logger"
)

// Embedder is the slice of the inference client the vector store needs.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// VectorService is the retrieval backend: Gemini embeddings plus a Redis
// hash of scheme documents, each stored with its embedding. Similarity is
// cosine, computed in-process over all stored documents; the corpus is
// small enough that a real vector index would be overkill.
type VectorService struct {
	client       *redis.Client
	embedder     Embedder
	documentsKey string
	logger       *logger.Logger
}

func NewVectorService(cfg config.VectorConfig, embedder Embedder, client *redis.Client, log *logger.Logger) (*VectorService, error) {
	service := &VectorService{
		client:       client,
		embedder:     embedder,
		documentsKey: cfg.DocumentsKey,
		logger:       log,
	}

	// Probe the embedding model up front; a service that cannot embed
	// must fail construction so the manager falls back to static notes.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	vector, err := embedder.EmbedText(ctx, "test query for government schemes")
	if err != nil {
		return nil, fmt.Errorf("embedding probe failed: %w", err)
	}

	log.Info("Vector service initialized",
		"documents_key", cfg.DocumentsKey,
		"vector_dimensions", len(vector))

	return service, nil
}

// AddDocuments embeds and stores each document; already-embedded documents
// keep their vectors.
func (service *VectorService) AddDocuments(ctx context.Context, documents []models.SchemeDocument) error {
	startTime := time.Now()

	for i := range documents {
		doc := &documents[i]
		if doc.ID == "" {
			doc.ID = fmt.Sprintf("doc_%d", i)
		}
		if len(doc.Embedding) == 0 {
			vector, err := service.embedder.EmbedText(ctx, doc.Content)
			if err != nil {
				return models.WrapExternalError("GEMINI_EMBEDDINGS", err).
					WithMetadata("document_id", doc.ID)
			}
			doc.Embedding = vector
		}
		doc.CreatedAt = time.Now().UTC()

		payload, err := json.Marshal(doc)
		if err != nil {
			return models.NewInternalError("VECTOR_MARSHAL", "failed to marshal document").WithCause(err)
		}
		if err := service.client.HSet(ctx, service.documentsKey, doc.ID, string(payload)).Err(); err != nil {
			return models.WrapExternalError("REDIS", err)
		}
	}

	service.logger.LogService("vector_store", "add_documents", time.Since(startTime), map[string]interface{}{
		"documents": len(documents),
	}, nil)

	return nil
}

// Search embeds the query and ranks all stored documents by cosine
// similarity, returning the top k.
func (service *VectorService) Search(ctx context.Context, query string, topK int) ([]models.RetrievedChunk, error) {
	startTime := time.Now()

	queryVector, err := service.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, models.WrapExternalError("GEMINI_EMBEDDINGS", err)
	}

	stored, err := service.client.HGetAll(ctx, service.documentsKey).Result()
	if err != nil {
		return nil, models.WrapExternalError("REDIS", err)
	}

	var chunks []models.RetrievedChunk
	for id, payload := range stored {
		var doc models.SchemeDocument
		if err := json.Unmarshal([]byte(payload), &doc); err != nil {
			service.logger.WithError(err).Warn("skipping unparseable stored document", "id", id)
			continue
		}
		if len(doc.Embedding) == 0 {
			continue
		}
		chunks = append(chunks, models.RetrievedChunk{
			ID:       doc.ID,
			Content:  doc.Content,
			Metadata: doc.Metadata,
			Score:    CosineSimilarity(queryVector, doc.Embedding),
		})
	}

	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].Score > chunks[j].Score
	})
	if topK > 0 && len(chunks) > topK {
		chunks = chunks[:topK]
	}

	service.logger.LogService("vector_store", "similarity_search", time.Since(startTime), map[string]interface{}{
		"results": len(chunks),
		"top_k":   topK,
	}, nil)

	return chunks, nil
}

// CosineSimilarity returns 0 for zero-norm or mismatched vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Stats reports collection size for the health/debug surface.
func (service *VectorService) Stats(ctx context.Context) (map[string]interface{}, error) {
	count, err := service.client.HLen(ctx, service.documentsKey).Result()
	if err != nil {
		return nil, models.WrapExternalError("REDIS", err)
	}
	return map[string]interface{}{
		"total_documents": count,
		"documents_key":   service.documentsKey,
	}, nil
}

func (service *VectorService) HealthCheck(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := service.client.Ping(probeCtx).Err(); err != nil {
		return models.WrapExternalError("REDIS", err)
	}
	return nil
}
