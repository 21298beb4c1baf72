package agents

import (
	"context"

	"kisan-ai-pipeline/internal/models"
)

// Inference is the text/vision/audio model collaborator. Callers must
// assume occasional garbled or truncated output and never valid structure.
type Inference interface {
	GenerateText(ctx context.Context, tier models.ModelTier, prompt string) (string, error)
	AnalyzeImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)
	TranscribeAudio(ctx context.Context, prompt string, audio []byte, mimeType string) (string, error)
	HealthCheck(ctx context.Context) error
}

// Retriever is the embedding-based retrieval backend. It may be absent at
// process start; scheme retrieval then answers from its static table.
type Retriever interface {
	Search(ctx context.Context, query string, topK int) ([]models.RetrievedChunk, error)
	HealthCheck(ctx context.Context) error
}

// SessionSink is the append-only observability store. Write failures are
// logged by callers and never propagated as request failures.
type SessionSink interface {
	CreateSession(ctx context.Context, userID string, input map[string]interface{}) (string, error)
	AddThought(ctx context.Context, sessionID, thought string) error
	SaveAgentResponse(ctx context.Context, sessionID, agentName string, response *models.AgentResponse) error
	UpdateStatus(ctx context.Context, sessionID string, status models.SessionStatus, finalMessage string) error
}
