package agents

import (
	"context"
	"sync"

	"kisan-ai-pipeline/internal/models"
)

// mockInference scripts the model collaborator per call site.
type mockInference struct {
	mu sync.Mutex

	generateFunc   func(tier models.ModelTier, prompt string) (string, error)
	imageFunc      func(prompt string, image []byte) (string, error)
	audioFunc      func(prompt string, audio []byte) (string, error)
	generateCalls  int
	imageCalls     int
	audioCalls     int
	seenPrompts    []string
	healthCheckErr error
}

func (m *mockInference) GenerateText(ctx context.Context, tier models.ModelTier, prompt string) (string, error) {
	m.mu.Lock()
	m.generateCalls++
	m.seenPrompts = append(m.seenPrompts, prompt)
	m.mu.Unlock()
	if m.generateFunc == nil {
		return "{}", nil
	}
	return m.generateFunc(tier, prompt)
}

func (m *mockInference) AnalyzeImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	m.mu.Lock()
	m.imageCalls++
	m.mu.Unlock()
	if m.imageFunc == nil {
		return "{}", nil
	}
	return m.imageFunc(prompt, image)
}

func (m *mockInference) TranscribeAudio(ctx context.Context, prompt string, audio []byte, mimeType string) (string, error) {
	m.mu.Lock()
	m.audioCalls++
	m.mu.Unlock()
	if m.audioFunc == nil {
		return "", nil
	}
	return m.audioFunc(prompt, audio)
}

func (m *mockInference) HealthCheck(ctx context.Context) error {
	return m.healthCheckErr
}

// mockSink records writes in call order.
type mockSink struct {
	mu        sync.Mutex
	thoughts  []string
	responses map[string]*models.AgentResponse
	status    models.SessionStatus
	final     string
	createErr error
	writeErr  error
}

func newMockSink() *mockSink {
	return &mockSink{responses: map[string]*models.AgentResponse{}}
}

func (s *mockSink) CreateSession(ctx context.Context, userID string, input map[string]interface{}) (string, error) {
	if s.createErr != nil {
		return "", s.createErr
	}
	return "session-test-1", nil
}

func (s *mockSink) AddThought(ctx context.Context, sessionID, thought string) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	s.mu.Lock()
	s.thoughts = append(s.thoughts, thought)
	s.mu.Unlock()
	return nil
}

func (s *mockSink) SaveAgentResponse(ctx context.Context, sessionID, agentName string, response *models.AgentResponse) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	s.mu.Lock()
	s.responses[agentName] = response
	s.mu.Unlock()
	return nil
}

func (s *mockSink) UpdateStatus(ctx context.Context, sessionID string, status models.SessionStatus, finalMessage string) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	s.mu.Lock()
	s.status = status
	s.final = finalMessage
	s.mu.Unlock()
	return nil
}

// mockRetriever serves canned chunks or a scripted error.
type mockRetriever struct {
	chunks []models.RetrievedChunk
	err    error
}

func (r *mockRetriever) Search(ctx context.Context, query string, topK int) ([]models.RetrievedChunk, error) {
	if r.err != nil {
		return nil, r.err
	}
	if topK > 0 && len(r.chunks) > topK {
		return r.chunks[:topK], nil
	}
	return r.chunks, nil
}

func (r *mockRetriever) HealthCheck(ctx context.Context) error {
	return r.err
}
