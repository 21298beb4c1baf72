package handlers_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"kisan-ai-pipeline/internal/handlers"
	"kisan-ai-pipeline/internal/models"
	"kisan-ai-pipeline/internal/pkg/logger"
)

type MockManager struct {
	lastRequest *models.Request
	healthy     bool
}

func (m *MockManager) ProcessRequest(ctx context.Context, req *models.Request) (*models.AssistResult, error) {
	m.lastRequest = req
	if strings.TrimSpace(req.Text) == "" && len(req.Image) == 0 && len(req.Audio) == 0 {
		err := models.NewValidationError("NOTHING_ACTIONABLE", "request carried no usable text, audio or image")
		return &models.AssistResult{SessionID: "session-err", Status: "error"}, err
	}
	return &models.AssistResult{
		SessionID:        "session-123",
		OriginalLanguage: "hindi",
		FinalResponse: &models.FinalResponse{
			Message:  "आपकी फसल के लिए सलाह",
			Type:     models.ResponseTypeGeneral,
			Language: "hindi",
		},
		Status: "success",
	}, nil
}

func (m *MockManager) HealthCheck(ctx context.Context) map[string]string {
	if m.healthy {
		return map[string]string{"gemini": "up", "redis": "up", "vector_store": "up"}
	}
	return map[string]string{"gemini": "up", "redis": "down: connection refused", "vector_store": "unavailable"}
}

func (m *MockManager) Capabilities() []string {
	return []string{"image_analysis", "general_farming"}
}

type MockSessionReader struct{}

func (m *MockSessionReader) GetSession(ctx context.Context, sessionID string) (*models.SessionRecord, error) {
	if sessionID == "missing" {
		return nil, models.ErrSessionNotFound
	}
	return &models.SessionRecord{
		ID:     sessionID,
		UserID: "farmer-1",
		Status: models.SessionStatusCompleted,
	}, nil
}

type MockIngestor struct {
	ingested int
}

func (m *MockIngestor) AddDocuments(ctx context.Context, documents []models.SchemeDocument) error {
	m.ingested += len(documents)
	return nil
}

func setupTestRouter(manager *MockManager, ingestor handlers.SchemeIngestor) *gin.Engine {
	gin.SetMode(gin.TestMode)

	testLogger, _ := logger.New(logger.LogConfig{
		Level:  "error",
		Format: "json",
		Output: "stdout",
	})

	handler := handlers.NewAssistHandler(manager, &MockSessionReader{}, ingestor, "admin_", testLogger)

	router := gin.New()
	handler.RegisterRoutes(router)
	return router
}

func postJSON(t *testing.T, router *gin.Engine, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	jsonBody, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	req, _ := http.NewRequest("POST", path, bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestAssistTextRequest(t *testing.T) {
	manager := &MockManager{healthy: true}
	router := setupTestRouter(manager, nil)

	recorder := postJSON(t, router, "/api/v1/assist", map[string]interface{}{
		"inputType": "text",
		"content":   "मेरी फसल में कीड़े लगे हैं",
		"userId":    "farmer-1",
		"language":  "hindi",
	}, nil)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", recorder.Code, recorder.Body.String())
	}

	var result models.AssistResult
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse envelope: %v", err)
	}
	if result.SessionID != "session-123" {
		t.Errorf("session_id = %q", result.SessionID)
	}
	if result.FinalResponse.Message == "" {
		t.Error("final message is empty")
	}
	if manager.lastRequest.Text != "मेरी फसल में कीड़े लगे हैं" {
		t.Errorf("text payload = %q", manager.lastRequest.Text)
	}
}

func TestAssistImageRequestDecodesBase64(t *testing.T) {
	manager := &MockManager{healthy: true}
	router := setupTestRouter(manager, nil)

	imageBytes := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	recorder := postJSON(t, router, "/api/v1/assist", map[string]interface{}{
		"inputType":       "image",
		"content":         "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(imageBytes),
		"textDescription": "yellow spots on leaves",
	}, nil)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", recorder.Code, recorder.Body.String())
	}
	if !bytes.Equal(manager.lastRequest.Image, imageBytes) {
		t.Errorf("decoded image = %v, want %v", manager.lastRequest.Image, imageBytes)
	}
	if manager.lastRequest.Text != "yellow spots on leaves" {
		t.Errorf("description should ride along as text, got %q", manager.lastRequest.Text)
	}
}

func TestAssistBadBase64(t *testing.T) {
	router := setupTestRouter(&MockManager{healthy: true}, nil)

	recorder := postJSON(t, router, "/api/v1/assist", map[string]interface{}{
		"inputType": "image",
		"content":   "not-base64!!!",
	}, nil)

	if recorder.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", recorder.Code)
	}
}

func TestAssistBadInputType(t *testing.T) {
	router := setupTestRouter(&MockManager{healthy: true}, nil)

	recorder := postJSON(t, router, "/api/v1/assist", map[string]interface{}{
		"inputType": "video",
		"content":   "something",
	}, nil)

	if recorder.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", recorder.Code)
	}
}

func TestAssistValidationErrorMapsTo400(t *testing.T) {
	router := setupTestRouter(&MockManager{healthy: true}, nil)

	recorder := postJSON(t, router, "/api/v1/assist", map[string]interface{}{
		"inputType": "text",
		"content":   " ",
	}, nil)

	// The mock manager rejects blank text with a validation error; it
	// must surface as a 4xx carrying the session id.
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body: %s", recorder.Code, recorder.Body.String())
	}
	var body map[string]interface{}
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse error body: %v", err)
	}
	if body["error"] == nil {
		t.Error("error body missing error field")
	}
	if body["session_id"] != "session-err" {
		t.Errorf("session_id = %v, want session-err", body["session_id"])
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := setupTestRouter(&MockManager{healthy: true}, nil)

	req, _ := http.NewRequest("GET", "/health", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse health body: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", body["status"])
	}
	if body["services"] == nil || body["capabilities"] == nil {
		t.Error("health body must report services and capabilities")
	}
}

func TestHealthEndpointDegraded(t *testing.T) {
	router := setupTestRouter(&MockManager{healthy: false}, nil)

	req, _ := http.NewRequest("GET", "/health", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 when a collaborator is down", recorder.Code)
	}
}

func TestGetSession(t *testing.T) {
	router := setupTestRouter(&MockManager{healthy: true}, nil)

	req, _ := http.NewRequest("GET", "/api/v1/sessions/session-123", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}

	req, _ = http.NewRequest("GET", "/api/v1/sessions/missing", nil)
	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for unknown session", recorder.Code)
	}
}

func TestIngestSchemesRequiresAdminToken(t *testing.T) {
	ingestor := &MockIngestor{}
	router := setupTestRouter(&MockManager{healthy: true}, ingestor)

	documents := map[string]interface{}{
		"documents": []map[string]interface{}{
			{"id": "pm-kisan-1", "content": "PM-KISAN pays ₹6,000 per year."},
		},
	}

	recorder := postJSON(t, router, "/api/v1/schemes/ingest", documents, nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Errorf("status without token = %d, want 401", recorder.Code)
	}

	recorder = postJSON(t, router, "/api/v1/schemes/ingest", documents,
		map[string]string{"Authorization": "Bearer wrong_token"})
	if recorder.Code != http.StatusUnauthorized {
		t.Errorf("status with bad token = %d, want 401", recorder.Code)
	}

	recorder = postJSON(t, router, "/api/v1/schemes/ingest", documents,
		map[string]string{"Authorization": "Bearer admin_dev"})
	if recorder.Code != http.StatusOK {
		t.Fatalf("status with admin token = %d, want 200, body: %s", recorder.Code, recorder.Body.String())
	}
	if ingestor.ingested != 1 {
		t.Errorf("ingested = %d, want 1", ingestor.ingested)
	}
}

func TestIngestSchemesWithoutVectorStore(t *testing.T) {
	router := setupTestRouter(&MockManager{healthy: true}, nil)

	recorder := postJSON(t, router, "/api/v1/schemes/ingest", map[string]interface{}{
		"documents": []map[string]interface{}{{"id": "1", "content": "x"}},
	}, map[string]string{"Authorization": "Bearer admin_dev"})

	if recorder.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 when the vector store is absent", recorder.Code)
	}
}
