package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"kisan-ai-pipeline/internal/models"
	"kisan-ai-pipeline/internal/pkg/logger"
)

// RequestProcessor is the slice of the manager the HTTP layer depends on.
type RequestProcessor interface {
	ProcessRequest(ctx context.Context, req *models.Request) (*models.AssistResult, error)
	HealthCheck(ctx context.Context) map[string]string
	Capabilities() []string
}

// SessionReader reads session records back for debugging.
type SessionReader interface {
	GetSession(ctx context.Context, sessionID string) (*models.SessionRecord, error)
}

// SchemeIngestor feeds documents into the retrieval backend.
type SchemeIngestor interface {
	AddDocuments(ctx context.Context, documents []models.SchemeDocument) error
}

type AssistHandler struct {
	manager  RequestProcessor
	sessions SessionReader
	ingestor SchemeIngestor

	adminTokenPrefix string
	logger           *logger.Logger
}

func NewAssistHandler(manager RequestProcessor, sessions SessionReader, ingestor SchemeIngestor, adminTokenPrefix string, log *logger.Logger) *AssistHandler {
	return &AssistHandler{
		manager:          manager,
		sessions:         sessions,
		ingestor:         ingestor,
		adminTokenPrefix: adminTokenPrefix,
		logger:           log,
	}
}

// RegisterRoutes wires the handler into the gin engine.
func (handler *AssistHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", handler.Health)

	api := router.Group("/api/v1")
	api.POST("/assist", handler.Assist)
	api.GET("/sessions/:id", handler.GetSession)
	api.POST("/schemes/ingest", handler.IngestSchemes)
}

type assistRequest struct {
	InputType       string              `json:"inputType" binding:"required"`
	Content         string              `json:"content" binding:"required"`
	UserID          string              `json:"userId"`
	Language        string              `json:"language"`
	QueryType       string              `json:"queryType"`
	TextDescription string              `json:"textDescription"`
	FarmSettings    *models.FarmProfile `json:"farmSettings"`
}

// Assist is the orchestration endpoint: one multi-modal request in, one
// localized envelope out.
func (handler *AssistHandler) Assist(ctx *gin.Context) {
	var body assistRequest
	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	request, err := buildRequest(&body)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := handler.manager.ProcessRequest(ctx.Request.Context(), request)
	if err != nil {
		status := http.StatusInternalServerError
		if models.IsValidation(err) {
			status = http.StatusBadRequest
		}
		response := gin.H{"error": err.Error()}
		if result != nil {
			response["session_id"] = result.SessionID
		}
		ctx.JSON(status, response)
		return
	}

	ctx.JSON(http.StatusOK, result)
}

func buildRequest(body *assistRequest) (*models.Request, error) {
	request := &models.Request{
		Modality:    models.Modality(strings.ToLower(body.InputType)),
		Language:    body.Language,
		QueryType:   body.QueryType,
		Description: body.TextDescription,
		UserID:      body.UserID,
		Profile:     body.FarmSettings,
	}
	if request.UserID == "" {
		request.UserID = "anonymous"
	}

	switch request.Modality {
	case models.ModalityImage:
		payload, err := decodeBase64Payload(body.Content)
		if err != nil {
			return nil, models.NewValidationError("BAD_IMAGE", "image content is not valid base64").WithCause(err)
		}
		request.Image = payload
		request.Text = body.TextDescription
	case models.ModalityAudio:
		payload, err := decodeBase64Payload(body.Content)
		if err != nil {
			return nil, models.NewValidationError("BAD_AUDIO", "audio content is not valid base64").WithCause(err)
		}
		request.Audio = payload
		request.Text = body.TextDescription
	case models.ModalityText:
		request.Text = body.Content
	default:
		return nil, models.NewValidationError("BAD_INPUT_TYPE",
			"inputType must be image, audio or text")
	}

	return request, nil
}

// decodeBase64Payload tolerates data-URL prefixes like
// "data:image/jpeg;base64,...".
func decodeBase64Payload(content string) ([]byte, error) {
	if idx := strings.Index(content, ";base64,"); idx >= 0 {
		content = content[idx+len(";base64,"):]
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(content))
}

// Health reports per-collaborator status and declared capabilities.
func (handler *AssistHandler) Health(ctx *gin.Context) {
	statuses := handler.manager.HealthCheck(ctx.Request.Context())

	overall := "healthy"
	httpStatus := http.StatusOK
	for _, status := range statuses {
		if status != "up" {
			overall = "degraded"
			httpStatus = http.StatusServiceUnavailable
			break
		}
	}

	ctx.JSON(httpStatus, gin.H{
		"status":       overall,
		"services":     statuses,
		"capabilities": handler.manager.Capabilities(),
	})
}

// GetSession returns the sink's record for one session id.
func (handler *AssistHandler) GetSession(ctx *gin.Context) {
	sessionID := ctx.Param("id")

	record, err := handler.sessions.GetSession(ctx.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, models.ErrSessionNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		handler.logger.WithError(err).Error("failed to read session", "session_id", sessionID)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read session"})
		return
	}

	ctx.JSON(http.StatusOK, record)
}

type ingestRequest struct {
	Documents []models.SchemeDocument `json:"documents" binding:"required"`
}

// IngestSchemes loads scheme documents into the vector store. Guarded by a
// toy bearer check only; real authorization is out of scope here.
func (handler *AssistHandler) IngestSchemes(ctx *gin.Context) {
	token := strings.TrimPrefix(ctx.GetHeader("Authorization"), "Bearer ")
	if !strings.HasPrefix(token, handler.adminTokenPrefix) {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "admin token required"})
		return
	}

	if handler.ingestor == nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "vector store unavailable"})
		return
	}

	var body ingestRequest
	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if len(body.Documents) == 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "no documents supplied"})
		return
	}

	if err := handler.ingestor.AddDocuments(ctx.Request.Context(), body.Documents); err != nil {
		handler.logger.WithError(err).Error("scheme ingest failed")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "ingest failed"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"documents": len(body.Documents),
	})
}
