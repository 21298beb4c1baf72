package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"kisan-ai-pipeline/internal/config"
	"kisan-ai-pipeline/internal/models"
	"kisan-ai-pipeline/internal/pkg/logger"
)

// GeminiService is the text/vision/audio inference collaborator. Two model
// tiers: flash for classification and short-form generation, pro for
// synthesis, vision and audio.
type GeminiService struct {
	client *genai.Client
	config config.GeminiConfig
	logger *logger.Logger
}

// Generation settings per tier; vision and audio always run on the pro
// model.
const (
	flashMaxTokens   int32   = 1024
	flashTemperature float32 = 0.2
	proMaxTokens     int32   = 2048
	proTemperature   float32 = 0.1
	defaultTopP      float32 = 0.8
)

func NewGeminiService(cfg config.GeminiConfig, log *logger.Logger) (*GeminiService, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("Gemini API key required")
	}

	ctx := context.Background()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	service := &GeminiService{
		client: client,
		config: cfg,
		logger: log,
	}

	if err := service.testConnection(); err != nil {
		return nil, fmt.Errorf("failed to connect to Gemini API: %w", err)
	}

	log.Info("Gemini service initialized",
		"flash_model", cfg.FlashModel,
		"pro_model", cfg.ProModel,
		"embedding_model", cfg.EmbeddingModel,
	)

	return service, nil
}

func (service *GeminiService) testConnection() error {
	ctx, cancel := context.WithTimeout(context.Background(), service.config.Timeout)
	defer cancel()

	result, err := service.client.Models.GenerateContent(
		ctx,
		service.config.FlashModel,
		genai.Text("Hello"), nil)
	if err != nil {
		return fmt.Errorf("test generation failed: %w", err)
	}
	if len(result.Candidates) == 0 {
		return fmt.Errorf("test generation failed: no candidates")
	}

	service.logger.Info("Gemini test connection successful")
	return nil
}

func (service *GeminiService) tierSettings(tier models.ModelTier) (model string, maxTokens int32, temperature float32) {
	if tier == models.TierPro {
		return service.config.ProModel, proMaxTokens, proTemperature
	}
	return service.config.FlashModel, flashMaxTokens, flashTemperature
}

// GenerateText issues one text call on the requested tier with the service's
// bounded retry loop.
func (service *GeminiService) GenerateText(ctx context.Context, tier models.ModelTier, prompt string) (string, error) {
	model, maxTokens, temperature := service.tierSettings(tier)
	contents := genai.Text(prompt)
	return service.generateWithRetry(ctx, "generate_text", model, contents, maxTokens, temperature)
}

// AnalyzeImage runs a vision call on the pro model.
func (service *GeminiService) AnalyzeImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	if len(image) == 0 {
		return "", models.NewValidationError("EMPTY_IMAGE", "no image bytes supplied")
	}

	parts := []*genai.Part{
		genai.NewPartFromText(prompt),
		genai.NewPartFromBytes(image, mimeType),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}
	return service.generateWithRetry(ctx, "analyze_image", service.config.ProModel, contents, proMaxTokens, proTemperature)
}

// TranscribeAudio runs an audio call on the pro model.
func (service *GeminiService) TranscribeAudio(ctx context.Context, prompt string, audio []byte, mimeType string) (string, error) {
	if len(audio) == 0 {
		return "", models.NewValidationError("EMPTY_AUDIO", "no audio bytes supplied")
	}

	parts := []*genai.Part{
		genai.NewPartFromText(prompt),
		genai.NewPartFromBytes(audio, mimeType),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}
	return service.generateWithRetry(ctx, "transcribe_audio", service.config.ProModel, contents, proMaxTokens, proTemperature)
}

func (service *GeminiService) generateWithRetry(ctx context.Context, operation, model string, contents []*genai.Content, maxTokens int32, temperature float32) (string, error) {
	startTime := time.Now()

	var text string
	var err error

	for attempt := 1; attempt <= service.config.MaxRetries; attempt++ {
		text, err = service.makeGenerationRequest(ctx, model, contents, maxTokens, temperature)
		if err == nil {
			break
		}

		if attempt < service.config.MaxRetries {
			service.logger.WithFields(logger.Fields{
				"attempt":     attempt,
				"max_retries": service.config.MaxRetries,
				"operation":   operation,
				"error":       err,
			}).Warn("Gemini generation failed, retrying")

			select {
			case <-time.After(service.config.RetryDelay * time.Duration(attempt)):
			case <-ctx.Done():
				return "", models.NewTimeoutError("GEMINI_TIMEOUT", "content generation timed out").WithCause(ctx.Err())
			}
		}
	}

	if err != nil {
		service.logger.LogService("gemini", operation, time.Since(startTime), map[string]interface{}{
			"model":    model,
			"attempts": service.config.MaxRetries,
		}, err)
		return "", models.WrapExternalError("GEMINI", err)
	}

	service.logger.LogService("gemini", operation, time.Since(startTime), map[string]interface{}{
		"model":           model,
		"response_length": len(text),
	}, nil)

	return text, nil
}

func (service *GeminiService) makeGenerationRequest(ctx context.Context, model string, contents []*genai.Content, maxTokens int32, temperature float32) (string, error) {
	genCtx, cancel := context.WithTimeout(ctx, service.config.Timeout)
	defer cancel()

	temp := temperature
	topP := defaultTopP
	genConfig := &genai.GenerateContentConfig{
		Temperature:     &temp,
		TopP:            &topP,
		MaxOutputTokens: maxTokens,
	}

	result, err := service.client.Models.GenerateContent(genCtx, model, contents, genConfig)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	if len(result.Candidates) == 0 {
		return "", fmt.Errorf("no response candidates generated")
	}

	candidate := result.Candidates[0]
	text := ""
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			text += part.Text
		}
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("empty response content, finish reason: %s", candidate.FinishReason)
	}

	return text, nil
}

// EmbedText produces one embedding vector for the retrieval backend.
func (service *GeminiService) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, models.NewValidationError("EMPTY_TEXT", "no text to embed")
	}

	embedCtx, cancel := context.WithTimeout(ctx, service.config.Timeout)
	defer cancel()

	startTime := time.Now()

	result, err := service.client.Models.EmbedContent(embedCtx, service.config.EmbeddingModel,
		genai.Text(text), nil)
	if err != nil {
		service.logger.LogService("gemini", "embed_text", time.Since(startTime), map[string]interface{}{
			"model": service.config.EmbeddingModel,
		}, err)
		return nil, models.WrapExternalError("GEMINI_EMBEDDINGS", err)
	}
	if len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
		return nil, models.NewExternalError("EMPTY_EMBEDDING", "embedding response carried no values")
	}

	service.logger.LogService("gemini", "embed_text", time.Since(startTime), map[string]interface{}{
		"model":      service.config.EmbeddingModel,
		"dimensions": len(result.Embeddings[0].Values),
	}, nil)

	return result.Embeddings[0].Values, nil
}

// HealthCheck issues a minimal probe call.
func (service *GeminiService) HealthCheck(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	result, err := service.client.Models.GenerateContent(probeCtx, service.config.FlashModel,
		genai.Text("Respond with 'OK'"), nil)
	if err != nil {
		return models.WrapExternalError("GEMINI", err)
	}
	if len(result.Candidates) == 0 {
		return models.NewExternalError("GEMINI_EMPTY", "health probe returned no candidates")
	}
	return nil
}

func (service *GeminiService) Close() error {
	service.logger.Info("Gemini client closed")
	return nil
}
