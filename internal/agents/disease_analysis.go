package agents

import (
	"context"
	"strings"
	"time"

	"kisan-ai-pipeline/internal/models"
	"kisan-ai-pipeline/internal/pkg/logger"
)

// DiseaseAnalysis turns a diagnosis list plus farm profile into a concrete
// treatment plan. The reply is plain text by design; farmers read it as-is.
type DiseaseAnalysis struct {
	inference Inference
	logger    *logger.Logger
}

func NewDiseaseAnalysis(inference Inference, log *logger.Logger) *DiseaseAnalysis {
	return &DiseaseAnalysis{
		inference: inference,
		logger:    log,
	}
}

// Analyze requires a non-empty disease candidate list.
func (analysis *DiseaseAnalysis) Analyze(ctx context.Context, diseases []string, query string, profile *models.FarmProfile) (*models.AgentResponse, error) {
	if len(diseases) == 0 {
		return nil, models.NewValidationError("EMPTY_DISEASE_LIST",
			"disease analysis needs at least one diagnosed disease")
	}

	startTime := time.Now()

	task := "The plant is likely affected by: " + strings.Join(diseases, ", ") + ".\n"
	if strings.TrimSpace(query) != "" {
		task += "\nThe farmer asks: " + query + "\n"
	}
	task += `
Give a treatment plan covering:
1. Urgency on a 1-5 scale and why
2. The top 2 actions to take today
3. Treatment with product names and dosage per acre
4. Expected recovery timeline
5. Approximate cost in ₹

Keep it under 300 words, in simple language a farmer can act on. Reply in plain text, no JSON.`

	prompt := PromptSpec{
		Role: "You are an experienced agricultural extension officer advising Indian farmers " +
			"on crop disease treatment.",
		Context: profileContextLines(profile),
		Task:    task,
	}.Build()

	raw, err := analysis.inference.GenerateText(ctx, models.TierPro, prompt)
	if err != nil {
		analysis.logger.LogAgent("", "disease_analysis", "analyze", time.Since(startTime), map[string]interface{}{
			"diseases": diseases,
		}, err)
		return nil, models.WrapExternalError("DISEASE_ANALYSIS", err)
	}

	plan := strings.TrimSpace(raw)
	if plan == "" {
		plan = "Treatment guidance could not be generated. Please consult your local Krishi Vigyan Kendra."
	}

	analysis.logger.LogAgent("", "disease_analysis", "analyze", time.Since(startTime), map[string]interface{}{
		"diseases":    diseases,
		"plan_length": len(plan),
	}, nil)

	return &models.AgentResponse{
		Type:    models.ResponseTypeDiseaseAnalysis,
		Message: plan,
	}, nil
}
