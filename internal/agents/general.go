package agents

import (
	"context"
	"strings"
	"time"

	"kisan-ai-pipeline/internal/models"
	"kisan-ai-pipeline/internal/pkg/logger"
)

// GeneralAdvice answers everything the specialists do not claim,
// personalized with whatever farm context is available.
type GeneralAdvice struct {
	inference Inference
	logger    *logger.Logger
}

func NewGeneralAdvice(inference Inference, log *logger.Logger) *GeneralAdvice {
	return &GeneralAdvice{
		inference: inference,
		logger:    log,
	}
}

type adviceReply struct {
	Answer           string   `json:"answer"`
	Advice           string   `json:"advice"`
	Recommendations  []string `json:"recommendations"`
	NextSteps        []string `json:"next_steps"`
	SeasonalGuidance string   `json:"seasonal_guidance"`
	CostEstimate     string   `json:"cost_estimate"`
	Confidence       float64  `json:"confidence"`
}

func (general *GeneralAdvice) Process(ctx context.Context, query string, profile *models.FarmProfile) (*models.AgentResponse, error) {
	if strings.TrimSpace(query) == "" {
		return nil, models.NewValidationError("EMPTY_QUERY", "no query text for general advice")
	}

	startTime := time.Now()

	prompt := PromptSpec{
		Role: "You are a trusted farming advisor for Indian farmers. Give practical, " +
			"season-aware advice in simple language.",
		Context: profileContextLines(profile),
		Task:    "FARMER'S QUESTION: " + query,
		Schema: `{"answer": "direct answer", "advice": "practical advice", "recommendations": ["..."], ` +
			`"next_steps": ["..."], "seasonal_guidance": "...", "cost_estimate": "...", "confidence": 0.9}`,
	}.Build()

	raw, err := general.inference.GenerateText(ctx, models.TierFlash, prompt)
	if err != nil {
		general.logger.LogAgent("", "general_advice", "process", time.Since(startTime), map[string]interface{}{
			"query_length": len(query),
		}, err)
		return nil, models.WrapExternalError("GENERAL_ADVICE", err)
	}

	reply, structured := ParseModelJSON(general.logger, raw, func(raw string) adviceReply {
		return adviceReply{
			Answer:     truncateText(strings.TrimSpace(raw), 500),
			Confidence: 0.5,
		}
	})
	if strings.TrimSpace(reply.Answer) == "" {
		reply.Answer = "I could not work out a good answer. Please rephrase your question or contact your local Krishi Vigyan Kendra."
	}

	general.logger.LogAgent("", "general_advice", "process", time.Since(startTime), map[string]interface{}{
		"structured": structured,
	}, nil)

	response := &models.AgentResponse{
		Type:       models.ResponseTypeGeneral,
		Message:    reply.Answer,
		Confidence: reply.Confidence,
		Advice: &models.Advice{
			Answer:           reply.Answer,
			Advice:           reply.Advice,
			Recommendations:  reply.Recommendations,
			NextSteps:        reply.NextSteps,
			SeasonalGuidance: reply.SeasonalGuidance,
			CostEstimate:     reply.CostEstimate,
		},
	}
	if !structured {
		response.Note = "recovered from unstructured model reply"
	}
	return response, nil
}
