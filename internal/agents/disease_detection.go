package agents

import (
	"context"
	"strings"
	"time"

	"kisan-ai-pipeline/internal/models"
	"kisan-ai-pipeline/internal/pkg/logger"
)

// DiseaseDetection turns a plant image into a structured diagnosis.
type DiseaseDetection struct {
	inference Inference
	logger    *logger.Logger
}

func NewDiseaseDetection(inference Inference, log *logger.Logger) *DiseaseDetection {
	return &DiseaseDetection{
		inference: inference,
		logger:    log,
	}
}

// Bounded retry to smooth over truncated vision replies; not a resilience
// mechanism against outages.
const visionMaxAttempts = 2

const diagnosisSchema = `{
  "has_disease": true,
  "primary_disease": {"name": "...", "scientific_name": "...", "confidence": 0.9, "severity": "low|medium|high"},
  "possible_diseases": [{"name": "...", "scientific_name": "...", "confidence": 0.5, "severity": "..."}],
  "symptoms_observed": ["..."],
  "immediate_action": "...",
  "treatment": "..."
}`

// Detect issues one vision call (retrying once if the reply looks
// truncated) and parses the reply into a Diagnosis, falling back to a
// safe-default record built from the raw text.
func (detection *DiseaseDetection) Detect(ctx context.Context, image []byte, description string, profile *models.FarmProfile) (*models.AgentResponse, error) {
	if len(image) == 0 {
		return nil, models.NewValidationError("EMPTY_IMAGE", "no image payload to analyze")
	}

	startTime := time.Now()

	task := "Analyze this plant image and identify any disease, pest damage or nutrient deficiency."
	if strings.TrimSpace(description) != "" {
		task += "\n\nThe farmer adds: " + description
	}

	prompt := PromptSpec{
		Role: "You are an expert plant pathologist advising Indian farmers. " +
			"Be specific about the disease and practical about what to do next.",
		Context: profileContextLines(profile),
		Task:    task,
		Schema:  diagnosisSchema,
	}.Build()

	var raw string
	var err error
	for attempt := 1; attempt <= visionMaxAttempts; attempt++ {
		raw, err = detection.inference.AnalyzeImage(ctx, prompt, image, "image/jpeg")
		if err != nil {
			break
		}
		if looksComplete(raw) {
			break
		}
		detection.logger.Warn("vision reply looks truncated, retrying",
			"attempt", attempt,
			"reply_length", len(raw))
	}
	if err != nil {
		detection.logger.LogAgent("", "disease_detection", "detect", time.Since(startTime), map[string]interface{}{
			"image_bytes": len(image),
		}, err)
		return nil, models.WrapExternalError("DISEASE_DETECTION", err)
	}

	diagnosis, structured := ParseModelJSON(detection.logger, raw, fallbackDiagnosis)

	response := &models.AgentResponse{
		Type:       models.ResponseTypeDiseaseDetection,
		Message:    diagnosisMessage(&diagnosis),
		Confidence: diagnosis.Primary.Confidence,
		Diagnosis:  &diagnosis,
	}
	if !structured {
		response.Note = "recovered from unstructured model reply"
	}

	detection.logger.LogAgent("", "disease_detection", "detect", time.Since(startTime), map[string]interface{}{
		"has_disease": diagnosis.HasDisease,
		"primary":     diagnosis.Primary.Name,
		"structured":  structured,
	}, nil)

	return response, nil
}

// fallbackDiagnosis fills every expected field with a safe default so
// downstream synthesis never needs null checks.
func fallbackDiagnosis(raw string) models.Diagnosis {
	return models.Diagnosis{
		HasDisease: true,
		Primary: models.DiseaseCandidate{
			Name:     "Unknown condition",
			Severity: "unknown",
		},
		ImmediateAction: "Monitor the plant closely and consult a local agriculture expert",
		RawAnalysis:     truncateText(strings.TrimSpace(raw), 500),
	}
}

func diagnosisMessage(diagnosis *models.Diagnosis) string {
	if !diagnosis.HasDisease {
		return "The plant looks healthy. No disease signs were found in the image."
	}
	if diagnosis.Primary.Name != "" && diagnosis.Primary.Name != "Unknown condition" {
		return "Detected " + diagnosis.Primary.Name + " from the image."
	}
	if diagnosis.RawAnalysis != "" {
		return diagnosis.RawAnalysis
	}
	return "The image was analyzed but the condition could not be identified with certainty."
}

// PossibleDiseaseNames returns the candidate list for disease analysis,
// synthesizing a one-element list from the primary diagnosis when the model
// gave no alternatives.
func PossibleDiseaseNames(diagnosis *models.Diagnosis) []string {
	if diagnosis == nil {
		return nil
	}
	var names []string
	for _, candidate := range diagnosis.Possible {
		if strings.TrimSpace(candidate.Name) != "" {
			names = append(names, candidate.Name)
		}
	}
	if len(names) == 0 && strings.TrimSpace(diagnosis.Primary.Name) != "" {
		names = append(names, diagnosis.Primary.Name)
	}
	return names
}
