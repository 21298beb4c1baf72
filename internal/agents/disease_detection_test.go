package agents

import (
	"context"
	"strings"
	"testing"

	"kisan-ai-pipeline/internal/models"
)

func TestDetectRetriesTruncatedReply(t *testing.T) {
	replies := []string{
		`{"has_disease": true, "primary_di`, // truncated
		diagnosisJSON,
	}
	call := 0
	inference := &mockInference{
		imageFunc: func(prompt string, image []byte) (string, error) {
			reply := replies[call]
			call++
			return reply, nil
		},
	}
	detection := NewDiseaseDetection(inference, testLogger(t))

	response, err := detection.Detect(context.Background(), []byte{0xFF}, "", nil)
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	if inference.imageCalls != 2 {
		t.Errorf("vision calls = %d, want 2 (one retry)", inference.imageCalls)
	}
	if response.Diagnosis.Primary.Name != "Early Blight" {
		t.Errorf("primary = %q, want Early Blight from the retried reply", response.Diagnosis.Primary.Name)
	}
}

func TestDetectRetryIsBounded(t *testing.T) {
	inference := &mockInference{
		imageFunc: func(prompt string, image []byte) (string, error) {
			return "short", nil
		},
	}
	detection := NewDiseaseDetection(inference, testLogger(t))

	response, err := detection.Detect(context.Background(), []byte{0xFF}, "", nil)
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	if inference.imageCalls != visionMaxAttempts {
		t.Errorf("vision calls = %d, want bounded at %d", inference.imageCalls, visionMaxAttempts)
	}
	// Last reply still gets the fallback parse.
	if response.Diagnosis.Primary.Name != "Unknown condition" {
		t.Errorf("primary = %q, want safe default", response.Diagnosis.Primary.Name)
	}
	if response.Diagnosis.ImmediateAction == "" {
		t.Error("fallback diagnosis must fill every expected field")
	}
}

func TestDetectFallbackTruncatesRawAnalysis(t *testing.T) {
	long := strings.Repeat("prose about the plant ", 60)
	inference := &mockInference{
		imageFunc: func(prompt string, image []byte) (string, error) {
			return long, nil
		},
	}
	detection := NewDiseaseDetection(inference, testLogger(t))

	response, err := detection.Detect(context.Background(), []byte{0xFF}, "", nil)
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	if len(response.Diagnosis.RawAnalysis) > 500 {
		t.Errorf("raw analysis length = %d, want at most 500", len(response.Diagnosis.RawAnalysis))
	}
	if response.Note == "" {
		t.Error("fallback parse must be noted on the response")
	}
}

func TestDetectEmptyImage(t *testing.T) {
	detection := NewDiseaseDetection(&mockInference{}, testLogger(t))
	if _, err := detection.Detect(context.Background(), nil, "", nil); err == nil {
		t.Fatal("expected validation error for empty image")
	}
}

func TestPossibleDiseaseNames(t *testing.T) {
	if names := PossibleDiseaseNames(nil); names != nil {
		t.Errorf("nil diagnosis should yield nil, got %v", names)
	}

	fromPossible := PossibleDiseaseNames(&models.Diagnosis{
		Primary:  models.DiseaseCandidate{Name: "Early Blight"},
		Possible: []models.DiseaseCandidate{{Name: "Early Blight"}, {Name: "Septoria"}},
	})
	if len(fromPossible) != 2 {
		t.Errorf("names = %v, want both candidates", fromPossible)
	}

	fromPrimary := PossibleDiseaseNames(&models.Diagnosis{
		Primary: models.DiseaseCandidate{Name: "Early Blight"},
	})
	if len(fromPrimary) != 1 || fromPrimary[0] != "Early Blight" {
		t.Errorf("names = %v, want one-element list from primary", fromPrimary)
	}
}
