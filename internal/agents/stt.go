package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kisan-ai-pipeline/internal/models"
	"kisan-ai-pipeline/internal/pkg/logger"
)

// SpeechToText converts encoded audio plus a language hint into text with a
// heuristic confidence score.
type SpeechToText struct {
	inference Inference
	logger    *logger.Logger
}

func NewSpeechToText(inference Inference, log *logger.Logger) *SpeechToText {
	return &SpeechToText{
		inference: inference,
		logger:    log,
	}
}

// Transcribe runs one audio inference call. The farm profile's first
// preferred language, if present, supersedes the passed-in hint.
func (stt *SpeechToText) Transcribe(ctx context.Context, audio []byte, languageHint string, profile *models.FarmProfile) (*models.Transcript, error) {
	if len(audio) == 0 {
		return nil, models.NewValidationError("EMPTY_AUDIO", "no audio payload to transcribe")
	}

	hint := languageHint
	if preferred := profile.FirstPreferredLanguage(); preferred != "" {
		hint = preferred
	}
	language, err := NormalizeLanguage(hint)
	if err != nil {
		return nil, err
	}

	startTime := time.Now()

	prompt := fmt.Sprintf(
		"Transcribe this audio recording of an Indian farmer speaking in %s.\n"+
			"Write the transcript verbatim with punctuation, in the original language and script.\n"+
			"Keep agricultural vocabulary (crop names, fertilizers, pesticides, schemes) exactly as spoken.\n"+
			"Mark any word you cannot make out as [unclear].\n"+
			"Reply with the transcript only, no commentary.",
		nativeLanguageName(language))

	raw, err := stt.inference.TranscribeAudio(ctx, prompt, audio, "audio/mpeg")
	if err != nil {
		stt.logger.LogAgent("", "speech_to_text", "transcribe", time.Since(startTime), map[string]interface{}{
			"language":    language,
			"audio_bytes": len(audio),
		}, err)
		return nil, models.WrapExternalError("SPEECH_TO_TEXT", err)
	}

	transcript := strings.TrimSpace(raw)
	if transcript == "" {
		return nil, models.NewExternalError("EMPTY_TRANSCRIPT", "model returned an empty transcript")
	}

	confidence := estimateConfidence(transcript)

	stt.logger.LogAgent("", "speech_to_text", "transcribe", time.Since(startTime), map[string]interface{}{
		"language":          language,
		"transcript_length": len(transcript),
		"confidence":        confidence,
	}, nil)

	return &models.Transcript{
		Text:       transcript,
		Language:   language,
		Confidence: confidence,
	}, nil
}

// estimateConfidence derives a confidence post hoc; no acoustic confidence
// is available from the model. Starts at 0.8, deducts 0.1 per [unclear]
// marker, 0.2 for transcripts under three words and 0.3 when apology
// vocabulary suggests the model declined to transcribe, clamped to
// [0.1, 1.0]. The exact thresholds are load-bearing for consistent UX.
func estimateConfidence(transcript string) float64 {
	confidence := 0.8

	confidence -= 0.1 * float64(strings.Count(transcript, "[unclear]"))

	if len(strings.Fields(transcript)) < 3 {
		confidence -= 0.2
	}

	lowered := strings.ToLower(transcript)
	for _, marker := range []string{"sorry", "cannot", "unable", "error", "failed"} {
		if strings.Contains(lowered, marker) {
			confidence -= 0.3
			break
		}
	}

	if confidence < 0.1 {
		confidence = 0.1
	}
	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}
