package agents

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"

	"kisan-ai-pipeline/internal/models"
	"kisan-ai-pipeline/internal/pkg/logger"
)

// Translator handles bidirectional text translation between supported
// languages. Stateless after construction, safe for concurrent use.
type Translator struct {
	inference Inference
	logger    *logger.Logger
}

func NewTranslator(inference Inference, log *logger.Logger) *Translator {
	return &Translator{
		inference: inference,
		logger:    log,
	}
}

const (
	// Confidence reported on the structured parse path when the model
	// omits its own score.
	translationDefaultConfidence = 0.9
	// Reduced confidence assigned to text recovered by the fallback
	// heuristics.
	translationRecoveredConfidence = 0.7
)

var translationPattern = regexp.MustCompile(`Translation:\s*"([^"]+)"`)
var quotedRunPattern = regexp.MustCompile(`"([^"]{10,})"`)

type translationReply struct {
	Translation string  `json:"translation"`
	Confidence  float64 `json:"confidence"`
}

// Translate converts text from sourceLang to targetLang. A non-English
// preferred language on the farm profile overrides the nominal target;
// identical source and target short-circuit without a model call.
func (translator *Translator) Translate(ctx context.Context, sourceLang, targetLang, text string, profile *models.FarmProfile) (*models.Translation, error) {
	if strings.TrimSpace(text) == "" {
		return nil, models.NewValidationError("EMPTY_TEXT", "no text to translate")
	}

	source, err := NormalizeLanguage(sourceLang)
	if err != nil {
		return nil, err
	}
	target, err := NormalizeLanguage(targetLang)
	if err != nil {
		return nil, err
	}

	// Farmer-stated preference outranks the caller's guess.
	if preferred := profile.FirstPreferredLanguage(); preferred != "" {
		if canonical, prefErr := NormalizeLanguage(preferred); prefErr == nil {
			if canonical != "English" {
				target = canonical
			}
		} else {
			translator.logger.Warn("ignoring unsupported preferred language",
				"preferred", preferred)
		}
	}

	if source == target {
		return &models.Translation{
			Text:           text,
			SourceLanguage: source,
			TargetLanguage: target,
			Confidence:     1.0,
			Note:           "no translation needed",
		}, nil
	}

	startTime := time.Now()

	prompt := PromptSpec{
		Role: "You are an expert translator for Indian farmers. You translate between " +
			source + " and " + target + " while keeping agricultural vocabulary accurate, " +
			"not loosely transliterated.",
		Task: fmt.Sprintf("Translate the following text from %s to %s.\n\nTEXT:\n%s",
			source, target, text),
		Schema: `{"translation": "the translated text", "confidence": 0.95}`,
	}.Build()

	raw, err := translator.inference.GenerateText(ctx, models.TierFlash, prompt)
	if err != nil {
		translator.logger.LogAgent("", "translator", "translate", time.Since(startTime), map[string]interface{}{
			"source": source,
			"target": target,
		}, err)
		return nil, models.WrapExternalError("TRANSLATOR", err)
	}

	reply, structured := ParseModelJSON(translator.logger, raw, func(raw string) translationReply {
		return translationReply{
			Translation: extractFallbackTranslation(raw),
			Confidence:  translationRecoveredConfidence,
		}
	})

	if strings.TrimSpace(reply.Translation) == "" {
		return nil, models.NewExternalError("TRANSLATION_UNRECOVERABLE",
			"model reply contained no recoverable translation")
	}

	confidence := reply.Confidence
	if structured && confidence <= 0 {
		confidence = translationDefaultConfidence
	}

	translator.logger.LogAgent("", "translator", "translate", time.Since(startTime), map[string]interface{}{
		"source":     source,
		"target":     target,
		"structured": structured,
		"confidence": confidence,
	}, nil)

	return &models.Translation{
		Text:           strings.TrimSpace(reply.Translation),
		SourceLanguage: source,
		TargetLanguage: target,
		Confidence:     confidence,
	}, nil
}

// extractFallbackTranslation applies three recovery heuristics in order:
// an explicit Translation: "..." pattern, any quoted run of at least 10
// characters, then the first non-brace non-fence line longer than 10
// characters.
func extractFallbackTranslation(raw string) string {
	if match := translationPattern.FindStringSubmatch(raw); len(match) > 1 {
		return match[1]
	}

	if match := quotedRunPattern.FindStringSubmatch(raw); len(match) > 1 {
		return match[1]
	}

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "{") || strings.HasPrefix(line, "}") ||
			strings.HasPrefix(line, "```") {
			continue
		}
		if len(line) > 10 {
			return line
		}
	}

	return ""
}

// DetectLanguage names the language of text using the model, falling back
// to local script detection when the model is unavailable.
func (translator *Translator) DetectLanguage(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", models.NewValidationError("EMPTY_TEXT", "no text to detect")
	}

	prompt := fmt.Sprintf(
		"Identify the language of the following text. Reply with just the language name in English, one word.\n\nTEXT:\n%s",
		truncateText(text, 500))

	raw, err := translator.inference.GenerateText(ctx, models.TierFlash, prompt)
	if err == nil {
		candidate := strings.ToLower(strings.TrimSpace(strings.Split(strings.TrimSpace(raw), "\n")[0]))
		candidate = strings.Trim(candidate, `."'`)
		if canonical, normErr := NormalizeLanguage(candidate); normErr == nil {
			return canonical, nil
		}
	}

	info := whatlanggo.Detect(text)
	if canonical, normErr := NormalizeLanguage(info.Lang.Iso6391()); normErr == nil {
		translator.logger.Info("language detected locally",
			"language", canonical,
			"reliable", info.IsReliable())
		return canonical, nil
	}

	return "English", nil
}
