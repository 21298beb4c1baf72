package agents

import (
	"encoding/json"
	"strings"

	"kisan-ai-pipeline/internal/pkg/logger"
)

// ParseModelJSON recovers a structured record from a free-text model reply.
// It strips markdown fences, discards any preamble before the first opening
// brace, then attempts a strict parse. On failure the caller's fallback
// constructor builds a minimal valid record from the raw text; the second
// return value reports whether the structured path succeeded. This is the
// single shared extraction routine for every agent.
func ParseModelJSON[T any](log *logger.Logger, raw string, fallback func(raw string) T) (T, bool) {
	cleaned, truncated := cleanJSONBlock(raw)

	if truncated && log != nil {
		log.Warn("model reply does not end with a closing brace, attempting parse anyway",
			"reply_length", len(raw))
	}

	var record T
	if cleaned != "" {
		if err := json.Unmarshal([]byte(cleaned), &record); err == nil {
			return record, true
		} else if log != nil {
			log.WithError(err).Warn("model reply failed strict parse, using fallback",
				"reply_length", len(raw))
		}
	}

	return fallback(raw), false
}

// cleanJSONBlock strips a leading/trailing code fence if present, then scans
// forward to the first opening brace. The truncated flag marks replies that
// do not end with a closing brace.
func cleanJSONBlock(raw string) (cleaned string, truncated bool) {
	text := strings.TrimSpace(raw)

	if strings.HasPrefix(text, "```") {
		if idx := strings.Index(text, "\n"); idx >= 0 {
			text = text[idx+1:]
		} else {
			text = ""
		}
	}
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	text = strings.TrimSpace(text)

	if !strings.HasPrefix(text, "{") {
		if idx := strings.Index(text, "{"); idx >= 0 {
			text = text[idx:]
		} else {
			return "", true
		}
	}

	return text, !strings.HasSuffix(text, "}")
}

// looksComplete is the truncation heuristic for vision replies: long enough
// and ending with a closing brace. The two conditions are tuned to the
// upstream model's truncation behavior; do not generalize.
func looksComplete(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	return len(trimmed) > 100 && strings.HasSuffix(trimmed, "}")
}

func truncateText(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit]
}
