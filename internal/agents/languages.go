package agents

import (
	"strings"

	"kisan-ai-pipeline/internal/models"
)

// supportedLanguages maps both full names and short codes to a canonical
// display name. This table is closed: anything outside it is a hard
// validation error before any model call.
var supportedLanguages = map[string]string{
	"english": "English", "en": "English",
	"hindi": "Hindi", "hi": "Hindi",
	"bengali": "Bengali", "bn": "Bengali",
	"tamil": "Tamil", "ta": "Tamil",
	"telugu": "Telugu", "te": "Telugu",
	"marathi": "Marathi", "mr": "Marathi",
	"gujarati": "Gujarati", "gu": "Gujarati",
	"kannada": "Kannada", "kn": "Kannada",
	"punjabi": "Punjabi", "pa": "Punjabi",
	"malayalam": "Malayalam", "ml": "Malayalam",
	"odia": "Odia", "or": "Odia",
	"assamese": "Assamese", "as": "Assamese",
	"urdu": "Urdu", "ur": "Urdu",
	"sanskrit": "Sanskrit", "sa": "Sanskrit",
	"nepali": "Nepali", "ne": "Nepali",
	"spanish": "Spanish", "es": "Spanish",
	"french": "French", "fr": "French",
	"german": "German", "de": "German",
	"chinese": "Chinese", "zh": "Chinese",
	"japanese": "Japanese", "ja": "Japanese",
	"arabic": "Arabic", "ar": "Arabic",
	"russian": "Russian", "ru": "Russian",
	"portuguese": "Portuguese", "pt": "Portuguese",
	"italian": "Italian", "it": "Italian",
}

// nativeLanguageNames annotates transcription prompts with the script the
// farmer actually spoke in.
var nativeLanguageNames = map[string]string{
	"Hindi":     "Hindi (हिन्दी)",
	"Bengali":   "Bengali (বাংলা)",
	"Tamil":     "Tamil (தமிழ்)",
	"Telugu":    "Telugu (తెలుగు)",
	"Marathi":   "Marathi (मराठी)",
	"Gujarati":  "Gujarati (ગુજરાતી)",
	"Kannada":   "Kannada (ಕನ್ನಡ)",
	"Punjabi":   "Punjabi (ਪੰਜਾਬੀ)",
	"Malayalam": "Malayalam (മലയാളം)",
	"Odia":      "Odia (ଓଡ଼ିଆ)",
	"Assamese":  "Assamese (অসমীয়া)",
	"Urdu":      "Urdu (اردو)",
	"Sanskrit":  "Sanskrit (संस्कृतम्)",
	"Nepali":    "Nepali (नेपाली)",
}

// NormalizeLanguage maps a language tag to its canonical display name.
// Unrecognized tags are a validation error naming the unsupported tag.
func NormalizeLanguage(tag string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(tag))
	if canonical, ok := supportedLanguages[key]; ok {
		return canonical, nil
	}
	return "", models.NewValidationError("UNSUPPORTED_LANGUAGE",
		"unsupported language: "+tag)
}

func nativeLanguageName(canonical string) string {
	if native, ok := nativeLanguageNames[canonical]; ok {
		return native
	}
	return canonical
}
