package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Intent labels form a closed set; classification never produces anything
// outside it.
const (
	IntentDiseaseDetection  = "disease_detection"
	IntentDiseaseAnalysis   = "disease_analysis"
	IntentGovernmentSchemes = "government_schemes"
	IntentSpeechToText      = "speech_to_text"
	IntentGeneralFarming    = "general_farming"
	IntentMarketPrices      = "market_prices"
)

type ResponseType string

const (
	ResponseTypeDiseaseDetection ResponseType = "disease_detection"
	ResponseTypeDiseaseAnalysis  ResponseType = "disease_analysis"
	ResponseTypeSchemes          ResponseType = "government_schemes"
	ResponseTypeTranscription    ResponseType = "speech_to_text"
	ResponseTypeTranslation      ResponseType = "translation"
	ResponseTypeGeneral          ResponseType = "general_farming"
	ResponseTypePrices           ResponseType = "market_prices"
	ResponseTypeError            ResponseType = "error"
)

type SessionStatus string

const (
	SessionStatusProcessing SessionStatus = "processing"
	SessionStatusCompleted  SessionStatus = "completed"
	SessionStatusError      SessionStatus = "error"
)

type Modality string

const (
	ModalityImage Modality = "image"
	ModalityAudio Modality = "audio"
	ModalityText  Modality = "text"
)

type ModelTier string

const (
	// TierFlash is the fast/cheap tier used for classification and
	// short-form generation.
	TierFlash ModelTier = "flash"
	// TierPro is the higher-quality tier used for synthesis and vision.
	TierPro ModelTier = "pro"
)

// Request is the unit of work submitted to the manager. Image, audio and
// text payloads are all optional and combinable; immutable once built.
type Request struct {
	Modality    Modality     `json:"modality"`
	Image       []byte       `json:"-"`
	Audio       []byte       `json:"-"`
	Text        string       `json:"text,omitempty"`
	Language    string       `json:"language,omitempty"`
	QueryType   string       `json:"query_type,omitempty"`
	Description string       `json:"description,omitempty"`
	UserID      string       `json:"user_id,omitempty"`
	Profile     *FarmProfile `json:"farm_profile,omitempty"`
}

// FarmProfile is the farmer's declared context. Every field defaults to an
// unknown sentinel; the first preferred language is authoritative for both
// input assumption and output localization.
type FarmProfile struct {
	FarmerName         string   `json:"farmerName,omitempty"`
	CropType           string   `json:"cropType,omitempty"`
	Acreage            string   `json:"acreage,omitempty"`
	SoilType           string   `json:"soilType,omitempty"`
	GrowthStage        string   `json:"growthStage,omitempty"`
	SowingDate         string   `json:"sowingDate,omitempty"`
	CurrentChallenges  string   `json:"currentChallenges,omitempty"`
	PreferredLanguages []string `json:"preferredLanguages,omitempty"`
}

const UnknownField = "unknown"

func OrUnknown(value string) string {
	if strings.TrimSpace(value) == "" {
		return UnknownField
	}
	return value
}

// FirstPreferredLanguage returns the authoritative language preference, or
// "" when the profile carries none.
func (profile *FarmProfile) FirstPreferredLanguage() string {
	if profile == nil || len(profile.PreferredLanguages) == 0 {
		return ""
	}
	return strings.TrimSpace(profile.PreferredLanguages[0])
}

// PrefersEnglish reports whether english appears anywhere in the preferred
// list; its presence suppresses output translation entirely.
func (profile *FarmProfile) PrefersEnglish() bool {
	if profile == nil {
		return false
	}
	for _, lang := range profile.PreferredLanguages {
		normalized := strings.ToLower(strings.TrimSpace(lang))
		if normalized == "english" || normalized == "en" {
			return true
		}
	}
	return false
}

// Classification is the routing decision for one request. Fallback marks
// rule-based reconstructions whose Confidence is a sentinel (0.5 parse
// failure, 0.1 hard error), not a measured probability.
type Classification struct {
	Intent     string            `json:"intent"`
	Confidence float64           `json:"confidence"`
	Reasoning  string            `json:"reasoning,omitempty"`
	Entities   map[string]string `json:"entities,omitempty"`
	Fallback   bool              `json:"fallback,omitempty"`
}

type DiseaseCandidate struct {
	Name           string  `json:"name"`
	ScientificName string  `json:"scientific_name,omitempty"`
	Confidence     float64 `json:"confidence,omitempty"`
	Severity       string  `json:"severity,omitempty"`
}

type Diagnosis struct {
	HasDisease       bool               `json:"has_disease"`
	Primary          DiseaseCandidate   `json:"primary_disease"`
	Possible         []DiseaseCandidate `json:"possible_diseases,omitempty"`
	SymptomsObserved []string           `json:"symptoms_observed,omitempty"`
	ImmediateAction  string             `json:"immediate_action,omitempty"`
	Treatment        string             `json:"treatment,omitempty"`
	RawAnalysis      string             `json:"raw_analysis,omitempty"`
}

type SchemeMatch struct {
	Name        string `json:"name"`
	Benefit     string `json:"benefit,omitempty"`
	Eligibility string `json:"eligibility,omitempty"`
}

type SchemeAnswer struct {
	Answer          string        `json:"answer"`
	Schemes         []SchemeMatch `json:"schemes,omitempty"`
	KeyPoints       []string      `json:"key_points,omitempty"`
	Sources         []string      `json:"sources,omitempty"`
	Matches         int           `json:"matches"`
	ConfidenceLabel string        `json:"confidence_label,omitempty"`
}

type Transcript struct {
	Text       string  `json:"text"`
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
}

type Translation struct {
	Text           string  `json:"text"`
	SourceLanguage string  `json:"source_language"`
	TargetLanguage string  `json:"target_language"`
	Confidence     float64 `json:"confidence"`
	Note           string  `json:"note,omitempty"`
}

type Advice struct {
	Answer           string   `json:"answer"`
	Advice           string   `json:"advice,omitempty"`
	Recommendations  []string `json:"recommendations,omitempty"`
	NextSteps        []string `json:"next_steps,omitempty"`
	SeasonalGuidance string   `json:"seasonal_guidance,omitempty"`
	CostEstimate     string   `json:"cost_estimate,omitempty"`
}

type PriceEntry struct {
	Market     string `json:"market"`
	MinPrice   int    `json:"min_price"`
	MaxPrice   int    `json:"max_price"`
	ModalPrice int    `json:"modal_price"`
	Unit       string `json:"unit"`
}

type PriceReport struct {
	Crop    string       `json:"crop"`
	Entries []PriceEntry `json:"entries,omitempty"`
	Summary string       `json:"summary,omitempty"`
}

// AgentResponse is the structured result of one specialist. Type==error
// implies no payload field is trustworthy; every other type guarantees a
// non-empty Message.
type AgentResponse struct {
	Type       ResponseType  `json:"type"`
	Message    string        `json:"message"`
	Confidence float64       `json:"confidence,omitempty"`
	Note       string        `json:"note,omitempty"`
	Diagnosis  *Diagnosis    `json:"diagnosis,omitempty"`
	Schemes    *SchemeAnswer `json:"schemes,omitempty"`
	Transcript *Transcript   `json:"transcript,omitempty"`
	Advice     *Advice       `json:"advice,omitempty"`
	Prices     *PriceReport  `json:"prices,omitempty"`
}

func NewErrorResponse(message string) *AgentResponse {
	return &AgentResponse{Type: ResponseTypeError, Message: message}
}

// RetrievedChunk is one similarity-search hit from the retrieval backend.
type RetrievedChunk struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Score    float64           `json:"score"`
}

// SchemeDocument is the ingest-side document shape for the vector store.
type SchemeDocument struct {
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Embedding []float32         `json:"embedding,omitempty"`
	CreatedAt time.Time         `json:"created_at,omitempty"`
}

type FinalResponse struct {
	Message          string       `json:"message"`
	Type             ResponseType `json:"type"`
	Language         string       `json:"language"`
	OriginalEnglish  string       `json:"original_english,omitempty"`
	ImmediateActions []string     `json:"immediate_actions,omitempty"`
	TranslationNote  string       `json:"translation_note,omitempty"`
}

// AssistResult is the envelope returned to the HTTP boundary.
type AssistResult struct {
	SessionID        string                 `json:"session_id"`
	OriginalLanguage string                 `json:"original_language"`
	FinalResponse    *FinalResponse         `json:"final_response"`
	Status           string                 `json:"status"`
	DebugInfo        map[string]interface{} `json:"debug_info,omitempty"`
}

// SessionThought is one ordered progress event in the observability sink.
type SessionThought struct {
	Thought   string    `json:"thought"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionRecord is the sink's view of one session, read back only for
// debugging via the sessions endpoint.
type SessionRecord struct {
	ID             string                    `json:"id"`
	UserID         string                    `json:"user_id"`
	Status         SessionStatus             `json:"status"`
	InputData      map[string]interface{}    `json:"input_data,omitempty"`
	Thoughts       []SessionThought          `json:"manager_thoughts,omitempty"`
	AgentResponses map[string]*AgentResponse `json:"agent_responses,omitempty"`
	FinalMessage   string                    `json:"final_response,omitempty"`
	CreatedAt      time.Time                 `json:"created_at"`
	UpdatedAt      time.Time                 `json:"updated_at"`
}

func GenerateSessionID() string {
	return uuid.New().String()
}
