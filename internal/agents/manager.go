package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kisan-ai-pipeline/internal/models"
	"kisan-ai-pipeline/internal/pkg/logger"
)

// Manager owns the three-stage pipeline: input normalization, logic
// dispatch and output formation. All collaborators are injected at
// construction; a nil scheme agent means the retrieval backend never came
// up. Stateless across requests, safe for concurrent use.
type Manager struct {
	inference  Inference
	translator *Translator
	stt        *SpeechToText
	detection  *DiseaseDetection
	analysis   *DiseaseAnalysis
	schemes    *SchemeRetrieval
	general    *GeneralAdvice
	prices     *PriceLookup
	sink       SessionSink
	sessions   HealthChecker
	retrieval  HealthChecker

	defaultLanguage string
	logger          *logger.Logger
}

// HealthChecker is the probe shape shared by the redis-backed services.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type ManagerDeps struct {
	Inference  Inference
	Translator *Translator
	STT        *SpeechToText
	Detection  *DiseaseDetection
	Analysis   *DiseaseAnalysis
	Schemes    *SchemeRetrieval
	General    *GeneralAdvice
	Prices     *PriceLookup
	Sink       SessionSink

	// Optional health probes surfaced by the health endpoint.
	Sessions  HealthChecker
	Retrieval HealthChecker

	DefaultLanguage string
	Logger          *logger.Logger
}

func NewManager(deps ManagerDeps) *Manager {
	defaultLanguage := deps.DefaultLanguage
	if defaultLanguage == "" {
		defaultLanguage = "english"
	}
	return &Manager{
		inference:       deps.Inference,
		translator:      deps.Translator,
		stt:             deps.STT,
		detection:       deps.Detection,
		analysis:        deps.Analysis,
		schemes:         deps.Schemes,
		general:         deps.General,
		prices:          deps.Prices,
		sink:            deps.Sink,
		sessions:        deps.Sessions,
		retrieval:       deps.Retrieval,
		defaultLanguage: defaultLanguage,
		logger:          deps.Logger,
	}
}

// Sentinel confidences marking rule-based classification reconstructions.
// Not measured probabilities; never compare them with real scores.
const (
	classificationParseFallbackConfidence = 0.5
	classificationErrorFallbackConfidence = 0.1
)

// normalizedInput is the product of stage one.
type normalizedInput struct {
	imageContext string
	transcript   string
	literalText  string

	// combined is imageContext + transcript + literalText in that fixed
	// order; absent fragments contribute the empty string.
	combined string
	// userText is the farmer-authored portion (transcript + literal
	// text); image-only requests leave it empty.
	userText string

	originalLanguage string
	detection        *models.AgentResponse
	transcriptRecord *models.Transcript
}

// ProcessRequest runs the pipeline end to end. It always returns an
// envelope; the error is non-nil only for validation failures and fatal
// pipeline errors, in which case the envelope carries the error shape.
func (m *Manager) ProcessRequest(ctx context.Context, req *models.Request) (*models.AssistResult, error) {
	startTime := time.Now()

	sessionID, err := m.sink.CreateSession(ctx, req.UserID, sessionInput(req))
	if err != nil {
		// The sink is observability only; keep going with a local id.
		m.logger.WithError(err).Warn("failed to create session in sink")
		sessionID = models.GenerateSessionID()
	}

	m.thought(ctx, sessionID, "🤔 Analyzing your request...")

	norm, err := m.normalizeInput(ctx, sessionID, req)
	if err != nil {
		return m.failRequest(ctx, sessionID, norm, req, err), err
	}

	classification, response, err := m.dispatch(ctx, sessionID, norm, req)
	if err != nil {
		return m.failRequest(ctx, sessionID, norm, req, err), err
	}

	final := m.formOutput(ctx, sessionID, response, norm, req.Profile)

	m.thought(ctx, sessionID, "✅ Analysis complete! Preparing your response...")
	m.status(ctx, sessionID, models.SessionStatusCompleted, final.Message)

	m.logger.LogSession(sessionID, req.UserID, "request_completed", time.Since(startTime), nil)

	return &models.AssistResult{
		SessionID:        sessionID,
		OriginalLanguage: strings.ToLower(norm.originalLanguage),
		FinalResponse:    final,
		Status:           "success",
		DebugInfo:        debugInfo(classification, norm),
	}, nil
}

// Stage 1: dispatch on present payload fields, normalize everything to one
// combined English query and settle the original response language.
func (m *Manager) normalizeInput(ctx context.Context, sessionID string, req *models.Request) (*normalizedInput, error) {
	norm := &normalizedInput{
		originalLanguage: m.resolveLanguage(ctx, req),
	}

	if len(req.Image) > 0 {
		detection, err := m.detection.Detect(ctx, req.Image, req.Description, req.Profile)
		if err != nil {
			m.logger.WithError(err).Warn("disease detection failed during normalization")
			m.thought(ctx, sessionID, "⚠️ I couldn't analyze the image properly.")
		} else {
			norm.detection = detection
			m.record(ctx, sessionID, "disease_detection", detection)
			if detection.Diagnosis != nil && detection.Diagnosis.HasDisease &&
				detection.Diagnosis.Primary.Name != "" {
				norm.imageContext = fmt.Sprintf("Plant disease detected from image: %s. ",
					detection.Diagnosis.Primary.Name)
			}
			m.thought(ctx, sessionID, "🔍 Image analyzed.")
		}
	}

	if len(req.Audio) > 0 {
		transcript, err := m.stt.Transcribe(ctx, req.Audio, norm.originalLanguage, req.Profile)
		if err != nil {
			m.logger.WithError(err).Warn("transcription failed during normalization")
			m.thought(ctx, sessionID, "⚠️ I couldn't understand the audio.")
		} else {
			norm.transcriptRecord = transcript
			m.record(ctx, sessionID, "speech_to_text", &models.AgentResponse{
				Type:       models.ResponseTypeTranscription,
				Message:    transcript.Text,
				Confidence: transcript.Confidence,
				Transcript: transcript,
			})
			norm.transcript = m.toEnglish(ctx, transcript.Language, transcript.Text)
		}
	}

	if strings.TrimSpace(req.Text) != "" {
		norm.literalText = m.toEnglish(ctx, norm.originalLanguage, req.Text)
	}

	norm.userText = norm.transcript + norm.literalText
	norm.combined = norm.imageContext + norm.transcript + norm.literalText

	if norm.combined == "" && norm.detection == nil && len(req.Image) == 0 {
		return norm, models.NewValidationError("NOTHING_ACTIONABLE",
			"request carried no usable text, audio or image")
	}

	return norm, nil
}

// toEnglish translates a fragment into English for the combined query. On
// any failure the original text is kept; the farmer's words beat a missing
// translation. Deliberately passes no profile so the preferred-language
// override cannot redirect the English target.
func (m *Manager) toEnglish(ctx context.Context, language, text string) string {
	canonical, err := NormalizeLanguage(language)
	if err != nil || canonical == "English" {
		return text
	}
	translation, err := m.translator.Translate(ctx, canonical, "english", text, nil)
	if err != nil {
		m.logger.WithError(err).Warn("input translation to English failed, keeping original text",
			"language", canonical)
		return text
	}
	return translation.Text
}

// resolveLanguage applies the precedence: first preferred language from the
// farm profile, then the request's declared language, then detection on the
// request text, then the default.
func (m *Manager) resolveLanguage(ctx context.Context, req *models.Request) string {
	if preferred := req.Profile.FirstPreferredLanguage(); preferred != "" {
		if canonical, err := NormalizeLanguage(preferred); err == nil {
			return canonical
		}
		m.logger.Warn("ignoring unsupported preferred language", "preferred", preferred)
	}
	if req.Language != "" {
		if canonical, err := NormalizeLanguage(req.Language); err == nil {
			return canonical
		}
		m.logger.Warn("ignoring unsupported declared language", "language", req.Language)
	}
	if strings.TrimSpace(req.Text) != "" {
		if detected, err := m.translator.DetectLanguage(ctx, req.Text); err == nil {
			m.logger.Info("resolved request language by detection", "language", detected)
			return detected
		}
	}
	canonical, err := NormalizeLanguage(m.defaultLanguage)
	if err != nil {
		return "English"
	}
	return canonical
}

// Stage 2: route the combined query to a specialist.
func (m *Manager) dispatch(ctx context.Context, sessionID string, norm *normalizedInput, req *models.Request) (*models.Classification, *models.AgentResponse, error) {
	// Image-only request: the detection result is the answer.
	if norm.detection != nil && norm.userText == "" {
		classification := &models.Classification{
			Intent:     models.IntentDiseaseDetection,
			Confidence: norm.detection.Confidence,
			Reasoning:  "image-only request answered by disease detection",
		}
		return classification, norm.detection, nil
	}

	if norm.combined == "" {
		return nil, models.NewErrorResponse(
			"I was unable to process your request. Please send a photo, a voice note or a question."), nil
	}

	classification := m.classify(ctx, sessionID, norm, req)
	m.thought(ctx, sessionID, "🎯 Identified intent: "+classification.Intent)

	var response *models.AgentResponse
	var err error

	switch classification.Intent {
	case models.IntentDiseaseAnalysis:
		response, err = m.dispatchDiseaseAnalysis(ctx, norm, req)
	case models.IntentGovernmentSchemes:
		if m.schemes == nil {
			response = models.NewErrorResponse(
				"Government scheme information is currently not available. Please try again later.")
		} else {
			response, err = m.schemes.Process(ctx, norm.combined, req.Profile)
		}
	case models.IntentMarketPrices:
		response, err = m.prices.Process(ctx, norm.combined, req.Profile)
	default:
		response, err = m.general.Process(ctx, norm.combined, req.Profile)
	}

	if err != nil {
		return classification, nil, err
	}

	m.record(ctx, sessionID, classification.Intent, response)
	return classification, response, nil
}

func (m *Manager) dispatchDiseaseAnalysis(ctx context.Context, norm *normalizedInput, req *models.Request) (*models.AgentResponse, error) {
	var diagnosis *models.Diagnosis
	if norm.detection != nil {
		diagnosis = norm.detection.Diagnosis
	}
	diseases := PossibleDiseaseNames(diagnosis)
	if len(diseases) == 0 {
		return &models.AgentResponse{
			Type: models.ResponseTypeDiseaseAnalysis,
			Message: "Please share a photo of the affected plant first so I can identify " +
				"the disease before suggesting treatment.",
			Note: "no prior disease detection result",
		}, nil
	}
	return m.analysis.Analyze(ctx, diseases, norm.userText, req.Profile)
}

type classificationReply struct {
	Intent     string            `json:"intent"`
	Confidence float64           `json:"confidence"`
	Reasoning  string            `json:"reasoning"`
	Entities   map[string]string `json:"entities"`
}

// classify issues one flash routing call, honoring an explicit query-type
// hint first. Any failure downgrades to the keyword fallback; classification
// never aborts a request.
func (m *Manager) classify(ctx context.Context, sessionID string, norm *normalizedInput, req *models.Request) *models.Classification {
	hint := strings.ToLower(strings.TrimSpace(req.QueryType))
	if hint == models.IntentGovernmentSchemes || hint == models.IntentMarketPrices {
		return &models.Classification{
			Intent:     hint,
			Confidence: 0.95,
			Reasoning:  "explicit query type",
		}
	}

	task := "FARMER'S QUERY: " + norm.combined + "\n\nPick the intent:\n" +
		"- disease_analysis: asking for treatment, medicine or cure"
	if norm.detection != nil {
		task += " (a plant disease was already detected from an image, so treatment questions belong here)"
	}
	task += "\n- government_schemes: asking about subsidies, loans, insurance or government programs\n" +
		"- general_farming: everything else"

	prompt := PromptSpec{
		Role: "You are a routing classifier for a farmer-assistance service.",
		Task: task,
		Schema: `{"intent": "disease_analysis|government_schemes|general_farming", ` +
			`"confidence": 0.9, "reasoning": "...", "entities": {"crop": "..."}}`,
	}.Build()

	raw, err := m.inference.GenerateText(ctx, models.TierFlash, prompt)
	if err != nil {
		m.logger.WithError(err).Warn("classification call failed, using keyword fallback")
		return m.keywordClassification(norm.combined, classificationErrorFallbackConfidence,
			"classification call failed")
	}

	reply, structured := ParseModelJSON(m.logger, raw, func(string) classificationReply {
		return classificationReply{}
	})
	if !structured || !isRoutableIntent(reply.Intent) {
		return m.keywordClassification(norm.combined, classificationParseFallbackConfidence,
			"classification reply was not parseable")
	}

	m.logger.LogAgent(sessionID, "classifier", "classify_intent", 0, map[string]interface{}{
		"intent":     reply.Intent,
		"confidence": reply.Confidence,
	}, nil)

	return &models.Classification{
		Intent:     reply.Intent,
		Confidence: reply.Confidence,
		Reasoning:  reply.Reasoning,
		Entities:   reply.Entities,
	}
}

func isRoutableIntent(intent string) bool {
	switch intent {
	case models.IntentDiseaseAnalysis, models.IntentGovernmentSchemes, models.IntentGeneralFarming:
		return true
	}
	return false
}

var treatmentKeywords = []string{
	"treatment", "treat", "cure", "medicine", "spray", "pesticide",
	"fungicide", "dawai", "ilaj", "remedy",
}

var schemeKeywords = []string{
	"scheme", "subsidy", "loan", "insurance", "government", "yojana",
	"pm-kisan", "kisan credit", "sarkari",
}

func (m *Manager) keywordClassification(query string, confidence float64, reasoning string) *models.Classification {
	lowered := strings.ToLower(query)
	intent := models.IntentGeneralFarming
	for _, keyword := range treatmentKeywords {
		if strings.Contains(lowered, keyword) {
			intent = models.IntentDiseaseAnalysis
			break
		}
	}
	if intent == models.IntentGeneralFarming {
		for _, keyword := range schemeKeywords {
			if strings.Contains(lowered, keyword) {
				intent = models.IntentGovernmentSchemes
				break
			}
		}
	}
	return &models.Classification{
		Intent:     intent,
		Confidence: confidence,
		Reasoning:  reasoning,
		Fallback:   true,
	}
}

// Stage 3: synthesize the English response and localize it.
func (m *Manager) formOutput(ctx context.Context, sessionID string, response *models.AgentResponse, norm *normalizedInput, profile *models.FarmProfile) *models.FinalResponse {
	english := Synthesize(response)

	responseType := models.ResponseTypeError
	if response != nil {
		responseType = response.Type
	}

	final := &models.FinalResponse{
		Message:  english,
		Type:     responseType,
		Language: "english",
	}

	if response != nil && response.Diagnosis != nil && response.Diagnosis.ImmediateAction != "" {
		final.ImmediateActions = []string{response.Diagnosis.ImmediateAction}
	}

	target := norm.originalLanguage
	// English anywhere in the preferred list wins over translation.
	if target == "English" || profile.PrefersEnglish() {
		return final
	}

	translation, err := m.translator.Translate(ctx, "english", target, english, profile)
	if err != nil {
		m.logger.WithError(err).Warn("output translation failed, returning English",
			"target", target)
		final.TranslationNote = "translation to " + target + " failed; showing English"
		return final
	}

	final.Message = translation.Text
	final.Language = strings.ToLower(target)
	final.OriginalEnglish = english

	// Structured sub-fields are localized best effort only.
	if len(final.ImmediateActions) > 0 {
		if actionTranslation, actionErr := m.translator.Translate(ctx, "english", target,
			final.ImmediateActions[0], profile); actionErr == nil {
			final.ImmediateActions[0] = actionTranslation.Text
		} else {
			m.logger.WithError(actionErr).Warn("immediate-action translation failed")
		}
	}

	m.thought(ctx, sessionID, "🌐 Translated the answer to "+target+".")
	return final
}

// Synthesize renders one specialist record into a user-facing English
// message. Total by construction: any record shape, including nil, yields a
// message.
func Synthesize(response *models.AgentResponse) string {
	if response == nil {
		return "I'm sorry, I could not process your request. Please try again."
	}

	switch {
	case response.Diagnosis != nil:
		var parts []string
		diagnosis := response.Diagnosis
		if diagnosis.Primary.Name != "" {
			parts = append(parts, "🔍 Detected Issue: "+diagnosis.Primary.Name)
		}
		if diagnosis.Primary.Severity != "" && diagnosis.Primary.Severity != "unknown" {
			parts = append(parts, "⚠️ Severity: "+diagnosis.Primary.Severity)
		}
		if diagnosis.ImmediateAction != "" {
			parts = append(parts, "💡 Immediate Action: "+diagnosis.ImmediateAction)
		}
		if diagnosis.Treatment != "" {
			parts = append(parts, "💊 Treatment: "+diagnosis.Treatment)
		}
		if len(parts) == 0 {
			break
		}
		return strings.Join(parts, "\n\n")

	case response.Schemes != nil:
		count := response.Schemes.Matches
		lead := fmt.Sprintf("I found %d relevant government scheme documents for you.\n\n", count)
		if count == 0 {
			lead = "I could not find matching scheme documents, but here is what I know.\n\n"
		}
		return lead + response.Schemes.Answer

	case response.Transcript != nil:
		return fmt.Sprintf("I heard: \"%s\" (confidence: %.0f%%)",
			response.Transcript.Text, response.Transcript.Confidence*100)
	}

	if strings.TrimSpace(response.Message) != "" {
		return response.Message
	}
	return "I'm sorry, I could not work out an answer. Please try rephrasing your question."
}

// failRequest marks the session terminal-error and builds the error
// envelope, localized best effort. No partial results are returned on hard
// failure.
func (m *Manager) failRequest(ctx context.Context, sessionID string, norm *normalizedInput, req *models.Request, err error) *models.AssistResult {
	m.thought(ctx, sessionID, "❌ Something went wrong: "+err.Error())
	m.status(ctx, sessionID, models.SessionStatusError, err.Error())

	message := "I'm sorry, something went wrong while processing your request. Please try again."
	if models.IsValidation(err) {
		if appErr, ok := err.(*models.AppError); ok {
			message = appErr.Message
		}
	}

	final := &models.FinalResponse{
		Message:  message,
		Type:     models.ResponseTypeError,
		Language: "english",
	}

	language := "english"
	if norm != nil && norm.originalLanguage != "" {
		language = strings.ToLower(norm.originalLanguage)

		// The error text follows the farmer's language when it can; a
		// failed translation here must never mask the original failure.
		if norm.originalLanguage != "English" && !req.Profile.PrefersEnglish() {
			if translation, terr := m.translator.Translate(ctx, "english",
				norm.originalLanguage, message, nil); terr == nil {
				final.OriginalEnglish = message
				final.Message = translation.Text
				final.Language = language
			} else {
				m.logger.WithError(terr).Warn("error-message translation failed, returning English",
					"target", norm.originalLanguage)
			}
		}
	}

	return &models.AssistResult{
		SessionID:        sessionID,
		OriginalLanguage: language,
		FinalResponse:    final,
		Status:           "error",
	}
}

// HealthCheck probes each collaborator; the handler renders the map as-is.
func (m *Manager) HealthCheck(ctx context.Context) map[string]string {
	statuses := map[string]string{}

	if err := m.inference.HealthCheck(ctx); err != nil {
		statuses["gemini"] = "down: " + err.Error()
	} else {
		statuses["gemini"] = "up"
	}

	if m.sessions != nil {
		if err := m.sessions.HealthCheck(ctx); err != nil {
			statuses["redis"] = "down: " + err.Error()
		} else {
			statuses["redis"] = "up"
		}
	} else {
		statuses["redis"] = "unavailable"
	}

	if m.retrieval != nil {
		if err := m.retrieval.HealthCheck(ctx); err != nil {
			statuses["vector_store"] = "down: " + err.Error()
		} else {
			statuses["vector_store"] = "up"
		}
	} else {
		statuses["vector_store"] = "unavailable"
	}

	return statuses
}

// Capabilities lists what this deployment can do, for the health endpoint.
func (m *Manager) Capabilities() []string {
	capabilities := []string{
		"image_analysis",
		"speech_to_text",
		"multilingual_support",
		"disease_detection",
		"general_farming",
		"market_prices",
	}
	if m.schemes != nil {
		capabilities = append(capabilities, "government_schemes")
	}
	return capabilities
}

func sessionInput(req *models.Request) map[string]interface{} {
	input := map[string]interface{}{
		"modality": string(req.Modality),
	}
	if req.Text != "" {
		input["text"] = req.Text
	}
	if req.Language != "" {
		input["language"] = req.Language
	}
	if req.QueryType != "" {
		input["query_type"] = req.QueryType
	}
	if len(req.Image) > 0 {
		input["image_bytes"] = len(req.Image)
	}
	if len(req.Audio) > 0 {
		input["audio_bytes"] = len(req.Audio)
	}
	return input
}

func debugInfo(classification *models.Classification, norm *normalizedInput) map[string]interface{} {
	info := map[string]interface{}{
		"combined_query_length": len(norm.combined),
		"had_image_context":     norm.imageContext != "",
		"had_transcript":        norm.transcript != "",
	}
	if classification != nil {
		info["intent"] = classification.Intent
		info["intent_confidence"] = classification.Confidence
		info["classification_fallback"] = classification.Fallback
	}
	return info
}

// Best-effort sink writes; failures are logged, never propagated.

func (m *Manager) thought(ctx context.Context, sessionID, text string) {
	if err := m.sink.AddThought(ctx, sessionID, text); err != nil {
		m.logger.WithError(err).Warn("failed to append session thought",
			"session_id", sessionID)
	}
}

func (m *Manager) record(ctx context.Context, sessionID, agentName string, response *models.AgentResponse) {
	if err := m.sink.SaveAgentResponse(ctx, sessionID, agentName, response); err != nil {
		m.logger.WithError(err).Warn("failed to record agent response",
			"session_id", sessionID,
			"agent", agentName)
	}
}

func (m *Manager) status(ctx context.Context, sessionID string, status models.SessionStatus, message string) {
	if err := m.sink.UpdateStatus(ctx, sessionID, status, message); err != nil {
		m.logger.WithError(err).Warn("failed to update session status",
			"session_id", sessionID)
	}
}
