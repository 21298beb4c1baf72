package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kisan-ai-pipeline/internal/models"
	"kisan-ai-pipeline/internal/pkg/logger"
)

// SchemeRetrieval answers government-scheme questions from the retrieval
// backend, or from a small embedded knowledge table when the backend is
// unavailable or returns nothing.
type SchemeRetrieval struct {
	inference Inference
	retriever Retriever
	topK      int
	logger    *logger.Logger
}

func NewSchemeRetrieval(inference Inference, retriever Retriever, topK int, log *logger.Logger) *SchemeRetrieval {
	if topK <= 0 {
		topK = 5
	}
	return &SchemeRetrieval{
		inference: inference,
		retriever: retriever,
		topK:      topK,
		logger:    log,
	}
}

const staticFallbackConfidence = 0.5

// staticSchemeNotes is the embedded fallback knowledge table, keyword-matched
// against the query when vector search cannot serve it.
var staticSchemeNotes = []struct {
	topic    string
	keywords []string
	content  string
}{
	{
		topic:    "PM-KISAN",
		keywords: []string{"pm-kisan", "pm kisan", "kisan samman", "income support", "6000"},
		content: "PM-KISAN gives every landholding farmer family ₹6,000 per year in three " +
			"installments of ₹2,000, paid directly to the bank account. Register at your " +
			"local Common Service Centre or pmkisan.gov.in with your Aadhaar and land records.",
	},
	{
		topic:    "Drip Irrigation Subsidy",
		keywords: []string{"drip", "irrigation", "sprinkler", "water", "micro irrigation"},
		content: "Under PMKSY (Per Drop More Crop), small and marginal farmers get 55% subsidy " +
			"and other farmers 45% on drip and sprinkler systems. Apply through your state " +
			"horticulture or agriculture department with land documents and a water source proof.",
	},
	{
		topic:    "Organic Farming Support",
		keywords: []string{"organic", "natural farming", "jaivik", "pkvy"},
		content: "Paramparagat Krishi Vikas Yojana (PKVY) supports organic clusters with " +
			"₹50,000 per hectare over three years, of which ₹31,000 goes directly to the farmer " +
			"for organic inputs. Groups of 20 or more farmers can form a cluster and apply.",
	},
	{
		topic:    "Crop Insurance",
		keywords: []string{"insurance", "fasal bima", "crop loss", "pmfby", "damage"},
		content: "Pradhan Mantri Fasal Bima Yojana (PMFBY) insures crops against natural " +
			"calamities, pests and disease. Premium is capped at 2% for kharif, 1.5% for rabi " +
			"and 5% for commercial crops. Enroll through your bank, CSC or the PMFBY portal " +
			"before the seasonal cutoff date.",
	},
	{
		topic:    "Dairy Farming Loans",
		keywords: []string{"dairy", "cattle", "milk", "animal husbandry", "livestock"},
		content: "The Dairy Entrepreneurship Development Scheme and Kisan Credit Card for " +
			"animal husbandry offer subsidized loans for buying milch animals and equipment. " +
			"NABARD provides 25% back-ended subsidy (33% for SC/ST farmers). Apply via your bank.",
	},
}

type schemeReply struct {
	Answer    string               `json:"answer"`
	Schemes   []models.SchemeMatch `json:"schemes"`
	KeyPoints []string             `json:"key_points"`
}

// Process answers the query, preferring vector search over the static table.
func (schemes *SchemeRetrieval) Process(ctx context.Context, query string, profile *models.FarmProfile) (*models.AgentResponse, error) {
	if strings.TrimSpace(query) == "" {
		return nil, models.NewValidationError("EMPTY_QUERY", "no query text for scheme retrieval")
	}

	if schemes.retriever != nil {
		response, err := schemes.processWithVectorSearch(ctx, query, profile)
		if err == nil {
			return response, nil
		}
		schemes.logger.WithError(err).Warn("vector search path failed, using static fallback")
	}

	return schemes.processWithFallback(ctx, query)
}

func (schemes *SchemeRetrieval) processWithVectorSearch(ctx context.Context, query string, profile *models.FarmProfile) (*models.AgentResponse, error) {
	startTime := time.Now()

	chunks, err := schemes.retriever.Search(ctx, query, schemes.topK)
	if err != nil {
		return nil, models.WrapExternalError("VECTOR_SEARCH", err)
	}
	if len(chunks) == 0 {
		return nil, models.NewExternalError("NO_MATCHES", "vector search returned no documents")
	}

	var contextBlock strings.Builder
	for i, chunk := range chunks {
		fmt.Fprintf(&contextBlock, "Document %d:\nSource: %s\nContent: %s\n\n",
			i+1, chunkSource(chunk), chunk.Content)
	}

	prompt := PromptSpec{
		Role: "You are a government-scheme advisor for Indian farmers. Answer only from the " +
			"provided documents; if they do not cover the question, say so.",
		Context: profileContextLines(profile),
		Task: fmt.Sprintf("DOCUMENTS:\n%s\nFARMER'S QUESTION: %s",
			contextBlock.String(), query),
		Schema: `{"answer": "...", "schemes": [{"name": "...", "benefit": "...", "eligibility": "..."}], "key_points": ["..."]}`,
	}.Build()

	raw, err := schemes.inference.GenerateText(ctx, models.TierPro, prompt)
	if err != nil {
		return nil, models.WrapExternalError("SCHEME_RETRIEVAL", err)
	}

	reply, structured := ParseModelJSON(schemes.logger, raw, func(raw string) schemeReply {
		return schemeReply{Answer: truncateText(strings.TrimSpace(raw), 500)}
	})
	if strings.TrimSpace(reply.Answer) == "" {
		return nil, models.NewExternalError("EMPTY_ANSWER", "model produced no scheme answer")
	}

	answer := &models.SchemeAnswer{
		Answer:          reply.Answer,
		Schemes:         reply.Schemes,
		KeyPoints:       reply.KeyPoints,
		Sources:         topSources(chunks, 3),
		Matches:         len(chunks),
		ConfidenceLabel: confidenceLabel(chunks),
	}

	response := &models.AgentResponse{
		Type:       models.ResponseTypeSchemes,
		Message:    reply.Answer,
		Confidence: averageScore(chunks),
		Schemes:    answer,
	}
	if !structured {
		response.Note = "recovered from unstructured model reply"
	}

	schemes.logger.LogAgent("", "scheme_retrieval", "vector_search", time.Since(startTime), map[string]interface{}{
		"matches":    len(chunks),
		"confidence": answer.ConfidenceLabel,
	}, nil)

	return response, nil
}

// processWithFallback keyword-matches the embedded notes and lets the fast
// model phrase them for the farmer; on model failure the raw notes go out
// directly. Fixed lowered confidence, explicit fallback note.
func (schemes *SchemeRetrieval) processWithFallback(ctx context.Context, query string) (*models.AgentResponse, error) {
	startTime := time.Now()
	lowered := strings.ToLower(query)

	var matched []string
	var matchedNames []models.SchemeMatch
	for _, note := range staticSchemeNotes {
		for _, keyword := range note.keywords {
			if strings.Contains(lowered, keyword) {
				matched = append(matched, note.topic+": "+note.content)
				matchedNames = append(matchedNames, models.SchemeMatch{Name: note.topic})
				break
			}
		}
	}
	if len(matched) == 0 {
		// No keyword hit; offer the whole table as orientation.
		for _, note := range staticSchemeNotes {
			matched = append(matched, note.topic+": "+note.content)
		}
	}

	answerText := strings.Join(matched, "\n\n")
	if raw, err := schemes.inference.GenerateText(ctx, models.TierFlash,
		fmt.Sprintf("Using only these notes about Indian government schemes, answer the farmer's "+
			"question in simple language.\n\nNOTES:\n%s\n\nQUESTION: %s\n\nReply in plain text.",
			answerText, query)); err == nil && strings.TrimSpace(raw) != "" {
		answerText = strings.TrimSpace(raw)
	} else if err != nil {
		schemes.logger.WithError(err).Warn("fallback phrasing call failed, returning raw notes")
	}

	schemes.logger.LogAgent("", "scheme_retrieval", "static_fallback", time.Since(startTime), map[string]interface{}{
		"matches": len(matchedNames),
	}, nil)

	return &models.AgentResponse{
		Type:       models.ResponseTypeSchemes,
		Message:    answerText,
		Confidence: staticFallbackConfidence,
		Note:       "fallback: answered from built-in scheme notes, retrieval unavailable",
		Schemes: &models.SchemeAnswer{
			Answer:          answerText,
			Schemes:         matchedNames,
			Matches:         len(matchedNames),
			ConfidenceLabel: "low",
		},
	}, nil
}

func chunkSource(chunk models.RetrievedChunk) string {
	if source, ok := chunk.Metadata["source"]; ok && source != "" {
		return source
	}
	if title, ok := chunk.Metadata["title"]; ok && title != "" {
		return title
	}
	return "Unknown"
}

func topSources(chunks []models.RetrievedChunk, limit int) []string {
	seen := make(map[string]bool)
	var sources []string
	for _, chunk := range chunks {
		source := chunkSource(chunk)
		if !seen[source] {
			seen[source] = true
			sources = append(sources, source)
		}
		if len(sources) == limit {
			break
		}
	}
	return sources
}

func averageScore(chunks []models.RetrievedChunk) float64 {
	if len(chunks) == 0 {
		return 0
	}
	var total float64
	for _, chunk := range chunks {
		total += chunk.Score
	}
	return total / float64(len(chunks))
}

func confidenceLabel(chunks []models.RetrievedChunk) string {
	mean := averageScore(chunks)
	switch {
	case mean > 0.8:
		return "high"
	case mean > 0.6:
		return "medium"
	default:
		return "low"
	}
}
