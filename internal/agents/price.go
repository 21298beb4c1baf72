package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kisan-ai-pipeline/internal/models"
	"kisan-ai-pipeline/internal/pkg/logger"
)

// PriceLookup answers mandi-price questions from an embedded reference
// table. Routed only via the explicit market_prices query-type hint.
type PriceLookup struct {
	inference Inference
	logger    *logger.Logger
}

func NewPriceLookup(inference Inference, log *logger.Logger) *PriceLookup {
	return &PriceLookup{
		inference: inference,
		logger:    log,
	}
}

// Indicative modal prices in ₹ per quintal; a stand-in for a live mandi
// feed, kept deliberately small.
var referencePrices = map[string][]models.PriceEntry{
	"tomato": {
		{Market: "Azadpur (Delhi)", MinPrice: 800, MaxPrice: 1600, ModalPrice: 1200, Unit: "quintal"},
		{Market: "Kolar (Karnataka)", MinPrice: 700, MaxPrice: 1400, ModalPrice: 1000, Unit: "quintal"},
	},
	"onion": {
		{Market: "Lasalgaon (Maharashtra)", MinPrice: 1100, MaxPrice: 2400, ModalPrice: 1800, Unit: "quintal"},
		{Market: "Azadpur (Delhi)", MinPrice: 1300, MaxPrice: 2600, ModalPrice: 2000, Unit: "quintal"},
	},
	"wheat": {
		{Market: "Khanna (Punjab)", MinPrice: 2125, MaxPrice: 2350, ModalPrice: 2275, Unit: "quintal"},
		{Market: "Indore (MP)", MinPrice: 2100, MaxPrice: 2450, ModalPrice: 2300, Unit: "quintal"},
	},
	"rice": {
		{Market: "Karnal (Haryana)", MinPrice: 2183, MaxPrice: 3100, ModalPrice: 2600, Unit: "quintal"},
	},
	"potato": {
		{Market: "Agra (UP)", MinPrice: 600, MaxPrice: 1250, ModalPrice: 950, Unit: "quintal"},
	},
	"cotton": {
		{Market: "Rajkot (Gujarat)", MinPrice: 6200, MaxPrice: 7100, ModalPrice: 6700, Unit: "quintal"},
	},
}

func (prices *PriceLookup) Process(ctx context.Context, query string, profile *models.FarmProfile) (*models.AgentResponse, error) {
	if strings.TrimSpace(query) == "" {
		return nil, models.NewValidationError("EMPTY_QUERY", "no query text for price lookup")
	}

	startTime := time.Now()

	crop, entries := matchCrop(query, profile)
	table := formatPriceTable(crop, entries)

	summary := table
	note := ""
	if raw, err := prices.inference.GenerateText(ctx, models.TierFlash,
		fmt.Sprintf("Using only this mandi price table, answer the farmer's question in simple "+
			"language with concrete numbers.\n\nPRICES:\n%s\n\nQUESTION: %s\n\nReply in plain text.",
			table, query)); err == nil && strings.TrimSpace(raw) != "" {
		summary = strings.TrimSpace(raw)
	} else {
		if err != nil {
			prices.logger.WithError(err).Warn("price phrasing call failed, returning raw table")
		}
		note = "fallback: raw price table, model unavailable"
	}

	prices.logger.LogAgent("", "price_lookup", "process", time.Since(startTime), map[string]interface{}{
		"crop":    crop,
		"entries": len(entries),
	}, nil)

	return &models.AgentResponse{
		Type:    models.ResponseTypePrices,
		Message: summary,
		Note:    note,
		Prices: &models.PriceReport{
			Crop:    crop,
			Entries: entries,
			Summary: summary,
		},
	}, nil
}

// matchCrop picks the crop from the query text first, then the farm
// profile, else returns the whole table keyed as "general".
func matchCrop(query string, profile *models.FarmProfile) (string, []models.PriceEntry) {
	lowered := strings.ToLower(query)
	for crop, entries := range referencePrices {
		if strings.Contains(lowered, crop) {
			return crop, entries
		}
	}
	if profile != nil {
		cropType := strings.ToLower(strings.TrimSpace(profile.CropType))
		if entries, ok := referencePrices[cropType]; ok {
			return cropType, entries
		}
	}
	var all []models.PriceEntry
	for _, entries := range referencePrices {
		all = append(all, entries...)
	}
	return "general", all
}

func formatPriceTable(crop string, entries []models.PriceEntry) string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "Crop: %s\n", crop)
	for _, entry := range entries {
		fmt.Fprintf(&builder, "%s: min ₹%d, max ₹%d, modal ₹%d per %s\n",
			entry.Market, entry.MinPrice, entry.MaxPrice, entry.ModalPrice, entry.Unit)
	}
	return builder.String()
}
