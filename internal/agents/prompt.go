package agents

import (
	"strings"

	"kisan-ai-pipeline/internal/models"
)

// PromptSpec builds the near-identical prompt blocks every agent needs:
// a role line, farm-context lines, the task body and an optional JSON
// response schema.
type PromptSpec struct {
	Role    string
	Context []string
	Task    string
	Schema  string
}

func (spec PromptSpec) Build() string {
	var builder strings.Builder

	if spec.Role != "" {
		builder.WriteString(spec.Role)
		builder.WriteString("\n\n")
	}

	if len(spec.Context) > 0 {
		builder.WriteString("FARMER'S CONTEXT:\n")
		for _, line := range spec.Context {
			builder.WriteString("- ")
			builder.WriteString(line)
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(spec.Task)

	if spec.Schema != "" {
		builder.WriteString("\n\nRespond ONLY with valid JSON in exactly this format, no other text:\n")
		builder.WriteString(spec.Schema)
	}

	return builder.String()
}

// profileContextLines renders the farm profile into prompt context lines.
// The core agronomic fields always appear, with the unknown sentinel
// standing in for anything the farmer did not supply; the remaining fields
// are skipped when absent.
func profileContextLines(profile *models.FarmProfile) []string {
	if profile == nil {
		return nil
	}
	var lines []string
	add := func(label, value string) {
		if strings.TrimSpace(value) != "" {
			lines = append(lines, label+": "+value)
		}
	}
	add("Farmer name", profile.FarmerName)
	lines = append(lines, "Crop: "+models.OrUnknown(profile.CropType))
	lines = append(lines, "Farm size: "+models.OrUnknown(profile.Acreage))
	add("Soil type", profile.SoilType)
	lines = append(lines, "Growth stage: "+models.OrUnknown(profile.GrowthStage))
	add("Sowing date", profile.SowingDate)
	add("Current challenges", profile.CurrentChallenges)
	return lines
}
