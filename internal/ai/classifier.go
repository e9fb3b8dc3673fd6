package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"galamsey-report-backend/internal/models"
)

const (
	maxDescriptionRunes = 5000
	maxSummaryRunes     = 500

	FallbackSummary   = "Unable to generate summary"
	SuspiciousSummary = "Environmental report submitted for review."
)

var (
	excessNewlines    = regexp.MustCompile(`\n{3,}`)
	jsonObject        = regexp.MustCompile(`(?s)\{.*\}`)
	suspiciousSummary = regexp.MustCompile(`(?i)ignore|instruction|system|prompt`)
)

// TextGenerator produces a model reply for a prompt. *GeminiClient satisfies it.
type TextGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Classification is what gets written to ai_summary and ai_category.
type Classification struct {
	Summary  string `json:"summary"`
	Category string `json:"category"`
}

// Classifier turns a report description into a Classification. The model
// output is never trusted: anything off-format falls back to safe values.
type Classifier struct {
	gen TextGenerator
}

func NewClassifier(gen TextGenerator) *Classifier {
	return &Classifier{gen: gen}
}

// Classify returns an error only when the model could not be reached. A reply
// that cannot be used still yields the fallback classification.
func (c *Classifier) Classify(ctx context.Context, description string) (Classification, error) {
	prompt, err := buildPrompt(SanitizeDescription(description))
	if err != nil {
		return Classification{}, err
	}
	reply, err := c.gen.GenerateContent(ctx, prompt)
	if err != nil {
		return Classification{}, err
	}
	return ParseReply(reply), nil
}

// SanitizeDescription defuses text that could read as instructions or
// template syntax before it goes into the prompt.
func SanitizeDescription(s string) string {
	s = strings.TrimSpace(s)
	s = truncateRunes(s, maxDescriptionRunes)
	s = strings.ReplaceAll(s, "`", "'")
	s = strings.ReplaceAll(s, "${", "$ {")
	return excessNewlines.ReplaceAllString(s, "\n\n")
}

type promptPayload struct {
	Task            string         `json:"task"`
	ReportText      string         `json:"report_text"`
	ValidCategories []string       `json:"valid_categories"`
	OutputFormat    Classification `json:"output_format"`
}

func buildPrompt(description string) (string, error) {
	b, err := json.Marshal(promptPayload{
		Task:            "analyze_environmental_report",
		ReportText:      description,
		ValidCategories: models.Categories,
		OutputFormat: Classification{
			Summary:  "one sentence summary",
			Category: "one of valid_categories",
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to build prompt: %w", err)
	}
	return string(b), nil
}

// ParseReply extracts the first {...} block of reply and validates it.
func ParseReply(reply string) Classification {
	out := Classification{Summary: FallbackSummary, Category: models.CategoryOther}

	match := jsonObject.FindString(reply)
	if match == "" {
		return out
	}
	var raw struct {
		Summary  interface{} `json:"summary"`
		Category interface{} `json:"category"`
	}
	if err := json.Unmarshal([]byte(match), &raw); err != nil {
		return out
	}

	if category, ok := raw.Category.(string); ok && models.IsCategory(category) {
		out.Category = category
	}
	if summary, ok := raw.Summary.(string); ok && summary != "" {
		summary = truncateRunes(summary, maxSummaryRunes)
		if suspiciousSummary.MatchString(summary) {
			summary = SuspiciousSummary
		}
		out.Summary = summary
	}
	return out
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
