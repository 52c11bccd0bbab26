package prompt

import (
	"context"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// StaticEnhancer rewrites prompts deterministically without any network call.
type StaticEnhancer struct{}

func NewStaticEnhancer() *StaticEnhancer {
	return &StaticEnhancer{}
}

var staticDetails = []struct {
	keyword string
	detail  string
}{
	{"light", "soft natural lighting"},
	{"detail", "highly detailed"},
	{"focus", "sharp focus"},
	{"composition", "balanced composition"},
}

func (s *StaticEnhancer) Enhance(ctx context.Context, req EnhanceRequest) (*EnhanceResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prompt := strings.Join(strings.Fields(req.Prompt), " ")
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	prompt = strings.TrimRight(prompt, ".,;: ")

	// Casers carry state, so each call gets its own.
	first, rest, _ := strings.Cut(prompt, " ")
	sentence := cases.Title(language.English, cases.NoLower).String(first)
	if rest != "" {
		sentence += " " + rest
	}

	lowered := cases.Lower(language.English).String(prompt)
	parts := []string{sentence}
	for _, d := range staticDetails {
		if !strings.Contains(lowered, d.keyword) {
			parts = append(parts, d.detail)
		}
	}
	return &EnhanceResponse{
		EnhancedPrompt: strings.Join(parts, ", "),
		Provider:       staticProviderName,
	}, nil
}

var _ Enhancer = (*StaticEnhancer)(nil)
