package prompt

import (
	"context"
	"errors"
	"strings"

	"genstudio/internal/infra"
)

// GeminiEnhancer asks the Gemini text model for a rewrite.
type GeminiEnhancer struct {
	text     TextGenerator
	fallback Enhancer
	logger   *infra.Logger
}

func NewGeminiEnhancer(text TextGenerator, fallback Enhancer, logger *infra.Logger) *GeminiEnhancer {
	return &GeminiEnhancer{text: text, fallback: fallback, logger: logger}
}

func (g *GeminiEnhancer) Enhance(ctx context.Context, req EnhanceRequest) (*EnhanceResponse, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	out, err := g.text.GenerateText(ctx, instruction(req.Prompt))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return fallback(ctx, g.fallback, g.logger, geminiProviderName, reasonFor(err), err, req)
	}
	enhanced := cleanCompletion(out)
	if enhanced == "" {
		return fallback(ctx, g.fallback, g.logger, geminiProviderName, "empty_response", errors.New("empty completion"), req)
	}
	return &EnhanceResponse{EnhancedPrompt: enhanced, Provider: geminiProviderName}, nil
}

var _ Enhancer = (*GeminiEnhancer)(nil)
