package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"genstudio/internal/infra"
)

const (
	staticProviderName = "static"
	geminiProviderName = "gemini"
	openAIProviderName = "openai"
)

// ErrEmptyPrompt is returned when there is nothing to enhance.
var ErrEmptyPrompt = errors.New("prompt is required")

type EnhanceRequest struct {
	Prompt string
}

type EnhanceResponse struct {
	EnhancedPrompt string            `json:"enhancedPrompt"`
	Provider       string            `json:"-"`
	Metadata       map[string]string `json:"-"`
}

type Enhancer interface {
	Enhance(ctx context.Context, req EnhanceRequest) (*EnhanceResponse, error)
}

// TextGenerator is the slice of the Gemini client the enhancer needs.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// Settings selects and configures the enhancer.
type Settings struct {
	Provider      string
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
	OpenAIOrg     string
}

// New builds the enhancer named by settings.Provider. Remote providers fall
// back to the static rewrite on any failure.
func New(settings Settings, text TextGenerator, logger *infra.Logger) (Enhancer, error) {
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	static := NewStaticEnhancer()
	switch strings.ToLower(strings.TrimSpace(settings.Provider)) {
	case "", staticProviderName:
		return static, nil
	case geminiProviderName:
		if text == nil {
			return nil, errors.New("gemini enhancer requires a text generator")
		}
		return NewGeminiEnhancer(text, static, logger), nil
	case openAIProviderName:
		return NewOpenAIEnhancer(OpenAIOptions{
			APIKey:       settings.OpenAIAPIKey,
			Model:        settings.OpenAIModel,
			BaseURL:      settings.OpenAIBaseURL,
			Organization: settings.OpenAIOrg,
			Fallback:     static,
			Logger:       logger,
		}), nil
	default:
		return nil, fmt.Errorf("unknown prompt provider %q", settings.Provider)
	}
}

// fallback runs the static rewrite and tags the result with the reason.
func fallback(ctx context.Context, next Enhancer, logger *infra.Logger, provider, reason string, cause error, req EnhanceRequest) (*EnhanceResponse, error) {
	logger.Warn().
		Err(cause).
		Str("provider", provider).
		Str("fallback_reason", reason).
		Msg("prompt: remote enhancer failed; using static rewrite")
	res, err := next.Enhance(ctx, req)
	if err != nil {
		return nil, err
	}
	if res.Metadata == nil {
		res.Metadata = map[string]string{}
	}
	res.Metadata["fallback_reason"] = reason
	return res, nil
}

// cleanCompletion strips quotes, code fences and a leading label from model output.
func cleanCompletion(raw string) string {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		if nl := strings.IndexByte(text, '\n'); nl >= 0 && !strings.Contains(text[:nl], " ") {
			text = text[nl+1:]
		}
	}
	text = strings.TrimSpace(text)
	for _, label := range []string{"Enhanced prompt:", "Prompt:"} {
		if len(text) >= len(label) && strings.EqualFold(text[:len(label)], label) {
			text = strings.TrimSpace(text[len(label):])
		}
	}
	return strings.Trim(text, "\"'“” \n")
}

func instruction(prompt string) string {
	return "Rewrite the following image generation prompt so it is vivid and specific. " +
		"Keep the subject and intent, add composition, lighting and style details, " +
		"and answer with the rewritten prompt only, in the same language.\n\nPrompt: " + prompt
}
