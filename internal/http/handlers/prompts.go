package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"genstudio/internal/providers/prompt"
)

type enhancePromptRequest struct {
	Prompt string `json:"prompt"`
}

type enhancePromptResponse struct {
	EnhancedPrompt string `json:"enhancedPrompt"`
}

// EnhancePrompt handles POST /api/enhance-prompt.
func (a *App) EnhancePrompt(w http.ResponseWriter, r *http.Request) {
	if a.currentUserID(r) == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req enhancePromptRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "prompt is required")
		return
	}
	res, err := a.Enhancer.Enhance(r.Context(), prompt.EnhanceRequest{Prompt: req.Prompt})
	if err != nil {
		if errors.Is(err, prompt.ErrEmptyPrompt) {
			a.error(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		a.log().Error().Err(err).Msg("enhance: failed")
		a.error(w, http.StatusInternalServerError, "internal", "enhancer failed")
		return
	}
	a.log().Debug().
		Str("provider", res.Provider).
		Str("fallback_reason", res.Metadata["fallback_reason"]).
		Msg("enhance: prompt rewritten")
	a.json(w, http.StatusOK, enhancePromptResponse{EnhancedPrompt: res.EnhancedPrompt})
}
