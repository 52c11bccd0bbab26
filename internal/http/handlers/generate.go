package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/internal/middleware"
	"genstudio/internal/providers/genai"
)

// Six base64 references of about 1 MiB each plus the prompt.
const maxGenerateBody = 12 << 20

type referenceImage struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generateRequest struct {
	Prompt             string           `json:"prompt"`
	AspectRatio        string           `json:"aspectRatio"`
	ImageSize          string           `json:"imageSize"`
	ReferenceImages    []referenceImage `json:"referenceImages"`
	ReferenceImageURLs []string         `json:"referenceImageUrls"`
}

type generateResponse struct {
	ImageData string `json:"imageData,omitempty"`
	MimeType  string `json:"mimeType,omitempty"`
	JobID     string `json:"jobId,omitempty"`
}

type jobStatusResponse struct {
	Status      string `json:"status"`
	ImageURL    string `json:"imageUrl,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
	AssetID     string `json:"assetId,omitempty"`
	Prompt      string `json:"prompt,omitempty"`
	AspectRatio string `json:"aspectRatio,omitempty"`
	ImageSize   string `json:"imageSize,omitempty"`
}

func (req generateRequest) toDomain() (domain.GenerationRequest, error) {
	out := domain.GenerationRequest{
		Prompt:      req.Prompt,
		AspectRatio: domain.AspectRatio(req.AspectRatio),
		ImageSize:   domain.ImageSize(req.ImageSize),
		BatchSize:   1,
	}
	for i, ref := range req.ReferenceImages {
		data := ref.Data
		if _, payload, ok := strings.Cut(data, ";base64,"); ok && strings.HasPrefix(data, "data:") {
			data = payload
		}
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(data))
		if err != nil {
			return out, fmt.Errorf("%w: reference image %d is not valid base64", domain.ErrInvalidRequest, i+1)
		}
		out.ReferenceAssets = append(out.ReferenceAssets, domain.ReferenceAsset{Data: decoded, MIMEType: ref.MimeType})
	}
	for _, u := range req.ReferenceImageURLs {
		out.ReferenceAssets = append(out.ReferenceAssets, domain.ReferenceAsset{URL: strings.TrimSpace(u)})
	}
	out.Normalize()
	return out, out.Validate()
}

// wantsAsync applies GENERATE_MODE; auto defers heavy requests to the worker.
func wantsAsync(mode infra.GenerateMode, req domain.GenerationRequest) bool {
	switch mode {
	case infra.GenerateModeSync:
		return false
	case infra.GenerateModeAsync:
		return true
	default:
		return len(req.ReferenceAssets) > 0 || req.ImageSize == domain.ImageSize4K
	}
}

// Generate handles POST /api/generate.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var body generateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxGenerateBody)).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.error(w, http.StatusRequestEntityTooLarge, "too_large", "request body too large")
			return
		}
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	req, err := body.toDomain()
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	if wantsAsync(a.mode(), req) {
		a.enqueue(w, r, userID, req)
		return
	}

	img, err := a.Generator.GenerateImage(r.Context(), genai.ImageRequest{
		Prompt:      req.Prompt,
		AspectRatio: req.AspectRatio,
		ImageSize:   req.ImageSize,
		References:  req.ReferenceAssets,
		RequestID:   middleware.RequestIDFromContext(r.Context()),
	})
	if err != nil {
		a.upstreamError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, generateResponse{
		ImageData: base64.StdEncoding.EncodeToString(img.Data),
		MimeType:  img.MIMEType,
	})
}

func (a *App) enqueue(w http.ResponseWriter, r *http.Request, userID string, req domain.GenerationRequest) {
	var refs json.RawMessage
	if len(req.ReferenceAssets) > 0 {
		encoded, err := json.Marshal(req.ReferenceAssets)
		if err != nil {
			a.error(w, http.StatusInternalServerError, "internal", "failed to encode references")
			return
		}
		refs = encoded
	}
	jobID, err := a.Jobs.Create(r.Context(), &domain.Job{
		UserID:      userID,
		Prompt:      req.Prompt,
		AspectRatio: req.AspectRatio,
		ImageSize:   req.ImageSize,
		References:  refs,
	})
	if err != nil {
		a.log().Error().Err(err).Str("user_id", userID).Msg("generate: enqueue failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to queue job")
		return
	}
	a.log().Info().Str("job_id", jobID).Str("user_id", userID).Msg("generate: job queued")
	a.json(w, http.StatusAccepted, generateResponse{JobID: jobID})
}

// upstreamError passes 429 and 503 through so clients can back off; everything else is a 502.
func (a *App) upstreamError(w http.ResponseWriter, r *http.Request, err error) {
	var se *genai.StatusError
	if errors.As(err, &se) {
		switch se.Code {
		case http.StatusTooManyRequests:
			a.error(w, http.StatusTooManyRequests, "rate_limited", "upstream rate limited")
			return
		case http.StatusServiceUnavailable:
			a.error(w, http.StatusServiceUnavailable, "unavailable", "upstream unavailable")
			return
		case http.StatusBadRequest:
			a.error(w, http.StatusBadRequest, "bad_request", se.Message)
			return
		}
	}
	if r.Context().Err() != nil {
		return
	}
	a.log().Error().Err(err).Str("request_id", middleware.RequestIDFromContext(r.Context())).Msg("generate: upstream failed")
	a.error(w, http.StatusBadGateway, "upstream_error", "image generation failed")
}

// GenerateStatus handles GET /api/generate/status/{jobId}.
func (a *App) GenerateStatus(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobID := chi.URLParam(r, "jobId")
	job, err := a.Jobs.GetForUser(r.Context(), jobID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.log().Error().Err(err).Str("job_id", jobID).Msg("generate: status lookup failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}

	switch job.Status {
	case domain.JobStatusSucceeded:
		resp := jobStatusResponse{
			Status:      string(job.Status),
			Prompt:      job.Prompt,
			AspectRatio: string(job.AspectRatio),
			ImageSize:   string(job.ImageSize),
		}
		if job.Result != nil {
			resp.ImageURL = job.Result.ImageURL
			resp.MimeType = job.Result.MIMEType
			resp.AssetID = job.Result.AssetID
		}
		a.json(w, http.StatusOK, resp)
	case domain.JobStatusFailed:
		msg := job.ErrorMessage
		if msg == "" {
			msg = "generation failed"
		}
		a.error(w, http.StatusInternalServerError, "generation_failed", msg)
	default:
		a.json(w, http.StatusOK, jobStatusResponse{Status: string(job.Status)})
	}
}
