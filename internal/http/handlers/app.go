package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/internal/infra/geoip"
	"genstudio/internal/middleware"
	"genstudio/internal/providers/genai"
	"genstudio/internal/providers/prompt"
	"genstudio/internal/storage"
)

// ImageGenerator is the upstream image model.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req genai.ImageRequest) (*genai.Image, error)
}

// BlobStore persists uploaded bytes and returns their public location.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) (storage.Object, error)
}

// App holds the dependencies shared by every HTTP handler.
type App struct {
	Config    *infra.Config
	Logger    *infra.Logger
	Jobs      domain.JobRepository
	Assets    domain.AssetRepository
	Store     BlobStore
	Generator ImageGenerator
	Enhancer  prompt.Enhancer
	GeoIP     geoip.CountryResolver
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func (a *App) log() *infra.Logger {
	if a.Logger == nil {
		discard := zerolog.New(io.Discard)
		return &discard
	}
	return a.Logger
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, errorResponse{Error: errCode, Message: message})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

func (a *App) mode() infra.GenerateMode {
	if a.Config == nil || a.Config.GenerateMode == "" {
		return infra.GenerateModeAuto
	}
	return a.Config.GenerateMode
}
