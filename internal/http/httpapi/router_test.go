package httpapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"genstudio/internal/domain"
	"genstudio/internal/http/handlers"
	"genstudio/internal/infra"
	"genstudio/internal/middleware"
)

type emptyAssets struct{}

func (emptyAssets) Insert(_ context.Context, a *domain.Asset) (*domain.Asset, error) { return a, nil }

func (emptyAssets) List(context.Context, domain.AssetScope, string, domain.Page) ([]domain.Asset, error) {
	return nil, nil
}

func newTestRouter(t *testing.T) (http.Handler, *infra.Config) {
	t.Helper()
	cfg := &infra.Config{
		JWTSecret:       "test-secret",
		GenerateMode:    infra.GenerateModeSync,
		CORSOrigins:     []string{"*"},
		RateLimitPerMin: 100,
	}
	static := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "static:"+r.URL.Path)
	})
	app := &handlers.App{Config: cfg, Assets: emptyAssets{}}
	return NewRouter(app, cfg, zerolog.New(io.Discard), static), cfg
}

func TestRouterPublicRoutes(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/healthz", nil))
	if rec.Code != http.StatusOK || rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("healthz = %d, request id %q", rec.Code, rec.Header().Get("X-Request-ID"))
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/generations/a.png", nil))
	if rec.Body.String() != "static:/generations/a.png" {
		t.Fatalf("static body = %q", rec.Body.String())
	}
}

func TestRouterRequiresToken(t *testing.T) {
	router, cfg := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/assets", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token status = %d", rec.Code)
	}

	token, err := middleware.SignJWT(cfg.JWTSecret, middleware.TokenClaims{Sub: "user-1", Exp: time.Now().Add(time.Hour).Unix()})
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/assets?scope=mine", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"items":[]`) {
		t.Fatalf("authorized list = %d %s", rec.Code, rec.Body.String())
	}
}

func TestRouterPreflight(t *testing.T) {
	router, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/generate", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Fatalf("allow origin = %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
}
