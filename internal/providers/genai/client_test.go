package genai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"genstudio/internal/domain"
)

func TestDimensionsFor(t *testing.T) {
	tests := []struct {
		aspect domain.AspectRatio
		size   domain.ImageSize
		w, h   int
	}{
		{domain.AspectSquare, domain.ImageSize1K, 1024, 1024},
		{domain.Aspect16x9, domain.ImageSize1K, 1024, 576},
		{domain.Aspect9x16, domain.ImageSize2K, 1152, 2048},
		{domain.Aspect21x9, domain.ImageSize1K, 1024, 438},
		{"", domain.ImageSize4K, 4096, 4096},
	}
	for _, tc := range tests {
		t.Run(string(tc.aspect)+"/"+string(tc.size), func(t *testing.T) {
			w, h := dimensionsFor(tc.aspect, tc.size)
			if w != tc.w || h != tc.h {
				t.Fatalf("dimensionsFor = %dx%d, want %dx%d", w, h, tc.w, tc.h)
			}
		})
	}
}

func TestGenerateImageSyntheticWithoutKey(t *testing.T) {
	c, err := NewClient(Options{})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	req := ImageRequest{Prompt: "a red balloon", AspectRatio: domain.AspectSquare, ImageSize: domain.ImageSize1K}
	first, err := c.GenerateImage(context.Background(), req)
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if first.MIMEType != "image/png" || first.Width != 1024 || first.Height != 1024 {
		t.Fatalf("image = %s %dx%d", first.MIMEType, first.Width, first.Height)
	}
	if w, h := decodeImageDimensions(first.Data); w != 1024 || h != 1024 {
		t.Fatalf("decoded dimensions = %dx%d", w, h)
	}
	second, _ := c.GenerateImage(context.Background(), req)
	if string(first.Data) != string(second.Data) {
		t.Fatalf("synthetic output is not deterministic")
	}
	if _, err := c.GenerateText(context.Background(), "x"); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("GenerateText err = %v, want ErrNoAPIKey", err)
	}
}

func TestGenerateImageRemote(t *testing.T) {
	pngBytes := renderSyntheticImage(8, 4, "ff000000ff000000")
	var captured geminiGenerateContentRequest
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ref.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngBytes)
	})
	mux.HandleFunc("POST /models/{model}", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-goog-api-key") != "k" {
			t.Errorf("api key header missing")
		}
		if r.PathValue("model") != "img-model:generateContent" {
			t.Errorf("model path = %q", r.PathValue("model"))
		}
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"parts": []any{
					map[string]any{"text": "here you go"},
					map[string]any{"inlineData": map[string]any{
						"mimeType": "image/png",
						"data":     base64.StdEncoding.EncodeToString(pngBytes),
					}},
				}},
			}},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, _ := NewClient(Options{APIKey: "k", BaseURL: srv.URL, ImageModel: "img-model", HTTPClient: srv.Client()})
	img, err := c.GenerateImage(context.Background(), ImageRequest{
		Prompt:      "a red balloon",
		AspectRatio: domain.Aspect16x9,
		ImageSize:   domain.ImageSize2K,
		References: []domain.ReferenceAsset{
			{Data: []byte("inline"), MIMEType: "image/jpeg"},
			{URL: srv.URL + "/ref.png"},
		},
	})
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if img.Width != 8 || img.Height != 4 || img.MIMEType != "image/png" {
		t.Fatalf("image = %+v", img)
	}
	cfg := captured.GenerationConfig
	if cfg == nil || cfg.ImageConfig == nil || cfg.ImageConfig.AspectRatio != "16:9" || cfg.ImageConfig.ImageSize != "2K" {
		t.Fatalf("generationConfig = %+v", cfg)
	}
	if len(cfg.ResponseModalities) != 1 || cfg.ResponseModalities[0] != "IMAGE" {
		t.Fatalf("responseModalities = %v", cfg.ResponseModalities)
	}
	parts := captured.Contents[0].Parts
	if len(parts) != 3 || parts[1].InlineData.MimeType != "image/jpeg" || parts[2].InlineData.MimeType != "image/png" {
		t.Fatalf("parts = %+v", parts)
	}
}

func TestGenerateImageStatusErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, want: domain.ErrRateLimited},
		{name: "unavailable", status: http.StatusServiceUnavailable, want: domain.ErrUnavailable},
		{name: "server error", status: http.StatusInternalServerError, want: domain.ErrProviderFailure},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, `{"error":{"code":1,"message":"slow down"}}`)
			}))
			defer srv.Close()
			c, _ := NewClient(Options{APIKey: "k", BaseURL: srv.URL, HTTPClient: srv.Client()})
			_, err := c.GenerateImage(context.Background(), ImageRequest{Prompt: "x"})
			var se *StatusError
			if !errors.As(err, &se) || se.Code != tc.status {
				t.Fatalf("err = %v, want StatusError %d", err, tc.status)
			}
			if !errors.Is(err, tc.want) || !strings.Contains(se.Message, "slow down") {
				t.Fatalf("err = %v", err)
			}
		})
	}
}

func TestGenerateImageWithoutImagePart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"no"}]},"finishReason":"SAFETY"}]}`)
	}))
	defer srv.Close()
	c, _ := NewClient(Options{APIKey: "k", BaseURL: srv.URL, HTTPClient: srv.Client()})
	_, err := c.GenerateImage(context.Background(), ImageRequest{Prompt: "x"})
	if !errors.Is(err, ErrNoImage) || !strings.Contains(err.Error(), "SAFETY") {
		t.Fatalf("err = %v", err)
	}
}

func TestGenerateText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"  A red balloon "},{"text":"at dusk"}]}}]}`)
	}))
	defer srv.Close()
	c, _ := NewClient(Options{APIKey: "k", BaseURL: srv.URL, HTTPClient: srv.Client()})
	text, err := c.GenerateText(context.Background(), "improve")
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if text != "A red balloon at dusk" {
		t.Fatalf("text = %q", text)
	}
}
