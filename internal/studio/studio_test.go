package studio

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"genstudio/internal/clientcfg"
	"genstudio/internal/clock"
	"genstudio/internal/domain"
	"genstudio/internal/localstore"
	"genstudio/internal/refimage"
)

type backend struct {
	mu      sync.Mutex
	uploads int
	saved   []map[string]any

	// gate, when set, holds every generate call until it is closed.
	gate    chan struct{}
	entered chan struct{}
}

func (b *backend) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/generate", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if b.gate != nil {
			select {
			case b.entered <- struct{}{}:
			default:
			}
			select {
			case <-b.gate:
			case <-r.Context().Done():
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"imageData": base64.StdEncoding.EncodeToString([]byte("png-bytes")),
			"mimeType":  "image/png",
		})
	})
	mux.HandleFunc("POST /api/uploads", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.uploads++
		n := b.uploads
		b.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"url":        "http://cdn.test/static/uploads/u/" + string(rune('0'+n)) + ".png",
			"storageKey": "uploads/u/" + string(rune('0'+n)) + ".png",
		})
	})
	mux.HandleFunc("POST /api/assets", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]any
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Errorf("decode asset: %v", err)
		}
		b.mu.Lock()
		b.saved = append(b.saved, in)
		in["id"] = "asset-" + string(rune('0'+len(b.saved)))
		b.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(in)
	})
	return mux
}

func testConfig(t *testing.T, baseURL string) *clientcfg.Config {
	t.Helper()
	cfg := clientcfg.Default()
	cfg.Server.BaseURL = baseURL
	cfg.State.Backend = localstore.BackendSQLite
	cfg.State.Path = filepath.Join(t.TempDir(), "state.db")
	return &cfg
}

func TestStudioSyncBatchIsPersisted(t *testing.T) {
	b := &backend{}
	srv := httptest.NewServer(b.handler(t))
	defer srv.Close()

	s, err := New(testConfig(t, srv.URL), zerolog.Nop(), WithClock(clock.NewFake(time.Unix(0, 0))))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	batchID, err := s.Run(context.Background(), domain.GenerationRequest{Prompt: "a red balloon", BatchSize: 2})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if batchID == "" {
		t.Fatal("empty batch id")
	}
	s.Wait()

	snap := s.Board().Snapshot()
	if len(snap.Placeholders) != 0 || len(snap.Banners) != 0 {
		t.Fatalf("board = %+v", snap)
	}
	if len(snap.Assets) != 2 {
		t.Fatalf("assets = %+v", snap.Assets)
	}
	for _, a := range snap.Assets {
		if a.ID == "" || a.URL == "" || a.AspectRatio != domain.AspectSquare || a.ImageSize != domain.ImageSize1K {
			t.Fatalf("asset = %+v", a)
		}
	}
	b.mu.Lock()
	uploads, saved := b.uploads, len(b.saved)
	b.mu.Unlock()
	if uploads != 2 || saved != 2 {
		t.Fatalf("uploads = %d saved = %d", uploads, saved)
	}
	ids, _ := s.Jobs().List(context.Background())
	if len(ids) != 0 {
		t.Fatalf("active jobs = %v", ids)
	}
}

func TestStudioCloseMidBatchLeavesBatchRecoverable(t *testing.T) {
	b := &backend{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	srv := httptest.NewServer(b.handler(t))
	defer srv.Close()
	cfg := testConfig(t, srv.URL)
	ctx := context.Background()

	first, err := New(cfg, zerolog.Nop(), WithClock(clock.NewFake(time.Unix(0, 0))))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	batchID, err := first.Run(ctx, domain.GenerationRequest{Prompt: "a lighthouse", BatchSize: 3})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	<-b.entered
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second, err := New(cfg, zerolog.Nop(), WithClock(clock.NewFake(time.Unix(0, 0))))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer second.Close()
	close(b.gate)
	summary, err := second.Recover(ctx)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if summary.Batches != 1 {
		t.Fatalf("recovered = %+v, want the interrupted batch", summary)
	}
	second.Wait()

	if assets := second.Board().Assets(); len(assets) != 3 {
		t.Fatalf("assets = %d, want 3", len(assets))
	}
	left, _ := localstore.NewPendingBatches(second.kv, zerolog.Nop()).Load(ctx)
	if len(left) != 0 {
		t.Fatalf("batch %s still pending: %+v", batchID, left)
	}
}

func TestStudioLiveSessionKeepsItsBatches(t *testing.T) {
	b := &backend{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	srv := httptest.NewServer(b.handler(t))
	defer srv.Close()
	defer close(b.gate)
	cfg := testConfig(t, srv.URL)
	ctx := context.Background()

	owner, err := New(cfg, zerolog.Nop(), WithClock(clock.NewFake(time.Unix(0, 0))))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer owner.Close()
	if _, err := owner.Submit(ctx, domain.GenerationRequest{Prompt: "busy", BatchSize: 1}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-b.entered

	other, err := New(cfg, zerolog.Nop(), WithClock(clock.NewFake(time.Unix(0, 0))))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer other.Close()
	summary, err := other.Recover(ctx)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if summary.Batches != 0 {
		t.Fatalf("recovered = %+v, want nothing while the owner runs", summary)
	}
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestPrepareReferences(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "ref.png")
	writePNG(t, file, 300, 150)

	refs, err := PrepareReferences([]string{file, " https://cdn.example/ref.jpg ", ""}, refimage.Options{MaxDimension: 100}, zerolog.Nop())
	if err != nil {
		t.Fatalf("PrepareReferences: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("refs = %d, want 2", len(refs))
	}
	if refs[0].MIMEType != "image/jpeg" || len(refs[0].Data) == 0 {
		t.Fatalf("file ref = %+v", refs[0])
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(refs[0].Data))
	if err != nil || cfg.Width != 100 || cfg.Height != 50 {
		t.Fatalf("compressed size = %+v, %v", cfg, err)
	}
	if !refs[1].IsURL() || refs[1].URL != "https://cdn.example/ref.jpg" {
		t.Fatalf("url ref = %+v", refs[1])
	}

	many := make([]string, domain.MaxReferenceAssets+1)
	for i := range many {
		many[i] = "https://cdn.example/r.png"
	}
	if _, err := PrepareReferences(many, refimage.Options{}, zerolog.Nop()); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("err = %v, want ErrInvalidRequest", err)
	}
	if _, err := PrepareReferences([]string{filepath.Join(dir, "missing.png")}, refimage.Options{}, zerolog.Nop()); err == nil {
		t.Fatal("expected error for missing file")
	}
}
