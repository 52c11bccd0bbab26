package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"genstudio/internal/clock"
	"genstudio/internal/domain"
	"genstudio/internal/providers/genai"
	"genstudio/internal/storage"
)

type stubJobs struct {
	mu        sync.Mutex
	queue     []*domain.Job
	claimErr  error
	succeeded map[string]domain.JobResult
	failed    map[string]string
}

func newStubJobs(jobs ...*domain.Job) *stubJobs {
	return &stubJobs{queue: jobs, succeeded: map[string]domain.JobResult{}, failed: map[string]string{}}
}

func (s *stubJobs) Create(context.Context, *domain.Job) (string, error) { return "", nil }

func (s *stubJobs) GetForUser(context.Context, string, string) (*domain.Job, error) {
	return nil, domain.ErrNotFound
}

func (s *stubJobs) ClaimNext(context.Context) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimErr != nil {
		return nil, s.claimErr
	}
	if len(s.queue) == 0 {
		return nil, domain.ErrNotFound
	}
	job := s.queue[0]
	s.queue = s.queue[1:]
	return job, nil
}

func (s *stubJobs) MarkSucceeded(_ context.Context, id string, result domain.JobResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.succeeded[id] = result
	return nil
}

func (s *stubJobs) MarkFailed(_ context.Context, id, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed[id] = message
	return nil
}

type stubAssets struct {
	inserted []domain.Asset
	err      error
}

func (s *stubAssets) Insert(_ context.Context, a *domain.Asset) (*domain.Asset, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := *a
	out.ID = "asset-" + a.JobID
	s.inserted = append(s.inserted, out)
	return &out, nil
}

func (s *stubAssets) List(context.Context, domain.AssetScope, string, domain.Page) ([]domain.Asset, error) {
	return nil, nil
}

type stubStore struct {
	keys []string
	err  error
}

func (s *stubStore) Put(_ context.Context, key string, data []byte) (storage.Object, error) {
	if s.err != nil {
		return storage.Object{}, s.err
	}
	s.keys = append(s.keys, key)
	return storage.Object{Key: key, URL: "http://cdn.test/" + key, Size: int64(len(data))}, nil
}

type stubGenerator struct {
	requests []genai.ImageRequest
	err      error
}

func (g *stubGenerator) GenerateImage(_ context.Context, req genai.ImageRequest) (*genai.Image, error) {
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	return &genai.Image{Data: []byte("jpeg"), MIMEType: "image/jpeg", Width: 1024, Height: 1024}, nil
}

func TestRunOnceSucceeds(t *testing.T) {
	refs, _ := json.Marshal([]domain.ReferenceAsset{{Data: []byte("ref"), MIMEType: "image/png"}})
	jobs := newStubJobs(&domain.Job{ID: "j1", UserID: "u1", Prompt: "a cat", AspectRatio: "1:1", ImageSize: "2K", References: refs})
	assets, store, gen := &stubAssets{}, &stubStore{}, &stubGenerator{}
	p := &Processor{Jobs: jobs, Assets: assets, Generator: gen, Store: store}

	handled, err := p.RunOnce(context.Background())
	if err != nil || !handled {
		t.Fatalf("RunOnce = %v, %v", handled, err)
	}
	if len(gen.requests) != 1 || string(gen.requests[0].References[0].Data) != "ref" || gen.requests[0].RequestID != "j1" {
		t.Fatalf("generator requests = %+v", gen.requests)
	}
	if len(store.keys) != 1 || store.keys[0] != "generations/u1/j1.jpg" {
		t.Fatalf("store keys = %v", store.keys)
	}
	got := jobs.succeeded["j1"]
	want := domain.JobResult{AssetID: "asset-j1", ImageURL: "http://cdn.test/generations/u1/j1.jpg", MIMEType: "image/jpeg"}
	if got != want {
		t.Fatalf("result = %+v, want %+v", got, want)
	}
	if a := assets.inserted[0]; a.Bytes != 4 || a.ImageSize != "2K" || a.JobID != "j1" {
		t.Fatalf("asset = %+v", a)
	}
}

func TestRunOnceMarksFailures(t *testing.T) {
	tests := []struct {
		name    string
		job     *domain.Job
		genErr  error
		putErr  error
		wantMsg string
	}{
		{name: "provider status", job: &domain.Job{ID: "j", UserID: "u", Prompt: "x"}, genErr: &genai.StatusError{Code: 400, Message: "prompt blocked"}, wantMsg: "prompt blocked"},
		{name: "no image", job: &domain.Job{ID: "j", UserID: "u", Prompt: "x"}, genErr: genai.ErrNoImage, wantMsg: "the model returned no image"},
		{name: "store", job: &domain.Job{ID: "j", UserID: "u", Prompt: "x"}, putErr: errors.New("disk full"), wantMsg: "persist image: disk full"},
		{name: "bad references", job: &domain.Job{ID: "j", UserID: "u", Prompt: "x", References: json.RawMessage(`{`)}, wantMsg: "decode references"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			jobs := newStubJobs(tc.job)
			p := &Processor{Jobs: jobs, Assets: &stubAssets{}, Generator: &stubGenerator{err: tc.genErr}, Store: &stubStore{err: tc.putErr}}
			if _, err := p.RunOnce(context.Background()); err != nil {
				t.Fatalf("RunOnce: %v", err)
			}
			msg, ok := jobs.failed["j"]
			if !ok || len(msg) < len(tc.wantMsg) || msg[:len(tc.wantMsg)] != tc.wantMsg {
				t.Fatalf("failed message = %q, want prefix %q", msg, tc.wantMsg)
			}
			if _, ok := jobs.succeeded["j"]; ok {
				t.Fatalf("job marked succeeded")
			}
		})
	}
}

func TestRunOnceAssetInsertFailureStillSucceeds(t *testing.T) {
	jobs := newStubJobs(&domain.Job{ID: "j1", UserID: "u1", Prompt: "a cat"})
	store := &stubStore{}
	p := &Processor{Jobs: jobs, Assets: &stubAssets{err: errors.New("db down")}, Generator: &stubGenerator{}, Store: store}

	if _, err := p.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if msg, ok := jobs.failed["j1"]; ok {
		t.Fatalf("job marked failed: %q", msg)
	}
	got, ok := jobs.succeeded["j1"]
	want := domain.JobResult{ImageURL: "http://cdn.test/generations/u1/j1.jpg", MIMEType: "image/jpeg"}
	if !ok || got != want {
		t.Fatalf("result = %+v, want %+v", got, want)
	}
	if len(store.keys) != 1 {
		t.Fatalf("store keys = %v", store.keys)
	}
}

func TestFailureMessageTruncatesOnRuneBoundary(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want int
	}{
		{name: "short", msg: "upstream closed", want: len("upstream closed")},
		{name: "ascii", msg: strings.Repeat("a", 600), want: maxFailureMessage},
		// 499 bytes then a three-byte rune straddling the limit
		{name: "multibyte", msg: strings.Repeat("a", 499) + strings.Repeat("界", 10), want: 499},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := failureMessage(errors.New(tc.msg))
			if len(got) != tc.want {
				t.Fatalf("len = %d, want %d", len(got), tc.want)
			}
			if !utf8.ValidString(got) {
				t.Fatalf("message is not valid UTF-8: %q", got[len(got)-4:])
			}
		})
	}
}

func TestRunOnceIdleAndClaimError(t *testing.T) {
	p := &Processor{Jobs: newStubJobs()}
	if handled, err := p.RunOnce(context.Background()); handled || err != nil {
		t.Fatalf("idle RunOnce = %v, %v", handled, err)
	}
	jobs := newStubJobs()
	jobs.claimErr = errors.New("db down")
	p = &Processor{Jobs: jobs}
	if _, err := p.RunOnce(context.Background()); err == nil {
		t.Fatalf("expected claim error")
	}
}

// cancelClock cancels the run after a fixed number of sleeps.
type cancelClock struct {
	*clock.Fake
	cancel context.CancelFunc
	after  int
}

func (c *cancelClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := c.Fake.Sleep(ctx, d); err != nil {
		return err
	}
	if len(c.Sleeps()) >= c.after {
		c.cancel()
		return context.Canceled
	}
	return nil
}

func TestRunDrainsThenPolls(t *testing.T) {
	jobs := newStubJobs(
		&domain.Job{ID: "a", UserID: "u", Prompt: "x"},
		&domain.Job{ID: "b", UserID: "u", Prompt: "y"},
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clk := &cancelClock{Fake: clock.NewFake(time.Unix(0, 0)), cancel: cancel, after: 2}
	p := &Processor{
		Jobs:         jobs,
		Assets:       &stubAssets{},
		Generator:    &stubGenerator{},
		Store:        &stubStore{},
		Clock:        clk,
		PollInterval: 500 * time.Millisecond,
	}

	if err := p.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v", err)
	}
	if len(jobs.succeeded) != 2 {
		t.Fatalf("succeeded = %v", jobs.succeeded)
	}
	sleeps := clk.Sleeps()
	if len(sleeps) != 2 || sleeps[0] != 500*time.Millisecond {
		t.Fatalf("sleeps = %v", sleeps)
	}
}
