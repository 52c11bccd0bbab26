// Package studio wires the generation client, the durable store, the board,
// the sequencer and the recovery agent into one session.
package studio

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"genstudio/internal/clientcfg"
	"genstudio/internal/clock"
	"genstudio/internal/domain"
	"genstudio/internal/genclient"
	"genstudio/internal/localstore"
	"genstudio/internal/queue"
	"genstudio/internal/recovery"
	"genstudio/internal/refimage"
)

// Studio is one client session.
type Studio struct {
	cfg     clientcfg.Config
	logger  zerolog.Logger
	kv      localstore.KV
	session *localstore.Session
	jobs    *localstore.ActiveJobs
	pending *localstore.PendingBatches
	client  *genclient.Client
	board   *queue.Board
	seq     *queue.Sequencer
	agent   *recovery.Agent

	closeOnce sync.Once
	closeErr  error
}

// Option customises New.
type Option func(*options)

type options struct {
	clock       clock.Clock
	httpClient  *http.Client
	onBatchDone func(queue.BatchOutcome)
}

// WithClock replaces wall time, mostly for tests.
func WithClock(c clock.Clock) Option { return func(o *options) { o.clock = c } }

func WithHTTPClient(c *http.Client) Option { return func(o *options) { o.httpClient = c } }

// WithBatchCallback is invoked after each batch finishes.
func WithBatchCallback(fn func(queue.BatchOutcome)) Option {
	return func(o *options) { o.onBatchDone = fn }
}

func New(cfg *clientcfg.Config, logger zerolog.Logger, opts ...Option) (*Studio, error) {
	if cfg == nil {
		return nil, errors.New("studio: config is required")
	}
	o := options{clock: clock.Real{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: cfg.HTTPTimeout()}
	}

	kv, err := localstore.Open(cfg.State.Backend, cfg.State.Path, logger)
	if err != nil {
		return nil, err
	}
	sessions, err := localstore.NewSessions(cfg.State.Path, logger)
	if err != nil {
		_ = kv.Close()
		return nil, err
	}
	session, err := sessions.Acquire()
	if err != nil {
		_ = kv.Close()
		return nil, err
	}
	// release tears down everything opened so far when wiring fails
	release := func() {
		_ = session.Release()
		_ = kv.Close()
	}
	jobs := localstore.NewActiveJobs(kv, logger)
	pending := localstore.NewPendingBatches(kv, logger)

	client, err := genclient.New(genclient.Options{
		BaseURL:      cfg.Server.BaseURL,
		Token:        cfg.Server.Token,
		HTTPClient:   o.httpClient,
		Clock:        o.clock,
		Jobs:         jobs,
		Logger:       &logger,
		MaxAttempts:  cfg.Generation.MaxAttempts,
		RetryBase:    cfg.RetryBase(),
		PollInterval: cfg.PollInterval(),
		PollTimeout:  cfg.PollTimeout(),
	})
	if err != nil {
		release()
		return nil, err
	}

	board := queue.NewBoard(o.clock)
	seq, err := queue.NewSequencer(queue.Options{
		Generator:   client,
		Persister:   &BackendPersister{Client: client},
		Pending:     pending,
		Owner:       session.ID,
		Board:       board,
		Clock:       o.clock,
		Logger:      &logger,
		UnitDelay:   cfg.UnitDelay(),
		OnBatchDone: o.onBatchDone,
	})
	if err != nil {
		release()
		return nil, err
	}
	agent, err := recovery.NewAgent(recovery.Options{
		Jobs:      jobs,
		Pending:   pending,
		Owner:     session.ID,
		Alive:     sessions.Alive,
		Poller:    client,
		Board:     board,
		Lister:    client,
		Sequencer: seq,
		Logger:    &logger,
	})
	if err != nil {
		seq.Close()
		release()
		return nil, err
	}

	return &Studio{
		cfg:     *cfg,
		logger:  logger,
		kv:      kv,
		session: session,
		jobs:    jobs,
		pending: pending,
		client:  client,
		board:   board,
		seq:     seq,
		agent:   agent,
	}, nil
}

func (s *Studio) Board() *queue.Board { return s.board }

func (s *Studio) Client() *genclient.Client { return s.client }

func (s *Studio) Jobs() *localstore.ActiveJobs { return s.jobs }

// Recover resumes jobs and batches left by an earlier session.
func (s *Studio) Recover(ctx context.Context) (recovery.Summary, error) {
	return s.agent.Run(ctx)
}

// Submit enqueues one batch.
func (s *Studio) Submit(ctx context.Context, req domain.GenerationRequest) (string, error) {
	return s.seq.Submit(ctx, req)
}

// Run recovers first and then submits req.
func (s *Studio) Run(ctx context.Context, req domain.GenerationRequest) (string, error) {
	if _, err := s.Recover(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("studio: recovery failed")
	}
	return s.Submit(ctx, req)
}

// Wait blocks until queued batches and recovered jobs have all finished.
func (s *Studio) Wait() {
	s.seq.Wait()
	s.agent.Wait()
}

// Stop cancels the running batch. Jobs it already handed to the proxy stay in
// the active set and the units that never ran stay pending.
func (s *Studio) Stop() {
	s.seq.Close()
}

// Close stops the session and releases the local store. Unfinished batches
// become claimable by the next session that recovers.
func (s *Studio) Close() error {
	s.closeOnce.Do(func() {
		s.seq.Close()
		if err := s.session.Release(); err != nil {
			s.logger.Warn().Err(err).Msg("studio: failed to release session lock")
		}
		s.closeErr = s.kv.Close()
	})
	return s.closeErr
}

// PrepareReferences turns file paths and URLs into reference assets. Files are
// compressed; URLs pass through untouched.
func (s *Studio) PrepareReferences(inputs []string) ([]domain.ReferenceAsset, error) {
	return PrepareReferences(inputs, refimage.Options{
		MaxDimension:   s.cfg.References.MaxDimension,
		MaxBytes:       s.cfg.References.MaxBytes,
		InitialQuality: s.cfg.References.InitialQuality,
		QualityStep:    s.cfg.References.QualityStep,
		MinQuality:     s.cfg.References.MinQuality,
	}, s.logger)
}

func PrepareReferences(inputs []string, opts refimage.Options, logger zerolog.Logger) ([]domain.ReferenceAsset, error) {
	var refs []domain.ReferenceAsset
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if len(refs) == domain.MaxReferenceAssets {
			return nil, fmt.Errorf("%w: at most %d reference images", domain.ErrInvalidRequest, domain.MaxReferenceAssets)
		}
		if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
			refs = append(refs, domain.ReferenceAsset{URL: input})
			continue
		}
		data, err := os.ReadFile(input)
		if err != nil {
			return nil, fmt.Errorf("read reference %s: %w", input, err)
		}
		res, err := refimage.Compress(data, opts)
		if err != nil {
			return nil, fmt.Errorf("compress reference %s: %w", input, err)
		}
		if res.OverBudget {
			logger.Warn().
				Str("path", input).
				Int("bytes", len(res.Data)).
				Int("quality", res.Quality).
				Msg("studio: reference still over size budget at minimum quality")
		}
		refs = append(refs, domain.ReferenceAsset{Data: res.Data, MIMEType: res.MIMEType})
	}
	return refs, nil
}
