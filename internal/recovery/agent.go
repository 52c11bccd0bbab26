// Package recovery resumes generation work that outlived the previous process.
package recovery

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"genstudio/internal/domain"
	"genstudio/internal/genclient"
	"genstudio/internal/queue"
)

// Poller waits for an accepted job to resolve.
type Poller interface {
	AwaitJob(ctx context.Context, jobID string) (*domain.GenerationResult, error)
}

// JobLister reads the durable active-job set.
type JobLister interface {
	List(ctx context.Context) ([]string, error)
}

// PendingClaimer hands over unfinished batches whose session has ended.
type PendingClaimer interface {
	Claim(ctx context.Context, owner string, alive func(owner string) bool) ([]domain.QueuedBatch, error)
}

// Restorer takes recovered batches back into the queue.
type Restorer interface {
	Restore(ctx context.Context, batches []domain.QueuedBatch) int
}

type Options struct {
	Jobs      JobLister
	Pending   PendingClaimer
	Owner     string
	Alive     func(owner string) bool
	Poller    Poller
	Board     *queue.Board
	Lister    queue.AssetLister
	Sequencer Restorer
	Logger    *zerolog.Logger
}

// Summary reports what Run picked up.
type Summary struct {
	Jobs    int
	Batches int
}

type Agent struct {
	jobs    JobLister
	pending PendingClaimer
	owner   string
	alive   func(string) bool
	poller  Poller
	board   *queue.Board
	lister  queue.AssetLister
	seq     Restorer
	logger  zerolog.Logger
	wg      sync.WaitGroup
}

func NewAgent(opts Options) (*Agent, error) {
	if opts.Jobs == nil || opts.Poller == nil || opts.Board == nil {
		return nil, errors.New("recovery: jobs, poller and board are required")
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Agent{
		jobs:    opts.Jobs,
		pending: opts.Pending,
		owner:   opts.Owner,
		alive:   opts.Alive,
		poller:  opts.Poller,
		board:   opts.Board,
		lister:  opts.Lister,
		seq:     opts.Sequencer,
		logger:  logger,
	}, nil
}

// Run puts a placeholder on the board for every stored job id and polls each
// one in its own goroutine. Pending batches left by sessions that are gone are
// claimed and handed to the sequencer.
// Run returns once polling has started; use Wait to block on resolution.
func (a *Agent) Run(ctx context.Context) (Summary, error) {
	var summary Summary
	ids, err := a.jobs.List(ctx)
	if err != nil {
		return summary, err
	}
	for _, id := range ids {
		slot := a.board.AddRecovered(id)
		a.wg.Add(1)
		go a.resolve(ctx, id, slot)
	}
	summary.Jobs = len(ids)
	if len(ids) > 0 {
		a.logger.Info().Int("jobs", len(ids)).Msg("recovery: resuming active jobs")
	}

	if a.pending != nil && a.seq != nil {
		batches, err := a.pending.Claim(ctx, a.owner, a.alive)
		if err != nil {
			a.logger.Warn().Err(err).Msg("recovery: failed to claim pending batches")
		} else if len(batches) > 0 {
			summary.Batches = a.seq.Restore(ctx, batches)
			a.logger.Info().Int("batches", summary.Batches).Msg("recovery: restored pending batches")
		}
	}
	return summary, nil
}

func (a *Agent) resolve(ctx context.Context, jobID, slot string) {
	defer a.wg.Done()
	log := a.logger.With().Str("job_id", jobID).Logger()

	result, err := a.poller.AwaitJob(ctx, jobID)
	if ctx.Err() != nil {
		// the job is still in the durable set; the next run picks it up
		return
	}

	switch {
	case err == nil:
		_ = a.board.Advance(slot, queue.EventSucceed, "")
		a.board.RemovePlaceholder(slot)
		if result != nil {
			a.board.PrependAsset(result.Asset)
		}
		log.Info().Msg("recovery: job resolved")
	case errors.Is(err, genclient.ErrTimedOut):
		_ = a.board.Advance(slot, queue.EventTimeOut, "")
		a.board.RemovePlaceholder(slot)
		a.board.AddBanner(queue.BannerError, err.Error())
		log.Warn().Msg("recovery: job timed out")
	default:
		_ = a.board.Advance(slot, queue.EventFail, "")
		a.board.RemovePlaceholder(slot)
		a.board.AddBanner(queue.BannerError, err.Error())
		log.Warn().Err(err).Msg("recovery: job failed")
	}

	if a.lister != nil {
		if err := a.board.Refresh(ctx, a.lister); err != nil {
			log.Warn().Err(err).Msg("recovery: gallery refresh failed")
		}
	}
}

// Wait blocks until every recovered job has resolved.
func (a *Agent) Wait() {
	a.wg.Wait()
}
