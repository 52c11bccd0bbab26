package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"genstudio/internal/clock"
	"genstudio/internal/domain"
	"genstudio/internal/genclient"
)

// DefaultUnitDelay spaces consecutive calls within one batch.
const DefaultUnitDelay = 2 * time.Second

// Generator performs one generation call.
type Generator interface {
	Generate(ctx context.Context, req domain.GenerationRequest, onAccepted func(jobID string)) (*domain.GenerationResult, error)
}

// Persister stores a finished result and returns the gallery entry for it.
type Persister interface {
	Persist(ctx context.Context, result *domain.GenerationResult) (domain.GeneratedAsset, error)
}

// PendingStore keeps unfinished batches across restarts. A batch stays stored
// until every unit has run.
type PendingStore interface {
	Put(ctx context.Context, batch domain.QueuedBatch) error
	Remove(ctx context.Context, id string) error
}

// BatchOutcome reports how a batch ended. Interrupted batches were cut short
// by Close and remain in the pending store.
type BatchOutcome struct {
	BatchID     string
	Assets      []domain.GeneratedAsset
	Err         error
	Interrupted bool
}

type Options struct {
	Generator   Generator
	Persister   Persister
	Pending     PendingStore
	Owner       string
	Board       *Board
	Clock       clock.Clock
	Logger      *zerolog.Logger
	UnitDelay   time.Duration
	OnBatchDone func(BatchOutcome)
}

// Sequencer drains submitted batches one at a time.
type Sequencer struct {
	gen       Generator
	persister Persister
	pending   PendingStore
	owner     string
	board     *Board
	clock     clock.Clock
	logger    zerolog.Logger
	unitDelay time.Duration
	onDone    func(BatchOutcome)

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	idle        *sync.Cond
	processing  bool
	queue       []domain.QueuedBatch
	slots       map[string][]string
	outstanding int
}

func NewSequencer(opts Options) (*Sequencer, error) {
	if opts.Generator == nil {
		return nil, errors.New("sequencer: generator is required")
	}
	if opts.Board == nil {
		return nil, errors.New("sequencer: board is required")
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	delay := opts.UnitDelay
	if delay < 0 {
		delay = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Sequencer{
		gen:       opts.Generator,
		persister: opts.Persister,
		pending:   opts.Pending,
		owner:     opts.Owner,
		board:     opts.Board,
		clock:     clk,
		logger:    logger,
		unitDelay: delay,
		onDone:    opts.OnBatchDone,
		ctx:       ctx,
		cancel:    cancel,
		slots:     make(map[string][]string),
	}
	s.idle = sync.NewCond(&s.mu)
	return s, nil
}

// Submit validates req and enqueues it as one batch. Placeholders for every
// unit are on the board when Submit returns.
func (s *Sequencer) Submit(ctx context.Context, req domain.GenerationRequest) (string, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return "", err
	}
	batch := domain.QueuedBatch{
		ID:         uuid.NewString(),
		Request:    req.Clone(),
		EnqueuedAt: s.clock.Now(),
	}
	s.enqueue(ctx, batch)
	return batch.ID, nil
}

// Restore re-enqueues batches recovered from durable storage under their
// original ids. Units that already ran are not repeated. Invalid or finished
// entries are dropped from the store.
func (s *Sequencer) Restore(ctx context.Context, batches []domain.QueuedBatch) int {
	var valid []domain.QueuedBatch
	for _, batch := range batches {
		batch.Request.Normalize()
		req, ok := batch.Remaining()
		if !ok {
			s.logger.Info().Str("batch_id", batch.ID).Msg("sequencer: restored batch already ran")
			s.removePending(ctx, batch.ID)
			continue
		}
		if batch.ID == "" || req.Validate() != nil {
			s.logger.Warn().Str("batch_id", batch.ID).Msg("sequencer: dropping unrestorable batch")
			s.removePending(ctx, batch.ID)
			continue
		}
		batch.Request = req
		batch.Completed = 0
		valid = append(valid, batch)
	}
	if len(valid) > 0 {
		s.enqueue(ctx, valid...)
	}
	return len(valid)
}

func (s *Sequencer) enqueue(ctx context.Context, batches ...domain.QueuedBatch) {
	for _, batch := range batches {
		batch.Owner = s.owner
		s.putPending(ctx, batch)
		ids := s.board.AddPlaceholders(batch)
		s.mu.Lock()
		s.slots[batch.ID] = ids
		s.queue = append(s.queue, batch)
		s.outstanding++
		s.mu.Unlock()
		s.logger.Info().
			Str("batch_id", batch.ID).
			Int("units", len(ids)).
			Msg("sequencer: batch queued")
	}
	s.kick()
}

// kick starts the next batch unless one is already running.
func (s *Sequencer) kick() {
	s.mu.Lock()
	if s.processing || len(s.queue) == 0 || s.ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	batch := s.queue[0]
	s.queue = s.queue[1:]
	s.processing = true
	s.mu.Unlock()

	go s.run(batch)
}

func (s *Sequencer) run(batch domain.QueuedBatch) {
	outcome := s.execute(s.ctx, batch)
	if !outcome.Interrupted {
		s.removePending(s.ctx, batch.ID)
	}
	if s.onDone != nil {
		s.onDone(outcome)
	}

	s.mu.Lock()
	delete(s.slots, batch.ID)
	s.processing = false
	s.outstanding--
	s.idle.Broadcast()
	s.mu.Unlock()
	s.kick()
}

func (s *Sequencer) execute(ctx context.Context, batch domain.QueuedBatch) BatchOutcome {
	log := s.logger.With().Str("batch_id", batch.ID).Logger()
	s.mu.Lock()
	slots := s.slots[batch.ID]
	s.mu.Unlock()

	var results []*domain.GenerationResult
	var unitErr error
	interrupted := false
	for unit, slot := range slots {
		if unit > 0 && s.unitDelay > 0 {
			if err := s.clock.Sleep(ctx, s.unitDelay); err != nil {
				unitErr = err
				interrupted = true
				break
			}
		}
		s.advance(slot, EventStart, "")
		accepted := false
		result, err := s.gen.Generate(ctx, batch.Request, func(jobID string) {
			accepted = true
			s.advance(slot, EventAccept, jobID)
			// the active job set owns this unit from here on
			s.markCompleted(ctx, batch, unit+1)
		})
		if err != nil {
			ev := EventFail
			if errors.Is(err, genclient.ErrTimedOut) {
				ev = EventTimeOut
			}
			s.advance(slot, ev, "")
			unitErr = err
			if ctx.Err() != nil {
				interrupted = unit+1 < len(slots) || !accepted
				log.Info().Int("unit", unit).Msg("sequencer: batch interrupted")
				break
			}
			log.Warn().Err(err).Int("unit", unit).Stringer("event", ev).Msg("sequencer: unit failed")
			break
		}
		s.advance(slot, EventSucceed, "")
		results = append(results, result)
		if !accepted {
			s.markCompleted(ctx, batch, unit+1)
		}
	}

	s.board.RemoveBatch(batch.ID)
	// results are kept and saved even when the session is closing
	ctx = context.WithoutCancel(ctx)

	if unitErr != nil && len(results) == 0 {
		if interrupted {
			return BatchOutcome{BatchID: batch.ID, Err: unitErr, Interrupted: true}
		}
		s.board.AddBanner(BannerError, unitErr.Error())
		return BatchOutcome{BatchID: batch.ID, Err: unitErr}
	}
	if unitErr != nil {
		log.Info().
			Int("succeeded", len(results)).
			Int("requested", len(slots)).
			Msg("sequencer: batch stopped early, keeping partial results")
	}

	assets := make([]domain.GeneratedAsset, 0, len(results))
	for _, result := range results {
		asset := s.persist(ctx, result)
		s.board.PrependAsset(asset)
		assets = append(assets, asset)
	}
	outcome := BatchOutcome{BatchID: batch.ID, Assets: assets}
	if interrupted {
		outcome.Err, outcome.Interrupted = unitErr, true
	}
	return outcome
}

func (s *Sequencer) persist(ctx context.Context, result *domain.GenerationResult) domain.GeneratedAsset {
	if result.Persisted() || s.persister == nil {
		return result.Asset
	}
	asset, err := s.persister.Persist(ctx, result)
	if err != nil {
		s.logger.Warn().Err(err).Msg("sequencer: failed to save asset")
		s.board.AddBanner(BannerWarning, "image generated but could not be saved: "+err.Error())
		return result.Asset
	}
	return asset
}

func (s *Sequencer) advance(slot string, ev Event, jobID string) {
	if err := s.board.Advance(slot, ev, jobID); err != nil {
		s.logger.Debug().Err(err).Str("placeholder", slot).Msg("sequencer: placeholder not advanced")
	}
}

func (s *Sequencer) putPending(ctx context.Context, batch domain.QueuedBatch) {
	if s.pending == nil {
		return
	}
	if err := s.pending.Put(context.WithoutCancel(ctx), batch); err != nil {
		s.logger.Warn().Err(err).Str("batch_id", batch.ID).Msg("sequencer: failed to persist pending batch")
	}
}

// markCompleted records that the first n units of batch have run.
func (s *Sequencer) markCompleted(ctx context.Context, batch domain.QueuedBatch, n int) {
	batch.Owner = s.owner
	batch.Completed = n
	s.putPending(ctx, batch)
}

func (s *Sequencer) removePending(ctx context.Context, id string) {
	if s.pending == nil || id == "" {
		return
	}
	if err := s.pending.Remove(context.WithoutCancel(ctx), id); err != nil {
		s.logger.Warn().Err(err).Str("batch_id", id).Msg("sequencer: failed to clear pending batch")
	}
}

// Queued returns the number of batches waiting to start.
func (s *Sequencer) Queued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Wait blocks until every submitted batch has finished.
func (s *Sequencer) Wait() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.outstanding > 0 && !(s.ctx.Err() != nil && !s.processing) {
		s.idle.Wait()
	}
}

// Close cancels the running batch and waits for it to stop. The running batch
// and every batch that never started stay in the pending store.
func (s *Sequencer) Close() {
	s.cancel()
	s.mu.Lock()
	s.idle.Broadcast()
	for s.processing {
		s.idle.Wait()
	}
	s.mu.Unlock()
}
