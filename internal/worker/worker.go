// Package worker drains queued generation jobs.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"genstudio/internal/clock"
	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/internal/providers/genai"
	"genstudio/internal/storage"
)

// DefaultPollInterval is used when no interval is configured.
const DefaultPollInterval = 2 * time.Second

// ImageGenerator is the upstream image model.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req genai.ImageRequest) (*genai.Image, error)
}

// BlobStore persists generated bytes.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) (storage.Object, error)
}

// Processor claims one job at a time and records the outcome on the job row.
type Processor struct {
	Jobs         domain.JobRepository
	Assets       domain.AssetRepository
	Generator    ImageGenerator
	Store        BlobStore
	Logger       *infra.Logger
	Clock        clock.Clock
	PollInterval time.Duration
}

func (p *Processor) log() *infra.Logger {
	if p.Logger == nil {
		discard := zerolog.New(io.Discard)
		return &discard
	}
	return p.Logger
}

func (p *Processor) clk() clock.Clock {
	if p.Clock == nil {
		return clock.Real{}
	}
	return p.Clock
}

func (p *Processor) interval() time.Duration {
	if p.PollInterval <= 0 {
		return DefaultPollInterval
	}
	return p.PollInterval
}

// Run polls until ctx is cancelled. An idle queue or a claim error waits one interval.
func (p *Processor) Run(ctx context.Context) error {
	p.log().Info().Dur("poll_interval", p.interval()).Msg("worker: started")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		handled, err := p.RunOnce(ctx)
		if err != nil {
			p.log().Error().Err(err).Msg("worker: failed to claim job")
		}
		if handled && err == nil {
			continue
		}
		if err := p.clk().Sleep(ctx, p.interval()); err != nil {
			return err
		}
	}
}

// RunOnce processes at most one job and reports whether one was claimed.
// Job failures are recorded on the row and do not surface as errors.
func (p *Processor) RunOnce(ctx context.Context) (bool, error) {
	job, err := p.Jobs.ClaimNext(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	p.handle(ctx, job)
	return true, nil
}

func (p *Processor) handle(ctx context.Context, job *domain.Job) {
	logger := p.log().With().Str("job_id", job.ID).Str("user_id", job.UserID).Logger()
	logger.Info().Msg("worker: picked job")
	start := p.clk().Now()

	result, err := p.process(ctx, job)
	if err != nil {
		logger.Error().Err(err).Msg("worker: job failed")
		// The row must leave running even when the parent context is gone.
		if markErr := p.Jobs.MarkFailed(context.WithoutCancel(ctx), job.ID, failureMessage(err)); markErr != nil {
			logger.Error().Err(markErr).Msg("worker: mark failed")
		}
		return
	}
	if err := p.Jobs.MarkSucceeded(context.WithoutCancel(ctx), job.ID, *result); err != nil {
		logger.Error().Err(err).Msg("worker: mark succeeded")
		return
	}
	logger.Info().
		Str("asset_id", result.AssetID).
		Dur("duration", p.clk().Now().Sub(start)).
		Msg("worker: job succeeded")
}

// process generates and stores the image. A failed asset insert still
// succeeds the job with the stored URL; the client saves the asset itself.
func (p *Processor) process(ctx context.Context, job *domain.Job) (*domain.JobResult, error) {
	var refs []domain.ReferenceAsset
	if len(job.References) > 0 && string(job.References) != "null" {
		if err := json.Unmarshal(job.References, &refs); err != nil {
			return nil, fmt.Errorf("decode references: %w", err)
		}
	}

	img, err := p.Generator.GenerateImage(ctx, genai.ImageRequest{
		Prompt:      job.Prompt,
		AspectRatio: job.AspectRatio,
		ImageSize:   job.ImageSize,
		References:  refs,
		RequestID:   job.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("image generation: %w", err)
	}

	key := "generations/" + job.UserID + "/" + job.ID + storage.ExtensionFor(img.MIMEType)
	obj, err := p.Store.Put(ctx, key, img.Data)
	if err != nil {
		return nil, fmt.Errorf("persist image: %w", err)
	}

	asset, err := p.Assets.Insert(ctx, &domain.Asset{
		UserID:      job.UserID,
		JobID:       job.ID,
		URL:         obj.URL,
		StorageKey:  obj.Key,
		MIME:        img.MIMEType,
		Bytes:       obj.Size,
		Width:       img.Width,
		Height:      img.Height,
		Prompt:      job.Prompt,
		AspectRatio: job.AspectRatio,
		ImageSize:   job.ImageSize,
		Properties:  map[string]any{"source": "worker"},
	})
	if err != nil {
		p.log().Warn().
			Err(err).
			Str("job_id", job.ID).
			Str("storage_key", obj.Key).
			Msg("worker: asset insert failed, returning image without asset id")
		return &domain.JobResult{ImageURL: obj.URL, MIMEType: img.MIMEType}, nil
	}
	return &domain.JobResult{AssetID: asset.ID, ImageURL: obj.URL, MIMEType: img.MIMEType}, nil
}

// failureMessage keeps provider messages readable for the status endpoint.
func failureMessage(err error) string {
	var se *genai.StatusError
	if errors.As(err, &se) && strings.TrimSpace(se.Message) != "" {
		return se.Message
	}
	if errors.Is(err, genai.ErrNoImage) {
		return "the model returned no image"
	}
	return truncate(err.Error(), maxFailureMessage)
}

const maxFailureMessage = 500

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
