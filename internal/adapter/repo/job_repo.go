package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/internal/sqlinline"
)

// JobRepositoryPG implements domain.JobRepository over generation_jobs.
type JobRepositoryPG struct {
	db infra.SQLExecutor
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(db infra.SQLExecutor) *JobRepositoryPG {
	return &JobRepositoryPG{db: db}
}

// Create inserts a queued job and returns its id.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) (string, error) {
	if job == nil {
		return "", errors.New("job is required")
	}
	var id string
	err := r.db.QueryRow(ctx, sqlinline.QInsertGenerationJob,
		job.UserID,
		job.Prompt,
		string(job.AspectRatio),
		string(job.ImageSize),
		nullableJSON(job.References),
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert generation job: %w", err)
	}
	job.ID = id
	job.Status = domain.JobStatusQueued
	return id, nil
}

// GetForUser returns the job only when userID owns it.
func (r *JobRepositoryPG) GetForUser(ctx context.Context, jobID, userID string) (*domain.Job, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return nil, domain.ErrNotFound
	}
	var (
		job        domain.Job
		status     string
		aspect     string
		size       string
		refs       []byte
		resultJSON []byte
	)
	err := r.db.QueryRow(ctx, sqlinline.QSelectGenerationJobForUser, jobID, userID).Scan(
		&job.ID,
		&job.UserID,
		&status,
		&job.Prompt,
		&aspect,
		&size,
		&refs,
		&resultJSON,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("select generation job: %w", err)
	}
	job.Status = domain.JobStatus(status)
	job.AspectRatio = domain.AspectRatio(aspect)
	job.ImageSize = domain.ImageSize(size)
	job.References = json.RawMessage(refs)
	if len(resultJSON) > 0 {
		var result domain.JobResult
		if err := json.Unmarshal(resultJSON, &result); err != nil {
			return nil, fmt.Errorf("decode job result: %w", err)
		}
		job.Result = &result
	}
	return &job, nil
}

// ClaimNext moves the oldest queued job to running. It returns domain.ErrNotFound when the queue is empty.
func (r *JobRepositoryPG) ClaimNext(ctx context.Context) (*domain.Job, error) {
	var (
		job    domain.Job
		status string
		aspect string
		size   string
		refs   []byte
	)
	err := r.db.QueryRow(ctx, sqlinline.QClaimNextGenerationJob).Scan(
		&job.ID,
		&job.UserID,
		&status,
		&job.Prompt,
		&aspect,
		&size,
		&refs,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("claim generation job: %w", err)
	}
	job.Status = domain.JobStatus(status)
	job.AspectRatio = domain.AspectRatio(aspect)
	job.ImageSize = domain.ImageSize(size)
	job.References = json.RawMessage(refs)
	return &job, nil
}

func (r *JobRepositoryPG) MarkSucceeded(ctx context.Context, jobID string, result domain.JobResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode job result: %w", err)
	}
	if _, err := r.db.Exec(ctx, sqlinline.QMarkGenerationJobSucceeded, jobID, string(payload)); err != nil {
		return fmt.Errorf("mark job succeeded: %w", err)
	}
	return nil
}

func (r *JobRepositoryPG) MarkFailed(ctx context.Context, jobID, message string) error {
	if _, err := r.db.Exec(ctx, sqlinline.QMarkGenerationJobFailed, jobID, message); err != nil {
		return fmt.Errorf("mark job failed: %w", err)
	}
	return nil
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
