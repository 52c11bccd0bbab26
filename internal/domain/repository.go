package domain

import "context"

// JobRepository persists asynchronous generation jobs.
type JobRepository interface {
	Create(ctx context.Context, job *Job) (string, error)
	GetForUser(ctx context.Context, jobID, userID string) (*Job, error)
	ClaimNext(ctx context.Context) (*Job, error)
	MarkSucceeded(ctx context.Context, jobID string, result JobResult) error
	MarkFailed(ctx context.Context, jobID, message string) error
}

// AssetRepository persists gallery rows.
type AssetRepository interface {
	Insert(ctx context.Context, asset *Asset) (*Asset, error)
	List(ctx context.Context, scope AssetScope, userID string, page Page) ([]Asset, error)
}
