package domain

import (
	"encoding/json"
	"time"
)

// JobStatus enumerates server-side job lifecycle states.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether the status will not change again.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// Job is an asynchronous generation accepted by the proxy and drained by the worker.
type Job struct {
	ID           string
	UserID       string
	Status       JobStatus
	Prompt       string
	AspectRatio  AspectRatio
	ImageSize    ImageSize
	References   json.RawMessage
	Result       *JobResult
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// JobResult is stored on the job row once the worker finishes.
type JobResult struct {
	AssetID  string `json:"asset_id"`
	ImageURL string `json:"image_url"`
	MIMEType string `json:"mime_type"`
}
