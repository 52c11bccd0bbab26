package repo

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"genstudio/internal/domain"
)

func TestJobRepositoryCreate(t *testing.T) {
	db := &stubDB{row: func(query string, args []any) stubRow {
		return stubRow{scan: func(dest ...any) error {
			return assign(dest, "8f14e45f-ceea-467f-a8f1-3c3b1f9c0a11")
		}}
	}}
	r := NewJobRepository(db)
	job := &domain.Job{
		UserID:      "user-1",
		Prompt:      "a red balloon",
		AspectRatio: domain.AspectSquare,
		ImageSize:   domain.ImageSize4K,
	}
	id, err := r.Create(context.Background(), job)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id != "8f14e45f-ceea-467f-a8f1-3c3b1f9c0a11" || job.ID != id || job.Status != domain.JobStatusQueued {
		t.Fatalf("job = %+v", job)
	}
	c := db.last()
	if !contains(c.query, "insert into generation_jobs") {
		t.Fatalf("query = %s", c.query)
	}
	if c.args[0] != "user-1" || c.args[3] != "4K" || c.args[4] != nil {
		t.Fatalf("args = %#v", c.args)
	}
}

func TestJobRepositoryGetForUser(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		name       string
		jobID      string
		row        stubRow
		wantErr    error
		wantResult bool
	}{
		{
			name:    "malformed id is not found",
			jobID:   "nope",
			wantErr: domain.ErrNotFound,
		},
		{
			name:    "missing row is not found",
			jobID:   "8f14e45f-ceea-467f-a8f1-3c3b1f9c0a11",
			row:     stubRow{},
			wantErr: domain.ErrNotFound,
		},
		{
			name:  "succeeded job decodes result",
			jobID: "8f14e45f-ceea-467f-a8f1-3c3b1f9c0a11",
			row: stubRow{scan: func(dest ...any) error {
				return assign(dest,
					"8f14e45f-ceea-467f-a8f1-3c3b1f9c0a11", "user-1", "succeeded", "a red balloon", "1:1", "1K",
					[]byte(`[]`), []byte(`{"asset_id":"a-1","image_url":"http://x/a.png","mime_type":"image/png"}`),
					"", now, now)
			}},
			wantResult: true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			db := &stubDB{row: func(string, []any) stubRow { return tc.row }}
			job, err := NewJobRepository(db).GetForUser(context.Background(), tc.jobID, "user-1")
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("err = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetForUser: %v", err)
			}
			if job.Status != domain.JobStatusSucceeded || job.AspectRatio != domain.AspectSquare {
				t.Fatalf("job = %+v", job)
			}
			if tc.wantResult && (job.Result == nil || job.Result.AssetID != "a-1") {
				t.Fatalf("result = %+v", job.Result)
			}
			if db.last().args[1] != "user-1" {
				t.Fatalf("owner not bound: %#v", db.last().args)
			}
		})
	}
}

func TestJobRepositoryClaimNextEmpty(t *testing.T) {
	db := &stubDB{}
	if _, err := NewJobRepository(db).ClaimNext(context.Background()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if !contains(db.last().query, "for update skip locked") {
		t.Fatalf("claim query does not skip locked rows")
	}
}

func TestJobRepositoryMarkSucceededEncodesResult(t *testing.T) {
	db := &stubDB{}
	r := NewJobRepository(db)
	err := r.MarkSucceeded(context.Background(), "job-1", domain.JobResult{AssetID: "a-1", ImageURL: "u", MIMEType: "image/png"})
	if err != nil {
		t.Fatalf("MarkSucceeded: %v", err)
	}
	var decoded map[string]string
	if err := json.Unmarshal([]byte(db.last().args[1].(string)), &decoded); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if decoded["asset_id"] != "a-1" || decoded["image_url"] != "u" {
		t.Fatalf("payload = %v", decoded)
	}

	db.execErr = errors.New("conn reset")
	if err := r.MarkFailed(context.Background(), "job-1", "boom"); err == nil {
		t.Fatalf("expected MarkFailed error")
	}
}
