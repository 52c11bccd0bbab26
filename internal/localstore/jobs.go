package localstore

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"

	"genstudio/internal/domain"
)

const (
	// ActiveJobsKey holds the JSON list of job ids still being polled.
	ActiveJobsKey = "generation.activeJobs"
	// PendingBatchesKey holds the JSON list of batches not yet started.
	PendingBatchesKey = "generation.pendingBatches"
)

// ActiveJobs is the durable set of accepted-but-unresolved job ids.
type ActiveJobs struct {
	kv     KV
	logger zerolog.Logger
}

func NewActiveJobs(kv KV, logger zerolog.Logger) *ActiveJobs {
	return &ActiveJobs{kv: kv, logger: logger}
}

// List returns the stored ids. Corrupt entries read as an empty set.
func (a *ActiveJobs) List(ctx context.Context) ([]string, error) {
	raw, err := a.kv.Get(ctx, ActiveJobsKey)
	if err != nil {
		return nil, err
	}
	return a.decode(raw), nil
}

// Add registers id. Adding an id that is already present is a no-op.
func (a *ActiveJobs) Add(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	return a.kv.Update(ctx, ActiveJobsKey, func(current []byte) ([]byte, error) {
		ids := a.decode(current)
		for _, existing := range ids {
			if existing == id {
				return json.Marshal(ids)
			}
		}
		return json.Marshal(append(ids, id))
	})
}

// Remove deregisters id. The key is dropped once the set is empty.
func (a *ActiveJobs) Remove(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	return a.kv.Update(ctx, ActiveJobsKey, func(current []byte) ([]byte, error) {
		ids := a.decode(current)
		kept := ids[:0]
		for _, existing := range ids {
			if existing != id {
				kept = append(kept, existing)
			}
		}
		if len(kept) == 0 {
			return nil, nil
		}
		return json.Marshal(kept)
	})
}

func (a *ActiveJobs) decode(raw []byte) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		a.logger.Warn().Err(err).Msg("localstore: active job set corrupt, treating as empty")
		return []string{}
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// PendingBatches persists batches that were submitted but have not finished.
// Every write re-reads the stored list and touches only its own entry, so
// several sessions can share one store.
type PendingBatches struct {
	kv     KV
	logger zerolog.Logger
}

func NewPendingBatches(kv KV, logger zerolog.Logger) *PendingBatches {
	return &PendingBatches{kv: kv, logger: logger}
}

// Put inserts batch or replaces the entry with the same id in place.
func (p *PendingBatches) Put(ctx context.Context, batch domain.QueuedBatch) error {
	if strings.TrimSpace(batch.ID) == "" {
		return nil
	}
	return p.kv.Update(ctx, PendingBatchesKey, func(current []byte) ([]byte, error) {
		batches := p.decode(current)
		for i := range batches {
			if batches[i].ID == batch.ID {
				batches[i] = batch
				return json.Marshal(batches)
			}
		}
		return json.Marshal(append(batches, batch))
	})
}

// Remove drops the batch with id. The key is dropped once the list is empty.
func (p *PendingBatches) Remove(ctx context.Context, id string) error {
	return p.kv.Update(ctx, PendingBatchesKey, func(current []byte) ([]byte, error) {
		batches := p.decode(current)
		kept := batches[:0]
		for _, batch := range batches {
			if batch.ID != id {
				kept = append(kept, batch)
			}
		}
		if len(kept) == 0 {
			return nil, nil
		}
		return json.Marshal(kept)
	})
}

// Claim hands owner every batch that has no owner or whose owner is no longer
// alive. Batches held by a live session are left alone.
func (p *PendingBatches) Claim(ctx context.Context, owner string, alive func(owner string) bool) ([]domain.QueuedBatch, error) {
	var claimed []domain.QueuedBatch
	err := p.kv.Update(ctx, PendingBatchesKey, func(current []byte) ([]byte, error) {
		claimed = nil
		batches := p.decode(current)
		if len(batches) == 0 {
			return nil, nil
		}
		for i := range batches {
			holder := batches[i].Owner
			if holder == owner {
				continue
			}
			if holder != "" && alive != nil && alive(holder) {
				continue
			}
			batches[i].Owner = owner
			claimed = append(claimed, batches[i])
		}
		return json.Marshal(batches)
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// Load returns the stored batches in submission order.
func (p *PendingBatches) Load(ctx context.Context) ([]domain.QueuedBatch, error) {
	raw, err := p.kv.Get(ctx, PendingBatchesKey)
	if err != nil {
		return nil, err
	}
	batches := p.decode(raw)
	if len(batches) == 0 {
		return nil, nil
	}
	return batches, nil
}

func (p *PendingBatches) decode(raw []byte) []domain.QueuedBatch {
	if len(raw) == 0 {
		return nil
	}
	var batches []domain.QueuedBatch
	if err := json.Unmarshal(raw, &batches); err != nil {
		p.logger.Warn().Err(err).Msg("localstore: pending batches corrupt, dropping")
		return nil
	}
	return batches
}
