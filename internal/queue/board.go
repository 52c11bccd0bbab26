package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"genstudio/internal/clock"
	"genstudio/internal/domain"
)

// Placeholder stands in for an image that has not arrived yet.
type Placeholder struct {
	ID          string
	BatchID     string
	Unit        int
	Phase       Phase
	JobID       string
	Recovered   bool
	Prompt      string
	AspectRatio domain.AspectRatio
	ImageSize   domain.ImageSize
	CreatedAt   time.Time
}

// Status is the label shown to the user.
func (p Placeholder) Status() string {
	if p.Phase == PhaseQueued || p.Phase == PhaseIdle {
		return "queued"
	}
	return "generating"
}

type BannerLevel string

const (
	BannerError   BannerLevel = "error"
	BannerWarning BannerLevel = "warning"
)

// Banner is a dismissible message.
type Banner struct {
	ID        string
	Level     BannerLevel
	Message   string
	CreatedAt time.Time
}

// AssetLister reads the persisted gallery.
type AssetLister interface {
	ListAssets(ctx context.Context, scope domain.AssetScope, page domain.Page) ([]domain.Asset, error)
}

// Snapshot is a point-in-time copy of the board.
type Snapshot struct {
	Placeholders []Placeholder
	Assets       []domain.GeneratedAsset
	Banners      []Banner
}

// Board is the display list shared by the sequencer and the recovery agent.
type Board struct {
	mu           sync.Mutex
	clock        clock.Clock
	placeholders []Placeholder
	assets       []domain.GeneratedAsset
	banners      []Banner
}

func NewBoard(clk clock.Clock) *Board {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Board{clock: clk}
}

// AddPlaceholders appends one queued placeholder per unit of the batch and
// returns their ids in unit order.
func (b *Board) AddPlaceholders(batch domain.QueuedBatch) []string {
	n := batch.Request.BatchSize
	if n < 1 {
		n = 1
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.clock.Now()
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		phase, _ := Transition(PhaseIdle, EventSubmit)
		p := Placeholder{
			ID:          uuid.NewString(),
			BatchID:     batch.ID,
			Unit:        i,
			Phase:       phase,
			Prompt:      batch.Request.Prompt,
			AspectRatio: batch.Request.AspectRatio,
			ImageSize:   batch.Request.ImageSize,
			CreatedAt:   now,
		}
		b.placeholders = append(b.placeholders, p)
		ids[i] = p.ID
	}
	return ids
}

// AddRecovered adds a polling placeholder for jobID. A job already on the
// board keeps its existing placeholder.
func (b *Board) AddRecovered(jobID string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.placeholders {
		if p.JobID == jobID {
			return p.ID
		}
	}
	p := Placeholder{
		ID:        uuid.NewString(),
		Phase:     PhasePolling,
		JobID:     jobID,
		Recovered: true,
		CreatedAt: b.clock.Now(),
	}
	b.placeholders = append(b.placeholders, p)
	return p.ID
}

// Advance applies ev to the placeholder. jobID is recorded when non-empty.
func (b *Board) Advance(id string, ev Event, jobID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.placeholders {
		if b.placeholders[i].ID != id {
			continue
		}
		next, err := Transition(b.placeholders[i].Phase, ev)
		if err != nil {
			return err
		}
		b.placeholders[i].Phase = next
		if jobID != "" {
			b.placeholders[i].JobID = jobID
		}
		return nil
	}
	return fmt.Errorf("placeholder %s: %w", id, domain.ErrNotFound)
}

// RemovePlaceholder reports whether id was present.
func (b *Board) RemovePlaceholder(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, p := range b.placeholders {
		if p.ID == id {
			b.placeholders = append(b.placeholders[:i], b.placeholders[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveBatch drops every placeholder of the batch and returns how many went.
func (b *Board) RemoveBatch(batchID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.placeholders[:0]
	removed := 0
	for _, p := range b.placeholders {
		if p.BatchID == batchID && !p.Recovered {
			removed++
			continue
		}
		kept = append(kept, p)
	}
	b.placeholders = kept
	return removed
}

// PrependAsset puts asset at the top of the gallery.
func (b *Board) PrependAsset(asset domain.GeneratedAsset) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.assets = append([]domain.GeneratedAsset{asset}, b.assets...)
}

// AddBanner returns the new banner's id.
func (b *Board) AddBanner(level BannerLevel, message string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	banner := Banner{ID: uuid.NewString(), Level: level, Message: message, CreatedAt: b.clock.Now()}
	b.banners = append(b.banners, banner)
	return banner.ID
}

func (b *Board) DismissBanner(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, banner := range b.banners {
		if banner.ID == id {
			b.banners = append(b.banners[:i], b.banners[i+1:]...)
			return true
		}
	}
	return false
}

func (b *Board) Placeholders() []Placeholder {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Placeholder(nil), b.placeholders...)
}

func (b *Board) Assets() []domain.GeneratedAsset {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.GeneratedAsset(nil), b.assets...)
}

func (b *Board) Banners() []Banner {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Banner(nil), b.banners...)
}

func (b *Board) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		Placeholders: append([]Placeholder(nil), b.placeholders...),
		Assets:       append([]domain.GeneratedAsset(nil), b.assets...),
		Banners:      append([]Banner(nil), b.banners...),
	}
}

// Refresh reloads the first gallery page of the user's persisted assets.
// Assets that only exist locally stay on top; placeholders are untouched.
func (b *Board) Refresh(ctx context.Context, lister AssetLister) error {
	rows, err := lister.ListAssets(ctx, domain.AssetScopeMine, domain.Page{Number: 1, Size: domain.DefaultPageSize})
	if err != nil {
		return fmt.Errorf("refresh gallery: %w", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	merged := make([]domain.GeneratedAsset, 0, len(rows)+len(b.assets))
	for _, a := range b.assets {
		if a.ID == "" {
			merged = append(merged, a)
		}
	}
	for _, row := range rows {
		merged = append(merged, row.Gallery())
	}
	b.assets = merged
	return nil
}
