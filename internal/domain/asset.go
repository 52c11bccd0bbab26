package domain

import "time"

// AssetScope selects which assets a listing returns.
type AssetScope string

const (
	AssetScopeMine AssetScope = "mine"
	AssetScopeAll  AssetScope = "all"
)

// ParseAssetScope maps free-form input to a scope, defaulting to mine.
func ParseAssetScope(v string) AssetScope {
	if AssetScope(v) == AssetScopeAll {
		return AssetScopeAll
	}
	return AssetScopeMine
}

// Asset is a persisted gallery row.
type Asset struct {
	ID          string
	UserID      string
	JobID       string
	URL         string
	StorageKey  string
	MIME        string
	Bytes       int64
	Width       int
	Height      int
	Prompt      string
	AspectRatio AspectRatio
	ImageSize   ImageSize
	Properties  map[string]any
	CreatedAt   time.Time
}

// Gallery converts the row into the client-facing asset shape.
func (a Asset) Gallery() GeneratedAsset {
	return GeneratedAsset{
		ID:          a.ID,
		URL:         a.URL,
		Prompt:      a.Prompt,
		AspectRatio: a.AspectRatio,
		ImageSize:   a.ImageSize,
		JobID:       a.JobID,
		CreatedAt:   a.CreatedAt,
	}
}

// Page describes a 1-based pagination window.
type Page struct {
	Number int
	Size   int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Normalize clamps the page into the supported window.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

// Offset returns the row offset for the page.
func (p Page) Offset() int {
	n := p.Normalize()
	return (n.Number - 1) * n.Size
}
