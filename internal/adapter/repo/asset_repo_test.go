package repo

import (
	"context"
	"testing"
	"time"

	"genstudio/internal/domain"
)

func TestAssetRepositoryInsert(t *testing.T) {
	created := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	db := &stubDB{row: func(string, []any) stubRow {
		return stubRow{scan: func(dest ...any) error {
			return assign(dest, "asset-1", created)
		}}
	}}
	in := &domain.Asset{
		UserID:      "user-1",
		URL:         "http://localhost:8080/static/uploads/user-1/x.png",
		Prompt:      "a red balloon",
		AspectRatio: domain.AspectSquare,
		ImageSize:   domain.ImageSize1K,
		Properties:  map[string]any{"country": "ID"},
	}
	out, err := NewAssetRepository(db).Insert(context.Background(), in)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if out.ID != "asset-1" || !out.CreatedAt.Equal(created) || out.Prompt != "a red balloon" {
		t.Fatalf("out = %+v", out)
	}
	if in.ID != "" {
		t.Fatalf("input mutated: %+v", in)
	}
	args := db.last().args
	if args[11] != `{"country":"ID"}` {
		t.Fatalf("properties arg = %#v", args[11])
	}
}

func TestAssetRepositoryListBindsScopeAndPage(t *testing.T) {
	created := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	db := &stubDB{rows: [][]any{
		{"a-2", "user-1", "", "u2", "", "image/png", int64(10), 0, 0, "p2", "16:9", "2K", []byte(`{}`), created},
		{"a-1", "user-1", "job-1", "u1", "k1", "image/png", int64(20), 64, 64, "p1", "1:1", "1K", nil, created},
	}}
	assets, err := NewAssetRepository(db).List(context.Background(), domain.AssetScopeMine, "user-1", domain.Page{Number: 2, Size: 500})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(assets) != 2 || assets[0].ID != "a-2" || assets[1].JobID != "job-1" {
		t.Fatalf("assets = %+v", assets)
	}
	if assets[0].AspectRatio != domain.Aspect16x9 || assets[1].Width != 64 {
		t.Fatalf("fields not mapped: %+v", assets)
	}
	args := db.last().args
	if args[0] != "mine" || args[1] != "user-1" || args[2] != domain.MaxPageSize || args[3] != domain.MaxPageSize {
		t.Fatalf("args = %#v", args)
	}
}
