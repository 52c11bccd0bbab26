package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/internal/sqlinline"
)

// AssetRepositoryPG implements domain.AssetRepository using PostgreSQL.
type AssetRepositoryPG struct {
	db infra.SQLExecutor
}

// NewAssetRepository constructs a new asset repository instance.
func NewAssetRepository(db infra.SQLExecutor) *AssetRepositoryPG {
	return &AssetRepositoryPG{db: db}
}

// Insert stores the asset and returns it with the generated id and timestamp.
func (r *AssetRepositoryPG) Insert(ctx context.Context, asset *domain.Asset) (*domain.Asset, error) {
	if asset == nil {
		return nil, errors.New("asset is required")
	}
	var props []byte
	if len(asset.Properties) > 0 {
		encoded, err := json.Marshal(asset.Properties)
		if err != nil {
			return nil, fmt.Errorf("encode asset properties: %w", err)
		}
		props = encoded
	}
	out := *asset
	err := r.db.QueryRow(ctx, sqlinline.QInsertAsset,
		asset.UserID,
		asset.JobID,
		asset.URL,
		asset.StorageKey,
		asset.MIME,
		asset.Bytes,
		asset.Width,
		asset.Height,
		asset.Prompt,
		string(asset.AspectRatio),
		string(asset.ImageSize),
		nullableJSON(props),
	).Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert asset: %w", err)
	}
	return &out, nil
}

// List returns one page of assets, newest first. Scope mine is bound to userID.
func (r *AssetRepositoryPG) List(ctx context.Context, scope domain.AssetScope, userID string, page domain.Page) ([]domain.Asset, error) {
	page = page.Normalize()
	rows, err := r.db.Query(ctx, sqlinline.QListAssets, string(scope), userID, page.Size, page.Offset())
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	assets := make([]domain.Asset, 0, page.Size)
	for rows.Next() {
		var (
			a      domain.Asset
			aspect string
			size   string
			props  []byte
		)
		if err := rows.Scan(
			&a.ID,
			&a.UserID,
			&a.JobID,
			&a.URL,
			&a.StorageKey,
			&a.MIME,
			&a.Bytes,
			&a.Width,
			&a.Height,
			&a.Prompt,
			&aspect,
			&size,
			&props,
			&a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		a.AspectRatio = domain.AspectRatio(aspect)
		a.ImageSize = domain.ImageSize(size)
		if len(props) > 0 {
			if err := json.Unmarshal(props, &a.Properties); err != nil {
				return nil, fmt.Errorf("decode asset properties: %w", err)
			}
		}
		assets = append(assets, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return assets, nil
}

var _ domain.AssetRepository = (*AssetRepositoryPG)(nil)
