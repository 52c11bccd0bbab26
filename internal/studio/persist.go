package studio

import (
	"context"
	"fmt"

	"genstudio/internal/domain"
	"genstudio/internal/genclient"
)

// BackendPersister uploads inline image bytes and records the asset row.
type BackendPersister struct {
	Client *genclient.Client
}

func (p *BackendPersister) Persist(ctx context.Context, result *domain.GenerationResult) (domain.GeneratedAsset, error) {
	in := genclient.AssetInput{
		URL:         result.Asset.URL,
		Prompt:      result.Asset.Prompt,
		AspectRatio: result.Asset.AspectRatio,
		ImageSize:   result.Asset.ImageSize,
		JobID:       result.JobID,
		MIMEType:    result.MIMEType,
	}
	if len(result.Data) > 0 {
		upload, err := p.Client.UploadImage(ctx, result.Data, result.MIMEType)
		if err != nil {
			return domain.GeneratedAsset{}, fmt.Errorf("upload image: %w", err)
		}
		in.URL = upload.URL
		in.StorageKey = upload.StorageKey
	}
	if in.URL == "" {
		return domain.GeneratedAsset{}, fmt.Errorf("%w: result has neither data nor url", domain.ErrInvalidRequest)
	}
	asset, err := p.Client.SaveAsset(ctx, in)
	if err != nil {
		return domain.GeneratedAsset{}, fmt.Errorf("save asset: %w", err)
	}
	return asset.Gallery(), nil
}
