package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"genstudio/internal/domain"
	"genstudio/internal/storage"
	"genstudio/pkg/zip"
)

type assetDownloader interface {
	Download(ctx context.Context, url string) ([]byte, string, error)
}

// exportGallery downloads each asset and writes them as one zip at path.
func exportGallery(ctx context.Context, dl assetDownloader, assets []domain.Asset, path string) (int, error) {
	entries := make([]zip.Entry, 0, len(assets))
	for i, a := range assets {
		data, mimeType, err := dl.Download(ctx, a.URL)
		if err != nil {
			return 0, fmt.Errorf("download %s: %w", a.ID, err)
		}
		if a.MIME != "" {
			mimeType = a.MIME
		}
		name := a.ID
		if name == "" {
			name = fmt.Sprintf("image-%02d", i+1)
		}
		entries = append(entries, zip.Entry{
			Filename:    name + storage.ExtensionFor(mimeType),
			MIME:        mimeType,
			Prompt:      a.Prompt,
			AspectRatio: string(a.AspectRatio),
			ImageSize:   string(a.ImageSize),
			SourceURL:   a.URL,
			CreatedAt:   a.CreatedAt,
			Data:        data,
		})
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return 0, err
	}
	if err := zip.WriteArchive(f, entries); err != nil {
		f.Close()
		os.Remove(tmp)
		return 0, err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return 0, err
	}
	return len(entries), os.Rename(tmp, path)
}
