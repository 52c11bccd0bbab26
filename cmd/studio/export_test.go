package main

import (
	"archive/zip"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"genstudio/internal/domain"
)

type stubDownloader struct {
	files map[string][]byte
}

func (s stubDownloader) Download(_ context.Context, url string) ([]byte, string, error) {
	data, ok := s.files[url]
	if !ok {
		return nil, "", errors.New("missing")
	}
	return data, "image/png", nil
}

func TestExportGallery(t *testing.T) {
	dl := stubDownloader{files: map[string][]byte{"http://cdn/a": []byte("a"), "http://cdn/b": []byte("b")}}
	assets := []domain.Asset{
		{ID: "a1", URL: "http://cdn/a", Prompt: "cat"},
		{ID: "b1", URL: "http://cdn/b", MIME: "image/jpeg"},
	}
	path := filepath.Join(t.TempDir(), "out", "gallery.zip")
	n, err := exportGallery(context.Background(), dl, assets, path)
	if err != nil || n != 2 {
		t.Fatalf("exportGallery = %d, %v", n, err)
	}
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer zr.Close()
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	want := []string{"a1.png", "b1.jpg", "manifest.json"}
	if len(names) != len(want) {
		t.Fatalf("names = %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names = %v, want %v", names, want)
		}
	}

	if _, err := exportGallery(context.Background(), dl, []domain.Asset{{ID: "x", URL: "http://cdn/missing"}}, path+"2"); err == nil {
		t.Fatal("expected download error")
	}
}
