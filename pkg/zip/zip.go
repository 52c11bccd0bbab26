// Package zip bundles gallery images with a JSON manifest.
package zip

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Entry is one image plus the metadata written to manifest.json.
type Entry struct {
	Filename    string    `json:"filename"`
	MIME        string    `json:"mimeType"`
	Prompt      string    `json:"prompt"`
	AspectRatio string    `json:"aspectRatio"`
	ImageSize   string    `json:"imageSize"`
	SourceURL   string    `json:"sourceUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	Data        []byte    `json:"-"`
}

// ManifestName is the metadata file stored next to the images.
const ManifestName = "manifest.json"

// WriteArchive writes every entry and the manifest to w.
func WriteArchive(w io.Writer, entries []Entry) error {
	zw := zip.NewWriter(w)
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.Filename == "" || e.Filename == ManifestName || seen[e.Filename] {
			return fmt.Errorf("zip: invalid or duplicate filename %q", e.Filename)
		}
		seen[e.Filename] = true
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: e.Filename, Method: zip.Store, Modified: e.CreatedAt})
		if err != nil {
			return fmt.Errorf("zip: create %s: %w", e.Filename, err)
		}
		if _, err := fw.Write(e.Data); err != nil {
			return fmt.Errorf("zip: write %s: %w", e.Filename, err)
		}
	}
	mw, err := zw.Create(ManifestName)
	if err != nil {
		return fmt.Errorf("zip: create manifest: %w", err)
	}
	enc := json.NewEncoder(mw)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("zip: write manifest: %w", err)
	}
	return zw.Close()
}
