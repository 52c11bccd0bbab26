package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"genstudio/internal/storage"
)

const maxUploadBytes = 10 << 20

type uploadResponse struct {
	URL        string `json:"url"`
	StorageKey string `json:"storageKey"`
}

// Upload handles POST /api/uploads with a raw image body.
func (a *App) Upload(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.error(w, http.StatusRequestEntityTooLarge, "too_large", "upload exceeds 10 MiB")
			return
		}
		a.error(w, http.StatusBadRequest, "bad_request", "failed to read body")
		return
	}
	if len(data) == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "empty upload")
		return
	}
	contentType := uploadContentType(r.Header.Get("Content-Type"), data)
	if !strings.HasPrefix(contentType, "image/") {
		a.error(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "only images can be uploaded")
		return
	}

	key := "uploads/" + safeSegment(userID) + "/" + uuid.NewString() + storage.ExtensionFor(contentType)
	obj, err := a.Store.Put(r.Context(), key, data)
	if err != nil {
		a.log().Error().Err(err).Str("user_id", userID).Msg("upload: store failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to store upload")
		return
	}
	a.json(w, http.StatusCreated, uploadResponse{URL: obj.URL, StorageKey: obj.Key})
}

func uploadContentType(header string, data []byte) string {
	if mt, _, err := mime.ParseMediaType(header); err == nil && mt != "application/octet-stream" {
		return mt
	}
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	return mt
}

// safeSegment keeps a user id usable as one path segment.
func safeSegment(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "anonymous"
	}
	return b.String()
}
