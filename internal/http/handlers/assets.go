package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"genstudio/internal/domain"
	"genstudio/internal/middleware"
)

type createAssetRequest struct {
	URL         string `json:"url"`
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspectRatio"`
	ImageSize   string `json:"imageSize"`
	JobID       string `json:"jobId"`
	MIMEType    string `json:"mimeType"`
	StorageKey  string `json:"storageKey"`
}

type assetView struct {
	ID          string         `json:"id"`
	URL         string         `json:"url"`
	Prompt      string         `json:"prompt"`
	AspectRatio string         `json:"aspectRatio"`
	ImageSize   string         `json:"imageSize"`
	JobID       string         `json:"jobId,omitempty"`
	MIMEType    string         `json:"mimeType,omitempty"`
	UserID      string         `json:"userId"`
	Properties  map[string]any `json:"properties,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

type assetListResponse struct {
	Items    []assetView `json:"items"`
	Page     int         `json:"page"`
	PageSize int         `json:"pageSize"`
}

func newAssetView(a domain.Asset) assetView {
	return assetView{
		ID:          a.ID,
		URL:         a.URL,
		Prompt:      a.Prompt,
		AspectRatio: string(a.AspectRatio),
		ImageSize:   string(a.ImageSize),
		JobID:       a.JobID,
		MIMEType:    a.MIME,
		UserID:      a.UserID,
		Properties:  a.Properties,
		CreatedAt:   a.CreatedAt,
	}
}

// CreateAsset handles POST /api/assets.
func (a *App) CreateAsset(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req createAssetRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	asset := domain.Asset{
		UserID:      userID,
		JobID:       strings.TrimSpace(req.JobID),
		URL:         strings.TrimSpace(req.URL),
		StorageKey:  strings.TrimSpace(req.StorageKey),
		MIME:        strings.TrimSpace(req.MIMEType),
		Prompt:      strings.TrimSpace(req.Prompt),
		AspectRatio: domain.AspectRatio(strings.TrimSpace(req.AspectRatio)),
		ImageSize:   domain.ImageSize(strings.ToUpper(strings.TrimSpace(req.ImageSize))),
	}
	if asset.URL == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "url is required")
		return
	}
	if asset.AspectRatio == "" {
		asset.AspectRatio = domain.DefaultAspectRatio
	}
	if asset.ImageSize == "" {
		asset.ImageSize = domain.DefaultImageSize
	}
	if !asset.AspectRatio.Valid() || !asset.ImageSize.Valid() {
		a.error(w, http.StatusBadRequest, "bad_request", "unsupported aspect ratio or image size")
		return
	}
	if country := a.countryFor(r); country != "" {
		asset.Properties = map[string]any{"country": country}
	}

	saved, err := a.Assets.Insert(r.Context(), &asset)
	if err != nil {
		a.log().Error().Err(err).Str("user_id", userID).Msg("assets: insert failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to save asset")
		return
	}
	a.json(w, http.StatusCreated, newAssetView(*saved))
}

// ListAssets handles GET /api/assets. Scope mine is bound to the token subject.
func (a *App) ListAssets(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	q := r.URL.Query()
	scope := domain.ParseAssetScope(q.Get("scope"))
	page := domain.Page{Number: atoiOr(q.Get("page"), 1), Size: atoiOr(q.Get("page_size"), domain.DefaultPageSize)}.Normalize()

	assets, err := a.Assets.List(r.Context(), scope, userID, page)
	if err != nil {
		a.log().Error().Err(err).Str("scope", string(scope)).Msg("assets: list failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load assets")
		return
	}
	items := make([]assetView, 0, len(assets))
	for _, asset := range assets {
		items = append(items, newAssetView(asset))
	}
	a.json(w, http.StatusOK, assetListResponse{Items: items, Page: page.Number, PageSize: page.Size})
}

func (a *App) countryFor(r *http.Request) string {
	if a.GeoIP == nil {
		return ""
	}
	ip := middleware.ClientIP(r)
	code, err := a.GeoIP.CountryCode(ip)
	if err != nil {
		a.log().Debug().Err(err).Str("ip", ip).Msg("assets: geoip lookup failed")
		return ""
	}
	return code
}

func atoiOr(v string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return n
}
