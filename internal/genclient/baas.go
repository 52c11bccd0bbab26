package genclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"genstudio/internal/domain"
)

// Upload is the stored location of an uploaded blob.
type Upload struct {
	URL        string `json:"url"`
	StorageKey string `json:"storageKey"`
}

// AssetInput is the metadata recorded for a finished image.
type AssetInput struct {
	URL         string             `json:"url"`
	Prompt      string             `json:"prompt"`
	AspectRatio domain.AspectRatio `json:"aspectRatio"`
	ImageSize   domain.ImageSize   `json:"imageSize"`
	JobID       string             `json:"jobId,omitempty"`
	MIMEType    string             `json:"mimeType,omitempty"`
	StorageKey  string             `json:"storageKey,omitempty"`
}

type assetPayload struct {
	ID          string         `json:"id"`
	URL         string         `json:"url"`
	Prompt      string         `json:"prompt"`
	AspectRatio string         `json:"aspectRatio"`
	ImageSize   string         `json:"imageSize"`
	JobID       string         `json:"jobId"`
	MIMEType    string         `json:"mimeType"`
	UserID      string         `json:"userId"`
	Properties  map[string]any `json:"properties"`
	CreatedAt   time.Time      `json:"createdAt"`
}

func (p assetPayload) toDomain() domain.Asset {
	return domain.Asset{
		ID:          p.ID,
		UserID:      p.UserID,
		JobID:       p.JobID,
		URL:         p.URL,
		MIME:        p.MIMEType,
		Prompt:      p.Prompt,
		AspectRatio: domain.AspectRatio(p.AspectRatio),
		ImageSize:   domain.ImageSize(p.ImageSize),
		Properties:  p.Properties,
		CreatedAt:   p.CreatedAt,
	}
}

// EnhancePrompt asks the proxy to rewrite prompt.
func (c *Client) EnhancePrompt(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", fmt.Errorf("%w: prompt is required", domain.ErrInvalidPrompt)
	}
	var out struct {
		EnhancedPrompt string `json:"enhancedPrompt"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/enhance-prompt", map[string]string{"prompt": prompt}, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.EnhancedPrompt) == "" {
		return prompt, nil
	}
	return out.EnhancedPrompt, nil
}

// UploadImage stores data and returns its public location.
func (c *Client) UploadImage(ctx context.Context, data []byte, mimeType string) (*Upload, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty upload", domain.ErrInvalidRequest)
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/uploads", bytes.NewReader(data), mimeType)
	if err != nil {
		return nil, err
	}
	status, body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return nil, newStatusError(status, body)
	}
	var out Upload
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	return &out, nil
}

// SaveAsset records asset metadata for the current user.
func (c *Client) SaveAsset(ctx context.Context, in AssetInput) (*domain.Asset, error) {
	var out assetPayload
	if err := c.doJSON(ctx, http.MethodPost, "/api/assets", in, &out); err != nil {
		return nil, err
	}
	asset := out.toDomain()
	return &asset, nil
}

// ListAssets returns one page of the gallery, newest first.
func (c *Client) ListAssets(ctx context.Context, scope domain.AssetScope, page domain.Page) ([]domain.Asset, error) {
	page = page.Normalize()
	q := url.Values{}
	q.Set("scope", string(scope))
	q.Set("page", strconv.Itoa(page.Number))
	q.Set("page_size", strconv.Itoa(page.Size))

	var out struct {
		Items []assetPayload `json:"items"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/assets?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	assets := make([]domain.Asset, 0, len(out.Items))
	for _, item := range out.Items {
		assets = append(assets, item.toDomain())
	}
	return assets, nil
}

// maxDownloadBytes bounds a single asset fetch.
const maxDownloadBytes = 32 << 20

// Download fetches a stored image. Relative URLs resolve against the proxy base URL.
func (c *Client) Download(ctx context.Context, rawURL string) ([]byte, string, error) {
	target := strings.TrimSpace(rawURL)
	if target == "" {
		return nil, "", fmt.Errorf("%w: empty asset url", domain.ErrInvalidRequest)
	}
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = c.baseURL + "/" + strings.TrimPrefix(target, "/")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download %s: %w", target, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", target, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", newStatusError(resp.StatusCode, data)
	}
	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	return data, mimeType, nil
}
