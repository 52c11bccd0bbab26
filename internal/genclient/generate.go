package genclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"genstudio/internal/domain"
)

type referenceImage struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generateRequest struct {
	Prompt             string           `json:"prompt"`
	AspectRatio        string           `json:"aspectRatio"`
	ImageSize          string           `json:"imageSize"`
	ReferenceImages    []referenceImage `json:"referenceImages,omitempty"`
	ReferenceImageURLs []string         `json:"referenceImageUrls,omitempty"`
}

type generateResponse struct {
	ImageData string `json:"imageData"`
	ImageURL  string `json:"imageUrl"`
	MimeType  string `json:"mimeType"`
	JobID     string `json:"jobId"`
}

type statusResponse struct {
	Status      string `json:"status"`
	ImageURL    string `json:"imageUrl"`
	ImageData   string `json:"imageData"`
	MimeType    string `json:"mimeType"`
	AssetID     string `json:"assetId"`
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspectRatio"`
	ImageSize   string `json:"imageSize"`
	Error       string `json:"error"`
}

func buildGenerateRequest(req domain.GenerationRequest) generateRequest {
	out := generateRequest{
		Prompt:      req.Prompt,
		AspectRatio: string(req.AspectRatio),
		ImageSize:   string(req.ImageSize),
	}
	for _, ref := range req.ReferenceAssets {
		if ref.IsURL() {
			out.ReferenceImageURLs = append(out.ReferenceImageURLs, strings.TrimSpace(ref.URL))
			continue
		}
		mime := ref.MIMEType
		if mime == "" {
			mime = http.DetectContentType(ref.Data)
		}
		out.ReferenceImages = append(out.ReferenceImages, referenceImage{
			MimeType: mime,
			Data:     base64.StdEncoding.EncodeToString(ref.Data),
		})
	}
	return out
}

// Generate performs one generation call for req, ignoring its batch size.
// Rate limited and unavailable answers are retried with doubling delays.
// When the proxy accepts the call asynchronously, onAccepted receives the job
// id after it has been recorded durably, and the call blocks until the job
// resolves.
func (c *Client) Generate(ctx context.Context, req domain.GenerationRequest, onAccepted func(jobID string)) (*domain.GenerationResult, error) {
	payload, err := json.Marshal(buildGenerateRequest(req))
	if err != nil {
		return nil, fmt.Errorf("marshal generate request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := c.retryBase << (attempt - 2)
			c.logger.Warn().
				Err(lastErr).
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("genclient: retrying generation")
			if err := c.clock.Sleep(ctx, delay); err != nil {
				return nil, err
			}
		}
		result, err := c.generateOnce(ctx, req, payload, onAccepted)
		if err == nil {
			return result, nil
		}
		if !IsRetryable(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (c *Client) generateOnce(ctx context.Context, req domain.GenerationRequest, payload []byte, onAccepted func(string)) (*domain.GenerationResult, error) {
	httpReq, err := c.newRequest(ctx, http.MethodPost, "/api/generate", bytes.NewReader(payload), "application/json")
	if err != nil {
		return nil, err
	}
	status, body, err := c.do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	switch status {
	case http.StatusOK:
		var resp generateResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("decode generate response: %w", err)
		}
		result, err := c.resultFromPayload(resp.ImageData, resp.ImageURL, resp.MimeType)
		if err != nil {
			return nil, err
		}
		if result == nil {
			return nil, fmt.Errorf("%w: response carried no image", domain.ErrProviderFailure)
		}
		fillAsset(result, req)
		return result, nil
	case http.StatusAccepted:
		var resp generateResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("decode accepted response: %w", err)
		}
		jobID := strings.TrimSpace(resp.JobID)
		if jobID == "" {
			return nil, fmt.Errorf("%w: accepted response without job id", domain.ErrProviderFailure)
		}
		if c.jobs != nil {
			if err := c.jobs.Add(ctx, jobID); err != nil {
				c.logger.Warn().Err(err).Str("job_id", jobID).Msg("genclient: failed to record active job")
			}
		}
		if onAccepted != nil {
			onAccepted(jobID)
		}
		result, err := c.AwaitJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		fillAsset(result, req)
		return result, nil
	default:
		return nil, newStatusError(status, body)
	}
}

// AwaitJob polls the status endpoint until jobID resolves or the poll timeout
// elapses. The id is removed from the active set on every outcome except
// cancellation of ctx, which leaves it for a later recovery.
func (c *Client) AwaitJob(ctx context.Context, jobID string) (*domain.GenerationResult, error) {
	deadline := c.clock.Now().Add(c.pollTimeout)
	log := c.logger.With().Str("job_id", jobID).Logger()

	for {
		if err := c.clock.Sleep(ctx, c.pollInterval); err != nil {
			return nil, err
		}
		result, done, err := c.pollOnce(ctx, jobID)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if done {
			c.forget(ctx, jobID)
			if err != nil {
				log.Info().Err(err).Msg("genclient: job failed")
				return nil, err
			}
			return result, nil
		}
		if err != nil {
			log.Debug().Err(err).Msg("genclient: transient poll failure")
		}
		if !c.clock.Now().Before(deadline) {
			c.forget(ctx, jobID)
			log.Warn().Dur("timeout", c.pollTimeout).Msg("genclient: polling timed out")
			return nil, ErrTimedOut
		}
	}
}

func (c *Client) forget(ctx context.Context, jobID string) {
	if c.jobs == nil {
		return
	}
	if err := c.jobs.Remove(context.WithoutCancel(ctx), jobID); err != nil {
		c.logger.Warn().Err(err).Str("job_id", jobID).Msg("genclient: failed to clear active job")
	}
}

// pollOnce reports done=true when the answer is terminal.
func (c *Client) pollOnce(ctx context.Context, jobID string) (*domain.GenerationResult, bool, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/generate/status/"+url.PathEscape(jobID), nil, "")
	if err != nil {
		return nil, true, err
	}
	status, body, err := c.do(req)
	if err != nil {
		return nil, false, err
	}

	switch status {
	case http.StatusOK:
		var resp statusResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, false, fmt.Errorf("decode status: %w", err)
		}
		result, err := c.resultFromPayload(resp.ImageData, resp.ImageURL, resp.MimeType)
		if err != nil {
			return nil, true, err
		}
		if result != nil {
			result.JobID = jobID
			result.Asset = domain.GeneratedAsset{
				ID:          resp.AssetID,
				URL:         resp.ImageURL,
				Prompt:      resp.Prompt,
				AspectRatio: domain.AspectRatio(resp.AspectRatio),
				ImageSize:   domain.ImageSize(resp.ImageSize),
				JobID:       jobID,
				CreatedAt:   c.clock.Now(),
			}
			return result, true, nil
		}
		if domain.JobStatus(resp.Status) == domain.JobStatusFailed {
			return nil, true, &JobError{JobID: jobID, Message: resp.Error}
		}
		return nil, false, nil
	case http.StatusNotFound:
		return nil, true, ErrJobNotFound
	case http.StatusInternalServerError:
		return nil, true, &JobError{JobID: jobID, Message: errorMessage(body)}
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return nil, false, newStatusError(status, body)
	default:
		return nil, true, newStatusError(status, body)
	}
}

// resultFromPayload returns nil when neither inline data nor a URL is present.
func (c *Client) resultFromPayload(imageData, imageURL, mimeType string) (*domain.GenerationResult, error) {
	imageData = strings.TrimSpace(imageData)
	imageURL = strings.TrimSpace(imageURL)
	if imageData == "" && imageURL == "" {
		return nil, nil
	}
	result := &domain.GenerationResult{MIMEType: mimeType}
	if imageData != "" {
		data, err := decodeImageData(imageData)
		if err != nil {
			return nil, err
		}
		result.Data = data
		if result.MIMEType == "" {
			result.MIMEType = http.DetectContentType(data)
		}
	}
	result.Asset.URL = imageURL
	result.Asset.CreatedAt = c.clock.Now()
	return result, nil
}

// decodeImageData accepts bare base64 or a data: URL.
func decodeImageData(v string) ([]byte, error) {
	if strings.HasPrefix(v, "data:") {
		if idx := strings.Index(v, ","); idx >= 0 {
			v = v[idx+1:]
		}
	}
	data, err := base64.StdEncoding.DecodeString(v)
	if err != nil {
		return nil, errors.Join(domain.ErrProviderFailure, fmt.Errorf("decode image data: %w", err))
	}
	return data, nil
}

func fillAsset(result *domain.GenerationResult, req domain.GenerationRequest) {
	if result.Asset.Prompt == "" {
		result.Asset.Prompt = req.Prompt
	}
	if result.Asset.AspectRatio == "" {
		result.Asset.AspectRatio = req.AspectRatio
	}
	if result.Asset.ImageSize == "" {
		result.Asset.ImageSize = req.ImageSize
	}
}
