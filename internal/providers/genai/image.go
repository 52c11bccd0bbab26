package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strings"

	_ "golang.org/x/image/webp"

	"genstudio/internal/domain"
)

// ImageRequest is one single-image generation call.
type ImageRequest struct {
	Prompt      string
	AspectRatio domain.AspectRatio
	ImageSize   domain.ImageSize
	References  []domain.ReferenceAsset
	RequestID   string
}

// Image is the decoded upstream output.
type Image struct {
	Data     []byte
	MIMEType string
	Width    int
	Height   int
}

// ErrNoImage is returned when the upstream answered without image parts.
var ErrNoImage = errors.New("genai: response contained no image")

// GenerateImage produces exactly one image for the request.
func (c *Client) GenerateImage(ctx context.Context, req ImageRequest) (*Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, &StatusError{Code: http.StatusBadRequest, Message: "prompt is required"}
	}

	if c.apiKey == "" {
		return c.syntheticImage(req), nil
	}

	parts := []geminiPart{{Text: req.Prompt}}
	for i, ref := range req.References {
		part, err := c.referencePart(ctx, ref)
		if err != nil {
			return nil, &StatusError{Code: http.StatusBadRequest, Message: fmt.Sprintf("reference %d: %v", i+1, err)}
		}
		parts = append(parts, part)
	}

	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{{Role: "user", Parts: parts}},
		GenerationConfig: &geminiGenerationConfig{
			CandidateCount:     1,
			ResponseModalities: []string{"IMAGE"},
			ImageConfig: &geminiImageConfig{
				AspectRatio: string(req.AspectRatio),
				ImageSize:   string(req.ImageSize),
			},
		},
	}

	var response geminiGenerateContentResponse
	if err := c.invokeGemini(ctx, c.imageModel, payload, &response); err != nil {
		return nil, err
	}

	for _, candidate := range response.Candidates {
		for _, part := range candidate.Content.Parts {
			img, err := c.decodeInlineImage(ctx, part)
			if err != nil {
				c.logger.Warn().Err(err).Str("request_id", req.RequestID).Msg("genai: skipping undecodable part")
				continue
			}
			if img == nil {
				continue
			}
			c.logger.Debug().
				Str("request_id", req.RequestID).
				Str("model", c.imageModel).
				Int("bytes", len(img.Data)).
				Msg("genai: generated remote image")
			return img, nil
		}
	}

	reason := ""
	if response.PromptFeedback != nil {
		reason = response.PromptFeedback.BlockReason
	}
	if reason == "" && len(response.Candidates) > 0 {
		reason = response.Candidates[0].FinishReason
	}
	if reason != "" {
		return nil, fmt.Errorf("%w (%s)", ErrNoImage, reason)
	}
	return nil, ErrNoImage
}

func (c *Client) referencePart(ctx context.Context, ref domain.ReferenceAsset) (geminiPart, error) {
	data, mime := ref.Data, ref.MIMEType
	if ref.IsURL() {
		blob, contentType, err := c.downloadFile(ctx, ref.URL)
		if err != nil {
			return geminiPart{}, err
		}
		data, mime = blob, firstNonEmpty(mime, contentType)
	}
	if len(data) == 0 {
		return geminiPart{}, errors.New("empty image")
	}
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(data)
	}
	return geminiPart{InlineData: &geminiInlineData{
		MimeType: mime,
		Data:     base64.StdEncoding.EncodeToString(data),
	}}, nil
}

func (c *Client) decodeInlineImage(ctx context.Context, part geminiPart) (*Image, error) {
	var (
		data []byte
		mime string
	)
	switch {
	case part.InlineData != nil && part.InlineData.Data != "":
		decoded, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
		if err != nil {
			return nil, fmt.Errorf("decode inline data: %w", err)
		}
		data, mime = decoded, part.InlineData.MimeType
	case part.FileData != nil && part.FileData.FileURI != "":
		blob, contentType, err := c.downloadFile(ctx, part.FileData.FileURI)
		if err != nil {
			return nil, err
		}
		data, mime = blob, firstNonEmpty(part.FileData.MimeType, contentType)
	default:
		return nil, nil
	}
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mime, "image/") {
		return nil, nil
	}
	w, h := decodeImageDimensions(data)
	return &Image{Data: data, MIMEType: mime, Width: w, Height: h}, nil
}

func decodeImageDimensions(data []byte) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}
