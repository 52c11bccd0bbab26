package domain

import (
	"fmt"
	"strings"
	"time"
)

// AspectRatio enumerates the output ratios accepted by the generation proxy.
type AspectRatio string

const (
	AspectSquare    AspectRatio = "1:1"
	AspectPortrait  AspectRatio = "2:3"
	AspectLandscape AspectRatio = "3:2"
	Aspect3x4       AspectRatio = "3:4"
	Aspect4x3       AspectRatio = "4:3"
	Aspect4x5       AspectRatio = "4:5"
	Aspect5x4       AspectRatio = "5:4"
	Aspect9x16      AspectRatio = "9:16"
	Aspect16x9      AspectRatio = "16:9"
	Aspect21x9      AspectRatio = "21:9"
)

// AspectRatios lists every supported ratio in display order.
var AspectRatios = []AspectRatio{
	AspectSquare, AspectPortrait, AspectLandscape, Aspect3x4, Aspect4x3,
	Aspect4x5, Aspect5x4, Aspect9x16, Aspect16x9, Aspect21x9,
}

// Valid reports whether the ratio is one of the supported values.
func (a AspectRatio) Valid() bool {
	for _, candidate := range AspectRatios {
		if a == candidate {
			return true
		}
	}
	return false
}

// ImageSize enumerates the output resolutions.
type ImageSize string

const (
	ImageSize1K ImageSize = "1K"
	ImageSize2K ImageSize = "2K"
	ImageSize4K ImageSize = "4K"
)

// Valid reports whether the size is supported.
func (s ImageSize) Valid() bool {
	switch s {
	case ImageSize1K, ImageSize2K, ImageSize4K:
		return true
	default:
		return false
	}
}

const (
	// MaxReferenceAssets caps the reference images attached to one request.
	MaxReferenceAssets = 6
	// MaxBatchSize caps the images produced by one submission.
	MaxBatchSize = 8
	// DefaultAspectRatio is applied when a request omits the ratio.
	DefaultAspectRatio = AspectSquare
	// DefaultImageSize is applied when a request omits the size.
	DefaultImageSize = ImageSize1K
)

// ReferenceAsset is a conditioning image, either inline bytes or a remote URL.
type ReferenceAsset struct {
	URL      string `json:"url,omitempty"`
	Data     []byte `json:"data,omitempty"`
	MIMEType string `json:"mimeType,omitempty"`
}

// IsURL reports whether the reference points at a remote image instead of carrying bytes.
func (r ReferenceAsset) IsURL() bool {
	return len(r.Data) == 0 && strings.TrimSpace(r.URL) != ""
}

// GenerationRequest describes one submission. It must not be mutated once enqueued.
type GenerationRequest struct {
	Prompt          string           `json:"prompt"`
	AspectRatio     AspectRatio      `json:"aspectRatio"`
	ImageSize       ImageSize        `json:"imageSize"`
	ReferenceAssets []ReferenceAsset `json:"referenceAssets,omitempty"`
	BatchSize       int              `json:"batchSize"`
}

// Normalize trims the prompt and applies defaults for omitted fields.
func (r *GenerationRequest) Normalize() {
	if r == nil {
		return
	}
	r.Prompt = strings.TrimSpace(r.Prompt)
	r.AspectRatio = AspectRatio(strings.TrimSpace(string(r.AspectRatio)))
	if r.AspectRatio == "" {
		r.AspectRatio = DefaultAspectRatio
	}
	r.ImageSize = ImageSize(strings.ToUpper(strings.TrimSpace(string(r.ImageSize))))
	if r.ImageSize == "" {
		r.ImageSize = DefaultImageSize
	}
	if r.BatchSize == 0 {
		r.BatchSize = 1
	}
}

// Validate checks the request against the generation contract.
func (r GenerationRequest) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return fmt.Errorf("%w: prompt is required", ErrInvalidPrompt)
	}
	if !r.AspectRatio.Valid() {
		return fmt.Errorf("%w: unsupported aspect ratio %q", ErrInvalidRequest, r.AspectRatio)
	}
	if !r.ImageSize.Valid() {
		return fmt.Errorf("%w: unsupported image size %q", ErrInvalidRequest, r.ImageSize)
	}
	if len(r.ReferenceAssets) > MaxReferenceAssets {
		return fmt.Errorf("%w: at most %d reference images", ErrInvalidRequest, MaxReferenceAssets)
	}
	for i, ref := range r.ReferenceAssets {
		if len(ref.Data) == 0 && strings.TrimSpace(ref.URL) == "" {
			return fmt.Errorf("%w: reference %d is empty", ErrInvalidRequest, i+1)
		}
	}
	if r.BatchSize < 1 || r.BatchSize > MaxBatchSize {
		return fmt.Errorf("%w: batch size must be between 1 and %d", ErrInvalidRequest, MaxBatchSize)
	}
	return nil
}

// Clone returns a deep copy so the queued request cannot be altered by the caller.
func (r GenerationRequest) Clone() GenerationRequest {
	out := r
	if r.ReferenceAssets != nil {
		out.ReferenceAssets = make([]ReferenceAsset, len(r.ReferenceAssets))
		for i, ref := range r.ReferenceAssets {
			out.ReferenceAssets[i] = ReferenceAsset{
				URL:      ref.URL,
				Data:     append([]byte(nil), ref.Data...),
				MIMEType: ref.MIMEType,
			}
		}
	}
	return out
}

// QueuedBatch is a submission waiting for the sequencer. Owner names the
// session that holds it; Completed counts units that already ran.
type QueuedBatch struct {
	ID         string            `json:"id"`
	Request    GenerationRequest `json:"request"`
	EnqueuedAt time.Time         `json:"enqueuedAt"`
	Owner      string            `json:"owner,omitempty"`
	Completed  int               `json:"completed,omitempty"`
}

// Remaining returns the request with the units that already ran removed.
// ok is false when nothing is left to run.
func (b QueuedBatch) Remaining() (req GenerationRequest, ok bool) {
	req = b.Request
	if b.Completed <= 0 {
		return req, true
	}
	size := req.BatchSize
	if size < 1 {
		size = 1
	}
	if b.Completed >= size {
		return req, false
	}
	req.BatchSize = size - b.Completed
	return req, true
}

// GeneratedAsset is a finished image as shown in the gallery.
type GeneratedAsset struct {
	ID          string      `json:"id,omitempty"`
	URL         string      `json:"url,omitempty"`
	Prompt      string      `json:"prompt"`
	AspectRatio AspectRatio `json:"aspectRatio"`
	ImageSize   ImageSize   `json:"imageSize"`
	JobID       string      `json:"jobId,omitempty"`
	CreatedAt   time.Time   `json:"createdAt,omitempty"`
}

// GenerationResult is the outcome of a single generation call.
type GenerationResult struct {
	Asset    GeneratedAsset
	Data     []byte
	MIMEType string
	JobID    string
}

// Persisted reports whether the asset already has a server-side identity.
func (r GenerationResult) Persisted() bool {
	return strings.TrimSpace(r.Asset.ID) != ""
}
