package genai

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"
	"strings"

	"genstudio/internal/domain"
)

func (c *Client) syntheticImage(req ImageRequest) *Image {
	width, height := dimensionsFor(req.AspectRatio, req.ImageSize)
	seed := deterministicSeed(req.Prompt, req.AspectRatio, req.ImageSize, len(req.References))
	data := renderSyntheticImage(width, height, seed)

	c.logger.Debug().
		Str("request_id", req.RequestID).
		Str("seed", seed).
		Int("width", width).
		Int("height", height).
		Msg("genai: generated synthetic image")

	return &Image{Data: data, MIMEType: "image/png", Width: width, Height: height}
}

// dimensionsFor maps ratio and size to pixel bounds; the long edge follows the size.
func dimensionsFor(aspect domain.AspectRatio, size domain.ImageSize) (int, int) {
	long := 1024
	switch size {
	case domain.ImageSize2K:
		long = 2048
	case domain.ImageSize4K:
		long = 4096
	}
	a, b := 1, 1
	if left, right, ok := strings.Cut(string(aspect), ":"); ok {
		x, errX := strconv.Atoi(strings.TrimSpace(left))
		y, errY := strconv.Atoi(strings.TrimSpace(right))
		if errX == nil && errY == nil && x > 0 && y > 0 {
			a, b = x, y
		}
	}
	if a >= b {
		return long, long * b / a
	}
	return long * a / b, long
}

func renderSyntheticImage(width, height int, seed string) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	base := colorFromSeed(seed, 0)
	accent := colorFromSeed(seed, 1)
	draw.Draw(img, img.Bounds(), &image.Uniform{base}, image.Point{}, draw.Src)

	stripeHeight := max(32, height/12)
	for y := 0; y < height; y += stripeHeight * 2 {
		stripe := image.Rect(0, y, width, min(height, y+stripeHeight))
		draw.Draw(img, stripe, &image.Uniform{accent}, image.Point{}, draw.Over)
	}

	diagonal := colorFromSeed(seed, 2)
	step := max(16, width/32)
	for x := 0; x < width; x += step {
		for y := 0; y < height && x+y < width; y++ {
			img.Set(x+y, y, diagonal)
		}
	}

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}

func colorFromSeed(seed string, shift int) color.RGBA {
	if len(seed) < 6 {
		seed = "000000"
	}
	doubled := seed + seed
	start := (shift * 6) % len(seed)
	segment := doubled[start : start+6]
	return color.RGBA{R: hexByte(segment[0:2]), G: hexByte(segment[2:4]), B: hexByte(segment[4:6]), A: 255}
}

func hexByte(s string) uint8 {
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0
	}
	return uint8(v)
}

func deterministicSeed(parts ...any) string {
	hasher := sha256.New()
	for _, part := range parts {
		fmt.Fprintf(hasher, "%v|", part)
	}
	return hex.EncodeToString(hasher.Sum(nil))[:16]
}
