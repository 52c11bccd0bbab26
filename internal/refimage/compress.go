// Package refimage shrinks reference images before they are attached to a
// generation request.
package refimage

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	DefaultMaxDimension   = 1536
	DefaultMaxBytes       = 1 << 20
	DefaultInitialQuality = 85
	DefaultQualityStep    = 10
	DefaultMinQuality     = 40
)

// ErrEmptyImage is returned for zero-length input.
var ErrEmptyImage = errors.New("refimage: empty image")

// Options bounds the output. Zero fields take the package defaults.
type Options struct {
	MaxDimension   int
	MaxBytes       int
	InitialQuality int
	QualityStep    int
	MinQuality     int
}

func (o Options) withDefaults() Options {
	if o.MaxDimension <= 0 {
		o.MaxDimension = DefaultMaxDimension
	}
	if o.MaxBytes <= 0 {
		o.MaxBytes = DefaultMaxBytes
	}
	if o.InitialQuality <= 0 || o.InitialQuality > 100 {
		o.InitialQuality = DefaultInitialQuality
	}
	if o.QualityStep <= 0 {
		o.QualityStep = DefaultQualityStep
	}
	if o.MinQuality <= 0 {
		o.MinQuality = DefaultMinQuality
	}
	if o.MinQuality > o.InitialQuality {
		o.MinQuality = o.InitialQuality
	}
	return o
}

// Result is a JPEG encoding of the input.
type Result struct {
	Data     []byte
	Quality  int
	Width    int
	Height   int
	MIMEType string
	// OverBudget is set when even the minimum quality exceeds MaxBytes.
	OverBudget bool
	Format     string
}

// Compress decodes data, scales it so the longest side fits MaxDimension and
// re-encodes it as JPEG at the highest quality step that fits MaxBytes.
func Compress(data []byte, opts Options) (*Result, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	opts = opts.withDefaults()

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("refimage: decode: %w", err)
	}
	img := flatten(scale(src, opts.MaxDimension))
	bounds := img.Bounds()

	var buf bytes.Buffer
	quality := opts.InitialQuality
	for {
		buf.Reset()
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("refimage: encode: %w", err)
		}
		if buf.Len() <= opts.MaxBytes || quality <= opts.MinQuality {
			break
		}
		quality -= opts.QualityStep
		if quality < opts.MinQuality {
			quality = opts.MinQuality
		}
	}

	return &Result{
		Data:       append([]byte(nil), buf.Bytes()...),
		Quality:    quality,
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
		MIMEType:   "image/jpeg",
		OverBudget: buf.Len() > opts.MaxBytes,
		Format:     format,
	}, nil
}

func scale(src image.Image, maxDim int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		return src
	}
	nw, nh := maxDim, maxDim
	if w >= h {
		nh = max(1, h*maxDim/w)
	} else {
		nw = max(1, w*maxDim/h)
	}
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

// flatten composites transparent pixels onto white since JPEG has no alpha.
func flatten(src image.Image) image.Image {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	return dst
}
