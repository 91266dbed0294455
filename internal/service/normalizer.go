package service

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"

	"github.com/einsatzpix/gallery-api/pkg/config"

	// Decoder registrations beyond imaging's built-in formats.
	_ "github.com/jdeng/goheif"
	_ "golang.org/x/image/webp"
)

// maxDecodePixels caps the decoded size. A small highly-compressed file can
// claim gigapixel dimensions in its header; the cap rejects it before the
// pixel buffer is allocated.
const maxDecodePixels = 75_000_000

// Normalizer produces the delivery rendition of an uploaded image: display
// orientation applied, transparency flattened onto white, fitted into the
// configured box without upscaling, encoded as lossy WebP.
type Normalizer struct {
	maxWidth  int
	maxHeight int
	quality   float32
}

// NewNormalizer constructs a normalizer with defaults for unset values.
func NewNormalizer(cfg config.ImageConfig) *Normalizer {
	if cfg.MaxWidth <= 0 {
		cfg.MaxWidth = 1280
	}
	if cfg.MaxHeight <= 0 {
		cfg.MaxHeight = 720
	}
	if cfg.WebPQuality <= 0 || cfg.WebPQuality > 100 {
		cfg.WebPQuality = 75
	}
	return &Normalizer{
		maxWidth:  cfg.MaxWidth,
		maxHeight: cfg.MaxHeight,
		quality:   float32(cfg.WebPQuality),
	}
}

// Probe decodes the source and returns its dimensions after orientation
// correction. The error is the decoder's; callers map it to a domain error.
func (n *Normalizer) Probe(sourcePath string) (int, int, error) {
	if err := checkPixelCount(sourcePath); err != nil {
		return 0, 0, err
	}
	img, err := imaging.Open(sourcePath, imaging.AutoOrientation(true))
	if err != nil {
		return 0, 0, err
	}
	bounds := img.Bounds()
	return bounds.Dx(), bounds.Dy(), nil
}

// checkPixelCount reads only the header and rejects images whose claimed
// dimensions exceed the decode cap.
func checkPixelCount(sourcePath string) error {
	file, err := os.Open(sourcePath)
	if err != nil {
		return err
	}
	defer file.Close() //nolint:errcheck

	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		return err
	}
	if cfg.Width*cfg.Height > maxDecodePixels {
		return fmt.Errorf("image dimensions %dx%d exceed %d pixel limit", cfg.Width, cfg.Height, maxDecodePixels)
	}
	return nil
}

// Normalize returns the encoded rendition bytes; the caller persists them.
func (n *Normalizer) Normalize(sourcePath string) ([]byte, error) {
	img, err := imaging.Open(sourcePath, imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}

	flat := n.flatten(img)
	flat = n.fit(flat)

	var buf bytes.Buffer
	if err := webp.Encode(&buf, flat, &webp.Options{Quality: n.quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// flatten composites the image over an opaque white background. Opaque
// sources pass through the overlay unchanged, which also gives them a
// plain 8-bit RGB representation.
func (n *Normalizer) flatten(img image.Image) *image.NRGBA {
	bounds := img.Bounds()
	background := imaging.New(bounds.Dx(), bounds.Dy(), color.White)
	return imaging.Overlay(background, img, image.Pt(0, 0), 1.0)
}

// fit scales the image down to the bounding box, never up.
func (n *Normalizer) fit(img *image.NRGBA) *image.NRGBA {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	scale := math.Min(float64(n.maxWidth)/float64(w), float64(n.maxHeight)/float64(h))
	if scale >= 1.0 {
		return img
	}
	return imaging.Resize(img, int(float64(w)*scale), int(float64(h)*scale), imaging.Lanczos)
}
