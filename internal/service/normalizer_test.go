package service

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/einsatzpix/gallery-api/pkg/config"
)

func savePNG(t *testing.T, img image.Image) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.png")
	require.NoError(t, imaging.Save(img, path))
	return path
}

func decodeWebP(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, format, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, "webp", format)
	return img
}

func TestNormalizeDownscalesToBox(t *testing.T) {
	n := NewNormalizer(config.ImageConfig{})
	src := savePNG(t, imaging.New(2560, 1440, color.NRGBA{R: 30, G: 90, B: 160, A: 255}))

	out, err := n.Normalize(src)
	require.NoError(t, err)

	img := decodeWebP(t, out)
	assert.Equal(t, 1280, img.Bounds().Dx())
	assert.Equal(t, 720, img.Bounds().Dy())
}

func TestNormalizeNeverExceedsBox(t *testing.T) {
	n := NewNormalizer(config.ImageConfig{})
	cases := []struct{ w, h int }{
		{4000, 1000},
		{1000, 4000},
		{1281, 721},
		{5000, 5000},
	}
	for _, tc := range cases {
		src := savePNG(t, imaging.New(tc.w, tc.h, color.NRGBA{R: 200, G: 50, B: 50, A: 255}))
		out, err := n.Normalize(src)
		require.NoError(t, err)
		img := decodeWebP(t, out)
		assert.LessOrEqual(t, img.Bounds().Dx(), 1280)
		assert.LessOrEqual(t, img.Bounds().Dy(), 720)
	}
}

func TestNormalizeNeverUpscales(t *testing.T) {
	n := NewNormalizer(config.ImageConfig{})
	src := savePNG(t, imaging.New(200, 150, color.NRGBA{R: 10, G: 120, B: 10, A: 255}))

	out, err := n.Normalize(src)
	require.NoError(t, err)

	img := decodeWebP(t, out)
	assert.Equal(t, 200, img.Bounds().Dx())
	assert.Equal(t, 150, img.Bounds().Dy())
}

func TestNormalizeFlattensTransparency(t *testing.T) {
	n := NewNormalizer(config.ImageConfig{})
	src := savePNG(t, image.NewNRGBA(image.Rect(0, 0, 120, 120)))

	out, err := n.Normalize(src)
	require.NoError(t, err)

	img := decodeWebP(t, out)
	r, g, b, _ := img.At(60, 60).RGBA()
	// Fully transparent input should come out white (lossy encode tolerance).
	assert.Greater(t, r>>8, uint32(240))
	assert.Greater(t, g>>8, uint32(240))
	assert.Greater(t, b>>8, uint32(240))
}

// hugeDimensionPNG writes a valid PNG signature and IHDR chunk claiming the
// given dimensions, with no pixel data behind it.
func hugeDimensionPNG(t *testing.T, w, h uint32) string {
	t.Helper()
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], w)
	binary.BigEndian.PutUint32(ihdr[4:8], h)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 2 // truecolor

	var buf bytes.Buffer
	buf.Write([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'})
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(ihdr)))
	buf.Write(length[:])
	buf.WriteString("IHDR")
	buf.Write(ihdr)
	var sum [4]byte
	binary.BigEndian.PutUint32(sum[:], crc32.ChecksumIEEE(append([]byte("IHDR"), ihdr...)))
	buf.Write(sum[:])

	path := filepath.Join(t.TempDir(), "huge.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestProbeRejectsExcessivePixelCount(t *testing.T) {
	n := NewNormalizer(config.ImageConfig{})

	// 400 megapixels claimed by a file a few dozen bytes long.
	_, _, err := n.Probe(hugeDimensionPNG(t, 20000, 20000))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pixel limit")
}

func TestNormalizeRejectsNonImage(t *testing.T) {
	n := NewNormalizer(config.ImageConfig{})
	path := filepath.Join(t.TempDir(), "not-an-image.jpg")
	require.NoError(t, os.WriteFile(path, []byte("definitely not pixels"), 0o644))

	_, err := n.Normalize(path)
	require.Error(t, err)

	_, _, err = n.Probe(path)
	require.Error(t, err)
}

func TestProbeReturnsDimensions(t *testing.T) {
	n := NewNormalizer(config.ImageConfig{})
	src := savePNG(t, imaging.New(321, 123, color.NRGBA{A: 255}))

	w, h, err := n.Probe(src)
	require.NoError(t, err)
	assert.Equal(t, 321, w)
	assert.Equal(t, 123, h)
}
