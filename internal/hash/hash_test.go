package hash

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSha256Hex(t *testing.T) {
	// Fixed vectors: sha256 of "" and "abc".
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		Sha256Hex(nil))
	assert.Equal(t,
		"ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		Sha256Hex([]byte("abc")))
}

func TestSha256Hex_ContentAddressed(t *testing.T) {
	a := Sha256Hex([]byte("same bytes"))
	b := Sha256Hex([]byte("same bytes"))
	c := Sha256Hex([]byte("other bytes"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestSupportsBlurhash(t *testing.T) {
	assert.True(t, SupportsBlurhash("image/jpeg"))
	assert.True(t, SupportsBlurhash("image/png"))
	assert.True(t, SupportsBlurhash("image/gif"))
	assert.True(t, SupportsBlurhash("image/webp"))

	assert.False(t, SupportsBlurhash("video/mp4"))
	assert.False(t, SupportsBlurhash("application/octet-stream"))
	assert.False(t, SupportsBlurhash(""))
}

// encodePNG renders a small gradient image as PNG bytes.
func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(x * 255 / max(width-1, 1)),
				G: uint8(y * 255 / max(height-1, 1)),
				B: 128,
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestBlurhash(t *testing.T) {
	data := encodePNG(t, 32, 32)

	hash, err := Blurhash(data)
	require.NoError(t, err)
	assert.NotEmpty(t, hash)

	// Same bytes, same hash.
	again, err := Blurhash(data)
	require.NoError(t, err)
	assert.Equal(t, hash, again)
}

func TestBlurhash_LargeImageIsResized(t *testing.T) {
	data := encodePNG(t, 300, 120)

	hash, err := Blurhash(data)
	require.NoError(t, err)
	assert.NotEmpty(t, hash)
}

func TestBlurhash_InvalidData(t *testing.T) {
	_, err := Blurhash([]byte("definitely not an image"))
	assert.Error(t, err)
}

func TestResizeForBlurHash(t *testing.T) {
	tests := []struct {
		name       string
		w, h       int
		wantW      int
		wantH      int
	}{
		{name: "small image untouched", w: 40, h: 30, wantW: 40, wantH: 30},
		{name: "wide image capped at width", w: 640, h: 320, wantW: 64, wantH: 32},
		{name: "tall image capped at height", w: 320, h: 640, wantW: 32, wantH: 64},
		{name: "extreme aspect floors at one", w: 6400, h: 10, wantW: 64, wantH: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := image.NewRGBA(image.Rect(0, 0, tt.w, tt.h))
			resized := resizeForBlurHash(img)

			bounds := resized.Bounds()
			assert.Equal(t, tt.wantW, bounds.Dx())
			assert.Equal(t, tt.wantH, bounds.Dy())
		})
	}
}
