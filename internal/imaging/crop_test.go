package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ironsheep/image-roi-mcp/internal/shape"
)

func decodeCrop(t *testing.T, result *CropResult) image.Image {
	t.Helper()
	data, err := base64.StdEncoding.DecodeString(result.ImageBase64)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func TestCrop(t *testing.T) {
	img := createPatternImage(100, 100)

	result, err := Crop(img, image.Rect(0, 0, 50, 50), 1.0)
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}

	if result.Width != 50 || result.Height != 50 {
		t.Errorf("dimensions: got %dx%d, want 50x50", result.Width, result.Height)
	}
	if result.MimeType != "image/png" {
		t.Errorf("MimeType: got %s, want image/png", result.MimeType)
	}
	if result.Pixels != 2500 {
		t.Errorf("Pixels: got %d, want 2500", result.Pixels)
	}

	out := decodeCrop(t, result)
	r, g, b, _ := out.At(10, 10).RGBA()
	if r>>8 != 255 || g != 0 || b != 0 {
		t.Errorf("top-left quadrant should be red, got (%d,%d,%d)", r>>8, g>>8, b>>8)
	}
}

func TestCrop_WithScale(t *testing.T) {
	img := createInMemoryImage(100, 100, color.RGBA{255, 0, 0, 255})

	tests := []struct {
		name          string
		rect          image.Rectangle
		scale         float64
		width, height int
	}{
		{"scale up", image.Rect(0, 0, 50, 50), 2.0, 100, 100},
		{"scale down", image.Rect(0, 0, 100, 100), 0.5, 50, 50},
		{"tiny clamps to one pixel", image.Rect(0, 0, 2, 2), 0.1, 1, 1},
		{"zero scale keeps size", image.Rect(10, 10, 30, 20), 0, 20, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Crop(img, tt.rect, tt.scale)
			require.NoError(t, err)
			assert.Equal(t, tt.width, result.Width)
			assert.Equal(t, tt.height, result.Height)
		})
	}
}

func TestCrop_InvalidRegion(t *testing.T) {
	img := createInMemoryImage(100, 100, color.White)

	tests := []struct {
		name string
		rect image.Rectangle
	}{
		{"outside bounds", image.Rect(50, 50, 150, 150)},
		{"negative origin", image.Rect(-10, 0, 10, 10)},
		{"empty", image.Rect(20, 20, 20, 40)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Crop(img, tt.rect, 1.0)
			assert.Error(t, err)
		})
	}
}

func committedShape(t *testing.T, v shape.Variant, pts ...r2.Vec) *shape.Shape {
	t.Helper()
	s := shape.New(v)
	for _, p := range pts {
		require.NoError(t, s.AddHandle(p))
	}
	require.NoError(t, s.BuildGeometry())
	return s
}

func TestCropShape_Rectangle(t *testing.T) {
	img := createInMemoryImage(20, 20, color.RGBA{0, 0, 255, 255})
	s := committedShape(t, shape.VariantRectangle, r2.Vec{X: 2, Y: 2}, r2.Vec{X: 6, Y: 6})

	result, err := CropShape(img, s, 1.0)
	require.NoError(t, err)
	assert.Equal(t, 2, result.X)
	assert.Equal(t, 2, result.Y)
	assert.Equal(t, 5, result.Width)
	assert.Equal(t, 5, result.Height)
	assert.Equal(t, 16, result.Pixels)

	out := decodeCrop(t, result)
	_, _, _, a := out.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), a, "pixel inside the rectangle stays opaque")
	_, _, _, a = out.At(4, 4).RGBA()
	assert.Zero(t, a, "pixel past the far edge is transparent")
}

func TestCropShape_EllipseMasksCorners(t *testing.T) {
	img := createInMemoryImage(40, 40, color.White)
	s := committedShape(t, shape.VariantEllipse, r2.Vec{X: 0, Y: 0}, r2.Vec{X: 20, Y: 20})

	result, err := CropShape(img, s, 1.0)
	require.NoError(t, err)
	assert.Less(t, result.Pixels, 21*21)

	out := decodeCrop(t, result)
	_, _, _, corner := out.At(0, 0).RGBA()
	_, _, _, center := out.At(10, 10).RGBA()
	assert.Zero(t, corner)
	assert.Equal(t, uint32(0xffff), center)
}

func TestCropShape_ClippedToImage(t *testing.T) {
	img := createInMemoryImage(10, 10, color.White)
	s := committedShape(t, shape.VariantRectangle, r2.Vec{X: 5, Y: 5}, r2.Vec{X: 30, Y: 30})

	result, err := CropShape(img, s, 1.0)
	require.NoError(t, err)
	assert.Equal(t, 5, result.Width)
	assert.Equal(t, 5, result.Height)
	assert.Equal(t, 25, result.Pixels)
}

func TestCropShape_NoOverlap(t *testing.T) {
	img := createInMemoryImage(10, 10, color.White)
	s := committedShape(t, shape.VariantRectangle, r2.Vec{X: 50, Y: 50}, r2.Vec{X: 60, Y: 60})

	_, err := CropShape(img, s, 1.0)
	assert.Error(t, err)
}
