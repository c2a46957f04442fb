package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/image-roi-mcp/internal/stats"
)

// CropResult contains the cropped image data
type CropResult struct {
	X           int    `json:"x"`
	Y           int    `json:"y"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Pixels      int    `json:"pixels"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// Crop extracts a rectangular region from an image
func Crop(img image.Image, r image.Rectangle, scale float64) (*CropResult, error) {
	bounds := img.Bounds()
	if !r.In(bounds) {
		return nil, fmt.Errorf("crop region %v outside image bounds %v", r, bounds)
	}
	if r.Empty() {
		return nil, fmt.Errorf("invalid crop region: x1 must be < x2, y1 must be < y2")
	}
	cropped := imaging.Crop(img, r)
	return encode(cropped, r, r.Dx()*r.Dy(), scale)
}

// CropShape extracts the bounding box of region from img. Pixels outside
// the region are made fully transparent.
func CropShape(img image.Image, region stats.Region, scale float64) (*CropResult, error) {
	r := region.PixelBounds().Intersect(img.Bounds())
	if r.Empty() {
		return nil, fmt.Errorf("region %v does not overlap the image", region.PixelBounds())
	}

	cropped := imaging.Crop(img, r)
	inside := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if region.ContainsPixel(x, y) {
				inside++
				continue
			}
			cropped.SetNRGBA(x-r.Min.X, y-r.Min.Y, color.NRGBA{})
		}
	}
	return encode(cropped, r, inside, scale)
}

func encode(cropped *image.NRGBA, r image.Rectangle, pixels int, scale float64) (*CropResult, error) {
	if scale != 1.0 && scale > 0 {
		newWidth := int(float64(cropped.Bounds().Dx()) * scale)
		newHeight := int(float64(cropped.Bounds().Dy()) * scale)
		if newWidth < 1 {
			newWidth = 1
		}
		if newHeight < 1 {
			newHeight = 1
		}
		cropped = imaging.Resize(cropped, newWidth, newHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, cropped); err != nil {
		return nil, fmt.Errorf("failed to encode cropped image: %w", err)
	}

	return &CropResult{
		X:           r.Min.X,
		Y:           r.Min.Y,
		Width:       cropped.Bounds().Dx(),
		Height:      cropped.Bounds().Dy(),
		Pixels:      pixels,
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}
