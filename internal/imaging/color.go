package imaging

import (
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/image-roi-mcp/internal/calibration"
)

// RGBColor represents an RGB color with 8-bit components.
type RGBColor struct {
	R uint8 `json:"r"` // Red component (0-255)
	G uint8 `json:"g"` // Green component (0-255)
	B uint8 `json:"b"` // Blue component (0-255)
}

// RGBAColor represents an RGBA color with 8-bit components including alpha.
//
// The alpha component represents opacity:
//   - 0 = fully transparent
//   - 255 = fully opaque
type RGBAColor struct {
	R uint8 `json:"r"` // Red component (0-255)
	G uint8 `json:"g"` // Green component (0-255)
	B uint8 `json:"b"` // Blue component (0-255)
	A uint8 `json:"a"` // Alpha/opacity component (0-255)
}

// HSLColor represents a color in HSL (Hue, Saturation, Lightness) color space.
type HSLColor struct {
	H int `json:"h"` // Hue: 0-360 degrees (0=red, 120=green, 240=blue)
	S int `json:"s"` // Saturation: 0-100 percent (0=gray, 100=vivid)
	L int `json:"l"` // Lightness: 0-100 percent (0=black, 50=normal, 100=white)
}

// ColorResult contains a color value in multiple representations.
type ColorResult struct {
	Hex  string    `json:"hex"`  // Hex format "#RRGGBB" (no alpha)
	RGB  RGBColor  `json:"rgb"`  // RGB components
	RGBA RGBAColor `json:"rgba"` // RGBA components with alpha
	HSL  HSLColor  `json:"hsl"`  // HSL representation
}

// SampleColor extracts the display color at a specific pixel coordinate.
//
// Parameters:
//   - img: The source image to sample from.
//   - x, y: Pixel coordinates in the image's own coordinate space.
//
// Returns:
//   - *ColorResult: The color at (x, y) in multiple formats.
//   - error: Non-nil if coordinates are outside the image bounds.
//
// # Color Conversion
//
// The native color is converted to 8-bit components; 16-bit images are
// scaled down by right-shifting 8 bits. Hex and HSL come from go-colorful and
// exclude alpha; use RGBA.A to get transparency information.
func SampleColor(img image.Image, x, y int) (*ColorResult, error) {
	if !(image.Point{X: x, Y: y}).In(img.Bounds()) {
		return nil, fmt.Errorf("coordinates (%d,%d) outside image bounds", x, y)
	}

	r, g, b, a := img.At(x, y).RGBA()
	r8, g8, b8, a8 := uint8(r>>8), uint8(g>>8), uint8(b>>8), uint8(a>>8)

	c := colorful.Color{R: float64(r8) / 255, G: float64(g8) / 255, B: float64(b8) / 255}
	h, s, l := c.Hsl()
	if math.IsNaN(h) {
		h = 0
	}

	return &ColorResult{
		Hex:  strings.ToUpper(c.Hex()),
		RGB:  RGBColor{R: r8, G: g8, B: b8},
		RGBA: RGBAColor{R: r8, G: g8, B: b8, A: a8},
		HSL:  HSLColor{H: int(h), S: int(s * 100), L: int(l * 100)},
	}, nil
}

// PixelSample is the value probe at one pixel: raw band values, the same
// values after the calibration rescale, and the display color.
type PixelSample struct {
	X      int          `json:"x"`
	Y      int          `json:"y"`
	Bands  []string     `json:"bands"`
	Raw    []float64    `json:"raw"`
	Values []float64    `json:"values"`
	Unit   string       `json:"unit,omitempty"`
	Color  *ColorResult `json:"color"`
}

// SamplePixel probes raster and img at (x, y). Band values are rescaled
// with cal; Unit is the calibration's value unit.
func SamplePixel(raster *Raster, img image.Image, x, y int, cal calibration.Calibration) (*PixelSample, error) {
	raw, ok := raster.Values(x, y)
	if !ok {
		return nil, fmt.Errorf("coordinates (%d,%d) outside image bounds", x, y)
	}
	color, err := SampleColor(img, x, y)
	if err != nil {
		return nil, err
	}
	values := make([]float64, len(raw))
	for i, v := range raw {
		values[i] = cal.Value(v)
	}
	return &PixelSample{
		X:      x,
		Y:      y,
		Bands:  raster.BandNames(),
		Raw:    raw,
		Values: values,
		Unit:   cal.ValueUnit,
		Color:  color,
	}, nil
}
