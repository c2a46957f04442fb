package imaging

import (
	"fmt"
	"image"
	"strings"

	"github.com/anthonynsimon/bild/clone"
	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
)

// BandMode selects how image pixels map to statistic bands.
type BandMode string

const (
	// ModeAuto reads grayscale images as one band of raw values (8 or 16
	// bit) and everything else as RGB.
	ModeAuto BandMode = "auto"
	// ModeGray reads one luminance band: raw values for grayscale images,
	// 8-bit luma otherwise.
	ModeGray BandMode = "gray"
	// ModeRGB reads three 8-bit bands, not premultiplied by alpha.
	ModeRGB BandMode = "rgb"
	// ModeLab reads CIE L*a*b* (D65) bands.
	ModeLab BandMode = "lab"
)

// ParseBandMode resolves a mode name; the empty string is ModeAuto.
func ParseBandMode(s string) (BandMode, error) {
	switch m := BandMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeAuto, nil
	case ModeAuto, ModeGray, ModeRGB, ModeLab:
		return m, nil
	default:
		return "", fmt.Errorf("unknown band mode %q (want auto, gray, rgb or lab)", s)
	}
}

// Raster is a read-only planar view of an image: one float64 plane per band,
// addressed in the image's own coordinates (the origin may be non-zero).
//
// Planes are computed once at construction, so Sample is a slice lookup and
// the raster is safe for concurrent reads.
type Raster struct {
	rect   image.Rectangle
	names  []string
	planes [][]float64
	mode   BandMode
}

// NewRaster builds a raster from img in the given band mode.
func NewRaster(img image.Image, mode BandMode) (*Raster, error) {
	if img == nil {
		return nil, fmt.Errorf("image is required")
	}
	if mode == "" {
		mode = ModeAuto
	}
	r := &Raster{rect: img.Bounds(), mode: mode}
	switch mode {
	case ModeAuto:
		if isGray(img) {
			r.fillGray(img)
		} else {
			r.fillRGB(img)
		}
	case ModeGray:
		r.fillGray(img)
	case ModeRGB:
		r.fillRGB(img)
	case ModeLab:
		r.fillLab(img)
	default:
		return nil, fmt.Errorf("unknown band mode %q", mode)
	}
	return r, nil
}

// Bounds returns the pixel rectangle of the source image.
func (r *Raster) Bounds() image.Rectangle { return r.rect }

// Bands returns the number of value bands.
func (r *Raster) Bands() int { return len(r.planes) }

// BandNames returns the display name of each band.
func (r *Raster) BandNames() []string { return append([]string(nil), r.names...) }

// Mode returns the band mode the raster was built with.
func (r *Raster) Mode() BandMode { return r.mode }

// Sample returns the value of band at (x, y). Callers stay inside Bounds.
func (r *Raster) Sample(x, y, band int) float64 {
	return r.planes[band][(y-r.rect.Min.Y)*r.rect.Dx()+(x-r.rect.Min.X)]
}

// Values returns every band value at (x, y), or false outside the bounds.
func (r *Raster) Values(x, y int) ([]float64, bool) {
	if !(image.Point{X: x, Y: y}).In(r.rect) {
		return nil, false
	}
	out := make([]float64, len(r.planes))
	for b := range r.planes {
		out[b] = r.Sample(x, y, b)
	}
	return out, true
}

func autoBands(img image.Image) int {
	if isGray(img) {
		return 1
	}
	return 3
}

func isGray(img image.Image) bool {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return true
	}
	return false
}

// straightRGBA returns 8-bit RGBA bytes of img with color not premultiplied
// by alpha, and the offset of pixel (x, y) in img's coordinates.
func straightRGBA(img image.Image) ([]uint8, func(x, y int) int) {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		// premultiplied and straight bytes agree when every alpha is 255
		rgba := clone.AsShallowRGBA(img)
		d := rgba.Bounds().Min.Sub(img.Bounds().Min)
		return rgba.Pix, func(x, y int) int { return rgba.PixOffset(x+d.X, y+d.Y) }
	}
	nrgba := imaging.Clone(img)
	origin := img.Bounds().Min
	return nrgba.Pix, func(x, y int) int { return nrgba.PixOffset(x-origin.X, y-origin.Y) }
}

func (r *Raster) alloc(names ...string) {
	n := r.rect.Dx() * r.rect.Dy()
	r.names = names
	r.planes = make([][]float64, len(names))
	for i := range r.planes {
		r.planes[i] = make([]float64, n)
	}
}

func (r *Raster) fillGray(img image.Image) {
	r.alloc("gray")
	plane := r.planes[0]
	b := r.rect
	i := 0
	switch src := img.(type) {
	case *image.Gray:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				plane[i] = float64(src.GrayAt(x, y).Y)
				i++
			}
		}
	case *image.Gray16:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				plane[i] = float64(src.Gray16At(x, y).Y)
				i++
			}
		}
	default:
		pix, offset := straightRGBA(img)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				o := offset(x, y)
				p := pix[o : o+3 : o+3]
				// ITU-R 601 luma, as image/color's GrayModel
				plane[i] = float64((19595*uint32(p[0]) + 38470*uint32(p[1]) + 7471*uint32(p[2]) + 1<<15) >> 16)
				i++
			}
		}
	}
}

func (r *Raster) fillRGB(img image.Image) {
	r.alloc("R", "G", "B")
	pix, offset := straightRGBA(img)
	b := r.rect
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			o := offset(x, y)
			r.planes[0][i] = float64(pix[o])
			r.planes[1][i] = float64(pix[o+1])
			r.planes[2][i] = float64(pix[o+2])
			i++
		}
	}
}

func (r *Raster) fillLab(img image.Image) {
	r.alloc("L*", "a*", "b*")
	b := r.rect
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c, _ := colorful.MakeColor(img.At(x, y))
			l, a, bb := c.Lab()
			r.planes[0][i] = l * 100
			r.planes[1][i] = a * 100
			r.planes[2][i] = bb * 100
			i++
		}
	}
}
