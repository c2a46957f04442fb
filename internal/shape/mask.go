package shape

import (
	"image"

	apperrors "github.com/ironsheep/image-roi-mcp/internal/errors"
)

// Mask is a boolean pixel mask over a rectangle that may have a non-zero
// origin. Pixels outside the rectangle are false.
type Mask struct {
	rect  image.Rectangle
	bits  []bool
	count int
}

// NewMask creates an all-false mask covering r.
func NewMask(r image.Rectangle) *Mask {
	r = r.Canon()
	return &Mask{rect: r, bits: make([]bool, r.Dx()*r.Dy())}
}

// Bounds is the rectangle the mask covers.
func (m *Mask) Bounds() image.Rectangle { return m.rect }

func (m *Mask) offset(x, y int) (int, bool) {
	if !(image.Point{X: x, Y: y}).In(m.rect) {
		return 0, false
	}
	return (y-m.rect.Min.Y)*m.rect.Dx() + (x - m.rect.Min.X), true
}

// Set assigns pixel (x, y). Pixels outside the mask bounds are ignored.
func (m *Mask) Set(x, y int, v bool) {
	i, ok := m.offset(x, y)
	if !ok || m.bits[i] == v {
		return
	}
	m.bits[i] = v
	if v {
		m.count++
	} else {
		m.count--
	}
}

// At reports whether pixel (x, y) is set.
func (m *Mask) At(x, y int) bool {
	i, ok := m.offset(x, y)
	return ok && m.bits[i]
}

// ContainsPixel is At; it lets a mask stand in for a region.
func (m *Mask) ContainsPixel(x, y int) bool { return m.At(x, y) }

// PixelBounds is Bounds; it lets a mask stand in for a region.
func (m *Mask) PixelBounds() image.Rectangle { return m.rect }

// Count returns the number of set pixels.
func (m *Mask) Count() int { return m.count }

// Empty reports whether no pixel is set.
func (m *Mask) Empty() bool { return m == nil || m.count == 0 }

// Clone returns a deep copy.
func (m *Mask) Clone() *Mask {
	c := &Mask{rect: m.rect, bits: make([]bool, len(m.bits)), count: m.count}
	copy(c.bits, m.bits)
	return c
}

// TightBounds is the smallest rectangle enclosing every set pixel.
func (m *Mask) TightBounds() image.Rectangle {
	var out image.Rectangle
	w := m.rect.Dx()
	for i, v := range m.bits {
		if !v {
			continue
		}
		x, y := m.rect.Min.X+i%w, m.rect.Min.Y+i/w
		out = out.Union(image.Rect(x, y, x+1, y+1))
	}
	return out
}

// Runs encodes the mask row-major as alternating run lengths, starting with
// a (possibly zero) run of unset pixels.
func (m *Mask) Runs() []int {
	runs := []int{}
	cur, n := false, 0
	for _, v := range m.bits {
		if v != cur {
			runs = append(runs, n)
			cur, n = v, 0
		}
		n++
	}
	if n > 0 {
		runs = append(runs, n)
	}
	return runs
}

// MaxMaskPixels bounds the area of a decoded mask.
const MaxMaskPixels = 1 << 26

// MaskFromRuns decodes a mask written by Runs. The runs must not cover more
// than the area of r, which must not exceed MaxMaskPixels.
func MaskFromRuns(r image.Rectangle, runs []int) (*Mask, error) {
	r = r.Canon()
	w, h := r.Dx(), r.Dy()
	if w > MaxMaskPixels || h > MaxMaskPixels || w*h > MaxMaskPixels {
		return nil, apperrors.NewInvalidParameterError("mask %dx%d exceeds %d pixels", w, h, MaxMaskPixels)
	}
	total := 0
	for _, n := range runs {
		if n < 0 || n > w*h-total {
			return nil, apperrors.NewInvalidParameterError("mask runs exceed %dx%d area", w, h)
		}
		total += n
	}

	m := NewMask(r)
	pos, v := 0, false
	for _, n := range runs {
		if v {
			for i := pos; i < pos+n; i++ {
				m.bits[i] = true
			}
			m.count += n
		}
		pos += n
		v = !v
	}
	return m, nil
}
