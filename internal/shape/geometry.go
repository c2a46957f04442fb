package shape

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	apperrors "github.com/ironsheep/image-roi-mcp/internal/errors"
)

// Geometry is the concrete shape derived from a handle list.
type Geometry interface {
	// Bounds is the bounding box in pixel space.
	Bounds() r2.Box
	// Contains reports whether p lies inside the geometry.
	Contains(p r2.Vec) bool
}

// Frame is an axis-aligned rectangle. Containment is half-open: the minimum
// edges are inside, the maximum edges are not.
type Frame struct {
	Box r2.Box
}

func (f Frame) Bounds() r2.Box { return f.Box }

func (f Frame) Contains(p r2.Vec) bool {
	return p.X >= f.Box.Min.X && p.X < f.Box.Max.X &&
		p.Y >= f.Box.Min.Y && p.Y < f.Box.Max.Y
}

// Area returns w*h in square pixels.
func (f Frame) Area() float64 {
	sz := f.Box.Size()
	return sz.X * sz.Y
}

// Perimeter returns 2(w+h) in pixels.
func (f Frame) Perimeter() float64 {
	sz := f.Box.Size()
	return 2 * (sz.X + sz.Y)
}

// Ellipse is the ellipse inscribed in Box. Points on the outline are outside.
type Ellipse struct {
	Box r2.Box
}

func (e Ellipse) Bounds() r2.Box { return e.Box }

func (e Ellipse) Contains(p r2.Vec) bool {
	sz := e.Box.Size()
	if sz.X <= 0 || sz.Y <= 0 {
		return false
	}
	nx := (p.X-e.Box.Min.X)/sz.X - 0.5
	ny := (p.Y-e.Box.Min.Y)/sz.Y - 0.5
	return nx*nx+ny*ny < 0.25
}

// Area returns pi*w*h/4 in square pixels.
func (e Ellipse) Area() float64 {
	sz := e.Box.Size()
	return math.Pi * sz.X * sz.Y / 4
}

// Perimeter approximates the outline length with Ramanujan's second formula.
func (e Ellipse) Perimeter() float64 {
	sz := e.Box.Size()
	a, b := sz.X/2, sz.Y/2
	if a+b == 0 {
		return 0
	}
	h := (a - b) * (a - b) / ((a + b) * (a + b))
	return math.Pi * (a + b) * (1 + 3*h/(10+math.Sqrt(4-3*h)))
}

// Polygon is a closed path through Vertices in order. Containment uses the
// even-odd rule.
type Polygon struct {
	Vertices []r2.Vec
}

func (p Polygon) Bounds() r2.Box {
	if len(p.Vertices) == 0 {
		return r2.Box{}
	}
	b := r2.Box{Min: p.Vertices[0], Max: p.Vertices[0]}
	for _, v := range p.Vertices[1:] {
		b.Min.X = math.Min(b.Min.X, v.X)
		b.Min.Y = math.Min(b.Min.Y, v.Y)
		b.Max.X = math.Max(b.Max.X, v.X)
		b.Max.Y = math.Max(b.Max.Y, v.Y)
	}
	return b
}

func (p Polygon) Contains(pt r2.Vec) bool {
	n := len(p.Vertices)
	if n < 3 {
		return false
	}
	inside := false
	j := n - 1
	for i := 0; i < n; i++ {
		vi, vj := p.Vertices[i], p.Vertices[j]
		if (vi.Y > pt.Y) != (vj.Y > pt.Y) &&
			pt.X < (vj.X-vi.X)*(pt.Y-vi.Y)/(vj.Y-vi.Y)+vi.X {
			inside = !inside
		}
		j = i
	}
	return inside
}

// SignedArea is the shoelace area, positive for clockwise vertices in image
// coordinates (Y down).
func (p Polygon) SignedArea() float64 {
	var sum float64
	n := len(p.Vertices)
	for i := 0; i < n; i++ {
		sum += r2.Cross(p.Vertices[i], p.Vertices[(i+1)%n])
	}
	return sum / 2
}

// Area returns the absolute enclosed area in square pixels.
func (p Polygon) Area() float64 {
	return math.Abs(p.SignedArea())
}

// Perimeter returns the length of the closed path in pixels.
func (p Polygon) Perimeter() float64 {
	var sum float64
	n := len(p.Vertices)
	for i := 0; i < n; i++ {
		sum += r2.Norm(r2.Sub(p.Vertices[(i+1)%n], p.Vertices[i]))
	}
	return sum
}

// Centroid returns the area centroid. Degenerate polygons fall back to the
// vertex mean.
func (p Polygon) Centroid() r2.Vec {
	a := p.SignedArea()
	n := len(p.Vertices)
	if a == 0 || n == 0 {
		var c r2.Vec
		for _, v := range p.Vertices {
			c = r2.Add(c, v)
		}
		if n > 0 {
			c = r2.Scale(1/float64(n), c)
		}
		return c
	}
	var cx, cy float64
	for i := 0; i < n; i++ {
		v, w := p.Vertices[i], p.Vertices[(i+1)%n]
		cross := r2.Cross(v, w)
		cx += (v.X + w.X) * cross
		cy += (v.Y + w.Y) * cross
	}
	return r2.Vec{X: cx / (6 * a), Y: cy / (6 * a)}
}

// MaskRegion is geometry supplied as a pixel mask.
type MaskRegion struct {
	Mask *Mask
}

func (m MaskRegion) Bounds() r2.Box {
	r := m.Mask.Bounds()
	return r2.Box{
		Min: r2.Vec{X: float64(r.Min.X), Y: float64(r.Min.Y)},
		Max: r2.Vec{X: float64(r.Max.X), Y: float64(r.Max.Y)},
	}
}

func (m MaskRegion) Contains(p r2.Vec) bool {
	return m.Mask.At(int(math.Floor(p.X)), int(math.Floor(p.Y)))
}

func buildPoint(s *Shape) (Geometry, error) {
	if !(s.pointSize > 0) {
		return nil, apperrors.NewInvalidShapeError("point size must be > 0 (got %v)", s.pointSize)
	}
	c := s.handles[0].Pos
	half := s.pointSize / 2
	return Ellipse{Box: r2.Box{
		Min: r2.Vec{X: c.X - half, Y: c.Y - half},
		Max: r2.Vec{X: c.X + half, Y: c.Y + half},
	}}, nil
}

// frameFromDiagonal normalizes two opposite corners in any order.
func frameFromDiagonal(a, b r2.Vec) (r2.Box, error) {
	box := r2.NewBox(a.X, a.Y, b.X, b.Y)
	sz := box.Size()
	if !(sz.X > 0) || !(sz.Y > 0) {
		return r2.Box{}, apperrors.NewInvalidShapeError("frame %vx%v has no area", sz.X, sz.Y)
	}
	return box, nil
}

func buildRectangle(s *Shape) (Geometry, error) {
	box, err := frameFromDiagonal(s.handles[0].Pos, s.handles[1].Pos)
	if err != nil {
		return nil, err
	}
	return Frame{Box: box}, nil
}

func buildEllipse(s *Shape) (Geometry, error) {
	box, err := frameFromDiagonal(s.handles[0].Pos, s.handles[1].Pos)
	if err != nil {
		return nil, err
	}
	return Ellipse{Box: box}, nil
}

func buildPolygon(s *Shape) (Geometry, error) {
	verts := make([]r2.Vec, len(s.handles))
	for i, h := range s.handles {
		verts[i] = h.Pos
	}
	p := Polygon{Vertices: verts}
	sz := p.Bounds().Size()
	scale := math.Max(1, sz.X*sz.X+sz.Y*sz.Y)
	if p.Area() <= 1e-12*scale {
		return nil, apperrors.NewInvalidShapeError("polygon with %d vertices has no area", len(verts))
	}
	return p, nil
}

func buildSegmentation(s *Shape) (Geometry, error) {
	if s.mask == nil || s.mask.Empty() {
		return nil, apperrors.NewInvalidShapeError("segmentation mask is empty")
	}
	return MaskRegion{Mask: s.mask}, nil
}
