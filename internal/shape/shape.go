// Package shape implements the geometric model behind an annotation.
//
// A Shape is a closed tagged variant (point, rectangle, ellipse, polygon or
// segmentation region) owning an ordered list of handles. Every handle
// mutation marks the derived geometry stale; BuildGeometry rebuilds it from
// the variant's construction rule and either succeeds (StateValid) or fails
// with an invalid-shape error (StateInvalid). Measurements and statistics are
// only ever taken from valid, non-stale shapes.
//
// Coordinates are image pixel coordinates with X growing rightward and Y
// growing downward, matching the rest of the imaging code.
package shape

import (
	"fmt"
	"image"
	"math"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"

	apperrors "github.com/ironsheep/image-roi-mcp/internal/errors"
)

// Variant selects the construction rule and measurement catalog of a shape.
type Variant int

const (
	VariantPoint Variant = iota
	VariantRectangle
	VariantEllipse
	VariantPolygon
	VariantSegmentation
)

// Unbounded is the MaxHandles value of variants without a handle cap.
const Unbounded = -1

// DefaultPointSize is the diameter of the disc built around a point handle.
const DefaultPointSize = 1.0

// Role tags a handle for variant-specific geometry construction.
type Role int

const (
	RoleVertex Role = iota
	RoleCorner
	RoleCenter
)

func (r Role) String() string {
	switch r {
	case RoleCorner:
		return "corner"
	case RoleCenter:
		return "center"
	default:
		return "vertex"
	}
}

// State is the validity state of a shape's derived geometry.
type State int

const (
	StateDraft State = iota
	StateValid
	StateInvalid
)

func (s State) String() string {
	switch s {
	case StateValid:
		return "valid"
	case StateInvalid:
		return "invalid"
	default:
		return "draft"
	}
}

// Handle is a user-manipulable control point.
type Handle struct {
	Pos  r2.Vec
	Role Role
}

type variantSpec struct {
	name       string
	minHandles int
	maxHandles int
	role       Role
	build      func(s *Shape) (Geometry, error)
}

var variants = [...]variantSpec{
	VariantPoint:        {name: "point", minHandles: 1, maxHandles: 1, role: RoleCenter, build: buildPoint},
	VariantRectangle:    {name: "rectangle", minHandles: 2, maxHandles: 2, role: RoleCorner, build: buildRectangle},
	VariantEllipse:      {name: "ellipse", minHandles: 2, maxHandles: 2, role: RoleCorner, build: buildEllipse},
	VariantPolygon:      {name: "polygon", minHandles: 3, maxHandles: Unbounded, role: RoleVertex, build: buildPolygon},
	VariantSegmentation: {name: "segmentation", minHandles: 0, maxHandles: 0, role: RoleVertex, build: buildSegmentation},
}

func (v Variant) spec() variantSpec {
	if v < 0 || int(v) >= len(variants) {
		return variantSpec{name: "unknown", build: func(*Shape) (Geometry, error) {
			return nil, apperrors.NewInvalidShapeError("unknown variant %d", int(v))
		}}
	}
	return variants[v]
}

func (v Variant) String() string {
	return v.spec().name
}

// Variants lists every known variant in declaration order.
func Variants() []Variant {
	out := make([]Variant, len(variants))
	for i := range variants {
		out[i] = Variant(i)
	}
	return out
}

// ParseVariant resolves a variant from its name.
func ParseVariant(name string) (Variant, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, s := range variants {
		if s.name == n {
			return Variant(i), nil
		}
	}
	return 0, apperrors.NewInvalidParameterError("unknown shape variant %q", name)
}

// Shape is a geometric annotation over an image.
type Shape struct {
	variant    Variant
	handles    []Handle
	pointSize  float64
	maxHandles int
	mask       *Mask
	label      string

	geom  Geometry
	stale bool
	state State
}

// Option configures a new Shape.
type Option func(*Shape)

// WithPointSize sets the disc diameter of a point shape.
func WithPointSize(size float64) Option {
	return func(s *Shape) { s.pointSize = size }
}

// WithMaxHandles caps the number of polygon vertices. Values <= 0 mean unbounded.
func WithMaxHandles(n int) Option {
	return func(s *Shape) {
		if s.variant != VariantPolygon {
			return
		}
		if n <= 0 {
			s.maxHandles = Unbounded
			return
		}
		s.maxHandles = n
	}
}

// WithLabel attaches a display label.
func WithLabel(label string) Option {
	return func(s *Shape) { s.label = label }
}

// New creates an empty shape of the given variant.
func New(v Variant, opts ...Option) *Shape {
	spec := v.spec()
	s := &Shape{
		variant:    v,
		pointSize:  DefaultPointSize,
		maxHandles: spec.maxHandles,
		stale:      true,
		state:      StateDraft,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewSegmentation wraps an externally supplied pixel mask. The returned shape
// already has its geometry built.
func NewSegmentation(mask *Mask, opts ...Option) *Shape {
	s := New(VariantSegmentation, opts...)
	s.mask = mask
	_ = s.BuildGeometry()
	return s
}

// Variant returns the shape's variant.
func (s *Shape) Variant() Variant { return s.variant }

// Label returns the display label.
func (s *Shape) Label() string { return s.label }

// SetLabel replaces the display label. It does not affect geometry.
func (s *Shape) SetLabel(label string) { s.label = label }

// PointSize returns the point disc diameter.
func (s *Shape) PointSize() float64 { return s.pointSize }

// Mask returns the segmentation mask, or nil for geometric variants.
func (s *Shape) Mask() *Mask { return s.mask }

// Len returns the number of handles.
func (s *Shape) Len() int { return len(s.handles) }

// MinHandles is the number of handles required to build geometry.
func (s *Shape) MinHandles() int { return s.variant.spec().minHandles }

// MaxHandles is the handle cap, or Unbounded.
func (s *Shape) MaxHandles() int { return s.maxHandles }

// IsFull reports whether the handle cap is reached.
func (s *Shape) IsFull() bool {
	return s.maxHandles != Unbounded && len(s.handles) >= s.maxHandles
}

// Handles returns a copy of the handle list.
func (s *Shape) Handles() []Handle {
	out := make([]Handle, len(s.handles))
	copy(out, s.handles)
	return out
}

// Handle returns the handle at index i.
func (s *Shape) Handle(i int) (Handle, error) {
	if i < 0 || i >= len(s.handles) {
		return Handle{}, apperrors.NewIndexOutOfRangeError(i, len(s.handles))
	}
	return s.handles[i], nil
}

// AddHandle appends a handle and marks the geometry stale.
func (s *Shape) AddHandle(p r2.Vec) error {
	if s.IsFull() {
		return apperrors.NewCapacityExceededError("%s accepts at most %d handles", s.variant, s.maxHandles)
	}
	s.handles = append(s.handles, Handle{Pos: p, Role: s.variant.spec().role})
	s.markStale()
	return nil
}

// MoveHandle replaces the position of handle i and marks the geometry stale.
func (s *Shape) MoveHandle(i int, p r2.Vec) error {
	if i < 0 || i >= len(s.handles) {
		return apperrors.NewIndexOutOfRangeError(i, len(s.handles))
	}
	s.handles[i].Pos = p
	s.markStale()
	return nil
}

// RemoveHandle deletes handle i and marks the geometry stale.
func (s *Shape) RemoveHandle(i int) error {
	if i < 0 || i >= len(s.handles) {
		return apperrors.NewIndexOutOfRangeError(i, len(s.handles))
	}
	s.handles = append(s.handles[:i], s.handles[i+1:]...)
	s.markStale()
	return nil
}

// Restore replaces every handle position, as when an edit session is
// cancelled. The handle count must match.
func (s *Shape) Restore(handles []Handle) error {
	if len(handles) != len(s.handles) {
		return apperrors.NewInvalidParameterError("restore needs %d handles, got %d", len(s.handles), len(handles))
	}
	copy(s.handles, handles)
	s.markStale()
	return nil
}

func (s *Shape) markStale() {
	s.stale = true
	s.geom = nil
}

// BuildGeometry rebuilds the derived geometry from the current handles.
// Calling it again without intervening mutations is a no-op.
func (s *Shape) BuildGeometry() error {
	if !s.stale {
		if s.state == StateValid {
			return nil
		}
	}
	spec := s.variant.spec()
	if len(s.handles) < spec.minHandles {
		s.fail()
		return apperrors.NewInvalidShapeError("%s needs at least %d handles, has %d", s.variant, spec.minHandles, len(s.handles))
	}
	g, err := spec.build(s)
	if err != nil {
		s.fail()
		return err
	}
	s.geom = g
	s.stale = false
	s.state = StateValid
	return nil
}

func (s *Shape) fail() {
	s.geom = nil
	s.stale = false
	s.state = StateInvalid
}

// State returns the validity state of the last build.
func (s *Shape) State() State {
	if s.stale {
		return StateDraft
	}
	return s.state
}

// IsStale reports whether handles changed since the last build.
func (s *Shape) IsStale() bool { return s.stale }

// IsValid reports whether the last BuildGeometry succeeded and no handle
// changed since.
func (s *Shape) IsValid() bool {
	return !s.stale && s.state == StateValid && s.geom != nil
}

// Geometry returns the derived geometry, or nil when the shape is not valid.
func (s *Shape) Geometry() Geometry {
	if !s.IsValid() {
		return nil
	}
	return s.geom
}

// Frame returns the normalized frame of a rectangle or ellipse.
func (s *Shape) Frame() (r2.Box, bool) {
	switch g := s.Geometry().(type) {
	case Frame:
		return g.Box, true
	case Ellipse:
		if s.variant == VariantEllipse {
			return g.Box, true
		}
	}
	return r2.Box{}, false
}

// Clone returns a deep copy, safe to hand to another goroutine.
func (s *Shape) Clone() *Shape {
	c := *s
	c.handles = s.Handles()
	if s.mask != nil {
		c.mask = s.mask.Clone()
	}
	if p, ok := s.geom.(Polygon); ok {
		c.geom = Polygon{Vertices: append([]r2.Vec(nil), p.Vertices...)}
	}
	if _, ok := s.geom.(MaskRegion); ok {
		c.geom = MaskRegion{Mask: c.mask}
	}
	return &c
}

// PixelBounds returns the integer pixel rectangle that can contain enclosed
// pixels. It is empty for shapes that are not valid.
func (s *Shape) PixelBounds() image.Rectangle {
	g := s.Geometry()
	if g == nil {
		return image.Rectangle{}
	}
	if m, ok := g.(MaskRegion); ok {
		return m.Mask.Bounds()
	}
	b := g.Bounds()
	return image.Rect(
		int(math.Floor(b.Min.X)), int(math.Floor(b.Min.Y)),
		int(math.Floor(b.Max.X))+1, int(math.Floor(b.Max.Y))+1,
	)
}

// ContainsPixel reports whether pixel (x, y) is enclosed by the shape. The
// pixel is sampled at its integer coordinate.
func (s *Shape) ContainsPixel(x, y int) bool {
	g := s.Geometry()
	if g == nil {
		return false
	}
	if m, ok := g.(MaskRegion); ok {
		return m.Mask.At(x, y)
	}
	return g.Contains(r2.Vec{X: float64(x), Y: float64(y)})
}

// HitHandle returns the index of the handle closest to p within tolerance
// pixels, or -1.
func (s *Shape) HitHandle(p r2.Vec, tolerance float64) int {
	best, bestDist := -1, tolerance
	for i, h := range s.handles {
		d := r2.Norm(r2.Sub(h.Pos, p))
		if d <= bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func (s *Shape) String() string {
	return fmt.Sprintf("%s[%d handles, %s]", s.variant, len(s.handles), s.State())
}
