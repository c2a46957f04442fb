package shape

import (
	"encoding/json"
	"image"

	"gonum.org/v1/gonum/spatial/r2"

	apperrors "github.com/ironsheep/image-roi-mcp/internal/errors"
)

// Point is a serialized handle position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// MaskRecord is a serialized Mask.
type MaskRecord struct {
	X      int   `json:"x"`
	Y      int   `json:"y"`
	Width  int   `json:"width"`
	Height int   `json:"height"`
	Runs   []int `json:"runs"`
}

// Record is the persisted form of a shape: its variant, ordered handles and
// variant-specific fields. Floats are written by encoding/json in their
// shortest round-trip form, so decode then encode reproduces the input.
type Record struct {
	Variant    string      `json:"variant"`
	Handles    []Point     `json:"handles"`
	PointSize  *float64    `json:"point_size,omitempty"`
	MaxHandles *int        `json:"max_handles,omitempty"`
	Label      string      `json:"label,omitempty"`
	Mask       *MaskRecord `json:"mask,omitempty"`
}

// Record returns the persisted form of s.
func (s *Shape) Record() Record {
	rec := Record{
		Variant: s.variant.String(),
		Handles: make([]Point, len(s.handles)),
		Label:   s.label,
	}
	for i, h := range s.handles {
		rec.Handles[i] = Point{X: h.Pos.X, Y: h.Pos.Y}
	}
	switch s.variant {
	case VariantPoint:
		size := s.pointSize
		rec.PointSize = &size
	case VariantPolygon:
		if s.maxHandles != Unbounded {
			n := s.maxHandles
			rec.MaxHandles = &n
		}
	case VariantSegmentation:
		if s.mask != nil {
			r := s.mask.Bounds()
			rec.Mask = &MaskRecord{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy(), Runs: s.mask.Runs()}
		}
	}
	return rec
}

// FromRecord rebuilds a shape from its persisted form and attempts to build
// its geometry. A shape whose handles are degenerate is still returned, in
// StateInvalid; only malformed records fail.
func FromRecord(rec Record) (*Shape, error) {
	v, err := ParseVariant(rec.Variant)
	if err != nil {
		return nil, err
	}
	var opts []Option
	if rec.PointSize != nil {
		opts = append(opts, WithPointSize(*rec.PointSize))
	}
	if rec.MaxHandles != nil {
		opts = append(opts, WithMaxHandles(*rec.MaxHandles))
	}
	if rec.Label != "" {
		opts = append(opts, WithLabel(rec.Label))
	}
	s := New(v, opts...)
	if rec.Mask != nil {
		if v != VariantSegmentation {
			return nil, apperrors.NewInvalidParameterError("%s record cannot carry a mask", v)
		}
		mr := rec.Mask
		if mr.Width < 0 || mr.Height < 0 {
			return nil, apperrors.NewInvalidParameterError("mask size %dx%d is negative", mr.Width, mr.Height)
		}
		if mr.Width > MaxMaskPixels || mr.Height > MaxMaskPixels || !inOriginRange(mr.X) || !inOriginRange(mr.Y) {
			return nil, apperrors.NewInvalidParameterError("mask %dx%d at (%d,%d) is out of range", mr.Width, mr.Height, mr.X, mr.Y)
		}
		r := image.Rect(mr.X, mr.Y, mr.X+mr.Width, mr.Y+mr.Height)
		m, err := MaskFromRuns(r, rec.Mask.Runs)
		if err != nil {
			return nil, err
		}
		s.mask = m
	}
	for _, p := range rec.Handles {
		if err := s.AddHandle(r2.Vec{X: p.X, Y: p.Y}); err != nil {
			return nil, err
		}
	}
	_ = s.BuildGeometry()
	return s, nil
}

const maxMaskOrigin = 1 << 30

func inOriginRange(v int) bool { return v >= -maxMaskOrigin && v <= maxMaskOrigin }

// MarshalJSON encodes the shape as its Record.
func (s *Shape) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Record())
}

// UnmarshalJSON decodes a Record into s.
func (s *Shape) UnmarshalJSON(data []byte) error {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	decoded, err := FromRecord(rec)
	if err != nil {
		return err
	}
	*s = *decoded
	return nil
}
