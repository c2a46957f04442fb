package shape

import (
	"encoding/json"
	"errors"
	"image"
	"testing"

	"github.com/google/go-cmp/cmp"

	apperrors "github.com/ironsheep/image-roi-mcp/internal/errors"
)

func TestRecord_RoundTrip(t *testing.T) {
	inputs := []string{
		`{"variant":"point","handles":[{"x":12.25,"y":0.1}],"point_size":3}`,
		`{"variant":"rectangle","handles":[{"x":10,"y":4},{"x":0,"y":0}]}`,
		`{"variant":"ellipse","handles":[{"x":0.30000000000000004,"y":1e-7},{"x":123456.789,"y":-5}],"label":"lesion"}`,
		`{"variant":"polygon","handles":[{"x":0,"y":0},{"x":10,"y":0},{"x":5,"y":8.5}],"max_handles":6}`,
		`{"variant":"polygon","handles":[{"x":0,"y":0},{"x":1,"y":1}]}`,
		`{"variant":"segmentation","handles":[],"label":"liver","mask":{"x":2,"y":3,"width":4,"height":2,"runs":[1,2,3,2]}}`,
	}

	for _, in := range inputs {
		t.Run(in[:24], func(t *testing.T) {
			var s Shape
			if err := json.Unmarshal([]byte(in), &s); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			out, err := json.Marshal(&s)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			if string(out) != in {
				t.Errorf("round trip mismatch:\n got %s\nwant %s", out, in)
			}
		})
	}
}

func TestRecord_PreservesHandleOrder(t *testing.T) {
	s := New(VariantPolygon)
	for _, p := range []Point{{3, 1}, {0, 0}, {7, 7}, {1.5, 9}} {
		if err := s.AddHandle(vec(p.X, p.Y)); err != nil {
			t.Fatal(err)
		}
	}
	rec := s.Record()
	back, err := FromRecord(rec)
	if err != nil {
		t.Fatalf("FromRecord: %v", err)
	}
	if diff := cmp.Diff(s.Handles(), back.Handles()); diff != "" {
		t.Errorf("handles differ (-want +got):\n%s", diff)
	}
	if !back.IsValid() {
		t.Error("decoded polygon should be built")
	}
}

func TestRecord_DegenerateStaysInvalid(t *testing.T) {
	s, err := FromRecord(Record{Variant: "polygon", Handles: []Point{{0, 0}, {1, 1}}})
	if err != nil {
		t.Fatalf("FromRecord: %v", err)
	}
	if s.State() != StateInvalid {
		t.Errorf("State: got %v, want invalid", s.State())
	}
}

func TestRecord_Malformed(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		want error
	}{
		{"unknown variant", Record{Variant: "star"}, apperrors.ErrInvalidParameter},
		{"too many handles", Record{Variant: "point", Handles: []Point{{1, 1}, {2, 2}}}, apperrors.ErrCapacityExceeded},
		{"mask on rectangle", Record{Variant: "rectangle", Mask: &MaskRecord{Width: 1, Height: 1}}, apperrors.ErrInvalidParameter},
		{"mask overrun", Record{Variant: "segmentation", Mask: &MaskRecord{Width: 2, Height: 2, Runs: []int{1, 9}}}, apperrors.ErrInvalidParameter},
		{"mask negative width", Record{Variant: "segmentation", Mask: &MaskRecord{Width: -2, Height: 2, Runs: []int{0, 1}}}, apperrors.ErrInvalidParameter},
		{"mask huge", Record{Variant: "segmentation", Mask: &MaskRecord{Width: 4000000000, Height: 4000000000, Runs: []int{0, 1}}}, apperrors.ErrInvalidParameter},
		{"mask area over cap", Record{Variant: "segmentation", Mask: &MaskRecord{Width: 1 << 14, Height: 1 << 14, Runs: []int{0, 1}}}, apperrors.ErrInvalidParameter},
		{"mask origin out of range", Record{Variant: "segmentation", Mask: &MaskRecord{X: 1 << 40, Width: 1, Height: 1, Runs: []int{0, 1}}}, apperrors.ErrInvalidParameter},
		{"mask negative run", Record{Variant: "segmentation", Mask: &MaskRecord{Width: 2, Height: 2, Runs: []int{-1, 2}}}, apperrors.ErrInvalidParameter},
		{"mask runs sum over area", Record{Variant: "segmentation", Mask: &MaskRecord{Width: 2, Height: 2, Runs: []int{2, 2, 1}}}, apperrors.ErrInvalidParameter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := FromRecord(tt.rec); !errors.Is(err, tt.want) {
				t.Errorf("FromRecord: got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestMaskRuns(t *testing.T) {
	m := NewMask(image.Rect(-2, -2, 3, 1))
	set := []image.Point{{-2, -2}, {-1, -2}, {2, 0}, {0, -1}}
	for _, p := range set {
		m.Set(p.X, p.Y, true)
	}
	m.Set(50, 50, true)
	if m.Count() != 4 {
		t.Fatalf("Count: got %d, want 4", m.Count())
	}

	back, err := MaskFromRuns(m.Bounds(), m.Runs())
	if err != nil {
		t.Fatalf("MaskFromRuns: %v", err)
	}
	if back.Count() != m.Count() {
		t.Errorf("Count after decode: got %d, want %d", back.Count(), m.Count())
	}
	for _, p := range set {
		if !back.At(p.X, p.Y) {
			t.Errorf("pixel %v lost", p)
		}
	}
	if got := m.TightBounds(); got != image.Rect(-2, -2, 3, 1) {
		t.Errorf("TightBounds: got %v", got)
	}

	m.Set(-2, -2, false)
	m.Set(-2, -2, false)
	if m.Count() != 3 {
		t.Errorf("Count after clear: got %d, want 3", m.Count())
	}
}
