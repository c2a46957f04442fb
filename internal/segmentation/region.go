// Package segmentation holds externally supplied segmentation regions and
// the checked tree that decides which of them are displayed.
package segmentation

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/ironsheep/image-roi-mcp/internal/calibration"
	apperrors "github.com/ironsheep/image-roi-mcp/internal/errors"
	"github.com/ironsheep/image-roi-mcp/internal/shape"
)

// Region is one labelled segment.
type Region struct {
	ID            string  `json:"id"`
	Label         string  `json:"label"`
	AlgorithmType string  `json:"algorithm_type"`
	PixelCount    int     `json:"pixel_count"`
	Visible       bool    `json:"visible"`
	Opacity       float64 `json:"opacity"`

	checked bool
	mask    *shape.Mask
}

// NewRegion wraps a mask. The region starts checked, visible and opaque.
func NewRegion(label, algorithmType string, mask *shape.Mask) (*Region, error) {
	if mask.Empty() {
		return nil, apperrors.NewInvalidShapeError("segment %q has an empty mask", label)
	}
	return &Region{
		ID:            uuid.NewString(),
		Label:         label,
		AlgorithmType: algorithmType,
		PixelCount:    mask.Count(),
		Visible:       true,
		Opacity:       1,
		checked:       true,
		mask:          mask,
	}, nil
}

// Mask returns the region's pixel mask.
func (r *Region) Mask() *shape.Mask { return r.mask }

// Checked reports the region's own checkbox state.
func (r *Region) Checked() bool { return r.checked }

// Volume is pixel count times pixel area times slice thickness.
func (r *Region) Volume(cal calibration.Calibration) float64 {
	return cal.Area(float64(r.PixelCount)) * cal.Thickness
}

// Shape returns a segmentation shape over the region's mask.
func (r *Region) Shape() *shape.Shape {
	return shape.NewSegmentation(r.mask, shape.WithLabel(r.Label))
}

// Describe returns the tooltip text for the region.
func (r *Region) Describe(cal calibration.Calibration) string {
	var b strings.Builder
	b.WriteString(r.Label)
	fmt.Fprintf(&b, "\nAlgorithm type: %s", r.AlgorithmType)
	fmt.Fprintf(&b, "\nVoxel count: %s", humanize.Comma(int64(r.PixelCount)))
	if cal.Thickness > 0 {
		fmt.Fprintf(&b, "\nVolume (%s): %s", cal.VolumeUnit(), humanize.FormatFloat("#,###.##", r.Volume(cal)))
	}
	return b.String()
}
