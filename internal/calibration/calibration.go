// Package calibration converts pixel-space lengths, areas, coordinates and
// raw sample values into real-world quantities.
package calibration

import (
	"math"

	apperrors "github.com/ironsheep/image-roi-mcp/internal/errors"
)

// PixelUnit is the unit label of an uncalibrated image. Area measurements
// keep it unchanged instead of appending a power suffix.
const PixelUnit = "pix"

// Rescale is the linear transform from stored raw pixel values to
// physically meaningful values: v' = v*Slope + Intercept.
type Rescale struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
}

// Identity leaves raw values unchanged.
var Identity = Rescale{Slope: 1, Intercept: 0}

// Normalized returns the identity transform for an unspecified (all zero)
// rescale and r otherwise.
func (r Rescale) Normalized() Rescale {
	if r.Slope == 0 && r.Intercept == 0 {
		return Identity
	}
	return r
}

// IsIdentity reports whether Apply is a no-op.
func (r Rescale) IsIdentity() bool {
	n := r.Normalized()
	return n.Slope == 1 && n.Intercept == 0
}

// Apply maps a raw value to its rescaled value.
func (r Rescale) Apply(v float64) float64 {
	return v*r.Slope + r.Intercept
}

// Calibration describes how one image maps to real-world units.
//
// Ratio is the real-world length of one pixel edge. OffsetX/OffsetY are added
// to pixel coordinates before calibration; with UpYAxis set, calibrated Y
// grows upwards from the bottom of an ImageHeight-pixel image.
type Calibration struct {
	Ratio       float64 `json:"ratio"`
	Unit        string  `json:"unit"`
	Rescale     Rescale `json:"rescale"`
	OffsetX     float64 `json:"offset_x,omitempty"`
	OffsetY     float64 `json:"offset_y,omitempty"`
	UpYAxis     bool    `json:"up_y_axis,omitempty"`
	ImageHeight float64 `json:"image_height,omitempty"`
	Thickness   float64 `json:"thickness,omitempty"`
	ValueUnit   string  `json:"value_unit,omitempty"`
}

// Default returns the uncalibrated pixel calibration.
func Default() Calibration {
	return Calibration{Ratio: 1, Unit: PixelUnit, Rescale: Identity}
}

// New returns a calibration with the given ratio and unit and an identity rescale.
func New(ratio float64, unit string) Calibration {
	c := Default()
	c.Ratio = ratio
	if unit != "" {
		c.Unit = unit
	}
	return c
}

// WithRescale returns a copy of c with the given slope and intercept.
func (c Calibration) WithRescale(slope, intercept float64) Calibration {
	c.Rescale = Rescale{Slope: slope, Intercept: intercept}
	return c
}

// Validate checks the calibration invariants.
func (c Calibration) Validate() error {
	if !(c.Ratio > 0) || math.IsInf(c.Ratio, 0) {
		return apperrors.NewInvalidParameterError("calibration ratio must be > 0 (got %v)", c.Ratio)
	}
	if c.Thickness < 0 {
		return apperrors.NewInvalidParameterError("slice thickness must be >= 0 (got %v)", c.Thickness)
	}
	return nil
}

// LengthUnit is the unit label of linear measurements.
func (c Calibration) LengthUnit() string {
	if c.Unit == "" {
		return PixelUnit
	}
	return c.Unit
}

// AreaUnit is the unit label of area measurements.
func (c Calibration) AreaUnit() string {
	u := c.LengthUnit()
	if u == PixelUnit {
		return u
	}
	return u + "2"
}

// VolumeUnit is the unit label of volume measurements.
func (c Calibration) VolumeUnit() string {
	u := c.LengthUnit()
	if u == PixelUnit {
		return u
	}
	return u + "3"
}

// Length converts a pixel length.
func (c Calibration) Length(px float64) float64 {
	return px * c.Ratio
}

// Area converts a pixel area.
func (c Calibration) Area(px2 float64) float64 {
	return px2 * c.Ratio * c.Ratio
}

// X converts a pixel X coordinate.
func (c Calibration) X(x float64) float64 {
	return c.Ratio * (x + c.OffsetX)
}

// Y converts a pixel Y coordinate.
func (c Calibration) Y(y float64) float64 {
	if c.UpYAxis {
		return c.Ratio * (c.ImageHeight - (y + c.OffsetY))
	}
	return c.Ratio * (y + c.OffsetY)
}

// Value rescales a raw sample value.
func (c Calibration) Value(raw float64) float64 {
	return c.Rescale.Normalized().Apply(raw)
}
