// Package stats computes pixel-value statistics over the pixels enclosed by
// a region.
//
// A scan visits pixels on a lattice anchored at the raster origin with
// horizontal and vertical periods, keeps those inside the region (and inside
// the optional ROI), rescales each band value and skips values in the
// excluded range. Standard deviations are population standard deviations.
// The raster is only ever read.
package stats

import (
	"context"
	"image"
	"math"

	"github.com/ironsheep/image-roi-mcp/internal/calibration"
	apperrors "github.com/ironsheep/image-roi-mcp/internal/errors"
)

// Raster is a read-only multi-band pixel source. Bounds may have a non-zero
// origin.
type Raster interface {
	Bounds() image.Rectangle
	Bands() int
	Sample(x, y, band int) float64
}

// Region is the set of pixels to scan. Shapes and masks both satisfy it.
type Region interface {
	PixelBounds() image.Rectangle
	ContainsPixel(x, y int) bool
}

// Range is a closed value interval.
type Range struct {
	Lo float64 `json:"lo"`
	Hi float64 `json:"hi"`
}

// Contains reports whether lo <= v <= hi.
func (r Range) Contains(v float64) bool { return r.Lo <= v && v <= r.Hi }

// Options controls a scan.
type Options struct {
	// ROI further restricts the eligible pixels. Nil means no restriction.
	ROI     Region
	XPeriod int
	YPeriod int
	// Excluded values are skipped after rescaling. Nil excludes nothing.
	Excluded *Range
	Rescale  calibration.Rescale
}

// DefaultOptions scans every pixel with the identity rescale.
func DefaultOptions() Options {
	return Options{XPeriod: 1, YPeriod: 1, Rescale: calibration.Identity}
}

// BandStats holds the statistics of one band.
type BandStats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Count  int     `json:"count"`
}

// Result is the outcome of a scan. A nil band means every sample of that
// band fell in the excluded range.
type Result struct {
	Bands []*BandStats `json:"bands"`
	// Samples is the number of eligible pixels visited.
	Samples int `json:"samples"`
}

type accumulator struct {
	min, max   float64
	sum, sumSq float64
	count      int
}

func (a *accumulator) add(v float64) {
	if a.count == 0 || v < a.min {
		a.min = v
	}
	if a.count == 0 || v > a.max {
		a.max = v
	}
	a.sum += v
	a.sumSq += v * v
	a.count++
}

func (a *accumulator) result() *BandStats {
	if a.count == 0 {
		return nil
	}
	n := float64(a.count)
	mean := a.sum / n
	variance := a.sumSq/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	return &BandStats{Min: a.min, Max: a.max, Mean: mean, StdDev: math.Sqrt(variance), Count: a.count}
}

// Compute scans raster over region. It returns nil without error when no
// pixel is eligible. ctx is checked once per row; a cancelled scan returns
// ctx.Err().
func Compute(ctx context.Context, raster Raster, region Region, opts Options) (*Result, error) {
	if raster == nil {
		return nil, apperrors.NewInvalidParameterError("raster is required")
	}
	if region == nil {
		return nil, apperrors.NewInvalidParameterError("region is required")
	}
	if opts.XPeriod < 1 || opts.YPeriod < 1 {
		return nil, apperrors.NewInvalidParameterError("sampling periods must be >= 1, got x=%d y=%d", opts.XPeriod, opts.YPeriod)
	}

	origin := raster.Bounds().Min
	window := region.PixelBounds().Intersect(raster.Bounds())
	if opts.ROI != nil {
		window = window.Intersect(opts.ROI.PixelBounds())
	}
	if window.Empty() {
		return nil, nil
	}

	bands := raster.Bands()
	acc := make([]accumulator, bands)
	rescale := opts.Rescale.Normalized()
	identity := rescale.IsIdentity()
	samples := 0

	x0 := alignUp(window.Min.X, origin.X, opts.XPeriod)
	y0 := alignUp(window.Min.Y, origin.Y, opts.YPeriod)
	for y := y0; y < window.Max.Y; y += opts.YPeriod {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for x := x0; x < window.Max.X; x += opts.XPeriod {
			if !region.ContainsPixel(x, y) {
				continue
			}
			if opts.ROI != nil && !opts.ROI.ContainsPixel(x, y) {
				continue
			}
			samples++
			for b := 0; b < bands; b++ {
				v := raster.Sample(x, y, b)
				if !identity {
					v = rescale.Apply(v)
				}
				if opts.Excluded != nil && opts.Excluded.Contains(v) {
					continue
				}
				acc[b].add(v)
			}
		}
	}
	if samples == 0 {
		return nil, nil
	}

	res := &Result{Bands: make([]*BandStats, bands), Samples: samples}
	for b := range acc {
		res.Bands[b] = acc[b].result()
	}
	return res, nil
}

// alignUp returns the smallest lattice coordinate >= v for a lattice
// anchored at origin with the given period.
func alignUp(v, origin, period int) int {
	d := (v - origin) % period
	if d < 0 {
		d += period
	}
	if d == 0 {
		return v
	}
	return v + period - d
}
