package stats

import (
	"context"
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/ironsheep/image-roi-mcp/internal/calibration"
	apperrors "github.com/ironsheep/image-roi-mcp/internal/errors"
)

// gridRaster is an in-memory raster; pixel values come from fn.
type gridRaster struct {
	rect  image.Rectangle
	bands int
	fn    func(x, y, band int) float64
}

func (g gridRaster) Bounds() image.Rectangle { return g.rect }
func (g gridRaster) Bands() int              { return g.bands }
func (g gridRaster) Sample(x, y, band int) float64 {
	return g.fn(x, y, band)
}

func uniform(rect image.Rectangle, v float64) gridRaster {
	return gridRaster{rect: rect, bands: 1, fn: func(int, int, int) float64 { return v }}
}

// rectRegion is a half-open pixel rectangle.
type rectRegion image.Rectangle

func (r rectRegion) PixelBounds() image.Rectangle { return image.Rectangle(r) }
func (r rectRegion) ContainsPixel(x, y int) bool {
	return image.Pt(x, y).In(image.Rectangle(r))
}

// diagRegion contains pixels with x >= y inside its bounds.
type diagRegion image.Rectangle

func (r diagRegion) PixelBounds() image.Rectangle { return image.Rectangle(r) }
func (r diagRegion) ContainsPixel(x, y int) bool {
	return image.Pt(x, y).In(image.Rectangle(r)) && x >= y
}

func TestCompute_UniformRescaled(t *testing.T) {
	raster := uniform(image.Rect(0, 0, 20, 20), 100)
	opts := DefaultOptions()
	opts.Rescale = calibration.Rescale{Slope: 1, Intercept: -1024}

	res, err := Compute(context.Background(), raster, rectRegion(image.Rect(2, 2, 12, 6)), opts)
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Len(t, res.Bands, 1)

	b := res.Bands[0]
	require.NotNil(t, b)
	assert.Equal(t, -924.0, b.Mean)
	assert.Equal(t, -924.0, b.Min)
	assert.Equal(t, -924.0, b.Max)
	assert.Equal(t, 0.0, b.StdDev)
	assert.Equal(t, 40, b.Count)
	assert.Equal(t, 40, res.Samples)
}

func TestCompute_ExcludedBandAbsent(t *testing.T) {
	raster := uniform(image.Rect(0, 0, 20, 20), 100)
	opts := DefaultOptions()
	opts.Rescale = calibration.Rescale{Slope: 1, Intercept: -1024}
	opts.Excluded = &Range{Lo: -1000, Hi: -900}

	res, err := Compute(context.Background(), raster, rectRegion(image.Rect(0, 0, 5, 5)), opts)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Nil(t, res.Bands[0])
	assert.Equal(t, 25, res.Samples)
}

func TestCompute_PartialExclusion(t *testing.T) {
	raster := gridRaster{rect: image.Rect(0, 0, 4, 1), bands: 1, fn: func(x, _, _ int) float64 {
		return float64(x * 10)
	}}
	opts := DefaultOptions()
	opts.Excluded = &Range{Lo: 10, Hi: 20}

	res, err := Compute(context.Background(), raster, rectRegion(raster.rect), opts)
	require.NoError(t, err)
	b := res.Bands[0]
	require.NotNil(t, b)
	assert.Equal(t, 2, b.Count)
	assert.Equal(t, 0.0, b.Min)
	assert.Equal(t, 30.0, b.Max)
	assert.Equal(t, 15.0, b.Mean)
}

func TestCompute_InvalidParameters(t *testing.T) {
	raster := uniform(image.Rect(0, 0, 4, 4), 1)
	region := rectRegion(image.Rect(0, 0, 4, 4))

	tests := []struct {
		name   string
		raster Raster
		region Region
		xp, yp int
	}{
		{"zero x period", raster, region, 0, 1},
		{"negative y period", raster, region, 1, -2},
		{"missing raster", nil, region, 1, 1},
		{"missing region", raster, nil, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := Options{XPeriod: tt.xp, YPeriod: tt.yp}
			_, err := Compute(context.Background(), tt.raster, tt.region, opts)
			assert.ErrorIs(t, err, apperrors.ErrInvalidParameter)
		})
	}
}

func TestCompute_NoEligibleSamples(t *testing.T) {
	raster := uniform(image.Rect(0, 0, 10, 10), 5)

	t.Run("region outside raster", func(t *testing.T) {
		res, err := Compute(context.Background(), raster, rectRegion(image.Rect(20, 20, 30, 30)), DefaultOptions())
		require.NoError(t, err)
		assert.Nil(t, res)
	})

	t.Run("disjoint roi", func(t *testing.T) {
		opts := DefaultOptions()
		opts.ROI = rectRegion(image.Rect(6, 6, 10, 10))
		res, err := Compute(context.Background(), raster, rectRegion(image.Rect(0, 0, 5, 5)), opts)
		require.NoError(t, err)
		assert.Nil(t, res)
	})
}

func TestCompute_MatchesOracle(t *testing.T) {
	raster := gridRaster{rect: image.Rect(-3, -2, 17, 11), bands: 2, fn: func(x, y, band int) float64 {
		return float64((x*7+y*13)%23) + float64(band)*0.5
	}}
	region := diagRegion(image.Rect(-3, -2, 17, 11))
	opts := DefaultOptions()
	opts.Rescale = calibration.Rescale{Slope: 2.5, Intercept: -3}

	res, err := Compute(context.Background(), raster, region, opts)
	require.NoError(t, err)
	require.Len(t, res.Bands, 2)

	for band := 0; band < 2; band++ {
		var values []float64
		for y := -2; y < 11; y++ {
			for x := -3; x < 17; x++ {
				if region.ContainsPixel(x, y) {
					values = append(values, raster.Sample(x, y, band)*2.5-3)
				}
			}
		}
		mean, std := stat.PopMeanStdDev(values, nil)
		b := res.Bands[band]
		require.NotNil(t, b)
		assert.Equal(t, len(values), b.Count)
		assert.InDelta(t, mean, b.Mean, 1e-9)
		assert.InDelta(t, std, b.StdDev, 1e-9)
	}
}

func TestCompute_StridedLattice(t *testing.T) {
	raster := uniform(image.Rect(-5, -5, 15, 15), 1)
	opts := DefaultOptions()
	opts.XPeriod = 3
	opts.YPeriod = 2

	// lattice anchored at (-5,-5): x in {-5,-2,1,4,...}, y in {-5,-3,-1,1,...}
	region := rectRegion(image.Rect(0, 0, 10, 4))
	res, err := Compute(context.Background(), raster, region, opts)
	require.NoError(t, err)

	want := 0
	for y := -5; y < 15; y += 2 {
		for x := -5; x < 15; x += 3 {
			if region.ContainsPixel(x, y) {
				want++
			}
		}
	}
	assert.Equal(t, want, res.Samples)
	assert.Equal(t, 6, want)
}

func TestCompute_UnspecifiedRescaleIsIdentity(t *testing.T) {
	raster := uniform(image.Rect(0, 0, 3, 3), 42)
	opts := Options{XPeriod: 1, YPeriod: 1}

	res, err := Compute(context.Background(), raster, rectRegion(raster.rect), opts)
	require.NoError(t, err)
	assert.Equal(t, 42.0, res.Bands[0].Mean)
}

func TestCompute_Cancelled(t *testing.T) {
	raster := uniform(image.Rect(0, 0, 10, 10), 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Compute(ctx, raster, rectRegion(raster.rect), DefaultOptions())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
}

func TestAccumulatorClampsResidue(t *testing.T) {
	var a accumulator
	v := 0.1 + 0.2
	for i := 0; i < 1000; i++ {
		a.add(v)
	}
	b := a.result()
	assert.False(t, math.IsNaN(b.StdDev))
	assert.GreaterOrEqual(t, b.StdDev, 0.0)
	assert.InDelta(t, 0, b.StdDev, 1e-6)
}

func TestAlignUp(t *testing.T) {
	tests := []struct {
		v, origin, period, want int
	}{
		{0, 0, 1, 0},
		{0, -5, 3, 1},
		{1, -5, 3, 1},
		{2, -5, 3, 4},
		{-7, -5, 3, -5},
		{10, 10, 4, 10},
	}
	for _, tt := range tests {
		if got := alignUp(tt.v, tt.origin, tt.period); got != tt.want {
			t.Errorf("alignUp(%d, %d, %d): got %d, want %d", tt.v, tt.origin, tt.period, got, tt.want)
		}
	}
}
