package measure

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ironsheep/image-roi-mcp/internal/calibration"
	"github.com/ironsheep/image-roi-mcp/internal/shape"
	"github.com/ironsheep/image-roi-mcp/internal/stats"
)

// Item is one measurement. A nil Value means it was not computed this pass.
type Item struct {
	Descriptor Descriptor `json:"descriptor"`
	Value      *float64   `json:"value"`
	Unit       string     `json:"unit"`
}

// StatsRequest asks for pixel statistics at commit.
type StatsRequest struct {
	Raster  stats.Raster
	Options stats.Options
}

// Options selects what a Compute pass produces.
type Options struct {
	// Commit computes every measurement, not only the quick ones.
	Commit bool
	// LabelOnly restricts the output to canvas label measurements.
	LabelOnly bool
	// Stats, when set on a commit, appends pixel statistics.
	Stats *StatsRequest
}

// Engine computes measurements from a catalog.
type Engine struct {
	catalog Catalog
}

// NewEngine creates an engine. A nil catalog uses DefaultCatalog.
func NewEngine(catalog Catalog) *Engine {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Engine{catalog: catalog}
}

// Catalog returns the engine's descriptor catalog.
func (e *Engine) Catalog() Catalog { return e.catalog }

// Compute returns the ordered measurements of s. It returns nil without error
// when s is not valid.
func (e *Engine) Compute(ctx context.Context, s *shape.Shape, cal calibration.Calibration, opts Options) ([]Item, error) {
	if s == nil || !s.IsValid() {
		return nil, nil
	}
	values := geometricValues(s, cal)

	var items []Item
	for _, desc := range e.catalog[s.Variant()] {
		if !desc.Computed || (opts.LabelOnly && !desc.GraphicLabel) {
			continue
		}
		v, ok := values[desc.Name]
		if !ok {
			continue
		}
		item := Item{Descriptor: desc, Unit: v.unit}
		if opts.Commit || desc.QuickComputing {
			val := v.value
			item.Value = &val
		}
		items = append(items, item)
	}

	if opts.Commit && !opts.LabelOnly && opts.Stats != nil {
		so := opts.Stats.Options
		if so.Rescale == (calibration.Rescale{}) {
			so.Rescale = cal.Rescale
		}
		res, err := stats.Compute(ctx, opts.Stats.Raster, s, so)
		if err != nil {
			return nil, fmt.Errorf("statistics: %w", err)
		}
		items = append(items, StatisticsItems(res, opts.Stats.Raster.Bands(), cal)...)
	}
	return items, nil
}

// StatisticsItems converts a scan result into measurement items, five per
// band. Bands with no samples yield items with nil values. A nil result
// yields nothing.
func StatisticsItems(res *stats.Result, bands int, cal calibration.Calibration) []Item {
	if res == nil {
		return nil
	}
	items := make([]Item, 0, len(statsDescriptors)*bands)
	for b := 0; b < bands; b++ {
		var band *stats.BandStats
		if b < len(res.Bands) {
			band = res.Bands[b]
		}
		for _, desc := range statsDescriptors {
			item := Item{Descriptor: desc, Unit: cal.ValueUnit}
			if desc.Name == Pixels {
				item.Unit = calibration.PixelUnit
			}
			if band != nil {
				v := bandValue(band, desc.Name)
				item.Value = &v
			}
			if bands > 1 {
				item.Descriptor.Name = fmt.Sprintf("%s (band %d)", desc.Name, b+1)
			}
			items = append(items, item)
		}
	}
	return items
}

func bandValue(band *stats.BandStats, name string) float64 {
	switch name {
	case Min:
		return band.Min
	case Max:
		return band.Max
	case Mean:
		return band.Mean
	case StdDev:
		return band.StdDev
	default:
		return float64(band.Count)
	}
}

type measured struct {
	value float64
	unit  string
}

func geometricValues(s *shape.Shape, cal calibration.Calibration) map[string]measured {
	lu, au := cal.LengthUnit(), cal.AreaUnit()
	out := map[string]measured{}
	center := func(c r2.Vec) {
		out[CenterX] = measured{cal.X(c.X), lu}
		out[CenterY] = measured{cal.Y(c.Y), lu}
	}
	frame := func(b r2.Box) {
		sz := b.Size()
		center(b.Center())
		out[Width] = measured{cal.Length(sz.X), lu}
		out[Height] = measured{cal.Length(sz.Y), lu}
	}

	switch g := s.Geometry().(type) {
	case shape.Frame:
		frame(g.Box)
		out[Area] = measured{cal.Area(g.Area()), au}
		out[Perimeter] = measured{cal.Length(g.Perimeter()), lu}
	case shape.Ellipse:
		if s.Variant() == shape.VariantPoint {
			center(g.Box.Center())
			break
		}
		frame(g.Box)
		out[Area] = measured{cal.Area(g.Area()), au}
		out[Perimeter] = measured{cal.Length(g.Perimeter()), lu}
	case shape.Polygon:
		sz := g.Bounds().Size()
		center(g.Centroid())
		out[Width] = measured{cal.Length(sz.X), lu}
		out[Height] = measured{cal.Length(sz.Y), lu}
		out[Area] = measured{cal.Area(g.Area()), au}
		out[Perimeter] = measured{cal.Length(g.Perimeter()), lu}
	case shape.MaskRegion:
		n := float64(g.Mask.Count())
		out[Pixels] = measured{n, calibration.PixelUnit}
		out[Area] = measured{cal.Area(n), au}
		if cal.Thickness > 0 {
			out[Volume] = measured{cal.Area(n) * cal.Thickness, cal.VolumeUnit()}
		}
	}
	return out
}
