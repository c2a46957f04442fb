// Package measure derives calibrated measurements from shapes.
//
// Each shape variant has a static catalog of descriptors. A descriptor says
// whether the measurement is computed at all, whether it is cheap enough to
// refresh on every drag event, and whether it belongs on the canvas label.
package measure

import (
	"strings"

	apperrors "github.com/ironsheep/image-roi-mcp/internal/errors"
	"github.com/ironsheep/image-roi-mcp/internal/shape"
)

// Measurement names.
const (
	CenterX   = "Center X"
	CenterY   = "Center Y"
	Width     = "Width"
	Height    = "Height"
	Area      = "Area"
	Perimeter = "Perimeter"
	Pixels    = "Pixels"
	Volume    = "Volume"

	Min    = "Min"
	Max    = "Max"
	Mean   = "Mean"
	StdDev = "StDev"
)

// Descriptor is a catalog entry.
type Descriptor struct {
	Name           string `json:"name"`
	Computed       bool   `json:"computed"`
	QuickComputing bool   `json:"quick_computing"`
	GraphicLabel   bool   `json:"graphic_label"`
}

// Catalog maps each variant to its ordered descriptors.
type Catalog map[shape.Variant][]Descriptor

func d(name string, computed, quick, label bool) Descriptor {
	return Descriptor{Name: name, Computed: computed, QuickComputing: quick, GraphicLabel: label}
}

// DefaultCatalog returns a fresh copy of the built-in catalog.
func DefaultCatalog() Catalog {
	return Catalog{
		shape.VariantPoint: {
			d(CenterX, true, true, true),
			d(CenterY, true, true, true),
		},
		shape.VariantRectangle: {
			d(CenterX, true, true, false),
			d(CenterY, true, true, false),
			d(Width, true, true, false),
			d(Height, true, true, false),
			d(Area, true, true, true),
			d(Perimeter, true, true, false),
		},
		shape.VariantEllipse: {
			d(CenterX, true, true, false),
			d(CenterY, true, true, false),
			d(Width, true, true, false),
			d(Height, true, true, false),
			d(Area, true, true, true),
			d(Perimeter, true, true, false),
		},
		shape.VariantPolygon: {
			d(CenterX, true, true, false),
			d(CenterY, true, true, false),
			d(Width, true, true, false),
			d(Height, true, true, false),
			d(Area, true, true, true),
			d(Perimeter, true, true, false),
		},
		shape.VariantSegmentation: {
			d(Pixels, true, true, true),
			d(Area, true, true, true),
			d(Volume, true, true, false),
		},
	}
}

// statsDescriptors are appended at commit when statistics are requested.
var statsDescriptors = []Descriptor{
	d(Min, true, false, false),
	d(Max, true, false, false),
	d(Mean, true, false, false),
	d(StdDev, true, false, false),
	d(Pixels, true, false, false),
}

// Override changes the flags of one descriptor. Nil flags are left as they
// are.
func (c Catalog) Override(variant shape.Variant, name string, computed, quick, label *bool) error {
	list, ok := c[variant]
	if !ok {
		return apperrors.NewInvalidParameterError("no measurements for variant %s", variant)
	}
	for i := range list {
		if !strings.EqualFold(list[i].Name, name) {
			continue
		}
		if computed != nil {
			list[i].Computed = *computed
		}
		if quick != nil {
			list[i].QuickComputing = *quick
		}
		if label != nil {
			list[i].GraphicLabel = *label
		}
		return nil
	}
	return apperrors.NewInvalidParameterError("variant %s has no measurement %q", variant, name)
}
