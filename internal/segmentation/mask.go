package segmentation

import (
	"image"
	"image/color"
	"sort"

	"github.com/ironsheep/image-roi-mcp/internal/shape"
)

// MaskFromImage sets every pixel of img whose 16-bit gray level is above
// threshold. The mask covers img's bounds, origin included.
func MaskFromImage(img image.Image, threshold uint16) *shape.Mask {
	b := img.Bounds()
	m := shape.NewMask(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if gray16(img.At(x, y)) > threshold {
				m.Set(x, y, true)
			}
		}
	}
	return m
}

// LabelMasks splits a label image into one mask per distinct non-zero gray
// level, returned with the levels in ascending order.
func LabelMasks(img image.Image) ([]uint16, map[uint16]*shape.Mask) {
	b := img.Bounds()
	masks := map[uint16]*shape.Mask{}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := gray16(img.At(x, y))
			if v == 0 {
				continue
			}
			m, ok := masks[v]
			if !ok {
				m = shape.NewMask(b)
				masks[v] = m
			}
			m.Set(x, y, true)
		}
	}
	levels := make([]uint16, 0, len(masks))
	for v := range masks {
		levels = append(levels, v)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })
	return levels, masks
}

func gray16(c color.Color) uint16 {
	return color.Gray16Model.Convert(c).(color.Gray16).Y
}
