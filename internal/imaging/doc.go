// Package imaging loads images and adapts them for region-of-interest work.
//
// It provides the decoded-image cache, a planar Raster view that the
// statistics engine samples, pixel probing (raw, rescaled and display color)
// and cropping to either a rectangle or an arbitrary shape. Coordinates are
// the image's own: (0,0) is usually the top-left corner, X increases
// rightward and Y increases downward, but decoded sub-images may have a
// non-zero origin and every operation honors it.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//   - For regions, (x1,y1) is inclusive (top-left), (x2,y2) is exclusive (bottom-right)
//
// # Bands
//
// A Raster has one value plane per band. Grayscale images (8 or 16 bit)
// expose their raw values as a single band; color images expose R, G and B,
// or CIE L*a*b* in ModeLab.
//
// # Thread Safety
//
// ImageCache and Raster are safe for concurrent use. Images returned by the
// cache are shared and must not be modified.
//
// # Color Representation
//
// Colors are returned in multiple formats for flexibility:
//   - Hex: 6-character format "#RRGGBB" (alpha excluded)
//   - RGB: 8-bit components (0-255)
//   - RGBA: 8-bit components with alpha (0-255)
//   - HSL: Hue (0-360), Saturation (0-100), Lightness (0-100)
//
// # Performance Considerations
//
// The cache is bounded; the least recently used image is dropped when it is
// full. Raster planes are float64, so a raster costs eight bytes per pixel
// per band on top of the decoded image.
package imaging
