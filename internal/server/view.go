package server

import (
	"image"
	"sync"

	"github.com/ironsheep/image-roi-mcp/internal/annotation"
	"github.com/ironsheep/image-roi-mcp/internal/calibration"
	"github.com/ironsheep/image-roi-mcp/internal/imaging"
	"github.com/ironsheep/image-roi-mcp/internal/logger"
	"github.com/ironsheep/image-roi-mcp/internal/segmentation"
)

// view is the annotation state attached to one loaded image.
type view struct {
	path   string
	img    image.Image
	raster *imaging.Raster
	layer  *annotation.Layer
	tree   *segmentation.Tree

	// pending collects statistics updates delivered by worker goroutines
	// until the next tool call drains them.
	mu      sync.Mutex
	pending []annotation.Update
}

func (v *view) enqueue(u annotation.Update) {
	v.mu.Lock()
	v.pending = append(v.pending, u)
	v.mu.Unlock()
}

func (v *view) drain() []annotation.Update {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := v.pending
	v.pending = nil
	return out
}

// openView loads path and returns its view, creating it on first use. A
// non-empty mode that differs from the current raster mode rebuilds the
// raster in place; annotations are kept.
func (s *Server) openView(path string, mode imaging.BandMode) (*view, error) {
	if v, ok := s.views[path]; ok {
		if mode != "" && mode != v.raster.Mode() {
			r, err := imaging.NewRaster(v.img, mode)
			if err != nil {
				return nil, err
			}
			v.raster = r
			v.layer.SetRaster(r)
		}
		return v, nil
	}

	img, err := s.cache.Load(path)
	if err != nil {
		return nil, err
	}
	r, err := imaging.NewRaster(img, mode)
	if err != nil {
		return nil, err
	}

	cal := calibration.Default()
	cal.ImageHeight = float64(img.Bounds().Dy())

	v := &view{path: path, img: img, raster: r, tree: segmentation.NewTree()}
	v.layer = annotation.NewLayer(
		annotation.WithCalibration(cal),
		annotation.WithRaster(r),
		annotation.WithEngine(s.engine),
		annotation.WithTolerance(s.cfg.HandleTolerance),
		annotation.WithPointSize(s.cfg.PointSize),
		annotation.WithScheduler(s.scheduler, v.enqueue),
		annotation.WithLogger(logger.WithField("component", "annotation").WithField("path", path)),
	)
	s.views[path] = v
	s.log.WithField("path", path).WithField("bands", r.Bands()).Info("image attached")
	return v, nil
}

// viewFor returns the view of path, loading the image in auto mode if it
// has not been loaded yet.
func (s *Server) viewFor(path string) (*view, error) {
	return s.openView(path, "")
}
