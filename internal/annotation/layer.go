// Package annotation owns the annotations drawn over one image view.
//
// A Layer keeps the view's calibration and raster, the shapes keyed by ID,
// and the interaction machine of the shape being drawn or edited. It turns
// machine notifications into measurement updates: previews carry the quick
// measurements, commits the full set plus pixel statistics. When a
// scheduler is attached, commit statistics run in the background and arrive
// through the listener as a separate update.
//
// A Layer is driven from a single goroutine.
package annotation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ironsheep/image-roi-mcp/internal/calibration"
	apperrors "github.com/ironsheep/image-roi-mcp/internal/errors"
	"github.com/ironsheep/image-roi-mcp/internal/interaction"
	"github.com/ironsheep/image-roi-mcp/internal/logger"
	"github.com/ironsheep/image-roi-mcp/internal/measure"
	"github.com/ironsheep/image-roi-mcp/internal/segmentation"
	"github.com/ironsheep/image-roi-mcp/internal/shape"
	"github.com/ironsheep/image-roi-mcp/internal/stats"
)

// UpdateKind classifies an Update.
type UpdateKind string

const (
	UpdatePreview    UpdateKind = "preview"
	UpdateCommit     UpdateKind = "commit"
	UpdateInvalid    UpdateKind = "invalid"
	UpdateCancelled  UpdateKind = "cancelled"
	UpdateStatistics UpdateKind = "statistics"
)

// Update reports new measurements for one annotation.
type Update struct {
	ID    string         `json:"id"`
	Kind  UpdateKind     `json:"kind"`
	State string         `json:"state"`
	Items []measure.Item `json:"items,omitempty"`
	Error string         `json:"error,omitempty"`
}

// Summary describes a stored annotation.
type Summary struct {
	ID      string `json:"id"`
	Variant string `json:"variant"`
	State   string `json:"state"`
	Label   string `json:"label,omitempty"`
	Handles int    `json:"handles"`
}

// Layer is the annotation container of one view.
type Layer struct {
	cal       calibration.Calibration
	raster    stats.Raster
	engine    *measure.Engine
	statsOpts stats.Options
	tolerance float64
	pointSize float64

	scheduler *stats.Scheduler
	listener  func(Update)
	log       *logrus.Entry

	shapes map[string]*shape.Shape
	order  []string

	machine  *interaction.Machine
	activeID string
	stored   bool
}

// Option configures a Layer.
type Option func(*Layer)

// WithCalibration sets the initial calibration.
func WithCalibration(cal calibration.Calibration) Option {
	return func(l *Layer) { l.cal = cal }
}

// WithRaster sets the pixel source used for statistics.
func WithRaster(r stats.Raster) Option {
	return func(l *Layer) { l.raster = r }
}

// WithEngine replaces the default measurement engine.
func WithEngine(e *measure.Engine) Option {
	return func(l *Layer) { l.engine = e }
}

// WithStatsOptions sets the sampling periods and exclusion range.
func WithStatsOptions(opts stats.Options) Option {
	return func(l *Layer) { l.statsOpts = opts }
}

// WithTolerance sets the handle hit radius for editing.
func WithTolerance(px float64) Option {
	return func(l *Layer) { l.tolerance = px }
}

// WithPointSize sets the disc diameter of new points.
func WithPointSize(size float64) Option {
	return func(l *Layer) { l.pointSize = size }
}

// WithScheduler offloads commit statistics to s; results are passed to
// listener from a worker goroutine.
func WithScheduler(s *stats.Scheduler, listener func(Update)) Option {
	return func(l *Layer) {
		l.scheduler = s
		l.listener = listener
	}
}

// WithLogger sets the log entry used for layer events.
func WithLogger(entry *logrus.Entry) Option {
	return func(l *Layer) { l.log = entry }
}

// NewLayer creates an empty layer.
func NewLayer(opts ...Option) *Layer {
	l := &Layer{
		cal:       calibration.Default(),
		statsOpts: stats.DefaultOptions(),
		tolerance: interaction.DefaultTolerance,
		pointSize: shape.DefaultPointSize,
		shapes:    make(map[string]*shape.Shape),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.engine == nil {
		l.engine = measure.NewEngine(nil)
	}
	if l.log == nil {
		l.log = logger.WithField("component", "annotation")
	}
	return l
}

// Calibration returns the current calibration.
func (l *Layer) Calibration() calibration.Calibration { return l.cal }

// SetCalibration replaces the calibration after validating it.
func (l *Layer) SetCalibration(cal calibration.Calibration) error {
	if err := cal.Validate(); err != nil {
		return err
	}
	l.cal = cal
	return nil
}

// Raster returns the statistics pixel source, or nil.
func (l *Layer) Raster() stats.Raster { return l.raster }

// SetRaster replaces the statistics pixel source.
func (l *Layer) SetRaster(r stats.Raster) { l.raster = r }

// StatsOptions returns the scan options used at commit.
func (l *Layer) StatsOptions() stats.Options { return l.statsOpts }

// SetStatsOptions replaces the scan options used at commit.
func (l *Layer) SetStatsOptions(opts stats.Options) error {
	if opts.XPeriod < 1 || opts.YPeriod < 1 {
		return apperrors.NewInvalidParameterError("sampling periods must be >= 1, got x=%d y=%d", opts.XPeriod, opts.YPeriod)
	}
	l.statsOpts = opts
	return nil
}

func (l *Layer) shapeOptions(extra []shape.Option) []shape.Option {
	return append([]shape.Option{shape.WithPointSize(l.pointSize)}, extra...)
}

func (l *Layer) add(id string, s *shape.Shape) {
	if _, ok := l.shapes[id]; !ok {
		l.order = append(l.order, id)
	}
	l.shapes[id] = s
}

// Create adds a complete annotation from its handles and returns its ID and
// commit measurements.
func (l *Layer) Create(ctx context.Context, v shape.Variant, handles []r2.Vec, opts ...shape.Option) (string, []measure.Item, error) {
	if v == shape.VariantSegmentation {
		return "", nil, apperrors.NewInvalidParameterError("segmentation annotations are added from a region")
	}
	s := shape.New(v, l.shapeOptions(opts)...)
	for _, p := range handles {
		if err := s.AddHandle(p); err != nil {
			return "", nil, err
		}
	}
	if err := s.BuildGeometry(); err != nil {
		return "", nil, err
	}
	id := uuid.NewString()
	l.add(id, s)
	items, err := l.measure(ctx, s, true)
	if err != nil {
		return id, nil, err
	}
	l.log.WithFields(logrus.Fields{"id": id, "variant": v.String()}).Debug("annotation created")
	return id, items, nil
}

// AddSegmentation adds a segmentation region as an annotation keyed by the
// region ID.
func (l *Layer) AddSegmentation(r *segmentation.Region) string {
	l.add(r.ID, r.Shape())
	return r.ID
}

// BeginDraw starts drawing a new annotation of variant v. Any session in
// progress is abandoned.
func (l *Layer) BeginDraw(v shape.Variant, opts ...shape.Option) error {
	if v == shape.VariantSegmentation {
		return apperrors.NewInvalidParameterError("segmentation regions cannot be drawn")
	}
	l.machine = interaction.NewMachine(v,
		interaction.WithTolerance(l.tolerance),
		interaction.WithShapeOptions(l.shapeOptions(opts)...),
	)
	l.activeID = ""
	l.stored = false
	return nil
}

// Edit makes the annotation id the target of subsequent pointer events.
func (l *Layer) Edit(id string) error {
	s, ok := l.shapes[id]
	if !ok {
		return apperrors.NewNotFoundError("annotation", id)
	}
	l.machine = interaction.EditMachine(s, interaction.WithTolerance(l.tolerance))
	l.activeID = id
	l.stored = true
	return nil
}

// Active returns the ID of the annotation receiving pointer events and the
// machine state.
func (l *Layer) Active() (string, interaction.State) {
	if l.machine == nil {
		return "", interaction.StateIdle
	}
	return l.activeID, l.machine.State()
}

// HandleEvent routes a pointer event to the active machine.
func (l *Layer) HandleEvent(ctx context.Context, ev interaction.Event) ([]Update, error) {
	if l.machine == nil {
		return nil, apperrors.NewInvalidParameterError("no drawing or editing session; start one first")
	}
	notes, err := l.machine.Handle(ev)
	if err != nil {
		return nil, err
	}
	var updates []Update
	for _, n := range notes {
		u, err := l.apply(ctx, n)
		if err != nil {
			return updates, err
		}
		updates = append(updates, u)
	}
	return updates, nil
}

func (l *Layer) apply(ctx context.Context, n interaction.Notification) (Update, error) {
	if l.activeID == "" {
		l.activeID = uuid.NewString()
	}
	u := Update{ID: l.activeID, State: n.State.String()}
	switch n.Kind {
	case interaction.NotifyPreview:
		u.Kind = UpdatePreview
		items, err := l.engine.Compute(ctx, n.Shape, l.cal, measure.Options{})
		if err != nil {
			return u, err
		}
		u.Items = items

	case interaction.NotifyCommit:
		u.Kind = UpdateCommit
		if !l.stored {
			l.add(l.activeID, n.Shape)
			l.stored = true
		}
		items, err := l.measure(ctx, n.Shape, !l.async())
		if err != nil {
			return u, err
		}
		u.Items = items
		if l.async() {
			l.submitStatistics(ctx, l.activeID, n.Shape)
		}
		l.log.WithFields(logrus.Fields{"id": l.activeID, "variant": n.Shape.Variant().String()}).Debug("annotation committed")

	case interaction.NotifyInvalid:
		u.Kind = UpdateInvalid
		if n.Err != nil {
			u.Error = n.Err.Error()
		}

	case interaction.NotifyCancelled:
		u.Kind = UpdateCancelled
		if !l.stored || !n.Restored {
			break
		}
		// the restored geometry supersedes whatever the drag committed
		items, err := l.measure(ctx, n.Shape, !l.async())
		if err != nil {
			return u, err
		}
		u.Items = items
		if l.async() {
			l.submitStatistics(ctx, l.activeID, n.Shape)
		}
	}

	if n.State == interaction.StateIdle {
		l.activeID = ""
		l.stored = false
		l.machine = nil
	}
	return u, nil
}

func (l *Layer) async() bool {
	return l.scheduler != nil && l.listener != nil && l.raster != nil
}

// measure computes commit or quick measurements; withStats appends pixel
// statistics when a raster is attached.
func (l *Layer) measure(ctx context.Context, s *shape.Shape, withStats bool) ([]measure.Item, error) {
	opts := measure.Options{Commit: true}
	if withStats && l.raster != nil {
		opts.Stats = &measure.StatsRequest{Raster: l.raster, Options: l.scanOptions()}
	}
	return l.engine.Compute(ctx, s, l.cal, opts)
}

func (l *Layer) scanOptions() stats.Options {
	opts := l.statsOpts
	opts.Rescale = l.cal.Rescale
	return opts
}

func (l *Layer) submitStatistics(ctx context.Context, id string, s *shape.Shape) {
	snapshot := s.Clone()
	cal := l.cal
	bands := l.raster.Bands()
	listener := l.listener
	log := l.log
	job := stats.Job{Raster: l.raster, Region: snapshot, Options: l.scanOptions()}
	l.scheduler.Submit(context.WithoutCancel(ctx), id, job, func(o stats.Outcome) {
		u := Update{ID: o.Key, Kind: UpdateStatistics, State: interaction.StateEditing.String()}
		if o.Err != nil {
			log.WithError(o.Err).WithField("id", o.Key).Warn("statistics failed")
			u.Error = o.Err.Error()
		} else {
			u.Items = measure.StatisticsItems(o.Result, bands, cal)
		}
		listener(u)
	})
}

// Measure computes the measurements of annotation id. A commit pass includes
// pixel statistics when a raster is attached.
func (l *Layer) Measure(ctx context.Context, id string, commit, labelOnly bool) ([]measure.Item, error) {
	s, ok := l.shapes[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("annotation", id)
	}
	opts := measure.Options{Commit: commit, LabelOnly: labelOnly}
	if commit && l.raster != nil {
		opts.Stats = &measure.StatsRequest{Raster: l.raster, Options: l.scanOptions()}
	}
	return l.engine.Compute(ctx, s, l.cal, opts)
}

// Statistics scans the pixels of annotation id. Nil opts uses the layer's
// scan options. The calibration rescale is always applied.
func (l *Layer) Statistics(ctx context.Context, id string, opts *stats.Options) (*stats.Result, error) {
	job, err := l.statsJob(id, opts)
	if err != nil {
		return nil, err
	}
	return stats.Compute(ctx, job.Raster, job.Region, job.Options)
}

// StatisticsAll scans every annotation in ids with at most limit scans in
// flight. Results are in ids order; any failure fails the batch.
func (l *Layer) StatisticsAll(ctx context.Context, ids []string, opts *stats.Options, limit int) ([]*stats.Result, error) {
	jobs := make([]stats.Job, len(ids))
	for i, id := range ids {
		job, err := l.statsJob(id, opts)
		if err != nil {
			return nil, err
		}
		jobs[i] = job
	}
	return stats.ComputeAll(ctx, jobs, limit)
}

func (l *Layer) statsJob(id string, opts *stats.Options) (stats.Job, error) {
	s, ok := l.shapes[id]
	if !ok {
		return stats.Job{}, apperrors.NewNotFoundError("annotation", id)
	}
	if !s.IsValid() {
		return stats.Job{}, apperrors.NewInvalidShapeError("annotation %s is %s", id, s.State())
	}
	scan := l.scanOptions()
	if opts != nil {
		scan = *opts
		scan.Rescale = l.cal.Rescale
	}
	return stats.Job{Raster: l.raster, Region: s, Options: scan}, nil
}

// Get returns annotation id.
func (l *Layer) Get(id string) (*shape.Shape, error) {
	s, ok := l.shapes[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("annotation", id)
	}
	return s, nil
}

// List summarizes every annotation in creation order.
func (l *Layer) List() []Summary {
	out := make([]Summary, 0, len(l.order))
	for _, id := range l.order {
		s := l.shapes[id]
		out = append(out, Summary{
			ID:      id,
			Variant: s.Variant().String(),
			State:   s.State().String(),
			Label:   s.Label(),
			Handles: s.Len(),
		})
	}
	return out
}

// Delete removes annotation id, ending its edit session if active.
func (l *Layer) Delete(id string) error {
	if _, ok := l.shapes[id]; !ok {
		return apperrors.NewNotFoundError("annotation", id)
	}
	delete(l.shapes, id)
	for i, v := range l.order {
		if v == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	if l.activeID == id {
		l.machine = nil
		l.activeID = ""
		l.stored = false
	}
	if l.scheduler != nil {
		l.scheduler.Cancel(id)
	}
	return nil
}

// exported is the persisted form of one annotation.
type exported struct {
	ID    string       `json:"id"`
	Shape shape.Record `json:"shape"`
}

// Export serializes every annotation in creation order.
func (l *Layer) Export() ([]byte, error) {
	out := make([]exported, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, exported{ID: id, Shape: l.shapes[id].Record()})
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("export annotations: %w", err)
	}
	return data, nil
}

// Import adds the annotations of an Export document and returns their IDs.
// Entries without an ID, or whose ID is taken, get a new one. Nothing is
// added when any record is malformed.
func (l *Layer) Import(data []byte) ([]string, error) {
	var in []exported
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, apperrors.NewInvalidParameterError("import annotations: %v", err)
	}
	shapes := make([]*shape.Shape, len(in))
	for i, e := range in {
		s, err := shape.FromRecord(e.Shape)
		if err != nil {
			return nil, fmt.Errorf("import record %d: %w", i, err)
		}
		shapes[i] = s
	}
	ids := make([]string, len(in))
	for i, e := range in {
		id := e.ID
		if _, taken := l.shapes[id]; id == "" || taken {
			id = uuid.NewString()
		}
		l.add(id, shapes[i])
		ids[i] = id
	}
	l.log.WithField("count", len(ids)).Debug("annotations imported")
	return ids, nil
}
