package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ironsheep/image-roi-mcp/internal/annotation"
	"github.com/ironsheep/image-roi-mcp/internal/calibration"
	apperrors "github.com/ironsheep/image-roi-mcp/internal/errors"
	"github.com/ironsheep/image-roi-mcp/internal/imaging"
	"github.com/ironsheep/image-roi-mcp/internal/interaction"
	"github.com/ironsheep/image-roi-mcp/internal/measure"
	"github.com/ironsheep/image-roi-mcp/internal/segmentation"
	"github.com/ironsheep/image-roi-mcp/internal/shape"
	"github.com/ironsheep/image-roi-mcp/internal/stats"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_load", "annotation_create").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Invalid arguments return code -32602; every other tool failure returns
// code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, apperrors.CodeInvalidParams, "Invalid params", err.Error())
	}

	result, err := s.executeTool(context.Background(), params.Name, params.Arguments)
	if err != nil {
		code := apperrors.Code(err)
		entry := s.log.WithError(err).WithField("tool", params.Name)
		if apperrors.IsType(err, apperrors.ErrorTypeInternal) {
			entry.Error("tool failed")
		} else {
			entry.Debug("tool failed")
		}
		if code == apperrors.CodeInvalidParams {
			return s.errorResponse(req.ID, code, "Invalid params", err.Error())
		}
		return s.errorResponse(req.ID, code, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
//
// Each tool handler:
//  1. Unmarshals arguments from JSON
//  2. Resolves the image view, loading the image on first use
//  3. Calls the annotation layer, imaging or segmentation function
//  4. Returns the result or error
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Image
	case "image_load":
		return s.handleImageLoad(args)
	case "image_dimensions":
		return s.handleImageDimensions(args)
	case "image_calibrate":
		return s.handleImageCalibrate(args)
	case "image_sample_pixel":
		return s.handleImageSamplePixel(args)

	// Annotations
	case "annotation_create":
		return s.handleAnnotationCreate(ctx, args)
	case "annotation_event":
		return s.handleAnnotationEvent(ctx, args)
	case "annotation_measure":
		return s.handleAnnotationMeasure(ctx, args)
	case "annotation_statistics":
		return s.handleAnnotationStatistics(ctx, args)
	case "annotation_list":
		return s.handleAnnotationList(args)
	case "annotation_delete":
		return s.handleAnnotationDelete(args)
	case "annotation_export":
		return s.handleAnnotationExport(args)
	case "annotation_import":
		return s.handleAnnotationImport(args)
	case "annotation_crop":
		return s.handleAnnotationCrop(args)

	// Segmentation
	case "segmentation_load":
		return s.handleSegmentationLoad(args)
	case "segmentation_visibility":
		return s.handleSegmentationVisibility(args)
	case "segmentation_list":
		return s.handleSegmentationList(args)

	default:
		return nil, apperrors.NewInvalidParameterError("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// decodeArgs unmarshals tool arguments; a missing object decodes as empty.
func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if err := json.Unmarshal(args, v); err != nil {
		return apperrors.NewInvalidParameterError("invalid arguments: %v", err)
	}
	return nil
}

// pathArgs is embedded by every tool that works on one image.
type pathArgs struct {
	Path string `json:"path"`
}

func (a pathArgs) check() error {
	if strings.TrimSpace(a.Path) == "" {
		return apperrors.NewInvalidParameterError("path is required")
	}
	return nil
}

// viewArgs decodes args into v and returns the view of its path.
func (s *Server) viewArgs(args json.RawMessage, v interface{ check() error }, path func() string) (*view, error) {
	if err := decodeArgs(args, v); err != nil {
		return nil, err
	}
	if err := v.check(); err != nil {
		return nil, err
	}
	return s.viewFor(path())
}

// === Image Handlers ===

type imageLoadArgs struct {
	pathArgs
	BandMode string `json:"band_mode"`
}

type imageLoadResult struct {
	*imaging.ImageInfo
	BandMode    imaging.BandMode        `json:"band_mode"`
	BandNames   []string                `json:"band_names"`
	Calibration calibration.Calibration `json:"calibration"`
	Annotations int                     `json:"annotations"`
	Cached      bool                    `json:"cached"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := a.check(); err != nil {
		return nil, err
	}
	mode, err := imaging.ParseBandMode(a.BandMode)
	if err != nil {
		return nil, apperrors.NewInvalidParameterError("%v", err)
	}
	cached := s.cache.Contains(a.Path)
	info, err := imaging.LoadImageInfo(s.cache, a.Path)
	if err != nil {
		return nil, err
	}
	v, err := s.openView(a.Path, mode)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"path": a.Path, "cached": cached, "cache_len": s.cache.Len()}).Debug("image loaded")
	return &imageLoadResult{
		ImageInfo:   info,
		Cached:      cached,
		BandMode:    v.raster.Mode(),
		BandNames:   v.raster.BandNames(),
		Calibration: v.layer.Calibration(),
		Annotations: len(v.layer.List()),
	}, nil
}

func (s *Server) handleImageDimensions(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := a.check(); err != nil {
		return nil, err
	}
	return imaging.GetDimensions(s.cache, a.Path)
}

type imageCalibrateArgs struct {
	pathArgs
	Ratio     *float64 `json:"ratio"`
	Unit      *string  `json:"unit"`
	Slope     *float64 `json:"rescale_slope"`
	Intercept *float64 `json:"rescale_intercept"`
	OffsetX   *float64 `json:"offset_x"`
	OffsetY   *float64 `json:"offset_y"`
	UpYAxis   *bool    `json:"up_y_axis"`
	Thickness *float64 `json:"thickness"`
	ValueUnit *string  `json:"value_unit"`
}

// handleImageCalibrate updates the fields given and keeps the others.
func (s *Server) handleImageCalibrate(args json.RawMessage) (interface{}, error) {
	var a imageCalibrateArgs
	v, err := s.viewArgs(args, &a, func() string { return a.Path })
	if err != nil {
		return nil, err
	}
	cal := v.layer.Calibration()
	if a.Ratio != nil {
		cal.Ratio = *a.Ratio
	}
	if a.Unit != nil {
		cal.Unit = *a.Unit
	}
	if a.Slope != nil {
		cal.Rescale.Slope = *a.Slope
	}
	if a.Intercept != nil {
		cal.Rescale.Intercept = *a.Intercept
	}
	if a.OffsetX != nil {
		cal.OffsetX = *a.OffsetX
	}
	if a.OffsetY != nil {
		cal.OffsetY = *a.OffsetY
	}
	if a.UpYAxis != nil {
		cal.UpYAxis = *a.UpYAxis
	}
	if a.Thickness != nil {
		cal.Thickness = *a.Thickness
	}
	if a.ValueUnit != nil {
		cal.ValueUnit = *a.ValueUnit
	}
	if err := v.layer.SetCalibration(cal); err != nil {
		return nil, err
	}
	return v.layer.Calibration(), nil
}

type imageSamplePixelArgs struct {
	pathArgs
	X int `json:"x"`
	Y int `json:"y"`
}

func (s *Server) handleImageSamplePixel(args json.RawMessage) (interface{}, error) {
	var a imageSamplePixelArgs
	v, err := s.viewArgs(args, &a, func() string { return a.Path })
	if err != nil {
		return nil, err
	}
	sample, err := imaging.SamplePixel(v.raster, v.img, a.X, a.Y, v.layer.Calibration())
	if err != nil {
		return nil, apperrors.NewInvalidParameterError("%v", err)
	}
	return sample, nil
}

// === Annotation Handlers ===

type annotationCreateArgs struct {
	pathArgs
	Variant    string        `json:"variant"`
	Handles    []shape.Point `json:"handles"`
	Label      string        `json:"label"`
	PointSize  *float64      `json:"point_size"`
	MaxHandles *int          `json:"max_vertices"`
}

func (a annotationCreateArgs) shapeOptions() []shape.Option {
	var opts []shape.Option
	if a.Label != "" {
		opts = append(opts, shape.WithLabel(a.Label))
	}
	if a.PointSize != nil {
		opts = append(opts, shape.WithPointSize(*a.PointSize))
	}
	if a.MaxHandles != nil {
		opts = append(opts, shape.WithMaxHandles(*a.MaxHandles))
	}
	return opts
}

type annotationResult struct {
	ID    string         `json:"id"`
	Items []measure.Item `json:"items"`
	// Statistics holds asynchronous statistics updates delivered since the
	// previous call on the same image.
	Statistics []annotation.Update `json:"statistics,omitempty"`
}

func toVecs(pts []shape.Point) []r2.Vec {
	out := make([]r2.Vec, len(pts))
	for i, p := range pts {
		out[i] = r2.Vec{X: p.X, Y: p.Y}
	}
	return out
}

func (s *Server) handleAnnotationCreate(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a annotationCreateArgs
	v, err := s.viewArgs(args, &a, func() string { return a.Path })
	if err != nil {
		return nil, err
	}
	variant, err := shape.ParseVariant(a.Variant)
	if err != nil {
		return nil, err
	}
	id, items, err := v.layer.Create(ctx, variant, toVecs(a.Handles), a.shapeOptions()...)
	if err != nil {
		return nil, err
	}
	return &annotationResult{ID: id, Items: items, Statistics: v.drain()}, nil
}

type annotationEventArgs struct {
	annotationCreateArgs
	Event  string  `json:"event"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Commit bool    `json:"commit"`
	ID     string  `json:"id"`
}

type annotationEventResult struct {
	Updates    []annotation.Update `json:"updates"`
	ActiveID   string              `json:"active_id,omitempty"`
	State      string              `json:"state"`
	Statistics []annotation.Update `json:"statistics,omitempty"`
}

// handleAnnotationEvent feeds one pointer event to the image's session. A
// variant starts a new drawing session first; an id that is not the active
// annotation starts editing it.
func (s *Server) handleAnnotationEvent(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a annotationEventArgs
	v, err := s.viewArgs(args, &a, func() string { return a.Path })
	if err != nil {
		return nil, err
	}
	kind, err := interaction.ParseEventKind(strings.ToLower(strings.TrimSpace(a.Event)))
	if err != nil {
		return nil, apperrors.NewInvalidParameterError("%v", err)
	}

	switch active, _ := v.layer.Active(); {
	case a.Variant != "":
		variant, err := shape.ParseVariant(a.Variant)
		if err != nil {
			return nil, err
		}
		if err := v.layer.BeginDraw(variant, a.shapeOptions()...); err != nil {
			return nil, err
		}
	case a.ID != "" && a.ID != active:
		if err := v.layer.Edit(a.ID); err != nil {
			return nil, err
		}
	}

	ev := interaction.Event{Kind: kind, Pos: r2.Vec{X: a.X, Y: a.Y}, IsCommit: a.Commit}
	updates, err := v.layer.HandleEvent(ctx, ev)
	if err != nil {
		return nil, err
	}
	id, state := v.layer.Active()
	return &annotationEventResult{
		Updates:    updates,
		ActiveID:   id,
		State:      state.String(),
		Statistics: v.drain(),
	}, nil
}

type annotationIDArgs struct {
	pathArgs
	ID string `json:"id"`
}

func (a annotationIDArgs) check() error {
	if err := a.pathArgs.check(); err != nil {
		return err
	}
	if a.ID == "" {
		return apperrors.NewInvalidParameterError("id is required")
	}
	return nil
}

type annotationMeasureArgs struct {
	annotationIDArgs
	Commit    *bool `json:"commit"`
	LabelOnly bool  `json:"label_only"`
}

func (s *Server) handleAnnotationMeasure(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a annotationMeasureArgs
	v, err := s.viewArgs(args, &a, func() string { return a.Path })
	if err != nil {
		return nil, err
	}
	commit := a.Commit == nil || *a.Commit
	items, err := v.layer.Measure(ctx, a.ID, commit, a.LabelOnly)
	if err != nil {
		return nil, err
	}
	return &annotationResult{ID: a.ID, Items: items, Statistics: v.drain()}, nil
}

type annotationStatisticsArgs struct {
	pathArgs
	ID      string       `json:"id"`
	IDs     []string     `json:"ids"`
	XPeriod *int         `json:"x_period"`
	YPeriod *int         `json:"y_period"`
	Exclude *stats.Range `json:"exclude"`
	ROI     string       `json:"roi_id"`
}

func (a annotationStatisticsArgs) check() error {
	if err := a.pathArgs.check(); err != nil {
		return err
	}
	if a.ID == "" && len(a.IDs) == 0 {
		return apperrors.NewInvalidParameterError("id or ids is required")
	}
	return nil
}

type annotationStatisticsResult struct {
	ID        string         `json:"id"`
	BandNames []string       `json:"band_names"`
	Result    *stats.Result  `json:"result"`
	Items     []measure.Item `json:"items"`
}

func (s *Server) handleAnnotationStatistics(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a annotationStatisticsArgs
	v, err := s.viewArgs(args, &a, func() string { return a.Path })
	if err != nil {
		return nil, err
	}
	opts := v.layer.StatsOptions()
	if a.XPeriod != nil {
		opts.XPeriod = *a.XPeriod
	}
	if a.YPeriod != nil {
		opts.YPeriod = *a.YPeriod
	}
	if a.Exclude != nil {
		if a.Exclude.Lo > a.Exclude.Hi {
			return nil, apperrors.NewInvalidParameterError("exclude range lo %v > hi %v", a.Exclude.Lo, a.Exclude.Hi)
		}
		opts.Excluded = a.Exclude
	}
	if a.ROI != "" {
		roi, err := v.layer.Get(a.ROI)
		if err != nil {
			return nil, err
		}
		opts.ROI = roi
	}
	if len(a.IDs) == 0 {
		res, err := v.layer.Statistics(ctx, a.ID, &opts)
		if err != nil {
			return nil, err
		}
		return s.statisticsResult(v, a.ID, res), nil
	}

	ids := a.IDs
	if a.ID != "" {
		ids = append([]string{a.ID}, ids...)
	}
	results, err := v.layer.StatisticsAll(ctx, ids, &opts, s.pool.Workers())
	if err != nil {
		return nil, err
	}
	out := &annotationStatisticsBatch{Results: make([]*annotationStatisticsResult, len(ids))}
	for i, id := range ids {
		out.Results[i] = s.statisticsResult(v, id, results[i])
	}
	return out, nil
}

type annotationStatisticsBatch struct {
	Results []*annotationStatisticsResult `json:"results"`
}

func (s *Server) statisticsResult(v *view, id string, res *stats.Result) *annotationStatisticsResult {
	return &annotationStatisticsResult{
		ID:        id,
		BandNames: v.raster.BandNames(),
		Result:    res,
		Items:     measure.StatisticsItems(res, v.raster.Bands(), v.layer.Calibration()),
	}
}

type annotationListResult struct {
	Annotations []annotation.Summary `json:"annotations"`
	ActiveID    string               `json:"active_id,omitempty"`
	State       string               `json:"state"`
	Statistics  []annotation.Update  `json:"statistics,omitempty"`
}

func (s *Server) handleAnnotationList(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	v, err := s.viewArgs(args, &a, func() string { return a.Path })
	if err != nil {
		return nil, err
	}
	id, state := v.layer.Active()
	return &annotationListResult{
		Annotations: v.layer.List(),
		ActiveID:    id,
		State:       state.String(),
		Statistics:  v.drain(),
	}, nil
}

func (s *Server) handleAnnotationDelete(args json.RawMessage) (interface{}, error) {
	var a annotationIDArgs
	v, err := s.viewArgs(args, &a, func() string { return a.Path })
	if err != nil {
		return nil, err
	}
	if err := v.layer.Delete(a.ID); err != nil {
		return nil, err
	}
	return map[string]interface{}{"deleted": a.ID}, nil
}

type annotationDocument struct {
	Annotations json.RawMessage `json:"annotations"`
}

func (s *Server) handleAnnotationExport(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	v, err := s.viewArgs(args, &a, func() string { return a.Path })
	if err != nil {
		return nil, err
	}
	data, err := v.layer.Export()
	if err != nil {
		return nil, err
	}
	return &annotationDocument{Annotations: data}, nil
}

type annotationImportArgs struct {
	pathArgs
	annotationDocument
}

func (s *Server) handleAnnotationImport(args json.RawMessage) (interface{}, error) {
	var a annotationImportArgs
	v, err := s.viewArgs(args, &a, func() string { return a.Path })
	if err != nil {
		return nil, err
	}
	if len(a.Annotations) == 0 {
		return nil, apperrors.NewInvalidParameterError("annotations is required")
	}
	ids, err := v.layer.Import(a.Annotations)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"ids": ids}, nil
}

type annotationCropArgs struct {
	annotationIDArgs
	Scale float64 `json:"scale"`
	// Mode is "shape" (default, outside pixels transparent) or "bounds"
	// (the plain bounding box).
	Mode string `json:"mode"`
}

func (s *Server) handleAnnotationCrop(args json.RawMessage) (interface{}, error) {
	var a annotationCropArgs
	v, err := s.viewArgs(args, &a, func() string { return a.Path })
	if err != nil {
		return nil, err
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}
	if a.Scale < 0 {
		return nil, apperrors.NewInvalidParameterError("scale must be > 0, got %v", a.Scale)
	}
	sh, err := v.layer.Get(a.ID)
	if err != nil {
		return nil, err
	}
	if !sh.IsValid() {
		return nil, apperrors.NewInvalidShapeError("annotation %s is %s", a.ID, sh.State())
	}
	switch a.Mode {
	case "", "shape":
		return imaging.CropShape(v.img, sh, a.Scale)
	case "bounds":
		r := sh.PixelBounds()
		if m := sh.Mask(); m != nil {
			r = m.TightBounds()
		}
		r = r.Intersect(v.img.Bounds())
		if r.Empty() {
			return nil, apperrors.NewInvalidParameterError("annotation %s does not overlap the image", a.ID)
		}
		return imaging.Crop(v.img, r, a.Scale)
	default:
		return nil, apperrors.NewInvalidParameterError("unknown crop mode %q (want shape or bounds)", a.Mode)
	}
}

// === Segmentation Handlers ===

type segmentationLoadArgs struct {
	pathArgs
	MaskPath      string `json:"mask_path"`
	Group         string `json:"group"`
	Label         string `json:"label"`
	AlgorithmType string `json:"algorithm_type"`
	Threshold     uint16 `json:"threshold"`
	SplitLabels   bool   `json:"split_labels"`
}

func (a segmentationLoadArgs) check() error {
	if err := a.pathArgs.check(); err != nil {
		return err
	}
	if strings.TrimSpace(a.MaskPath) == "" {
		return apperrors.NewInvalidParameterError("mask_path is required")
	}
	return nil
}

type regionResult struct {
	*segmentation.Region
	Group       string   `json:"group"`
	Volume      *float64 `json:"volume,omitempty"`
	Description string   `json:"description"`
}

func describeRegion(group string, r *segmentation.Region, cal calibration.Calibration) regionResult {
	out := regionResult{Region: r, Group: group, Description: r.Describe(cal)}
	if cal.Thickness > 0 {
		vol := r.Volume(cal)
		out.Volume = &vol
	}
	return out
}

// handleSegmentationLoad reads a mask image and adds its regions to the
// image's segment tree and annotation layer. With split_labels every
// distinct non-zero level becomes its own region; otherwise pixels above
// threshold form one region.
func (s *Server) handleSegmentationLoad(args json.RawMessage) (interface{}, error) {
	var a segmentationLoadArgs
	v, err := s.viewArgs(args, &a, func() string { return a.Path })
	if err != nil {
		return nil, err
	}
	if a.Group == "" {
		a.Group = "Segmentation"
	}
	if a.Label == "" {
		a.Label = "Segment"
	}
	if a.AlgorithmType == "" {
		a.AlgorithmType = "External"
	}

	maskImg, err := s.cache.Load(a.MaskPath)
	if err != nil {
		return nil, err
	}

	var regions []*segmentation.Region
	if a.SplitLabels {
		levels, masks := segmentation.LabelMasks(maskImg)
		for _, level := range levels {
			r, err := segmentation.NewRegion(fmt.Sprintf("%s %d", a.Label, level), a.AlgorithmType, masks[level])
			if err != nil {
				return nil, err
			}
			regions = append(regions, r)
		}
	} else {
		r, err := segmentation.NewRegion(a.Label, a.AlgorithmType, segmentation.MaskFromImage(maskImg, a.Threshold))
		if err != nil {
			return nil, err
		}
		regions = append(regions, r)
	}
	if len(regions) == 0 {
		return nil, apperrors.NewInvalidShapeError("mask %s has no labelled pixels", a.MaskPath)
	}

	cal := v.layer.Calibration()
	out := make([]regionResult, len(regions))
	for i, r := range regions {
		v.tree.Add(a.Group, r)
		v.layer.AddSegmentation(r)
		out[i] = describeRegion(a.Group, r, cal)
	}
	v.tree.Apply()
	s.log.WithField("path", a.Path).WithField("regions", len(regions)).Info("segmentation loaded")
	return map[string]interface{}{"regions": out}, nil
}

type segmentationVisibilityArgs struct {
	pathArgs
	Root          *bool    `json:"root_checked"`
	Group         string   `json:"group"`
	GroupChecked  *bool    `json:"group_checked"`
	Opacity       *float64 `json:"opacity"`
	RegionID      string   `json:"region_id"`
	RegionChecked *bool    `json:"region_checked"`
}

func (s *Server) handleSegmentationVisibility(args json.RawMessage) (interface{}, error) {
	var a segmentationVisibilityArgs
	v, err := s.viewArgs(args, &a, func() string { return a.Path })
	if err != nil {
		return nil, err
	}
	if a.Root != nil {
		v.tree.RootChecked = *a.Root
	}
	if a.Group != "" {
		g, ok := v.tree.Group(a.Group)
		if !ok {
			return nil, apperrors.NewNotFoundError("segment group", a.Group)
		}
		if a.GroupChecked != nil {
			g.Checked = *a.GroupChecked
		}
		if a.Opacity != nil {
			if err := g.SetOpacity(*a.Opacity); err != nil {
				return nil, err
			}
		}
	}
	if a.RegionID != "" && a.RegionChecked != nil {
		if err := v.tree.SetRegionChecked(a.RegionID, *a.RegionChecked); err != nil {
			return nil, err
		}
	}

	visible := v.tree.Apply()
	ids := make([]string, len(visible))
	for i, r := range visible {
		ids[i] = r.ID
	}
	return map[string]interface{}{"visible": ids}, nil
}

type groupResult struct {
	Name    string         `json:"name"`
	Checked bool           `json:"checked"`
	Opacity float64        `json:"opacity"`
	Regions []regionResult `json:"regions"`
}

func (s *Server) handleSegmentationList(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	v, err := s.viewArgs(args, &a, func() string { return a.Path })
	if err != nil {
		return nil, err
	}
	cal := v.layer.Calibration()
	v.tree.Apply()
	groups := make([]groupResult, 0, len(v.tree.Groups()))
	for _, g := range v.tree.Groups() {
		gr := groupResult{Name: g.Name, Checked: g.Checked, Opacity: g.Opacity}
		for _, r := range g.Regions() {
			gr.Regions = append(gr.Regions, describeRegion(g.Name, r, cal))
		}
		groups = append(groups, gr)
	}
	return map[string]interface{}{
		"root_checked": v.tree.RootChecked,
		"groups":       groups,
	}, nil
}
