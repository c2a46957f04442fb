package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func prop(typ, description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        typ,
		"description": description,
	}
}

func schema(required []string, props map[string]interface{}) map[string]interface{} {
	props["path"] = prop("string", "Absolute path to the image file")
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   append([]string{"path"}, required...),
	}
}

var pointSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"x": map[string]interface{}{"type": "number"},
		"y": map[string]interface{}{"type": "number"},
	},
	"required": []string{"x", "y"},
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Image
		{
			Name:        "image_load",
			Description: "Load an image file and return its dimensions, format and value bands. Later tools on the same path share its calibration and annotations.",
			InputSchema: schema(nil, map[string]interface{}{
				"band_mode": map[string]interface{}{
					"type":        "string",
					"description": "How pixels map to statistic bands. auto reads grayscale images as raw values and color images as RGB.",
					"enum":        []string{"auto", "gray", "rgb", "lab"},
					"default":     "auto",
				},
			}),
		},
		{
			Name:        "image_dimensions",
			Description: "Get the width, height and origin of an image file.",
			InputSchema: schema(nil, map[string]interface{}{}),
		},
		{
			Name:        "image_calibrate",
			Description: "Set the spatial calibration and value rescale of an image. Omitted fields keep their current value. Returns the resulting calibration.",
			InputSchema: schema(nil, map[string]interface{}{
				"ratio":             prop("number", "Real-world length of one pixel edge (> 0)"),
				"unit":              prop("string", "Length unit label, e.g. mm. 'pix' means uncalibrated"),
				"rescale_slope":     prop("number", "Raw value rescale slope"),
				"rescale_intercept": prop("number", "Raw value rescale intercept"),
				"offset_x":          prop("number", "Pixel offset added to X before calibration"),
				"offset_y":          prop("number", "Pixel offset added to Y before calibration"),
				"up_y_axis":         prop("boolean", "Calibrated Y grows upwards from the bottom edge"),
				"thickness":         prop("number", "Slice thickness in length units, used for segment volumes"),
				"value_unit":        prop("string", "Unit of rescaled pixel values, e.g. HU"),
			}),
		},
		{
			Name:        "image_sample_pixel",
			Description: "Get the raw and rescaled band values and the display color at a pixel.",
			InputSchema: schema([]string{"x", "y"}, map[string]interface{}{
				"x": prop("integer", "Pixel X coordinate"),
				"y": prop("integer", "Pixel Y coordinate"),
			}),
		},

		// Annotations
		{
			Name:        "annotation_create",
			Description: "Create a complete annotation from its handles and return its ID and measurements, including pixel statistics.",
			InputSchema: schema([]string{"variant", "handles"}, map[string]interface{}{
				"variant": map[string]interface{}{
					"type":        "string",
					"description": "Shape kind",
					"enum":        []string{"point", "rectangle", "ellipse", "polygon"},
				},
				"handles": map[string]interface{}{
					"type":        "array",
					"description": "Handle positions: one center for a point, two opposite corners for a rectangle or ellipse, three or more vertices for a polygon",
					"items":       pointSchema,
				},
				"label":        prop("string", "Optional annotation label"),
				"point_size":   prop("number", "Disc diameter of a point in pixels"),
				"max_vertices": prop("integer", "Vertex cap of a polygon; -1 for unbounded"),
			}),
		},
		{
			Name:        "annotation_event",
			Description: "Send one pointer event (start, move, release, cancel, finish) to the image's drawing or editing session. Pass variant with the first start event to draw a new shape, or id to edit an existing one. Returns preview, commit, invalid or cancelled updates with their measurements.",
			InputSchema: schema([]string{"event"}, map[string]interface{}{
				"event": map[string]interface{}{
					"type":        "string",
					"description": "Pointer event kind",
					"enum":        []string{"start", "move", "release", "cancel", "finish"},
				},
				"x":            prop("number", "Pointer X in pixels"),
				"y":            prop("number", "Pointer Y in pixels"),
				"commit":       prop("boolean", "Promote a move to a commit: full measurements instead of a preview"),
				"variant":      prop("string", "Start drawing a new shape of this kind, abandoning any session in progress"),
				"id":           prop("string", "Start editing this annotation"),
				"label":        prop("string", "Label of a new shape"),
				"point_size":   prop("number", "Disc diameter of a new point"),
				"max_vertices": prop("integer", "Vertex cap of a new polygon"),
			}),
		},
		{
			Name:        "annotation_measure",
			Description: "Compute the measurements of an annotation. A commit pass (default) includes pixel statistics.",
			InputSchema: schema([]string{"id"}, map[string]interface{}{
				"id":         prop("string", "Annotation ID"),
				"commit":     prop("boolean", "Full measurements (true) or quick ones only (false)"),
				"label_only": prop("boolean", "Only measurements flagged for the on-image label"),
			}),
		},
		{
			Name:        "annotation_statistics",
			Description: "Scan the pixels enclosed by an annotation and return min, max, mean, standard deviation and pixel count per band, after the calibration rescale. Pass ids to scan several annotations in parallel; the result is then a list.",
			InputSchema: schema(nil, map[string]interface{}{
				"id": prop("string", "Annotation ID"),
				"ids": map[string]interface{}{
					"type":        "array",
					"description": "Annotation IDs scanned as one batch",
					"items":       map[string]interface{}{"type": "string"},
				},
				"x_period": prop("integer", "Sample every Nth column (>= 1)"),
				"y_period": prop("integer", "Sample every Nth row (>= 1)"),
				"exclude": map[string]interface{}{
					"type":        "object",
					"description": "Closed range of rescaled values to skip",
					"properties": map[string]interface{}{
						"lo": map[string]interface{}{"type": "number"},
						"hi": map[string]interface{}{"type": "number"},
					},
					"required": []string{"lo", "hi"},
				},
				"roi_id": prop("string", "Only count pixels also enclosed by this annotation"),
			}),
		},
		{
			Name:        "annotation_list",
			Description: "List the annotations of an image, the active session and any statistics computed in the background since the last call.",
			InputSchema: schema(nil, map[string]interface{}{}),
		},
		{
			Name:        "annotation_delete",
			Description: "Delete an annotation.",
			InputSchema: schema([]string{"id"}, map[string]interface{}{
				"id": prop("string", "Annotation ID"),
			}),
		},
		{
			Name:        "annotation_export",
			Description: "Serialize every annotation of an image as a JSON document that annotation_import accepts.",
			InputSchema: schema(nil, map[string]interface{}{}),
		},
		{
			Name:        "annotation_import",
			Description: "Add the annotations of an exported document. Nothing is added when any record is malformed.",
			InputSchema: schema([]string{"annotations"}, map[string]interface{}{
				"annotations": map[string]interface{}{
					"type":        "array",
					"description": "The annotations array of an annotation_export result",
					"items":       map[string]interface{}{"type": "object"},
				},
			}),
		},
		{
			Name:        "annotation_crop",
			Description: "Crop an annotation's bounding box and return it as base64-encoded PNG, with pixels outside the shape transparent.",
			InputSchema: schema([]string{"id"}, map[string]interface{}{
				"id": prop("string", "Annotation ID"),
				"scale": map[string]interface{}{
					"type":        "number",
					"description": "Optional scale factor (e.g., 2.0 to double size). Default 1.0",
					"default":     1.0,
				},
			}),
		},

		// Segmentation
		{
			Name:        "segmentation_load",
			Description: "Load a mask image as segmentation regions of an image. Regions become annotations that can be measured like drawn shapes.",
			InputSchema: schema([]string{"mask_path"}, map[string]interface{}{
				"mask_path":      prop("string", "Absolute path to the mask or label image"),
				"group":          prop("string", "Segment group name. Default Segmentation"),
				"label":          prop("string", "Region label. Default Segment"),
				"algorithm_type": prop("string", "How the mask was produced. Default External"),
				"threshold":      prop("integer", "16-bit gray level a mask pixel must exceed. Default 0"),
				"split_labels":   prop("boolean", "Make one region per distinct non-zero gray level"),
			}),
		},
		{
			Name:        "segmentation_visibility",
			Description: "Check or uncheck the segment tree root, a group or a region, or set a group's opacity. Returns the visible region IDs.",
			InputSchema: schema(nil, map[string]interface{}{
				"root_checked":   prop("boolean", "Root checkbox"),
				"group":          prop("string", "Group to change"),
				"group_checked":  prop("boolean", "Group checkbox"),
				"opacity":        prop("number", "Group opacity in [0,1]"),
				"region_id":      prop("string", "Region to change"),
				"region_checked": prop("boolean", "Region checkbox"),
			}),
		},
		{
			Name:        "segmentation_list",
			Description: "List the segment tree of an image with each region's visibility, pixel count, volume and description.",
			InputSchema: schema(nil, map[string]interface{}{}),
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
