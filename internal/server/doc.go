// Package server implements the MCP (Model Context Protocol) server for
// region-of-interest annotation and measurement.
//
// This package provides a JSON-RPC 2.0 server that exposes the annotation
// engine through the MCP protocol. A client loads an image, calibrates it,
// draws or creates shapes over it and reads back calibrated measurements and
// pixel statistics.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Image:
//   - image_load: Load an image and choose its band mode
//   - image_dimensions: Get width, height and origin
//   - image_calibrate: Set pixel size, units, rescale, offsets and thickness
//   - image_sample_pixel: Raw and rescaled values at a pixel
//
// Annotations:
//   - annotation_create: Create a shape from its handles
//   - annotation_event: Drive the interactive drawing and editing session
//   - annotation_measure: Measurements of a shape
//   - annotation_statistics: Pixel statistics with sampling, exclusion and ROI
//   - annotation_list, annotation_delete
//   - annotation_export, annotation_import: JSON round trip of every shape
//   - annotation_crop: PNG of a shape's pixels
//
// Segmentation:
//   - segmentation_load: Regions from a mask or label image
//   - segmentation_visibility: Segment tree checkboxes and opacity
//   - segmentation_list: Segment tree with descriptions
//
// # Image State
//
// Decoded images are kept in a bounded LRU cache. Each image path also gets
// a view holding its raster, calibration, annotation layer and segment tree;
// views live for the lifetime of the server process. Statistics of shapes
// committed through annotation_event are computed on a worker pool and
// returned by the next tool call on the same image.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32602 for invalid arguments, -32000 for any other failure
//   - message: "Invalid params" or "Tool execution failed"
//   - data: The Go error string
//
// # Usage
//
// The server is typically started by an MCP client:
//
//	srv := server.New(server.WithConfig(cfg))
//	defer srv.Close()
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
