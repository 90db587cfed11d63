// Package server implements the MCP (Model Context Protocol) server for
// Otsu thresholding tools.
//
// This package provides a JSON-RPC 2.0 server that exposes histogram
// analysis, global and local Otsu thresholding and OCR of the binarized
// result through the MCP protocol.
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
// Basic Image Information:
//   - image_load: Load image and get metadata
//   - image_unload: Drop cached images
//
// Global Thresholding:
//   - threshold_histogram: 256-bin histogram, statistics and optional chart
//   - threshold_compute: Otsu thresholds for an image or an explicit histogram
//   - threshold_apply: Binarize or quantize an image
//
// Local Thresholding:
//   - threshold_segmented: Per-tile thresholds on a grid
//   - threshold_sliding_window: Averaged thresholds from overlapping windows
//
// OCR:
//   - threshold_ocr: Threshold then run Tesseract
//
// Every pixel-reading tool accepts region or named_region to restrict the
// work to part of the image, gray_mode to choose luma or CIE lightness,
// and blur_radius for Gaussian smoothing before the histogram is taken.
// Reported coordinates always refer to the source image.
//
// # Image Caching
//
// Decoded images are cached by path, so repeated calls against the same
// file skip decoding. The cache holds OTSU_MCP_CACHE_SIZE images, drops
// the least recently used one when full, and decodes a file again when it
// changes on disk. image_unload frees entries early.
//
// # Error Handling
//
// Errors are returned as JSON-RPC error responses:
//   - -32700: Parse error (request line is not JSON)
//   - -32601: Method not found
//   - -32602: Invalid params (malformed arguments, unknown tool or enum
//     value, out-of-range classes, grid or window settings)
//   - -32000: Tool execution failed (unreadable image, invalid histogram, etc.)
//
// # Example Request
//
//	{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"threshold_compute","arguments":{"path":"/tmp/scan.png","classes":2}}}
package server
