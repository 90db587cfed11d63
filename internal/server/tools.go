package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// imageProperties returns the schema properties shared by every tool that
// reads pixels from a file, merged with extra.
func imageProperties(extra map[string]interface{}) map[string]interface{} {
	props := map[string]interface{}{
		"path": map[string]interface{}{
			"type":        "string",
			"description": "Absolute path to the image file (PNG, JPEG, GIF, TIFF or BMP)",
		},
		"region": map[string]interface{}{
			"type":        "object",
			"description": "Optional rectangle to threshold instead of the whole image. (x1,y1) inclusive, (x2,y2) exclusive.",
			"properties": map[string]interface{}{
				"x1": map[string]interface{}{"type": "integer"},
				"y1": map[string]interface{}{"type": "integer"},
				"x2": map[string]interface{}{"type": "integer"},
				"y2": map[string]interface{}{"type": "integer"},
			},
			"required": []string{"x1", "y1", "x2", "y2"},
		},
		"named_region": map[string]interface{}{
			"type":        "string",
			"description": "Optional named region, used when region is not given",
			"enum":        []string{"top-left", "top-right", "bottom-left", "bottom-right", "top-half", "bottom-half", "left-half", "right-half", "center"},
		},
		"gray_mode": map[string]interface{}{
			"type":        "string",
			"description": "How color is reduced to intensity: luma (Rec. 601) or lightness (CIE L*). Default luma",
			"enum":        []string{"luma", "lightness"},
			"default":     "luma",
		},
		"blur_radius": map[string]interface{}{
			"type":        "number",
			"description": "Gaussian blur radius applied before thresholding. Default 0 (no blur)",
			"default":     0,
		},
	}
	for k, v := range extra {
		props[k] = v
	}
	return props
}

var placementProperty = map[string]interface{}{
	"type":        "string",
	"description": "Where a threshold sits inside a run of empty histogram bins: centered (middle of the gap) or lowest (smallest optimal level). Default centered",
	"enum":        []string{"centered", "lowest"},
	"default":     "centered",
}

var classesProperty = map[string]interface{}{
	"type":        "integer",
	"description": "Number of intensity classes (2-4). 2 gives a single binarization threshold. Default 2",
	"minimum":     2,
	"maximum":     4,
	"default":     2,
}

var scaleProperty = map[string]interface{}{
	"type":        "number",
	"description": "Scale factor for the returned image (e.g., 0.5 to halve it). Default 1.0",
	"default":     1.0,
}

var gridProperties = map[string]interface{}{
	"rows": map[string]interface{}{
		"type":        "integer",
		"description": "Number of tile rows. Default 4",
		"default":     4,
	},
	"cols": map[string]interface{}{
		"type":        "integer",
		"description": "Number of tile columns. Default 4",
		"default":     4,
	},
}

var windowProperties = map[string]interface{}{
	"window_width": map[string]interface{}{
		"type":        "integer",
		"description": "Window width in pixels. Default 64",
		"default":     64,
	},
	"window_height": map[string]interface{}{
		"type":        "integer",
		"description": "Window height in pixels. Default window_width",
	},
	"stride_x": map[string]interface{}{
		"type":        "integer",
		"description": "Horizontal step between windows, at most window_width. Default half the window width",
	},
	"stride_y": map[string]interface{}{
		"type":        "integer",
		"description": "Vertical step between windows, at most window_height. Default half the window height",
	},
}

func merge(maps ...map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Basic Image Information
		{
			Name:        "image_load",
			Description: "Load an image file and return its dimensions, format and whether it is already grayscale. The decoded image is cached for later threshold calls.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
				},
				"required": []string{"path"},
			},
		},

		{
			Name:        "image_unload",
			Description: "Drop decoded images from the server's cache. The cache keeps a bounded number of recently used images; unload a large scan once you are done comparing methods on it.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Path of the image to drop, exactly as it was loaded",
					},
					"all": map[string]interface{}{
						"type":        "boolean",
						"description": "Drop every cached image. Default false",
						"default":     false,
					},
				},
			},
		},

		// Global Thresholding
		{
			Name:        "threshold_histogram",
			Description: "Return the 256-bin intensity histogram of an image with summary statistics and the Otsu thresholds. Optionally renders the histogram as a PNG chart with the thresholds marked.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": imageProperties(map[string]interface{}{
					"classes":   classesProperty,
					"placement": placementProperty,
					"chart": map[string]interface{}{
						"type":        "boolean",
						"description": "Include a PNG chart of the histogram. Default false",
						"default":     false,
					},
					"variance_curve": map[string]interface{}{
						"type":        "boolean",
						"description": "Overlay the between-class variance for every threshold on the chart. Default false",
						"default":     false,
					},
					"include_counts": map[string]interface{}{
						"type":        "boolean",
						"description": "Include the raw 256 bin counts. Default true",
						"default":     true,
					},
				}),
				"required": []string{"path"},
			},
		},
		{
			Name:        "threshold_compute",
			Description: "Compute Otsu thresholds that maximize between-class variance. Reads pixels from path, or uses an explicit 256-entry histogram when histogram is given instead.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": imageProperties(map[string]interface{}{
					"histogram": map[string]interface{}{
						"type":        "array",
						"description": "Exactly 256 non-negative pixel counts, index = intensity. Used instead of path",
						"items":       map[string]interface{}{"type": "integer", "minimum": 0},
						"minItems":    256,
						"maxItems":    256,
					},
					"classes":   classesProperty,
					"placement": placementProperty,
				}),
			},
		},
		{
			Name:        "threshold_apply",
			Description: "Threshold an image and return the result as base64-encoded PNG. With 2 classes the output is black and white; with more classes each class gets an evenly spaced gray level. Thresholds may be given explicitly or computed with Otsu's method.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": imageProperties(map[string]interface{}{
					"thresholds": map[string]interface{}{
						"type":        "array",
						"description": "Optional explicit thresholds, strictly ascending in 0-254. Pixels <= t fall in the lower class. Overrides classes",
						"items":       map[string]interface{}{"type": "integer"},
					},
					"classes":   classesProperty,
					"placement": placementProperty,
					"scale":     scaleProperty,
				}),
				"required": []string{"path"},
			},
		},

		// Local Thresholding
		{
			Name:        "threshold_segmented",
			Description: "Split the image into a grid of tiles, compute an Otsu threshold for each tile from its own pixels, and return the per-tile thresholds with the binarized image. Handles uneven lighting better than a single global threshold.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": imageProperties(merge(gridProperties, map[string]interface{}{
					"placement": placementProperty,
					"scale":     scaleProperty,
					"show_tiles": map[string]interface{}{
						"type":        "boolean",
						"description": "Also return the binarized image with tile outlines and thresholds drawn on it. Default false",
						"default":     false,
					},
					"tile_color": map[string]interface{}{
						"type":        "string",
						"description": "Tile outline color as hex. Default #FF000080",
						"default":     "#FF000080",
					},
				})),
				"required": []string{"path"},
			},
		},
		{
			Name:        "threshold_sliding_window",
			Description: "Slide a window across the image, compute an Otsu threshold inside each position, and binarize every pixel against the mean threshold of the windows covering it. Returns the window thresholds, the range of the threshold map and the binarized image.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": imageProperties(merge(windowProperties, map[string]interface{}{
					"placement": placementProperty,
					"scale":     scaleProperty,
					"include_windows": map[string]interface{}{
						"type":        "boolean",
						"description": "Include every window's threshold in the result. Default false (large images produce many windows)",
						"default":     false,
					},
				})),
				"required": []string{"path"},
			},
		},

		// OCR
		{
			Name:        "threshold_ocr",
			Description: "Binarize an image with Otsu's method (global, segmented or sliding window) and run Tesseract OCR on the result. Returns recognized text, word boxes and mean confidence. Requires Tesseract to be installed.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": imageProperties(merge(gridProperties, windowProperties, map[string]interface{}{
					"method": map[string]interface{}{
						"type":        "string",
						"description": "Thresholding method applied before OCR. Default global",
						"enum":        []string{"global", "segmented", "sliding"},
						"default":     "global",
					},
					"placement": placementProperty,
					"language": map[string]interface{}{
						"type":        "string",
						"description": "Tesseract language code (e.g., eng, deu, deu+eng). Defaults to the server setting",
					},
					"compare_original": map[string]interface{}{
						"type":        "boolean",
						"description": "Also run OCR on the grayscale image without thresholding, for comparison. Default false",
						"default":     false,
					},
				})),
				"required": []string{"path"},
			},
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
