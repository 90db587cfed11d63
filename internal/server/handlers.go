package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"
	"time"

	"github.com/ironsheep/otsu-mcp/internal/imaging"
	"github.com/ironsheep/otsu-mcp/internal/ocr"
	"github.com/ironsheep/otsu-mcp/internal/plot"
	"github.com/ironsheep/otsu-mcp/internal/threshold"
)

const (
	chartWidth  = 1024
	chartHeight = 512

	defaultGridSize   = 4
	defaultWindowSize = 64
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_load", "threshold_compute").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// paramsError marks a failure caused by the tool arguments rather than
// by the work the tool does. It maps to JSON-RPC -32602.
type paramsError struct {
	err error
}

func (e *paramsError) Error() string { return e.err.Error() }
func (e *paramsError) Unwrap() error { return e.err }

func invalidParams(format string, args ...interface{}) error {
	return &paramsError{err: fmt.Errorf(format, args...)}
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Bad arguments, including out-of-range numeric settings such as classes
// or grid size, return JSON-RPC error -32602; any other tool failure
// returns -32000 with the Go error string in data.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
	}

	start := time.Now()
	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		s.log.Warn().Err(err).Str("tool", params.Name).Msg("tool call failed")
		var pe *paramsError
		var ce *threshold.ConfigurationError
		if errors.As(err, &pe) || errors.As(err, &ce) {
			return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
		}
		return s.errorResponse(req.ID, codeToolFailed, "Tool execution failed", err.Error())
	}
	s.log.Debug().Str("tool", params.Name).Dur("elapsed", time.Since(start)).Msg("tool call")

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
//  2. Applies default values for optional parameters
//  3. Loads and converts the image through the cache
//  4. Calls the threshold, imaging, plot or ocr functions
//  5. Returns the result or error
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Basic Image Information
	case "image_load":
		return s.handleImageLoad(args)
	case "image_unload":
		return s.handleImageUnload(args)

	// Global Thresholding
	case "threshold_histogram":
		return s.handleHistogram(args)
	case "threshold_compute":
		return s.handleCompute(args)
	case "threshold_apply":
		return s.handleApply(args)

	// Local Thresholding
	case "threshold_segmented":
		return s.handleSegmented(args)
	case "threshold_sliding_window":
		return s.handleSlidingWindow(args)

	// OCR
	case "threshold_ocr":
		return s.handleOCR(args)

	default:
		return nil, invalidParams("unknown tool: %s", name)
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return &paramsError{err: fmt.Errorf("invalid arguments: %w", err)}
	}
	return nil
}

func scaleOrDefault(scale float64) float64 {
	if scale == 0 {
		return 1.0
	}
	return scale
}

// === Shared Argument Types ===

// imageArgs selects the pixels a tool works on.
type imageArgs struct {
	Path        string          `json:"path"`
	Region      *imaging.Region `json:"region"`
	NamedRegion string          `json:"named_region"`
	GrayMode    string          `json:"gray_mode"`
	BlurRadius  float64         `json:"blur_radius"`
}

// grayImage is a grayscale selection of a source image. Origin is where
// the selection's (0,0) sits in the source image.
type grayImage struct {
	*image.Gray
	Origin image.Point
	Region *imaging.Region
}

// loadGray loads a.Path through the cache, crops to the requested region
// and converts to grayscale.
func (s *Server) loadGray(a imageArgs) (*grayImage, error) {
	if a.Path == "" {
		return nil, invalidParams("path is required")
	}
	mode, err := imaging.ParseGrayMode(a.GrayMode)
	if err != nil {
		return nil, &paramsError{err: err}
	}

	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	region := a.Region
	if region == nil && a.NamedRegion != "" {
		r, err := imaging.NamedRegion(img.Bounds(), a.NamedRegion)
		if err != nil {
			return nil, &paramsError{err: err}
		}
		region = &r
	}

	gray, err := imaging.ToGray(img, imaging.GrayOptions{
		Mode:       mode,
		BlurRadius: a.BlurRadius,
		Region:     region,
	})
	if err != nil {
		return nil, err
	}

	origin := img.Bounds().Min
	if region != nil {
		origin = image.Pt(region.X1, region.Y1)
	}
	return &grayImage{Gray: gray, Origin: origin, Region: region}, nil
}

// otsuArgs are the global Otsu parameters.
type otsuArgs struct {
	Classes   int    `json:"classes"`
	Placement string `json:"placement"`
}

func (a otsuArgs) options() (threshold.Options, error) {
	p, err := threshold.ParsePlacement(a.Placement)
	if err != nil {
		return threshold.Options{}, &paramsError{err: err}
	}
	return threshold.Options{Classes: a.Classes, Placement: p}, nil
}

// gridArgs are the segmented-thresholding parameters.
type gridArgs struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

func (a gridArgs) withDefaults() gridArgs {
	if a.Rows == 0 {
		a.Rows = defaultGridSize
	}
	if a.Cols == 0 {
		a.Cols = defaultGridSize
	}
	return a
}

// windowArgs are the sliding-window parameters.
type windowArgs struct {
	WindowWidth  int `json:"window_width"`
	WindowHeight int `json:"window_height"`
	StrideX      int `json:"stride_x"`
	StrideY      int `json:"stride_y"`
}

func (a windowArgs) withDefaults() windowArgs {
	if a.WindowWidth == 0 {
		a.WindowWidth = defaultWindowSize
	}
	if a.WindowHeight == 0 {
		a.WindowHeight = a.WindowWidth
	}
	if a.StrideX == 0 {
		a.StrideX = max(1, a.WindowWidth/2)
	}
	if a.StrideY == 0 {
		a.StrideY = max(1, a.WindowHeight/2)
	}
	return a
}

// === Basic Image Information Handlers ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, invalidParams("path is required")
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

type imageUnloadArgs struct {
	Path string `json:"path"`
	All  bool   `json:"all"`
}

type imageUnloadResult struct {
	Evicted  int      `json:"evicted"`
	Cached   []string `json:"cached"`
	Capacity int      `json:"capacity"`
}

func (s *Server) handleImageUnload(args json.RawMessage) (interface{}, error) {
	var a imageUnloadArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}

	out := &imageUnloadResult{Capacity: s.cache.Size()}
	switch {
	case a.All:
		out.Evicted = s.cache.Clear()
	case a.Path != "":
		if s.cache.Evict(a.Path) {
			out.Evicted = 1
		}
	default:
		return nil, invalidParams("path or all is required")
	}
	out.Cached = s.cache.Paths()
	s.log.Debug().Int("evicted", out.Evicted).Int("cached", len(out.Cached)).Msg("cache unload")
	return out, nil
}

// === Global Thresholding Handlers ===

type histogramArgs struct {
	imageArgs
	otsuArgs
	Chart         bool  `json:"chart"`
	VarianceCurve bool  `json:"variance_curve"`
	IncludeCounts *bool `json:"include_counts"`
}

type histogramResult struct {
	Width       int                   `json:"width"`
	Height      int                   `json:"height"`
	Region      *imaging.Region       `json:"region,omitempty"`
	TotalPixels int                   `json:"total_pixels"`
	Mean        float64               `json:"mean"`
	Variance    float64               `json:"variance"`
	Min         int                   `json:"min"`
	Max         int                   `json:"max"`
	Counts      []int                 `json:"counts,omitempty"`
	Otsu        *threshold.Result     `json:"otsu"`
	Chart       *imaging.EncodedImage `json:"chart,omitempty"`
}

func (s *Server) handleHistogram(args json.RawMessage) (interface{}, error) {
	var a histogramArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	opts, err := a.options()
	if err != nil {
		return nil, err
	}
	gray, err := s.loadGray(a.imageArgs)
	if err != nil {
		return nil, err
	}

	h, err := threshold.GrayImage(gray.Gray).Histogram()
	if err != nil {
		return nil, err
	}
	res, err := threshold.Compute(h, opts)
	if err != nil {
		return nil, err
	}

	out := &histogramResult{
		Width:       gray.Bounds().Dx(),
		Height:      gray.Bounds().Dy(),
		Region:      gray.Region,
		TotalPixels: h.Total(),
		Mean:        h.Mean(),
		Variance:    h.Variance(),
		Min:         h.Min(),
		Max:         h.Max(),
		Otsu:        res,
	}
	if a.IncludeCounts == nil || *a.IncludeCounts {
		out.Counts = h[:]
	}

	if a.Chart {
		data, err := plot.HistogramPNG(h, res.Thresholds, plot.Options{
			Title:    fmt.Sprintf("Otsu thresholds %v", res.Thresholds),
			Width:    chartWidth,
			Height:   chartHeight,
			Variance: a.VarianceCurve,
		})
		if err != nil {
			return nil, err
		}
		out.Chart = &imaging.EncodedImage{
			Width:       chartWidth,
			Height:      chartHeight,
			ImageBase64: base64.StdEncoding.EncodeToString(data),
			MimeType:    "image/png",
		}
	}
	return out, nil
}

type computeArgs struct {
	imageArgs
	otsuArgs
	Histogram []int `json:"histogram"`
}

type computeResult struct {
	Source    string          `json:"source"`
	Width     int             `json:"width,omitempty"`
	Height    int             `json:"height,omitempty"`
	Region    *imaging.Region `json:"region,omitempty"`
	Threshold int             `json:"threshold"`
	*threshold.Result
}

func (s *Server) handleCompute(args json.RawMessage) (interface{}, error) {
	var a computeArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	opts, err := a.options()
	if err != nil {
		return nil, err
	}

	switch {
	case a.Histogram != nil && a.Path != "":
		return nil, invalidParams("give either path or histogram, not both")
	case a.Histogram != nil:
		h, err := threshold.NewHistogram(a.Histogram)
		if err != nil {
			return nil, err
		}
		res, err := threshold.Compute(h, opts)
		if err != nil {
			return nil, err
		}
		return &computeResult{Source: "histogram", Threshold: res.Threshold(), Result: res}, nil
	case a.Path == "":
		return nil, invalidParams("path or histogram is required")
	}

	gray, err := s.loadGray(a.imageArgs)
	if err != nil {
		return nil, err
	}
	res, err := threshold.Compute(threshold.GrayImage(gray.Gray), opts)
	if err != nil {
		return nil, err
	}
	return &computeResult{
		Source:    "image",
		Width:     gray.Bounds().Dx(),
		Height:    gray.Bounds().Dy(),
		Region:    gray.Region,
		Threshold: res.Threshold(),
		Result:    res,
	}, nil
}

type applyArgs struct {
	imageArgs
	otsuArgs
	Thresholds []int   `json:"thresholds"`
	Scale      float64 `json:"scale"`
}

type applyResult struct {
	Thresholds []int                 `json:"thresholds"`
	Levels     []uint8               `json:"levels"`
	Computed   bool                  `json:"computed"`
	Otsu       *threshold.Result     `json:"otsu,omitempty"`
	Region     *imaging.Region       `json:"region,omitempty"`
	Image      *imaging.EncodedImage `json:"image"`
}

func (s *Server) handleApply(args json.RawMessage) (interface{}, error) {
	var a applyArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	opts, err := a.options()
	if err != nil {
		return nil, err
	}
	gray, err := s.loadGray(a.imageArgs)
	if err != nil {
		return nil, err
	}

	out := &applyResult{Region: gray.Region, Thresholds: a.Thresholds}
	if len(a.Thresholds) == 0 {
		res, err := threshold.Compute(threshold.GrayImage(gray.Gray), opts)
		if err != nil {
			return nil, err
		}
		out.Thresholds = res.Thresholds
		out.Computed = true
		out.Otsu = res
	}

	quantized, err := threshold.Quantize(gray.Gray, out.Thresholds)
	if err != nil {
		return nil, err
	}
	out.Levels = threshold.Labels(len(out.Thresholds))

	out.Image, err = imaging.EncodePNG(quantized, scaleOrDefault(a.Scale))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// === Local Thresholding Handlers ===

// localSummary describes a segmented or sliding-window run in source
// image coordinates.
type localSummary struct {
	Regions []threshold.RegionThreshold `json:"regions,omitempty"`
	Count   int                         `json:"count"`
	MapMin  float64                     `json:"map_min"`
	MapMax  float64                     `json:"map_max"`
}

func summarize(res *threshold.LocalResult, origin image.Point, includeRegions bool) *localSummary {
	lo, hi := res.Map.Range()
	sum := &localSummary{Count: len(res.Regions), MapMin: lo, MapMax: hi}
	if includeRegions {
		sum.Regions = make([]threshold.RegionThreshold, len(res.Regions))
		for i, r := range res.Regions {
			r.Bounds.X1 += origin.X
			r.Bounds.X2 += origin.X
			r.Bounds.Y1 += origin.Y
			r.Bounds.Y2 += origin.Y
			sum.Regions[i] = r
		}
	}
	return sum
}

type segmentedArgs struct {
	imageArgs
	gridArgs
	Placement string  `json:"placement"`
	Scale     float64 `json:"scale"`
	ShowTiles bool    `json:"show_tiles"`
	TileColor string  `json:"tile_color"`
}

type segmentedResult struct {
	Rows   int             `json:"rows"`
	Cols   int             `json:"cols"`
	Region *imaging.Region `json:"region,omitempty"`
	*localSummary
	Image   *imaging.EncodedImage `json:"image"`
	Overlay *imaging.EncodedImage `json:"overlay,omitempty"`
}

func (s *Server) handleSegmented(args json.RawMessage) (interface{}, error) {
	var a segmentedArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	grid := a.gridArgs.withDefaults()
	placement, err := threshold.ParsePlacement(a.Placement)
	if err != nil {
		return nil, &paramsError{err: err}
	}
	gray, err := s.loadGray(a.imageArgs)
	if err != nil {
		return nil, err
	}

	res, err := threshold.Segmented(gray.Gray, threshold.GridOptions{
		Rows:      grid.Rows,
		Cols:      grid.Cols,
		Workers:   s.cfg.Workers,
		Placement: placement,
	})
	if err != nil {
		return nil, err
	}
	bin, err := res.Binarize(gray.Gray)
	if err != nil {
		return nil, err
	}

	out := &segmentedResult{
		Rows:         res.Rows,
		Cols:         res.Cols,
		Region:       gray.Region,
		localSummary: summarize(res, gray.Origin, true),
	}
	scale := scaleOrDefault(a.Scale)
	if out.Image, err = imaging.EncodePNG(bin, scale); err != nil {
		return nil, err
	}

	if a.ShowTiles {
		tiles := make([]imaging.Tile, len(res.Regions))
		for i, r := range res.Regions {
			tiles[i] = imaging.Tile{
				Rect:  image.Rect(r.Bounds.X1, r.Bounds.Y1, r.Bounds.X2, r.Bounds.Y2),
				Label: strconv.Itoa(r.Threshold),
			}
		}
		overlay, err := imaging.OverlayTiles(bin, tiles, a.TileColor)
		if err != nil {
			return nil, err
		}
		if out.Overlay, err = imaging.EncodePNG(overlay, scale); err != nil {
			return nil, err
		}
	}
	return out, nil
}

type slidingArgs struct {
	imageArgs
	windowArgs
	Placement      string  `json:"placement"`
	Scale          float64 `json:"scale"`
	IncludeWindows bool    `json:"include_windows"`
}

type slidingResult struct {
	WindowWidth  int             `json:"window_width"`
	WindowHeight int             `json:"window_height"`
	StrideX      int             `json:"stride_x"`
	StrideY      int             `json:"stride_y"`
	Region       *imaging.Region `json:"region,omitempty"`
	*localSummary
	Image *imaging.EncodedImage `json:"image"`
}

func (s *Server) handleSlidingWindow(args json.RawMessage) (interface{}, error) {
	var a slidingArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	win := a.windowArgs.withDefaults()
	placement, err := threshold.ParsePlacement(a.Placement)
	if err != nil {
		return nil, &paramsError{err: err}
	}
	gray, err := s.loadGray(a.imageArgs)
	if err != nil {
		return nil, err
	}

	res, err := threshold.SlidingWindow(gray.Gray, threshold.WindowOptions{
		Width:     win.WindowWidth,
		Height:    win.WindowHeight,
		StrideX:   win.StrideX,
		StrideY:   win.StrideY,
		Workers:   s.cfg.Workers,
		Placement: placement,
	})
	if err != nil {
		return nil, err
	}
	bin, err := res.Binarize(gray.Gray)
	if err != nil {
		return nil, err
	}

	out := &slidingResult{
		WindowWidth:  win.WindowWidth,
		WindowHeight: win.WindowHeight,
		StrideX:      win.StrideX,
		StrideY:      win.StrideY,
		Region:       gray.Region,
		localSummary: summarize(res, gray.Origin, a.IncludeWindows),
	}
	if out.Image, err = imaging.EncodePNG(bin, scaleOrDefault(a.Scale)); err != nil {
		return nil, err
	}
	return out, nil
}

// === OCR Handlers ===

type ocrArgs struct {
	imageArgs
	gridArgs
	windowArgs
	Method          string `json:"method"`
	Placement       string `json:"placement"`
	Language        string `json:"language"`
	CompareOriginal bool   `json:"compare_original"`
}

type ocrResult struct {
	Method    string          `json:"method"`
	Region    *imaging.Region `json:"region,omitempty"`
	Threshold *int            `json:"threshold,omitempty"`
	Local     *localSummary   `json:"local,omitempty"`
	OCR       *ocr.OCRResult  `json:"ocr"`
	Original  *ocr.OCRResult  `json:"original,omitempty"`
}

func (s *Server) handleOCR(args json.RawMessage) (interface{}, error) {
	var a ocrArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	placement, err := threshold.ParsePlacement(a.Placement)
	if err != nil {
		return nil, &paramsError{err: err}
	}
	method := strings.ToLower(strings.TrimSpace(a.Method))
	if method == "" {
		method = "global"
	}
	if method != "global" && method != "segmented" && method != "sliding" {
		return nil, invalidParams("unknown method %q (expected global, segmented or sliding)", a.Method)
	}

	gray, err := s.loadGray(a.imageArgs)
	if err != nil {
		return nil, err
	}

	out := &ocrResult{Method: method, Region: gray.Region}
	var bin *image.Gray
	switch method {
	case "global":
		res, err := threshold.Compute(threshold.GrayImage(gray.Gray), threshold.Options{Placement: placement})
		if err != nil {
			return nil, err
		}
		t := res.Threshold()
		out.Threshold = &t
		bin, err = threshold.Binarize(gray.Gray, t)
		if err != nil {
			return nil, err
		}
	case "segmented":
		grid := a.gridArgs.withDefaults()
		res, err := threshold.Segmented(gray.Gray, threshold.GridOptions{
			Rows: grid.Rows, Cols: grid.Cols, Workers: s.cfg.Workers, Placement: placement,
		})
		if err != nil {
			return nil, err
		}
		out.Local = summarize(res, gray.Origin, false)
		if bin, err = res.Binarize(gray.Gray); err != nil {
			return nil, err
		}
	case "sliding":
		win := a.windowArgs.withDefaults()
		res, err := threshold.SlidingWindow(gray.Gray, threshold.WindowOptions{
			Width: win.WindowWidth, Height: win.WindowHeight,
			StrideX: win.StrideX, StrideY: win.StrideY,
			Workers: s.cfg.Workers, Placement: placement,
		})
		if err != nil {
			return nil, err
		}
		out.Local = summarize(res, gray.Origin, false)
		if bin, err = res.Binarize(gray.Gray); err != nil {
			return nil, err
		}
	}

	opts := ocr.Options{Language: a.Language, TessdataPrefix: s.cfg.TessdataPrefix}
	if opts.Language == "" {
		opts.Language = s.cfg.OCRLanguage
	}

	if out.OCR, err = ocr.Recognize(bin, opts); err != nil {
		return nil, err
	}
	out.OCR.Offset(gray.Origin.X, gray.Origin.Y)

	if a.CompareOriginal {
		if out.Original, err = ocr.Recognize(gray.Gray, opts); err != nil {
			return nil, err
		}
		out.Original.Offset(gray.Origin.X, gray.Origin.Y)
	}
	return out, nil
}
