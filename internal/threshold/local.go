package threshold

import (
	"fmt"
	"image"
	"runtime"
	"sync"
)

// Bounds is a rectangle in image coordinates. (X1,Y1) is inclusive and
// (X2,Y2) is exclusive.
type Bounds struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

func boundsOf(r image.Rectangle) Bounds {
	return Bounds{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y}
}

// RegionThreshold is the global Otsu result for one tile or window.
type RegionThreshold struct {
	Bounds               Bounds  `json:"bounds"`
	Threshold            int     `json:"threshold"`
	BetweenClassVariance float64 `json:"between_class_variance"`
}

// LocalResult holds per-region thresholds and the per-pixel map derived
// from them.
type LocalResult struct {
	Regions []RegionThreshold `json:"regions"`

	// Rows and Cols give the layout of Regions, which are stored row by
	// row. For Segmented this is the grid actually produced, which is
	// smaller than requested when the image has fewer pixels than tiles
	// along an axis.
	Rows int `json:"rows"`
	Cols int `json:"cols"`

	Map *Map `json:"-"`
}

// Binarize applies the threshold map to img.
func (r *LocalResult) Binarize(img *image.Gray) (*image.Gray, error) {
	return ApplyMap(img, r.Map)
}

// GridOptions configures Segmented.
type GridOptions struct {
	// Rows and Cols give the number of tiles along each axis. Tile sizes
	// are rounded up, so the last row or column may be narrower and a
	// grid finer than the image yields one-pixel tiles.
	Rows int
	Cols int

	// Workers bounds the number of tiles computed concurrently. Zero
	// selects runtime.NumCPU().
	Workers int

	Placement Placement
}

// Segmented splits img into a Rows x Cols grid and computes a binary Otsu
// threshold for each tile from that tile's pixels alone. Every pixel of a
// tile gets the tile's threshold in the returned map.
func Segmented(img *image.Gray, opts GridOptions) (*LocalResult, error) {
	if opts.Rows < 1 {
		return nil, badConfig("rows", "must be at least 1, got %d", opts.Rows)
	}
	if opts.Cols < 1 {
		return nil, badConfig("cols", "must be at least 1, got %d", opts.Cols)
	}
	o := Options{Placement: opts.Placement}
	if err := o.validate(); err != nil {
		return nil, err
	}
	if img == nil || img.Bounds().Empty() {
		return nil, invalidInput("empty image")
	}

	b := img.Bounds()
	tileH := ceilDiv(b.Dy(), opts.Rows)
	tileW := ceilDiv(b.Dx(), opts.Cols)

	var rects []image.Rectangle
	for y := b.Min.Y; y < b.Max.Y; y += tileH {
		for x := b.Min.X; x < b.Max.X; x += tileW {
			rects = append(rects, image.Rect(x, y, x+tileW, y+tileH).Intersect(b))
		}
	}

	regions, err := computeRegions(img, rects, opts.Workers, o)
	if err != nil {
		return nil, err
	}

	m := newMap(b)
	for i, r := range rects {
		t := float64(regions[i].Threshold)
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				m.set(x, y, t)
			}
		}
	}
	return &LocalResult{
		Regions: regions,
		Rows:    ceilDiv(b.Dy(), tileH),
		Cols:    ceilDiv(b.Dx(), tileW),
		Map:     m,
	}, nil
}

// WindowOptions configures SlidingWindow.
type WindowOptions struct {
	// Width and Height give the window size in pixels. A window larger
	// than the image is clipped to it.
	Width  int
	Height int

	// StrideX and StrideY give the step between window origins. They may
	// not exceed the window size, so every pixel is covered.
	StrideX int
	StrideY int

	// Workers bounds the number of windows computed concurrently. Zero
	// selects runtime.NumCPU().
	Workers int

	Placement Placement
}

// SlidingWindow moves a window across img and computes a binary Otsu
// threshold inside each position. The map value of a pixel is the mean of
// the thresholds of every window that covers it. Windows are placed so the
// last row and column reach the image edge.
func SlidingWindow(img *image.Gray, opts WindowOptions) (*LocalResult, error) {
	switch {
	case opts.Width < 1:
		return nil, badConfig("window_width", "must be at least 1, got %d", opts.Width)
	case opts.Height < 1:
		return nil, badConfig("window_height", "must be at least 1, got %d", opts.Height)
	case opts.StrideX < 1:
		return nil, badConfig("stride_x", "must be at least 1, got %d", opts.StrideX)
	case opts.StrideY < 1:
		return nil, badConfig("stride_y", "must be at least 1, got %d", opts.StrideY)
	case opts.StrideX > opts.Width:
		return nil, badConfig("stride_x", "%d exceeds window width %d", opts.StrideX, opts.Width)
	case opts.StrideY > opts.Height:
		return nil, badConfig("stride_y", "%d exceeds window height %d", opts.StrideY, opts.Height)
	}
	o := Options{Placement: opts.Placement}
	if err := o.validate(); err != nil {
		return nil, err
	}
	if img == nil || img.Bounds().Empty() {
		return nil, invalidInput("empty image")
	}

	b := img.Bounds()
	ys := windowOffsets(b.Dy(), opts.Height, opts.StrideY)
	xs := windowOffsets(b.Dx(), opts.Width, opts.StrideX)
	var rects []image.Rectangle
	for _, y := range ys {
		for _, x := range xs {
			r := image.Rect(b.Min.X+x, b.Min.Y+y, b.Min.X+x+opts.Width, b.Min.Y+y+opts.Height)
			rects = append(rects, r.Intersect(b))
		}
	}

	regions, err := computeRegions(img, rects, opts.Workers, o)
	if err != nil {
		return nil, err
	}

	m := newMap(b)
	counts := make([]int, len(m.Values))
	for i, r := range rects {
		t := float64(regions[i].Threshold)
		for y := r.Min.Y; y < r.Max.Y; y++ {
			base := (y - b.Min.Y) * b.Dx()
			for x := r.Min.X; x < r.Max.X; x++ {
				m.Values[base+x-b.Min.X] += t
				counts[base+x-b.Min.X]++
			}
		}
	}
	for i, n := range counts {
		m.Values[i] /= float64(n)
	}
	return &LocalResult{Regions: regions, Rows: len(ys), Cols: len(xs), Map: m}, nil
}

// windowOffsets returns window origins 0, stride, 2*stride, ... up to and
// including the first origin whose window reaches the end of size.
func windowOffsets(size, window, stride int) []int {
	offsets := []int{0}
	for o := stride; o < size-window+stride; o += stride {
		offsets = append(offsets, o)
	}
	return offsets
}

// computeRegions runs Compute on each rectangle using a bounded pool of
// goroutines. Results are stored by index, so output order matches rects
// regardless of scheduling.
func computeRegions(img *image.Gray, rects []image.Rectangle, workers int, opts Options) ([]RegionThreshold, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(rects) {
		workers = len(rects)
	}

	out := make([]RegionThreshold, len(rects))
	errs := make([]error, len(rects))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				sub, ok := img.SubImage(rects[i]).(*image.Gray)
				if !ok {
					errs[i] = invalidInput("sub-image %v is not grayscale", rects[i])
					continue
				}
				r, err := Compute(GrayImage(sub), opts)
				if err != nil {
					errs[i] = err
					continue
				}
				out[i] = RegionThreshold{
					Bounds:               boundsOf(rects[i]),
					Threshold:            r.Threshold(),
					BetweenClassVariance: r.BetweenClassVariance,
				}
			}
		}()
	}
	for i := range rects {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("region %v: %w", rects[i], err)
		}
	}
	return out, nil
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
