package threshold

import (
	"image"
	"math"
)

// Levels is the number of intensity levels in an 8-bit grayscale image.
const Levels = 256

// Histogram maps each intensity level to the number of pixels at that level.
type Histogram [Levels]int

// Source is anything a histogram can be derived from.
type Source interface {
	Histogram() (Histogram, error)
}

// NewHistogram builds a Histogram from a slice of exactly 256 counts.
//
// Returns *InvalidInputError if the slice has the wrong length, contains a
// negative count, or sums to zero.
func NewHistogram(counts []int) (Histogram, error) {
	var h Histogram
	if len(counts) != Levels {
		return h, invalidInput("histogram must have %d bins, got %d", Levels, len(counts))
	}
	copy(h[:], counts)
	if err := h.Validate(); err != nil {
		return Histogram{}, err
	}
	return h, nil
}

// Histogram returns a validated copy of h so a Histogram can be used as a
// Source directly.
func (h Histogram) Histogram() (Histogram, error) {
	if err := h.Validate(); err != nil {
		return Histogram{}, err
	}
	return h, nil
}

// Validate checks that every count is non-negative and that at least one
// pixel is present.
func (h Histogram) Validate() error {
	total := 0
	for level, n := range h {
		if n < 0 {
			return invalidInput("negative count %d at level %d", n, level)
		}
		total += n
	}
	if total == 0 {
		return invalidInput("histogram has no pixels")
	}
	return nil
}

// Total returns the number of pixels counted.
func (h Histogram) Total() int {
	total := 0
	for _, n := range h {
		total += n
	}
	return total
}

// Mean returns the global mean intensity, or 0 for an empty histogram.
func (h Histogram) Mean() float64 {
	total := h.Total()
	if total == 0 {
		return 0
	}
	var sum int
	for level, n := range h {
		sum += level * n
	}
	return float64(sum) / float64(total)
}

// Variance returns the global intensity variance, or 0 for an empty
// histogram.
func (h Histogram) Variance() float64 {
	total := h.Total()
	if total == 0 {
		return 0
	}
	mean := h.Mean()
	var v float64
	for level, n := range h {
		d := float64(level) - mean
		v += float64(n) * d * d
	}
	return v / float64(total)
}

// Min and Max return the lowest and highest occupied level. Both return -1
// for an empty histogram.
func (h Histogram) Min() int {
	for level, n := range h {
		if n > 0 {
			return level
		}
	}
	return -1
}

func (h Histogram) Max() int {
	for level := Levels - 1; level >= 0; level-- {
		if h[level] > 0 {
			return level
		}
	}
	return -1
}

// Pixels is a row-major grid of 8-bit intensities. Every row must have the
// same length and every value must lie in [0,255].
type Pixels [][]int

// Histogram validates the grid and counts its intensities.
func (p Pixels) Histogram() (Histogram, error) {
	var h Histogram
	if err := p.Validate(); err != nil {
		return h, err
	}
	for _, row := range p {
		for _, v := range row {
			h[v]++
		}
	}
	return h, nil
}

// Validate checks the grid is non-empty, rectangular and in range.
func (p Pixels) Validate() error {
	if len(p) == 0 || len(p[0]) == 0 {
		return invalidInput("empty image")
	}
	width := len(p[0])
	for y, row := range p {
		if len(row) != width {
			return invalidInput("row %d has %d pixels, want %d", y, len(row), width)
		}
		for x, v := range row {
			if v < 0 || v >= Levels {
				return invalidInput("intensity %d at (%d,%d) outside [0,%d]", v, x, y, Levels-1)
			}
		}
	}
	return nil
}

// Width and Height return the grid dimensions.
func (p Pixels) Width() int {
	if len(p) == 0 {
		return 0
	}
	return len(p[0])
}

func (p Pixels) Height() int {
	return len(p)
}

// PixelsFromGray copies a grayscale image into a Pixels grid, rebasing the
// image bounds to (0,0).
func PixelsFromGray(img *image.Gray) Pixels {
	b := img.Bounds()
	p := make(Pixels, b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := make([]int, b.Dx())
		for x := b.Min.X; x < b.Max.X; x++ {
			row[x-b.Min.X] = int(img.GrayAt(x, y).Y)
		}
		p[y-b.Min.Y] = row
	}
	return p
}

// ToGray converts a validated Pixels grid to a grayscale image anchored at
// (0,0).
func (p Pixels) ToGray() (*image.Gray, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	img := image.NewGray(image.Rect(0, 0, p.Width(), p.Height()))
	for y, row := range p {
		for x, v := range row {
			img.Pix[y*img.Stride+x] = uint8(v)
		}
	}
	return img, nil
}

type grayImage struct {
	img *image.Gray
}

// GrayImage adapts a grayscale image to a Source. Only the pixels inside
// img.Bounds() are counted, so sub-images work as expected.
func GrayImage(img *image.Gray) Source {
	return grayImage{img: img}
}

func (g grayImage) Histogram() (Histogram, error) {
	var h Histogram
	if g.img == nil || g.img.Bounds().Empty() {
		return h, invalidInput("empty image")
	}
	b := g.img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := g.img.Pix[g.img.PixOffset(b.Min.X, y):g.img.PixOffset(b.Max.X, y)]
		for _, v := range row {
			h[v]++
		}
	}
	return h, nil
}

// isFinite reports whether v can be used as a threshold value.
func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
