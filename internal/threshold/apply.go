package threshold

import (
	"image"
)

// Binarize maps every pixel above t to 255 and every other pixel to 0.
// The returned image has the same bounds as img.
func Binarize(img *image.Gray, t int) (*image.Gray, error) {
	return Quantize(img, []int{t})
}

// Quantize replaces every pixel with the label of its class. With k
// thresholds the labels are i*255/k for class i, so a binary split yields
// 0 and 255 and three classes yield 0, 127 and 255.
func Quantize(img *image.Gray, thresholds []int) (*image.Gray, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, invalidInput("empty image")
	}
	lut, err := labelTable(thresholds)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	dst := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		src := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X, y)]
		out := dst.Pix[dst.PixOffset(b.Min.X, y):dst.PixOffset(b.Max.X, y)]
		for i, v := range src {
			out[i] = lut[v]
		}
	}
	return dst, nil
}

// QuantizePixels is Quantize for a Pixels grid. The result has the same
// dimensions as p and holds only the class labels.
func QuantizePixels(p Pixels, thresholds []int) (Pixels, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	lut, err := labelTable(thresholds)
	if err != nil {
		return nil, err
	}
	out := make(Pixels, len(p))
	for y, row := range p {
		dst := make([]int, len(row))
		for x, v := range row {
			dst[x] = int(lut[v])
		}
		out[y] = dst
	}
	return out, nil
}

// Labels returns the output intensity used for each class when quantizing
// with the given number of thresholds.
func Labels(thresholds int) []uint8 {
	labels := make([]uint8, thresholds+1)
	for i := range labels {
		labels[i] = uint8(i * 255 / thresholds)
	}
	return labels
}

func labelTable(thresholds []int) ([Levels]uint8, error) {
	var lut [Levels]uint8
	if err := validateThresholds(thresholds); err != nil {
		return lut, err
	}
	labels := Labels(len(thresholds))
	class := 0
	for level := 0; level < Levels; level++ {
		for class < len(thresholds) && level > thresholds[class] {
			class++
		}
		lut[level] = labels[class]
	}
	return lut, nil
}

// Map holds one threshold per pixel of Rect, row-major.
type Map struct {
	Rect   image.Rectangle
	Values []float64
}

func newMap(r image.Rectangle) *Map {
	return &Map{Rect: r, Values: make([]float64, r.Dx()*r.Dy())}
}

// At returns the threshold for pixel (x, y) in image coordinates.
func (m *Map) At(x, y int) float64 {
	return m.Values[(y-m.Rect.Min.Y)*m.Rect.Dx()+(x-m.Rect.Min.X)]
}

func (m *Map) set(x, y int, v float64) {
	m.Values[(y-m.Rect.Min.Y)*m.Rect.Dx()+(x-m.Rect.Min.X)] = v
}

// Range returns the smallest and largest threshold in the map.
func (m *Map) Range() (lo, hi float64) {
	for i, v := range m.Values {
		if i == 0 || v < lo {
			lo = v
		}
		if i == 0 || v > hi {
			hi = v
		}
	}
	return lo, hi
}

// ApplyMap binarizes img against a per-pixel threshold map: pixels strictly
// above their threshold become 255, all others 0. The map must cover
// exactly img.Bounds().
func ApplyMap(img *image.Gray, m *Map) (*image.Gray, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, invalidInput("empty image")
	}
	if m == nil || m.Rect != img.Bounds() || len(m.Values) != m.Rect.Dx()*m.Rect.Dy() {
		return nil, invalidInput("threshold map does not match image bounds %v", img.Bounds())
	}
	for i, v := range m.Values {
		if !isFinite(v) {
			return nil, invalidInput("non-finite threshold at map index %d", i)
		}
	}

	b := img.Bounds()
	dst := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if float64(img.GrayAt(x, y).Y) > m.At(x, y) {
				dst.Pix[dst.PixOffset(x, y)] = 255
			}
		}
	}
	return dst, nil
}
