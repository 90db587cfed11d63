package threshold

import (
	"errors"
	"image"
	"math"
	"math/big"
	"math/rand"
	"reflect"
	"testing"
)

// uniformGray creates a width x height image filled with v.
func uniformGray(width, height int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

// bandsGray creates an image split into vertical bands, one per value.
func bandsGray(width, height int, values ...uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	band := width / len(values)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := x / band
			if i >= len(values) {
				i = len(values) - 1
			}
			img.Pix[img.PixOffset(x, y)] = values[i]
		}
	}
	return img
}

func randomHistogram(seed int64, maxCount int) Histogram {
	rng := rand.New(rand.NewSource(seed))
	var h Histogram
	for i := range h {
		h[i] = rng.Intn(maxCount)
	}
	h[rng.Intn(Levels)]++
	return h
}

func TestCompute_Bimodal(t *testing.T) {
	img := bandsGray(20, 10, 50, 200)

	result, err := Compute(GrayImage(img), Options{})
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if len(result.Thresholds) != 1 {
		t.Fatalf("thresholds: got %v, want one value", result.Thresholds)
	}
	th := result.Threshold()
	if th <= 50 || th >= 200 {
		t.Errorf("threshold %d not strictly between 50 and 200", th)
	}
	if th != 124 {
		t.Errorf("threshold: got %d, want 124 (middle of the empty run)", th)
	}

	bin, err := Binarize(img, th)
	if err != nil {
		t.Fatalf("Binarize failed: %v", err)
	}
	for y := 0; y < 10; y++ {
		for x := 0; x < 20; x++ {
			orig := img.GrayAt(x, y).Y
			got := bin.GrayAt(x, y).Y
			want := uint8(0)
			if orig == 200 {
				want = 255
			}
			if got != want {
				t.Fatalf("pixel (%d,%d)=%d: got %d, want %d", x, y, orig, got, want)
			}
		}
	}
}

func TestCompute_BimodalLowestPlacement(t *testing.T) {
	img := bandsGray(20, 10, 50, 200)

	result, err := Compute(GrayImage(img), Options{Placement: PlacementLowest})
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if result.Threshold() != 50 {
		t.Errorf("threshold: got %d, want 50", result.Threshold())
	}
}

func TestCompute_PlacementKeepsVariance(t *testing.T) {
	img := bandsGray(30, 3, 10, 90, 240)
	centered, err := Compute(GrayImage(img), Options{Classes: 3})
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	lowest, err := Compute(GrayImage(img), Options{Classes: 3, Placement: PlacementLowest})
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if centered.BetweenClassVariance != lowest.BetweenClassVariance {
		t.Errorf("variance differs: centered %v, lowest %v", centered.BetweenClassVariance, lowest.BetweenClassVariance)
	}
	if reflect.DeepEqual(centered.Thresholds, lowest.Thresholds) {
		t.Errorf("expected placement to move thresholds, both %v", centered.Thresholds)
	}
}

func TestCompute_Deterministic(t *testing.T) {
	h := randomHistogram(7, 500)
	first, err := Compute(h, Options{Classes: 3})
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := Compute(h, Options{Classes: 3})
		if err != nil {
			t.Fatalf("Compute failed: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d: got %+v, want %+v", i, again, first)
		}
	}
}

func TestCompute_RangeValidity(t *testing.T) {
	for classes := MinClasses; classes <= 3; classes++ {
		for seed := int64(1); seed <= 5; seed++ {
			h := randomHistogram(seed, 100)
			result, err := Compute(h, Options{Classes: classes})
			if err != nil {
				t.Fatalf("classes=%d seed=%d: %v", classes, seed, err)
			}
			if len(result.Thresholds) != classes-1 {
				t.Fatalf("classes=%d: got %d thresholds", classes, len(result.Thresholds))
			}
			prev := -1
			for _, th := range result.Thresholds {
				if th < 0 || th > 255 {
					t.Errorf("threshold %d out of range", th)
				}
				if th <= prev {
					t.Errorf("thresholds not strictly ascending: %v", result.Thresholds)
				}
				prev = th
			}
			if len(result.Classes) != classes {
				t.Errorf("class stats: got %d, want %d", len(result.Classes), classes)
			}
		}
	}
}

func TestCompute_BinaryOptimality(t *testing.T) {
	for seed := int64(1); seed <= 10; seed++ {
		h := randomHistogram(seed, 1000)
		result, err := Compute(h, Options{})
		if err != nil {
			t.Fatalf("Compute failed: %v", err)
		}
		for th := 0; th < Levels-1; th++ {
			v, err := BetweenClassVariance(h, []int{th})
			if err != nil {
				t.Fatalf("BetweenClassVariance(%d) failed: %v", th, err)
			}
			if v > result.BetweenClassVariance*(1+1e-12) {
				t.Fatalf("seed %d: threshold %d has variance %v > chosen %d with %v",
					seed, th, v, result.Threshold(), result.BetweenClassVariance)
			}
		}
	}
}

func TestVarianceCurve(t *testing.T) {
	h := randomHistogram(7, 500)
	curve, err := VarianceCurve(h)
	if err != nil {
		t.Fatalf("VarianceCurve failed: %v", err)
	}
	if len(curve) != Levels-1 {
		t.Fatalf("length: got %d, want %d", len(curve), Levels-1)
	}

	result, err := Compute(h, Options{Placement: PlacementLowest})
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if curve[result.Threshold()] != result.BetweenClassVariance {
		t.Errorf("curve at %d: got %v, want %v", result.Threshold(), curve[result.Threshold()], result.BetweenClassVariance)
	}
	for th, v := range curve {
		if v > result.BetweenClassVariance*(1+1e-12) {
			t.Errorf("curve[%d]=%v exceeds optimum %v", th, v, result.BetweenClassVariance)
		}
	}

	var empty Histogram
	if _, err := VarianceCurve(empty); err == nil {
		t.Error("empty histogram should fail")
	}
}

// mirrorHistogram returns a random histogram with h[i] == h[255-i]. Every
// threshold t then ties with 254-t, which exercises the tie-break.
func mirrorHistogram(seed int64, maxCount int) Histogram {
	rng := rand.New(rand.NewSource(seed))
	var h Histogram
	for i := 0; i < Levels/2; i++ {
		n := rng.Intn(maxCount)
		h[i] = n
		h[Levels-1-i] = n
	}
	h[0]++
	h[Levels-1]++
	return h
}

// exactScore computes sum(S_k^2/n_k) level by level with rationals.
func exactScore(h Histogram, thresholds []int) *big.Rat {
	total := new(big.Rat)
	lo := 0
	bounds := append(append([]int(nil), thresholds...), Levels-1)
	for _, hi := range bounds {
		var n, sum int64
		for level := lo; level <= hi; level++ {
			n += int64(h[level])
			sum += int64(level) * int64(h[level])
		}
		if n > 0 {
			s := big.NewInt(sum)
			s.Mul(s, s)
			total.Add(total, new(big.Rat).SetFrac(s, big.NewInt(n)))
		}
		lo = hi + 1
	}
	return total
}

func TestCompute_SmallestThresholdWinsExactTies(t *testing.T) {
	for seed := int64(1); seed <= 300; seed++ {
		h := mirrorHistogram(seed, 1000)

		want := 0
		best := exactScore(h, []int{0})
		for th := 1; th < Levels-1; th++ {
			if s := exactScore(h, []int{th}); s.Cmp(best) > 0 {
				best, want = s, th
			}
		}

		result, err := Compute(h, Options{Placement: PlacementLowest})
		if err != nil {
			t.Fatalf("Compute failed: %v", err)
		}
		if result.Threshold() != want {
			t.Fatalf("seed %d: got %d, want %d", seed, result.Threshold(), want)
		}
	}
}

func TestCompute_ThreeClassExactTies(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		h := mirrorHistogram(seed, 40)

		want := []int{0, 1}
		best := exactScore(h, want)
		for t1 := 0; t1 < Levels-2; t1++ {
			for t2 := t1 + 1; t2 < Levels-1; t2++ {
				if s := exactScore(h, []int{t1, t2}); s.Cmp(best) > 0 {
					best, want = s, []int{t1, t2}
				}
			}
		}

		result, err := Compute(h, Options{Classes: 3, Placement: PlacementLowest})
		if err != nil {
			t.Fatalf("Compute failed: %v", err)
		}
		if !reflect.DeepEqual(result.Thresholds, want) {
			t.Errorf("seed %d: got %v, want %v", seed, result.Thresholds, want)
		}
	}
}

func TestCompute_CenteredFollowsExactTieBreak(t *testing.T) {
	// Two equal clusters mirrored around the middle: 60 and 195.
	var h Histogram
	h[60] = 500
	h[195] = 500
	h[20] = 7
	h[235] = 7

	result, err := Compute(h, Options{})
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	lowest, err := Compute(h, Options{Placement: PlacementLowest})
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if lowest.Threshold() >= 128 {
		t.Errorf("lowest placement picked the upper mirror threshold %d", lowest.Threshold())
	}
	if result.Threshold() < lowest.Threshold() {
		t.Errorf("centered %d below lowest %d", result.Threshold(), lowest.Threshold())
	}
}

func TestCompute_ThreeClassMatchesBruteForce(t *testing.T) {
	h := randomHistogram(42, 50)

	bestVar := -1.0
	var best []int
	for t1 := 0; t1 < Levels-2; t1++ {
		for t2 := t1 + 1; t2 < Levels-1; t2++ {
			v, err := BetweenClassVariance(h, []int{t1, t2})
			if err != nil {
				t.Fatalf("BetweenClassVariance failed: %v", err)
			}
			if v > bestVar {
				bestVar = v
				best = []int{t1, t2}
			}
		}
	}

	result, err := Compute(h, Options{Classes: 3, Placement: PlacementLowest})
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if !reflect.DeepEqual(result.Thresholds, best) {
		t.Errorf("thresholds: got %v, want %v", result.Thresholds, best)
	}
	if result.BetweenClassVariance != bestVar {
		t.Errorf("variance: got %v, want %v", result.BetweenClassVariance, bestVar)
	}
}

func TestCompute_MultiLevelClusters(t *testing.T) {
	tests := []struct {
		name   string
		values []uint8
	}{
		{"three clusters", []uint8{30, 120, 220}},
		{"four clusters", []uint8{20, 80, 150, 230}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := bandsGray(len(tt.values)*10, 4, tt.values...)
			result, err := Compute(GrayImage(img), Options{Classes: len(tt.values)})
			if err != nil {
				t.Fatalf("Compute failed: %v", err)
			}
			for i, th := range result.Thresholds {
				if th < int(tt.values[i]) || th >= int(tt.values[i+1]) {
					t.Errorf("threshold %d=%d does not separate %d and %d", i, th, tt.values[i], tt.values[i+1])
				}
			}
			if result.WithinClassVariance > 1e-9 {
				t.Errorf("within-class variance: got %v, want 0", result.WithinClassVariance)
			}

			q, err := Quantize(img, result.Thresholds)
			if err != nil {
				t.Fatalf("Quantize failed: %v", err)
			}
			distinct := map[uint8]bool{}
			for _, v := range q.Pix {
				distinct[v] = true
			}
			if len(distinct) != len(tt.values) {
				t.Errorf("distinct output levels: got %d, want %d", len(distinct), len(tt.values))
			}
		})
	}
}

func TestCompute_DegenerateImage(t *testing.T) {
	for _, v := range []uint8{0, 77, 255} {
		img := uniformGray(8, 8, v)
		for classes := MinClasses; classes <= MaxClasses; classes++ {
			result, err := Compute(GrayImage(img), Options{Classes: classes})
			if err != nil {
				t.Fatalf("value %d classes %d: %v", v, classes, err)
			}
			if result.BetweenClassVariance != 0 {
				t.Errorf("value %d: variance got %v, want 0", v, result.BetweenClassVariance)
			}
			for i, th := range result.Thresholds {
				if th != i {
					t.Errorf("value %d classes %d: thresholds %v, want 0..%d", v, classes, result.Thresholds, classes-2)
					break
				}
			}
		}
	}
}

func TestCompute_HistogramEquivalence(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	p := make(Pixels, 12)
	for y := range p {
		p[y] = make([]int, 17)
		for x := range p[y] {
			if rng.Intn(2) == 0 {
				p[y][x] = 40 + rng.Intn(30)
			} else {
				p[y][x] = 170 + rng.Intn(40)
			}
		}
	}
	img, err := p.ToGray()
	if err != nil {
		t.Fatalf("ToGray failed: %v", err)
	}
	h, err := p.Histogram()
	if err != nil {
		t.Fatalf("Histogram failed: %v", err)
	}

	for classes := MinClasses; classes <= 3; classes++ {
		opts := Options{Classes: classes}
		fromPixels, err := Compute(p, opts)
		if err != nil {
			t.Fatalf("Compute(pixels) failed: %v", err)
		}
		fromImage, err := Compute(GrayImage(img), opts)
		if err != nil {
			t.Fatalf("Compute(image) failed: %v", err)
		}
		fromHist, err := Compute(h, opts)
		if err != nil {
			t.Fatalf("Compute(histogram) failed: %v", err)
		}
		if !reflect.DeepEqual(fromPixels, fromHist) || !reflect.DeepEqual(fromImage, fromHist) {
			t.Errorf("classes %d: results differ: pixels %v, image %v, histogram %v",
				classes, fromPixels.Thresholds, fromImage.Thresholds, fromHist.Thresholds)
		}
	}
}

func TestCompute_VarianceDecomposition(t *testing.T) {
	h := randomHistogram(11, 300)
	for classes := MinClasses; classes <= 3; classes++ {
		result, err := Compute(h, Options{Classes: classes})
		if err != nil {
			t.Fatalf("Compute failed: %v", err)
		}
		sum := result.BetweenClassVariance + result.WithinClassVariance
		if math.Abs(sum-result.TotalVariance) > 1e-6*result.TotalVariance {
			t.Errorf("classes %d: between+within=%v, total=%v", classes, sum, result.TotalVariance)
		}
		if math.Abs(result.TotalVariance-h.Variance()) > 1e-6*h.Variance() {
			t.Errorf("total variance %v differs from histogram variance %v", result.TotalVariance, h.Variance())
		}
	}
}

func TestCompute_ClassStats(t *testing.T) {
	var h Histogram
	h[10] = 3
	h[20] = 1
	h[200] = 4

	result, err := Compute(h, Options{Placement: PlacementLowest})
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if result.Threshold() != 20 {
		t.Fatalf("threshold: got %d, want 20", result.Threshold())
	}
	lower, upper := result.Classes[0], result.Classes[1]
	if lower.Low != 0 || lower.High != 20 || lower.Pixels != 4 {
		t.Errorf("lower class: got %+v", lower)
	}
	if lower.Mean != 12.5 || lower.Weight != 0.5 {
		t.Errorf("lower class mean/weight: got %v/%v, want 12.5/0.5", lower.Mean, lower.Weight)
	}
	if upper.Low != 21 || upper.High != 255 || upper.Mean != 200 {
		t.Errorf("upper class: got %+v", upper)
	}
}

func TestCompute_Errors(t *testing.T) {
	tests := []struct {
		name       string
		src        Source
		opts       Options
		wantConfig bool
	}{
		{"nil source", nil, Options{}, false},
		{"empty pixels", Pixels{}, Options{}, false},
		{"empty row", Pixels{{}}, Options{}, false},
		{"ragged pixels", Pixels{{1, 2}, {3}}, Options{}, false},
		{"pixel too large", Pixels{{1, 256}}, Options{}, false},
		{"negative pixel", Pixels{{-1, 4}}, Options{}, false},
		{"zero histogram", Histogram{}, Options{}, false},
		{"empty image", GrayImage(image.NewGray(image.Rect(0, 0, 0, 0))), Options{}, false},
		{"nil image", GrayImage(nil), Options{}, false},
		{"one class", Pixels{{1, 2}}, Options{Classes: 1}, true},
		{"negative classes", Pixels{{1, 2}}, Options{Classes: -2}, true},
		{"too many classes", Pixels{{1, 2}}, Options{Classes: MaxClasses + 1}, true},
		{"bad placement", Pixels{{1, 2}}, Options{Placement: Placement(9)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compute(tt.src, tt.opts)
			if err == nil {
				t.Fatal("expected error")
			}
			var inputErr *InvalidInputError
			var configErr *ConfigurationError
			if tt.wantConfig && !errors.As(err, &configErr) {
				t.Errorf("got %T (%v), want *ConfigurationError", err, err)
			}
			if !tt.wantConfig && !errors.As(err, &inputErr) {
				t.Errorf("got %T (%v), want *InvalidInputError", err, err)
			}
		})
	}
}

func TestBetweenClassVariance_InvalidThresholds(t *testing.T) {
	h := randomHistogram(1, 10)
	for _, th := range [][]int{nil, {-1}, {255}, {10, 10}, {20, 10}} {
		if _, err := BetweenClassVariance(h, th); err == nil {
			t.Errorf("thresholds %v: expected error", th)
		}
		if _, err := WithinClassVariance(h, th); err == nil {
			t.Errorf("thresholds %v: expected error", th)
		}
	}
}

func TestParsePlacement(t *testing.T) {
	tests := []struct {
		in      string
		want    Placement
		wantErr bool
	}{
		{"", PlacementCentered, false},
		{"centered", PlacementCentered, false},
		{"Lowest", PlacementLowest, false},
		{"middle", 0, true},
	}
	for _, tt := range tests {
		got, err := ParsePlacement(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePlacement(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("ParsePlacement(%q): got %v, want %v", tt.in, got, tt.want)
		}
	}
}
