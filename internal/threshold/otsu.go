package threshold

import (
	"fmt"
	"math/big"
	"strings"
)

const (
	// MinClasses is the smallest class count (a single binary threshold).
	MinClasses = 2

	// MaxClasses bounds the exhaustive multi-level search. Four classes
	// means C(255,3) candidate triples, which still runs in well under a
	// second; five would be two orders of magnitude more.
	MaxClasses = 4
)

// Placement selects which threshold is reported when several adjacent
// levels produce exactly the same partition of the pixels. That happens
// whenever the histogram has empty bins between two occupied levels.
type Placement int

const (
	// PlacementCentered moves each threshold to the middle of the run of
	// empty bins that follows it. For two clusters at 50 and 200 this
	// yields 124 instead of 50.
	PlacementCentered Placement = iota

	// PlacementLowest reports the lexicographically smallest optimal
	// tuple unchanged.
	PlacementLowest
)

func (p Placement) String() string {
	switch p {
	case PlacementCentered:
		return "centered"
	case PlacementLowest:
		return "lowest"
	default:
		return fmt.Sprintf("Placement(%d)", int(p))
	}
}

// ParsePlacement converts "centered" or "lowest" to a Placement. An empty
// string selects PlacementCentered.
func ParsePlacement(s string) (Placement, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "centered", "centred", "center", "centre":
		return PlacementCentered, nil
	case "lowest", "lower", "smallest":
		return PlacementLowest, nil
	default:
		return 0, badConfig("placement", "must be \"centered\" or \"lowest\", got %q", s)
	}
}

// Options controls a threshold computation. The zero value computes a
// single binary threshold with centered placement.
type Options struct {
	// Classes is the number of output classes (2..MaxClasses). Zero
	// selects MinClasses.
	Classes int

	// Placement resolves ties between thresholds that yield an identical
	// pixel partition.
	Placement Placement
}

func (o Options) classes() (int, error) {
	if o.Classes == 0 {
		return MinClasses, nil
	}
	if o.Classes < MinClasses || o.Classes > MaxClasses {
		return 0, badConfig("classes", "must be between %d and %d, got %d", MinClasses, MaxClasses, o.Classes)
	}
	return o.Classes, nil
}

func (o Options) validate() error {
	if _, err := o.classes(); err != nil {
		return err
	}
	if o.Placement != PlacementCentered && o.Placement != PlacementLowest {
		return badConfig("placement", "unknown value %d", int(o.Placement))
	}
	return nil
}

// ClassStats describes one class of a partition.
type ClassStats struct {
	// Low and High are the inclusive intensity bounds of the class.
	Low  int `json:"low"`
	High int `json:"high"`

	// Pixels is the number of pixels in the class.
	Pixels int `json:"pixels"`

	// Weight is the fraction of all pixels that fall in the class.
	Weight float64 `json:"weight"`

	// Mean is the mean intensity of the class. It is 0 when Pixels is 0,
	// in which case the mean is undefined.
	Mean float64 `json:"mean"`
}

// Result is the outcome of a threshold computation.
type Result struct {
	// Thresholds holds Classes-1 strictly ascending levels in [0,254].
	Thresholds []int `json:"thresholds"`

	// BetweenClassVariance is the maximized criterion.
	BetweenClassVariance float64 `json:"between_class_variance"`

	// WithinClassVariance is the weighted sum of the class variances at
	// the chosen thresholds. It is minimal wherever BetweenClassVariance
	// is maximal.
	WithinClassVariance float64 `json:"within_class_variance"`

	// TotalVariance is the intensity variance of the whole input.
	TotalVariance float64 `json:"total_variance"`

	// Classes lists per-class statistics in ascending intensity order.
	Classes []ClassStats `json:"classes"`
}

// Threshold returns the first (for binary results, the only) threshold.
func (r *Result) Threshold() int {
	return r.Thresholds[0]
}

// Compute finds the thresholds that maximize between-class variance for
// the histogram of src.
//
// The search is exhaustive over every strictly ascending tuple of
// Classes-1 levels. Class weights and means come from cumulative sums, so
// each candidate costs O(Classes) after an O(256) pass over the histogram.
// Among equal maxima the lexicographically smallest tuple wins; Placement
// may then slide each threshold across empty bins without changing the
// partition.
//
// An input with a single intensity has zero variance at every threshold.
// In that case the smallest tuple (0, 1, ...) is returned unchanged.
//
// Returns *ConfigurationError for an unsupported class count and
// *InvalidInputError when src is empty or has no pixels.
func Compute(src Source, opts Options) (*Result, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, invalidInput("nil source")
	}
	h, err := src.Histogram()
	if err != nil {
		return nil, err
	}
	classes, _ := opts.classes()

	c := newCumulative(h)
	s := &searcher{
		c:       c,
		n:       classes - 1,
		current: make([]int, classes-1),
		best:    make([]int, classes-1),
	}
	s.walk(0, 0, 0)

	thresholds := s.best
	if opts.Placement == PlacementCentered && s.bestVariance > 0 {
		thresholds = c.center(thresholds)
	}
	return c.result(thresholds), nil
}

// BetweenClassVariance evaluates the Otsu criterion for arbitrary
// thresholds. The thresholds must be strictly ascending and within
// [0,254].
func BetweenClassVariance(h Histogram, thresholds []int) (float64, error) {
	if err := h.Validate(); err != nil {
		return 0, err
	}
	if err := validateThresholds(thresholds); err != nil {
		return 0, err
	}
	c := newCumulative(h)
	var v float64
	eachClass(thresholds, func(lo, hi int) {
		v += c.between(lo, hi)
	})
	return v, nil
}

// WithinClassVariance evaluates the weighted sum of class variances for
// arbitrary thresholds.
func WithinClassVariance(h Histogram, thresholds []int) (float64, error) {
	if err := h.Validate(); err != nil {
		return 0, err
	}
	if err := validateThresholds(thresholds); err != nil {
		return 0, err
	}
	c := newCumulative(h)
	var v float64
	eachClass(thresholds, func(lo, hi int) {
		v += c.within(lo, hi)
	})
	return v, nil
}

// VarianceCurve returns the two-class between-class variance for every
// single threshold t in [0,254]. Index t of the result is the value at t.
func VarianceCurve(h Histogram) ([]float64, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	c := newCumulative(h)
	curve := make([]float64, Levels-1)
	for t := range curve {
		curve[t] = c.between(0, t) + c.between(t+1, Levels-1)
	}
	return curve, nil
}

func validateThresholds(thresholds []int) error {
	if len(thresholds) == 0 {
		return invalidInput("no thresholds")
	}
	prev := -1
	for i, t := range thresholds {
		if t < 0 || t > Levels-2 {
			return invalidInput("threshold %d at index %d outside [0,%d]", t, i, Levels-2)
		}
		if t <= prev {
			return invalidInput("thresholds must be strictly ascending, got %v", thresholds)
		}
		prev = t
	}
	return nil
}

// eachClass calls fn with the inclusive bounds of every class induced by
// thresholds.
func eachClass(thresholds []int, fn func(lo, hi int)) {
	lo := 0
	for _, t := range thresholds {
		fn(lo, t)
		lo = t + 1
	}
	fn(lo, Levels-1)
}

// cumulative holds prefix sums over the histogram. Index i covers levels
// [0,i), so a class [lo,hi] is x[hi+1]-x[lo].
type cumulative struct {
	count [Levels + 1]int
	sum   [Levels + 1]int
	sq    [Levels + 1]int
	total int
	mean  float64
	h     Histogram
}

func newCumulative(h Histogram) *cumulative {
	c := &cumulative{h: h}
	for level, n := range h {
		c.count[level+1] = c.count[level] + n
		c.sum[level+1] = c.sum[level] + level*n
		c.sq[level+1] = c.sq[level] + level*level*n
	}
	c.total = c.count[Levels]
	c.mean = float64(c.sum[Levels]) / float64(c.total)
	return c
}

func (c *cumulative) class(lo, hi int) (n, sum, sq int) {
	return c.count[hi+1] - c.count[lo], c.sum[hi+1] - c.sum[lo], c.sq[hi+1] - c.sq[lo]
}

// between is the class's term w*(mu-muT)^2. Empty classes contribute 0.
func (c *cumulative) between(lo, hi int) float64 {
	n, sum, _ := c.class(lo, hi)
	if n == 0 {
		return 0
	}
	w := float64(n) / float64(c.total)
	d := float64(sum)/float64(n) - c.mean
	return w * d * d
}

// within is the class's term w*sigma^2. Empty classes contribute 0.
func (c *cumulative) within(lo, hi int) float64 {
	n, sum, sq := c.class(lo, hi)
	if n == 0 {
		return 0
	}
	ss := float64(sq) - float64(sum)*float64(sum)/float64(n)
	if ss < 0 {
		ss = 0
	}
	return ss / float64(c.total)
}

func (c *cumulative) variance() float64 {
	v := float64(c.sq[Levels])/float64(c.total) - c.mean*c.mean
	if v < 0 {
		return 0
	}
	return v
}

// nextOccupied returns the first level above t with pixels, or Levels.
func (c *cumulative) nextOccupied(t int) int {
	for level := t + 1; level < Levels; level++ {
		if c.h[level] > 0 {
			return level
		}
	}
	return Levels
}

// center slides each threshold to the middle of the empty run after it,
// keeping the tuple strictly ascending and within [0,254].
func (c *cumulative) center(thresholds []int) []int {
	out := make([]int, len(thresholds))
	for i := len(thresholds) - 1; i >= 0; i-- {
		t := thresholds[i]
		upper := Levels - 2
		if i < len(thresholds)-1 {
			upper = out[i+1] - 1
		}
		if next := c.nextOccupied(t) - 1; next < upper {
			upper = next
		}
		out[i] = t + (upper-t)/2
	}
	return out
}

func (c *cumulative) result(thresholds []int) *Result {
	r := &Result{
		Thresholds:    append([]int(nil), thresholds...),
		TotalVariance: c.variance(),
	}
	eachClass(thresholds, func(lo, hi int) {
		n, sum, _ := c.class(lo, hi)
		stats := ClassStats{Low: lo, High: hi, Pixels: n}
		if n > 0 {
			stats.Weight = float64(n) / float64(c.total)
			stats.Mean = float64(sum) / float64(n)
		}
		r.Classes = append(r.Classes, stats)
		r.BetweenClassVariance += c.between(lo, hi)
		r.WithinClassVariance += c.within(lo, hi)
	})
	return r
}

// tieTolerance is the relative gap below which two float variances are
// treated as a possible tie and compared exactly.
const tieTolerance = 1e-9

// score returns sum(S_k^2/n_k) over the non-empty classes, where S_k is the
// intensity sum and n_k the pixel count of class k. Between-class variance
// is score/N - mean^2, so scores order partitions exactly as variances do.
func (c *cumulative) score(thresholds []int) *big.Rat {
	total := new(big.Rat)
	eachClass(thresholds, func(lo, hi int) {
		n, sum, _ := c.class(lo, hi)
		if n == 0 {
			return
		}
		s := big.NewInt(int64(sum))
		s.Mul(s, s)
		total.Add(total, new(big.Rat).SetFrac(s, big.NewInt(int64(n))))
	})
	return total
}

// samePartition reports whether a and b split the pixels into the same
// non-empty classes. Thresholds that only move across empty bins, or that
// only create empty classes, do not change the partition.
func (c *cumulative) samePartition(a, b []int) bool {
	i, j := 0, 0
	for {
		for i < len(a) && !c.splits(a, i) {
			i++
		}
		for j < len(b) && !c.splits(b, j) {
			j++
		}
		if i == len(a) || j == len(b) {
			return i == len(a) && j == len(b)
		}
		if c.count[a[i]+1] != c.count[b[j]+1] {
			return false
		}
		i++
		j++
	}
}

// splits reports whether thresholds[i] separates pixels, that is the
// cumulative count at it lies strictly between 0 and the total and differs
// from the one at the previous threshold.
func (c *cumulative) splits(thresholds []int, i int) bool {
	n := c.count[thresholds[i]+1]
	if n == 0 || n == c.total {
		return false
	}
	return i == 0 || c.count[thresholds[i-1]+1] != n
}

// searcher enumerates ascending threshold tuples depth-first. Tuples are
// visited in lexicographic order and only a strictly larger variance
// replaces the incumbent, so the smallest optimal tuple is kept.
//
// Sums of floats taken over different partitions can differ in the last
// bits even when the exact values are equal, so near-ties are settled
// with exact rational arithmetic on the integer prefix sums.
type searcher struct {
	c            *cumulative
	n            int
	current      []int
	best         []int
	bestVariance float64
	bestScore    *big.Rat
	found        bool
}

// better reports whether the current tuple, with float variance v, beats
// the incumbent.
func (s *searcher) better(v float64) bool {
	if !s.found {
		return true
	}
	tol := tieTolerance * s.bestVariance
	switch {
	case v > s.bestVariance+tol:
		return true
	case v < s.bestVariance-tol:
		return false
	case s.c.samePartition(s.current, s.best):
		return false
	}
	if s.bestScore == nil {
		s.bestScore = s.c.score(s.best)
	}
	return s.c.score(s.current).Cmp(s.bestScore) > 0
}

// walk picks threshold number depth, given that the class being closed
// starts at level lo and the classes already closed sum to acc.
func (s *searcher) walk(depth, lo int, acc float64) {
	if depth == s.n {
		v := acc + s.c.between(lo, Levels-1)
		if s.better(v) {
			s.found = true
			s.bestVariance = v
			s.bestScore = nil
			copy(s.best, s.current)
		}
		return
	}
	// Leave room for the thresholds still to come; the last one is at
	// most Levels-2 so the top class is never out of range.
	last := Levels - 2 - (s.n - 1 - depth)
	for t := lo; t <= last; t++ {
		s.current[depth] = t
		s.walk(depth+1, t+1, acc+s.c.between(lo, t))
	}
}
