package skill

import (
	"math"
	"slices"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Norm selects how a vector of differences is reduced to a distance.
type Norm int

const (
	// L2 is the root-mean-square difference.
	L2 Norm = iota
	// Max is the largest absolute difference.
	Max
)

func (n Norm) String() string {
	if n == Max {
		return "max"
	}
	return "l2"
}

// DefaultPerkinsBins is the histogram resolution of the Perkins skill score.
const DefaultPerkinsBins = 100

const (
	cdfThresholds   = 200
	exceedanceFloor = 1e-10
)

// distance reduces a - b under the given norm.
func distance(a, b []float64, n Norm) float64 {
	if len(a) == 0 {
		return 0
	}
	if n == Max {
		return floats.Distance(a, b, math.Inf(1))
	}
	return floats.Distance(a, b, 2) / math.Sqrt(float64(len(a)))
}

func sortedCopy(x []float64) []float64 {
	s := slices.Clone(x)
	slices.Sort(s)
	return s
}

// ecdf returns the fraction of sorted values <= q.
func ecdf(sorted []float64, q float64) float64 {
	k := sort.Search(len(sorted), func(i int) bool { return sorted[i] > q })
	return float64(k) / float64(len(sorted))
}

// LogCDFDistance compares the log10 exceedance probabilities 1-F(x) of both
// samples on log-spaced thresholds between the smallest positive and the
// largest value of either sample. Tail differences dominate.
func LogCDFDistance(ref, pred []float64, n Norm) (float64, error) {
	if len(ref) == 0 || len(pred) == 0 {
		return 0, errEmpty
	}
	if err := checkFinite(ref, pred); err != nil {
		return 0, err
	}
	r, p := sortedCopy(ref), sortedCopy(pred)

	lo := math.Inf(1)
	for _, s := range [][]float64{r, p} {
		if k := sort.SearchFloat64s(s, math.SmallestNonzeroFloat64); k < len(s) {
			lo = math.Min(lo, s[k])
		}
	}
	if math.IsInf(lo, 1) {
		// No positive values anywhere: both exceedance curves are zero.
		return 0, nil
	}
	hi := math.Max(r[len(r)-1], p[len(p)-1])

	thresholds := []float64{lo}
	if hi > lo {
		thresholds = floats.LogSpan(make([]float64, cdfThresholds), lo, hi)
	}
	lr := make([]float64, len(thresholds))
	lp := make([]float64, len(thresholds))
	for i, q := range thresholds {
		lr[i] = math.Log10(math.Max(1-ecdf(r, q), exceedanceFloor))
		lp[i] = math.Log10(math.Max(1-ecdf(p, q), exceedanceFloor))
	}
	return distance(lr, lp, n), nil
}

// PerkinsSkillScore is the overlap Σ min(f_ref, f_pred) of the two
// normalized histograms on bins equal-width bins spanning both samples.
// It is 1 for identical distributions and 0 for disjoint ones.
func PerkinsSkillScore(ref, pred []float64, bins int) (float64, error) {
	if len(ref) == 0 || len(pred) == 0 {
		return 0, errEmpty
	}
	if err := checkFinite(ref, pred); err != nil {
		return 0, err
	}
	if bins < 1 {
		bins = DefaultPerkinsBins
	}
	r, p := sortedCopy(ref), sortedCopy(pred)
	lo := math.Min(r[0], p[0])
	hi := math.Max(r[len(r)-1], p[len(p)-1])
	if lo == hi {
		return 1, nil
	}

	dividers := floats.Span(make([]float64, bins+1), lo, hi)
	dividers[bins] = math.Nextafter(hi, math.Inf(1))
	hr := stat.Histogram(nil, dividers, r, nil)
	hp := stat.Histogram(nil, dividers, p, nil)

	var score float64
	for i := range hr {
		score += math.Min(hr[i]/float64(len(r)), hp[i]/float64(len(p)))
	}
	return score, nil
}

// CRPS is the continuous ranked probability score of the forecast
// distribution against the reference distribution, ∫ (F_ref(x) − F_pred(x))² dx
// over the two empirical CDFs. It carries the unit of the data.
func CRPS(ref, pred []float64) (float64, error) {
	if len(ref) == 0 || len(pred) == 0 {
		return 0, errEmpty
	}
	if err := checkFinite(ref, pred); err != nil {
		return 0, err
	}
	a, b := sortedCopy(ref), sortedCopy(pred)
	na, nb := float64(len(a)), float64(len(b))

	var i, j int
	var total float64
	prev := math.Min(a[0], b[0])
	for i < len(a) || j < len(b) {
		next := math.Inf(1)
		if i < len(a) {
			next = a[i]
		}
		if j < len(b) && b[j] < next {
			next = b[j]
		}
		d := float64(i)/na - float64(j)/nb
		total += d * d * (next - prev)
		for i < len(a) && a[i] == next {
			i++
		}
		for j < len(b) && b[j] == next {
			j++
		}
		prev = next
	}
	return total, nil
}
