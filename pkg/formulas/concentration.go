package formulas

import "sort"

// HerfindahlIndex returns Σ(weight/100)² for weights expressed in percent.
func HerfindahlIndex(weightsPct []float64) float64 {
	var hhi float64
	for _, w := range weightsPct {
		f := w / 100
		hhi += f * f
	}
	return hhi
}

// TopWeightsPct returns the largest weight and the sum of the n largest weights.
func TopWeightsPct(weightsPct []float64, n int) (top, topN float64) {
	if len(weightsPct) == 0 {
		return 0, 0
	}

	sorted := make([]float64, len(weightsPct))
	copy(sorted, weightsPct)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))

	if n > len(sorted) {
		n = len(sorted)
	}
	for _, w := range sorted[:n] {
		topN += w
	}
	return sorted[0], topN
}
