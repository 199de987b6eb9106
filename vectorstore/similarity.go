package vectorstore

import "math"

// Score computes the similarity of a and b under metric. Higher is more similar.
// Euclidean distance is negated so that ordering stays descending.
func Score(metric Metric, a, b []float32) float32 {
	switch metric {
	case MetricDotProduct:
		return dot(a, b)
	case MetricEuclidean:
		var sum float64
		for i := range min(len(a), len(b)) {
			d := float64(a[i] - b[i])
			sum += d * d
		}
		return -float32(math.Sqrt(sum))
	default:
		na, nb := norm(a), norm(b)
		if na == 0 || nb == 0 {
			return 0
		}
		return dot(a, b) / (na * nb)
	}
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range min(len(a), len(b)) {
		sum += a[i] * b[i]
	}
	return sum
}

func norm(v []float32) float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	return float32(math.Sqrt(sum))
}
