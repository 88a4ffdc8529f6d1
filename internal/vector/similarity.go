package vector

// L2Distance returns the squared Euclidean distance between two vectors of equal length.
func L2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
