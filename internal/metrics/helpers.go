package metrics

import "math"

func nullableFloat(valid bool, f float64) float64 {
	if !valid {
		return math.NaN()
	}
	return f
}
