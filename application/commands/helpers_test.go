package commands

import "math"

func floatPtr(f float64) *float64 {
	return &f
}

func nan() float64 {
	return math.NaN()
}
