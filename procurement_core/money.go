package procurement_core

import "math"

var Precision = 5

func RoundUp(x float64, n int) float64 {
	pow := math.Pow(10, float64(n))
	result := math.Floor(x*pow) / pow
	return result
}

// AmountEqual compares monetary amounts at ledger precision.
func AmountEqual(a, b float64) bool {
	return RoundUp(a, Precision) == RoundUp(b, Precision)
}
