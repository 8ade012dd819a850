package utils

import "math"

// RoundTo rounds v half away from zero to the given number of decimal places
func RoundTo(v float64, places int) float64 {
	if places < 0 {
		places = 0
	}
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Percentage returns part/total*100 rounded to one decimal, 0 for an empty total
func Percentage(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return RoundTo(float64(part)/float64(total)*100, 1)
}
