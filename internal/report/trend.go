package report

import (
	"math"
	"strings"
)

const sparkChars = " .:-=+*#%@"

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if window <= 1 {
		copy(out, values)
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		den := float64(i + 1)
		if i >= window {
			sum -= values[i-window]
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}

// Sparkline renders scores on a fixed 0..100 scale so lines from different
// filters compare visually.
func Sparkline(scores []float64) string {
	if len(scores) == 0 {
		return ""
	}
	var b strings.Builder
	last := len(sparkChars) - 1
	for _, v := range scores {
		pos := math.Max(0, math.Min(100, v)) / 100
		b.WriteByte(sparkChars[int(math.Round(pos*float64(last)))])
	}
	return b.String()
}
