package calculate

import "math"

// DefaultVolatilityWindow is the number of returns in the rolling window
const DefaultVolatilityWindow = 20

// Returns calculates simple percentage returns; index 0 is NaN
func Returns(closes []float64) []float64 {
	out := nanSeries(len(closes))
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		out[i] = (closes[i] - closes[i-1]) / closes[i-1]
	}
	return out
}

// Volatility calculates the rolling sample standard deviation of returns
func Volatility(closes []float64, window int) []float64 {
	out := nanSeries(len(closes))
	if window < 2 || len(closes) < window+1 {
		return out
	}

	returns := Returns(closes)
	for i := window; i < len(returns); i++ {
		out[i] = stdDev(returns[i-window+1 : i+1])
	}
	return out
}

// stdDev is the sample (n-1) standard deviation; NaN in the window propagates
func stdDev(values []float64) float64 {
	if len(values) < 2 {
		return math.NaN()
	}

	mean := calculateAverage(values)
	if math.IsNaN(mean) {
		return math.NaN()
	}

	variance := 0.0
	for _, v := range values {
		variance += math.Pow(v-mean, 2)
	}
	variance /= float64(len(values) - 1)

	return math.Sqrt(variance)
}
