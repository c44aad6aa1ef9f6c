package calculate

import "math"

// RSI calculates the Relative Strength Index for every close.
// Gains and losses are averaged with a simple rolling mean over `period` deltas,
// so the first `period` entries are NaN.
func RSI(closes []float64, period int) []float64 {
	out := nanSeries(len(closes))
	if period <= 0 || len(closes) < period+1 {
		return out
	}

	for i := period; i < len(closes); i++ {
		var gains, losses float64
		for j := i - period + 1; j <= i; j++ {
			change := closes[j] - closes[j-1]
			if change > 0 {
				gains += change
			} else {
				losses -= change
			}
		}
		out[i] = rsiFromAverages(gains/float64(period), losses/float64(period))
	}

	return out
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if math.IsNaN(avgGain) || math.IsNaN(avgLoss) {
		return math.NaN()
	}
	if avgLoss == 0 {
		if avgGain == 0 {
			return math.NaN() // flat window, undefined
		}
		return 100.0
	}

	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}
