package calculate

import (
	"math"

	"github.com/Alias1177/FuturesBot/models"
)

// ADXResult holds the ADX series with its directional indicators
type ADXResult struct {
	ADX     []float64
	PlusDI  []float64
	MinusDI []float64
}

// ADX computes the Average Directional Index.
// True range and directional movement are smoothed with a rolling mean over
// `period`, DX is averaged again over `period`. Bar 0 has no previous bar and
// is undefined, so the first valid ADX is at index 2*period-1.
func ADX(candles []models.Candle, period int) ADXResult {
	n := len(candles)
	res := ADXResult{ADX: nanSeries(n), PlusDI: nanSeries(n), MinusDI: nanSeries(n)}
	if period <= 0 || n < period+1 {
		return res
	}

	trueRange := nanSeries(n)
	plusDM := nanSeries(n)
	minusDM := nanSeries(n)

	for i := 1; i < n; i++ {
		// True Range is the greatest of:
		// 1. Current High - Current Low
		// 2. Abs(Current High - Previous Close)
		// 3. Abs(Current Low - Previous Close)
		highLow := candles[i].High - candles[i].Low
		highPrevClose := math.Abs(candles[i].High - candles[i-1].Close)
		lowPrevClose := math.Abs(candles[i].Low - candles[i-1].Close)
		trueRange[i] = math.Max(highLow, math.Max(highPrevClose, lowPrevClose))

		upMove := candles[i].High - candles[i-1].High
		downMove := candles[i-1].Low - candles[i].Low

		plusDM[i] = 0
		if upMove > downMove {
			plusDM[i] = math.Max(upMove, 0)
		}
		minusDM[i] = 0
		if downMove > upMove {
			minusDM[i] = math.Max(downMove, 0)
		}
	}

	trSmooth := SMA(trueRange, period)
	plusSmooth := SMA(plusDM, period)
	minusSmooth := SMA(minusDM, period)

	dx := nanSeries(n)
	for i := 0; i < n; i++ {
		if math.IsNaN(trSmooth[i]) || trSmooth[i] <= 0 {
			continue
		}
		plusDI := 100 * plusSmooth[i] / trSmooth[i]
		minusDI := 100 * minusSmooth[i] / trSmooth[i]
		res.PlusDI[i] = plusDI
		res.MinusDI[i] = minusDI

		sum := plusDI + minusDI
		if sum < 1e-12 {
			continue // no directional movement, DX undefined
		}
		dx[i] = 100 * math.Abs(plusDI-minusDI) / sum
	}

	res.ADX = SMA(dx, period)
	return res
}
