package calculate

import (
	"math"

	"github.com/Alias1177/FuturesBot/models"
)

// DefaultVolumeRatio is used when the series carries no volume at all.
// It is deliberately permissive so missing volume does not block every entry.
const DefaultVolumeRatio = 1.5

// HasVolume reports whether any bar carries a positive volume
func HasVolume(candles []models.Candle) bool {
	for _, c := range candles {
		if c.Volume > 0 && !math.IsNaN(c.Volume) {
			return true
		}
	}
	return false
}

// VolumeRatio divides each bar's volume by its trailing average.
// Without volume data every entry is DefaultVolumeRatio; a zero average yields 1.
func VolumeRatio(candles []models.Candle, window int) []float64 {
	out := nanSeries(len(candles))
	if !HasVolume(candles) {
		for i := range out {
			out[i] = DefaultVolumeRatio
		}
		return out
	}

	volumes := make([]float64, len(candles))
	for i, c := range candles {
		volumes[i] = c.Volume
	}

	avg := SMA(volumes, window)
	for i := range candles {
		switch {
		case math.IsNaN(avg[i]):
		case avg[i] > 0:
			out[i] = volumes[i] / avg[i]
		default:
			out[i] = 1
		}
	}
	return out
}
