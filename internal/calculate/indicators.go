package calculate

import (
	"github.com/Alias1177/FuturesBot/models"
)

// UpdateIndicators computes every indicator column for the given bars.
// The input is never modified and the call is idempotent. Short input yields
// NaN indicator values rather than an error.
func UpdateIndicators(candles []models.Candle, cfg models.StrategyConfig) []models.IndicatorSnapshot {
	if len(candles) == 0 {
		return nil
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	rsi := RSI(closes, cfg.RSIPeriod)
	maShort := SMA(closes, cfg.MAShortPeriod)
	maLong := SMA(closes, cfg.MALongPeriod)
	adx := ADX(candles, cfg.ADXPeriod)
	volatility := Volatility(closes, cfg.VolatilityWindow)
	volumeRatio := VolumeRatio(candles, cfg.VolumeWindow)

	snapshots := make([]models.IndicatorSnapshot, len(candles))
	for i, c := range candles {
		snapshots[i] = models.IndicatorSnapshot{
			Candle:      c,
			RSI:         rsi[i],
			MAShort:     maShort[i],
			MALong:      maLong[i],
			ADX:         adx.ADX[i],
			PlusDI:      adx.PlusDI[i],
			MinusDI:     adx.MinusDI[i],
			Volatility:  volatility[i],
			VolumeRatio: volumeRatio[i],
		}
	}

	return snapshots
}
