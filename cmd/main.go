package main

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Alias1177/FuturesBot/internal/analyze"
	"github.com/Alias1177/FuturesBot/internal/api/bitget"
	"github.com/Alias1177/FuturesBot/internal/app"
	"github.com/Alias1177/FuturesBot/internal/config"
	"github.com/Alias1177/FuturesBot/internal/strategy"
)

// One-shot analysis: fetch bars for every symbol and print the signal diagnostic.
// No orders are placed.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	app.SetupLogging(cfg.LogLevel)
	app.LogConfig(cfg)

	client := bitget.NewClient(bitget.Credentials{}, bitget.Options{
		BaseURL:        cfg.BitgetBaseURL,
		ProductType:    cfg.ProductType,
		Timeout:        cfg.Timeout(),
		RequestsPerSec: cfg.RequestsPerSec,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	for _, symbol := range cfg.Symbols {
		s, err := strategy.New(symbol, cfg.Strategy)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid strategy configuration")
		}

		candles, err := client.GetBars(ctx, symbol, cfg.Interval, cfg.CandleCount)
		if err != nil {
			log.Error().Err(err).Str("symbol", symbol).Msg("Failed to fetch candles")
			continue
		}

		a := s.Analyze(candles)
		if a == nil {
			log.Warn().Str("symbol", symbol).Int("bars", len(candles)).Msg("Not enough data for analysis")
			continue
		}
		printAnalysis(a)
	}
}

func printAnalysis(a *analyze.Analysis) {
	snap := a.Snapshot
	fmt.Printf("\n===== %s =====\n", a.Symbol)
	fmt.Printf("Time: %s\n", snap.Timestamp.Format(time.RFC3339))
	fmt.Printf("Close: %.4f\n", snap.Close)
	fmt.Printf("RSI: %s\n", value(snap.RSI, 2))
	fmt.Printf("MA short / long: %s / %s\n", value(snap.MAShort, 4), value(snap.MALong, 4))
	fmt.Printf("ADX: %.2f (+DI %s, -DI %s)\n", a.Condition.TrendStrength, value(snap.PlusDI, 2), value(snap.MinusDI, 2))
	fmt.Printf("Volatility: %.5f\n", a.Condition.Volatility)
	fmt.Printf("Volume ratio: %.2f\n", a.Condition.VolumeRatio)
	fmt.Printf("Regime: %s, session allowed: %t\n", a.Condition.Regime, a.Condition.SessionAllowed)

	for _, e := range []analyze.Evaluation{a.Long, a.Short} {
		fmt.Printf("%s: valid=%t confidence=%.2f base=%t trend=%t volume=%t volatility=%t\n",
			e.Side, e.Valid, e.Confidence, e.BaseCondition, e.TrendConfirmed, e.VolumeConfirmed, e.VolatilityOK)
	}

	if a.Signal == nil {
		fmt.Println("Signal: HOLD")
		return
	}
	fmt.Printf("Signal: %s (confidence %.2f)\n%s\n", a.Signal.Type, a.Signal.Confidence, a.Signal.Reasoning)
}

func value(v float64, prec int) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.*f", prec, v)
}
