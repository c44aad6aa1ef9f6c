package analyze

import (
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/FuturesBot/internal/analysis/market"
	"github.com/Alias1177/FuturesBot/internal/calculate"
	"github.com/Alias1177/FuturesBot/models"
)

// Confidence points for each satisfied factor
const (
	baseConfidence       = 0.30
	trendConfidence      = 0.20
	volumeConfidence     = 0.20
	volatilityConfidence = 0.15
	sessionConfidence    = 0.10
	regimeConfidence     = 0.05
)

// Evaluation is the outcome of checking one side of the market.
// Valid requires every hard filter; Confidence is informational only,
// so an invalid evaluation can still carry a nonzero confidence.
type Evaluation struct {
	Side            models.PositionType `json:"side"`
	Valid           bool                `json:"valid"`
	Confidence      float64             `json:"confidence"`
	Reasoning       string              `json:"reasoning"`
	BaseCondition   bool                `json:"base_condition"`
	TrendConfirmed  bool                `json:"trend_confirmed"`
	VolumeConfirmed bool                `json:"volume_confirmed"`
	VolatilityOK    bool                `json:"volatility_ok"`
	SessionAllowed  bool                `json:"session_allowed"`
	Trending        bool                `json:"trending"`
}

// Analysis is the full diagnostic for the latest bar
type Analysis struct {
	Symbol    string                   `json:"symbol"`
	Snapshot  models.IndicatorSnapshot `json:"snapshot"`
	Condition models.MarketCondition   `json:"condition"`
	Long      Evaluation               `json:"long"`
	Short     Evaluation               `json:"short"`
	Signal    *models.TradingSignal    `json:"signal,omitempty"`
}

// Generator turns indicator snapshots into trading signals. It holds no
// per-call state and is safe to share between symbols.
type Generator struct {
	cfg        models.StrategyConfig
	classifier *market.Classifier
	logger     zerolog.Logger
}

// NewGenerator creates a signal generator for a validated config
func NewGenerator(cfg models.StrategyConfig, classifier *market.Classifier) *Generator {
	return &Generator{
		cfg:        cfg,
		classifier: classifier,
		logger:     log.With().Str("component", "signal_generator").Logger(),
	}
}

// Classifier exposes the market classifier used by the generator
func (g *Generator) Classifier() *market.Classifier {
	return g.classifier
}

// EvaluateLong checks the long entry for one snapshot and its market condition
func (g *Generator) EvaluateLong(snap models.IndicatorSnapshot, cond models.MarketCondition) Evaluation {
	var rsiOK bool
	var label string
	if g.cfg.EntryMode == models.EntryMomentum {
		rsiOK = snap.RSI >= g.cfg.RSIBuyThreshold
		label = "RSI strength"
	} else {
		rsiOK = snap.RSI <= g.cfg.RSIBuyThreshold
		label = "RSI oversold"
	}

	base := rsiOK && snap.Close > snap.MALong
	fragment := fmt.Sprintf("%s (%.1f) + price above MA%d", label, snap.RSI, g.cfg.MALongPeriod)

	return g.score(models.PositionLong, base, fragment, cond)
}

// EvaluateShort mirrors EvaluateLong with the sell threshold and price below MA
func (g *Generator) EvaluateShort(snap models.IndicatorSnapshot, cond models.MarketCondition) Evaluation {
	var rsiOK bool
	var label string
	if g.cfg.EntryMode == models.EntryMomentum {
		rsiOK = snap.RSI <= g.cfg.RSISellThreshold
		label = "RSI weakness"
	} else {
		rsiOK = snap.RSI >= g.cfg.RSISellThreshold
		label = "RSI overbought"
	}

	base := rsiOK && snap.Close < snap.MALong
	fragment := fmt.Sprintf("%s (%.1f) + price below MA%d", label, snap.RSI, g.cfg.MALongPeriod)

	return g.score(models.PositionShort, base, fragment, cond)
}

func (g *Generator) score(side models.PositionType, base bool, baseFragment string, cond models.MarketCondition) Evaluation {
	ev := Evaluation{
		Side:            side,
		BaseCondition:   base,
		TrendConfirmed:  cond.TrendStrength >= g.cfg.TrendStrengthThreshold,
		VolumeConfirmed: cond.VolumeRatio >= g.cfg.VolumeMultiplier,
		VolatilityOK:    !g.cfg.VolatilityFilterEnabled || cond.Volatility <= g.cfg.MaxVolatility,
		SessionAllowed:  cond.SessionAllowed,
		Trending:        cond.Regime == models.RegimeTrending,
	}

	var parts []string
	if ev.BaseCondition {
		ev.Confidence += baseConfidence
		parts = append(parts, baseFragment)
	}
	if ev.TrendConfirmed {
		ev.Confidence += trendConfidence
		parts = append(parts, fmt.Sprintf("strong trend (ADX: %.1f)", cond.TrendStrength))
	}
	if ev.VolumeConfirmed {
		ev.Confidence += volumeConfidence
		parts = append(parts, fmt.Sprintf("volume confirmed (%.1fx)", cond.VolumeRatio))
	}
	if ev.VolatilityOK {
		ev.Confidence += volatilityConfidence
		parts = append(parts, "volatility acceptable")
	}
	if ev.SessionAllowed {
		ev.Confidence += sessionConfidence
		parts = append(parts, "trading session allowed")
	}
	if ev.Trending {
		ev.Confidence += regimeConfidence
		parts = append(parts, "trending market")
	}
	ev.Confidence = math.Min(ev.Confidence, 1.0)

	ev.Valid = ev.BaseCondition && ev.TrendConfirmed && ev.VolumeConfirmed && ev.VolatilityOK && ev.SessionAllowed

	if len(parts) == 0 {
		ev.Reasoning = "No conditions met"
	} else {
		ev.Reasoning = strings.Join(parts, "; ")
	}
	return ev
}

// GenerateSignal computes indicators for the bars and returns a BUY or SELL
// signal for the latest bar, or nil when there is nothing to do
func (g *Generator) GenerateSignal(symbol string, candles []models.Candle) *models.TradingSignal {
	return g.SignalFromSnapshots(symbol, calculate.UpdateIndicators(candles, g.cfg))
}

// SignalFromSnapshots is GenerateSignal for already computed indicators
func (g *Generator) SignalFromSnapshots(symbol string, snaps []models.IndicatorSnapshot) *models.TradingSignal {
	a := g.analyzeSnapshots(symbol, snaps)
	if a == nil {
		return nil
	}
	return a.Signal
}

// Analyze returns both side evaluations for the latest bar even when no
// signal is produced. Nil means the data is too short or not warmed up.
func (g *Generator) Analyze(symbol string, candles []models.Candle) *Analysis {
	return g.analyzeSnapshots(symbol, calculate.UpdateIndicators(candles, g.cfg))
}

func (g *Generator) analyzeSnapshots(symbol string, snaps []models.IndicatorSnapshot) *Analysis {
	if len(snaps) < g.cfg.WarmupBars() {
		g.logger.Debug().Str("symbol", symbol).Int("bars", len(snaps)).Msg("Not enough bars for a signal")
		return nil
	}

	latest := snaps[len(snaps)-1]
	if math.IsNaN(latest.RSI) || math.IsNaN(latest.MALong) || math.IsNaN(latest.Close) {
		g.logger.Debug().Str("symbol", symbol).Msg("Indicators undefined on the latest bar")
		return nil
	}
	if g.cfg.VolatilityFilterEnabled && math.IsNaN(latest.Volatility) {
		g.logger.Debug().Str("symbol", symbol).Msg("Volatility undefined on the latest bar")
		return nil
	}

	cond := g.classifier.Classify(snaps)
	a := &Analysis{
		Symbol:    symbol,
		Snapshot:  latest,
		Condition: cond,
		Long:      g.EvaluateLong(latest, cond),
		Short:     g.EvaluateShort(latest, cond),
	}

	// long is checked first and wins
	switch {
	case a.Long.Valid:
		a.Signal = g.newSignal(symbol, models.SignalBuy, latest, cond, a.Long)
	case a.Short.Valid:
		a.Signal = g.newSignal(symbol, models.SignalSell, latest, cond, a.Short)
	}

	if a.Signal != nil {
		g.logger.Info().
			Str("symbol", symbol).
			Str("type", string(a.Signal.Type)).
			Float64("price", a.Signal.Price).
			Float64("confidence", a.Signal.Confidence).
			Str("reasoning", a.Signal.Reasoning).
			Msg("Signal generated")
	}
	return a
}

func (g *Generator) newSignal(symbol string, typ models.SignalType, snap models.IndicatorSnapshot,
	cond models.MarketCondition, ev Evaluation) *models.TradingSignal {

	return &models.TradingSignal{
		Type:            typ,
		Symbol:          symbol,
		Price:           snap.Close,
		Timestamp:       snap.Timestamp,
		RSI:             snap.RSI,
		MALong:          snap.MALong,
		MAShort:         snap.MAShort,
		Confidence:      ev.Confidence,
		Reasoning:       fmt.Sprintf("%s: %s", ev.Side, ev.Reasoning),
		VolumeConfirmed: ev.VolumeConfirmed,
		TrendStrength:   cond.TrendStrength,
		TrendConfirmed:  ev.TrendConfirmed,
		VolatilityOK:    ev.VolatilityOK,
		SessionAllowed:  ev.SessionAllowed,
	}
}
