package market

import (
	"math"
	"time"

	"github.com/Alias1177/FuturesBot/models"
)

// Classifier labels the latest bar of an indicator series.
// It is stateless apart from its config and clock, and never fails.
type Classifier struct {
	cfg models.StrategyConfig
	loc *time.Location
	now func() time.Time
}

// NewClassifier validates the session time zone once
func NewClassifier(cfg models.StrategyConfig) (*Classifier, error) {
	tz := cfg.SessionTimezone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, &models.ConfigError{Field: "session_timezone", Reason: err.Error()}
	}

	return &Classifier{cfg: cfg, loc: loc, now: time.Now}, nil
}

// WithClock replaces the wall clock used for session gating
func (c *Classifier) WithClock(now func() time.Time) *Classifier {
	c.now = now
	return c
}

// Classify reports trend strength, volume, volatility, session and regime
func (c *Classifier) Classify(snaps []models.IndicatorSnapshot) models.MarketCondition {
	if len(snaps) < models.MinBars {
		return models.MarketCondition{Regime: models.RegimeInsufficientData}
	}

	latest := snaps[len(snaps)-1]

	trend := zeroIfNaN(latest.ADX)
	volatility := zeroIfNaN(latest.Volatility)

	volumeRatio := latest.VolumeRatio
	if math.IsNaN(volumeRatio) {
		volumeRatio = 1
	}

	return models.MarketCondition{
		TrendStrength:  trend,
		VolumeRatio:    volumeRatio,
		Volatility:     volatility,
		SessionAllowed: c.SessionAllowed(),
		Regime:         c.regime(trend, volatility),
	}
}

// SessionAllowed is true when sessions are disabled or the current hour is whitelisted
func (c *Classifier) SessionAllowed() bool {
	if !c.cfg.SessionsEnabled {
		return true
	}

	hour := c.now().In(c.loc).Hour()
	for _, h := range c.cfg.AllowedHours {
		if h == hour {
			return true
		}
	}
	return false
}

func (c *Classifier) regime(trend, volatility float64) models.Regime {
	if trend < c.cfg.TrendStrengthThreshold {
		return models.RegimeRanging
	}
	if volatility > c.cfg.MaxVolatility {
		return models.RegimeVolatile
	}
	return models.RegimeTrending
}

func zeroIfNaN(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}
