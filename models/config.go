package models

import (
	"fmt"
)

// EntryMode selects which side of the RSI thresholds opens a position
type EntryMode string

const (
	// EntryReversion buys oversold (RSI <= buy threshold) and sells overbought
	EntryReversion EntryMode = "reversion"
	// EntryMomentum buys strength (RSI >= buy threshold) and sells weakness
	EntryMomentum EntryMode = "momentum"
)

// StrategyConfig holds every parameter of the signal and risk engine.
// It is built once at start-up and passed down explicitly.
type StrategyConfig struct {
	RSIPeriod        int       `yaml:"rsi_period"`
	MALongPeriod     int       `yaml:"ma_long_period"`
	MAShortPeriod    int       `yaml:"ma_short_period"`
	ADXPeriod        int       `yaml:"adx_period"`
	VolatilityWindow int       `yaml:"volatility_window"`
	VolumeWindow     int       `yaml:"volume_window"`
	EntryMode        EntryMode `yaml:"entry_mode"`
	RSIBuyThreshold  float64   `yaml:"rsi_buy_threshold"`
	RSISellThreshold float64   `yaml:"rsi_sell_threshold"`

	// fractions, 0.02 == 2%
	StopLossPct     float64 `yaml:"stop_loss_pct"`
	TakeProfitPct   float64 `yaml:"take_profit_pct"`
	MaxRiskPerTrade float64 `yaml:"max_risk_per_trade"`

	PositionSizeUSDT float64 `yaml:"position_size_usdt"`
	MaxDailyLossUSDT float64 `yaml:"max_daily_loss_usdt"`

	TrendStrengthThreshold  float64 `yaml:"trend_strength_threshold"`
	VolumeMultiplier        float64 `yaml:"volume_multiplier"`
	VolatilityFilterEnabled bool    `yaml:"volatility_filter_enabled"`
	MaxVolatility           float64 `yaml:"max_volatility"`

	SessionsEnabled bool   `yaml:"sessions_enabled"`
	AllowedHours    []int  `yaml:"allowed_hours"`
	SessionTimezone string `yaml:"session_timezone"`
}

// MinBars is the warm-up window below which indicator outputs must not drive decisions
const MinBars = 30

// DefaultStrategyConfig returns the filtered RSI/MA defaults
func DefaultStrategyConfig() StrategyConfig {
	return StrategyConfig{
		RSIPeriod:               14,
		MALongPeriod:            53,
		MAShortPeriod:           50,
		ADXPeriod:               14,
		VolatilityWindow:        20,
		VolumeWindow:            20,
		EntryMode:               EntryReversion,
		RSIBuyThreshold:         35,
		RSISellThreshold:        65,
		StopLossPct:             0.02,
		TakeProfitPct:           0.03,
		MaxRiskPerTrade:         0.01,
		PositionSizeUSDT:        10,
		MaxDailyLossUSDT:        20,
		TrendStrengthThreshold:  25,
		VolumeMultiplier:        1.2,
		VolatilityFilterEnabled: true,
		MaxVolatility:           0.02,
		SessionsEnabled:         false,
		SessionTimezone:         "UTC",
	}
}

// WarmupBars is the number of bars after which every indicator on the latest bar
// is defined. Volatility needs one extra bar for the first return.
func (c StrategyConfig) WarmupBars() int {
	n := MinBars
	for _, p := range []int{c.RSIPeriod, c.MALongPeriod, c.MAShortPeriod, c.ADXPeriod, c.VolatilityWindow + 1, c.VolumeWindow} {
		if p > n {
			n = p
		}
	}
	return n
}

// ConfigError reports an invalid parameter. It is a deployment mistake, not a runtime condition.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Reason)
}

// Validate checks every parameter and returns the first *ConfigError found
func (c StrategyConfig) Validate() error {
	periods := []struct {
		name  string
		value int
	}{
		{"rsi_period", c.RSIPeriod},
		{"ma_long_period", c.MALongPeriod},
		{"ma_short_period", c.MAShortPeriod},
		{"adx_period", c.ADXPeriod},
		{"volatility_window", c.VolatilityWindow},
		{"volume_window", c.VolumeWindow},
	}
	for _, p := range periods {
		if p.value <= 0 {
			return &ConfigError{Field: p.name, Reason: "must be positive"}
		}
	}

	if c.EntryMode != EntryReversion && c.EntryMode != EntryMomentum {
		return &ConfigError{Field: "entry_mode", Reason: fmt.Sprintf("unknown mode %q", c.EntryMode)}
	}
	if c.RSIBuyThreshold < 0 || c.RSIBuyThreshold > 100 {
		return &ConfigError{Field: "rsi_buy_threshold", Reason: "must be within [0,100]"}
	}
	if c.RSISellThreshold < 0 || c.RSISellThreshold > 100 {
		return &ConfigError{Field: "rsi_sell_threshold", Reason: "must be within [0,100]"}
	}

	fractions := []struct {
		name  string
		value float64
	}{
		{"stop_loss_pct", c.StopLossPct},
		{"take_profit_pct", c.TakeProfitPct},
		{"max_risk_per_trade", c.MaxRiskPerTrade},
	}
	for _, f := range fractions {
		if f.value <= 0 || f.value >= 1 {
			return &ConfigError{Field: f.name, Reason: "must be between 0 and 1"}
		}
	}

	if c.PositionSizeUSDT <= 0 {
		return &ConfigError{Field: "position_size_usdt", Reason: "must be positive"}
	}
	if c.MaxDailyLossUSDT <= 0 {
		return &ConfigError{Field: "max_daily_loss_usdt", Reason: "must be positive"}
	}
	if c.TrendStrengthThreshold < 0 {
		return &ConfigError{Field: "trend_strength_threshold", Reason: "must not be negative"}
	}
	if c.VolumeMultiplier < 0 {
		return &ConfigError{Field: "volume_multiplier", Reason: "must not be negative"}
	}
	if c.VolatilityFilterEnabled && c.MaxVolatility <= 0 {
		return &ConfigError{Field: "max_volatility", Reason: "must be positive when the filter is enabled"}
	}
	for _, h := range c.AllowedHours {
		if h < 0 || h > 23 {
			return &ConfigError{Field: "allowed_hours", Reason: fmt.Sprintf("hour %d out of range", h)}
		}
	}
	if c.SessionsEnabled && len(c.AllowedHours) == 0 {
		return &ConfigError{Field: "allowed_hours", Reason: "empty while sessions are enabled"}
	}
	return nil
}
