package models

import (
	"time"
)

// Candle represents a single OHLCV bar
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// IndicatorSnapshot holds the indicator values computed for one bar.
// Values that are not defined yet (warm-up) are NaN.
type IndicatorSnapshot struct {
	Candle
	RSI         float64 `json:"rsi"`
	MAShort     float64 `json:"ma_short"`
	MALong      float64 `json:"ma_long"`
	ADX         float64 `json:"adx"`
	PlusDI      float64 `json:"plus_di"`
	MinusDI     float64 `json:"minus_di"`
	Volatility  float64 `json:"volatility"`
	VolumeRatio float64 `json:"volume_ratio"`
}

// Regime is the classified market behaviour
type Regime string

const (
	RegimeTrending         Regime = "TRENDING"
	RegimeRanging          Regime = "RANGING"
	RegimeVolatile         Regime = "VOLATILE"
	RegimeInsufficientData Regime = "INSUFFICIENT_DATA"
)

// MarketCondition represents the current market conditions for the latest bar
type MarketCondition struct {
	TrendStrength  float64 `json:"trend_strength"` // ADX value
	VolumeRatio    float64 `json:"volume_ratio"`   // current volume vs 20-bar average
	Volatility     float64 `json:"volatility"`     // stdev of returns
	SessionAllowed bool    `json:"session_allowed"`
	Regime         Regime  `json:"regime"`
}

// SignalType - BUY, SELL or HOLD
type SignalType string

const (
	SignalBuy  SignalType = "BUY"
	SignalSell SignalType = "SELL"
	SignalHold SignalType = "HOLD"
)

// PositionType - LONG or SHORT
type PositionType string

const (
	PositionLong  PositionType = "LONG"
	PositionShort PositionType = "SHORT"
)

// ExitReason explains why a position was closed
type ExitReason string

const (
	ExitNone       ExitReason = ""
	ExitStopLoss   ExitReason = "STOP_LOSS"
	ExitTakeProfit ExitReason = "TAKE_PROFIT"
	ExitManual     ExitReason = "MANUAL"
)

// TradingSignal is produced by the signal generator and consumed once by the sizer
type TradingSignal struct {
	Type       SignalType `json:"type"`
	Symbol     string     `json:"symbol"`
	Price      float64    `json:"price"`
	Timestamp  time.Time  `json:"timestamp"`
	RSI        float64    `json:"rsi"`
	MALong     float64    `json:"ma_long"`
	MAShort    float64    `json:"ma_short"`
	Confidence float64    `json:"confidence"` // 0-1
	Reasoning  string     `json:"reasoning"`

	VolumeConfirmed bool    `json:"volume_confirmed"`
	TrendStrength   float64 `json:"trend_strength"`
	TrendConfirmed  bool    `json:"trend_confirmed"`
	VolatilityOK    bool    `json:"volatility_ok"`
	SessionAllowed  bool    `json:"session_allowed"`
}

// Position is the single open position owned by a strategy instance
type Position struct {
	TradeID    string       `json:"trade_id"`
	Symbol     string       `json:"symbol"`
	Type       PositionType `json:"type"`
	EntryPrice float64      `json:"entry_price"`
	Quantity   float64      `json:"quantity"`
	EntryTime  time.Time    `json:"entry_time"`
	StopLoss   float64      `json:"stop_loss"`
	TakeProfit float64      `json:"take_profit"`
	CurrentPnL float64      `json:"current_pnl"`
	Confidence float64      `json:"confidence"`
	Reasoning  string       `json:"reasoning"`
}

// Side returns the order side that opens the position
func (p *Position) Side() string {
	if p.Type == PositionLong {
		return "buy"
	}
	return "sell"
}

// CompletedTrade is the record produced when a position is closed
type CompletedTrade struct {
	TradeID    string       `json:"trade_id"`
	Symbol     string       `json:"symbol"`
	Type       PositionType `json:"type"`
	EntryPrice float64      `json:"entry_price"`
	ExitPrice  float64      `json:"exit_price"`
	Quantity   float64      `json:"quantity"`
	EntryTime  time.Time    `json:"entry_time"`
	ExitTime   time.Time    `json:"exit_time"`
	PnL        float64      `json:"pnl"`
	ExitReason ExitReason   `json:"exit_reason"`
}

// EventType describes what a strategy tick produced
type EventType string

const (
	EventNone  EventType = "NONE"
	EventEntry EventType = "ENTRY"
	EventExit  EventType = "EXIT"
)

// Event is emitted by Strategy.Process for the order-placement collaborator
type Event struct {
	Type     EventType       `json:"type"`
	Signal   *TradingSignal  `json:"signal,omitempty"`
	Position *Position       `json:"position,omitempty"`
	Trade    *CompletedTrade `json:"trade,omitempty"`
}

// StrategyStats summarizes what a strategy instance has done so far
type StrategyStats struct {
	Symbol        string    `json:"symbol"`
	LongSignals   int       `json:"long_signals"`
	ShortSignals  int       `json:"short_signals"`
	TotalTrades   int       `json:"total_trades"`
	WinningTrades int       `json:"winning_trades"`
	LosingTrades  int       `json:"losing_trades"`
	WinRate       float64   `json:"win_rate"` // percent
	TotalPnL      float64   `json:"total_pnl"`
	DailyTrades   int       `json:"daily_trades"`
	DailyPnL      float64   `json:"daily_pnl"`
	Position      *Position `json:"position,omitempty"`
}
