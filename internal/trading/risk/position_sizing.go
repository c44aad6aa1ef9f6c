package risk

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/Alias1177/FuturesBot/models"
)

var (
	// ErrHoldSignal is returned when sizing is asked for a signal with no direction
	ErrHoldSignal = errors.New("cannot size a HOLD signal")
	// ErrInvalidBalance is returned for a zero or negative account balance
	ErrInvalidBalance = errors.New("account balance must be positive")
	// ErrInvalidPrice is returned for a zero or negative entry price
	ErrInvalidPrice = errors.New("entry price must be positive")
)

// PositionSizingResult holds position sizing calculation results
type PositionSizingResult struct {
	PositionSize    float64 `json:"position_size"`
	StopLoss        float64 `json:"stop_loss"`
	TakeProfit      float64 `json:"take_profit"`
	RiskRewardRatio float64 `json:"risk_reward_ratio"`
	RiskAmount      float64 `json:"risk_amount"`
	NotionalCapped  bool    `json:"notional_capped"`
}

// Sizer turns signals into bounded positions
type Sizer struct {
	cfg   models.StrategyConfig
	newID func() string
}

// NewSizer creates a sizer for a validated config
func NewSizer(cfg models.StrategyConfig) *Sizer {
	return &Sizer{cfg: cfg, newID: uuid.NewString}
}

// CalculatePositionSize determines the quantity as the smaller of the risk
// budget over the per-unit stop distance and the notional cap over price
func (s *Sizer) CalculatePositionSize(side models.PositionType, price, balance float64) (*PositionSizingResult, error) {
	if balance <= 0 || math.IsNaN(balance) {
		return nil, ErrInvalidBalance
	}
	if price <= 0 || math.IsNaN(price) {
		return nil, ErrInvalidPrice
	}

	riskAmount := balance * s.cfg.MaxRiskPerTrade
	priceRisk := price * s.cfg.StopLossPct

	byRisk := riskAmount / priceRisk
	byNotional := s.cfg.PositionSizeUSDT / price

	result := &PositionSizingResult{
		PositionSize:    math.Min(byRisk, byNotional),
		RiskAmount:      riskAmount,
		NotionalCapped:  byNotional < byRisk,
		RiskRewardRatio: s.cfg.TakeProfitPct / s.cfg.StopLossPct,
	}

	result.StopLoss, result.TakeProfit = s.Levels(side, price)

	return result, nil
}

// Levels returns the stop loss and take profit for an entry at price
func (s *Sizer) Levels(side models.PositionType, price float64) (stopLoss, takeProfit float64) {
	if side == models.PositionLong {
		return price * (1 - s.cfg.StopLossPct), price * (1 + s.cfg.TakeProfitPct)
	}
	return price * (1 + s.cfg.StopLossPct), price * (1 - s.cfg.TakeProfitPct)
}

// AdoptPosition wraps a position opened outside this process, e.g. found on
// the exchange after a restart. Stops are placed from the entry price.
func (s *Sizer) AdoptPosition(symbol string, side models.PositionType, entryPrice, qty float64, at time.Time) (*models.Position, error) {
	if entryPrice <= 0 || math.IsNaN(entryPrice) {
		return nil, ErrInvalidPrice
	}
	if qty <= 0 || math.IsNaN(qty) {
		return nil, fmt.Errorf("adopt %s: quantity must be positive", symbol)
	}

	stopLoss, takeProfit := s.Levels(side, entryPrice)
	return &models.Position{
		TradeID:    s.newID(),
		Symbol:     symbol,
		Type:       side,
		EntryPrice: entryPrice,
		Quantity:   qty,
		EntryTime:  at,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
		Reasoning:  "adopted from exchange",
	}, nil
}

// CreatePosition sizes a BUY or SELL signal into a new position
func (s *Sizer) CreatePosition(signal *models.TradingSignal, balance float64) (*models.Position, error) {
	if signal == nil {
		return nil, fmt.Errorf("create position: nil signal")
	}

	var side models.PositionType
	switch signal.Type {
	case models.SignalBuy:
		side = models.PositionLong
	case models.SignalSell:
		side = models.PositionShort
	default:
		return nil, ErrHoldSignal
	}

	sizing, err := s.CalculatePositionSize(side, signal.Price, balance)
	if err != nil {
		return nil, fmt.Errorf("create position for %s: %w", signal.Symbol, err)
	}

	return &models.Position{
		TradeID:    s.newID(),
		Symbol:     signal.Symbol,
		Type:       side,
		EntryPrice: signal.Price,
		Quantity:   sizing.PositionSize,
		EntryTime:  signal.Timestamp,
		StopLoss:   sizing.StopLoss,
		TakeProfit: sizing.TakeProfit,
		Confidence: signal.Confidence,
		Reasoning:  signal.Reasoning,
	}, nil
}
