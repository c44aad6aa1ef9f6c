package strategy

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/FuturesBot/internal/analysis/market"
	"github.com/Alias1177/FuturesBot/internal/analyze"
	"github.com/Alias1177/FuturesBot/internal/calculate"
	"github.com/Alias1177/FuturesBot/internal/trading/position"
	"github.com/Alias1177/FuturesBot/internal/trading/risk"
	"github.com/Alias1177/FuturesBot/models"
)

// ErrDailyLossLimit is returned when the day's realized loss blocks new entries
var ErrDailyLossLimit = errors.New("daily loss limit reached")

// ErrPositionOpen is re-exported for callers that only import the strategy
var ErrPositionOpen = position.ErrPositionOpen

// Strategy runs the RSI/MA signal engine for one symbol. It owns its
// position and daily counter and must be driven by one goroutine at a time.
type Strategy struct {
	symbol    string
	cfg       models.StrategyConfig
	generator *analyze.Generator
	sizer     *risk.Sizer
	tracker   *position.Tracker
	daily     *risk.DailyCounter
	now       func() time.Time
	logger    zerolog.Logger

	longSignals  int
	shortSignals int
	trades       []models.CompletedTrade
}

// New validates cfg and builds a strategy for symbol
func New(symbol string, cfg models.StrategyConfig) (*Strategy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	classifier, err := market.NewClassifier(cfg)
	if err != nil {
		return nil, err
	}

	return &Strategy{
		symbol:    symbol,
		cfg:       cfg,
		generator: analyze.NewGenerator(cfg, classifier),
		sizer:     risk.NewSizer(cfg),
		tracker:   position.NewTracker(),
		daily:     risk.NewDailyCounter(time.Now()),
		now:       time.Now,
		logger:    log.With().Str("component", "strategy").Str("symbol", symbol).Logger(),
	}, nil
}

// WithClock replaces the wall clock for exits, daily rollover and sessions
func (s *Strategy) WithClock(now func() time.Time) *Strategy {
	s.now = now
	s.daily = risk.NewDailyCounter(now())
	s.generator.Classifier().WithClock(now)
	return s
}

func (s *Strategy) Symbol() string                { return s.symbol }
func (s *Strategy) Config() models.StrategyConfig { return s.cfg }

// UpdateIndicators computes the indicator snapshots for bars
func (s *Strategy) UpdateIndicators(candles []models.Candle) []models.IndicatorSnapshot {
	return calculate.UpdateIndicators(candles, s.cfg)
}

// GenerateSignal returns a BUY/SELL signal for the latest bar or nil
func (s *Strategy) GenerateSignal(candles []models.Candle) *models.TradingSignal {
	return s.generator.GenerateSignal(s.symbol, candles)
}

// Analyze returns the full long/short diagnostic for the latest bar
func (s *Strategy) Analyze(candles []models.Candle) *analyze.Analysis {
	return s.generator.Analyze(s.symbol, candles)
}

// CreatePosition sizes a signal without opening it
func (s *Strategy) CreatePosition(signal *models.TradingSignal, balance float64) (*models.Position, error) {
	return s.sizer.CreatePosition(signal, balance)
}

// Enter sizes the signal and opens it as the strategy's position
func (s *Strategy) Enter(signal *models.TradingSignal, balance float64) (*models.Position, error) {
	if s.tracker.HasPosition() {
		return nil, ErrPositionOpen
	}
	if s.daily.Blocked(s.cfg.MaxDailyLossUSDT) {
		return nil, ErrDailyLossLimit
	}

	pos, err := s.sizer.CreatePosition(signal, balance)
	if err != nil {
		return nil, err
	}
	if err := s.tracker.Open(pos); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("trade_id", pos.TradeID).
		Str("type", string(pos.Type)).
		Float64("entry", pos.EntryPrice).
		Float64("quantity", pos.Quantity).
		Float64("stop_loss", pos.StopLoss).
		Float64("take_profit", pos.TakeProfit).
		Float64("risk_pct", s.riskPercent(pos, balance)).
		Msg("Position opened")

	return s.tracker.Current(), nil
}

// CheckExitConditions reports whether the open position should close at price
func (s *Strategy) CheckExitConditions(price float64) (bool, models.ExitReason) {
	return s.tracker.CheckExit(price)
}

// UpdatePositionPnL marks the open position to price
func (s *Strategy) UpdatePositionPnL(price float64) float64 {
	return s.tracker.UpdatePnL(price)
}

// Position returns a copy of the open position, or nil
func (s *Strategy) Position() *models.Position {
	return s.tracker.Current()
}

// Process runs one tick: exits first, then the daily breaker, then entries
func (s *Strategy) Process(candles []models.Candle, balance float64) models.Event {
	none := models.Event{Type: models.EventNone}

	if len(candles) < s.cfg.WarmupBars() {
		s.logger.Debug().Int("bars", len(candles)).Msg("Waiting for warm-up")
		return none
	}
	price := candles[len(candles)-1].Close

	if s.tracker.HasPosition() {
		if ev, closed := s.exitAt(price); closed {
			return ev
		}
		s.tracker.UpdatePnL(price)
		return none
	}

	if s.daily.Blocked(s.cfg.MaxDailyLossUSDT) {
		s.logger.Warn().Float64("daily_pnl", s.daily.PnL()).Msg("Daily loss limit reached")
		return none
	}

	signal := s.GenerateSignal(candles)
	if signal == nil {
		return none
	}
	s.countSignal(signal)

	pos, err := s.Enter(signal, balance)
	if err != nil {
		s.logger.Warn().Err(err).Str("type", string(signal.Type)).Msg("Signal not entered")
		return none
	}

	return models.Event{Type: models.EventEntry, Signal: signal, Position: pos}
}

// OnPrice marks the position to an intra-bar price and closes it on SL/TP
func (s *Strategy) OnPrice(price float64) models.Event {
	if !s.tracker.HasPosition() {
		return models.Event{Type: models.EventNone}
	}
	if ev, closed := s.exitAt(price); closed {
		return ev
	}
	s.tracker.UpdatePnL(price)
	return models.Event{Type: models.EventNone}
}

// ClosePosition closes the open position at price with a manual reason
func (s *Strategy) ClosePosition(price float64) (*models.CompletedTrade, error) {
	trade, err := s.finalize(price, models.ExitManual)
	if err != nil {
		return nil, fmt.Errorf("close %s: %w", s.symbol, err)
	}
	return trade, nil
}

// ConfirmFill replaces the tracked quantity with what the exchange actually
// filled, so PnL and the daily counter follow the real size
func (s *Strategy) ConfirmFill(qty float64) (*models.Position, error) {
	before := s.tracker.Current()
	if err := s.tracker.SetQuantity(qty); err != nil {
		return nil, fmt.Errorf("confirm fill %s: %w", s.symbol, err)
	}
	if before.Quantity != qty {
		s.logger.Info().
			Str("trade_id", before.TradeID).
			Float64("requested", before.Quantity).
			Float64("filled", qty).
			Msg("Position size adjusted to fill")
	}
	return s.tracker.Current(), nil
}

// Adopt takes over a position opened outside this strategy, e.g. one found on
// the exchange after a restart. It is tracked and exited like any other.
func (s *Strategy) Adopt(side models.PositionType, entryPrice, qty float64) (*models.Position, error) {
	if s.tracker.HasPosition() {
		return nil, ErrPositionOpen
	}

	pos, err := s.sizer.AdoptPosition(s.symbol, side, entryPrice, qty, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.tracker.Open(pos); err != nil {
		return nil, err
	}

	s.logger.Warn().
		Str("trade_id", pos.TradeID).
		Str("type", string(pos.Type)).
		Float64("entry", pos.EntryPrice).
		Float64("quantity", pos.Quantity).
		Float64("stop_loss", pos.StopLoss).
		Float64("take_profit", pos.TakeProfit).
		Msg("Position adopted")

	return s.tracker.Current(), nil
}

// CancelEntry forgets the open position when its order never reached the
// exchange. No trade is recorded.
func (s *Strategy) CancelEntry() *models.Position {
	pos := s.tracker.Discard()
	if pos != nil {
		s.logger.Warn().Str("trade_id", pos.TradeID).Msg("Entry cancelled")
	}
	return pos
}

// ResetDaily starts a new daily risk window when now is on a later day
func (s *Strategy) ResetDaily(now time.Time) bool {
	if !s.daily.Rollover(now) {
		return false
	}
	s.logger.Info().Time("date", s.daily.Date()).Msg("Daily risk counter reset")
	return true
}

// DailyLimitReached reports whether new entries are blocked for today
func (s *Strategy) DailyLimitReached() bool {
	return s.daily.Blocked(s.cfg.MaxDailyLossUSDT)
}

// Stats summarizes signals and closed trades so far
func (s *Strategy) Stats() models.StrategyStats {
	stats := models.StrategyStats{
		Symbol:       s.symbol,
		LongSignals:  s.longSignals,
		ShortSignals: s.shortSignals,
		TotalTrades:  len(s.trades),
		DailyTrades:  s.daily.Trades(),
		DailyPnL:     s.daily.PnL(),
		Position:     s.tracker.Current(),
	}

	for _, t := range s.trades {
		stats.TotalPnL += t.PnL
		if t.PnL > 0 {
			stats.WinningTrades++
		}
	}
	stats.LosingTrades = stats.TotalTrades - stats.WinningTrades
	if stats.TotalTrades > 0 {
		stats.WinRate = float64(stats.WinningTrades) / float64(stats.TotalTrades) * 100
	}

	return stats
}

// Trades returns the closed trades in order
func (s *Strategy) Trades() []models.CompletedTrade {
	return append([]models.CompletedTrade(nil), s.trades...)
}

func (s *Strategy) exitAt(price float64) (models.Event, bool) {
	exit, reason := s.tracker.CheckExit(price)
	if !exit {
		return models.Event{}, false
	}

	s.tracker.UpdatePnL(price)
	pos := s.tracker.Current()
	trade, err := s.finalize(price, reason)
	if err != nil {
		return models.Event{}, false
	}

	return models.Event{Type: models.EventExit, Position: pos, Trade: trade}, true
}

func (s *Strategy) finalize(price float64, reason models.ExitReason) (*models.CompletedTrade, error) {
	trade, err := s.tracker.Close(price, s.now(), reason)
	if err != nil {
		return nil, err
	}

	s.daily.Record(trade.PnL)
	s.trades = append(s.trades, *trade)

	s.logger.Info().
		Str("trade_id", trade.TradeID).
		Str("reason", string(reason)).
		Float64("exit", price).
		Float64("pnl", trade.PnL).
		Float64("daily_pnl", s.daily.PnL()).
		Msg("Position closed")

	return trade, nil
}

func (s *Strategy) countSignal(signal *models.TradingSignal) {
	switch signal.Type {
	case models.SignalBuy:
		s.longSignals++
	case models.SignalSell:
		s.shortSignals++
	}
}

func (s *Strategy) riskPercent(pos *models.Position, balance float64) float64 {
	if balance <= 0 {
		return 0
	}
	return pos.Quantity * pos.EntryPrice * s.cfg.StopLossPct / balance * 100
}
