package trader

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Alias1177/FuturesBot/internal/analyze"
	"github.com/Alias1177/FuturesBot/internal/api/bitget"
	"github.com/Alias1177/FuturesBot/internal/strategy"
	"github.com/Alias1177/FuturesBot/models"
)

// OrderRouter places and closes exchange orders
type OrderRouter interface {
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	PlaceMarketOrder(ctx context.Context, order bitget.OrderRequest) (*bitget.OrderResult, error)
	ClosePosition(ctx context.Context, symbol, holdSide string) error
}

// PositionSource lists the positions open on the exchange
type PositionSource interface {
	GetPositions(ctx context.Context) ([]bitget.ExchangePosition, error)
}

// Exchange is everything the trader needs from the exchange client
type Exchange interface {
	models.CandleClient
	models.BalanceClient
	OrderRouter
	PositionSource
}

// Journal persists entries and exits
type Journal interface {
	RecordEntry(ctx context.Context, pos *models.Position, orderID string, leverage int, paper bool) error
	RecordExit(ctx context.Context, trade *models.CompletedTrade) error
}

// Notifier tells the operator what happened
type Notifier interface {
	TradeOpened(pos *models.Position, paper bool)
	TradeClosed(trade *models.CompletedTrade, paper bool)
	DailyLimit(symbol string, dailyPnL float64)
	Error(kind string, err error)
	Status(status, message string)
}

// Options configures the trading loop
type Options struct {
	Symbols       []string
	Interval      string
	CandleCount   int
	CycleInterval time.Duration
	Paper         bool
	Leverage      int
	PaperBalance  float64
}

// SymbolStatus is the last known state of one symbol
type SymbolStatus struct {
	Symbol     string                `json:"symbol"`
	LastPrice  float64               `json:"last_price"`
	LastUpdate time.Time             `json:"last_update"`
	LastSignal *models.TradingSignal `json:"last_signal,omitempty"`
	LastError  string                `json:"last_error,omitempty"`
	Stats      models.StrategyStats  `json:"stats"`
}

// Status is a consistent snapshot for readers such as the Telegram bot
type Status struct {
	Enabled bool           `json:"enabled"`
	Paper   bool           `json:"paper"`
	Balance float64        `json:"balance"`
	Cycles  int            `json:"cycles"`
	Symbols []SymbolStatus `json:"symbols"`
}

type symbolRunner struct {
	mu       sync.Mutex // serializes the cycle with operator commands
	strategy *strategy.Strategy
}

// Trader runs one strategy per symbol against the exchange
type Trader struct {
	exchange Exchange
	journal  Journal
	notifier Notifier
	opts     Options
	runners  map[string]*symbolRunner
	enabled  atomic.Bool
	now      func() time.Time
	logger   zerolog.Logger

	dayMu   sync.Mutex
	lastDay time.Time

	mu      sync.RWMutex
	status  map[string]SymbolStatus
	balance float64
	cycles  int
}

// New builds a trader with one validated strategy per symbol.
// journal and notifier may be nil.
func New(exchange Exchange, journal Journal, notifier Notifier, cfg models.StrategyConfig, opts Options) (*Trader, error) {
	if len(opts.Symbols) == 0 {
		return nil, &models.ConfigError{Field: "SYMBOLS", Reason: "at least one symbol is required"}
	}
	if opts.Leverage <= 0 {
		opts.Leverage = 1
	}
	if opts.PaperBalance <= 0 {
		opts.PaperBalance = 1000
	}
	if opts.CycleInterval <= 0 {
		opts.CycleInterval = time.Minute
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}

	t := &Trader{
		exchange: exchange,
		journal:  journal,
		notifier: notifier,
		opts:     opts,
		runners:  make(map[string]*symbolRunner, len(opts.Symbols)),
		now:      time.Now,
		logger:   log.With().Str("component", "trader").Logger(),
		status:   make(map[string]SymbolStatus, len(opts.Symbols)),
	}

	for _, symbol := range opts.Symbols {
		s, err := strategy.New(symbol, cfg)
		if err != nil {
			return nil, err
		}
		t.runners[symbol] = &symbolRunner{strategy: s}
		t.status[symbol] = SymbolStatus{Symbol: symbol, Stats: s.Stats()}
	}
	t.enabled.Store(true)
	t.lastDay = t.now()

	return t, nil
}

// WithClock replaces the wall clock of the trader and of every strategy
func (t *Trader) WithClock(now func() time.Time) *Trader {
	t.now = now
	t.lastDay = now()
	for _, r := range t.runners {
		r.strategy.WithClock(now)
	}
	return t
}

// Enable resumes opening new positions
func (t *Trader) Enable() {
	t.enabled.Store(true)
	t.logger.Info().Msg("Trading enabled")
}

// Disable stops opening new positions; open ones are still managed
func (t *Trader) Disable() {
	t.enabled.Store(false)
	t.logger.Warn().Msg("Trading disabled")
}

func (t *Trader) Enabled() bool { return t.enabled.Load() }
func (t *Trader) Paper() bool   { return t.opts.Paper }

// Symbols returns the traded symbols in configuration order
func (t *Trader) Symbols() []string {
	return append([]string(nil), t.opts.Symbols...)
}

// Run executes cycles until ctx is cancelled
func (t *Trader) Run(ctx context.Context) error {
	mode := "LIVE"
	if t.opts.Paper {
		mode = "PAPER"
	}
	t.logger.Info().Strs("symbols", t.opts.Symbols).Str("mode", mode).Dur("cycle", t.opts.CycleInterval).Msg("Trading loop started")
	t.notifier.Status("started", fmt.Sprintf("%s trading %s", mode, strings.Join(t.opts.Symbols, ", ")))

	if err := t.Reconcile(ctx); err != nil {
		t.logger.Error().Err(err).Msg("Position reconciliation failed")
		t.notifier.Error("reconcile", err)
	}

	ticker := time.NewTicker(t.opts.CycleInterval)
	defer ticker.Stop()

	for {
		if err := t.RunCycle(ctx); err != nil && !errors.Is(err, context.Canceled) {
			t.logger.Error().Err(err).Msg("Trading cycle failed")
		}

		select {
		case <-ctx.Done():
			t.logger.Info().Msg("Trading loop stopped")
			t.notifier.Status("stopped", "trading loop stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Reconcile adopts positions that are open on the exchange for traded symbols
// but not tracked locally, so they are exited by the strategy. Paper mode has
// nothing on the exchange to reconcile.
func (t *Trader) Reconcile(ctx context.Context) error {
	if t.opts.Paper {
		return nil
	}

	positions, err := t.exchange.GetPositions(ctx)
	if err != nil {
		return fmt.Errorf("fetching exchange positions: %w", err)
	}

	for _, ep := range positions {
		r, ok := t.runners[ep.Symbol]
		if !ok {
			t.logger.Warn().Str("symbol", ep.Symbol).Str("side", ep.HoldSide).Msg("Exchange position on an untraded symbol")
			continue
		}

		qty, errQty := strconv.ParseFloat(ep.Total, 64)
		entry, errEntry := strconv.ParseFloat(ep.OpenPriceAvg, 64)
		if err := errors.Join(errQty, errEntry); err != nil {
			t.logger.Error().Err(err).Str("symbol", ep.Symbol).Msg("Unreadable exchange position")
			continue
		}
		side := models.PositionLong
		if ep.HoldSide == "short" {
			side = models.PositionShort
		}

		r.mu.Lock()
		if r.strategy.Position() != nil {
			r.mu.Unlock()
			continue
		}
		pos, err := r.strategy.Adopt(side, entry, qty)
		if err == nil {
			t.updateStatus(ep.Symbol, r.strategy, 0, nil)
		}
		r.mu.Unlock()
		if err != nil {
			t.logger.Error().Err(err).Str("symbol", ep.Symbol).Msg("Failed to adopt exchange position")
			continue
		}

		if t.journal != nil {
			if err := t.journal.RecordEntry(ctx, pos, "", t.opts.Leverage, false); err != nil {
				t.logger.Error().Err(err).Str("trade_id", pos.TradeID).Msg("Failed to journal adopted position")
			}
		}
		t.notifier.TradeOpened(pos, false)
	}
	return nil
}

// RunCycle processes every symbol once, in parallel. A failing symbol is
// logged and skipped; it does not cancel the others.
func (t *Trader) RunCycle(ctx context.Context) error {
	t.rollover()

	balance, err := t.currentBalance(ctx)
	if err != nil {
		t.notifier.Error("balance", err)
		return fmt.Errorf("fetching balance: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, symbol := range t.opts.Symbols {
		symbol := symbol
		g.Go(func() error {
			if err := t.processSymbol(ctx, symbol, balance); err != nil {
				t.logger.Error().Err(err).Str("symbol", symbol).Msg("Symbol cycle failed")
				t.setError(symbol, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	t.mu.Lock()
	t.cycles++
	t.balance = balance
	t.mu.Unlock()
	return nil
}

func (t *Trader) processSymbol(ctx context.Context, symbol string, balance float64) error {
	r := t.runners[symbol]
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.strategy

	// with trading disabled and nothing open there is nothing to manage
	if !t.Enabled() && s.Position() == nil {
		t.updateStatus(symbol, s, 0, nil)
		return nil
	}

	if s.Position() != nil {
		price, err := t.exchange.GetCurrentPrice(ctx, symbol)
		if err != nil {
			return err
		}
		if ev := s.OnPrice(price); ev.Type == models.EventExit {
			t.handleExit(ctx, s, ev.Trade)
			t.updateStatus(symbol, s, price, nil)
			return nil
		}
	}

	candles, err := t.exchange.GetBars(ctx, symbol, t.opts.Interval, t.opts.CandleCount)
	if err != nil {
		return err
	}
	price := candles[len(candles)-1].Close

	ev := s.Process(candles, balance)
	switch ev.Type {
	case models.EventEntry:
		if !t.Enabled() {
			// disabled mid-cycle
			s.CancelEntry()
			break
		}
		if err := t.handleEntry(ctx, s, ev.Position); err != nil {
			s.CancelEntry()
			t.notifier.Error("order", err)
			return err
		}
	case models.EventExit:
		t.handleExit(ctx, s, ev.Trade)
	}

	t.updateStatus(symbol, s, price, ev.Signal)
	return nil
}

func (t *Trader) handleEntry(ctx context.Context, s *strategy.Strategy, pos *models.Position) error {
	orderID := ""
	if t.opts.Paper {
		t.logger.Info().
			Str("symbol", pos.Symbol).
			Str("type", string(pos.Type)).
			Float64("price", pos.EntryPrice).
			Float64("quantity", pos.Quantity).
			Msg("PAPER TRADE")
	} else {
		if err := t.exchange.SetLeverage(ctx, pos.Symbol, t.opts.Leverage); err != nil {
			return err
		}
		res, err := t.exchange.PlaceMarketOrder(ctx, bitget.OrderRequest{
			Symbol:     pos.Symbol,
			Side:       pos.Side(),
			Size:       pos.Quantity,
			StopLoss:   pos.StopLoss,
			TakeProfit: pos.TakeProfit,
		})
		if err != nil {
			return err
		}
		orderID = res.OrderID

		// the order is live from here on; a bad size only loses precision
		if filled, err := res.FilledSize(); err != nil {
			t.logger.Error().Err(err).Str("trade_id", pos.TradeID).Msg("Unreadable filled size, keeping requested size")
		} else if confirmed, err := s.ConfirmFill(filled); err != nil {
			t.logger.Error().Err(err).Str("trade_id", pos.TradeID).Msg("Failed to apply filled size")
		} else {
			pos = confirmed
		}
	}

	if t.journal != nil {
		if err := t.journal.RecordEntry(ctx, pos, orderID, t.opts.Leverage, t.opts.Paper); err != nil {
			t.logger.Error().Err(err).Str("trade_id", pos.TradeID).Msg("Failed to journal entry")
		}
	}
	t.notifier.TradeOpened(pos, t.opts.Paper)
	return nil
}

func (t *Trader) handleExit(ctx context.Context, s *strategy.Strategy, trade *models.CompletedTrade) {
	if !t.opts.Paper {
		// the preset SL/TP may already have closed it on the exchange
		if err := t.exchange.ClosePosition(ctx, trade.Symbol, holdSide(trade.Type)); err != nil {
			t.logger.Warn().Err(err).Str("symbol", trade.Symbol).Msg("Flash close failed")
		}
	}

	if t.journal != nil {
		if err := t.journal.RecordExit(ctx, trade); err != nil {
			t.logger.Error().Err(err).Str("trade_id", trade.TradeID).Msg("Failed to journal exit")
		}
	}
	t.notifier.TradeClosed(trade, t.opts.Paper)

	if s.DailyLimitReached() {
		t.notifier.DailyLimit(trade.Symbol, s.Stats().DailyPnL)
	}
}

// ClosePosition closes the symbol's position at the current price
func (t *Trader) ClosePosition(ctx context.Context, symbol string) (*models.CompletedTrade, error) {
	r, ok := t.runners[strings.ToUpper(symbol)]
	if !ok {
		return nil, fmt.Errorf("unknown symbol %s", symbol)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.strategy

	if s.Position() == nil {
		return nil, fmt.Errorf("no open position for %s", s.Symbol())
	}
	price, err := t.exchange.GetCurrentPrice(ctx, s.Symbol())
	if err != nil {
		return nil, err
	}

	trade, err := s.ClosePosition(price)
	if err != nil {
		return nil, err
	}
	t.handleExit(ctx, s, trade)
	t.updateStatus(s.Symbol(), s, price, nil)
	return trade, nil
}

// Analyze fetches fresh bars and returns the signal diagnostic for symbol
func (t *Trader) Analyze(ctx context.Context, symbol string) (*analyze.Analysis, error) {
	r, ok := t.runners[strings.ToUpper(symbol)]
	if !ok {
		return nil, fmt.Errorf("unknown symbol %s", symbol)
	}

	candles, err := t.exchange.GetBars(ctx, r.strategy.Symbol(), t.opts.Interval, t.opts.CandleCount)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.strategy.Analyze(candles)
	if a == nil {
		return nil, fmt.Errorf("not enough data for %s", symbol)
	}
	return a, nil
}

// Status returns a snapshot of every symbol
func (t *Trader) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()

	st := Status{
		Enabled: t.Enabled(),
		Paper:   t.opts.Paper,
		Balance: t.balance,
		Cycles:  t.cycles,
	}
	for _, s := range t.status {
		st.Symbols = append(st.Symbols, s)
	}
	sort.Slice(st.Symbols, func(i, j int) bool { return st.Symbols[i].Symbol < st.Symbols[j].Symbol })
	return st
}

func (t *Trader) updateStatus(symbol string, s *strategy.Strategy, price float64, signal *models.TradingSignal) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := t.status[symbol]
	if price > 0 {
		st.LastPrice = price
	}
	if signal != nil {
		st.LastSignal = signal
	}
	st.LastUpdate = t.now()
	st.LastError = ""
	st.Stats = s.Stats()
	t.status[symbol] = st
}

func (t *Trader) setError(symbol string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := t.status[symbol]
	st.LastError = err.Error()
	st.LastUpdate = t.now()
	t.status[symbol] = st
}

// rollover resets every daily counter once the date changes
func (t *Trader) rollover() {
	now := t.now()

	t.dayMu.Lock()
	y1, m1, d1 := t.lastDay.Date()
	y2, m2, d2 := now.Date()
	sameDay := y1 == y2 && m1 == m2 && d1 == d2
	t.lastDay = now
	t.dayMu.Unlock()

	if sameDay {
		return
	}
	for _, r := range t.runners {
		r.mu.Lock()
		r.strategy.ResetDaily(now)
		r.mu.Unlock()
	}
}

func (t *Trader) currentBalance(ctx context.Context) (float64, error) {
	if !t.opts.Paper {
		return t.exchange.GetAvailableBalance(ctx)
	}

	// paper balance moves with realized PnL
	balance := t.opts.PaperBalance
	for _, r := range t.runners {
		r.mu.Lock()
		balance += r.strategy.Stats().TotalPnL
		r.mu.Unlock()
	}
	return balance, nil
}

func holdSide(p models.PositionType) string {
	if p == models.PositionLong {
		return "long"
	}
	return "short"
}

type noopNotifier struct{}

func (noopNotifier) TradeOpened(*models.Position, bool)       {}
func (noopNotifier) TradeClosed(*models.CompletedTrade, bool) {}
func (noopNotifier) DailyLimit(string, float64)               {}
func (noopNotifier) Error(string, error)                      {}
func (noopNotifier) Status(string, string)                    {}
