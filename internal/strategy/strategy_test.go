package strategy

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/Alias1177/FuturesBot/models"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestProcessLifecycle(t *testing.T) {
	s := newTestStrategy(t, models.DefaultStrategyConfig())
	candles := pullbackCandles(70, 14)

	ev := s.Process(candles, 1000)
	if ev.Type != models.EventEntry {
		t.Fatalf("Process() = %s, want ENTRY", ev.Type)
	}
	if ev.Position == nil || ev.Position.Type != models.PositionLong {
		t.Fatalf("entry position = %+v, want LONG", ev.Position)
	}
	if ev.Signal == nil || ev.Signal.Type != models.SignalBuy {
		t.Fatalf("entry signal = %+v, want BUY", ev.Signal)
	}

	// same bars again: position held, no second entry
	if ev := s.Process(candles, 1000); ev.Type != models.EventNone {
		t.Fatalf("second Process() = %s, want NONE", ev.Type)
	}
	if s.Position() == nil {
		t.Fatal("position lost while holding")
	}

	crash := appendClose(candles, ev.Position.StopLoss-10)
	exit := s.Process(crash, 1000)
	if exit.Type != models.EventExit {
		t.Fatalf("Process() after crash = %s, want EXIT", exit.Type)
	}
	if exit.Trade.ExitReason != models.ExitStopLoss || exit.Trade.PnL >= 0 {
		t.Errorf("exit trade = %+v, want a losing STOP_LOSS", exit.Trade)
	}
	if !exit.Trade.ExitTime.Equal(testNow) {
		t.Errorf("ExitTime = %v, want %v", exit.Trade.ExitTime, testNow)
	}
	if s.Position() != nil {
		t.Error("position still open after exit")
	}

	stats := s.Stats()
	if stats.LongSignals != 1 || stats.TotalTrades != 1 || stats.LosingTrades != 1 || stats.WinRate != 0 {
		t.Errorf("Stats() = %+v", stats)
	}
	if stats.DailyTrades != 1 || stats.DailyPnL != exit.Trade.PnL {
		t.Errorf("daily stats = %d/%v, want 1/%v", stats.DailyTrades, stats.DailyPnL, exit.Trade.PnL)
	}
}

func TestDailyLossBlocksEntries(t *testing.T) {
	cfg := models.DefaultStrategyConfig()
	cfg.MaxDailyLossUSDT = 1
	s := newTestStrategy(t, cfg)
	candles := pullbackCandles(70, 14)

	entry := s.Process(candles, 1000)
	if entry.Type != models.EventEntry {
		t.Fatalf("Process() = %s, want ENTRY", entry.Type)
	}
	if ev := s.Process(appendClose(candles, entry.Position.EntryPrice*0.5), 1000); ev.Type != models.EventExit {
		t.Fatalf("Process() = %s, want EXIT", ev.Type)
	}
	if !s.DailyLimitReached() {
		t.Fatalf("DailyLimitReached() = false with daily pnl %v", s.Stats().DailyPnL)
	}

	if ev := s.Process(candles, 1000); ev.Type != models.EventNone {
		t.Fatalf("Process() while blocked = %s, want NONE", ev.Type)
	}
	if _, err := s.Enter(entry.Signal, 1000); !errors.Is(err, ErrDailyLossLimit) {
		t.Fatalf("Enter() error = %v, want ErrDailyLossLimit", err)
	}

	if !s.ResetDaily(testNow.Add(24 * time.Hour)) {
		t.Fatal("ResetDaily() on the next day = false")
	}
	if ev := s.Process(candles, 1000); ev.Type != models.EventEntry {
		t.Fatalf("Process() after reset = %s, want ENTRY", ev.Type)
	}
}

func TestOnPriceAndManualClose(t *testing.T) {
	s := newTestStrategy(t, models.DefaultStrategyConfig())
	entry := s.Process(pullbackCandles(70, 14), 1000)
	if entry.Type != models.EventEntry {
		t.Fatalf("Process() = %s, want ENTRY", entry.Type)
	}
	pos := entry.Position

	if ev := s.OnPrice(pos.EntryPrice + 1); ev.Type != models.EventNone {
		t.Fatalf("OnPrice() inside the band = %s", ev.Type)
	}
	if got := s.Position().CurrentPnL; got <= 0 {
		t.Errorf("CurrentPnL = %v, want positive", got)
	}

	if _, err := s.Enter(entry.Signal, 1000); !errors.Is(err, ErrPositionOpen) {
		t.Errorf("Enter() with open position error = %v, want ErrPositionOpen", err)
	}

	trade, err := s.ClosePosition(pos.EntryPrice)
	if err != nil {
		t.Fatalf("ClosePosition() error = %v", err)
	}
	if trade.ExitReason != models.ExitManual || trade.PnL != 0 {
		t.Errorf("ClosePosition() = %+v", trade)
	}
	if _, err := s.ClosePosition(pos.EntryPrice); err == nil {
		t.Error("ClosePosition() without a position should fail")
	}

	if ev := s.OnPrice(1); ev.Type != models.EventNone {
		t.Errorf("OnPrice() without a position = %s", ev.Type)
	}
}

func TestOnPriceTakeProfit(t *testing.T) {
	s := newTestStrategy(t, models.DefaultStrategyConfig())
	entry := s.Process(pullbackCandles(70, 14), 1000)
	if entry.Type != models.EventEntry {
		t.Fatalf("Process() = %s, want ENTRY", entry.Type)
	}

	ev := s.OnPrice(entry.Position.TakeProfit + 0.01)
	if ev.Type != models.EventExit || ev.Trade.ExitReason != models.ExitTakeProfit {
		t.Fatalf("OnPrice() = %+v, want TAKE_PROFIT exit", ev)
	}
	if ev.Position.CurrentPnL != ev.Trade.PnL {
		t.Errorf("exit position pnl = %v, trade pnl = %v, want equal", ev.Position.CurrentPnL, ev.Trade.PnL)
	}
	if s.Stats().WinRate != 100 {
		t.Errorf("WinRate = %v, want 100", s.Stats().WinRate)
	}
}

func TestAdopt(t *testing.T) {
	s := newTestStrategy(t, models.DefaultStrategyConfig())

	pos, err := s.Adopt(models.PositionLong, 100, 0.5)
	if err != nil {
		t.Fatalf("Adopt() error = %v", err)
	}
	if math.Abs(pos.StopLoss-98) > 1e-9 || math.Abs(pos.TakeProfit-103) > 1e-9 || !pos.EntryTime.Equal(testNow) {
		t.Errorf("Adopt() = %+v", pos)
	}
	if _, err := s.Adopt(models.PositionShort, 100, 1); !errors.Is(err, ErrPositionOpen) {
		t.Errorf("second Adopt() error = %v, want ErrPositionOpen", err)
	}

	// принятая позиция закрывается по стопу как обычная
	ev := s.OnPrice(97)
	if ev.Type != models.EventExit || ev.Trade.ExitReason != models.ExitStopLoss || ev.Trade.PnL != -1.5 {
		t.Fatalf("OnPrice() = %+v, want STOP_LOSS with pnl -1.5", ev.Trade)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := models.DefaultStrategyConfig()
	cfg.RSIPeriod = 0

	_, err := New("BTCUSDT", cfg)
	var cfgErr *models.ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Field != "rsi_period" {
		t.Fatalf("New() error = %v, want ConfigError for rsi_period", err)
	}
}

func TestProcessShortData(t *testing.T) {
	s := newTestStrategy(t, models.DefaultStrategyConfig())
	if ev := s.Process(pullbackCandles(10, 5), 1000); ev.Type != models.EventNone {
		t.Fatalf("Process() on short data = %s, want NONE", ev.Type)
	}
}

func newTestStrategy(t *testing.T, cfg models.StrategyConfig) *Strategy {
	t.Helper()
	s, err := New("BTCUSDT", cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s.WithClock(func() time.Time { return testNow })
}

// pullbackCandles is a steep uptrend followed by a shallow pullback, which
// produces an oversold RSI above the long MA with a strong ADX
func pullbackCandles(trend, pullback int) []models.Candle {
	closes := make([]float64, 0, trend+pullback)
	for i := 0; i < trend; i++ {
		closes = append(closes, 100+3*float64(i))
	}
	peak := closes[len(closes)-1]
	for j := 0; j < pullback; j++ {
		closes = append(closes, peak-float64(j+1))
	}

	start := testNow.Add(-time.Duration(len(closes)) * 5 * time.Minute)
	candles := make([]models.Candle, len(closes))
	for i, c := range closes {
		volume := 1000.0
		if i == len(closes)-1 {
			volume = 2000
		}
		candles[i] = models.Candle{
			Timestamp: start.Add(time.Duration(i) * 5 * time.Minute),
			Open:      c, High: c + 1, Low: c - 1, Close: c, Volume: volume,
		}
	}
	return candles
}

func appendClose(candles []models.Candle, price float64) []models.Candle {
	last := candles[len(candles)-1]
	next := models.Candle{
		Timestamp: last.Timestamp.Add(5 * time.Minute),
		Open:      last.Close, High: last.Close, Low: price, Close: price, Volume: 1000,
	}
	return append(append([]models.Candle(nil), candles...), next)
}
