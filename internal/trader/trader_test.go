package trader

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/Alias1177/FuturesBot/internal/api/bitget"
	"github.com/Alias1177/FuturesBot/models"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeExchange struct {
	mu       sync.Mutex
	candles  []models.Candle
	price    float64
	balance  float64
	orderErr error
	fillSize string // empty fills the requested size
	open     []bitget.ExchangePosition

	leverage []int
	orders   []bitget.OrderRequest
	closes   []string
}

func (f *fakeExchange) GetBars(ctx context.Context, symbol, interval string, count int) ([]models.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.candles, nil
}

func (f *fakeExchange) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.price, nil
}

func (f *fakeExchange) GetAvailableBalance(ctx context.Context) (float64, error) {
	return f.balance, nil
}

func (f *fakeExchange) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leverage = append(f.leverage, leverage)
	return nil
}

func (f *fakeExchange) PlaceMarketOrder(ctx context.Context, order bitget.OrderRequest) (*bitget.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.orderErr != nil {
		return nil, f.orderErr
	}
	f.orders = append(f.orders, order)
	size := f.fillSize
	if size == "" {
		size = strconv.FormatFloat(order.Size, 'f', -1, 64)
	}
	return &bitget.OrderResult{OrderID: "order-1", Size: size}, nil
}

func (f *fakeExchange) GetPositions(ctx context.Context) ([]bitget.ExchangePosition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open, nil
}

func (f *fakeExchange) ClosePosition(ctx context.Context, symbol, holdSide string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes = append(f.closes, holdSide)
	return nil
}

type fakeJournal struct {
	mu      sync.Mutex
	entries []*models.Position
	paper   []bool
	exits   []*models.CompletedTrade
}

func (j *fakeJournal) RecordEntry(ctx context.Context, pos *models.Position, orderID string, leverage int, paper bool) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, pos)
	j.paper = append(j.paper, paper)
	return nil
}

func (j *fakeJournal) RecordExit(ctx context.Context, trade *models.CompletedTrade) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.exits = append(j.exits, trade)
	return nil
}

func TestPaperEntry(t *testing.T) {
	ex := &fakeExchange{candles: pullbackCandles(70, 14)}
	journal := &fakeJournal{}
	tr := newTestTrader(t, ex, journal, true)

	if err := tr.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}

	if len(ex.orders) != 0 || len(ex.leverage) != 0 {
		t.Errorf("paper mode routed orders: %+v", ex.orders)
	}
	if len(journal.entries) != 1 || !journal.paper[0] {
		t.Fatalf("journal entries = %d paper = %v, want one paper entry", len(journal.entries), journal.paper)
	}
	if journal.entries[0].Type != models.PositionLong {
		t.Errorf("entry type = %s, want LONG", journal.entries[0].Type)
	}

	st := tr.Status()
	if st.Cycles != 1 || st.Balance != 1000 || len(st.Symbols) != 1 {
		t.Fatalf("Status() = %+v", st)
	}
	if st.Symbols[0].Stats.Position == nil {
		t.Error("status has no open position")
	}
	if st.Symbols[0].LastSignal == nil || st.Symbols[0].LastSignal.Type != models.SignalBuy {
		t.Errorf("LastSignal = %+v, want BUY", st.Symbols[0].LastSignal)
	}
}

func TestLiveEntryAndExit(t *testing.T) {
	ex := &fakeExchange{candles: pullbackCandles(70, 14), balance: 1000}
	journal := &fakeJournal{}
	tr := newTestTrader(t, ex, journal, false)

	if err := tr.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if len(ex.leverage) != 1 || ex.leverage[0] != 2 {
		t.Errorf("SetLeverage calls = %v, want [2]", ex.leverage)
	}
	if len(ex.orders) != 1 {
		t.Fatalf("orders = %d, want 1", len(ex.orders))
	}
	order := ex.orders[0]
	pos := journal.entries[0]
	if order.Side != "buy" || order.Size != pos.Quantity || order.StopLoss != pos.StopLoss || order.TakeProfit != pos.TakeProfit {
		t.Errorf("order = %+v, position = %+v", order, pos)
	}

	// цена ниже стопа: позиция закрывается
	ex.price = pos.StopLoss - 1
	if err := tr.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if len(ex.closes) != 1 || ex.closes[0] != "long" {
		t.Errorf("ClosePosition calls = %v, want [long]", ex.closes)
	}
	if len(journal.exits) != 1 || journal.exits[0].ExitReason != models.ExitStopLoss {
		t.Fatalf("journal exits = %+v, want one STOP_LOSS", journal.exits)
	}
}

func TestLiveEntryUsesFilledSize(t *testing.T) {
	ex := &fakeExchange{candles: pullbackCandles(70, 14), balance: 1000, fillSize: "0.03"}
	journal := &fakeJournal{}
	tr := newTestTrader(t, ex, journal, false)

	if err := tr.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if len(ex.orders) != 1 || ex.orders[0].Size == 0.03 {
		t.Fatalf("orders = %+v, want one order with the unrounded size", ex.orders)
	}

	// журнал и стратегия хранят исполненный объем
	if len(journal.entries) != 1 || journal.entries[0].Quantity != 0.03 {
		t.Fatalf("journaled quantity = %+v, want 0.03", journal.entries)
	}
	pos := tr.Status().Symbols[0].Stats.Position
	if pos == nil || pos.Quantity != 0.03 {
		t.Fatalf("tracked position = %+v, want quantity 0.03", pos)
	}

	ex.price = pos.StopLoss - 1
	if err := tr.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if len(journal.exits) != 1 {
		t.Fatalf("journal exits = %d, want 1", len(journal.exits))
	}
	trade := journal.exits[0]
	want := (ex.price - pos.EntryPrice) * 0.03
	if trade.Quantity != 0.03 || trade.PnL != want {
		t.Errorf("trade quantity/pnl = %v/%v, want 0.03/%v", trade.Quantity, trade.PnL, want)
	}
}

func TestReconcileAdoptsExchangePositions(t *testing.T) {
	ex := &fakeExchange{
		candles: pullbackCandles(70, 14),
		balance: 1000,
		open: []bitget.ExchangePosition{
			{Symbol: "BTCUSDT", HoldSide: "short", Total: "0.5", OpenPriceAvg: "300"},
			{Symbol: "DOGEUSDT", HoldSide: "long", Total: "100", OpenPriceAvg: "0.1"},
		},
	}
	journal := &fakeJournal{}
	tr := newTestTrader(t, ex, journal, false)

	if err := tr.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	pos := tr.Status().Symbols[0].Stats.Position
	if pos == nil || pos.Type != models.PositionShort || pos.Quantity != 0.5 || pos.EntryPrice != 300 {
		t.Fatalf("adopted position = %+v, want SHORT 0.5 @ 300", pos)
	}
	if len(journal.entries) != 1 || journal.paper[0] {
		t.Fatalf("journal entries = %d, want one live entry", len(journal.entries))
	}

	// повторная сверка не дублирует позицию
	if err := tr.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if len(journal.entries) != 1 {
		t.Errorf("journal entries after second Reconcile() = %d, want 1", len(journal.entries))
	}

	// цена выше стопа шорта: закрытие через биржу
	ex.price = pos.StopLoss + 1
	if err := tr.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if len(ex.closes) != 1 || ex.closes[0] != "short" {
		t.Errorf("ClosePosition calls = %v, want [short]", ex.closes)
	}
	if len(ex.orders) != 0 {
		t.Errorf("orders placed while managing an adopted position: %+v", ex.orders)
	}
}

func TestReconcilePaperIsNoop(t *testing.T) {
	ex := &fakeExchange{open: []bitget.ExchangePosition{{Symbol: "BTCUSDT", HoldSide: "long", Total: "1", OpenPriceAvg: "100"}}}
	tr := newTestTrader(t, ex, nil, true)

	if err := tr.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if tr.Status().Symbols[0].Stats.Position != nil {
		t.Error("paper trader adopted an exchange position")
	}
}

func TestOrderFailureCancelsEntry(t *testing.T) {
	ex := &fakeExchange{candles: pullbackCandles(70, 14), balance: 1000, orderErr: errors.New("insufficient margin")}
	journal := &fakeJournal{}
	tr := newTestTrader(t, ex, journal, false)

	if err := tr.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if len(journal.entries) != 0 {
		t.Errorf("rejected order was journaled")
	}

	st := tr.Status().Symbols[0]
	if st.Stats.Position != nil {
		t.Error("position kept after rejected order")
	}
	if st.LastError == "" {
		t.Error("LastError is empty after rejected order")
	}
}

func TestDisabledSkipsEntries(t *testing.T) {
	ex := &fakeExchange{candles: pullbackCandles(70, 14)}
	journal := &fakeJournal{}
	tr := newTestTrader(t, ex, journal, true)
	tr.Disable()

	if err := tr.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if len(journal.entries) != 0 {
		t.Fatal("entry opened while trading is disabled")
	}

	tr.Enable()
	if err := tr.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if len(journal.entries) != 1 {
		t.Fatalf("entries after Enable() = %d, want 1", len(journal.entries))
	}
}

func TestManualClose(t *testing.T) {
	ex := &fakeExchange{candles: pullbackCandles(70, 14)}
	journal := &fakeJournal{}
	tr := newTestTrader(t, ex, journal, true)

	if _, err := tr.ClosePosition(context.Background(), "BTCUSDT"); err == nil {
		t.Error("ClosePosition() without a position should fail")
	}
	if _, err := tr.ClosePosition(context.Background(), "DOGEUSDT"); err == nil {
		t.Error("ClosePosition() for an unknown symbol should fail")
	}

	if err := tr.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	entry := journal.entries[0]
	ex.price = entry.EntryPrice + 2

	trade, err := tr.ClosePosition(context.Background(), "btcusdt")
	if err != nil {
		t.Fatalf("ClosePosition() error = %v", err)
	}
	if trade.ExitReason != models.ExitManual || trade.PnL <= 0 {
		t.Errorf("trade = %+v, want a winning MANUAL exit", trade)
	}
	if len(ex.closes) != 0 {
		t.Error("paper close routed to the exchange")
	}

	// paper balance follows realized PnL
	if err := tr.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if got := tr.Status().Balance; got != 1000+trade.PnL {
		t.Errorf("Balance = %v, want %v", got, 1000+trade.PnL)
	}
}

func TestAnalyze(t *testing.T) {
	ex := &fakeExchange{candles: pullbackCandles(70, 14)}
	tr := newTestTrader(t, ex, nil, true)

	a, err := tr.Analyze(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if a.Signal == nil || a.Signal.Type != models.SignalBuy {
		t.Errorf("Analyze() signal = %+v, want BUY", a.Signal)
	}

	ex.candles = ex.candles[:10]
	if _, err := tr.Analyze(context.Background(), "BTCUSDT"); err == nil {
		t.Error("Analyze() on short data should fail")
	}
}

func TestNewRequiresSymbols(t *testing.T) {
	if _, err := New(&fakeExchange{}, nil, nil, models.DefaultStrategyConfig(), Options{}); err == nil {
		t.Fatal("New() without symbols should fail")
	}
}

func newTestTrader(t *testing.T, ex *fakeExchange, journal *fakeJournal, paper bool) *Trader {
	t.Helper()

	var j Journal
	if journal != nil {
		j = journal
	}
	tr, err := New(ex, j, nil, models.DefaultStrategyConfig(), Options{
		Symbols:     []string{"BTCUSDT"},
		Interval:    "5m",
		CandleCount: 100,
		Paper:       paper,
		Leverage:    2,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return tr.WithClock(func() time.Time { return testNow })
}

// pullbackCandles: сильный рост и короткий откат, дает сигнал на покупку
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
