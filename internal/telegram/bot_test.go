package telegram

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Alias1177/FuturesBot/internal/analyze"
	"github.com/Alias1177/FuturesBot/internal/database"
	"github.com/Alias1177/FuturesBot/internal/trader"
	"github.com/Alias1177/FuturesBot/models"
)

type fakeController struct {
	status   trader.Status
	enabled  bool
	closed   []string
	closeErr error
}

func (f *fakeController) Status() trader.Status { return f.status }
func (f *fakeController) Symbols() []string     { return []string{"BTCUSDT"} }
func (f *fakeController) Enable()               { f.enabled = true }
func (f *fakeController) Disable()              { f.enabled = false }

func (f *fakeController) ClosePosition(ctx context.Context, symbol string) (*models.CompletedTrade, error) {
	if f.closeErr != nil {
		return nil, f.closeErr
	}
	f.closed = append(f.closed, symbol)
	return &models.CompletedTrade{Symbol: strings.ToUpper(symbol), ExitPrice: 101, PnL: 1.5}, nil
}

func (f *fakeController) Analyze(ctx context.Context, symbol string) (*analyze.Analysis, error) {
	if symbol != "BTCUSDT" {
		return nil, errors.New("unknown symbol " + symbol)
	}
	return &analyze.Analysis{
		Symbol: symbol,
		Snapshot: models.IndicatorSnapshot{
			Candle: models.Candle{Close: 100}, RSI: 30, MAShort: math.NaN(), MALong: 95,
		},
		Condition: models.MarketCondition{TrendStrength: 30, Regime: models.RegimeTrending},
		Long:      analyze.Evaluation{Valid: true, Confidence: 0.8},
		Signal:    &models.TradingSignal{Type: models.SignalBuy, Confidence: 0.8, Reasoning: "LONG: RSI oversold"},
	}, nil
}

type fakeStats struct {
	err error
}

func (f fakeStats) PerformanceStats(ctx context.Context) (*database.PerformanceStats, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &database.PerformanceStats{TotalTrades: 4, WinningTrades: 3, LosingTrades: 1, WinRate: 75, TotalPnL: 12.5}, nil
}

func (f fakeStats) RecentTrades(ctx context.Context, limit int) ([]database.TradeRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	entry := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	return []database.TradeRecord{
		{Symbol: "ETHUSDT", Side: models.PositionShort, EntryPrice: 3000, EntryTime: entry, Paper: true},
		{
			Symbol: "BTCUSDT", Side: models.PositionLong, EntryPrice: 100, EntryTime: entry,
			ExitPrice:  sql.NullFloat64{Float64: 103, Valid: true},
			ExitTime:   sql.NullTime{Time: entry.Add(time.Hour), Valid: true},
			ExitReason: sql.NullString{String: "TAKE_PROFIT", Valid: true},
			PnL:        sql.NullFloat64{Float64: 0.3, Valid: true},
		},
	}, nil
}

type fakeAPI struct {
	sent []tgbotapi.MessageConfig
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (f *fakeAPI) StopReceivingUpdates() {}

func openStatus() trader.Status {
	return trader.Status{
		Enabled: true,
		Paper:   true,
		Balance: 1000,
		Cycles:  3,
		Symbols: []trader.SymbolStatus{
			{
				Symbol:    "BTCUSDT",
				LastPrice: 100,
				Stats: models.StrategyStats{
					TotalTrades: 2, WinRate: 50, TotalPnL: 3,
					Position: &models.Position{Symbol: "BTCUSDT", Type: models.PositionLong, EntryPrice: 98, StopLoss: 96, TakeProfit: 101},
				},
			},
			{Symbol: "ETHUSDT", LastPrice: 3000, LastError: "timeout"},
		},
	}
}

func TestExecute(t *testing.T) {
	tests := []struct {
		name     string
		command  string
		args     string
		stats    StatsSource
		contains []string
	}{
		{"Помощь", "help", "", nil, []string{"/status", "/close SYMBOL"}},
		{"Статус", "status", "", nil, []string{"PAPER", "enabled", "$1000.00", "LONG open", "timeout"}},
		{"Позиции", "positions", "", nil, []string{"BTCUSDT LONG", "SL $96.0000"}},
		{"Сигнал по умолчанию", "signal", "", nil, []string{"BTCUSDT", "RSI 30.0", "MA n/a / 95.0000", "BUY", "TRENDING"}},
		{"Сигнал по неизвестному символу", "signal", "dogeusdt", nil, []string{"❌", "DOGEUSDT"}},
		{"Статистика без журнала", "stats", "", nil, []string{"SESSION STATS", "2 trades"}},
		{"Статистика с журналом", "stats", "", fakeStats{}, []string{"JOURNAL", "Win rate: 75.0%"}},
		{"Журнал недоступен", "stats", "", fakeStats{err: errors.New("down")}, []string{"Journal unavailable"}},
		{"Сделки без журнала", "trades", "", nil, []string{"not configured"}},
		{"Сделки", "trades", "", fakeStats{}, []string{"RECENT TRADES", "ETHUSDT 05-01 10:30 @ $3000.0000 open (paper)", "→ $103.0000 TAKE\\_PROFIT $0.30"}},
		{"Закрытие без символа", "close", "", nil, []string{"Usage"}},
		{"Закрытие", "close", "btcusdt", nil, []string{"BTCUSDT closed", "P&L $1.50"}},
		{"Неизвестная команда", "foo", "", nil, []string{"Unknown command"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := &fakeController{status: openStatus()}
			b := NewBot(&fakeAPI{}, 42, ctrl, tt.stats)

			got := b.Execute(context.Background(), tt.command, tt.args)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("Execute(%s) = %q, missing %q", tt.command, got, want)
				}
			}
		})
	}
}

func TestEnableDisable(t *testing.T) {
	ctrl := &fakeController{}
	b := NewBot(&fakeAPI{}, 42, ctrl, nil)

	b.Execute(context.Background(), "enable", "")
	if !ctrl.enabled {
		t.Fatal("enable did not enable trading")
	}
	b.Execute(context.Background(), "disable", "")
	if ctrl.enabled {
		t.Fatal("disable did not disable trading")
	}
}

func TestCloseError(t *testing.T) {
	ctrl := &fakeController{closeErr: errors.New("no open position for BTCUSDT")}
	b := NewBot(&fakeAPI{}, 42, ctrl, nil)

	got := b.Execute(context.Background(), "close", "BTCUSDT")
	if !strings.HasPrefix(got, "❌") {
		t.Errorf("Execute(close) = %q, want an error reply", got)
	}
}

func TestHandleMessageAuthorization(t *testing.T) {
	api := &fakeAPI{}
	ctrl := &fakeController{status: openStatus()}
	b := NewBot(api, 42, ctrl, nil)

	// чужой чат: ответа нет
	b.handleMessage(context.Background(), command(7, "/disable"))
	if len(api.sent) != 0 || ctrl.enabled {
		t.Fatalf("unauthorized chat got %d replies", len(api.sent))
	}

	b.handleMessage(context.Background(), command(42, "/enable"))
	if len(api.sent) != 1 || !ctrl.enabled {
		t.Fatalf("authorized command: replies = %d, enabled = %v", len(api.sent), ctrl.enabled)
	}
	if api.sent[0].ChatID != 42 || api.sent[0].ParseMode != tgbotapi.ModeMarkdown {
		t.Errorf("reply = %+v", api.sent[0])
	}

	// обычный текст не команда
	b.handleMessage(context.Background(), &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 42}, Text: "hello"})
	if len(api.sent) != 1 {
		t.Errorf("plain text produced a reply")
	}
}

func TestFormatPositionsEmpty(t *testing.T) {
	if got := FormatPositions(trader.Status{}); got != "No open positions" {
		t.Errorf("FormatPositions() = %q", got)
	}
}

func command(chat int64, text string) *tgbotapi.Message {
	name := strings.Fields(text)[0]
	return &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: chat},
		Text: text,
		Entities: []tgbotapi.MessageEntity{
			{Type: "bot_command", Offset: 0, Length: len(name)},
		},
	}
}
