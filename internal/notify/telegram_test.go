package notify

import (
	"errors"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Alias1177/FuturesBot/models"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, f.err
}

func TestFormatEntry(t *testing.T) {
	pos := &models.Position{
		Symbol: "BTCUSDT", Type: models.PositionLong, EntryPrice: 100, Quantity: 0.1,
		StopLoss: 98, TakeProfit: 103, Confidence: 0.85, Reasoning: "LONG: RSI oversold",
	}
	at := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)

	got := FormatEntry(pos, true, at)
	for _, want := range []string{"TRADE OPENED", "(paper)", "BTCUSDT LONG", "$100.0000", "$98.0000", "85%", "09:30:00"} {
		if !strings.Contains(got, want) {
			t.Errorf("FormatEntry() missing %q in:\n%s", want, got)
		}
	}
}

func TestFormatExit(t *testing.T) {
	tests := []struct {
		name  string
		pnl   float64
		emoji string
	}{
		{"Прибыль", 3, "💚"},
		{"Убыток", -2, "❤️"},
		{"Ноль", 0, "💛"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trade := &models.CompletedTrade{
				Symbol: "ETHUSDT", Type: models.PositionShort, EntryPrice: 100, ExitPrice: 97,
				PnL: tt.pnl, ExitReason: models.ExitTakeProfit,
			}
			got := FormatExit(trade, false, time.Now())
			if !strings.Contains(got, tt.emoji) {
				t.Errorf("FormatExit() missing %s", tt.emoji)
			}
			// underscores are escaped for Markdown
			if !strings.Contains(got, `TAKE\_PROFIT`) {
				t.Errorf("FormatExit() reason not escaped:\n%s", got)
			}
			if strings.Contains(got, "(paper)") {
				t.Error("FormatExit() marked a live trade as paper")
			}
		})
	}
}

func TestTelegramSend(t *testing.T) {
	sender := &fakeSender{}
	n := NewTelegram(sender, 42)

	n.TradeOpened(&models.Position{Symbol: "BTCUSDT", Type: models.PositionShort}, false)
	n.Error("exchange", errors.New("timeout"))

	if len(sender.sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(sender.sent))
	}
	if sender.sent[0].ChatID != 42 || sender.sent[0].ParseMode != tgbotapi.ModeMarkdown {
		t.Errorf("message = %+v", sender.sent[0])
	}

	// a send failure is swallowed
	sender.err = errors.New("network down")
	n.DailyLimit("BTCUSDT", -25)
}

func TestTelegramDisabled(t *testing.T) {
	var nilNotifier *Telegram
	nilNotifier.Send("ignored")
	nilNotifier.TradeClosed(&models.CompletedTrade{}, true)

	sender := &fakeSender{}
	NewTelegram(sender, 0).Send("no chat")
	if len(sender.sent) != 0 {
		t.Errorf("disabled notifier sent %d messages", len(sender.sent))
	}
}
