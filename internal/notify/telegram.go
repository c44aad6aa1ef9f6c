package notify

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/FuturesBot/models"
)

// Sender is the part of *tgbotapi.BotAPI the notifier needs
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends trading notifications to a single chat.
// A nil *Telegram or one without a sender silently drops messages.
type Telegram struct {
	sender Sender
	chatID int64
	now    func() time.Time
	logger zerolog.Logger
}

// NewTelegram creates a notifier for chatID
func NewTelegram(sender Sender, chatID int64) *Telegram {
	return &Telegram{
		sender: sender,
		chatID: chatID,
		now:    time.Now,
		logger: log.With().Str("component", "telegram_notifier").Logger(),
	}
}

// Enabled reports whether messages are actually sent
func (t *Telegram) Enabled() bool {
	return t != nil && t.sender != nil && t.chatID != 0
}

// Send delivers a Markdown message; failures are logged, never returned
func (t *Telegram) Send(text string) {
	if !t.Enabled() {
		return
	}

	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := t.sender.Send(msg); err != nil {
		t.logger.Error().Err(err).Int64("chat_id", t.chatID).Msg("Failed to send Telegram message")
	}
}

// TradeOpened announces a new position
func (t *Telegram) TradeOpened(pos *models.Position, paper bool) {
	if !t.Enabled() {
		return
	}
	t.Send(FormatEntry(pos, paper, t.now()))
}

// TradeClosed announces a closed position
func (t *Telegram) TradeClosed(trade *models.CompletedTrade, paper bool) {
	if !t.Enabled() {
		return
	}
	t.Send(FormatExit(trade, paper, t.now()))
}

// DailyLimit warns that entries are blocked for the rest of the day
func (t *Telegram) DailyLimit(symbol string, dailyPnL float64) {
	if !t.Enabled() {
		return
	}
	t.Send(fmt.Sprintf("⚠️ *DAILY LOSS LIMIT*\n\n%s: daily P&L $%.2f\nNew entries paused until tomorrow.",
		escape(symbol), dailyPnL))
}

// Error reports a failure that needs attention
func (t *Telegram) Error(kind string, err error) {
	if !t.Enabled() {
		return
	}
	t.Send(fmt.Sprintf("🚨 *SYSTEM ERROR*\n\n⚠️ Type: %s\n📝 Message: %s\n⏰ %s",
		escape(kind), escape(err.Error()), t.now().Format("15:04:05")))
}

// Status reports a start or stop of the trading loop
func (t *Telegram) Status(status, message string) {
	if !t.Enabled() {
		return
	}
	t.Send(fmt.Sprintf("✅ *SYSTEM %s*\n\n%s", escape(strings.ToUpper(status)), escape(message)))
}

// FormatEntry renders the trade-opened message
func FormatEntry(pos *models.Position, paper bool, at time.Time) string {
	var b strings.Builder
	b.WriteString("🚀 *TRADE OPENED*")
	if paper {
		b.WriteString(" (paper)")
	}
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("%s *%s %s*\n", sideEmoji(pos.Type), escape(pos.Symbol), pos.Type))
	b.WriteString(fmt.Sprintf("💰 Entry: $%.4f\n", pos.EntryPrice))
	b.WriteString(fmt.Sprintf("🛡️ Stop Loss: $%.4f\n", pos.StopLoss))
	b.WriteString(fmt.Sprintf("🎯 Take Profit: $%.4f\n", pos.TakeProfit))
	b.WriteString(fmt.Sprintf("📊 Size: %.6f\n", pos.Quantity))
	b.WriteString(fmt.Sprintf("📈 Confidence: %.0f%%\n", pos.Confidence*100))
	if pos.Reasoning != "" {
		b.WriteString(fmt.Sprintf("💡 %s\n", escape(pos.Reasoning)))
	}
	b.WriteString(fmt.Sprintf("\n⏰ %s", at.Format("15:04:05")))
	return b.String()
}

// FormatExit renders the trade-closed message
func FormatExit(trade *models.CompletedTrade, paper bool, at time.Time) string {
	pnlEmoji := "💛"
	if trade.PnL > 0 {
		pnlEmoji = "💚"
	} else if trade.PnL < 0 {
		pnlEmoji = "❤️"
	}

	var b strings.Builder
	b.WriteString("🏁 *TRADE CLOSED*")
	if paper {
		b.WriteString(" (paper)")
	}
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("%s *%s %s*\n", sideEmoji(trade.Type), escape(trade.Symbol), trade.Type))
	b.WriteString(fmt.Sprintf("💰 Entry: $%.4f → Exit: $%.4f\n", trade.EntryPrice, trade.ExitPrice))
	b.WriteString(fmt.Sprintf("%s P&L: $%.2f\n", pnlEmoji, trade.PnL))
	b.WriteString(fmt.Sprintf("📋 Reason: %s\n", escape(string(trade.ExitReason))))
	b.WriteString(fmt.Sprintf("\n⏰ %s", at.Format("15:04:05")))
	return b.String()
}

func sideEmoji(side models.PositionType) string {
	if side == models.PositionLong {
		return "🟢"
	}
	return "🔴"
}

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}
