package telegram

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/FuturesBot/internal/analyze"
	"github.com/Alias1177/FuturesBot/internal/database"
	"github.com/Alias1177/FuturesBot/internal/trader"
	"github.com/Alias1177/FuturesBot/models"
)

// Controller is the part of the trader the bot drives
type Controller interface {
	Status() trader.Status
	Symbols() []string
	Enable()
	Disable()
	ClosePosition(ctx context.Context, symbol string) (*models.CompletedTrade, error)
	Analyze(ctx context.Context, symbol string) (*analyze.Analysis, error)
}

// StatsSource reads the trade journal
type StatsSource interface {
	PerformanceStats(ctx context.Context) (*database.PerformanceStats, error)
	RecentTrades(ctx context.Context, limit int) ([]database.TradeRecord, error)
}

const recentTradesLimit = 10

// API is the part of *tgbotapi.BotAPI the bot uses
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot answers operator commands in a single authorized chat
type Bot struct {
	api     API
	chatID  int64
	trader  Controller
	stats   StatsSource
	timeout time.Duration
	logger  zerolog.Logger
}

// NewBot creates the control bot. stats may be nil when no database is configured.
func NewBot(api API, chatID int64, ctrl Controller, stats StatsSource) *Bot {
	return &Bot{
		api:     api,
		chatID:  chatID,
		trader:  ctrl,
		stats:   stats,
		timeout: 30 * time.Second,
		logger:  log.With().Str("component", "telegram_bot").Logger(),
	}
}

// Run polls updates until ctx is cancelled
func (b *Bot) Run(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.logger.Info().Int64("chat_id", b.chatID).Msg("Control bot started")
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message != nil {
				b.handleMessage(ctx, update.Message)
			}
		}
	}
}

// handleMessage processes incoming commands
func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.Chat == nil || message.Chat.ID != b.chatID {
		// чужие чаты игнорируем
		b.logger.Warn().Int64("chat_id", chatID(message)).Msg("Command from unauthorized chat")
		return
	}
	if !message.IsCommand() {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	b.logger.Info().Str("command", message.Command()).Msg("Command received")
	b.reply(b.Execute(ctx, message.Command(), message.CommandArguments()))
}

// Execute runs one command and returns the Markdown reply
func (b *Bot) Execute(ctx context.Context, command, args string) string {
	args = strings.TrimSpace(args)

	switch command {
	case "start", "help":
		return helpText()
	case "status":
		return FormatStatus(b.trader.Status())
	case "positions":
		return FormatPositions(b.trader.Status())
	case "signal":
		symbols := b.trader.Symbols()
		if args != "" {
			symbols = []string{strings.ToUpper(args)}
		}
		var parts []string
		for _, symbol := range symbols {
			a, err := b.trader.Analyze(ctx, symbol)
			if err != nil {
				parts = append(parts, fmt.Sprintf("❌ %s: %s", escape(symbol), escape(err.Error())))
				continue
			}
			parts = append(parts, FormatAnalysis(a))
		}
		return strings.Join(parts, "\n\n")
	case "stats":
		return b.statsText(ctx)
	case "trades":
		if b.stats == nil {
			return "Trade journal is not configured"
		}
		records, err := b.stats.RecentTrades(ctx, recentTradesLimit)
		if err != nil {
			b.logger.Error().Err(err).Msg("Failed to load recent trades")
			return "❌ Journal unavailable"
		}
		return FormatTrades(records)
	case "enable":
		b.trader.Enable()
		return "✅ Trading *enabled*"
	case "disable":
		b.trader.Disable()
		return "⏸️ Trading *disabled*\nOpen positions are still managed."
	case "close":
		if args == "" {
			return "Usage: /close SYMBOL"
		}
		trade, err := b.trader.ClosePosition(ctx, args)
		if err != nil {
			return "❌ " + escape(err.Error())
		}
		return fmt.Sprintf("🏁 %s closed at $%.4f, P&L $%.2f", escape(trade.Symbol), trade.ExitPrice, trade.PnL)
	}
	return "Unknown command. Send /help for the list."
}

func (b *Bot) statsText(ctx context.Context) string {
	status := b.trader.Status()

	var sb strings.Builder
	sb.WriteString("📊 *SESSION STATS*\n")
	for _, s := range status.Symbols {
		sb.WriteString(fmt.Sprintf("\n*%s*: %d trades, win rate %.1f%%, P&L $%.2f (today $%.2f)",
			escape(s.Symbol), s.Stats.TotalTrades, s.Stats.WinRate, s.Stats.TotalPnL, s.Stats.DailyPnL))
	}

	if b.stats == nil {
		return sb.String()
	}
	perf, err := b.stats.PerformanceStats(ctx)
	if err != nil {
		b.logger.Error().Err(err).Msg("Failed to load performance stats")
		sb.WriteString("\n\n❌ Journal unavailable")
		return sb.String()
	}
	sb.WriteString("\n\n📒 *JOURNAL*\n")
	sb.WriteString(FormatPerformance(perf))
	return sb.String()
}

func (b *Bot) reply(text string) {
	msg := tgbotapi.NewMessage(b.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error().Err(err).Msg("Failed to send reply")
	}
}

func helpText() string {
	return "🤖 *Futures bot*\n\n" +
		"/status - trading state and prices\n" +
		"/positions - open positions\n" +
		"/signal \\[SYMBOL] - current signal diagnostic\n" +
		"/stats - performance\n" +
		"/trades - last journal entries\n" +
		"/enable - allow new entries\n" +
		"/disable - stop new entries\n" +
		"/close SYMBOL - close a position now"
}

// FormatStatus renders /status
func FormatStatus(st trader.Status) string {
	state := "🟢 enabled"
	if !st.Enabled {
		state = "⏸️ disabled"
	}
	mode := "LIVE"
	if st.Paper {
		mode = "PAPER"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("📡 *STATUS* (%s)\n\nTrading: %s\nBalance: $%.2f\nCycles: %d\n", mode, state, st.Balance, st.Cycles))
	for _, s := range st.Symbols {
		line := fmt.Sprintf("\n*%s* $%.4f", escape(s.Symbol), s.LastPrice)
		if s.Stats.Position != nil {
			line += fmt.Sprintf(" | %s open", s.Stats.Position.Type)
		}
		if s.LastError != "" {
			line += " | ⚠️ " + escape(s.LastError)
		}
		b.WriteString(line)
	}
	return b.String()
}

// FormatPositions renders /positions
func FormatPositions(st trader.Status) string {
	var b strings.Builder
	for _, s := range st.Symbols {
		pos := s.Stats.Position
		if pos == nil {
			continue
		}
		b.WriteString(fmt.Sprintf("%s *%s %s*\nEntry $%.4f  Size %.6f\nSL $%.4f  TP $%.4f\nP&L $%.2f\n\n",
			sideEmoji(pos.Type), escape(pos.Symbol), pos.Type,
			pos.EntryPrice, pos.Quantity, pos.StopLoss, pos.TakeProfit, pos.CurrentPnL))
	}
	if b.Len() == 0 {
		return "No open positions"
	}
	return strings.TrimSpace(b.String())
}

// FormatAnalysis renders /signal for one symbol
func FormatAnalysis(a *analyze.Analysis) string {
	snap := a.Snapshot

	var b strings.Builder
	b.WriteString(fmt.Sprintf("🔎 *%s* $%.4f\n", escape(a.Symbol), snap.Close))
	b.WriteString(fmt.Sprintf("RSI %s | MA %s / %s\n", num(snap.RSI, 1), num(snap.MAShort, 4), num(snap.MALong, 4)))
	b.WriteString(fmt.Sprintf("ADX %.1f | Vol %.4f | VolRatio %.2f\n",
		a.Condition.TrendStrength, a.Condition.Volatility, a.Condition.VolumeRatio))
	b.WriteString(fmt.Sprintf("Regime: %s\n", a.Condition.Regime))
	b.WriteString(fmt.Sprintf("LONG %s %.0f%% | SHORT %s %.0f%%\n",
		check(a.Long.Valid), a.Long.Confidence*100, check(a.Short.Valid), a.Short.Confidence*100))

	if a.Signal != nil {
		b.WriteString(fmt.Sprintf("\n➡️ *%s* (%.0f%%)\n%s", a.Signal.Type, a.Signal.Confidence*100, escape(a.Signal.Reasoning)))
	} else {
		b.WriteString("\n➡️ HOLD")
	}
	return b.String()
}

// FormatPerformance renders journal statistics
func FormatPerformance(p *database.PerformanceStats) string {
	return fmt.Sprintf("Trades: %d (%d won / %d lost)\nWin rate: %.1f%%\nTotal P&L: $%.2f\nAvg profit: $%.2f\nAvg loss: $%.2f",
		p.TotalTrades, p.WinningTrades, p.LosingTrades, p.WinRate, p.TotalPnL, p.AvgProfit, p.AvgLoss)
}

// FormatTrades renders journal rows, newest first
func FormatTrades(records []database.TradeRecord) string {
	if len(records) == 0 {
		return "No trades recorded"
	}

	var b strings.Builder
	b.WriteString("📒 *RECENT TRADES*\n")
	for _, r := range records {
		line := fmt.Sprintf("\n%s %s %s @ $%.4f", sideEmoji(r.Side), escape(r.Symbol), r.EntryTime.Format("01-02 15:04"), r.EntryPrice)
		if r.Closed() {
			line += fmt.Sprintf(" → $%.4f %s $%.2f", r.ExitPrice.Float64, escape(r.ExitReason.String), r.PnL.Float64)
		} else {
			line += " open"
		}
		if r.Paper {
			line += " (paper)"
		}
		b.WriteString(line)
	}
	return b.String()
}

func num(v float64, prec int) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.*f", prec, v)
}

func check(ok bool) string {
	if ok {
		return "✅"
	}
	return "❌"
}

func sideEmoji(side models.PositionType) string {
	if side == models.PositionLong {
		return "🟢"
	}
	return "🔴"
}

func chatID(m *tgbotapi.Message) int64 {
	if m.Chat == nil {
		return 0
	}
	return m.Chat.ID
}

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}
