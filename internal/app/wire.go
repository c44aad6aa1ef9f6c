package app

import (
	"fmt"
	"os"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/FuturesBot/internal/api/bitget"
	"github.com/Alias1177/FuturesBot/internal/config"
	"github.com/Alias1177/FuturesBot/internal/database"
	"github.com/Alias1177/FuturesBot/internal/notify"
	"github.com/Alias1177/FuturesBot/internal/trader"
)

// Dependencies bundles the collaborators the binaries need.
// Journal, Bot and Notifier are nil when not configured.
type Dependencies struct {
	Config   *config.Config
	Exchange *bitget.Client
	Journal  *database.DB
	Bot      *tgbotapi.BotAPI
	Notifier *notify.Telegram
}

// SetupLogging configures the global console logger
func SetupLogging(logLevel string) {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log.Logger = log.Output(output).Level(level)
}

// Wire connects every configured collaborator. The returned cleanup closes them.
func Wire(cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{
		Config: cfg,
		Exchange: bitget.NewClient(bitget.Credentials{
			APIKey:     cfg.BitgetAPIKey,
			SecretKey:  cfg.BitgetSecretKey,
			Passphrase: cfg.BitgetPassphrase,
		}, bitget.Options{
			BaseURL:        cfg.BitgetBaseURL,
			ProductType:    cfg.ProductType,
			MarginCoin:     cfg.MarginCoin,
			MarginMode:     cfg.MarginMode,
			Timeout:        cfg.Timeout(),
			RequestsPerSec: cfg.RequestsPerSec,
		}),
	}
	cleanup := func() {
		if deps.Journal != nil {
			deps.Journal.Close()
		}
	}

	if cfg.DatabaseEnabled() {
		db, err := database.New(database.ConnectionParams{
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			DBName:   cfg.DBName,
			SSLMode:  cfg.DBSSLMode,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("opening trade journal: %w", err)
		}
		deps.Journal = db
		log.Info().Str("host", cfg.DBHost).Msg("Trade journal connected")
	} else {
		log.Warn().Msg("DB_HOST not set, trade journal disabled")
	}

	if cfg.TelegramBotToken != "" {
		bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("initializing Telegram bot: %w", err)
		}
		deps.Bot = bot
		if cfg.TelegramChatID != 0 {
			deps.Notifier = notify.NewTelegram(bot, cfg.TelegramChatID)
		}
		log.Info().Str("username", bot.Self.UserName).Msg("Authorized on Telegram")
	}

	return deps, cleanup, nil
}

// NewTrader builds the live trader over the wired collaborators
func NewTrader(deps *Dependencies) (*trader.Trader, error) {
	cfg := deps.Config

	// typed nil pointers must not leak into the interfaces
	var journal trader.Journal
	if deps.Journal != nil {
		journal = deps.Journal
	}
	var notifier trader.Notifier
	if deps.Notifier != nil {
		notifier = deps.Notifier
	}

	return trader.New(deps.Exchange, journal, notifier, cfg.Strategy, trader.Options{
		Symbols:       cfg.Symbols,
		Interval:      cfg.Interval,
		CandleCount:   cfg.CandleCount,
		CycleInterval: cfg.CycleDuration(),
		Paper:         cfg.PaperTrading,
		Leverage:      cfg.Leverage,
	})
}

// LogConfig prints the effective configuration without secrets
func LogConfig(cfg *config.Config) {
	sc := cfg.Strategy
	log.Info().
		Strs("symbols", cfg.Symbols).
		Str("interval", cfg.Interval).
		Int("candle_count", cfg.CandleCount).
		Bool("paper", cfg.PaperTrading).
		Int("leverage", cfg.Leverage).
		Str("entry_mode", string(sc.EntryMode)).
		Int("rsi_period", sc.RSIPeriod).
		Float64("rsi_buy", sc.RSIBuyThreshold).
		Float64("rsi_sell", sc.RSISellThreshold).
		Int("ma_long", sc.MALongPeriod).
		Int("ma_short", sc.MAShortPeriod).
		Float64("stop_loss_pct", sc.StopLossPct).
		Float64("take_profit_pct", sc.TakeProfitPct).
		Float64("max_daily_loss", sc.MaxDailyLossUSDT).
		Bool("database", cfg.DatabaseEnabled()).
		Bool("telegram", cfg.TelegramEnabled()).
		Msg("Configuration loaded")
}
