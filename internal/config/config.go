package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/Alias1177/FuturesBot/models"
)

// Config holds all application configuration
type Config struct {
	BitgetAPIKey     string `env:"BITGET_API_KEY"`
	BitgetSecretKey  string `env:"BITGET_SECRET_KEY"`
	BitgetPassphrase string `env:"BITGET_PASSPHRASE"`
	BitgetBaseURL    string `env:"BITGET_BASE_URL" envDefault:"https://api.bitget.com"`
	ProductType      string `env:"PRODUCT_TYPE" envDefault:"USDT-FUTURES"`
	MarginCoin       string `env:"MARGIN_COIN" envDefault:"USDT"`
	MarginMode       string `env:"MARGIN_MODE" envDefault:"isolated"`

	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   int64  `env:"TELEGRAM_CHAT_ID"`

	DBHost     string `env:"DB_HOST"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBUser     string `env:"DB_USER"`
	DBPassword string `env:"DB_PASSWORD"`
	DBName     string `env:"DB_NAME"`
	DBSSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`

	Symbols        []string `env:"SYMBOLS" envDefault:"BTCUSDT"`
	Interval       string   `env:"INTERVAL" envDefault:"5m"`
	CandleCount    int      `env:"CANDLE_COUNT" envDefault:"100"`
	CycleInterval  int      `env:"CYCLE_INTERVAL" envDefault:"60"` // seconds
	PaperTrading   bool     `env:"PAPER_TRADING" envDefault:"true"`
	Leverage       int      `env:"LEVERAGE" envDefault:"2"`
	LogLevel       string   `env:"LOG_LEVEL" envDefault:"info"`
	RequestTimeout int      `env:"REQUEST_TIMEOUT" envDefault:"30"` // seconds
	RequestsPerSec int      `env:"REQUESTS_PER_SECOND" envDefault:"10"`
	StrategyFile   string   `env:"STRATEGY_FILE"`

	Strategy models.StrategyConfig
}

// Load initializes configuration from environment variables.
// Strategy parameters start from defaults, are overlaid by STRATEGY_FILE
// when set, and finally by individual environment variables.
func Load() (*Config, error) {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	var cfg Config

	cfg.BitgetAPIKey = os.Getenv("BITGET_API_KEY")
	cfg.BitgetSecretKey = os.Getenv("BITGET_SECRET_KEY")
	cfg.BitgetPassphrase = os.Getenv("BITGET_PASSPHRASE")
	cfg.BitgetBaseURL = getEnvWithDefault("BITGET_BASE_URL", "https://api.bitget.com")
	cfg.ProductType = getEnvWithDefault("PRODUCT_TYPE", "USDT-FUTURES")
	cfg.MarginCoin = getEnvWithDefault("MARGIN_COIN", "USDT")
	cfg.MarginMode = getEnvWithDefault("MARGIN_MODE", "isolated")

	cfg.TelegramBotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.TelegramChatID = int64(getEnvIntWithDefault("TELEGRAM_CHAT_ID", 0))

	cfg.DBHost = os.Getenv("DB_HOST")
	cfg.DBPort = getEnvWithDefault("DB_PORT", "5432")
	cfg.DBUser = os.Getenv("DB_USER")
	cfg.DBPassword = os.Getenv("DB_PASSWORD")
	cfg.DBName = os.Getenv("DB_NAME")
	cfg.DBSSLMode = getEnvWithDefault("DB_SSLMODE", "disable")

	cfg.Symbols = getEnvListWithDefault("SYMBOLS", []string{"BTCUSDT"})
	cfg.Interval = getEnvWithDefault("INTERVAL", "5m")
	cfg.CandleCount = getEnvIntWithDefault("CANDLE_COUNT", 100)
	cfg.CycleInterval = getEnvIntWithDefault("CYCLE_INTERVAL", 60)
	cfg.PaperTrading = getEnvBoolWithDefault("PAPER_TRADING", true)
	cfg.Leverage = getEnvIntWithDefault("LEVERAGE", 2)
	cfg.LogLevel = getEnvWithDefault("LOG_LEVEL", "info")
	cfg.RequestTimeout = getEnvIntWithDefault("REQUEST_TIMEOUT", 30)
	cfg.RequestsPerSec = getEnvIntWithDefault("REQUESTS_PER_SECOND", 10)
	cfg.StrategyFile = os.Getenv("STRATEGY_FILE")

	cfg.Strategy = models.DefaultStrategyConfig()
	if cfg.StrategyFile != "" {
		if err := loadStrategyFile(cfg.StrategyFile, &cfg.Strategy); err != nil {
			return nil, err
		}
	}
	applyStrategyEnv(&cfg.Strategy)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the loaded configuration, including the strategy block
func (c *Config) Validate() error {
	if err := c.Strategy.Validate(); err != nil {
		return err
	}
	if len(c.Symbols) == 0 {
		return &models.ConfigError{Field: "SYMBOLS", Reason: "at least one symbol is required"}
	}
	if _, err := models.IntervalDuration(c.Interval); err != nil {
		return &models.ConfigError{Field: "INTERVAL", Reason: err.Error()}
	}
	if c.CandleCount < c.Strategy.WarmupBars() {
		return &models.ConfigError{
			Field:  "CANDLE_COUNT",
			Reason: fmt.Sprintf("%d bars is below the %d bar warm-up", c.CandleCount, c.Strategy.WarmupBars()),
		}
	}
	if c.CycleInterval <= 0 {
		return &models.ConfigError{Field: "CYCLE_INTERVAL", Reason: "must be positive"}
	}
	if c.Leverage <= 0 {
		return &models.ConfigError{Field: "LEVERAGE", Reason: "must be positive"}
	}
	if c.MarginMode != "isolated" && c.MarginMode != "crossed" {
		return &models.ConfigError{Field: "MARGIN_MODE", Reason: fmt.Sprintf("unknown mode %q", c.MarginMode)}
	}
	if !c.PaperTrading && (c.BitgetAPIKey == "" || c.BitgetSecretKey == "" || c.BitgetPassphrase == "") {
		return &models.ConfigError{Field: "BITGET_API_KEY", Reason: "live trading requires API key, secret and passphrase"}
	}
	return nil
}

// CycleDuration is the pause between trading cycles
func (c *Config) CycleDuration() time.Duration {
	return time.Duration(c.CycleInterval) * time.Second
}

// Timeout is the HTTP request timeout
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// DatabaseEnabled reports whether the trade journal is configured
func (c *Config) DatabaseEnabled() bool {
	return c.DBHost != ""
}

// TelegramEnabled reports whether Telegram notifications are configured
func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != 0
}

func loadStrategyFile(path string, sc *models.StrategyConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading strategy file: %w", err)
	}
	// fields missing from the file keep their current values
	if err := yaml.Unmarshal(data, sc); err != nil {
		return &models.ConfigError{Field: "STRATEGY_FILE", Reason: err.Error()}
	}
	return nil
}

func applyStrategyEnv(sc *models.StrategyConfig) {
	sc.RSIPeriod = getEnvIntWithDefault("RSI_PERIOD", sc.RSIPeriod)
	sc.MALongPeriod = getEnvIntWithDefault("MA_LONG_PERIOD", sc.MALongPeriod)
	sc.MAShortPeriod = getEnvIntWithDefault("MA_SHORT_PERIOD", sc.MAShortPeriod)
	sc.ADXPeriod = getEnvIntWithDefault("ADX_PERIOD", sc.ADXPeriod)
	sc.VolatilityWindow = getEnvIntWithDefault("VOLATILITY_WINDOW", sc.VolatilityWindow)
	sc.VolumeWindow = getEnvIntWithDefault("VOLUME_WINDOW", sc.VolumeWindow)
	sc.EntryMode = models.EntryMode(getEnvWithDefault("ENTRY_MODE", string(sc.EntryMode)))
	sc.RSIBuyThreshold = getEnvFloatWithDefault("RSI_BUY_THRESHOLD", sc.RSIBuyThreshold)
	sc.RSISellThreshold = getEnvFloatWithDefault("RSI_SELL_THRESHOLD", sc.RSISellThreshold)
	sc.StopLossPct = getEnvFloatWithDefault("STOP_LOSS_PCT", sc.StopLossPct)
	sc.TakeProfitPct = getEnvFloatWithDefault("TAKE_PROFIT_PCT", sc.TakeProfitPct)
	sc.MaxRiskPerTrade = getEnvFloatWithDefault("MAX_RISK_PER_TRADE", sc.MaxRiskPerTrade)
	sc.PositionSizeUSDT = getEnvFloatWithDefault("POSITION_SIZE_USDT", sc.PositionSizeUSDT)
	sc.MaxDailyLossUSDT = getEnvFloatWithDefault("MAX_DAILY_LOSS_USDT", sc.MaxDailyLossUSDT)
	sc.TrendStrengthThreshold = getEnvFloatWithDefault("TREND_STRENGTH_THRESHOLD", sc.TrendStrengthThreshold)
	sc.VolumeMultiplier = getEnvFloatWithDefault("VOLUME_MULTIPLIER", sc.VolumeMultiplier)
	sc.VolatilityFilterEnabled = getEnvBoolWithDefault("VOLATILITY_FILTER_ENABLED", sc.VolatilityFilterEnabled)
	sc.MaxVolatility = getEnvFloatWithDefault("MAX_VOLATILITY", sc.MaxVolatility)
	sc.SessionsEnabled = getEnvBoolWithDefault("SESSIONS_ENABLED", sc.SessionsEnabled)
	sc.AllowedHours = getEnvIntListWithDefault("ALLOWED_HOURS", sc.AllowedHours)
	sc.SessionTimezone = getEnvWithDefault("SESSION_TIMEZONE", sc.SessionTimezone)
}

// Helper functions for environment variable handling
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatWithDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolWithDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvListWithDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.ToUpper(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvIntListWithDefault(key string, defaultValue []int) []int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []int
	for _, part := range strings.Split(value, ",") {
		if n, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
			out = append(out, n)
		}
	}
	return out
}
