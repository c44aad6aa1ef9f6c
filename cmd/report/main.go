package main

import (
	"context"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/FuturesBot/internal/app"
	"github.com/Alias1177/FuturesBot/internal/config"
	"github.com/Alias1177/FuturesBot/internal/telegram"
)

// Sends the journal performance summary and the latest trades to the
// configured chat. Meant to run from cron.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	app.SetupLogging(cfg.LogLevel)

	if !cfg.DatabaseEnabled() {
		log.Fatal().Msg("DB_HOST not set, nothing to report")
	}

	deps, cleanup, err := app.Wire(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	perf, err := deps.Journal.PerformanceStats(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load performance stats")
	}
	records, err := deps.Journal.RecentTrades(ctx, 20)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load recent trades")
	}

	report := fmt.Sprintf("📊 *DAILY REPORT* %s\n\n%s\n\n%s",
		time.Now().Format("2006-01-02"), telegram.FormatPerformance(perf), telegram.FormatTrades(records))

	if !deps.Notifier.Enabled() {
		// без Telegram просто печатаем
		fmt.Println(report)
		return
	}
	deps.Notifier.Send(report)

	log.Info().Int("trades", perf.TotalTrades).Float64("pnl", perf.TotalPnL).Msg("Report sent")
}
