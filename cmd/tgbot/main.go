package main

import (
	"context"
	"errors"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Alias1177/FuturesBot/internal/app"
	"github.com/Alias1177/FuturesBot/internal/config"
	"github.com/Alias1177/FuturesBot/internal/telegram"
)

// Trading loop plus the Telegram control bot in one process
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	app.SetupLogging(cfg.LogLevel)
	app.LogConfig(cfg)

	if !cfg.TelegramEnabled() {
		log.Fatal().Msg("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID must be set")
	}

	ctx, cancel := app.SignalContext()
	defer cancel()

	deps, cleanup, err := app.Wire(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer cleanup()

	t, err := app.NewTrader(deps)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create trader")
	}

	var stats telegram.StatsSource
	if deps.Journal != nil {
		stats = deps.Journal
	}
	bot := telegram.NewBot(deps.Bot, cfg.TelegramChatID, t, stats)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return t.Run(ctx) })
	g.Go(func() error { return bot.Run(ctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Stopped with error")
	}
}
