package main

import (
	"context"
	"errors"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/FuturesBot/internal/app"
	"github.com/Alias1177/FuturesBot/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	app.SetupLogging(cfg.LogLevel)
	app.LogConfig(cfg)

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

	if !cfg.PaperTrading {
		log.Warn().Msg("LIVE TRADING MODE - real orders will be placed")
	}

	if err := t.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Trader stopped with error")
	}
}
