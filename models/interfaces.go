package models

import "context"

type CandleClient interface {
	GetBars(ctx context.Context, symbol, interval string, count int) ([]Candle, error)
	GetCurrentPrice(ctx context.Context, symbol string) (float64, error)
}

type BalanceClient interface {
	GetAvailableBalance(ctx context.Context) (float64, error)
}
