package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Alias1177/FuturesBot/models"
)

// ErrTradeNotFound is returned when an exit refers to an unknown trade id
var ErrTradeNotFound = errors.New("trade not found")

// DB represents a database connection
type DB struct {
	*sql.DB
}

// ConnectionParams holds PostgreSQL connection parameters
type ConnectionParams struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN builds the lib/pq connection string
func (p ConnectionParams) DSN() string {
	sslMode := p.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, sslMode,
	)
}

// TradeRecord is one row of the trades journal
type TradeRecord struct {
	TradeID    string
	Symbol     string
	Side       models.PositionType
	EntryPrice float64
	EntryTime  time.Time
	Quantity   float64
	StopLoss   float64
	TakeProfit float64
	Leverage   int
	Confidence float64
	Reasoning  string
	OrderID    string
	Paper      bool

	ExitPrice  sql.NullFloat64
	ExitTime   sql.NullTime
	ExitReason sql.NullString
	PnL        sql.NullFloat64
}

// Closed reports whether the trade has an exit recorded
func (r TradeRecord) Closed() bool {
	return r.ExitTime.Valid
}

// PerformanceStats aggregates closed trades
type PerformanceStats struct {
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	TotalPnL      float64
	WinRate       float64 // percent
	AvgProfit     float64
	AvgLoss       float64
}

// New creates a new database connection
func New(params ConnectionParams) (*DB, error) {
	db, err := sql.Open("postgres", params.DSN())
	if err != nil {
		return nil, err
	}

	// Check connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	// Create tables if they don't exist
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{db}, nil
}

// createTables creates the necessary tables if they don't exist
func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS trades (
			trade_id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			entry_price DOUBLE PRECISION NOT NULL,
			entry_time TIMESTAMPTZ NOT NULL,
			quantity DOUBLE PRECISION NOT NULL,
			stop_loss DOUBLE PRECISION NOT NULL,
			take_profit DOUBLE PRECISION NOT NULL,
			leverage INTEGER NOT NULL DEFAULT 1,
			confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
			reasoning TEXT,
			order_id TEXT,
			paper BOOLEAN NOT NULL DEFAULT TRUE,
			exit_price DOUBLE PRECISION,
			exit_time TIMESTAMPTZ,
			exit_reason TEXT,
			pnl DOUBLE PRECISION
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS trades_entry_time_idx ON trades (entry_time DESC)`)
	return err
}

// RecordEntry stores a newly opened position
func (db *DB) RecordEntry(ctx context.Context, pos *models.Position, orderID string, leverage int, paper bool) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO trades (
			trade_id, symbol, side, entry_price, entry_time, quantity,
			stop_loss, take_profit, leverage, confidence, reasoning, order_id, paper
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (trade_id) DO NOTHING
	`,
		pos.TradeID, pos.Symbol, string(pos.Type), pos.EntryPrice, pos.EntryTime, pos.Quantity,
		pos.StopLoss, pos.TakeProfit, leverage, pos.Confidence, pos.Reasoning, orderID, paper)
	if err != nil {
		return fmt.Errorf("recording entry %s: %w", pos.TradeID, err)
	}
	return nil
}

// RecordExit completes the journal row of a closed trade
func (db *DB) RecordExit(ctx context.Context, trade *models.CompletedTrade) error {
	res, err := db.ExecContext(ctx, `
		UPDATE trades
		SET exit_price = $2, exit_time = $3, exit_reason = $4, pnl = $5
		WHERE trade_id = $1
	`, trade.TradeID, trade.ExitPrice, trade.ExitTime, string(trade.ExitReason), trade.PnL)
	if err != nil {
		return fmt.Errorf("recording exit %s: %w", trade.TradeID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("recording exit %s: %w", trade.TradeID, ErrTradeNotFound)
	}
	return nil
}

// RecentTrades returns the latest trades, newest first
func (db *DB) RecentTrades(ctx context.Context, limit int) ([]TradeRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT
			trade_id, symbol, side, entry_price, entry_time, quantity, stop_loss, take_profit,
			leverage, confidence, COALESCE(reasoning, ''), COALESCE(order_id, ''), paper,
			exit_price, exit_time, exit_reason, pnl
		FROM trades
		ORDER BY entry_time DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []TradeRecord
	for rows.Next() {
		var r TradeRecord
		var side string
		if err := rows.Scan(
			&r.TradeID, &r.Symbol, &side, &r.EntryPrice, &r.EntryTime, &r.Quantity, &r.StopLoss, &r.TakeProfit,
			&r.Leverage, &r.Confidence, &r.Reasoning, &r.OrderID, &r.Paper,
			&r.ExitPrice, &r.ExitTime, &r.ExitReason, &r.PnL,
		); err != nil {
			return nil, err
		}
		r.Side = models.PositionType(side)
		trades = append(trades, r)
	}

	return trades, rows.Err()
}

// PerformanceStats aggregates every closed trade in the journal
func (db *DB) PerformanceStats(ctx context.Context) (*PerformanceStats, error) {
	var stats PerformanceStats
	var totalPnL, avgProfit, avgLoss sql.NullFloat64

	err := db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE pnl > 0),
			SUM(pnl),
			AVG(pnl) FILTER (WHERE pnl > 0),
			AVG(pnl) FILTER (WHERE pnl <= 0)
		FROM trades
		WHERE exit_time IS NOT NULL
	`).Scan(&stats.TotalTrades, &stats.WinningTrades, &totalPnL, &avgProfit, &avgLoss)
	if err != nil {
		return nil, err
	}

	stats.LosingTrades = stats.TotalTrades - stats.WinningTrades
	stats.TotalPnL = totalPnL.Float64
	stats.AvgProfit = avgProfit.Float64
	stats.AvgLoss = avgLoss.Float64
	if stats.TotalTrades > 0 {
		stats.WinRate = float64(stats.WinningTrades) / float64(stats.TotalTrades) * 100
	}

	return &stats, nil
}
