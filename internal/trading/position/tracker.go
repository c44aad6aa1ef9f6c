package position

import (
	"errors"
	"time"

	"github.com/Alias1177/FuturesBot/models"
)

// ErrPositionOpen is returned when opening while a position is still active
var ErrPositionOpen = errors.New("a position is already open")

// ErrNoPosition is returned when closing with nothing open
var ErrNoPosition = errors.New("no open position")

// Tracker holds at most one open position. It is owned by a single strategy.
type Tracker struct {
	current *models.Position
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// Open activates a position; an existing one is never overwritten
func (t *Tracker) Open(p *models.Position) error {
	if t.current != nil {
		return ErrPositionOpen
	}
	t.current = p
	return nil
}

// Current returns a copy of the open position, or nil
func (t *Tracker) Current() *models.Position {
	if t.current == nil {
		return nil
	}
	p := *t.current
	return &p
}

func (t *Tracker) HasPosition() bool {
	return t.current != nil
}

// CheckExit reports whether price has crossed the stop loss or take profit
func (t *Tracker) CheckExit(price float64) (bool, models.ExitReason) {
	p := t.current
	if p == nil {
		return false, models.ExitNone
	}

	switch p.Type {
	case models.PositionLong:
		if price <= p.StopLoss {
			return true, models.ExitStopLoss
		}
		if price >= p.TakeProfit {
			return true, models.ExitTakeProfit
		}
	case models.PositionShort:
		if price >= p.StopLoss {
			return true, models.ExitStopLoss
		}
		if price <= p.TakeProfit {
			return true, models.ExitTakeProfit
		}
	}
	return false, models.ExitNone
}

// UpdatePnL marks the open position to price and returns the unrealized PnL
func (t *Tracker) UpdatePnL(price float64) float64 {
	if t.current == nil {
		return 0
	}
	t.current.CurrentPnL = PnL(t.current, price)
	return t.current.CurrentPnL
}

// SetQuantity replaces the size of the open position, e.g. with the filled size
func (t *Tracker) SetQuantity(qty float64) error {
	if t.current == nil {
		return ErrNoPosition
	}
	if qty <= 0 {
		return errors.New("quantity must be positive")
	}
	t.current.Quantity = qty
	return nil
}

// Discard drops the open position without producing a trade
func (t *Tracker) Discard() *models.Position {
	p := t.current
	t.current = nil
	return p
}

// Close finalizes the open position at price and clears it
func (t *Tracker) Close(price float64, at time.Time, reason models.ExitReason) (*models.CompletedTrade, error) {
	p := t.current
	if p == nil {
		return nil, ErrNoPosition
	}
	t.current = nil

	return &models.CompletedTrade{
		TradeID:    p.TradeID,
		Symbol:     p.Symbol,
		Type:       p.Type,
		EntryPrice: p.EntryPrice,
		ExitPrice:  price,
		Quantity:   p.Quantity,
		EntryTime:  p.EntryTime,
		ExitTime:   at,
		PnL:        PnL(p, price),
		ExitReason: reason,
	}, nil
}

// PnL is (price-entry)*qty for longs and (entry-price)*qty for shorts
func PnL(p *models.Position, price float64) float64 {
	if p.Type == models.PositionLong {
		return (price - p.EntryPrice) * p.Quantity
	}
	return (p.EntryPrice - price) * p.Quantity
}
