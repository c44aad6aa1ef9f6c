package position

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/Alias1177/FuturesBot/models"
)

func TestCheckExit(t *testing.T) {
	long := &models.Position{Type: models.PositionLong, EntryPrice: 100, Quantity: 2, StopLoss: 97, TakeProfit: 105}
	short := &models.Position{Type: models.PositionShort, EntryPrice: 100, Quantity: 2, StopLoss: 103, TakeProfit: 95}

	tests := []struct {
		name       string
		position   *models.Position
		price      float64
		wantExit   bool
		wantReason models.ExitReason
	}{
		{"Лонг стоп", long, 96.5, true, models.ExitStopLoss},
		{"Лонг стоп ровно", long, 97, true, models.ExitStopLoss},
		{"Лонг тейк", long, 106, true, models.ExitTakeProfit},
		{"Лонг держим", long, 101, false, models.ExitNone},
		{"Шорт стоп", short, 104, true, models.ExitStopLoss},
		{"Шорт тейк", short, 94, true, models.ExitTakeProfit},
		{"Шорт держим", short, 99, false, models.ExitNone},
		{"Нет позиции", nil, 50, false, models.ExitNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker()
			if tt.position != nil {
				p := *tt.position
				if err := tr.Open(&p); err != nil {
					t.Fatalf("Open() error = %v", err)
				}
			}

			exit, reason := tr.CheckExit(tt.price)
			if exit != tt.wantExit || reason != tt.wantReason {
				t.Errorf("CheckExit(%v) = (%v, %q), want (%v, %q)", tt.price, exit, reason, tt.wantExit, tt.wantReason)
			}
		})
	}
}

func TestUpdatePnL(t *testing.T) {
	tests := []struct {
		name  string
		typ   models.PositionType
		price float64
		want  float64
	}{
		{"Лонг в плюсе", models.PositionLong, 110, 20},
		{"Лонг в минусе", models.PositionLong, 95, -10},
		{"Шорт в плюсе", models.PositionShort, 90, 20},
		{"Шорт в минусе", models.PositionShort, 104, -8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker()
			_ = tr.Open(&models.Position{Type: tt.typ, EntryPrice: 100, Quantity: 2})

			if got := tr.UpdatePnL(tt.price); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("UpdatePnL(%v) = %v, want %v", tt.price, got, tt.want)
			}
			if got := tr.Current().CurrentPnL; math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Current().CurrentPnL = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSinglePosition(t *testing.T) {
	tr := NewTracker()
	first := &models.Position{TradeID: "a", Type: models.PositionLong, EntryPrice: 100, Quantity: 1}

	if err := tr.Open(first); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := tr.Open(&models.Position{TradeID: "b"}); !errors.Is(err, ErrPositionOpen) {
		t.Fatalf("second Open() error = %v, want ErrPositionOpen", err)
	}
	if tr.Current().TradeID != "a" {
		t.Fatalf("open position overwritten: %+v", tr.Current())
	}

	exitAt := time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC)
	trade, err := tr.Close(103, exitAt, models.ExitTakeProfit)
	if err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if trade.PnL != 3 || trade.ExitReason != models.ExitTakeProfit || !trade.ExitTime.Equal(exitAt) {
		t.Errorf("Close() = %+v", trade)
	}
	if tr.HasPosition() {
		t.Error("position still open after Close()")
	}
	if _, err := tr.Close(100, exitAt, models.ExitManual); !errors.Is(err, ErrNoPosition) {
		t.Errorf("Close() on empty tracker error = %v, want ErrNoPosition", err)
	}
}

func TestDiscard(t *testing.T) {
	tr := NewTracker()
	if tr.Discard() != nil {
		t.Fatal("Discard() on empty tracker returned a position")
	}

	_ = tr.Open(&models.Position{TradeID: "x"})
	if p := tr.Discard(); p == nil || p.TradeID != "x" {
		t.Fatalf("Discard() = %+v", p)
	}
	if tr.HasPosition() {
		t.Error("position still open after Discard()")
	}
}
