package risk

import (
	"time"
)

// DailyCounter tracks realized PnL and trade count for one calendar day.
// It is owned by a single strategy and is not safe for concurrent use.
type DailyCounter struct {
	date   time.Time
	trades int
	pnl    float64
}

// NewDailyCounter starts a counter for the day containing now
func NewDailyCounter(now time.Time) *DailyCounter {
	return &DailyCounter{date: truncateDay(now)}
}

// Record adds a closed trade's PnL
func (d *DailyCounter) Record(pnl float64) {
	d.trades++
	d.pnl += pnl
}

// Rollover resets the counter when now falls on a later day than the
// current one and reports whether it did
func (d *DailyCounter) Rollover(now time.Time) bool {
	day := truncateDay(now)
	if !day.After(d.date) {
		return false
	}
	d.date = day
	d.trades = 0
	d.pnl = 0
	return true
}

// Blocked is true once the day's loss reaches maxLoss
func (d *DailyCounter) Blocked(maxLoss float64) bool {
	return d.pnl <= -maxLoss
}

func (d *DailyCounter) Date() time.Time { return d.date }
func (d *DailyCounter) Trades() int     { return d.trades }
func (d *DailyCounter) PnL() float64    { return d.pnl }

func truncateDay(t time.Time) time.Time {
	y, m, day := t.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, t.Location())
}
