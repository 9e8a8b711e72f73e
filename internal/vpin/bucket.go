package vpin

import (
	"time"

	"github.com/shopspring/decimal"

	"vpinscope.com/internal/marketdata/model"
)

// Bucket is a fixed-capacity volume-clock accumulator. IDs increase
// monotonically from 1. While open the bucket is owned exclusively by the
// Accumulator; once closed it is a read-only value with
// Buy+Sell == Capacity exactly.
type Bucket struct {
	ID       uint64
	OpenedAt time.Time
	ClosedAt time.Time
	Buy      decimal.Decimal
	Sell     decimal.Decimal
	Capacity decimal.Decimal
}

func (b Bucket) Total() decimal.Decimal {
	return b.Buy.Add(b.Sell)
}

// Contribution is |buy-sell|/total, the bucket's term in the VPIN mean.
func (b Bucket) Contribution() float64 {
	total := b.Total()
	if total.IsZero() {
		return 0
	}
	return b.Buy.Sub(b.Sell).Abs().Div(total).InexactFloat64()
}

// OrderImbalance is the buy share of the bucket's volume: 1 is all
// buy-initiated, 0 all sell-initiated, 0.5 balanced. The zero-volume
// fallback is defensive; a closed bucket always holds full capacity.
func (b Bucket) OrderImbalance() float64 {
	total := b.Total()
	if total.IsZero() {
		return 0.5
	}
	return b.Buy.Div(total).InexactFloat64()
}

// Accumulator converts a trade stream into closed volume buckets. It is
// single-writer: only the ingestion goroutine may call Ingest.
type Accumulator struct {
	capacity decimal.Decimal
	nextID   uint64
	cur      Bucket
	rejected uint64
}

func NewAccumulator(capacity decimal.Decimal) *Accumulator {
	a := &Accumulator{capacity: capacity}
	a.cur = a.newBucket()
	return a
}

func (a *Accumulator) newBucket() Bucket {
	a.nextID++
	return Bucket{ID: a.nextID, Capacity: a.capacity}
}

// Ingest appends the trade's volume to the open bucket. A trade larger
// than the remaining capacity fills and closes the bucket and the leftover
// continues into a fresh one, so a single large trade may close several
// buckets; they are returned in closing order. No volume is ever dropped
// and no closed bucket diverges from its capacity.
//
// Zero-quantity trades are no-ops. Negative quantities are rejected and
// counted; Ingest never panics on bad input.
func (a *Accumulator) Ingest(t model.Trade) []Bucket {
	if t.Qty.IsZero() {
		return nil
	}
	if t.Qty.IsNegative() {
		a.rejected++
		return nil
	}

	var closed []Bucket
	remaining := t.Qty

	for remaining.IsPositive() {
		if a.cur.OpenedAt.IsZero() {
			a.cur.OpenedAt = t.Time
		}

		space := a.capacity.Sub(a.cur.Total())
		if remaining.Cmp(space) < 0 {
			a.add(t.Aggressor, remaining)
			break
		}

		// Fill to exactly capacity and roll over.
		a.add(t.Aggressor, space)
		a.cur.ClosedAt = t.Time
		closed = append(closed, a.cur)
		a.cur = a.newBucket()
		a.cur.OpenedAt = t.Time
		remaining = remaining.Sub(space)
	}
	return closed
}

func (a *Accumulator) add(side model.Side, qty decimal.Decimal) {
	if side == model.SideBuy {
		a.cur.Buy = a.cur.Buy.Add(qty)
	} else {
		a.cur.Sell = a.cur.Sell.Add(qty)
	}
}

// Open returns a snapshot of the bucket currently being filled.
func (a *Accumulator) Open() Bucket { return a.cur }

// Rejected is the count of trades refused for negative quantity.
func (a *Accumulator) Rejected() uint64 { return a.rejected }
