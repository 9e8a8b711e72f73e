package vpin

import (
	"time"

	"github.com/shopspring/decimal"
)

type AlertLevel string

const (
	LevelNormal   AlertLevel = "NORMAL"
	LevelModerate AlertLevel = "MODERATE"
	LevelElevated AlertLevel = "ELEVATED"
	LevelHigh     AlertLevel = "HIGH"
	LevelCritical AlertLevel = "CRITICAL"
)

// Classify maps a VPIN score onto the alert ladder, highest rung first.
// The rungs are calibrated to crypto flow; the alert *flag* on a reading
// is a separate threshold and does not follow this ladder.
func Classify(score float64) AlertLevel {
	switch {
	case score >= 0.85:
		return LevelCritical
	case score >= 0.75:
		return LevelHigh
	case score >= 0.65:
		return LevelElevated
	case score >= 0.50:
		return LevelModerate
	default:
		return LevelNormal
	}
}

// Reading is the immutable per-closed-bucket toxicity observation.
type Reading struct {
	BucketID       uint64
	Timestamp      time.Time
	Score          float64 // rolling VPIN, in [0,1]
	Level          AlertLevel
	Alert          bool
	BuyVolume      decimal.Decimal
	SellVolume     decimal.Decimal
	OrderImbalance float64 // buy share of this bucket, in [0,1]
}

// Window maintains the rolling VPIN estimate over the last `size` closed
// buckets. It emits nothing until `size` buckets have ever closed: a
// partial-window mean would bias the estimator low. Single-writer, like
// the accumulator.
type Window struct {
	size       int
	threshold  float64 // alert flag trigger, independent of the ladder
	historyCap int

	contribs []float64 // ring of the last `size` contributions
	head     int
	closed   uint64

	history []Reading
}

const DefaultHistoryCap = 500

func NewWindow(size int, threshold float64, historyCap int) *Window {
	if historyCap < size {
		historyCap = size
	}
	return &Window{
		size:       size,
		threshold:  threshold,
		historyCap: historyCap,
		contribs:   make([]float64, 0, size),
	}
}

// OnBucketClosed folds one closed bucket into the window. The bool is
// false until the window is full; after that every closure yields exactly
// one reading.
func (w *Window) OnBucketClosed(b Bucket) (Reading, bool) {
	c := b.Contribution()

	if len(w.contribs) < w.size {
		w.contribs = append(w.contribs, c)
	} else {
		w.contribs[w.head] = c
		w.head = (w.head + 1) % w.size
	}
	w.closed++

	if len(w.contribs) < w.size {
		return Reading{}, false
	}

	// Recomputing the mean over 50 terms per closure is cheap and avoids
	// the drift a running sum accumulates.
	var sum float64
	for _, v := range w.contribs {
		sum += v
	}
	score := sum / float64(w.size)

	r := Reading{
		BucketID:       b.ID,
		Timestamp:      b.ClosedAt,
		Score:          score,
		Level:          Classify(score),
		Alert:          score >= w.threshold,
		BuyVolume:      b.Buy,
		SellVolume:     b.Sell,
		OrderImbalance: b.OrderImbalance(),
	}

	w.history = append(w.history, r)
	if len(w.history) > w.historyCap {
		w.history = w.history[1:]
	}
	return r, true
}

// Current returns the latest score; false before the first full window.
func (w *Window) Current() (float64, bool) {
	if len(w.history) == 0 {
		return 0, false
	}
	return w.history[len(w.history)-1].Score, true
}

// Recent returns up to n readings, oldest first. n<=0 means all retained.
func (w *Window) Recent(n int) []Reading {
	if n <= 0 || n > len(w.history) {
		n = len(w.history)
	}
	out := make([]Reading, n)
	copy(out, w.history[len(w.history)-n:])
	return out
}

// ClosedTotal is how many buckets have ever closed into this window.
func (w *Window) ClosedTotal() uint64 { return w.closed }

func (w *Window) Size() int { return w.size }
