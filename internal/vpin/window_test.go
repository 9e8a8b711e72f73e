package vpin

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// closedBucket builds a bucket as the accumulator would close it:
// buy+sell is the capacity.
func closedBucket(id uint64, buy, sell string) Bucket {
	b := decimal.RequireFromString(buy)
	s := decimal.RequireFromString(sell)
	return Bucket{
		ID:       id,
		ClosedAt: time.Date(2026, 8, 1, 12, 0, int(id), 0, time.UTC),
		Buy:      b,
		Sell:     s,
		Capacity: b.Add(s),
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		score float64
		want  AlertLevel
	}{
		{0.0, LevelNormal},
		{0.49, LevelNormal},
		{0.50, LevelModerate},
		{0.64, LevelModerate},
		{0.65, LevelElevated},
		{0.74, LevelElevated},
		{0.75, LevelHigh},
		{0.84, LevelHigh},
		{0.85, LevelCritical},
		{1.0, LevelCritical},
	}
	for _, tc := range cases {
		if got := Classify(tc.score); got != tc.want {
			t.Errorf("Classify(%v) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestNoReadingUntilWindowFull(t *testing.T) {
	w := NewWindow(3, 0.70, 10)

	for i := uint64(1); i <= 2; i++ {
		if _, ok := w.OnBucketClosed(closedBucket(i, "1", "0")); ok {
			t.Fatalf("reading emitted at bucket %d, window size 3", i)
		}
	}
	if _, ok := w.Current(); ok {
		t.Fatal("Current reported a score before the window filled")
	}

	r, ok := w.OnBucketClosed(closedBucket(3, "1", "0"))
	if !ok {
		t.Fatal("no reading at window size")
	}
	if r.BucketID != 3 {
		t.Fatalf("reading bucket id = %d, want 3", r.BucketID)
	}
	if w.ClosedTotal() != 3 {
		t.Fatalf("closed total = %d, want 3", w.ClosedTotal())
	}
}

func TestBalancedFlowScoresZero(t *testing.T) {
	w := NewWindow(3, 0.70, 10)
	var r Reading
	var ok bool
	for i := uint64(1); i <= 3; i++ {
		r, ok = w.OnBucketClosed(closedBucket(i, "0.5", "0.5"))
	}
	if !ok {
		t.Fatal("no reading")
	}
	if r.Score != 0 {
		t.Fatalf("score = %v, want 0", r.Score)
	}
	if r.Level != LevelNormal || r.Alert {
		t.Fatalf("level=%s alert=%v, want NORMAL/false", r.Level, r.Alert)
	}
}

func TestOneSidedFlowScoresOne(t *testing.T) {
	w := NewWindow(3, 0.70, 10)
	var r Reading
	var ok bool
	for i := uint64(1); i <= 3; i++ {
		r, ok = w.OnBucketClosed(closedBucket(i, "1", "0"))
	}
	if !ok {
		t.Fatal("no reading")
	}
	if r.Score != 1 {
		t.Fatalf("score = %v, want 1", r.Score)
	}
	if r.Level != LevelCritical || !r.Alert {
		t.Fatalf("level=%s alert=%v, want CRITICAL/true", r.Level, r.Alert)
	}
	if r.OrderImbalance != 1 {
		t.Fatalf("order imbalance = %v, want 1", r.OrderImbalance)
	}
}

func TestWindowSlides(t *testing.T) {
	w := NewWindow(2, 0.70, 10)

	w.OnBucketClosed(closedBucket(1, "1", "0"))
	r, _ := w.OnBucketClosed(closedBucket(2, "1", "0"))
	if r.Score != 1 {
		t.Fatalf("score = %v, want 1", r.Score)
	}

	// A balanced bucket evicts the oldest one-sided bucket.
	r, _ = w.OnBucketClosed(closedBucket(3, "0.5", "0.5"))
	if math.Abs(r.Score-0.5) > 1e-12 {
		t.Fatalf("score after slide = %v, want 0.5", r.Score)
	}

	r, _ = w.OnBucketClosed(closedBucket(4, "0.5", "0.5"))
	if r.Score != 0 {
		t.Fatalf("score = %v, want 0", r.Score)
	}
}

func TestAlertFlagIndependentOfLadder(t *testing.T) {
	// 0.72 is only ELEVATED on the ladder but crosses the 0.70 flag.
	w := NewWindow(1, 0.70, 10)
	r, ok := w.OnBucketClosed(closedBucket(1, "0.86", "0.14"))
	if !ok {
		t.Fatal("no reading")
	}
	if math.Abs(r.Score-0.72) > 1e-12 {
		t.Fatalf("score = %v, want 0.72", r.Score)
	}
	if r.Level != LevelElevated {
		t.Fatalf("level = %s, want ELEVATED", r.Level)
	}
	if !r.Alert {
		t.Fatal("alert flag not set at threshold")
	}
}

func TestHistoryBounded(t *testing.T) {
	w := NewWindow(1, 0.70, 2)
	for i := uint64(1); i <= 5; i++ {
		w.OnBucketClosed(closedBucket(i, "1", "0"))
	}

	recent := w.Recent(0)
	if len(recent) != 2 {
		t.Fatalf("history len = %d, want 2", len(recent))
	}
	if recent[0].BucketID != 4 || recent[1].BucketID != 5 {
		t.Fatalf("history ids = %d,%d, want 4,5", recent[0].BucketID, recent[1].BucketID)
	}

	one := w.Recent(1)
	if len(one) != 1 || one[0].BucketID != 5 {
		t.Fatalf("Recent(1) = %+v", one)
	}
}
