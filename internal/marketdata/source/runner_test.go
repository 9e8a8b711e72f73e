package source

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"vpinscope.com/internal/marketdata/model"
	"vpinscope.com/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Init("test", "error")
	os.Exit(m.Run())
}

// flakySource fails its first `failures` sessions, then emits one trade
// and blocks until cancelled.
type flakySource struct {
	failures int

	mu   sync.Mutex
	runs int
}

func (f *flakySource) Name() string { return "flaky" }

func (f *flakySource) Run(ctx context.Context, out chan<- model.Trade) error {
	f.mu.Lock()
	f.runs++
	n := f.runs
	f.mu.Unlock()

	if n <= f.failures {
		return errors.New("connection reset")
	}

	select {
	case out <- model.Trade{Qty: decimal.NewFromInt(1), Aggressor: model.SideBuy}:
	case <-ctx.Done():
		return ctx.Err()
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *flakySource) sessions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs
}

func TestRunnerReconnectsAfterFailures(t *testing.T) {
	src := &flakySource{failures: 2}
	r := NewRunner(src)
	r.BaseBackoff = time.Millisecond
	r.MaxBackoff = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Run(ctx)

	select {
	case tr := <-r.Out:
		if tr.Qty.IsZero() {
			t.Fatal("got empty trade")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no trade after reconnects")
	}

	if got := src.sessions(); got != 3 {
		t.Fatalf("sessions = %d, want 3 (two failed, one live)", got)
	}
}

func TestRunnerStopsOnCancel(t *testing.T) {
	src := &flakySource{}
	r := NewRunner(src)
	r.BaseBackoff = time.Millisecond
	r.MaxBackoff = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	r.Run(ctx)

	// Drain the one trade, then cancel; Out must close.
	<-r.Out
	cancel()

	select {
	case _, ok := <-r.Out:
		if ok {
			// A buffered trade is fine; wait for the close.
			for range r.Out {
			}
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Out not closed after cancel")
	}
}

func TestRunnerStopsOnCleanExit(t *testing.T) {
	// A source returning nil means an intentional shutdown, no redial.
	src := sourceFunc(func(ctx context.Context, out chan<- model.Trade) error {
		return nil
	})
	r := NewRunner(src)
	r.Run(context.Background())

	select {
	case _, ok := <-r.Out:
		if ok {
			t.Fatal("unexpected trade")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runner kept redialing after clean exit")
	}
}

type sourceFunc func(ctx context.Context, out chan<- model.Trade) error

func (f sourceFunc) Name() string { return "func" }
func (f sourceFunc) Run(ctx context.Context, out chan<- model.Trade) error {
	return f(ctx, out)
}
