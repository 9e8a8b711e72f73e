package stream

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"vpinscope.com/internal/marketdata/model"
	"vpinscope.com/internal/marketdata/source"
	"vpinscope.com/internal/vpin"
	"vpinscope.com/internal/vpinmetrics"
	"vpinscope.com/pkg/logger"
	"vpinscope.com/pkg/safe"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "stopped"
	}
}

// Config holds the computation parameters. Zero values fall back to the
// standard VPIN setup: 1.0-unit buckets, 50-bucket window, 0.70 alert
// threshold, 0.02 trigger margin.
type Config struct {
	Symbol         string
	BucketSize     decimal.Decimal
	WindowSize     int
	AlertThreshold float64
	TriggerMargin  float64
	HistorySize    int
}

func (c Config) withDefaults() Config {
	if c.BucketSize.IsZero() {
		c.BucketSize = decimal.NewFromInt(1)
	}
	if c.WindowSize <= 0 {
		c.WindowSize = 50
	}
	if c.AlertThreshold == 0 {
		c.AlertThreshold = 0.70
	}
	if c.TriggerMargin == 0 {
		c.TriggerMargin = vpin.DefaultTriggerMargin
	}
	if c.HistorySize <= 0 {
		c.HistorySize = vpin.DefaultHistoryCap
	}
	return c
}

// SourceFactory builds a fresh feed connection driver for each started
// ingestion task.
type SourceFactory func() source.Source

// Status is the operator-facing snapshot.
type Status struct {
	Running        bool             `json:"running"`
	State          string           `json:"state"`
	TradeCount     uint64           `json:"trade_count"`
	BucketsClosed  uint64           `json:"buckets_closed"`
	RejectedTrades uint64           `json:"rejected_trades"`
	CurrentVPIN    *float64         `json:"current_vpin"`
	LatestPrice    *decimal.Decimal `json:"latest_price,omitempty"`
	Subscribers    int              `json:"connected_subscribers"`
}

// Supervisor owns the ingestion task's lifecycle and the single-writer
// computation core (accumulator, window, gate). Exactly one ingestion
// path is ever live: Start is idempotent, Stop awaits cooperative
// termination, Reset rebuilds the core at the configured parameters.
//
// The trade→bucket→score→gate path is synchronous and strictly ordered,
// so bucket ids increase monotonically and all readings from one trade
// are published in order before the next trade is touched. Bus delivery
// and investigations run on their own goroutines and are never awaited
// here.
type Supervisor struct {
	cfg       Config
	newSource SourceFactory
	bus       *Bus
	inv       *Investigations

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}

	// Core state, touched only by the ingestion goroutine while running
	// and by Reset while stopped.
	acc  *vpin.Accumulator
	win  *vpin.Window
	gate *vpin.Gate

	// Mirrors for the status surface; the core itself stays lock-free.
	tradeCount    atomic.Uint64
	bucketsClosed atomic.Uint64
	rejected      atomic.Uint64
	score         atomic.Pointer[float64]
	price         atomic.Pointer[decimal.Decimal]
}

func NewSupervisor(cfg Config, newSource SourceFactory, bus *Bus, inv *Investigations) *Supervisor {
	cfg = cfg.withDefaults()
	s := &Supervisor{
		cfg:       cfg,
		newSource: newSource,
		bus:       bus,
		inv:       inv,
	}
	s.rebuildCore()
	return s
}

func (s *Supervisor) rebuildCore() {
	s.acc = vpin.NewAccumulator(s.cfg.BucketSize)
	s.win = vpin.NewWindow(s.cfg.WindowSize, s.cfg.AlertThreshold, s.cfg.HistorySize)
	s.gate = vpin.NewGate(s.cfg.TriggerMargin)
	s.tradeCount.Store(0)
	s.bucketsClosed.Store(0)
	s.rejected.Store(0)
	s.score.Store(nil)
	s.price.Store(nil)
}

// Start spawns the ingestion task. Returns false (no transition) when a
// live task already exists.
func (s *Supervisor) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateStopped {
		return false
	}
	s.state = StateStarting

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	safe.GoCtx(ctx, func(ctx context.Context) {
		defer func() {
			s.mu.Lock()
			if s.state == StateRunning {
				// Natural exit without an explicit Stop.
				s.state = StateStopped
			}
			s.mu.Unlock()
			close(done)
		}()
		s.run(ctx)
	})

	s.state = StateRunning
	logger.Info(ctx, "stream started", zap.String("symbol", s.cfg.Symbol))
	return true
}

// Stop cancels the ingestion task and waits for it to wind down. Returns
// false when nothing was running.
func (s *Supervisor) Stop() bool {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return false
	}
	s.state = StateStopping
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done

	s.mu.Lock()
	s.state = StateStopped
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	logger.Info(context.Background(), "stream stopped", zap.String("symbol", s.cfg.Symbol))
	return true
}

// Reset stops the stream if needed, discards the accumulator, window and
// gate (fresh state at the configured parameters), cancels any in-flight
// investigation, clears the bus backfill history and optionally restarts.
// Returns whether a running task was stopped and/or restarted.
func (s *Supervisor) Reset(restart bool) bool {
	stopped := s.Stop()

	s.mu.Lock()
	s.rebuildCore()
	s.mu.Unlock()

	s.inv.Reset()
	s.bus.ResetHistory()
	s.bus.Publish(Event{Type: EventReset, Payload: s.Status()})

	started := false
	if restart {
		started = s.Start()
	}
	return stopped || started
}

func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateRunning
}

func (s *Supervisor) Status() Status {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	return Status{
		Running:        state == StateRunning,
		State:          state.String(),
		TradeCount:     s.tradeCount.Load(),
		BucketsClosed:  s.bucketsClosed.Load(),
		RejectedTrades: s.rejected.Load(),
		CurrentVPIN:    s.score.Load(),
		LatestPrice:    s.price.Load(),
		Subscribers:    s.bus.SubscriberCount(),
	}
}

func (s *Supervisor) run(ctx context.Context) {
	runner := source.NewRunner(s.newSource())
	runner.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-runner.Out:
			if !ok {
				return
			}
			s.process(t)
		}
	}
}

// process is the synchronous hot path: one trade in, zero or more
// readings published, strictly in bucket-id order. Bus.Publish only
// enqueues, so a slow subscriber cannot stall this loop.
func (s *Supervisor) process(t model.Trade) {
	vpinmetrics.TradesIngestedTotal.Inc()
	s.tradeCount.Add(1)
	price := t.Price
	s.price.Store(&price)

	if t.Qty.IsNegative() {
		vpinmetrics.TradesRejectedTotal.Inc()
		s.rejected.Add(1)
	}

	for _, b := range s.acc.Ingest(t) {
		vpinmetrics.BucketsClosedTotal.Inc()
		s.bucketsClosed.Add(1)

		r, ok := s.win.OnBucketClosed(b)
		if !ok {
			continue
		}

		score := r.Score
		s.score.Store(&score)
		vpinmetrics.Score.Set(score)
		vpinmetrics.AlertsTotal.WithLabelValues(string(r.Level)).Inc()
		vpinmetrics.ReadingsPublishedTotal.Inc()

		s.bus.Publish(Event{
			Type:    EventReading,
			Payload: readingPayload(r, s.tradeCount.Load(), &price),
		})

		if s.gate.Observe(r) {
			s.inv.Trigger(r, s.win.Recent(0))
		}
	}
}
