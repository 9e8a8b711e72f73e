package stream

import (
	"context"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"vpinscope.com/internal/agent"
	"vpinscope.com/internal/vpin"
	"vpinscope.com/internal/vpinmetrics"
	"vpinscope.com/pkg/logger"
	"vpinscope.com/pkg/safe"
)

// Investigations runs the alert-gate hand-off off the ingestion critical
// path. At most one investigation is in flight at a time (single slot);
// triggers that arrive while one runs are dropped, not queued; the next
// gate firing will carry fresher readings anyway. The collaborator call
// sits behind a circuit breaker so a dead or slow agent cannot stack up
// timed-out calls.
type Investigations struct {
	inv     agent.Investigator
	bus     *Bus
	breaker *gobreaker.CircuitBreaker[agent.Brief]
	timeout time.Duration

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	busy    bool
	latest  agent.Brief
	hasLast bool
}

func NewInvestigations(inv agent.Investigator, bus *Bus, timeout time.Duration) *Investigations {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Investigations{
		inv: inv,
		bus: bus,
		breaker: gobreaker.NewCircuitBreaker[agent.Brief](gobreaker.Settings{
			Name:    "investigator",
			Timeout: 2 * time.Minute,
		}),
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Trigger starts an investigation for the alerting reading. Returns
// false when no investigator is wired or the slot is occupied.
func (iv *Investigations) Trigger(r vpin.Reading, recent []vpin.Reading) bool {
	if iv == nil || iv.inv == nil {
		return false
	}

	iv.mu.Lock()
	if iv.busy {
		iv.mu.Unlock()
		vpinmetrics.InvestigationsTotal.WithLabelValues("skipped_busy").Inc()
		return false
	}
	iv.busy = true
	ctx := iv.ctx
	iv.mu.Unlock()

	req := agent.Request{
		VPINScore:      r.Score,
		AlertLevel:     r.Level,
		RecentReadings: recent,
	}

	vpinmetrics.InvestigationsTotal.WithLabelValues("started").Inc()
	safe.GoCtx(ctx, func(ctx context.Context) {
		defer func() {
			iv.mu.Lock()
			iv.busy = false
			iv.mu.Unlock()
		}()

		brief, err := iv.breaker.Execute(func() (agent.Brief, error) {
			cctx, cancel := context.WithTimeout(ctx, iv.timeout)
			defer cancel()
			return iv.inv.Investigate(cctx, req)
		})
		if err != nil {
			vpinmetrics.InvestigationsTotal.WithLabelValues("failed").Inc()
			logger.Warn(ctx, "investigation failed",
				zap.Float64("vpin", req.VPINScore),
				zap.String("level", string(req.AlertLevel)),
				zap.Error(err),
			)
			return
		}

		iv.mu.Lock()
		iv.latest = brief
		iv.hasLast = true
		iv.mu.Unlock()

		vpinmetrics.InvestigationsTotal.WithLabelValues("completed").Inc()
		iv.bus.Publish(Event{Type: EventBrief, Payload: brief})
	})
	return true
}

// Latest returns the most recent brief, if any investigation completed.
func (iv *Investigations) Latest() (agent.Brief, bool) {
	if iv == nil {
		return nil, false
	}
	iv.mu.Lock()
	defer iv.mu.Unlock()
	return iv.latest, iv.hasLast
}

// Reset cancels any in-flight investigation and clears the latest brief.
func (iv *Investigations) Reset() {
	if iv == nil {
		return
	}
	iv.mu.Lock()
	iv.cancel()
	iv.ctx, iv.cancel = context.WithCancel(context.Background())
	iv.latest = nil
	iv.hasLast = false
	iv.mu.Unlock()
}
