package source

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"vpinscope.com/internal/marketdata/model"
	"vpinscope.com/internal/vpinmetrics"
	"vpinscope.com/pkg/logger"
	"vpinscope.com/pkg/safe"
)

// Runner keeps one Source alive: on an unexpected disconnect it redials
// with exponential backoff plus jitter. Only the transport restarts;
// consumers downstream of Out keep their state across reconnects.
type Runner struct {
	src Source

	// Out is the unified trade stream; closed when the runner exits.
	Out chan model.Trade

	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func NewRunner(src Source) *Runner {
	return &Runner{
		src:         src,
		Out:         make(chan model.Trade, 64_000),
		BaseBackoff: 300 * time.Millisecond,
		MaxBackoff:  5 * time.Second,
	}
}

func (r *Runner) Run(ctx context.Context) {
	safe.GoCtx(ctx, func(ctx context.Context) {
		defer close(r.Out)
		r.loop(ctx)
	})
}

func (r *Runner) loop(ctx context.Context) {
	backoff := r.BaseBackoff
	for {
		if ctx.Err() != nil {
			return
		}

		start := time.Now()
		err := r.src.Run(ctx, r.Out) // blocks until disconnect, error or cancel
		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}

		// A healthy long-lived session resets the backoff ladder.
		if time.Since(start) > r.MaxBackoff {
			backoff = r.BaseBackoff
		}

		vpinmetrics.ReconnectsTotal.Inc()
		logger.Warn(ctx, "feed disconnected, reconnecting",
			zap.String("source", r.src.Name()),
			zap.Error(err),
			zap.Duration("backoff", backoff),
		)

		// Jitter avoids thundering-herd redials after an exchange blip.
		sleep := backoff + time.Duration(rand.Int63n(int64(backoff/2+1)))
		if sleep > r.MaxBackoff {
			sleep = r.MaxBackoff
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		backoff *= 2
		if backoff > r.MaxBackoff {
			backoff = r.MaxBackoff
		}
	}
}
