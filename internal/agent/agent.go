// Package agent defines the hand-off contract to the investigative
// collaborator. The collaborator itself (an LLM-backed analyst) lives
// outside this service; here it is only an interface the stream layer
// calls when the alert gate fires.
package agent

import (
	"context"

	"vpinscope.com/internal/vpin"
)

// Request carries the alerting reading's context plus the recent reading
// history, oldest first.
type Request struct {
	VPINScore      float64
	AlertLevel     vpin.AlertLevel
	RecentReadings []vpin.Reading
}

// Brief is the collaborator's result. It is opaque to the core: the
// service republishes it verbatim as an intelligence_brief event.
type Brief map[string]any

type Investigator interface {
	Investigate(ctx context.Context, req Request) (Brief, error)
}

// Func adapts a plain function to the Investigator interface.
type Func func(ctx context.Context, req Request) (Brief, error)

func (f Func) Investigate(ctx context.Context, req Request) (Brief, error) {
	return f(ctx, req)
}
