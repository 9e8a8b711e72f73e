package vpin

// Gate debounces alert escalation. A sustained-but-flat alert regime must
// not re-trigger an investigation on every bucket, while genuinely rising
// or persistent toxicity still escalates.
//
// Observe triggers when an alerting reading either
//   - exceeds the last trigger baseline by more than the margin, or
//   - is the third alerting reading in a row.
//
// Non-alerting readings never trigger and reset the streak. The baseline
// only moves on a trigger. Single-writer, like the rest of the core.
type Gate struct {
	margin      float64
	lastTrigger float64
	streak      int
}

const DefaultTriggerMargin = 0.02

func NewGate(margin float64) *Gate {
	return &Gate{margin: margin}
}

func (g *Gate) Observe(r Reading) bool {
	if !r.Alert {
		g.streak = 0
		return false
	}
	g.streak++

	if r.Score > g.lastTrigger+g.margin || g.streak >= 3 {
		g.lastTrigger = r.Score
		return true
	}
	return false
}

// LastTriggerScore is the baseline the margin is measured against.
func (g *Gate) LastTriggerScore() float64 { return g.lastTrigger }
