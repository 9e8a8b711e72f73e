package vpin

import "testing"

func alerting(score float64) Reading {
	return Reading{Score: score, Alert: true}
}

func calm(score float64) Reading {
	return Reading{Score: score, Alert: false}
}

func TestGateNonAlertNeverTriggers(t *testing.T) {
	g := NewGate(DefaultTriggerMargin)
	for _, s := range []float64{0.1, 0.4, 0.69} {
		if g.Observe(calm(s)) {
			t.Fatalf("triggered on non-alerting score %v", s)
		}
	}
}

func TestGateMarginDebounce(t *testing.T) {
	g := NewGate(0.02)

	// First alerting reading clears the zero baseline.
	if !g.Observe(alerting(0.71)) {
		t.Fatal("first alerting reading did not trigger")
	}
	if g.LastTriggerScore() != 0.71 {
		t.Fatalf("baseline = %v, want 0.71", g.LastTriggerScore())
	}

	// Within the margin of the baseline: suppressed.
	if g.Observe(alerting(0.72)) {
		t.Fatal("triggered within margin")
	}

	// Clearly above baseline+margin: escalates and moves the baseline.
	if !g.Observe(alerting(0.76)) {
		t.Fatal("did not trigger above margin")
	}
	if g.LastTriggerScore() != 0.76 {
		t.Fatalf("baseline = %v, want 0.76", g.LastTriggerScore())
	}
}

func TestGatePersistentRegimeTriggersOnThirdReading(t *testing.T) {
	g := NewGate(0.02)
	g.Observe(alerting(0.80)) // trigger, streak 1

	if g.Observe(alerting(0.80)) {
		t.Fatal("flat second reading triggered")
	}
	// Third consecutive alerting reading fires regardless of the margin.
	if !g.Observe(alerting(0.80)) {
		t.Fatal("third consecutive alerting reading did not trigger")
	}
}

func TestGateStreakResetByCalmReading(t *testing.T) {
	g := NewGate(0.02)
	g.Observe(alerting(0.80)) // trigger, baseline 0.80

	g.Observe(alerting(0.80)) // streak 2
	g.Observe(calm(0.40))     // streak back to 0

	if g.Observe(alerting(0.80)) {
		t.Fatal("streak survived a calm reading")
	}
	if g.Observe(alerting(0.80)) {
		t.Fatal("streak 2 should not trigger")
	}
	if !g.Observe(alerting(0.80)) {
		t.Fatal("rebuilt streak of 3 should trigger")
	}
}

func TestGateBaselineOnlyMovesOnTrigger(t *testing.T) {
	g := NewGate(0.02)
	g.Observe(alerting(0.75))

	g.Observe(alerting(0.76)) // suppressed
	if g.LastTriggerScore() != 0.75 {
		t.Fatalf("baseline moved on suppressed reading: %v", g.LastTriggerScore())
	}
}
