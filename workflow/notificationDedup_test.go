package workflow

import (
	"sync"
	"testing"
	"time"
)

// NOTE: These tests are intentionally DB-free. They validate the intended
// de-duplication semantics the batch enforces via recent-snapshot lookups:
// - one alert per (stock unit, risk level) within the cooldown
// - a risk level change always re-alerts immediately
// - an expired cooldown re-alerts
//
// Full DB+PubSub integration tests live in the models package behind
// INTEGRATION_TESTS=1.

type fakeAlertGate struct {
	mu       sync.Mutex
	lastSent map[string]time.Time
	cooldown time.Duration
	sent     int
}

func newFakeAlertGate(cooldown time.Duration) *fakeAlertGate {
	return &fakeAlertGate{lastSent: map[string]time.Time{}, cooldown: cooldown}
}

func (g *fakeAlertGate) alert(unitKey, risk string, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := unitKey + "|" + risk
	if last, ok := g.lastSent[key]; ok && now.Sub(last) < g.cooldown {
		return false
	}
	g.lastSent[key] = now
	g.sent++
	return true
}

func TestAlertDedup_SameRiskWithinCooldownSuppressed(t *testing.T) {
	g := newFakeAlertGate(24 * time.Hour)
	now := time.Now()

	if !g.alert("t1:10", "warning", now) {
		t.Fatal("first alert must send")
	}
	if g.alert("t1:10", "warning", now.Add(time.Hour)) {
		t.Fatal("repeat alert inside cooldown must be suppressed")
	}
	if g.sent != 1 {
		t.Fatalf("sent = %d, want 1", g.sent)
	}
}

func TestAlertDedup_RiskChangeAlertsImmediately(t *testing.T) {
	g := newFakeAlertGate(24 * time.Hour)
	now := time.Now()

	g.alert("t1:10", "warning", now)
	if !g.alert("t1:10", "critical", now.Add(time.Minute)) {
		t.Fatal("escalation to a new risk level must send despite the warning cooldown")
	}
	// De-escalation back to warning is still inside the warning cooldown.
	if g.alert("t1:10", "warning", now.Add(2*time.Minute)) {
		t.Fatal("falling back to a recently-alerted level must stay suppressed")
	}
}

func TestAlertDedup_CooldownExpiryReAlerts(t *testing.T) {
	g := newFakeAlertGate(24 * time.Hour)
	now := time.Now()

	g.alert("t1:10", "critical", now)
	if g.alert("t1:10", "critical", now.Add(23*time.Hour)) {
		t.Fatal("23h is inside the cooldown")
	}
	if !g.alert("t1:10", "critical", now.Add(25*time.Hour)) {
		t.Fatal("expired cooldown must re-alert")
	}
}

func TestAlertDedup_DistinctUnitsIndependent(t *testing.T) {
	g := newFakeAlertGate(24 * time.Hour)
	now := time.Now()

	g.alert("t1:10", "warning", now)
	if !g.alert("t1:10:3", "warning", now) {
		t.Fatal("a variation unit must not share the parent product's cooldown")
	}
	if !g.alert("t2:10", "warning", now) {
		t.Fatal("another tenant's unit must not share the cooldown")
	}
	if g.sent != 3 {
		t.Fatalf("sent = %d, want 3", g.sent)
	}
}
