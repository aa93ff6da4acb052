package netmon

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeProber struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (f *fakeProber) Probe(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *fakeProber) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func TestCheckResolvesState(t *testing.T) {
	prober := &fakeProber{}
	m := NewMonitor(prober, Config{})

	if m.Check(context.Background()) != true {
		t.Error("Expected online after successful probe")
	}
	if m.CurrentState() != StateOnline {
		t.Errorf("Expected StateOnline, got %s", m.CurrentState())
	}

	prober.setErr(errors.New("no route to host"))
	if m.Check(context.Background()) != false {
		t.Error("Expected offline after failed probe")
	}
	if m.CurrentState() != StateOffline {
		t.Errorf("Expected StateOffline, got %s", m.CurrentState())
	}
}

func TestInitialStateSeed(t *testing.T) {
	m := NewMonitor(&fakeProber{}, Config{InitialOnline: true})
	if !m.IsOnline() {
		t.Error("Expected seeded online state before first probe")
	}

	m = NewMonitor(&fakeProber{}, Config{})
	if m.IsOnline() {
		t.Error("Expected seeded offline state by default")
	}
}

// Handlers fire once per edge, not once per check.
func TestTransitionFiresOncePerEdge(t *testing.T) {
	prober := &fakeProber{}
	m := NewMonitor(prober, Config{})

	var mu sync.Mutex
	var edges []bool
	m.OnTransition(func(online bool) {
		mu.Lock()
		edges = append(edges, online)
		mu.Unlock()
	})

	ctx := context.Background()
	m.Check(ctx) // offline -> online
	m.Check(ctx) // still online, no edge
	m.Check(ctx)
	prober.setErr(errors.New("timeout"))
	m.Check(ctx) // online -> offline
	m.Check(ctx) // still offline, no edge
	prober.setErr(nil)
	m.Check(ctx) // offline -> online

	mu.Lock()
	defer mu.Unlock()
	want := []bool{true, false, true}
	if len(edges) != len(want) {
		t.Fatalf("Expected %d transitions, got %v", len(want), edges)
	}
	for i := range want {
		if edges[i] != want[i] {
			t.Errorf("Transition %d: expected %v, got %v", i, want[i], edges[i])
		}
	}
}

func TestIsOnlineUndisturbedWhileChecking(t *testing.T) {
	m := NewMonitor(&fakeProber{}, Config{InitialOnline: true})

	m.mu.Lock()
	m.state = StateChecking
	m.mu.Unlock()

	if !m.IsOnline() {
		t.Error("Expected last resolved answer while a check is in flight")
	}
}

func TestStartProbesImmediatelyAndStops(t *testing.T) {
	prober := &fakeProber{err: errors.New("down")}
	m := NewMonitor(prober, Config{Interval: time.Hour, InitialOnline: true})

	m.Start(context.Background())
	// The immediate check corrects the optimistic seed.
	deadline := time.After(2 * time.Second)
	for m.IsOnline() {
		select {
		case <-deadline:
			t.Fatal("Expected immediate probe to flip state offline")
		case <-time.After(10 * time.Millisecond):
		}
	}
	m.Stop()
	m.Stop() // idempotent

	prober.mu.Lock()
	calls := prober.calls
	prober.mu.Unlock()
	if calls != 1 {
		t.Errorf("Expected exactly the immediate probe, got %d", calls)
	}
}

func TestStateString(t *testing.T) {
	if StateOnline.String() != "online" || StateOffline.String() != "offline" || StateChecking.String() != "checking" {
		t.Error("Unexpected state names")
	}
}
