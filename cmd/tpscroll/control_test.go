package main

import (
	"sync"
	"testing"
	"time"
)

// mockSink records emitted events; safe for concurrent use since the
// smooth controller's worker calls it from its own goroutine.
type mockSink struct {
	mu     sync.Mutex
	deltas []Delta
	clicks int
}

func (m *mockSink) SendWheel(delta Delta) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deltas = append(m.deltas, delta)
}

func (m *mockSink) SendMiddleClick() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clicks++
}

func (m *mockSink) snapshot() ([]Delta, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Delta(nil), m.deltas...), m.clicks
}

func (m *mockSink) totalEmitted() int32 {
	deltas, _ := m.snapshot()
	return sumDeltas(deltas)
}

// waitUntil polls cond until it holds or the deadline passes.
func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}

// TestClassicControl_PassThrough tests that classic mode emits one full
// detent per input tick, synchronously
func TestClassicControl_PassThrough(t *testing.T) {
	sink := &mockSink{}
	ctrl := NewScrollControl(ScrollModeClassic, sink, EngineConfig{}, nil)
	defer ctrl.Close()

	ctrl.Tick(WheelTick{Axis: AxisVertical, Value: -1})
	ctrl.Tick(WheelTick{Axis: AxisHorizontal, Value: 2})
	ctrl.Stop() // no-op in classic mode

	deltas, _ := sink.snapshot()
	if len(deltas) != 2 {
		t.Fatalf("expected 2 deltas, got %d", len(deltas))
	}
	if deltas[0] != (Delta{Axis: AxisVertical, Value: -WheelUnit}) {
		t.Errorf("unexpected first delta: %+v", deltas[0])
	}
	if deltas[1] != (Delta{Axis: AxisHorizontal, Value: 2 * WheelUnit}) {
		t.Errorf("unexpected second delta: %+v", deltas[1])
	}
}

// TestClassicControl_MiddleClick tests click pass-through
func TestClassicControl_MiddleClick(t *testing.T) {
	sink := &mockSink{}
	ctrl := NewScrollControl(ScrollModeClassic, sink, EngineConfig{}, nil)
	defer ctrl.Close()

	ctrl.MiddleClick()

	if _, clicks := sink.snapshot(); clicks != 1 {
		t.Errorf("expected 1 click, got %d", clicks)
	}
}

// TestSmoothControl_EmitsAndGoesIdle tests the full lifecycle: a tick
// starts emission, the stream winds down, and the clock goes quiet
func TestSmoothControl_EmitsAndGoesIdle(t *testing.T) {
	sink := &mockSink{}
	cfg := EngineConfig{TickHz: 500, MinFeedInterval: 0.015, MaxFeedInterval: 0.1, BufferDrainDuration: 0.02}
	ctrl := NewScrollControl(ScrollModeSmooth, sink, cfg, nil)
	defer ctrl.Close()

	ctrl.Tick(WheelTick{Axis: AxisVertical, Value: 1})

	if !waitUntil(t, 2*time.Second, func() bool { return sink.totalEmitted() > 0 }) {
		t.Fatal("smooth controller never emitted")
	}

	// Session exhausts itself: emission total stops growing.
	var settled int32
	if !waitUntil(t, 5*time.Second, func() bool {
		total := sink.totalEmitted()
		if total == settled {
			return true
		}
		settled = total
		return false
	}) {
		t.Fatal("smooth controller never went idle")
	}

	deltas, _ := sink.snapshot()
	for _, d := range deltas {
		if d.Axis != AxisVertical || d.Value < 0 {
			t.Fatalf("unexpected delta %+v", d)
		}
	}
}

// TestSmoothControl_StopCutsSessionShort tests that Stop ends emission
// with no drain-out
func TestSmoothControl_StopCutsSessionShort(t *testing.T) {
	sink := &mockSink{}
	cfg := EngineConfig{TickHz: 500, MinFeedInterval: 0.015, MaxFeedInterval: 0.3, BufferDrainDuration: 0.05}
	ctrl := NewScrollControl(ScrollModeSmooth, sink, cfg, nil)
	defer ctrl.Close()

	ctrl.Tick(WheelTick{Axis: AxisVertical, Value: 3})
	waitUntil(t, 2*time.Second, func() bool { return sink.totalEmitted() > 0 })

	ctrl.Stop()
	ctrl.Stop() // idempotent

	// Allow at most one in-flight tick to land, then expect silence.
	time.Sleep(20 * time.Millisecond)
	after := sink.totalEmitted()
	time.Sleep(50 * time.Millisecond)
	if final := sink.totalEmitted(); final != after {
		t.Errorf("expected no emission after Stop: before=%d after=%d", after, final)
	}
}

// TestSmoothControl_MiddleClickBypassesEngine tests that clicks do not
// touch the scroll session
func TestSmoothControl_MiddleClickBypassesEngine(t *testing.T) {
	sink := &mockSink{}
	ctrl := NewScrollControl(ScrollModeSmooth, sink, EngineConfig{TickHz: 500}, nil)
	defer ctrl.Close()

	ctrl.MiddleClick()

	deltas, clicks := sink.snapshot()
	if clicks != 1 {
		t.Errorf("expected 1 click, got %d", clicks)
	}
	if len(deltas) != 0 {
		t.Errorf("expected no deltas from a click, got %d", len(deltas))
	}
}

// TestSmoothControl_CloseJoinsWorker tests that Close waits for the
// worker and its clock to exit
func TestSmoothControl_CloseJoinsWorker(t *testing.T) {
	sink := &mockSink{}
	ctrl := NewScrollControl(ScrollModeSmooth, sink, EngineConfig{TickHz: 500}, nil)

	ctrl.Tick(WheelTick{Axis: AxisHorizontal, Value: 1})

	done := make(chan struct{})
	go func() {
		ctrl.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not join the worker")
	}
}

// TestSmoothControl_BroadcastsLifecycle tests that session start, delta
// and idle broadcasts are offered to the channel
func TestSmoothControl_BroadcastsLifecycle(t *testing.T) {
	sink := &mockSink{}
	broadcasts := make(chan StateBroadcast, 1024)
	cfg := EngineConfig{TickHz: 500, MinFeedInterval: 0.015, MaxFeedInterval: 0.1, BufferDrainDuration: 0.02}
	ctrl := NewScrollControl(ScrollModeSmooth, sink, cfg, broadcasts)
	defer ctrl.Close()

	ctrl.Tick(WheelTick{Axis: AxisVertical, Value: 1})

	seen := map[string]bool{}
	deadline := time.After(5 * time.Second)
	for !(seen["session_started"] && seen["delta"] && seen["session_idle"]) {
		select {
		case b := <-broadcasts:
			seen[b.broadcastType()] = true
		case <-deadline:
			t.Fatalf("missing broadcasts, saw %v", seen)
		}
	}
}
