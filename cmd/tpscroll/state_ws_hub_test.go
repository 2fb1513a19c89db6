package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"
)

// NOTE: These tests focus on hub behavior (fanout + slow-client
// disconnection) and the broadcaster's delta coalescing, without standing
// up a real websocket server.
//
// We intentionally avoid relying on network I/O. We construct Clients
// with a nil websocket.Conn and ensure our test paths never require
// actual writes. For eviction, the hub calls conn.Close(); nil is safe
// (hub guards against nil).

// newTestHub returns a hub with small buffers for deterministic tests.
func newTestHub(t *testing.T, sendBuf int, broadcastBuf int) *Hub {
	t.Helper()
	return NewHub(slog.Default(), HubConfig{
		SendBuf:      sendBuf,
		BroadcastBuf: broadcastBuf,
	})
}

func newTestClient(hub *Hub, name string, sendBuf int) *Client {
	return &Client{
		hub:        hub,
		conn:       nil,
		send:       make(chan []byte, sendBuf),
		remoteAddr: name,
		logger:     slog.Default(),
	}
}

func registerAndWait(t *testing.T, hub *Hub, c *Client) {
	t.Helper()
	hub.register <- c
	if !waitUntil(t, 500*time.Millisecond, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		_, ok := hub.clients[c]
		return ok
	}) {
		t.Fatalf("client %s not registered in time", c.remoteAddr)
	}
}

func TestHub_BroadcastDeliveredToAllClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := newTestHub(t, 4, 8)

	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.Run(ctx)
	}()

	c1 := newTestClient(hub, "c1", 4)
	c2 := newTestClient(hub, "c2", 4)
	registerAndWait(t, hub, c1)
	registerAndWait(t, hub, c2)

	msg := []byte(`{"type":"session_idle"}`)

	// Avoid BroadcastBytes() here because it is intentionally
	// non-blocking and may drop if the hub broadcast queue is temporarily
	// full during scheduling.
	hub.broadcast <- msg

	for _, c := range []*Client{c1, c2} {
		select {
		case got := <-c.send:
			if string(got) != string(msg) {
				t.Fatalf("client %s got %q, want %q", c.remoteAddr, got, msg)
			}
		case <-time.After(500 * time.Millisecond):
			t.Fatalf("timeout waiting for client %s to receive broadcast", c.remoteAddr)
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for hub to stop")
	}
}

func TestHub_SlowClientDisconnectedOnFullSendBuffer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// sendBuf=1 so we can fill it easily; broadcastBuf ample.
	hub := newTestHub(t, 1, 8)

	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.Run(ctx)
	}()

	// Slow client: send buffer will fill and we never drain it.
	slow := newTestClient(hub, "slow", 1)
	// Fast client: we will drain its channel.
	fast := newTestClient(hub, "fast", 8)

	registerAndWait(t, hub, slow)
	registerAndWait(t, hub, fast)

	// Pre-fill slow client buffer to simulate it being stuck.
	slow.send <- []byte(`"already queued"`)

	// Broadcast should attempt to enqueue to slow, hit default, and
	// disconnect it, while still delivering to fast.
	msg := []byte(`{"type":"mode_changed","data":{"mode":"classic"}}`)
	hub.broadcast <- msg

	select {
	case got := <-fast.send:
		if string(got) != string(msg) {
			t.Fatalf("fast client got %q, want %q", got, msg)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timeout waiting for fast client to receive broadcast")
	}

	// The slow client should be disconnected and its send channel closed.
	// (There may still be the pre-filled message in the buffer; drain it
	// first.)
	select {
	case <-slow.send:
	default:
	}

	if !waitUntil(t, 750*time.Millisecond, func() bool {
		select {
		case _, ok := <-slow.send:
			return !ok
		default:
			return false
		}
	}) {
		t.Fatal("expected slow send channel to be closed")
	}
}

// TestRunBroadcaster_CoalescesDeltas tests that a burst of delta frames
// collapses (latest-wins) while lifecycle frames pass through immediately
func TestRunBroadcaster_CoalescesDeltas(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := newTestHub(t, 64, 64)
	go hub.Run(ctx)

	client := newTestClient(hub, "observer", 64)
	registerAndWait(t, hub, client)

	src := make(chan StateBroadcast, 64)
	broadcasterDone := make(chan struct{})
	go func() {
		defer close(broadcasterDone)
		RunBroadcaster(ctx, hub, src, slog.Default())
	}()

	// A burst of deltas well inside one coalesce window.
	for i := 1; i <= 10; i++ {
		src <- BroadcastDelta{Delta: Delta{Axis: AxisVertical, Value: int32(i)}, At: time.Now()}
	}
	// A lifecycle frame flushes the pending delta and passes through.
	src <- BroadcastSessionIdle{At: time.Now()}
	close(src)

	select {
	case <-broadcasterDone:
	case <-time.After(time.Second):
		t.Fatal("broadcaster did not stop when source ended")
	}

	var types []string
	var deltaValues []int32
	drain := true
	for drain {
		select {
		case msg := <-client.send:
			var env struct {
				Type string `json:"type"`
				Data struct {
					Value int32 `json:"value"`
				} `json:"data"`
			}
			if err := json.Unmarshal(msg, &env); err != nil {
				t.Fatalf("bad frame %s: %v", msg, err)
			}
			types = append(types, env.Type)
			if env.Type == "delta" {
				deltaValues = append(deltaValues, env.Data.Value)
			}
		case <-time.After(200 * time.Millisecond):
			drain = false
		}
	}

	if len(deltaValues) == 0 {
		t.Fatal("expected at least one delta frame")
	}
	if len(deltaValues) >= 10 {
		t.Errorf("expected the burst to be coalesced, got %d delta frames", len(deltaValues))
	}
	if last := deltaValues[len(deltaValues)-1]; last != 10 {
		t.Errorf("expected latest-wins coalescing to end at value 10, got %d", last)
	}
	if types[len(types)-1] != "session_idle" {
		t.Errorf("expected session_idle as the final frame, got %v", types)
	}
}
