package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// State WebSocket: hub + per-client pumps + broadcaster.
//
// Observers (debug tooling, on-screen scroll indicators) connect here and
// receive engine state changes as JSON text frames with an envelope:
// {type, ts, data}. Delta frames arrive at the engine tick rate, far
// faster than any UI needs, so the broadcaster coalesces them
// (latest-wins) before fanout. Slow clients are disconnected when their
// send buffer fills so one stuck observer cannot block the rest.

// wsHelloData is the JSON `data` payload for the WS "hello" event sent on
// connect.
type wsHelloData struct {
	Version string `json:"version"`
}

// wsSessionStartedData is the JSON `data` payload for "session_started".
type wsSessionStartedData struct {
	Axis      string `json:"axis"`
	Direction int    `json:"direction"`
}

// wsDeltaData is the JSON `data` payload for "delta".
type wsDeltaData struct {
	Axis  string `json:"axis"`
	Value int32  `json:"value"`
}

// wsModeChangedData is the JSON `data` payload for "mode_changed".
type wsModeChangedData struct {
	Mode string `json:"mode"`
}

// wsOutboundEvent is a pre-typed, externally-consumable state event.
type wsOutboundEvent struct {
	Type string
	Data any
	At   time.Time // optional timestamp; zero means use now
}

// envelope is the wire format envelope for WS messages.
type envelope struct {
	Type string      `json:"type"`
	Ts   *time.Time  `json:"ts,omitempty"`
	Data interface{} `json:"data,omitempty"`
}

type Hub struct {
	logger *slog.Logger

	// Buffered broadcast channel for already-serialized JSON frames.
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.Mutex
	clients map[*Client]struct{}

	sendBuf int
}

type HubConfig struct {
	// SendBuf is the per-client outbound queue size.
	// If zero, a conservative default is used.
	SendBuf int

	// BroadcastBuf is the hub inbound broadcast queue size.
	// If zero, a conservative default is used.
	BroadcastBuf int
}

// NewHub constructs a hub. Call Run(ctx) to start it.
func NewHub(logger *slog.Logger, cfg HubConfig) *Hub {
	sendBuf := cfg.SendBuf
	if sendBuf <= 0 {
		sendBuf = 32
	}
	bcastBuf := cfg.BroadcastBuf
	if bcastBuf <= 0 {
		bcastBuf = 128
	}

	return &Hub{
		logger:     logger,
		broadcast:  make(chan []byte, bcastBuf),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		clients:    make(map[*Client]struct{}),
		sendBuf:    sendBuf,
	}
}

// Run processes hub events until ctx is canceled.
// It disconnects all clients on shutdown.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("ws hub starting")

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("ws hub stopping (context canceled)")
			h.closeAllClients()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws client registered", "remote_addr", c.remoteAddr, "clients", n)

		case c := <-h.unregister:
			h.removeClient(c, "unregister")

		case msg := <-h.broadcast:
			// Avoid mutating the clients map while ranging over it.
			// Collect slow clients first, then remove them after we unlock.
			var slow []*Client

			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.Unlock()

			for _, c := range slow {
				h.removeClient(c, "slow_client")
			}
		}
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.conn != nil {
			_ = c.conn.Close()
		}
		close(c.send)
		delete(h.clients, c)
	}
}

func (h *Hub) removeClient(c *Client, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		if c.conn != nil {
			_ = c.conn.Close()
		}
		// Closing send signals writePump to exit.
		// Guard against double-close by recovering (best-effort).
		safeCloseChan(c.send)

		h.logger.Info("ws client disconnected", "remote_addr", c.remoteAddr, "reason", reason, "clients", n)
	}
}

func safeCloseChan(ch chan []byte) {
	defer func() {
		_ = recover() // ignore "close of closed channel"
	}()
	close(ch)
}

// BroadcastBytes enqueues a pre-serialized JSON WS frame for broadcast.
// It never blocks; if the hub queue is full it drops the message.
func (h *Hub) BroadcastBytes(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("ws hub broadcast queue full, dropping message", "bytes", len(msg))
	}
}

type Client struct {
	hub *Hub

	conn *websocket.Conn
	send chan []byte

	remoteAddr string
	logger     *slog.Logger
}

// NewClient creates a client with a buffered send channel.
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string, logger *slog.Logger) *Client {
	sendBuf := 32
	if hub != nil && hub.sendBuf > 0 {
		sendBuf = hub.sendBuf
	}
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBuf),
		remoteAddr: remoteAddr,
		logger:     logger,
	}
}

const (
	writeWait = 5 * time.Second

	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second
)

// wsDeltaCoalesceWindow is the maximum time window during which bursty
// delta frames are coalesced (latest-wins) before broadcasting.
const wsDeltaCoalesceWindow = 50 * time.Millisecond

// closeStatus extracts a human-readable websocket close code / text when possible.
func closeStatus(err error) (code int, text string, ok bool) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text, true
	}
	return 0, "", false
}

// writePump writes messages from the send queue to the websocket.
// It exits on write error or when send is closed.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Channel closed: hub is disconnecting us.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					if code, text, ok := closeStatus(err); ok {
						c.logger.Info("ws writePump exiting (close)", "remote_addr", c.remoteAddr, "code", code, "reason", text)
					} else {
						c.logger.Info("ws writePump exiting (write error)", "remote_addr", c.remoteAddr, "error", err)
					}
				}
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					if code, text, ok := closeStatus(err); ok {
						c.logger.Info("ws writePump exiting (close)", "remote_addr", c.remoteAddr, "code", code, "reason", text)
					} else {
						c.logger.Info("ws writePump exiting (ping error)", "remote_addr", c.remoteAddr, "error", err)
					}
				}
				return
			}
		}
	}
}

// readPump reads and discards incoming messages to detect disconnects and handle control frames.
// It exits on read error, then unregisters the client.
func (c *Client) readPump(ctx context.Context) {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			// Continue to read.
		}

		_, _, err := c.conn.ReadMessage()
		if err != nil {
			// Normal close is expected on client disconnect.
			if !errors.Is(err, websocket.ErrCloseSent) {
				if code, text, ok := closeStatus(err); ok {
					c.logger.Info("ws readPump exiting (close)", "remote_addr", c.remoteAddr, "code", code, "reason", text)
				} else {
					c.logger.Info("ws readPump exiting (read error)", "remote_addr", c.remoteAddr, "error", err)
				}
			}

			if c.hub != nil {
				c.hub.unregister <- c
			}
			return
		}
	}
}

type Server struct {
	logger *slog.Logger

	hub *Hub
}

type ServerConfig struct {
	Hub HubConfig
}

// NewServer constructs the WS state server components. Call Register on a
// mux, start hub.Run(ctx), and start the broadcaster loop.
func NewServer(logger *slog.Logger, cfg ServerConfig) *Server {
	hub := NewHub(logger, cfg.Hub)
	return &Server{
		logger: logger,
		hub:    hub,
	}
}

func (s *Server) Hub() *Hub { return s.hub }

// Register registers the WS handler on the provided mux.
func (s *Server) Register(mux *http.ServeMux, path string) {
	if mux == nil {
		return
	}
	mux.HandleFunc(path, s.handleStateWS)
}

var upgrader = websocket.Upgrader{
	// Observer-only local endpoint; no origin restrictions.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleStateWS upgrades and registers a client, then sends a hello frame.
func (s *Server) handleStateWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "error", err)
		return
	}

	client := NewClient(s.hub, conn, r.RemoteAddr, s.logger)

	// Register client first so broadcasts can reach it.
	s.hub.register <- client

	// Do not tie the pumps to the HTTP request context (r.Context()).
	// net/http cancels the request context when the handler returns, which
	// would prematurely stop the pumps and cause abnormal WS closures
	// (e.g. code 1006). The connection lifetime is instead managed by the
	// hub (close/unregister) and by the websocket read/write errors.
	go client.writePump(context.Background())
	go client.readPump(context.Background())

	now := time.Now().UTC()
	helloMsg, mErr := json.Marshal(envelope{
		Type: "hello",
		Ts:   &now,
		Data: wsHelloData{Version: version},
	})
	if mErr == nil {
		select {
		case client.send <- helloMsg:
		default:
			s.hub.unregister <- client
		}
	}
}

// RunBroadcaster reads engine-emitted StateBroadcast events, marshals
// them, and broadcasts them to all hub clients. Intended to run as a
// single goroutine.
func RunBroadcaster(ctx context.Context, hub *Hub, src <-chan StateBroadcast, logger *slog.Logger) {
	if hub == nil || src == nil {
		return
	}

	// Rate-limit bursty delta frames: flush the latest pending delta at
	// most once every wsDeltaCoalesceWindow, even if updates keep arriving
	// (no debounce-on-silence).
	var pendingDelta *wsOutboundEvent
	var deltaTimer *time.Timer
	var deltaTimerCh <-chan time.Time

	flushPendingDelta := func() {
		if pendingDelta == nil {
			return
		}

		ts := pendingDelta.At
		if ts.IsZero() {
			ts = time.Now().UTC()
		}

		msg, err := json.Marshal(envelope{
			Type: pendingDelta.Type,
			Ts:   &ts,
			Data: pendingDelta.Data,
		})
		if err != nil {
			logger.Warn("ws broadcaster marshal failed", "error", err, "type", pendingDelta.Type)
			// Drop the pending item so we don't retry-marshal forever.
			pendingDelta = nil
			return
		}

		hub.BroadcastBytes(msg)
		pendingDelta = nil
	}

	stopDeltaTimer := func() {
		if deltaTimer == nil {
			deltaTimerCh = nil
			return
		}
		if !deltaTimer.Stop() {
			select {
			case <-deltaTimer.C:
			default:
			}
		}
		deltaTimerCh = nil
		deltaTimer = nil
	}

	startDeltaTimerIfNeeded := func() {
		if deltaTimer != nil {
			return
		}
		deltaTimer = time.NewTimer(wsDeltaCoalesceWindow)
		deltaTimerCh = deltaTimer.C
	}

	resetDeltaTimer := func() {
		if deltaTimer == nil {
			return
		}
		if !deltaTimer.Stop() {
			select {
			case <-deltaTimer.C:
			default:
			}
		}
		deltaTimer.Reset(wsDeltaCoalesceWindow)
		deltaTimerCh = deltaTimer.C
	}

	for {
		select {
		case <-ctx.Done():
			flushPendingDelta()
			stopDeltaTimer()
			return

		case <-deltaTimerCh:
			flushPendingDelta()
			// Keep ticking only if more deltas are pending; otherwise stop.
			if pendingDelta == nil {
				stopDeltaTimer()
			} else {
				resetDeltaTimer()
			}

		case b, ok := <-src:
			if !ok {
				flushPendingDelta()
				stopDeltaTimer()
				logger.Info("ws broadcaster stopping (source ended)")
				return
			}

			ev, ok := convertBroadcast(b)
			if !ok {
				// Unknown broadcasts are dropped.
				continue
			}

			// Rate-limit only delta frames; do NOT reset the timer on each
			// update. Latest-wins: replace the pending event and ensure
			// the periodic timer is running.
			if ev.Type == "delta" {
				copyEv := ev
				pendingDelta = &copyEv
				startDeltaTimerIfNeeded()
				continue
			}

			// Non-delta event: flush any pending delta first, then emit
			// this event immediately so ordering stays coherent.
			flushPendingDelta()
			stopDeltaTimer()

			ts := ev.At
			if ts.IsZero() {
				ts = time.Now().UTC()
			}

			msg, err := json.Marshal(envelope{
				Type: ev.Type,
				Ts:   &ts,
				Data: ev.Data,
			})
			if err != nil {
				logger.Warn("ws broadcaster marshal failed", "error", err, "type", ev.Type)
				continue
			}

			hub.BroadcastBytes(msg)
		}
	}
}

func convertBroadcast(b StateBroadcast) (wsOutboundEvent, bool) {
	switch ev := b.(type) {
	case BroadcastSessionStarted:
		return wsOutboundEvent{
			Type: ev.broadcastType(),
			Data: wsSessionStartedData{Axis: ev.Axis.String(), Direction: ev.Direction},
			At:   ev.At,
		}, true

	case BroadcastDelta:
		return wsOutboundEvent{
			Type: ev.broadcastType(),
			Data: wsDeltaData{Axis: ev.Delta.Axis.String(), Value: ev.Delta.Value},
			At:   ev.At,
		}, true

	case BroadcastSessionIdle:
		return wsOutboundEvent{
			Type: ev.broadcastType(),
			At:   ev.At,
		}, true

	case BroadcastModeChanged:
		return wsOutboundEvent{
			Type: ev.broadcastType(),
			Data: wsModeChangedData{Mode: string(ev.Mode)},
			At:   ev.At,
		}, true

	default:
		return wsOutboundEvent{}, false
	}
}
