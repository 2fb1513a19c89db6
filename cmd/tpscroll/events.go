package main

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event is a control-plane command delivered over the IPC socket. Each
// event maps onto one daemon action, exactly as if it had come from the
// physical device.
type Event interface {
	eventMarker()
}

// ScrollTick injects a synthetic wheel tick.
type ScrollTick struct {
	Axis  string `json:"axis"`
	Value int8   `json:"value"`
}

// ScrollStop resets any running scroll session.
type ScrollStop struct{}

// MiddleClick synthesizes a middle-button click.
type MiddleClick struct{}

// SetScrollMode swaps the active controller at runtime.
type SetScrollMode struct {
	Mode string `json:"mode"`
}

func (ScrollTick) eventMarker()    {}
func (ScrollStop) eventMarker()    {}
func (MiddleClick) eventMarker()   {}
func (SetScrollMode) eventMarker() {}

// EventEnvelope is the wire form of an Event: a type tag plus the raw
// payload, one JSON object per line on the socket.
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func MarshalEvent(ev Event) ([]byte, error) {
	var env EventEnvelope
	switch e := ev.(type) {
	case ScrollTick:
		env.Type = "scroll_tick"
		data, err := json.Marshal(e)
		if err != nil {
			return nil, err
		}
		env.Data = data
	case ScrollStop:
		env.Type = "scroll_stop"
	case MiddleClick:
		env.Type = "middle_click"
	case SetScrollMode:
		env.Type = "set_scroll_mode"
		data, err := json.Marshal(e)
		if err != nil {
			return nil, err
		}
		env.Data = data
	default:
		return nil, fmt.Errorf("unknown event type %T", ev)
	}
	return json.Marshal(env)
}

func UnmarshalEvent(data []byte) (Event, error) {
	var env EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("invalid event envelope: %w", err)
	}
	switch env.Type {
	case "scroll_tick":
		var e ScrollTick
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, fmt.Errorf("invalid scroll_tick payload: %w", err)
		}
		if _, err := ParseAxis(e.Axis); err != nil {
			return nil, err
		}
		if e.Value == 0 {
			return nil, fmt.Errorf("scroll_tick value must be non-zero")
		}
		return e, nil
	case "scroll_stop":
		return ScrollStop{}, nil
	case "middle_click":
		return MiddleClick{}, nil
	case "set_scroll_mode":
		var e SetScrollMode
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, fmt.Errorf("invalid set_scroll_mode payload: %w", err)
		}
		if _, err := ParseScrollMode(e.Mode); err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", env.Type)
	}
}

// StateBroadcast is a read-only engine state change fanned out to
// websocket observers. Producers never block on it.
type StateBroadcast interface {
	broadcastType() string
}

// BroadcastSessionStarted announces a new scroll session.
type BroadcastSessionStarted struct {
	Axis      Axis
	Direction int
	At        time.Time
}

// BroadcastDelta carries one emitted scroll delta.
type BroadcastDelta struct {
	Delta Delta
	At    time.Time
}

// BroadcastSessionIdle announces that the engine returned to idle.
type BroadcastSessionIdle struct {
	At time.Time
}

// BroadcastModeChanged announces a runtime controller swap.
type BroadcastModeChanged struct {
	Mode ScrollMode
	At   time.Time
}

func (BroadcastSessionStarted) broadcastType() string { return "session_started" }
func (BroadcastDelta) broadcastType() string          { return "delta" }
func (BroadcastSessionIdle) broadcastType() string    { return "session_idle" }
func (BroadcastModeChanged) broadcastType() string    { return "mode_changed" }
