package main

import (
	"strings"
	"testing"
)

// TestEventRoundTrip tests that every event survives the envelope codec
func TestEventRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
	}{
		{"scroll_tick", ScrollTick{Axis: "vertical", Value: -2}},
		{"scroll_tick_short_axis", ScrollTick{Axis: "h", Value: 1}},
		{"scroll_stop", ScrollStop{}},
		{"middle_click", MiddleClick{}},
		{"set_scroll_mode", SetScrollMode{Mode: "classic"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := MarshalEvent(tt.ev)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			got, err := UnmarshalEvent(data)
			if err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got != tt.ev {
				t.Errorf("round trip mismatch: sent %+v, got %+v", tt.ev, got)
			}
		})
	}
}

// TestUnmarshalEvent_Rejections tests validation of malformed events
func TestUnmarshalEvent_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr string
	}{
		{"garbage", `not json`, "invalid event envelope"},
		{"unknown_type", `{"type":"warp_speed"}`, "unknown event type"},
		{"bad_axis", `{"type":"scroll_tick","data":{"axis":"diagonal","value":1}}`, "invalid axis"},
		{"zero_value", `{"type":"scroll_tick","data":{"axis":"v","value":0}}`, "must be non-zero"},
		{"bad_mode", `{"type":"set_scroll_mode","data":{"mode":"turbo"}}`, "invalid scroll mode"},
		{"missing_tick_data", `{"type":"scroll_tick"}`, "invalid scroll_tick payload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalEvent([]byte(tt.payload))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %q", tt.wantErr, err)
			}
		})
	}
}

// TestMarshalEvent_EnvelopeShape tests the wire format stays compact for
// payload-free events
func TestMarshalEvent_EnvelopeShape(t *testing.T) {
	data, err := MarshalEvent(ScrollStop{})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"type":"scroll_stop"}` {
		t.Errorf("unexpected wire form: %s", data)
	}
}
