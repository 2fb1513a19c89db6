package main

import "fmt"

// WheelUnit is the number of high-resolution scroll units in one physical
// wheel detent. This matches the kernel's REL_WHEEL_HI_RES convention, so a
// classic tick of magnitude 1 maps to 120 output units.
const WheelUnit = 120

// Axis identifies which scroll wheel an event belongs to.
type Axis int

const (
	AxisVertical Axis = iota
	AxisHorizontal
)

func (a Axis) String() string {
	switch a {
	case AxisVertical:
		return "vertical"
	case AxisHorizontal:
		return "horizontal"
	default:
		return fmt.Sprintf("axis(%d)", int(a))
	}
}

// ParseAxis converts the wire representation ("vertical"/"horizontal",
// or the short forms "v"/"h") used by IPC events.
func ParseAxis(s string) (Axis, error) {
	switch s {
	case "vertical", "v":
		return AxisVertical, nil
	case "horizontal", "h":
		return AxisHorizontal, nil
	default:
		return 0, fmt.Errorf("invalid axis: %q (must be vertical or horizontal)", s)
	}
}

// WheelTick is one discrete wheel report from the keyboard sensor.
//
// Value is nonzero. Its sign gives the scroll direction; its absolute value
// grows with pressure on the TrackPoint (1 for a light push, up to ~3 when
// pushed hard at the sensor's fastest report rate).
type WheelTick struct {
	Axis  Axis
	Value int8
}

// Direction returns the sign of the tick: +1 or -1.
func (t WheelTick) Direction() int {
	if t.Value < 0 {
		return -1
	}
	return 1
}

// Delta is one quantized output scroll event, in high-resolution units
// (WheelUnit per detent).
type Delta struct {
	Axis  Axis
	Value int32
}

// passThroughDelta converts a tick directly into a full-detent delta,
// used by the classic (non-smoothed) controller.
func passThroughDelta(t WheelTick) Delta {
	return Delta{Axis: t.Axis, Value: int32(t.Value) * WheelUnit}
}
