package main

const version = "1.0.0"

// Engine defaults. Intervals are in milliseconds in config and flags,
// converted to seconds once at startup.
const (
	defaultTickHz            = 120
	defaultMinFeedIntervalMS = 15
	defaultMaxFeedIntervalMS = 300
	defaultBufferDrainMS     = 50
	defaultMaxClickMS        = 500
)

const (
	defaultSocketPath  = "/tmp/tpscroll.sock"
	defaultStateWSPort = 8771
)

// Device name substrings that identify a TrackPoint keyboard's event
// nodes. Matched case-insensitively against the kernel-reported names.
var defaultDeviceKeywords = []string{
	"trackpoint",
	"tp compact",
	"thinkpad compact",
}

// Linux input event types and codes (linux/input-event-codes.h).
const (
	evSyn uint16 = 0x00
	evKey uint16 = 0x01
	evRel uint16 = 0x02

	synReport uint16 = 0x00

	btnMiddle uint16 = 0x112

	relHWheel      uint16 = 0x06
	relWheel       uint16 = 0x08
	relWheelHiRes  uint16 = 0x0b
	relHWheelHiRes uint16 = 0x0c
)

const (
	evValueRelease = 0
	evValuePress   = 1
)
