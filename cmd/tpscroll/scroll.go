package main

import (
	"math"
	"time"
)

// EngineConfig holds the tunable constants of the smooth-scroll engine.
// Zero values fall back to the defaults in constants.go.
type EngineConfig struct {
	// TickHz is the fixed emission frequency of the wheel clock.
	TickHz int

	// MinFeedInterval / MaxFeedInterval bound the feed-rate interval
	// estimate, in seconds. Ticks arriving slower than MaxFeedInterval
	// are effectively treated as a fresh gesture by the rate math.
	MinFeedInterval float64
	MaxFeedInterval float64

	// BufferDrainDuration is the time, in seconds, over which a full
	// buffer drains into the reservoir.
	BufferDrainDuration float64
}

func (c EngineConfig) withDefaults() EngineConfig {
	if c.TickHz <= 0 {
		c.TickHz = defaultTickHz
	}
	if c.MinFeedInterval <= 0 {
		c.MinFeedInterval = defaultMinFeedIntervalMS / 1000.0
	}
	if c.MaxFeedInterval <= 0 {
		c.MaxFeedInterval = defaultMaxFeedIntervalMS / 1000.0
	}
	if c.BufferDrainDuration <= 0 {
		c.BufferDrainDuration = defaultBufferDrainMS / 1000.0
	}
	return c
}

// tickInterval is the clock period in seconds.
func (c EngineConfig) tickInterval() float64 {
	return 1.0 / float64(c.TickHz)
}

// decayMode selects how the reservoir is spent on each clock tick.
type decayMode int

const (
	// decayExponential spends a fixed fraction of the reservoir per tick
	// while the buffer still feeds it.
	decayExponential decayMode = iota

	// decayQuadratic spends from a snapshot schedule with a linearly
	// decreasing per-tick amount, taken when the buffer runs dry.
	decayQuadratic
)

// scrollSession is the live state of an axis currently scrolling.
type scrollSession struct {
	axis      Axis
	direction int // +1 or -1

	// buffer is short-term unintegrated input pressure, reservoir the
	// smoothed output accumulator; both in tick units.
	buffer    float64
	reservoir float64

	// roundErr carries the sub-unit remainder of quantization, always in
	// [0, 1) of high-resolution delta units.
	roundErr float64

	decay decayMode
	// Quadratic snapshot schedule; meaningful only while decay is
	// decayQuadratic.
	decayAmount float64
	decayStep   float64

	rate feedRate
}

// scrollState is the scroll state machine: Idle while session is nil,
// Scrolling otherwise. It performs no I/O and is stepped exclusively by
// the controller's worker goroutine.
type scrollState struct {
	cfg     EngineConfig
	session *scrollSession
}

func newScrollState(cfg EngineConfig) *scrollState {
	return &scrollState{cfg: cfg.withDefaults()}
}

// Idle reports whether no scroll session is active.
func (s *scrollState) Idle() bool {
	return s.session == nil
}

// Reset discards any active session immediately. Safe to call while Idle.
func (s *scrollState) Reset() {
	s.session = nil
}

// Feed ingests one wheel tick. It returns true when a new session was
// started, in which case the caller must (re)start the emission clock.
//
// A tick on the same axis and direction feeds the running session; any
// other tick abandons the old session outright and seeds a fresh one.
func (s *scrollState) Feed(now time.Time, tick WheelTick) bool {
	dir := tick.Direction()
	mag := math.Abs(float64(tick.Value))

	if sess := s.session; sess != nil && sess.axis == tick.Axis && sess.direction == dir {
		sess.rate.feed(now, tick.Value)
		// Nudge the magnitude by the current feed pressure: a fast feed
		// pushes nudge toward 1 (narrow range), a slow feed below 1
		// (broader range), giving finer speed control at low pressure.
		nudge := math.Sqrt(s.cfg.MinFeedInterval / sess.rate.currentInterval())
		sess.buffer += mag * nudge
		sess.decay = decayExponential
		return false
	}

	initialNudge := math.Sqrt(s.cfg.MinFeedInterval / s.cfg.MaxFeedInterval)
	s.session = &scrollSession{
		axis:      tick.Axis,
		direction: dir,
		buffer:    mag * initialNudge,
		rate:      newFeedRate(now, s.cfg.MinFeedInterval, s.cfg.MaxFeedInterval),
	}
	return true
}

// Tick runs one clock period of the drain/decay algorithm and returns the
// quantized delta to emit. The second return is false when the machine is
// Idle and the caller should stop the clock.
func (s *scrollState) Tick() (Delta, bool) {
	sess := s.session
	if sess == nil {
		return Delta{}, false
	}

	freq := float64(s.cfg.TickHz)
	drainMin := 1.0 / s.cfg.BufferDrainDuration / freq

	var drain float64
	if sess.buffer > 1 {
		// Bigger buffers drain proportionally faster, so a large burst
		// does not pile up output latency.
		drain = sess.buffer * drainMin
	} else {
		// Linear drain below one unit eliminates the long tail a
		// proportional drain would leave on tiny buffers.
		drain = math.Min(drainMin, sess.buffer)
	}
	sess.buffer -= drain
	sess.reservoir += drain
	if drain > 0 {
		// The reservoir may decay slower than the feed; capping it at
		// the moving average keeps it from growing past real pressure.
		sess.reservoir = math.Min(sess.reservoir, sess.rate.movingAvg())
	}

	feedInterval := sess.rate.currentInterval()
	decayRate := s.cfg.tickInterval() / feedInterval

	if sess.buffer == 0 && sess.decay == decayExponential {
		// Buffer depleted: assume the gesture stopped. Spend the
		// remaining reservoir on a linearly decreasing schedule that
		// exhausts it over two feed intervals. That avoids the long
		// exponential tail while still leaving a short window for
		// jittery wheel events to continue the scroll.
		sess.decay = decayQuadratic
		sess.decayAmount = sess.reservoir * decayRate
		sess.decayStep = sess.reservoir * decayRate / (feedInterval * 2 * freq)
	}

	var spend float64
	if sess.decay == decayQuadratic {
		spend = math.Min(sess.decayAmount, sess.reservoir)
		sess.decayAmount -= math.Min(sess.decayStep, sess.decayAmount)
	} else {
		spend = sess.reservoir * decayRate
	}
	sess.reservoir -= spend

	// Quantize to integer units, carrying the remainder so the emitted
	// sum tracks the true integral within one unit.
	raw := float64(sess.direction) * spend * WheelUnit
	value := math.Trunc(raw)
	sess.roundErr += raw - value
	carry := math.Floor(sess.roundErr)
	value += carry
	sess.roundErr -= carry

	delta := Delta{Axis: sess.axis, Value: int32(value)}

	if sess.reservoir == 0 || spend == 0 && sess.roundErr < 1 {
		s.session = nil
	}

	return delta, true
}
