package main

import (
	"fmt"
	"time"
)

// ScrollMode selects how middle-button wheel events are reinterpreted.
type ScrollMode string

const (
	// ScrollModeClassic passes every input tick through as one full
	// detent, with no smoothing.
	ScrollModeClassic ScrollMode = "classic"

	// ScrollModeSmooth runs the buffering/decay engine and emits a
	// continuous delta stream at the clock rate.
	ScrollModeSmooth ScrollMode = "smooth"
)

// ParseScrollMode converts the config/IPC representation of a mode.
func ParseScrollMode(s string) (ScrollMode, error) {
	switch s {
	case string(ScrollModeClassic):
		return ScrollModeClassic, nil
	case string(ScrollModeSmooth):
		return ScrollModeSmooth, nil
	default:
		return "", fmt.Errorf("invalid scroll mode: %q (must be classic or smooth)", s)
	}
}

// WheelSink injects platform scroll events. Calls are fire-and-forget on
// the emission path: implementations must not block, and have nowhere to
// report errors to.
type WheelSink interface {
	SendWheel(delta Delta)
	SendMiddleClick()
}

// ScrollControl reinterprets wheel ticks from the keyboard and drives the
// output sink. Exactly two implementations exist: classic pass-through
// and the smooth-scrolling engine.
//
// Calling Tick or Stop after Close is a programming error and panics: the
// owner must not outlive the controller's worker.
type ScrollControl interface {
	// MiddleClick synthesizes a middle-button click. Unrelated to the
	// scroll state machine; passes straight through to the sink.
	MiddleClick()

	// Tick feeds one wheel tick into the controller.
	Tick(tick WheelTick)

	// Stop resets any running scroll session immediately, with no
	// drain-out grace period. Idempotent.
	Stop()

	// Close shuts down background work and waits for it to finish.
	Close() error
}

// NewScrollControl builds the controller for a mode. broadcasts may be
// nil; when set, engine lifecycle events are offered to it without
// blocking (dropped if the channel is full).
func NewScrollControl(mode ScrollMode, sink WheelSink, cfg EngineConfig, broadcasts chan<- StateBroadcast) ScrollControl {
	if mode == ScrollModeSmooth {
		return newSmoothControl(sink, cfg, broadcasts)
	}
	return &classicControl{sink: sink, broadcasts: broadcasts}
}

// classicControl is the pass-through controller: one input tick, one
// full-detent output delta, nothing to decay and nothing to stop.
type classicControl struct {
	sink       WheelSink
	broadcasts chan<- StateBroadcast
}

func (c *classicControl) MiddleClick() {
	c.sink.SendMiddleClick()
}

func (c *classicControl) Tick(tick WheelTick) {
	delta := passThroughDelta(tick)
	c.sink.SendWheel(delta)
	offerBroadcast(c.broadcasts, BroadcastDelta{Delta: delta, At: time.Now()})
}

func (c *classicControl) Stop() {}

func (c *classicControl) Close() error { return nil }

// scrollEvent is the smooth controller's inbound command.
type scrollEvent struct {
	stop bool
	tick WheelTick
}

// smoothControl owns the scroll state machine, a worker goroutine that
// serializes all state mutation, and an on-demand wheel clock.
//
// The events channel has capacity 1: a caller racing the worker blocks for
// at most one worker-loop iteration, which doubles as natural coalescing
// since physical tick rate is far below the clock rate.
type smoothControl struct {
	sink       WheelSink
	broadcasts chan<- StateBroadcast

	events chan scrollEvent
	done   chan struct{}
}

func newSmoothControl(sink WheelSink, cfg EngineConfig, broadcasts chan<- StateBroadcast) *smoothControl {
	s := &smoothControl{
		sink:       sink,
		broadcasts: broadcasts,
		events:     make(chan scrollEvent, 1),
		done:       make(chan struct{}),
	}
	go s.run(cfg.withDefaults())
	return s
}

func (s *smoothControl) run(cfg EngineConfig) {
	defer close(s.done)

	clock := newWheelClock(cfg.TickHz)
	defer clock.Close()

	state := newScrollState(cfg)

	for {
		select {
		case <-clock.C:
			delta, ok := state.Tick()
			if !ok {
				clock.Stop()
				continue
			}
			s.sink.SendWheel(delta)
			offerBroadcast(s.broadcasts, BroadcastDelta{Delta: delta, At: time.Now()})
			if state.Idle() {
				// Session exhausted itself this tick; the clock halts
				// on the next one.
				offerBroadcast(s.broadcasts, BroadcastSessionIdle{At: time.Now()})
			}

		case ev, ok := <-s.events:
			if !ok {
				return
			}
			if ev.stop {
				if !state.Idle() {
					offerBroadcast(s.broadcasts, BroadcastSessionIdle{At: time.Now()})
				}
				state.Reset()
				clock.Stop()
				continue
			}
			if state.Feed(time.Now(), ev.tick) {
				clock.Resume()
				offerBroadcast(s.broadcasts, BroadcastSessionStarted{
					Axis:      ev.tick.Axis,
					Direction: ev.tick.Direction(),
					At:        time.Now(),
				})
			}
		}
	}
}

func (s *smoothControl) MiddleClick() {
	s.sink.SendMiddleClick()
}

func (s *smoothControl) Tick(tick WheelTick) {
	s.events <- scrollEvent{tick: tick}
}

func (s *smoothControl) Stop() {
	s.events <- scrollEvent{stop: true}
}

func (s *smoothControl) Close() error {
	close(s.events)
	<-s.done
	return nil
}

func offerBroadcast(ch chan<- StateBroadcast, b StateBroadcast) {
	if ch == nil {
		return
	}
	select {
	case ch <- b:
	default:
	}
}
