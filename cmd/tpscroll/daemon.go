package main

import (
	"context"
	"log/slog"
	"time"
)

// daemon translates raw device events and IPC commands into calls on the
// active scroll controller. It owns the controller for its lifetime and
// swaps it when the scroll mode changes at runtime.
//
// All controller calls happen on the loop goroutine; the controller's own
// worker handles its internal concurrency.
type daemon struct {
	ctrl       ScrollControl
	mode       ScrollMode
	factory    func(ScrollMode) ScrollControl
	btn        *middleButton
	broadcasts chan<- StateBroadcast
	log        *slog.Logger
}

// runDaemon is the main translation loop.
//
// Shutdown semantics:
//   - Exits when ctx is canceled
//   - Exits cleanly when the input channel is closed
//
// The controller is closed on the way out so its worker drains before the
// output sink is torn down.
func runDaemon(ctx context.Context, input <-chan inputEvent, ipcEvents <-chan Event, d *daemon) error {
	defer d.ctrl.Close()

	for {
		select {
		case <-ctx.Done():
			d.log.Info("daemon stopping (context canceled)")
			return ctx.Err()

		case ev, ok := <-input:
			if !ok {
				d.log.Info("daemon stopping (input channel closed)")
				return nil
			}
			d.handleInput(ev)

		case ev, ok := <-ipcEvents:
			if !ok {
				d.log.Info("daemon stopping (IPC channel closed)")
				return nil
			}
			d.handleIPC(ev)
		}
	}
}

func (d *daemon) handleInput(ev inputEvent) {
	switch ev.Type {
	case evKey:
		if ev.Code != btnMiddle {
			return
		}
		switch ev.Value {
		case evValuePress:
			d.btn.Down(time.Now())
		case evValueRelease:
			// A release always ends the scroll session immediately,
			// with no drain-out.
			d.ctrl.Stop()
			if d.btn.Up(time.Now()) {
				d.log.Debug("middle click")
				d.ctrl.MiddleClick()
			}
		}

	case evRel:
		var axis Axis
		switch ev.Code {
		case relWheel:
			axis = AxisVertical
		case relHWheel:
			axis = AxisHorizontal
		default:
			// Hi-res duplicates of the same detents, and stray REL_X/Y
			// noise from the grabbed node.
			return
		}
		if ev.Value == 0 {
			return
		}
		d.btn.Scroll()
		d.ctrl.Tick(WheelTick{Axis: axis, Value: clampTickValue(ev.Value)})
	}
}

func (d *daemon) handleIPC(ev Event) {
	switch e := ev.(type) {
	case ScrollTick:
		axis, err := ParseAxis(e.Axis)
		if err != nil {
			d.log.Warn("ignoring IPC tick", "error", err)
			return
		}
		d.ctrl.Tick(WheelTick{Axis: axis, Value: e.Value})

	case ScrollStop:
		d.ctrl.Stop()

	case MiddleClick:
		d.ctrl.MiddleClick()

	case SetScrollMode:
		mode, err := ParseScrollMode(e.Mode)
		if err != nil {
			d.log.Warn("ignoring IPC mode change", "error", err)
			return
		}
		d.setMode(mode)

	default:
		d.log.Warn("ignoring unknown IPC event", "event", ev)
	}
}

// setMode swaps the controller. The old controller is fully closed before
// the new one starts so at most one worker drives the sink at a time.
func (d *daemon) setMode(mode ScrollMode) {
	if mode == d.mode {
		return
	}
	d.ctrl.Close()
	d.ctrl = d.factory(mode)
	d.mode = mode
	d.log.Info("scroll mode changed", "mode", mode)
	offerBroadcast(d.broadcasts, BroadcastModeChanged{Mode: mode, At: time.Now()})
}

func clampTickValue(v int32) int8 {
	if v > 127 {
		return 127
	}
	if v < -128 {
		return -128
	}
	return int8(v)
}
