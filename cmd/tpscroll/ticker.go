package main

import "time"

// wheelClock drives the smooth controller at a fixed rate. It spins up one
// goroutine that stays idle until Resume and stops ticking on Stop, so the
// daemon pays no wakeup cost while no scroll session is running.
//
// Commands travel over a single-slot channel: latency of a Resume arriving
// mid-gesture is bounded by one clock period, while the tick emission loop
// itself free-runs on a drift-compensated sleep.
type wheelClock struct {
	// C delivers one signal per clock period while the clock is running.
	C chan struct{}

	cmd  chan clockCommand
	done chan struct{}
}

type clockCommand int

const (
	clockStart clockCommand = iota
	clockStop
)

func newWheelClock(hz int) *wheelClock {
	c := &wheelClock{
		C:    make(chan struct{}, 1),
		cmd:  make(chan clockCommand, 1),
		done: make(chan struct{}),
	}
	go c.run(time.Second / time.Duration(hz))
	return c
}

func (c *wheelClock) run(period time.Duration) {
	defer close(c.done)

	for {
		// Idle until started.
		cmd, ok := <-c.cmd
		if !ok {
			return
		}
		if cmd != clockStart {
			continue
		}

		next := time.Now().Add(period)
		running := true
		for running {
			time.Sleep(time.Until(next))
			next = next.Add(period)
			if next.Before(time.Now()) {
				// Fell behind the schedule (debugger, suspend, load
				// spike): rebase instead of bursting to catch up.
				next = time.Now().Add(period)
			}

			select {
			case cmd, ok := <-c.cmd:
				if !ok {
					return
				}
				if cmd == clockStop {
					running = false
				}
				continue
			default:
			}

			// The tick channel holds one slot; if the consumer is mid
			// iteration we block here, which also keeps commands
			// responsive.
			select {
			case c.C <- struct{}{}:
			case cmd, ok := <-c.cmd:
				if !ok {
					return
				}
				if cmd == clockStop {
					running = false
				}
			}
		}
	}
}

// Resume starts (or restarts) tick emission.
func (c *wheelClock) Resume() {
	c.cmd <- clockStart
}

// Stop halts tick emission; the clock goroutine goes back to idling.
// One already-queued tick may still be delivered after Stop returns.
func (c *wheelClock) Stop() {
	c.cmd <- clockStop
}

// Close terminates the clock goroutine and waits for it to exit.
func (c *wheelClock) Close() {
	close(c.cmd)
	<-c.done
}
