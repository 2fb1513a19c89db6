package main

import "time"

type buttonState int

const (
	buttonIdle buttonState = iota
	buttonDown
	buttonScroll
)

// middleButton disambiguates the two roles of the physical middle button:
// held as a scroll modifier, or pressed and released quickly as a click.
// A press only counts as a click if no wheel tick arrived while it was
// held and the release came within the click window.
type middleButton struct {
	state    buttonState
	downAt   time.Time
	maxClick time.Duration
}

func newMiddleButton(maxClick time.Duration) *middleButton {
	return &middleButton{maxClick: maxClick}
}

func (b *middleButton) Down(now time.Time) {
	b.state = buttonDown
	b.downAt = now
}

// Scroll marks the current hold as a scroll gesture, disqualifying it
// from becoming a click. No-op when the button is not held.
func (b *middleButton) Scroll() {
	if b.state == buttonDown {
		b.state = buttonScroll
	}
}

// Up reports whether the release completes a click. Always returns the
// button to idle.
func (b *middleButton) Up(now time.Time) bool {
	click := b.state == buttonDown && now.Sub(b.downAt) <= b.maxClick
	b.state = buttonIdle
	return click
}
