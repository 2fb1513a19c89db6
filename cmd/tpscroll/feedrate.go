package main

import "time"

// feedRateAlpha is the EMA blending coefficient: heavy enough to settle
// within about two samples, light enough to absorb scheduler jitter.
const feedRateAlpha = 0.5

// feedRate estimates the cadence and magnitude of the wheel ticks feeding
// the current scroll session. Both estimates are exponential moving
// averages seeded directly by the first sample.
//
// Owned exclusively by one scrollSession; reset by starting a new session.
type feedRate struct {
	minInterval float64 // seconds, lower clamp for interval()
	maxInterval float64 // seconds, upper clamp and unset default

	interval    float64
	hasInterval bool
	value       float64
	hasValue    bool
	prev        time.Time
}

func newFeedRate(now time.Time, minInterval, maxInterval float64) feedRate {
	return feedRate{
		minInterval: minInterval,
		maxInterval: maxInterval,
		prev:        now,
	}
}

// feed folds one tick into both moving averages.
func (f *feedRate) feed(now time.Time, value int8) {
	diff := now.Sub(f.prev).Seconds()
	if f.hasInterval {
		f.interval = f.interval*(1-feedRateAlpha) + diff*feedRateAlpha
	} else {
		f.interval = diff
		f.hasInterval = true
	}

	mag := float64(value)
	if mag < 0 {
		mag = -mag
	}
	if f.hasValue {
		f.value = f.value*(1-feedRateAlpha) + mag*feedRateAlpha
	} else {
		f.value = mag
		f.hasValue = true
	}

	f.prev = now
}

// currentInterval returns the estimated seconds between ticks, clamped to
// [minInterval, maxInterval]. Before the first sample it reports the
// maximum, i.e. the slowest plausible feed.
func (f *feedRate) currentInterval() float64 {
	iv := f.maxInterval
	if f.hasInterval {
		iv = f.interval
	}
	if iv > f.maxInterval {
		iv = f.maxInterval
	}
	if iv < f.minInterval {
		iv = f.minInterval
	}
	return iv
}

// movingAvg estimates input pressure in tick units per second. It caps the
// reservoir so smoothed output can never sustainably exceed what the user
// is actually feeding in.
func (f *feedRate) movingAvg() float64 {
	v := 1.0
	if f.hasValue {
		v = f.value
	}
	return v / f.currentInterval()
}
