// Package sleeper implements retry backoff strategies.
package sleeper

import (
	"errors"
	"time"
)

// ErrInvalidDuration happens when the initial or maximum duration is not positive.
var ErrInvalidDuration = errors.New("sleep durations must be positive")

// exponentialBackoffSleeper doubles its sleep duration after every sleep,
// up to a maximum.
type exponentialBackoffSleeper struct {
	initial       time.Duration
	max           time.Duration
	sleepDuration time.Duration

	sleep func(time.Duration)
}

// NewExponentialSleeper
func NewExponentialSleeper(initial, max time.Duration) (*exponentialBackoffSleeper, error) {
	if initial <= 0 || max <= 0 {
		return nil, ErrInvalidDuration
	}
	if max < initial {
		max = initial
	}
	return &exponentialBackoffSleeper{
		initial:       initial,
		max:           max,
		sleepDuration: initial,
		sleep:         time.Sleep,
	}, nil
}

// Sleep
func (e *exponentialBackoffSleeper) Sleep() {
	e.sleep(e.sleepDuration)
	e.sleepDuration += e.sleepDuration
	if e.sleepDuration > e.max {
		e.sleepDuration = e.max
	}
}

// Reset
func (e *exponentialBackoffSleeper) Reset() {
	e.sleepDuration = e.initial
}
