package sleeper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExponentialSleeper(t *testing.T) {
	s, err := NewExponentialSleeper(10*time.Millisecond, 50*time.Millisecond)
	require.NoError(t, err)

	var slept []time.Duration
	s.sleep = func(d time.Duration) { slept = append(slept, d) }

	for i := 0; i < 5; i++ {
		s.Sleep()
	}
	s.Reset()
	s.Sleep()

	require.Equal(t, []time.Duration{
		10 * time.Millisecond,
		20 * time.Millisecond,
		40 * time.Millisecond,
		50 * time.Millisecond,
		50 * time.Millisecond,
		10 * time.Millisecond,
	}, slept)
}

func TestInvalidDurations(t *testing.T) {
	_, err := NewExponentialSleeper(0, time.Second)
	require.Equal(t, ErrInvalidDuration, err)

	_, err = NewExponentialSleeper(time.Second, -1)
	require.Equal(t, ErrInvalidDuration, err)
}
