package keeper

import (
	"time"

	"github.com/cenkalti/backoff"
)

const (
	DefPollInitialInterval = time.Minute
	DefPollIntervalStep    = time.Minute
	DefPollTimeout         = 24 * time.Hour
)

// LinearBackOff is a backoff.BackOff whose interval grows by Step after
// every call of NextBackOff.
// When the sum of all returned intervals exceeds MaxElapsedTime,
// backoff.Stop is returned.
// The elapsed time is the sum of the returned intervals, not the wall-clock
// time since the last Reset.
type LinearBackOff struct {
	InitialInterval time.Duration
	Step            time.Duration
	MaxElapsedTime  time.Duration

	current time.Duration
	elapsed time.Duration
}

var _ backoff.BackOff = &LinearBackOff{}

func NewLinearBackOff(initialInterval, step, maxElapsedTime time.Duration) *LinearBackOff {
	b := LinearBackOff{
		InitialInterval: initialInterval,
		Step:            step,
		MaxElapsedTime:  maxElapsedTime,
	}
	b.Reset()

	return &b
}

func (b *LinearBackOff) Reset() {
	b.current = b.InitialInterval
	b.elapsed = 0
}

func (b *LinearBackOff) NextBackOff() time.Duration {
	if b.elapsed > b.MaxElapsedTime {
		return backoff.Stop
	}

	result := b.current
	b.elapsed += result
	b.current += b.Step

	return result
}

// Elapsed returns the sum of all intervals returned since the last Reset.
func (b *LinearBackOff) Elapsed() time.Duration {
	return b.elapsed
}
