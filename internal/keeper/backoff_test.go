package keeper

import (
	"testing"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinearBackOffDefaults(t *testing.T) {
	bo := NewLinearBackOff(DefPollInitialInterval, DefPollIntervalStep, DefPollTimeout)

	var intervals []time.Duration
	for {
		d := bo.NextBackOff()
		if d == backoff.Stop {
			break
		}

		intervals = append(intervals, d)
		require.Less(t, len(intervals), 100, "backoff never returned stop")
	}

	// 1+2+...+53 minutes = 23h51m, 1+2+...+54 minutes = 24h45m
	require.Len(t, intervals, 54)
	assert.Equal(t, time.Minute, intervals[0])

	for i := 1; i < len(intervals); i++ {
		assert.Equal(t, intervals[i-1]+time.Minute, intervals[i])
	}

	assert.Greater(t, bo.Elapsed(), DefPollTimeout)
	assert.Equal(t, backoff.Stop, bo.NextBackOff(), "backoff must keep returning stop")
}

func TestLinearBackOffReset(t *testing.T) {
	bo := NewLinearBackOff(time.Second, time.Second, 2*time.Second)

	assert.Equal(t, time.Second, bo.NextBackOff())
	assert.Equal(t, 2*time.Second, bo.NextBackOff())
	assert.Equal(t, backoff.Stop, bo.NextBackOff())

	bo.Reset()
	assert.Equal(t, time.Duration(0), bo.Elapsed())
	assert.Equal(t, time.Second, bo.NextBackOff())
}

func TestLinearBackOffZeroStepIsConstant(t *testing.T) {
	bo := NewLinearBackOff(time.Second, 0, time.Minute)

	for i := 0; i < 10; i++ {
		assert.Equal(t, time.Second, bo.NextBackOff())
	}
}
