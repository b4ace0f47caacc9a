package keeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/golang/mock/gomock"
	"github.com/google/go-github/v43/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simplesurance/mergekeeper/internal/keepererr"
)

func newTestValidator(clt PullRequestGetter, initial, step, timeout time.Duration) *Validator {
	return NewValidator(clt, func() backoff.BackOff {
		return NewLinearBackOff(initial, step, timeout)
	})
}

func TestValidateCleanDoesNotPollAgain(t *testing.T) {
	initLogger(t)

	clt := newMockClient(t)
	mockPullRequestCall(clt, "clean").Times(1)

	v := newTestValidator(clt, time.Hour, time.Hour, 24*time.Hour)
	err := v.Validate(context.Background(), prURL)
	require.NoError(t, err)
}

func TestValidateRetriesUntilClean(t *testing.T) {
	initLogger(t)

	clt := newMockClient(t)
	mockPullRequestCall(clt, "unknown", "unstable", "dirty", "clean").Times(4)

	v := newTestValidator(clt, time.Millisecond, time.Millisecond, time.Hour)
	err := v.Validate(context.Background(), prURL)
	require.NoError(t, err)
}

func TestValidateWaitsGrowLinearlyUntilTimeout(t *testing.T) {
	const interval = 10 * time.Millisecond

	initLogger(t)

	var pollTimes []time.Time

	clt := newMockClient(t)
	clt.EXPECT().
		PullRequest(gomock.Any(), gomock.Eq(prURL)).
		DoAndReturn(func(context.Context, string) (*github.PullRequest, error) {
			pollTimes = append(pollTimes, time.Now())
			return prWithState("unknown"), nil
		}).
		AnyTimes()

	v := newTestValidator(clt, interval, interval, 6*interval)
	err := v.Validate(context.Background(), prURL)

	var timeoutErr *keepererr.PendingTimeoutError
	require.ErrorAs(t, err, &timeoutErr)

	// waits: 10, 20, 30, 40ms, afterwards the sum (100ms) exceeds the
	// timeout (60ms)
	require.Len(t, pollTimes, 5)
	assert.Equal(t, 5, timeoutErr.Polls)
	assert.Equal(t, 10*interval, timeoutErr.Waited)
	assert.Equal(t, "unknown", timeoutErr.LastState)

	for i := 1; i < len(pollTimes); i++ {
		minWait := time.Duration(i) * interval
		d := pollTimes[i].Sub(pollTimes[i-1])

		assert.GreaterOrEqualf(t, d, minWait,
			"time between poll %d and %d is %s, expected >=%s", i-1, i, d, minWait,
		)
	}
}

func TestValidateFetchErrorIsReturned(t *testing.T) {
	initLogger(t)

	fetchErr := errors.New("connection refused")

	clt := newMockClient(t)
	clt.EXPECT().
		PullRequest(gomock.Any(), gomock.Eq(prURL)).
		Return(nil, fetchErr).
		Times(1)

	v := newTestValidator(clt, time.Millisecond, time.Millisecond, time.Hour)
	err := v.Validate(context.Background(), prURL)
	require.ErrorIs(t, err, fetchErr)
}

func TestValidateCancelledContext(t *testing.T) {
	initLogger(t)

	ctx, cancelFn := context.WithCancel(context.Background())

	clt := newMockClient(t)
	clt.EXPECT().
		PullRequest(gomock.Any(), gomock.Eq(prURL)).
		DoAndReturn(func(context.Context, string) (*github.PullRequest, error) {
			cancelFn()
			return prWithState("blocked"), nil
		}).
		Times(1)

	v := newTestValidator(clt, time.Hour, time.Hour, 24*time.Hour)
	err := v.Validate(ctx, prURL)
	require.ErrorIs(t, err, context.Canceled)
}
