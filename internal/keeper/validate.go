package keeper

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/go-github/v43/github"
	"go.uber.org/zap"

	"github.com/simplesurance/mergekeeper/internal/keepererr"
	"github.com/simplesurance/mergekeeper/internal/logfields"
)

// PullRequestGetter fetches the current state of a pull request.
type PullRequestGetter interface {
	PullRequest(ctx context.Context, prURL string) (*github.PullRequest, error)
}

// Validator waits until a pull request is mergeable.
type Validator struct {
	clt        PullRequestGetter
	newBackOff func() backoff.BackOff
	logger     *zap.Logger
}

// NewValidator returns a Validator that waits between polls for the
// durations returned by the BackOff that newBackOff creates.
// newBackOff is called once per Validate invocation, the BackOff is never
// shared.
func NewValidator(clt PullRequestGetter, newBackOff func() backoff.BackOff) *Validator {
	return &Validator{
		clt:        clt,
		newBackOff: newBackOff,
		logger:     zap.L().Named(loggerName).Named("validator"),
	}
}

// Validate fetches the pull request until its mergeable state is clean.
// Mergeable states other than clean, including unknown, cause a retry.
// When the backoff returns backoff.Stop a *keepererr.PendingTimeoutError is
// returned.
// Errors from fetching the pull request are returned immediately.
func (v *Validator) Validate(ctx context.Context, prURL string, logF ...zap.Field) error {
	var polls int
	var waited time.Duration

	logger := v.logger.With(logF...)

	bo := v.newBackOff()
	bo.Reset()

	for {
		pr, err := v.clt.PullRequest(ctx, prURL)
		polls++
		if err != nil {
			return fmt.Errorf("fetching pull request failed: %w", err)
		}

		state := pr.GetMergeableState()
		metrics.PollsInc(state)

		logger.Info(
			"validating pull request",
			logfields.Event("pull_request_validating"),
			logfields.MergeableState(state),
			zap.Boolp("mergeable", pr.Mergeable),
			zap.Int("poll_count", polls),
			zap.Duration("waited", waited),
		)

		if state == MergeableStateClean {
			logger.Info(
				"pull request is clean",
				logfields.Event("pull_request_validated"),
				zap.Int("poll_count", polls),
			)

			return nil
		}

		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			logger.Info(
				"pending timeout exceeded, giving up",
				logfields.Event("pull_request_pending_timeout"),
				logfields.MergeableState(state),
				zap.Int("poll_count", polls),
				zap.Duration("waited", waited),
			)

			return &keepererr.PendingTimeoutError{
				Waited:    waited,
				Polls:     polls,
				LastState: state,
			}
		}

		logger.Debug(
			"pull request is not clean, retry scheduled",
			logfields.Event("pull_request_validation_retry_scheduled"),
			zap.Duration("retry_in", wait),
		)

		if err := sleep(ctx, wait); err != nil {
			return err
		}

		waited += wait
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
