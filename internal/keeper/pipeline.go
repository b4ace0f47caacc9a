package keeper

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/simplesurance/mergekeeper/internal/keepererr"
	"github.com/simplesurance/mergekeeper/internal/logfields"
)

// State is the state of a pipeline.
// Skipped, Merged and Failed are terminal states.
type State string

const (
	StateReceived   State = "received"
	StateSkipped    State = "skipped"
	StateValidating State = "validating"
	StateMerging    State = "merging"
	StateCleaningUp State = "cleaning_up"
	StateMerged     State = "merged"
	StateFailed     State = "failed"
)

// Process runs the pipeline for an event and returns its terminal state.
// It blocks until the pull request was merged, the pipeline failed or the
// event was skipped.
func (d *Dispatcher) Process(ctx context.Context, ev *Event) State {
	logger := d.logger.With(ev.LogFields...)

	metrics.ProcessedEventsInc()
	logger.Debug("event received", logfields.Event("event_received"), logFieldState(StateReceived))

	decision, err := d.filter.Evaluate(ctx, ev)
	if err != nil {
		logger.Error(
			"evaluating if event is eligible failed, skipping it",
			logEventSkipped,
			logFieldReason("eligibility_evaluation_failed"),
			zap.Error(err),
		)

		return d.finish(logger, StateSkipped)
	}

	if decision != Accept {
		logger.Info(
			"skipping pull request, event is not eligible",
			logEventSkipped,
			logFieldReason(decision.String()),
		)

		return d.finish(logger, StateSkipped)
	}

	logger.Info(
		"validating pull request",
		logfields.Event("pull_request_validation_started"),
		logFieldState(StateValidating),
	)

	err = d.validator.Validate(ctx, ev.PullRequest.URL, ev.LogFields...)
	if err != nil {
		d.logChecksStatus(ctx, logger, ev, err)
		return d.fail(ctx, logger, ev, StateValidating, err)
	}

	logger.Debug(
		"merging pull request",
		logfields.Event("pull_request_merge_started"),
		logFieldState(StateMerging),
	)

	_, err = d.merger.Merge(ctx, ev.PullRequest.URL, ev.PullRequest.Title, ev.PullRequest.Head.SHA, ev.LogFields...)
	if err != nil {
		return d.fail(ctx, logger, ev, StateMerging, err)
	}

	if d.merger.DeleteBranchEnabled() {
		logger.Debug(
			"deleting branch",
			logfields.Event("branch_deletion_started"),
			logFieldState(StateCleaningUp),
		)

		d.merger.DeleteBranch(ctx, &ev.PullRequest.Head, ev.LogFields...)
	}

	return d.finish(logger, StateMerged)
}

func (d *Dispatcher) finish(logger *zap.Logger, state State) State {
	metrics.PipelineFinished(state)
	logger.Debug(
		"pipeline finished",
		logfields.Event("pipeline_finished"),
		logFieldState(state),
	)

	return state
}

func (d *Dispatcher) fail(ctx context.Context, logger *zap.Logger, ev *Event, failedIn State, err error) State {
	if ctx.Err() != nil {
		logger.Info(
			"pipeline cancelled",
			logfields.Event("pipeline_cancelled"),
			zap.String("cancelled_in_state", string(failedIn)),
			zap.Error(err),
		)

		return d.finish(logger, StateFailed)
	}

	logger.Error(
		"pipeline failed",
		logEventFailed,
		zap.String("failed_in_state", string(failedIn)),
		zap.Error(err),
	)

	d.reporter.Report(ctx, ev.PullRequest.CommentsURL, ev.Number, err, ev.LogFields...)

	return d.finish(logger, StateFailed)
}

// logChecksStatus logs the CI jobs that prevent the pull request from
// becoming clean, when validation failed with a pending timeout.
func (d *Dispatcher) logChecksStatus(ctx context.Context, logger *zap.Logger, ev *Event, err error) {
	var timeoutErr *keepererr.PendingTimeoutError

	if d.checks == nil || !errors.As(err, &timeoutErr) {
		return
	}

	owner, repo, found := strings.Cut(ev.Repository, "/")
	if !found {
		return
	}

	status, err := d.checks.ChecksStatus(ctx, owner, repo, ev.Number)
	if err != nil {
		logger.Info(
			"retrieving ci status of timed out pull request failed",
			logfields.Event("pull_request_ci_status_retrieval_failed"),
			zap.Error(err),
		)

		return
	}

	unfinished := make([]string, 0, len(status.Unfinished))
	for _, check := range status.Unfinished {
		unfinished = append(unfinished, check.String())
	}

	logger.Info(
		"pull request did not become clean",
		logfields.Event("pull_request_ci_status"),
		logfields.MergeableState(timeoutErr.LastState),
		zap.String("ci_commit", status.Commit),
		zap.String("ci_status", status.RollupState),
		zap.String("review_decision", status.ReviewDecision),
		zap.Strings("unfinished_ci_jobs", unfinished),
	)
}
