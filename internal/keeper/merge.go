package keeper

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/go-github/v43/github"
	"go.uber.org/zap"

	"github.com/simplesurance/mergekeeper/internal/githubclt"
	"github.com/simplesurance/mergekeeper/internal/keepererr"
	"github.com/simplesurance/mergekeeper/internal/logfields"
)

// mergeRetries is the number of times a failed merge is retried.
const mergeRetries = 1

// MergeClient merges pull requests and deletes branches.
type MergeClient interface {
	Merge(ctx context.Context, prURL string, mr *githubclt.MergeRequest) (*github.PullRequestMergeResult, error)
	DeleteBranch(ctx context.Context, repoFullName, branch string) error
}

// Merger merges pull requests and optionally deletes their head branches
// afterwards.
type Merger struct {
	clt            MergeClient
	squash         bool
	deleteBranches bool
	retryInterval  time.Duration
	logger         *zap.Logger
}

func NewMerger(clt MergeClient, squash, deleteBranches bool, retryInterval time.Duration) *Merger {
	return &Merger{
		clt:            clt,
		squash:         squash,
		deleteBranches: deleteBranches,
		retryInterval:  retryInterval,
		logger:         zap.L().Named(loggerName).Named("merger"),
	}
}

// Merge merges the pull request.
// sha must be the HEAD commit that was validated, if the branch changed in
// the meantime github rejects the merge.
// A failed merge is retried exactly once, independent of the reason it
// failed. If both attempts fail a *keepererr.MergeError wrapping the last
// error is returned.
func (m *Merger) Merge(ctx context.Context, prURL, title, sha string, logF ...zap.Field) (*github.PullRequestMergeResult, error) {
	var attempts int
	var result *github.PullRequestMergeResult

	logger := m.logger.With(logF...)

	mr := githubclt.MergeRequest{
		SHA:         sha,
		CommitTitle: title,
		Squash:      m.squash,
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(m.retryInterval), mergeRetries),
		ctx,
	)

	err := backoff.RetryNotify(
		func() error {
			var err error

			attempts++
			result, err = m.clt.Merge(ctx, prURL, &mr)
			if err != nil {
				metrics.MergeAttemptsInc(mergeResultLabelFailureVal)
				return err
			}

			metrics.MergeAttemptsInc(mergeResultLabelSuccessVal)
			return nil
		},
		bo,
		func(err error, retryIn time.Duration) {
			logger.Warn(
				"merging pull request failed, retrying",
				logfields.Event("pull_request_merge_retry_scheduled"),
				zap.Int("try_count", attempts),
				zap.Duration("retry_in", retryIn),
				zap.Error(err),
			)
		},
	)
	if err != nil {
		return nil, &keepererr.MergeError{Attempts: attempts, Err: err}
	}

	logger.Info(
		"pull request merged",
		logfields.Event("pull_request_merged"),
		zap.Int("try_count", attempts),
		zap.String("merge_commit", result.GetSHA()),
		zap.String("github_message", result.GetMessage()),
	)

	return result, nil
}

// DeleteBranchEnabled returns true if head branches are deleted after a
// successful merge.
func (m *Merger) DeleteBranchEnabled() bool {
	return m.deleteBranches
}

// DeleteBranch deletes the head branch of a merged pull request.
// Failures are logged and not returned, a failed deletion does not change
// the outcome of the merge.
func (m *Merger) DeleteBranch(ctx context.Context, head *Head, logF ...zap.Field) {
	logger := m.logger.With(logF...)

	err := m.clt.DeleteBranch(ctx, head.RepoFullName, head.Ref)
	if err != nil {
		logger.Warn(
			"deleting branch failed",
			logfields.Event("branch_deletion_failed"),
			logfields.Repository(head.RepoFullName),
			logfields.Branch(head.Ref),
			zap.Error(err),
		)

		return
	}

	logger.Info(
		"branch deleted",
		logfields.Event("branch_deleted"),
		logfields.Repository(head.RepoFullName),
		logfields.Branch(head.Ref),
	)
}
