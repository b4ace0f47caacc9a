package keeper

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/google/go-github/v43/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simplesurance/mergekeeper/internal/githubclt"
	"github.com/simplesurance/mergekeeper/internal/keepererr"
)

func TestMergeSucceedsOnFirstAttempt(t *testing.T) {
	initLogger(t)

	clt := newMockClient(t)
	clt.EXPECT().
		Merge(gomock.Any(), gomock.Eq(prURL), gomock.Eq(&githubclt.MergeRequest{
			SHA:         "abc",
			CommitTitle: "Update lodash",
			Squash:      true,
		})).
		Return(&github.PullRequestMergeResult{Merged: github.Bool(true)}, nil).
		Times(1)

	m := NewMerger(clt, true, false, 0)
	res, err := m.Merge(context.Background(), prURL, "Update lodash", "abc")
	require.NoError(t, err)
	assert.True(t, res.GetMerged())
}

func TestMergeIsRetriedOnce(t *testing.T) {
	initLogger(t)

	clt := newMockClient(t)
	gomock.InOrder(
		mockFailedMergeCall(clt, "502 bad gateway").Times(1),
		mockSuccessfulMergeCall(clt).Times(1),
	)

	m := NewMerger(clt, false, false, 0)
	res, err := m.Merge(context.Background(), prURL, "Update lodash", "abc")
	require.NoError(t, err)
	assert.Equal(t, "f00", res.GetSHA())
}

func TestMergeFailsAfterTwoAttempts(t *testing.T) {
	initLogger(t)

	var attempts int

	clt := newMockClient(t)
	clt.EXPECT().
		Merge(gomock.Any(), gomock.Eq(prURL), gomock.Any()).
		DoAndReturn(func(context.Context, string, *githubclt.MergeRequest) (*github.PullRequestMergeResult, error) {
			attempts++
			if attempts == 1 {
				return nil, errors.New("first failure")
			}

			return nil, errors.New("second failure")
		}).
		Times(2)

	m := NewMerger(clt, false, false, 0)
	_, err := m.Merge(context.Background(), prURL, "Update lodash", "abc")
	require.Error(t, err)

	var mergeErr *keepererr.MergeError
	require.ErrorAs(t, err, &mergeErr)
	assert.Equal(t, 2, mergeErr.Attempts)
	assert.EqualError(t, mergeErr.Err, "second failure")
}

func TestDeleteBranchFailureIsNotReturned(t *testing.T) {
	initLogger(t)

	clt := newMockClient(t)
	clt.EXPECT().
		DeleteBranch(gomock.Any(), gomock.Eq("fho/test"), gomock.Eq("greenkeeper/lodash")).
		Return(errors.New("403 forbidden")).
		Times(1)

	m := NewMerger(clt, false, true, 0)
	assert.True(t, m.DeleteBranchEnabled())

	m.DeleteBranch(context.Background(), &Head{RepoFullName: "fho/test", Ref: "greenkeeper/lodash"})
}
