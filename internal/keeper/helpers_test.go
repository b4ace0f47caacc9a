package keeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/go-github/v43/github"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/simplesurance/mergekeeper/internal/githubclt"
	"github.com/simplesurance/mergekeeper/internal/keeper/mocks"
)

const prURL = "https://api.github.com/repos/fho/test/pulls/1"
const commentsURL = "https://api.github.com/repos/fho/test/issues/1/comments"

func initLogger(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))
}

func newMockClient(t *testing.T) *mocks.MockGithubClient {
	mockctrl := gomock.NewController(t)
	return mocks.NewMockGithubClient(mockctrl)
}

// testConfig returns a configuration with short poll intervals.
// The waits between polls are 1, 2, 3, 4 and 5ms, validation times out
// after 6 polls.
func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.TrustedIdentities = []string{botURL}
	cfg.PollInitialInterval = time.Millisecond
	cfg.PollIntervalStep = time.Millisecond
	cfg.PollTimeout = 10 * time.Millisecond

	return cfg
}

func prWithState(state string) *github.PullRequest {
	return &github.PullRequest{
		URL:            github.String(prURL),
		MergeableState: github.String(state),
	}
}

func mockPullRequestCall(clt *mocks.MockGithubClient, states ...string) *gomock.Call {
	var i int

	return clt.
		EXPECT().
		PullRequest(gomock.Any(), gomock.Eq(prURL)).
		DoAndReturn(func(context.Context, string) (*github.PullRequest, error) {
			state := states[len(states)-1]
			if i < len(states) {
				state = states[i]
			}
			i++

			return prWithState(state), nil
		})
}

func mockSuccessfulMergeCall(clt *mocks.MockGithubClient) *gomock.Call {
	return clt.
		EXPECT().
		Merge(gomock.Any(), gomock.Eq(prURL), gomock.Any()).
		Return(&github.PullRequestMergeResult{
			SHA:     github.String("f00"),
			Merged:  github.Bool(true),
			Message: github.String("Pull Request successfully merged"),
		}, nil)
}

func mockFailedMergeCall(clt *mocks.MockGithubClient, msg string) *gomock.Call {
	return clt.
		EXPECT().
		Merge(gomock.Any(), gomock.Eq(prURL), gomock.Any()).
		DoAndReturn(func(context.Context, string, *githubclt.MergeRequest) (*github.PullRequestMergeResult, error) {
			return nil, errors.New(msg)
		})
}
