package githubclt

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const checksStatusResponse = `{
  "data": {
    "repository": {
      "pullRequest": {
        "reviewDecision": "REVIEW_REQUIRED",
        "commits": {
          "nodes": [{
            "commit": {
              "oid": "8ad9dec4298f6b8f020997373cf4fe22005f2c06",
              "statusCheckRollup": {
                "state": "PENDING",
                "contexts": {
                  "nodes": [
                    {"name": "test", "status": "IN_PROGRESS", "conclusion": null},
                    {"name": "build", "status": "COMPLETED", "conclusion": "SUCCESS"},
                    {"name": "lint", "status": "COMPLETED", "conclusion": "FAILURE"},
                    {"name": "docs", "status": "COMPLETED", "conclusion": "SKIPPED"},
                    {"context": "ci/jenkins", "state": "PENDING"},
                    {"context": "coverage", "state": "SUCCESS"}
                  ]
                }
              }
            }
          }]
        }
      }
    }
  }
}`

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

func TestChecksStatus(t *testing.T) {
	clt, _ := newTestClient(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, http.MethodPost, req.Method)
		assert.Equal(t, "/graphql", req.URL.Path)

		var gqlReq graphQLRequest
		require.NoError(t, json.NewDecoder(req.Body).Decode(&gqlReq))

		assert.Contains(t, gqlReq.Query, "statusCheckRollup")
		assert.Equal(t, "fho", gqlReq.Variables["owner"])
		assert.Equal(t, "test", gqlReq.Variables["name"])
		assert.EqualValues(t, 7, gqlReq.Variables["number"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, checksStatusResponse)
	})

	status, err := clt.ChecksStatus(context.Background(), "fho", "test", 7)
	require.NoError(t, err)

	assert.Equal(t, "8ad9dec4298f6b8f020997373cf4fe22005f2c06", status.Commit)
	assert.Equal(t, "REVIEW_REQUIRED", status.ReviewDecision)
	assert.Equal(t, "PENDING", status.RollupState)

	require.Len(t, status.Unfinished, 3)
	assert.Equal(t, "ci/jenkins: PENDING", status.Unfinished[0].String())
	assert.Equal(t, "lint: FAILURE", status.Unfinished[1].String())
	assert.Equal(t, "test: IN_PROGRESS", status.Unfinished[2].String())
}

func TestChecksStatusWithoutChecks(t *testing.T) {
	clt, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"data": {"repository": {"pullRequest": {
			"reviewDecision": null,
			"commits": {"nodes": [{"commit": {"oid": "abc", "statusCheckRollup": null}}]}
		}}}}`)
	})

	status, err := clt.ChecksStatus(context.Background(), "fho", "test", 7)
	require.NoError(t, err)

	assert.Equal(t, "abc", status.Commit)
	assert.Empty(t, status.RollupState)
	assert.Empty(t, status.Unfinished)
}

func TestChecksStatusPullRequestWithoutCommits(t *testing.T) {
	clt, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"data": {"repository": {"pullRequest": {"commits": {"nodes": []}}}}}`)
	})

	_, err := clt.ChecksStatus(context.Background(), "fho", "test", 7)
	require.Error(t, err)
}
