package githubclt

import (
	"context"
	"fmt"
	"sort"

	"github.com/shurcooL/githubv4"
)

// maxCheckContexts is the number of check runs and commit statuses that are
// retrieved, further ones are ignored.
const maxCheckContexts = 100

// CheckResult is the state of a check run or commit status of a commit.
type CheckResult struct {
	Name string
	// State is the status of a running check run, the conclusion of a
	// completed one or the state of a commit status.
	State string
}

func (r *CheckResult) String() string {
	return r.Name + ": " + r.State
}

// ChecksStatus summarizes why github might not report a pull request as
// clean.
type ChecksStatus struct {
	Commit         string
	ReviewDecision string
	// RollupState is the combined state of all checks of Commit, it is
	// empty when no checks exist.
	RollupState string
	// Unfinished are the checks that did not succeed, ordered by name.
	Unfinished []*CheckResult
}

type checkRunNode struct {
	Name       string
	Status     githubv4.CheckStatusState
	Conclusion githubv4.CheckConclusionState
}

type statusContextNode struct {
	Context string
	State   githubv4.StatusState
}

type checksStatusQuery struct {
	Repository struct {
		PullRequest struct {
			ReviewDecision githubv4.PullRequestReviewDecision
			Commits        struct {
				Nodes []struct {
					Commit struct {
						Oid               string
						StatusCheckRollup struct {
							State    githubv4.StatusState
							Contexts struct {
								Nodes []struct {
									CheckRun      checkRunNode      `graphql:"... on CheckRun"`
									StatusContext statusContextNode `graphql:"... on StatusContext"`
								}
							} `graphql:"contexts(first: $contextsFirst)"`
						}
					}
				}
			} `graphql:"commits(last: 1)"`
		} `graphql:"pullRequest(number: $number)"`
	} `graphql:"repository(owner: $owner, name: $name)"`
}

// ChecksStatus returns the review decision and the check states of the
// HEAD commit of a pull request.
// Only the first 100 checks are evaluated.
func (clt *Client) ChecksStatus(ctx context.Context, owner, repo string, prNumber int) (*ChecksStatus, error) {
	var q checksStatusQuery

	vars := map[string]any{
		"owner":         githubv4.String(owner),
		"name":          githubv4.String(repo),
		"number":        githubv4.Int(prNumber),
		"contextsFirst": githubv4.Int(maxCheckContexts),
	}

	if err := clt.graphQLClt.Query(ctx, &q, vars); err != nil {
		return nil, clt.wrapGraphQLRetryableErrors(err)
	}

	pr := q.Repository.PullRequest
	if len(pr.Commits.Nodes) == 0 {
		return nil, fmt.Errorf("pull request %s/%s#%d has no commits", owner, repo, prNumber)
	}

	commit := pr.Commits.Nodes[0].Commit
	result := ChecksStatus{
		Commit:         commit.Oid,
		ReviewDecision: string(pr.ReviewDecision),
		RollupState:    string(commit.StatusCheckRollup.State),
	}

	for _, node := range commit.StatusCheckRollup.Contexts.Nodes {
		var r *CheckResult

		if node.CheckRun.Name != "" {
			r = checkRunResult(&node.CheckRun)
		} else {
			r = statusContextResult(&node.StatusContext)
		}

		if r != nil {
			result.Unfinished = append(result.Unfinished, r)
		}
	}

	sort.Slice(result.Unfinished, func(i, j int) bool {
		return result.Unfinished[i].Name < result.Unfinished[j].Name
	})

	return &result, nil
}

// checkRunResult returns nil if the check run completed successfully.
func checkRunResult(n *checkRunNode) *CheckResult {
	if n.Status != githubv4.CheckStatusStateCompleted {
		return &CheckResult{Name: n.Name, State: string(n.Status)}
	}

	switch n.Conclusion {
	case githubv4.CheckConclusionStateSuccess,
		githubv4.CheckConclusionStateNeutral,
		githubv4.CheckConclusionStateSkipped:
		return nil
	}

	return &CheckResult{Name: n.Name, State: string(n.Conclusion)}
}

// statusContextResult returns nil if the commit status succeeded.
func statusContextResult(n *statusContextNode) *CheckResult {
	if n.State == githubv4.StatusStateSuccess {
		return nil
	}

	return &CheckResult{Name: n.Context, State: string(n.State)}
}
