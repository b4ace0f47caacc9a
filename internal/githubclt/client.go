// Package githubclt provides a github API client.
package githubclt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v43/github"
	"github.com/shurcooL/githubv4"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/simplesurance/mergekeeper/internal/keepererr"
	"github.com/simplesurance/mergekeeper/internal/logfields"
)

const DefaultHTTPClientTimeout = time.Minute

// PreviewMediaType is sent as Accept header with every REST request.
// It makes github include the mergeable_state field in pull request
// responses.
const PreviewMediaType = "application/vnd.github.polaris-preview+json"

const loggerName = "github_client"

// Credentials are used to authenticate at the GitHub API.
// If User is set, requests are authenticated via Basic-Auth with User and
// Token, otherwise Token is sent as OAuth2 bearer token.
type Credentials struct {
	User  string
	Token string
}

type option func(*Client) error

// WithBaseURL sets the URL of the REST API, e.g. for GitHub Enterprise
// installations.
func WithBaseURL(baseURL string) option {
	return func(c *Client) error {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}

		u, err := url.Parse(baseURL)
		if err != nil {
			return fmt.Errorf("parsing base url failed: %w", err)
		}

		c.restClt.BaseURL = u
		return nil
	}
}

// WithGraphQLURL sets the URL of the GraphQL API endpoint.
func WithGraphQLURL(graphQLURL string) option {
	return func(c *Client) error {
		c.graphQLClt = githubv4.NewEnterpriseClient(graphQLURL, c.httpClient)
		return nil
	}
}

// New returns a new github api client.
func New(creds Credentials, opts ...option) (*Client, error) {
	httpClient := newHTTPClient(creds)

	clt := Client{
		httpClient: httpClient,
		restClt:    github.NewClient(httpClient),
		graphQLClt: githubv4.NewClient(httpClient),
		logger:     zap.L().Named(loggerName),
	}

	for _, o := range opts {
		if err := o(&clt); err != nil {
			return nil, err
		}
	}

	return &clt, nil
}

func newHTTPClient(creds Credentials) *http.Client {
	if creds.User != "" {
		tp := github.BasicAuthTransport{
			Username: creds.User,
			Password: creds.Token,
		}

		clt := tp.Client()
		clt.Timeout = DefaultHTTPClientTimeout

		return clt
	}

	if creds.Token == "" {
		return &http.Client{
			Timeout: DefaultHTTPClientTimeout,
		}
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: creds.Token},
	)

	tc := oauth2.NewClient(context.Background(), ts)
	tc.Timeout = DefaultHTTPClientTimeout

	return tc
}

// Client is an github API client.
// Pull requests and comments are addressed by the API URLs contained in
// webhook events.
// All methods return a keepererr.RetryableError when the failure was caused
// by the transport or the server, e.g. a 5xx response or an exceeded API
// ratelimit.
type Client struct {
	httpClient *http.Client
	restClt    *github.Client
	graphQLClt *githubv4.Client
	logger     *zap.Logger
}

// MergeRequest describes how a pull request is merged.
type MergeRequest struct {
	// SHA must match the HEAD commit of the pull request, otherwise github
	// refuses the merge.
	SHA         string
	CommitTitle string
	Squash      bool
}

type mergeRequestBody struct {
	SHA         string `json:"sha,omitempty"`
	CommitTitle string `json:"commit_title,omitempty"`
	Squash      bool   `json:"squash"`
	MergeMethod string `json:"merge_method"`
}

func (r *MergeRequest) body() *mergeRequestBody {
	result := mergeRequestBody{
		SHA:         r.SHA,
		CommitTitle: r.CommitTitle,
		Squash:      r.Squash,
		MergeMethod: "merge",
	}

	if r.Squash {
		result.MergeMethod = "squash"
	}

	return &result
}

func (clt *Client) do(ctx context.Context, method, urlStr string, body, v any) error {
	req, err := clt.restClt.NewRequest(method, urlStr, body)
	if err != nil {
		return fmt.Errorf("creating %s request for %q failed: %w", method, urlStr, err)
	}

	req.Header.Set("Accept", PreviewMediaType)

	_, err = clt.restClt.Do(ctx, req, v)
	return clt.wrapRetryableErrors(err)
}

// PullRequest fetches the pull request with the given API URL.
// The result is never cached, the MergeableState field is computed
// asynchronously by github and changes over time.
func (clt *Client) PullRequest(ctx context.Context, prURL string) (*github.PullRequest, error) {
	var pr github.PullRequest

	err := clt.do(ctx, http.MethodGet, prURL, nil, &pr)
	if err != nil {
		return nil, err
	}

	return &pr, nil
}

// Merge merges the pull request with the given API URL.
// If github responds successfully but reports that the pull request was not
// merged, an error is returned.
func (clt *Client) Merge(ctx context.Context, prURL string, mr *MergeRequest) (*github.PullRequestMergeResult, error) {
	var result github.PullRequestMergeResult

	err := clt.do(ctx, http.MethodPut, prURL+"/merge", mr.body(), &result)
	if err != nil {
		return nil, err
	}

	if !result.GetMerged() {
		return &result, fmt.Errorf("pull request was not merged: %s", result.GetMessage())
	}

	return &result, nil
}

// DeleteBranch deletes the branch in the repository.
// repoFullName is the repository name in the "owner/name" format.
// If the branch does not exist, the operation succeeds.
func (clt *Client) DeleteBranch(ctx context.Context, repoFullName, branch string) error {
	owner, repo, found := strings.Cut(repoFullName, "/")
	if !found || owner == "" || repo == "" {
		return fmt.Errorf("repository name %q is not in the owner/name format", repoFullName)
	}

	if branch == "" {
		return errors.New("provided branch name is empty")
	}

	_, err := clt.restClt.Git.DeleteRef(ctx, owner, repo, "heads/"+branch)
	if err != nil {
		var respErr *github.ErrorResponse
		if errors.As(err, &respErr) &&
			respErr.Response.StatusCode == http.StatusUnprocessableEntity &&
			strings.Contains(respErr.Message, "Reference does not exist") {
			clt.logger.Debug("deleting branch failed, branch does not exist, interpreting it as success",
				logfields.Repository(repoFullName),
				logfields.Branch(branch),
				logfields.Event("github_delete_branch_returned_not_exist"),
				zap.Error(err),
			)

			return nil
		}

		return clt.wrapRetryableErrors(err)
	}

	return nil
}

// CreateComment creates a comment in the issue or pull request that the
// comments API URL belongs to.
func (clt *Client) CreateComment(ctx context.Context, commentsURL, comment string) error {
	return clt.do(ctx, http.MethodPost, commentsURL, &github.IssueComment{Body: &comment}, nil)
}

func (clt *Client) wrapRetryableErrors(err error) error {
	switch v := err.(type) {
	case *github.RateLimitError:
		clt.logger.Info(
			"rate limit exceeded",
			logfields.Event("github_api_rate_limit_exceeded"),
			zap.Int("github_api_rate_limit", v.Rate.Limit),
			zap.Time("github_api_rate_limit_reset_time", v.Rate.Reset.Time),
		)

		return keepererr.NewRetryableError(err, v.Rate.Reset.Time)

	case *github.AbuseRateLimitError:
		if v.RetryAfter != nil {
			return keepererr.NewRetryableError(err, time.Now().Add(*v.RetryAfter))
		}

		return keepererr.NewRetryableAnytimeError(err)

	case *github.ErrorResponse:
		if v.Response.StatusCode >= 500 && v.Response.StatusCode < 600 {
			return keepererr.NewRetryableAnytimeError(err)
		}

	case *url.Error:
		return keepererr.NewRetryableAnytimeError(err)
	}

	return err
}

var graphQlHTTPStatusErrRe = regexp.MustCompile(`^non-200 OK status code: ([0-9]+) .*`)

func (clt *Client) wrapGraphQLRetryableErrors(err error) error {
	matches := graphQlHTTPStatusErrRe.FindStringSubmatch(err.Error())
	if len(matches) != 2 {
		return err
	}

	errcode, atoiErr := strconv.Atoi(matches[1])
	if atoiErr != nil {
		clt.logger.Info(
			"parsing http code from error string failed",
			zap.Error(atoiErr),
			zap.String("error_string", err.Error()),
			zap.String("http_errcode", matches[1]),
		)
		return err
	}

	if errcode >= 500 && errcode < 600 {
		return keepererr.NewRetryableAnytimeError(err)
	}

	return err
}
