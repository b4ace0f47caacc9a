package keeper

import (
	"fmt"

	"github.com/google/go-github/v43/github"
	"go.uber.org/zap"

	"github.com/simplesurance/mergekeeper/internal/logfields"
	github_prov "github.com/simplesurance/mergekeeper/internal/provider/github"
)

const (
	ActionOpened      = "opened"
	ActionSynchronize = "synchronize"
)

// MergeableStateClean is the only mergeable state of a pull request that
// allows merging it.
const MergeableStateClean = "clean"

// Identity is a github user or bot account.
type Identity struct {
	Login   string
	HTMLURL string
}

// Head is the source branch of a pull request.
type Head struct {
	SHA          string
	Ref          string
	RepoFullName string
}

// PullRequest contains the pull request fields of a webhook event that
// are used by the pipeline.
type PullRequest struct {
	URL            string
	Title          string
	CommentsURL    string
	MergeableState string
	Head           Head
	User           Identity
}

// Event is a pull request webhook event.
type Event struct {
	DeliveryID string
	Action     string
	Sender     Identity
	Number     int
	// Repository is the full name (owner/name) of the repository the
	// pull request belongs to.
	Repository  string
	PullRequest PullRequest

	// JSON is the webhook payload.
	JSON      []byte
	LogFields []zap.Field
}

func (e *Event) String() string {
	return fmt.Sprintf("%s #%d (deliveryID: %s)", e.Action, e.Number, e.DeliveryID)
}

func identityFromUser(u *github.User) Identity {
	return Identity{
		Login:   u.GetLogin(),
		HTMLURL: u.GetHTMLURL(),
	}
}

// FromProviderEvent converts a webhook event to an Event.
// If the webhook event is not a pull request event, false is returned.
func FromProviderEvent(pev *github_prov.Event) (*Event, bool) {
	ghEv, ok := pev.Event.(*github.PullRequestEvent)
	if !ok {
		return nil, false
	}

	pr := ghEv.GetPullRequest()
	head := pr.GetHead()

	ev := Event{
		DeliveryID: pev.DeliveryID,
		Action:     ghEv.GetAction(),
		Sender:     identityFromUser(ghEv.GetSender()),
		Number:     ghEv.GetNumber(),
		Repository: ghEv.GetRepo().GetFullName(),
		PullRequest: PullRequest{
			URL:            pr.GetURL(),
			Title:          pr.GetTitle(),
			CommentsURL:    pr.GetCommentsURL(),
			MergeableState: pr.GetMergeableState(),
			Head: Head{
				SHA:          head.GetSHA(),
				Ref:          head.GetRef(),
				RepoFullName: head.GetRepo().GetFullName(),
			},
			User: identityFromUser(pr.GetUser()),
		},
		JSON: pev.JSON,
	}

	if ev.Number == 0 {
		ev.Number = pr.GetNumber()
	}

	ev.LogFields = append(
		append([]zap.Field{}, pev.LogFields...),
		logfields.Action(ev.Action),
		logfields.Sender(ev.Sender.HTMLURL),
		logfields.PullRequest(ev.Number),
		logfields.PullRequestURL(ev.PullRequest.URL),
		logfields.Commit(ev.PullRequest.Head.SHA),
		logfields.Branch(ev.PullRequest.Head.Ref),
	)

	if ev.Repository != "" {
		ev.LogFields = append(ev.LogFields, logfields.Repository(ev.Repository))
	}

	return &ev, true
}
