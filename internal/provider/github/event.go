package github

import "go.uber.org/zap"

// Event is a webhook delivery that passed payload validation.
// The Provider only forwards pull_request deliveries, Event then contains a
// *github.PullRequestEvent.
type Event struct {
	// DeliveryID is the value of the X-GitHub-Delivery header, redeliveries
	// of the same event have the same ID.
	DeliveryID string
	// Type is the value of the X-GitHub-Event header, EventTypePullRequest
	// when the header was missing.
	Type string
	// JSON is the raw request body, filter queries are evaluated on it.
	JSON []byte
	// Event is the payload parsed by github.ParseWebHook().
	Event any
	// LogFields identify the delivery in log messages.
	LogFields []zap.Field
}
