package github

import (
	"io"
	"net/http"

	"github.com/google/go-github/v43/github"
	"go.uber.org/zap"

	"github.com/simplesurance/mergekeeper/internal/logfields"
)

const loggerName = "github-event-provider"

// EventTypePullRequest is the webhook type of pull request events.
const EventTypePullRequest = "pull_request"

// ResponseBody is sent as body of successful responses.
const ResponseBody = "ok"

// Provider listens for github-webhook http-requests at a http-server handler,
// validates and converts the requests to Events and forwards them to event
// channels.
// Only pull request events are forwarded. Requests without an event type
// header are treated as pull request events.
type Provider struct {
	logger        *zap.Logger
	webhookSecret []byte
	chans         []chan<- *Event
}

type option func(*Provider)

// WithPayloadSecret enables verifying the signature of received events.
func WithPayloadSecret(secret string) option {
	return func(p *Provider) {
		p.webhookSecret = []byte(secret)
	}
}

func New(eventChans []chan<- *Event, opts ...option) *Provider {
	p := Provider{
		chans: eventChans,
	}

	for _, o := range opts {
		o(&p)
	}

	if p.logger == nil {
		p.logger = zap.L().Named(loggerName)
	}

	return &p
}

// HTTPHandler responds to a webhook request immediately after it was
// forwarded to the event channels, the caller never waits for a pipeline.
func (p *Provider) HTTPHandler(resp http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(resp, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	deliveryID := github.DeliveryID(req)
	hookType := github.WebHookType(req)
	if hookType == "" {
		hookType = EventTypePullRequest
	}

	logFields := []zap.Field{
		logfields.EventProvider("github"),
		logfields.DeliveryID(deliveryID),
		zap.String("github.webhook_type", hookType),
	}

	logger := p.logger.With(logFields...)

	payload, err := github.ValidatePayload(req, p.webhookSecret)
	if err != nil {
		logger.Info(
			"received invalid http request, payload validation failed",
			logfields.Event("github_http_request_validation_failed"),
			zap.Error(err),
		)
		http.Error(resp, err.Error(), http.StatusBadRequest)
		return
	}

	logger.Debug(
		"received http request",
		logfields.Event("github_event_received"),
		zap.ByteString("http_body", payload),
	)

	if hookType != EventTypePullRequest {
		logger.Debug(
			"ignoring event, event type is unsupported",
			logfields.Event("github_unsupported_event_received"),
		)

		writeOK(logger, resp)
		return
	}

	event, err := github.ParseWebHook(hookType, payload)
	if err != nil {
		logger.Info(
			"received invalid http request, parsing failed",
			logfields.Event("github_event_parsing_failed"),
			zap.Error(err),
		)
		http.Error(resp, err.Error(), http.StatusBadRequest)
		return
	}

	ev := Event{
		DeliveryID: deliveryID,
		Type:       hookType,
		JSON:       payload,
		Event:      event,
		LogFields:  logFields,
	}

	for _, c := range p.chans {
		select {
		case c <- &ev:
			logger.Debug(
				"event forwarded to channel",
				logfields.Event("github_event_forwarded"),
			)

		default:
			logger.Warn(
				"event lost, forwarding event to channel failed",
				zap.String("error", "could not forward event to channel, send would have blocked"),
				logfields.Event("github_forwarding_event_failed"),
			)

			http.Error(resp, "queue full", http.StatusServiceUnavailable)
			return
		}
	}

	writeOK(logger, resp)
}

func writeOK(logger *zap.Logger, resp http.ResponseWriter) {
	resp.Header().Set("Content-Type", "text/plain")

	if _, err := io.WriteString(resp, ResponseBody); err != nil {
		logger.Info("sending http response failed", zap.Error(err))
	}
}
