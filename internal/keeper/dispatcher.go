package keeper

import (
	"context"
	"fmt"
	"sync"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"github.com/simplesurance/mergekeeper/internal/githubclt"
	"github.com/simplesurance/mergekeeper/internal/logfields"
	github_prov "github.com/simplesurance/mergekeeper/internal/provider/github"
)

const DefEventChannelBufferSize = 512

const loggerName = "keeper"

//go:generate mockgen -destination=mocks/githubclient.go -package=mocks . GithubClient

// GithubClient is the github API client used by the pipelines.
type GithubClient interface {
	PullRequestGetter
	MergeClient
	CommentCreator
	ChecksStatus(ctx context.Context, owner, repo string, prNumber int) (*githubclt.ChecksStatus, error)
}

// ChecksStatusGetter retrieves the CI status of a pull request.
type ChecksStatusGetter interface {
	ChecksStatus(ctx context.Context, owner, repo string, prNumber int) (*githubclt.ChecksStatus, error)
}

// Dispatcher receives webhook events and runs a pipeline per event.
// Pipelines run concurrently in their own go-routines, they do not share
// mutable state.
type Dispatcher struct {
	ch     chan *github_prov.Event
	logger *zap.Logger

	filter    *Filter
	validator *Validator
	merger    *Merger
	reporter  *Reporter
	checks    ChecksStatusGetter

	trustFn TrustFunc

	// ctx is passed to all pipelines, it is cancelled by Stop()
	ctx      context.Context
	cancelFn context.CancelFunc

	loopDone   chan struct{}
	pipelineWg sync.WaitGroup
}

type option func(*Dispatcher)

// WithTrustFunc overwrites the trusted identities of the configuration.
func WithTrustFunc(fn TrustFunc) option {
	return func(d *Dispatcher) {
		d.trustFn = fn
	}
}

// WithoutChecksStatus disables retrieving the CI status when a pull request
// did not become clean in time.
func WithoutChecksStatus() option {
	return func(d *Dispatcher) {
		d.checks = nil
	}
}

func NewDispatcher(clt GithubClient, cfg *Config, opts ...option) (*Dispatcher, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancelFn := context.WithCancel(context.Background())

	d := Dispatcher{
		ctx:      ctx,
		cancelFn: cancelFn,
		ch:       make(chan *github_prov.Event, DefEventChannelBufferSize),
		logger:   zap.L().Named(loggerName),
		checks:   clt,
		trustFn:  TrustedURLs(cfg.TrustedIdentities...),
		loopDone: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(&d)
	}

	filter, err := NewFilter(d.trustFn, cfg.FilterQuery)
	if err != nil {
		cancelFn()
		return nil, err
	}

	d.filter = filter
	d.validator = NewValidator(clt, func() backoff.BackOff {
		return NewLinearBackOff(cfg.PollInitialInterval, cfg.PollIntervalStep, cfg.PollTimeout)
	})
	d.merger = NewMerger(clt, cfg.SquashMerges, cfg.DeleteBranches, cfg.MergeRetryInterval)
	d.reporter = NewReporter(clt, cfg.CommentSignature)

	return &d, nil
}

// C returns the event channel.
// Events sent to this channel will be processed.
// The channel is closed when Stop() is called.
func (d *Dispatcher) C() chan<- *github_prov.Event {
	return d.ch
}

// Start processes events from the event channel until it is closed.
func (d *Dispatcher) Start() {
	defer close(d.loopDone)

	d.logger.Info("ready to process events", logfields.Event("dispatcher_started"))

	for pev := range d.ch {
		ev, ok := FromProviderEvent(pev)
		if !ok {
			d.logger.With(pev.LogFields...).Debug(
				"ignoring event, not a pull request event",
				logEventEventIgnored,
			)
			continue
		}

		d.schedule(ev)
	}

	d.logger.Info(
		"dispatcher terminated, event channel was closed",
		logfields.Event("dispatcher_terminated"),
	)
}

func (d *Dispatcher) schedule(ev *Event) {
	d.pipelineWg.Add(1)

	go func() {
		defer d.pipelineWg.Done()
		defer d.recoverPanic(ev)

		metrics.PipelineStarted()
		defer metrics.PipelineStopped()

		d.Process(d.ctx, ev)
	}()
}

func (d *Dispatcher) recoverPanic(ev *Event) {
	if r := recover(); r != nil {
		d.logger.With(ev.LogFields...).Error(
			"pipeline panicked",
			logEventFailed,
			zap.String("panic", fmt.Sprintf("%v", r)),
			zap.StackSkip("stacktrace", 1),
		)

		metrics.PipelineFinished(StateFailed)
	}
}

// Stop closes the event channel, cancels all running pipelines and waits
// until they terminated.
// Cancelled pipelines are not reported to the pull request, the events are
// lost.
// Start must have been called before.
func (d *Dispatcher) Stop() {
	d.logger.Debug("dispatcher terminating", logfields.Event("dispatcher_terminating"))
	close(d.ch)

	<-d.loopDone

	d.cancelFn()

	d.logger.Debug(
		"waiting for cancelled pipelines to terminate",
		logfields.Event("dispatcher_terminating"),
	)
	d.pipelineWg.Wait()

	d.logger.Info("dispatcher terminated", logfields.Event("dispatcher_terminated"))
}
