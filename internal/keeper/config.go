package keeper

import (
	"errors"
	"time"
)

// DefTrustedIdentity is the profile URL of the greenkeeper bot.
const DefTrustedIdentity = "https://github.com/greenkeeperio-bot"

// Config configures the pipelines run by the Dispatcher.
type Config struct {
	// TrustedIdentities are profile URLs of automation agents whose pull
	// requests are merged.
	TrustedIdentities []string
	// FilterQuery is an optional jq query that eligible events must
	// additionally match.
	FilterQuery string

	SquashMerges   bool
	DeleteBranches bool

	PollInitialInterval time.Duration
	PollIntervalStep    time.Duration
	// PollTimeout is the maximum sum of waits between polls.
	PollTimeout time.Duration

	MergeRetryInterval time.Duration

	CommentSignature string
}

// DefaultConfig returns a Config with the default values.
func DefaultConfig() *Config {
	return &Config{
		TrustedIdentities:   []string{DefTrustedIdentity},
		PollInitialInterval: DefPollInitialInterval,
		PollIntervalStep:    DefPollIntervalStep,
		PollTimeout:         DefPollTimeout,
		CommentSignature:    DefCommentSignature,
	}
}

func (c *Config) validate() error {
	if c.PollInitialInterval <= 0 {
		return errors.New("poll initial interval must be >0")
	}

	if c.PollIntervalStep < 0 {
		return errors.New("poll interval step must be >=0")
	}

	if c.PollTimeout <= 0 {
		return errors.New("poll timeout must be >0")
	}

	if c.MergeRetryInterval < 0 {
		return errors.New("merge retry interval must be >=0")
	}

	return nil
}
