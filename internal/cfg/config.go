// Package cfg loads the mergekeeper configuration file.
package cfg

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml"
)

const (
	EnvGithubUser          = "GITHUB_USER"
	EnvGithubToken         = "GITHUB_TOKEN"
	EnvSquashMerges        = "SQUASH_MERGES"
	EnvDeleteBranches      = "DELETE_BRANCHES"
	EnvGithubWebhookSecret = "GITHUB_WEBHOOK_SECRET"
	EnvListenAddr          = "MERGEKEEPER_LISTEN_ADDR"
)

type Config struct {
	HTTPListenAddr            string `toml:"http_server_listen_addr"`
	HTTPSListenAddr           string `toml:"https_server_listen_addr"`
	HTTPSCertFile             string `toml:"https_ssl_cert_file"`
	HTTPSKeyFile              string `toml:"https_ssl_key_file"`
	HTTPGithubWebhookEndpoint string `toml:"github_webhook_endpoint"`
	HTTPMetricsEndpoint       string `toml:"metrics_endpoint"`
	GithubWebHookSecret       string `toml:"github_webhook_secret"`
	GithubUser                string `toml:"github_user"`
	GithubAPIToken            string `toml:"github_api_token"`
	GithubAPIURL              string `toml:"github_api_url"`
	GithubGraphQLURL          string `toml:"github_graphql_url"`
	LogFormat                 string `toml:"log_format"`
	LogTimeKey                string `toml:"log_time_key"`
	LogLevel                  string `toml:"log_level"`
	Merge                     Merge  `toml:"merge"`
}

// Merge configures which pull requests are merged and how.
type Merge struct {
	TrustedIdentities   []string `toml:"trusted_identities"`
	FilterQuery         string   `toml:"filter_query"`
	SquashMerges        bool     `toml:"squash_merges"`
	DeleteBranches      bool     `toml:"delete_branches"`
	PollInitialInterval string   `toml:"poll_initial_interval"`
	PollIntervalStep    string   `toml:"poll_interval_step"`
	PollTimeout         string   `toml:"poll_timeout"`
	MergeRetryInterval  string   `toml:"merge_retry_interval"`
	CommentSignature    string   `toml:"comment_signature"`
}

// Default returns a configuration with the default values.
func Default() *Config {
	return &Config{
		HTTPListenAddr:            ":8085",
		HTTPGithubWebhookEndpoint: "/payload",
		HTTPMetricsEndpoint:       "/metrics",
		GithubAPIURL:              "https://api.github.com/",
		GithubGraphQLURL:          "https://api.github.com/graphql",
		LogFormat:                 "logfmt",
		LogTimeKey:                "time_iso8601",
		LogLevel:                  "info",
		Merge: Merge{
			TrustedIdentities:   []string{"https://github.com/greenkeeperio-bot"},
			PollInitialInterval: "1m",
			PollIntervalStep:    "1m",
			PollTimeout:         "24h",
			MergeRetryInterval:  "0s",
			CommentSignature:    "mergekeeper",
		},
	}
}

// Load reads a TOML configuration from reader.
// Settings that are not defined in the file keep their default values.
func Load(reader io.Reader) (*Config, error) {
	result := Default()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	if err := toml.Unmarshal(data, result); err != nil {
		return nil, err
	}

	return result, nil
}

func (c *Config) Marshal(writer io.Writer) error {
	return toml.NewEncoder(writer).Encode(c)
}

// ApplyEnv overwrites settings with the values of the environment variables
// that are set.
// getenv is usually os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvGithubUser); v != "" {
		c.GithubUser = v
	}

	if v := getenv(EnvGithubToken); v != "" {
		c.GithubAPIToken = v
	}

	if v := getenv(EnvGithubWebhookSecret); v != "" {
		c.GithubWebHookSecret = v
	}

	if v := getenv(EnvListenAddr); v != "" {
		c.HTTPListenAddr = v
	}

	if v := getenv(EnvSquashMerges); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("environment variable %s: %w", EnvSquashMerges, err)
		}
		c.Merge.SquashMerges = b
	}

	if v := getenv(EnvDeleteBranches); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("environment variable %s: %w", EnvDeleteBranches, err)
		}
		c.Merge.DeleteBranches = b
	}

	return nil
}

// Durations are the parsed duration settings of the merge section.
type Durations struct {
	PollInitialInterval time.Duration
	PollIntervalStep    time.Duration
	PollTimeout         time.Duration
	MergeRetryInterval  time.Duration
}

// Durations parses the duration settings of the merge section.
func (m *Merge) Durations() (*Durations, error) {
	var result Durations

	for _, d := range []struct {
		name string
		val  string
		dst  *time.Duration
	}{
		{"poll_initial_interval", m.PollInitialInterval, &result.PollInitialInterval},
		{"poll_interval_step", m.PollIntervalStep, &result.PollIntervalStep},
		{"poll_timeout", m.PollTimeout, &result.PollTimeout},
		{"merge_retry_interval", m.MergeRetryInterval, &result.MergeRetryInterval},
	} {
		v, err := time.ParseDuration(d.val)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.name, err)
		}

		*d.dst = v
	}

	return &result, nil
}

// Validate returns an error if the configuration is incomplete or contains
// invalid values.
func (c *Config) Validate() error {
	if c.HTTPListenAddr == "" && c.HTTPSListenAddr == "" {
		return errors.New("https_server_listen_addr or http_server_listen_addr must be defined, both are unset")
	}

	if c.HTTPSListenAddr != "" && (c.HTTPSCertFile == "" || c.HTTPSKeyFile == "") {
		return errors.New("https_ssl_cert_file and https_ssl_key_file must be defined when https_server_listen_addr is set")
	}

	if !strings.HasPrefix(c.HTTPGithubWebhookEndpoint, "/") {
		return fmt.Errorf("github_webhook_endpoint %q must start with a /", c.HTTPGithubWebhookEndpoint)
	}

	if c.HTTPMetricsEndpoint != "" && c.HTTPMetricsEndpoint == c.HTTPGithubWebhookEndpoint {
		return errors.New("metrics_endpoint and github_webhook_endpoint must differ")
	}

	if c.GithubAPIToken == "" {
		return fmt.Errorf("github_api_token or the %s environment variable must be set", EnvGithubToken)
	}

	switch c.LogFormat {
	case "logfmt", "console", "json":
	default:
		return fmt.Errorf("unsupported log_format: %q", c.LogFormat)
	}

	if len(c.Merge.TrustedIdentities) == 0 {
		return errors.New("merge.trusted_identities is empty")
	}

	if _, err := c.Merge.Durations(); err != nil {
		return fmt.Errorf("merge: %w", err)
	}

	return nil
}
