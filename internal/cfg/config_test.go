package cfg

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCfg = `
http_server_listen_addr = ":9000"
github_api_token = "abc"

[merge]
trusted_identities = ["https://github.com/renovate-bot"]
squash_merges = true
poll_timeout = "2h"
`

func TestLoadKeepsDefaults(t *testing.T) {
	config, err := Load(strings.NewReader(testCfg))
	require.NoError(t, err)

	assert.Equal(t, ":9000", config.HTTPListenAddr)
	assert.Equal(t, "abc", config.GithubAPIToken)
	assert.Equal(t, []string{"https://github.com/renovate-bot"}, config.Merge.TrustedIdentities)
	assert.True(t, config.Merge.SquashMerges)
	assert.False(t, config.Merge.DeleteBranches)

	assert.Equal(t, "/payload", config.HTTPGithubWebhookEndpoint)
	assert.Equal(t, "/metrics", config.HTTPMetricsEndpoint)
	assert.Equal(t, "mergekeeper", config.Merge.CommentSignature)
	assert.Equal(t, "logfmt", config.LogFormat)

	durations, err := config.Merge.Durations()
	require.NoError(t, err)
	assert.Equal(t, time.Minute, durations.PollInitialInterval)
	assert.Equal(t, time.Minute, durations.PollIntervalStep)
	assert.Equal(t, 2*time.Hour, durations.PollTimeout)
	assert.Equal(t, time.Duration(0), durations.MergeRetryInterval)

	require.NoError(t, config.Validate())
}

func TestLoadInvalidToml(t *testing.T) {
	_, err := Load(strings.NewReader("http_server_listen_addr = "))
	require.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvGithubUser:          "keeper",
		EnvGithubToken:         "token",
		EnvSquashMerges:        "true",
		EnvDeleteBranches:      "1",
		EnvGithubWebhookSecret: "hush",
		EnvListenAddr:          "127.0.0.1:1234",
	}

	config := Default()
	require.NoError(t, config.ApplyEnv(func(k string) string { return env[k] }))

	assert.Equal(t, "keeper", config.GithubUser)
	assert.Equal(t, "token", config.GithubAPIToken)
	assert.Equal(t, "hush", config.GithubWebHookSecret)
	assert.Equal(t, "127.0.0.1:1234", config.HTTPListenAddr)
	assert.True(t, config.Merge.SquashMerges)
	assert.True(t, config.Merge.DeleteBranches)
}

func TestApplyEnvUnsetKeepsValues(t *testing.T) {
	config := Default()
	config.GithubAPIToken = "fromfile"
	config.Merge.SquashMerges = true

	require.NoError(t, config.ApplyEnv(func(string) string { return "" }))

	assert.Equal(t, "fromfile", config.GithubAPIToken)
	assert.True(t, config.Merge.SquashMerges)
}

func TestApplyEnvInvalidBool(t *testing.T) {
	config := Default()
	err := config.ApplyEnv(func(k string) string {
		if k == EnvSquashMerges {
			return "maybe"
		}
		return ""
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvSquashMerges)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := Default()
		c.GithubAPIToken = "abc"
		return c
	}

	testcases := []struct {
		name   string
		modify func(*Config)
	}{
		{"noListenAddr", func(c *Config) { c.HTTPListenAddr = "" }},
		{"httpsWithoutCert", func(c *Config) { c.HTTPSListenAddr = ":443" }},
		{"noToken", func(c *Config) { c.GithubAPIToken = "" }},
		{"invalidLogFormat", func(c *Config) { c.LogFormat = "xml" }},
		{"relativeEndpoint", func(c *Config) { c.HTTPGithubWebhookEndpoint = "payload" }},
		{"sameEndpoints", func(c *Config) { c.HTTPMetricsEndpoint = c.HTTPGithubWebhookEndpoint }},
		{"noTrustedIdentities", func(c *Config) { c.Merge.TrustedIdentities = nil }},
		{"invalidDuration", func(c *Config) { c.Merge.PollTimeout = "one day" }},
	}

	require.NoError(t, valid().Validate())

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			c := valid()
			tc.modify(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestMarshalRoundtripKeepsMergeSection(t *testing.T) {
	config := Default()
	config.GithubAPIToken = "abc"
	config.Merge.FilterQuery = `.pull_request.base.ref == "main"`

	var buf bytes.Buffer
	require.NoError(t, config.Marshal(&buf))

	loaded, err := Load(&buf)
	require.NoError(t, err)
	assert.Equal(t, config.Merge.FilterQuery, loaded.Merge.FilterQuery)
	assert.Equal(t, config.Merge.TrustedIdentities, loaded.Merge.TrustedIdentities)
}
