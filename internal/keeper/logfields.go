package keeper

import (
	"go.uber.org/zap"

	"github.com/simplesurance/mergekeeper/internal/logfields"
)

var (
	logEventEventIgnored = logfields.Event("github_event_ignored")
	logEventSkipped      = logfields.Event("pull_request_skipped")
	logEventFailed       = logfields.Event("pull_request_pipeline_failed")
)

func logFieldState(state State) zap.Field {
	return zap.String("pipeline_state", string(state))
}

func logFieldReason(reason string) zap.Field {
	return zap.String("reason", reason)
}
