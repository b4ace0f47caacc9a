package keeper

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/simplesurance/mergekeeper/internal/logfields"
)

// DefCommentSignature prefixes all comments posted by the Reporter.
const DefCommentSignature = "mergekeeper"

// CommentCreator posts comments to pull requests.
type CommentCreator interface {
	CreateComment(ctx context.Context, commentsURL, comment string) error
}

// Reporter posts pipeline failures as comments to pull requests.
type Reporter struct {
	clt       CommentCreator
	signature string
	logger    *zap.Logger
}

func NewReporter(clt CommentCreator, signature string) *Reporter {
	if signature == "" {
		signature = DefCommentSignature
	}

	return &Reporter{
		clt:       clt,
		signature: signature,
		logger:    zap.L().Named(loggerName).Named("reporter"),
	}
}

// ErrorComment returns the single-line comment body for a failure.
func ErrorComment(signature string, prNumber int, errMsg string) string {
	errMsg = strings.Join(strings.Fields(errMsg), " ")
	errMsg = strings.ReplaceAll(errMsg, "`", "'")

	return fmt.Sprintf("%s(pr: %d): :x: `%s`", signature, prNumber, errMsg)
}

// Report posts a comment containing the error message to the pull request.
// Failures to post the comment are logged only.
func (r *Reporter) Report(ctx context.Context, commentsURL string, prNumber int, reportErr error, logF ...zap.Field) {
	logger := r.logger.With(logF...)

	comment := ErrorComment(r.signature, prNumber, reportErr.Error())

	err := r.clt.CreateComment(ctx, commentsURL, comment)
	if err != nil {
		logger.Error(
			"posting error comment failed",
			logfields.Event("error_comment_creation_failed"),
			zap.String("comment", comment),
			zap.NamedError("reported_error", reportErr),
			zap.Error(err),
		)

		return
	}

	logger.Info(
		"posted error comment",
		logfields.Event("error_comment_created"),
		zap.String("comment", comment),
	)
}
