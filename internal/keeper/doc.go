// Package keeper merges pull requests opened or updated by trusted
// dependency-update bots.
//
// For every received pull request webhook event the Dispatcher runs a
// pipeline in its own go-routine:
//
//   - The Filter decides if the event is eligible. Only "opened" events
//     sent by a trusted identity and "synchronize" events for pull
//     requests authored by a trusted identity are accepted.
//   - The Validator polls the pull request until github reports its
//     mergeable state as clean. The wait between polls grows linearly,
//     when the sum of all waits exceeds the configured timeout, validation
//     fails with a keepererr.PendingTimeoutError.
//   - The Merger merges the pull request, a failed merge is retried exactly
//     once. Afterwards the head branch is optionally deleted.
//   - When validating or merging fails, the Reporter posts a comment
//     with the error to the pull request.
//
// Pipelines are not persisted. When the process terminates while a pull
// request is validated, the pipeline is lost.
package keeper
