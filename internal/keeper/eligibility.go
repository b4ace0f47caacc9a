package keeper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/itchyny/gojq"
)

// TrustFunc reports if an identity is a trusted automation agent.
type TrustFunc func(Identity) bool

// TrustedURLs returns a TrustFunc that trusts identities whose profile URL
// is one of urls.
// URLs are compared case-insensitively, trailing slashes are ignored.
func TrustedURLs(urls ...string) TrustFunc {
	set := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		set[normalizeProfileURL(u)] = struct{}{}
	}

	return func(id Identity) bool {
		if id.HTMLURL == "" {
			return false
		}

		_, exist := set[normalizeProfileURL(id.HTMLURL)]
		return exist
	}
}

func normalizeProfileURL(u string) string {
	return strings.ToLower(strings.TrimSuffix(strings.TrimSpace(u), "/"))
}

// Filter decides if an event triggers validating and merging a pull
// request.
type Filter struct {
	trusted     TrustFunc
	filterQuery *gojq.Query
}

// NewFilter returns a Filter that accepts events from identities that
// trusted returns true for.
// If jqQuery is not empty, accepted events must additionally match the jq
// query. The query is evaluated against the JSON payload of the event and
// must return a single boolean.
func NewFilter(trusted TrustFunc, jqQuery string) (*Filter, error) {
	if trusted == nil {
		return nil, errors.New("trust func is nil")
	}

	f := Filter{trusted: trusted}

	if jqQuery != "" {
		query, err := gojq.Parse(jqQuery)
		if err != nil {
			return nil, fmt.Errorf("parsing filter query failed: %w", err)
		}

		f.filterQuery = query
	}

	return &f, nil
}

// Evaluate returns Accept if the event is eligible.
// For "opened" events the sender must be trusted, for "synchronize" events
// the author of the pull request. Events with other actions are never
// eligible.
func (f *Filter) Evaluate(ctx context.Context, ev *Event) (Decision, error) {
	var identity Identity

	switch ev.Action {
	case ActionOpened:
		identity = ev.Sender
	case ActionSynchronize:
		identity = ev.PullRequest.User
	default:
		return SkipUnsupportedAction, nil
	}

	if !f.trusted(identity) {
		return SkipUntrustedIdentity, nil
	}

	if f.filterQuery == nil {
		return Accept, nil
	}

	match, err := f.matchQuery(ctx, ev.JSON)
	if err != nil {
		return DecisionUndefined, err
	}

	if !match {
		return SkipFilterMismatch, nil
	}

	return Accept, nil
}

func (f *Filter) matchQuery(ctx context.Context, payload []byte) (bool, error) {
	var evUn any

	if len(payload) == 0 {
		return false, errors.New("json payload of event is empty")
	}

	if err := json.Unmarshal(payload, &evUn); err != nil {
		return false, fmt.Errorf("unmarshaling json failed: %w", err)
	}

	result, errs := goJQIterToSlice(f.filterQuery.RunWithContext(ctx, evUn))
	if len(errs) != 0 {
		return false, fmt.Errorf("json query returned errors, query: %q, errors: %s", f.filterQuery.String(), errString(errs))
	}

	if len(result) != 1 {
		return false, fmt.Errorf("json query returned %d results, expected 1, query: %q", len(result), f.filterQuery.String())
	}

	val, ok := result[0].(bool)
	if !ok {
		return false, fmt.Errorf(
			"json query returned non-bool result: %+v (%T), query: %q",
			result[0], result[0], f.filterQuery.String(),
		)
	}

	return val, nil
}

func goJQIterToSlice(iter gojq.Iter) ([]any, []error) {
	var result []any
	var errs []error

	for {
		res, ok := iter.Next()
		if !ok {
			return result, errs
		}

		if err, isErr := res.(error); isErr {
			errs = append(errs, err)
			continue
		}

		result = append(result, res)
	}
}

func errString(errs []error) string {
	var result strings.Builder

	for i, err := range errs {
		if i > 0 {
			result.WriteString("; ")
		}

		result.WriteString(fmt.Sprintf("error %d: %s", i, err))
	}

	return result.String()
}
