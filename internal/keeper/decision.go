package keeper

import "fmt"

// Decision is the result of evaluating if an event is eligible for being
// merged.
type Decision uint8

const (
	DecisionUndefined Decision = iota
	SkipUnsupportedAction
	SkipUntrustedIdentity
	SkipFilterMismatch
	Accept
)

var decisionString = [...]string{
	DecisionUndefined:     "undefined",
	SkipUnsupportedAction: "unsupported action",
	SkipUntrustedIdentity: "untrusted identity",
	SkipFilterMismatch:    "filter query mismatch",
	Accept:                "accepted",
}

func (d Decision) String() string {
	if int(d) > len(decisionString)-1 {
		return fmt.Sprintf("unsupported Decision value: %d", d)
	}

	return decisionString[d]
}
