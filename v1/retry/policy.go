// Package retry decides whether a failed delivery gets another attempt or is
// routed to its dead-letter destination.
package retry

import (
	"errors"
	"fmt"
)

// ErrInvalidMaxRetries is returned by NewPolicy for a non-positive maximum.
var ErrInvalidMaxRetries = errors.New("max retries must be positive")

// Decision is the outcome of consulting a policy.
type Decision int

const (
	// Retry means the message is republished with an incremented retry count.
	Retry Decision = iota

	// DeadLetter means the retry budget is spent.
	DeadLetter
)

// String returns the lower-case name used in logs and metric labels.
func (d Decision) String() string {
	switch d {
	case Retry:
		return "retry"
	case DeadLetter:
		return "dead_letter"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// Decide returns Retry iff retryCount < maxRetries. A message that already made
// maxRetries attempts is the first one to be dead-lettered.
func Decide(retryCount, maxRetries int) Decision {
	if retryCount < maxRetries {
		return Retry
	}
	return DeadLetter
}

// Policy is a validated, immutable retry threshold.
type Policy struct {
	maxRetries int
}

// NewPolicy creates a Policy allowing maxRetries republishes of a message.
func NewPolicy(maxRetries int) (Policy, error) {
	if maxRetries <= 0 {
		return Policy{}, fmt.Errorf("%w: got %d", ErrInvalidMaxRetries, maxRetries)
	}
	return Policy{maxRetries: maxRetries}, nil
}

// MaxRetries returns the configured threshold.
func (p Policy) MaxRetries() int {
	return p.maxRetries
}

// Decide applies the policy to the given retry count.
func (p Policy) Decide(retryCount int) Decision {
	return Decide(retryCount, p.maxRetries)
}
