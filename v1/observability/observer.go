// Package observability defines the hook through which clients in this module
// report the operations they perform.
//
// Clients accept an optional Observer and call it once per operation. The metrics
// package provides the Prometheus-backed implementation; tests can plug in a
// recording observer.
package observability

import "time"

// OperationContext describes a single operation performed by a component.
type OperationContext struct {
	// Component is the reporting package, e.g. "rabbit" or "delivery".
	Component string

	// Operation is the action, e.g. "produce", "consume", "retry", "dead_letter".
	Operation string

	// Resource is the queue or exchange the operation targeted.
	Resource string

	// SubResource is the routing key or a secondary identifier, may be empty.
	SubResource string

	// Duration is how long the operation took.
	Duration time.Duration

	// Error is the failure, nil on success.
	Error error

	// Size is the payload size in bytes when known.
	Size int64

	// Metadata carries additional labels; implementations may ignore it.
	Metadata map[string]string
}

// Observer receives operation notifications. Implementations must be safe for
// concurrent use and must not block.
type Observer interface {
	ObserveOperation(ctx OperationContext)
}
