package rabbit

import (
	"time"

	"github.com/Aleph-Alpha/rabbit-dlq/v1/observability"
)

// observeOperation reports a broker operation to the observer, if one is attached.
// Resource is the exchange or queue, SubResource the routing key.
func (rb *RabbitClient) observeOperation(operation, resource, subResource string, duration time.Duration, err error, size int64) {
	if rb.observer == nil {
		return
	}
	rb.observer.ObserveOperation(observability.OperationContext{
		Component:   "rabbit",
		Operation:   operation,
		Resource:    resource,
		SubResource: subResource,
		Duration:    duration,
		Error:       err,
		Size:        size,
	})
}
