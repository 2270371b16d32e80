package redis

import (
	"fmt"
	"time"

	"github.com/Aleph-Alpha/rabbit-dlq/v1/observability"
)

func (r *RedisClient) observeOperation(operation, resource, subResource string, duration time.Duration, err error, size int64, metadata map[string]interface{}) {
	if r == nil || r.observer == nil {
		return
	}

	var labels map[string]string
	if len(metadata) > 0 {
		labels = make(map[string]string, len(metadata))
		for k, v := range metadata {
			labels[k] = fmt.Sprint(v)
		}
	}

	r.observer.ObserveOperation(observability.OperationContext{
		Component:   "redis",
		Operation:   operation,
		Resource:    resource,
		SubResource: subResource,
		Duration:    duration,
		Error:       err,
		Size:        size,
		Metadata:    labels,
	})
}
