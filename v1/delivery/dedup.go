package delivery

import (
	"context"

	"github.com/Aleph-Alpha/rabbit-dlq/v1/envelope"
)

func dedupKey(queue string, env envelope.Envelope) string {
	return queue + ":" + env.MessageID()
}

// isDuplicate reports whether env was already handled on queue. Messages
// without an id are never duplicates, and store errors count as "not seen".
func isDuplicate(ctx context.Context, inst *instrumentation, store Deduplicator, queue string, env envelope.Envelope) bool {
	if store == nil || env.MessageID() == "" {
		return false
	}
	seen, err := store.Seen(ctx, dedupKey(queue, env))
	if err != nil {
		inst.logWarn(ctx, "Duplicate check failed", err, map[string]interface{}{
			"queue":      queue,
			"message_id": env.MessageID(),
		})
		return false
	}
	if seen {
		inst.logInfo(ctx, "Duplicate delivery acknowledged without handling", map[string]interface{}{
			"queue":      queue,
			"message_id": env.MessageID(),
		})
	}
	return seen
}

func markHandled(ctx context.Context, inst *instrumentation, store Deduplicator, queue string, env envelope.Envelope) {
	if store == nil || env.MessageID() == "" {
		return
	}
	if err := store.Mark(ctx, dedupKey(queue, env)); err != nil {
		inst.logWarn(ctx, "Failed to record handled message", err, map[string]interface{}{
			"queue":      queue,
			"message_id": env.MessageID(),
		})
	}
}
