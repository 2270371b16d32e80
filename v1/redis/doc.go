// Package redis provides the Redis-backed store that remembers handled
// messages.
//
// Consumers acknowledge a delivery after the handler succeeded. If the broker
// connection drops between the handler's side effects and the ack, the message
// is delivered again. With a RedisClient attached, the delivery package checks
// the message id with Seen before running the handler and records it with
// Mark after a successful ack, so such redeliveries are acknowledged without
// being handled twice.
//
// Keys are "<KeyPrefix><queue>:<message id>" and expire after HandledTTL.
//
// # Usage
//
//	client, err := redis.NewClient(redis.Config{
//		Address:    "localhost:6379",
//		HandledTTL: 6 * time.Hour,
//	})
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	consumer.WithDeduplicator(client)
//
// # Configuration
//
//	REDIS_ADDRESS=localhost:6379
//	REDIS_PASSWORD=secret
//	REDIS_KEY_PREFIX=rabbit-dlq:handled:
//	REDIS_HANDLED_TTL=24h
//
// # Observability
//
// With an observer attached, every command is reported with Component "redis"
// and Operation "exists", "setnx" or "delete".
package redis
