// Package delivery implements reliable message delivery on top of the rabbit
// client: bounded retries carried in message headers, dead-letter queues,
// broker-side delayed delivery, and a diagnostic dead-letter observer.
//
// # Retry model
//
// Every message carries its own retry state in three headers:
//
//	retries              attempts already made (int32, zero on first publish)
//	x-dead-letter-queue  where the message goes when retries are exhausted
//	x-message-id         a logical id that stays the same across republishes
//
// A Consumer settles each delivery exactly once. When the handler succeeds the
// delivery is acknowledged. When it fails and retries < MaxRetries, the
// delivery is rejected and a copy with retries+1 is published back to the route
// it arrived on. When retries reached MaxRetries, the delivery is nacked and a
// copy is published to the dead-letter queue with an x-death-reason header.
// Handlers can skip the remaining attempts by returning Permanent(err).
//
// Because the count travels with the message, consumers keep no per-message
// state and any number of them can share a queue.
//
// # Delayed delivery
//
// DelayedPublisher parks a message in a staging queue named
// "<prefix>.<destination>.<ms>ms" whose x-message-ttl is the delay and whose
// dead-letter route points at the destination. The broker forwards the message
// when the TTL expires; nothing consumes the staging queue. Setting
// Config.BrokerDelayedRetry routes a Consumer's retries through the same
// mechanism instead of sleeping between reject and republish.
//
// # Usage
//
//	consumer, err := delivery.NewConsumer(client, delivery.Config{
//		Queue:           "example4",
//		MaxRetries:      3,
//		DeadLetterQueue: "dlx",
//	}, func(ctx context.Context, env envelope.Envelope) error {
//		return process(ctx, env.Body())
//	})
//	if err != nil {
//		return err
//	}
//
//	observer, _ := delivery.NewDeadLetterObserver(client, delivery.ObserverConfig{Queue: "dlx"})
//
//	return delivery.RunAll(ctx, consumer, observer)
//
// # Errors
//
// Handler errors never leave a Consumer. Run and HandleDelivery only return
// broker failures that happened while settling a delivery, as a
// *DeliveryTransportError matching ErrDeliveryTransport and the rabbit package
// sentinel of the failed operation:
//
//	if errors.Is(err, delivery.ErrDeliveryTransport) && rabbit.IsRetryableError(err) {
//	    // reconnect and run again
//	}
//
// # FX
//
// FXModule provides the components and runs every value in the
// "delivery_runners" group for the lifetime of the application; see AsRunner.
package delivery
