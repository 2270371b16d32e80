package delivery

import "time"

// Defaults applied by the constructors when a field is left zero.
const (
	DefaultMaxRetries         = 3
	DefaultPrefetch           = 1
	DefaultDelayedQueuePrefix = "delayed"
	DefaultDeadLetterQueue    = "dlx"

	// stagingQueueGrace is added to a staging queue's TTL to form its x-expires,
	// so idle staging queues disappear once their last message has been forwarded.
	stagingQueueGrace = 5 * time.Minute
)

// Config configures a Consumer.
type Config struct {
	// Queue is the source queue the consumer reads from.
	Queue string `yaml:"queue" envconfig:"DELIVERY_QUEUE"`

	// Durable declares the source queue as durable.
	Durable bool `yaml:"durable" envconfig:"DELIVERY_DURABLE"`

	// BindExchange optionally binds Queue to an existing exchange with the queue
	// name as routing key, e.g. "amq.direct".
	BindExchange string `yaml:"bind_exchange" envconfig:"DELIVERY_BIND_EXCHANGE"`

	// MaxRetries is the number of republishes a message gets before it is
	// dead-lettered. Defaults to 3.
	MaxRetries int `yaml:"max_retries" envconfig:"DELIVERY_MAX_RETRIES"`

	// UnconditionalRetry retries every message until MaxRetries regardless of
	// the handler's result.
	UnconditionalRetry bool `yaml:"unconditional_retry" envconfig:"DELIVERY_UNCONDITIONAL_RETRY"`

	// RetryDelay is the pause before a message is republished. Zero republishes
	// immediately.
	RetryDelay time.Duration `yaml:"retry_delay" envconfig:"DELIVERY_RETRY_DELAY"`

	// BrokerDelayedRetry moves RetryDelay onto the broker: the retry is published
	// to a TTL staging queue that forwards back to Queue, instead of sleeping in
	// the consumer loop.
	BrokerDelayedRetry bool `yaml:"broker_delayed_retry" envconfig:"DELIVERY_BROKER_DELAYED_RETRY"`

	// DeadLetterQueue is used for messages that do not name their own
	// dead-letter target in the x-dead-letter-queue header. Defaults to "dlx".
	DeadLetterQueue string `yaml:"dead_letter_queue" envconfig:"DELIVERY_DEAD_LETTER_QUEUE"`

	// Prefetch caps unacknowledged deliveries. Deliveries are settled one at a
	// time, so any value other than 1 is clamped to 1.
	Prefetch int `yaml:"prefetch" envconfig:"DELIVERY_PREFETCH"`

	// DelayedQueuePrefix prefixes staging queue names. Defaults to "delayed".
	DelayedQueuePrefix string `yaml:"delayed_queue_prefix" envconfig:"DELIVERY_DELAYED_QUEUE_PREFIX"`
}

func (c Config) withDefaults() Config {
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.DeadLetterQueue == "" {
		c.DeadLetterQueue = DefaultDeadLetterQueue
	}
	c.Prefetch = DefaultPrefetch
	if c.DelayedQueuePrefix == "" {
		c.DelayedQueuePrefix = DefaultDelayedQueuePrefix
	}
	return c
}

// ObserverConfig configures a DeadLetterObserver.
type ObserverConfig struct {
	// Queue is the dead-letter queue to drain. Defaults to "dlx".
	Queue string `yaml:"queue" envconfig:"DEAD_LETTER_QUEUE"`

	// Prefetch caps unacknowledged deliveries. Clamped to 1.
	Prefetch int `yaml:"prefetch" envconfig:"DEAD_LETTER_PREFETCH"`
}

func (c ObserverConfig) withDefaults() ObserverConfig {
	if c.Queue == "" {
		c.Queue = DefaultDeadLetterQueue
	}
	c.Prefetch = DefaultPrefetch
	return c
}

// SubscriberConfig configures a plain Subscriber.
type SubscriberConfig struct {
	// Queue is the queue to consume.
	Queue string `yaml:"queue" envconfig:"SUBSCRIBER_QUEUE"`

	// Durable declares Queue as durable.
	Durable bool `yaml:"durable" envconfig:"SUBSCRIBER_DURABLE"`

	// Exchange, when set, is declared with ExchangeKind and Queue is bound to it.
	Exchange string `yaml:"exchange" envconfig:"SUBSCRIBER_EXCHANGE"`

	// ExchangeKind is "fanout", "direct" or "topic". Defaults to fanout.
	ExchangeKind string `yaml:"exchange_kind" envconfig:"SUBSCRIBER_EXCHANGE_KIND"`

	// RoutingKey is the binding key. Ignored by fanout exchanges.
	RoutingKey string `yaml:"routing_key" envconfig:"SUBSCRIBER_ROUTING_KEY"`

	// Prefetch caps unacknowledged deliveries. Clamped to 1.
	Prefetch int `yaml:"prefetch" envconfig:"SUBSCRIBER_PREFETCH"`
}

func (c SubscriberConfig) withDefaults() SubscriberConfig {
	if c.ExchangeKind == "" {
		c.ExchangeKind = "fanout"
	}
	c.Prefetch = DefaultPrefetch
	return c
}
