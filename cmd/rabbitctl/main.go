// Command rabbitctl publishes and consumes RabbitMQ messages with bounded
// retries, broker-side delays and dead-letter queues.
package main

import (
	"context"
	"os"

	"github.com/Aleph-Alpha/rabbit-dlq/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background()))
}
