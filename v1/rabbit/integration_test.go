package rabbit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/fx"
)

// TestPublishConsumeRoundTrip publishes with headers through the default
// exchange and consumes the message back with prefetch 1.
//
// Test Flow:
//  1. Start a RabbitMQ container and the client through the fx module.
//  2. Declare a durable queue and publish a message with retry headers.
//  3. Consume it, check body, headers and route, and acknowledge it.
//  4. Stop the app and verify the consumer channel closes.
func TestPublishConsumeRoundTrip(t *testing.T) {
	ctx := context.Background()
	host, port, containerInstance := initializeRabbitMQ(ctx)
	defer terminate(t, containerInstance)
	waitForPort(t, host, port)

	var client *RabbitClient
	app := fx.New(
		FXModule,
		fx.Provide(func() Config { return testConfig(host, port) }),
		fx.Populate(&client),
		fx.NopLogger,
	)
	require.NoError(t, app.Start(ctx))

	_, err := client.DeclareQueue(ctx, "example4", QueueOptions{Durable: true})
	require.NoError(t, err)

	err = client.Publish(ctx, Route{RoutingKey: "example4"}, []byte("hello"), map[string]interface{}{
		"retries":             int32(2),
		"x-dead-letter-queue": "dlx",
	})
	require.NoError(t, err)

	consumeCtx, cancel := context.WithCancel(ctx)
	wg := &sync.WaitGroup{}
	msgs := client.Consume(consumeCtx, wg, "example4", 1)

	select {
	case msg := <-msgs:
		require.NotNil(t, msg)
		assert.Equal(t, "hello", string(msg.Body()))
		assert.EqualValues(t, 2, msg.Header()["retries"])
		assert.Equal(t, "dlx", msg.Header()["x-dead-letter-queue"])
		assert.Equal(t, Route{RoutingKey: "example4"}, msg.Route())
		require.NoError(t, msg.AckMsg())
	case <-time.After(10 * time.Second):
		t.Fatal("message was not consumed")
	}

	cancel()
	wg.Wait()

	_, open := <-msgs
	assert.False(t, open, "consumer channel should be closed after cancellation")

	require.NoError(t, app.Stop(ctx))
}

// TestTTLQueueForwardsToDestination checks the broker-side delay: a message
// published to a queue with x-message-ttl and x-dead-letter-routing-key appears
// on the destination queue once the TTL elapses, and not before.
func TestTTLQueueForwardsToDestination(t *testing.T) {
	ctx := context.Background()
	host, port, containerInstance := initializeRabbitMQ(ctx)
	defer terminate(t, containerInstance)
	waitForPort(t, host, port)

	client, err := NewClient(testConfig(host, port))
	require.NoError(t, err)
	defer client.GracefulShutdown()

	_, err = client.DeclareQueue(ctx, "orders", QueueOptions{Durable: true})
	require.NoError(t, err)

	staging, err := client.DeclareQueue(ctx, "delayed.orders.1500ms", QueueOptions{
		Durable:          true,
		TTL:              1500 * time.Millisecond,
		DeadLetterTarget: "orders",
		Expires:          1500*time.Millisecond + 5*time.Minute,
	})
	require.NoError(t, err)

	published := time.Now()
	require.NoError(t, client.Publish(ctx, Route{RoutingKey: staging.Name}, []byte("later")))

	consumeCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	wg := &sync.WaitGroup{}

	select {
	case msg := <-client.Consume(consumeCtx, wg, "orders", 1):
		require.NotNil(t, msg)
		assert.Equal(t, "later", string(msg.Body()))
		assert.GreaterOrEqual(t, time.Since(published), 1500*time.Millisecond)
		require.NoError(t, msg.AckMsg())
	case <-time.After(15 * time.Second):
		t.Fatal("message was not forwarded after its TTL")
	}

	cancel()
	wg.Wait()
}

// TestChannelReopenedAfterPreconditionFailure redeclares a queue with
// conflicting arguments. The broker closes the channel; RetryConnection reopens
// it and the client keeps working.
func TestChannelReopenedAfterPreconditionFailure(t *testing.T) {
	ctx := context.Background()
	host, port, containerInstance := initializeRabbitMQ(ctx)
	defer terminate(t, containerInstance)
	waitForPort(t, host, port)

	cfg := testConfig(host, port)
	client, err := NewClient(cfg)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		client.RetryConnection(cfg)
	}()

	_, err = client.DeclareQueue(ctx, "conflict", QueueOptions{Durable: true})
	require.NoError(t, err)

	_, err = client.DeclareQueue(ctx, "conflict", QueueOptions{Durable: true, TTL: time.Second})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDeclareFailed)
	assert.ErrorIs(t, err, ErrPreconditionFailed)

	require.Eventually(t, func() bool {
		_, err := client.DeclareQueue(ctx, "conflict", QueueOptions{Durable: true})
		return err == nil
	}, 10*time.Second, 200*time.Millisecond, "channel should be reopened")

	require.NoError(t, client.Publish(ctx, Route{RoutingKey: "conflict"}, []byte("still here")))

	// a second channel failure on the same connection must not add a listener
	_, err = client.DeclareQueue(ctx, "conflict", QueueOptions{Durable: true, TTL: time.Second})
	require.Error(t, err)
	require.Eventually(t, func() bool {
		_, err := client.DeclareQueue(ctx, "conflict", QueueOptions{Durable: true})
		return err == nil
	}, 10*time.Second, 200*time.Millisecond, "channel should be reopened again")

	client.mu.RLock()
	assert.Equal(t, 1, client.connWatches)
	client.mu.RUnlock()

	client.GracefulShutdown()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("RetryConnection did not stop on shutdown")
	}
}

func testConfig(host string, port int) Config {
	return Config{
		Connection: Connection{
			Host:     host,
			Port:     uint(port),
			User:     "guest",
			Password: "guest",
		},
		Channel: Channel{
			ContentType:   "text/plain",
			PrefetchCount: 1,
		},
	}
}

func waitForPort(t *testing.T, host string, port int) {
	t.Helper()
	require.Eventually(t, func() bool {
		conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, strconv.Itoa(port)), 2*time.Second)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}, 60*time.Second, 500*time.Millisecond, "RabbitMQ port not ready")
}

func terminate(t *testing.T, c testcontainers.Container) {
	if err := c.Terminate(context.Background()); err != nil {
		t.Logf("failed to terminate rabbit container: %v", err)
	}
}

func initializeRabbitMQ(ctx context.Context) (string, int, testcontainers.Container) {
	hostPort, err := getFreePort()
	if err != nil {
		log.Fatalf("Failed to find free port: %v", err)
	}

	containerInstance, err := createRabbitMQContainer(ctx, hostPort)
	if err != nil {
		log.Fatalf("Failed to create container: %v", err)
	}

	port, err := containerInstance.MappedPort(ctx, "5672")
	if err != nil {
		log.Fatalf("Failed to get mapped port: %v", err)
	}
	host, err := containerInstance.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get host: %v", err)
	}
	return host, port.Int(), containerInstance
}

// createRabbitMQContainer starts rabbitmq:4-management bound to hostPort and
// waits until the node reports a healthy status. Docker socket hiccups are
// retried.
func createRabbitMQContainer(ctx context.Context, hostPort string) (testcontainers.Container, error) {
	var containerInstance testcontainers.Container
	var lastErr error

	for attempt := 0; attempt < 3; attempt++ {
		portBindings := nat.PortMap{
			"5672/tcp": []nat.PortBinding{{HostPort: hostPort}},
		}

		req := testcontainers.ContainerRequest{
			Image:        "rabbitmq:4-management",
			ExposedPorts: []string{"5672/tcp"},
			HostConfigModifier: func(cfg *container.HostConfig) {
				cfg.PortBindings = portBindings
			},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("5672/tcp").WithStartupTimeout(20*time.Second),
				wait.ForExec([]string{"rabbitmq-diagnostics", "status"}).WithExitCodeMatcher(func(exitCode int) bool {
					return exitCode == 0
				}).WithStartupTimeout(10*time.Second),
			),
		}

		containerInstance, lastErr = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
		if lastErr == nil {
			return containerInstance, nil
		}

		if strings.Contains(lastErr.Error(), "docker.sock") || errors.Is(lastErr, io.EOF) {
			log.Printf("Attempt %d: Docker socket error, retrying in %d seconds: %v", attempt+1, attempt+1, lastErr)
			time.Sleep(time.Duration(attempt+1) * time.Second)
			continue
		}
		break
	}

	return nil, fmt.Errorf("failed to start RabbitMQ container after %d attempts: %w", 3, lastErr)
}

func getFreePort() (string, error) {
	l, err := net.Listen("tcp", ":0")
	if err != nil {
		return "", err
	}
	defer func() { _ = l.Close() }()
	return strconv.Itoa(l.Addr().(*net.TCPAddr).Port), nil
}
