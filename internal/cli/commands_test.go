package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Aleph-Alpha/rabbit-dlq/v1/archive"
	"github.com/Aleph-Alpha/rabbit-dlq/v1/delivery"
	"github.com/Aleph-Alpha/rabbit-dlq/v1/envelope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("AMQP_URI", "")

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "absent.env")))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommandTree(t *testing.T) {
	root := NewRootCommand()

	for _, path := range [][]string{
		{"send"},
		{"receive"},
		{"fanout", "send"},
		{"fanout", "receive"},
		{"retry", "send"},
		{"retry", "receive"},
		{"delayed", "send"},
		{"dlq", "watch"},
		{"dlq", "list"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestRetryReceiveFlagDefaults(t *testing.T) {
	root := NewRootCommand()
	cmd, _, err := root.Find([]string{"retry", "receive"})
	require.NoError(t, err)

	assert.Equal(t, "example4", cmd.Flag("queue").DefValue)
	assert.Equal(t, "3", cmd.Flag("max-retries").DefValue)
	assert.Equal(t, "0s", cmd.Flag("delay").DefValue)
	assert.Equal(t, "false", cmd.Flag("unconditional").DefValue)
	assert.Equal(t, delivery.DefaultDeadLetterQueue, cmd.Flag("dlq").DefValue)
}

func TestCommandsRequireBrokerAddress(t *testing.T) {
	_, err := runCommand(t, "send", "hello")
	assert.ErrorIs(t, err, ErrMissingAMQPURI)

	_, err = runCommand(t, "retry", "receive")
	assert.ErrorIs(t, err, ErrMissingAMQPURI)
}

func TestExplicitEnvFileMustExist(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"send", "x", "--env-file", filepath.Join(t.TempDir(), "missing.env")})

	assert.Error(t, cmd.ExecuteContext(context.Background()))
}

func TestDelayedSendRejectsBadTTL(t *testing.T) {
	_, err := runCommand(t, "delayed", "send", "hello", "soon")
	assert.ErrorContains(t, err, "ttl-ms")

	_, err = runCommand(t, "send")
	assert.Error(t, err)
}

func TestDLQRequiresArchiveDSN(t *testing.T) {
	t.Setenv("ARCHIVE_DSN", "")

	_, err := runCommand(t, "dlq", "list")
	assert.ErrorIs(t, err, ErrMissingArchiveDSN)
}

func TestParseDelay(t *testing.T) {
	d, err := parseDelay("2000")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, d)

	for _, bad := range []string{"0", "-5", "1.5", ""} {
		_, err := parseDelay(bad)
		assert.Error(t, err, bad)
	}
}

func TestRetryHandler(t *testing.T) {
	var out bytes.Buffer
	env := envelope.New([]byte("order-42"), "dlx").WithRetryCount(2)

	assert.NoError(t, retryHandler(&out, false)(context.Background(), env))
	assert.ErrorIs(t, retryHandler(&out, true)(context.Background(), env), errSimulated)
	assert.Contains(t, out.String(), " [x] Received order-42 (retry 2)")
}

func TestPrintRecords(t *testing.T) {
	var out bytes.Buffer
	records := []archive.Record{{
		MessageID:        "m-1",
		Queue:            "dlx",
		OriginRoutingKey: "example4",
		RetryCount:       3,
		Reason:           "retries_exhausted",
		Body:             []byte("payload"),
		ReceivedAt:       time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}}

	require.NoError(t, printRecords(&out, records))
	assert.Contains(t, out.String(), "MESSAGE ID")
	assert.Contains(t, out.String(), "2024-05-01T10:00:00Z")
	assert.Contains(t, out.String(), "/example4")
	assert.Contains(t, out.String(), "retries_exhausted")
	assert.Equal(t, "abc...", truncate("abcdef", 3))
}

func TestModuleGraphs(t *testing.T) {
	s := Settings{AMQPURI: "amqp://localhost/", MetricsAddress: ":0", RedisAddress: "localhost:6379", ArchiveDSN: "x"}

	tests := map[string]fx.Option{
		"consumer":   consumerModule(s, delivery.Config{Queue: "example4"}, retryHandler(&bytes.Buffer{}, false)),
		"subscriber": subscriberModule(s, delivery.SubscriberConfig{Queue: "example1"}, &bytes.Buffer{}),
		"observer": fx.Options(
			delivery.FXModule,
			archiveModule(s),
			fx.Supply(delivery.ObserverConfig{}),
			fx.Provide(delivery.AsRunner(func(o *delivery.DeadLetterObserver) *delivery.DeadLetterObserver { return o })),
		),
	}

	for name, opts := range tests {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, fx.ValidateApp(baseModules(s), opts))
		})
	}
}
