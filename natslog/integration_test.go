package natslog

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/yoe/dvswitch/health"
)

// startNATSContainer starts a real NATS broker in a container and returns
// its connection URL, for tests that need Connect to dial something real
// rather than a mocked *nats.Conn.
func startNATSContainer(ctx context.Context, t *testing.T) (testcontainers.Container, string) {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "nats:latest",
		ExposedPorts: []string{"4222/tcp"},
		WaitingFor:   wait.ForListeningPort("4222/tcp"),
	}

	natsContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := natsContainer.Host(ctx)
	require.NoError(t, err)

	port, err := natsContainer.MappedPort(ctx, "4222")
	require.NoError(t, err)

	return natsContainer, fmt.Sprintf("nats://%s:%s", host, port.Port())
}

func TestIntegrationConnectAndPublishLogEntry(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()
	natsContainer, url := startNATSContainer(ctx, t)
	defer natsContainer.Terminate(ctx)

	logger := slog.Default()
	pub, err := Connect(url, logger)
	require.NoError(t, err)
	require.NotNil(t, pub)
	defer pub.Close()

	nc, err := nats.Connect(url)
	require.NoError(t, err)
	defer nc.Close()

	received := make(chan *nats.Msg, 1)
	sub, err := nc.Subscribe(logSubject, func(m *nats.Msg) { received <- m })
	require.NoError(t, err)
	defer sub.Unsubscribe()
	require.NoError(t, nc.Flush())

	pub.PublishLogEntry(LogEntry{
		Time:      time.Now(),
		Level:     "INFO",
		Message:   "hub started",
		Component: "event-loop",
	})

	select {
	case msg := <-received:
		assert.Contains(t, string(msg.Data), "hub started")
	case <-time.After(3 * time.Second):
		t.Fatal("did not receive republished log entry")
	}
}

func TestIntegrationPublishHealthTransition(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()
	natsContainer, url := startNATSContainer(ctx, t)
	defer natsContainer.Terminate(ctx)

	pub, err := Connect(url, slog.Default())
	require.NoError(t, err)
	require.NotNil(t, pub)
	defer pub.Close()

	nc, err := nats.Connect(url)
	require.NoError(t, err)
	defer nc.Close()

	received := make(chan *nats.Msg, 1)
	sub, err := nc.Subscribe(healthSubject, func(m *nats.Msg) { received <- m })
	require.NoError(t, err)
	defer sub.Unsubscribe()
	require.NoError(t, nc.Flush())

	pub.PublishHealth(health.NewHealthy("event-loop", "polling"))

	select {
	case msg := <-received:
		assert.Contains(t, string(msg.Data), "event-loop")
	case <-time.After(3 * time.Second):
		t.Fatal("did not receive republished health status")
	}
}

func TestConnectWithEmptyURLDisablesPublication(t *testing.T) {
	pub, err := Connect("", slog.Default())
	require.NoError(t, err)
	assert.Nil(t, pub)

	// Every method on a nil *Publisher must be a safe no-op.
	pub.PublishLogEntry(LogEntry{Message: "dropped"})
	pub.PublishHealth(health.NewHealthy("x", "y"))
	pub.Close()
}
