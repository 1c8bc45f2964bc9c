package bus

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestBridge(t *testing.T) (*Bus, *Bridge, func()) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b := New()
	bridge := NewBridge(b, client, slog.Default())
	return b, bridge, func() {
		_ = client.Close()
		mr.Close()
	}
}

func TestBridgeDeliversPublishToLocalRoom(t *testing.T) {
	b, bridge, cleanup := newTestBridge(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- bridge.Run(ctx) }()
	// Run confirms the subscription before reading; give it a beat.
	time.Sleep(100 * time.Millisecond)

	sub := b.Join("c1", "t1")
	err := bridge.Publish(ctx, Event{Kind: "receive_notification", TenantID: "t1", Payload: map[string]any{"n": 1.0}})
	require.NoError(t, err)

	got := recvEvent(t, sub.C)
	require.Equal(t, "receive_notification", got.Kind)
	require.Equal(t, "t1", got.TenantID)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("bridge did not stop on cancel")
	}
}

func TestBridgeScopesDeliveryByTenant(t *testing.T) {
	b, bridge, cleanup := newTestBridge(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = bridge.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)

	subA := b.Join("c1", "tenant-a")
	subB := b.Join("c2", "tenant-b")

	require.NoError(t, bridge.Publish(ctx, Event{Kind: "receive_message", TenantID: "tenant-a"}))

	recvEvent(t, subA.C)
	select {
	case e := <-subB.C:
		t.Fatalf("cross-tenant delivery: %+v", e)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPublisherFacadeIsFireAndForget(t *testing.T) {
	b, bridge, cleanup := newTestBridge(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = bridge.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)

	outcomes := make(chan string, 1)
	pub := NewPublisher(bridge, slog.Default(), func(_, outcome string) { outcomes <- outcome })

	sub := b.Join("c1", "t1")
	pub.Publish(ctx, "t1", "receive_notification", "payload")

	recvEvent(t, sub.C)
	select {
	case outcome := <-outcomes:
		require.Equal(t, "ok", outcome)
	case <-time.After(2 * time.Second):
		t.Fatal("publish outcome never observed")
	}
}
