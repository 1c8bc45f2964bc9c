package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func recvEvent(t *testing.T, c <-chan Event) Event {
	t.Helper()
	select {
	case e, ok := <-c:
		require.True(t, ok, "channel closed unexpectedly")
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestPublishReachesOwnRoomOnly(t *testing.T) {
	b := New()
	subA := b.Join("c1", "tenant-a")
	subB := b.Join("c2", "tenant-b")

	b.Publish(Event{Kind: "receive_notification", TenantID: "tenant-a", Payload: "hello"})

	got := recvEvent(t, subA.C)
	require.Equal(t, "receive_notification", got.Kind)
	require.Equal(t, "tenant-a", got.TenantID)
	require.False(t, got.At.IsZero())

	select {
	case e := <-subB.C:
		t.Fatalf("tenant-b must not receive tenant-a events, got %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishToEmptyRoomIsNoOp(t *testing.T) {
	b := New()
	b.Publish(Event{Kind: "receive_message", TenantID: "nobody-home"})
}

func TestAllRoomMembersReceive(t *testing.T) {
	b := New()
	sub1 := b.Join("c1", "t1")
	sub2 := b.Join("c2", "t1")

	b.Publish(Event{Kind: "receive_message", TenantID: "t1"})

	recvEvent(t, sub1.C)
	recvEvent(t, sub2.C)
}

func TestSlowSubscriberEvictedNotBlocked(t *testing.T) {
	b := New()
	var droppedConn string
	b.OnDrop(func(_, connID string) { droppedConn = connID })

	slow := b.Join("slow", "t1")
	fast := b.Join("fast", "t1")

	// Fill both buffers, then drain only the fast listener.
	for i := 0; i < subscriberBuffer; i++ {
		b.Publish(Event{Kind: "receive_message", TenantID: "t1"})
	}
	for i := 0; i < subscriberBuffer; i++ {
		recvEvent(t, fast.C)
	}

	// The next publish overflows the slow listener only.
	b.Publish(Event{Kind: "receive_message", TenantID: "t1"})

	require.Equal(t, "slow", droppedConn)
	require.Equal(t, 1, b.Listeners("t1"))
	recvEvent(t, fast.C)

	// The slow channel is closed once its buffered backlog drains.
	for i := 0; i < subscriberBuffer; i++ {
		recvEvent(t, slow.C)
	}
	_, ok := <-slow.C
	require.False(t, ok)
}

func TestLeaveIsIdempotent(t *testing.T) {
	b := New()
	b.Join("c1", "t1")
	b.Leave("c1", "t1")
	b.Leave("c1", "t1")
	require.Equal(t, 0, b.Listeners("t1"))
}
