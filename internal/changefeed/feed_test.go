package changefeed

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, sub *Subscription, n int) []Event {
	t.Helper()
	events := make([]Event, 0, n)
	for len(events) < n {
		select {
		case event, ok := <-sub.Events():
			require.True(t, ok, "subscription closed early")
			events = append(events, event)
		case <-time.After(time.Second):
			t.Fatalf("timed out after %d of %d events", len(events), n)
		}
	}
	return events
}

func TestHub_FanOutPreservesOrder(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	first, err := hub.Subscribe(ctx)
	require.NoError(t, err)
	defer first.Close()
	second, err := hub.Subscribe(ctx)
	require.NoError(t, err)
	defer second.Close()

	for i := 0; i < 10; i++ {
		hub.Publish(ctx, Event{
			Op:    OpInsert,
			Table: TableDeliveryRecord,
			Key:   fmt.Sprintf("42:2025-06-%02d", i+1),
		})
	}

	for _, sub := range []*Subscription{first, second} {
		events := collect(t, sub, 10)
		for i, event := range events {
			assert.Equal(t, fmt.Sprintf("42:2025-06-%02d", i+1), event.Key)
			assert.NotEmpty(t, event.ID)
		}
	}
}

func TestHub_CloseStopsDelivery(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	sub, err := hub.Subscribe(ctx)
	require.NoError(t, err)
	sub.Close()
	sub.Close() // idempotent

	_, ok := <-sub.Events()
	assert.False(t, ok)

	// Publishing after close must not panic.
	hub.Publish(ctx, Event{Op: OpInsert, Table: TableCustomer, Key: "42"})
}

func TestHub_SlowConsumerDropped(t *testing.T) {
	hub := NewHub()
	hub.buffer = 2
	ctx := context.Background()

	slow, err := hub.Subscribe(ctx)
	require.NoError(t, err)
	fast, err := hub.Subscribe(ctx)
	require.NoError(t, err)
	defer fast.Close()

	// The slow subscriber never reads; once its buffer is full it is
	// dropped instead of blocking the write path.
	for i := 0; i < 5; i++ {
		hub.Publish(ctx, Event{Op: OpInsert, Table: TableCustomer, Key: fmt.Sprintf("%d", i)})
		drain(fast)
	}

	deadline := time.After(time.Second)
	for {
		if _, ok := <-slow.Events(); !ok {
			return
		}
		select {
		case <-deadline:
			t.Fatal("slow subscriber was never dropped")
		default:
		}
	}
}

func drain(sub *Subscription) {
	for {
		select {
		case <-sub.Events():
		default:
			return
		}
	}
}

func TestHub_SubscribeCancelledContext(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := hub.Subscribe(ctx)
	assert.Error(t, err)
}

func TestHub_ConcurrentPublishAndClose(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			hub.Publish(ctx, Event{Op: OpUpdate, Table: TableCustomer, Key: "42"})
		}
	}()

	for i := 0; i < 50; i++ {
		sub, err := hub.Subscribe(ctx)
		require.NoError(t, err)
		sub.Close()
	}
	<-done
}
