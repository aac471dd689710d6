package changes

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hydrotwin/internal/domain"
)

func TestBus_FanOut(t *testing.T) {
	bus := NewBus(nil)
	var a, b atomic.Int32

	subA, err := bus.Subscribe(context.Background(), func(Payload) { a.Add(1) })
	require.NoError(t, err)
	subB, err := bus.Subscribe(context.Background(), func(Payload) { b.Add(1) })
	require.NoError(t, err)

	bus.Publish(UpdatePayload("e1", "Main 1", "", domain.EdgeStatusClosed))

	assert.Eventually(t, func() bool { return a.Load() == 1 && b.Load() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, subA.Unsubscribe())
	require.NoError(t, subA.Unsubscribe())
	assert.Equal(t, 1, bus.Subscribers())
	require.NoError(t, subB.Unsubscribe())
	assert.Equal(t, 0, bus.Subscribers())
}

func TestBus_ContextCancelRemovesSubscriber(t *testing.T) {
	bus := NewBus(nil)
	ctx, cancel := context.WithCancel(context.Background())

	_, err := bus.Subscribe(ctx, func(Payload) {})
	require.NoError(t, err)
	assert.Equal(t, 1, bus.Subscribers())

	cancel()
	assert.Eventually(t, func() bool { return bus.Subscribers() == 0 }, time.Second, 5*time.Millisecond)
}

func TestBus_CloseEndsSubscriptions(t *testing.T) {
	bus := NewBus(nil)
	sub, err := bus.Subscribe(context.Background(), func(Payload) {})
	require.NoError(t, err)

	bus.Close()
	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("subscription still open after Close")
	}
	assert.Equal(t, 0, bus.Subscribers())
	assert.NoError(t, sub.Unsubscribe())

	_, err = bus.Subscribe(context.Background(), func(Payload) {})
	require.NoError(t, err)
	assert.Equal(t, 1, bus.Subscribers())
}

func TestPayload_Normalize(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := UpdatePayload("e7", "Valve Line", domain.EdgeStatusOpen, domain.EdgeStatusIsolated).Normalize(at)

	assert.Equal(t, "e7", c.EdgeID)
	assert.Equal(t, domain.EdgeStatusIsolated, c.Status)
	assert.Equal(t, domain.EdgeStatusOpen, c.OldStatus)
	assert.Equal(t, at, c.ReceivedAt)
	assert.True(t, c.IsIsolation())
}
