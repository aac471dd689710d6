package changes

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hydrotwin/internal/domain"
	"hydrotwin/internal/metrics"
)

type recordingSink struct {
	mu   sync.Mutex
	reqs []OverrideRequest
}

func (r *recordingSink) sink(_ context.Context, req OverrideRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, req)
}

func (r *recordingSink) requests() []OverrideRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]OverrideRequest(nil), r.reqs...)
}

func TestListener_ForwardsOnlyIsolation(t *testing.T) {
	bus := NewBus(nil)
	rec := &recordingSink{}
	l := NewListener(bus, rec.sink, nil, nil)

	require.NoError(t, l.Start(context.Background()))
	defer l.Stop()

	bus.Publish(UpdatePayload("e1", "Main 1", domain.EdgeStatusOpen, domain.EdgeStatusClosed))
	bus.Publish(UpdatePayload("e2", "Main 2", domain.EdgeStatusOpen, domain.EdgeStatusIsolated))
	bus.Publish(UpdatePayload("e3", "Main 3", domain.EdgeStatusIsolated, domain.EdgeStatusOpen))

	require.Eventually(t, func() bool { return len(rec.requests()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	reqs := rec.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "e2", reqs[0].EdgeID)
	assert.Equal(t, "Main 2", reqs[0].EdgeName)
	assert.Equal(t, domain.EdgeStatusOpen, reqs[0].Change.OldStatus)
	assert.False(t, reqs[0].Change.ReceivedAt.IsZero())
}

func TestListener_IgnoresMalformedPayloads(t *testing.T) {
	bus := NewBus(nil)
	rec := &recordingSink{}
	l := NewListener(bus, rec.sink, nil, nil)
	require.NoError(t, l.Start(context.Background()))
	defer l.Stop()

	// missing id, then an unknown status
	bus.Publish(Payload{New: EdgeRow{Status: "isolated"}})
	bus.Publish(Payload{New: EdgeRow{ID: "e1", Status: "vaporized"}})
	bus.Publish(UpdatePayload("e9", "Main 9", "", domain.EdgeStatusIsolated))

	require.Eventually(t, func() bool { return len(rec.requests()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "e9", rec.requests()[0].EdgeID)
}

func TestListener_StopTearsDownOnce(t *testing.T) {
	bus := NewBus(nil)
	l := NewListener(bus, nil, nil, nil)

	require.NoError(t, l.Stop(), "stop before start")

	require.NoError(t, l.Start(context.Background()))
	assert.ErrorIs(t, l.Start(context.Background()), ErrAlreadyListening)
	assert.Equal(t, 1, bus.Subscribers())
	assert.True(t, l.Listening())

	require.NoError(t, l.Stop())
	require.NoError(t, l.Stop())
	assert.Equal(t, 0, bus.Subscribers())
	assert.False(t, l.Listening())

	// restart after stop
	require.NoError(t, l.Start(context.Background()))
	assert.Equal(t, 1, bus.Subscribers())
	require.NoError(t, l.Stop())
	assert.Equal(t, 0, bus.Subscribers())
}

func TestListener_NoDeliveryAfterStop(t *testing.T) {
	bus := NewBus(nil)
	rec := &recordingSink{}
	l := NewListener(bus, rec.sink, nil, nil)

	require.NoError(t, l.Start(context.Background()))
	require.NoError(t, l.Stop())

	bus.Publish(UpdatePayload("e1", "Main 1", "", domain.EdgeStatusIsolated))
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, rec.requests())
}

type failingChannel struct{}

func (failingChannel) Subscribe(context.Context, Handler) (Subscription, error) {
	return nil, errors.New("realtime disabled")
}

func TestListener_SubscribeFailure(t *testing.T) {
	l := NewListener(failingChannel{}, nil, nil, nil)

	err := l.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "realtime disabled")
	assert.False(t, l.Listening())
	assert.NoError(t, l.Stop())
}

// droppingChannel hands out subscriptions the test can end from the feed side
type droppingChannel struct {
	mu   sync.Mutex
	subs []*droppingSub
}

type droppingSub struct {
	done chan struct{}
	once sync.Once
}

func (s *droppingSub) drop() { s.once.Do(func() { close(s.done) }) }
func (s *droppingSub) Unsubscribe() error { s.drop(); return nil }
func (s *droppingSub) Done() <-chan struct{} { return s.done }

func (c *droppingChannel) Subscribe(context.Context, Handler) (Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub := &droppingSub{done: make(chan struct{})}
	c.subs = append(c.subs, sub)
	return sub, nil
}

func (c *droppingChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

func TestListener_DroppedFeedClearsState(t *testing.T) {
	ch := &droppingChannel{}
	reg := metrics.NewRegistry()
	l := NewListener(ch, nil, nil, reg)
	dropped := make(chan struct{}, 1)
	l.OnDrop(func() { dropped <- struct{}{} })

	require.NoError(t, l.Start(context.Background()))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.SubscriptionsActive))

	ch.subs[0].drop()
	select {
	case <-dropped:
	case <-time.After(time.Second):
		t.Fatal("drop callback not called")
	}

	assert.False(t, l.Listening())
	assert.Equal(t, 0.0, testutil.ToFloat64(reg.SubscriptionsActive))

	// no resubscribe on its own
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, ch.count())
	assert.NoError(t, l.Stop())

	// an explicit Start opens a new one
	require.NoError(t, l.Start(context.Background()))
	assert.Equal(t, 2, ch.count())
	require.NoError(t, l.Stop())
	assert.Equal(t, 0.0, testutil.ToFloat64(reg.SubscriptionsActive))
}

func TestListener_StopDoesNotReportDrop(t *testing.T) {
	ch := &droppingChannel{}
	l := NewListener(ch, nil, nil, nil)
	dropped := make(chan struct{}, 1)
	l.OnDrop(func() { dropped <- struct{}{} })

	require.NoError(t, l.Start(context.Background()))
	require.NoError(t, l.Stop())

	select {
	case <-dropped:
		t.Fatal("drop reported for a stopped listener")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestValidate(t *testing.T) {
	err := Validate(domain.EdgeChange{EdgeID: "e1", Status: "burst"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Status must be one of")

	assert.NoError(t, Validate(domain.EdgeChange{EdgeID: "e1", Status: domain.EdgeStatusClosed}))
}
