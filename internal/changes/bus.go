package changes

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"hydrotwin/internal/logging"
)

// busBuffer is the per-subscriber queue length
const busBuffer = 64

// Bus is an in-process Channel. Operator actions on the local store publish
// here, and every subscriber gets its own queue and delivery goroutine.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]*busSubscription
	logger      *slog.Logger
}

// NewBus creates an empty bus
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		subscribers: make(map[string]*busSubscription),
		logger:      logging.OrNop(logger).With("component", "bus"),
	}
}

// Subscribe implements Channel
func (b *Bus) Subscribe(ctx context.Context, h Handler) (Subscription, error) {
	sub := &busSubscription{
		id:     uuid.NewString(),
		bus:    b,
		events: make(chan Payload, busBuffer),
		done:   make(chan struct{}),
	}

	b.mu.Lock()
	b.subscribers[sub.id] = sub
	b.mu.Unlock()

	go sub.deliver(ctx, h)
	return sub, nil
}

// Publish sends a payload to every subscriber. A subscriber whose queue is
// full misses the payload.
func (b *Bus) Publish(p Payload) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, sub := range b.subscribers {
		select {
		case sub.events <- p:
		default:
			b.logger.Warn("subscriber is slow, dropping change", "subscription", id, "edge_id", p.New.ID)
		}
	}
}

// Close ends every open subscription. The bus keeps accepting new ones.
func (b *Bus) Close() {
	b.mu.RLock()
	subs := make([]*busSubscription, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		sub.remove()
	}
}

// Subscribers returns the number of open subscriptions
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

type busSubscription struct {
	id     string
	bus    *Bus
	events chan Payload
	done   chan struct{}
	once   sync.Once
}

func (s *busSubscription) deliver(ctx context.Context, h Handler) {
	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			s.remove()
			return
		case p := <-s.events:
			h(p)
		}
	}
}

func (s *busSubscription) remove() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subscribers, s.id)
		s.bus.mu.Unlock()
		close(s.done)
	})
}

// Unsubscribe implements Subscription
func (s *busSubscription) Unsubscribe() error {
	s.remove()
	return nil
}

// Done implements Subscription
func (s *busSubscription) Done() <-chan struct{} {
	return s.done
}
