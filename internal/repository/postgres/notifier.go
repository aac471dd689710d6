package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"hydrotwin/internal/changes"
	"hydrotwin/internal/logging"
)

// Notifier is a changes.Channel fed by Postgres notifications. Each payload
// is the JSON encoding of a changes.Payload.
type Notifier struct {
	pool    *pgxpool.Pool
	channel string
	logger  *slog.Logger
}

var _ changes.Channel = (*Notifier)(nil)

// NewNotifier creates a notifier for channel on pool
func NewNotifier(pool *pgxpool.Pool, channel string, logger *slog.Logger) *Notifier {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Notifier{
		pool:    pool,
		channel: channel,
		logger:  logging.OrNop(logger).With("component", "pg-notifier", "channel", channel),
	}
}

// WithLogger returns a copy of the notifier logging to logger
func (n *Notifier) WithLogger(logger *slog.Logger) *Notifier {
	cp := *n
	cp.logger = logging.OrNop(logger).With("component", "pg-notifier", "channel", n.channel)
	return &cp
}

// Subscribe holds a pool connection in LISTEN mode until the subscription
// ends. A lost connection ends the subscription and is not re-established.
func (n *Notifier) Subscribe(ctx context.Context, h changes.Handler) (changes.Subscription, error) {
	conn, err := n.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire listen connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{n.channel}.Sanitize()); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listen %s: %w", n.channel, err)
	}

	// the connection never goes back to the pool while it is listening
	raw := conn.Hijack()

	subCtx, cancel := context.WithCancel(ctx)
	sub := &pgSubscription{cancel: cancel, done: make(chan struct{})}
	go n.waitLoop(subCtx, raw, h, sub.done)
	return sub, nil
}

func (n *Notifier) waitLoop(ctx context.Context, conn *pgx.Conn, h changes.Handler, done chan<- struct{}) {
	defer close(done)
	defer conn.Close(context.Background())

	for {
		note, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() == nil {
				n.logger.Warn("notification feed dropped", "error", err)
			}
			return
		}

		p, err := DecodePayload(note.Payload)
		if err != nil {
			n.logger.Warn("discarding notification", "error", err)
			continue
		}
		h(p)
	}
}

// DecodePayload parses a notification payload
func DecodePayload(raw string) (changes.Payload, error) {
	var p changes.Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return changes.Payload{}, fmt.Errorf("decode payload: %w", err)
	}
	if p.New.ID == "" {
		return changes.Payload{}, errors.New("decode payload: missing edge id")
	}
	return p, nil
}

type pgSubscription struct {
	once   sync.Once
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *pgSubscription) Unsubscribe() error {
	s.once.Do(s.cancel)
	<-s.done
	return nil
}

func (s *pgSubscription) Done() <-chan struct{} {
	return s.done
}
