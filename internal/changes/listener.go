package changes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"hydrotwin/internal/domain"
	"hydrotwin/internal/logging"
	"hydrotwin/internal/metrics"
)

// ErrAlreadyListening is returned by Start on a listening Listener
var ErrAlreadyListening = errors.New("listener already subscribed")

// OverrideRequest asks the session to pin an edge as isolated
type OverrideRequest struct {
	EdgeID   string
	EdgeName string
	Change   domain.EdgeChange
}

// Sink receives override requests. ctx is cancelled when the listener stops.
type Sink func(ctx context.Context, req OverrideRequest)

// Listener owns the change subscription of one mounted dashboard
type Listener struct {
	channel Channel
	sink    Sink
	logger  *slog.Logger
	metrics *metrics.Registry
	now     func() time.Time

	mu     sync.Mutex
	active *listenSession
	onDrop func()
}

// listenSession is the state of one Start/Stop cycle
type listenSession struct {
	sub    Subscription
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	err    error
}

// NewListener creates an idle listener
func NewListener(channel Channel, sink Sink, logger *slog.Logger, reg *metrics.Registry) *Listener {
	return &Listener{
		channel: channel,
		sink:    sink,
		logger:  logging.OrNop(logger).With("component", "listener"),
		metrics: reg,
		now:     time.Now,
	}
}

// OnDrop sets a callback run when an open subscription ends without Stop.
// The listener does not resubscribe on its own.
func (l *Listener) OnDrop(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onDrop = fn
}

// Start opens the subscription. A failure to subscribe is returned and not
// retried.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.active != nil {
		return ErrAlreadyListening
	}

	sessCtx, cancel := context.WithCancel(ctx)
	sess := &listenSession{ctx: sessCtx, cancel: cancel}

	sub, err := l.channel.Subscribe(sessCtx, func(p Payload) { l.handle(sess, p) })
	if err != nil {
		cancel()
		l.logger.Error("change subscription failed", "error", err)
		return fmt.Errorf("subscribe to edge changes: %w", err)
	}
	sess.sub = sub
	l.active = sess
	l.metrics.SetSubscriptionActive(true)
	go l.watch(sess)

	l.logger.Info("subscribed to edge changes")
	return nil
}

// watch clears the listener when the feed ends underneath it
func (l *Listener) watch(sess *listenSession) {
	select {
	case <-sess.ctx.Done():
		return
	case <-sess.sub.Done():
	}
	if sess.ctx.Err() != nil {
		return
	}

	l.mu.Lock()
	if l.active != sess {
		l.mu.Unlock()
		return
	}
	l.active = nil
	onDrop := l.onDrop
	l.mu.Unlock()

	sess.once.Do(func() {
		sess.cancel()
		l.metrics.SetSubscriptionActive(false)
		l.logger.Warn("edge change subscription dropped, live changes paused until the next mount")
	})
	if onDrop != nil {
		onDrop()
	}
}

// Stop closes the subscription opened by the last Start. Later calls do
// nothing until the listener is started again.
func (l *Listener) Stop() error {
	l.mu.Lock()
	sess := l.active
	l.active = nil
	l.mu.Unlock()

	if sess == nil {
		return nil
	}

	sess.once.Do(func() {
		sess.cancel()
		if err := sess.sub.Unsubscribe(); err != nil {
			sess.err = fmt.Errorf("unsubscribe from edge changes: %w", err)
		}
		l.metrics.SetSubscriptionActive(false)
		l.logger.Info("unsubscribed from edge changes")
	})
	return sess.err
}

// Listening reports whether a subscription is open
func (l *Listener) Listening() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active != nil
}

func (l *Listener) handle(sess *listenSession, p Payload) {
	// a payload racing with Stop is dropped
	if sess.ctx.Err() != nil {
		return
	}

	change := p.Normalize(l.now())
	if err := Validate(change); err != nil {
		l.logger.Warn("ignoring malformed edge change", "error", err, "edge_id", change.EdgeID)
		l.metrics.RecordChangeEvent("invalid")
		return
	}

	if !change.IsIsolation() {
		l.logger.Debug("ignoring non-isolation edge change", "edge_id", change.EdgeID, "status", change.Status)
		l.metrics.RecordChangeEvent("ignored")
		return
	}

	l.metrics.RecordChangeEvent("override")
	l.logger.Info("edge isolated by push", "edge_id", change.EdgeID, "name", change.Name)

	if l.sink != nil {
		l.sink(sess.ctx, OverrideRequest{
			EdgeID:   change.EdgeID,
			EdgeName: change.Name,
			Change:   change,
		})
	}
}
