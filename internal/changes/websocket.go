package changes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"hydrotwin/internal/logging"
)

// EdgesFeedPath is the websocket endpoint that streams edge changes
const EdgesFeedPath = "/ws/edges"

// WebSocketChannel subscribes to the edge change feed of another service
type WebSocketChannel struct {
	url    string
	dialer *websocket.Dialer
	header http.Header
	logger *slog.Logger
}

// NewWebSocketChannel creates a channel reading from url (ws:// or wss://)
func NewWebSocketChannel(url string, logger *slog.Logger) *WebSocketChannel {
	return &WebSocketChannel{
		url: url,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		header: http.Header{},
		logger: logging.OrNop(logger).With("component", "ws-channel"),
	}
}

// Subscribe implements Channel. A dropped connection ends the subscription
// and is not redialed.
func (c *WebSocketChannel) Subscribe(ctx context.Context, h Handler) (Subscription, error) {
	conn, resp, err := c.dialer.DialContext(ctx, c.url, c.header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", c.url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", c.url, err)
	}

	sub := &wsSubscription{
		conn:   conn,
		logger: c.logger,
		done:   make(chan struct{}),
	}
	go sub.readLoop(h)
	go func() {
		select {
		case <-ctx.Done():
			_ = sub.Unsubscribe()
		case <-sub.done:
		}
	}()

	c.logger.Info("connected to edge feed", "url", c.url)
	return sub, nil
}

type wsSubscription struct {
	conn   *websocket.Conn
	logger *slog.Logger
	done   chan struct{}
	once   sync.Once
	closed bool
	mu     sync.Mutex
}

func (s *wsSubscription) readLoop(h Handler) {
	defer close(s.done)

	for {
		var p Payload
		if err := s.conn.ReadJSON(&p); err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()

			if !closed && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				s.logger.Warn("edge feed dropped", "error", err)
			}
			return
		}
		h(p)
	}
}

// Unsubscribe implements Subscription
func (s *wsSubscription) Unsubscribe() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "unsubscribe")
		werr := s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		if werr != nil && !errors.Is(werr, websocket.ErrCloseSent) {
			s.logger.Debug("close handshake failed", "error", werr)
		}
		err = s.conn.Close()
	})
	return err
}

// Done implements Subscription. It closes when the read loop exits.
func (s *wsSubscription) Done() <-chan struct{} {
	return s.done
}
