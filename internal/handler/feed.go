package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"hydrotwin/internal/changes"
	"hydrotwin/internal/logging"
)

const (
	feedWriteWait  = 10 * time.Second
	feedPingPeriod = 30 * time.Second
	feedBuffer     = 64
)

// FeedHandler streams edge changes from a channel to websocket clients
type FeedHandler struct {
	channel  changes.Channel
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewFeedHandler creates a feed over channel
func NewFeedHandler(channel changes.Channel, logger *slog.Logger) *FeedHandler {
	return &FeedHandler{
		channel: channel,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logging.OrNop(logger).With("component", "edge-feed"),
	}
}

// ServeHTTP upgrades the connection and writes one JSON payload per change.
// Clients are expected to only read; anything they send is discarded.
func (f *FeedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	id := uuid.NewString()
	logger := f.logger.With("client_id", id)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan changes.Payload, feedBuffer)
	sub, err := f.channel.Subscribe(ctx, func(p changes.Payload) {
		select {
		case out <- p:
		default:
			logger.Warn("feed client is slow, dropping change", "edge_id", p.New.ID)
		}
	})
	if err != nil {
		logger.Error("subscribe failed", "error", err)
		ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscribe failed"),
			time.Now().Add(feedWriteWait))
		return
	}
	defer sub.Unsubscribe()
	logger.Info("feed client connected")

	// reader: notices the peer going away
	go func() {
		defer cancel()
		for {
			if _, _, err := ws.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(feedPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case p := <-out:
			ws.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := ws.WriteJSON(p); err != nil {
				logger.Info("feed client write failed", "error", err)
				return
			}
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(feedWriteWait)); err != nil {
				return
			}
		case <-sub.Done():
			logger.Info("edge channel closed, ending feed")
			ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "feed closed"),
				time.Now().Add(feedWriteWait))
			return
		case <-ctx.Done():
			logger.Info("feed client disconnected")
			return
		}
	}
}
