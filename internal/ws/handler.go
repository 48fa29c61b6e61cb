// Package ws serves the live access-log feed over WebSocket.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ichi-a/geo-shock/internal/classify"
	"github.com/ichi-a/geo-shock/internal/sse"
)

const (
	hydrateCount = 20
	writeWait    = 5 * time.Second
	pingPeriod   = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// RecentSource returns the newest stored records, newest first.
type RecentSource interface {
	Recent(ctx context.Context, limit int) ([]classify.Record, error)
}

// Feed upgrades admin clients and streams every new access log to them.
type Feed struct {
	store  RecentSource
	hub    *sse.Hub
	logger *slog.Logger
}

// NewFeed creates a Feed.
func NewFeed(store RecentSource, hub *sse.Hub, logger *slog.Logger) *Feed {
	return &Feed{store: store, hub: hub, logger: logger}
}

type message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// HandleWS upgrades the connection, sends recent records oldest first, then
// forwards live events until the client leaves.
func (f *Feed) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Error("ws: upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	events, cancel := f.hub.Subscribe(sse.TopicLogs)
	defer cancel()

	if err := f.hydrate(r.Context(), conn); err != nil {
		f.logger.Debug("ws: hydrate failed", "err", err)
		return
	}

	// Reads only detect the close; client messages are ignored.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := send(conn, message{Type: ev.Type, Data: ev.Data}); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (f *Feed) hydrate(ctx context.Context, conn *websocket.Conn) error {
	recent, err := f.store.Recent(ctx, hydrateCount)
	if err != nil {
		f.logger.Warn("ws: load recent logs failed", "err", err)
		return nil
	}
	for i := len(recent) - 1; i >= 0; i-- {
		data, err := json.Marshal(recent[i])
		if err != nil {
			continue
		}
		if err := send(conn, message{Type: "log", Data: data}); err != nil {
			return err
		}
	}
	return nil
}

func send(conn *websocket.Conn, m message) error {
	msg, err := json.Marshal(m)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, msg)
}
