package sse

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// LogChannel is the NOTIFY channel the access_logs insert trigger writes to.
const LogChannel = "access_log_stream"

// PGListener bridges PostgreSQL notifications into the hub.
type PGListener struct {
	pool   *pgxpool.Pool
	hub    *Hub
	logger *slog.Logger
}

// NewPGListener creates a listener publishing into hub.
func NewPGListener(pool *pgxpool.Pool, hub *Hub, logger *slog.Logger) *PGListener {
	return &PGListener{pool: pool, hub: hub, logger: logger}
}

// Listen blocks until ctx is cancelled or the connection fails. Run it under
// RunWithRecovery so it reconnects.
func (pl *PGListener) Listen(ctx context.Context) {
	conn, err := pl.pool.Acquire(ctx)
	if err != nil {
		pl.logger.Error("pg-listen: acquire connection failed", "err", err)
		return
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+LogChannel); err != nil {
		pl.logger.Error("pg-listen: LISTEN failed", "channel", LogChannel, "err", err)
		return
	}
	pl.logger.Info("pg-listen: subscribed", "channel", LogChannel)

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			pl.logger.Error("pg-listen: notification error", "err", err)
			return
		}
		if notification.Channel != LogChannel {
			continue
		}
		pl.hub.Publish(TopicLogs, Event{Type: "log", Data: []byte(notification.Payload)})
	}
}
