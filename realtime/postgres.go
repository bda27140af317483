package realtime

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	applog "food-share-server/logger"
)

// PGPublisher broadcasts events to every instance through NOTIFY.
type PGPublisher struct {
	db      *sql.DB
	channel string
}

func NewPGPublisher(db *sql.DB, channel string) *PGPublisher {
	return &PGPublisher{db: db, channel: channel}
}

func (p *PGPublisher) Publish(ctx context.Context, ev Event) error {
	payload, err := encodeEvent(ev)
	if err != nil {
		return err
	}
	if _, err := p.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", p.channel, payload); err != nil {
		return fmt.Errorf("pg_notify on %s: %w", p.channel, err)
	}
	return nil
}

// PGListener LISTENs on the channel and hands received events to the local hub.
type PGListener struct {
	dsn     string
	channel string
	hub     *Hub
}

func NewPGListener(dsn, channel string, hub *Hub) *PGListener {
	return &PGListener{dsn: dsn, channel: channel, hub: hub}
}

// Run blocks until ctx is cancelled.
func (l *PGListener) Run(ctx context.Context) error {
	listener := pq.NewListener(l.dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			applog.Log.WithError(err).Warn("⚠️ Postgres listener event")
		}
	})
	defer listener.Close()

	if err := listener.Listen(l.channel); err != nil {
		return fmt.Errorf("listen %s: %w", l.channel, err)
	}
	applog.Log.Infof("📡 Listening for notification events on %s", l.channel)

	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-listener.Notify:
			// nil after a reconnect; events sent while disconnected are lost,
			// streams recover on their next keep-alive snapshot.
			if n == nil {
				continue
			}
			ev, err := decodeEvent(n.Extra)
			if err != nil {
				applog.Log.WithError(err).Warn("❌ Dropping malformed notification event")
				continue
			}
			l.hub.Deliver(ev)
		case <-ping.C:
			if err := listener.Ping(); err != nil {
				applog.Log.WithError(err).Warn("⚠️ Postgres listener ping failed")
			}
		}
	}
}
