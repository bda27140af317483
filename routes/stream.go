package routes

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	applog "food-share-server/logger"
	"food-share-server/metrics"
	"food-share-server/realtime"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

// snapshotFunc emits one frame; keepAlive frames are sent even with nothing unread
type snapshotFunc func(eventType string, data interface{}) error

// nextSnapshot loads the user's snapshot and decides which frame, if any, to emit
func (h *Handler) nextSnapshot(ctx context.Context, userID uint, keepAlive bool, emit snapshotFunc) error {
	snapshot, err := h.Notifications.Snapshot(ctx, userID, h.cfg.Realtime.RecentLimit)
	if err != nil {
		applog.Log.WithError(err).WithField("user_id", userID).Error("❌ Failed to load notification snapshot")
		_ = emit("error", gin.H{"error": "Failed to load notifications"})
		return err
	}

	switch {
	case snapshot.UnreadCount > 0:
		return emit("notification", snapshot)
	case keepAlive:
		return emit("ping", gin.H{"time": time.Now().UTC()})
	default:
		return nil
	}
}

// streamNotifications serves GET /api/notifications/stream as server-sent events.
// It emits "connected" once, then a "notification" frame with the unread count
// and latest notifications whenever the user's notifications change.
func (h *Handler) streamNotifications(c *gin.Context) {
	userID, ok := h.resolveUserID(c)
	if !ok {
		return
	}

	client := h.Hub.Register(userID)
	defer h.Hub.Unregister(client)

	metrics.StreamOpened("sse")
	defer metrics.StreamClosed("sse")

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	emit := func(eventType string, data interface{}) error {
		c.SSEvent(eventType, data)
		c.Writer.Flush()
		return nil
	}

	_ = emit("connected", gin.H{"userId": userID})
	applog.Log.WithField("user_id", userID).Info("📡 Notification stream opened")

	ctx := c.Request.Context()
	if err := h.nextSnapshot(ctx, userID, false, emit); err != nil {
		return
	}

	keepAlive := time.NewTicker(h.cfg.Realtime.StreamKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			applog.Log.WithField("user_id", userID).Info("🔌 Notification stream closed")
			return
		case _, ok := <-client.Send:
			if !ok {
				return
			}
			if err := h.nextSnapshot(ctx, userID, false, emit); err != nil {
				return
			}
		case <-keepAlive.C:
			if err := h.nextSnapshot(ctx, userID, true, emit); err != nil {
				return
			}
		}
	}
}

// socketFrame is the envelope of every WebSocket message
type socketFrame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// socketSession couples one WebSocket connection with its hub subscription
type socketSession struct {
	conn    *websocket.Conn
	client  *realtime.Client
	userID  uint
	refresh chan struct{}
	done    chan struct{}
}

// notificationSocket serves the same snapshots as the SSE stream over WebSocket.
// Clients may send {"type":"refresh"} to request a snapshot.
func (h *Handler) notificationSocket(c *gin.Context) {
	userID, ok := h.resolveUserID(c)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		applog.Log.WithError(err).Warn("❌ WebSocket upgrade failed")
		return
	}

	session := &socketSession{
		conn:    conn,
		client:  h.Hub.Register(userID),
		userID:  userID,
		refresh: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	metrics.StreamOpened("websocket")
	applog.Log.WithField("user_id", userID).Info("🔌 Notification socket opened")

	defer func() {
		h.Hub.Unregister(session.client)
		conn.Close()
		metrics.StreamClosed("websocket")
		applog.Log.WithField("user_id", userID).Info("🔌 Notification socket closed")
	}()

	go session.readPump()
	h.writePump(c.Request.Context(), session)
}

// readPump consumes client frames until the connection fails
func (s *socketSession) readPump() {
	defer close(s.done)

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				applog.Log.WithError(err).WithField("user_id", s.userID).Warn("❌ WebSocket read error")
			}
			return
		}

		var frame socketFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			continue
		}
		if frame.Type == "refresh" {
			select {
			case s.refresh <- struct{}{}:
			default:
			}
		}
	}
}

func (h *Handler) writePump(ctx context.Context, s *socketSession) {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	keepAlive := time.NewTicker(h.cfg.Realtime.StreamKeepAlive)
	defer keepAlive.Stop()

	emit := func(eventType string, data interface{}) error {
		s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		return s.conn.WriteJSON(socketFrame{Type: eventType, Data: data})
	}

	if err := emit("connected", gin.H{"userId": s.userID}); err != nil {
		return
	}
	if err := h.nextSnapshot(ctx, s.userID, false, emit); err != nil {
		return
	}

	for {
		var err error
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case _, ok := <-s.client.Send:
			if !ok {
				s.conn.SetWriteDeadline(time.Now().Add(writeWait))
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			err = h.nextSnapshot(ctx, s.userID, false, emit)
		case <-s.refresh:
			err = h.nextSnapshot(ctx, s.userID, true, emit)
		case <-keepAlive.C:
			err = h.nextSnapshot(ctx, s.userID, true, emit)
		case <-ping.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err = s.conn.WriteMessage(websocket.PingMessage, nil)
		}
		if err != nil {
			applog.Log.WithError(err).WithFields(logrus.Fields{"user_id": s.userID}).Debug("WebSocket write stopped")
			return
		}
	}
}
