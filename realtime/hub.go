package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	applog "food-share-server/logger"
)

// clientBuffer bounds per-subscriber backlog. Events only signal "something
// changed", so a full buffer can drop wake-ups without losing state.
const clientBuffer = 16

// Event tells subscribers of a user that the user's notifications changed.
type Event struct {
	UserID         uint   `json:"userId"`
	NotificationID uint   `json:"notificationId"`
	Type           string `json:"type"`
}

// Publisher delivers events to every process that may hold a stream for the
// event's user.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Client represents one open stream (SSE or WebSocket) of a user
type Client struct {
	UserID uint
	Send   chan Event

	hub *Hub
}

// Hub keeps the local per-user subscriber sets and fans events out to them.
type Hub struct {
	clients map[uint]map[*Client]struct{}
	mu      sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[uint]map[*Client]struct{}),
	}
}

// Register subscribes a new client to the events of userID
func (h *Hub) Register(userID uint) *Client {
	client := &Client{
		UserID: userID,
		Send:   make(chan Event, clientBuffer),
		hub:    h,
	}

	h.mu.Lock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*Client]struct{})
	}
	h.clients[userID][client] = struct{}{}
	h.mu.Unlock()

	applog.Log.Debugf("🔌 Client registered for user %d", userID)
	return client
}

// Unregister removes the client and closes its Send channel. Safe to call twice.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.clients[client.UserID]
	if !ok {
		return
	}
	if _, ok := set[client]; !ok {
		return
	}

	delete(set, client)
	close(client.Send)
	if len(set) == 0 {
		delete(h.clients, client.UserID)
	}

	applog.Log.Debugf("🔌 Client unregistered for user %d", client.UserID)
}

// Deliver hands ev to every local client of ev.UserID without blocking and
// returns how many clients accepted it.
func (h *Hub) Deliver(ev Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for client := range h.clients[ev.UserID] {
		select {
		case client.Send <- ev:
			delivered++
		default:
			applog.Log.Debugf("⚠️ Send buffer full for user %d, coalescing event", ev.UserID)
		}
	}
	return delivered
}

// Publish implements Publisher for single-instance deployments.
func (h *Hub) Publish(_ context.Context, ev Event) error {
	h.Deliver(ev)
	return nil
}

// ClientCount returns the number of local clients subscribed to userID
func (h *Hub) ClientCount(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func encodeEvent(ev Event) (string, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("failed to encode event: %w", err)
	}
	return string(data), nil
}

func decodeEvent(payload string) (Event, error) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return Event{}, fmt.Errorf("failed to decode event: %w", err)
	}
	if ev.UserID == 0 {
		return Event{}, fmt.Errorf("event without user id")
	}
	return ev, nil
}
