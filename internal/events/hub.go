package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	log "github.com/sirupsen/logrus"
)

// Hub fans committed events out to websocket subscribers.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Event
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	doneOnce   sync.Once
	mu         sync.RWMutex
}

// Client is one websocket subscriber. Player filters the stream to events
// carrying a matching player attribute; empty means everything.
type Client struct {
	conn   wsConn
	player string
	mu     sync.Mutex
}

type wsConn interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	Close() error
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Event, 100),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run serves the hub until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.doneOnce.Do(func() { close(h.done) })
			h.mu.Lock()
			for client := range h.clients {
				client.conn.Close()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			log.WithFields(log.Fields{"component": "hub", "player": client.player, "total": total}).Info("client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.conn.Close()
				log.WithFields(log.Fields{"component": "hub", "player": client.player, "total": len(h.clients)}).Info("client disconnected")
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			payload, err := json.Marshal(map[string]any{"type": "event", "data": event})
			if err != nil {
				log.WithError(err).WithField("component", "hub").Error("marshal event")
				continue
			}

			player, _ := event.Attr("player")
			h.mu.RLock()
			for client := range h.clients {
				if client.wants(player) {
					go client.send(payload)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Publish queues event for broadcast and drops it when the queue is full.
func (h *Hub) Publish(_ context.Context, event Event) error {
	select {
	case h.broadcast <- event:
	default:
		log.WithFields(log.Fields{"component": "hub", "eventId": event.ID}).Warn("broadcast channel full, dropping event")
	}
	return nil
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Register subscribes conn and returns a handle for Unregister.
func (h *Hub) Register(conn *websocket.Conn, player string) *Client {
	client := &Client{conn: conn, player: player}
	select {
	case h.register <- client:
	case <-h.done:
	}
	return client
}

// Unregister is a no-op once the hub has stopped.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (c *Client) wants(player string) bool {
	return c.player == "" || c.player == player
}

// Write sends data to this client alone.
func (c *Client) Write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) send(data []byte) {
	if err := c.Write(data); err != nil {
		log.WithFields(log.Fields{"component": "hub", "player": c.player, "error": err}).Warn("write failed")
	}
}
