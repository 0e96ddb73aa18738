package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/achievement-notifier/backend/internal/notify"
)

// ErrTooManyConnections is returned by AddClient when the connection limit
// is reached.
var ErrTooManyConnections = errors.New("too many overlay connections")

const writeWait = 10 * time.Second

type client struct {
	conn *websocket.Conn
	b    *Broadcaster
	send chan []byte
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.b.RemoveClient(c)
			return
		}
	}
}

// Broadcaster fans messages out to connected overlay clients. It implements
// notify.Overlay so popups reach every client.
type Broadcaster struct {
	mu       sync.RWMutex
	clients  map[*client]bool
	maxConns int
}

// NewBroadcaster creates a broadcaster. maxConns <= 0 means unlimited.
func NewBroadcaster(maxConns int) *Broadcaster {
	return &Broadcaster{
		clients:  make(map[*client]bool),
		maxConns: maxConns,
	}
}

func (b *Broadcaster) AddClient(conn *websocket.Conn) (*client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.maxConns > 0 && len(b.clients) >= b.maxConns {
		return nil, ErrTooManyConnections
	}
	c := &client{
		conn: conn,
		b:    b,
		send: make(chan []byte, 64),
	}
	b.clients[c] = true
	go c.writePump()
	return c, nil
}

func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		close(c.send)
	}
	b.mu.Unlock()
}

// Send queues msg for a single client, dropping it if the client is behind.
func (b *Broadcaster) Send(c *client, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[ws] marshal error: %v", err)
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.clients[c] {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// ShowPopup broadcasts a notification to every overlay client.
func (b *Broadcaster) ShowPopup(ev notify.Event) error {
	msgType, ok := messageTypes[ev.Kind]
	if !ok {
		return fmt.Errorf("no overlay message for event kind %q", ev.Kind)
	}
	return b.Broadcast(WSMessage{Type: msgType, Payload: popupFor(ev)})
}

func popupFor(ev notify.Event) PopupPayload {
	p := PopupPayload{
		ID:   ev.ID,
		Body: notify.Message(ev),
		At:   ev.At.UTC().Format(time.RFC3339),
	}
	if s := ev.Session; s != nil {
		p.Game = s.Name
		p.AppID = s.AppID
	}
	switch ev.Kind {
	case notify.KindSessionStarted:
		p.Title = "Now playing"
	case notify.KindSessionEnded:
		p.Title = "Session ended"
	case notify.KindAchievementUnlocked:
		a := ev.Achievement
		p.Title = a.Title()
		p.AppID = a.AppID
		p.Icon = a.Icon
		p.Rarity = string(a.Rarity)
		p.Percent = a.Percent
	}
	return p
}

// Broadcast sends msg to all clients. Clients whose queue is full are
// disconnected.
func (b *Broadcaster) Broadcast(msg WSMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msg.Type, err)
	}

	// Sends happen under the read lock so a concurrent RemoveClient cannot
	// close a channel mid-send.
	var slow []*client
	b.mu.RLock()
	for c := range b.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	b.mu.RUnlock()

	for _, c := range slow {
		log.Printf("[ws] overlay client too slow, disconnecting")
		b.RemoveClient(c)
	}
	return nil
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Stop disconnects every client.
func (b *Broadcaster) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		delete(b.clients, c)
		close(c.send)
	}
}
