package api

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"domainflip/internal/ledger"
	"domainflip/internal/search"
)

const notifierBuffer = 256

// wsClient wraps a websocket connection with write locking.
type wsClient struct {
	conn      *websocket.Conn
	principal ledger.Principal
	mu        sync.Mutex
}

// SearchNotifier fans pipeline events out to websocket subscribers. Users only receive
// their own events; admins receive everything.
type SearchNotifier struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
	events  chan search.Event
	done    chan struct{}
	once    sync.Once
	dropped int
}

// NewSearchNotifier starts the broadcast loop.
func NewSearchNotifier() *SearchNotifier {
	n := &SearchNotifier{
		clients: make(map[*wsClient]struct{}),
		events:  make(chan search.Event, notifierBuffer),
		done:    make(chan struct{}),
	}
	go n.loop()
	return n
}

// Register attaches a websocket connection and returns a client handle.
func (n *SearchNotifier) Register(conn *websocket.Conn, p ledger.Principal) *wsClient {
	client := &wsClient{conn: conn, principal: p}
	n.mu.Lock()
	n.clients[client] = struct{}{}
	n.mu.Unlock()
	return client
}

// Unregister removes the websocket client from the notifier and closes the socket.
func (n *SearchNotifier) Unregister(client *wsClient) {
	if client == nil {
		return
	}
	n.mu.Lock()
	delete(n.clients, client)
	n.mu.Unlock()
	_ = client.conn.Close()
}

// Publish queues evt for delivery. Events are dropped when the queue is full or the
// notifier is closed.
func (n *SearchNotifier) Publish(evt search.Event) {
	select {
	case <-n.done:
		return
	default:
	}
	select {
	case n.events <- evt:
	default:
		n.mu.Lock()
		n.dropped++
		dropped := n.dropped
		n.mu.Unlock()
		logrus.WithFields(logrus.Fields{"type": evt.Type, "dropped": dropped}).Warn("search event queue full")
	}
}

// Close stops the broadcast loop and disconnects all clients.
func (n *SearchNotifier) Close() {
	n.once.Do(func() {
		close(n.done)
		n.mu.Lock()
		for client := range n.clients {
			_ = client.conn.Close()
			delete(n.clients, client)
		}
		n.mu.Unlock()
	})
}

// Subscribers returns the number of connected clients.
func (n *SearchNotifier) Subscribers() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.clients)
}

func (n *SearchNotifier) loop() {
	for {
		select {
		case <-n.done:
			return
		case evt := <-n.events:
			n.broadcast(evt)
		}
	}
}

func (n *SearchNotifier) broadcast(evt search.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for client := range n.clients {
		if !client.principal.IsAdmin() && client.principal.UserID != evt.UserID {
			continue
		}
		if err := client.writeJSON(evt); err != nil {
			delete(n.clients, client)
			_ = client.conn.Close()
		}
	}
}

func (c *wsClient) writeJSON(payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(payload)
}
