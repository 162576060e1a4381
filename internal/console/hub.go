package console

import (
	"context"
	"log"
	"sync/atomic"
	"time"
)

// Hub maintains the set of connected consoles and drives the periodic
// reconciliation pass. Only Run touches the clients map.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{} // closed when Run returns

	reconcileEvery time.Duration
	connected      atomic.Int64
}

func NewHub(reconcileEvery time.Duration) *Hub {
	return &Hub{
		clients:        make(map[*Client]bool),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		done:           make(chan struct{}),
		reconcileEvery: reconcileEvery,
	}
}

// Connected is the number of registered consoles.
func (h *Hub) Connected() int {
	return int(h.connected.Load())
}

// add registers c. It reports false once the hub has stopped.
func (h *Hub) add(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// remove unregisters c. After the hub stopped every client is already shut
// down, so there is nothing left to do.
func (h *Hub) remove(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	var tick <-chan time.Time
	if h.reconcileEvery > 0 {
		ticker := time.NewTicker(h.reconcileEvery)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.connected.Add(1)

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				h.connected.Add(-1)
				client.shutdown()
			}

		case <-tick:
			skipped := 0
			for client := range h.clients {
				if !client.enqueue(Inbound{Type: typeReconcile}, false) {
					skipped++
				}
			}
			if skipped > 0 {
				log.Printf("⚠️ reconcile skipped for %d busy consoles", skipped)
			}

		case <-ctx.Done():
			for client := range h.clients {
				delete(h.clients, client)
				client.shutdown()
			}
			h.connected.Store(0)
			return
		}
	}
}
