package console

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"go-pedidos/internal/notify"
)

const (
	writeWait      = 10 * time.Second    // Time allowed to write a message to the peer.
	pongWait       = 60 * time.Second    // Time allowed to read the next pong message from the peer.
	pingPeriod     = (pongWait * 9) / 10 // Send pings to peer with this period. Must be less than pongWait.
	maxMessageSize = 4096                // Maximum message size allowed from peer.
	commandBuffer  = 16
)

// Client is a middleman between the websocket connection and its session.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	cmds    chan Inbound
	session *session

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	closed       bool
	cancelSelect context.CancelFunc
}

func newClient(hub *Hub, conn *websocket.Conn, deps Deps) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		cmds:   make(chan Inbound, commandBuffer),
		ctx:    ctx,
		cancel: cancel,
	}
	c.session = newSession(deps, c.push)
	return c
}

// push queues a frame for the write pump. A client too slow to drain 256
// frames loses frames rather than stalling the session.
func (c *Client) push(out Outbound) {
	msg, err := json.Marshal(out)
	if err != nil {
		log.Printf("⚠️ encode %s frame: %v", out.Type, err)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
		log.Printf("⚠️ console send buffer full, dropping %s frame", out.Type)
	}
}

// enqueue hands a command to the worker. It reports false if the client is
// gone or, for non-blocking calls, the queue is full.
func (c *Client) enqueue(cmd Inbound, block bool) bool {
	if !block {
		select {
		case c.cmds <- cmd:
			return true
		default:
			return false
		}
	}
	select {
	case c.cmds <- cmd:
		return true
	case <-c.ctx.Done():
		return false
	}
}

// abortSelect cancels a selection still loading so a newer one is not
// queued behind it.
func (c *Client) abortSelect() {
	c.mu.Lock()
	if c.cancelSelect != nil {
		c.cancelSelect()
		c.cancelSelect = nil
	}
	c.mu.Unlock()
}

// work runs commands one at a time until the client shuts down.
func (c *Client) work() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case cmd := <-c.cmds:
			ctx, cancel := context.WithCancel(c.ctx)
			if cmd.Type == TypeSelect {
				c.mu.Lock()
				c.cancelSelect = cancel
				c.mu.Unlock()
			}
			if err := c.session.handle(ctx, cmd); err != nil {
				log.Printf("console %s: %v", cmd.Type, err)
			}
			cancel()
		}
	}
}

// shutdown is called once by the hub.
func (c *Client) shutdown() {
	c.cancel()
	c.session.close()
	c.mu.Lock()
	c.closed = true
	close(c.send)
	c.mu.Unlock()
}

// readPump pumps commands from the websocket connection to the worker.
func (c *Client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("error: %v", err)
			}
			break
		}
		cmd, err := decodeInbound(message)
		if err != nil {
			c.push(Outbound{Type: TypeNotification, Data: notify.Errorf("Comando inválido: %v", err)})
			continue
		}
		if cmd.Type == TypeSelect {
			c.abortSelect()
		}
		if !c.enqueue(cmd, true) {
			break
		}
	}
}

// writePump pumps frames from the session to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
