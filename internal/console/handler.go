package console

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

type Handler struct {
	hub      *Hub
	deps     Deps
	upgrader websocket.Upgrader
}

func NewHandler(hub *Hub, deps Deps, allowedOrigins []string) *Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &Handler{
		hub:  hub,
		deps: deps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
	}
}

// ServeWs upgrades the request and starts a console for it.
func (h *Handler) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}

	client := newClient(h.hub, conn, h.deps)
	if !h.hub.add(client) {
		client.shutdown()
		conn.Close()
		return
	}

	// Initial load, same as a manual refresh.
	client.enqueue(Inbound{Type: TypeRefreshConversations}, false)
	client.enqueue(Inbound{Type: TypeRefreshDashboard}, false)

	go client.work()
	go client.writePump()
	go client.readPump()
}
