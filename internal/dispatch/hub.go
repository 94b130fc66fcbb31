package dispatch

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"taxigrid/internal/logger"
)

// Websocket topics.
const (
	TopicFleet  = "fleet"
	TopicRoutes = "routes"
)

// KnownTopic reports whether topic can be subscribed to.
func KnownTopic(topic string) bool {
	return topic == TopicFleet || topic == TopicRoutes
}

// Envelope is the frame written to websocket subscribers.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub fans fleet changes out to websocket subscribers grouped by topic.
type Hub struct {
	mu         sync.RWMutex
	writeMu    sync.Mutex
	conns      map[string]map[*websocket.Conn]struct{}
	register   chan subscription
	unregister chan subscription
	done       chan struct{}
}

type subscription struct {
	topic string
	conn  *websocket.Conn
}

func NewHub() *Hub {
	return &Hub{
		conns:      make(map[string]map[*websocket.Conn]struct{}),
		register:   make(chan subscription),
		unregister: make(chan subscription),
		done:       make(chan struct{}),
	}
}

// Run serves register and unregister requests until ctx is done, then
// closes every open connection.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case sub := <-h.register:
			h.mu.Lock()
			if h.conns[sub.topic] == nil {
				h.conns[sub.topic] = make(map[*websocket.Conn]struct{})
			}
			h.conns[sub.topic][sub.conn] = struct{}{}
			h.mu.Unlock()
		case sub := <-h.unregister:
			h.mu.Lock()
			if conns, ok := h.conns[sub.topic]; ok {
				if _, open := conns[sub.conn]; open {
					delete(conns, sub.conn)
					sub.conn.Close()
				}
				if len(conns) == 0 {
					delete(h.conns, sub.topic)
				}
			}
			h.mu.Unlock()
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for _, conns := range h.conns {
				for conn := range conns {
					conn.Close()
				}
			}
			clear(h.conns)
			h.mu.Unlock()
			return
		}
	}
}

// Subscribers returns the number of open connections on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[topic])
}

func (h *Hub) ServeTopic(w http.ResponseWriter, r *http.Request, topic string) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.L().Warn("ws_upgrade_failed", "topic", topic, "err", err)
		return
	}
	select {
	case h.register <- subscription{topic: topic, conn: conn}:
	case <-h.done:
		conn.Close()
		return
	}

	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				h.drop(topic, conn)
				return
			}
		}
	}()
}

func (h *Hub) drop(topic string, conn *websocket.Conn) {
	select {
	case h.unregister <- subscription{topic: topic, conn: conn}:
	case <-h.done:
	}
}

func (h *Hub) PublishBooking(b Booking) {
	h.broadcast(TopicFleet, Envelope{Type: string(b.Kind), Data: b})
}

func (h *Hub) PublishRoute(r RouteResult) {
	h.broadcast(TopicRoutes, Envelope{Type: "route", Data: r})
}

func (h *Hub) broadcast(topic string, payload any) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.conns[topic]))
	for conn := range h.conns[topic] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	var dead []*websocket.Conn
	h.writeMu.Lock()
	for _, conn := range conns {
		if err := conn.WriteJSON(payload); err != nil {
			dead = append(dead, conn)
		}
	}
	h.writeMu.Unlock()

	for _, conn := range dead {
		go h.drop(topic, conn)
	}
}
