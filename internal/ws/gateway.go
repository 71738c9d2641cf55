package ws

import (
	"log"
	"sync"

	"github.com/ymatsuda/bookmates-backend/internal/fanout"
	"github.com/ymatsuda/bookmates-backend/internal/service"
)

// Gateway tracks active WebSocket clients by user id. One connection
// per user: a newer connection replaces the older one.
type Gateway struct {
	broker   *fanout.Broker
	messages service.MessageService
	unread   service.UnreadService

	mu      sync.RWMutex
	clients map[string]*Client
}

func NewGateway(broker *fanout.Broker, messages service.MessageService, unread service.UnreadService) *Gateway {
	return &Gateway{
		broker:   broker,
		messages: messages,
		unread:   unread,
		clients:  make(map[string]*Client),
	}
}

func (g *Gateway) register(c *Client) {
	g.mu.Lock()
	old := g.clients[c.uid]
	g.clients[c.uid] = c
	total := len(g.clients)
	g.mu.Unlock()

	if old != nil {
		old.shutdown()
	}
	log.Printf("ws: user %s connected as %s (%d total)", c.uid, c.connID, total)
}

func (g *Gateway) unregister(c *Client) {
	g.mu.Lock()
	if g.clients[c.uid] == c {
		delete(g.clients, c.uid)
	}
	total := len(g.clients)
	g.mu.Unlock()

	c.shutdown()
	log.Printf("ws: user %s disconnected (%d total)", c.uid, total)
}

// NotifyUnread implements service.BadgeNotifier: pushes the new badge
// count to the user's connection, fire and forget.
func (g *Gateway) NotifyUnread(uid string, count int64) {
	g.mu.RLock()
	client := g.clients[uid]
	g.mu.RUnlock()
	if client == nil {
		return
	}
	client.enqueueEvent(EventTypeUnreadBadge, UnreadBadgePayload{Count: count})
}
