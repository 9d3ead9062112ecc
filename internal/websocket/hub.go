package websocket

import (
	"sync"

	"github.com/JoelGresham/teamPoll/internal/events"
)

// Hub manages socket connections and their channel subscriptions.
// Subscriptions apply synchronously so a broadcast issued after Subscribe
// returns reaches the new subscriber.
type Hub struct {
	mu sync.RWMutex

	// clients maps client ID to client
	clients map[string]*Client

	// channels maps channel name to set of clients subscribed to it
	channels map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:  make(map[string]*Client),
		channels: make(map[string]map[*Client]struct{}),
	}
}

// Register adds a client and subscribes it to its private channel and the global one.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client
	h.subscribeLocked(client, events.ConnectionChannel(client.ID))
	h.subscribeLocked(client, events.GlobalChannel)
}

// Unregister removes a client with all its subscriptions and closes its send queue.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	for _, channel := range client.Channels() {
		h.unsubscribeLocked(client, channel)
	}
	delete(h.clients, client.ID)
	client.closeSend()
}

// Subscribe is a no-op for clients that are not registered.
func (h *Hub) Subscribe(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	h.subscribeLocked(client, channel)
}

func (h *Hub) Unsubscribe(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unsubscribeLocked(client, channel)
}

// DropChannel unsubscribes every client of channel.
func (h *Hub) DropChannel(channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.channels[channel] {
		client.removeChannel(channel)
	}
	delete(h.channels, channel)
}

// Broadcast queues payload on every subscriber of channel without blocking.
// Returns the number of clients that accepted it.
func (h *Hub) Broadcast(channel string, payload []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for c := range h.channels[channel] {
		if c.SendMessage(payload) {
			sent++
		}
	}
	return sent
}

func (h *Hub) Client(id string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[id]
	return c, ok
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) ChannelSubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

// CloseAll unregisters every client. Used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.Unregister(c)
	}
}

func (h *Hub) subscribeLocked(client *Client, channel string) {
	if _, ok := h.channels[channel]; !ok {
		h.channels[channel] = make(map[*Client]struct{})
	}
	h.channels[channel][client] = struct{}{}
	client.addChannel(channel)
}

func (h *Hub) unsubscribeLocked(client *Client, channel string) {
	if subscribers, ok := h.channels[channel]; ok {
		delete(subscribers, client)
		if len(subscribers) == 0 {
			delete(h.channels, channel)
		}
	}
	client.removeChannel(channel)
}
