package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/tiendaropa/catalog-backend/pkg/logger"
)

// Topics clients can subscribe to for live catalog updates.
const (
	TopicProducts   = "products"
	TopicCategories = "categories"
	TopicStock      = "stock"
)

// Event types broadcast over the hub.
const (
	EventProductCreated  = "product_created"
	EventProductUpdated  = "product_updated"
	EventProductDeleted  = "product_deleted"
	EventStockChanged    = "stock_changed"
	EventCategoryCreated = "category_created"
	EventCategoryUpdated = "category_updated"
	EventCategoryDeleted = "category_deleted"
	EventPrimaryChanged  = "primary_category_changed"
)

// ClientMessage is a subscription command received from a client.
type ClientMessage struct {
	Type  string `json:"type"` // subscribe, unsubscribe
	Topic string `json:"topic"`
}

// Event is the envelope broadcast to subscribed clients.
type Event struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// Client is one WebSocket session of an authenticated user.
type Client struct {
	Hub           *Hub
	Conn          *Conn
	UserID        uint
	Send          chan []byte
	Topics        map[string]bool
	mu            sync.RWMutex
	MessageCount  int
	LastResetTime time.Time
	RateMu        sync.Mutex
}

// Hub tracks connected clients and fans catalog events out to topic
// subscribers.
type Hub struct {
	// UserID -> sessions, so one user can watch from several devices
	clients map[uint][]*Client

	// Topic -> subscribed user IDs
	topics map[string]map[uint]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage

	mu sync.RWMutex
}

// BroadcastMessage carries a serialized event for one topic.
type BroadcastMessage struct {
	Topic   string
	Message []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[uint][]*Client),
		topics:     make(map[string]map[uint]bool),
		register:   make(chan *Client, 256),
		unregister: make(chan *Client, 256),
		broadcast:  make(chan *BroadcastMessage, 1024),
	}
}

// Run processes register, unregister and broadcast events. Call it in
// its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.UserID] = append(h.clients[client.UserID], client)
			h.mu.Unlock()
			logger.Info("WebSocket client registered", map[string]interface{}{
				"user_id":        client.UserID,
				"total_sessions": len(h.clients[client.UserID]),
			})

		case client := <-h.unregister:
			h.mu.Lock()
			// The drop-on-full-buffer path and a closing ReadPump can
			// both unregister the same session; only the request that
			// actually removes it may close Send.
			removed := false
			if clientList, ok := h.clients[client.UserID]; ok {
				newList := make([]*Client, 0, len(clientList))
				for _, c := range clientList {
					if c != client {
						newList = append(newList, c)
					}
				}
				removed = len(newList) < len(clientList)

				if removed {
					if len(newList) == 0 {
						delete(h.clients, client.UserID)

						// Drop topic subscriptions held by the last session
						client.mu.RLock()
						for topic := range client.Topics {
							if users, ok := h.topics[topic]; ok {
								delete(users, client.UserID)
								if len(users) == 0 {
									delete(h.topics, topic)
								}
							}
						}
						client.mu.RUnlock()
					} else {
						h.clients[client.UserID] = newList
					}

					close(client.Send)
				}
			}
			h.mu.Unlock()
			if removed {
				logger.Info("WebSocket client unregistered", map[string]interface{}{
					"user_id": client.UserID,
				})
			}

		case message := <-h.broadcast:
			h.mu.RLock()
			if users, ok := h.topics[message.Topic]; ok {
				for userID := range users {
					if clientList, ok := h.clients[userID]; ok {
						for _, client := range clientList {
							select {
							case client.Send <- message.Message:
							default:
								// Send buffer stuck, drop the session
								go h.Unregister(client)
								logger.Warn("Client send buffer full, disconnecting", map[string]interface{}{
									"user_id": userID,
								})
							}
						}
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Subscribe adds every session of a user to a topic.
func (h *Hub) Subscribe(userID uint, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clientList, ok := h.clients[userID]; ok {
		for _, client := range clientList {
			client.mu.Lock()
			client.Topics[topic] = true
			client.mu.Unlock()
		}

		if _, ok := h.topics[topic]; !ok {
			h.topics[topic] = make(map[uint]bool)
		}
		h.topics[topic][userID] = true

		logger.Debug("User subscribed to topic", map[string]interface{}{
			"user_id": userID,
			"topic":   topic,
		})
	}
}

// Unsubscribe removes every session of a user from a topic.
func (h *Hub) Unsubscribe(userID uint, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clientList, ok := h.clients[userID]; ok {
		for _, client := range clientList {
			client.mu.Lock()
			delete(client.Topics, topic)
			client.mu.Unlock()
		}
	}

	if users, ok := h.topics[topic]; ok {
		delete(users, userID)
		if len(users) == 0 {
			delete(h.topics, topic)
		}
	}
}

// Publish serializes an event and queues it for topic subscribers.
// Events are dropped when the broadcast buffer is full so catalog
// writes never block on slow sockets.
func (h *Hub) Publish(topic, eventType string, payload interface{}) error {
	data, err := json.Marshal(Event{
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now(),
	})
	if err != nil {
		logger.Error("Failed to marshal event", err, nil)
		return err
	}

	select {
	case h.broadcast <- &BroadcastMessage{
		Topic:   topic,
		Message: data,
	}:
		return nil
	default:
		logger.Warn("Broadcast channel full, event dropped", map[string]interface{}{
			"topic": topic,
			"type":  eventType,
		})
		return nil
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// IsUserOnline reports whether the user has at least one open session.
func (h *Hub) IsUserOnline(userID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// SubscriberCount counts users subscribed to a topic.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

func validTopic(topic string) bool {
	switch topic {
	case TopicProducts, TopicCategories, TopicStock:
		return true
	}
	return false
}

// HandleClientMessage parses a subscription command from a client.
func (h *Hub) HandleClientMessage(client *Client, message []byte) {
	client.RateMu.Lock()
	now := time.Now()
	if now.Sub(client.LastResetTime) >= time.Second {
		client.MessageCount = 0
		client.LastResetTime = now
	}
	client.MessageCount++
	count := client.MessageCount
	client.RateMu.Unlock()

	if count > maxMessagesPerSecond {
		logger.Warn("Rate limit exceeded", map[string]interface{}{
			"user_id": client.UserID,
			"count":   count,
		})
		return
	}

	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		logger.Warn("Failed to parse client message", map[string]interface{}{
			"user_id": client.UserID,
			"error":   err.Error(),
		})
		return
	}

	if !validTopic(msg.Topic) {
		logger.Warn("Unknown topic", map[string]interface{}{
			"user_id": client.UserID,
			"topic":   msg.Topic,
		})
		return
	}

	switch msg.Type {
	case "subscribe":
		h.Subscribe(client.UserID, msg.Topic)
	case "unsubscribe":
		h.Unsubscribe(client.UserID, msg.Topic)
	}
}
