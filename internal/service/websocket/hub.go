package websocket

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"sentinelvision/internal/logger"
)

const (
	// broadcastBuffer is how many messages may wait for delivery before new ones are dropped.
	broadcastBuffer = 16
	writeTimeout    = 5 * time.Second
)

// Message types pushed to viewers.
const (
	TypeFrame = "frame"
	TypeAlert = "alert"
)

// Message is the JSON envelope sent to every viewer.
type Message struct {
	Type    string `json:"type"`
	Label   string `json:"label,omitempty"`
	Image   string `json:"image,omitempty"`
	Message string `json:"message,omitempty"`
}

// HubService fans messages out to connected live viewers.
type HubService struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	mutex      sync.RWMutex
	logger     *logger.Logger
}

func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves registrations and broadcasts until ctx is cancelled, then closes every client.
func (h *HubService) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Viewer connected. Total: %d", total)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Viewer disconnected. Total: %d", total)

		case message := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				client.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					h.logger.Error("Error sending message: %v", err)
					delete(h.clients, client)
					client.Close()
				}
			}
			h.mutex.Unlock()
		}
	}
}

// Register adds a viewer. It is a no-op once the hub has stopped.
func (h *HubService) Register(client *websocket.Conn) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

// Unregister removes and closes a viewer.
func (h *HubService) Unregister(client *websocket.Conn) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues a raw message for every viewer. Messages are dropped
// when the queue is full so the caller never blocks.
func (h *HubService) Broadcast(message []byte) bool {
	select {
	case h.broadcast <- message:
		return true
	default:
		return false
	}
}

// BroadcastFrame sends an annotated JPEG frame with its label.
func (h *HubService) BroadcastFrame(label string, jpeg []byte) {
	if h.GetClientCount() == 0 {
		return
	}
	h.send(Message{Type: TypeFrame, Label: label, Image: base64.StdEncoding.EncodeToString(jpeg)})
}

// BroadcastAlert sends an alert message.
func (h *HubService) BroadcastAlert(message string) {
	h.send(Message{Type: TypeAlert, Message: message})
}

func (h *HubService) send(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Error encoding %s message: %v", msg.Type, err)
		return
	}
	if !h.Broadcast(data) {
		h.logger.Warning("Viewer queue full, dropping %s message", msg.Type)
	}
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
