package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/clipsight/api/internal/model"
)

// Client represents a WebSocket client subscribed to one video's labeling
type Client struct {
	VideoID string
	Conn    *websocket.Conn
	Send    chan []byte
}

// Hub maintains active WebSocket connections grouped by video ID
type Hub struct {
	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage

	mu sync.RWMutex
}

// BroadcastMessage represents a message to broadcast
type BroadcastMessage struct {
	VideoID string
	Message []byte
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.VideoID] == nil {
				h.clients[client.VideoID] = make(map[*Client]bool)
			}
			h.clients[client.VideoID][client] = true
			h.mu.Unlock()
			log.Printf("Client subscribed to video %s", client.VideoID)

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.VideoID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send)
					if len(clients) == 0 {
						delete(h.clients, client.VideoID)
					}
				}
			}
			h.mu.Unlock()
			log.Printf("Client unsubscribed from video %s", client.VideoID)

		case msg := <-h.broadcast:
			h.mu.RLock()
			if clients, ok := h.clients[msg.VideoID]; ok {
				for client := range clients {
					select {
					case client.Send <- msg.Message:
					default:
						close(client.Send)
						delete(clients, client)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a new client
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// BroadcastFrameLabeled reports a keyframe reaching a terminal label state
func (h *Hub) BroadcastFrameLabeled(videoID, keyframeID string, status model.LabelingStatus) {
	h.send(videoID, model.WSFrameLabeledMessage{
		Type:       model.WSMessageTypeFrameLabeled,
		VideoID:    videoID,
		KeyframeID: keyframeID,
		Status:     status,
	})
}

// BroadcastRetry reports retry escalation for a set of failed frames
func (h *Hub) BroadcastRetry(videoID string, keyframeIDs []string) {
	h.send(videoID, model.WSRetryMessage{
		Type:        model.WSMessageTypeRetry,
		VideoID:     videoID,
		KeyframeIDs: keyframeIDs,
	})
}

// BroadcastComplete reports the video reaching labeling completion
func (h *Hub) BroadcastComplete(videoID string, labels *model.LabelSet) {
	h.send(videoID, model.WSCompleteMessage{
		Type:     model.WSMessageTypeComplete,
		VideoID:  videoID,
		AILabels: labels,
	})
}

// BroadcastError sends an error message to the video's subscribers
func (h *Hub) BroadcastError(videoID, code, message string) {
	h.send(videoID, model.WSErrorMessage{
		Type:    model.WSMessageTypeError,
		VideoID: videoID,
		Error: model.WSError{
			Code:    code,
			Message: message,
		},
	})
}

func (h *Hub) send(videoID string, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal websocket message: %v", err)
		return
	}

	h.broadcast <- &BroadcastMessage{
		VideoID: videoID,
		Message: data,
	}
}

// HandleConnection handles a WebSocket connection
func (h *Hub) HandleConnection(c *websocket.Conn, videoID string) {
	client := &Client{
		VideoID: videoID,
		Conn:    c,
		Send:    make(chan []byte, 256),
	}

	h.Register(client)
	defer h.Unregister(client)

	// Start writer goroutine
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case message, ok := <-client.Send:
				if !ok {
					c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}

			case <-ticker.C:
				// Send ping for keep-alive
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// Reader loop
	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		// Handle client messages (ping/pong)
		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		if msg.Type == model.WSMessageTypePing {
			pong := model.WSMessage{Type: model.WSMessageTypePong}
			data, _ := json.Marshal(pong)
			client.Send <- data
		}
	}
}
