package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/sirupsen/logrus"

	"github.com/mediagrab/api/internal/model"
)

// Client represents a WebSocket client
type Client struct {
	DownloadID string
	Conn       *websocket.Conn
	Send       chan []byte

	// Pong requests from the reader; never closed
	pong chan struct{}
}

// Hub maintains active WebSocket connections
type Hub struct {
	// Clients grouped by download ID
	clients map[string]map[*Client]bool

	// Register requests
	register chan *Client

	// Unregister requests
	unregister chan *Client

	// Broadcast messages to download subscribers
	broadcast chan *BroadcastMessage

	// Closed once Run returns
	done chan struct{}

	log *logrus.Logger
}

// BroadcastMessage represents a message to broadcast
type BroadcastMessage struct {
	DownloadID string
	Message    []byte
}

// NewHub creates a new Hub
func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run starts the hub's main loop. It returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			if h.clients[client.DownloadID] == nil {
				h.clients[client.DownloadID] = make(map[*Client]bool)
			}
			h.clients[client.DownloadID][client] = true
			h.log.WithField("download_id", client.DownloadID).Debug("websocket client registered")

		case client := <-h.unregister:
			h.remove(client)
			h.log.WithField("download_id", client.DownloadID).Debug("websocket client unregistered")

		case msg := <-h.broadcast:
			for client := range h.clients[msg.DownloadID] {
				select {
				case client.Send <- msg.Message:
				default:
					// slow consumer
					h.remove(client)
				}
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	clients, ok := h.clients[client.DownloadID]
	if !ok {
		return
	}
	if _, ok := clients[client]; ok {
		delete(clients, client)
		close(client.Send)
		if len(clients) == 0 {
			delete(h.clients, client.DownloadID)
		}
	}
}

// Register adds a new client
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes a client
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// BroadcastProgress sends a stage or progress update to all download subscribers
func (h *Hub) BroadcastProgress(downloadID string, status model.DownloadStatus, stage model.Stage, progress int) {
	h.publish(downloadID, model.WSProgressMessage{
		Type:       model.WSMessageTypeProgress,
		DownloadID: downloadID,
		Status:     status,
		Stage:      stage,
		Progress:   progress,
	})
}

// BroadcastComplete sends a completion message to all download subscribers
func (h *Hub) BroadcastComplete(downloadID, filePath string) {
	h.publish(downloadID, model.WSCompleteMessage{
		Type:       model.WSMessageTypeComplete,
		DownloadID: downloadID,
		FilePath:   filePath,
	})
}

// BroadcastError sends an error message to all download subscribers
func (h *Hub) BroadcastError(downloadID string, code, message string) {
	h.publish(downloadID, model.WSErrorMessage{
		Type:       model.WSMessageTypeError,
		DownloadID: downloadID,
		Error: model.WSError{
			Code:    code,
			Message: message,
		},
	})
}

// publish never blocks the caller; messages are dropped when the hub is
// saturated.
func (h *Hub) publish(downloadID string, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.WithError(err).Error("failed to marshal websocket message")
		return
	}

	select {
	case h.broadcast <- &BroadcastMessage{DownloadID: downloadID, Message: data}:
	default:
		h.log.WithField("download_id", downloadID).Warn("websocket broadcast queue full, dropping message")
	}
}

// HandleConnection handles a WebSocket connection
func (h *Hub) HandleConnection(c *websocket.Conn, downloadID string) {
	client := &Client{
		DownloadID: downloadID,
		Conn:       c,
		Send:       make(chan []byte, 256),
		pong:       make(chan struct{}, 1),
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

			case <-client.pong:
				pong, _ := json.Marshal(model.WSMessage{Type: model.WSMessageTypePong})
				if err := c.WriteMessage(websocket.TextMessage, pong); err != nil {
					return
				}

			case <-ticker.C:
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
				h.log.WithError(err).WithField("download_id", downloadID).Warn("websocket read failed")
			}
			break
		}

		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		if msg.Type == model.WSMessageTypePing {
			select {
			case client.pong <- struct{}{}:
			default:
			}
		}
	}
}
