package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/labstack/echo/v4"

	"github.com/nstlabs/prepdesk/internal/domain"
	"github.com/nstlabs/prepdesk/internal/middleware"
	"github.com/nstlabs/prepdesk/internal/pubsub"
)

// Topics published by the bridge on client lifecycle changes.
const (
	TopicClientConnected    = "system.websocket.connected"
	TopicClientDisconnected = "system.websocket.disconnected"
)

// Client is one WebSocket connection. A user can hold several at once, one
// per open tab or device.
type Client struct {
	ID     string
	Role   domain.Role
	conn   *websocket.Conn
	send   chan []byte
	bridge *Bridge
}

type broadcastMessage struct {
	payload    []byte
	adminsOnly bool
}

type directMessage struct {
	targetUserID string
	payload      []byte
}

// Bridge manages all WebSocket connections and pushes server-side state
// changes out to them. It also publishes connect and disconnect events to the
// message bus so other services can track who is online.
type Bridge struct {
	publisher pubsub.Publisher

	// clients maps user IDs to that user's active connections.
	clients map[string][]*Client

	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMessage
	direct     chan *directMessage

	mu sync.RWMutex
}

// NewBridge initializes a bridge, ready to accept connections once Run is
// started.
func NewBridge(pub pubsub.Publisher) *Bridge {
	return &Bridge{
		publisher:  pub,
		clients:    make(map[string][]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMessage, 64),
		direct:     make(chan *directMessage, 64),
	}
}

// Run owns the clients map and routes all registration and delivery traffic.
// Blocks until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) {
	slog.Info("WebSocket bridge started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("WebSocket bridge stopped")
			return

		case client := <-b.register:
			b.mu.Lock()
			b.clients[client.ID] = append(b.clients[client.ID], client)
			b.mu.Unlock()
			slog.Info("Client registered", "user_id", client.ID, "role", client.Role)
			b.publishLifecycle(TopicClientConnected, client)

		case client := <-b.unregister:
			b.mu.Lock()
			removed := false
			if clients, ok := b.clients[client.ID]; ok {
				for i, c := range clients {
					if c == client {
						b.clients[client.ID] = append(clients[:i], clients[i+1:]...)
						removed = true
						break
					}
				}
				if len(b.clients[client.ID]) == 0 {
					delete(b.clients, client.ID)
				}
			}
			b.mu.Unlock()
			if removed {
				close(client.send)
				slog.Info("Client unregistered", "user_id", client.ID)
				b.publishLifecycle(TopicClientDisconnected, client)
			}

		case message := <-b.broadcast:
			b.mu.RLock()
			for _, clients := range b.clients {
				for _, client := range clients {
					if message.adminsOnly && client.Role != domain.RoleAdmin {
						continue
					}
					select {
					case client.send <- message.payload:
					default:
						slog.Warn("Client send channel full, dropping message", "user_id", client.ID)
					}
				}
			}
			b.mu.RUnlock()

		case message := <-b.direct:
			b.mu.RLock()
			for _, client := range b.clients[message.targetUserID] {
				select {
				case client.send <- message.payload:
				default:
					slog.Warn("Client send channel full, dropping direct message", "user_id", client.ID)
				}
			}
			b.mu.RUnlock()
		}
	}
}

func (b *Bridge) publishLifecycle(topic string, client *Client) {
	payload, _ := json.Marshal(map[string]any{
		"userId": client.ID,
		"role":   client.Role,
	})
	msg := pubsub.Message{Topic: topic, UserID: client.ID, Payload: payload}
	if err := b.publisher.Publish(context.Background(), msg); err != nil {
		slog.Error("Failed to publish client lifecycle event", "topic", topic, "error", err)
	}
}

// Handler upgrades an authenticated request to a WebSocket connection.
func (b *Bridge) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		user, ok := c.Get(middleware.UserContextKey).(*domain.User)
		if !ok || user == nil {
			return c.String(http.StatusUnauthorized, "User not authenticated")
		}

		conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
			InsecureSkipVerify: true, // In production, check origin.
		})
		if err != nil {
			slog.Error("Failed to upgrade connection to WebSocket", "error", err)
			return err
		}

		client := &Client{
			ID:     user.ID,
			Role:   user.Role,
			conn:   conn,
			send:   make(chan []byte, 256),
			bridge: b,
		}
		b.register <- client

		go client.writePump()
		go client.readPump()
		return nil
	}
}

// Broadcast sends a payload to every connected client.
func (b *Bridge) Broadcast(payload []byte) {
	b.broadcast <- &broadcastMessage{payload: payload}
}

// BroadcastAdmins sends a payload to connected admins only.
func (b *Bridge) BroadcastAdmins(payload []byte) {
	b.broadcast <- &broadcastMessage{payload: payload, adminsOnly: true}
}

// SendDirect sends a payload to all of one user's connections.
func (b *Bridge) SendDirect(userID string, payload []byte) {
	b.direct <- &directMessage{targetUserID: userID, payload: payload}
}

// readPump drains the connection. Clients only push state downstream, so
// reads exist to detect the close.
func (c *Client) readPump() {
	defer func() {
		c.bridge.unregister <- c
		c.conn.Close(websocket.StatusNormalClosure, "Client disconnected")
	}()

	for {
		_, _, err := c.conn.Read(context.Background())
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				slog.Info("WebSocket closed by client", "user_id", c.ID)
			} else if err != io.EOF {
				slog.Error("WebSocket read error", "user_id", c.ID, "error", err)
			}
			return
		}
	}
}

// writePump drains the client's send channel onto the connection.
func (c *Client) writePump() {
	defer func() {
		c.conn.Close(websocket.StatusNormalClosure, "Server-side cleanup")
	}()

	for message := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := c.conn.Write(ctx, websocket.MessageText, message)
		cancel()
		if err != nil {
			slog.Error("WebSocket write error", "user_id", c.ID, "error", err)
			return
		}
	}
}
