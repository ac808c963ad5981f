package chathub

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"nebulalink/backend/internal/models"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	// SDP offers and ICE candidate batches run to a few kilobytes.
	maxMessageSize = 16 * 1024

	sendBufferSize = 256
)

// WebSocketClient implements Client over a gorilla/websocket connection.
// The connection is bound to one authenticated identity for its whole
// lifetime.
type WebSocketClient struct {
	UserID string
	Conn   *websocket.Conn
	Hub    *ManagerService
	Send   chan models.Event

	mu     sync.RWMutex
	roomID string
	closed bool

	closeOnce sync.Once
	done      chan struct{}
}

func NewWebSocketClient(userID string, conn *websocket.Conn, hub *ManagerService) *WebSocketClient {
	return &WebSocketClient{
		UserID: userID,
		Conn:   conn,
		Hub:    hub,
		Send:   make(chan models.Event, sendBufferSize),
		done:   make(chan struct{}),
	}
}

func (c *WebSocketClient) GetUserID() string { return c.UserID }

func (c *WebSocketClient) GetRoomID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomID
}

func (c *WebSocketClient) SetRoomID(id string) {
	c.mu.Lock()
	c.roomID = id
	c.mu.Unlock()
}

// GetSendChannel returns the outbound channel, or nil once the client
// is closed. Deliveries are non-blocking selects, so a nil channel
// routes them to the drop branch.
func (c *WebSocketClient) GetSendChannel() chan<- models.Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil
	}
	return c.Send
}

// Run starts the read and write pumps.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close marks the client closed and tears down the network connection,
// which stops both pumps whether or not they were ever started. The
// Send channel is never closed: a delivery racing the close sees a nil
// channel from GetSendChannel and is dropped instead of panicking on a
// send to a closed channel.
func (c *WebSocketClient) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		if c.done != nil {
			close(c.done)
		}
		c.Conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(writeWait))
		c.Conn.Close()
	})
}

// readPump decodes inbound events and hands each one to the hub for
// dispatch. Events from different connections are therefore handled
// concurrently; events from one connection stay in order.
func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("error reading message: %v", err)
			}
			break
		}

		var ev models.Event
		if err := json.Unmarshal(message, &ev); err != nil {
			log.Printf("Error decoding event from client %s: %v", c.UserID, err)
			continue
		}

		// The sender is always the authenticated identity, whatever the
		// payload claims.
		ev.SenderID = c.UserID
		c.Hub.Dispatch(c, ev)
	}
}

// writePump drains the Send channel into the socket and keeps the
// connection alive with pings.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return

		case ev := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			data, err := json.Marshal(ev)
			if err != nil {
				log.Printf("Error encoding event for client %s: %v", c.UserID, err)
				continue
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
