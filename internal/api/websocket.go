package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"actionreplay/internal/protocol"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Only local pages may connect
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || isLocalOrigin(origin)
	},
}

func isLocalOrigin(origin string) bool {
	for _, p := range []string{"http://127.0.0.1", "http://localhost"} {
		if origin == p || strings.HasPrefix(origin, p+":") {
			return true
		}
	}
	return false
}

// WSManager handles WebSocket connections and broadcasting
type WSManager struct {
	server     *Server
	clients    map[*WebSocketClient]bool
	clientsMu  sync.RWMutex
	broadcast  chan protocol.Message
	register   chan *WebSocketClient
	unregister chan *WebSocketClient
	shutdown   chan struct{}
	startOnce  sync.Once
	stopOnce   sync.Once
}

// WebSocketClient represents a connected control client
type WebSocketClient struct {
	manager *WSManager
	conn    *websocket.Conn
	send    chan []byte
	ip      string
}

func newWSManager(s *Server) *WSManager {
	return &WSManager{
		server:     s,
		clients:    make(map[*WebSocketClient]bool),
		broadcast:  make(chan protocol.Message, 256),
		register:   make(chan *WebSocketClient),
		unregister: make(chan *WebSocketClient),
		shutdown:   make(chan struct{}),
	}
}

// ensureStarted runs the hub loop once
func (m *WSManager) ensureStarted() {
	m.startOnce.Do(func() { go m.start() })
}

func (m *WSManager) start() {
	for {
		select {
		case client := <-m.register:
			m.clientsMu.Lock()
			m.clients[client] = true
			n := len(m.clients)
			m.clientsMu.Unlock()
			m.server.logger.Info("WS: client registered", "remote", client.ip, "clients", n)

		case client := <-m.unregister:
			m.clientsMu.Lock()
			if _, ok := m.clients[client]; ok {
				delete(m.clients, client)
				close(client.send)
				m.server.logger.Info("WS: client unregistered", "remote", client.ip, "clients", len(m.clients))
			}
			m.clientsMu.Unlock()

		case message := <-m.broadcast:
			m.broadcastMessage(message)

		case <-m.shutdown:
			m.clientsMu.Lock()
			for client := range m.clients {
				delete(m.clients, client)
				close(client.send)
			}
			m.clientsMu.Unlock()
			return
		}
	}
}

func (m *WSManager) stop() {
	m.stopOnce.Do(func() { close(m.shutdown) })
}

func (m *WSManager) broadcastMessage(message protocol.Message) {
	jsonMsg, err := json.Marshal(message)
	if err != nil {
		m.server.logger.Error("WS: failed to marshal broadcast message", "error", err)
		return
	}

	m.clientsMu.Lock()
	defer m.clientsMu.Unlock()

	for client := range m.clients {
		select {
		case client.send <- jsonMsg:
		default:
			// slow client
			close(client.send)
			delete(m.clients, client)
		}
	}
}

// Broadcast queues a message for every client, dropping it when the queue
// is full.
func (m *WSManager) Broadcast(msg protocol.Message) {
	select {
	case m.broadcast <- msg:
	default:
		m.server.logger.Warn("WS: broadcast queue full, dropping message", "type", msg.Type)
	}
}

func (m *WSManager) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.server.logger.Warn("WS: failed to upgrade connection", "error", err)
		return
	}

	client := &WebSocketClient{
		manager: m,
		conn:    conn,
		send:    make(chan []byte, 256),
		ip:      r.RemoteAddr,
	}

	select {
	case m.register <- client:
	case <-m.shutdown:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump pumps messages from the websocket connection to the hub.
func (c *WebSocketClient) readPump() {
	defer func() {
		select {
		case c.manager.unregister <- c:
		case <-c.manager.shutdown:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.manager.server.logger.Warn("WS: read error", "error", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(50 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// reply queues a message for this client only
func (c *WebSocketClient) reply(msg protocol.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.manager.clientsMu.RLock()
	defer c.manager.clientsMu.RUnlock()
	if !c.manager.clients[c] {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *WebSocketClient) handleMessage(data []byte) {
	s := c.manager.server

	var msg struct {
		Type    protocol.MessageType `json:"type"`
		Payload json.RawMessage      `json:"payload"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Warn("WS: invalid message format", "error", err)
		c.reply(protocol.Message{Type: protocol.TypeError, Payload: protocol.ErrorPayload{Message: "invalid message"}})
		return
	}

	switch msg.Type {
	case protocol.TypePlay:
		var payload protocol.PlayPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.Group == "" {
			c.reply(protocol.Message{Type: protocol.TypeError, Payload: protocol.ErrorPayload{Message: "invalid play payload"}})
			return
		}
		s.logger.Info("WS: play request", "group", payload.Group, "remote", c.ip)
		if _, err := s.Play(payload.Group); err != nil {
			c.reply(protocol.Message{Type: protocol.TypeError, Payload: protocol.ErrorPayload{Message: err.Error()}})
		}

	case protocol.TypeCancel:
		s.logger.Info("WS: cancel request", "remote", c.ip, "cancelled", s.player.Cancel())

	case protocol.TypeStatusRequest:
		c.reply(protocol.Message{Type: protocol.TypeStatus, Payload: s.status()})

	case protocol.TypePing:
		c.reply(protocol.Message{Type: protocol.TypePing})

	default:
		c.reply(protocol.Message{Type: protocol.TypeError, Payload: protocol.ErrorPayload{Message: "unknown message type"}})
	}
}
