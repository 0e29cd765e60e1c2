package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"grimm.is/rtmirror/internal/events"
	"grimm.is/rtmirror/internal/logging"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Enforce same-origin policy for WebSocket upgrades
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// No origin header (safe)
			return true
		}

		// Allow localhost for development/proxying
		if strings.Contains(origin, "://localhost:") || strings.Contains(origin, "://127.0.0.1:") {
			return true
		}

		host := r.Host
		if rest, ok := strings.CutPrefix(origin, "http://"); ok {
			return rest == host
		}
		if rest, ok := strings.CutPrefix(origin, "https://"); ok {
			return rest == host
		}
		return false
	},
}

// topicAliases expand shorthand topics to event types.
var topicAliases = map[string][]events.EventType{
	"route":   {events.EventRouteAdd, events.EventRouteDel},
	"address": {events.EventAddressAdd, events.EventAddressDel},
	"dump":    {events.EventDumpDone},
}

func expandTopics(topics []string) []events.EventType {
	var out []events.EventType
	for _, t := range topics {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if alias, ok := topicAliases[t]; ok {
			out = append(out, alias...)
			continue
		}
		out = append(out, events.EventType(t))
	}
	return out
}

// wsClient represents a connected WebSocket client with subscriptions.
// An empty topic set receives every event.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	topics map[events.EventType]bool
}

func (c *wsClient) wants(t events.EventType) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.topics) == 0 || c.topics[t]
}

func (c *wsClient) subscribe(types []events.EventType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range types {
		c.topics[t] = true
	}
}

func (c *wsClient) unsubscribe(types []events.EventType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range types {
		delete(c.topics, t)
	}
}

// WSManager fans hub events out to websocket clients.
type WSManager struct {
	hub   *events.Hub
	names NameResolver
	log   *logging.Logger
	sub   <-chan events.Event

	mu      sync.RWMutex
	clients map[*wsClient]bool

	done      chan struct{}
	closeOnce sync.Once
	stopped   chan struct{}
}

// NewWSManager subscribes to every mirror event on hub.
func NewWSManager(hub *events.Hub, names NameResolver, log *logging.Logger) *WSManager {
	m := &WSManager{
		hub:     hub,
		names:   names,
		log:     log,
		sub:     hub.Subscribe(1024),
		clients: make(map[*wsClient]bool),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go m.run()
	return m
}

func (m *WSManager) run() {
	defer close(m.stopped)
	for {
		select {
		case <-m.done:
			return
		case e := <-m.sub:
			m.Publish(e)
		}
	}
}

// Publish sends e to every client subscribed to its type. Slow clients
// drop messages rather than block the fan-out.
func (m *WSManager) Publish(e events.Event) {
	msg, err := json.Marshal(newWSMessage(e, m.names))
	if err != nil {
		m.log.Warn("failed to encode event", "type", e.Type, "error", err)
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for client := range m.clients {
		if !client.wants(e.Type) {
			continue
		}
		select {
		case client.send <- msg:
		default:
			// Client buffer full, skip
		}
	}
}

// ClientCount returns the number of connected clients.
func (m *WSManager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// Close stops the fan-out and disconnects every client.
func (m *WSManager) Close() {
	m.closeOnce.Do(func() {
		m.hub.Unsubscribe(m.sub)
		close(m.done)
		<-m.stopped

		m.mu.Lock()
		for c := range m.clients {
			delete(m.clients, c)
			close(c.send)
		}
		m.mu.Unlock()
	})
}

func (m *WSManager) register(c *wsClient) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	select {
	case <-m.done:
		return false
	default:
	}
	m.clients[c] = true
	return true
}

func (m *WSManager) unregister(c *wsClient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clients[c]; ok {
		delete(m.clients, c)
		close(c.send)
	}
}

// readPump handles incoming messages from a client (subscriptions)
func (c *wsClient) readPump(m *WSManager) {
	defer func() {
		m.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var msg struct {
			Action string   `json:"action"`
			Topics []string `json:"topics"`
		}
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		switch msg.Action {
		case "subscribe":
			c.subscribe(expandTopics(msg.Topics))
		case "unsubscribe":
			c.unsubscribe(expandTopics(msg.Topics))
		}
	}
}

// writePump sends messages to the client
func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleEvents streams mirror events.
//
//	GET /api/events?topics=route,dump.done
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.wsManager == nil {
		WriteError(w, http.StatusServiceUnavailable, "event stream not enabled")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("failed to upgrade websocket", "remote", r.RemoteAddr, "error", err)
		return
	}

	client := &wsClient{
		conn:   conn,
		topics: make(map[events.EventType]bool),
		send:   make(chan []byte, 256),
	}
	if q := r.URL.Query().Get("topics"); q != "" {
		client.subscribe(expandTopics(strings.Split(q, ",")))
	}

	if !s.wsManager.register(client) {
		conn.Close()
		return
	}
	s.logger.Debug("websocket client connected", "remote", r.RemoteAddr)

	go client.writePump()
	go client.readPump(s.wsManager)
}
