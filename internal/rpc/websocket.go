// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later

package rpc

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sonarhost/sonar/internal/events"
	"github.com/sonarhost/sonar/internal/logging"
)

// Message types the notify channel carries (spec §4.12 "clients may
// subscribe to catalog change notifications over a push channel").
const (
	messageTypeEvent = "event"
	messageTypePing  = "ping"
	messageTypePong  = "pong"
)

// Message is one frame exchanged over the notify websocket.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub fans out catalog change events to every connected notify client,
// trimmed from the teacher's websocket hub down to Sonar's single message
// type (no playback/sync/stats channels to multiplex).
type Hub struct {
	clients    map[*wsClient]bool
	broadcast  chan Message
	Register   chan *wsClient
	Unregister chan *wsClient
	mu         sync.RWMutex
}

func newHub() *Hub {
	return &Hub{
		broadcast:  make(chan Message, 256),
		Register:   make(chan *wsClient),
		Unregister: make(chan *wsClient),
		clients:    make(map[*wsClient]bool),
	}
}

// Serve runs the hub until ctx is canceled, suitable for suture
// supervision (mirrors the teacher's RunWithContext).
func (h *Hub) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			return ctx.Err()
		case client := <-h.Register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
		case client := <-h.Unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

// broadcastToClients delivers message to every client in a deterministic,
// id-sorted order, dropping (and unregistering) any client whose send
// buffer is full.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*wsClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })

	for _, client := range clients {
		select {
		case client.send <- message:
		default:
			close(client.send)
			delete(h.clients, client)
		}
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

// NotifyEvent publishes a catalog change event to every connected client;
// wired as an internal/events.Router handler in cmd/sonar-server.
func (h *Hub) NotifyEvent(evt events.Event) {
	select {
	case h.broadcast <- Message{Type: messageTypeEvent, Data: evt}:
	default:
		logging.Warn().Msg("notify broadcast channel full, dropping event")
	}
}

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = (wsPongWait * 9) / 10
	wsMaxMessageSize = 64 * 1024
)

var wsClientIDCounter atomic.Uint64

// wsClient is a middleman between one notify websocket connection and the
// hub.
type wsClient struct {
	id   uint64
	hub  *Hub
	conn *websocket.Conn
	send chan Message
}

func newWSClient(hub *Hub, conn *websocket.Conn) *wsClient {
	return &wsClient{id: wsClientIDCounter.Add(1), hub: hub, conn: conn, send: make(chan Message, 16)}
}

func (c *wsClient) start() {
	go c.writePump()
	go c.readPump()
}

func (c *wsClient) readPump() {
	defer func() {
		c.hub.Unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(wsMaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			break
		}
		if msg.Type == messageTypePing {
			select {
			case c.send <- Message{Type: messageTypePong}:
			default:
			}
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// upgrader accepts any origin: Routes already serves this surface behind a
// permissive CORS policy (spec has no notion of browser-only clients), so
// there is no separate allowlist to check here.
var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:   1024,
	WriteBufferSize:  1024,
	HandshakeTimeout: 10 * time.Second,
	CheckOrigin:      func(*http.Request) bool { return true },
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.CtxErr(r.Context(), err).Msg("websocket upgrade")
		return
	}
	client := newWSClient(s.hub, conn)
	s.hub.Register <- client
	client.start()
}
