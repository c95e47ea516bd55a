package websocket

import (
	"context"
	"sync"

	"github.com/fasthttp/websocket"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/backsoul/devquiz/pkg/engine"
)

// Conn conexión a la que el hub escribe; *websocket.Conn la implementa
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type Message struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId"`
	Data      interface{} `json:"data"`
}

const (
	MessageSnapshot = "snapshot"
	MessageClosed   = "sessionClosed"
)

type subscription struct {
	sessionID string
	conn      Conn
	initial   []byte
}

type outbound struct {
	sessionID string
	data      []byte
}

// Hub reparte las instantáneas de cada sesión a las conexiones suscritas a
// esa sesión. Todas las escrituras ocurren en la goroutine de Run.
type Hub struct {
	clients    map[string]map[Conn]bool
	broadcast  chan outbound
	register   chan subscription
	unregister chan subscription
	done       chan struct{}
	mutex      sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[Conn]bool),
		broadcast:  make(chan outbound, 256),
		register:   make(chan subscription),
		unregister: make(chan subscription),
		done:       make(chan struct{}),
	}
}

// Run procesa registros y envíos hasta que ctx termina
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()

			return

		case sub := <-h.register:
			h.mutex.Lock()
			if h.clients[sub.sessionID] == nil {
				h.clients[sub.sessionID] = make(map[Conn]bool)
			}
			h.clients[sub.sessionID][sub.conn] = true
			total := len(h.clients[sub.sessionID])
			h.mutex.Unlock()
			log.Debug().Str("session", sub.sessionID).Int("clients", total).Msg("🔌 Cliente WebSocket conectado")
			if sub.initial != nil {
				if err := sub.conn.WriteMessage(websocket.TextMessage, sub.initial); err != nil {
					h.drop(sub.sessionID, sub.conn, err)
				}
			}

		case sub := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[sub.sessionID][sub.conn]; ok {
				delete(h.clients[sub.sessionID], sub.conn)
				if len(h.clients[sub.sessionID]) == 0 {
					delete(h.clients, sub.sessionID)
				}
				_ = sub.conn.Close()
			}
			h.mutex.Unlock()
			log.Debug().Str("session", sub.sessionID).Msg("Cliente WebSocket desconectado")

		case msg := <-h.broadcast:
			h.mutex.RLock()
			conns := make([]Conn, 0, len(h.clients[msg.sessionID]))
			for conn := range h.clients[msg.sessionID] {
				conns = append(conns, conn)
			}
			h.mutex.RUnlock()
			for _, conn := range conns {
				if err := conn.WriteMessage(websocket.TextMessage, msg.data); err != nil {
					h.drop(msg.sessionID, conn, err)
				}
			}
		}
	}
}

func (h *Hub) drop(sessionID string, conn Conn, err error) {
	log.Warn().Err(err).Str("session", sessionID).Msg("Error enviando mensaje WebSocket")
	h.mutex.Lock()
	delete(h.clients[sessionID], conn)
	if len(h.clients[sessionID]) == 0 {
		delete(h.clients, sessionID)
	}
	h.mutex.Unlock()
	_ = conn.Close()
}

func (h *Hub) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for sessionID, conns := range h.clients {
		for conn := range conns {
			_ = conn.Close()
		}
		delete(h.clients, sessionID)
	}
}

// Register suscribe conn a la sesión; initial se envía primero si no es nil
func (h *Hub) Register(sessionID string, conn Conn, initial []byte) {
	select {
	case h.register <- subscription{sessionID: sessionID, conn: conn, initial: initial}:
	case <-h.done:
		_ = conn.Close()
	}
}

func (h *Hub) Unregister(sessionID string, conn Conn) {
	select {
	case h.unregister <- subscription{sessionID: sessionID, conn: conn}:
	case <-h.done:
	}
}

// ClientCount conexiones suscritas a la sesión
func (h *Hub) ClientCount(sessionID string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return len(h.clients[sessionID])
}

// BroadcastSnapshot envía el estado de la sesión a sus suscriptores
func (h *Hub) BroadcastSnapshot(sessionID string, snap engine.Snapshot) {
	msgType := MessageSnapshot
	if snap.Closed {
		msgType = MessageClosed
	}
	h.BroadcastMessage(sessionID, msgType, snap)
}

func (h *Hub) BroadcastMessage(sessionID, msgType string, data interface{}) {
	payload, err := EncodeMessage(sessionID, msgType, data)
	if err != nil {
		log.Error().Err(err).Str("type", msgType).Msg("Error serializando mensaje")

		return
	}

	select {
	case h.broadcast <- outbound{sessionID: sessionID, data: payload}:
	case <-h.done:
	}
}

// EncodeMessage serializa un mensaje del hub
func EncodeMessage(sessionID, msgType string, data interface{}) ([]byte, error) {
	return json.Marshal(Message{Type: msgType, SessionID: sessionID, Data: data})
}
