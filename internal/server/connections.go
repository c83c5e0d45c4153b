package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/coder/websocket"
)

// HandlerFunc handles one named inbound event for a connection.
type HandlerFunc func(ctx context.Context, payload json.RawMessage)

// Conn binds one websocket to an authenticated identity and, once a token is
// redeemed, to a (gameType, gameID, slot) triple. It dispatches named events
// to locally registered handlers.
type Conn struct {
	ID string

	sock *websocket.Conn

	mu       sync.Mutex
	identity string
	gameType string
	gameID   string
	slot     int
	handlers map[string]HandlerFunc
}

func NewConn(id string, sock *websocket.Conn) *Conn {
	return &Conn{
		ID:       id,
		sock:     sock,
		slot:     -1,
		handlers: make(map[string]HandlerFunc),
	}
}

// On registers the handler for a named event. One handler per name; a later
// registration replaces the earlier one. There is no multi-handler fan-out.
func (c *Conn) On(name string, handler HandlerFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[name] = handler
}

// Invoke dispatches to the locally registered handler without touching the
// transport; false when no handler is registered for the name. Used both by
// the read loop and for internal refresh triggers.
func (c *Conn) Invoke(ctx context.Context, name string, payload json.RawMessage) bool {
	c.mu.Lock()
	handler := c.handlers[name]
	c.mu.Unlock()

	if handler == nil {
		return false
	}
	handler(ctx, payload)
	return true
}

// Emit sends a named message to this connection's peer. A nil socket (a
// vacated slot) is a silent no-op.
func (c *Conn) Emit(ctx context.Context, name string, payload any) error {
	if c.sock == nil {
		return nil
	}
	data, err := json.Marshal(ServerMessage{Type: name, Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	return c.sock.Write(ctx, websocket.MessageText, data)
}

// Close tears down the transport.
func (c *Conn) Close(reason string) {
	if c.sock != nil {
		c.sock.Close(websocket.StatusNormalClosure, reason)
	}
}

// Identity returns the bound username, empty until login or token
// redemption.
func (c *Conn) Identity() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

func (c *Conn) SetIdentity(username string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = username
}

// BindSession attaches this connection to a game slot.
func (c *Conn) BindSession(gameType, gameID string, slot int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gameType = gameType
	c.gameID = gameID
	c.slot = slot
}

// Session returns the bound (gameType, gameID, slot); slot -1 when unbound.
func (c *Conn) Session() (gameType, gameID string, slot int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gameType, c.gameID, c.slot
}

func (c *Conn) ClearSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gameType = ""
	c.gameID = ""
	c.slot = -1
}

// ConnectionManager is the process-wide registry of live connections,
// inserted on accept and removed on disconnect.
type ConnectionManager struct {
	conns map[string]*Conn
	mu    sync.RWMutex
}

func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		conns: make(map[string]*Conn),
	}
}

func (cm *ConnectionManager) Add(c *Conn) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.conns[c.ID] = c
}

func (cm *ConnectionManager) Remove(id string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	delete(cm.conns, id)
}

func (cm *ConnectionManager) Get(id string) *Conn {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.conns[id]
}

func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.conns)
}

func (cm *ConnectionManager) All() []*Conn {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	out := make([]*Conn, 0, len(cm.conns))
	for _, c := range cm.conns {
		out = append(out, c)
	}
	return out
}
