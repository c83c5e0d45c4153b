package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"arcade-server/internal/game"
)

func (s *Server) RegisterRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.rootHandler)
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/websocket", s.websocketHandler)

	return s.corsMiddleware(mux)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	resp, err := json.Marshal(map[string]string{"service": "arcade-server"})
	if err != nil {
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(resp); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	resp, err := json.Marshal(s.db.Health())
	if err != nil {
		http.Error(w, "Failed to marshal health check response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(resp); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	socket, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		http.Error(w, "Failed to open websocket", http.StatusInternalServerError)
		return
	}
	defer socket.Close(websocket.StatusGoingAway, "Server closing")

	ctx := r.Context()

	c := NewConn(uuid.New().String(), socket)
	log.Printf("New connection: %s", c.ID)
	s.connections.Add(c)
	s.registerHandlers(c)

	defer func() {
		s.connections.Remove(c.ID)
		s.limiter.RemoveConnection(c.ID)
		s.health.RemoveConnection(c.ID)
		log.Printf("Connection closed: %s", c.ID)

		// Disconnection vacates the slot; authoritative state stays put
		// so the player can resume with a fresh token.
		gameType, gameID, slot := c.Session()
		if slot < 0 {
			return
		}
		sess := s.registry.Get(gameType, gameID)
		if sess == nil {
			return
		}
		sess.mu.Lock()
		sess.detach(slot)
		s.broadcast(sess, "client_count", ClientCount{Count: sess.connected()})
		sess.mu.Unlock()
	}()

	for {
		msgType, data, err := socket.Read(ctx)
		if err != nil {
			log.Printf("Connection %s read error: %v", c.ID, err)
			return
		}

		if msgType != websocket.MessageText {
			log.Printf("Non-text input from %s", c.ID)
			continue
		}

		if !s.limiter.Allow(c.ID) {
			s.sendError(ctx, c, "RATE_LIMITED: Slow down")
			continue
		}
		s.health.UpdateActivity(c.ID)

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("Invalid JSON from %s: %v", c.ID, err)
			s.sendError(ctx, c, "INVALID_JSON: Could not parse message")
			continue
		}

		s.dispatch(ctx, c, msg)
	}
}

// dispatch routes one inbound message into the connection's handler table.
// Panics are contained here: the connection survives and the client gets a
// generic error.
func (s *Server) dispatch(ctx context.Context, c *Conn, msg ClientMessage) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Panic handling %q from %s: %v", msg.Type, c.ID, r)
			s.sendError(ctx, c, "INTERNAL_ERROR: Something went wrong handling that")
		}
	}()

	if !c.Invoke(ctx, msg.Type, msg.Payload) {
		log.Printf("Unknown message type %q from %s", msg.Type, c.ID)
		s.sendError(ctx, c, fmt.Sprintf("INVALID_MESSAGE_TYPE: Unknown message type %q", msg.Type))
	}
}

// registerHandlers binds every inbound event for a fresh connection.
func (s *Server) registerHandlers(c *Conn) {
	c.On("ping", func(ctx context.Context, _ json.RawMessage) {
		s.emit(ctx, c, "pong", struct{}{})
	})

	c.On("login", func(ctx context.Context, payload json.RawMessage) {
		s.handleLogin(ctx, c, payload)
	})
	c.On("redeem_token", func(ctx context.Context, payload json.RawMessage) {
		s.handleRedeemToken(ctx, c, payload)
	})
	c.On("create_game", func(ctx context.Context, payload json.RawMessage) {
		s.handleCreateGame(ctx, c, payload)
	})
	c.On("join_game", func(ctx context.Context, payload json.RawMessage) {
		s.handleJoinGame(ctx, c, payload)
	})
	c.On("join_my_game", func(ctx context.Context, payload json.RawMessage) {
		s.handleJoinMyGame(ctx, c, payload)
	})
	c.On("my_games", func(ctx context.Context, _ json.RawMessage) {
		s.handleMyGames(ctx, c)
	})
	c.On("delete_game", func(ctx context.Context, payload json.RawMessage) {
		s.handleDeleteGame(ctx, c, payload)
	})

	c.On("handle_event", func(ctx context.Context, payload json.RawMessage) {
		s.handleGameEvent(ctx, c, payload)
	})
	c.On("status_update", func(ctx context.Context, _ json.RawMessage) {
		s.handleStatusUpdate(ctx, c)
	})
	c.On("leave_game", func(ctx context.Context, _ json.RawMessage) {
		s.handleLeaveGame(ctx, c)
	})
	c.On("kick", func(ctx context.Context, payload json.RawMessage) {
		s.handleKick(ctx, c, payload)
	})
	c.On("kick_all", func(ctx context.Context, _ json.RawMessage) {
		s.handleKickAll(ctx, c)
	})
	c.On("lock", func(ctx context.Context, payload json.RawMessage) {
		s.handleLock(ctx, c, payload)
	})
}

func (s *Server) emit(ctx context.Context, c *Conn, name string, payload any) {
	if err := c.Emit(ctx, name, payload); err != nil {
		log.Printf("Failed to send %s to %s: %v", name, c.ID, err)
	}
}

func (s *Server) sendError(ctx context.Context, c *Conn, message string) {
	s.emit(ctx, c, "game_error", ErrorMessage{Message: message})
}

// broadcast sends one event to every attached slot. Caller holds the session
// lock, which keeps broadcast order equal to mutation order.
func (s *Server) broadcast(sess *GameSession, event string, payload any) {
	for _, c := range sess.conns {
		if c == nil {
			continue
		}
		if err := c.Emit(context.Background(), event, payload); err != nil {
			log.Printf("Failed to broadcast %s to %s: %v", event, c.ID, err)
		}
	}
}

// fanOut delivers engine deltas in order, honoring each delta's audience.
// Caller holds the session lock.
func (s *Server) fanOut(sess *GameSession, deltas []game.Delta) {
	for _, d := range deltas {
		if d.Target != game.Broadcast {
			if c := sess.conns[d.Target]; c != nil {
				if err := c.Emit(context.Background(), d.Event, d.Payload); err != nil {
					log.Printf("Failed to send %s to slot %d: %v", d.Event, d.Target, err)
				}
			}
			continue
		}
		for i, c := range sess.conns {
			if c == nil || i == d.Exclude {
				continue
			}
			if err := c.Emit(context.Background(), d.Event, d.Payload); err != nil {
				log.Printf("Failed to broadcast %s to slot %d: %v", d.Event, i, err)
			}
		}
	}
}
