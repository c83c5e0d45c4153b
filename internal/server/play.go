package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
)

// sessionFor resolves the session a connection is seated in.
func (s *Server) sessionFor(ctx context.Context, c *Conn) (*GameSession, int, bool) {
	gameType, gameID, slot := c.Session()
	if slot < 0 {
		s.sendError(ctx, c, "NOT_IN_GAME: Join a game first")
		return nil, -1, false
	}
	sess := s.registry.Get(gameType, gameID)
	if sess == nil {
		s.sendError(ctx, c, "GAME_NOT_FOUND: That game no longer exists")
		return nil, -1, false
	}
	return sess, slot, true
}

// handleGameEvent runs one player action through the engine. The session
// lock covers mutation, persistence, and delta fan-out, so clients observe
// updates in exactly the order actions were applied. A failed save rolls the
// engine back to its pre-action state; nothing is acknowledged that is not
// durable.
func (s *Server) handleGameEvent(ctx context.Context, c *Conn, payload json.RawMessage) {
	sess, slot, ok := s.sessionFor(ctx, c)
	if !ok {
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	pre, err := sess.Engine.Serialize()
	if err != nil {
		s.sendError(ctx, c, fmt.Sprintf("INTERNAL_ERROR: %v", err))
		return
	}

	res := sess.Engine.HandleAction(slot, payload)
	if !res.Success {
		s.sendError(ctx, c, res.Message)
		return
	}

	rec, err := sess.record()
	if err == nil {
		err = s.store.SaveGame(rec)
	}
	if err != nil {
		log.Printf("Save failed for %s/%s, rolling back: %v", sess.GameType, sess.ID, err)
		if rerr := sess.Engine.Restore(pre); rerr != nil {
			log.Printf("Rollback failed for %s/%s: %v", sess.GameType, sess.ID, rerr)
		}
		s.sendError(ctx, c, "SAVE_FAILED: Your move was not saved, try again")
		return
	}

	s.fanOut(sess, res.Deltas)
}

// handleStatusUpdate sends the requester a full personalized snapshot.
func (s *Server) handleStatusUpdate(ctx context.Context, c *Conn) {
	sess, slot, ok := s.sessionFor(ctx, c)
	if !ok {
		return
	}

	sess.mu.Lock()
	snapshot := sess.Engine.Snapshot(slot)
	s.emit(ctx, c, "game_data", snapshot)
	sess.mu.Unlock()
}

func (s *Server) handleLeaveGame(ctx context.Context, c *Conn) {
	sess, slot, ok := s.sessionFor(ctx, c)
	if !ok {
		return
	}

	sess.mu.Lock()
	sess.detach(slot)
	s.broadcast(sess, "client_count", ClientCount{Count: sess.connected()})
	sess.mu.Unlock()

	c.ClearSession()
	s.emit(ctx, c, "redirect", RedirectMessage{URL: "/"})
}

// requireOwner checks that the connection is seated in a session it owns.
func (s *Server) requireOwner(ctx context.Context, c *Conn) (*GameSession, bool) {
	sess, _, ok := s.sessionFor(ctx, c)
	if !ok {
		return nil, false
	}
	if c.Identity() != sess.Owner {
		s.sendError(ctx, c, "NOT_OWNER: Only the owner can do that")
		return nil, false
	}
	return sess, true
}

func (s *Server) handleKick(ctx context.Context, c *Conn, payload json.RawMessage) {
	sess, ok := s.requireOwner(ctx, c)
	if !ok {
		return
	}

	var req KickRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(ctx, c, "INVALID_PAYLOAD: Could not parse kick request")
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if req.Slot < 0 || req.Slot >= len(sess.conns) {
		s.sendError(ctx, c, "INVALID_SLOT: No such slot")
		return
	}
	target := sess.conns[req.Slot]
	if target == nil {
		s.sendError(ctx, c, "EMPTY_SLOT: Nobody is in that slot")
		return
	}
	if target == c {
		s.sendError(ctx, c, "INVALID_TARGET: You cannot kick yourself")
		return
	}

	s.evictToLobby(target, "Kicked by the owner")
	sess.detach(req.Slot)
	s.broadcast(sess, "client_count", ClientCount{Count: sess.connected()})
}

func (s *Server) handleKickAll(ctx context.Context, c *Conn) {
	sess, ok := s.requireOwner(ctx, c)
	if !ok {
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	for slot, target := range sess.conns {
		if target == nil || target == c {
			continue
		}
		s.evictToLobby(target, "Kicked by the owner")
		sess.detach(slot)
	}
	s.broadcast(sess, "client_count", ClientCount{Count: sess.connected()})
}

// handleLock toggles whether new players may join. The flag is part of the
// persisted record so it survives restarts.
func (s *Server) handleLock(ctx context.Context, c *Conn, payload json.RawMessage) {
	sess, ok := s.requireOwner(ctx, c)
	if !ok {
		return
	}

	var req LockRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(ctx, c, "INVALID_PAYLOAD: Could not parse lock request")
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.Locked = req.Locked
	rec, err := sess.record()
	if err == nil {
		err = s.store.SaveGame(rec)
	}
	if err != nil {
		log.Printf("Failed to persist lock state for %s/%s: %v", sess.GameType, sess.ID, err)
	}

	state := "unlocked"
	if req.Locked {
		state = "locked"
	}
	s.emit(ctx, c, "popup", Popup{Title: "Lock", Message: fmt.Sprintf("Game is now %s", state)})
}
