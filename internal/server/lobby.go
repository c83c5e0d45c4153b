package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"unicode"

	"arcade-server/internal/game"
)

const maxUsernameLength = 24

// validateUsername enforces the lobby's naming rules: non-empty, bounded
// length, printable characters only.
func validateUsername(username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("INVALID_USERNAME: Username cannot be empty")
	}
	if len(username) > maxUsernameLength {
		return fmt.Errorf("INVALID_USERNAME: Username cannot exceed %d characters", maxUsernameLength)
	}
	for _, r := range username {
		if !unicode.IsPrint(r) {
			return fmt.Errorf("INVALID_USERNAME: Username contains invalid characters")
		}
	}
	return nil
}

// requireIdentity returns the connection's username, or sends an error and
// reports failure when the client has not logged in.
func (s *Server) requireIdentity(ctx context.Context, c *Conn) (string, bool) {
	username := c.Identity()
	if username == "" {
		s.sendError(ctx, c, "NOT_LOGGED_IN: Log in first")
		return "", false
	}
	return username, true
}

func (s *Server) handleLogin(ctx context.Context, c *Conn, payload json.RawMessage) {
	var req LoginRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(ctx, c, "INVALID_PAYLOAD: Could not parse login request")
		return
	}

	username := strings.TrimSpace(req.Username)
	if err := validateUsername(username); err != nil {
		s.sendError(ctx, c, err.Error())
		return
	}

	c.SetIdentity(username)
	log.Printf("Connection %s logged in as %q", c.ID, username)
	s.emit(ctx, c, "login", LoginResponse{OK: true, Username: username})
}

func (s *Server) handleCreateGame(ctx context.Context, c *Conn, payload json.RawMessage) {
	username, ok := s.requireIdentity(ctx, c)
	if !ok {
		return
	}

	var req CreateGameRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(ctx, c, "INVALID_PAYLOAD: Could not parse create request")
		return
	}

	sess, err := s.registry.Create(req.GameType, username, req.Name, req.Players)
	if err != nil {
		s.sendError(ctx, c, err.Error())
		return
	}

	log.Printf("%q created %s game %s", username, sess.GameType, sess.ID)
	s.emit(ctx, c, "create_game", CreateGameResponse{ID: sess.ID})
}

func (s *Server) handleMyGames(ctx context.Context, c *Conn) {
	username, ok := s.requireIdentity(ctx, c)
	if !ok {
		return
	}

	sessions := s.registry.ListByOwner(username)
	summaries := make([]GameSummary, 0, len(sessions))
	for _, sess := range sessions {
		sess.mu.Lock()
		summaries = append(summaries, GameSummary{
			ID:        sess.ID,
			Name:      sess.Name,
			GameType:  sess.GameType,
			Capacity:  sess.Engine.Capacity(),
			Connected: sess.connected(),
			Locked:    sess.Locked,
			Finished:  sess.Engine.Winner() != game.Broadcast,
		})
		sess.mu.Unlock()
	}

	s.emit(ctx, c, "my_games", MyGamesResponse{Games: summaries})
}

func (s *Server) handleJoinGame(ctx context.Context, c *Conn, payload json.RawMessage) {
	username, ok := s.requireIdentity(ctx, c)
	if !ok {
		return
	}

	var req JoinGameRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(ctx, c, "INVALID_PAYLOAD: Could not parse join request")
		return
	}

	id := NormalizeGameID(req.ID)
	if err := ValidateGameID(id); err != nil {
		s.emit(ctx, c, "join_game", JoinGameResponse{Error: true, Status: JoinStatusBadID})
		return
	}

	sess := s.registry.FindByID(id)
	if sess == nil {
		s.emit(ctx, c, "join_game", JoinGameResponse{Error: true, Status: JoinStatusBadID})
		return
	}
	if sess.Owner != strings.TrimSpace(req.OwnerName) {
		s.emit(ctx, c, "join_game", JoinGameResponse{Error: true, Status: JoinStatusOwnerMismatch})
		return
	}

	sess.mu.Lock()
	locked := sess.Locked
	slot := sess.freeSlot()
	sess.mu.Unlock()

	if locked || slot < 0 {
		s.emit(ctx, c, "join_game", JoinGameResponse{Error: true, Status: JoinStatusFull})
		return
	}

	// The slot is not reserved here; if it races away, token redemption
	// fails and the client retries through the lobby.
	token := s.tokens.Create(TokenPayload{
		GameType: sess.GameType,
		GameID:   sess.ID,
		Slot:     slot,
		Username: username,
		Redirect: playURL(sess.GameType),
	})
	s.emit(ctx, c, "join_game", JoinGameResponse{
		URL: fmt.Sprintf("%s?token=%s", playURL(sess.GameType), token),
	})
}

func (s *Server) handleJoinMyGame(ctx context.Context, c *Conn, payload json.RawMessage) {
	username, ok := s.requireIdentity(ctx, c)
	if !ok {
		return
	}

	var req JoinMyGameRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(ctx, c, "INVALID_PAYLOAD: Could not parse join request")
		return
	}

	sess := s.registry.FindByID(NormalizeGameID(req.ID))
	if sess == nil {
		s.sendError(ctx, c, "GAME_NOT_FOUND: No such game")
		return
	}
	if sess.Owner != username {
		s.sendError(ctx, c, "NOT_OWNER: Only the owner can rejoin this way")
		return
	}

	token, err := s.issueRejoinToken(sess, username)
	if err != nil {
		s.sendError(ctx, c, err.Error())
		return
	}
	s.emit(ctx, c, "redirect", RedirectMessage{
		URL: fmt.Sprintf("%s?token=%s", playURL(sess.GameType), token),
	})
}

// issueRejoinToken hands the owner a token for an open slot. The owner has
// no reserved seat; foreign joiners may already hold the low slots.
func (s *Server) issueRejoinToken(sess *GameSession, username string) (string, error) {
	sess.mu.Lock()
	slot := sess.freeSlot()
	sess.mu.Unlock()
	if slot < 0 {
		return "", errors.New("GAME_FULL: No open slot to rejoin")
	}

	return s.tokens.Create(TokenPayload{
		GameType: sess.GameType,
		GameID:   sess.ID,
		Slot:     slot,
		Username: username,
		Redirect: playURL(sess.GameType),
	}), nil
}

func (s *Server) handleDeleteGame(ctx context.Context, c *Conn, payload json.RawMessage) {
	username, ok := s.requireIdentity(ctx, c)
	if !ok {
		return
	}

	var req DeleteGameRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(ctx, c, "INVALID_PAYLOAD: Could not parse delete request")
		return
	}

	sess := s.registry.FindByID(NormalizeGameID(req.ID))
	if sess == nil {
		s.sendError(ctx, c, "GAME_NOT_FOUND: No such game")
		return
	}
	if sess.Owner != username {
		s.sendError(ctx, c, "NOT_OWNER: Only the owner can delete a game")
		return
	}

	// Evict every live player before the session disappears.
	sess.mu.Lock()
	for slot, pc := range sess.conns {
		if pc == nil {
			continue
		}
		s.evictToLobby(pc, "Game deleted by owner")
		sess.detach(slot)
	}
	sess.mu.Unlock()

	if _, err := s.registry.Delete(sess.GameType, sess.ID); err != nil {
		s.sendError(ctx, c, fmt.Sprintf("DELETE_FAILED: %v", err))
		return
	}

	log.Printf("%q deleted %s game %s", username, sess.GameType, sess.ID)
	s.emit(ctx, c, "popup", Popup{Title: "Deleted", Message: fmt.Sprintf("Game %s was deleted", sess.ID)})
}

func (s *Server) handleRedeemToken(ctx context.Context, c *Conn, payload json.RawMessage) {
	var req RedeemTokenRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(ctx, c, "INVALID_PAYLOAD: Could not parse token request")
		return
	}

	// Redemption failure is an in-band outcome, not an error; the client
	// falls back to the lobby.
	data, ok := s.tokens.Redeem(req.Token)
	if !ok {
		s.emit(ctx, c, "redeem_token", RedeemTokenResponse{OK: false})
		return
	}

	// Lobby handoff tokens carry no game. They only re-establish identity,
	// so no session attach happens.
	if data.GameID == "" {
		c.SetIdentity(data.Username)
		s.emit(ctx, c, "redeem_token", RedeemTokenResponse{OK: true, Data: &data})
		return
	}

	sess := s.registry.Get(data.GameType, data.GameID)
	if sess == nil {
		s.emit(ctx, c, "redeem_token", RedeemTokenResponse{OK: false})
		return
	}

	sess.mu.Lock()
	if err := sess.attach(data.Slot, c); err != nil {
		sess.mu.Unlock()
		s.emit(ctx, c, "redeem_token", RedeemTokenResponse{OK: false})
		return
	}
	c.SetIdentity(data.Username)
	c.BindSession(data.GameType, data.GameID, data.Slot)
	count := sess.connected()
	sess.mu.Unlock()

	log.Printf("%q redeemed a token into %s/%s slot %d", data.Username, data.GameType, data.GameID, data.Slot)
	s.emit(ctx, c, "redeem_token", RedeemTokenResponse{OK: true, Data: &data})

	// Seat the player the same way a status_update request would.
	c.Invoke(ctx, "status_update", nil)

	sess.mu.Lock()
	s.broadcast(sess, "client_count", ClientCount{Count: count})
	sess.mu.Unlock()
}

// evictToLobby hands a connection a fresh single-use token pointing back at
// the lobby and closes its socket. Caller holds the session lock.
func (s *Server) evictToLobby(c *Conn, reason string) {
	token := s.tokens.Create(TokenPayload{
		Username: c.Identity(),
		Redirect: "/",
	})
	s.emit(context.Background(), c, "popup", Popup{Title: "Removed", Message: reason})
	s.emit(context.Background(), c, "redirect", RedirectMessage{URL: fmt.Sprintf("/?token=%s", token)})
	c.ClearSession()
	c.Close(reason)
}

func playURL(gameType string) string {
	return "/play/" + gameType
}
