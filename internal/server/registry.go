package server

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"arcade-server/internal/game"
	"arcade-server/internal/mad"
	"arcade-server/internal/uno"
)

// gameTypes is the closed set of playable game types.
var gameTypes = []string{uno.GameType, mad.GameType}

// newEngine constructs a fresh engine for a game type.
func newEngine(gameType string, players int) (game.Engine, error) {
	switch gameType {
	case uno.GameType:
		return uno.NewGame(players)
	case mad.GameType:
		return mad.NewGame(), nil
	default:
		return nil, fmt.Errorf("INVALID_TYPE: Unknown game type %q", gameType)
	}
}

// restoreEngine rebuilds an engine from its serialized state.
func restoreEngine(gameType string, state []byte) (game.Engine, error) {
	switch gameType {
	case uno.GameType:
		g := &uno.Game{}
		if err := g.Restore(state); err != nil {
			return nil, fmt.Errorf("restore uno state: %w", err)
		}
		return g, nil
	case mad.GameType:
		g := &mad.Game{}
		if err := g.Restore(state); err != nil {
			return nil, fmt.Errorf("restore mad state: %w", err)
		}
		return g, nil
	default:
		return nil, fmt.Errorf("INVALID_TYPE: Unknown game type %q", gameType)
	}
}

// GameSession is one live multiplayer game: lobby fields, the authoritative
// engine, and the per-slot connection references. The mutex serializes every
// mutation and the delta fan-out that follows it, so broadcast order always
// matches mutation order.
type GameSession struct {
	mu sync.Mutex

	ID       string
	GameType string
	Name     string
	Owner    string
	Locked   bool
	Engine   game.Engine

	conns []*Conn
}

func newGameSession(id, gameType, name, owner string, engine game.Engine) *GameSession {
	return &GameSession{
		ID:       id,
		GameType: gameType,
		Name:     name,
		Owner:    owner,
		Engine:   engine,
		conns:    make([]*Conn, engine.Capacity()),
	}
}

// record builds the persistence envelope. Caller holds the session lock.
func (gs *GameSession) record() (*SessionRecord, error) {
	state, err := gs.Engine.Serialize()
	if err != nil {
		return nil, fmt.Errorf("serialize session %s: %w", gs.ID, err)
	}
	return &SessionRecord{
		ID:       gs.ID,
		GameType: gs.GameType,
		Owner:    gs.Owner,
		Name:     gs.Name,
		Locked:   gs.Locked,
		Finished: gs.Engine.Winner() != game.Broadcast,
		State:    state,
	}, nil
}

// attach occupies a slot with a live connection. Caller holds the session
// lock. Fails when the slot already has a live connection.
func (gs *GameSession) attach(slot int, c *Conn) error {
	if slot < 0 || slot >= len(gs.conns) {
		return errors.New("INVALID_SLOT: Slot index out of range")
	}
	if gs.conns[slot] != nil {
		return errors.New("SLOT_TAKEN: That seat is already occupied")
	}
	gs.conns[slot] = c
	return nil
}

// detach clears a slot's connection reference, leaving authoritative state
// untouched so the slot can be re-occupied later. Caller holds the session
// lock.
func (gs *GameSession) detach(slot int) {
	if slot >= 0 && slot < len(gs.conns) {
		gs.conns[slot] = nil
	}
}

// connected counts occupied slots. Caller holds the session lock.
func (gs *GameSession) connected() int {
	n := 0
	for _, c := range gs.conns {
		if c != nil {
			n++
		}
	}
	return n
}

// freeSlot returns the lowest vacant slot index, or -1. Caller holds the
// session lock.
func (gs *GameSession) freeSlot() int {
	for i, c := range gs.conns {
		if c == nil {
			return i
		}
	}
	return -1
}

// SessionRegistry is the process-wide map of live game sessions, backed by
// the persistence manager. It is constructed once at the composition root
// and injected wherever needed; it performs no socket I/O.
type SessionRegistry struct {
	sessions map[string]*GameSession // key: gameType/id
	usedIDs  map[string]bool
	store    *PersistenceManager
	mu       sync.RWMutex
}

func NewSessionRegistry(store *PersistenceManager) *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*GameSession),
		usedIDs:  make(map[string]bool),
		store:    store,
	}
}

func sessionKey(gameType, id string) string {
	return gameType + "/" + id
}

// LoadAll restores every persisted session into memory. Idempotent: sessions
// already loaded are skipped. This is the recovery path after a restart.
func (r *SessionRegistry) LoadAll() error {
	for _, gameType := range gameTypes {
		records, err := r.store.ListGames(gameType)
		if err != nil {
			return err
		}
		for _, rec := range records {
			r.mu.RLock()
			_, loaded := r.sessions[sessionKey(rec.GameType, rec.ID)]
			r.mu.RUnlock()
			if loaded {
				continue
			}
			if _, err := r.adopt(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// adopt turns a persisted record into a live session and registers it.
func (r *SessionRegistry) adopt(rec *SessionRecord) (*GameSession, error) {
	engine, err := restoreEngine(rec.GameType, rec.State)
	if err != nil {
		return nil, err
	}
	sess := newGameSession(rec.ID, rec.GameType, rec.Name, rec.Owner, engine)
	sess.Locked = rec.Locked

	r.mu.Lock()
	defer r.mu.Unlock()
	key := sessionKey(rec.GameType, rec.ID)
	if existing, ok := r.sessions[key]; ok {
		return existing, nil
	}
	r.sessions[key] = sess
	r.usedIDs[rec.ID] = true
	return sess, nil
}

// Get returns the live session, lazily loading it from persistence on a
// miss. A nil result means the id does not exist anywhere.
func (r *SessionRegistry) Get(gameType, id string) *GameSession {
	r.mu.RLock()
	sess, ok := r.sessions[sessionKey(gameType, id)]
	r.mu.RUnlock()
	if ok {
		return sess
	}

	rec, err := r.store.LoadGame(gameType, id)
	if errors.Is(err, ErrGameNotFound) {
		return nil
	}
	if err != nil {
		// A store outage is not "no such game"; make it visible.
		log.Printf("Warning: failed to load %s/%s from store: %v", gameType, id, err)
		return nil
	}
	sess, err = r.adopt(rec)
	if err != nil {
		log.Printf("Warning: failed to adopt %s/%s: %v", gameType, id, err)
		return nil
	}
	return sess
}

// FindByID looks a session up by id alone, trying each game type in turn.
// Game ids are unique across types so at most one match exists.
func (r *SessionRegistry) FindByID(id string) *GameSession {
	for _, gameType := range gameTypes {
		if sess := r.Get(gameType, id); sess != nil {
			return sess
		}
	}
	return nil
}

// Create allocates an id, builds initial authoritative state, persists it,
// and registers the session. The initial state is durable before Create
// returns.
func (r *SessionRegistry) Create(gameType, owner, name string, players int) (*GameSession, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("INVALID_NAME: Game name cannot be empty")
	}
	if len(name) > 40 {
		return nil, errors.New("INVALID_NAME: Game name too long (max 40 characters)")
	}

	engine, err := newEngine(gameType, players)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	id := GenerateGameID(r.usedIDs)
	r.usedIDs[id] = true
	r.mu.Unlock()

	sess := newGameSession(id, gameType, name, owner, engine)

	rec, err := sess.record()
	if err != nil {
		return nil, err
	}
	if err := r.store.SaveGame(rec); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.sessions[sessionKey(gameType, id)] = sess
	r.mu.Unlock()

	return sess, nil
}

// Delete removes a session from memory and persistence; false when no such
// session existed.
func (r *SessionRegistry) Delete(gameType, id string) (bool, error) {
	r.mu.Lock()
	_, inMemory := r.sessions[sessionKey(gameType, id)]
	delete(r.sessions, sessionKey(gameType, id))
	delete(r.usedIDs, id)
	r.mu.Unlock()

	deleted, err := r.store.DeleteGame(gameType, id)
	if err != nil {
		return false, err
	}
	return inMemory || deleted, nil
}

// ListByOwner returns the live sessions created by one identity.
func (r *SessionRegistry) ListByOwner(owner string) []*GameSession {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*GameSession
	for _, sess := range r.sessions {
		if sess.Owner == owner {
			out = append(out, sess)
		}
	}
	return out
}

// All returns every live session, used by the periodic save task.
func (r *SessionRegistry) All() []*GameSession {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*GameSession, 0, len(r.sessions))
	for _, sess := range r.sessions {
		out = append(out, sess)
	}
	return out
}
