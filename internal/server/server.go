package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"arcade-server/internal/database"
)

const (
	messageRateLimit = 30
	idleTimeout      = 30 * time.Minute
)

// Config carries every runtime knob; cmd/api resolves it from flags and
// environment before construction.
type Config struct {
	Bind         string
	Port         int
	DatabaseDSN  string
	TokenTTL     time.Duration
	SaveInterval time.Duration
	CleanupAge   time.Duration
	Verbose      bool
}

type Server struct {
	cfg         Config
	db          database.Service
	store       *PersistenceManager
	registry    *SessionRegistry
	connections *ConnectionManager
	tokens      *TokenIssuer
	limiter     *RateLimiter
	health      *ConnectionHealth

	done chan struct{}
}

// NewServer builds the full service and the http.Server that fronts it.
// Persisted sessions are loaded eagerly so lobby listings are complete from
// the first request.
func NewServer(cfg Config) (*Server, *http.Server, error) {
	dbService, err := database.New(cfg.DatabaseDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := NewPersistenceManager(dbService.DB())
	registry := NewSessionRegistry(store)
	if err := registry.LoadAll(); err != nil {
		// A partial load still yields a working server; missing games
		// reload lazily on first access.
		log.Printf("Warning: failed to load persisted sessions: %v", err)
	}

	srv := &Server{
		cfg:         cfg,
		db:          dbService,
		store:       store,
		registry:    registry,
		connections: NewConnectionManager(),
		tokens:      NewTokenIssuer(cfg.TokenTTL),
		limiter:     NewRateLimiter(messageRateLimit, time.Second),
		health:      NewConnectionHealth(),
		done:        make(chan struct{}),
	}

	go srv.periodicSaveTask()
	go srv.cleanupTask()
	go srv.reapIdleTask()

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Bind, cfg.Port),
		Handler:      srv.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return srv, httpServer, nil
}

// periodicSaveTask persists every live session on an interval, catching
// state that never flowed through an acknowledged action (lock toggles,
// detaches).
func (s *Server) periodicSaveTask() {
	ticker := time.NewTicker(s.cfg.SaveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
		}

		saved := 0
		for _, sess := range s.registry.All() {
			if err := s.saveSession(sess); err != nil {
				log.Printf("Periodic save failed for %s/%s: %v", sess.GameType, sess.ID, err)
				continue
			}
			saved++
		}
		if s.cfg.Verbose {
			log.Printf("Periodic save completed: %d sessions persisted", saved)
		}
	}
}

// cleanupTask deletes finished games once they have sat untouched long
// enough for players to review the outcome.
func (s *Server) cleanupTask() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
		}

		deleted, err := s.store.CleanupFinishedGames(s.cfg.CleanupAge)
		if err != nil {
			log.Printf("Cleanup task failed: %v", err)
			continue
		}
		if deleted > 0 {
			log.Printf("Cleanup task: deleted %d finished games", deleted)
		}
	}
}

// reapIdleTask closes connections that have sent nothing for the idle
// timeout. The socket close unwinds the read loop, which handles detach and
// cleanup like any other disconnect.
func (s *Server) reapIdleTask() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
		}

		for _, id := range s.health.InactiveConnections(idleTimeout) {
			if c := s.connections.Get(id); c != nil {
				log.Printf("Closing idle connection %s", id)
				c.Close("Idle timeout")
			}
		}
	}
}

func (s *Server) saveSession(sess *GameSession) error {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	rec, err := sess.record()
	if err != nil {
		return err
	}
	return s.store.SaveGame(rec)
}

// Shutdown stops background tasks, persists every session one last time,
// closes all sockets, and releases the database.
func (s *Server) Shutdown(ctx context.Context) error {
	close(s.done)

	for _, sess := range s.registry.All() {
		if err := s.saveSession(sess); err != nil {
			log.Printf("Final save failed for %s/%s: %v", sess.GameType, sess.ID, err)
		}
	}

	for _, c := range s.connections.All() {
		c.Close("Server shutting down")
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
