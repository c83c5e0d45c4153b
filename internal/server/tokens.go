package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTokenTTL covers a browser page navigation; an unused token is gone
// within seconds.
const DefaultTokenTTL = 5 * time.Second

// TokenPayload is the one canonical payload shape for every token issuance
// site: which game and slot the bearer may take, under which name, and where
// to send them.
type TokenPayload struct {
	GameType string `json:"gameType"`
	GameID   string `json:"gameId"`
	Slot     int    `json:"slot"`
	Username string `json:"username"`
	Redirect string `json:"redirect,omitempty"`
}

// TokenIssuer issues short-lived, single-use tokens for page-to-page
// handoff and reconnects. Redemption removes the token; a second redeem of
// the same id always reports not-found. Expiry runs on its own timer,
// independent of any in-flight request.
type TokenIssuer struct {
	ttl    time.Duration
	tokens map[string]TokenPayload
	timers map[string]*time.Timer
	mu     sync.Mutex
}

// NewTokenIssuer creates an issuer with the given time-to-live. A zero or
// negative ttl disables expiry.
func NewTokenIssuer(ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		ttl:    ttl,
		tokens: make(map[string]TokenPayload),
		timers: make(map[string]*time.Timer),
	}
}

// Create stores the payload under a fresh opaque id and schedules its
// deletion.
func (ti *TokenIssuer) Create(payload TokenPayload) string {
	id := uuid.New().String()

	ti.mu.Lock()
	defer ti.mu.Unlock()

	ti.tokens[id] = payload
	if ti.ttl > 0 {
		ti.timers[id] = time.AfterFunc(ti.ttl, func() {
			ti.expire(id)
		})
	}
	return id
}

// Redeem atomically removes and returns the payload. A false result is a
// normal outcome (unknown or expired token), not a fault.
func (ti *TokenIssuer) Redeem(id string) (TokenPayload, bool) {
	ti.mu.Lock()
	defer ti.mu.Unlock()

	payload, ok := ti.tokens[id]
	if !ok {
		return TokenPayload{}, false
	}
	delete(ti.tokens, id)
	if timer, ok := ti.timers[id]; ok {
		timer.Stop()
		delete(ti.timers, id)
	}
	return payload, true
}

func (ti *TokenIssuer) expire(id string) {
	ti.mu.Lock()
	defer ti.mu.Unlock()
	delete(ti.tokens, id)
	delete(ti.timers, id)
}

// Outstanding reports the number of unredeemed tokens.
func (ti *TokenIssuer) Outstanding() int {
	ti.mu.Lock()
	defer ti.mu.Unlock()
	return len(ti.tokens)
}
