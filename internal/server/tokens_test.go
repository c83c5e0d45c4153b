package server_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"arcade-server/internal/server"
)

func TestTokenSingleUse(t *testing.T) {
	issuer := server.NewTokenIssuer(time.Minute)

	payload := server.TokenPayload{
		GameType: "uno",
		GameID:   "BEAR",
		Slot:     2,
		Username: "alice",
		Redirect: "/play/uno",
	}
	token := issuer.Create(payload)
	assert.NotEmpty(t, token)
	assert.Equal(t, 1, issuer.Outstanding())

	got, ok := issuer.Redeem(token)
	assert.True(t, ok)
	assert.Equal(t, payload, got)
	assert.Equal(t, 0, issuer.Outstanding())

	_, ok = issuer.Redeem(token)
	assert.False(t, ok, "a token redeems exactly once")
}

func TestTokenUnknownID(t *testing.T) {
	issuer := server.NewTokenIssuer(time.Minute)

	_, ok := issuer.Redeem("no-such-token")
	assert.False(t, ok)
}

func TestTokenExpiry(t *testing.T) {
	issuer := server.NewTokenIssuer(20 * time.Millisecond)

	token := issuer.Create(server.TokenPayload{Username: "bob"})

	time.Sleep(60 * time.Millisecond)

	_, ok := issuer.Redeem(token)
	assert.False(t, ok, "expired tokens are gone")
	assert.Equal(t, 0, issuer.Outstanding())
}

func TestTokenZeroTTLNeverExpires(t *testing.T) {
	issuer := server.NewTokenIssuer(0)

	token := issuer.Create(server.TokenPayload{Username: "carol"})

	time.Sleep(30 * time.Millisecond)

	_, ok := issuer.Redeem(token)
	assert.True(t, ok)
}

func TestTokensAreIndependent(t *testing.T) {
	issuer := server.NewTokenIssuer(time.Minute)

	first := issuer.Create(server.TokenPayload{Username: "alice", Slot: 0})
	second := issuer.Create(server.TokenPayload{Username: "bob", Slot: 1})
	assert.NotEqual(t, first, second)

	got, ok := issuer.Redeem(second)
	assert.True(t, ok)
	assert.Equal(t, "bob", got.Username)

	got, ok = issuer.Redeem(first)
	assert.True(t, ok)
	assert.Equal(t, "alice", got.Username)
}
