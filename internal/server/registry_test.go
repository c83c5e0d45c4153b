package server

import (
	"bytes"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"arcade-server/internal/game"
	"arcade-server/internal/uno"
)

func setupRegistry(t *testing.T) (*SessionRegistry, *PersistenceManager) {
	t.Helper()
	pm := NewPersistenceManager(setupTestDB(t))
	return NewSessionRegistry(pm), pm
}

func TestCreateGameSession(t *testing.T) {
	registry, pm := setupRegistry(t)

	sess, err := registry.Create("uno", "alice", "Friday night", 2)
	assert.NoError(t, err)
	assert.Len(t, sess.ID, 4)
	assert.Equal(t, "alice", sess.Owner)
	assert.Equal(t, "uno", sess.GameType)
	assert.Equal(t, 2, sess.Engine.Capacity())

	// Initial state is durable before Create returns.
	rec, err := pm.LoadGame("uno", sess.ID)
	assert.NoError(t, err)
	assert.Equal(t, "alice", rec.Owner)
	assert.NotEmpty(t, rec.State)
}

func TestCreateRejectsBadInput(t *testing.T) {
	registry, _ := setupRegistry(t)

	_, err := registry.Create("uno", "alice", "", 2)
	assert.Error(t, err, "empty name")

	_, err = registry.Create("uno", "alice", "Friday", 9)
	assert.Error(t, err, "player count out of range")

	_, err = registry.Create("chess", "alice", "Friday", 2)
	assert.Error(t, err, "unknown game type")
}

func TestCreateAllocatesUniqueIDs(t *testing.T) {
	registry, _ := setupRegistry(t)

	seen := make(map[string]bool)
	for range 20 {
		sess, err := registry.Create("uno", "alice", "Game", 2)
		assert.NoError(t, err)
		assert.False(t, seen[sess.ID], "id %s reused", sess.ID)
		seen[sess.ID] = true
	}
}

func TestGetReturnsLiveSession(t *testing.T) {
	registry, _ := setupRegistry(t)

	created, err := registry.Create("uno", "alice", "Friday", 2)
	assert.NoError(t, err)

	got := registry.Get("uno", created.ID)
	assert.Same(t, created, got, "repeat lookups share one session")

	assert.Nil(t, registry.Get("uno", "NOPE"))
	assert.Nil(t, registry.Get("mad", created.ID))
}

func TestGetLazilyLoadsFromStore(t *testing.T) {
	registry, pm := setupRegistry(t)

	created, err := registry.Create("uno", "alice", "Friday", 2)
	assert.NoError(t, err)
	id := created.ID

	// A second registry over the same store simulates a restart.
	fresh := NewSessionRegistry(pm)
	sess := fresh.Get("uno", id)
	assert.NotNil(t, sess)
	assert.Equal(t, "alice", sess.Owner)
	assert.Equal(t, "Friday", sess.Name)
	assert.NotSame(t, created, sess)

	// And the loaded session is cached from then on.
	assert.Same(t, sess, fresh.Get("uno", id))
}

func TestLoadAllRestoresEngineState(t *testing.T) {
	registry, pm := setupRegistry(t)

	created, err := registry.Create("uno", "alice", "Friday", 2)
	assert.NoError(t, err)
	engine := created.Engine.(*uno.Game)
	wantHand := append([]uno.Card(nil), engine.Hands[0]...)

	fresh := NewSessionRegistry(pm)
	assert.NoError(t, fresh.LoadAll())

	sess := fresh.Get("uno", created.ID)
	assert.NotNil(t, sess)
	restored := sess.Engine.(*uno.Game)
	assert.Equal(t, wantHand, restored.Hands[0], "hands survive a restart")
}

func TestFindByID(t *testing.T) {
	registry, _ := setupRegistry(t)

	unoSess, err := registry.Create("uno", "alice", "Cards", 2)
	assert.NoError(t, err)
	madSess, err := registry.Create("mad", "bob", "Standoff", 2)
	assert.NoError(t, err)

	assert.Same(t, unoSess, registry.FindByID(unoSess.ID))
	assert.Same(t, madSess, registry.FindByID(madSess.ID))
	assert.Nil(t, registry.FindByID("NOPE"))
}

func TestDeleteSession(t *testing.T) {
	registry, pm := setupRegistry(t)

	sess, err := registry.Create("uno", "alice", "Friday", 2)
	assert.NoError(t, err)

	deleted, err := registry.Delete("uno", sess.ID)
	assert.NoError(t, err)
	assert.True(t, deleted)

	assert.Nil(t, registry.Get("uno", sess.ID))
	_, err = pm.LoadGame("uno", sess.ID)
	assert.ErrorIs(t, err, ErrGameNotFound)

	deleted, err = registry.Delete("uno", sess.ID)
	assert.NoError(t, err)
	assert.False(t, deleted)
}

func TestListByOwner(t *testing.T) {
	registry, _ := setupRegistry(t)

	_, err := registry.Create("uno", "alice", "One", 2)
	assert.NoError(t, err)
	_, err = registry.Create("mad", "alice", "Two", 2)
	assert.NoError(t, err)
	_, err = registry.Create("uno", "bob", "Three", 2)
	assert.NoError(t, err)

	assert.Len(t, registry.ListByOwner("alice"), 2)
	assert.Len(t, registry.ListByOwner("bob"), 1)
	assert.Empty(t, registry.ListByOwner("carol"))
}

func TestAttachDetach(t *testing.T) {
	registry, _ := setupRegistry(t)

	sess, err := registry.Create("uno", "alice", "Friday", 2)
	assert.NoError(t, err)

	a := NewConn("a", nil)
	b := NewConn("b", nil)

	assert.NoError(t, sess.attach(0, a))
	assert.Equal(t, 1, sess.connected())

	err = sess.attach(0, b)
	assert.Error(t, err, "occupied slot rejects a second connection")

	assert.Error(t, sess.attach(5, b), "slot out of range")
	assert.NoError(t, sess.attach(1, b))
	assert.Equal(t, 2, sess.connected())
	assert.Equal(t, -1, sess.freeSlot())

	sess.detach(0)
	assert.Equal(t, 1, sess.connected())
	assert.Equal(t, 0, sess.freeSlot())
}

func TestGetLogsStoreFailures(t *testing.T) {
	pm := NewPersistenceManager(setupTestDB(t))
	registry := NewSessionRegistry(pm)

	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	// A plain miss is silent.
	assert.Nil(t, registry.Get("uno", "NOPE"))
	assert.Empty(t, buf.String())

	// A broken store is an outage, not a missing game; it must be visible.
	pm.db.Close()
	assert.Nil(t, registry.Get("uno", "NOPE"))
	assert.Contains(t, buf.String(), "failed to load uno/NOPE")
}

func TestReconnectPreservesHand(t *testing.T) {
	registry, _ := setupRegistry(t)

	sess, err := registry.Create("uno", "alice", "Friday", 2)
	assert.NoError(t, err)

	first := NewConn("first", nil)
	assert.NoError(t, sess.attach(1, first))
	wantHand := append([]uno.Card(nil), sess.Engine.(*uno.Game).Hands[1]...)

	// Disconnect vacates the slot; the authoritative state stays put.
	sess.detach(1)
	assert.Equal(t, 0, sess.connected())

	second := NewConn("second", nil)
	assert.NoError(t, sess.attach(1, second))

	snap := sess.Engine.Snapshot(1).(*uno.ClientState)
	assert.Equal(t, wantHand, snap.Hand)
}

func TestRecordMarksFinished(t *testing.T) {
	registry, _ := setupRegistry(t)

	sess, err := registry.Create("uno", "alice", "Friday", 2)
	assert.NoError(t, err)

	rec, err := sess.record()
	assert.NoError(t, err)
	assert.False(t, rec.Finished)

	sess.Engine.(*uno.Game).WinnerSlot = 1
	rec, err = sess.record()
	assert.NoError(t, err)
	assert.True(t, rec.Finished)
	assert.NotEqual(t, game.Broadcast, sess.Engine.Winner())
}
