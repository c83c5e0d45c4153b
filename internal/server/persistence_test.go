package server

import (
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"arcade-server/internal/database"
)

// setupTestDB opens a migrated sqlite database in a temp dir.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	svc, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		svc.Close()
	})
	return svc.DB()
}

func testRecord(gameType, id string) *SessionRecord {
	return &SessionRecord{
		ID:       id,
		GameType: gameType,
		Owner:    "alice",
		Name:     "Friday night",
		State:    json.RawMessage(`{"turn":1}`),
	}
}

func TestSaveAndLoadGame(t *testing.T) {
	pm := NewPersistenceManager(setupTestDB(t))

	rec := testRecord("uno", "BEAR")
	assert.NoError(t, pm.SaveGame(rec))

	loaded, err := pm.LoadGame("uno", "BEAR")
	assert.NoError(t, err)
	assert.Equal(t, rec.ID, loaded.ID)
	assert.Equal(t, rec.Owner, loaded.Owner)
	assert.Equal(t, rec.Name, loaded.Name)
	assert.JSONEq(t, string(rec.State), string(loaded.State))
}

func TestLoadGameNotFound(t *testing.T) {
	pm := NewPersistenceManager(setupTestDB(t))

	_, err := pm.LoadGame("uno", "NOPE")
	assert.ErrorIs(t, err, ErrGameNotFound)
}

func TestSaveGameOverwrites(t *testing.T) {
	pm := NewPersistenceManager(setupTestDB(t))

	rec := testRecord("uno", "BEAR")
	assert.NoError(t, pm.SaveGame(rec))

	rec.State = json.RawMessage(`{"turn":2}`)
	rec.Locked = true
	assert.NoError(t, pm.SaveGame(rec))

	loaded, err := pm.LoadGame("uno", "BEAR")
	assert.NoError(t, err)
	assert.True(t, loaded.Locked)
	assert.JSONEq(t, `{"turn":2}`, string(loaded.State))

	ids, err := pm.ListIDs("uno")
	assert.NoError(t, err)
	assert.Equal(t, []string{"BEAR"}, ids, "upsert must not duplicate rows")
}

func TestSameIDAcrossGameTypes(t *testing.T) {
	pm := NewPersistenceManager(setupTestDB(t))

	assert.NoError(t, pm.SaveGame(testRecord("uno", "BEAR")))
	assert.NoError(t, pm.SaveGame(testRecord("mad", "BEAR")))

	unoRec, err := pm.LoadGame("uno", "BEAR")
	assert.NoError(t, err)
	assert.Equal(t, "uno", unoRec.GameType)

	madRec, err := pm.LoadGame("mad", "BEAR")
	assert.NoError(t, err)
	assert.Equal(t, "mad", madRec.GameType)
}

func TestListGames(t *testing.T) {
	pm := NewPersistenceManager(setupTestDB(t))

	assert.NoError(t, pm.SaveGame(testRecord("uno", "AAAA")))
	assert.NoError(t, pm.SaveGame(testRecord("uno", "BBBB")))
	assert.NoError(t, pm.SaveGame(testRecord("mad", "CCCC")))

	games, err := pm.ListGames("uno")
	assert.NoError(t, err)
	assert.Len(t, games, 2)

	games, err = pm.ListGames("mad")
	assert.NoError(t, err)
	assert.Len(t, games, 1)
}

func TestDeleteGame(t *testing.T) {
	pm := NewPersistenceManager(setupTestDB(t))

	assert.NoError(t, pm.SaveGame(testRecord("uno", "BEAR")))

	deleted, err := pm.DeleteGame("uno", "BEAR")
	assert.NoError(t, err)
	assert.True(t, deleted)

	_, err = pm.LoadGame("uno", "BEAR")
	assert.ErrorIs(t, err, ErrGameNotFound)

	deleted, err = pm.DeleteGame("uno", "BEAR")
	assert.NoError(t, err)
	assert.False(t, deleted, "second delete reports nothing removed")
}

func TestCleanupFinishedGames(t *testing.T) {
	db := setupTestDB(t)
	pm := NewPersistenceManager(db)

	finished := testRecord("uno", "DONE")
	finished.Finished = true
	assert.NoError(t, pm.SaveGame(finished))
	assert.NoError(t, pm.SaveGame(testRecord("uno", "LIVE")))

	// Age the finished row past the cutoff.
	_, err := db.Exec(
		`UPDATE games SET updated_at = $1 WHERE id = $2`,
		time.Now().UTC().Add(-48*time.Hour), "DONE",
	)
	assert.NoError(t, err)

	removed, err := pm.CleanupFinishedGames(24 * time.Hour)
	assert.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = pm.LoadGame("uno", "DONE")
	assert.ErrorIs(t, err, ErrGameNotFound)

	_, err = pm.LoadGame("uno", "LIVE")
	assert.NoError(t, err, "unfinished games survive cleanup")
}
