package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"
)

// ErrGameNotFound is the not-found sentinel for whole-document reads.
var ErrGameNotFound = errors.New("GAME_NOT_FOUND: No persisted game with that id")

// SessionRecord is the persisted envelope for one game session: lobby-level
// fields plus the engine's own serialized state. Whole-document replace on
// every save.
type SessionRecord struct {
	ID       string          `json:"id"`
	GameType string          `json:"gameType"`
	Owner    string          `json:"owner"`
	Name     string          `json:"name"`
	Locked   bool            `json:"locked"`
	Finished bool            `json:"finished"`
	State    json.RawMessage `json:"state"`
}

// PersistenceManager stores session records as JSON rows keyed by
// (game_type, id). The SQL sticks to the sqlite/postgres intersection so one
// store serves both drivers.
type PersistenceManager struct {
	db *sql.DB
}

func NewPersistenceManager(db *sql.DB) *PersistenceManager {
	return &PersistenceManager{db: db}
}

// SaveGame upserts a record. Saving identical content twice is a no-op
// overwrite.
func (pm *PersistenceManager) SaveGame(rec *SessionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("serialize game %s: %w", rec.ID, err)
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO games (game_type, id, owner, finished, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (game_type, id) DO UPDATE SET
			owner = $3, finished = $4, data = $5, updated_at = $7
	`

	if _, err := pm.db.Exec(query, rec.GameType, rec.ID, rec.Owner, rec.Finished, string(data), now, now); err != nil {
		return fmt.Errorf("save game %s/%s: %w", rec.GameType, rec.ID, err)
	}
	return nil
}

// LoadGame reads one record; ErrGameNotFound when absent.
func (pm *PersistenceManager) LoadGame(gameType, id string) (*SessionRecord, error) {
	var data string
	err := pm.db.QueryRow(
		`SELECT data FROM games WHERE game_type = $1 AND id = $2`,
		gameType, id,
	).Scan(&data)

	if err == sql.ErrNoRows {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load game %s/%s: %w", gameType, id, err)
	}

	var rec SessionRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("deserialize game %s/%s: %w", gameType, id, err)
	}
	return &rec, nil
}

// ListGames returns every persisted record for a game type, newest first.
// Used as the recovery path after a restart.
func (pm *PersistenceManager) ListGames(gameType string) ([]*SessionRecord, error) {
	rows, err := pm.db.Query(
		`SELECT data FROM games WHERE game_type = $1 ORDER BY updated_at DESC`,
		gameType,
	)
	if err != nil {
		return nil, fmt.Errorf("query games: %w", err)
	}
	defer rows.Close()

	var records []*SessionRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan game row: %w", err)
		}
		var rec SessionRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			// Skip the corrupt row, keep restoring the rest.
			log.Printf("Warning: skipping undecodable %s record: %v", gameType, err)
			continue
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate game rows: %w", err)
	}
	return records, nil
}

// ListIDs enumerates the persisted ids for a game type.
func (pm *PersistenceManager) ListIDs(gameType string) ([]string, error) {
	rows, err := pm.db.Query(`SELECT id FROM games WHERE game_type = $1`, gameType)
	if err != nil {
		return nil, fmt.Errorf("query game ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan game id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate game ids: %w", err)
	}
	return ids, nil
}

// DeleteGame removes a record; false when the id did not exist.
func (pm *PersistenceManager) DeleteGame(gameType, id string) (bool, error) {
	result, err := pm.db.Exec(
		`DELETE FROM games WHERE game_type = $1 AND id = $2`,
		gameType, id,
	)
	if err != nil {
		return false, fmt.Errorf("delete game %s/%s: %w", gameType, id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check deletion of %s/%s: %w", gameType, id, err)
	}
	return affected > 0, nil
}

// CleanupFinishedGames deletes finished games not touched within the cutoff.
func (pm *PersistenceManager) CleanupFinishedGames(olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	result, err := pm.db.Exec(
		`DELETE FROM games WHERE finished = $1 AND updated_at < $2`,
		true, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("cleanup finished games: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check cleanup result: %w", err)
	}
	return int(affected), nil
}
