package state

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/aristath/g6/internal/domain"
)

// SQLiteStore is the optional embedded-DB alternative to FileStore
// (spec §6: "implementations must recognize the documented names" —
// the storage backend choice is left to the deployment). It keeps a
// single key/value table and stores each state kind as a JSON blob
// under a fixed key, which is simpler than a normalized schema and
// keeps the three Save/Load pairs symmetric with FileStore's.
type SQLiteStore struct {
	db *sql.DB
}

const (
	keyCircuitStates      = "circuit_breakers"
	keyRateLimiterStates  = "rate_limiters"
	keyAlertStreaks       = "alert_streaks"
)

// NewSQLiteStore opens (creating if needed) the sqlite file at path
// and ensures its schema exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite state store %s: %w", path, err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS g6_state (key TEXT PRIMARY KEY, value BLOB NOT NULL)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite state schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) put(key string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	_, err = s.db.Exec(`INSERT INTO g6_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, b)
	return err
}

func (s *SQLiteStore) get(key string, v interface{}) error {
	var b []byte
	err := s.db.QueryRow(`SELECT value FROM g6_state WHERE key = ?`, key).Scan(&b)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	return json.Unmarshal(b, v)
}

func (s *SQLiteStore) SaveCircuitStates(states map[string]domain.CircuitState) error {
	return s.put(keyCircuitStates, states)
}

func (s *SQLiteStore) LoadCircuitStates() (map[string]domain.CircuitState, error) {
	out := make(map[string]domain.CircuitState)
	err := s.get(keyCircuitStates, &out)
	return out, err
}

func (s *SQLiteStore) SaveRateLimiterStates(states map[string]domain.RateLimiterState) error {
	return s.put(keyRateLimiterStates, states)
}

func (s *SQLiteStore) LoadRateLimiterStates() (map[string]domain.RateLimiterState, error) {
	out := make(map[string]domain.RateLimiterState)
	err := s.get(keyRateLimiterStates, &out)
	return out, err
}

func (s *SQLiteStore) SaveAlertStreaks(streaks []domain.AlertStreakState) error {
	return s.put(keyAlertStreaks, streaks)
}

func (s *SQLiteStore) LoadAlertStreaks() ([]domain.AlertStreakState, error) {
	var out []domain.AlertStreakState
	err := s.get(keyAlertStreaks, &out)
	return out, err
}
