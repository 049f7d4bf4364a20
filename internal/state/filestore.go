package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aristath/g6/internal/domain"
)

// FileStore is the plain-JSON-files backend (spec §6): circuit-breaker
// and rate-limiter state live under stateDir, alert streaks under
// alertsStateDir (which may equal stateDir).
type FileStore struct {
	stateDir       string
	alertsStateDir string
}

// NewFileStore builds a FileStore. alertsStateDir may be empty, in
// which case it defaults to stateDir.
func NewFileStore(stateDir, alertsStateDir string) *FileStore {
	if alertsStateDir == "" {
		alertsStateDir = stateDir
	}
	return &FileStore{stateDir: stateDir, alertsStateDir: alertsStateDir}
}

func (f *FileStore) circuitPath() string      { return filepath.Join(f.stateDir, "circuit_breakers.json") }
func (f *FileStore) rateLimiterPath() string  { return filepath.Join(f.stateDir, "rate_limiters.json") }
func (f *FileStore) alertStreaksPath() string { return filepath.Join(f.alertsStateDir, "alert_streaks.json") }

func (f *FileStore) SaveCircuitStates(states map[string]domain.CircuitState) error {
	return writeJSONAtomic(f.circuitPath(), states)
}

func (f *FileStore) LoadCircuitStates() (map[string]domain.CircuitState, error) {
	out := make(map[string]domain.CircuitState)
	err := readJSON(f.circuitPath(), &out)
	return out, err
}

func (f *FileStore) SaveRateLimiterStates(states map[string]domain.RateLimiterState) error {
	return writeJSONAtomic(f.rateLimiterPath(), states)
}

func (f *FileStore) LoadRateLimiterStates() (map[string]domain.RateLimiterState, error) {
	out := make(map[string]domain.RateLimiterState)
	err := readJSON(f.rateLimiterPath(), &out)
	return out, err
}

func (f *FileStore) SaveAlertStreaks(streaks []domain.AlertStreakState) error {
	return writeJSONAtomic(f.alertStreaksPath(), streaks)
}

func (f *FileStore) LoadAlertStreaks() ([]domain.AlertStreakState, error) {
	var out []domain.AlertStreakState
	err := readJSON(f.alertStreaksPath(), &out)
	return out, err
}

// writeJSONAtomic marshals v and writes it to path via a .tmp sibling
// plus os.Rename, the same crash-safe sequence internal/panels.Writer
// uses for panel envelopes.
func writeJSONAtomic(path string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0644); err != nil {
		return fmt.Errorf("write temp file %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}

// readJSON loads path into v. A missing file is not an error — it
// means there is no prior state to restore, which is the normal case
// on first boot.
func readJSON(path string, v interface{}) error {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return json.Unmarshal(b, v)
}
