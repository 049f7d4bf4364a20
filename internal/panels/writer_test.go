package panels

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aristath/g6/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePanel(name string) *domain.Panel {
	return &domain.Panel{
		Name:        name,
		Version:     domain.PanelEnvelopeVersion,
		GeneratedAt: time.Now(),
		UpdatedAt:   time.Now(),
		Meta:        domain.PanelMeta{Source: "cycle", Schema: "v1", Hash: "abc123"},
		Data:        map[string]interface{}{"count": 1},
	}
}

func TestWriteProducesReadableJSONFile(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, "")
	p := samplePanel("alerts")

	require.NoError(t, w.Write(p))

	b, err := os.ReadFile(filepath.Join(dir, "alerts.json"))
	require.NoError(t, err)

	var got domain.Panel
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "alerts", got.Name)
	assert.Equal(t, "abc123", got.Meta.Hash)

	_, err = os.Stat(filepath.Join(dir, "alerts.json.tmp"))
	assert.True(t, os.IsNotExist(err), "temp file should not survive a successful write")
}

func TestWriteDualWritesToLegacyDir(t *testing.T) {
	dir := t.TempDir()
	legacy := t.TempDir()
	w := NewWriter(dir, legacy)
	p := samplePanel("coverage")

	require.NoError(t, w.Write(p))

	_, err := os.Stat(filepath.Join(dir, "coverage.json"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(legacy, "coverage.json"))
	assert.NoError(t, err, "legacy dir should also receive the panel file")
}

func TestWriteAllPersistsEverySnapshotEntry(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, "")
	snapshot := map[string]*domain.Panel{
		"a": samplePanel("a"),
		"b": samplePanel("b"),
	}

	require.NoError(t, w.WriteAll(snapshot))

	for _, name := range []string{"a", "b"} {
		_, err := os.Stat(filepath.Join(dir, name+".json"))
		assert.NoError(t, err)
	}
}

func TestWriteCreatesMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "panels")
	w := NewWriter(dir, "")

	require.NoError(t, w.Write(samplePanel("x")))

	_, err := os.Stat(filepath.Join(dir, "x.json"))
	assert.NoError(t, err)
}
