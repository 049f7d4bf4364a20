package backup

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestExportWritesReadableGzippedMsgpackArtifact(t *testing.T) {
	dir := t.TempDir()
	exp := NewExporter(dir, nil, zerolog.Nop())

	path, err := exp.Export(context.Background(), 42, map[string]interface{}{"index_failure_rate": 0.1})
	require.NoError(t, err)
	require.FileExists(t, path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	gr, err := gzip.NewReader(bytes.NewReader(raw))
	require.NoError(t, err)
	packed, err := io.ReadAll(gr)
	require.NoError(t, err)

	var snap Snapshot
	require.NoError(t, msgpack.Unmarshal(packed, &snap))
	assert.Equal(t, int64(42), snap.Cycle)
	assert.Equal(t, 0.1, snap.Analytics["index_failure_rate"])
}

func TestExportDoesNotLeaveTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	exp := NewExporter(dir, nil, zerolog.Nop())

	_, err := exp.Export(context.Background(), 1, map[string]interface{}{"ok": true})
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}

func TestRotateLocalKeepsMinimumRegardlessOfAge(t *testing.T) {
	dir := t.TempDir()
	exp := NewExporter(dir, nil, zerolog.Nop())

	for i := int64(0); i < 5; i++ {
		_, err := exp.Export(context.Background(), i, map[string]interface{}{"n": i})
		require.NoError(t, err)
	}

	require.NoError(t, exp.RotateLocal(time.Nanosecond))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(entries), minArtifactsToKeep)
}

func TestRotateLocalNoopWhenAtOrBelowFloor(t *testing.T) {
	dir := t.TempDir()
	exp := NewExporter(dir, nil, zerolog.Nop())

	_, err := exp.Export(context.Background(), 1, map[string]interface{}{"n": 1})
	require.NoError(t, err)

	require.NoError(t, exp.RotateLocal(time.Nanosecond))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
