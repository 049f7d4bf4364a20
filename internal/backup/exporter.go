// Package backup implements the periodic analytics artifact export:
// a gzip/msgpack-encoded snapshot of cycle statistics written under
// analytics_dir and optionally uploaded to an S3-compatible store.
// It generalizes the teacher's database-backup archive-then-upload
// flow (internal/reliability.BackupService/R2BackupService) from
// "backup a sqlite file" to "export a cycle analytics snapshot".
package backup

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/g6/pkg/istclock"
	"github.com/aristath/g6/pkg/logger"
)

const artifactPrefix = "analytics-"
const artifactSuffix = ".msgpack.gz"

// minArtifactsToKeep mirrors the teacher's RotateOldBackups floor: never
// rotate away the most recent handful regardless of age.
const minArtifactsToKeep = 3

// Snapshot is the payload exported each cycle. Analytics is left as a
// free-form map so callers (the scheduler, adaptive controller, alert
// aggregator) can each contribute their own cycle statistics without
// this package needing to know their shapes.
type Snapshot struct {
	Cycle       int64                  `msgpack:"cycle"`
	GeneratedAt string                 `msgpack:"generated_at"`
	Analytics   map[string]interface{} `msgpack:"analytics"`
}

// Exporter writes Snapshots to analyticsDir and, if an Uploader is
// configured, mirrors them to cloud storage.
type Exporter struct {
	analyticsDir string
	uploader     Uploader
	log          zerolog.Logger
}

// NewExporter builds an Exporter. uploader may be nil, in which case
// artifacts stay local-only.
func NewExporter(analyticsDir string, uploader Uploader, log zerolog.Logger) *Exporter {
	return &Exporter{
		analyticsDir: analyticsDir,
		uploader:     uploader,
		log:          logger.Component(log, "backup.Exporter"),
	}
}

// Export encodes analytics as msgpack, gzips it, writes it atomically
// under analyticsDir, and uploads it if an Uploader is configured.
func (e *Exporter) Export(ctx context.Context, cycle int64, analytics map[string]interface{}) (string, error) {
	snap := Snapshot{
		Cycle:       cycle,
		GeneratedAt: istclock.Now().Format(time.RFC3339),
		Analytics:   analytics,
	}

	packed, err := msgpack.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("marshal analytics snapshot: %w", err)
	}

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(packed); err != nil {
		gw.Close()
		return "", fmt.Errorf("gzip analytics snapshot: %w", err)
	}
	if err := gw.Close(); err != nil {
		return "", fmt.Errorf("close gzip writer: %w", err)
	}

	name := fmt.Sprintf("%s%d-%s%s", artifactPrefix, cycle, istclock.Now().Format("20060102-150405"), artifactSuffix)
	path := filepath.Join(e.analyticsDir, name)

	if err := os.MkdirAll(e.analyticsDir, 0755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", e.analyticsDir, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("write temp artifact %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("rename artifact into place: %w", err)
	}

	e.log.Debug().Int64("cycle", cycle).Str("file", name).Int("bytes", buf.Len()).Msg("exported analytics artifact")

	if e.uploader != nil {
		f, err := os.Open(path)
		if err != nil {
			return path, fmt.Errorf("reopen artifact for upload %s: %w", path, err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return path, fmt.Errorf("stat artifact for upload %s: %w", path, err)
		}

		if err := e.uploader.Upload(ctx, name, f, info.Size()); err != nil {
			e.log.Error().Err(err).Str("file", name).Msg("failed to upload analytics artifact")
			return path, fmt.Errorf("upload %s: %w", name, err)
		}
	}

	return path, nil
}

// RotateLocal deletes local artifacts older than retention, always
// keeping at least minArtifactsToKeep regardless of age. retention of
// zero keeps everything beyond the floor.
func (e *Exporter) RotateLocal(retention time.Duration) error {
	entries, err := os.ReadDir(e.analyticsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", e.analyticsDir, err)
	}

	type artifact struct {
		name    string
		modTime time.Time
	}
	artifacts := make([]artifact, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), artifactPrefix) || !strings.HasSuffix(entry.Name(), artifactSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		artifacts = append(artifacts, artifact{name: entry.Name(), modTime: info.ModTime()})
	}

	sort.Slice(artifacts, func(i, j int) bool { return artifacts[i].modTime.After(artifacts[j].modTime) })

	if len(artifacts) <= minArtifactsToKeep {
		return nil
	}

	cutoff := time.Time{}
	if retention > 0 {
		cutoff = time.Now().Add(-retention)
	}

	for i, a := range artifacts {
		if i < minArtifactsToKeep {
			continue
		}
		if retention == 0 {
			continue
		}
		if a.modTime.Before(cutoff) {
			if err := os.Remove(filepath.Join(e.analyticsDir, a.name)); err != nil {
				e.log.Warn().Err(err).Str("file", a.name).Msg("failed to remove rotated artifact")
				continue
			}
			e.log.Info().Str("file", a.name).Msg("rotated local analytics artifact")
		}
	}

	return nil
}
