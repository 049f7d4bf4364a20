package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/g6/internal/domain"
)

func TestLoadAppliesDefaultsAndResolvesDataDir(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load("", filepath.Join(dir, "data"))
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(cfg.DataDir))
	assert.DirExists(t, cfg.DataDir)
	assert.Equal(t, filepath.Join(cfg.DataDir, "panels"), cfg.PanelsDir)
	assert.Equal(t, "file", cfg.StateBackend)
	assert.Greater(t, cfg.Scheduler.Interval.Seconds(), 0.0)
}

func TestLoadCLIOverrideBeatsEnvAndFile(t *testing.T) {
	dir := t.TempDir()

	filePath := filepath.Join(dir, "config.json")
	fileBytes, _ := json.Marshal(map[string]interface{}{"data_dir": filepath.Join(dir, "from-file")})
	require.NoError(t, os.WriteFile(filePath, fileBytes, 0644))

	t.Setenv("G6_DATA_DIR", filepath.Join(dir, "from-env"))

	cliDir := filepath.Join(dir, "from-cli")
	cfg, err := Load(filePath, cliDir)
	require.NoError(t, err)

	assert.Equal(t, cliDir, cfg.DataDir)
}

func TestLoadEnvBeatsFileWhenNoCLIOverride(t *testing.T) {
	dir := t.TempDir()

	filePath := filepath.Join(dir, "config.json")
	fileBytes, _ := json.Marshal(map[string]interface{}{"data_dir": filepath.Join(dir, "from-file")})
	require.NoError(t, os.WriteFile(filePath, fileBytes, 0644))

	envDir := filepath.Join(dir, "from-env")
	t.Setenv("G6_DATA_DIR", envDir)

	cfg, err := Load(filePath, "")
	require.NoError(t, err)

	assert.Equal(t, envDir, cfg.DataDir)
}

func TestValidateRejectsLowercaseSymbol(t *testing.T) {
	cfg := defaults()
	cfg.Scheduler.SLAFraction = 0.95
	cfg.Indices = []IndexSpec{{Symbol: "nifty", StrikeStep: 50}}
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveStrikeStep(t *testing.T) {
	cfg := defaults()
	cfg.Scheduler.SLAFraction = 0.95
	cfg.Indices = []IndexSpec{{Symbol: "NIFTY", StrikeStep: 0}}
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownExpiryTag(t *testing.T) {
	cfg := defaults()
	cfg.Scheduler.SLAFraction = 0.95
	cfg.Indices = []IndexSpec{{Symbol: "NIFTY", StrikeStep: 50, ExpiryTags: []domain.ExpiryTag{"bogus"}}}
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsSLAFractionOutOfRange(t *testing.T) {
	cfg := defaults()
	cfg.Scheduler.SLAFraction = 1.5
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownStateBackend(t *testing.T) {
	cfg := defaults()
	cfg.Scheduler.SLAFraction = 0.95
	cfg.StateBackend = "postgres"
	assert.Error(t, cfg.Validate())
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	cfg := defaults()
	cfg.Scheduler.SLAFraction = 0.95
	cfg.Indices = []IndexSpec{{Symbol: "NIFTY", StrikeStep: 50, ExpiryTags: []domain.ExpiryTag{domain.ExpiryThisWeek}}}
	assert.NoError(t, cfg.Validate())
}

func TestSplitEnvListParsesCommaSeparatedValues(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitEnvList("a,b,c", nil))
	assert.Equal(t, []string{"default"}, splitEnvList("", []string{"default"}))
}
