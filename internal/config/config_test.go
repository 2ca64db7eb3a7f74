package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "aliscan.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "tesseract", cfg.OCR.Provider)
	assert.Equal(t, "fra+eng", cfg.OCR.Languages)
	assert.InDelta(t, 0.70, cfg.Analysis.SimilarityThreshold, 0.001)
	assert.Equal(t, 4, cfg.Analysis.BatchConcurrency)
	assert.Equal(t, 20, cfg.Billing.Limits.TrialCredits)
	assert.Equal(t, 5, cfg.Billing.Limits.DailyFree)
	assert.Equal(t, 300, cfg.Billing.Limits.MonthlySub)
	assert.InDelta(t, 20.0, cfg.Cost.CustomsPct, 0.001)
	assert.InDelta(t, 5.0, cfg.Cost.FeesPct, 0.001)
	assert.Equal(t, "https://api.aliscan.dev/v1", cfg.Track.BaseURL)
	assert.Equal(t, 6, cfg.Track.CacheTTLHours)
	assert.False(t, cfg.Track.Simulate)

	// Structured defaults apply when the sections are absent.
	assert.InDelta(t, 20.0, cfg.Scorer.VerifiedPoints, 0.001)
	assert.Equal(t, 80, cfg.Scorer.TresFiableMin)
	assert.NotEmpty(t, cfg.Vocab.DeliveryKeywords)
	assert.NotEmpty(t, cfg.Vocab.VerifiedKw)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/aliscan
log:
  level: debug
  format: console
server:
  port: 9090
analysis:
  batch_concurrency: 8
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/aliscan", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Analysis.BatchConcurrency)
	// Defaults still apply for unset values
	assert.Equal(t, "tesseract", cfg.OCR.Provider)
	assert.InDelta(t, 0.70, cfg.Analysis.SimilarityThreshold, 0.001)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("ALISCAN_STORE_DRIVER", "postgres")
	t.Setenv("ALISCAN_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("ALISCAN_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestLoadInvalidScorerConfig(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	// Label thresholds out of order.
	yaml := `
scorer:
  tres_fiable_min: 40
  fiable_min: 60
  moyen_min: 80
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scorer")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerBadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "nope", Format: "json"})
	require.Error(t, err)
}
