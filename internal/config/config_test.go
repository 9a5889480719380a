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

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "Springer Nature", cfg.Coverage.Publisher)
	assert.Equal(t, "coverage_stats.json", cfg.Coverage.CoverageCacheFile)
	assert.Equal(t, "article_pubdates.json", cfg.Coverage.PubDatesCacheFile)
	assert.Equal(t, "coverage_article_files", cfg.Coverage.JournalCSVDir)
	assert.Equal(t, -1, cfg.Coverage.MaxLookups)
	assert.Empty(t, cfg.Coverage.ErrorLogFile)
	assert.Equal(t, "https://link.springer.com", cfg.Springer.BaseURL)
	assert.Equal(t, "https://doi.org", cfg.Springer.DOIResolverURL)
	assert.Equal(t, 2015, cfg.Springer.CSVStartYear)
	assert.Equal(t, "openapc-cli/1.0", cfg.HTTP.UserAgent)
	assert.Equal(t, 60, cfg.HTTP.TimeoutSecs)
	assert.InDelta(t, 2.0, cfg.HTTP.RequestsPerSecond, 0.001)
	assert.Equal(t, 2, cfg.Retry.MaxAttempts)
	assert.Equal(t, "sqlite", cfg.Cubes.Driver)
	assert.Equal(t, "cubes.sqlite", cfg.Cubes.DatabaseURL)
	assert.Equal(t, "static/institutions.csv", cfg.Cubes.InstitutionsFile)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
log:
  level: debug
  format: json
coverage:
  max_lookups: 25
  journal_csv_dir: csv
springer:
  base_url: http://localhost:9999
cubes:
  driver: postgres
  database_url: postgres://localhost/cubes
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 25, cfg.Coverage.MaxLookups)
	assert.Equal(t, "csv", cfg.Coverage.JournalCSVDir)
	assert.Equal(t, "http://localhost:9999", cfg.Springer.BaseURL)
	assert.Equal(t, "postgres", cfg.Cubes.Driver)
	// Defaults still apply for unset values
	assert.Equal(t, "coverage_stats.json", cfg.Coverage.CoverageCacheFile)
	assert.Equal(t, "https://doi.org", cfg.Springer.DOIResolverURL)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
coverage:
  publisher: Elsevier
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("OPENAPC_COVERAGE_PUBLISHER", "Springer Nature")
	t.Setenv("OPENAPC_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "Springer Nature", cfg.Coverage.Publisher)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("OPENAPC_COVERAGE_MAX_LOOKUPS", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Coverage.MaxLookups)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("invalid: [yaml: bad"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
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

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Coverage.Publisher = "Springer Nature"
	cfg.Coverage.CoverageCacheFile = "coverage_stats.json"
	cfg.Coverage.PubDatesCacheFile = "article_pubdates.json"
	cfg.Coverage.JournalCSVDir = "coverage_article_files"
	cfg.Springer.BaseURL = "https://link.springer.com"
	cfg.Springer.DOIResolverURL = "https://doi.org"
	cfg.Retry.MaxAttempts = 2
	cfg.Cubes.Driver = "sqlite"
	cfg.Cubes.DatabaseURL = "cubes.sqlite"
	cfg.Cubes.InstitutionsFile = "static/institutions.csv"
	return cfg
}

func TestValidateCoverage_AllPresent(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("coverage"))
}

func TestValidateCoverage_MissingFields(t *testing.T) {
	cfg := validDefaults()
	cfg.Coverage.Publisher = ""
	cfg.Coverage.JournalCSVDir = ""
	cfg.Retry.MaxAttempts = 0

	err := cfg.Validate("coverage")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "coverage.publisher is required")
	assert.Contains(t, err.Error(), "coverage.journal_csv_dir is required")
	assert.Contains(t, err.Error(), "retry.max_attempts must be at least 1")
}

func TestValidateCubes_BadDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Cubes.Driver = "mysql"

	err := cfg.Validate("cubes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cubes.driver must be sqlite or postgres")
}

func TestValidateUnknownCommand(t *testing.T) {
	assert.NoError(t, (&Config{}).Validate("report"))
}
