package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, []string{"self", "academic", "web"}, cfg.Analysis.Stages)
	assert.Equal(t, 9, cfg.Analysis.SelfMinWords)
	assert.Equal(t, 10, cfg.Analysis.ExternalMinWords)
	assert.Equal(t, 2*time.Second, cfg.Web.RateInterval)
	assert.Equal(t, 10*time.Second, cfg.Academic.Timeout)
	assert.Equal(t, int64(20<<20), cfg.Documents.MaxUploadSize)
	assert.True(t, cfg.RabbitMQ.Enabled)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := writeConfig(t, `
server:
  address: ":9090"
analysis:
  max_workers: 2
  stages: [self, web]
`)
	t.Setenv("ANALYSIS_MAX_WORKERS", "7")
	t.Setenv("RABBITMQ_ENABLED", "false")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, 7, cfg.Analysis.MaxWorkers)
	assert.Equal(t, []string{"self", "web"}, cfg.Analysis.Stages)
	assert.False(t, cfg.RabbitMQ.Enabled)
}

func TestLoadRejectsUnknownStage(t *testing.T) {
	_, err := Load(writeConfig(t, "analysis:\n  stages: [self, library]\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "library")
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{User: "u", Password: "p", Host: "db", Port: 5433, Name: "n", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5433/n?sslmode=disable", c.DSN())
}
