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
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "database:\n  driver: memory\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 10*time.Second, cfg.Insights.TxTimeout)
	assert.Equal(t, 7*24*time.Hour, cfg.Insights.RefreshAfter)
	assert.Equal(t, 60*time.Second, cfg.AI.Timeout)
	assert.Equal(t, "gpt-4o-mini", cfg.AI.Model)
	assert.False(t, cfg.Refresher.Enabled)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_ParsesDurationsAndKeys(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  port: 9000
insights:
  txTimeout: 3s
  refreshAfter: 48h
ai:
  timeout: 30s
  rpm: 120
  burst: 4
refresher:
  enabled: true
  interval: 10m
auth:
  apiKeys:
    user-1: key-1
`))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Insights.TxTimeout)
	assert.Equal(t, 48*time.Hour, cfg.Insights.RefreshAfter)
	assert.Equal(t, 30*time.Second, cfg.AI.Timeout)
	assert.Equal(t, 120, cfg.AI.RPM)
	assert.Equal(t, 10*time.Minute, cfg.Refresher.Interval)
	assert.Equal(t, "key-1", cfg.Auth.APIKeys["user-1"])
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("DATABASE_PASSWORD", "pw-env")
	t.Setenv("MINIO_SECRET_KEY", "minio-env")

	cfg, err := Load(writeConfig(t, "ai:\n  apiKey: sk-file\ndatabase:\n  password: pw-file\n"))
	require.NoError(t, err)
	assert.Equal(t, "sk-env", cfg.AI.APIKey)
	assert.Equal(t, "pw-env", cfg.Database.Password)
	assert.Equal(t, "minio-env", cfg.Minio.SecretKey)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDSNs(t *testing.T) {
	var cfg Config
	cfg.Database.User = "app"
	cfg.Database.Password = "secret"
	cfg.Database.Host = "db"
	cfg.Database.Name = "careers"
	cfg.Database.Driver = "postgres"
	cfg.applyDefaults()

	assert.Equal(t, "app:secret@tcp(db:5432)/careers?parseTime=true&charset=utf8mb4&loc=UTC", cfg.MySQLDSN())
	assert.Equal(t, "host=db port=5432 user=app password=secret dbname=careers sslmode=disable timezone=UTC", cfg.PostgresDSN())
}
