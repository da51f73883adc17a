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

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := LoadConfig(writeConfig(t, "env: dev\n"))

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, ":8080", cfg.HTTP.Address)
	assert.Equal(t, []string{"/api/auth/register", "/api/auth/login"}, cfg.HTTP.PublicPaths)
	assert.Equal(t, time.Hour, cfg.Tokens.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Tokens.RefreshTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Tokens.RefreshStoreTTL)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.Empty(t, cfg.Tokens.SigningKey)
}

func TestLoadConfig_FileValues(t *testing.T) {
	cfg := LoadConfig(writeConfig(t, `
env: prod
bcrypt_cost: 12
storage:
  driver: mongodb
  mongo:
    uri: mongodb://db:27017
    database: auth
http:
  address: ":9000"
  read_timeout: 2s
  public_paths: ["/api/auth/login"]
tokens:
  access_ttl: 15m
`))

	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.Equal(t, DriverMongoDB, cfg.Storage.Driver)
	assert.Equal(t, "mongodb://db:27017", cfg.Storage.Mongo.URI)
	assert.Equal(t, "auth", cfg.Storage.Mongo.Database)
	assert.Equal(t, ":9000", cfg.HTTP.Address)
	assert.Equal(t, 2*time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, []string{"/api/auth/login"}, cfg.HTTP.PublicPaths)
	assert.Equal(t, 15*time.Minute, cfg.Tokens.AccessTTL)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("AUTH_SIGNING_KEY", "from-env")
	t.Setenv("STORAGE_DRIVER", DriverPostgres)

	cfg := LoadConfig(writeConfig(t, "env: local\nstorage:\n  driver: sqlite\n"))

	assert.Equal(t, "from-env", cfg.Tokens.SigningKey)
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	assert.Panics(t, func() {
		LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	})
}
