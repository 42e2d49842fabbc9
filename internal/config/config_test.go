package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsAndEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/db")
	t.Setenv("AUTH0_DOMAIN", "tenant.example.com")
	t.Setenv("AUTH0_AUDIENCE", "https://api.example.com")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com,")
	t.Setenv("STALE_ROOM_AFTER", "2h")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "postgres://u:p@localhost/db", cfg.DSN())
	assert.Equal(t, "https://tenant.example.com/", cfg.Auth0Issuer)
	assert.Equal(t, "https://tenant.example.com/.well-known/jwks.json", cfg.Auth0JWKSURL)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, 2*time.Hour, cfg.StaleRoomAfter)
	assert.Equal(t, 7*24*time.Hour, cfg.StaleOfferAfter)
	assert.Equal(t, 0, cfg.RedisDB)
	assert.Equal(t, DefaultPersonas, cfg.Personas)
	assert.Equal(t, []string{"https://api.example.com"}, cfg.Audiences())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_JSONFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "config.json")
	body := `{
		"db_host": "db", "db_user": "game", "db_password": "secret", "db_name": "rooms", "db_sslmode": "require",
		"personas": [{"name": "Robo", "avatar": "🤖", "personality": "helpful"}]
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("DB_NAME", "override")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "host=db user=game dbname=override password=secret sslmode=require", cfg.DSN())
	require.Len(t, cfg.Personas, 1)
	assert.Equal(t, "Robo", cfg.Personas[0].Name)
}

func TestLoad_MissingFileIsIgnored(t *testing.T) {
	chdir(t, t.TempDir())
	_, err := Load("does-not-exist.json")
	assert.NoError(t, err)
}

func TestValidate_ReportsMissing(t *testing.T) {
	err := Config{}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "AUTH0_ISSUER")
	assert.Contains(t, err.Error(), "AUTH0_AUDIENCE")
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
