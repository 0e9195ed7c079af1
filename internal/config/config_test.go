package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "https://saavn.dev/api", cfg.Catalog.BaseURL)
	assert.Equal(t, 20, cfg.Resolver.SearchLimit)
	assert.Equal(t, 5, cfg.Resolver.ArtistSearchLimit)
	assert.Equal(t, []string{"160kbps", "320kbps", "96kbps"}, cfg.Resolver.StreamQualities)
	assert.Equal(t, []string{"500x500", "150x150"}, cfg.Resolver.ImageQualities)
	assert.Equal(t, 50*time.Millisecond, cfg.Player.RefreshInterval)
	assert.InDelta(t, 0.3, cfg.Player.DuckVolume, 1e-9)
	assert.True(t, cfg.Player.AutoAdvance)
	assert.Equal(t, StoreFile, cfg.Store.Backend)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
[catalog]
base_url = "http://localhost:3000/api/"
timeout = "3s"

[resolver]
stream_qualities = ["320kbps", "160kbps", "96kbps"]

[player]
duck_volume = 0.5

[log]
level = "debug"
format = "json"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:3000/api", cfg.Catalog.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Catalog.Timeout)
	assert.Equal(t, []string{"320kbps", "160kbps", "96kbps"}, cfg.Resolver.StreamQualities)
	assert.InDelta(t, 0.5, cfg.Player.DuckVolume, 1e-9)
	assert.Equal(t, slog.LevelDebug, cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, path, cfg.Source)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, "[catalog]\nbase_url = \"http://file\"\n")
	t.Setenv("SAAVNTUNE_CATALOG_BASE_URL", "http://env")
	t.Setenv("SAAVNTUNE_PLAYER_AUTO_ADVANCE", "false")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://env", cfg.Catalog.BaseURL)
	assert.False(t, cfg.Player.AutoAdvance)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoad_InvalidBackend(t *testing.T) {
	path := writeConfig(t, "[store]\nbackend = \"redis\"\n")

	_, err := Load(path)
	assert.ErrorContains(t, err, "unknown store.backend")
}

func TestValidate_GCSNeedsBucket(t *testing.T) {
	cfg := Default()
	cfg.Store.Backend = StoreGCS
	assert.Error(t, cfg.Validate())

	cfg.Store.Bucket = "queues"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_DuckVolumeRange(t *testing.T) {
	cfg := Default()
	cfg.Player.DuckVolume = 1.5
	assert.Error(t, cfg.Validate())
}
