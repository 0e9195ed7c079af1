// Package config loads SaavnTune settings from an optional TOML file and
// SAAVNTUNE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/tejashwikalptaru/saavntune/internal/logger"
)

// Store backends.
const (
	StorePreferences = "preferences"
	StoreFile        = "file"
	StoreGCS         = "gcs"
)

// Config is the resolved application configuration.
type Config struct {
	Catalog  CatalogConfig
	Resolver ResolverConfig
	Player   PlayerConfig
	Store    StoreConfig
	Bridge   BridgeConfig
	Log      logger.Config

	// Path of the config file that was read ("" when running on defaults)
	Source string
}

// CatalogConfig configures the remote catalog client.
type CatalogConfig struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// ResolverConfig holds the resolver tuning constants.
type ResolverConfig struct {
	SearchLimit       int
	ArtistSearchLimit int
	Concurrency       int
	// StreamQualities is the stream quality preference order. Lower bitrates
	// come first because they stream more reliably on weak connections.
	StreamQualities []string
	ImageQualities  []string
	SuggestionSeed  string
}

// PlayerConfig tunes the playback controller.
type PlayerConfig struct {
	RefreshInterval time.Duration
	DuckVolume      float64
	AutoAdvance     bool
	DryRun          bool
}

// StoreConfig selects and configures the queue store backend.
type StoreConfig struct {
	Backend         string
	Path            string
	Bucket          string
	Object          string
	CredentialsFile string
	PollInterval    time.Duration
}

// BridgeConfig toggles session bridges.
type BridgeConfig struct {
	MPRIS     bool
	Tray      bool
	Notify    bool
	HTTPAddr  string
	TokenFile string
	FocusDBus bool
}

// AppID is the application identifier used for preferences and D-Bus names.
const AppID = "com.saavntune.app"

func setDefaults(v *viper.Viper) {
	v.SetDefault("catalog.base_url", "https://saavn.dev/api")
	v.SetDefault("catalog.timeout", "10s")
	v.SetDefault("catalog.user_agent", "saavntune/1.0")

	v.SetDefault("resolver.search_limit", 20)
	v.SetDefault("resolver.artist_search_limit", 5)
	v.SetDefault("resolver.concurrency", 8)
	v.SetDefault("resolver.stream_qualities", []string{"160kbps", "320kbps", "96kbps"})
	v.SetDefault("resolver.image_qualities", []string{"500x500", "150x150"})
	v.SetDefault("resolver.suggestion_seed", "popular")

	v.SetDefault("player.refresh_interval", "50ms")
	v.SetDefault("player.duck_volume", 0.3)
	v.SetDefault("player.auto_advance", true)
	v.SetDefault("player.dry_run", false)

	v.SetDefault("store.backend", StoreFile)
	v.SetDefault("store.path", filepath.Join(DataDir(), "queue.yaml"))
	v.SetDefault("store.object", "saavntune/queue.json")
	v.SetDefault("store.poll_interval", "15s")

	v.SetDefault("bridge.mpris", true)
	v.SetDefault("bridge.tray", false)
	v.SetDefault("bridge.notify", true)
	v.SetDefault("bridge.http_addr", "127.0.0.1:7788")
	v.SetDefault("bridge.token_file", filepath.Join(DataDir(), "control.token"))
	v.SetDefault("bridge.focus_dbus", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads configuration. An explicit path must exist; otherwise config.toml
// is looked up in the user config dir and the working directory, and a missing
// file simply means defaults.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SAAVNTUNE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(ConfigDir())
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the built-in configuration without reading files or the environment.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	return fromViper(v)
}

func fromViper(v *viper.Viper) Config {
	return Config{
		Catalog: CatalogConfig{
			BaseURL:   strings.TrimRight(v.GetString("catalog.base_url"), "/"),
			Timeout:   v.GetDuration("catalog.timeout"),
			UserAgent: v.GetString("catalog.user_agent"),
		},
		Resolver: ResolverConfig{
			SearchLimit:       v.GetInt("resolver.search_limit"),
			ArtistSearchLimit: v.GetInt("resolver.artist_search_limit"),
			Concurrency:       v.GetInt("resolver.concurrency"),
			StreamQualities:   v.GetStringSlice("resolver.stream_qualities"),
			ImageQualities:    v.GetStringSlice("resolver.image_qualities"),
			SuggestionSeed:    v.GetString("resolver.suggestion_seed"),
		},
		Player: PlayerConfig{
			RefreshInterval: v.GetDuration("player.refresh_interval"),
			DuckVolume:      v.GetFloat64("player.duck_volume"),
			AutoAdvance:     v.GetBool("player.auto_advance"),
			DryRun:          v.GetBool("player.dry_run"),
		},
		Store: StoreConfig{
			Backend:         strings.ToLower(v.GetString("store.backend")),
			Path:            v.GetString("store.path"),
			Bucket:          v.GetString("store.bucket"),
			Object:          v.GetString("store.object"),
			CredentialsFile: v.GetString("store.credentials_file"),
			PollInterval:    v.GetDuration("store.poll_interval"),
		},
		Bridge: BridgeConfig{
			MPRIS:     v.GetBool("bridge.mpris"),
			Tray:      v.GetBool("bridge.tray"),
			Notify:    v.GetBool("bridge.notify"),
			HTTPAddr:  v.GetString("bridge.http_addr"),
			TokenFile: v.GetString("bridge.token_file"),
			FocusDBus: v.GetBool("bridge.focus_dbus"),
		},
		Log: logger.Config{
			Level:  logger.ParseLevel(v.GetString("log.level"), slog.LevelInfo),
			Format: v.GetString("log.format"),
		},
		Source: v.ConfigFileUsed(),
	}
}

// Validate checks values that would otherwise fail deep inside components.
func (c Config) Validate() error {
	switch {
	case c.Catalog.BaseURL == "":
		return errors.New("config: catalog.base_url is required")
	case c.Resolver.SearchLimit <= 0 || c.Resolver.ArtistSearchLimit <= 0:
		return errors.New("config: resolver search limits must be positive")
	case c.Resolver.Concurrency <= 0:
		return errors.New("config: resolver.concurrency must be positive")
	case len(c.Resolver.StreamQualities) == 0:
		return errors.New("config: resolver.stream_qualities must not be empty")
	case c.Player.RefreshInterval <= 0:
		return errors.New("config: player.refresh_interval must be positive")
	case c.Player.DuckVolume < 0 || c.Player.DuckVolume > 1:
		return errors.New("config: player.duck_volume must be between 0 and 1")
	}

	switch c.Store.Backend {
	case StorePreferences, StoreFile:
	case StoreGCS:
		if c.Store.Bucket == "" {
			return errors.New("config: store.bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("config: unknown store.backend %q", c.Store.Backend)
	}
	return nil
}

// ConfigDir returns the directory searched for config.toml.
func ConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "saavntune")
	}
	return "."
}

// DataDir returns the directory for the queue file and runtime files.
func DataDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "saavntune")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "state", "saavntune")
	}
	return filepath.Join(os.TempDir(), "saavntune")
}
