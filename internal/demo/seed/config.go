package seed

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Config struct {
	Driver          string
	Host            string
	Port            string
	Username        string
	Password        string
	Database        string
	Artists         int
	AlbumsPerArtist int
	TracksPerAlbum  int
	Drop            bool
	Seed            int64
}

func DefaultConfig() Config {
	return Config{
		Driver:          "duckdb",
		Database:        "sqlchat_demo.db",
		Artists:         25,
		AlbumsPerArtist: 3,
		TracksPerAlbum:  10,
		Drop:            true,
		Seed:            time.Now().UTC().UnixNano(),
	}
}

func LoadConfigFromEnv(lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	cfg := DefaultConfig()
	if err := applyString(lookup, "SQLCHAT_DEMO_DRIVER", &cfg.Driver); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLCHAT_DEMO_HOST", &cfg.Host); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLCHAT_DEMO_PORT", &cfg.Port); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLCHAT_DEMO_USERNAME", &cfg.Username); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLCHAT_DEMO_PASSWORD", &cfg.Password); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLCHAT_DEMO_DATABASE", &cfg.Database); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SQLCHAT_DEMO_ARTISTS", &cfg.Artists); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SQLCHAT_DEMO_ALBUMS_PER_ARTIST", &cfg.AlbumsPerArtist); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SQLCHAT_DEMO_TRACKS_PER_ALBUM", &cfg.TracksPerAlbum); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SQLCHAT_DEMO_DROP", &cfg.Drop); err != nil {
		return Config{}, err
	}
	if err := applyInt64(lookup, "SQLCHAT_DEMO_SEED", &cfg.Seed); err != nil {
		return Config{}, err
	}

	if cfg.Artists <= 0 || cfg.AlbumsPerArtist <= 0 || cfg.TracksPerAlbum <= 0 {
		return Config{}, fmt.Errorf("artist, album and track counts must be positive")
	}
	return cfg, nil
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = parsed
	return nil
}

func applyInt64(lookup LookupFunc, key string, dst *int64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	parsed, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = parsed
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = parsed
	return nil
}
