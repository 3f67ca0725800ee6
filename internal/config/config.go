// Package config loads CLI defaults from the environment and .env files.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/xyproto/env/v2"

	"github.com/meigma/jarmap/mapping"
)

// Environment variables read by Load.
const (
	EnvWorkers       = "JARMAP_WORKERS"
	EnvMaxDepth      = "JARMAP_MAX_DEPTH"
	EnvCacheDir      = "JARMAP_CACHE_DIR"
	EnvCacheMaxBytes = "JARMAP_CACHE_MAX_BYTES"
	EnvDirection     = "JARMAP_DIRECTION"
	EnvLogLevel      = "JARMAP_LOG_LEVEL"
	EnvLogFormat     = "JARMAP_LOG_FORMAT"
)

// Log formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config holds CLI defaults. Flags override every field.
type Config struct {
	Workers       int
	MaxDepth      int
	CacheDir      string
	CacheMaxBytes int64
	Direction     mapping.Direction
	LogLevel      slog.Level
	LogFormat     string
}

// Load reads .env files (default ".env"; missing files are ignored) and
// then the JARMAP_* variables. Variables already set in the process
// environment win over .env values.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: %s: %w", f, err)
		}
	}

	cfg := Config{
		Workers:       env.Int(EnvWorkers, 0),
		MaxDepth:      env.Int(EnvMaxDepth, 0),
		CacheDir:      env.Str(EnvCacheDir),
		CacheMaxBytes: env.Int64(EnvCacheMaxBytes, 0),
		LogFormat:     strings.ToLower(env.Str(EnvLogFormat, FormatText)),
	}
	if cfg.CacheMaxBytes < 0 {
		return Config{}, fmt.Errorf("config: %s must be >= 0", EnvCacheMaxBytes)
	}

	dir, ok := mapping.ParseDirection(env.Str(EnvDirection))
	if !ok {
		return Config{}, fmt.Errorf("config: %s: unknown direction %q", EnvDirection, env.Str(EnvDirection))
	}
	cfg.Direction = dir

	level, err := ParseLevel(env.Str(EnvLogLevel, "info"))
	if err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", EnvLogLevel, err)
	}
	cfg.LogLevel = level

	switch cfg.LogFormat {
	case FormatText, FormatJSON:
	default:
		return Config{}, fmt.Errorf("config: %s: unknown format %q", EnvLogFormat, cfg.LogFormat)
	}
	return cfg, nil
}

// ParseLevel parses a slog level name.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, err
	}
	return level, nil
}

// Logger builds a logger writing to w in the configured format and level.
func (c Config) Logger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == FormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
