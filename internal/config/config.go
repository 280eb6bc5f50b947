// Package config loads memeful.toml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"memeful/internal/batch"
	"memeful/internal/dialect"
	"memeful/internal/fetch"
	"memeful/internal/trace"
)

// FileName is the per-project configuration file looked up from the working
// directory upwards.
const FileName = "memeful.toml"

// Config is the resolved configuration.
type Config struct {
	// Path is the file the values came from, or "" for defaults.
	Path      string
	Enabled   bool
	Debounce  time.Duration
	CacheDir  string
	Fetch     FetchConfig
	Languages map[string]dialect.Kind
	Trace     TraceConfig
}

type FetchConfig struct {
	Timeout   time.Duration
	MaxBytes  int64
	UserAgent string
}

type TraceConfig struct {
	Level  trace.Level
	Output string
}

type fileConfig struct {
	Enabled   *bool             `toml:"enabled"`
	Debounce  string            `toml:"debounce"`
	CacheDir  string            `toml:"cache_dir"`
	Fetch     fileFetch         `toml:"fetch"`
	Languages map[string]string `toml:"languages"`
	Trace     fileTrace         `toml:"trace"`
}

type fileFetch struct {
	Timeout   string `toml:"timeout"`
	MaxBytes  int64  `toml:"max_bytes"`
	UserAgent string `toml:"user_agent"`
}

type fileTrace struct {
	Level  string `toml:"level"`
	Output string `toml:"output"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Enabled:  true,
		Debounce: batch.DefaultDelay,
		Fetch: FetchConfig{
			Timeout:   fetch.DefaultTimeout,
			MaxBytes:  fetch.DefaultMaxBytes,
			UserAgent: fetch.DefaultUserAgent,
		},
		Languages: make(map[string]dialect.Kind),
		Trace:     TraceConfig{Level: trace.LevelOff},
	}
}

// Find walks up from startDir looking for memeful.toml.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// UserPath returns $XDG_CONFIG_HOME/memeful/config.toml.
func UserPath() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return ""
		}
		base = dir
	}
	return filepath.Join(base, "memeful", "config.toml")
}

// Discover loads the project file found from startDir, then the user file,
// then falls back to defaults.
func Discover(startDir string) (Config, error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return Config{}, err
	}
	if ok {
		return Load(path)
	}
	if user := UserPath(); user != "" {
		if _, err := os.Stat(user); err == nil {
			return Load(user)
		}
	}
	return Default(), nil
}

// Load reads path on top of the defaults.
func Load(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg, err := resolve(raw, meta)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Path = path
	return cfg, nil
}

func resolve(raw fileConfig, meta toml.MetaData) (Config, error) {
	cfg := Default()
	if raw.Enabled != nil {
		cfg.Enabled = *raw.Enabled
	}
	if meta.IsDefined("debounce") {
		d, err := positiveDuration("debounce", raw.Debounce)
		if err != nil {
			return Config{}, err
		}
		cfg.Debounce = d
	}
	cfg.CacheDir = strings.TrimSpace(raw.CacheDir)

	if meta.IsDefined("fetch", "timeout") {
		d, err := positiveDuration("fetch.timeout", raw.Fetch.Timeout)
		if err != nil {
			return Config{}, err
		}
		cfg.Fetch.Timeout = d
	}
	if meta.IsDefined("fetch", "max_bytes") {
		if raw.Fetch.MaxBytes <= 0 {
			return Config{}, fmt.Errorf("fetch.max_bytes must be positive, got %d", raw.Fetch.MaxBytes)
		}
		cfg.Fetch.MaxBytes = raw.Fetch.MaxBytes
	}
	if ua := strings.TrimSpace(raw.Fetch.UserAgent); ua != "" {
		cfg.Fetch.UserAgent = ua
	}

	for id, name := range raw.Languages {
		k, err := dialect.Parse(name)
		if err != nil {
			return Config{}, fmt.Errorf("languages.%s: %w", id, err)
		}
		cfg.Languages[id] = k
	}

	if meta.IsDefined("trace", "level") {
		level, err := trace.ParseLevel(raw.Trace.Level)
		if err != nil {
			return Config{}, fmt.Errorf("trace.level: %w", err)
		}
		cfg.Trace.Level = level
	}
	cfg.Trace.Output = strings.TrimSpace(raw.Trace.Output)
	return cfg, nil
}

func positiveDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, value)
	}
	return d, nil
}
