// Package clientcfg loads the studio CLI configuration.
package clientcfg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"genstudio/internal/localstore"
)

// Server holds the proxy connection settings.
type Server struct {
	BaseURL        string `toml:"base_url"`
	Token          string `toml:"token"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// State selects the durable local store.
type State struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
}

// Generation tunes retries, polling and batch pacing.
type Generation struct {
	MaxAttempts        int `toml:"max_attempts"`
	RetryBaseMillis    int `toml:"retry_base_ms"`
	PollIntervalMillis int `toml:"poll_interval_ms"`
	PollTimeoutSeconds int `toml:"poll_timeout_seconds"`
	UnitDelayMillis    int `toml:"unit_delay_ms"`
}

// References bounds reference image compression.
type References struct {
	MaxDimension   int `toml:"max_dimension"`
	MaxBytes       int `toml:"max_bytes"`
	InitialQuality int `toml:"initial_quality"`
	QualityStep    int `toml:"quality_step"`
	MinQuality     int `toml:"min_quality"`
}

type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type Config struct {
	Server     Server     `toml:"server"`
	State      State      `toml:"state"`
	Generation Generation `toml:"generation"`
	References References `toml:"references"`
	Logging    Logging    `toml:"logging"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Server: Server{
			BaseURL:        "http://localhost:8080",
			TimeoutSeconds: 90,
		},
		State: State{
			Backend: localstore.BackendFile,
			Path:    "~/.local/state/genstudio/state.json",
		},
		Generation: Generation{
			MaxAttempts:        3,
			RetryBaseMillis:    1000,
			PollIntervalMillis: 1500,
			PollTimeoutSeconds: 300,
			UnitDelayMillis:    2000,
		},
		References: References{
			MaxDimension:   1536,
			MaxBytes:       1 << 20,
			InitialQuality: 85,
			QualityStep:    10,
			MinQuality:     40,
		},
		Logging: Logging{
			Level:  "info",
			Format: "auto",
		},
	}
}

// DefaultPath is where Load looks when no path is given.
func DefaultPath() (string, error) {
	return expandPath("~/.config/genstudio/studio.toml")
}

// Load applies defaults, then the TOML file at path (or the default location
// when path is empty), then STUDIO_* environment variables. A missing file is
// not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	} else {
		p, err := expandPath(path)
		if err != nil {
			return nil, err
		}
		path = p
	}

	file, err := os.Open(path)
	switch {
	case err == nil:
		defer file.Close()
		if err := toml.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("open config: %w", err)
	}

	_ = godotenv.Load()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"STUDIO_BASE_URL":      &c.Server.BaseURL,
		"STUDIO_TOKEN":         &c.Server.Token,
		"STUDIO_STATE_BACKEND": &c.State.Backend,
		"STUDIO_STATE_PATH":    &c.State.Path,
		"STUDIO_LOG_LEVEL":     &c.Logging.Level,
		"STUDIO_LOG_FORMAT":    &c.Logging.Format,
	}
	for key, target := range strs {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*target = strings.TrimSpace(v)
		}
	}
	ints := map[string]*int{
		"STUDIO_MAX_ATTEMPTS":         &c.Generation.MaxAttempts,
		"STUDIO_RETRY_BASE_MS":        &c.Generation.RetryBaseMillis,
		"STUDIO_POLL_INTERVAL_MS":     &c.Generation.PollIntervalMillis,
		"STUDIO_POLL_TIMEOUT_SECONDS": &c.Generation.PollTimeoutSeconds,
		"STUDIO_UNIT_DELAY_MS":        &c.Generation.UnitDelayMillis,
	}
	for key, target := range ints {
		v, ok := os.LookupEnv(key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*target = n
	}
	return nil
}

func (c *Config) normalize() error {
	c.Server.BaseURL = strings.TrimRight(strings.TrimSpace(c.Server.BaseURL), "/")
	c.State.Backend = strings.ToLower(strings.TrimSpace(c.State.Backend))
	if c.State.Backend == "" {
		c.State.Backend = localstore.BackendFile
	}
	path, err := expandPath(c.State.Path)
	if err != nil {
		return err
	}
	c.State.Path = path
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Server.BaseURL == "" {
		return errors.New("server.base_url is required")
	}
	if !strings.HasPrefix(c.Server.BaseURL, "http://") && !strings.HasPrefix(c.Server.BaseURL, "https://") {
		return fmt.Errorf("server.base_url must be an http(s) url, got %q", c.Server.BaseURL)
	}
	switch c.State.Backend {
	case localstore.BackendFile, localstore.BackendSQLite:
	default:
		return fmt.Errorf("state.backend must be %q or %q", localstore.BackendFile, localstore.BackendSQLite)
	}
	if c.State.Path == "" {
		return errors.New("state.path is required")
	}
	if c.Generation.MaxAttempts < 1 {
		return errors.New("generation.max_attempts must be at least 1")
	}
	if c.Generation.PollIntervalMillis <= 0 || c.Generation.PollTimeoutSeconds <= 0 {
		return errors.New("generation polling interval and timeout must be positive")
	}
	if c.Generation.UnitDelayMillis < 0 || c.Generation.RetryBaseMillis < 0 {
		return errors.New("generation delays must not be negative")
	}
	if c.References.MinQuality > c.References.InitialQuality {
		return errors.New("references.min_quality must not exceed initial_quality")
	}
	switch c.Logging.Format {
	case "", "auto", "json", "console":
	default:
		return fmt.Errorf("logging.format must be auto, json or console")
	}
	return nil
}

func (c Config) RetryBase() time.Duration {
	return time.Duration(c.Generation.RetryBaseMillis) * time.Millisecond
}

func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Generation.PollIntervalMillis) * time.Millisecond
}

func (c Config) PollTimeout() time.Duration {
	return time.Duration(c.Generation.PollTimeoutSeconds) * time.Second
}

func (c Config) UnitDelay() time.Duration {
	return time.Duration(c.Generation.UnitDelayMillis) * time.Millisecond
}

func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.Server.TimeoutSeconds) * time.Second
}

func expandPath(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	if strings.HasPrefix(value, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if value == "~" {
			value = home
		} else if len(value) > 1 && (value[1] == '/' || value[1] == '\\') {
			value = filepath.Join(home, value[2:])
		}
	}
	abs, err := filepath.Abs(filepath.Clean(value))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", value, err)
	}
	return abs, nil
}
