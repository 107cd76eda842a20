// Package config loads the sync client settings from a TOML file and the
// environment. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	DefaultPath = "~/.config/ec-admin/config.toml"

	defaultBaseURL     = "http://localhost:8080/api"
	defaultStoragePath = "~/.local/share/ec-admin/state.db"
)

// Duration reads "15s" style strings
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type API struct {
	BaseURL       string   `toml:"base_url"`
	Timeout       Duration `toml:"timeout"`
	HealthPath    string   `toml:"health_path"`
	ProbeInterval Duration `toml:"probe_interval"`
	ProbeTimeout  Duration `toml:"probe_timeout"`
	CacheMaxAge   Duration `toml:"cache_max_age"`
}

type Realtime struct {
	URL          string   `toml:"url"`
	MaxRetries   int      `toml:"max_retries"`
	Backoff      Duration `toml:"backoff"`
	RefreshDelay Duration `toml:"refresh_delay"`
	LogCapacity  int      `toml:"log_capacity"`
	KafkaBrokers []string `toml:"kafka_brokers"`
	KafkaTopic   string   `toml:"kafka_topic"`
	KafkaGroup   string   `toml:"kafka_group"`
	AuditTopic   string   `toml:"audit_topic"`
}

type Store struct {
	PerPage int    `toml:"per_page"`
	Locale  string `toml:"locale"`
}

type Storage struct {
	Path string `toml:"path"`
}

type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type Metrics struct {
	Addr string `toml:"addr"`
}

// Credentials are only read from the environment
type Credentials struct {
	Username string `toml:"-"`
	Password string `toml:"-"`
}

type Config struct {
	API         API         `toml:"api"`
	Realtime    Realtime    `toml:"realtime"`
	Store       Store       `toml:"store"`
	Storage     Storage     `toml:"storage"`
	Log         Log         `toml:"log"`
	Metrics     Metrics     `toml:"metrics"`
	Credentials Credentials `toml:"-"`
}

// Default returns the settings used when nothing is configured
func Default() Config {
	return Config{
		API: API{
			BaseURL:       defaultBaseURL,
			Timeout:       Duration(15 * time.Second),
			HealthPath:    "/health",
			ProbeInterval: Duration(30 * time.Second),
			ProbeTimeout:  Duration(3 * time.Second),
			CacheMaxAge:   Duration(time.Minute),
		},
		Realtime: Realtime{
			MaxRetries:   5,
			Backoff:      Duration(3 * time.Second),
			RefreshDelay: Duration(500 * time.Millisecond),
			LogCapacity:  100,
			KafkaTopic:   "ec-events",
			KafkaGroup:   "admin-sync",
		},
		Store:   Store{PerPage: 10, Locale: "en"},
		Storage: Storage{Path: defaultStoragePath},
		Log:     Log{Level: "info", Format: "text"},
	}
}

// Load reads path (DefaultPath when empty), falling back to defaults when
// the file is missing, then applies environment overrides.
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) == "" {
		path = DefaultPath
	}
	resolved, err := ExpandPath(path)
	if err != nil {
		return Config{}, err
	}

	data, err := os.ReadFile(resolved)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("read config: %w", err)
	default:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}

	if cfg.Storage.Path != "" && cfg.Storage.Path != ":memory:" {
		if cfg.Storage.Path, err = ExpandPath(cfg.Storage.Path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("EC_API_URL", &cfg.API.BaseURL)
	str("EC_HEALTH_PATH", &cfg.API.HealthPath)
	str("EC_WS_URL", &cfg.Realtime.URL)
	str("EC_KAFKA_TOPIC", &cfg.Realtime.KafkaTopic)
	str("EC_KAFKA_GROUP", &cfg.Realtime.KafkaGroup)
	str("EC_AUDIT_TOPIC", &cfg.Realtime.AuditTopic)
	str("EC_STORAGE_PATH", &cfg.Storage.Path)
	str("EC_LOG_LEVEL", &cfg.Log.Level)
	str("EC_LOG_FORMAT", &cfg.Log.Format)
	str("EC_METRICS_ADDR", &cfg.Metrics.Addr)
	str("EC_USERNAME", &cfg.Credentials.Username)
	str("EC_PASSWORD", &cfg.Credentials.Password)

	if v, ok := lookup("EC_KAFKA_BROKERS"); ok && strings.TrimSpace(v) != "" {
		cfg.Realtime.KafkaBrokers = splitList(v)
	}

	durations := map[string]*Duration{
		"EC_API_TIMEOUT":    &cfg.API.Timeout,
		"EC_CACHE_MAX_AGE":  &cfg.API.CacheMaxAge,
		"EC_WS_BACKOFF":     &cfg.Realtime.Backoff,
		"EC_REFRESH_DELAY":  &cfg.Realtime.RefreshDelay,
		"EC_PROBE_INTERVAL": &cfg.API.ProbeInterval,
	}
	for key, dst := range durations {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			if err := dst.UnmarshalText([]byte(v)); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
		}
	}

	ints := map[string]*int{
		"EC_WS_MAX_RETRIES": &cfg.Realtime.MaxRetries,
		"EC_LOG_CAPACITY":   &cfg.Realtime.LogCapacity,
		"EC_PER_PAGE":       &cfg.Store.PerPage,
	}
	for key, dst := range ints {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}
	return nil
}

// Validate rejects settings the client cannot start with
func (c Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return errors.New("config: api.base_url is required")
	}
	if c.Realtime.MaxRetries < 0 {
		return errors.New("config: realtime.max_retries must not be negative")
	}
	if c.Realtime.LogCapacity < 0 {
		return errors.New("config: realtime.log_capacity must not be negative")
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("config: unknown log.format %q", c.Log.Format)
	}
	return nil
}

// KafkaEnabled reports whether the event topic should be consumed
func (c Config) KafkaEnabled() bool {
	return len(c.Realtime.KafkaBrokers) > 0 && c.Realtime.KafkaTopic != ""
}

// ExpandPath resolves a leading ~ and makes path absolute
func ExpandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
