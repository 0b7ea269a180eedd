package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ListenAddr  string
	DatabaseURL string // empty disables the attempt ledger
	BaseURL     string

	Headless    bool
	SessionFile string
	MasterKey   []byte // optional, 32 bytes

	StepTimeout          time.Duration
	MaxAttempts          int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	GuestStepBudget      int

	WatchInterval time.Duration
	LogLevel      string
}

// envNames lists the environment variables read for each key. TOCK_<KEY>
// always works; a few keys also accept the conventional unprefixed name.
var envNames = map[string][]string{
	"listen_addr":            {"TOCK_LISTEN_ADDR", "LISTEN_ADDR"},
	"database_url":           {"TOCK_DATABASE_URL", "DATABASE_URL"},
	"base_url":               {"TOCK_BASE_URL"},
	"headless":               {"TOCK_HEADLESS"},
	"session_file":           {"TOCK_SESSION_FILE"},
	"master_key":             {"TOCK_MASTER_KEY"},
	"step_timeout":           {"TOCK_STEP_TIMEOUT"},
	"max_attempts":           {"TOCK_MAX_ATTEMPTS"},
	"retry_initial_interval": {"TOCK_RETRY_INITIAL_INTERVAL"},
	"retry_max_interval":     {"TOCK_RETRY_MAX_INTERVAL"},
	"guest_step_budget":      {"TOCK_GUEST_STEP_BUDGET"},
	"watch_interval":         {"TOCK_WATCH_INTERVAL"},
	"log_level":              {"TOCK_LOG_LEVEL"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("base_url", "https://www.exploretock.com")
	v.SetDefault("headless", true)
	v.SetDefault("session_file", defaultSessionFile())
	v.SetDefault("step_timeout", "30s")
	v.SetDefault("max_attempts", 3)
	v.SetDefault("retry_initial_interval", "500ms")
	v.SetDefault("retry_max_interval", "5s")
	v.SetDefault("guest_step_budget", 0)
	v.SetDefault("watch_interval", "30s")
	v.SetDefault("log_level", "info")
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".tockbook-session"
	}
	return dir + "/tockbook/session"
}

// FromEnv reads settings from the environment only.
func FromEnv() (Config, error) { return Load(viper.New(), "") }

// Load reads settings from file (optional, any format viper understands) with
// environment variables taking precedence.
func Load(v *viper.Viper, file string) (Config, error) {
	setDefaults(v)
	for key, names := range envNames {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", key, err)
		}
	}
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	cfg := Config{
		ListenAddr:      strings.TrimSpace(v.GetString("listen_addr")),
		DatabaseURL:     strings.TrimSpace(v.GetString("database_url")),
		BaseURL:         strings.TrimRight(strings.TrimSpace(v.GetString("base_url")), "/"),
		Headless:        v.GetBool("headless"),
		SessionFile:     strings.TrimSpace(v.GetString("session_file")),
		MaxAttempts:     v.GetInt("max_attempts"),
		GuestStepBudget: v.GetInt("guest_step_budget"),
		LogLevel:        v.GetString("log_level"),
	}

	var err error
	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"step_timeout", &cfg.StepTimeout},
		{"retry_initial_interval", &cfg.RetryInitialInterval},
		{"retry_max_interval", &cfg.RetryMaxInterval},
		{"watch_interval", &cfg.WatchInterval},
	}
	for _, d := range durations {
		if *d.dst, err = parseDuration(v.GetString(d.key)); err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", strings.ToUpper(d.key), err)
		}
	}

	if cfg.MaxAttempts < 1 {
		return Config{}, fmt.Errorf("MAX_ATTEMPTS must be >= 1 (got %d)", cfg.MaxAttempts)
	}
	if cfg.GuestStepBudget < 0 {
		return Config{}, fmt.Errorf("GUEST_STEP_BUDGET must be >= 0 (got %d)", cfg.GuestStepBudget)
	}
	if !strings.HasPrefix(cfg.BaseURL, "http://") && !strings.HasPrefix(cfg.BaseURL, "https://") {
		return Config{}, fmt.Errorf("BASE_URL must be an http(s) URL (got %q)", cfg.BaseURL)
	}

	if raw := strings.TrimSpace(v.GetString("master_key")); raw != "" {
		cfg.MasterKey, err = decodeKey(raw)
		if err != nil {
			return Config{}, fmt.Errorf("MASTER_KEY: %w", err)
		}
		if len(cfg.MasterKey) != 32 {
			return Config{}, fmt.Errorf("MASTER_KEY must decode to 32 bytes (got %d)", len(cfg.MasterKey))
		}
	}
	return cfg, nil
}

func parseDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive (got %s)", d)
	}
	return d, nil
}

// decodeKey accepts base64 or a path to a file holding base64, which is how
// mounted secrets usually arrive.
func decodeKey(s string) ([]byte, error) {
	if b, err := os.ReadFile(s); err == nil {
		s = string(b)
	}
	s = strings.TrimSpace(s)
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}
