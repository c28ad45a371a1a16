package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar points at an optional YAML file layered under the environment.
const ConfigPathEnvVar = "CONFIG_PATH"

// Config contains runtime configuration required by the service.
// It is built once at boot and treated as read-only afterwards.
type Config struct {
	DB           DBConfig           `koanf:"db"`
	Server       ServerConfig       `koanf:"server"`
	Reports      ReportsConfig      `koanf:"reports"`
	Leaderboard  LeaderboardConfig  `koanf:"leaderboard"`
	Upstream     UpstreamConfig     `koanf:"upstream"`
	Geocoder     GeocoderConfig     `koanf:"geocoder"`
	Autocomplete AutocompleteConfig `koanf:"autocomplete"`
	Identity     IdentityConfig     `koanf:"identity"`
	Feedback     FeedbackConfig     `koanf:"feedback"`
	Log          LogConfig          `koanf:"log"`

	// Location is Reports.Timezone resolved by Load.
	Location *time.Location `koanf:"-"`
}

type DBConfig struct {
	// URL is a Postgres connection string, or memory:// for an in-process store.
	URL string `koanf:"url"`
}

type ServerConfig struct {
	Addr string `koanf:"addr"`
}

type ReportsConfig struct {
	// Timezone defines the calendar day used by today's metrics.
	Timezone string `koanf:"timezone"`
}

type LeaderboardConfig struct {
	WindowDays int `koanf:"window_days"`
	Limit      int `koanf:"limit"`
}

type UpstreamConfig struct {
	// Timeout bounds every store read on the leaderboard and metrics paths.
	Timeout time.Duration `koanf:"timeout"`
}

type GeocoderConfig struct {
	BaseURL        string        `koanf:"base_url"`
	UserAgent      string        `koanf:"user_agent"`
	AcceptLanguage string        `koanf:"accept_language"`
	MaxResults     int           `koanf:"max_results"`
	Timeout        time.Duration `koanf:"timeout"`
	MinInterval    time.Duration `koanf:"min_interval"`
}

type AutocompleteConfig struct {
	Debounce time.Duration `koanf:"debounce"`
	MinChars int           `koanf:"min_chars"`
}

type IdentityConfig struct {
	// Mode is jwt (verify locally with JWTSecret) or remote (ask the provider).
	Mode        string `koanf:"mode"`
	JWTSecret   string `koanf:"jwt_secret"`
	ProviderURL string `koanf:"provider_url"`
	APIKey      string `koanf:"api_key"`
}

type FeedbackConfig struct {
	AdminUserIDs   []string `koanf:"admin_user_ids"`
	SendGridAPIKey string   `koanf:"sendgrid_api_key"`
	NotifyFrom     string   `koanf:"notify_from"`
	NotifyTo       string   `koanf:"notify_to"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func defaultConfig() Config {
	return Config{
		Server:      ServerConfig{Addr: ":8080"},
		Reports:     ReportsConfig{Timezone: "UTC"},
		Leaderboard: LeaderboardConfig{WindowDays: 30, Limit: 10},
		Upstream:    UpstreamConfig{Timeout: 5 * time.Second},
		Geocoder: GeocoderConfig{
			BaseURL:        "https://nominatim.openstreetmap.org",
			UserAgent:      "StrayWatch/1.0 (contact@straywatch.local)",
			AcceptLanguage: "en",
			MaxResults:     5,
			Timeout:        10 * time.Second,
			MinInterval:    time.Second,
		},
		Autocomplete: AutocompleteConfig{Debounce: 300 * time.Millisecond, MinChars: 3},
		Identity:     IdentityConfig{Mode: "jwt"},
		Feedback: FeedbackConfig{
			NotifyFrom: "feedback@straywatch.org",
			NotifyTo:   "info@straywatch.org",
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// sections are the top-level keys an environment variable may address.
// DB_URL -> db.url, GEOCODER_BASE_URL -> geocoder.base_url.
var sections = []string{
	"db", "server", "reports", "leaderboard", "upstream", "geocoder",
	"autocomplete", "identity", "feedback", "log",
}

var sliceKeys = []string{"feedback.admin_user_ids"}

func envTransform(key string) string {
	key = strings.ToLower(key)
	for _, s := range sections {
		if strings.HasPrefix(key, s+"_") {
			return s + "." + strings.TrimPrefix(key, s+"_")
		}
	}
	return ""
}

// Load reads defaults, then an optional YAML file, then environment variables.
// A .env file in the working directory is loaded first when present.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	if err := splitSlices(k); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// splitSlices turns comma-separated env values into string slices.
func splitSlices(k *koanf.Koanf) error {
	for _, key := range sliceKeys {
		s, ok := k.Get(key).(string)
		if !ok {
			continue
		}
		parts := make([]string, 0)
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(key, parts); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}
	return nil
}

func (c *Config) validate() error {
	c.DB.URL = strings.TrimSpace(c.DB.URL)
	if c.DB.URL == "" {
		return errors.New("DB_URL required")
	}

	loc, err := time.LoadLocation(c.Reports.Timezone)
	if err != nil {
		return fmt.Errorf("REPORTS_TIMEZONE %q: %w", c.Reports.Timezone, err)
	}
	c.Location = loc

	if c.Leaderboard.WindowDays <= 0 {
		return errors.New("LEADERBOARD_WINDOW_DAYS must be positive")
	}
	if c.Leaderboard.Limit <= 0 {
		return errors.New("LEADERBOARD_LIMIT must be positive")
	}
	if c.Geocoder.MaxResults <= 0 {
		return errors.New("GEOCODER_MAX_RESULTS must be positive")
	}
	if c.Autocomplete.MinChars <= 0 || c.Autocomplete.Debounce <= 0 {
		return errors.New("AUTOCOMPLETE_MIN_CHARS and AUTOCOMPLETE_DEBOUNCE must be positive")
	}

	switch c.Identity.Mode {
	case "jwt":
		if c.Identity.JWTSecret == "" {
			return errors.New(`IDENTITY_JWT_SECRET required when IDENTITY_MODE is "jwt"`)
		}
	case "remote":
		if c.Identity.ProviderURL == "" {
			return errors.New(`IDENTITY_PROVIDER_URL required when IDENTITY_MODE is "remote"`)
		}
	default:
		return fmt.Errorf(`IDENTITY_MODE must be "jwt" or "remote", got %q`, c.Identity.Mode)
	}
	return nil
}

// IsAdmin reports whether userID may read submitted feedback.
func (c Config) IsAdmin(userID string) bool {
	for _, id := range c.Feedback.AdminUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}
