// Package config loads the companion client configuration from a YAML file,
// with overrides from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvBackendURL     = "COMPANION_BACKEND_URL"
	EnvEventsURL      = "COMPANION_EVENTS_URL"
	EnvAPIKey         = "COMPANION_API_KEY"
	EnvConversationID = "COMPANION_CONVERSATION_ID"
	EnvLogFile        = "COMPANION_LOG_FILE"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	ConversationID string         `yaml:"conversation_id"`
	Backend        BackendConfig  `yaml:"backend"`
	Playback       PlaybackConfig `yaml:"playback"`
	Capture        CaptureConfig  `yaml:"capture"`
	Log            LogConfig      `yaml:"log"`
}

type BackendConfig struct {
	// BaseURL serves the conversation REST API.
	BaseURL string `yaml:"base_url"`
	// EventsURL is the websocket carrying speech fragments.
	EventsURL string        `yaml:"events_url"`
	APIKey    string        `yaml:"api_key,omitempty"`
	Timeout   time.Duration `yaml:"timeout"`
}

type PlaybackConfig struct {
	// Enabled plays audio on the local output device.
	Enabled          bool          `yaml:"enabled"`
	Cooldown         time.Duration `yaml:"cooldown"`
	SettlingDelay    time.Duration `yaml:"settling_delay"`
	DefaultMediaType string        `yaml:"default_media_type"`
}

type CaptureConfig struct {
	Enabled    bool `yaml:"enabled"`
	SampleRate int  `yaml:"sample_rate"`
	Channels   int  `yaml:"channels"`
}

type LogConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL:   "http://localhost:8080/api",
			EventsURL: "ws://localhost:8080/events",
			Timeout:   30 * time.Second,
		},
		Playback: PlaybackConfig{
			Enabled:          true,
			Cooldown:         500 * time.Millisecond,
			SettlingDelay:    time.Second,
			DefaultMediaType: "audio/wav",
		},
		Capture: CaptureConfig{
			Enabled:    true,
			SampleRate: 16000,
			Channels:   1,
		},
		Log: LogConfig{
			File:  "companion.log",
			Level: "info",
		},
	}
}

// Load reads path, creating it with defaults when it does not exist, then
// applies environment overrides. envFiles are loaded first without
// overriding variables that are already set.
func Load(path string, envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := Persist(cfg, path); err != nil {
			return nil, err
		}
		slog.Info("created default config file", "path", path)
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, cfg.Validate()
}

func Persist(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	override := func(target *string, key string) {
		if value, ok := os.LookupEnv(key); ok && value != "" {
			*target = value
		}
	}
	override(&c.Backend.BaseURL, EnvBackendURL)
	override(&c.Backend.EventsURL, EnvEventsURL)
	override(&c.Backend.APIKey, EnvAPIKey)
	override(&c.ConversationID, EnvConversationID)
	override(&c.Log.File, EnvLogFile)
}

func (c *Config) Validate() error {
	problems := []string{}

	if err := validateURL(c.Backend.BaseURL, "http", "https"); err != nil {
		problems = append(problems, "backend.base_url: "+err.Error())
	}
	if c.Backend.EventsURL != "" {
		if err := validateURL(c.Backend.EventsURL, "ws", "wss"); err != nil {
			problems = append(problems, "backend.events_url: "+err.Error())
		}
	}
	if c.Backend.Timeout < 0 {
		problems = append(problems, "backend.timeout: must not be negative")
	}
	if c.Playback.Cooldown < 0 {
		problems = append(problems, "playback.cooldown: must not be negative")
	}
	if c.Playback.SettlingDelay < 0 {
		problems = append(problems, "playback.settling_delay: must not be negative")
	}
	if c.Capture.Enabled {
		if c.Capture.SampleRate <= 0 {
			problems = append(problems, "capture.sample_rate: must be positive")
		}
		if c.Capture.Channels <= 0 {
			problems = append(problems, "capture.channels: must be positive")
		}
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		problems = append(problems, "log.level: "+err.Error())
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if l.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, err
	}
	return level, nil
}

func validateURL(raw string, schemes ...string) error {
	if raw == "" {
		return errors.New("is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, scheme := range schemes {
		if parsed.Scheme == scheme {
			return nil
		}
	}
	return fmt.Errorf("scheme must be one of %s", strings.Join(schemes, ", "))
}
