// Package config handles configuration loading and validation for blindchat.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendJSONFile = "jsonfile"
	BackendBadger   = "badger"
	BackendRedis    = "redis"
)

// Sign-in methods.
const (
	AuthProfile = "profile"
	AuthToken   = "token"
)

// EnvTokenSecret overrides auth.token_secret when set.
const EnvTokenSecret = "BLINDCHAT_TOKEN_SECRET"

// Config holds the application configuration.
type Config struct {
	Collection string      `yaml:"collection"`
	Store      StoreConfig `yaml:"store"`
	Feed       FeedConfig  `yaml:"feed"`
	Auth       AuthConfig  `yaml:"auth"`
	TUI        TUIConfig   `yaml:"tui"`
	DataDir    string      `yaml:"-"` // set by caller, not from config file
}

// StoreConfig selects and tunes the message store.
type StoreConfig struct {
	Backend      string        `yaml:"backend"`
	PollInterval time.Duration `yaml:"poll_interval"` // jsonfile only
	MaxMessages  int           `yaml:"max_messages"`  // jsonfile only
	RedisURL     string        `yaml:"redis_url"`
}

// FeedConfig tunes the conversation feed.
type FeedConfig struct {
	Limit         int               `yaml:"limit"`
	TypingTimeout time.Duration     `yaml:"typing_timeout"`
	ConfirmDelete bool              `yaml:"confirm_delete"`
	Resubscribe   ResubscribeConfig `yaml:"resubscribe"`
}

// ResubscribeConfig controls automatic recovery of a failed feed.
type ResubscribeConfig struct {
	Enabled bool          `yaml:"enabled"`
	Initial time.Duration `yaml:"initial"`
	Max     time.Duration `yaml:"max"`
}

// AuthConfig selects how users sign in.
type AuthConfig struct {
	Method      string        `yaml:"method"`
	Profile     Profile       `yaml:"profile"`
	TokenFile   string        `yaml:"token_file"`
	TokenSecret string        `yaml:"token_secret"`
	TokenTTL    time.Duration `yaml:"token_ttl"`
}

// Profile is the identity used by the profile sign-in method.
type Profile struct {
	ID        string `yaml:"id"`
	AvatarURL string `yaml:"avatar_url"`
	Name      string `yaml:"name"`
}

// TUIConfig holds terminal UI options.
type TUIConfig struct {
	Markdown bool `yaml:"markdown"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Collection: "messages",
		Store: StoreConfig{
			Backend:      BackendJSONFile,
			PollInterval: 500 * time.Millisecond,
			MaxMessages:  1000,
		},
		Feed: FeedConfig{
			Limit:         25,
			TypingTimeout: 3 * time.Second,
			ConfirmDelete: true,
			Resubscribe: ResubscribeConfig{
				Enabled: false,
				Initial: time.Second,
				Max:     30 * time.Second,
			},
		},
		Auth: AuthConfig{
			Method:   AuthProfile,
			TokenTTL: 30 * 24 * time.Hour,
		},
		TUI: TUIConfig{
			Markdown: true,
		},
	}
}

// Load reads configuration from the given path and sets the data directory.
// If configPath is empty or doesn't exist, returns defaults with the provided dataDir.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	cfg.DataDir = dataDir

	if secret := os.Getenv(EnvTokenSecret); secret != "" {
		cfg.Auth.TokenSecret = secret
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.Collection == "" {
		c.Collection = defaults.Collection
	}
	if c.Store.Backend == "" {
		c.Store.Backend = defaults.Store.Backend
	}
	if c.Store.PollInterval == 0 {
		c.Store.PollInterval = defaults.Store.PollInterval
	}
	if c.Store.MaxMessages == 0 {
		c.Store.MaxMessages = defaults.Store.MaxMessages
	}
	if c.Feed.Limit == 0 {
		c.Feed.Limit = defaults.Feed.Limit
	}
	if c.Feed.TypingTimeout == 0 {
		c.Feed.TypingTimeout = defaults.Feed.TypingTimeout
	}
	if c.Feed.Resubscribe.Initial == 0 {
		c.Feed.Resubscribe.Initial = defaults.Feed.Resubscribe.Initial
	}
	if c.Feed.Resubscribe.Max == 0 {
		c.Feed.Resubscribe.Max = defaults.Feed.Resubscribe.Max
	}
	if c.Auth.Method == "" {
		c.Auth.Method = defaults.Auth.Method
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = defaults.Auth.TokenTTL
	}
	if c.Auth.TokenFile == "" && c.DataDir != "" {
		c.Auth.TokenFile = filepath.Join(c.DataDir, "token")
	}
}

// SessionFile returns the path to the persisted sign-in.
func (c *Config) SessionFile() string {
	return filepath.Join(c.DataDir, "session.json")
}

// MessagesDir returns the directory used by the jsonfile backend.
func (c *Config) MessagesDir() string {
	return filepath.Join(c.DataDir, "messages")
}

// BadgerDir returns the directory used by the badger backend.
func (c *Config) BadgerDir() string {
	return filepath.Join(c.DataDir, "badger")
}
