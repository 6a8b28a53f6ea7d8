package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"

	"github.com/hay-kot/criterio"
	"github.com/redis/go-redis/v9"
)

var collectionPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Category string `json:"category"`
	Item     string `json:"item,omitempty"`
	Message  string `json:"message"`
}

// Validate checks that the configuration is usable. It returns
// criterio.FieldErrors naming every invalid field.
func (c *Config) Validate() error {
	var errs criterio.FieldErrorsBuilder
	errs = c.validate(errs)
	return errs.ToError()
}

// ValidateDeep runs Validate and also checks the config file and data
// directory on disk.
func (c *Config) ValidateDeep(configPath string) error {
	var errs criterio.FieldErrorsBuilder
	errs = c.validateFileAccess(errs, configPath)
	errs = c.validate(errs)
	return errs.ToError()
}

func (c *Config) validate(errs criterio.FieldErrorsBuilder) criterio.FieldErrorsBuilder {
	if c.DataDir == "" {
		errs = errs.Append("data_dir", fmt.Errorf("cannot be empty"))
	}

	if !collectionPattern.MatchString(c.Collection) {
		errs = errs.Append("collection", fmt.Errorf("%q must contain only letters, digits, '-' and '_'", c.Collection))
	}

	switch c.Store.Backend {
	case BackendJSONFile, BackendBadger:
	case BackendRedis:
		if c.Store.RedisURL == "" {
			errs = errs.Append("store.redis_url", fmt.Errorf("required for the redis backend"))
		} else if _, err := redis.ParseURL(c.Store.RedisURL); err != nil {
			errs = errs.Append("store.redis_url", err)
		}
	default:
		errs = errs.Append("store.backend", fmt.Errorf("unknown backend %q (want jsonfile, badger or redis)", c.Store.Backend))
	}

	if c.Store.PollInterval < 0 {
		errs = errs.Append("store.poll_interval", fmt.Errorf("must be positive"))
	}
	if c.Store.MaxMessages < c.Feed.Limit {
		errs = errs.Append("store.max_messages", fmt.Errorf("must be at least feed.limit (%d)", c.Feed.Limit))
	}

	if c.Feed.Limit < 1 || c.Feed.Limit > 1000 {
		errs = errs.Append("feed.limit", fmt.Errorf("must be between 1 and 1000"))
	}
	if c.Feed.TypingTimeout <= 0 {
		errs = errs.Append("feed.typing_timeout", fmt.Errorf("must be positive"))
	}
	if r := c.Feed.Resubscribe; r.Enabled {
		if r.Initial <= 0 {
			errs = errs.Append("feed.resubscribe.initial", fmt.Errorf("must be positive"))
		}
		if r.Max < r.Initial {
			errs = errs.Append("feed.resubscribe.max", fmt.Errorf("must not be less than initial"))
		}
	}

	switch c.Auth.Method {
	case AuthProfile:
	case AuthToken:
		if c.Auth.TokenSecret == "" {
			errs = errs.Append("auth.token_secret", fmt.Errorf("required for token sign-in (or set %s)", EnvTokenSecret))
		}
	default:
		errs = errs.Append("auth.method", fmt.Errorf("unknown method %q (want profile or token)", c.Auth.Method))
	}

	if c.Auth.TokenTTL <= 0 {
		errs = errs.Append("auth.token_ttl", fmt.Errorf("must be positive"))
	}

	if avatar := c.Auth.Profile.AvatarURL; avatar != "" {
		if u, err := url.Parse(avatar); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errs = errs.Append("auth.profile.avatar_url", fmt.Errorf("%q is not an http(s) URL", avatar))
		}
	}

	return errs
}

func (c *Config) validateFileAccess(errs criterio.FieldErrorsBuilder, configPath string) criterio.FieldErrorsBuilder {
	if configPath != "" {
		info, err := os.Stat(configPath)
		switch {
		case err == nil && info.IsDir():
			errs = errs.Append("config", fmt.Errorf("%s is a directory, not a file", configPath))
		case err != nil && !os.IsNotExist(err):
			errs = errs.Append("config", fmt.Errorf("cannot access %s: %w", configPath, err))
		}
	}

	if c.DataDir != "" {
		if info, err := os.Stat(c.DataDir); err == nil && !info.IsDir() {
			errs = errs.Append("data_dir", fmt.Errorf("%s is not a directory", c.DataDir))
		}
	}

	return errs
}

// Warnings returns non-fatal issues with the configuration.
func (c *Config) Warnings() []ValidationWarning {
	var warnings []ValidationWarning

	if c.Auth.Method == AuthProfile && c.Auth.Profile.ID == "" {
		warnings = append(warnings, ValidationWarning{
			Category: "Auth",
			Item:     "auth.profile.id",
			Message:  "no profile configured; login will prompt for one",
		})
	}

	if c.Store.Backend != BackendRedis && c.Store.RedisURL != "" {
		warnings = append(warnings, ValidationWarning{
			Category: "Store",
			Item:     "store.redis_url",
			Message:  fmt.Sprintf("ignored by the %s backend", c.Store.Backend),
		})
	}

	if c.Auth.TokenSecret != "" && os.Getenv(EnvTokenSecret) == "" {
		warnings = append(warnings, ValidationWarning{
			Category: "Auth",
			Item:     "auth.token_secret",
			Message:  fmt.Sprintf("secret is stored in the config file; prefer %s", EnvTokenSecret),
		})
	}

	return warnings
}
