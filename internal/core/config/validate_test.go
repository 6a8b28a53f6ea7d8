package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hay-kot/criterio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validConfig returns a Config with all required fields set for testing.
func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Auth.Profile = Profile{ID: "ada"}
	return &cfg
}

func fieldsOf(t *testing.T, err error) []string {
	t.Helper()
	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)

	fields := make([]string, len(fieldErrs))
	for i, fe := range fieldErrs {
		fields[i] = fe.Field
	}
	return fields
}

func TestValidateDeep_ValidConfig(t *testing.T) {
	cfg := validConfig(t)
	assert.NoError(t, cfg.ValidateDeep(""))
}

func TestValidate_FieldErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{name: "collection", mutate: func(c *Config) { c.Collection = "a/b" }, field: "collection"},
		{name: "backend", mutate: func(c *Config) { c.Store.Backend = "sqlite" }, field: "store.backend"},
		{name: "redis url missing", mutate: func(c *Config) { c.Store.Backend = BackendRedis }, field: "store.redis_url"},
		{name: "redis url invalid", mutate: func(c *Config) {
			c.Store.Backend = BackendRedis
			c.Store.RedisURL = "http://localhost"
		}, field: "store.redis_url"},
		{name: "max messages", mutate: func(c *Config) { c.Store.MaxMessages = 10 }, field: "store.max_messages"},
		{name: "limit", mutate: func(c *Config) { c.Feed.Limit = 0 }, field: "feed.limit"},
		{name: "typing timeout", mutate: func(c *Config) { c.Feed.TypingTimeout = 0 }, field: "feed.typing_timeout"},
		{name: "resubscribe max", mutate: func(c *Config) {
			c.Feed.Resubscribe.Enabled = true
			c.Feed.Resubscribe.Max = 0
		}, field: "feed.resubscribe.max"},
		{name: "auth method", mutate: func(c *Config) { c.Auth.Method = "oauth" }, field: "auth.method"},
		{name: "token secret", mutate: func(c *Config) { c.Auth.Method = AuthToken }, field: "auth.token_secret"},
		{name: "avatar url", mutate: func(c *Config) { c.Auth.Profile.AvatarURL = "ftp://x" }, field: "auth.profile.avatar_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			assert.Contains(t, fieldsOf(t, cfg.Validate()), tt.field)
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := validConfig(t)
	cfg.Collection = ""
	cfg.Store.Backend = "nope"
	cfg.Auth.Method = "nope"

	assert.Len(t, fieldsOf(t, cfg.Validate()), 3)
}

func TestValidateDeep_FileAccess(t *testing.T) {
	cfg := validConfig(t)
	assert.Contains(t, fieldsOf(t, cfg.ValidateDeep(t.TempDir())), "config")

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	cfg.DataDir = file
	assert.Contains(t, fieldsOf(t, cfg.ValidateDeep("")), "data_dir")
}

func TestWarnings(t *testing.T) {
	t.Setenv(EnvTokenSecret, "")

	cfg := validConfig(t)
	assert.Empty(t, cfg.Warnings())

	cfg.Auth.Profile.ID = ""
	cfg.Store.RedisURL = "redis://localhost:6379"
	cfg.Auth.TokenSecret = "inline"

	items := []string{}
	for _, w := range cfg.Warnings() {
		items = append(items, w.Item)
	}
	assert.ElementsMatch(t, []string{"auth.profile.id", "store.redis_url", "auth.token_secret"}, items)
}
