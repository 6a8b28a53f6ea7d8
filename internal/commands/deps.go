package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/hay-kot/blindchat/internal/auth"
	"github.com/hay-kot/blindchat/internal/core/chat"
	"github.com/hay-kot/blindchat/internal/core/config"
	"github.com/hay-kot/blindchat/internal/core/identity"
	"github.com/hay-kot/blindchat/internal/feed"
	"github.com/hay-kot/blindchat/internal/store/badgerstore"
	"github.com/hay-kot/blindchat/internal/store/jsonfile"
	"github.com/hay-kot/blindchat/internal/store/redisstore"
)

var errConfigNotLoaded = errors.New("configuration not loaded")

// openStore opens the configured message store. The returned func releases it.
func openStore(ctx context.Context, cfg *config.Config) (chat.Store, func() error, error) {
	logger := log.With().Str("component", "store").Str("backend", cfg.Store.Backend).Logger()

	switch cfg.Store.Backend {
	case config.BackendJSONFile:
		s := jsonfile.NewMsgStore(cfg.MessagesDir(), cfg.Collection).
			WithMaxMessages(cfg.Store.MaxMessages).
			WithPollInterval(cfg.Store.PollInterval)
		return s, func() error { return nil }, nil
	case config.BackendBadger:
		s, err := badgerstore.Open(cfg.BadgerDir(), cfg.Collection, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.BackendRedis:
		s, err := redisstore.Connect(ctx, cfg.Store.RedisURL, cfg.Collection, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// authenticator builds the configured sign-in method. tokenFile overrides
// auth.token_file when set.
func authenticator(cfg *config.Config, tokenFile string) (auth.Authenticator, error) {
	switch cfg.Auth.Method {
	case config.AuthProfile:
		return auth.ProfileAuthenticator{Profile: identity.Identity{
			ID:        cfg.Auth.Profile.ID,
			AvatarURL: cfg.Auth.Profile.AvatarURL,
			Name:      cfg.Auth.Profile.Name,
		}}, nil
	case config.AuthToken:
		verifier, err := auth.NewTokenVerifier(cfg.Auth.TokenSecret)
		if err != nil {
			return nil, err
		}
		if tokenFile == "" {
			tokenFile = cfg.Auth.TokenFile
		}
		return auth.TokenAuthenticator{Path: tokenFile, Verifier: verifier}, nil
	default:
		return nil, fmt.Errorf("unknown auth method %q", cfg.Auth.Method)
	}
}

// newProvider restores the persisted session and signs in through a.
func newProvider(ctx context.Context, cfg *config.Config, a auth.Authenticator) *auth.Provider {
	var opts []auth.ProviderOption
	if cfg.Auth.TokenSecret != "" {
		if v, err := auth.NewTokenVerifier(cfg.Auth.TokenSecret); err == nil {
			opts = append(opts, auth.WithVerifier(v))
		}
	}

	logger := log.With().Str("component", "auth").Logger()
	return auth.NewProvider(ctx, a, jsonfile.NewSessionStore(cfg.SessionFile()), logger, opts...)
}

// feedOptions maps the feed config onto controller options.
func feedOptions(cfg *config.Config) feed.Options {
	opts := feed.DefaultOptions()
	if cfg == nil {
		return opts
	}
	opts.Limit = cfg.Feed.Limit
	opts.TypingTimeout = cfg.Feed.TypingTimeout
	opts.ConfirmDelete = cfg.Feed.ConfirmDelete
	opts.Resubscribe = feed.ResubscribePolicy{
		Enabled: cfg.Feed.Resubscribe.Enabled,
		Initial: cfg.Feed.Resubscribe.Initial,
		Max:     cfg.Feed.Resubscribe.Max,
	}
	opts.Logger = log.Logger
	return opts
}

// session bundles everything a command needs to talk to the conversation.
type session struct {
	store    chat.Store
	provider *auth.Provider
	feed     *feed.Controller
	close    func() error
}

// openSession opens the store and identity provider and starts a controller.
func openSession(ctx context.Context, cfg *config.Config, opts feed.Options) (*session, error) {
	if cfg == nil {
		return nil, errConfigNotLoaded
	}

	a, err := authenticator(cfg, "")
	if err != nil {
		return nil, err
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	provider := newProvider(ctx, cfg, a)
	c := feed.New(store, provider, opts)
	c.Start(ctx)

	return &session{
		store:    store,
		provider: provider,
		feed:     c,
		close:    closeStore,
	}, nil
}

// Close stops the controller, waits for pending writes and releases the store.
func (s *session) Close() error {
	s.feed.Close()
	s.feed.Wait()
	s.provider.Wait()
	return s.close()
}

// awaitLoaded blocks until the first snapshot or a subscription failure.
func awaitLoaded(ctx context.Context, c *feed.Controller) (feed.View, error) {
	for {
		v := c.State()
		switch {
		case !v.SignedIn:
			return v, errNotSignedIn
		case v.Banner != nil:
			return v, v.Banner
		case v.Loaded:
			return v, nil
		}

		select {
		case <-ctx.Done():
			return v, ctx.Err()
		case <-c.Changes():
		}
	}
}

var errNotSignedIn = errors.New("not signed in, run 'blindchat login' first")
