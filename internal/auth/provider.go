// Package auth implements identity.Provider on top of pluggable
// authenticators and a persisted session.
package auth

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hay-kot/blindchat/internal/core/identity"
)

var _ identity.Provider = (*Provider)(nil)

type watcher struct {
	id int
	fn identity.ChangeFunc
}

// Provider holds the signed-in identity for the process. Sign-in and sign-out
// run in the background; their outcome reaches callers only through Watch.
type Provider struct {
	auth     Authenticator
	sessions identity.SessionStore
	verifier *TokenVerifier
	log      zerolog.Logger

	mu       sync.Mutex
	current  identity.Identity
	signedIn bool
	watchers []watcher
	nextID   int

	// notify serializes state changes with their notifications so watchers
	// observe changes in the order they happened.
	notify sync.Mutex
	wg     sync.WaitGroup
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithVerifier re-verifies the token of a restored session. Sessions whose
// token fails are discarded.
func WithVerifier(v *TokenVerifier) ProviderOption {
	return func(p *Provider) { p.verifier = v }
}

// NewProvider creates a provider and restores any persisted session.
func NewProvider(ctx context.Context, auth Authenticator, sessions identity.SessionStore, log zerolog.Logger, opts ...ProviderOption) *Provider {
	p := &Provider{
		auth:     auth,
		sessions: sessions,
		log:      log,
	}
	for _, opt := range opts {
		opt(p)
	}

	p.restore(ctx)
	return p
}

func (p *Provider) restore(ctx context.Context) {
	sess, err := p.sessions.Load(ctx)
	switch {
	case errors.Is(err, identity.ErrNoSession):
		return
	case err != nil:
		p.log.Warn().Err(err).Msg("failed to load session")
		return
	}

	if !sess.Identity.Valid() {
		p.log.Warn().Msg("discarding session without identity")
		p.discard(ctx)
		return
	}

	if sess.Token != "" && p.verifier != nil {
		if _, err := p.verifier.Verify(sess.Token); err != nil {
			p.log.Info().Err(err).Str("user", sess.Identity.ID).Msg("discarding session with stale token")
			p.discard(ctx)
			return
		}
	}

	p.current = sess.Identity
	p.signedIn = true
	p.log.Debug().Str("user", sess.Identity.ID).Msg("session restored")
}

func (p *Provider) discard(ctx context.Context) {
	if err := p.sessions.Clear(ctx); err != nil {
		p.log.Warn().Err(err).Msg("failed to clear session")
	}
}

func (p *Provider) Current() (identity.Identity, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, p.signedIn
}

func (p *Provider) Watch(fn identity.ChangeFunc) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextID++
	id := p.nextID
	p.watchers = append(p.watchers, watcher{id: id, fn: fn})

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, w := range p.watchers {
			if w.id == id {
				p.watchers = append(p.watchers[:i:i], p.watchers[i+1:]...)
				return
			}
		}
	}
}

// RequestSignIn authenticates in the background. A failed sign-in is logged
// and leaves the current identity untouched.
func (p *Provider) RequestSignIn(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		sess, err := p.auth.Authenticate(ctx)
		if err != nil {
			p.log.Error().Err(err).Msg("sign in failed")
			return
		}

		if err := p.sessions.Save(ctx, sess); err != nil {
			p.log.Error().Err(err).Msg("failed to persist session")
			return
		}

		p.log.Info().Str("user", sess.Identity.ID).Msg("signed in")
		p.set(sess.Identity, true)
	}()
}

// RequestSignOut clears the session in the background.
func (p *Provider) RequestSignOut(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		if err := p.sessions.Clear(ctx); err != nil {
			p.log.Error().Err(err).Msg("failed to clear session")
		}

		p.log.Info().Msg("signed out")
		p.set(identity.Identity{}, false)
	}()
}

// Wait blocks until every requested sign-in and sign-out has finished and its
// watchers have returned.
func (p *Provider) Wait() {
	p.wg.Wait()
}

func (p *Provider) set(id identity.Identity, ok bool) {
	p.notify.Lock()
	defer p.notify.Unlock()

	p.mu.Lock()
	p.current = id
	p.signedIn = ok
	watchers := make([]watcher, len(p.watchers))
	copy(watchers, p.watchers)
	p.mu.Unlock()

	for _, w := range watchers {
		w.fn(id, ok)
	}
}
