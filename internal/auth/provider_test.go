package auth

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/blindchat/internal/core/identity"
)

// mockSessionStore is an in-memory identity.SessionStore.
type mockSessionStore struct {
	mu      sync.Mutex
	sess    *identity.Session
	saveErr error
	cleared int
}

func (m *mockSessionStore) Load(context.Context) (identity.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return identity.Session{}, identity.ErrNoSession
	}
	return *m.sess, nil
}

func (m *mockSessionStore) Save(_ context.Context, sess identity.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.sess = &sess
	return nil
}

func (m *mockSessionStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = nil
	m.cleared++
	return nil
}

type mockAuthenticator struct {
	sess identity.Session
	err  error
}

func (m mockAuthenticator) Authenticate(context.Context) (identity.Session, error) {
	return m.sess, m.err
}

type change struct {
	id identity.Identity
	ok bool
}

type changeRecorder struct {
	mu  sync.Mutex
	got []change
}

func (r *changeRecorder) record(id identity.Identity, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, change{id: id, ok: ok})
}

func (r *changeRecorder) changes() []change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]change(nil), r.got...)
}

var ada = identity.Identity{ID: "u1", AvatarURL: "https://example.com/a.png", Name: "Ada"}

func TestProvider_SignInAndOut(t *testing.T) {
	ctx := context.Background()
	sessions := &mockSessionStore{}
	p := NewProvider(ctx, mockAuthenticator{sess: identity.Session{Identity: ada}}, sessions, zerolog.Nop())

	_, ok := p.Current()
	require.False(t, ok)

	rec := &changeRecorder{}
	p.Watch(rec.record)

	p.RequestSignIn(ctx)
	p.Wait()

	got, ok := p.Current()
	require.True(t, ok)
	assert.Equal(t, ada, got)

	persisted, err := sessions.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, ada, persisted.Identity)

	p.RequestSignOut(ctx)
	p.Wait()

	_, ok = p.Current()
	assert.False(t, ok)
	_, err = sessions.Load(ctx)
	assert.ErrorIs(t, err, identity.ErrNoSession)

	assert.Equal(t, []change{{id: ada, ok: true}, {ok: false}}, rec.changes())
}

func TestProvider_SignInFailureLeavesIdentityAbsent(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		auth     Authenticator
		sessions *mockSessionStore
	}{
		{
			name:     "authenticator error",
			auth:     mockAuthenticator{err: errors.New("denied")},
			sessions: &mockSessionStore{},
		},
		{
			name:     "persist error",
			auth:     mockAuthenticator{sess: identity.Session{Identity: ada}},
			sessions: &mockSessionStore{saveErr: errors.New("disk full")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProvider(ctx, tt.auth, tt.sessions, zerolog.Nop())
			rec := &changeRecorder{}
			p.Watch(rec.record)

			p.RequestSignIn(ctx)
			p.Wait()

			_, ok := p.Current()
			assert.False(t, ok)
			assert.Empty(t, rec.changes())
		})
	}
}

func TestProvider_WatchCancel(t *testing.T) {
	ctx := context.Background()
	p := NewProvider(ctx, mockAuthenticator{sess: identity.Session{Identity: ada}}, &mockSessionStore{}, zerolog.Nop())

	first, second := &changeRecorder{}, &changeRecorder{}
	cancel := p.Watch(first.record)
	p.Watch(second.record)

	cancel()
	cancel()

	p.RequestSignIn(ctx)
	p.Wait()

	assert.Empty(t, first.changes())
	assert.Len(t, second.changes(), 1)
}

func TestProvider_Restore(t *testing.T) {
	ctx := context.Background()

	issuer, err := NewTokenIssuer("s3cret")
	require.NoError(t, err)
	verifier, err := NewTokenVerifier("s3cret")
	require.NoError(t, err)

	valid, err := issuer.Issue(ada, time.Hour)
	require.NoError(t, err)
	expired, err := issuer.Issue(ada, -time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name    string
		sess    *identity.Session
		want    bool
		cleared bool
	}{
		{name: "nothing persisted", sess: nil, want: false},
		{name: "profile session", sess: &identity.Session{Identity: ada}, want: true},
		{name: "valid token", sess: &identity.Session{Identity: ada, Token: valid}, want: true},
		{name: "expired token", sess: &identity.Session{Identity: ada, Token: expired}, want: false, cleared: true},
		{name: "no identity", sess: &identity.Session{}, want: false, cleared: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := &mockSessionStore{sess: tt.sess}
			p := NewProvider(ctx, mockAuthenticator{}, sessions, zerolog.Nop(), WithVerifier(verifier))

			got, ok := p.Current()
			assert.Equal(t, tt.want, ok)
			if tt.want {
				assert.Equal(t, ada, got)
			}
			assert.Equal(t, tt.cleared, sessions.cleared == 1)
		})
	}
}

func TestProfileAuthenticator(t *testing.T) {
	_, err := ProfileAuthenticator{}.Authenticate(context.Background())
	assert.ErrorIs(t, err, ErrNoProfile)

	sess, err := ProfileAuthenticator{Profile: ada}.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ada, sess.Identity)
	assert.False(t, sess.SignedInAt.IsZero())
}

func TestTokenAuthenticator(t *testing.T) {
	issuer, err := NewTokenIssuer("s3cret")
	require.NoError(t, err)
	verifier, err := NewTokenVerifier("s3cret")
	require.NoError(t, err)

	token, err := issuer.Issue(ada, time.Hour)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(path, []byte(token+"\n"), 0o600))

	sess, err := TokenAuthenticator{Path: path, Verifier: verifier}.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ada, sess.Identity)
	assert.NotEmpty(t, sess.Token)

	_, err = TokenAuthenticator{Path: filepath.Join(t.TempDir(), "missing"), Verifier: verifier}.Authenticate(context.Background())
	assert.Error(t, err)
}
