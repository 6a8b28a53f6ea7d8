package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/hay-kot/blindchat/internal/core/identity"
)

// ErrNoProfile is returned when profile sign-in has no configured user ID.
var ErrNoProfile = errors.New("no profile configured")

// Authenticator performs a sign-in and returns the session to persist.
type Authenticator interface {
	Authenticate(ctx context.Context) (identity.Session, error)
}

// ProfileAuthenticator signs in as a fixed, locally configured identity.
type ProfileAuthenticator struct {
	Profile identity.Identity
	Clock   clockwork.Clock
}

func (a ProfileAuthenticator) Authenticate(ctx context.Context) (identity.Session, error) {
	if !a.Profile.Valid() {
		return identity.Session{}, ErrNoProfile
	}
	return identity.Session{Identity: a.Profile, SignedInAt: now(a.Clock)}, nil
}

// TokenAuthenticator signs in with an identity token read from a file.
type TokenAuthenticator struct {
	Path     string
	Verifier *TokenVerifier
	Clock    clockwork.Clock
}

func (a TokenAuthenticator) Authenticate(ctx context.Context) (identity.Session, error) {
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return identity.Session{}, fmt.Errorf("read token file: %w", err)
	}

	token := strings.TrimSpace(string(data))
	id, err := a.Verifier.Verify(token)
	if err != nil {
		return identity.Session{}, err
	}

	return identity.Session{Identity: id, Token: token, SignedInAt: now(a.Clock)}, nil
}

func now(clock clockwork.Clock) time.Time {
	if clock == nil {
		return time.Now().UTC()
	}
	return clock.Now().UTC()
}
