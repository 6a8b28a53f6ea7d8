// Package identity defines the signed-in user and the provider contract.
package identity

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNoSession is returned when no sign-in has been persisted.
	ErrNoSession = errors.New("no session")
	// ErrNoIdentityID is returned when an identity without an ID is used.
	ErrNoIdentityID = errors.New("identity has no id")
)

// Identity is an authenticated user as asserted by a Provider.
type Identity struct {
	ID        string `json:"id"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Name      string `json:"name,omitempty"`
}

// Valid returns true if the identity carries an ID.
func (i Identity) Valid() bool {
	return i.ID != ""
}

// ChangeFunc is called with the current identity whenever it changes. ok is
// false when the user is signed out.
type ChangeFunc func(id Identity, ok bool)

// Provider issues the current identity and notifies watchers when it changes.
type Provider interface {
	// Current returns the signed-in identity, if any.
	Current() (Identity, bool)
	// Watch registers fn for change notifications. The returned func removes it.
	Watch(fn ChangeFunc) (cancel func())
	// RequestSignIn starts a sign-in. The outcome is only observable via Watch.
	RequestSignIn(ctx context.Context)
	// RequestSignOut starts a sign-out. The outcome is only observable via Watch.
	RequestSignOut(ctx context.Context)
}

// Session is a persisted sign-in.
type Session struct {
	Identity   Identity  `json:"identity"`
	Token      string    `json:"token,omitempty"`
	SignedInAt time.Time `json:"signed_in_at"`
}

// SessionStore persists the current session.
type SessionStore interface {
	// Load returns the persisted session. Returns ErrNoSession if there is none.
	Load(ctx context.Context) (Session, error)
	// Save replaces the persisted session.
	Save(ctx context.Context, sess Session) error
	// Clear removes the persisted session. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}
