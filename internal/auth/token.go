package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"

	"github.com/hay-kot/blindchat/internal/core/identity"
)

const tokenIssuer = "blindchat"

var (
	ErrNoSecret     = errors.New("token secret is not configured")
	ErrTokenInvalid = errors.New("identity token is invalid")
	ErrTokenExpired = errors.New("identity token has expired")
)

// Claims is the payload of an identity token. The subject is the identity ID.
type Claims struct {
	Avatar string `json:"avatar,omitempty"`
	Name   string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Identity returns the identity asserted by the claims.
func (c Claims) Identity() identity.Identity {
	return identity.Identity{ID: c.Subject, AvatarURL: c.Avatar, Name: c.Name}
}

// TokenIssuer mints HS256 identity tokens.
type TokenIssuer struct {
	secret []byte
	clock  clockwork.Clock
}

func NewTokenIssuer(secret string) (*TokenIssuer, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	return &TokenIssuer{secret: []byte(secret), clock: clockwork.NewRealClock()}, nil
}

func (i *TokenIssuer) WithClock(clock clockwork.Clock) *TokenIssuer {
	i.clock = clock
	return i
}

// Issue signs a token for id that expires after ttl.
func (i *TokenIssuer) Issue(id identity.Identity, ttl time.Duration) (string, error) {
	if !id.Valid() {
		return "", identity.ErrNoIdentityID
	}

	now := i.clock.Now()
	claims := Claims{
		Avatar: id.AvatarURL,
		Name:   id.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// TokenVerifier checks identity tokens minted by a TokenIssuer with the same
// secret.
type TokenVerifier struct {
	secret []byte
	clock  clockwork.Clock
}

func NewTokenVerifier(secret string) (*TokenVerifier, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	return &TokenVerifier{secret: []byte(secret), clock: clockwork.NewRealClock()}, nil
}

func (v *TokenVerifier) WithClock(clock clockwork.Clock) *TokenVerifier {
	v.clock = clock
	return v
}

// Verify parses token and returns the identity it asserts.
func (v *TokenVerifier) Verify(token string) (identity.Identity, error) {
	var claims Claims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.clock.Now),
	)

	_, err := parser.ParseWithClaims(strings.TrimSpace(token), &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return identity.Identity{}, ErrTokenExpired
		}
		return identity.Identity{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	id := claims.Identity()
	if !id.Valid() {
		return identity.Identity{}, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	return id, nil
}
