// Package auth issues and verifies session tokens and hashes passwords.
//
// A token is an HS256 JWT carrying the user's id, login and access level.
// The last token issued to a user is stored with the user; a token that is
// no longer the stored one (after logout or a newer login) is rejected
// even before it expires.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/guaruja-saneamento/adesoes/internal/core"
)

var (
	// ErrMissingToken means the request carried no bearer token.
	ErrMissingToken = errors.New("missing token")
	// ErrInvalidToken covers bad signatures, malformed and expired tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrSessionRevoked means the token is not the user's current session.
	ErrSessionRevoked = errors.New("session revoked")
	// ErrForbidden means the caller's role may not perform the request.
	ErrForbidden = errors.New("forbidden")
)

// Defaults applied when Options leaves a field zero.
const (
	DefaultTokenTTL          = 8 * time.Hour
	DefaultBcryptCost        = 10
	DefaultMinPasswordLength = 8
)

// Claims are the session token claims.
type Claims struct {
	ID          int64  `json:"id"`
	Login       string `json:"login_usuario"`
	NivelAcesso string `json:"nivel_acesso"`
	jwt.RegisteredClaims
}

// UserStore is the user storage the authenticator needs. core.Service
// implements it.
type UserStore interface {
	UserByLogin(ctx context.Context, login string) (*core.User, error)
	UserByID(ctx context.Context, id int64) (*core.User, error)
	SetSessionToken(ctx context.Context, id int64, token string) error
}

// Options configures an Authenticator.
type Options struct {
	Secret            []byte
	TokenTTL          time.Duration
	BcryptCost        int
	MinPasswordLength int

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Authenticator logs users in and verifies their tokens.
type Authenticator struct {
	store       UserStore
	secret      []byte
	ttl         time.Duration
	cost        int
	minPassword int
	now         func() time.Time
}

// New returns an Authenticator over store.
func New(store UserStore, opts Options) *Authenticator {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = DefaultTokenTTL
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = DefaultBcryptCost
	}
	if opts.MinPasswordLength <= 0 {
		opts.MinPasswordLength = DefaultMinPasswordLength
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Authenticator{
		store:       store,
		secret:      opts.Secret,
		ttl:         opts.TokenTTL,
		cost:        opts.BcryptCost,
		minPassword: opts.MinPasswordLength,
		now:         opts.Now,
	}
}

// HashPassword checks the minimum length and returns the bcrypt hash.
func (a *Authenticator) HashPassword(password string) (string, error) {
	if len(password) < a.minPassword {
		return "", fmt.Errorf("%w: minimum %d characters", core.ErrPasswordTooShort, a.minPassword)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Login checks the credentials, issues a token and makes it the user's
// current session. Unknown logins and wrong passwords both return
// core.ErrInvalidCredentials.
func (a *Authenticator) Login(ctx context.Context, login, password string) (string, *core.User, error) {
	u, err := a.store.UserByLogin(ctx, login)
	if errors.Is(err, core.ErrNotFound) {
		return "", nil, core.ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}
	if u.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", nil, core.ErrInvalidCredentials
	}

	token, err := a.Issue(u)
	if err != nil {
		return "", nil, err
	}
	if err := a.store.SetSessionToken(ctx, u.ID, token); err != nil {
		return "", nil, err
	}
	u.SessionToken = token
	return token, u, nil
}

// Issue signs a token for u.
func (a *Authenticator) Issue(u *core.User) (string, error) {
	now := a.now()
	claims := Claims{
		ID:          u.ID,
		Login:       u.Login,
		NivelAcesso: u.NivelAcesso,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse validates the signature and expiry of token.
func (a *Authenticator) Parse(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// Verify parses token and checks it is still the user's current session.
// The returned Caller carries the role and permissions stored now, not the
// ones in the token.
func (a *Authenticator) Verify(ctx context.Context, token string) (core.Caller, error) {
	claims, err := a.Parse(token)
	if err != nil {
		return core.Caller{}, err
	}

	u, err := a.store.UserByID(ctx, claims.ID)
	if errors.Is(err, core.ErrNotFound) {
		return core.Caller{}, ErrSessionRevoked
	}
	if err != nil {
		return core.Caller{}, err
	}
	if u.SessionToken != token {
		return core.Caller{}, ErrSessionRevoked
	}

	return core.Caller{
		ID:          u.ID,
		Login:       u.Login,
		Role:        u.NivelAcesso,
		Permissions: u.Permissions,
	}, nil
}

// Logout ends the caller's session.
func (a *Authenticator) Logout(ctx context.Context, c core.Caller) error {
	return a.store.SetSessionToken(ctx, c.ID, "")
}

// RequireRole returns ErrForbidden unless c has one of roles.
func RequireRole(c core.Caller, roles ...string) error {
	for _, r := range roles {
		if c.Role == r {
			return nil
		}
	}
	return ErrForbidden
}
