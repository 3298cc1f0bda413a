// Package auth guards the API with a single configured administrator account
// and short-lived HS256 bearer tokens.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid token")
)

// Claims is the token payload; the subject is the admin email.
type Claims struct {
	jwt.RegisteredClaims
}

// Token is returned on successful login.
type Token struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Gate checks credentials and issues/verifies tokens.
type Gate struct {
	email  string
	hash   []byte
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewGate hashes password once so it is never kept in plain text.
func NewGate(email, password string, secret []byte, ttl time.Duration) (*Gate, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("admin email and password are required")
	}
	if len(secret) == 0 {
		return nil, fmt.Errorf("token secret is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}
	return &Gate{
		email:  strings.ToLower(strings.TrimSpace(email)),
		hash:   hash,
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Login returns a fresh token for the admin account.
func (g *Gate) Login(email, password string) (Token, error) {
	given := strings.ToLower(strings.TrimSpace(email))
	emailOK := subtle.ConstantTimeCompare([]byte(given), []byte(g.email)) == 1
	// always run bcrypt so a wrong email costs the same as a wrong password
	pwErr := bcrypt.CompareHashAndPassword(g.hash, []byte(password))
	if !emailOK || pwErr != nil {
		return Token{}, ErrInvalidCredentials
	}
	return g.Issue(g.email)
}

// Issue signs a token for subject.
func (g *Gate) Issue(subject string) (Token, error) {
	now := g.now()
	exp := now.Add(g.ttl)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	signed, err := tok.SignedString(g.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{Token: signed, ExpiresAt: exp.UTC().Truncate(time.Second)}, nil
}

// Verify returns the token subject. Any parse, signature or expiry failure
// wraps ErrInvalidToken.
func (g *Gate) Verify(token string) (string, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return g.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(g.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject != g.email {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(header[len(prefix):])
	return tok, tok != ""
}

type subjectKey struct{}

func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey{}, subject)
}

// SubjectFrom returns the authenticated subject stored by WithSubject.
func SubjectFrom(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(subjectKey{}).(string)
	return s, ok
}
