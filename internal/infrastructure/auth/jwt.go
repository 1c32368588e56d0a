package auth

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/erp/ordersync/internal/infrastructure/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Operator scopes. Admin implies write, write implies read.
const (
	ScopeRead  = "sync:read"
	ScopeWrite = "sync:write"
	ScopeAdmin = "sync:admin"
)

// MaxTokenTTL bounds the lifetime of issued tokens. Revocation entries are
// kept this long.
const MaxTokenTTL = 30 * 24 * time.Hour

var scopeRank = map[string]int{
	ScopeRead:  1,
	ScopeWrite: 2,
	ScopeAdmin: 3,
}

// Common errors
var (
	ErrAuthDisabled     = errors.New("operator auth is disabled")
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrTokenNotYetValid = errors.New("token is not yet valid")
	ErrInvalidClaims    = errors.New("invalid token claims")
	ErrMissingSubject   = errors.New("missing subject in claims")
	ErrUnknownScope     = errors.New("unknown scope")
	ErrTokenRevoked     = errors.New("token has been revoked")
	ErrTokenTTLTooLong  = errors.New("token lifetime exceeds the maximum")
)

// Claims are the operator token claims
type Claims struct {
	jwt.RegisteredClaims
	Scopes []string `json:"scopes"`
}

// HasScope reports whether the token grants scope, directly or through a
// higher scope.
func (c *Claims) HasScope(scope string) bool {
	need, ok := scopeRank[scope]
	if !ok {
		return false
	}
	for _, s := range c.Scopes {
		if scopeRank[s] >= need {
			return true
		}
	}
	return false
}

// RemainingTTL is the time left before expiry, zero when expired or unset.
func (c *Claims) RemainingTTL(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	if d := c.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// IssuedToken is a freshly signed operator token
type IssuedToken struct {
	Token     string    `json:"token"`
	ID        string    `json:"jti"`
	Subject   string    `json:"subject"`
	Scopes    []string  `json:"scopes"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenService signs and validates HS256 operator tokens
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService builds the service from the http.auth config section.
func NewTokenService(cfg config.AuthConfig) *TokenService {
	return &TokenService{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    cfg.TokenTTL,
		now:    time.Now,
	}
}

// Enabled is false when no signing secret is configured.
func (s *TokenService) Enabled() bool {
	return len(s.secret) > 0
}

// DefaultTTL returns the configured token lifetime
func (s *TokenService) DefaultTTL() time.Duration {
	return s.ttl
}

// ParseScopes splits a comma separated scope list and rejects unknown scopes.
func ParseScopes(raw string) ([]string, error) {
	var scopes []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if _, ok := scopeRank[part]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownScope, part)
		}
		if !slices.Contains(scopes, part) {
			scopes = append(scopes, part)
		}
	}
	if len(scopes) == 0 {
		return nil, fmt.Errorf("%w: no scope given", ErrUnknownScope)
	}
	return scopes, nil
}

// Issue signs a token for subject. ttl <= 0 uses the configured lifetime.
func (s *TokenService) Issue(subject string, scopes []string, ttl time.Duration) (*IssuedToken, error) {
	if !s.Enabled() {
		return nil, ErrAuthDisabled
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, ErrMissingSubject
	}
	for _, sc := range scopes {
		if _, ok := scopeRank[sc]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownScope, sc)
		}
	}
	if ttl <= 0 {
		ttl = s.ttl
	}
	if ttl > MaxTokenTTL {
		return nil, fmt.Errorf("%w: %s", ErrTokenTTLTooLong, ttl)
	}

	now := s.now()
	expires := now.Add(ttl)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expires),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Scopes: scopes,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &IssuedToken{
		Token:     signed,
		ID:        claims.ID,
		Subject:   subject,
		Scopes:    scopes,
		ExpiresAt: expires,
	}, nil
}

// Validate parses a token and checks signature, issuer and time claims.
func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	if !s.Enabled() {
		return nil, ErrAuthDisabled
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, ErrTokenNotYetValid
		case errors.Is(err, jwt.ErrTokenInvalidIssuer):
			return nil, ErrInvalidClaims
		default:
			return nil, ErrInvalidToken
		}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}
	return claims, nil
}
