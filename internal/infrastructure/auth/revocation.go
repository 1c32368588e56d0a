package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationList invalidates operator tokens before they expire, either one
// token by jti or every token issued to a subject up to now.
type RevocationList interface {
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
	RevokeSubject(ctx context.Context, subject string, ttl time.Duration) error
	// IsRevoked reports whether the token identified by claims was revoked
	// directly or through its subject.
	IsRevoked(ctx context.Context, claims *Claims) (bool, error)
}

// RedisRevocationList stores revocations in Redis so every instance sees them
type RedisRevocationList struct {
	client    redis.UniversalClient
	keyPrefix string
	now       func() time.Time
}

// NewRedisRevocationList uses keyPrefix+"jti:" and keyPrefix+"sub:" keys.
func NewRedisRevocationList(client redis.UniversalClient, keyPrefix string) *RedisRevocationList {
	return &RedisRevocationList{client: client, keyPrefix: keyPrefix, now: time.Now}
}

func (r *RedisRevocationList) jtiKey(jti string) string     { return r.keyPrefix + "jti:" + jti }
func (r *RedisRevocationList) subjectKey(sub string) string { return r.keyPrefix + "sub:" + sub }

func (r *RedisRevocationList) RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.jtiKey(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// RevokeSubject stores the revocation instant in unix nanoseconds; tokens
// issued at or before it are rejected.
func (r *RedisRevocationList) RevokeSubject(ctx context.Context, subject string, ttl time.Duration) error {
	at := r.now().UnixNano()
	if err := r.client.Set(ctx, r.subjectKey(subject), at, ttl).Err(); err != nil {
		return fmt.Errorf("revoke subject: %w", err)
	}
	return nil
}

func (r *RedisRevocationList) IsRevoked(ctx context.Context, claims *Claims) (bool, error) {
	if claims.ID != "" {
		n, err := r.client.Exists(ctx, r.jtiKey(claims.ID)).Result()
		if err != nil {
			return false, fmt.Errorf("check token revocation: %w", err)
		}
		if n > 0 {
			return true, nil
		}
	}

	raw, err := r.client.Get(ctx, r.subjectKey(claims.Subject)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check subject revocation: %w", err)
	}
	at, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, fmt.Errorf("parse subject revocation: %w", err)
	}
	return issuedAtOrBefore(claims, time.Unix(0, at)), nil
}

var _ RevocationList = (*RedisRevocationList)(nil)

// InMemoryRevocationList is the single-instance fallback used when Redis is
// not configured.
type InMemoryRevocationList struct {
	mu       sync.Mutex
	tokens   map[string]time.Time // jti -> entry expiry
	subjects map[string]subjectRevocation
	now      func() time.Time
}

type subjectRevocation struct {
	at      time.Time
	expires time.Time
}

func NewInMemoryRevocationList() *InMemoryRevocationList {
	return &InMemoryRevocationList{
		tokens:   make(map[string]time.Time),
		subjects: make(map[string]subjectRevocation),
		now:      time.Now,
	}
}

func (l *InMemoryRevocationList) RevokeToken(_ context.Context, jti string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tokens[jti] = l.now().Add(ttl)
	return nil
}

func (l *InMemoryRevocationList) RevokeSubject(_ context.Context, subject string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.subjects[subject] = subjectRevocation{at: now, expires: now.Add(ttl)}
	return nil
}

func (l *InMemoryRevocationList) IsRevoked(_ context.Context, claims *Claims) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()

	if exp, ok := l.tokens[claims.ID]; ok {
		if now.Before(exp) {
			return true, nil
		}
		delete(l.tokens, claims.ID)
	}

	rev, ok := l.subjects[claims.Subject]
	if !ok {
		return false, nil
	}
	if !now.Before(rev.expires) {
		delete(l.subjects, claims.Subject)
		return false, nil
	}
	return issuedAtOrBefore(claims, rev.at), nil
}

var _ RevocationList = (*InMemoryRevocationList)(nil)

// issuedAtOrBefore treats a token without iat as revoked.
func issuedAtOrBefore(claims *Claims, at time.Time) bool {
	if claims.IssuedAt == nil {
		return true
	}
	return !claims.IssuedAt.Time.After(at)
}
