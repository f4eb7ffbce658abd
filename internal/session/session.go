// Package session resolves the calling user from request metadata. Two
// strategies are tried in a fixed order: a server-side session token held
// in Redis, then a signed bearer JWT. Callers only see the result.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"google.golang.org/grpc/metadata"

	"github.com/IdrisKulubi/strath-mobile-sub004/internal/logger"
)

const (
	// HeaderSessionToken carries a session token directly.
	HeaderSessionToken = "x-session-token"
	// CookieSessionToken is the cookie the web client stores it in.
	CookieSessionToken = "session_token"

	headerAuthorization = "authorization"
	headerCookie        = "cookie"
)

// Strategy names which lookup produced a session.
type Strategy string

const (
	StrategySessionToken Strategy = "session_token"
	StrategyBearer       Strategy = "bearer"
)

type Session struct {
	UserID   uint64
	Strategy Strategy
}

// TokenStore looks up server-side session tokens. found is false for an
// unknown or expired token.
type TokenStore interface {
	SessionUserID(ctx context.Context, token string) (userID uint64, found bool, err error)
}

type Resolver struct {
	store  TokenStore
	secret []byte
}

// NewResolver builds a resolver. An empty secret disables the bearer strategy.
func NewResolver(store TokenStore, jwtSecret string) *Resolver {
	return &Resolver{store: store, secret: []byte(jwtSecret)}
}

// Resolve returns the caller's session from incoming gRPC metadata.
//
// Behavior:
//   - session token from x-session-token, else the session_token cookie
//   - otherwise "authorization: Bearer <jwt>" (HMAC, subject = user id)
//   - store failures are logged and fall through to the next strategy
//
// Example:
//
//	sess, ok := resolver.Resolve(ctx)
//	if !ok { return status.Error(codes.Unauthenticated, ...) }
func (r *Resolver) Resolve(ctx context.Context) (Session, bool) {
	md, _ := metadata.FromIncomingContext(ctx)

	if token := sessionToken(md); token != "" && r.store != nil {
		id, found, err := r.store.SessionUserID(ctx, token)
		switch {
		case err != nil:
			logger.FromContext(ctx).Warn("session store lookup failed", "err", err)
		case found:
			return Session{UserID: id, Strategy: StrategySessionToken}, true
		}
	}

	if raw := bearerToken(md); raw != "" && len(r.secret) > 0 {
		id, err := ParseToken(raw, r.secret)
		if err == nil {
			return Session{UserID: id, Strategy: StrategyBearer}, true
		}
		logger.FromContext(ctx).Debug("bearer token rejected", "err", err)
	}

	return Session{}, false
}

// IssueToken signs a bearer token for userID. Used by dev tooling and tests;
// production tokens come from the auth service.
func IssueToken(secret []byte, userID uint64, now time.Time, ttl time.Duration) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// ParseToken validates a bearer token and returns its subject as a user id.
func ParseToken(raw string, secret []byte) (uint64, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return 0, err
	}
	if !token.Valid {
		return 0, errors.New("invalid token")
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid subject in token")
	}
	return id, nil
}

type ctxKey struct{}

// NewContext attaches the resolved session to ctx.
func NewContext(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session attached by the auth interceptor.
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(Session)
	return s, ok && s.UserID != 0
}

// UserID is the viewer id of the current request, or 0.
func UserID(ctx context.Context) uint64 {
	s, _ := FromContext(ctx)
	return s.UserID
}

func sessionToken(md metadata.MD) string {
	if v := first(md, HeaderSessionToken); v != "" {
		return v
	}
	for _, line := range md.Get(headerCookie) {
		cookies, err := http.ParseCookie(line)
		if err != nil {
			continue
		}
		for _, c := range cookies {
			if c.Name == CookieSessionToken && c.Value != "" {
				return c.Value
			}
		}
	}
	return ""
}

func bearerToken(md metadata.MD) string {
	parts := strings.SplitN(first(md, headerAuthorization), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func first(md metadata.MD, key string) string {
	if vals := md.Get(key); len(vals) > 0 {
		return strings.TrimSpace(vals[0])
	}
	return ""
}
