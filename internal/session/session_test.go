package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/metadata"

	"github.com/IdrisKulubi/strath-mobile-sub004/internal/cache"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/session"
)

const secret = "test-secret"

func newResolver(t *testing.T) (*session.Resolver, *cache.RedisCache) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	store := cache.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "session:")
	return session.NewResolver(store, secret), store
}

func incoming(kv ...string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs(kv...))
}

func bearer(t *testing.T, userID uint64, ttl time.Duration) string {
	t.Helper()
	tok, err := session.IssueToken([]byte(secret), userID, time.Now(), ttl)
	require.NoError(t, err)
	return "Bearer " + tok
}

func TestResolve_SessionTokenHeader(t *testing.T) {
	r, store := newResolver(t)
	require.NoError(t, store.PutSession(context.Background(), "abc", 7, time.Hour))

	s, ok := r.Resolve(incoming("x-session-token", "abc"))
	require.True(t, ok)
	assert.Equal(t, session.Session{UserID: 7, Strategy: session.StrategySessionToken}, s)
}

func TestResolve_SessionCookie(t *testing.T) {
	r, store := newResolver(t)
	require.NoError(t, store.PutSession(context.Background(), "xyz", 8, time.Hour))

	s, ok := r.Resolve(incoming("cookie", "theme=dark; session_token=xyz"))
	require.True(t, ok)
	assert.Equal(t, uint64(8), s.UserID)
}

func TestResolve_SessionTriedBeforeBearer(t *testing.T) {
	r, store := newResolver(t)
	require.NoError(t, store.PutSession(context.Background(), "abc", 7, time.Hour))

	s, ok := r.Resolve(incoming("x-session-token", "abc", "authorization", bearer(t, 99, time.Hour)))
	require.True(t, ok)
	assert.Equal(t, uint64(7), s.UserID)
	assert.Equal(t, session.StrategySessionToken, s.Strategy)
}

func TestResolve_FallsBackToBearer(t *testing.T) {
	r, _ := newResolver(t)

	s, ok := r.Resolve(incoming("x-session-token", "unknown", "authorization", bearer(t, 99, time.Hour)))
	require.True(t, ok)
	assert.Equal(t, session.Session{UserID: 99, Strategy: session.StrategyBearer}, s)
}

func TestResolve_Rejects(t *testing.T) {
	r, _ := newResolver(t)

	other, err := session.IssueToken([]byte("other-secret"), 5, time.Now(), time.Hour)
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "5"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	cases := map[string]context.Context{
		"no metadata":    context.Background(),
		"expired bearer": incoming("authorization", bearer(t, 5, -time.Minute)),
		"wrong secret":   incoming("authorization", "Bearer "+other),
		"alg none":       incoming("authorization", "Bearer "+unsigned),
		"not bearer":     incoming("authorization", "Basic dXNlcjpwYXNz"),
		"unknown token":  incoming("x-session-token", "nope"),
	}
	for name, ctx := range cases {
		t.Run(name, func(t *testing.T) {
			_, ok := r.Resolve(ctx)
			assert.False(t, ok)
		})
	}
}

type brokenStore struct{}

func (brokenStore) SessionUserID(context.Context, string) (uint64, bool, error) {
	return 0, false, errors.New("redis down")
}

func TestResolve_StoreFailureFallsThrough(t *testing.T) {
	r := session.NewResolver(brokenStore{}, secret)

	s, ok := r.Resolve(incoming("x-session-token", "abc", "authorization", bearer(t, 3, time.Hour)))
	require.True(t, ok)
	assert.Equal(t, session.StrategyBearer, s.Strategy)

	_, ok = r.Resolve(incoming("x-session-token", "abc"))
	assert.False(t, ok)
}

func TestContextHelpers(t *testing.T) {
	ctx := session.NewContext(context.Background(), session.Session{UserID: 12})
	assert.Equal(t, uint64(12), session.UserID(ctx))

	_, ok := session.FromContext(context.Background())
	assert.False(t, ok)
	assert.Zero(t, session.UserID(context.Background()))
}
