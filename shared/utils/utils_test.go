package utils

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour, nil)
	token, err := issuer.Issue("u1", "c1", "customer")
	require.NoError(t, err)

	claims, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "c1", claims.CompanyID)
	assert.Equal(t, "customer", claims.Role)
	assert.NotEmpty(t, claims.ID)
}

func TestTokenIssuer_RejectsExpired(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	issuer := NewTokenIssuer("secret", time.Minute, clock)
	token, err := issuer.Issue("u1", "c1", "customer")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = issuer.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenIssuer_RejectsWrongSecretAndAlgorithm(t *testing.T) {
	token, err := NewTokenIssuer("other", time.Hour, nil).Issue("u1", "c1", "customer")
	require.NoError(t, err)
	_, err = NewTokenIssuer("secret", time.Hour, nil).Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"id": "u1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = NewTokenIssuer("secret", time.Hour, nil).Parse(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewTokenIssuer("secret", time.Hour, nil).Parse("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMemoryKV_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	kv := NewMemoryKV(func() time.Time { return now })

	require.NoError(t, kv.Set(ctx, "k", "v", time.Minute))
	got, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	now = now.Add(time.Minute)
	_, err = kv.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	ok, err := kv.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryKV_IncrKeepsFirstExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	kv := NewMemoryKV(func() time.Time { return now })

	n, err := kv.Incr(ctx, "c", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	now = now.Add(40 * time.Second)
	n, err = kv.Incr(ctx, "c", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// the window started with the first increment
	now = now.Add(20 * time.Second)
	n, err = kv.Incr(ctx, "c", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, kv.Set(ctx, "s", "text", 0))
	_, err = kv.Incr(ctx, "s", 0)
	assert.Error(t, err)
}

func TestVerificationCode_SixDigits(t *testing.T) {
	pattern := regexp.MustCompile(`^\d{6}$`)
	for i := 0; i < 50; i++ {
		code, err := VerificationCode()
		require.NoError(t, err)
		assert.Regexp(t, pattern, code)
	}
}

func TestResetToken_HashIsStable(t *testing.T) {
	token, err := ResetToken()
	require.NoError(t, err)
	assert.Len(t, token, 64)
	assert.Equal(t, HashToken(token), HashToken(token))
	assert.NotEqual(t, token, HashToken(token))
}

func TestCircuitBreaker_OpensAndRecovers(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker("smtp", 2, time.Minute)
	cb.now = func() time.Time { return now }
	boom := errors.New("boom")

	assert.ErrorIs(t, cb.Call(func() error { return boom }), boom)
	assert.ErrorIs(t, cb.Call(func() error { return boom }), boom)
	assert.Equal(t, StateOpen, cb.GetState())

	called := false
	assert.ErrorIs(t, cb.Call(func() error { called = true; return nil }), ErrCircuitOpen)
	assert.False(t, called)

	now = now.Add(2 * time.Minute)
	assert.NoError(t, cb.Call(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreaker_FailedTrialReopens(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker("ses", 1, time.Minute)
	cb.now = func() time.Time { return now }

	_ = cb.Call(func() error { return errors.New("down") })
	now = now.Add(2 * time.Minute)
	_ = cb.Call(func() error { return errors.New("still down") })
	assert.Equal(t, StateOpen, cb.GetState())
}

func TestInternalError_HidesCause(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	InternalError(c, "Failed to fetch tickets", errors.New("mongo: connection refused at 10.0.0.3"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "Failed to fetch tickets", body.Message)
	assert.Empty(t, body.Error)
}
