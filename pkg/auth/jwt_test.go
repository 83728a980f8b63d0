package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() JWTConfig {
	return JWTConfig{
		SigningMethod: "HS256",
		SecretKey:     "test-secret",
		Issuer:        "em",
		Audience:      []string{"em-api"},
		ExpiryTime:    time.Hour,
	}
}

func TestJWT_RoundTrip(t *testing.T) {
	generator, err := NewJWTGenerator(testConfig())
	require.NoError(t, err)
	validator, err := NewJWTValidator(testConfig())
	require.NoError(t, err)

	token, err := generator.GenerateToken("user-1", "a@example.com", "client-1")
	require.NoError(t, err)

	claims, err := validator.ValidateToken("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "client-1", claims.ClientID)
	assert.NotEmpty(t, claims.ID)
}

func TestJWT_ValidationFailures(t *testing.T) {
	validator, err := NewJWTValidator(testConfig())
	require.NoError(t, err)

	expiredGen, err := NewJWTGenerator(testConfig())
	require.NoError(t, err)
	expiredGen.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := expiredGen.GenerateToken("user-1", "", "")
	require.NoError(t, err)

	otherCfg := testConfig()
	otherCfg.SecretKey = "other-secret"
	otherGen, err := NewJWTGenerator(otherCfg)
	require.NoError(t, err)
	forged, err := otherGen.GenerateToken("user-1", "", "")
	require.NoError(t, err)

	audCfg := testConfig()
	audCfg.Audience = []string{"someone-else"}
	audGen, err := NewJWTGenerator(audCfg)
	require.NoError(t, err)
	wrongAud, err := audGen.GenerateToken("user-1", "", "")
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{name: "missing", token: "", want: ErrMissingToken},
		{name: "expired", token: expired, want: ErrExpiredToken},
		{name: "bad signature", token: forged, want: ErrInvalidSignature},
		{name: "wrong audience", token: wrongAud, want: ErrInvalidClaims},
		{name: "garbage", token: "not.a.token", want: ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := validator.ValidateToken(tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNewJWTValidator_RequiresKey(t *testing.T) {
	_, err := NewJWTValidator(JWTConfig{SigningMethod: "HS256"})
	assert.Error(t, err)

	_, err = NewJWTValidator(JWTConfig{SigningMethod: "ES512", SecretKey: "x"})
	assert.Error(t, err)
}

func TestUserContext(t *testing.T) {
	_, err := GetUserFromContext(context.Background())
	assert.Error(t, err)

	ctx := SetUserInContext(context.Background(), &UserContext{UserID: "u"})
	user, err := GetUserFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u", user.UserID)
}

func TestSlidingWindowLimiter(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewSlidingWindowLimiter(2, time.Minute)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, err := limiter.Allow(ctx, "k")
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	allowed, _ := limiter.Allow(ctx, "k")
	assert.False(t, allowed)

	allowed, _ = limiter.Allow(ctx, "other")
	assert.True(t, allowed)

	now = now.Add(61 * time.Second)
	allowed, _ = limiter.Allow(ctx, "k")
	assert.True(t, allowed)

	require.NoError(t, limiter.Reset(ctx, "k"))
}
