package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-jwt-signing-32-chars"

func createTestTokenService(t *testing.T, rdb *redis.Client) TokenService {
	t.Helper()
	svc, err := NewTokenService(15*time.Minute, "test-issuer", "test-audience", false, "", "", testSecret, rdb)
	require.NoError(t, err)
	return svc
}

func TestNewTokenService(t *testing.T) {
	tests := []struct {
		name        string
		useRSAKeys  bool
		secretKey   string
		expectError bool
	}{
		{name: "valid symmetric key configuration", secretKey: testSecret},
		{name: "missing secret key", expectError: true},
		{name: "rsa without keys", useRSAKeys: true, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewTokenService(time.Minute, "iss", "aud", tt.useRSAKeys, "", "", tt.secretKey, nil)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, svc)
				return
			}
			assert.NoError(t, err)
			assert.NotNil(t, svc)
		})
	}
}

func TestAdminTokenRoundTrip(t *testing.T) {
	svc := createTestTokenService(t, nil)
	ctx := context.Background()

	token, expiresAt, err := svc.GenerateAdminToken(42)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, 5*time.Second)

	claims, err := svc.ValidateAdminToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.AdminID)
	assert.Equal(t, "access", claims.TokenType)
	assert.NotEmpty(t, claims.TokenID)
}

func TestValidateAdminToken_Rejections(t *testing.T) {
	svc := createTestTokenService(t, nil)
	ctx := context.Background()

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.ValidateAdminToken(ctx, "not.a.token")
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("other signing key", func(t *testing.T) {
		other, err := NewTokenService(time.Minute, "test-issuer", "test-audience", false, "", "", "another-secret-key-of-sufficient-size", nil)
		require.NoError(t, err)
		token, _, err := other.GenerateAdminToken(1)
		require.NoError(t, err)

		_, err = svc.ValidateAdminToken(ctx, token)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("expired", func(t *testing.T) {
		claims := jwt.MapClaims{
			"admin_id":   1,
			"token_type": "access",
			"jti":        "abc",
			"iat":        time.Now().Add(-2 * time.Hour).Unix(),
			"exp":        time.Now().Add(-time.Hour).Unix(),
			"iss":        "test-issuer",
			"aud":        "test-audience",
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)

		_, err = svc.ValidateAdminToken(ctx, token)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("wrong audience", func(t *testing.T) {
		claims := jwt.MapClaims{
			"admin_id":   1,
			"token_type": "access",
			"jti":        "abc",
			"iat":        time.Now().Unix(),
			"exp":        time.Now().Add(time.Hour).Unix(),
			"iss":        "test-issuer",
			"aud":        "someone-else",
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)

		_, err = svc.ValidateAdminToken(ctx, token)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})
}

func TestRevokeToken(t *testing.T) {
	ctx := context.Background()

	t.Run("in memory", func(t *testing.T) {
		svc := createTestTokenService(t, nil)
		token, _, err := svc.GenerateAdminToken(7)
		require.NoError(t, err)

		require.NoError(t, svc.RevokeToken(ctx, token))
		_, err = svc.ValidateAdminToken(ctx, token)
		assert.ErrorIs(t, err, ErrTokenRevoked)
	})

	t.Run("redis", func(t *testing.T) {
		mr, err := miniredis.Run()
		require.NoError(t, err)
		defer mr.Close()
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer rdb.Close()

		svc := createTestTokenService(t, rdb)
		token, _, err := svc.GenerateAdminToken(7)
		require.NoError(t, err)

		require.NoError(t, svc.RevokeToken(ctx, token))
		assert.Len(t, mr.Keys(), 1)

		// a second instance sharing redis sees the revocation
		peer := createTestTokenService(t, rdb)
		_, err = peer.ValidateAdminToken(ctx, token)
		assert.ErrorIs(t, err, ErrTokenRevoked)
	})
}
