package services

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestTokenService creates a token service for testing with symmetric key
func createTestTokenService() (TokenService, error) {
	return NewTokenService(
		15*time.Minute,
		7*24*time.Hour,
		"test-issuer",
		"test-audience",
		false, // useRSAKeys
		"",    // privateKeyPEM
		"",    // publicKeyPEM
		"test-secret-key-for-jwt-signing-32-chars", // secretKey
	)
}

func generateTestRSAKeys(t *testing.T) (string, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	publicDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)

	privatePEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	publicPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: publicDER})
	return string(privatePEM), string(publicPEM)
}

func TestNewTokenService(t *testing.T) {
	tests := []struct {
		name          string
		useRSAKeys    bool
		privateKeyPEM string
		publicKeyPEM  string
		secretKey     string
		expectError   bool
	}{
		{
			name:        "valid symmetric key configuration",
			secretKey:   "test-secret-key-for-jwt-signing-32-chars",
			expectError: false,
		},
		{
			name:        "missing secret key",
			secretKey:   "",
			expectError: true,
		},
		{
			name:        "rsa without keys",
			useRSAKeys:  true,
			expectError: true,
		},
		{
			name:          "rsa with malformed keys",
			useRSAKeys:    true,
			privateKeyPEM: "not a pem",
			publicKeyPEM:  "not a pem",
			expectError:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, err := NewTokenService(
				15*time.Minute,
				7*24*time.Hour,
				"test-issuer",
				"test-audience",
				tt.useRSAKeys,
				tt.privateKeyPEM,
				tt.publicKeyPEM,
				tt.secretKey,
			)

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, service)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, service)
			}
		})
	}
}

func TestGenerateAdminTokens(t *testing.T) {
	service, err := createTestTokenService()
	require.NoError(t, err)

	accessToken, refreshToken, err := service.GenerateAdminTokens(7)

	require.NoError(t, err)
	assert.NotEqual(t, accessToken, refreshToken)
	assert.Contains(t, accessToken, "eyJ")

	access, err := service.ValidateAdminToken(accessToken)
	require.NoError(t, err)
	assert.Equal(t, uint(7), access.AdminID)
	assert.Equal(t, tokenTypeAccess, access.TokenType)
	assert.NotEmpty(t, access.TokenID)
	assert.WithinDuration(t, access.IssuedAt.Add(15*time.Minute), access.ExpiresAt, time.Second)

	refresh, err := service.ValidateAdminToken(refreshToken)
	require.NoError(t, err)
	assert.Equal(t, tokenTypeRefresh, refresh.TokenType)
	assert.NotEqual(t, access.TokenID, refresh.TokenID)
}

func TestValidateAdminToken(t *testing.T) {
	service, err := createTestTokenService()
	require.NoError(t, err)

	otherAudience, err := NewTokenService(15*time.Minute, time.Hour, "test-issuer", "other-audience", false, "", "", "test-secret-key-for-jwt-signing-32-chars")
	require.NoError(t, err)
	foreignToken, _, err := otherAudience.GenerateAdminTokens(1)
	require.NoError(t, err)

	otherSecret, err := NewTokenService(15*time.Minute, time.Hour, "test-issuer", "test-audience", false, "", "", "a-different-secret-key-of-32-chars!!")
	require.NoError(t, err)
	forgedToken, _, err := otherSecret.GenerateAdminTokens(1)
	require.NoError(t, err)

	tests := []struct {
		name        string
		token       string
		expectedErr error
	}{
		{name: "empty token", token: "", expectedErr: ErrTokenInvalid},
		{name: "malformed token", token: "invalid.token.here", expectedErr: ErrTokenInvalid},
		{name: "wrong audience", token: foreignToken, expectedErr: ErrTokenInvalid},
		{name: "wrong signing key", token: forgedToken, expectedErr: ErrTokenInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := service.ValidateAdminToken(tt.token)

			assert.ErrorIs(t, err, tt.expectedErr)
			assert.Nil(t, claims)
		})
	}
}

func TestValidateAdminTokenRejectsMissingAdminID(t *testing.T) {
	service, err := createTestTokenService()
	require.NoError(t, err)
	impl := service.(*TokenServiceImpl)

	now := time.Now()
	token, err := impl.generateToken(jwt.MapClaims{
		"customer_id": 1,
		"token_type":  tokenTypeAccess,
		"jti":         "abc",
		"iat":         now.Unix(),
		"exp":         now.Add(time.Minute).Unix(),
		"iss":         "test-issuer",
		"aud":         "test-audience",
	})
	require.NoError(t, err)

	_, err = service.ValidateAdminToken(token)

	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenExpiration(t *testing.T) {
	service, err := NewTokenService(time.Millisecond, time.Millisecond, "test-issuer", "test-audience", false, "", "", "test-secret-key-for-jwt-signing-32-chars")
	require.NoError(t, err)

	accessToken, _, err := service.GenerateAdminTokens(1)
	require.NoError(t, err)

	// exp has second granularity
	time.Sleep(1100 * time.Millisecond)

	_, err = service.ValidateAdminToken(accessToken)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestRefreshAdminToken(t *testing.T) {
	service, err := createTestTokenService()
	require.NoError(t, err)

	accessToken, refreshToken, err := service.GenerateAdminTokens(3)
	require.NoError(t, err)

	t.Run("access token cannot refresh", func(t *testing.T) {
		_, _, err := service.RefreshAdminToken(accessToken)
		assert.Error(t, err)
	})

	t.Run("refresh rotates the pair", func(t *testing.T) {
		newAccess, newRefresh, err := service.RefreshAdminToken(refreshToken)
		require.NoError(t, err)

		claims, err := service.ValidateAdminToken(newAccess)
		require.NoError(t, err)
		assert.Equal(t, uint(3), claims.AdminID)
		assert.NotEqual(t, refreshToken, newRefresh)
	})

	t.Run("old refresh token is revoked", func(t *testing.T) {
		_, _, err := service.RefreshAdminToken(refreshToken)
		assert.ErrorIs(t, err, ErrTokenRevoked)
	})
}

func TestRevokeToken(t *testing.T) {
	service, err := createTestTokenService()
	require.NoError(t, err)

	accessToken, _, err := service.GenerateAdminTokens(1)
	require.NoError(t, err)
	claims, err := service.ValidateAdminToken(accessToken)
	require.NoError(t, err)

	require.NoError(t, service.RevokeToken(accessToken))

	assert.True(t, service.IsTokenRevoked(claims.TokenID))
	_, err = service.ValidateAdminToken(accessToken)
	assert.ErrorIs(t, err, ErrTokenRevoked)
	assert.Error(t, service.RevokeToken("invalid.token.here"))
}

func TestRSATokens(t *testing.T) {
	privatePEM, publicPEM := generateTestRSAKeys(t)
	service, err := NewTokenService(15*time.Minute, time.Hour, "test-issuer", "test-audience", true, privatePEM, publicPEM, "")
	require.NoError(t, err)

	accessToken, _, err := service.GenerateAdminTokens(9)
	require.NoError(t, err)

	claims, err := service.ValidateAdminToken(accessToken)
	require.NoError(t, err)
	assert.Equal(t, uint(9), claims.AdminID)

	hmacService, err := createTestTokenService()
	require.NoError(t, err)
	_, err = hmacService.ValidateAdminToken(accessToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestConcurrentTokenGeneration(t *testing.T) {
	service, err := createTestTokenService()
	require.NoError(t, err)

	const workers = 20
	ids := make(chan string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(adminID uint) {
			defer wg.Done()
			accessToken, _, err := service.GenerateAdminTokens(adminID)
			assert.NoError(t, err)
			claims, err := service.ValidateAdminToken(accessToken)
			if assert.NoError(t, err) {
				ids <- claims.TokenID
			}
		}(uint(i))
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate token id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, workers)
}

func BenchmarkValidateAdminToken(b *testing.B) {
	service, err := createTestTokenService()
	if err != nil {
		b.Fatal(err)
	}
	token, _, err := service.GenerateAdminTokens(123)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := service.ValidateAdminToken(token); err != nil {
			b.Fatal(err)
		}
	}
}
