package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mintHS256(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func validClaims() Claims {
	return Claims{
		Email: "fan@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "auth0|123",
			Audience:  jwt.ClaimStrings{"kitstore-api"},
			Issuer:    "https://idp.example.com/",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestVerifyHS256(t *testing.T) {
	v, err := NewVerifier(Options{Secret: "s3cret", Audience: "kitstore-api", Issuer: "https://idp.example.com/"})
	require.NoError(t, err)

	claims, err := v.Verify(mintHS256(t, "s3cret", validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "auth0|123", claims.Subject)
	assert.Equal(t, "fan@example.com", claims.Email)
}

func TestVerifyRejects(t *testing.T) {
	v, err := NewVerifier(Options{Secret: "s3cret", Audience: "kitstore-api"})
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		_, err := v.Verify(mintHS256(t, "other", validClaims()))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong audience", func(t *testing.T) {
		c := validClaims()
		c.Audience = jwt.ClaimStrings{"someone-else"}
		_, err := v.Verify(mintHS256(t, "s3cret", c))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		c := validClaims()
		c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
		_, err := v.Verify(mintHS256(t, "s3cret", c))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("no subject", func(t *testing.T) {
		c := validClaims()
		c.Subject = ""
		_, err := v.Verify(mintHS256(t, "s3cret", c))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := v.Verify("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestVerifyRS256(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pub := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	v, err := NewVerifier(Options{PublicKeyPEM: string(pub)})
	require.NoError(t, err)

	tok, err := jwt.NewWithClaims(jwt.SigningMethodRS256, validClaims()).SignedString(key)
	require.NoError(t, err)

	claims, err := v.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "auth0|123", claims.Subject)

	// An HS256 token must not be accepted by an RS256 verifier.
	_, err = v.Verify(mintHS256(t, "s3cret", validClaims()))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestUnconfiguredVerifier(t *testing.T) {
	v, err := NewVerifier(Options{})
	require.NoError(t, err)
	assert.False(t, v.Configured())

	_, err = v.Verify(mintHS256(t, "s3cret", validClaims()))
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestRequireToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	v, err := NewVerifier(Options{Secret: "s3cret"})
	require.NoError(t, err)

	router := gin.New()
	router.GET("/me", RequireToken(v), func(c *gin.Context) {
		c.String(http.StatusOK, ClaimsFrom(c).Subject)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+mintHS256(t, "s3cret", validClaims()))
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "auth0|123", w.Body.String())
}
