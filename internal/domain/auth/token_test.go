package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTokenSignerRequiresSecret(t *testing.T) {
	_, err := NewTokenSigner("", time.Hour)
	require.Error(t, err)
}

func TestGenerateAndParse(t *testing.T) {
	signer, err := NewTokenSigner("secret", time.Hour)
	require.NoError(t, err)

	token, err := signer.Generate(7, "a@x.com", "admin")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := signer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.AdminID)
	assert.Equal(t, "a@x.com", claims.Email)
	assert.Equal(t, "admin", claims.Role)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	signer, err := NewTokenSigner("secret", time.Hour)
	require.NoError(t, err)

	expired := signedToken(t, "secret", Claims{
		AdminID: 7,
		Email:   "a@x.com",
		Role:    "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})

	_, err = signer.Parse(expired)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

// Expiry is a hard cutoff with no leeway: a token is dead at exp exactly,
// and alive any moment before it.
func TestParseExpiryBoundary(t *testing.T) {
	signer, err := NewTokenSigner("secret", time.Hour)
	require.NoError(t, err)

	now := time.Now()
	expiringAt := func(exp time.Time) Claims {
		return Claims{
			AdminID: 7,
			Email:   "a@x.com",
			Role:    "admin",
			RegisteredClaims: jwt.RegisteredClaims{
				IssuedAt:  jwt.NewNumericDate(now.Add(-time.Hour)),
				ExpiresAt: jwt.NewNumericDate(exp),
			},
		}
	}

	_, err = signer.Parse(signedToken(t, "secret", expiringAt(now)))
	assert.ErrorIs(t, err, ErrTokenInvalid)

	claims, err := signer.Parse(signedToken(t, "secret", expiringAt(now.Add(time.Second))))
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.AdminID)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	signer, err := NewTokenSigner("secret", time.Hour)
	require.NoError(t, err)

	other, err := NewTokenSigner("other-secret", time.Hour)
	require.NoError(t, err)

	token, err := other.Generate(1, "a@x.com", "admin")
	require.NoError(t, err)

	_, err = signer.Parse(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestParseRejectsWrongSigningMethod(t *testing.T) {
	signer, err := NewTokenSigner("secret", time.Hour)
	require.NoError(t, err)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{AdminID: 1})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = signer.Parse(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

// signedToken signs arbitrary claims with the given secret, for crafting
// expired or backdated tokens.
func signedToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}
