package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/NjengaIWJ/tetea-jamii/internal/platform/storage"
)

const testSecret = "issuer-test-secret"

func newTestIssuer(t *testing.T) *Issuer {
	t.Helper()
	db, err := storage.OpenMemory()
	require.NoError(t, err)

	signer, err := NewTokenSigner(testSecret, time.Hour)
	require.NoError(t, err)

	issuer, err := NewIssuer(Options{DB: db, Signer: signer})
	require.NoError(t, err)
	return issuer
}

func createTestAdmin(t *testing.T, issuer *Issuer) *storage.Admin {
	t.Helper()
	admin, err := issuer.CreateAdmin(context.Background(), "jamii", "a@x.com", "correct-horse", "admin")
	require.NoError(t, err)
	return admin
}

func TestLoginIssuesValidToken(t *testing.T) {
	issuer := newTestIssuer(t)
	createTestAdmin(t, issuer)

	admin, token, err := issuer.Login(context.Background(), "a@x.com", "correct-horse", "127.0.0.1")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, "admin", admin.Role)

	claims, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, claims.AdminID)
	assert.Equal(t, "a@x.com", claims.Email)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	issuer := newTestIssuer(t)
	createTestAdmin(t, issuer)

	_, _, wrongPassword := issuer.Login(context.Background(), "a@x.com", "wrong", "127.0.0.1")
	_, _, unknownEmail := issuer.Login(context.Background(), "nobody@x.com", "wrong", "127.0.0.1")

	assert.ErrorIs(t, wrongPassword, ErrInvalidCredentials)
	assert.ErrorIs(t, unknownEmail, ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
}

// The unknown-email path compares against dummyHash so lookup misses cost
// the same bcrypt work as a wrong password. That only holds while the digest
// stays parseable: a malformed hash would short-circuit before the key
// derivation.
func TestDummyHashBurnsFullComparison(t *testing.T) {
	err := bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte("some-guess"))
	assert.ErrorIs(t, err, bcrypt.ErrMismatchedHashAndPassword)

	cost, err := bcrypt.Cost([]byte(dummyHash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)
}

func TestLoginRequiresBothFields(t *testing.T) {
	issuer := newTestIssuer(t)

	_, _, err := issuer.Login(context.Background(), "", "pw", "127.0.0.1")
	assert.ErrorIs(t, err, ErrMissingFields)

	_, _, err = issuer.Login(context.Background(), "a@x.com", "", "127.0.0.1")
	assert.ErrorIs(t, err, ErrMissingFields)
}

func TestRefreshIssuesNewToken(t *testing.T) {
	issuer := newTestIssuer(t)
	createTestAdmin(t, issuer)

	_, token, err := issuer.Login(context.Background(), "a@x.com", "correct-horse", "127.0.0.1")
	require.NoError(t, err)

	admin, renewed, err := issuer.Refresh(context.Background(), token)
	require.NoError(t, err)
	assert.NotEmpty(t, renewed)
	assert.Equal(t, "a@x.com", admin.Email)

	_, err = issuer.Verify(renewed)
	assert.NoError(t, err)
}

func TestRefreshRejectsMissingAndInvalidTokens(t *testing.T) {
	issuer := newTestIssuer(t)

	_, _, err := issuer.Refresh(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoToken)

	_, _, err = issuer.Refresh(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestPasswordRotationRevokesPriorTokens(t *testing.T) {
	issuer := newTestIssuer(t)
	admin := createTestAdmin(t, issuer)

	// token issued one minute in the past, before the password change below
	backdated := signedToken(t, testSecret, Claims{
		AdminID: admin.ID,
		Email:   admin.Email,
		Role:    admin.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	_, _, err := issuer.Refresh(context.Background(), backdated)
	require.NoError(t, err, "token must be refreshable before the password change")

	newPassword := "rotated-password"
	_, err = issuer.UpdateAdmin(context.Background(), admin.ID, AdminUpdate{Password: &newPassword})
	require.NoError(t, err)

	_, _, err = issuer.Refresh(context.Background(), backdated)
	assert.ErrorIs(t, err, ErrPasswordRotated)

	// a fresh login with the new password works again
	_, token, err := issuer.Login(context.Background(), "a@x.com", newPassword, "127.0.0.1")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
}

func TestDeletedAccountFailsRefreshButPassesVerify(t *testing.T) {
	issuer := newTestIssuer(t)
	admin := createTestAdmin(t, issuer)

	_, token, err := issuer.Login(context.Background(), "a@x.com", "correct-horse", "127.0.0.1")
	require.NoError(t, err)

	require.NoError(t, issuer.DeleteAdmin(context.Background(), admin.ID))

	// verify is a pure cryptographic check and still accepts the token;
	// refresh performs the store lookup and closes the window.
	_, err = issuer.Verify(token)
	assert.NoError(t, err)

	_, _, err = issuer.Refresh(context.Background(), token)
	assert.ErrorIs(t, err, ErrAccountGone)
}

func TestCreateAdminRejectsDuplicateEmail(t *testing.T) {
	issuer := newTestIssuer(t)
	createTestAdmin(t, issuer)

	_, err := issuer.CreateAdmin(context.Background(), "other", "a@x.com", "pw", "user")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestPasswordNeverStoredInPlaintext(t *testing.T) {
	issuer := newTestIssuer(t)
	admin := createTestAdmin(t, issuer)

	assert.NotEqual(t, "correct-horse", admin.Password)
	assert.True(t, VerifyPassword("correct-horse", admin.Password))
}

func TestSeedAdminOnlyOnEmptyStore(t *testing.T) {
	issuer := newTestIssuer(t)

	require.NoError(t, issuer.SeedAdmin(context.Background(), "root", "root@x.com", "pw"))
	require.NoError(t, issuer.SeedAdmin(context.Background(), "other", "other@x.com", "pw"))

	admins, err := issuer.ListAdmins(context.Background())
	require.NoError(t, err)
	assert.Len(t, admins, 1)
	assert.Equal(t, "root@x.com", admins[0].Email)
}

type blockingLimiter struct{}

func (blockingLimiter) Allow(context.Context, string, []byte) (bool, time.Duration, error) {
	return false, time.Minute, nil
}
func (blockingLimiter) Success(context.Context, string, []byte) error { return nil }
func (blockingLimiter) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	return true, time.Minute, nil
}

func TestLoginRespectsLimiter(t *testing.T) {
	db, err := storage.OpenMemory()
	require.NoError(t, err)
	signer, err := NewTokenSigner(testSecret, time.Hour)
	require.NoError(t, err)
	issuer, err := NewIssuer(Options{DB: db, Signer: signer, Limiter: blockingLimiter{}})
	require.NoError(t, err)

	_, _, err = issuer.Login(context.Background(), "a@x.com", "pw", "127.0.0.1")
	assert.ErrorIs(t, err, ErrRateLimited)
}
