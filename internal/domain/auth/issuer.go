// Package auth implements the session-lifecycle core: credential checks,
// token issuance, per-request verification and full refresh revalidation.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/NjengaIWJ/tetea-jamii/internal/domain/limiter"
	"github.com/NjengaIWJ/tetea-jamii/internal/platform/logging"
	"github.com/NjengaIWJ/tetea-jamii/internal/platform/storage"
)

// Sentinel errors mapped to HTTP statuses by the transport layer. Credential
// failures are deliberately indistinguishable from unknown accounts.
var (
	ErrMissingFields      = errors.New("missing fields")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrRateLimited        = errors.New("too many failed attempts")
	ErrNoToken            = errors.New("no token provided")
	ErrTokenInvalid       = errors.New("invalid or expired token")
	ErrTokenPayload       = errors.New("invalid token payload")
	ErrAccountGone        = errors.New("account no longer exists")
	ErrPasswordRotated    = errors.New("token invalid due to password change")
	ErrEmailTaken         = errors.New("email already in use")
	ErrAdminNotFound      = errors.New("admin not found")
)

// Issuer authenticates credentials and manages the token lifecycle.
type Issuer struct {
	db     *gorm.DB
	signer *TokenSigner
	lim    limiter.Limiter
	logger *logging.Logger
}

// Options bundles Issuer dependencies.
type Options struct {
	DB      *gorm.DB
	Signer  *TokenSigner
	Limiter limiter.Limiter
	Logger  *logging.Logger
}

// NewIssuer wires an Issuer from options. The limiter defaults to a no-op.
func NewIssuer(opts Options) (*Issuer, error) {
	if opts.DB == nil {
		return nil, errors.New("issuer requires a database")
	}
	if opts.Signer == nil {
		return nil, errors.New("issuer requires a token signer")
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Limiter == nil {
		opts.Limiter = limiter.Noop{}
	}
	return &Issuer{
		db:     opts.DB,
		signer: opts.Signer,
		lim:    opts.Limiter,
		logger: opts.Logger,
	}, nil
}

// Login verifies credentials and issues a session token. Unknown email and
// wrong password produce the same ErrInvalidCredentials.
func (i *Issuer) Login(ctx context.Context, email, password, ip string) (*storage.Admin, string, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, "", ErrMissingFields
	}

	ipHash := limiter.HashIP(ip)
	allowed, _, err := i.lim.Allow(ctx, email, ipHash)
	if err != nil {
		return nil, "", err
	}
	if !allowed {
		return nil, "", ErrRateLimited
	}

	var admin storage.Admin
	err = i.db.WithContext(ctx).Where("email = ?", email).First(&admin).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", err
	}

	verified := false
	if err == nil {
		verified = VerifyPassword(password, admin.Password)
	} else {
		// unknown email still burns a full bcrypt comparison, keeping its
		// response time indistinguishable from a wrong password
		burnPasswordCheck(password)
	}
	if !verified {
		if blocked, _, ferr := i.lim.Failure(ctx, email, ipHash); ferr == nil && blocked {
			return nil, "", ErrRateLimited
		}
		return nil, "", ErrInvalidCredentials
	}

	_ = i.lim.Success(ctx, email, ipHash)

	token, err := i.signer.Generate(admin.ID, admin.Email, admin.Role)
	if err != nil {
		return nil, "", err
	}
	return &admin, token, nil
}

// Verify is the cheap per-request gate: signature and expiry only, no store
// lookup. A token for a since-deleted account passes here until the next
// refresh cycle closes that window.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrNoToken
	}
	return i.signer.Parse(tokenString)
}

// Refresh performs the full validity check: signature, expiry, identity
// existence and the password-rotation cutoff, then issues a fresh token.
func (i *Issuer) Refresh(ctx context.Context, tokenString string) (*storage.Admin, string, error) {
	if tokenString == "" {
		return nil, "", ErrNoToken
	}

	claims, err := i.signer.Parse(tokenString)
	if err != nil {
		return nil, "", err
	}
	if claims.AdminID == 0 {
		return nil, "", ErrTokenPayload
	}

	var admin storage.Admin
	if err := i.db.WithContext(ctx).First(&admin, claims.AdminID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrAccountGone
		}
		return nil, "", err
	}

	if admin.PasswordChangedAt != nil && claims.IssuedAt != nil {
		// iat has second precision; truncate the cutoff the same way.
		cutoff := admin.PasswordChangedAt.Unix()
		if cutoff > claims.IssuedAt.Unix() {
			return nil, "", ErrPasswordRotated
		}
	}

	token, err := i.signer.Generate(admin.ID, admin.Email, admin.Role)
	if err != nil {
		return nil, "", err
	}
	return &admin, token, nil
}

// CreateAdmin registers a new identity with a hashed password.
func (i *Issuer) CreateAdmin(ctx context.Context, username, email, password, role string) (*storage.Admin, error) {
	if username == "" || email == "" || password == "" {
		return nil, ErrMissingFields
	}
	if role == "" {
		role = "admin"
	}

	var count int64
	if err := i.db.WithContext(ctx).Model(&storage.Admin{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	admin := storage.Admin{
		Username: username,
		Email:    email,
		Password: hash,
		Role:     role,
	}
	if err := i.db.WithContext(ctx).Create(&admin).Error; err != nil {
		return nil, err
	}
	i.logger.InfoTag("auth", "admin account created: %s", admin.Email)
	return &admin, nil
}

// AdminUpdate carries optional profile mutations; nil fields are untouched.
type AdminUpdate struct {
	Username *string
	Email    *string
	Role     *string
	Password *string
}

// UpdateAdmin applies profile changes. A password change re-hashes and bumps
// PasswordChangedAt, revoking every token issued before this instant.
func (i *Issuer) UpdateAdmin(ctx context.Context, id uint, update AdminUpdate) (*storage.Admin, error) {
	var admin storage.Admin
	if err := i.db.WithContext(ctx).First(&admin, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAdminNotFound
		}
		return nil, err
	}

	if update.Username != nil {
		admin.Username = *update.Username
	}
	if update.Email != nil {
		admin.Email = *update.Email
	}
	if update.Role != nil {
		admin.Role = *update.Role
	}
	if update.Password != nil {
		hash, err := HashPassword(*update.Password)
		if err != nil {
			return nil, err
		}
		admin.Password = hash
		now := time.Now()
		admin.PasswordChangedAt = &now
	}

	if err := i.db.WithContext(ctx).Save(&admin).Error; err != nil {
		return nil, err
	}
	return &admin, nil
}

// DeleteAdmin removes an identity; outstanding tokens die at the next refresh.
func (i *Issuer) DeleteAdmin(ctx context.Context, id uint) error {
	res := i.db.WithContext(ctx).Delete(&storage.Admin{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAdminNotFound
	}
	return nil
}

// GetAdmin fetches a single identity by id.
func (i *Issuer) GetAdmin(ctx context.Context, id uint) (*storage.Admin, error) {
	var admin storage.Admin
	if err := i.db.WithContext(ctx).First(&admin, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAdminNotFound
		}
		return nil, err
	}
	return &admin, nil
}

// ListAdmins returns all identities.
func (i *Issuer) ListAdmins(ctx context.Context) ([]storage.Admin, error) {
	var admins []storage.Admin
	if err := i.db.WithContext(ctx).Find(&admins).Error; err != nil {
		return nil, err
	}
	return admins, nil
}

// SeedAdmin creates the bootstrap admin when the store holds no accounts.
func (i *Issuer) SeedAdmin(ctx context.Context, username, email, password string) error {
	if username == "" || email == "" || password == "" {
		return nil
	}
	var count int64
	if err := i.db.WithContext(ctx).Model(&storage.Admin{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	_, err := i.CreateAdmin(ctx, username, email, password, "admin")
	return err
}
