// Package session is the HTTP surface of the token lifecycle: login,
// verify, refresh, logout and admin account management.
package session

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/NjengaIWJ/tetea-jamii/internal/domain/auth"
	"github.com/NjengaIWJ/tetea-jamii/internal/platform/config"
	platformerrors "github.com/NjengaIWJ/tetea-jamii/internal/platform/errors"
	"github.com/NjengaIWJ/tetea-jamii/internal/platform/logging"
	httptransport "github.com/NjengaIWJ/tetea-jamii/internal/transport/http"
)

// Service handles session and admin account routes.
type Service struct {
	issuer *auth.Issuer
	config *config.Config
	logger *logging.Logger
}

// NewService builds the session transport service.
func NewService(issuer *auth.Issuer, cfg *config.Config, logger *logging.Logger) (*Service, error) {
	if issuer == nil {
		return nil, platformerrors.New(platformerrors.KindConfig, "session.new", "issuer is required")
	}
	if cfg == nil {
		return nil, platformerrors.New(platformerrors.KindConfig, "session.new", "config is required")
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{issuer: issuer, config: cfg, logger: logger}, nil
}

// Register mounts the session endpoints on the root group and the admin
// management endpoints on the secured API group.
func (s *Service) Register(ctx context.Context, root, secured *gin.RouterGroup) error {
	root.POST("/login", s.handleLogin)
	root.GET("/verify", s.handleVerify)
	root.GET("/refresh", s.handleRefresh)
	root.POST("/logout", s.handleLogout)

	admins := secured.Group("/admins")
	admins.POST("", s.handleCreateAdmin)
	admins.GET("", s.handleListAdmins)
	admins.GET("/:id", s.handleGetAdmin)
	admins.PUT("/:id", s.handleUpdateAdmin)
	admins.DELETE("/:id", s.handleDeleteAdmin)

	s.logger.InfoTag("HTTP", "session routes registered")
	return nil
}

// setSessionCookie writes the token cookie. The cookie lives longer than the
// token itself; the refresh endpoint renews the token within that window.
// Cross-site frontends need Secure + SameSite=None, which only works over
// TLS, so development falls back to Lax.
func (s *Service) setSessionCookie(c *gin.Context, token string) {
	maxAge := int(s.config.Auth.CookieMaxAge.Seconds())
	if s.config.IsProduction() {
		c.SetSameSite(http.SameSiteNoneMode)
		c.SetCookie(httptransport.CookieName, token, maxAge, "/", "", true, true)
	} else {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(httptransport.CookieName, token, maxAge, "/", "", false, true)
	}
}

func (s *Service) clearSessionCookie(c *gin.Context) {
	if s.config.IsProduction() {
		c.SetSameSite(http.SameSiteNoneMode)
		c.SetCookie(httptransport.CookieName, "", -1, "/", "", true, true)
	} else {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(httptransport.CookieName, "", -1, "/", "", false, true)
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Service) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "Missing fields", nil)
		return
	}

	admin, token, err := s.issuer.Login(c.Request.Context(), req.Email, req.Password, c.ClientIP())
	if err != nil {
		s.respondAuthError(c, err)
		return
	}

	s.setSessionCookie(c, token)
	s.logger.InfoTag("HTTP", "login: %s", admin.Email)
	httptransport.RespondSuccess(c, http.StatusOK, gin.H{
		"admin": admin,
		"token": token,
	}, "Logged in")
}

// handleVerify is the cheap per-request session check: signature and expiry
// only. It deliberately skips the store, so a deleted account stays valid
// here until its next refresh.
func (s *Service) handleVerify(c *gin.Context) {
	token := httptransport.TokenFromRequest(c)
	if token == "" {
		httptransport.RespondError(c, http.StatusUnauthorized, "No token provided", nil)
		return
	}

	claims, err := s.issuer.Verify(token)
	if err != nil {
		httptransport.RespondError(c, http.StatusUnauthorized, "Invalid or expired token", nil)
		return
	}

	httptransport.RespondSuccess(c, http.StatusOK, gin.H{
		"admin_id": claims.AdminID,
		"email":    claims.Email,
		"role":     claims.Role,
	}, "Token valid")
}

// handleRefresh revalidates the full session (identity still exists, password
// unchanged since issuance) and rotates the token and cookie.
func (s *Service) handleRefresh(c *gin.Context) {
	token := httptransport.TokenFromRequest(c)

	admin, renewed, err := s.issuer.Refresh(c.Request.Context(), token)
	if err != nil {
		s.respondAuthError(c, err)
		return
	}

	s.setSessionCookie(c, renewed)
	httptransport.RespondSuccess(c, http.StatusOK, gin.H{
		"admin": admin,
		"token": renewed,
	}, "Token refreshed")
}

// handleLogout clears the cookie. Tokens are stateless so the server keeps
// no revocation list; the token simply ages out.
func (s *Service) handleLogout(c *gin.Context) {
	s.clearSessionCookie(c)
	httptransport.RespondSuccess(c, http.StatusOK, nil, "Logged out")
}

type createAdminRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (s *Service) handleCreateAdmin(c *gin.Context) {
	var req createAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "Missing fields", nil)
		return
	}

	admin, err := s.issuer.CreateAdmin(c.Request.Context(), req.Username, req.Email, req.Password, req.Role)
	if err != nil {
		s.respondAuthError(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusCreated, admin, "Admin created")
}

func (s *Service) handleListAdmins(c *gin.Context) {
	admins, err := s.issuer.ListAdmins(c.Request.Context())
	if err != nil {
		s.respondAuthError(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, admins, "")
}

func (s *Service) handleGetAdmin(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	admin, err := s.issuer.GetAdmin(c.Request.Context(), id)
	if err != nil {
		s.respondAuthError(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, admin, "")
}

type updateAdminRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Role     *string `json:"role"`
	Password *string `json:"password"`
}

func (s *Service) handleUpdateAdmin(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req updateAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "Missing fields", nil)
		return
	}

	admin, err := s.issuer.UpdateAdmin(c.Request.Context(), id, auth.AdminUpdate{
		Username: req.Username,
		Email:    req.Email,
		Role:     req.Role,
		Password: req.Password,
	})
	if err != nil {
		s.respondAuthError(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, admin, "Admin updated")
}

func (s *Service) handleDeleteAdmin(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := s.issuer.DeleteAdmin(c.Request.Context(), id); err != nil {
		s.respondAuthError(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, nil, "Admin deleted")
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "Invalid id", nil)
		return 0, false
	}
	return uint(id), true
}

// respondAuthError maps domain errors to status codes and the exact messages
// browser clients key their behavior on.
func (s *Service) respondAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, auth.ErrMissingFields):
		httptransport.RespondError(c, http.StatusBadRequest, "Missing fields", nil)
	case errors.Is(err, auth.ErrInvalidCredentials):
		httptransport.RespondError(c, http.StatusUnauthorized, "Invalid credentials", nil)
	case errors.Is(err, auth.ErrRateLimited):
		httptransport.RespondError(c, http.StatusTooManyRequests, "Too many failed attempts, try again later", nil)
	case errors.Is(err, auth.ErrNoToken):
		httptransport.RespondError(c, http.StatusUnauthorized, "No token provided", nil)
	case errors.Is(err, auth.ErrTokenInvalid):
		httptransport.RespondError(c, http.StatusUnauthorized, "Invalid or expired token", nil)
	case errors.Is(err, auth.ErrTokenPayload):
		httptransport.RespondError(c, http.StatusUnauthorized, "Invalid token payload", nil)
	case errors.Is(err, auth.ErrAccountGone):
		httptransport.RespondError(c, http.StatusUnauthorized, "Account no longer exists", nil)
	case errors.Is(err, auth.ErrPasswordRotated):
		httptransport.RespondError(c, http.StatusUnauthorized, "Token invalid due to password change", nil)
	case errors.Is(err, auth.ErrEmailTaken):
		httptransport.RespondError(c, http.StatusConflict, "Email already in use", nil)
	case errors.Is(err, auth.ErrAdminNotFound):
		httptransport.RespondError(c, http.StatusNotFound, "Admin not found", nil)
	default:
		s.logger.ErrorTag("HTTP", "session error: %v", err)
		httptransport.RespondError(c, http.StatusInternalServerError, "Internal server error", nil)
	}
}
