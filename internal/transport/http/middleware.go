package httptransport

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/NjengaIWJ/tetea-jamii/internal/domain/auth"
)

// CookieName is the session cookie carrying the token for browser clients.
const CookieName = "jwt"

// claimsKey is the gin context key the verified claims are stored under.
const claimsKey = "session_claims"

// TokenFromRequest extracts the session token, preferring the Authorization
// header over the cookie so API clients can override a stale browser cookie.
func TokenFromRequest(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		if token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")); token != "" {
			return token
		}
	}
	if token, err := c.Cookie(CookieName); err == nil {
		return token
	}
	return ""
}

// AuthRequired gates a route group on a valid session token. Verification is
// the cheap cryptographic check only; no store lookup per request.
func AuthRequired(issuer *auth.Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := TokenFromRequest(c)
		if token == "" {
			RespondError(c, http.StatusUnauthorized, "No token provided", nil)
			c.Abort()
			return
		}

		claims, err := issuer.Verify(token)
		if err != nil {
			RespondError(c, http.StatusUnauthorized, "Invalid or expired token", nil)
			c.Abort()
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// ClaimsFrom returns the verified claims stored by AuthRequired.
func ClaimsFrom(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok
}
