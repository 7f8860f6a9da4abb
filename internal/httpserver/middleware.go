package httpserver

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	userIDKey        = "user_id"
	anonCookieMaxAge = 30 * 24 * 60 * 60
)

// authMiddleware attaches the bearer token's user id when it verifies. A
// missing or bad token leaves the request anonymous instead of rejecting it.
func authMiddleware(identity identityService, logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			c.Next()
			return
		}
		userID, err := identity.UserID(strings.TrimSpace(token))
		if err != nil {
			logger.Printf("auth: ignoring bearer token error=%v", err)
			c.Next()
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

func userIDFrom(c *gin.Context) string {
	return c.GetString(userIDKey)
}

func (h *handlers) anonIDFromCookie(c *gin.Context) string {
	v, err := c.Cookie(h.deps.AnonCookieName)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(v)
}

// ensureAnonID returns the caller's anonymous id, issuing a sticky cookie
// when there is none yet.
func (h *handlers) ensureAnonID(c *gin.Context) string {
	if id := h.anonIDFromCookie(c); id != "" {
		return id
	}
	id := h.deps.Identity.NewAnonymousID()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.deps.AnonCookieName, id, anonCookieMaxAge, "/", "", h.deps.SecureCookies, true)
	return id
}
