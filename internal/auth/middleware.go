package auth

import (
	"net/http"
	"strings"

	"orientachat/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const visitorIDContextKey = "visitor_id"

// VisitorMiddleware resolves the visitor id from the X-Visitor-ID header or
// the visitor cookie, minting a new one for first-time browsers.
func (s *Service) VisitorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		visitorID := validVisitorID(c.GetHeader(s.headerName))
		if visitorID == "" {
			if cookie, err := c.Cookie(s.cookieName); err == nil {
				visitorID = validVisitorID(cookie)
			}
			if visitorID == "" {
				visitorID = uuid.NewString()
				s.setCookie(c, s.cookieName, visitorID, true)
			}
		}
		if _, err := c.Cookie(s.csrfCookieName); err != nil {
			token, err := s.NewCSRFToken()
			if err != nil {
				logger.Get().Error("mint csrf token", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
				return
			}
			s.setCookie(c, s.csrfCookieName, token, false)
		}
		c.Set(visitorIDContextKey, visitorID)
		c.Next()
	}
}

// VisitorIDFromContext retrieves the visitor id resolved by the middleware.
func VisitorIDFromContext(c *gin.Context) (string, bool) {
	val, ok := c.Get(visitorIDContextKey)
	if !ok {
		return "", false
	}
	id, ok := val.(string)
	return id, ok && id != ""
}

// ForgetVisitor expires the visitor cookie so the next request starts over.
func (s *Service) ForgetVisitor(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.cookieName, "", -1, "/", "", s.secure, true)
}

func (s *Service) setCookie(c *gin.Context, name, value string, httpOnly bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, int(s.cookieTTL.Seconds()), "/", "", s.secure, httpOnly)
}

func validVisitorID(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return ""
	}
	return id.String()
}
