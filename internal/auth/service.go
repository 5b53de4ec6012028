package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Service identifies anonymous visitors by cookie and guards mutating
// requests with a double-submit CSRF token.
type Service struct {
	cookieTTL      time.Duration
	secure         bool
	cookieName     string
	headerName     string
	csrfCookieName string
	csrfHeaderName string
}

// NewService constructs the visitor identity service. The cookie lifetime
// defaults to a year.
func NewService(ttl time.Duration, secure bool) *Service {
	if ttl <= 0 {
		ttl = 365 * 24 * time.Hour
	}
	return &Service{
		cookieTTL:      ttl,
		secure:         secure,
		cookieName:     "orientachat_visitor",
		headerName:     "X-Visitor-ID",
		csrfCookieName: "csrf_token",
		csrfHeaderName: "X-CSRF-Token",
	}
}

// NewCSRFToken returns a random token used for CSRF protection.
func (s *Service) NewCSRFToken() (string, error) {
	return generateToken()
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func (s *Service) VisitorCookieName() string {
	return s.cookieName
}

func (s *Service) VisitorHeaderName() string {
	return s.headerName
}

// CSRFCookieName returns the cookie used for CSRF tokens.
func (s *Service) CSRFCookieName() string {
	return s.csrfCookieName
}

// CSRFHeaderName returns the CSRF header name.
func (s *Service) CSRFHeaderName() string {
	return s.csrfHeaderName
}
