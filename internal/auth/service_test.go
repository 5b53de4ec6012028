package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(svc.VisitorMiddleware(), svc.CSRFMiddleware())
	handler := func(c *gin.Context) {
		id, _ := VisitorIDFromContext(c)
		c.String(http.StatusOK, id)
	}
	r.GET("/whoami", handler)
	r.POST("/whoami", handler)
	return r
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestVisitorMiddlewareMintsCookie(t *testing.T) {
	svc := NewService(0, false)
	r := newRouter(svc)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	visitor := cookieNamed(rec, svc.VisitorCookieName())
	require.NotNil(t, visitor)
	assert.True(t, visitor.HttpOnly)
	assert.Equal(t, visitor.Value, rec.Body.String())
	_, err := uuid.Parse(visitor.Value)
	require.NoError(t, err)

	csrf := cookieNamed(rec, svc.CSRFCookieName())
	require.NotNil(t, csrf)
	assert.False(t, csrf.HttpOnly)
	assert.Len(t, csrf.Value, 64)
}

func TestVisitorMiddlewareReusesCookie(t *testing.T) {
	svc := NewService(0, false)
	r := newRouter(svc)
	id := uuid.NewString()

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: svc.VisitorCookieName(), Value: id})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, id, rec.Body.String())
	assert.Nil(t, cookieNamed(rec, svc.VisitorCookieName()))
}

func TestVisitorMiddlewareHeaderOverridesCookie(t *testing.T) {
	svc := NewService(0, false)
	r := newRouter(svc)
	header := uuid.NewString()

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(svc.VisitorHeaderName(), header)
	req.AddCookie(&http.Cookie{Name: svc.VisitorCookieName(), Value: uuid.NewString()})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, header, rec.Body.String())

	// Garbage ids are ignored rather than trusted.
	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(svc.VisitorHeaderName(), "../../etc")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.NotEqual(t, "../../etc", rec.Body.String())
	assert.NotNil(t, cookieNamed(rec, svc.VisitorCookieName()))
}

func TestCSRFMiddleware(t *testing.T) {
	svc := NewService(0, false)
	r := newRouter(svc)
	id := uuid.NewString()

	t.Run("MissingToken", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/whoami", nil)
		req.AddCookie(&http.Cookie{Name: svc.VisitorCookieName(), Value: id})
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("Mismatch", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/whoami", nil)
		req.AddCookie(&http.Cookie{Name: svc.VisitorCookieName(), Value: id})
		req.AddCookie(&http.Cookie{Name: svc.CSRFCookieName(), Value: "a"})
		req.Header.Set(svc.CSRFHeaderName(), "b")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("Match", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/whoami", nil)
		req.AddCookie(&http.Cookie{Name: svc.VisitorCookieName(), Value: id})
		req.AddCookie(&http.Cookie{Name: svc.CSRFCookieName(), Value: "tok"})
		req.Header.Set(svc.CSRFHeaderName(), "tok")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, id, rec.Body.String())
	})

	t.Run("HeaderVisitorExempt", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/whoami", nil)
		req.Header.Set(svc.VisitorHeaderName(), id)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
