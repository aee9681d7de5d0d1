package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/yungbote/patternlens-backend/internal/platform/ctxutil"
	"github.com/yungbote/patternlens-backend/internal/platform/logger"
)

const testSecret = "test-secret"

func sign(t *testing.T, secret, subject, role string, ttl time.Duration) string {
	t.Helper()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestRequireAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	am := NewAuthMiddleware(logger.Nop(), testSecret)

	cases := []struct {
		name   string
		token  string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"garbage", "not-a-jwt", http.StatusUnauthorized},
		{"wrong secret", sign(t, "other", "u1", "admin", time.Hour), http.StatusUnauthorized},
		{"expired", sign(t, testSecret, "u1", "admin", -time.Minute), http.StatusUnauthorized},
		{"not admin", sign(t, testSecret, "u1", "member", time.Hour), http.StatusForbidden},
		{"admin", sign(t, testSecret, "ops@example.com", "admin", time.Hour), http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			var caller *ctxutil.CallerData
			r.POST("/admin", am.RequireAdmin(), func(c *gin.Context) {
				caller = ctxutil.GetCallerData(c.Request.Context())
				c.Status(http.StatusOK)
			})
			req := httptest.NewRequest(http.MethodPost, "/admin", nil)
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tc.status, rec.Body.String())
			}
			if tc.status == http.StatusOK && (caller == nil || caller.Subject != "ops@example.com" || !caller.Admin) {
				t.Fatalf("caller not attached: %+v", caller)
			}
		})
	}
}

func TestRequireAdminWithoutSecret(t *testing.T) {
	gin.SetMode(gin.TestMode)
	am := NewAuthMiddleware(logger.Nop(), "")
	r := gin.New()
	r.POST("/admin", am.RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+sign(t, "any", "u1", "admin", time.Hour))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unconfigured secret must reject, got %d", rec.Code)
	}
}

func TestOptionalAttachesCaller(t *testing.T) {
	gin.SetMode(gin.TestMode)
	am := NewAuthMiddleware(logger.Nop(), testSecret)
	r := gin.New()
	var subject string
	r.GET("/x", am.Optional(), func(c *gin.Context) {
		subject = ctxutil.CallerOr(c.Request.Context(), "anonymous")
		c.Status(http.StatusOK)
	})

	for token, want := range map[string]string{
		"":      "anonymous",
		"bogus": "anonymous",
		sign(t, testSecret, "user-7", "", time.Hour): "user-7",
	} {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK || subject != want {
			t.Fatalf("token %q: status=%d subject=%q want %q", token, rec.Code, subject, want)
		}
	}
}
