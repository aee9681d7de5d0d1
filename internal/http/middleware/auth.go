package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/yungbote/patternlens-backend/internal/platform/ctxutil"
	"github.com/yungbote/patternlens-backend/internal/platform/logger"
)

const roleAdmin = "admin"

// Claims are the HS256 access-token claims issued by the account service.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type AuthMiddleware struct {
	log    *logger.Logger
	secret []byte
}

func NewAuthMiddleware(log *logger.Logger, secret string) *AuthMiddleware {
	return &AuthMiddleware{log: log.With("middleware", "AuthMiddleware"), secret: []byte(secret)}
}

// Optional attaches the caller when a valid token is present and ignores bad or missing tokens.
func (am *AuthMiddleware) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, err := am.parse(extractToken(c)); err == nil {
			am.attach(c, claims)
		}
		c.Next()
	}
}

// RequireUser rejects requests without a valid token naming a subject.
func (am *AuthMiddleware) RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := am.parse(extractToken(c))
		if err != nil {
			am.unauthorized(c, err)
			return
		}
		am.attach(c, claims)
		c.Next()
	}
}

// RequireAdmin rejects requests without a valid token carrying the admin role.
func (am *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := am.parse(extractToken(c))
		if err != nil {
			am.unauthorized(c, err)
			return
		}
		if claims.Role != roleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": gin.H{"message": "admin role required", "code": "forbidden"},
			})
			return
		}
		am.attach(c, claims)
		c.Next()
	}
}

func (am *AuthMiddleware) unauthorized(c *gin.Context, err error) {
	am.log.Debug("auth rejected", "path", c.FullPath(), "error", err)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{"message": "missing or invalid token", "code": "unauthorized"},
	})
}

func (am *AuthMiddleware) parse(token string) (*Claims, error) {
	if len(am.secret) == 0 {
		return nil, errors.New("auth secret not configured")
	}
	if token == "" {
		return nil, errors.New("missing token")
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return am.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

func (am *AuthMiddleware) attach(c *gin.Context, claims *Claims) {
	ctx := ctxutil.WithCallerData(c.Request.Context(), &ctxutil.CallerData{
		Subject: claims.Subject,
		Admin:   claims.Role == roleAdmin,
	})
	c.Request = c.Request.WithContext(ctx)
}

func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}
