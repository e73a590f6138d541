package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/greenops/binsight/pkg/constants"
	"github.com/greenops/binsight/pkg/errors"
	"github.com/greenops/binsight/pkg/logger"
)

// extractBearer extracts the token from the Authorization header.
func extractBearer(authHeader string) string {
	if authHeader == "" {
		return ""
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

// RequireAdmin protects mutating management routes. The service never
// issues tokens; it only verifies HS256 bearer tokens signed with the
// shared operator secret.
func RequireAdmin(secret string, log logger.Logger) gin.HandlerFunc {
	authLog := log.WithComponent("admin-auth")
	keyFunc := func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	}

	return func(c *gin.Context) {
		tokenStr := extractBearer(c.GetHeader("Authorization"))
		if tokenStr == "" {
			AbortWithError(c, errors.ErrUnauthorized("missing bearer token"))
			return
		}

		token, err := jwt.Parse(tokenStr, keyFunc,
			jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !token.Valid {
			authLog.Warn(c.Request.Context(), "Admin token verification failed",
				logger.String("path", c.Request.URL.Path))
			AbortWithError(c, errors.ErrUnauthorized("invalid bearer token"))
			return
		}

		if claims, ok := token.Claims.(jwt.MapClaims); ok {
			if subject, _ := claims["sub"].(string); subject != "" {
				c.Set(string(constants.ContextKeyAdminSubject), subject)
			}
		}

		c.Next()
	}
}
