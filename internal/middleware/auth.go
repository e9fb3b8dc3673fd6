package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"galamsey-report-backend/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	UserIDKey  = "user_id"
	IsAdminKey = "is_admin"
)

func unauthorized(c *gin.Context, errMsg, message string) {
	body := gin.H{"error": errMsg}
	if message != "" {
		body["message"] = message
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, body)
}

// AuthMiddleware verifies a Supabase HS256 access token and stores the
// caller's user id under UserIDKey.
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			unauthorized(c, "missing authorization header", "")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			unauthorized(c, "invalid authorization header format", "")
			return
		}

		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			unauthorized(c, "empty token", "")
			return
		}

		// Some clients URL-encode the token
		if decoded, err := url.QueryUnescape(tokenString); err == nil {
			tokenString = decoded
		}

		if len(strings.Split(tokenString, ".")) != 3 {
			unauthorized(c, "invalid token format", "JWT token must have 3 parts separated by dots")
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			if cfg.SupabaseJWTSecret == "" {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(cfg.SupabaseJWTSecret), nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil {
			unauthorized(c, "invalid token", tokenErrorMessage(err))
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok || !token.Valid {
			unauthorized(c, "invalid token claims", "")
			return
		}

		sub, _ := claims["sub"].(string)
		if _, err := uuid.Parse(sub); err != nil {
			unauthorized(c, "missing user id in token", "")
			return
		}

		c.Set(UserIDKey, sub)
		c.Next()
	}
}

func tokenErrorMessage(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrSignatureInvalid):
		return "token signature is invalid - check JWT secret"
	case errors.Is(err, jwt.ErrTokenExpired):
		return "token has expired"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "token is malformed - ensure you're using a valid Supabase JWT token"
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return "token must be signed with HS256"
	default:
		return err.Error()
	}
}

// RoleChecker answers whether a user holds the admin role.
type RoleChecker interface {
	IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error)
}

// RequireAdmin rejects callers without the admin role. It must run after
// AuthMiddleware.
func RequireAdmin(roles RoleChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if roles == nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "database not available"})
			return
		}
		userID, err := uuid.Parse(c.GetString(UserIDKey))
		if err != nil {
			unauthorized(c, "user id not found", "")
			return
		}

		admin, err := roles.IsAdmin(c.Request.Context(), userID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to check role"})
			return
		}
		if !admin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}

		c.Set(IsAdminKey, true)
		c.Next()
	}
}
