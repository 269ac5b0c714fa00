package middleware

import (
	"context"
	"dorm_match_backend/internal/config"
	"dorm_match_backend/internal/model"
	"dorm_match_backend/internal/util"
	"dorm_match_backend/pkg/logger"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return ""
}

func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		claims, err := util.ParseJWT(tokenString, cfg.JWT.Secret)
		if err != nil {
			logger.Log.Debug("jwt rejected", zap.Error(err))
			util.Unauthorized(c)
			c.Abort()
			return
		}

		c.Set("user", claims)
		c.Next()
	}
}

// TryAuthMiddleware sets the user when a valid token is present and lets
// anonymous requests through otherwise.
func TryAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString := bearerToken(c); tokenString != "" {
			if claims, err := util.ParseJWT(tokenString, cfg.JWT.Secret); err == nil {
				c.Set("user", claims)
			}
		}
		c.Next()
	}
}

// RoleMiddleware allows the listed roles. Admins always pass.
func RoleMiddleware(roles ...model.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := util.GetUserFromContext(c)
		if user == nil {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		hasRole := user.Role == model.Admin
		for _, role := range roles {
			if user.Role == role {
				hasRole = true
				break
			}
		}

		if !hasRole {
			util.Forbidden(c)
			c.Abort()
			return
		}
		c.Next()
	}
}

type UserActivityRepo interface {
	UpdateLastSeen(ctx context.Context, userID uint) error
}

// ActivityMiddleware stamps last_seen for the caller at most once per
// interval per user. A failed write is logged and the request goes on.
func ActivityMiddleware(repo UserActivityRepo, interval time.Duration) gin.HandlerFunc {
	var mu sync.Mutex
	written := make(map[uint]time.Time)

	return func(c *gin.Context) {
		if claims := util.GetUserFromContext(c); claims != nil {
			now := time.Now()
			mu.Lock()
			due := now.Sub(written[claims.UserID]) >= interval
			if due {
				written[claims.UserID] = now
			}
			mu.Unlock()

			if due {
				if err := repo.UpdateLastSeen(c.Request.Context(), claims.UserID); err != nil {
					logger.Log.Debug("last seen update failed", zap.Uint("user_id", claims.UserID), zap.Error(err))
				}
			}
		}
		c.Next()
	}
}
