package auth

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"shortvid-saver/pkg/models"
)

// Middleware handles authentication for protected routes
type Middleware struct {
	service *Service
	enabled bool
	logger  zerolog.Logger
}

// NewMiddleware creates a new authentication middleware. When enabled is
// false every guard becomes a no-op.
func NewMiddleware(service *Service, enabled bool) *Middleware {
	return &Middleware{
		service: service,
		enabled: enabled,
		logger:  zerolog.New(os.Stdout).With().Timestamp().Logger(),
	}
}

// Required enforces authentication for routes
func (m *Middleware) Required() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.enabled {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization format"})
			c.Abort()
			return
		}

		user, err := m.service.ValidateToken(tokenString)
		if err != nil {
			m.logger.Warn().Err(err).Msg("Invalid token")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		c.Set("user", user)
		c.Next()
	}
}

// RoleRequired enforces a specific role for routes
func (m *Middleware) RoleRequired(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.enabled {
			c.Next()
			return
		}

		m.Required()(c)
		if c.IsAborted() {
			return
		}

		user, ok := GetUser(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
			c.Abort()
			return
		}

		for _, role := range roles {
			if user.Role == role {
				c.Next()
				return
			}
		}

		c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
		c.Abort()
	}
}

// GetUser returns the authenticated user from context
func GetUser(c *gin.Context) (*models.User, bool) {
	user, exists := c.Get("user")
	if !exists {
		return nil, false
	}
	u, ok := user.(*models.User)
	return u, ok
}
