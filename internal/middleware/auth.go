package middleware

import (
	"github.com/labstack/echo/v4"

	authpkg "github.com/pvemon/pvemon/pkg/auth"
	"github.com/pvemon/pvemon/pkg/config"
	"github.com/pvemon/pvemon/pkg/response"
)

// User represents an authenticated API client
type User struct {
	Name string       `json:"name"`
	Role authpkg.Role `json:"role"`
}

// APIKeyMiddleware validates the X-API-Key header against the configured keys
func APIKeyMiddleware(apiKeys []config.APIKey) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			apiKey := c.Request().Header.Get("X-API-Key")
			if apiKey == "" {
				return response.Unauthorized(c, "API key required")
			}

			keyData, found := config.FindAPIKeyByKey(apiKeys, apiKey)
			if !found {
				return response.Unauthorized(c, "Invalid API key")
			}

			user := &User{
				Name: keyData.Name,
				Role: authpkg.ParseRole(keyData.Role),
			}
			c.Set("user", user)

			return next(c)
		}
	}
}

// RequireRole middleware checks if the user has sufficient role permissions
func RequireRole(requiredRole authpkg.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := c.Get("user")
			if user == nil {
				return response.Unauthorized(c, "User not authenticated")
			}

			userData := user.(*User)
			if !userData.Role.HasPermission(requiredRole) {
				return response.Forbidden(c, "Insufficient permissions. Required: "+requiredRole.String())
			}

			return next(c)
		}
	}
}

// GetUserFromContext extracts the authenticated user from the Echo context
func GetUserFromContext(c echo.Context) (*User, bool) {
	user := c.Get("user")
	if user == nil {
		return nil, false
	}
	return user.(*User), true
}
