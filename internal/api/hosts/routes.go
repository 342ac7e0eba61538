package hosts

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers host inventory routes
func RegisterRoutes(g *echo.Group, handler *Handler) {
	g.GET("", handler.GetHosts)
	g.GET("/:id", handler.GetHost)
}
