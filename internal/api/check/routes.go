package check

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers check routes
func RegisterRoutes(g *echo.Group, handler *Handler) {
	g.POST("", handler.RunCheck)
	g.POST("/image", handler.CheckImage)
}
