package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/study-room-reservation/internal/handler"
	"github.com/iliyamo/study-room-reservation/internal/middleware"
	"github.com/iliyamo/study-room-reservation/internal/model"
)

// RegisterAdmin registers overrides and violation management under
// /v1/admin. All routes require a JWT with the ADMIN role.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)
	g.PUT("/reservations/:id/status", h.UpdateReservationStatus)
	g.POST("/violations/sweep", h.RunViolationSweep)
	g.GET("/violations", h.ListViolations)
	g.POST("/violations", h.CreateViolation)
	g.POST("/violations/:id/process", h.ProcessViolation)
	g.POST("/users/:id/credit", h.AdjustCredit)
}
