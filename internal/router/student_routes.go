package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/study-room-reservation/internal/handler"
	"github.com/iliyamo/study-room-reservation/internal/middleware"
	"github.com/iliyamo/study-room-reservation/internal/model"
)

// RegisterStudent registers the reservation lifecycle under /v1. All
// routes require a valid JWT; admins may call them too. limit guards the
// mutating routes.
func RegisterStudent(e *echo.Echo, h *handler.StudentHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	if limit == nil {
		limit = func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleStudent, model.RoleAdmin),
	)

	g.POST("/reservations", h.CreateReservation, limit)
	g.GET("/reservations", h.ListReservations)
	g.GET("/reservations/upcoming", h.Upcoming)
	g.GET("/reservations/today", h.Today)
	g.GET("/reservations/:id", h.GetReservation)
	g.GET("/reservations/:id/fee", h.Fee)
	g.PUT("/reservations/:id", h.Reschedule, limit)
	g.GET("/reservations/:id/qrcode", h.CheckInCode)

	g.POST("/reservations/:id/cancel", h.Cancel, limit)
	g.POST("/reservations/:id/check-in", h.CheckIn, limit)
	g.POST("/reservations/:id/leave", h.Leave, limit)
	g.POST("/reservations/:id/return", h.Return, limit)
	g.POST("/reservations/:id/check-out", h.CheckOut, limit)

	g.POST("/checkins/qrcode", h.CheckInByCode, limit)
	g.GET("/checkins", h.ListCheckIns)
	g.GET("/checkins/current", h.CurrentCheckIn)

	g.GET("/seats/:id/availability", h.Availability)
	g.GET("/violations", h.MyViolations)
	g.GET("/credits", h.MyCredit)
}
