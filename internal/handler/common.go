package handler // handler defines http handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/study-room-reservation/internal/model"
	"github.com/iliyamo/study-room-reservation/internal/reservation"
	"github.com/iliyamo/study-room-reservation/internal/response"
)

var errNoUser = errors.New("invalid user_id in context")

// getUserID extracts the user_id from echo.Context and converts it to uint64
func getUserID(c echo.Context) (uint64, error) {
	v := c.Get("user_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		if t > 0 {
			return uint64(t), nil
		}
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil && n > 0 {
			return n, nil
		}
	}
	return 0, errNoUser
}

func isAdmin(c echo.Context) bool {
	role, _ := c.Get("role").(string)
	return role == model.RoleAdmin
}

func unauthorized(c echo.Context) error {
	return response.Fail(c, http.StatusUnauthorized, response.CodeUnauthorized, "unauthorized")
}

func badID(c echo.Context, what string) error {
	return response.BadRequest(c, "invalid "+what+" id")
}

// pathID parses a positive :name path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// queryUint parses an optional positive integer query parameter.
func queryUint(c echo.Context, name string) (uint64, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func queryLimit(c echo.Context, def, max int) int {
	raw := strings.TrimSpace(c.QueryParam("limit"))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// parseTime accepts RFC3339 timestamps.
func parseTime(raw string) (time.Time, error) {
	return time.Parse(time.RFC3339, strings.TrimSpace(raw))
}

// ownedReservation loads the reservation and enforces that the caller
// owns it. Admins may read any reservation when allowAdmin is set.
func ownedReservation(c echo.Context, svc *reservation.Service, id, uid uint64, allowAdmin bool) (*model.Reservation, error) {
	r, err := svc.Get(c.Request().Context(), id)
	if err != nil {
		return nil, err
	}
	if r.UserID != uid && !(allowAdmin && isAdmin(c)) {
		return nil, reservation.ErrForbidden
	}
	return r, nil
}
