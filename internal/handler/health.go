package handler // declare the package name; contains HTTP handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/study-room-reservation/internal/response"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler reports liveness and the state of the backing stores. Nil
// dependencies are reported as disabled.
type HealthHandler struct {
	DB    Pinger
	Redis func(ctx context.Context) error
	Stats func() any
}

// Health returns 200 when every enabled dependency answers, 503 otherwise.
func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true
	check := func(name string, fn func(context.Context) error) {
		if fn == nil {
			checks[name] = "disabled"
			return
		}
		if err := fn(ctx); err != nil {
			checks[name] = "down: " + err.Error()
			healthy = false
			return
		}
		checks[name] = "up"
	}
	if h.DB != nil {
		check("database", h.DB.PingContext)
	} else {
		check("database", nil)
	}
	check("redis", h.Redis)

	data := map[string]any{"checks": checks}
	if h.Stats != nil {
		data["sweep"] = h.Stats()
	}
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, response.Envelope{OK: healthy, Data: data})
}
