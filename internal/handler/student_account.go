package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/study-room-reservation/internal/model"
	"github.com/iliyamo/study-room-reservation/internal/response"
)

// MyViolations handles GET /v1/violations?type=&status=.
func (h *StudentHandler) MyViolations(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	list, err := h.Svc.Violations(c.Request().Context(), model.ViolationFilter{
		UserID: uid,
		Type:   model.ViolationType(c.QueryParam("type")),
		Status: model.ViolationStatus(c.QueryParam("status")),
		Limit:  queryLimit(c, 100, 500),
	})
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, list)
}

// MyCredit handles GET /v1/credits: the caller's score and recent ledger.
func (h *StudentHandler) MyCredit(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	sum, err := h.Svc.Ledger().Summary(c.Request().Context(), uid, queryLimit(c, 50, 500))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, sum)
}
