package handler

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/study-room-reservation/internal/model"
	"github.com/iliyamo/study-room-reservation/internal/reservation"
	"github.com/iliyamo/study-room-reservation/internal/response"
)

// AdminHandler exposes overrides and violation management. Routes are
// guarded by RequireRole(ADMIN).
type AdminHandler struct {
	Svc *reservation.Service
}

// NewAdminHandler panics when svc is nil.
func NewAdminHandler(svc *reservation.Service) *AdminHandler {
	if svc == nil {
		panic("nil service passed to NewAdminHandler")
	}
	return &AdminHandler{Svc: svc}
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateReservationStatus handles PUT /v1/admin/reservations/:id/status.
func (h *AdminHandler) UpdateReservationStatus(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "reservation")
	}
	var body updateStatusRequest
	if err := c.Bind(&body); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	state := model.ReservationState(strings.ToUpper(strings.TrimSpace(body.Status)))
	r, err := h.Svc.UpdateStatus(c.Request().Context(), id, state)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, r)
}

// RunViolationSweep handles POST /v1/admin/violations/sweep. A sweep with
// failures still answers 200; the report lists them and partial is set.
func (h *AdminHandler) RunViolationSweep(c echo.Context) error {
	rep := h.Svc.RunViolationSweep(c.Request().Context())
	data := echo.Map{"report": rep, "partial": rep.Partial()}
	if err := rep.Err(); err != nil {
		data["errorCode"] = reservation.ErrPartialSweepFailure.Code
		data["errorMessage"] = err.Error()
	}
	return response.Success(c, data)
}

// ListViolations handles GET /v1/admin/violations?user_id=&type=&status=.
func (h *AdminHandler) ListViolations(c echo.Context) error {
	uid, err := queryUint(c, "user_id")
	if err != nil {
		return response.BadRequest(c, "invalid user_id")
	}
	list, err := h.Svc.Violations(c.Request().Context(), model.ViolationFilter{
		UserID: uid,
		Type:   model.ViolationType(c.QueryParam("type")),
		Status: model.ViolationStatus(c.QueryParam("status")),
		Limit:  queryLimit(c, 100, 1000),
	})
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, list)
}

type createViolationRequest struct {
	UserID        uint64  `json:"user_id"`
	ReservationID *uint64 `json:"reservation_id"`
	Type          string  `json:"type"`
	DeductCredit  int     `json:"deduct_credit"`
	Description   string  `json:"description"`
}

// CreateViolation handles POST /v1/admin/violations.
func (h *AdminHandler) CreateViolation(c echo.Context) error {
	var body createViolationRequest
	if err := c.Bind(&body); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	if body.UserID == 0 {
		return response.BadRequest(c, "user_id is required")
	}
	typ := model.ViolationType(strings.ToUpper(strings.TrimSpace(body.Type)))
	v, err := h.Svc.CreateViolation(c.Request().Context(), body.UserID, body.ReservationID, typ, body.DeductCredit, body.Description)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, v)
}

// ProcessViolation handles POST /v1/admin/violations/:id/process.
func (h *AdminHandler) ProcessViolation(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "violation")
	}
	v, err := h.Svc.ProcessViolation(c.Request().Context(), id)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, v)
}

type adjustCreditRequest struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

// AdjustCredit handles POST /v1/admin/users/:id/credit. A positive delta
// reinstates credit, a negative one deducts it.
func (h *AdminHandler) AdjustCredit(c echo.Context) error {
	userID, ok := pathID(c, "id")
	if !ok {
		return badID(c, "user")
	}
	var body adjustCreditRequest
	if err := c.Bind(&body); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	if body.Delta == 0 {
		return response.BadRequest(c, "delta must not be zero")
	}
	if strings.TrimSpace(body.Reason) == "" {
		body.Reason = "admin adjustment"
	}
	score, err := h.Svc.Ledger().Adjust(c.Request().Context(), userID, body.Delta, body.Reason)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, echo.Map{"user_id": userID, "credit_score": score})
}
