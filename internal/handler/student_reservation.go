package handler

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/study-room-reservation/internal/model"
	"github.com/iliyamo/study-room-reservation/internal/reservation"
	"github.com/iliyamo/study-room-reservation/internal/response"
)

// StudentHandler serves the reservation lifecycle to authenticated users.
// Every mutation acts on the caller's own reservations; admins use the
// override routes in AdminHandler instead.
type StudentHandler struct {
	Svc *reservation.Service
}

// NewStudentHandler panics when svc is nil.
func NewStudentHandler(svc *reservation.Service) *StudentHandler {
	if svc == nil {
		panic("nil service passed to NewStudentHandler")
	}
	return &StudentHandler{Svc: svc}
}

type createReservationRequest struct {
	SeatID    uint64    `json:"seat_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// CreateReservation handles POST /v1/reservations.
func (h *StudentHandler) CreateReservation(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var body createReservationRequest
	if err := c.Bind(&body); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	if body.SeatID == 0 {
		return response.BadRequest(c, "seat_id is required")
	}
	r, err := h.Svc.Create(c.Request().Context(), uid, body.SeatID, model.TimeWindow{Start: body.StartTime, End: body.EndTime})
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, r)
}

// ListReservations handles GET /v1/reservations?status=&user_id=. Only
// admins may list another user's reservations; user_id=0 lists everyone.
func (h *StudentHandler) ListReservations(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	target := uid
	if isAdmin(c) && c.QueryParam("user_id") != "" {
		if target, err = queryUint(c, "user_id"); err != nil {
			return response.BadRequest(c, "invalid user_id")
		}
	}
	list, err := h.Svc.List(c.Request().Context(), target, model.ReservationState(c.QueryParam("status")))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, list)
}

// Upcoming handles GET /v1/reservations/upcoming.
func (h *StudentHandler) Upcoming(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	list, err := h.Svc.Upcoming(c.Request().Context(), uid)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, list)
}

// Today handles GET /v1/reservations/today.
func (h *StudentHandler) Today(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	list, err := h.Svc.Today(c.Request().Context(), uid)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, list)
}

// GetReservation handles GET /v1/reservations/:id.
func (h *StudentHandler) GetReservation(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "reservation")
	}
	r, err := ownedReservation(c, h.Svc, id, uid, true)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, r)
}

// Fee handles GET /v1/reservations/:id/fee.
func (h *StudentHandler) Fee(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "reservation")
	}
	if _, err := ownedReservation(c, h.Svc, id, uid, true); err != nil {
		return response.Error(c, err)
	}
	fee, err := h.Svc.Fee(c.Request().Context(), id)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, fee)
}

// Cancel handles POST /v1/reservations/:id/cancel.
func (h *StudentHandler) Cancel(c echo.Context) error {
	return h.mutate(c, h.Svc.Cancel)
}

type checkInRequest struct {
	Method model.CheckInMethod `json:"method"`
}

// CheckIn handles POST /v1/reservations/:id/check-in. The body is
// optional and defaults to a manual check-in.
func (h *StudentHandler) CheckIn(c echo.Context) error {
	var body checkInRequest
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&body); err != nil {
			return response.BadRequest(c, "invalid request body")
		}
	}
	return h.mutate(c, func(ctx context.Context, id uint64) (*model.Reservation, error) {
		return h.Svc.CheckIn(ctx, id, body.Method)
	})
}

// Leave handles POST /v1/reservations/:id/leave.
func (h *StudentHandler) Leave(c echo.Context) error {
	return h.mutate(c, h.Svc.Leave)
}

// Return handles POST /v1/reservations/:id/return.
func (h *StudentHandler) Return(c echo.Context) error {
	return h.mutate(c, h.Svc.ReturnFromLeave)
}

// CheckOut handles POST /v1/reservations/:id/check-out.
func (h *StudentHandler) CheckOut(c echo.Context) error {
	return h.mutate(c, h.Svc.CheckOut)
}

type rescheduleRequest struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// Reschedule handles PUT /v1/reservations/:id. Only BOOKED reservations
// can move, and only on their own seat.
func (h *StudentHandler) Reschedule(c echo.Context) error {
	var body rescheduleRequest
	if err := c.Bind(&body); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	return h.mutate(c, func(ctx context.Context, id uint64) (*model.Reservation, error) {
		return h.Svc.Reschedule(ctx, id, model.TimeWindow{Start: body.StartTime, End: body.EndTime})
	})
}

// mutate runs a lifecycle operation on the caller's own reservation.
func (h *StudentHandler) mutate(c echo.Context, op func(ctx context.Context, id uint64) (*model.Reservation, error)) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "reservation")
	}
	if _, err := ownedReservation(c, h.Svc, id, uid, false); err != nil {
		return response.Error(c, err)
	}
	r, err := op(c.Request().Context(), id)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, r)
}

// CheckInCode handles GET /v1/reservations/:id/qrcode and returns the
// payload a client renders as a QR code.
func (h *StudentHandler) CheckInCode(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "reservation")
	}
	if _, err := ownedReservation(c, h.Svc, id, uid, false); err != nil {
		return response.Error(c, err)
	}
	code, err := h.Svc.CheckInCode(c.Request().Context(), id)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, echo.Map{"reservation_id": id, "code": code})
}

// Availability handles GET /v1/seats/:id/availability?start=&end=. A window
// that cannot be booked is reported as available=false with the reason;
// lookup failures are errors.
func (h *StudentHandler) Availability(c echo.Context) error {
	seatID, ok := pathID(c, "id")
	if !ok {
		return badID(c, "seat")
	}
	start, err := parseTime(c.QueryParam("start"))
	if err != nil {
		return response.BadRequest(c, "start must be an RFC3339 timestamp")
	}
	end, err := parseTime(c.QueryParam("end"))
	if err != nil {
		return response.BadRequest(c, "end must be an RFC3339 timestamp")
	}
	err = h.Svc.CheckAvailability(c.Request().Context(), seatID, model.TimeWindow{Start: start, End: end})
	data := echo.Map{"seat_id": seatID, "start_time": start, "end_time": end, "available": err == nil}
	if err != nil {
		re := reservation.AsError(err)
		if re.Kind != reservation.KindValidation && re.Kind != reservation.KindConflict {
			return response.Error(c, err)
		}
		data["reason_code"] = re.Code
		data["reason"] = err.Error()
	}
	return response.Success(c, data)
}
