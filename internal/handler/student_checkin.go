package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/study-room-reservation/internal/model"
	"github.com/iliyamo/study-room-reservation/internal/reservation"
	"github.com/iliyamo/study-room-reservation/internal/response"
)

type qrCheckInRequest struct {
	Code string `json:"code"`
}

// CheckInByCode handles POST /v1/checkins/qrcode. The code must belong to
// one of the caller's reservations.
func (h *StudentHandler) CheckInByCode(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var body qrCheckInRequest
	if err := c.Bind(&body); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	id, err := reservation.DecodeCheckInCode(body.Code)
	if err != nil {
		return response.Error(c, err)
	}
	if _, err := ownedReservation(c, h.Svc, id, uid, false); err != nil {
		return response.Error(c, err)
	}
	r, err := h.Svc.CheckInWithCode(c.Request().Context(), body.Code)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, r)
}

// ListCheckIns handles GET /v1/checkins?reservation_id=&status=&limit=.
func (h *StudentHandler) ListCheckIns(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	resID, err := queryUint(c, "reservation_id")
	if err != nil {
		return response.BadRequest(c, "invalid reservation_id")
	}
	f := model.CheckInFilter{
		UserID:        uid,
		ReservationID: resID,
		Status:        model.CheckInStatus(c.QueryParam("status")),
		Limit:         queryLimit(c, 50, 500),
	}
	list, err := h.Svc.CheckIns(c.Request().Context(), f)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, list)
}

// CurrentCheckIn handles GET /v1/checkins/current.
func (h *StudentHandler) CurrentCheckIn(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	rec, err := h.Svc.CurrentCheckIn(c.Request().Context(), uid)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, rec)
}
