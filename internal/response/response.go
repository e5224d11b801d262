// Package response writes the JSON envelope every endpoint returns:
// {"ok":true,"data":...} or {"ok":false,"errorCode":...,"errorMessage":...}.
package response

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/study-room-reservation/internal/reservation"
)

// Envelope is the response body shape.
type Envelope struct {
	OK           bool   `json:"ok"`
	Data         any    `json:"data,omitempty"`
	ErrorCode    string `json:"errorCode,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// Generic codes for failures that do not come from the reservation engine.
const (
	CodeBadRequest       = "BAD_REQUEST"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeNotFound         = "NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeTooManyRequests  = "TOO_MANY_REQUESTS"
	CodeInternal         = "INTERNAL"
)

// Success writes 200 with data.
func Success(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, Envelope{OK: true, Data: data})
}

// Created writes 201 with data.
func Created(c echo.Context, data any) error {
	return c.JSON(http.StatusCreated, Envelope{OK: true, Data: data})
}

// Fail writes an error envelope with an explicit status.
func Fail(c echo.Context, status int, code, message string) error {
	return c.JSON(status, Envelope{OK: false, ErrorCode: code, ErrorMessage: message})
}

// BadRequest is Fail with 400.
func BadRequest(c echo.Context, message string) error {
	return Fail(c, http.StatusBadRequest, CodeBadRequest, message)
}

// Error maps err to a status and writes it. Unclassified errors become
// 500 INTERNAL and their text goes to the log only.
func Error(c echo.Context, err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return Fail(c, he.Code, codeForStatus(he.Code), fmt.Sprint(he.Message))
	}
	re := reservation.AsError(err)
	msg := err.Error()
	if re.Code == reservation.ErrInternal.Code {
		c.Logger().Errorf("internal error: %v", err)
		msg = reservation.ErrInternal.Message
	}
	return Fail(c, StatusFor(re.Kind), re.Code, msg)
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return CodeBadRequest
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusTooManyRequests:
		return CodeTooManyRequests
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusMethodNotAllowed:
		return CodeMethodNotAllowed
	}
	return CodeInternal
}

// StatusFor returns the HTTP status of an error kind.
func StatusFor(k reservation.Kind) int {
	switch k {
	case reservation.KindValidation:
		return http.StatusBadRequest
	case reservation.KindAuthorization:
		return http.StatusForbidden
	case reservation.KindNotFound:
		return http.StatusNotFound
	case reservation.KindConflict, reservation.KindState:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// HTTPErrorHandler renders errors that escape handlers, such as unknown
// routes, in the envelope format.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	_ = Error(c, err)
}
