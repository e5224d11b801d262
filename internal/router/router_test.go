package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/study-room-reservation/internal/handler"
	"github.com/iliyamo/study-room-reservation/internal/repository/memory"
	"github.com/iliyamo/study-room-reservation/internal/reservation"
	"github.com/iliyamo/study-room-reservation/internal/utils"
)

const jwtSecret = "router-test-secret"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type api struct {
	t     *testing.T
	e     *echo.Echo
	clock *testClock
}

type envelope struct {
	OK           bool            `json:"ok"`
	Data         json.RawMessage `json:"data"`
	ErrorCode    string          `json:"errorCode"`
	ErrorMessage string          `json:"errorMessage"`
}

func at(hour, min int) time.Time {
	return time.Date(2026, 3, 2, hour, min, 0, 0, time.UTC)
}

func newAPI(t *testing.T, health *handler.HealthHandler) *api {
	t.Helper()
	st := memory.New(200 * time.Millisecond)
	memory.SeedDemo(st, "07:00", "22:00")
	clk := &testClock{now: at(7, 30)}

	policy := reservation.DefaultPolicy()
	policy.Location = time.UTC
	svc := reservation.NewService(reservation.Deps{
		Reservations: st,
		Violations:   st,
		Credits:      st,
		Catalog:      st,
		Users:        st,
		Locks:        st.Locks(),
		Clock:        clk.Now,
	}, policy, zap.NewNop())

	if health == nil {
		health = &handler.HealthHandler{}
	}
	e := New(zap.NewNop())
	RegisterRoutes(e, health)
	RegisterStudent(e, handler.NewStudentHandler(svc), jwtSecret, nil)
	RegisterAdmin(e, handler.NewAdminHandler(svc), jwtSecret)
	return &api{t: t, e: e, clock: clk}
}

func (a *api) do(method, path string, uid uint64, role, body string) (int, envelope) {
	a.t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if uid != 0 {
		tok, err := utils.NewAccessToken(jwtSecret, uid, role, 5)
		require.NoError(a.t, err)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok.Token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)

	var env envelope
	require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func (a *api) student(method, path string, uid uint64, body string) (int, envelope) {
	a.t.Helper()
	return a.do(method, path, uid, "STUDENT", body)
}

func (a *api) admin(method, path, body string) (int, envelope) {
	a.t.Helper()
	return a.do(method, path, 100, "ADMIN", body)
}

type reservationView struct {
	ID     uint64 `json:"id"`
	UserID uint64 `json:"user_id"`
	SeatID uint64 `json:"seat_id"`
	State  string `json:"state"`

	StartTime time.Time `json:"start_time"`
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

const booking = `{"seat_id":1,"start_time":"2026-03-02T08:00:00Z","end_time":"2026-03-02T09:00:00Z"}`

func TestHealth(t *testing.T) {
	a := newAPI(t, &handler.HealthHandler{
		Redis: func(context.Context) error { return nil },
		Stats: func() any { return map[string]int{"total_runs": 3} },
	})
	code, env := a.do(http.MethodGet, "/healthz", 0, "", "")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.OK)
	assert.JSONEq(t, `{"checks":{"database":"disabled","redis":"up"},"sweep":{"total_runs":3}}`, string(env.Data))

	down := newAPI(t, &handler.HealthHandler{Redis: func(context.Context) error { return errors.New("refused") }})
	code, env = down.do(http.MethodGet, "/healthz", 0, "", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.False(t, env.OK)
}

func TestAuthAndRouting(t *testing.T) {
	a := newAPI(t, nil)

	code, env := a.do(http.MethodGet, "/v1/reservations", 0, "", "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "UNAUTHORIZED", env.ErrorCode)

	code, env = a.student(http.MethodPost, "/v1/admin/violations/sweep", 1, "")
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "FORBIDDEN", env.ErrorCode)

	code, env = a.do(http.MethodGet, "/v1/nowhere", 1, "STUDENT", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", env.ErrorCode)
}

func TestReservationLifecycleOverHTTP(t *testing.T) {
	a := newAPI(t, nil)

	code, env := a.student(http.MethodPost, "/v1/reservations", 1, booking)
	require.Equal(t, http.StatusCreated, code, env.ErrorMessage)
	created := decode[reservationView](t, env)
	assert.Equal(t, "BOOKED", created.State)
	assert.Equal(t, uint64(1), created.UserID)

	code, env = a.student(http.MethodPost, "/v1/reservations", 2,
		`{"seat_id":1,"start_time":"2026-03-02T08:30:00Z","end_time":"2026-03-02T10:00:00Z"}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "SLOT_TAKEN", env.ErrorCode)

	path := "/v1/reservations/" + itoa(created.ID)
	code, env = a.student(http.MethodGet, path, 2, "")
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "FORBIDDEN", env.ErrorCode)

	code, _ = a.admin(http.MethodGet, path, "")
	assert.Equal(t, http.StatusOK, code)

	code, _ = a.student(http.MethodPost, path+"/check-in", 2, "")
	assert.Equal(t, http.StatusForbidden, code)

	a.clock.Set(at(8, 5))
	code, env = a.student(http.MethodPost, path+"/check-in", 1, `{"method":"manual"}`)
	require.Equal(t, http.StatusOK, code, env.ErrorMessage)
	assert.Equal(t, "IN_USE", decode[reservationView](t, env).State)

	code, env = a.student(http.MethodPost, path+"/cancel", 1, "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "CANNOT_CANCEL_ACTIVE", env.ErrorCode)

	code, env = a.student(http.MethodGet, "/v1/checkins/current", 1, "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"status":"checked_in"`)

	for _, step := range []struct{ op, state string }{
		{"leave", "ON_LEAVE"},
		{"return", "IN_USE"},
		{"check-out", "COMPLETED"},
	} {
		code, env = a.student(http.MethodPost, path+"/"+step.op, 1, "")
		require.Equal(t, http.StatusOK, code, step.op+": "+env.ErrorMessage)
		assert.Equal(t, step.state, decode[reservationView](t, env).State, step.op)
	}

	code, env = a.student(http.MethodPost, path+"/check-in", 1, "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "INVALID_TRANSITION", env.ErrorCode)

	code, env = a.student(http.MethodGet, "/v1/reservations?status=COMPLETED", 1, "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]reservationView](t, env), 1)
}

func TestRescheduleOverHTTP(t *testing.T) {
	a := newAPI(t, nil)

	code, env := a.student(http.MethodPost, "/v1/reservations", 1, booking)
	require.Equal(t, http.StatusCreated, code, env.ErrorMessage)
	path := "/v1/reservations/" + itoa(decode[reservationView](t, env).ID)

	moved := `{"start_time":"2026-03-02T08:30:00Z","end_time":"2026-03-02T09:30:00Z"}`
	code, _ = a.student(http.MethodPut, path, 2, moved)
	assert.Equal(t, http.StatusForbidden, code)

	code, env = a.student(http.MethodPut, path, 1, moved)
	require.Equal(t, http.StatusOK, code, env.ErrorMessage)
	got := decode[reservationView](t, env)
	assert.Equal(t, "BOOKED", got.State)
	assert.Equal(t, at(8, 30), got.StartTime.UTC())

	code, env = a.student(http.MethodPost, "/v1/reservations", 2,
		`{"seat_id":1,"start_time":"2026-03-02T10:00:00Z","end_time":"2026-03-02T11:00:00Z"}`)
	require.Equal(t, http.StatusCreated, code, env.ErrorMessage)

	code, env = a.student(http.MethodPut, path, 1, `{"start_time":"2026-03-02T09:30:00Z","end_time":"2026-03-02T10:30:00Z"}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "SLOT_TAKEN", env.ErrorCode)

	code, env = a.student(http.MethodPut, path, 1, `{"start_time":`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "BAD_REQUEST", env.ErrorCode)
}

func TestBadRequests(t *testing.T) {
	a := newAPI(t, nil)

	code, env := a.student(http.MethodPost, "/v1/reservations", 1, `{"seat_id":`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "BAD_REQUEST", env.ErrorCode)

	code, _ = a.student(http.MethodPost, "/v1/reservations", 1, `{"start_time":"2026-03-02T08:00:00Z","end_time":"2026-03-02T09:00:00Z"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = a.student(http.MethodPost, "/v1/reservations", 1,
		`{"seat_id":1,"start_time":"2026-03-02T09:00:00Z","end_time":"2026-03-02T08:00:00Z"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_WINDOW", env.ErrorCode)

	code, _ = a.student(http.MethodGet, "/v1/reservations/abc", 1, "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = a.student(http.MethodGet, "/v1/reservations/999", 1, "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "RESERVATION_NOT_FOUND", env.ErrorCode)
}

func TestAvailability(t *testing.T) {
	a := newAPI(t, nil)
	code, _ := a.student(http.MethodPost, "/v1/reservations", 1, booking)
	require.Equal(t, http.StatusCreated, code)

	type availability struct {
		Available  bool   `json:"available"`
		ReasonCode string `json:"reason_code"`
	}
	query := "?start=2026-03-02T08:30:00Z&end=2026-03-02T09:30:00Z"

	code, env := a.student(http.MethodGet, "/v1/seats/1/availability"+query, 2, "")
	require.Equal(t, http.StatusOK, code)
	got := decode[availability](t, env)
	assert.False(t, got.Available)
	assert.Equal(t, "SLOT_TAKEN", got.ReasonCode)

	code, env = a.student(http.MethodGet, "/v1/seats/2/availability"+query, 2, "")
	require.Equal(t, http.StatusOK, code)
	assert.True(t, decode[availability](t, env).Available)

	code, env = a.student(http.MethodGet, "/v1/seats/404/availability"+query, 2, "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "SEAT_NOT_FOUND", env.ErrorCode)

	code, _ = a.student(http.MethodGet, "/v1/seats/1/availability?start=soon&end=later", 2, "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestAdminSweepAndCredit(t *testing.T) {
	a := newAPI(t, nil)
	code, env := a.student(http.MethodPost, "/v1/reservations", 1, booking)
	require.Equal(t, http.StatusCreated, code)
	created := decode[reservationView](t, env)

	a.clock.Set(at(10, 1))
	code, env = a.admin(http.MethodPost, "/v1/admin/violations/sweep", "")
	require.Equal(t, http.StatusOK, code)
	sweep := decode[struct {
		Partial bool `json:"partial"`
		Report  struct {
			Violated       int `json:"violated"`
			CreditsApplied int `json:"credits_applied"`
		} `json:"report"`
	}](t, env)
	assert.False(t, sweep.Partial)
	assert.Equal(t, 1, sweep.Report.Violated)
	assert.Equal(t, 1, sweep.Report.CreditsApplied)

	code, env = a.student(http.MethodGet, "/v1/reservations/"+itoa(created.ID), 1, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "VIOLATED", decode[reservationView](t, env).State)

	code, env = a.student(http.MethodGet, "/v1/violations", 1, "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"type":"NO_SHOW"`)

	code, env = a.admin(http.MethodPost, "/v1/admin/users/1/credit", `{"delta":5,"reason":"appeal granted"}`)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"user_id":1,"credit_score":100}`, string(env.Data))

	code, _ = a.admin(http.MethodPost, "/v1/admin/users/1/credit", `{"delta":0}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = a.admin(http.MethodPut, "/v1/admin/reservations/"+itoa(created.ID)+"/status", `{"status":"completed"}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "TERMINAL_STATE", env.ErrorCode)
}

func itoa(n uint64) string { return strconv.FormatUint(n, 10) }
