package reservation

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/study-room-reservation/internal/model"
)

// ValidateWindow checks a requested window against the seat and room
// metadata. It has no side effects.
func ValidateWindow(seat *model.SeatSnapshot, w model.TimeWindow, now time.Time, p Policy) error {
	if w.Start.IsZero() || w.End.IsZero() {
		return newError(ErrInvalidWindow, "start and end are required")
	}
	if !w.Start.Before(w.End) {
		return newError(ErrInvalidWindow, "start must be before end")
	}
	if p.MaxDuration > 0 && w.Duration() > p.MaxDuration {
		return newError(ErrInvalidWindow, "reservation may not exceed %s", p.MaxDuration)
	}
	if !w.End.After(now) {
		return newError(ErrInvalidWindow, "reservation window has already ended")
	}
	if !seat.Bookable() {
		if seat.RoomStatus == model.RoomClosed {
			return newError(ErrSeatUnavailable, "room %d is closed", seat.RoomID)
		}
		return newError(ErrSeatUnavailable, "seat %d is %s", seat.SeatID, seat.Status)
	}
	return checkOperatingHours(seat, w, p.location())
}

// checkOperatingHours requires [start, end) to lie within the room's
// opening hours on the calendar day of start. Windows never span midnight.
func checkOperatingHours(seat *model.SeatSnapshot, w model.TimeWindow, loc *time.Location) error {
	if seat.OpenTime == "" && seat.CloseTime == "" {
		return nil
	}
	open, err := parseClock(seat.OpenTime, 0)
	if err != nil {
		return newError(ErrOutOfOperatingHours, "room %d has invalid open time %q", seat.RoomID, seat.OpenTime)
	}
	closing, err := parseClock(seat.CloseTime, 24*time.Hour)
	if err != nil {
		return newError(ErrOutOfOperatingHours, "room %d has invalid close time %q", seat.RoomID, seat.CloseTime)
	}
	if open >= closing {
		return newError(ErrOutOfOperatingHours, "room %d opens at %s and closes at %s", seat.RoomID, seat.OpenTime, seat.CloseTime)
	}

	start := w.Start.In(loc)
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	opensAt := addClock(day, open)
	closesAt := addClock(day, closing)
	if start.Before(opensAt) || w.End.After(closesAt) {
		return newError(ErrOutOfOperatingHours, "room %d is open %s-%s",
			seat.RoomID, formatClock(open), formatClock(closing))
	}
	return nil
}

// parseClock parses "HH:mm" into an offset from midnight. "24:00" is
// accepted as the end of the day; an empty string yields def.
func parseClock(s string, def time.Duration) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("clock %q: missing colon", s)
	}
	// tolerate a trailing seconds field such as 08:00:00
	if i := strings.IndexByte(mm, ':'); i >= 0 {
		mm = mm[:i]
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("clock %q: %w", s, err)
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, fmt.Errorf("clock %q: %w", s, err)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("clock %q: out of range", s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}

// addClock adds a wall-clock offset to midnight. Using time.Date keeps the
// result correct across DST changes.
func addClock(day time.Time, off time.Duration) time.Time {
	h := int(off / time.Hour)
	m := int((off % time.Hour) / time.Minute)
	return time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, day.Location())
}

func formatClock(off time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(off/time.Hour), int((off%time.Hour)/time.Minute))
}
