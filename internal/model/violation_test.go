package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestViolationType_Valid(t *testing.T) {
	assert.True(t, ViolationNoShow.Valid())
	assert.True(t, ViolationOverstay.Valid())
	assert.True(t, ViolationUnauthorizedLeave.Valid())
	assert.False(t, ViolationType("LATE").Valid())
}

func TestViolation_Clone(t *testing.T) {
	id := uint64(9)
	v := &Violation{ID: 1, ReservationID: &id, Status: ViolationUnprocessed}
	cp := v.Clone()
	*cp.ReservationID = 10
	cp.Status = ViolationProcessed

	assert.Equal(t, uint64(9), *v.ReservationID)
	assert.Equal(t, ViolationUnprocessed, v.Status)
}

func TestViolationFilter_Matches(t *testing.T) {
	v := &Violation{UserID: 4, Type: ViolationNoShow, Status: ViolationProcessed}
	assert.True(t, ViolationFilter{}.Matches(v))
	assert.True(t, ViolationFilter{UserID: 4, Type: ViolationNoShow}.Matches(v))
	assert.False(t, ViolationFilter{Status: ViolationUnprocessed}.Matches(v))
	assert.False(t, ViolationFilter{UserID: 5}.Matches(v))
}

func TestSeatSnapshot_Bookable(t *testing.T) {
	assert.True(t, (&SeatSnapshot{Status: SeatAvailable, RoomStatus: RoomOpen}).Bookable())
	assert.False(t, (&SeatSnapshot{Status: SeatMaintenance, RoomStatus: RoomOpen}).Bookable())
	assert.False(t, (&SeatSnapshot{Status: SeatAvailable, RoomStatus: RoomClosed}).Bookable())
}
