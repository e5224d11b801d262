package memory

import (
	"fmt"

	"github.com/iliyamo/study-room-reservation/internal/model"
)

// SeedDemo fills the store with one open room of ten seats, two students
// (ids 1 and 2) and an admin (id 100), so STORE_DRIVER=memory is usable
// without a catalog service.
func SeedDemo(s *Store, openTime, closeTime string) {
	for i := uint64(1); i <= 10; i++ {
		s.PutSeat(model.SeatSnapshot{
			SeatID:     i,
			RoomID:     1,
			SeatNumber: fmt.Sprintf("A%02d", i),
			Status:     model.SeatAvailable,
			RoomStatus: model.RoomOpen,
			OpenTime:   openTime,
			CloseTime:  closeTime,
		})
	}
	s.PutUser(model.UserSnapshot{ID: 1, Role: model.RoleStudent, Status: model.UserActive, CreditScore: 100})
	s.PutUser(model.UserSnapshot{ID: 2, Role: model.RoleStudent, Status: model.UserActive, CreditScore: 100})
	s.PutUser(model.UserSnapshot{ID: 100, Role: model.RoleAdmin, Status: model.UserActive, CreditScore: 100})
}
