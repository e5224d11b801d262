package reservation

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const qrPrefix = "CHECKIN"

// EncodeCheckInCode returns the payload printed in a check-in QR code:
// CHECKIN:<reservationId>:<nonce>.
func EncodeCheckInCode(reservationID uint64) string {
	return qrPrefix + ":" + strconv.FormatUint(reservationID, 10) + ":" + uuid.NewString()
}

// DecodeCheckInCode extracts the reservation id from a check-in payload.
// Anything without the CHECKIN: prefix or with other than three
// colon-separated fields is rejected.
func DecodeCheckInCode(code string) (uint64, error) {
	if !strings.HasPrefix(code, qrPrefix+":") {
		return 0, newError(ErrInvalidQRCode, "check-in code must start with %s:", qrPrefix)
	}
	parts := strings.Split(code, ":")
	if len(parts) != 3 {
		return 0, newError(ErrInvalidQRCode, "check-in code must have 3 fields, got %d", len(parts))
	}
	id, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil || id == 0 {
		return 0, newError(ErrInvalidQRCode, "check-in code has invalid reservation id %q", parts[1])
	}
	if parts[2] == "" {
		return 0, newError(ErrInvalidQRCode, "check-in code has empty nonce")
	}
	return id, nil
}
