package model

import "time"

// Roles carried in the JWT "role" claim.
const (
	RoleStudent = "STUDENT"
	RoleAdmin   = "ADMIN"
)

// User account status values.
const (
	UserActive = "active"
	UserBanned = "banned"
)

// UserSnapshot is the directory's view of a user. Only CreditScore is ever
// written by this service, and only through the credit ledger.
//
// Fields:
//  ID          – users.id
//  Role        – STUDENT or ADMIN.
//  Status      – active or banned.
//  CreditScore – current credit balance.
type UserSnapshot struct {
	ID          uint64 `json:"id"`
	Role        string `json:"role"`
	Status      string `json:"status"`
	CreditScore int    `json:"credit_score"`
}

// CreditEntry is one row of the credit ledger. Key, when set, is unique and
// makes the adjustment idempotent.
//
// Fields:
//  ID           – primary key identifier.
//  UserID       – user whose score changed.
//  Delta        – requested change.
//  Applied      – change actually applied after clamping.
//  BalanceAfter – score after the change.
//  Reason       – human readable reason.
//  Key          – idempotency key such as "violation:42".
//  CreatedAt    – creation timestamp.
type CreditEntry struct {
	ID           uint64    `json:"id"`
	UserID       uint64    `json:"user_id"`
	Delta        int       `json:"delta"`
	Applied      int       `json:"applied"`
	BalanceAfter int       `json:"balance_after"`
	Reason       string    `json:"reason"`
	Key          string    `json:"key,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
