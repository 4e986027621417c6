package models

import "time"

// User is an enrolled gallery member. Identity is UserID, unique across the
// gallery. The signature is removed together with the user record.
type User struct {
	UserID     string    `json:"user_id" db:"user_id"`
	Name       string    `json:"name" db:"name"`
	Signature  Signature `json:"-" db:"signature"`
	EnrolledAt time.Time `json:"enrolled_at" db:"enrolled_at"`
}
