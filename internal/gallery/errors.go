package gallery

import "errors"

var (
	// ErrDuplicateUser is returned by Enroll when the given user ID is taken.
	ErrDuplicateUser = errors.New("user already enrolled")

	// ErrNotFound is returned when no user with the given ID is enrolled.
	ErrNotFound = errors.New("user not found")
)
