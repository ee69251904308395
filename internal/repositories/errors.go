package repositories

import "errors"

// ErrNotFound is returned when a lookup matches no record. Handlers
// translate it into an HTTP 404 response.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when an insert collides with a unique key,
// such as a second account for the same email.
var ErrDuplicate = errors.New("duplicate record")

// ErrStale is returned by conditional writes when the record exists but is
// no longer in the expected state.
var ErrStale = errors.New("record changed concurrently")
