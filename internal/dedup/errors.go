package dedup

import "errors"

// ErrUnhashable is returned when a payload cannot be canonically serialized.
// Callers treat such events as never-duplicate.
var ErrUnhashable = errors.New("payload is not hashable")
