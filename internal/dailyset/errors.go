package dailyset

import (
	"errors"
	"fmt"
)

// Error classes. Narrower errors wrap one of these so callers can match on
// the class with errors.Is.
var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrAuth             = errors.New("unauthorized")
	ErrAlreadyCompleted = errors.New("already completed for this date")
	ErrAlreadyFinished  = errors.New("session finished")
	ErrNotATriple       = errors.New("not a set")
	// ErrConflict reports a lost optimistic-concurrency race.
	ErrConflict = errors.New("concurrent modification")
)

var (
	ErrInvalidIndices  = fmt.Errorf("%w: need three unique card indices on the board", ErrValidation)
	ErrInvalidDate     = fmt.Errorf("%w: date must be YYYY-MM-DD", ErrValidation)
	ErrInvalidUsername = fmt.Errorf("%w: username must be 1-12 letters, digits, '_' or '-'", ErrValidation)
	ErrInvalidSeconds  = fmt.Errorf("%w: seconds must be between 0 and 86400", ErrValidation)

	// ErrExpired reports a session past its expiry; it is as terminal as a
	// finished one.
	ErrExpired = fmt.Errorf("%w: session expired", ErrAlreadyFinished)
)
