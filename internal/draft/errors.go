package draft

import "errors"

// Commit-path errors, split along the taxonomy callers care about:
// contention errors are expected under concurrency and safe to retry with
// a different selection; policy errors need different input; the rest are
// infrastructure failures wrapped with context.
var (
	// ErrNotYourTurn means the acting team does not own the slot on the clock.
	ErrNotYourTurn = errors.New("not your turn")

	// ErrCardUnavailable means another commit already claimed the entry.
	ErrCardUnavailable = errors.New("card unavailable")

	// ErrInsufficientBudget means the team cannot afford the entry's cost.
	ErrInsufficientBudget = errors.New("insufficient budget")

	// ErrSlotAlreadyFilled means the current slot already has a pick.
	ErrSlotAlreadyFilled = errors.New("slot already filled")

	// ErrPickNotFound means the slot has no pick to undraft.
	ErrPickNotFound = errors.New("pick not found")

	// ErrSessionNotActive means the session is not accepting picks.
	ErrSessionNotActive = errors.New("session not in progress")
)

// IsContention reports whether err is an expected concurrency loss rather
// than a failure worth logging as an error.
func IsContention(err error) bool {
	return errors.Is(err, ErrCardUnavailable) || errors.Is(err, ErrSlotAlreadyFilled)
}
