package session

import "errors"

// Local validation failures. All of these are non-fatal: they reject the
// user action and leave prior state intact.
var (
	ErrInsufficientBalance = errors.New("stake exceeds balance")
	ErrInvalidSelection    = errors.New("no side selected or zero stake")
	ErrAlreadyConfirmed    = errors.New("bid already confirmed this round")
	ErrBettingClosed       = errors.New("betting window is closed")
)
