package card

import "errors"

var (
	// ErrAlreadyUsed is returned by the store when a token was consumed before.
	// Approve reports it as an unsuccessful Approval instead of an error.
	ErrAlreadyUsed        = errors.New("token already used")
	ErrTokenExpired       = errors.New("token expired")
	ErrQuotaExceeded      = errors.New("no card slots available")
	ErrDuplicateShortName = errors.New("short name is already taken")
	ErrWindowClosed       = errors.New("card edited recently or too many times, request a new edit approval")
	ErrForbidden          = errors.New("card is owned by another account")
	ErrApprovalRequired   = errors.New("approval required, a request has been sent to the card email")
	ErrMarkerInUse        = errors.New("marker is used by a card")
	ErrAlreadyActive      = errors.New("card is already active")
)
