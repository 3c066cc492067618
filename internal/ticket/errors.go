package ticket

import "errors"

var (
	ErrPermissionDenied  = errors.New("permission denied")
	ErrInvalidTransition = errors.New("action not valid in current status")
	ErrTicketsDisabled   = errors.New("tickets are not enabled for this guild")
	ErrOpenCooldown      = errors.New("open cooldown not elapsed")
	ErrAlreadyRated      = errors.New("session already rated")
	ErrInvalidRating     = errors.New("rating must be between 1 and 5")
	ErrUnknownIntent     = errors.New("unknown intent")
)
