package optimization

import "errors"

// Sentinel errors for the optimization service layer.
var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrNoWinners            = errors.New("campaign has no winning angles")
	ErrGeneratorUnavailable = errors.New("content generator unavailable")
	ErrBusy                 = errors.New("campaign is being optimized by another request")
)
