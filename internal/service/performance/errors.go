package performance

import "errors"

// Sentinel errors for the performance service layer.
var (
	ErrCampaignNotFound = errors.New("campaign not found")
	ErrBatchNotFound    = errors.New("import batch not found")
	ErrBatchClosed      = errors.New("import batch already finished")
	ErrInvalidInput     = errors.New("invalid input")
)
