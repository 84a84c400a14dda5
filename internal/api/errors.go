package api

import (
	"errors"
	"net/http"

	"github.com/ignite/copyloop/internal/pkg/httputil"
	"github.com/ignite/copyloop/internal/pkg/logger"
	"github.com/ignite/copyloop/internal/service/optimization"
	"github.com/ignite/copyloop/internal/service/performance"
)

// Error codes carried in the "code" field of error responses.
const (
	codeInvalidInput         = "invalid_input"
	codePayloadTooLarge      = "payload_too_large"
	codeCampaignNotFound     = "campaign_not_found"
	codeBatchNotFound        = "batch_not_found"
	codeBatchClosed          = "batch_closed"
	codeBusy                 = "busy"
	codeNoWinners            = "no_winners"
	codeGeneratorUnavailable = "generator_unavailable"
)

// respondServiceError maps service sentinels to HTTP responses. 4xx bodies
// carry the error text; 5xx bodies never include internal details.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, performance.ErrInvalidInput), errors.Is(err, optimization.ErrInvalidInput):
		httputil.ErrorWithCode(w, http.StatusBadRequest, codeInvalidInput, err.Error())
	case errors.Is(err, performance.ErrCampaignNotFound):
		httputil.ErrorWithCode(w, http.StatusNotFound, codeCampaignNotFound, performance.ErrCampaignNotFound.Error())
	case errors.Is(err, performance.ErrBatchNotFound):
		httputil.ErrorWithCode(w, http.StatusNotFound, codeBatchNotFound, performance.ErrBatchNotFound.Error())
	case errors.Is(err, performance.ErrBatchClosed):
		httputil.ErrorWithCode(w, http.StatusConflict, codeBatchClosed, performance.ErrBatchClosed.Error())
	case errors.Is(err, optimization.ErrBusy):
		httputil.ErrorWithCode(w, http.StatusConflict, codeBusy, optimization.ErrBusy.Error())
	case errors.Is(err, optimization.ErrNoWinners):
		httputil.ErrorWithCode(w, http.StatusUnprocessableEntity, codeNoWinners, optimization.ErrNoWinners.Error())
	case errors.Is(err, optimization.ErrGeneratorUnavailable):
		logger.Warn("generator unavailable", "error", err)
		httputil.ErrorWithCode(w, http.StatusServiceUnavailable, codeGeneratorUnavailable, optimization.ErrGeneratorUnavailable.Error())
	default:
		httputil.InternalError(w, err)
	}
}
