// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"homeserve/internal/modules/booking"
	"homeserve/internal/modules/matching"
	"homeserve/internal/modules/provider"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// isValidID accepts generated hex ids and Firebase uids.
func isValidID(v string) bool {
	if v == "" || len(v) > 128 {
		return false
	}
	for _, c := range v {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '-' || c == '_' {
			continue
		}
		return false
	}
	return true
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writeMatchingError exposes typed reasons only; store errors never reach the client.
func writeMatchingError(c *gin.Context, err error) {
	code := matching.ErrorCode(err)
	switch {
	case errors.Is(err, matching.ErrBadRequest):
		writeJSON(c, http.StatusBadRequest, errorResponse{Error: err.Error(), Code: code})
	case errors.Is(err, matching.ErrNotFound):
		writeJSON(c, http.StatusNotFound, errorResponse{Error: err.Error(), Code: code})
	case errors.Is(err, matching.ErrInvalidState),
		errors.Is(err, matching.ErrIneligible),
		errors.Is(err, matching.ErrOutOfRange),
		errors.Is(err, matching.ErrSkillMismatch),
		errors.Is(err, matching.ErrScheduleConflict):
		writeJSON(c, http.StatusConflict, errorResponse{Error: err.Error(), Code: code})
	case errors.Is(err, matching.ErrPersistence):
		writeJSON(c, http.StatusServiceUnavailable, errorResponse{Error: "temporarily unavailable, retry", Code: code})
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func writeBookingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, booking.ErrBadRequest):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, booking.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, booking.ErrForbidden):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, booking.ErrInvalidState), errors.Is(err, booking.ErrConflict):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func writeProviderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, provider.ErrBadRequest):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, provider.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
