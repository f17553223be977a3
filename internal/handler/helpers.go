package handler

import (
	"errors"
	"net/http"

	"quicksend/internal/domain"
	"quicksend/internal/httputil"
)

// handleError converts domain errors to HTTP responses
func handleError(w http.ResponseWriter, err error) {
	var cycleErr *domain.CycleError

	switch {
	case errors.As(err, &cycleErr):
		httputil.RespondErrorWithExtras(w, cycleErr.StatusCode(), cycleErr.Error(), map[string]interface{}{
			"group_id":  cycleErr.GroupID,
			"parent_id": cycleErr.ParentID,
		})
	case errors.Is(err, domain.ErrValidation):
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrUnauthorized):
		httputil.RespondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		httputil.RespondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrConflict):
		httputil.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrMisconfigured):
		httputil.RespondError(w, http.StatusInternalServerError, "server misconfigured")
	default:
		httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}
