package handlers

import (
	"errors"
	"net/http"

	"channeld/pkg/errs"
	"channeld/pkg/logger"
	"channeld/pkg/utils"
)

// writeErr maps a domain error to its HTTP status. Unmapped errors become
// a generic 500 so internal detail never leaks to clients.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errs.ErrInvalidArgument),
		errors.Is(err, errs.ErrUnknownReference),
		errors.Is(err, errs.ErrNotMember):
		utils.JSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, errs.ErrUnauthenticated):
		utils.JSONError(w, http.StatusUnauthorized, "please sign in")
	case errors.Is(err, errs.ErrForbidden):
		utils.JSONError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, errs.ErrNotFound):
		utils.JSONError(w, http.StatusNotFound, "not found")
	case errors.Is(err, errs.ErrConflict):
		utils.JSONError(w, http.StatusConflict, err.Error())
	default:
		logger.Error("request_failed", "error", err)
		utils.JSONError(w, http.StatusInternalServerError, "internal error")
	}
}
