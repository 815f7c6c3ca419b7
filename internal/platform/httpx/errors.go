// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/a4s/shopledger/internal/shared"
)

// ErrUnauthorized is returned when a mutating request carries no actor.
var ErrUnauthorized = errors.New("unauthorized")

// RespondError maps domain errors to HTTP responses using RFC7807.
// Unexpected errors never leak their text to the caller.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", shared.Message(err))
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", shared.Message(err))
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", shared.Message(err))
	case errors.Is(err, ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", "actor headers required")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "the operation failed and nothing was saved")
	}
}

// LogAndRespond logs server-side failures before mapping them.
func LogAndRespond(logger *slog.Logger, w http.ResponseWriter, op string, err error) {
	if logger != nil && !isClientError(err) {
		logger.Error(op, slog.Any("error", err))
	}
	RespondError(w, err)
}

func isClientError(err error) bool {
	return errors.Is(err, shared.ErrValidation) ||
		errors.Is(err, shared.ErrNotFound) ||
		errors.Is(err, shared.ErrConflict) ||
		errors.Is(err, ErrUnauthorized)
}

// ValidationProblem renders validator/v10 failures as a single 400 response.
func ValidationProblem(w http.ResponseWriter, err error) {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, fe.Namespace()+": failed "+fe.Tag())
	}
	Problem(w, http.StatusBadRequest, "Validation Failed", strings.Join(parts, "; "))
}
