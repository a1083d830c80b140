package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors shared across the domain layer.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrConflict     = errors.New("state conflict")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// Coder is implemented by domain errors that carry a stable business
// error code from the process taxonomy.
type Coder interface {
	BusinessCode() int
}

type classifiedError struct {
	kind error
	code int
	msg  string
}

func (e *classifiedError) Error() string     { return e.msg }
func (e *classifiedError) Unwrap() error     { return e.kind }
func (e *classifiedError) BusinessCode() int { return e.code }

// NewError returns a sentinel error of the given kind. Modules use it
// so RespondError can map their errors without per-module switches.
func NewError(kind error, msg string) error {
	return &classifiedError{kind: kind, msg: msg}
}

// NewCoded is NewError with a stable business code attached.
func NewCoded(kind error, code int, msg string) error {
	return &classifiedError{kind: kind, code: code, msg: msg}
}

// Classified reports whether err wraps one of the shared kinds.
// Handlers use it to log only genuinely unexpected failures.
func Classified(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrUnauthorized)
}

// RespondError maps domain errors to HTTP responses using RFC7807.
// Unknown errors are reported as a generic unavailability without
// leaking internal detail.
func RespondError(w http.ResponseWriter, err error) {
	var code int
	var coder Coder
	if errors.As(err, &coder) {
		code = coder.BusinessCode()
	}

	switch {
	case errors.Is(err, ErrNotFound):
		ProblemCode(w, http.StatusNotFound, "Not Found", err.Error(), code)
	case errors.Is(err, ErrConflict):
		ProblemCode(w, http.StatusConflict, "Conflict", err.Error(), code)
	case errors.Is(err, ErrValidation):
		ProblemCode(w, http.StatusBadRequest, "Validation Failed", err.Error(), code)
	case errors.Is(err, ErrForbidden):
		ProblemCode(w, http.StatusForbidden, "Forbidden", err.Error(), code)
	case errors.Is(err, ErrUnauthorized):
		ProblemCode(w, http.StatusUnauthorized, "Unauthorized", err.Error(), code)
	default:
		Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "")
	}
}
