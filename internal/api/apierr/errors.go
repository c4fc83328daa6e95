package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/lessonprogress/internal/model"
	"github.com/mcoot/lessonprogress/internal/services/auth"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest      = "INVALID_REQUEST"
	CodeInvalidIdentity     = "INVALID_IDENTITY"
	CodeInvalidLessonID     = "INVALID_LESSON_ID"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeIdentityMismatch    = "IDENTITY_MISMATCH"
	CodeAlreadyInitialized  = "ALREADY_INITIALIZED"
	CodeRecordNotFound      = "RECORD_NOT_FOUND"
	CodeOutOfCapacity       = "OUT_OF_CAPACITY"
	CodeRewardsDisabled     = "REWARDS_DISABLED"
	CodeAccumulatorOverflow = "ACCUMULATOR_OVERFLOW"
	CodeAccountNotFound     = "ACCOUNT_NOT_FOUND"
	CodeUsernameExists      = "USERNAME_EXISTS"
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeInternalError       = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// Status returns the HTTP status an error would be written with
func Status(err error) int {
	return toHTTPError(err).status
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	// Map model errors
	switch {
	case errors.Is(err, model.ErrAlreadyInitialized):
		return &httpError{http.StatusConflict, APIError{CodeAlreadyInitialized, "Progress record already exists"}}
	case errors.Is(err, model.ErrRecordNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeRecordNotFound, "Progress record not found"}}
	case errors.Is(err, model.ErrIdentityMismatch):
		return &httpError{http.StatusForbidden, APIError{CodeIdentityMismatch, "Caller is not the record owner"}}
	case errors.Is(err, model.ErrInvalidLessonID):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidLessonID, err.Error()}}
	case errors.Is(err, model.ErrOutOfCapacity):
		return &httpError{http.StatusConflict, APIError{CodeOutOfCapacity, "Progress record is full"}}
	case errors.Is(err, model.ErrRewardsDisabled):
		return &httpError{http.StatusBadRequest, APIError{CodeRewardsDisabled, "Rewards are not enabled"}}
	case errors.Is(err, model.ErrAccumulatorOverflow):
		return &httpError{http.StatusConflict, APIError{CodeAccumulatorOverflow, "Award would overflow the record totals"}}
	case errors.Is(err, model.ErrInvalidIdentity):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidIdentity, err.Error()}}
	case errors.Is(err, model.ErrAccountNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeAccountNotFound, "Account not found"}}
	case errors.Is(err, model.ErrUsernameTaken):
		return &httpError{http.StatusConflict, APIError{CodeUsernameExists, "Username already exists"}}

	// Map auth errors
	case errors.Is(err, auth.ErrInvalidCredentials):
		return &httpError{http.StatusUnauthorized, APIError{CodeInvalidCredentials, "Invalid username or password"}}
	case errors.Is(err, auth.ErrInvalidSession):
		return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Invalid or expired session"}}

	default:
		return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError() error {
	return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Authentication required"}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}
