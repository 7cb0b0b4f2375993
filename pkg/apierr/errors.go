// Package apierr defines the error taxonomy shared by the transport layer and
// the session manager. Callers branch on the sentinel errors with errors.Is;
// the raw server response, when one exists, is carried by APIError.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Account errors
var (
	ErrAccountExists   = errors.New("account already exists")
	ErrAccountNotFound = errors.New("account not found")
)

// OTP errors
var (
	ErrInvalidOTP        = errors.New("invalid otp code")
	ErrResendUnavailable = errors.New("otp resend not available yet")
)

// Session errors
var (
	ErrSessionInvalidated = errors.New("session invalidated")
	ErrOperationInFlight  = errors.New("operation already in flight")
)

// Transport errors
var (
	ErrNetwork = errors.New("network failure")
)

// APIError is a non-2xx response decoded from the server. Code is the
// machine-readable classifier from the error body when the server sent one.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`

	// sentinel the error classifies as, for errors.Is
	kind error
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Unwrap exposes the sentinel so errors.Is(err, ErrAccountExists) works on the
// wrapped response.
func (e *APIError) Unwrap() error {
	return e.kind
}

// FromResponse classifies a non-2xx status plus decoded error body into the
// taxonomy. Unclassified statuses stay a plain APIError carrying the server's
// message.
func FromResponse(status int, code, message string) *APIError {
	e := &APIError{Status: status, Code: code, Message: message}
	switch {
	case status == http.StatusUnauthorized:
		e.kind = ErrSessionInvalidated
	case status == http.StatusConflict, code == "account_exists":
		e.kind = ErrAccountExists
	case status == http.StatusNotFound && code == "account_not_found":
		e.kind = ErrAccountNotFound
	case code == "invalid_otp":
		e.kind = ErrInvalidOTP
	}
	return e
}

// Network wraps a transport-level failure (connect, timeout, DNS). Credentials
// are never cleared on these.
func Network(err error) error {
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}
