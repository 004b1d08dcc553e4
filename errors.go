package quickauth

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes returned to clients in the "code" field.
const (
	ErrCodeMissingField   = "missing_field"
	ErrCodeUsernameTaken  = "username_taken"
	ErrCodeUserNotFound   = "user_not_found"
	ErrCodeInvalidCreds   = "invalid_credentials"
	ErrCodeProviderToken  = "invalid_provider_token"
	ErrCodeServerError    = "server_error"
	ErrCodeInvalidPayload = "invalid_payload"
)

// ErrorKind classifies an AuthError and decides its HTTP status.
type ErrorKind int

const (
	KindValidation ErrorKind = iota
	KindNotFound
	KindConflict
	KindCredential
	KindProvider
	KindUpstream
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindCredential:
		return "credential"
	case KindProvider:
		return "provider"
	case KindUpstream:
		return "upstream"
	}
	return "unknown"
}

// FieldError describes one failing input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// AuthError is a failure that is reported to the client as is.
type AuthError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Field   string
	Details []FieldError
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Status maps the error kind to an HTTP status. Conflicts use
// conflictStatus so deployments can choose between 400 and 409.
func (e *AuthError) Status(conflictStatus int) int {
	switch e.Kind {
	case KindValidation, KindCredential:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		if conflictStatus == 0 {
			return http.StatusBadRequest
		}
		return conflictStatus
	case KindProvider:
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

func NewAuthError(kind ErrorKind, code, message, field string) *AuthError {
	return &AuthError{Kind: kind, Code: code, Message: message, Field: field}
}

func validationError(details []FieldError) *AuthError {
	e := NewAuthError(KindValidation, ErrCodeMissingField, MsgMissingField, "")
	e.Details = details
	if len(details) > 0 {
		e.Field = details[0].Field
	}
	return e
}

func providerError(provider string, err error) *AuthError {
	e := NewAuthError(KindProvider, ErrCodeProviderToken, fmt.Sprintf("Invalid %s token", provider), "accessToken")
	e.Err = err
	return e
}

// AsAuthError returns the AuthError in err's chain, if any.
func AsAuthError(err error) (*AuthError, bool) {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
