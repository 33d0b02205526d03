package auth

// errors.go defines the errors returned by the auth endpoints.
// Each error carries the HTTP status and the machine readable code sent to the client.

import (
	"fmt"
	"net/http"

	"github.com/betforbes/authflow/internal/authapi"
)

// AuthError represents a structured error from the auth package.
type AuthError struct {
	// code is sent to the client in the "code" field of the response envelope
	code authapi.ErrorCode

	// status is the HTTP status code of the response
	status int

	// message is a human-readable error message (sent to the client)
	message string

	// wrapped is the optional underlying error (logged, never sent to the client)
	wrapped error
}

func (e *AuthError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrapped)
	}
	return e.message
}

func (e *AuthError) Code() authapi.ErrorCode { return e.code }
func (e *AuthError) Status() int             { return e.status }
func (e *AuthError) Message() string         { return e.message }
func (e *AuthError) Unwrap() error           { return e.wrapped }

// NewValidationError is used when a request body is missing fields or has bad values.
func NewValidationError(msg string) error {
	return &AuthError{code: authapi.ErrCodeValidation, status: http.StatusBadRequest, message: msg}
}

// WrapValidationError wraps a decoding error as a validation error.
func WrapValidationError(err error, msg string) error {
	return &AuthError{code: authapi.ErrCodeValidation, status: http.StatusBadRequest, message: msg, wrapped: err}
}

func NewEmailAlreadyExistsError() error {
	return &AuthError{code: authapi.ErrCodeEmailAlreadyExists, status: http.StatusConflict, message: "Email já está em uso"}
}

func NewInvalidReferralCodeError() error {
	return &AuthError{code: authapi.ErrCodeInvalidReferral, status: http.StatusBadRequest, message: "Código de referência inválido"}
}

// NewInvalidCredentialsError is returned for an unknown email and for a wrong password alike.
func NewInvalidCredentialsError() error {
	return &AuthError{code: authapi.ErrCodeInvalidCredentials, status: http.StatusUnauthorized, message: "Email ou senha incorretos"}
}

func NewAccountDisabledError() error {
	return &AuthError{code: authapi.ErrCodeAccountDisabled, status: http.StatusUnauthorized, message: "Conta desativada"}
}

func NewEmailNotVerifiedError() error {
	return &AuthError{code: authapi.ErrCodeEmailNotVerified, status: http.StatusUnauthorized, message: "Email não verificado"}
}

func NewMissingTokenError() error {
	return &AuthError{code: authapi.ErrCodeMissingToken, status: http.StatusBadRequest, message: "Token de verificação é obrigatório"}
}

func NewInvalidTokenError() error {
	return &AuthError{code: authapi.ErrCodeInvalidToken, status: http.StatusBadRequest, message: "Token de verificação inválido"}
}

func NewTokenAlreadyUsedError() error {
	return &AuthError{code: authapi.ErrCodeTokenAlreadyUsed, status: http.StatusBadRequest, message: "Token já foi utilizado"}
}

func NewTokenExpiredError() error {
	return &AuthError{code: authapi.ErrCodeTokenExpired, status: http.StatusBadRequest, message: "Token expirado"}
}

// WrapInternalError wraps database and crypto failures. The wrapped error is logged, not returned to the client.
func WrapInternalError(err error, msg string) error {
	return &AuthError{code: authapi.ErrCodeInternal, status: http.StatusInternalServerError, message: msg, wrapped: err}
}

// NewRateLimitError is only used by the middleware.
func NewRateLimitError(msg string) error {
	return &AuthError{code: authapi.ErrCodeRateLimitExceeded, status: http.StatusTooManyRequests, message: msg}
}

// NewRequestTooLargeError is only used by the middleware.
func NewRequestTooLargeError(msg string) error {
	return &AuthError{code: authapi.ErrCodeRequestTooLarge, status: http.StatusRequestEntityTooLarge, message: msg}
}
