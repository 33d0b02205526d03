package accesstoken

import (
	"errors"
	"fmt"
)

// Error represents a structured error from the accesstoken package
type Error interface {
	error
	Code() ErrorCode
	Unwrap() error
}

type ErrorCode string

const (
	// ErrCodeMalformed: the value is not a parseable JWT
	ErrCodeMalformed ErrorCode = "malformed"

	// ErrCodeVerification: signature or claim validation failed
	ErrCodeVerification ErrorCode = "verification"

	// ErrCodeKeyFetch: the JWK set could not be fetched or registered
	ErrCodeKeyFetch ErrorCode = "key_fetch"

	// ErrCodeInternal: key generation or signing failed
	ErrCodeInternal ErrorCode = "internal"
)

// TokenError represents a structured error from the accesstoken package
type TokenError struct {

	// code is the error code
	code ErrorCode

	// message is a human-readable error message
	message string

	// wrapped is the optional underlying error
	wrapped error
}

func (e *TokenError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrapped)
	}
	return e.message
}

func (e *TokenError) Code() ErrorCode { return e.code }
func (e *TokenError) Unwrap() error   { return e.wrapped }

func wrapError(code ErrorCode, err error, msg string) error {
	return &TokenError{code: code, message: msg, wrapped: err}
}

// ErrorCodeOf returns the code of err if it (or an error it wraps) is a TokenError.
func ErrorCodeOf(err error) (ErrorCode, bool) {
	var tokenErr *TokenError
	if errors.As(err, &tokenErr) {
		return tokenErr.Code(), true
	}
	return "", false
}
