package authapi

// types.go describes the JSON bodies exchanged with the /api/auth endpoints.
// The authstub server encodes its responses with the same types.

import (
	"encoding/json"
	"time"
)

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`

	// ReferralCode is the code of an existing user who referred this one (optional)
	ReferralCode string `json:"referralCode,omitempty"`
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Envelope wraps every response from the auth API.
// Data is left raw so callers can decode only what they need.
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Code    ErrorCode       `json:"code,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Role         string     `json:"role"`
	IsVerified   bool       `json:"isVerified"`
	Balance      float64    `json:"balance"`
	ReferralCode string     `json:"referralCode,omitempty"`
	CreatedAt    *time.Time `json:"createdAt,omitempty"`
}

type RegisterData struct {
	User      User `json:"user"`
	EmailSent bool `json:"emailSent"`
}

type VerifyEmailData struct {
	User User `json:"user"`
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type LoginData struct {
	User   User      `json:"user"`
	Tokens TokenPair `json:"tokens"`
}

// ErrorCode is the machine readable code carried by failed responses.
type ErrorCode string

const (
	ErrCodeEmailAlreadyExists ErrorCode = "EMAIL_ALREADY_EXISTS"
	ErrCodeInvalidReferral    ErrorCode = "INVALID_REFERRAL_CODE"
	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeAccountDisabled    ErrorCode = "ACCOUNT_DISABLED"
	ErrCodeEmailNotVerified   ErrorCode = "EMAIL_NOT_VERIFIED"
	ErrCodeMissingToken       ErrorCode = "MISSING_TOKEN"
	ErrCodeInvalidToken       ErrorCode = "INVALID_TOKEN"
	ErrCodeTokenAlreadyUsed   ErrorCode = "TOKEN_ALREADY_USED"
	ErrCodeTokenExpired       ErrorCode = "TOKEN_EXPIRED"
	ErrCodeValidation         ErrorCode = "VALIDATION_ERROR"
	ErrCodeRateLimitExceeded  ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeRequestTooLarge    ErrorCode = "REQUEST_TOO_LARGE"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
)

// AccessTokenFromBody extracts the access token from a login response body.
//
// The documented location is data.tokens.accessToken; a few flat layouts
// ("accessToken", "access_token", "token" at the top level or under data) are
// also accepted so the flow can report on services that deviate from it.
func AccessTokenFromBody(body []byte) (string, bool) {
	var envelope Envelope
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Data) > 0 {
		var data LoginData
		if err := json.Unmarshal(envelope.Data, &data); err == nil && data.Tokens.AccessToken != "" {
			return data.Tokens.AccessToken, true
		}
		if token, ok := flatAccessToken(envelope.Data); ok {
			return token, true
		}
	}

	return flatAccessToken(body)
}

func flatAccessToken(raw []byte) (string, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return "", false
	}

	for _, key := range []string{"accessToken", "access_token", "token"} {
		value, ok := fields[key]
		if !ok {
			continue
		}
		var token string
		if err := json.Unmarshal(value, &token); err == nil && token != "" {
			return token, true
		}
	}
	return "", false
}
