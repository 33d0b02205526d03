package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"net/mail"
	"unicode"
	"unicode/utf8"

	"github.com/betforbes/authflow/internal/authapi"
)

const (
	minNameLength     = 2
	maxNameLength     = 100
	minPasswordLength = 8
	// bcrypt rejects longer input
	maxPasswordBytes  = 72

	referralCodeLength   = 8
	referralCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	secureTokenBytes = 32
)

func validateRegisterRequest(req authapi.RegisterRequest) error {
	if n := utf8.RuneCountInString(req.Name); n < minNameLength || n > maxNameLength {
		return NewValidationError(fmt.Sprintf("Nome deve ter entre %d e %d caracteres", minNameLength, maxNameLength))
	}

	if req.Email == "" {
		return NewValidationError("Email é obrigatório")
	}
	addr, err := mail.ParseAddress(req.Email)
	if err != nil || addr.Address != req.Email {
		return NewValidationError("Email deve ter um formato válido")
	}

	return validatePassword(req.Password)
}

// validatePassword requires at least 8 characters, at most 72 bytes, and at least one lower case letter,
// one upper case letter and one digit.
func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return NewValidationError(fmt.Sprintf("Senha deve ter pelo menos %d caracteres", minPasswordLength))
	}
	if len(password) > maxPasswordBytes {
		return NewValidationError(fmt.Sprintf("Senha deve ter no máximo %d bytes", maxPasswordBytes))
	}

	var lower, upper, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !lower || !upper || !digit {
		return NewValidationError("Senha deve conter pelo menos uma letra minúscula, uma maiúscula e um número")
	}
	return nil
}

// generateSecureToken returns 32 random bytes, hex encoded.
func generateSecureToken() (string, error) {
	b := make([]byte, secureTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func generateReferralCode() (string, error) {
	code := make([]byte, referralCodeLength)
	limit := big.NewInt(int64(len(referralCodeAlphabet)))
	for i := range code {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		code[i] = referralCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}
