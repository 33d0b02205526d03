package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/betforbes/authflow/internal/auth"
	"github.com/betforbes/authflow/internal/authapi"
	"github.com/betforbes/authflow/internal/logger"
)

// AuthService is implemented by *auth.Service.
type AuthService interface {
	Register(ctx context.Context, req authapi.RegisterRequest) (*authapi.RegisterData, error)
	VerifyEmail(ctx context.Context, token string) (*authapi.VerifyEmailData, error)
	Login(ctx context.Context, req authapi.LoginRequest) (*authapi.LoginData, error)
}

// HandleRegister creates an unverified user (POST /api/auth/register).
//
// 201 on success, 400 VALIDATION_ERROR, 409 EMAIL_ALREADY_EXISTS.
func HandleRegister(svc AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req authapi.RegisterRequest
		if err := decodeJSONBody(r, &req); err != nil {
			auth.RespondWithError(w, r, err)
			return
		}

		logger.ContextWithLogAttrs(r.Context(), slog.String("email", req.Email))

		data, err := svc.Register(r.Context(), req)
		if err != nil {
			auth.RespondWithError(w, r, err)
			return
		}

		auth.RespondWithData(w, http.StatusCreated,
			"Usuário criado com sucesso. Verifique seu email para ativar a conta.", data)
	}
}

// HandleVerifyEmail consumes a verification token (GET /api/auth/verify-email?token=...).
//
// 200 on success, 400 MISSING_TOKEN, INVALID_TOKEN, TOKEN_ALREADY_USED or TOKEN_EXPIRED.
func HandleVerifyEmail(svc AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := svc.VerifyEmail(r.Context(), r.URL.Query().Get("token"))
		if err != nil {
			auth.RespondWithError(w, r, err)
			return
		}

		auth.RespondWithData(w, http.StatusOK, "Email verificado com sucesso!", data)
	}
}

// HandleLogin issues an access token and a refresh token (POST /api/auth/login).
//
// 200 on success, 401 INVALID_CREDENTIALS, ACCOUNT_DISABLED or EMAIL_NOT_VERIFIED.
func HandleLogin(svc AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req authapi.LoginRequest
		if err := decodeJSONBody(r, &req); err != nil {
			auth.RespondWithError(w, r, err)
			return
		}

		logger.ContextWithLogAttrs(r.Context(), slog.String("email", req.Email))

		data, err := svc.Login(r.Context(), req)
		if err != nil {
			auth.RespondWithError(w, r, err)
			return
		}

		auth.RespondWithData(w, http.StatusOK, "Login realizado com sucesso", data)
	}
}

func decodeJSONBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return auth.NewRequestTooLargeError(
				fmt.Sprintf("Request body exceeds maximum allowed size (%d bytes)", maxBytesErr.Limit))
		}
		return auth.WrapValidationError(err, "Corpo da requisição inválido")
	}
	return nil
}
