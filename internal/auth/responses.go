package auth

// responses.go provides helper functions for sending HTTP responses from the auth handlers.
// Every response uses the authapi.Envelope shape: {success, message, code?, data?}.

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/betforbes/authflow/internal/authapi"
	"github.com/betforbes/authflow/internal/logger"
)

// RespondWithError sends a failed envelope.
//
// The full error is logged server-side; the client only sees the code and the sanitized message.
// Errors that are not an *AuthError are reported as 500 INTERNAL_ERROR.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	reqLogger := logger.ContextRequestLogger(r.Context())

	var authErr *AuthError
	if !errors.As(err, &authErr) {
		reqLogger.Error("BUG: unmapped error type in RespondWithError",
			slog.String("error_type", fmt.Sprintf("%T", err)),
			slog.String("error", err.Error()),
		)
		authErr = &AuthError{code: authapi.ErrCodeInternal, status: http.StatusInternalServerError, message: "Erro interno do servidor", wrapped: err}
	}

	level := slog.LevelWarn
	if authErr.Status() >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	reqLogger.Log(r.Context(), level, "Request failed",
		slog.String("error", err.Error()),
		slog.Int("status_code", authErr.Status()),
		slog.String("error_code", string(authErr.Code())),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	message := authErr.Message()
	if authErr.Status() >= http.StatusInternalServerError {
		message = "Erro interno do servidor"
	}

	RespondWithJSONPayload(w, authErr.Status(), authapi.Envelope{
		Success: false,
		Message: message,
		Code:    authErr.Code(),
	})
}

// RespondWithData sends a successful envelope with data as its payload.
func RespondWithData(w http.ResponseWriter, statusCode int, message string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		slog.Error("Failed to marshal response data", slog.String("error", err.Error()))
		RespondWithJSONPayload(w, http.StatusInternalServerError, authapi.Envelope{
			Success: false,
			Message: "Erro interno do servidor",
			Code:    authapi.ErrCodeInternal,
		})
		return
	}

	RespondWithJSONPayload(w, statusCode, authapi.Envelope{
		Success: true,
		Message: message,
		Data:    raw,
	})
}

// RespondWithJSONPayload sends a JSON response with the given status code
func RespondWithJSONPayload(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			// headers are already written
			slog.Error("Failed to encode JSON response",
				slog.String("error", err.Error()),
			)
		}
	}
}
