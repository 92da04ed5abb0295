package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/geocoder89/taskhub/internal/apperr"
	"github.com/gin-gonic/gin"
)

type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"request_id,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

func requestIDFrom(ctx *gin.Context) string {
	v, ok := ctx.Get("request_id")

	if ok {
		s, ok := v.(string)
		if ok && s != "" {
			return s
		}
	}

	// fallback header
	return ctx.GetHeader("X-Request-Id")
}

func RespondError(ctx *gin.Context, status int, code, message string, details interface{}) {
	ctx.JSON(status, gin.H{
		"error": APIError{
			Code:      code,
			Message:   message,
			RequestID: requestIDFrom(ctx),
			Details:   details,
		},
	})
}

func RespondBadRequest(ctx *gin.Context, message string, details interface{}) {
	RespondError(ctx, http.StatusBadRequest, "invalid_request", message, details)
}

func RespondValidation(ctx *gin.Context, field, message string) {
	RespondError(ctx, http.StatusUnprocessableEntity, "validation_failed", "Validation failed", gin.H{
		"fields": []FieldError{{Field: field, Rule: "invalid", Message: message}},
	})
}

func RespondUnAuthorized(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusUnauthorized, code, message, nil)
}

func RespondNotFound(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusNotFound, "not_found", message, nil)
}

func RespondConflict(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusConflict, code, message, nil)
}

func RespondUnavailable(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusServiceUnavailable, "store_unavailable", message, nil)
}

func RespondInternal(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusInternalServerError, "internal_error", message, nil)
}

// RespondServiceError maps the service error taxonomy onto the wire.
// notFound is the message used for a missing resource.
func RespondServiceError(ctx *gin.Context, err error, notFound string) {
	var ve *apperr.ValidationError

	switch {
	case errors.As(err, &ve):
		RespondValidation(ctx, ve.Field, ve.Message)
	case errors.Is(err, apperr.ErrDuplicateEmail):
		RespondConflict(ctx, "email_taken", "Email is already in use.")
	case errors.Is(err, apperr.ErrInvalidCredentials):
		RespondUnAuthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
	case errors.Is(err, apperr.ErrUnauthorized):
		RespondUnAuthorized(ctx, "unauthorized", "Authentication required")
	case errors.Is(err, apperr.ErrNotFound):
		RespondNotFound(ctx, notFound)
	case errors.Is(err, apperr.ErrStoreUnavailable):
		slog.Default().WarnContext(ctx.Request.Context(), "store unavailable", "err", err)
		RespondUnavailable(ctx, "Service temporarily unavailable")
	default:
		slog.Default().ErrorContext(ctx.Request.Context(), "request failed", "err", err)
		RespondInternal(ctx, "Something went wrong")
	}
}
