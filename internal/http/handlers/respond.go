package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/geocoder89/todotask/internal/http/middlewares"
	"github.com/geocoder89/todotask/internal/service"
	"github.com/gin-gonic/gin"
)

type APIError struct {
	Detail    string       `json:"detail"`
	Code      string       `json:"code"`
	RequestID string       `json:"requestId,omitempty"`
	Fields    []FieldError `json:"fields,omitempty"`
}

func requestIDFrom(ctx *gin.Context) string {
	if id := ctx.GetString(middlewares.CtxRequestID); id != "" {
		return id
	}

	return ctx.GetHeader("X-Request-Id")
}

func RespondError(ctx *gin.Context, status int, code, detail string, fields []FieldError) {
	ctx.JSON(status, APIError{
		Detail:    detail,
		Code:      code,
		RequestID: requestIDFrom(ctx),
		Fields:    fields,
	})
}

func RespondNotFound(ctx *gin.Context, detail string) {
	RespondError(ctx, http.StatusNotFound, "not_found", detail, nil)
}

func RespondInternal(ctx *gin.Context) {
	RespondError(ctx, http.StatusInternalServerError, "internal_error", "Internal server error", nil)
}

// RespondDomainError writes a *service.Error with its own status. Anything
// else is logged and hidden behind a 500.
func RespondDomainError(ctx *gin.Context, log *slog.Logger, err error) {
	var domainErr *service.Error

	if errors.As(err, &domainErr) {
		RespondError(ctx, domainErr.Status, string(domainErr.Kind), domainErr.Message, nil)
		return
	}

	if errors.Is(err, context.DeadlineExceeded) {
		log.WarnContext(ctx.Request.Context(), "request timed out", "err", err, "request_id", requestIDFrom(ctx))
		RespondError(ctx, http.StatusServiceUnavailable, "timeout", "Request timed out", nil)
		return
	}

	log.ErrorContext(ctx.Request.Context(), "request failed", "err", err, "request_id", requestIDFrom(ctx))
	RespondInternal(ctx)
}
