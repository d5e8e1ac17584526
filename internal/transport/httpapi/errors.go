package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Rauan19/agendoai-sub000/internal/domain"
	"github.com/Rauan19/agendoai-sub000/internal/store"
)

var errBodyTooLarge = errors.New("request body too large")

type errorResponse struct {
	Outcome string `json:"outcome"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// writeError maps the error taxonomy onto status codes. Anything not
// recognised is a storage failure and its text is not echoed.
func writeError(c *gin.Context, logger *slog.Logger, err error) {
	var vErr *domain.ValidationError
	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, errorResponse{Outcome: "invalid", Field: vErr.Field, Message: vErr.Msg})
	case errors.Is(err, store.ErrConflict):
		c.JSON(http.StatusConflict, errorResponse{Outcome: "conflict", Message: "the requested time is no longer available"})
	case errors.Is(err, domain.ErrInvalidTransition):
		c.JSON(http.StatusConflict, errorResponse{Outcome: "invalid_transition", Message: err.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Outcome: "not_found", Message: "not found"})
	case errors.Is(err, store.ErrIdempotencyConflict):
		c.JSON(http.StatusUnprocessableEntity, errorResponse{Outcome: "idempotency_conflict", Message: "Idempotency-Key was already used for a different request"})
	case errors.Is(err, errBodyTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, errorResponse{Outcome: "invalid", Field: "body", Message: err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		logger.WarnContext(c.Request.Context(), "request timed out", slog.String("route", c.FullPath()))
		c.JSON(http.StatusServiceUnavailable, errorResponse{Outcome: "error", Message: "request timed out"})
	default:
		logger.ErrorContext(c.Request.Context(), "request failed",
			slog.String("route", c.FullPath()),
			slog.String("request_id", RequestIDFromContext(c.Request.Context())),
			slog.Any("err", err),
		)
		c.JSON(http.StatusInternalServerError, errorResponse{Outcome: "error", Message: "internal error"})
	}
}
