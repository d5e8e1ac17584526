package grpc

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/Rauan19/agendoai-sub000/internal/domain"
	"github.com/Rauan19/agendoai-sub000/internal/store"
)

type ctxKey int

const ctxKeyRequestID ctxKey = iota

// RequestIDMetadataKey is the metadata key carrying the request id; gRPC
// metadata keys are lowercase.
const RequestIDMetadataKey = "x-request-id"

func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyRequestID).(string)
	return v
}

// UnaryServerRequestIDInterceptor reads the request id from incoming
// metadata or mints one, and echoes it back in the response header.
func UnaryServerRequestIDInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		id := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get(RequestIDMetadataKey); len(vals) > 0 {
				id = vals[0]
			}
		}
		if id == "" {
			id = newRequestID()
		}
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDMetadataKey, id))
		return handler(context.WithValue(ctx, ctxKeyRequestID, id), req)
	}
}

func newRequestID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

func UnaryServerLoggingInterceptor(log *slog.Logger) grpc.UnaryServerInterceptor {
	log = log.With(slog.String("component", "grpc"))
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		code := status.Code(err)
		level := slog.LevelDebug
		if code == codes.Internal || code == codes.Unknown {
			level = slog.LevelError
		}
		log.Log(ctx, level, "grpc request",
			slog.String("rpc", info.FullMethod),
			slog.String("request_id", RequestIDFromContext(ctx)),
			slog.String("code", code.String()),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		return resp, err
	}
}

// DefaultRequestTimeoutInterceptor applies timeout to calls that arrive
// without a deadline of their own.
func DefaultRequestTimeoutInterceptor(timeout time.Duration) grpc.UnaryServerInterceptor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := ctx.Deadline(); ok {
			return handler(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		return handler(ctx, req)
	}
}

// UnaryServerErrorInterceptor turns store and domain errors into status
// codes. Errors that already carry a status pass through untouched.
func UnaryServerErrorInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		if err == nil {
			return resp, nil
		}
		return resp, StatusFromError(err)
	}
}

func StatusFromError(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	var vErr *domain.ValidationError
	switch {
	case errors.As(err, &vErr):
		return status.Error(codes.InvalidArgument, vErr.Field+": "+vErr.Msg)
	case errors.Is(err, store.ErrConflict):
		return status.Error(codes.FailedPrecondition, "The requested time is no longer available. Pick a different slot.")
	case errors.Is(err, store.ErrIdempotencyConflict):
		return status.Error(codes.FailedPrecondition, "This request key was already used for a different booking.")
	case errors.Is(err, domain.ErrInvalidTransition):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, store.ErrNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "canceled")
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
