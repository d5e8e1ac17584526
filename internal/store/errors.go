package store

import "errors"

var (
	// ErrConflict means the requested range overlaps a live appointment or
	// a block at commit time.
	ErrConflict = errors.New("time range unavailable")
	ErrNotFound = errors.New("not found")
	// ErrIdempotencyConflict means an Idempotency-Key was replayed with a
	// different booking request.
	ErrIdempotencyConflict = errors.New("idempotency key reused for a different booking")
)
