package postgres

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Rauan19/agendoai-sub000/internal/store"
)

func TestMapInsertError(t *testing.T) {
	other := errors.New("boom")

	tests := []struct {
		name string
		in   error
		want error
	}{
		{
			name: "overlap exclusion",
			in:   &pgconn.PgError{Code: "23P01", ConstraintName: "appointments_no_overlap"},
			want: store.ErrConflict,
		},
		{
			name: "wrapped overlap exclusion",
			in:   fmt.Errorf("exec: %w", &pgconn.PgError{Code: "23P01", ConstraintName: "appointments_no_overlap"}),
			want: store.ErrConflict,
		},
		{
			name: "unique violation",
			in:   &pgconn.PgError{Code: "23505", ConstraintName: "appointments_pkey"},
			want: store.ErrIdempotencyConflict,
		},
		{
			name: "other exclusion constraint",
			in:   &pgconn.PgError{Code: "23P01", ConstraintName: "something_else"},
		},
		{
			name: "non postgres error",
			in:   other,
			want: other,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapInsertError(tt.in)
			want := tt.want
			if want == nil {
				want = tt.in
			}
			if !errors.Is(got, want) {
				t.Fatalf("mapInsertError = %v, want %v", got, want)
			}
		})
	}
}

func TestProviderDayKey(t *testing.T) {
	day := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	if got := providerDayKey("p1", day); got != "p1|2026-01-05" {
		t.Fatalf("providerDayKey = %q", got)
	}
	if providerDayKey("p1", day) == providerDayKey("p1", day.AddDate(0, 0, 1)) {
		t.Fatalf("different days must not share a lock key")
	}
}
