package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"github.com/Rauan19/agendoai-sub000/internal/domain"
	"github.com/Rauan19/agendoai-sub000/internal/events"
	"github.com/Rauan19/agendoai-sub000/internal/store"
)

const (
	pgExclusionViolation = "23P01"
	pgUniqueViolation    = "23505"
)

type LedgerRepo struct {
	db *bun.DB
}

func NewLedgerRepo(db *bun.DB) *LedgerRepo {
	return &LedgerRepo{db: db}
}

var _ store.BookingLedger = (*LedgerRepo)(nil)

type ledgerTx struct {
	tx bun.Tx
}

var _ store.LedgerTx = ledgerTx{}

func (r *LedgerRepo) GetOccupiedIntervals(ctx context.Context, providerID string, date time.Time) ([]domain.Appointment, error) {
	rows, err := selectDay(ctx, r.db, providerID, date, true)
	if err != nil {
		return nil, fmt.Errorf("list occupied intervals: %w", err)
	}
	return rows, nil
}

func (r *LedgerRepo) ListDay(ctx context.Context, providerID string, date time.Time) ([]domain.Appointment, error) {
	rows, err := selectDay(ctx, r.db, providerID, date, false)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return rows, nil
}

func (r *LedgerRepo) Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	var a domain.Appointment
	err := r.db.NewSelect().Model(&a).Where("id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Appointment{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Appointment{}, fmt.Errorf("get appointment: %w", err)
	}
	return a, nil
}

func (r *LedgerRepo) InsertIfFree(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	var out domain.Appointment
	err := r.InProviderDay(ctx, appt.ProviderID, appt.Date, func(ctx context.Context, tx store.LedgerTx) error {
		a, err := store.InsertIfFree(ctx, tx, appt)
		if err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	return out, nil
}

// Transition locks the appointment row rather than the provider day: status
// changes never add occupied time, so they cannot create an overlap.
func (r *LedgerRepo) Transition(ctx context.Context, id uuid.UUID, change domain.StatusChange) (domain.Appointment, error) {
	var out domain.Appointment
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		a, err := store.ApplyTransition(ctx, ledgerTx{tx: tx}, id, change)
		if err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	return out, nil
}

// InProviderDay runs fn in a transaction holding the provider-day lock.
func (r *LedgerRepo) InProviderDay(ctx context.Context, providerID string, date time.Time, fn func(ctx context.Context, tx store.LedgerTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockProviderDay(ctx, tx, providerID, date); err != nil {
			return err
		}
		return fn(ctx, ledgerTx{tx: tx})
	})
}

func selectDay(ctx context.Context, db bun.IDB, providerID string, date time.Time, activeOnly bool) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	q := db.NewSelect().
		Model(&rows).
		Where("provider_id = ?", providerID).
		Where("date = ?", domain.FormatDate(date))
	if activeOnly {
		q = q.Where("status IN (?)", bun.In(domain.ActiveStatuses()))
	}
	err := q.OrderExpr("start_minute ASC, created_at ASC").Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r ledgerTx) FindAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	var a domain.Appointment
	err := r.tx.NewSelect().
		Model(&a).
		Where("id = ?", id).
		For("UPDATE").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Appointment{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Appointment{}, err
	}
	return a, nil
}

func (r ledgerTx) ListActiveAppointments(ctx context.Context, providerID string, date time.Time) ([]domain.Appointment, error) {
	return selectDay(ctx, r.tx, providerID, date, true)
}

func (r ledgerTx) ListBlocks(ctx context.Context, providerID string, date time.Time) ([]domain.BlockedInterval, error) {
	return selectBlocks(ctx, r.tx, providerID, date)
}

func (r ledgerTx) InsertAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := appt
	res, err := r.tx.NewInsert().
		Model(&m).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return domain.Appointment{}, mapInsertError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Appointment{}, err
	}
	if affected == 0 {
		// Another transaction committed the same idempotent ID first.
		existing, err := r.FindAppointment(ctx, m.ID)
		if err != nil {
			return domain.Appointment{}, err
		}
		if !existing.SameBooking(appt) {
			return domain.Appointment{}, store.ErrIdempotencyConflict
		}
		return existing, nil
	}
	return m, nil
}

func (r ledgerTx) UpdateAppointmentStatus(ctx context.Context, appt domain.Appointment) error {
	res, err := r.tx.NewUpdate().
		Model(&appt).
		Column("status", "cancelled_at", "cancelled_by", "cancel_reason", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r ledgerTx) InsertBlock(ctx context.Context, b domain.BlockedInterval) (domain.BlockedInterval, error) {
	m := b
	if _, err := r.tx.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.BlockedInterval{}, err
	}
	return m, nil
}

func (r ledgerTx) AppendEvent(ctx context.Context, e events.Event) error {
	_, err := r.tx.NewInsert().Model(&e).Exec(ctx)
	return err
}

// mapInsertError maps constraint violations to store errors.
func mapInsertError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgExclusionViolation && pgErr.ConstraintName == "appointments_no_overlap":
			return store.ErrConflict
		case pgErr.Code == pgUniqueViolation:
			return store.ErrIdempotencyConflict
		}
	}
	return err
}
