package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Rauan19/agendoai-sub000/internal/domain"
	"github.com/Rauan19/agendoai-sub000/internal/events"
)

// ScheduleStore holds recurring weekly rules and per-date overrides.
type ScheduleStore interface {
	// GetEffectiveDayWindow resolves the working window for a provider on a
	// date. ok is false when the provider does not work that day.
	GetEffectiveDayWindow(ctx context.Context, providerID string, date time.Time) (w domain.Window, ok bool, err error)
	ListWeeklyRules(ctx context.Context, providerID string) ([]domain.WeeklyRule, error)
	// ReplaceWeeklyRules makes rules the provider's full weekly schedule;
	// days not present are removed.
	ReplaceWeeklyRules(ctx context.Context, providerID string, rules []domain.WeeklyRule) ([]domain.WeeklyRule, error)
	UpsertOverride(ctx context.Context, o domain.DateOverride) (domain.DateOverride, error)
	DeleteOverride(ctx context.Context, providerID string, date time.Time) error
}

type BlockStore interface {
	// GetBlocks returns the day's blocks ordered by start, unmerged.
	GetBlocks(ctx context.Context, providerID string, date time.Time) ([]domain.BlockedInterval, error)
	CreateBlock(ctx context.Context, b domain.BlockedInterval) (domain.BlockedInterval, error)
	DeleteBlock(ctx context.Context, providerID string, blockID uuid.UUID) error
}

type BookingLedger interface {
	// GetOccupiedIntervals returns the day's time-holding appointments
	// (pending and confirmed) ordered by start.
	GetOccupiedIntervals(ctx context.Context, providerID string, date time.Time) ([]domain.Appointment, error)
	// ListDay returns every appointment of the day, any status, ordered by start.
	ListDay(ctx context.Context, providerID string, date time.Time) ([]domain.Appointment, error)
	Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	// InsertIfFree atomically re-checks the range against live appointments
	// and blocks and inserts it, or returns ErrConflict.
	InsertIfFree(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	Transition(ctx context.Context, id uuid.UUID, change domain.StatusChange) (domain.Appointment, error)
}

// Catalog is the read side of the provider directory and service catalog.
type Catalog interface {
	GetProvider(ctx context.Context, id string) (domain.Provider, error)
	GetService(ctx context.Context, id string) (domain.Service, error)
}

// LedgerTx is the view of the ledger available while the provider-day lock
// is held. Implementations run every call in one transaction.
type LedgerTx interface {
	FindAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	ListActiveAppointments(ctx context.Context, providerID string, date time.Time) ([]domain.Appointment, error)
	ListBlocks(ctx context.Context, providerID string, date time.Time) ([]domain.BlockedInterval, error)
	InsertAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, appt domain.Appointment) error
	InsertBlock(ctx context.Context, b domain.BlockedInterval) (domain.BlockedInterval, error)
	AppendEvent(ctx context.Context, e events.Event) error
}
