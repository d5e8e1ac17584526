package bookings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Rauan19/agendoai-sub000/internal/domain"
	"github.com/Rauan19/agendoai-sub000/internal/store"
)

var tracer = otel.Tracer("github.com/Rauan19/agendoai-sub000/internal/service/bookings")

const (
	maxIdempotencyKeyLen = 256
	maxReasonLen         = 500
)

type Config struct {
	BreakMinutes int
	Location     *time.Location
}

// Service is the booking guard: it validates a request, re-checks it
// against the live ledger and blocks, and commits through InsertIfFree.
type Service struct {
	ledger   store.BookingLedger
	schedule store.ScheduleStore
	blocks   store.BlockStore
	catalog  store.Catalog
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(ledger store.BookingLedger, schedule store.ScheduleStore, blocks store.BlockStore, catalog store.Catalog, cfg Config, logger *slog.Logger) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.BreakMinutes < 0 {
		cfg.BreakMinutes = 0
	}
	return &Service{
		ledger:   ledger,
		schedule: schedule,
		blocks:   blocks,
		catalog:  catalog,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "bookings")),
		now:      time.Now,
	}
}

type BookInput struct {
	ProviderID     string
	ClientID       string
	ServiceID      string
	Date           time.Time
	StartTime      domain.Minute
	EndTime        domain.Minute
	IdempotencyKey string
	// Now overrides the wall clock; zero means time.Now.
	Now time.Time
}

// BookSlot returns store.ErrConflict when the range is taken, a
// *domain.ValidationError for bad input, and any other error as a storage
// failure. A conflict is never retried into another slot. Replaying an
// Idempotency-Key returns the stored appointment whatever its status.
func (s *Service) BookSlot(ctx context.Context, in BookInput) (domain.Appointment, error) {
	ctx, span := tracer.Start(ctx, "bookings.BookSlot")
	defer span.End()
	span.SetAttributes(
		attribute.String("provider_id", in.ProviderID),
		attribute.String("service_id", in.ServiceID),
		attribute.String("date", domain.FormatDate(in.Date)),
		attribute.String("start_time", in.StartTime.String()),
	)

	appt, err := s.validate(ctx, in)
	if err != nil {
		s.logger.WarnContext(ctx, "booking rejected", slog.String("provider_id", in.ProviderID), slog.Any("err", err))
		return domain.Appointment{}, err
	}

	if appt.ID != uuid.Nil {
		existing, err := s.ledger.Get(ctx, appt.ID)
		switch {
		case err == nil:
			if !existing.SameBooking(appt) {
				s.logger.WarnContext(ctx, "idempotency key reused for a different booking", slog.String("appointment_id", appt.ID.String()))
				return domain.Appointment{}, store.ErrIdempotencyConflict
			}
			span.SetAttributes(attribute.String("outcome", "replayed"), attribute.String("appointment_id", existing.ID.String()))
			s.logger.InfoContext(ctx, "booking replayed",
				slog.String("appointment_id", existing.ID.String()),
				slog.String("status", string(existing.Status)),
			)
			return existing, nil
		case !errors.Is(err, store.ErrNotFound):
			return domain.Appointment{}, s.storageError(ctx, span, "load replayed appointment", err)
		}
	}

	// A stale slot list is the common case; reject before taking the lock.
	blocks, err := s.blocks.GetBlocks(ctx, appt.ProviderID, appt.Date)
	if err != nil {
		return domain.Appointment{}, s.storageError(ctx, span, "load blocks", err)
	}
	occupied, err := s.ledger.GetOccupiedIntervals(ctx, appt.ProviderID, appt.Date)
	if err != nil {
		return domain.Appointment{}, s.storageError(ctx, span, "load occupied intervals", err)
	}
	if by, busy := domain.FindConflict(appt.Occupied(), blocks, occupied); busy && !s.isReplay(occupied, appt) {
		s.logConflict(ctx, appt, by)
		span.SetAttributes(attribute.String("outcome", "conflict"))
		return domain.Appointment{}, store.ErrConflict
	}

	out, err := s.ledger.InsertIfFree(ctx, appt)
	switch {
	case errors.Is(err, store.ErrConflict):
		s.logConflict(ctx, appt, "race")
		span.SetAttributes(attribute.String("outcome", "conflict"))
		return domain.Appointment{}, err
	case errors.Is(err, store.ErrIdempotencyConflict):
		s.logger.WarnContext(ctx, "idempotency key reused for a different booking", slog.String("appointment_id", appt.ID.String()))
		return domain.Appointment{}, err
	case err != nil:
		return domain.Appointment{}, s.storageError(ctx, span, "insert appointment", err)
	}

	span.SetAttributes(attribute.String("outcome", "booked"), attribute.String("appointment_id", out.ID.String()))
	s.logger.InfoContext(ctx, "appointment booked",
		slog.String("appointment_id", out.ID.String()),
		slog.String("provider_id", out.ProviderID),
		slog.String("date", domain.FormatDate(out.Date)),
		slog.String("start_time", out.StartMinute.String()),
	)
	return out, nil
}

// isReplay reports whether appt is a concurrent retry whose first attempt
// committed after the lookup above; InsertIfFree resolves it.
func (s *Service) isReplay(occupied []domain.Appointment, appt domain.Appointment) bool {
	if appt.ID == uuid.Nil {
		return false
	}
	for _, a := range occupied {
		if a.ID == appt.ID {
			return true
		}
	}
	return false
}

func (s *Service) validate(ctx context.Context, in BookInput) (domain.Appointment, error) {
	providerID := strings.TrimSpace(in.ProviderID)
	clientID := strings.TrimSpace(in.ClientID)
	serviceID := strings.TrimSpace(in.ServiceID)
	switch {
	case providerID == "":
		return domain.Appointment{}, domain.Invalid("provider_id", "provider_id is required")
	case clientID == "":
		return domain.Appointment{}, domain.Invalid("client_id", "client_id is required")
	case serviceID == "":
		return domain.Appointment{}, domain.Invalid("service_id", "service_id is required")
	case in.Date.IsZero():
		return domain.Appointment{}, domain.Invalid("date", "date is required")
	}

	if !in.StartTime.Valid() || in.StartTime >= domain.MinutesPerDay {
		return domain.Appointment{}, domain.Invalid("start_time", "start_time must be between 00:00 and 23:59")
	}
	if !in.EndTime.Valid() {
		return domain.Appointment{}, domain.Invalid("end_time", "end_time must be between 00:01 and 24:00")
	}
	if in.StartTime >= in.EndTime {
		return domain.Appointment{}, domain.Invalid("end_time", "end_time must be after start_time")
	}

	now := in.Now
	if now.IsZero() {
		now = s.now()
	}
	now = now.In(s.cfg.Location)
	date := domain.DateOf(in.Date)
	today := domain.DateOf(now)
	if date.Before(today) {
		return domain.Appointment{}, domain.Invalid("date", "date is in the past")
	}
	if date.Equal(today) && in.StartTime < domain.MinuteOf(now) {
		return domain.Appointment{}, domain.Invalid("start_time", "start_time is in the past")
	}

	provider, err := s.catalog.GetProvider(ctx, providerID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Appointment{}, domain.Invalid("provider_id", "unknown provider")
	}
	if err != nil {
		return domain.Appointment{}, err
	}
	if !provider.Active {
		return domain.Appointment{}, domain.Invalid("provider_id", "provider is not accepting bookings")
	}

	svc, err := s.catalog.GetService(ctx, serviceID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Appointment{}, domain.Invalid("service_id", "unknown service")
	}
	if err != nil {
		return domain.Appointment{}, err
	}
	if !svc.Active || !svc.OfferedBy(providerID) {
		return domain.Appointment{}, domain.Invalid("service_id", "service is not offered by this provider")
	}
	if int(in.EndTime-in.StartTime) != svc.DurationMinutes {
		return domain.Appointment{}, domain.Invalid("end_time", fmt.Sprintf("end_time must be start_time plus the service duration of %d minutes", svc.DurationMinutes))
	}

	window, open, err := s.schedule.GetEffectiveDayWindow(ctx, providerID, date)
	if err != nil {
		return domain.Appointment{}, err
	}
	if !open || !window.Contains(in.StartTime, in.EndTime) {
		return domain.Appointment{}, domain.Invalid("start_time", "requested time is outside the provider's working hours")
	}
	if g := domain.Minute(window.GranularityMinutes); g > 0 && (in.StartTime-window.Start)%g != 0 {
		return domain.Appointment{}, domain.Invalid("start_time", fmt.Sprintf("start_time must fall on the provider's %d-minute slot grid", window.GranularityMinutes))
	}

	appt := domain.Appointment{
		ProviderID:    providerID,
		ClientID:      clientID,
		ServiceID:     serviceID,
		Date:          date,
		StartMinute:   in.StartTime,
		EndMinute:     in.EndTime,
		OccupiedUntil: in.EndTime + domain.Minute(s.cfg.BreakMinutes),
		Status:        domain.StatusPending,
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" {
		if len(key) > maxIdempotencyKeyLen {
			return domain.Appointment{}, domain.Invalid("idempotency_key", "idempotency_key too long")
		}
		appt.ID = IdempotentID(clientID, key)
	}
	return appt, nil
}

// IdempotentID derives a stable appointment ID from the client and the
// Idempotency-Key it sent.
func IdempotentID(clientID, key string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("agendoai:book:"+clientID+":"+key))
}

type CancelInput struct {
	AppointmentID uuid.UUID
	ActorID       string
	Reason        string
}

// Cancel frees the appointment's time. Cancelling twice returns the
// appointment unchanged.
func (s *Service) Cancel(ctx context.Context, in CancelInput) (domain.Appointment, error) {
	actor := strings.TrimSpace(in.ActorID)
	if actor == "" {
		return domain.Appointment{}, domain.Invalid("actor_id", "actor_id is required")
	}
	reason := strings.TrimSpace(in.Reason)
	if len(reason) > maxReasonLen {
		return domain.Appointment{}, domain.Invalid("reason", "reason too long")
	}
	return s.transition(ctx, in.AppointmentID, domain.StatusChange{To: domain.StatusCancelled, ActorID: actor, Reason: reason})
}

func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	return s.transition(ctx, id, domain.StatusChange{To: domain.StatusConfirmed})
}

func (s *Service) Complete(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	return s.transition(ctx, id, domain.StatusChange{To: domain.StatusCompleted})
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, change domain.StatusChange) (domain.Appointment, error) {
	ctx, span := tracer.Start(ctx, "bookings.Transition")
	defer span.End()
	span.SetAttributes(attribute.String("appointment_id", id.String()), attribute.String("to", string(change.To)))

	if id == uuid.Nil {
		return domain.Appointment{}, domain.Invalid("appointment_id", "appointment_id is required")
	}
	change.At = s.now()

	out, err := s.ledger.Transition(ctx, id, change)
	switch {
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, store.ErrNotFound):
		s.logger.InfoContext(ctx, "status change rejected", slog.String("appointment_id", id.String()), slog.String("to", string(change.To)), slog.Any("err", err))
		return domain.Appointment{}, err
	case err != nil:
		return domain.Appointment{}, s.storageError(ctx, span, "transition appointment", err)
	}

	s.logger.InfoContext(ctx, "appointment status changed", slog.String("appointment_id", id.String()), slog.String("status", string(out.Status)))
	return out, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	if id == uuid.Nil {
		return domain.Appointment{}, domain.Invalid("appointment_id", "appointment_id is required")
	}
	return s.ledger.Get(ctx, id)
}

// ListDay returns every appointment of the provider's day, any status.
func (s *Service) ListDay(ctx context.Context, providerID string, date time.Time) ([]domain.Appointment, error) {
	if strings.TrimSpace(providerID) == "" {
		return nil, domain.Invalid("provider_id", "provider_id is required")
	}
	if date.IsZero() {
		return nil, domain.Invalid("date", "date is required")
	}
	if _, err := s.catalog.GetProvider(ctx, providerID); err != nil {
		return nil, err
	}
	rows, err := s.ledger.ListDay(ctx, providerID, date)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []domain.Appointment{}
	}
	return rows, nil
}

func (s *Service) logConflict(ctx context.Context, appt domain.Appointment, occupiedBy string) {
	s.logger.InfoContext(ctx, "booking conflict",
		slog.String("provider_id", appt.ProviderID),
		slog.String("date", domain.FormatDate(appt.Date)),
		slog.String("start_time", appt.StartMinute.String()),
		slog.String("occupied_by", occupiedBy),
	)
}

func (s *Service) storageError(ctx context.Context, span trace.Span, op string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, op)
	s.logger.ErrorContext(ctx, op+" failed", slog.Any("err", err))
	return fmt.Errorf("%s: %w", op, err)
}
