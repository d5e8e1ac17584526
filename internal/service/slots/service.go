package slots

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Rauan19/agendoai-sub000/internal/domain"
	"github.com/Rauan19/agendoai-sub000/internal/store"
)

var tracer = otel.Tracer("github.com/Rauan19/agendoai-sub000/internal/service/slots")

type Config struct {
	// BreakMinutes is the gap that must follow every appointment.
	BreakMinutes int
	// Location decides which calendar day is "today".
	Location *time.Location
}

// Service computes a provider's candidate slots for one day. It never
// writes and takes no locks; stale answers are caught by the booking guard.
type Service struct {
	schedule store.ScheduleStore
	blocks   store.BlockStore
	ledger   store.BookingLedger
	catalog  store.Catalog
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(schedule store.ScheduleStore, blocks store.BlockStore, ledger store.BookingLedger, catalog store.Catalog, cfg Config, logger *slog.Logger) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Service{
		schedule: schedule,
		blocks:   blocks,
		ledger:   ledger,
		catalog:  catalog,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "slots")),
		now:      time.Now,
	}
}

type Query struct {
	ProviderID      string
	Date            time.Time
	DurationMinutes int
	// ServiceID, when set, takes the duration from the service catalog.
	ServiceID string
	// Now overrides the wall clock; zero means time.Now.
	Now time.Time
}

// Generate returns the day's candidate slots in ascending start order. A
// provider that does not work that day, an inactive provider, and a past
// date all yield an empty list.
func (s *Service) Generate(ctx context.Context, q Query) ([]domain.CandidateSlot, error) {
	ctx, span := tracer.Start(ctx, "slots.Generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("provider_id", q.ProviderID),
		attribute.String("date", domain.FormatDate(q.Date)),
	)

	if q.ProviderID == "" {
		return nil, domain.Invalid("provider_id", "provider_id is required")
	}
	if q.Date.IsZero() {
		return nil, domain.Invalid("date", "date is required")
	}

	provider, err := s.catalog.GetProvider(ctx, q.ProviderID)
	if err != nil {
		return nil, err
	}

	duration, err := s.duration(ctx, q)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("duration_minutes", duration))

	if !provider.Active {
		return []domain.CandidateSlot{}, nil
	}

	now := q.Now
	if now.IsZero() {
		now = s.now()
	}
	now = now.In(s.cfg.Location)
	today := domain.DateOf(now)

	var notBefore domain.Minute
	switch date := domain.DateOf(q.Date); {
	case date.Before(today):
		return []domain.CandidateSlot{}, nil
	case date.Equal(today):
		notBefore = domain.MinuteOf(now)
	}

	window, ok, err := s.schedule.GetEffectiveDayWindow(ctx, q.ProviderID, q.Date)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !ok {
		return []domain.CandidateSlot{}, nil
	}

	blocks, err := s.blocks.GetBlocks(ctx, q.ProviderID, q.Date)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	appts, err := s.ledger.GetOccupiedIntervals(ctx, q.ProviderID, q.Date)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	out := domain.GenerateSlots(domain.SlotRequest{
		Window:          window,
		DurationMinutes: duration,
		BreakMinutes:    s.cfg.BreakMinutes,
		Blocks:          blocks,
		Appointments:    appts,
		NotBefore:       notBefore,
	})
	if out == nil {
		out = []domain.CandidateSlot{}
	}
	s.logger.DebugContext(ctx, "slots generated",
		slog.String("provider_id", q.ProviderID),
		slog.String("date", domain.FormatDate(q.Date)),
		slog.Int("count", len(out)),
	)
	return out, nil
}

func (s *Service) duration(ctx context.Context, q Query) (int, error) {
	if q.ServiceID == "" {
		if q.DurationMinutes <= 0 {
			return 0, domain.Invalid("duration", "duration or service_id is required")
		}
		if q.DurationMinutes > domain.MinutesPerDay {
			return 0, domain.Invalid("duration", "duration must not exceed a day")
		}
		return q.DurationMinutes, nil
	}

	svc, err := s.catalog.GetService(ctx, q.ServiceID)
	if errors.Is(err, store.ErrNotFound) {
		return 0, domain.Invalid("service_id", "unknown service")
	}
	if err != nil {
		return 0, err
	}
	if !svc.OfferedBy(q.ProviderID) {
		return 0, domain.Invalid("service_id", "service is not offered by this provider")
	}
	return svc.DurationMinutes, nil
}
