package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Rauan19/agendoai-sub000/internal/domain"
	"github.com/Rauan19/agendoai-sub000/internal/store"
)

const maxBlockReasonLen = 500

// Service manages what a provider offers: the weekly rules, per-date
// overrides and manual blocks. Booking never goes through here.
type Service struct {
	schedule store.ScheduleStore
	blocks   store.BlockStore
	catalog  store.Catalog
	logger   *slog.Logger
}

func NewService(schedule store.ScheduleStore, blocks store.BlockStore, catalog store.Catalog, logger *slog.Logger) *Service {
	return &Service{
		schedule: schedule,
		blocks:   blocks,
		catalog:  catalog,
		logger:   logger.With(slog.String("component", "schedule")),
	}
}

// ReplaceWeeklySchedule makes rules the provider's whole week. Days missing
// from rules stop being working days.
func (s *Service) ReplaceWeeklySchedule(ctx context.Context, providerID string, rules []domain.WeeklyRule) ([]domain.WeeklyRule, error) {
	if err := s.requireProvider(ctx, providerID); err != nil {
		return nil, err
	}

	seen := make(map[int16]bool, len(rules))
	for i, r := range rules {
		if r.DayOfWeek < 0 || r.DayOfWeek > 6 {
			return nil, domain.Invalid(fmt.Sprintf("rules[%d].day_of_week", i), "day_of_week must be between 0 (Sunday) and 6 (Saturday)")
		}
		if seen[r.DayOfWeek] {
			return nil, domain.Invalid(fmt.Sprintf("rules[%d].day_of_week", i), "day_of_week listed more than once")
		}
		seen[r.DayOfWeek] = true
		if err := domain.ValidateHours(r.StartMinute, r.EndMinute, r.GranularityMinutes); err != nil {
			return nil, indexed(i, err)
		}
	}

	out, err := s.schedule.ReplaceWeeklyRules(ctx, providerID, rules)
	if err != nil {
		s.logger.ErrorContext(ctx, "replace weekly schedule failed", slog.String("provider_id", providerID), slog.Any("err", err))
		return nil, err
	}
	s.logger.InfoContext(ctx, "weekly schedule replaced", slog.String("provider_id", providerID), slog.Int("days", len(out)))
	return out, nil
}

func (s *Service) GetWeeklySchedule(ctx context.Context, providerID string) ([]domain.WeeklyRule, error) {
	if err := s.requireProvider(ctx, providerID); err != nil {
		return nil, err
	}
	out, err := s.schedule.ListWeeklyRules(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.WeeklyRule{}
	}
	return out, nil
}

// SetOverride replaces the weekly rule for one date. A closed day may omit
// its hours.
func (s *Service) SetOverride(ctx context.Context, o domain.DateOverride) (domain.DateOverride, error) {
	if o.Date.IsZero() {
		return domain.DateOverride{}, domain.Invalid("date", "date is required")
	}
	if err := s.requireProvider(ctx, o.ProviderID); err != nil {
		return domain.DateOverride{}, err
	}
	o.Date = domain.DateOf(o.Date)
	if !o.IsAvailable && o.StartMinute == 0 && o.EndMinute == 0 {
		o.EndMinute = domain.MinutesPerDay
		if o.GranularityMinutes == 0 {
			o.GranularityMinutes = 60
		}
	}
	if err := domain.ValidateHours(o.StartMinute, o.EndMinute, o.GranularityMinutes); err != nil {
		return domain.DateOverride{}, err
	}

	out, err := s.schedule.UpsertOverride(ctx, o)
	if err != nil {
		s.logger.ErrorContext(ctx, "upsert override failed", slog.String("provider_id", o.ProviderID), slog.Any("err", err))
		return domain.DateOverride{}, err
	}
	s.logger.InfoContext(ctx, "date override set",
		slog.String("provider_id", o.ProviderID),
		slog.String("date", domain.FormatDate(o.Date)),
		slog.Bool("available", o.IsAvailable),
	)
	return out, nil
}

func (s *Service) ClearOverride(ctx context.Context, providerID string, date time.Time) error {
	if date.IsZero() {
		return domain.Invalid("date", "date is required")
	}
	if err := s.requireProvider(ctx, providerID); err != nil {
		return err
	}
	return s.schedule.DeleteOverride(ctx, providerID, date)
}

// CreateBlock removes a range from the provider's day. Existing bookings
// inside the range are left alone.
func (s *Service) CreateBlock(ctx context.Context, b domain.BlockedInterval) (domain.BlockedInterval, error) {
	if b.Date.IsZero() {
		return domain.BlockedInterval{}, domain.Invalid("date", "date is required")
	}
	if !b.StartMinute.Valid() || b.StartMinute >= domain.MinutesPerDay {
		return domain.BlockedInterval{}, domain.Invalid("start_time", "start_time must be between 00:00 and 23:59")
	}
	if !b.EndMinute.Valid() {
		return domain.BlockedInterval{}, domain.Invalid("end_time", "end_time must be between 00:01 and 24:00")
	}
	if b.StartMinute >= b.EndMinute {
		return domain.BlockedInterval{}, domain.Invalid("end_time", "end_time must be after start_time")
	}
	b.Reason = strings.TrimSpace(b.Reason)
	if len(b.Reason) > maxBlockReasonLen {
		return domain.BlockedInterval{}, domain.Invalid("reason", "reason too long")
	}
	if err := s.requireProvider(ctx, b.ProviderID); err != nil {
		return domain.BlockedInterval{}, err
	}
	b.Date = domain.DateOf(b.Date)

	out, err := s.blocks.CreateBlock(ctx, b)
	if err != nil {
		s.logger.ErrorContext(ctx, "create block failed", slog.String("provider_id", b.ProviderID), slog.Any("err", err))
		return domain.BlockedInterval{}, err
	}
	s.logger.InfoContext(ctx, "block created",
		slog.String("provider_id", out.ProviderID),
		slog.String("block_id", out.ID.String()),
		slog.String("date", domain.FormatDate(out.Date)),
		slog.String("start_time", out.StartMinute.String()),
		slog.String("end_time", out.EndMinute.String()),
	)
	return out, nil
}

func (s *Service) ListBlocks(ctx context.Context, providerID string, date time.Time) ([]domain.BlockedInterval, error) {
	if date.IsZero() {
		return nil, domain.Invalid("date", "date is required")
	}
	if err := s.requireProvider(ctx, providerID); err != nil {
		return nil, err
	}
	out, err := s.blocks.GetBlocks(ctx, providerID, date)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.BlockedInterval{}
	}
	return out, nil
}

func (s *Service) DeleteBlock(ctx context.Context, providerID string, blockID uuid.UUID) error {
	if blockID == uuid.Nil {
		return domain.Invalid("block_id", "block_id is required")
	}
	if err := s.requireProvider(ctx, providerID); err != nil {
		return err
	}
	if err := s.blocks.DeleteBlock(ctx, providerID, blockID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "block deleted", slog.String("provider_id", providerID), slog.String("block_id", blockID.String()))
	return nil
}

func (s *Service) requireProvider(ctx context.Context, providerID string) error {
	if strings.TrimSpace(providerID) == "" {
		return domain.Invalid("provider_id", "provider_id is required")
	}
	_, err := s.catalog.GetProvider(ctx, providerID)
	return err
}

func indexed(i int, err error) error {
	ve, ok := err.(*domain.ValidationError)
	if !ok {
		return err
	}
	return domain.Invalid(fmt.Sprintf("rules[%d].%s", i, ve.Field), ve.Msg)
}
