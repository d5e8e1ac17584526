package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// WeeklyRule is a provider's recurring working hours for one day of the week.
// There is at most one rule per (provider, day of week).
type WeeklyRule struct {
	bun.BaseModel `bun:"table:availability_rules"`

	ID                 uuid.UUID `bun:"id,pk,type:uuid"`
	ProviderID         string    `bun:"provider_id,notnull"`
	DayOfWeek          int16     `bun:"day_of_week,notnull"`
	StartMinute        Minute    `bun:"start_minute,notnull"`
	EndMinute          Minute    `bun:"end_minute,notnull"`
	GranularityMinutes int       `bun:"granularity_minutes,notnull"`
	IsAvailable        bool      `bun:"is_available,notnull"`
	CreatedAt          time.Time `bun:"created_at,notnull"`
	UpdatedAt          time.Time `bun:"updated_at,notnull"`
}

func (r *WeeklyRule) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	return stampModel(query, &r.ID, &r.CreatedAt, &r.UpdatedAt)
}

func (r WeeklyRule) Window() Window {
	return Window{Start: r.StartMinute, End: r.EndMinute, GranularityMinutes: r.GranularityMinutes}
}

// DateOverride replaces the weekly rule for one provider on one date.
type DateOverride struct {
	bun.BaseModel `bun:"table:availability_overrides"`

	ID                 uuid.UUID `bun:"id,pk,type:uuid"`
	ProviderID         string    `bun:"provider_id,notnull"`
	Date               time.Time `bun:"date,type:date,notnull"`
	StartMinute        Minute    `bun:"start_minute,notnull"`
	EndMinute          Minute    `bun:"end_minute,notnull"`
	GranularityMinutes int       `bun:"granularity_minutes,notnull"`
	IsAvailable        bool      `bun:"is_available,notnull"`
	CreatedAt          time.Time `bun:"created_at,notnull"`
	UpdatedAt          time.Time `bun:"updated_at,notnull"`
}

func (o *DateOverride) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	return stampModel(query, &o.ID, &o.CreatedAt, &o.UpdatedAt)
}

func (o DateOverride) Window() Window {
	return Window{Start: o.StartMinute, End: o.EndMinute, GranularityMinutes: o.GranularityMinutes}
}

// Window is a provider's resolved working range for one date.
type Window struct {
	Start              Minute
	End                Minute
	GranularityMinutes int
}

// Contains reports whether [start, end) lies inside the window.
func (w Window) Contains(start, end Minute) bool {
	return start >= w.Start && end <= w.End && start < end
}

// ResolveWindow applies override precedence: an override for the date wins
// over the weekly rule, and an unavailable rule means no window at all.
func ResolveWindow(override *DateOverride, weekly *WeeklyRule) (Window, bool) {
	if override != nil {
		if !override.IsAvailable {
			return Window{}, false
		}
		return override.Window(), true
	}
	if weekly != nil {
		if !weekly.IsAvailable {
			return Window{}, false
		}
		return weekly.Window(), true
	}
	return Window{}, false
}

// ValidateHours checks the invariants shared by weekly rules and overrides.
// An unavailable rule still needs a well-formed range so it round-trips.
func ValidateHours(start, end Minute, granularityMinutes int) error {
	if !start.Valid() || start >= MinutesPerDay {
		return Invalid("start_time", "start_time must be between 00:00 and 23:59")
	}
	if !end.Valid() {
		return Invalid("end_time", "end_time must be between 00:01 and 24:00")
	}
	if start >= end {
		return Invalid("end_time", "end_time must be after start_time")
	}
	if granularityMinutes <= 0 {
		return Invalid("granularity_minutes", "granularity_minutes must be positive")
	}
	if granularityMinutes > MinutesPerDay {
		return Invalid("granularity_minutes", "granularity_minutes must not exceed a day")
	}
	return nil
}

func stampModel(query bun.Query, id *uuid.UUID, createdAt, updatedAt *time.Time) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if *id == uuid.Nil {
			v, err := uuid.NewV7()
			if err != nil {
				return err
			}
			*id = v
		}
		if createdAt.IsZero() {
			*createdAt = now
		}
		if updatedAt.IsZero() {
			*updatedAt = now
		}
	case *bun.UpdateQuery:
		*updatedAt = now
	}
	return nil
}
