package slots

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"github.com/Rauan19/agendoai-sub000/internal/domain"
	"github.com/Rauan19/agendoai-sub000/internal/store"
	"github.com/Rauan19/agendoai-sub000/internal/store/memory"
)

var (
	monday = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	// before is a moment well before monday.
	before = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
)

func newFixture(t *testing.T) (*memory.Store, *Service) {
	t.Helper()
	st := memory.New()
	st.PutProvider(domain.Provider{ID: "p1", Active: true})
	st.PutService(domain.Service{ID: "cut", ProviderID: "p1", DurationMinutes: 30, Active: true})
	st.PutService(domain.Service{ID: "other", ProviderID: "p2", DurationMinutes: 30, Active: true})

	_, err := st.ReplaceWeeklyRules(context.Background(), "p1", []domain.WeeklyRule{
		{DayOfWeek: 1, StartMinute: 9 * 60, EndMinute: 12 * 60, GranularityMinutes: 30, IsAvailable: true},
	})
	if err != nil {
		t.Fatalf("ReplaceWeeklyRules error: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return st, NewService(st, st, st, st, Config{}, logger)
}

func startsOf(slots []domain.CandidateSlot) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Start.String())
	}
	return out
}

func TestGenerate_FreeMorning(t *testing.T) {
	_, svc := newFixture(t)

	slots, err := svc.Generate(context.Background(), Query{ProviderID: "p1", Date: monday, DurationMinutes: 30, Now: before})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	want := []string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30"}
	if got := startsOf(slots); !reflect.DeepEqual(got, want) {
		t.Fatalf("starts = %v, want %v", got, want)
	}
}

func TestGenerate_BookedSlotReportsStatusAndCancelFreesIt(t *testing.T) {
	st, svc := newFixture(t)
	ctx := context.Background()

	booked, err := st.InsertIfFree(ctx, domain.Appointment{
		ProviderID: "p1", ClientID: "c1", ServiceID: "cut", Date: monday,
		StartMinute: 600, EndMinute: 630, OccupiedUntil: 630, Status: domain.StatusPending,
	})
	if err != nil {
		t.Fatalf("InsertIfFree error: %v", err)
	}
	if _, err := st.Transition(ctx, booked.ID, domain.StatusChange{To: domain.StatusConfirmed}); err != nil {
		t.Fatalf("confirm error: %v", err)
	}

	slots, err := svc.Generate(ctx, Query{ProviderID: "p1", Date: monday, ServiceID: "cut", Now: before})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if len(slots) != 6 {
		t.Fatalf("len(slots) = %d, want 6", len(slots))
	}
	for _, s := range slots {
		if s.Start == 600 {
			if s.Available || s.OccupiedBy != "confirmed" {
				t.Fatalf("10:00 slot = %+v, want occupied by confirmed", s)
			}
			continue
		}
		if !s.Available {
			t.Fatalf("slot %s unavailable", s.Start)
		}
	}

	if _, err := st.Transition(ctx, booked.ID, domain.StatusChange{To: domain.StatusCancelled, ActorID: "c1"}); err != nil {
		t.Fatalf("cancel error: %v", err)
	}
	slots, _ = svc.Generate(ctx, Query{ProviderID: "p1", Date: monday, ServiceID: "cut", Now: before})
	for _, s := range slots {
		if !s.Available {
			t.Fatalf("slot %s still unavailable after cancel", s.Start)
		}
	}
}

func TestGenerate_BlockedSlot(t *testing.T) {
	st, svc := newFixture(t)
	ctx := context.Background()
	if _, err := st.CreateBlock(ctx, domain.BlockedInterval{ProviderID: "p1", Date: monday, StartMinute: 540, EndMinute: 600}); err != nil {
		t.Fatalf("CreateBlock error: %v", err)
	}

	slots, err := svc.Generate(ctx, Query{ProviderID: "p1", Date: monday, DurationMinutes: 30, Now: before})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	for _, s := range slots[:2] {
		if s.Available || s.OccupiedBy != domain.OccupiedByBlock {
			t.Fatalf("slot %+v, want blocked", s)
		}
	}
}

func TestGenerate_ClosedOverride(t *testing.T) {
	st, svc := newFixture(t)
	ctx := context.Background()
	_, err := st.UpsertOverride(ctx, domain.DateOverride{ProviderID: "p1", Date: monday, StartMinute: 540, EndMinute: 720, GranularityMinutes: 30, IsAvailable: false})
	if err != nil {
		t.Fatalf("UpsertOverride error: %v", err)
	}

	slots, err := svc.Generate(ctx, Query{ProviderID: "p1", Date: monday, DurationMinutes: 30, Now: before})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if slots == nil || len(slots) != 0 {
		t.Fatalf("slots = %#v, want empty non-nil", slots)
	}
}

func TestGenerate_NoRuleForDay(t *testing.T) {
	_, svc := newFixture(t)
	tuesday := monday.AddDate(0, 0, 1)
	slots, err := svc.Generate(context.Background(), Query{ProviderID: "p1", Date: tuesday, DurationMinutes: 30, Now: before})
	if err != nil || len(slots) != 0 {
		t.Fatalf("slots = %v err = %v, want empty", slots, err)
	}
}

func TestGenerate_TodayOmitsPastStartsAndPastDatesAreEmpty(t *testing.T) {
	_, svc := newFixture(t)
	ctx := context.Background()

	now := time.Date(2026, 1, 5, 10, 10, 0, 0, time.UTC)
	slots, err := svc.Generate(ctx, Query{ProviderID: "p1", Date: monday, DurationMinutes: 30, Now: now})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	want := []string{"10:30", "11:00", "11:30"}
	if got := startsOf(slots); !reflect.DeepEqual(got, want) {
		t.Fatalf("starts = %v, want %v", got, want)
	}

	later := monday.AddDate(0, 0, 8)
	slots, err = svc.Generate(ctx, Query{ProviderID: "p1", Date: monday, DurationMinutes: 30, Now: later})
	if err != nil || len(slots) != 0 {
		t.Fatalf("past date slots = %v err = %v, want empty", slots, err)
	}
}

func TestGenerate_TodayUsesConfiguredLocation(t *testing.T) {
	st, _ := newFixture(t)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	svc := NewService(st, st, st, st, Config{Location: time.FixedZone("BRT", -3*60*60)}, logger)

	// 01:30 UTC on Tuesday is still 22:30 on Monday in UTC-3.
	now := time.Date(2026, 1, 6, 1, 30, 0, 0, time.UTC)
	slots, err := svc.Generate(context.Background(), Query{ProviderID: "p1", Date: monday, DurationMinutes: 30, Now: now})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("slots = %v, want none after closing time", startsOf(slots))
	}
}

func TestGenerate_Errors(t *testing.T) {
	st, svc := newFixture(t)
	st.PutProvider(domain.Provider{ID: "sleepy", Active: false})
	ctx := context.Background()

	if _, err := svc.Generate(ctx, Query{ProviderID: "ghost", Date: monday, DurationMinutes: 30, Now: before}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("unknown provider err = %v, want ErrNotFound", err)
	}

	var vErr *domain.ValidationError
	_, err := svc.Generate(ctx, Query{ProviderID: "p1", Date: monday, Now: before})
	if !errors.As(err, &vErr) || vErr.Field != "duration" {
		t.Fatalf("missing duration err = %v, want ValidationError on duration", err)
	}
	_, err = svc.Generate(ctx, Query{ProviderID: "p1", Date: monday, ServiceID: "nope", Now: before})
	if !errors.As(err, &vErr) || vErr.Field != "service_id" {
		t.Fatalf("unknown service err = %v, want ValidationError on service_id", err)
	}
	_, err = svc.Generate(ctx, Query{ProviderID: "p1", Date: monday, ServiceID: "other", Now: before})
	if !errors.As(err, &vErr) || vErr.Field != "service_id" {
		t.Fatalf("foreign service err = %v, want ValidationError on service_id", err)
	}

	slots, err := svc.Generate(ctx, Query{ProviderID: "sleepy", Date: monday, DurationMinutes: 30, Now: before})
	if err != nil || len(slots) != 0 {
		t.Fatalf("inactive provider slots = %v err = %v, want empty", slots, err)
	}
}
