package domain

import (
	"reflect"
	"testing"
)

func hm(s string) Minute {
	m, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return m
}

func starts(slots []CandidateSlot) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Start.String())
	}
	return out
}

func TestGenerateSlots_MorningWindowAllFree(t *testing.T) {
	slots := GenerateSlots(SlotRequest{
		Window:          Window{Start: hm("09:00"), End: hm("12:00"), GranularityMinutes: 30},
		DurationMinutes: 30,
	})

	want := []string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30"}
	if got := starts(slots); !reflect.DeepEqual(got, want) {
		t.Fatalf("starts = %v, want %v", got, want)
	}
	for _, s := range slots {
		if !s.Available || s.OccupiedBy != "" {
			t.Fatalf("slot %s unavailable, want available", s.Start)
		}
	}
}

func TestGenerateSlots_AppointmentMarksOnlyItsSlot(t *testing.T) {
	slots := GenerateSlots(SlotRequest{
		Window:          Window{Start: hm("09:00"), End: hm("12:00"), GranularityMinutes: 30},
		DurationMinutes: 30,
		Appointments: []Appointment{
			{StartMinute: hm("10:00"), EndMinute: hm("10:30"), OccupiedUntil: hm("10:30"), Status: StatusConfirmed},
		},
	})

	if len(slots) != 6 {
		t.Fatalf("len(slots) = %d, want 6", len(slots))
	}
	for _, s := range slots {
		wantAvailable := s.Start != hm("10:00")
		if s.Available != wantAvailable {
			t.Fatalf("slot %s available = %v, want %v", s.Start, s.Available, wantAvailable)
		}
		if !s.Available && s.OccupiedBy != string(StatusConfirmed) {
			t.Fatalf("occupied_by = %q, want %q", s.OccupiedBy, StatusConfirmed)
		}
	}
}

func TestGenerateSlots_DiscardsCandidatesPastWindowEnd(t *testing.T) {
	slots := GenerateSlots(SlotRequest{
		Window:          Window{Start: hm("09:00"), End: hm("10:00"), GranularityMinutes: 30},
		DurationMinutes: 45,
	})
	if len(slots) != 1 {
		t.Fatalf("len(slots) = %d, want 1", len(slots))
	}
	if slots[0].Start != hm("09:00") || slots[0].End != hm("09:45") {
		t.Fatalf("slot = %s-%s, want 09:00-09:45", slots[0].Start, slots[0].End)
	}
}

func TestGenerateSlots_EdgeCasesYieldNothing(t *testing.T) {
	tests := []struct {
		name string
		req  SlotRequest
	}{
		{
			name: "empty window",
			req:  SlotRequest{Window: Window{Start: hm("09:00"), End: hm("09:00"), GranularityMinutes: 15}, DurationMinutes: 15},
		},
		{
			name: "duration longer than window",
			req:  SlotRequest{Window: Window{Start: hm("09:00"), End: hm("10:00"), GranularityMinutes: 15}, DurationMinutes: 61},
		},
		{
			name: "zero granularity",
			req:  SlotRequest{Window: Window{Start: hm("09:00"), End: hm("10:00")}, DurationMinutes: 15},
		},
		{
			name: "zero duration",
			req:  SlotRequest{Window: Window{Start: hm("09:00"), End: hm("10:00"), GranularityMinutes: 15}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GenerateSlots(tt.req); len(got) != 0 {
				t.Fatalf("len(slots) = %d, want 0", len(got))
			}
		})
	}
}

func TestGenerateSlots_PartialTrailingPeriodIsUnscheduled(t *testing.T) {
	slots := GenerateSlots(SlotRequest{
		Window:          Window{Start: hm("09:00"), End: hm("10:10"), GranularityMinutes: 20},
		DurationMinutes: 20,
	})
	want := []string{"09:00", "09:20", "09:40"}
	if got := starts(slots); !reflect.DeepEqual(got, want) {
		t.Fatalf("starts = %v, want %v", got, want)
	}
}

func TestGenerateSlots_StepsByGranularityNotDuration(t *testing.T) {
	slots := GenerateSlots(SlotRequest{
		Window:          Window{Start: hm("09:00"), End: hm("10:00"), GranularityMinutes: 15},
		DurationMinutes: 30,
	})
	want := []string{"09:00", "09:15", "09:30"}
	if got := starts(slots); !reflect.DeepEqual(got, want) {
		t.Fatalf("starts = %v, want %v", got, want)
	}
}

func TestGenerateSlots_OverlappingBlocksActAsUnion(t *testing.T) {
	slots := GenerateSlots(SlotRequest{
		Window:          Window{Start: hm("09:00"), End: hm("12:00"), GranularityMinutes: 30},
		DurationMinutes: 30,
		Blocks: []BlockedInterval{
			{StartMinute: hm("09:15"), EndMinute: hm("10:15")},
			{StartMinute: hm("10:00"), EndMinute: hm("10:45")},
		},
	})

	blocked := map[string]bool{}
	for _, s := range slots {
		if !s.Available {
			if s.OccupiedBy != OccupiedByBlock {
				t.Fatalf("occupied_by = %q, want %q", s.OccupiedBy, OccupiedByBlock)
			}
			blocked[s.Start.String()] = true
		}
	}
	want := map[string]bool{"09:00": true, "09:30": true, "10:00": true, "10:30": true}
	if !reflect.DeepEqual(blocked, want) {
		t.Fatalf("blocked = %v, want %v", blocked, want)
	}
}

func TestGenerateSlots_CancelledAppointmentsDoNotOccupy(t *testing.T) {
	slots := GenerateSlots(SlotRequest{
		Window:          Window{Start: hm("10:00"), End: hm("11:00"), GranularityMinutes: 30},
		DurationMinutes: 30,
		Appointments: []Appointment{
			{StartMinute: hm("10:00"), EndMinute: hm("10:30"), OccupiedUntil: hm("10:30"), Status: StatusCancelled},
			{StartMinute: hm("10:30"), EndMinute: hm("11:00"), OccupiedUntil: hm("11:00"), Status: StatusCompleted},
		},
	})
	for _, s := range slots {
		if !s.Available {
			t.Fatalf("slot %s unavailable, want available", s.Start)
		}
	}
}

func TestGenerateSlots_AppointmentStatusPreferredOverBlock(t *testing.T) {
	slots := GenerateSlots(SlotRequest{
		Window:          Window{Start: hm("10:00"), End: hm("10:30"), GranularityMinutes: 30},
		DurationMinutes: 30,
		Blocks:          []BlockedInterval{{StartMinute: hm("10:00"), EndMinute: hm("10:30")}},
		Appointments: []Appointment{
			{StartMinute: hm("10:00"), EndMinute: hm("10:30"), OccupiedUntil: hm("10:30"), Status: StatusPending},
		},
	})
	if len(slots) != 1 || slots[0].OccupiedBy != string(StatusPending) {
		t.Fatalf("slots = %+v, want one slot occupied by pending", slots)
	}
}

func TestGenerateSlots_BreakPadsCandidateAndAppointment(t *testing.T) {
	slots := GenerateSlots(SlotRequest{
		Window:          Window{Start: hm("09:00"), End: hm("11:00"), GranularityMinutes: 30},
		DurationMinutes: 30,
		BreakMinutes:    10,
		Appointments: []Appointment{
			{StartMinute: hm("10:00"), EndMinute: hm("10:30"), OccupiedUntil: hm("10:40"), Status: StatusConfirmed},
		},
	})

	got := map[string]bool{}
	for _, s := range slots {
		got[s.Start.String()] = s.Available
	}
	want := map[string]bool{
		"09:00": true,
		"09:30": false, // 09:30-10:10 with break runs into 10:00
		"10:00": false,
		"10:30": false, // existing break runs to 10:40
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("availability = %v, want %v", got, want)
	}
}

func TestGenerateSlots_NotBeforeDropsEarlierStarts(t *testing.T) {
	slots := GenerateSlots(SlotRequest{
		Window:          Window{Start: hm("09:00"), End: hm("11:00"), GranularityMinutes: 30},
		DurationMinutes: 30,
		NotBefore:       hm("09:31"),
	})
	want := []string{"10:00", "10:30"}
	if got := starts(slots); !reflect.DeepEqual(got, want) {
		t.Fatalf("starts = %v, want %v", got, want)
	}
}

func TestGenerateSlots_Properties(t *testing.T) {
	windows := []Window{
		{Start: hm("08:00"), End: hm("18:00"), GranularityMinutes: 15},
		{Start: hm("07:10"), End: hm("13:55"), GranularityMinutes: 25},
		{Start: hm("00:00"), End: hm("24:00"), GranularityMinutes: 60},
	}
	blocks := []BlockedInterval{
		{StartMinute: hm("09:00"), EndMinute: hm("09:20")},
		{StartMinute: hm("12:00"), EndMinute: hm("13:00")},
		{StartMinute: hm("12:30"), EndMinute: hm("12:45")},
	}
	appts := []Appointment{
		{StartMinute: hm("10:00"), EndMinute: hm("10:45"), OccupiedUntil: hm("10:45"), Status: StatusPending},
		{StartMinute: hm("15:00"), EndMinute: hm("16:00"), OccupiedUntil: hm("16:00"), Status: StatusConfirmed},
		{StartMinute: hm("16:00"), EndMinute: hm("16:30"), OccupiedUntil: hm("16:30"), Status: StatusCancelled},
	}

	for _, w := range windows {
		for _, duration := range []int{10, 30, 45, 90} {
			req := SlotRequest{Window: w, DurationMinutes: duration, Blocks: blocks, Appointments: appts}
			slots := GenerateSlots(req)

			for i, s := range slots {
				if int(s.End-s.Start) != duration {
					t.Fatalf("slot %s: length = %d, want %d", s.Start, s.End-s.Start, duration)
				}
				if s.Start < w.Start || s.End > w.End {
					t.Fatalf("slot %s-%s outside window %s-%s", s.Start, s.End, w.Start, w.End)
				}
				if i > 0 && s.Start <= slots[i-1].Start {
					t.Fatalf("slots not strictly ascending at %d: %s after %s", i, s.Start, slots[i-1].Start)
				}

				probe := Interval{Start: s.Start, End: s.End}
				overlaps := false
				for _, b := range blocks {
					overlaps = overlaps || probe.Overlaps(b.Interval())
				}
				for _, a := range appts {
					overlaps = overlaps || (a.Status.Occupies() && probe.Overlaps(a.Occupied()))
				}
				if s.Available == overlaps {
					t.Fatalf("slot %s: available = %v but overlap = %v", s.Start, s.Available, overlaps)
				}
			}

			if again := GenerateSlots(req); !reflect.DeepEqual(slots, again) {
				t.Fatalf("GenerateSlots is not idempotent for window %+v duration %d", w, duration)
			}
		}
	}
}

func TestIntervalOverlapsIsHalfOpen(t *testing.T) {
	a := Interval{Start: hm("10:00"), End: hm("10:30")}
	if a.Overlaps(Interval{Start: hm("10:30"), End: hm("11:00")}) {
		t.Fatalf("adjacent intervals must not overlap")
	}
	if a.Overlaps(Interval{Start: hm("09:30"), End: hm("10:00")}) {
		t.Fatalf("adjacent intervals must not overlap")
	}
	if !a.Overlaps(Interval{Start: hm("10:29"), End: hm("10:31")}) {
		t.Fatalf("expected overlap")
	}
	if !a.Overlaps(Interval{Start: hm("09:00"), End: hm("12:00")}) {
		t.Fatalf("expected containment to overlap")
	}
}

func TestPeriodOf(t *testing.T) {
	tests := map[string]Period{
		"06:00": PeriodMorning,
		"11:59": PeriodMorning,
		"12:00": PeriodAfternoon,
		"17:59": PeriodAfternoon,
		"18:00": PeriodEvening,
	}
	for in, want := range tests {
		if got := PeriodOf(hm(in)); got != want {
			t.Fatalf("PeriodOf(%s) = %s, want %s", in, got, want)
		}
	}
}
