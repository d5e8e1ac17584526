package domain

// Interval is a half-open minute range [Start, End).
type Interval struct {
	Start Minute
	End   Minute
}

// Overlaps reports whether two half-open ranges share any minute:
// [a0,a1) and [b0,b1) overlap iff a0 < b1 && b0 < a1.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start < o.End && o.Start < i.End
}

// OccupiedByBlock marks a slot that is unavailable because of a manual block.
const OccupiedByBlock = "block"

type Period string

const (
	PeriodMorning   Period = "morning"
	PeriodAfternoon Period = "afternoon"
	PeriodEvening   Period = "evening"
)

func PeriodOf(m Minute) Period {
	switch {
	case m < 12*60:
		return PeriodMorning
	case m < 18*60:
		return PeriodAfternoon
	default:
		return PeriodEvening
	}
}

// CandidateSlot is one bookable-or-not start time. OccupiedBy is empty for
// available slots, OccupiedByBlock for blocked ones, or the status of the
// appointment holding the time.
type CandidateSlot struct {
	Start      Minute
	End        Minute
	Available  bool
	OccupiedBy string
}

func (c CandidateSlot) Period() Period {
	return PeriodOf(c.Start)
}

// SlotRequest carries everything the generator needs; it does no I/O.
type SlotRequest struct {
	Window          Window
	DurationMinutes int
	// BreakMinutes pads each candidate's occupied span after the service.
	BreakMinutes int
	Blocks       []BlockedInterval
	Appointments []Appointment
	// NotBefore drops candidates starting earlier than this minute.
	NotBefore Minute
}

// GenerateSlots enumerates candidates from Window.Start in steps of the
// window granularity, keeps those that fit entirely inside the window, and
// marks each one unavailable when it overlaps any block or occupying
// appointment. Output is strictly ascending by start.
func GenerateSlots(req SlotRequest) []CandidateSlot {
	w := req.Window
	if w.GranularityMinutes <= 0 || req.DurationMinutes <= 0 || w.End <= w.Start {
		return nil
	}
	duration := Minute(req.DurationMinutes)
	span := duration
	if req.BreakMinutes > 0 {
		span += Minute(req.BreakMinutes)
	}

	out := make([]CandidateSlot, 0, int(w.End-w.Start)/w.GranularityMinutes+1)
	for t := w.Start; t+duration <= w.End; t += Minute(w.GranularityMinutes) {
		if t < req.NotBefore {
			continue
		}
		slot := CandidateSlot{Start: t, End: t + duration, Available: true}
		if occupiedBy, busy := FindConflict(Interval{Start: t, End: t + span}, req.Blocks, req.Appointments); busy {
			slot.Available = false
			slot.OccupiedBy = occupiedBy
		}
		out = append(out, slot)
	}
	return out
}

// FindConflict tests probe against the union of blocks and occupying
// appointments. Appointments are reported in preference to blocks so callers
// can tell "booked" from "blocked".
func FindConflict(probe Interval, blocks []BlockedInterval, appts []Appointment) (string, bool) {
	for _, a := range appts {
		if !a.Status.Occupies() {
			continue
		}
		if probe.Overlaps(a.Occupied()) {
			return string(a.Status), true
		}
	}
	for _, b := range blocks {
		if probe.Overlaps(b.Interval()) {
			return OccupiedByBlock, true
		}
	}
	return "", false
}
