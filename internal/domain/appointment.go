package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

var transitions = map[AppointmentStatus][]AppointmentStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

func ParseAppointmentStatus(s string) (AppointmentStatus, bool) {
	switch st := AppointmentStatus(s); st {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return st, true
	}
	return "", false
}

// Occupies reports whether an appointment in this status holds its time range.
func (s AppointmentStatus) Occupies() bool {
	return s == StatusPending || s == StatusConfirmed
}

func (s AppointmentStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ActiveStatuses are the statuses that occupy time, for use in queries.
func ActiveStatuses() []AppointmentStatus {
	return []AppointmentStatus{StatusPending, StatusConfirmed}
}

type Appointment struct {
	bun.BaseModel `bun:"table:appointments"`

	ID            uuid.UUID         `bun:"id,pk,type:uuid"`
	ProviderID    string            `bun:"provider_id,notnull"`
	ClientID      string            `bun:"client_id,notnull"`
	ServiceID     string            `bun:"service_id,notnull"`
	Date          time.Time         `bun:"date,type:date,notnull"`
	StartMinute   Minute            `bun:"start_minute,notnull"`
	EndMinute     Minute            `bun:"end_minute,notnull"`
	OccupiedUntil Minute            `bun:"occupied_until,notnull"`
	Status        AppointmentStatus `bun:"status,notnull"`
	CancelledAt   *time.Time        `bun:"cancelled_at"`
	CancelledBy   string            `bun:"cancelled_by,nullzero"`
	CancelReason  string            `bun:"cancel_reason,nullzero"`
	CreatedAt     time.Time         `bun:"created_at,notnull"`
	UpdatedAt     time.Time         `bun:"updated_at,notnull"`
}

func (a *Appointment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	return stampModel(query, &a.ID, &a.CreatedAt, &a.UpdatedAt)
}

// Occupied is the span this appointment removes from availability: the
// service time plus any trailing break.
func (a Appointment) Occupied() Interval {
	end := a.OccupiedUntil
	if end < a.EndMinute {
		end = a.EndMinute
	}
	return Interval{Start: a.StartMinute, End: end}
}

// SameBooking reports whether b describes the same booking request as a,
// ignoring server-assigned fields.
func (a Appointment) SameBooking(b Appointment) bool {
	return a.ProviderID == b.ProviderID &&
		a.ClientID == b.ClientID &&
		a.ServiceID == b.ServiceID &&
		a.Date.Equal(b.Date) &&
		a.StartMinute == b.StartMinute &&
		a.EndMinute == b.EndMinute
}

// StatusChange is a requested transition together with who asked for it.
type StatusChange struct {
	To      AppointmentStatus
	ActorID string
	Reason  string
	At      time.Time
}

// Apply returns the appointment after the change. changed is false when the
// appointment is already cancelled and the change is another cancellation.
func (a Appointment) Apply(c StatusChange) (out Appointment, changed bool, err error) {
	if a.Status == StatusCancelled && c.To == StatusCancelled {
		return a, false, nil
	}
	if !a.Status.CanTransitionTo(c.To) {
		return a, false, ErrInvalidTransition
	}
	out = a
	out.Status = c.To
	if c.To == StatusCancelled {
		at := c.At.UTC()
		out.CancelledAt = &at
		out.CancelledBy = c.ActorID
		out.CancelReason = c.Reason
	}
	return out, true, nil
}
