package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/Rauan19/agendoai-sub000/internal/domain"
)

// Topic names double as event types: one event per topic.
const (
	TypeAppointmentBooked    = "agendoai.appointment.booked.v1"
	TypeAppointmentConfirmed = "agendoai.appointment.confirmed.v1"
	TypeAppointmentCompleted = "agendoai.appointment.completed.v1"
	TypeAppointmentCancelled = "agendoai.appointment.cancelled.v1"
)

// Event is a row in the transactional outbox.
type Event struct {
	bun.BaseModel `bun:"table:outbox_events"`

	ID          uuid.UUID  `bun:"id,pk,type:uuid"`
	Type        string     `bun:"event_type,notnull"`
	AggregateID string     `bun:"aggregate_id,notnull"`
	Payload     []byte     `bun:"payload,type:jsonb,notnull"`
	Traceparent string     `bun:"traceparent,nullzero"`
	Tracestate  string     `bun:"tracestate,nullzero"`
	OccurredAt  time.Time  `bun:"occurred_at,notnull"`
	PublishedAt *time.Time `bun:"published_at"`
}

// AppointmentPayload is the JSON body of every appointment event.
type AppointmentPayload struct {
	AppointmentID string `json:"appointment_id"`
	ProviderID    string `json:"provider_id"`
	ClientID      string `json:"client_id"`
	ServiceID     string `json:"service_id"`
	Date          string `json:"date"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Status        string `json:"status"`
	CancelledBy   string `json:"cancelled_by,omitempty"`
	CancelReason  string `json:"cancel_reason,omitempty"`
}

// TypeForStatus maps the status an appointment just entered to its event type.
func TypeForStatus(s domain.AppointmentStatus) string {
	switch s {
	case domain.StatusConfirmed:
		return TypeAppointmentConfirmed
	case domain.StatusCompleted:
		return TypeAppointmentCompleted
	case domain.StatusCancelled:
		return TypeAppointmentCancelled
	default:
		return TypeAppointmentBooked
	}
}

// NewAppointmentEvent builds the outbox row for appt, carrying the trace
// context of ctx so the publisher can continue the trace.
func NewAppointmentEvent(ctx context.Context, eventType string, appt domain.Appointment, at time.Time) (Event, error) {
	payload, err := json.Marshal(AppointmentPayload{
		AppointmentID: appt.ID.String(),
		ProviderID:    appt.ProviderID,
		ClientID:      appt.ClientID,
		ServiceID:     appt.ServiceID,
		Date:          domain.FormatDate(appt.Date),
		StartTime:     appt.StartMinute.String(),
		EndTime:       appt.EndMinute.String(),
		Status:        string(appt.Status),
		CancelledBy:   appt.CancelledBy,
		CancelReason:  appt.CancelReason,
	})
	if err != nil {
		return Event{}, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return Event{}, err
	}
	traceparent, tracestate := TraceContextStrings(ctx)
	return Event{
		ID:          id,
		Type:        eventType,
		AggregateID: appt.ID.String(),
		Payload:     payload,
		Traceparent: traceparent,
		Tracestate:  tracestate,
		OccurredAt:  at.UTC(),
	}, nil
}
