package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Rauan19/agendoai-sub000/internal/domain"
	"github.com/Rauan19/agendoai-sub000/internal/events"
)

// InsertIfFree is the booking commit shared by every ledger. The caller must
// hold the provider-day lock for appt.ProviderID and appt.Date.
//
// A non-nil appt.ID that already exists is an idempotent replay: the stored
// appointment is returned when it describes the same booking, otherwise
// ErrIdempotencyConflict.
func InsertIfFree(ctx context.Context, tx LedgerTx, appt domain.Appointment) (domain.Appointment, error) {
	if appt.ID != uuid.Nil {
		existing, err := tx.FindAppointment(ctx, appt.ID)
		switch {
		case err == nil:
			if !existing.SameBooking(appt) {
				return domain.Appointment{}, ErrIdempotencyConflict
			}
			return existing, nil
		case !errors.Is(err, ErrNotFound):
			return domain.Appointment{}, err
		}
	}

	if err := ensureFree(ctx, tx, appt); err != nil {
		return domain.Appointment{}, err
	}

	out, err := tx.InsertAppointment(ctx, appt)
	if err != nil {
		return domain.Appointment{}, err
	}
	if err := appendAppointmentEvent(ctx, tx, events.TypeAppointmentBooked, out); err != nil {
		return domain.Appointment{}, err
	}
	return out, nil
}

// ApplyTransition moves an appointment to change.To. Cancelling an already
// cancelled appointment returns it unchanged and emits nothing.
func ApplyTransition(ctx context.Context, tx LedgerTx, id uuid.UUID, change domain.StatusChange) (domain.Appointment, error) {
	current, err := tx.FindAppointment(ctx, id)
	if err != nil {
		return domain.Appointment{}, err
	}
	if change.At.IsZero() {
		change.At = time.Now()
	}
	next, changed, err := current.Apply(change)
	if err != nil {
		return domain.Appointment{}, err
	}
	if !changed {
		return current, nil
	}
	if err := tx.UpdateAppointmentStatus(ctx, next); err != nil {
		return domain.Appointment{}, err
	}
	if err := appendAppointmentEvent(ctx, tx, events.TypeForStatus(next.Status), next); err != nil {
		return domain.Appointment{}, err
	}
	return next, nil
}

func ensureFree(ctx context.Context, tx LedgerTx, appt domain.Appointment) error {
	appts, err := tx.ListActiveAppointments(ctx, appt.ProviderID, appt.Date)
	if err != nil {
		return err
	}
	blocks, err := tx.ListBlocks(ctx, appt.ProviderID, appt.Date)
	if err != nil {
		return err
	}
	if _, busy := domain.FindConflict(appt.Occupied(), blocks, appts); busy {
		return ErrConflict
	}
	return nil
}

func appendAppointmentEvent(ctx context.Context, tx LedgerTx, eventType string, appt domain.Appointment) error {
	e, err := events.NewAppointmentEvent(ctx, eventType, appt, time.Now())
	if err != nil {
		return err
	}
	return tx.AppendEvent(ctx, e)
}
