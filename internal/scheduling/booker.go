package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/careops/smart-scheduling/internal/logger"
	redisclient "github.com/careops/smart-scheduling/internal/redis"
)

const (
	EventBookingCommitted = "BOOKING_COMMITTED"
	EventBookingConflict  = "BOOKING_CONFLICT"
)

var ErrSlotBeingBooked = errors.New("slot is currently being booked, please retry")

// Both lockers must stay interchangeable behind SlotLocker.
var (
	_ SlotLocker = (*redisclient.SlotLocker)(nil)
	_ SlotLocker = (*LocalSlotLocker)(nil)
)

// Booker converts a chosen slot into a committed booking. It re-verifies the
// slot against the provider's current booked intervals inside a per-slot
// lock, so the window between scoring and commit is closed: under contention
// exactly one caller wins and the rest get a SlotConflictError.
type Booker struct {
	repo     Repository
	locker   SlotLocker
	notifier Notifier
	log      *logger.Logger
}

func NewBooker(repo Repository, locker SlotLocker, notifier Notifier, log *logger.Logger) *Booker {
	return &Booker{
		repo:     repo,
		locker:   locker,
		notifier: notifier,
		log:      log,
	}
}

// SlotLockKey identifies one provider's slot window for locking purposes.
func SlotLockKey(slot TimeSlot) string {
	return fmt.Sprintf("lock:slot:%s:%d", slot.ProviderID, slot.Start.Unix())
}

// Book commits the slot for the patient. A conflict found at commit time
// fails with SlotConflictError and emits neither a booking nor a
// confirmation; callers should regenerate slots and retry.
func (b *Booker) Book(ctx context.Context, patientID uuid.UUID, slot TimeSlot, reason string, priority Priority, idempotencyKey uuid.UUID) (*AppointmentRef, error) {
	if !priority.Valid() {
		return nil, ErrInvalidPriority
	}
	if !slot.End.After(slot.Start) {
		return nil, ErrInvalidDuration
	}

	if _, err := b.repo.GetPatientByID(ctx, patientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	var ref *AppointmentRef

	err := b.locker.WithSlotLock(ctx, SlotLockKey(slot), func(lockCtx context.Context) error {
		// Re-check against the provider's current bookings, not the
		// snapshot slot generation ran against.
		booked, err := b.repo.BookedIntervals(lockCtx, slot.ProviderID, midnight(slot.Start))
		if err != nil {
			return fmt.Errorf("re-check booked intervals: %w", err)
		}

		want := Interval{Start: slot.Start, End: slot.End}
		for _, iv := range booked {
			if want.Overlaps(iv) {
				return &SlotConflictError{ProviderID: slot.ProviderID, Conflict: iv}
			}
		}

		ref, err = b.repo.CommitBooking(lockCtx, BookingRequest{
			PatientID:      patientID,
			Slot:           slot,
			Reason:         reason,
			Priority:       priority,
			IdempotencyKey: idempotencyKey,
		})
		if err != nil {
			return err
		}

		return nil
	})

	if err != nil {
		var conflict *SlotConflictError
		if errors.As(err, &conflict) {
			b.logEvent(ctx, nil, EventBookingConflict, map[string]any{
				"provider_id":    slot.ProviderID.String(),
				"patient_id":     patientID.String(),
				"slot_start":     slot.Start,
				"conflict_start": conflict.Conflict.Start,
				"conflict_end":   conflict.Conflict.End,
			})
			return nil, err
		}
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	b.logEvent(ctx, &ref.ID, EventBookingCommitted, map[string]any{
		"provider_id": ref.ProviderID.String(),
		"patient_id":  ref.PatientID.String(),
		"start":       ref.Start,
		"priority":    priority.String(),
	})

	// Confirmation is fire-and-forget: a delivery failure never rolls the
	// booking back.
	if err := b.notifier.SendConfirmation(ctx, *ref); err != nil {
		b.log.WithComponent("booker").WithError(err).
			Warnf("confirmation delivery failed for appointment %s", ref.ID)
	}

	return ref, nil
}

func (b *Booker) logEvent(ctx context.Context, appointmentID *uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		b.log.WithComponent("booker").WithError(err).
			Warnf("marshal event payload for %s", eventType)
		data = nil
	}

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: appointmentID,
		Payload:       data,
	}

	if err := b.repo.InsertEvent(ctx, ev); err != nil {
		b.log.WithComponent("booker").WithError(err).
			Warnf("insert event log %s", eventType)
	}
}
