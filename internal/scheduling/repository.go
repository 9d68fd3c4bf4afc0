package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrProviderNotFound    = errors.New("provider not found")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// ProviderFilter narrows a directory lookup. Zero values match everything.
type ProviderFilter struct {
	ProviderID   uuid.UUID
	DepartmentID uuid.UUID
	Specialty    string
}

// BookingRequest is what the booker hands to the record store on commit.
type BookingRequest struct {
	PatientID      uuid.UUID
	Slot           TimeSlot
	Reason         string
	Priority       Priority
	IdempotencyKey uuid.UUID // uuid.Nil when the caller does not need retry safety
}

// Repository is the external record store this core reads bookings from and
// delegates writes to. It owns all persistence; the core never writes except
// through CommitBooking.
type Repository interface {
	// Directory lookups
	ListProviders(ctx context.Context, filter ProviderFilter) ([]Provider, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	// Booked state for conflict checks and workload scoring
	BookedIntervals(ctx context.Context, providerID uuid.UUID, day time.Time) ([]Interval, error)
	CountConfirmedAppointments(ctx context.Context, providerID uuid.UUID, day time.Time) (int, error)

	// Commit path
	CommitBooking(ctx context.Context, req BookingRequest) (*AppointmentRef, error)

	// Audit trail
	InsertEvent(ctx context.Context, ev EventLog) error
}

// Notifier delivers the confirmation side effect after a successful booking.
// Failures are logged and never roll the booking back.
type Notifier interface {
	SendConfirmation(ctx context.Context, ref AppointmentRef) error
}

// SlotLocker guards the commit-time critical section for one slot so that
// concurrent bookings of the same window serialize.
type SlotLocker interface {
	WithSlotLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}
