package scheduling

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/careops/smart-scheduling/internal/config"
)

var (
	ErrInvalidPriority = errors.New("invalid appointment priority")
	ErrInvalidDuration = errors.New("appointment duration must be positive")
)

// Priority classifies how soon an appointment needs to happen. It drives
// both slot scoring and queue placement.
type Priority int

const (
	PriorityRoutine Priority = iota + 1
	PriorityUrgent
	PriorityEmergency
	PriorityFollowUp
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityRoutine, PriorityUrgent, PriorityEmergency, PriorityFollowUp:
		return true
	}
	return false
}

func (p Priority) String() string {
	switch p {
	case PriorityRoutine:
		return "routine"
	case PriorityUrgent:
		return "urgent"
	case PriorityEmergency:
		return "emergency"
	case PriorityFollowUp:
		return "follow_up"
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

// ParsePriority maps the wire/database representation back to a Priority.
func ParsePriority(raw string) (Priority, error) {
	switch raw {
	case "routine":
		return PriorityRoutine, nil
	case "urgent":
		return PriorityUrgent, nil
	case "emergency":
		return PriorityEmergency, nil
	case "follow_up":
		return PriorityFollowUp, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidPriority, raw)
}

// TimeOfDay is a preferred part of the day. Bucket boundaries come from
// configuration, not from these names.
type TimeOfDay string

const (
	Morning   TimeOfDay = "morning"
	Afternoon TimeOfDay = "afternoon"
	Evening   TimeOfDay = "evening"
)

type SlotType string

const (
	SlotStandard  SlotType = "standard"
	SlotExtended  SlotType = "extended"
	SlotEmergency SlotType = "emergency"
)

// TimeSlot is one candidate booking window for a single provider. The
// trailing BufferMinutes are reserved before the provider's next slot.
type TimeSlot struct {
	Start         time.Time
	End           time.Time
	ProviderID    uuid.UUID
	DepartmentID  uuid.UUID // uuid.Nil when the provider has no department
	SlotType      SlotType
	BufferMinutes int
}

// Interval is a half-open [Start, End) booked window on a provider's day.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two half-open intervals intersect.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && iv.End.After(other.Start)
}

// SchedulingPreference holds a patient's soft constraints. Empty fields
// mean "no opinion", never "reject".
type SchedulingPreference struct {
	PatientID          uuid.UUID
	PreferredProviders []uuid.UUID
	PreferredTimes     []TimeOfDay
	PreferredDays      []time.Weekday
	AvoidDays          []time.Weekday
	MaxWaitMinutes     int
}

func (p SchedulingPreference) prefersProvider(id uuid.UUID) bool {
	for _, pid := range p.PreferredProviders {
		if pid == id {
			return true
		}
	}
	return false
}

func (p SchedulingPreference) prefersDay(day time.Weekday) bool {
	for _, d := range p.PreferredDays {
		if d == day {
			return true
		}
	}
	return false
}

func (p SchedulingPreference) avoidsDay(day time.Weekday) bool {
	for _, d := range p.AvoidDays {
		if d == day {
			return true
		}
	}
	return false
}

// Patient is the minimal identity the scheduler needs to validate a request.
type Patient struct {
	ID    uuid.UUID
	Name  string
	Email *string
}

// Provider is directory metadata for one bookable clinician.
type Provider struct {
	ID              uuid.UUID
	Name            string
	DepartmentID    uuid.UUID
	Specialty       *string
	WorkingSessions []config.Session // empty means the provider takes no bookings
}

// AppointmentRef is the committed booking handed back to callers.
type AppointmentRef struct {
	ID         uuid.UUID
	PatientID  uuid.UUID
	ProviderID uuid.UUID
	Start      time.Time
	End        time.Time
	Priority   Priority
	CreatedAt  time.Time
}

// SlotConflictError reports that the chosen slot collided with an existing
// booking at commit time. Callers should re-run slot selection and retry.
type SlotConflictError struct {
	ProviderID uuid.UUID
	Conflict   Interval
}

func (e *SlotConflictError) Error() string {
	return fmt.Sprintf("slot conflicts with existing booking %s-%s for provider %s",
		e.Conflict.Start.Format(time.RFC3339), e.Conflict.End.Format(time.RFC3339), e.ProviderID)
}

// EventLog is an audit record for booking outcomes.
type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
