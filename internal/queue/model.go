package queue

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/careops/smart-scheduling/internal/scheduling"
)

var (
	ErrQueueNotFound     = errors.New("no queue exists for provider")
	ErrQueueEmpty        = errors.New("queue has no waiting entries")
	ErrEntryNotFound     = errors.New("queue entry not found")
	ErrPatientNotQueued  = errors.New("patient is not waiting in any queue")
	ErrInvalidTransition = errors.New("invalid queue entry status transition")
)

// Status is the queue entry state machine: waiting -> inProgress ->
// completed, with noShow terminal from waiting.
type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusNoShow     Status = "no_show"
)

// Entry is one patient waiting for (or receiving) a live appointment.
// QueuePosition and EstimatedWaitMinutes are derived; they are recomputed on
// every queue mutation and hold meaning only for waiting entries.
type Entry struct {
	ID                   uuid.UUID
	PatientID            uuid.UUID
	AppointmentID        uuid.UUID
	ProviderID           uuid.UUID
	ArrivalTime          time.Time
	Priority             scheduling.Priority
	Status               Status
	QueuePosition        int
	EstimatedWaitMinutes int
	CheckInTime          time.Time
	CalledTime           *time.Time
}

// StatusSummary is a read-only view of one provider's waiting list.
type StatusSummary struct {
	ProviderID         uuid.UUID
	Length             int
	AverageWaitMinutes int
	Entries            []Entry
}

// WaitInfo reports a waiting patient's live wait state.
type WaitInfo struct {
	ProviderID       uuid.UUID
	Position         int
	ElapsedMinutes   int
	RemainingMinutes int
}
