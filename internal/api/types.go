package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/careops/smart-scheduling/internal/queue"
	"github.com/careops/smart-scheduling/internal/scheduling"
)

type FindSlotRequest struct {
	PatientID       string `json:"patient_id"`
	ProviderID      string `json:"provider_id,omitempty"`
	DepartmentID    string `json:"department_id,omitempty"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	Priority        string `json:"priority"`
	PreferredDate   string `json:"preferred_date,omitempty"` // YYYY-MM-DD
	HorizonDays     int    `json:"horizon_days,omitempty"`
}

type SlotResponse struct {
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	ProviderID    uuid.UUID `json:"provider_id"`
	DepartmentID  string    `json:"department_id,omitempty"`
	SlotType      string    `json:"slot_type"`
	BufferMinutes int       `json:"buffer_minutes"`
}

type RankedSlotResponse struct {
	Slot  SlotResponse `json:"slot"`
	Score float64      `json:"score"`
}

type FindSlotResponse struct {
	Slot                 SlotResponse         `json:"slot"`
	Score                float64              `json:"score"`
	Confidence           float64              `json:"confidence"`
	EstimatedWaitMinutes int                  `json:"estimated_wait_minutes"`
	Alternatives         []RankedSlotResponse `json:"alternatives"`
}

type CreateAppointmentRequest struct {
	PatientID      string       `json:"patient_id"`
	Slot           SlotResponse `json:"slot"`
	Reason         string       `json:"reason,omitempty"`
	Priority       string       `json:"priority"`
	IdempotencyKey string       `json:"idempotency_key,omitempty"`
}

type AppointmentResponse struct {
	ID         uuid.UUID `json:"id"`
	PatientID  uuid.UUID `json:"patient_id"`
	ProviderID uuid.UUID `json:"provider_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Priority   string    `json:"priority"`
	CreatedAt  time.Time `json:"created_at"`
}

type CheckInRequest struct {
	PatientID     string `json:"patient_id"`
	AppointmentID string `json:"appointment_id"`
	ProviderID    string `json:"provider_id"`
	Priority      string `json:"priority"`
}

type QueueEntryResponse struct {
	ID                   uuid.UUID  `json:"id"`
	PatientID            uuid.UUID  `json:"patient_id"`
	AppointmentID        uuid.UUID  `json:"appointment_id"`
	ProviderID           uuid.UUID  `json:"provider_id"`
	Priority             string     `json:"priority"`
	Status               string     `json:"status"`
	Position             int        `json:"position"`
	EstimatedWaitMinutes int        `json:"estimated_wait_minutes"`
	ArrivalTime          time.Time  `json:"arrival_time"`
	CalledTime           *time.Time `json:"called_time,omitempty"`
}

type QueueStatusResponse struct {
	ProviderID         uuid.UUID            `json:"provider_id"`
	Length             int                  `json:"length"`
	AverageWaitMinutes int                  `json:"average_wait_minutes"`
	Entries            []QueueEntryResponse `json:"entries"`
}

type WaitResponse struct {
	ProviderID       uuid.UUID `json:"provider_id"`
	Position         int       `json:"position"`
	ElapsedMinutes   int       `json:"elapsed_minutes"`
	RemainingMinutes int       `json:"remaining_minutes"`
}

type IntervalResponse struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type ErrorResponse struct {
	Error    string            `json:"error"`
	Details  string            `json:"details,omitempty"`
	Conflict *IntervalResponse `json:"conflict,omitempty"`
}

func toSlotResponse(slot scheduling.TimeSlot) SlotResponse {
	resp := SlotResponse{
		Start:         slot.Start,
		End:           slot.End,
		ProviderID:    slot.ProviderID,
		SlotType:      string(slot.SlotType),
		BufferMinutes: slot.BufferMinutes,
	}
	if slot.DepartmentID != uuid.Nil {
		resp.DepartmentID = slot.DepartmentID.String()
	}
	return resp
}

func toQueueEntryResponse(e queue.Entry) QueueEntryResponse {
	return QueueEntryResponse{
		ID:                   e.ID,
		PatientID:            e.PatientID,
		AppointmentID:        e.AppointmentID,
		ProviderID:           e.ProviderID,
		Priority:             e.Priority.String(),
		Status:               string(e.Status),
		Position:             e.QueuePosition,
		EstimatedWaitMinutes: e.EstimatedWaitMinutes,
		ArrivalTime:          e.ArrivalTime,
		CalledTime:           e.CalledTime,
	}
}

func toAppointmentResponse(ref scheduling.AppointmentRef) AppointmentResponse {
	return AppointmentResponse{
		ID:         ref.ID,
		PatientID:  ref.PatientID,
		ProviderID: ref.ProviderID,
		Start:      ref.Start,
		End:        ref.End,
		Priority:   ref.Priority.String(),
		CreatedAt:  ref.CreatedAt,
	}
}
