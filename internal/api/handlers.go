package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/careops/smart-scheduling/internal/queue"
	"github.com/careops/smart-scheduling/internal/scheduling"
)

func findOptimalSlotHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req FindSlotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		providerID, err := parseOptionalUUID(req.ProviderID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_provider_id", "provider_id must be a valid UUID")
			return
		}

		departmentID, err := parseOptionalUUID(req.DepartmentID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_department_id", "department_id must be a valid UUID")
			return
		}

		priority, err := scheduling.ParsePriority(req.Priority)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "invalid_priority", err.Error())
			return
		}

		var preferredDate time.Time
		if req.PreferredDate != "" {
			preferredDate, err = time.Parse("2006-01-02", req.PreferredDate)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_preferred_date", "preferred_date must be YYYY-MM-DD")
				return
			}
		}

		rec, err := svc.FindOptimalSlot(r.Context(), scheduling.SlotRequest{
			PatientID:       patientID,
			ProviderID:      providerID,
			DepartmentID:    departmentID,
			DurationMinutes: req.DurationMinutes,
			Priority:        priority,
			PreferredDate:   preferredDate,
			HorizonDays:     req.HorizonDays,
		})
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		resp := FindSlotResponse{
			Slot:                 toSlotResponse(rec.Slot),
			Score:                rec.Breakdown.Total(),
			Confidence:           rec.Confidence,
			EstimatedWaitMinutes: rec.EstimatedWaitMinutes,
			Alternatives:         make([]RankedSlotResponse, 0, len(rec.Alternatives)),
		}
		for _, alt := range rec.Alternatives {
			resp.Alternatives = append(resp.Alternatives, RankedSlotResponse{
				Slot:  toSlotResponse(alt.Slot),
				Score: alt.Score(),
			})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func createAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		priority, err := scheduling.ParsePriority(req.Priority)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "invalid_priority", err.Error())
			return
		}

		departmentID, err := parseOptionalUUID(req.Slot.DepartmentID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_department_id", "department_id must be a valid UUID")
			return
		}

		idempotencyKey, err := parseOptionalUUID(req.IdempotencyKey)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_idempotency_key", "idempotency_key must be a valid UUID")
			return
		}

		slot := scheduling.TimeSlot{
			Start:         req.Slot.Start,
			End:           req.Slot.End,
			ProviderID:    req.Slot.ProviderID,
			DepartmentID:  departmentID,
			SlotType:      scheduling.SlotType(req.Slot.SlotType),
			BufferMinutes: req.Slot.BufferMinutes,
		}
		if slot.SlotType == "" {
			slot.SlotType = scheduling.SlotStandard
		}

		ref, err := svc.CreateAppointment(r.Context(), patientID, slot, req.Reason, priority, idempotencyKey)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(*ref))
	}
}

func checkInHandler(qm *queue.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CheckInRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}
		appointmentID, err := uuid.Parse(req.AppointmentID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "appointment_id must be a valid UUID")
			return
		}
		providerID, err := uuid.Parse(req.ProviderID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_provider_id", "provider_id must be a valid UUID")
			return
		}

		priority, err := scheduling.ParsePriority(req.Priority)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "invalid_priority", err.Error())
			return
		}

		entry, err := qm.Enqueue(patientID, appointmentID, providerID, priority)
		if err != nil {
			handleQueueError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toQueueEntryResponse(entry))
	}
}

func queueStatusHandler(qm *queue.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := providerIDParam(w, r)
		if !ok {
			return
		}

		summary, err := qm.Status(providerID)
		if err != nil {
			handleQueueError(w, err)
			return
		}

		resp := QueueStatusResponse{
			ProviderID:         summary.ProviderID,
			Length:             summary.Length,
			AverageWaitMinutes: summary.AverageWaitMinutes,
			Entries:            make([]QueueEntryResponse, 0, len(summary.Entries)),
		}
		for _, e := range summary.Entries {
			resp.Entries = append(resp.Entries, toQueueEntryResponse(e))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func callNextHandler(qm *queue.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := providerIDParam(w, r)
		if !ok {
			return
		}

		entry, err := qm.CallNext(providerID)
		if err != nil {
			handleQueueError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toQueueEntryResponse(entry))
	}
}

func completeHandler(qm *queue.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := providerIDParam(w, r)
		if !ok {
			return
		}
		entryID, err := uuid.Parse(chi.URLParam(r, "entryID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_entry_id", "entryID must be a valid UUID")
			return
		}

		if err := qm.Complete(providerID, entryID); err != nil {
			handleQueueError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func noShowHandler(qm *queue.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := providerIDParam(w, r)
		if !ok {
			return
		}
		entryID, err := uuid.Parse(chi.URLParam(r, "entryID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_entry_id", "entryID must be a valid UUID")
			return
		}

		if err := qm.MarkNoShow(providerID, entryID); err != nil {
			handleQueueError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func patientWaitHandler(qm *queue.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, err := uuid.Parse(chi.URLParam(r, "patientID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patientID must be a valid UUID")
			return
		}

		info, err := qm.PatientWait(patientID)
		if err != nil {
			handleQueueError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, WaitResponse{
			ProviderID:       info.ProviderID,
			Position:         info.Position,
			ElapsedMinutes:   info.ElapsedMinutes,
			RemainingMinutes: info.RemainingMinutes,
		})
	}
}

func providerIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	providerID, err := uuid.Parse(chi.URLParam(r, "providerID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_provider_id", "providerID must be a valid UUID")
		return uuid.Nil, false
	}
	return providerID, true
}

func parseOptionalUUID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(raw)
}

func handleSchedulingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scheduling.ErrInvalidPriority):
		writeError(w, http.StatusUnprocessableEntity, "invalid_priority", err.Error())
	case errors.Is(err, scheduling.ErrInvalidDuration):
		writeError(w, http.StatusUnprocessableEntity, "invalid_duration", err.Error())
	case errors.Is(err, scheduling.ErrProviderUnavailable):
		writeError(w, http.StatusNotFound, "provider_unavailable", err.Error())
	case errors.Is(err, scheduling.ErrNoSlotsAvailable):
		writeError(w, http.StatusNotFound, "no_slots_available", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handleBookingError(w http.ResponseWriter, err error) {
	var conflict *scheduling.SlotConflictError

	switch {
	case errors.As(err, &conflict):
		writeConflict(w, "slot_conflict", err.Error(), IntervalResponse{
			Start: conflict.Conflict.Start,
			End:   conflict.Conflict.End,
		})
	case errors.Is(err, scheduling.ErrSlotBeingBooked):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	case errors.Is(err, scheduling.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, scheduling.ErrInvalidPriority):
		writeError(w, http.StatusUnprocessableEntity, "invalid_priority", err.Error())
	case errors.Is(err, scheduling.ErrInvalidDuration):
		writeError(w, http.StatusUnprocessableEntity, "invalid_duration", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handleQueueError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, queue.ErrQueueNotFound):
		writeError(w, http.StatusNotFound, "queue_not_found", err.Error())
	case errors.Is(err, queue.ErrQueueEmpty):
		writeError(w, http.StatusNotFound, "queue_empty", err.Error())
	case errors.Is(err, queue.ErrEntryNotFound):
		writeError(w, http.StatusNotFound, "entry_not_found", err.Error())
	case errors.Is(err, queue.ErrPatientNotQueued):
		writeError(w, http.StatusNotFound, "patient_not_queued", err.Error())
	case errors.Is(err, queue.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, scheduling.ErrInvalidPriority):
		writeError(w, http.StatusUnprocessableEntity, "invalid_priority", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
