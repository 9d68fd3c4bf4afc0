package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/careops/smart-scheduling/internal/config"
	"github.com/careops/smart-scheduling/internal/logger"
	"github.com/careops/smart-scheduling/internal/scheduling"
)

// Manager maintains the per-provider, priority-ordered waiting lists and
// keeps every entry's derived position and wait estimate current. All
// operations on one provider's queue are linearized by that queue's lock.
type Manager struct {
	store Store
	cfg   config.Config
	log   *logger.Logger

	now func() time.Time
}

func NewManager(store Store, cfg config.Config, log *logger.Logger) *Manager {
	return &Manager{
		store: store,
		cfg:   cfg,
		log:   log,
		now:   time.Now,
	}
}

// Enqueue checks a patient into the provider's queue.
//
// Emergency entries always insert at index 0, so the newest emergency lands
// ahead of older ones. That last-in-first-served quirk for the top tier is
// intentional-for-now: it matches the behavior the clinics run on, and
// changing it to FIFO-within-tier needs an owner decision.
func (m *Manager) Enqueue(patientID, appointmentID, providerID uuid.UUID, priority scheduling.Priority) (Entry, error) {
	if !priority.Valid() {
		return Entry{}, scheduling.ErrInvalidPriority
	}

	now := m.now()
	entry := &Entry{
		ID:            uuid.New(),
		PatientID:     patientID,
		AppointmentID: appointmentID,
		ProviderID:    providerID,
		ArrivalTime:   now,
		CheckInTime:   now,
		Priority:      priority,
		Status:        StatusWaiting,
	}

	q := m.store.GetOrCreate(providerID)

	var snapshot Entry
	q.withLock(func() {
		switch priority {
		case scheduling.PriorityEmergency:
			q.entries = append([]*Entry{entry}, q.entries...)
		case scheduling.PriorityUrgent:
			// After the contiguous emergency run at the front, before
			// anything else.
			pos := len(q.entries)
			for i, e := range q.entries {
				if e.Priority != scheduling.PriorityEmergency {
					pos = i
					break
				}
			}
			q.entries = append(q.entries, nil)
			copy(q.entries[pos+1:], q.entries[pos:])
			q.entries[pos] = entry
		default:
			q.entries = append(q.entries, entry)
		}

		m.recompute(q)
		snapshot = *entry
	})

	m.log.WithComponent("queue").WithFields(map[string]interface{}{
		"provider_id": providerID.String(),
		"patient_id":  patientID.String(),
		"priority":    priority.String(),
		"position":    snapshot.QueuePosition,
	}).Info("patient checked in")

	return snapshot, nil
}

// CallNext transitions the first waiting entry to in-progress and returns
// it. An empty queue yields ErrQueueEmpty; a provider that never had a queue
// yields ErrQueueNotFound so caller bugs are not masked.
func (m *Manager) CallNext(providerID uuid.UUID) (Entry, error) {
	q, ok := m.store.Get(providerID)
	if !ok {
		return Entry{}, ErrQueueNotFound
	}

	var called *Entry
	q.withLock(func() {
		for _, e := range q.entries {
			if e.Status == StatusWaiting {
				now := m.now()
				e.Status = StatusInProgress
				e.CalledTime = &now
				m.recompute(q)
				snapshot := *e
				called = &snapshot
				return
			}
		}
	})

	if called == nil {
		return Entry{}, ErrQueueEmpty
	}

	m.log.WithComponent("queue").WithField("provider_id", providerID.String()).
		Infof("called patient %s", called.PatientID)

	return *called, nil
}

// Complete removes the entry from the provider's live queue and recomputes
// the remaining positions. The completed transition is immediate: once the
// entry leaves the list it no longer exists for this manager.
func (m *Manager) Complete(providerID, entryID uuid.UUID) error {
	q, ok := m.store.Get(providerID)
	if !ok {
		return ErrQueueNotFound
	}

	found := false
	q.withLock(func() {
		for i, e := range q.entries {
			if e.ID == entryID {
				e.Status = StatusCompleted
				q.entries = append(q.entries[:i], q.entries[i+1:]...)
				found = true
				break
			}
		}
		m.recompute(q)
	})

	if !found {
		return ErrEntryNotFound
	}

	m.log.WithComponent("queue").WithField("provider_id", providerID.String()).
		Infof("completed queue entry %s", entryID)

	return nil
}

// MarkNoShow moves a waiting entry to the terminal no-show state and drops
// it from the queue. An entry already in progress cannot no-show.
func (m *Manager) MarkNoShow(providerID, entryID uuid.UUID) error {
	q, ok := m.store.Get(providerID)
	if !ok {
		return ErrQueueNotFound
	}

	var err error = ErrEntryNotFound
	q.withLock(func() {
		for i, e := range q.entries {
			if e.ID != entryID {
				continue
			}
			if e.Status != StatusWaiting {
				err = ErrInvalidTransition
				return
			}
			e.Status = StatusNoShow
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			m.recompute(q)
			err = nil
			return
		}
	})

	return err
}

// Status returns a read-only snapshot of the provider's waiting list.
func (m *Manager) Status(providerID uuid.UUID) (StatusSummary, error) {
	q, ok := m.store.Get(providerID)
	if !ok {
		return StatusSummary{}, ErrQueueNotFound
	}

	summary := StatusSummary{ProviderID: providerID}
	q.withLock(func() {
		totalWait := 0
		for _, e := range q.entries {
			if e.Status != StatusWaiting {
				continue
			}
			summary.Entries = append(summary.Entries, *e)
			totalWait += e.EstimatedWaitMinutes
		}
		summary.Length = len(summary.Entries)
		if summary.Length > 0 {
			summary.AverageWaitMinutes = int(float64(totalWait)/float64(summary.Length) + 0.5)
		}
	})

	return summary, nil
}

// PatientWait scans every provider queue for a waiting entry belonging to
// the patient and reports elapsed and remaining wait.
func (m *Manager) PatientWait(patientID uuid.UUID) (WaitInfo, error) {
	for _, q := range m.store.All() {
		var info *WaitInfo
		q.withLock(func() {
			for _, e := range q.entries {
				if e.PatientID != patientID || e.Status != StatusWaiting {
					continue
				}
				elapsed := int(m.now().Sub(e.ArrivalTime).Minutes())
				remaining := e.EstimatedWaitMinutes - elapsed
				if remaining < 0 {
					remaining = 0
				}
				info = &WaitInfo{
					ProviderID:       q.providerID,
					Position:         e.QueuePosition,
					ElapsedMinutes:   elapsed,
					RemainingMinutes: remaining,
				}
				return
			}
		})
		if info != nil {
			return *info, nil
		}
	}

	return WaitInfo{}, ErrPatientNotQueued
}

// SweepNoShows marks every entry waiting longer than the configured
// threshold as no-show and returns the expired entries.
func (m *Manager) SweepNoShows(now time.Time) []Entry {
	var expired []Entry

	for _, q := range m.store.All() {
		q.withLock(func() {
			kept := q.entries[:0]
			swept := false
			for _, e := range q.entries {
				if e.Status == StatusWaiting && now.Sub(e.ArrivalTime) > m.cfg.NoShowAfter {
					e.Status = StatusNoShow
					expired = append(expired, *e)
					swept = true
					continue
				}
				kept = append(kept, e)
			}
			q.entries = kept
			if swept {
				m.recompute(q)
			}
		})
	}

	return expired
}

// recompute refreshes the derived fields over the waiting sub-list: 1-based
// contiguous positions and a cumulative wait equal to the assumed service
// time of everyone ahead. Callers must hold the queue lock.
func (m *Manager) recompute(q *ProviderQueue) {
	position := 0
	cumulative := 0
	for _, e := range q.entries {
		if e.Status != StatusWaiting {
			e.QueuePosition = 0
			e.EstimatedWaitMinutes = 0
			continue
		}
		position++
		e.QueuePosition = position
		e.EstimatedWaitMinutes = cumulative
		cumulative += m.serviceMinutes(e.Priority)
	}
}

func (m *Manager) serviceMinutes(priority scheduling.Priority) int {
	switch priority {
	case scheduling.PriorityEmergency:
		return m.cfg.EmergencyServiceMinutes
	case scheduling.PriorityUrgent:
		return m.cfg.UrgentServiceMinutes
	default:
		return m.cfg.AverageAppointmentMinutes
	}
}
