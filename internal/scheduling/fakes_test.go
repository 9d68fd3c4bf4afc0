package scheduling

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/careops/smart-scheduling/internal/config"
)

// testConfig mirrors the production defaults without touching the environment.
func testConfig() config.Config {
	return config.Config{
		DefaultDurationMinutes: 30,
		BufferMinutes:          15,
		BusinessDays: []time.Weekday{
			time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
		},
		WorkingSessions: []config.Session{
			{StartMinute: 9 * 60, EndMinute: 12 * 60},
			{StartMinute: 14 * 60, EndMinute: 17 * 60},
		},
		MaxDailyAppointments:      20,
		MorningStartHour:          8,
		AfternoonStartHour:        12,
		EveningStartHour:          17,
		EveningEndHour:            20,
		AverageAppointmentMinutes: 30,
		EmergencyServiceMinutes:   45,
		UrgentServiceMinutes:      35,
	}
}

func defaultSessions() []config.Session {
	return testConfig().WorkingSessions
}

// monday is a fixed reference date so weekday-dependent behavior is stable.
var monday = time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)

// fakeRepo is a stateful in-memory Repository. Committed bookings become
// visible to subsequent BookedIntervals calls, which is what the commit-time
// re-check depends on.
type fakeRepo struct {
	mu           sync.Mutex
	providers    []Provider
	patients     map[uuid.UUID]Patient
	appointments []AppointmentRef
	events       []EventLog
	commits      int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{patients: make(map[uuid.UUID]Patient)}
}

func (r *fakeRepo) addProvider(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = append(r.providers, p)
}

func (r *fakeRepo) addPatient(p Patient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patients[p.ID] = p
}

func (r *fakeRepo) addBooking(providerID uuid.UUID, start, end time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appointments = append(r.appointments, AppointmentRef{
		ID:         uuid.New(),
		ProviderID: providerID,
		Start:      start,
		End:        end,
	})
}

func (r *fakeRepo) ListProviders(_ context.Context, filter ProviderFilter) ([]Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Provider
	for _, p := range r.providers {
		if filter.ProviderID != uuid.Nil && p.ID != filter.ProviderID {
			continue
		}
		if filter.DepartmentID != uuid.Nil && p.DepartmentID != filter.DepartmentID {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *fakeRepo) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (r *fakeRepo) BookedIntervals(_ context.Context, providerID uuid.UUID, day time.Time) ([]Interval, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dayEnd := day.AddDate(0, 0, 1)
	var out []Interval
	for _, a := range r.appointments {
		if a.ProviderID != providerID {
			continue
		}
		if a.Start.Before(day) || !a.Start.Before(dayEnd) {
			continue
		}
		out = append(out, Interval{Start: a.Start, End: a.End})
	}
	return out, nil
}

func (r *fakeRepo) CountConfirmedAppointments(_ context.Context, providerID uuid.UUID, day time.Time) (int, error) {
	intervals, err := r.BookedIntervals(context.Background(), providerID, day)
	if err != nil {
		return 0, err
	}
	return len(intervals), nil
}

func (r *fakeRepo) CommitBooking(_ context.Context, req BookingRequest) (*AppointmentRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ref := AppointmentRef{
		ID:         uuid.New(),
		PatientID:  req.PatientID,
		ProviderID: req.Slot.ProviderID,
		Start:      req.Slot.Start,
		End:        req.Slot.End,
		Priority:   req.Priority,
		CreatedAt:  time.Now(),
	}
	r.appointments = append(r.appointments, ref)
	r.commits++
	return &ref, nil
}

func (r *fakeRepo) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *fakeRepo) eventsOfType(eventType string) []EventLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []EventLog
	for _, ev := range r.events {
		if ev.EventType == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func (r *fakeRepo) commitCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.commits
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []AppointmentRef
}

func (n *fakeNotifier) SendConfirmation(_ context.Context, ref AppointmentRef) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, ref)
	return nil
}

func (n *fakeNotifier) sentCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}
