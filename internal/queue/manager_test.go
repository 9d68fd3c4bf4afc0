package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careops/smart-scheduling/internal/config"
	"github.com/careops/smart-scheduling/internal/logger"
	"github.com/careops/smart-scheduling/internal/scheduling"
)

func testConfig() config.Config {
	return config.Config{
		AverageAppointmentMinutes: 30,
		EmergencyServiceMinutes:   45,
		UrgentServiceMinutes:      35,
		NoShowAfter:               2 * time.Hour,
	}
}

func newTestManager() *Manager {
	return NewManager(NewMemoryStore(), testConfig(), logger.Discard())
}

func checkIn(t *testing.T, m *Manager, providerID uuid.UUID, priority scheduling.Priority) Entry {
	t.Helper()
	entry, err := m.Enqueue(uuid.New(), uuid.New(), providerID, priority)
	require.NoError(t, err)
	return entry
}

func waitingOrder(t *testing.T, m *Manager, providerID uuid.UUID) []Entry {
	t.Helper()
	summary, err := m.Status(providerID)
	require.NoError(t, err)
	return summary.Entries
}

func TestEnqueueRejectsInvalidPriority(t *testing.T) {
	m := newTestManager()
	_, err := m.Enqueue(uuid.New(), uuid.New(), uuid.New(), scheduling.Priority(0))
	assert.ErrorIs(t, err, scheduling.ErrInvalidPriority)
}

func TestEnqueueRoutineIsFIFO(t *testing.T) {
	m := newTestManager()
	providerID := uuid.New()

	first := checkIn(t, m, providerID, scheduling.PriorityRoutine)
	second := checkIn(t, m, providerID, scheduling.PriorityRoutine)
	third := checkIn(t, m, providerID, scheduling.PriorityFollowUp)

	entries := waitingOrder(t, m, providerID)
	require.Len(t, entries, 3)
	assert.Equal(t, first.ID, entries[0].ID)
	assert.Equal(t, second.ID, entries[1].ID)
	assert.Equal(t, third.ID, entries[2].ID)
}

func TestEnqueueEmergencyJumpsToFront(t *testing.T) {
	m := newTestManager()
	providerID := uuid.New()

	r1 := checkIn(t, m, providerID, scheduling.PriorityRoutine)
	r2 := checkIn(t, m, providerID, scheduling.PriorityRoutine)
	emergency := checkIn(t, m, providerID, scheduling.PriorityEmergency)

	assert.Equal(t, 1, emergency.QueuePosition)
	assert.Equal(t, 0, emergency.EstimatedWaitMinutes)

	entries := waitingOrder(t, m, providerID)
	require.Len(t, entries, 3)
	assert.Equal(t, emergency.ID, entries[0].ID)
	assert.Equal(t, r1.ID, entries[1].ID)
	assert.Equal(t, r2.ID, entries[2].ID)

	assert.Equal(t, []int{1, 2, 3}, positions(entries))
	assert.Equal(t, 45, entries[1].EstimatedWaitMinutes, "one emergency ahead")
	assert.Equal(t, 75, entries[2].EstimatedWaitMinutes, "emergency plus one routine ahead")
}

func TestEnqueueNewestEmergencyFirst(t *testing.T) {
	m := newTestManager()
	providerID := uuid.New()

	e1 := checkIn(t, m, providerID, scheduling.PriorityEmergency)
	e2 := checkIn(t, m, providerID, scheduling.PriorityEmergency)

	entries := waitingOrder(t, m, providerID)
	require.Len(t, entries, 2)
	assert.Equal(t, e2.ID, entries[0].ID, "the most recent emergency is served first")
	assert.Equal(t, e1.ID, entries[1].ID)
}

func TestEnqueueUrgentAfterEmergencies(t *testing.T) {
	m := newTestManager()
	providerID := uuid.New()

	checkIn(t, m, providerID, scheduling.PriorityEmergency)
	checkIn(t, m, providerID, scheduling.PriorityEmergency)
	routine := checkIn(t, m, providerID, scheduling.PriorityRoutine)
	urgent := checkIn(t, m, providerID, scheduling.PriorityUrgent)

	entries := waitingOrder(t, m, providerID)
	require.Len(t, entries, 4)
	assert.Equal(t, urgent.ID, entries[2].ID, "urgent slots in behind the emergency run")
	assert.Equal(t, routine.ID, entries[3].ID)

	// A later urgent lands at the same boundary, ahead of the earlier one.
	urgent2 := checkIn(t, m, providerID, scheduling.PriorityUrgent)
	entries = waitingOrder(t, m, providerID)
	require.Len(t, entries, 5)
	assert.Equal(t, urgent2.ID, entries[2].ID)
	assert.Equal(t, urgent.ID, entries[3].ID)
}

func TestEnqueueUrgentIntoEmptyQueue(t *testing.T) {
	m := newTestManager()
	providerID := uuid.New()

	urgent := checkIn(t, m, providerID, scheduling.PriorityUrgent)
	assert.Equal(t, 1, urgent.QueuePosition)
	assert.Equal(t, 0, urgent.EstimatedWaitMinutes)
}

func TestWaitEstimatesAreCumulative(t *testing.T) {
	m := newTestManager()
	providerID := uuid.New()

	checkIn(t, m, providerID, scheduling.PriorityUrgent)  // 35 min service
	checkIn(t, m, providerID, scheduling.PriorityRoutine) // 30 min service
	checkIn(t, m, providerID, scheduling.PriorityRoutine)

	entries := waitingOrder(t, m, providerID)
	require.Len(t, entries, 3)
	assert.Equal(t, 0, entries[0].EstimatedWaitMinutes)
	assert.Equal(t, 35, entries[1].EstimatedWaitMinutes)
	assert.Equal(t, 65, entries[2].EstimatedWaitMinutes)

	for i := 1; i < len(entries); i++ {
		assert.GreaterOrEqual(t, entries[i].EstimatedWaitMinutes, entries[i-1].EstimatedWaitMinutes)
	}
}

func TestCallNextTransitionsEntry(t *testing.T) {
	m := newTestManager()
	providerID := uuid.New()

	first := checkIn(t, m, providerID, scheduling.PriorityRoutine)
	second := checkIn(t, m, providerID, scheduling.PriorityRoutine)

	called, err := m.CallNext(providerID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, called.ID)
	assert.Equal(t, StatusInProgress, called.Status)
	require.NotNil(t, called.CalledTime)

	// The remaining waiting entry moves up to position 1.
	entries := waitingOrder(t, m, providerID)
	require.Len(t, entries, 1)
	assert.Equal(t, second.ID, entries[0].ID)
	assert.Equal(t, 1, entries[0].QueuePosition)
	assert.Equal(t, 0, entries[0].EstimatedWaitMinutes)
}

func TestCallNextSkipsInProgress(t *testing.T) {
	m := newTestManager()
	providerID := uuid.New()

	checkIn(t, m, providerID, scheduling.PriorityRoutine)
	second := checkIn(t, m, providerID, scheduling.PriorityRoutine)

	_, err := m.CallNext(providerID)
	require.NoError(t, err)

	called, err := m.CallNext(providerID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, called.ID)

	_, err = m.CallNext(providerID)
	assert.ErrorIs(t, err, ErrQueueEmpty)
}

func TestCallNextUnknownProvider(t *testing.T) {
	m := newTestManager()
	_, err := m.CallNext(uuid.New())
	assert.ErrorIs(t, err, ErrQueueNotFound)
}

func TestCompleteRemovesEntry(t *testing.T) {
	m := newTestManager()
	providerID := uuid.New()

	checkIn(t, m, providerID, scheduling.PriorityRoutine)
	second := checkIn(t, m, providerID, scheduling.PriorityRoutine)

	called, err := m.CallNext(providerID)
	require.NoError(t, err)

	require.NoError(t, m.Complete(providerID, called.ID))

	entries := waitingOrder(t, m, providerID)
	require.Len(t, entries, 1)
	assert.Equal(t, second.ID, entries[0].ID)
	assert.Equal(t, 1, entries[0].QueuePosition)
}

func TestCompleteUnknownEntryLeavesQueueIntact(t *testing.T) {
	m := newTestManager()
	providerID := uuid.New()

	checkIn(t, m, providerID, scheduling.PriorityRoutine)
	checkIn(t, m, providerID, scheduling.PriorityRoutine)
	before := waitingOrder(t, m, providerID)

	err := m.Complete(providerID, uuid.New())
	assert.ErrorIs(t, err, ErrEntryNotFound)

	after := waitingOrder(t, m, providerID)
	assert.Equal(t, before, after, "a failed removal must not disturb positions")

	err = m.Complete(uuid.New(), uuid.New())
	assert.ErrorIs(t, err, ErrQueueNotFound)
}

func TestMarkNoShow(t *testing.T) {
	m := newTestManager()
	providerID := uuid.New()

	first := checkIn(t, m, providerID, scheduling.PriorityRoutine)
	second := checkIn(t, m, providerID, scheduling.PriorityRoutine)

	require.NoError(t, m.MarkNoShow(providerID, second.ID))

	entries := waitingOrder(t, m, providerID)
	require.Len(t, entries, 1)
	assert.Equal(t, first.ID, entries[0].ID)

	assert.ErrorIs(t, m.MarkNoShow(providerID, second.ID), ErrEntryNotFound)
}

func TestMarkNoShowRejectsInProgress(t *testing.T) {
	m := newTestManager()
	providerID := uuid.New()

	checkIn(t, m, providerID, scheduling.PriorityRoutine)
	called, err := m.CallNext(providerID)
	require.NoError(t, err)

	assert.ErrorIs(t, m.MarkNoShow(providerID, called.ID), ErrInvalidTransition)
}

func TestStatusSummarizesWaitingOnly(t *testing.T) {
	m := newTestManager()
	providerID := uuid.New()

	checkIn(t, m, providerID, scheduling.PriorityRoutine)
	checkIn(t, m, providerID, scheduling.PriorityRoutine)
	checkIn(t, m, providerID, scheduling.PriorityRoutine)

	_, err := m.CallNext(providerID)
	require.NoError(t, err)

	summary, err := m.Status(providerID)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Length)
	require.Len(t, summary.Entries, 2)
	// Waits are 0 and 30; the average rounds to 15.
	assert.Equal(t, 15, summary.AverageWaitMinutes)

	_, err = m.Status(uuid.New())
	assert.ErrorIs(t, err, ErrQueueNotFound)
}

func TestPatientWait(t *testing.T) {
	m := newTestManager()
	base := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }

	providerID := uuid.New()
	patientID := uuid.New()

	_, err := m.Enqueue(uuid.New(), uuid.New(), providerID, scheduling.PriorityRoutine)
	require.NoError(t, err)
	_, err = m.Enqueue(patientID, uuid.New(), providerID, scheduling.PriorityRoutine)
	require.NoError(t, err)

	// Ten minutes pass; the patient has one 30-minute service ahead.
	m.now = func() time.Time { return base.Add(10 * time.Minute) }

	info, err := m.PatientWait(patientID)
	require.NoError(t, err)
	assert.Equal(t, providerID, info.ProviderID)
	assert.Equal(t, 2, info.Position)
	assert.Equal(t, 10, info.ElapsedMinutes)
	assert.Equal(t, 20, info.RemainingMinutes)

	// Past the estimate, remaining never goes negative.
	m.now = func() time.Time { return base.Add(3 * time.Hour) }
	info, err = m.PatientWait(patientID)
	require.NoError(t, err)
	assert.Equal(t, 0, info.RemainingMinutes)

	_, err = m.PatientWait(uuid.New())
	assert.ErrorIs(t, err, ErrPatientNotQueued)
}

func TestSweepNoShows(t *testing.T) {
	m := newTestManager()
	base := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }

	providerID := uuid.New()
	stale := checkIn(t, m, providerID, scheduling.PriorityRoutine)

	m.now = func() time.Time { return base.Add(90 * time.Minute) }
	fresh := checkIn(t, m, providerID, scheduling.PriorityRoutine)

	inProgress := checkIn(t, m, uuid.New(), scheduling.PriorityRoutine)
	_, err := m.CallNext(inProgress.ProviderID)
	require.NoError(t, err)

	expired := m.SweepNoShows(base.Add(150 * time.Minute))
	require.Len(t, expired, 1)
	assert.Equal(t, stale.ID, expired[0].ID)
	assert.Equal(t, StatusNoShow, expired[0].Status)

	entries := waitingOrder(t, m, providerID)
	require.Len(t, entries, 1)
	assert.Equal(t, fresh.ID, entries[0].ID)
	assert.Equal(t, 1, entries[0].QueuePosition)
}

func TestConcurrentEnqueueKeepsPositionsContiguous(t *testing.T) {
	m := newTestManager()
	providerID := uuid.New()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		priority := scheduling.PriorityRoutine
		if i%5 == 0 {
			priority = scheduling.PriorityEmergency
		}
		go func(p scheduling.Priority) {
			defer wg.Done()
			_, err := m.Enqueue(uuid.New(), uuid.New(), providerID, p)
			assert.NoError(t, err)
		}(priority)
	}
	wg.Wait()

	entries := waitingOrder(t, m, providerID)
	require.Len(t, entries, n)

	want := make([]int, n)
	for i := range want {
		want[i] = i + 1
	}
	assert.Equal(t, want, positions(entries))

	for i := 1; i < len(entries); i++ {
		assert.GreaterOrEqual(t, entries[i].EstimatedWaitMinutes, entries[i-1].EstimatedWaitMinutes)
	}
}

func positions(entries []Entry) []int {
	out := make([]int, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.QueuePosition)
	}
	return out
}
