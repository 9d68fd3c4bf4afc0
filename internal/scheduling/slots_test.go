package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careops/smart-scheduling/internal/logger"
)

func newTestGenerator(repo *fakeRepo) *Generator {
	return NewGenerator(repo, testConfig(), logger.Discard())
}

func testProvider() Provider {
	return Provider{
		ID:              uuid.New(),
		Name:            "Dr. Test",
		WorkingSessions: defaultSessions(),
	}
}

func TestGenerateSlotsWalksSessions(t *testing.T) {
	repo := newFakeRepo()
	gen := newTestGenerator(repo)
	provider := testProvider()

	slots, err := gen.GenerateSlots(context.Background(), []Provider{provider}, monday, 0, 30)
	require.NoError(t, err)

	// 30-minute slots stepped by 45 (duration + buffer): four per session.
	require.Len(t, slots, 8)

	assert.Equal(t, monday.Add(9*time.Hour), slots[0].Start)
	assert.Equal(t, monday.Add(9*time.Hour+30*time.Minute), slots[0].End)
	assert.Equal(t, monday.Add(9*time.Hour+45*time.Minute), slots[1].Start)
	assert.Equal(t, monday.Add(14*time.Hour), slots[4].Start)

	for _, slot := range slots {
		assert.Equal(t, provider.ID, slot.ProviderID)
		assert.Equal(t, SlotStandard, slot.SlotType)
		assert.Equal(t, 15, slot.BufferMinutes)
		assert.Equal(t, 30*time.Minute, slot.End.Sub(slot.Start))
	}
}

func TestGenerateSlotsSkipsBookedWindows(t *testing.T) {
	repo := newFakeRepo()
	gen := newTestGenerator(repo)
	provider := testProvider()

	repo.addBooking(provider.ID, monday.Add(9*time.Hour), monday.Add(9*time.Hour+30*time.Minute))

	slots, err := gen.GenerateSlots(context.Background(), []Provider{provider}, monday, 0, 30)
	require.NoError(t, err)
	require.Len(t, slots, 7)

	for _, slot := range slots {
		assert.False(t, slot.Start.Equal(monday.Add(9*time.Hour)),
			"booked window must not be offered")
	}
	assert.Equal(t, monday.Add(9*time.Hour+45*time.Minute), slots[0].Start,
		"the window after the booking stays available")
}

func TestGenerateSlotsWithoutBufferPacksBackToBack(t *testing.T) {
	repo := newFakeRepo()
	cfg := testConfig()
	cfg.BufferMinutes = 0
	gen := NewGenerator(repo, cfg, logger.Discard())
	provider := testProvider()

	repo.addBooking(provider.ID, monday.Add(9*time.Hour), monday.Add(9*time.Hour+30*time.Minute))

	slots, err := gen.GenerateSlots(context.Background(), []Provider{provider}, monday, 0, 30)
	require.NoError(t, err)
	require.NotEmpty(t, slots)

	// With no buffer, the window immediately after the booking is offered.
	assert.Equal(t, monday.Add(9*time.Hour+30*time.Minute), slots[0].Start)
	for _, slot := range slots {
		assert.False(t, slot.Start.Equal(monday.Add(9*time.Hour)))
	}
}

func TestGenerateSlotsNeverOverlapBookings(t *testing.T) {
	repo := newFakeRepo()
	gen := newTestGenerator(repo)
	provider := testProvider()

	// A partial overlap hanging over a slot boundary must still knock the
	// slot out.
	booked := []Interval{
		{Start: monday.Add(9*time.Hour + 40*time.Minute), End: monday.Add(10*time.Hour + 50*time.Minute)},
		{Start: monday.Add(14*time.Hour + 50*time.Minute), End: monday.Add(15*time.Hour + 10*time.Minute)},
	}
	for _, iv := range booked {
		repo.addBooking(provider.ID, iv.Start, iv.End)
	}

	slots, err := gen.GenerateSlots(context.Background(), []Provider{provider}, monday, 0, 30)
	require.NoError(t, err)
	require.NotEmpty(t, slots)

	for _, slot := range slots {
		candidate := Interval{Start: slot.Start, End: slot.End}
		for _, iv := range booked {
			assert.False(t, candidate.Overlaps(iv),
				"slot %s-%s overlaps booking %s-%s", slot.Start, slot.End, iv.Start, iv.End)
		}
	}
}

func TestGenerateSlotsSkipsNonBusinessDays(t *testing.T) {
	repo := newFakeRepo()
	gen := newTestGenerator(repo)
	provider := testProvider()

	saturday := monday.AddDate(0, 0, 5)

	slots, err := gen.GenerateSlots(context.Background(), []Provider{provider}, saturday, 1, 30)
	require.NoError(t, err)
	assert.Empty(t, slots, "weekend-only window yields no slots")

	// Extending the horizon over Monday brings slots back.
	slots, err = gen.GenerateSlots(context.Background(), []Provider{provider}, saturday, 2, 30)
	require.NoError(t, err)
	require.NotEmpty(t, slots)
	for _, slot := range slots {
		assert.Equal(t, time.Monday, slot.Start.Weekday())
	}
}

func TestGenerateSlotsProviderWithoutSessions(t *testing.T) {
	repo := newFakeRepo()
	gen := newTestGenerator(repo)
	provider := Provider{ID: uuid.New(), Name: "Dr. Research"}

	slots, err := gen.GenerateSlots(context.Background(), []Provider{provider}, monday, 5, 30)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestGenerateSlotsDurationLongerThanSession(t *testing.T) {
	repo := newFakeRepo()
	gen := newTestGenerator(repo)
	provider := testProvider()

	slots, err := gen.GenerateSlots(context.Background(), []Provider{provider}, monday, 0, 240)
	require.NoError(t, err)
	assert.Empty(t, slots, "no session can hold a four-hour appointment")
}

func TestGenerateSlotsRejectsNonPositiveDuration(t *testing.T) {
	repo := newFakeRepo()
	gen := newTestGenerator(repo)

	_, err := gen.GenerateSlots(context.Background(), []Provider{testProvider()}, monday, 0, 0)
	assert.ErrorIs(t, err, ErrInvalidDuration)

	_, err = gen.GenerateSlots(context.Background(), []Provider{testProvider()}, monday, 0, -30)
	assert.ErrorIs(t, err, ErrInvalidDuration)
}

func TestGenerateSlotsStayWithinSession(t *testing.T) {
	repo := newFakeRepo()
	gen := newTestGenerator(repo)
	provider := testProvider()

	// 50-minute slots in a 180-minute session: starts at 09:00, 10:05, 11:10
	// would end 12:00; 11:10+50 = 12:00 exactly, which is allowed.
	slots, err := gen.GenerateSlots(context.Background(), []Provider{provider}, monday, 0, 50)
	require.NoError(t, err)

	sessionEnds := []time.Time{monday.Add(12 * time.Hour), monday.Add(17 * time.Hour)}
	for _, slot := range slots {
		within := false
		for _, end := range sessionEnds {
			if !slot.End.After(end) {
				within = true
				break
			}
		}
		assert.True(t, within, "slot ending %s runs past every session", slot.End)
	}
}

func TestIntervalOverlapsHalfOpen(t *testing.T) {
	base := Interval{Start: monday.Add(9 * time.Hour), End: monday.Add(10 * time.Hour)}

	// Touching endpoints do not overlap.
	assert.False(t, base.Overlaps(Interval{Start: monday.Add(10 * time.Hour), End: monday.Add(11 * time.Hour)}))
	assert.False(t, base.Overlaps(Interval{Start: monday.Add(8 * time.Hour), End: monday.Add(9 * time.Hour)}))

	assert.True(t, base.Overlaps(Interval{Start: monday.Add(9*time.Hour + 59*time.Minute), End: monday.Add(11 * time.Hour)}))
	assert.True(t, base.Overlaps(Interval{Start: monday.Add(8 * time.Hour), End: monday.Add(9*time.Hour + 1*time.Minute)}))
	assert.True(t, base.Overlaps(Interval{Start: monday.Add(9*time.Hour + 15*time.Minute), End: monday.Add(9*time.Hour + 45*time.Minute)}))
}
