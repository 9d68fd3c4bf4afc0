package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/careops/smart-scheduling/internal/config"
	"github.com/careops/smart-scheduling/internal/logger"
)

// Generator produces candidate open slots for providers across a date
// window, skipping anything that collides with already-booked intervals.
// Results are computed fresh per call; they depend on live booking state.
type Generator struct {
	cfg  config.Config
	repo Repository
	log  *logger.Logger
}

func NewGenerator(repo Repository, cfg config.Config, log *logger.Logger) *Generator {
	return &Generator{
		cfg:  cfg,
		repo: repo,
		log:  log,
	}
}

// GenerateSlots walks every business day in [windowStart, windowStart+horizonDays]
// and partitions each provider's working sessions into open slots of
// durationMinutes, stepped by durationMinutes plus the configured buffer.
func (g *Generator) GenerateSlots(ctx context.Context, providers []Provider, windowStart time.Time, horizonDays int, durationMinutes int) ([]TimeSlot, error) {
	if durationMinutes <= 0 {
		return nil, ErrInvalidDuration
	}
	if horizonDays < 0 {
		horizonDays = 0
	}

	startDay := midnight(windowStart)

	var slots []TimeSlot
	for d := 0; d <= horizonDays; d++ {
		day := startDay.AddDate(0, 0, d)
		if !g.cfg.IsBusinessDay(day.Weekday()) {
			continue
		}

		for _, provider := range providers {
			sessions := provider.WorkingSessions
			if len(sessions) == 0 {
				// Provider takes no bookings; not an error.
				continue
			}

			booked, err := g.repo.BookedIntervals(ctx, provider.ID, day)
			if err != nil {
				return nil, fmt.Errorf("booked intervals for provider %s on %s: %w",
					provider.ID, day.Format("2006-01-02"), err)
			}

			slots = append(slots, g.providerDaySlots(provider, day, sessions, booked, durationMinutes)...)
		}
	}

	g.log.WithComponent("slot-generator").WithField("count", len(slots)).
		Debugf("generated slots for %d providers over %d days", len(providers), horizonDays+1)

	return slots, nil
}

func (g *Generator) providerDaySlots(provider Provider, day time.Time, sessions []config.Session, booked []Interval, durationMinutes int) []TimeSlot {
	duration := time.Duration(durationMinutes) * time.Minute
	step := time.Duration(durationMinutes+g.cfg.BufferMinutes) * time.Minute

	var slots []TimeSlot
	for _, session := range sessions {
		cur := day.Add(time.Duration(session.StartMinute) * time.Minute)
		sessionEnd := day.Add(time.Duration(session.EndMinute) * time.Minute)

		// Never produce a slot that would run past the session's end.
		for !cur.Add(duration).After(sessionEnd) {
			candidate := Interval{Start: cur, End: cur.Add(duration)}

			if !overlapsAny(candidate, booked) {
				slots = append(slots, TimeSlot{
					Start:         candidate.Start,
					End:           candidate.End,
					ProviderID:    provider.ID,
					DepartmentID:  provider.DepartmentID,
					SlotType:      SlotStandard,
					BufferMinutes: g.cfg.BufferMinutes,
				})
			}

			cur = cur.Add(step)
		}
	}

	return slots
}

func overlapsAny(candidate Interval, booked []Interval) bool {
	for _, iv := range booked {
		if candidate.Overlaps(iv) {
			return true
		}
	}
	return false
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
