package scheduling

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/careops/smart-scheduling/internal/config"
)

// Scoring weights. They sum to at most 100; the avoided-day penalty is
// subtracted and can push a candidate below zero.
const (
	weightProviderMatch = 30.0
	weightTimeOfDay     = 25.0
	weightPreferredDay  = 20.0
	penaltyAvoidedDay   = 15.0
	weightPriorityMax   = 15.0
	weightWorkload      = 10.0
)

// ScoreBreakdown holds each additive component of a candidate's score so
// the weights can be asserted independently.
type ScoreBreakdown struct {
	ProviderMatch   float64
	TimeOfDay       float64
	Weekday         float64
	PriorityHorizon float64
	Workload        float64
}

func (b ScoreBreakdown) Total() float64 {
	return b.ProviderMatch + b.TimeOfDay + b.Weekday + b.PriorityHorizon + b.Workload
}

// RankedSlot pairs a candidate with its breakdown.
type RankedSlot struct {
	Slot      TimeSlot
	Breakdown ScoreBreakdown
}

func (r RankedSlot) Score() float64 {
	return r.Breakdown.Total()
}

// Confidence normalizes the score into [0, 1].
func (r RankedSlot) Confidence() float64 {
	c := r.Score() / 100
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// Selection is the scorer's result: the winner plus up to three runners-up.
type Selection struct {
	Best         RankedSlot
	Alternatives []RankedSlot
}

// WorkloadKey addresses one provider-day in the workload lookup table. Day
// must be normalized to midnight.
type WorkloadKey struct {
	ProviderID uuid.UUID
	Day        time.Time
}

// Scorer ranks candidate slots against patient preferences, priority tier,
// and provider workload. It is pure: all external state (today's date,
// workload factors) is passed in.
type Scorer struct {
	cfg config.Config
}

func NewScorer(cfg config.Config) *Scorer {
	return &Scorer{cfg: cfg}
}

// SelectOptimalSlot returns the highest-scoring candidate and up to three
// alternatives, or nil when there are no candidates. Ties break toward the
// earliest start time, then lowest provider ID, so results are deterministic.
func (s *Scorer) SelectOptimalSlot(candidates []TimeSlot, pref SchedulingPreference, priority Priority, today time.Time, workload map[WorkloadKey]float64) *Selection {
	if len(candidates) == 0 {
		return nil
	}

	ranked := make([]RankedSlot, 0, len(candidates))
	for _, slot := range candidates {
		ranked = append(ranked, RankedSlot{
			Slot:      slot,
			Breakdown: s.ScoreSlot(slot, pref, priority, today, workload),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := ranked[i].Score(), ranked[j].Score()
		if si != sj {
			return si > sj
		}
		if !ranked[i].Slot.Start.Equal(ranked[j].Slot.Start) {
			return ranked[i].Slot.Start.Before(ranked[j].Slot.Start)
		}
		return ranked[i].Slot.ProviderID.String() < ranked[j].Slot.ProviderID.String()
	})

	sel := &Selection{Best: ranked[0]}

	limit := 3
	if len(ranked)-1 < limit {
		limit = len(ranked) - 1
	}
	if limit > 0 {
		sel.Alternatives = append(sel.Alternatives, ranked[1:1+limit]...)
	}

	return sel
}

// ScoreSlot computes the additive score components for one candidate.
func (s *Scorer) ScoreSlot(slot TimeSlot, pref SchedulingPreference, priority Priority, today time.Time, workload map[WorkloadKey]float64) ScoreBreakdown {
	var b ScoreBreakdown

	if pref.prefersProvider(slot.ProviderID) {
		b.ProviderMatch = weightProviderMatch
	}

	if s.matchesTimeOfDay(slot.Start.Hour(), pref.PreferredTimes) {
		b.TimeOfDay = weightTimeOfDay
	}

	// Preferred and avoided day scores apply independently.
	day := slot.Start.Weekday()
	if pref.prefersDay(day) {
		b.Weekday += weightPreferredDay
	}
	if pref.avoidsDay(day) {
		b.Weekday -= penaltyAvoidedDay
	}

	daysOut := daysBetween(today, slot.Start)
	switch priority {
	case PriorityEmergency:
		// Reward slots closer to now.
		h := weightPriorityMax - 2*float64(daysOut)
		if h > 0 {
			b.PriorityHorizon = h
		}
	case PriorityFollowUp:
		// Follow-ups belong at least a week out.
		if daysOut >= 7 {
			b.PriorityHorizon = 10
		}
	}

	factor := workload[WorkloadKey{ProviderID: slot.ProviderID, Day: midnight(slot.Start)}]
	if factor < 0 {
		factor = 0
	}
	if factor > 1 {
		factor = 1
	}
	b.Workload = (1 - factor) * weightWorkload

	return b
}

func (s *Scorer) matchesTimeOfDay(hour int, preferred []TimeOfDay) bool {
	for _, tod := range preferred {
		switch tod {
		case Morning:
			if hour >= s.cfg.MorningStartHour && hour < s.cfg.AfternoonStartHour {
				return true
			}
		case Afternoon:
			if hour >= s.cfg.AfternoonStartHour && hour < s.cfg.EveningStartHour {
				return true
			}
		case Evening:
			if hour >= s.cfg.EveningStartHour && hour < s.cfg.EveningEndHour {
				return true
			}
		}
	}
	return false
}

// daysBetween counts whole calendar days from a to b, ignoring clock time.
func daysBetween(a, b time.Time) int {
	return int(midnight(b).Sub(midnight(a)).Hours() / 24)
}
