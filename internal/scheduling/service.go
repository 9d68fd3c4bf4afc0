package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/careops/smart-scheduling/internal/config"
	"github.com/careops/smart-scheduling/internal/logger"
)

var (
	ErrNoSlotsAvailable    = errors.New("no slots available for the requested constraints")
	ErrProviderUnavailable = errors.New("no matching providers available")
)

// PreferenceSource supplies a patient's scheduling preferences.
type PreferenceSource interface {
	PreferencesFor(ctx context.Context, patientID uuid.UUID) (SchedulingPreference, error)
}

// DefaultPreferences is used until a preference store exists: weekday
// mornings and afternoons, thirty-minute wait tolerance.
type DefaultPreferences struct{}

func (DefaultPreferences) PreferencesFor(_ context.Context, patientID uuid.UUID) (SchedulingPreference, error) {
	return SchedulingPreference{
		PatientID:      patientID,
		PreferredTimes: []TimeOfDay{Morning, Afternoon},
		PreferredDays: []time.Weekday{
			time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
		},
		MaxWaitMinutes: 30,
	}, nil
}

// SlotRequest is one scheduling request. ProviderID and DepartmentID narrow
// the provider search when set; zero values mean any.
type SlotRequest struct {
	PatientID       uuid.UUID
	ProviderID      uuid.UUID
	DepartmentID    uuid.UUID
	DurationMinutes int // 0 means the configured default
	Priority        Priority
	PreferredDate   time.Time // zero means today
	HorizonDays     int       // 0 means the 30-day default
}

// SlotRecommendation is the result of FindOptimalSlot.
type SlotRecommendation struct {
	Slot                 TimeSlot
	Breakdown            ScoreBreakdown
	Confidence           float64
	EstimatedWaitMinutes int
	Alternatives         []RankedSlot
}

const defaultHorizonDays = 30

// Service runs the generate -> score pipeline and hands commits to the
// booker. Safe for concurrent use; it holds no mutable state of its own.
type Service struct {
	cfg       config.Config
	log       *logger.Logger
	repo      Repository
	prefs     PreferenceSource
	generator *Generator
	scorer    *Scorer
	booker    *Booker

	now func() time.Time
}

func NewService(repo Repository, locker SlotLocker, notifier Notifier, prefs PreferenceSource, cfg config.Config, log *logger.Logger) *Service {
	if prefs == nil {
		prefs = DefaultPreferences{}
	}
	return &Service{
		cfg:       cfg,
		log:       log,
		repo:      repo,
		prefs:     prefs,
		generator: NewGenerator(repo, cfg, log),
		scorer:    NewScorer(cfg),
		booker:    NewBooker(repo, locker, notifier, log),
		now:       time.Now,
	}
}

// FindOptimalSlot generates candidate slots for the matching providers,
// scores them against the patient's preferences, and returns the best slot
// with up to three alternatives. Calling it twice against an unchanged
// booking snapshot returns the same best slot.
func (s *Service) FindOptimalSlot(ctx context.Context, req SlotRequest) (*SlotRecommendation, error) {
	if !req.Priority.Valid() {
		return nil, ErrInvalidPriority
	}
	if req.DurationMinutes < 0 {
		return nil, ErrInvalidDuration
	}
	if req.DurationMinutes == 0 {
		req.DurationMinutes = s.cfg.DefaultDurationMinutes
	}
	if req.HorizonDays <= 0 {
		req.HorizonDays = defaultHorizonDays
	}

	pref, err := s.prefs.PreferencesFor(ctx, req.PatientID)
	if err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}

	providers, err := s.repo.ListProviders(ctx, ProviderFilter{
		ProviderID:   req.ProviderID,
		DepartmentID: req.DepartmentID,
	})
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	if len(providers) == 0 {
		return nil, ErrProviderUnavailable
	}

	windowStart := req.PreferredDate
	if windowStart.IsZero() {
		windowStart = s.now()
	}

	candidates, err := s.generator.GenerateSlots(ctx, providers, windowStart, req.HorizonDays, req.DurationMinutes)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, ErrNoSlotsAvailable
	}

	workload, err := s.workloadFactors(ctx, candidates)
	if err != nil {
		return nil, err
	}

	sel := s.scorer.SelectOptimalSlot(candidates, pref, req.Priority, s.now(), workload)
	if sel == nil {
		return nil, ErrNoSlotsAvailable
	}

	rec := &SlotRecommendation{
		Slot:                 sel.Best.Slot,
		Breakdown:            sel.Best.Breakdown,
		Confidence:           sel.Best.Confidence(),
		EstimatedWaitMinutes: s.minutesUntil(sel.Best.Slot.Start),
		Alternatives:         sel.Alternatives,
	}

	s.log.WithComponent("scheduler").WithFields(map[string]interface{}{
		"patient_id":  req.PatientID.String(),
		"provider_id": rec.Slot.ProviderID.String(),
		"slot_start":  rec.Slot.Start,
		"confidence":  rec.Confidence,
		"candidates":  len(candidates),
	}).Info("optimal slot selected")

	return rec, nil
}

// CreateAppointment commits the chosen slot. See Booker.Book for the
// conflict semantics.
func (s *Service) CreateAppointment(ctx context.Context, patientID uuid.UUID, slot TimeSlot, reason string, priority Priority, idempotencyKey uuid.UUID) (*AppointmentRef, error) {
	return s.booker.Book(ctx, patientID, slot, reason, priority, idempotencyKey)
}

// workloadFactors looks up the confirmed-appointment count once per distinct
// provider-day among the candidates.
func (s *Service) workloadFactors(ctx context.Context, candidates []TimeSlot) (map[WorkloadKey]float64, error) {
	factors := make(map[WorkloadKey]float64)
	for _, slot := range candidates {
		key := WorkloadKey{ProviderID: slot.ProviderID, Day: midnight(slot.Start)}
		if _, seen := factors[key]; seen {
			continue
		}

		count, err := s.repo.CountConfirmedAppointments(ctx, key.ProviderID, key.Day)
		if err != nil {
			return nil, fmt.Errorf("count confirmed appointments: %w", err)
		}

		factor := float64(count) / float64(s.cfg.MaxDailyAppointments)
		if factor > 1 {
			factor = 1
		}
		factors[key] = factor
	}
	return factors, nil
}

func (s *Service) minutesUntil(t time.Time) int {
	mins := int(t.Sub(s.now()).Minutes())
	if mins < 0 {
		return 0
	}
	return mins
}
