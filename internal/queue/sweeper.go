package queue

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/careops/smart-scheduling/internal/logger"
)

// Sweeper periodically expires entries that waited past the no-show
// threshold. It runs on an in-process cron inside the api-server, since the
// queues it sweeps live in that process.
type Sweeper struct {
	manager  *Manager
	interval time.Duration
	log      *logger.Logger
	cron     *cron.Cron
}

func NewSweeper(manager *Manager, interval time.Duration, log *logger.Logger) *Sweeper {
	return &Sweeper{
		manager:  manager,
		interval: interval,
		log:      log,
	}
}

// Start schedules the sweep and returns an error only if the cron spec
// cannot be built, which means the interval was invalid.
func (s *Sweeper) Start() error {
	s.cron = cron.New()

	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, s.runOnce); err != nil {
		return fmt.Errorf("schedule no-show sweep: %w", err)
	}

	s.cron.Start()
	s.log.WithComponent("sweeper").Infof("no-show sweeper running every %s", s.interval)
	return nil
}

// Stop halts the cron and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

func (s *Sweeper) runOnce() {
	expired := s.manager.SweepNoShows(time.Now())
	for _, e := range expired {
		s.log.WithComponent("sweeper").WithFields(map[string]interface{}{
			"provider_id": e.ProviderID.String(),
			"patient_id":  e.PatientID.String(),
			"entry_id":    e.ID.String(),
			"arrived_at":  e.ArrivalTime,
		}).Warn("queue entry marked no-show")
	}
}
