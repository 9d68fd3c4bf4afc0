package scheduling

import (
	"context"

	"github.com/careops/smart-scheduling/internal/logger"
)

// LogNotifier records confirmations in the log. It stands in until the
// notification service (email/SMS) is wired up.
type LogNotifier struct {
	log *logger.Logger
}

func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) SendConfirmation(_ context.Context, ref AppointmentRef) error {
	n.log.WithComponent("notifier").WithFields(map[string]interface{}{
		"appointment_id": ref.ID.String(),
		"patient_id":     ref.PatientID.String(),
		"start":          ref.Start,
	}).Info("appointment confirmation sent")
	return nil
}
