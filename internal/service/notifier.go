package service

import (
	"go.uber.org/zap"

	"github.com/SatvikPraveen/SmartCampus-sub000/internal/models"
)

// Notifier is the delivery collaborator informed about waitlist promotions.
// Delivery and templating live outside this module.
type Notifier interface {
	WaitlistPromoted(rec models.Enrollment)
}

// LogNotifier records promotions in the application log.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier constructs a notifier backed by the given logger.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// WaitlistPromoted implements Notifier.
func (n *LogNotifier) WaitlistPromoted(rec models.Enrollment) {
	n.logger.Info("notify student of waitlist promotion",
		zap.String("student_id", rec.StudentID),
		zap.String("course_id", rec.CourseID),
		zap.String("term_id", rec.TermID))
}

// NopNotifier discards notifications.
type NopNotifier struct{}

// WaitlistPromoted implements Notifier.
func (NopNotifier) WaitlistPromoted(models.Enrollment) {}
