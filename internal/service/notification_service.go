package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/oets-school/oets-api/pkg/config"
	"github.com/oets-school/oets-api/pkg/jobs"
)

// EnrollmentConfirmation is the payload for a confirmation notification.
type EnrollmentConfirmation struct {
	EnrollmentID string
	StudentName  string
	StudentEmail string
	CourseTitle  string
}

// Notifier delivers a rendered notification to the student.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogNotifier writes notifications to the application log. It is the
// default delivery backend; real mail transport plugs in behind Notifier.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier constructs a log-based notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Send logs the rendered notification.
func (n *LogNotifier) Send(ctx context.Context, to, subject, body string) error {
	n.logger.Sugar().Infow("notification sent", "to", to, "subject", subject, "body", body)
	return nil
}

// NotificationService delivers enrollment confirmations through a
// background queue. Delivery failures are retried by the queue and finally
// logged; they never affect the enrollment itself.
type NotificationService struct {
	queue    *jobs.Queue
	notifier Notifier
	cfg      config.NotificationsConfig
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewNotificationService constructs the service and its worker queue.
func NewNotificationService(notifier Notifier, cfg config.NotificationsConfig, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{notifier: notifier, cfg: cfg, metrics: metrics, logger: logger}
	s.queue = jobs.NewQueue("notifications", s.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start begins queue consumption.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the queue workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// EnqueueEnrollmentConfirmation schedules exactly one confirmation job for
// the created enrollment. The returned error is advisory; callers must not
// fail the enrollment on it.
func (s *NotificationService) EnqueueEnrollmentConfirmation(payload EnrollmentConfirmation) error {
	if !s.cfg.Enabled {
		return nil
	}
	err := s.queue.Enqueue(jobs.Job{
		ID:      payload.EnrollmentID,
		Type:    "enrollment_confirmation",
		Payload: payload,
	})
	if err != nil {
		s.logger.Warn("failed to enqueue enrollment confirmation",
			zap.String("enrollment_id", payload.EnrollmentID), zap.Error(err))
	}
	return err
}

func (s *NotificationService) handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(EnrollmentConfirmation)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}

	subject := fmt.Sprintf("Enrollment received: %s", payload.CourseTitle)
	body := fmt.Sprintf("Dear %s,\n\nYour enrollment request for %q has been received and is awaiting review. We will notify you once a decision has been made.\n\n%s <%s>",
		payload.StudentName, payload.CourseTitle, s.cfg.FromName, s.cfg.FromAddress)

	if err := s.notifier.Send(ctx, payload.StudentEmail, subject, body); err != nil {
		s.metrics.RecordJob("notifications", "failed")
		return err
	}
	s.metrics.RecordJob("notifications", "sent")
	return nil
}
