package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultAuditCleanupSchedule runs the retention job daily at 03:00.
const DefaultAuditCleanupSchedule = "0 3 * * *"

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateSchedule checks a 5-field cron expression.
func ValidateSchedule(schedule string) error {
	if _, err := cronParser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}
	return nil
}

// CleanupEnqueuer hands an audit retention job to the task queue.
type CleanupEnqueuer interface {
	EnqueueAuditCleanup(retentionDays int) (string, error)
}

// MaintenanceAuditor records scheduler activity in the audit log.
type MaintenanceAuditor interface {
	LogMaintenance(action, description string, err error)
}

// AuditCleanupScheduler periodically enqueues audit retention jobs.
type AuditCleanupScheduler struct {
	enqueuer      CleanupEnqueuer
	auditor       MaintenanceAuditor
	schedule      string
	retentionDays int
	logger        *zap.Logger

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	cancelFunc context.CancelFunc
}

// NewAuditCleanupScheduler creates a scheduler; an empty schedule selects
// DefaultAuditCleanupSchedule. auditor may be nil.
func NewAuditCleanupScheduler(enqueuer CleanupEnqueuer, auditor MaintenanceAuditor, schedule string, retentionDays int, logger *zap.Logger) *AuditCleanupScheduler {
	if schedule == "" {
		schedule = DefaultAuditCleanupSchedule
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditCleanupScheduler{
		enqueuer:      enqueuer,
		auditor:       auditor,
		schedule:      schedule,
		retentionDays: retentionDays,
		logger:        logger.Named("scheduler"),
		cron:          cron.New(cron.WithParser(cronParser)),
	}
}

// Start registers the job and starts the cron loop. The scheduler stops when
// ctx is cancelled.
func (s *AuditCleanupScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	if err := ValidateSchedule(s.schedule); err != nil {
		return err
	}

	entryID, err := s.cron.AddFunc(s.schedule, func() {
		_, _ = s.RunNow()
	})
	if err != nil {
		return fmt.Errorf("failed to schedule audit cleanup: %w", err)
	}
	s.entryID = entryID

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true

	s.logger.Info("audit cleanup scheduler started",
		zap.String("schedule", s.schedule),
		zap.Int("retention_days", s.retentionDays),
	)

	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop waits for a running job and stops the scheduler.
func (s *AuditCleanupScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()

	s.cron.Remove(s.entryID)
	if s.cancelFunc != nil {
		s.cancelFunc()
		s.cancelFunc = nil
	}
	s.isRunning = false

	s.logger.Info("audit cleanup scheduler stopped")
}

// RunNow enqueues a retention job immediately and returns its task id.
func (s *AuditCleanupScheduler) RunNow() (string, error) {
	id, err := s.enqueuer.EnqueueAuditCleanup(s.retentionDays)
	if err != nil {
		s.logger.Error("failed to enqueue audit cleanup", zap.Error(err))
		s.logAudit("Enqueue audit cleanup", err)
		return "", err
	}

	s.logger.Info("audit cleanup enqueued", zap.String("task_id", id))
	s.logAudit("Enqueued audit cleanup task "+id, nil)
	return id, nil
}

func (s *AuditCleanupScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRun returns when the job fires next, or nil when stopped.
func (s *AuditCleanupScheduler) NextRun() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}

	for _, entry := range s.cron.Entries() {
		if entry.ID == s.entryID {
			t := entry.Next
			return &t
		}
	}
	return nil
}

func (s *AuditCleanupScheduler) logAudit(description string, err error) {
	if s.auditor == nil {
		return
	}
	s.auditor.LogMaintenance("audit_cleanup", description, err)
}
