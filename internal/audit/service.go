package audit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mrlokans/herbalgarden/internal/database/audit"
	"github.com/mrlokans/herbalgarden/internal/entities"
)

// writeTimeout bounds a background audit write, which outlives its request.
const writeTimeout = 5 * time.Second

// Service provides high-level audit logging functionality.
type Service struct {
	repo   *audit.Repository
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewService creates a new audit service.
func NewService(repo *audit.Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, logger: logger.Named("audit")}
}

// RequestInfo identifies who performed an action and from where.
type RequestInfo struct {
	UserID    string
	IPAddress string
	UserAgent string
}

// Log records a generic audit event.
func (s *Service) Log(ctx context.Context, event *entities.AuditEvent) error {
	return s.repo.LogEvent(ctx, event)
}

// LogAsync records an audit event in the background (non-blocking).
func (s *Service) LogAsync(event *entities.AuditEvent) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := s.repo.LogEvent(ctx, event); err != nil {
			s.logger.Warn("failed to log audit event",
				zap.String("action", event.Action),
				zap.Error(err),
			)
		}
	}()
}

// Wait blocks until pending background writes have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// LogAuth records a login, logout or registration attempt.
func (s *Service) LogAuth(info RequestInfo, action string, success bool) {
	s.LogAsync(newEvent(info, entities.AuditEventAuth, action, "", "", "", success))
}

// LogAccount records a self-service change to the caller's own account.
func (s *Service) LogAccount(info RequestInfo, action, description string) {
	s.LogAsync(newEvent(info, entities.AuditEventAccount, action, description, "user", info.UserID, true))
}

// LogAdmin records an administrative action on another user.
func (s *Service) LogAdmin(info RequestInfo, action, targetUserID, description string) {
	s.LogAsync(newEvent(info, entities.AuditEventAdmin, action, description, "user", targetUserID, true))
}

// LogPlant records a catalog write.
func (s *Service) LogPlant(info RequestInfo, action, plantID, plantName string) {
	s.LogAsync(newEvent(info, entities.AuditEventPlant, action, "Plant: "+plantName, "plant", plantID, true))
}

// LogMaintenance records a system job; err marks it failed.
func (s *Service) LogMaintenance(action, description string, err error) {
	event := newEvent(RequestInfo{}, entities.AuditEventMaintenance, action, description, "", "", err == nil)
	if err != nil {
		event.Description = truncate(description+": "+err.Error(), 500)
	}
	s.LogAsync(event)
}

// GetEvents retrieves paginated audit events, optionally filtered by type.
func (s *Service) GetEvents(ctx context.Context, eventType entities.AuditEventType, limit, offset int) ([]entities.AuditEvent, int64, error) {
	return s.repo.GetEvents(ctx, audit.Query{EventType: eventType, Limit: limit, Offset: offset})
}

// DeleteOldEvents removes events older than the specified duration.
func (s *Service) DeleteOldEvents(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	return s.repo.DeleteOldEvents(ctx, cutoff)
}

func newEvent(info RequestInfo, eventType entities.AuditEventType, action, description, entityType, entityID string, success bool) *entities.AuditEvent {
	event := &entities.AuditEvent{
		UserID:      info.UserID,
		EventType:   eventType,
		Action:      action,
		Description: truncate(description, 500),
		EntityType:  entityType,
		EntityID:    entityID,
		IPAddress:   info.IPAddress,
		UserAgent:   truncate(info.UserAgent, 500),
		Status:      entities.AuditStatusSuccess,
	}
	if !success {
		event.Status = entities.AuditStatusFailed
	}
	return event
}

// truncate shortens a string to max length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
