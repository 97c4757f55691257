package http

import (
	"context"
	"time"

	"github.com/mikestefanello/backlite"
	"go.uber.org/zap"

	"github.com/mrlokans/herbalgarden/internal/audit"
	"github.com/mrlokans/herbalgarden/internal/auth"
	"github.com/mrlokans/herbalgarden/internal/database"
	"github.com/mrlokans/herbalgarden/internal/database/plants"
	"github.com/mrlokans/herbalgarden/internal/database/users"
	"github.com/mrlokans/herbalgarden/internal/entities"
	"github.com/mrlokans/herbalgarden/internal/metrics"
)

// BookmarkStore persists a user's bookmarks.
type BookmarkStore interface {
	List(ctx context.Context, userID string) ([]entities.Bookmark, error)
	Add(ctx context.Context, userID string, ref entities.BookmarkRef) (*entities.Bookmark, error)
	Remove(ctx context.Context, userID string, ref entities.BookmarkRef) error
	Count(ctx context.Context, userID string) (int64, error)
}

// PlantStore persists the plant catalog.
type PlantStore interface {
	List(ctx context.Context, q plants.ListQuery) ([]entities.Plant, int64, error)
	FindByID(ctx context.Context, id string) (*entities.Plant, error)
	Exists(ctx context.Context, id string) (bool, error)
	NameTaken(ctx context.Context, name, excludeID string) (bool, error)
	Create(ctx context.Context, f plants.Fields) (*entities.Plant, error)
	Update(ctx context.Context, id string, f plants.Fields) (*entities.Plant, error)
	Delete(ctx context.Context, id string) error
}

// UserLister backs the admin user listing.
type UserLister interface {
	List(ctx context.Context, q users.ListQuery) ([]users.Summary, int64, error)
}

// Auditor records security-relevant actions.
type Auditor interface {
	LogAuth(info audit.RequestInfo, action string, success bool)
	LogAccount(info audit.RequestInfo, action, description string)
	LogAdmin(info audit.RequestInfo, action, targetUserID, description string)
	LogPlant(info audit.RequestInfo, action, plantID, plantName string)
	GetEvents(ctx context.Context, eventType entities.AuditEventType, limit, offset int) ([]entities.AuditEvent, int64, error)
}

// TaskQueue enqueues maintenance jobs and reports their status.
type TaskQueue interface {
	EnqueueAuditCleanup(retentionDays int) (string, error)
	Status(ctx context.Context, taskID string) (backlite.TaskStatus, error)
}

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router.
type RouterConfig struct {
	Logger   *zap.Logger
	Database *database.Database
	Version  string

	// Authentication
	AuthService    *auth.Service
	AuthMiddleware *auth.Middleware
	Tokens         *auth.TokenManager
	Cookies        *auth.CookieTransport
	// CSRF is nil when CSRF protection is disabled.
	CSRF *auth.CSRFConfig

	// Stores
	Users     UserLister
	Plants    PlantStore
	Bookmarks BookmarkStore
	Auditor   Auditor

	// Metrics is nil when the /metrics endpoint is disabled.
	Metrics *metrics.Metrics

	// TaskQueue is nil when background tasks are disabled.
	TaskQueue          TaskQueue
	AuditRetentionDays int

	// FrontendURL is the single origin allowed to call the API with credentials.
	FrontendURL string
	// Production enables HSTS and hides error stacks.
	Production bool

	// Now is the clock used for account statistics.
	Now func() time.Time
}
