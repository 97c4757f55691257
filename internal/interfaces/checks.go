package interfaces

// This file contains compile-time interface implementation checks.
// These ensure that concrete types satisfy their interfaces at compile time,
// catching missing methods before runtime.
//
// To verify all checks pass: go build ./internal/interfaces/...

import (
	"github.com/mrlokans/herbalgarden/internal/audit"
	"github.com/mrlokans/herbalgarden/internal/auth"
	"github.com/mrlokans/herbalgarden/internal/database"
	"github.com/mrlokans/herbalgarden/internal/database/bookmarks"
	"github.com/mrlokans/herbalgarden/internal/database/plants"
	"github.com/mrlokans/herbalgarden/internal/database/users"
	"github.com/mrlokans/herbalgarden/internal/http"
	"github.com/mrlokans/herbalgarden/internal/scheduler"
	"github.com/mrlokans/herbalgarden/internal/tasks"
)

// =============================================================================
// Data Access Layer
// =============================================================================

// Credential store behind registration, login and account management
var _ auth.UserStore = (*users.Repository)(nil)

// Session middleware user lookup
var _ auth.UserLoader = (*users.Repository)(nil)

var _ http.UserLister = (*users.Repository)(nil)
var _ http.PlantStore = (*plants.Repository)(nil)
var _ http.BookmarkStore = (*bookmarks.Repository)(nil)

// Health checks
var _ http.Pinger = (*database.Database)(nil)

// =============================================================================
// Audit and Maintenance
// =============================================================================

var _ http.Auditor = (*audit.Service)(nil)
var _ tasks.AuditEventCleaner = (*audit.Service)(nil)
var _ scheduler.MaintenanceAuditor = (*audit.Service)(nil)

// Task queue
var _ http.TaskQueue = (*tasks.Client)(nil)
var _ scheduler.CleanupEnqueuer = (*tasks.Client)(nil)
