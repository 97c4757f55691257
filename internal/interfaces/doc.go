// Package interfaces documents the core abstractions used throughout the application.
//
// # Interface Categories
//
// ## Data Access Interfaces
//
//   - UserStore: Credential persistence for the auth service (internal/auth/service.go)
//   - UserLoader: User lookup for verified tokens (internal/auth/middleware.go)
//   - UserLister: Admin user listing with bookmark counts (internal/http/config.go)
//   - PlantStore: Plant catalog (internal/http/config.go)
//   - BookmarkStore: Per-user bookmarks (internal/http/config.go)
//   - Pinger: Database health (internal/http/health.go)
//
// ## Audit and Maintenance Interfaces
//
//   - Auditor: Security event log (internal/http/config.go)
//   - AuditEventCleaner: Retention purge (internal/tasks/cleanup_audit.go)
//   - MaintenanceAuditor: Scheduler outcome log (internal/scheduler/audit_cleanup.go)
//   - TaskQueue / CleanupEnqueuer: Background job queue (internal/http/config.go,
//     internal/scheduler/audit_cleanup.go)
//
// # Adding a New Database Domain
//
// To add a new data domain (e.g., garden notes):
//
//  1. Create sub-package: internal/database/notes/
//
//  2. Define repository:
//
//     type Repository struct { db *gorm.DB }
//
//     func NewRepository(db *gorm.DB) *Repository
//
//  3. Add the model to the AutoMigrate list in internal/database/database.go
//
//  4. Declare the consumer-side interface next to the handler and add a
//     compile-time check to checks.go:
//
//     var _ http.NoteStore = (*notes.Repository)(nil)
//
// # Adding a Role-Gated Route
//
// Routes require a session unless registered through routes.public in
// internal/http/router.go. Restrict a route or group to roles with
// auth.RequireRoles:
//
//	admin := api.Group("/admin", auth.RequireRoles(entities.RoleSuperAdmin))
//
// The role is read from the stored user on every request, so promotions and
// demotions apply to tokens issued earlier.
//
// # Compile-Time Interface Checks
//
// All implementations should include compile-time checks to ensure they satisfy
// their interfaces. This catches missing methods at compile time rather than runtime:
//
//	var _ SomeInterface = (*MyImplementation)(nil)
//
// See checks.go for the full list.
package interfaces
