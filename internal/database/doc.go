// Package database opens the gorm connection, migrates the schema and
// translates driver errors. Table-specific access lives in the sub-packages:
//
//   - users: credential store (users table, bookmark counts)
//   - bookmarks: per-user plant bookmarks
//   - plants: the plant catalog
//   - audit: audit events
package database
