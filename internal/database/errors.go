package database

import (
	"regexp"
	"strings"

	"github.com/mrlokans/herbalgarden/internal/apperr"
)

var (
	// UNIQUE constraint failed: users.email
	sqliteUnique = regexp.MustCompile(`UNIQUE constraint failed: ([a-zA-Z0-9_]+)\.([a-zA-Z0-9_]+)`)
	// duplicate key value violates unique constraint "idx_users_email"
	postgresUnique = regexp.MustCompile(`duplicate key value violates unique constraint "([a-zA-Z0-9_]+)"`)
)

// UniqueViolation reports whether err is a uniqueness constraint failure and,
// when the driver exposes it, the column that collided.
func UniqueViolation(err error) (field string, ok bool) {
	if err == nil {
		return "", false
	}
	msg := err.Error()

	if m := sqliteUnique.FindStringSubmatch(msg); m != nil {
		return m[2], true
	}
	if m := postgresUnique.FindStringSubmatch(msg); m != nil {
		// gorm names unique indexes idx_<table>_<column>
		parts := strings.SplitN(m[1], "_", 3)
		if len(parts) == 3 {
			return parts[2], true
		}
		return m[1], true
	}
	return "", false
}

// TranslateError turns uniqueness failures into apperr duplicates and
// leaves every other error untouched.
func TranslateError(err error) error {
	if field, ok := UniqueViolation(err); ok {
		return apperr.Duplicate(field, err)
	}
	return err
}
