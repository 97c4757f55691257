package entities

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BookmarkKind tags where a bookmarked plant lives.
type BookmarkKind string

const (
	// BookmarkInternal references a plant in the local catalog by its id.
	BookmarkInternal BookmarkKind = "internal"
	// BookmarkExternal references a plant of the third-party catalog by its source id.
	BookmarkExternal BookmarkKind = "external"
)

var (
	ErrUnknownBookmarkKind = errors.New("unknown bookmark kind")
	ErrEmptyBookmarkID     = errors.New("bookmark id is required")
)

// ParseBookmarkKind converts s into a BookmarkKind.
func ParseBookmarkKind(s string) (BookmarkKind, error) {
	switch BookmarkKind(strings.ToLower(strings.TrimSpace(s))) {
	case BookmarkInternal:
		return BookmarkInternal, nil
	case BookmarkExternal:
		return BookmarkExternal, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBookmarkKind, s)
	}
}

// BookmarkRef is a reference to either a catalog plant or an external one.
type BookmarkRef struct {
	Kind BookmarkKind `json:"kind"`
	ID   string       `json:"id"`
}

func InternalRef(plantID string) BookmarkRef {
	return BookmarkRef{Kind: BookmarkInternal, ID: plantID}
}

func ExternalRef(sourceID string) BookmarkRef {
	return BookmarkRef{Kind: BookmarkExternal, ID: sourceID}
}

// Validate checks the tag and, for internal references, the id format.
func (r BookmarkRef) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return ErrEmptyBookmarkID
	}
	switch r.Kind {
	case BookmarkInternal:
		if _, err := uuid.Parse(r.ID); err != nil {
			return fmt.Errorf("internal plant id: %w", err)
		}
		return nil
	case BookmarkExternal:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBookmarkKind, r.Kind)
	}
}

func (r BookmarkRef) String() string {
	return string(r.Kind) + ":" + r.ID
}

// ClassifyPlantID tags an untyped plant id from older clients: catalog ids are
// UUIDs, anything else is an external source id.
func ClassifyPlantID(raw string) BookmarkRef {
	id := strings.TrimSpace(raw)
	if _, err := uuid.Parse(id); err == nil {
		return InternalRef(id)
	}
	return ExternalRef(id)
}

// Bookmark is a stored BookmarkRef owned by a user.
type Bookmark struct {
	ID        uint         `gorm:"primaryKey" json:"-"`
	UserID    string       `gorm:"size:36;not null;uniqueIndex:idx_bookmarks_user_ref" json:"-"`
	Kind      BookmarkKind `gorm:"size:16;not null;uniqueIndex:idx_bookmarks_user_ref" json:"kind"`
	RefID     string       `gorm:"column:ref_id;size:255;not null;uniqueIndex:idx_bookmarks_user_ref" json:"id"`
	CreatedAt time.Time    `json:"createdAt"`
}

func (Bookmark) TableName() string {
	return "bookmarks"
}

func (b Bookmark) Ref() BookmarkRef {
	return BookmarkRef{Kind: b.Kind, ID: b.RefID}
}
