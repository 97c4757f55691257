package bookmarks

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/mrlokans/herbalgarden/internal/database"
	"github.com/mrlokans/herbalgarden/internal/entities"
)

var (
	ErrNotFound      = errors.New("bookmark not found")
	ErrAlreadyExists = errors.New("already bookmarked")
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// List returns the user's bookmarks, oldest first.
func (r *Repository) List(ctx context.Context, userID string) ([]entities.Bookmark, error) {
	bookmarks := make([]entities.Bookmark, 0)
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&bookmarks).Error
	if err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	return bookmarks, nil
}

// Add stores ref for the user. Adding the same reference twice fails with ErrAlreadyExists.
func (r *Repository) Add(ctx context.Context, userID string, ref entities.BookmarkRef) (*entities.Bookmark, error) {
	bookmark := &entities.Bookmark{UserID: userID, Kind: ref.Kind, RefID: ref.ID}
	if err := r.db.WithContext(ctx).Create(bookmark).Error; err != nil {
		if _, dup := database.UniqueViolation(err); dup {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("add bookmark: %w", err)
	}
	return bookmark, nil
}

func (r *Repository) Remove(ctx context.Context, userID string, ref entities.BookmarkRef) error {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND kind = ? AND ref_id = ?", userID, ref.Kind, ref.ID).
		Delete(&entities.Bookmark{})
	if res.Error != nil {
		return fmt.Errorf("remove bookmark: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) Count(ctx context.Context, userID string) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&entities.Bookmark{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count bookmarks: %w", err)
	}
	return n, nil
}
