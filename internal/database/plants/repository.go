package plants

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/herbalgarden/internal/database"
	"github.com/mrlokans/herbalgarden/internal/entities"
)

var ErrNotFound = errors.New("plant not found")

const (
	DefaultPageSize = 12
	MaxPageSize     = 100
)

type ListQuery struct {
	Page   int
	Limit  int
	Search string
}

func (q ListQuery) Normalize() ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = DefaultPageSize
	}
	if q.Limit > MaxPageSize {
		q.Limit = MaxPageSize
	}
	return q
}

// Fields holds the writable attributes of a plant.
type Fields struct {
	Name           string
	ScientificName string
	Description    string
	Image          string
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// List returns a page of plants ordered by name, and the total match count.
func (r *Repository) List(ctx context.Context, q ListQuery) ([]entities.Plant, int64, error) {
	q = q.Normalize()

	base := r.db.WithContext(ctx).Model(&entities.Plant{})
	if s := strings.ToLower(strings.TrimSpace(q.Search)); s != "" {
		base = base.Where("LOWER(name) LIKE ? OR LOWER(scientific_name) LIKE ?", "%"+s+"%", "%"+s+"%")
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count plants: %w", err)
	}

	plants := make([]entities.Plant, 0, q.Limit)
	err := base.Session(&gorm.Session{}).
		Order("name ASC").
		Limit(q.Limit).
		Offset((q.Page - 1) * q.Limit).
		Find(&plants).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list plants: %w", err)
	}
	return plants, total, nil
}

func (r *Repository) FindByID(ctx context.Context, id string) (*entities.Plant, error) {
	var plant entities.Plant
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&plant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find plant %s: %w", id, err)
	}
	return &plant, nil
}

// Exists reports whether a catalog plant with id is present.
func (r *Repository) Exists(ctx context.Context, id string) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&entities.Plant{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, fmt.Errorf("check plant %s: %w", id, err)
	}
	return n > 0, nil
}

// NameTaken reports whether another plant already uses name.
func (r *Repository) NameTaken(ctx context.Context, name, excludeID string) (bool, error) {
	q := r.db.WithContext(ctx).Model(&entities.Plant{}).Where("LOWER(name) = ?", strings.ToLower(strings.TrimSpace(name)))
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, fmt.Errorf("check plant name: %w", err)
	}
	return n > 0, nil
}

func (r *Repository) Create(ctx context.Context, f Fields) (*entities.Plant, error) {
	plant := &entities.Plant{
		Name:           strings.TrimSpace(f.Name),
		ScientificName: strings.TrimSpace(f.ScientificName),
		Description:    f.Description,
		Image:          strings.TrimSpace(f.Image),
	}
	if err := r.db.WithContext(ctx).Create(plant).Error; err != nil {
		return nil, database.TranslateError(err)
	}
	return plant, nil
}

func (r *Repository) Update(ctx context.Context, id string, f Fields) (*entities.Plant, error) {
	res := r.db.WithContext(ctx).Model(&entities.Plant{}).Where("id = ?", id).Updates(map[string]any{
		"name":            strings.TrimSpace(f.Name),
		"scientific_name": strings.TrimSpace(f.ScientificName),
		"description":     f.Description,
		"image":           strings.TrimSpace(f.Image),
		"updated_at":      time.Now(),
	})
	if res.Error != nil {
		return nil, database.TranslateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.FindByID(ctx, id)
}

// Delete removes the plant and every internal bookmark pointing at it.
func (r *Repository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&entities.Plant{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("delete plant %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Where("kind = ? AND ref_id = ?", entities.BookmarkInternal, id).Delete(&entities.Bookmark{}).Error
	})
}

func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&entities.Plant{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count plants: %w", err)
	}
	return n, nil
}
