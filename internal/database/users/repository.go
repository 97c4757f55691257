package users

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

var ErrNotFound = errors.New("user not found")

// Filter selects users. Zero-valued fields are ignored.
type Filter struct {
	ID       string
	Email    string
	Username string
	Role     entities.UserRole
	// ExcludeID skips one user, used for uniqueness re-checks on update.
	ExcludeID string
}

func (f Filter) apply(q *gorm.DB) *gorm.DB {
	if f.ID != "" {
		q = q.Where("id = ?", f.ID)
	}
	if f.Email != "" {
		q = q.Where("email = ?", entities.NormalizeEmail(f.Email))
	}
	if f.Username != "" {
		q = q.Where("username = ?", strings.TrimSpace(f.Username))
	}
	if f.Role != "" {
		q = q.Where("role = ?", f.Role)
	}
	if f.ExcludeID != "" {
		q = q.Where("id <> ?", f.ExcludeID)
	}
	return q
}

// Update lists the mutable fields; nil fields are left unchanged.
type Update struct {
	Username     *string
	Email        *string
	Role         *entities.UserRole
	PasswordHash *string
}

func (u Update) columns() map[string]any {
	cols := make(map[string]any)
	if u.Username != nil {
		cols["username"] = strings.TrimSpace(*u.Username)
	}
	if u.Email != nil {
		cols["email"] = entities.NormalizeEmail(*u.Email)
	}
	if u.Role != nil {
		cols["role"] = *u.Role
	}
	if u.PasswordHash != nil {
		cols["password_hash"] = *u.PasswordHash
	}
	return cols
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByID loads a user together with their bookmarks.
func (r *Repository) FindByID(ctx context.Context, id string) (*entities.User, error) {
	return r.findByID(ctx, id, r.db.WithContext(ctx))
}

// FindIdentity loads a user and their bookmarks without the password hash.
// It backs per-request authentication, where the hash is never needed.
func (r *Repository) FindIdentity(ctx context.Context, id string) (*entities.User, error) {
	return r.findByID(ctx, id, r.db.WithContext(ctx).Omit("password_hash"))
}

func (r *Repository) findByID(ctx context.Context, id string, tx *gorm.DB) (*entities.User, error) {
	var user entities.User
	err := tx.
		Preload("Bookmarks", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Where("id = ?", id).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user %s: %w", id, err)
	}
	return &user, nil
}

// FindOne returns the first user matching f.
func (r *Repository) FindOne(ctx context.Context, f Filter) (*entities.User, error) {
	var user entities.User
	err := f.apply(r.db.WithContext(ctx)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

func (r *Repository) Create(ctx context.Context, user *entities.User) error {
	user.Email = entities.NormalizeEmail(user.Email)
	user.Username = strings.TrimSpace(user.Username)
	if err := r.db.WithContext(ctx).Omit("Bookmarks").Create(user).Error; err != nil {
		return database.TranslateError(err)
	}
	return nil
}

// UpdateByID applies upd and returns the reloaded user.
func (r *Repository) UpdateByID(ctx context.Context, id string, upd Update) (*entities.User, error) {
	cols := upd.columns()
	if len(cols) > 0 {
		cols["updated_at"] = time.Now()
		res := r.db.WithContext(ctx).Model(&entities.User{}).Where("id = ?", id).Updates(cols)
		if res.Error != nil {
			return nil, database.TranslateError(res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}
	return r.FindByID(ctx, id)
}

// DeleteByID removes the user and their bookmarks and returns the deleted record.
func (r *Repository) DeleteByID(ctx context.Context, id string) (*entities.User, error) {
	var deleted entities.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&deleted).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&entities.Bookmark{}).Error; err != nil {
			return err
		}
		return tx.Delete(&entities.User{}, "id = ?", id).Error
	})
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("delete user %s: %w", id, err)
	}
	return &deleted, nil
}

func (r *Repository) Count(ctx context.Context, f Filter) (int64, error) {
	var n int64
	if err := f.apply(r.db.WithContext(ctx).Model(&entities.User{})).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// Summary is a user row with its bookmark count, for the admin listing.
type Summary struct {
	ID            string            `json:"id"`
	Username      string            `json:"username"`
	Email         string            `json:"email"`
	Role          entities.UserRole `json:"role"`
	BookmarkCount int64             `json:"bookmarkCount"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

type ListQuery struct {
	Page   int
	Limit  int
	Search string // matches username or email, case-insensitive
	Role   entities.UserRole
	SortBy string // field name, "-" prefix for descending; default -createdAt
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

var sortColumns = map[string]string{
	"createdAt":  "created_at ASC",
	"-createdAt": "created_at DESC",
	"username":   "username ASC",
	"-username":  "username DESC",
	"email":      "email ASC",
	"-email":     "email DESC",

	"bookmarkCount":  "bookmark_count ASC",
	"-bookmarkCount": "bookmark_count DESC",
}

// Normalize clamps paging values into range.
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
	if _, ok := sortColumns[q.SortBy]; !ok {
		q.SortBy = "-createdAt"
	}
	return q
}

// List returns one page of users and the total number of matches.
func (r *Repository) List(ctx context.Context, q ListQuery) ([]Summary, int64, error) {
	q = q.Normalize()

	base := r.db.WithContext(ctx).Model(&entities.User{})
	if q.Role != "" {
		base = base.Where("role = ?", q.Role)
	}
	if s := strings.ToLower(strings.TrimSpace(q.Search)); s != "" {
		like := "%" + s + "%"
		base = base.Where("LOWER(username) LIKE ? OR LOWER(email) LIKE ?", like, like)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	rows := make([]Summary, 0, q.Limit)
	err := base.Session(&gorm.Session{}).
		Select("users.id, users.username, users.email, users.role, users.created_at, users.updated_at, " +
			"(SELECT COUNT(*) FROM bookmarks WHERE bookmarks.user_id = users.id) AS bookmark_count").
		Order(sortColumns[q.SortBy]).
		Limit(q.Limit).
		Offset((q.Page - 1) * q.Limit).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return rows, total, nil
}
