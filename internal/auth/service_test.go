package auth

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/herbalgarden/internal/apperr"
	"github.com/mrlokans/herbalgarden/internal/config"
	"github.com/mrlokans/herbalgarden/internal/database"
	"github.com/mrlokans/herbalgarden/internal/database/users"
	"github.com/mrlokans/herbalgarden/internal/entities"
)

const testAdminSecret = "let-me-in"

type serviceFixture struct {
	svc     *Service
	repo    *users.Repository
	tokens  *TokenManager
	limiter *RateLimiter
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	db, err := database.NewDatabase(
		config.Database{Driver: config.DriverSQLite, Path: filepath.Join(t.TempDir(), "auth.db")},
		database.Options{LogLevel: logger.Silent},
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	tokens, _ := newTestTokenManager(t, time.Hour)
	repo := users.NewRepository(db.DB)
	limiter := NewRateLimiter(RateLimitConfig{MaxAttempts: 3})
	t.Cleanup(limiter.Stop)

	svc := NewService(repo, NewPasswordHasher(bcrypt.MinCost), tokens, ServiceOptions{
		AdminSecret: testAdminSecret,
		Limiter:     limiter,
	})
	return &serviceFixture{svc: svc, repo: repo, tokens: tokens, limiter: limiter}
}

func (f *serviceFixture) register(t *testing.T, username, email string) *entities.User {
	t.Helper()
	s, err := f.svc.Register(context.Background(), RegisterInput{Username: username, Email: email, Password: "Password1"})
	require.NoError(t, err)
	return s.User
}

func assertAppError(t *testing.T, err error, kind apperr.Kind, message string) {
	t.Helper()
	require.Error(t, err)
	var ae *apperr.Error
	require.True(t, errors.As(err, &ae), "expected *apperr.Error, got %T: %v", err, err)
	assert.Equal(t, kind, ae.Kind)
	assert.Equal(t, message, ae.Message)
}

func TestService_Register_RoleAssignment(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	a, err := f.svc.Register(ctx, RegisterInput{Username: "alice", Email: "a@x.com", Password: "Password1"})
	require.NoError(t, err)
	assert.Equal(t, entities.RoleSuperAdmin, a.User.Role)
	assert.NotEmpty(t, a.Token)
	assert.NotEqual(t, "Password1", a.User.PasswordHash)

	b, err := f.svc.Register(ctx, RegisterInput{Username: "bob", Email: "b@x.com", Password: "Password1"})
	require.NoError(t, err)
	assert.Equal(t, entities.RoleUser, b.User.Role)

	c, err := f.svc.Register(ctx, RegisterInput{Username: "carol", Email: "c@x.com", Password: "Password1", AdminKey: testAdminSecret})
	require.NoError(t, err)
	assert.Equal(t, entities.RoleSuperAdmin, c.User.Role)

	d, err := f.svc.Register(ctx, RegisterInput{Username: "dave", Email: "d@x.com", Password: "Password1", AdminKey: "wrong"})
	require.NoError(t, err)
	assert.Equal(t, entities.RoleUser, d.User.Role)

	claims, err := f.tokens.Verify(b.Token)
	require.NoError(t, err)
	assert.Equal(t, b.User.ID, claims.UserID)
	assert.Equal(t, entities.RoleUser, claims.Role)
}

func TestService_Register_ConcurrentFirstUsers(t *testing.T) {
	f := newServiceFixture(t)

	var wg sync.WaitGroup
	roles := make([]entities.UserRole, 5)
	for i := range roles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := f.svc.Register(context.Background(), RegisterInput{
				Username: "user" + string(rune('a'+i)),
				Email:    "user" + string(rune('a'+i)) + "@x.com",
				Password: "Password1",
			})
			if assert.NoError(t, err) {
				roles[i] = s.User.Role
			}
		}(i)
	}
	wg.Wait()

	admins := 0
	for _, r := range roles {
		if r == entities.RoleSuperAdmin {
			admins++
		}
	}
	assert.Equal(t, 1, admins)
}

func TestService_Register_Validation(t *testing.T) {
	f := newServiceFixture(t)
	f.register(t, "alice", "a@x.com")

	tests := []struct {
		name    string
		in      RegisterInput
		kind    apperr.Kind
		message string
	}{
		{"missing fields", RegisterInput{Email: "z@x.com", Password: "Password1"}, apperr.KindValidation, MessageFieldsRequired},
		{"bad username", RegisterInput{Username: "a b", Email: "z@x.com", Password: "Password1"}, apperr.KindValidation, MessageUsernameInvalid},
		{"bad email", RegisterInput{Username: "zed", Email: "not-an-email", Password: "Password1"}, apperr.KindValidation, MessageEmailInvalid},
		{"short password", RegisterInput{Username: "zed", Email: "z@x.com", Password: "short"}, apperr.KindValidation, "Password must be at least 8 characters"},
		{"email taken, any case", RegisterInput{Username: "zed", Email: "A@X.com", Password: "Password1"}, apperr.KindConflict, MessageEmailExists},
		{"username taken", RegisterInput{Username: "alice", Email: "z@x.com", Password: "Password1"}, apperr.KindConflict, MessageUsernameExists},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Register(context.Background(), tt.in)
			assertAppError(t, err, tt.kind, tt.message)
		})
	}
}

func TestService_Login(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice", "a@x.com")

	s, err := f.svc.Login(ctx, LoginInput{Email: " A@x.com ", Password: "Password1", ClientIP: "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, alice.ID, s.User.ID)

	_, err = f.svc.Login(ctx, LoginInput{Email: "a@x.com", Password: "wrong-password", ClientIP: "10.0.0.1"})
	assertAppError(t, err, apperr.KindInvalidCredential, MessageInvalidCredentials)

	_, err = f.svc.Login(ctx, LoginInput{Email: "nobody@x.com", Password: "Password1", ClientIP: "10.0.0.1"})
	assertAppError(t, err, apperr.KindInvalidCredential, MessageInvalidCredentials)

	_, err = f.svc.Login(ctx, LoginInput{Email: "a@x.com"})
	assertAppError(t, err, apperr.KindValidation, MessageCredentialsRequired)
}

func TestService_Login_RateLimited(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.register(t, "alice", "a@x.com")

	for i := 0; i < 3; i++ {
		_, err := f.svc.Login(ctx, LoginInput{Email: "a@x.com", Password: "wrong-password", ClientIP: "10.0.0.1"})
		assertAppError(t, err, apperr.KindInvalidCredential, MessageInvalidCredentials)
	}

	_, err := f.svc.Login(ctx, LoginInput{Email: "a@x.com", Password: "Password1", ClientIP: "10.0.0.1"})
	assertAppError(t, err, apperr.KindRateLimited, MessageTooManyAttempts)
	var lockout *LockoutError
	require.ErrorAs(t, err, &lockout)
	assert.Greater(t, lockout.RetryAfter, time.Duration(0))

	// another client is unaffected
	_, err = f.svc.Login(ctx, LoginInput{Email: "a@x.com", Password: "Password1", ClientIP: "10.0.0.2"})
	assert.NoError(t, err)
}

func TestService_UpdateProfile(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice", "a@x.com")
	f.register(t, "bob", "b@x.com")

	demote := entities.RoleUser
	_, err := f.svc.UpdateProfile(ctx, alice, ProfileUpdate{Role: &demote})
	assertAppError(t, err, apperr.KindValidation, MessageOwnRole)

	same := entities.RoleSuperAdmin
	name := "alice2"
	updated, err := f.svc.UpdateProfile(ctx, alice, ProfileUpdate{Username: &name, Role: &same})
	require.NoError(t, err)
	assert.Equal(t, "alice2", updated.Username)
	assert.Equal(t, entities.RoleSuperAdmin, updated.Role)

	taken := "bob"
	_, err = f.svc.UpdateProfile(ctx, updated, ProfileUpdate{Username: &taken})
	assertAppError(t, err, apperr.KindConflict, MessageUsernameInUse)

	email := "B@x.com"
	_, err = f.svc.UpdateProfile(ctx, updated, ProfileUpdate{Email: &email})
	assertAppError(t, err, apperr.KindConflict, MessageEmailInUse)

	own := "a@x.com"
	_, err = f.svc.UpdateProfile(ctx, updated, ProfileUpdate{Email: &own})
	assert.NoError(t, err)
}

func TestService_ChangePassword(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice", "a@x.com")

	err := f.svc.ChangePassword(ctx, alice.ID, "wrong-password", "NewPassword1")
	assertAppError(t, err, apperr.KindValidation, MessageWrongCurrent)

	err = f.svc.ChangePassword(ctx, alice.ID, "Password1", "short")
	assertAppError(t, err, apperr.KindValidation, "Password must be at least 8 characters")

	require.NoError(t, f.svc.ChangePassword(ctx, alice.ID, "Password1", "NewPassword1"))

	_, err = f.svc.Login(ctx, LoginInput{Email: "a@x.com", Password: "Password1"})
	assert.Error(t, err)
	_, err = f.svc.Login(ctx, LoginInput{Email: "a@x.com", Password: "NewPassword1"})
	assert.NoError(t, err)
}

func TestService_DeleteAccount(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice", "a@x.com")

	err := f.svc.DeleteAccount(ctx, alice.ID, "wrong-password")
	assertAppError(t, err, apperr.KindValidation, MessageWrongPassword)

	require.NoError(t, f.svc.DeleteAccount(ctx, alice.ID, "Password1"))

	_, err = f.svc.GetUser(ctx, alice.ID)
	assertAppError(t, err, apperr.KindNotFound, MessageUserMissing)
}

func TestService_AdminUpdateUser(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	admin := f.register(t, "alice", "a@x.com")
	bob := f.register(t, "bob", "b@x.com")

	promote := entities.RoleSuperAdmin
	updated, err := f.svc.AdminUpdateUser(ctx, admin.ID, bob.ID, AdminUpdate{Role: &promote})
	require.NoError(t, err)
	assert.Equal(t, entities.RoleSuperAdmin, updated.Role)

	demote := entities.RoleUser
	_, err = f.svc.AdminUpdateUser(ctx, admin.ID, admin.ID, AdminUpdate{Role: &demote})
	assertAppError(t, err, apperr.KindValidation, MessageOwnRole)

	bogus := entities.UserRole("owner")
	_, err = f.svc.AdminUpdateUser(ctx, admin.ID, bob.ID, AdminUpdate{Role: &bogus})
	assertAppError(t, err, apperr.KindValidation, MessageInvalidRole)

	taken := "alice"
	_, err = f.svc.AdminUpdateUser(ctx, admin.ID, bob.ID, AdminUpdate{Username: &taken})
	assertAppError(t, err, apperr.KindConflict, MessageUsernameTaken)

	email := "a@x.com"
	_, err = f.svc.AdminUpdateUser(ctx, admin.ID, bob.ID, AdminUpdate{Email: &email})
	assertAppError(t, err, apperr.KindConflict, MessageEmailTaken)

	_, err = f.svc.AdminUpdateUser(ctx, admin.ID, "00000000-0000-0000-0000-000000000000", AdminUpdate{})
	assertAppError(t, err, apperr.KindNotFound, MessageUserMissing)
}

func TestService_AdminDeleteUser(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	admin := f.register(t, "alice", "a@x.com")
	bob := f.register(t, "bob", "b@x.com")

	_, err := f.svc.AdminDeleteUser(ctx, admin.ID, admin.ID)
	assertAppError(t, err, apperr.KindValidation, MessageOwnAccount)

	deleted, err := f.svc.AdminDeleteUser(ctx, admin.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, bob.ID, deleted.ID)

	_, err = f.svc.AdminDeleteUser(ctx, admin.ID, bob.ID)
	assertAppError(t, err, apperr.KindNotFound, MessageUserMissing)
}

func TestService_CreateAdmin(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.register(t, "alice", "a@x.com")

	admin, err := f.svc.CreateAdmin(ctx, "root", "root@x.com", "Password1")
	require.NoError(t, err)
	assert.Equal(t, entities.RoleSuperAdmin, admin.Role)

	_, err = f.svc.CreateAdmin(ctx, "root2", "root@x.com", "Password1")
	assertAppError(t, err, apperr.KindConflict, MessageEmailExists)
}

func TestDuplicateError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		kind    apperr.Kind
		message string
	}{
		{"email", apperr.Duplicate("email", errors.New("unique")), apperr.KindConflict, MessageEmailExists},
		{"username", apperr.Duplicate("username", errors.New("unique")), apperr.KindConflict, MessageUsernameExists},
		{"unknown column", apperr.Duplicate("id", errors.New("unique")), apperr.KindDuplicate, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := duplicateError(tt.err, MessageUsernameExists, MessageEmailExists)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
			if tt.message != "" {
				assertAppError(t, err, tt.kind, tt.message)
			}
		})
	}

	plain := errors.New("disk full")
	assert.Same(t, plain, duplicateError(plain, MessageUsernameExists, MessageEmailExists))
}
