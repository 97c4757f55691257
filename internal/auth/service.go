package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/mrlokans/herbalgarden/internal/apperr"
	"github.com/mrlokans/herbalgarden/internal/database/users"
	"github.com/mrlokans/herbalgarden/internal/entities"
	"github.com/mrlokans/herbalgarden/internal/metrics"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,64}$`)
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

// Client-facing messages returned by the service.
const (
	MessageFieldsRequired      = "Username, email and password are required"
	MessageCredentialsRequired = "Email and password required"
	MessageInvalidCredentials  = "Invalid email or password"
	MessageUsernameInvalid     = "Username must be 3-64 characters of letters, digits, '.', '_' or '-'"
	MessageEmailInvalid        = "Please provide a valid email"
	MessageEmailExists         = "Email already exists"
	MessageUsernameExists      = "Username already exists"
	MessageUsernameInUse       = "Username already in use"
	MessageEmailInUse          = "Email already in use"
	MessageUsernameTaken       = "Username already taken"
	MessageEmailTaken          = "Email already taken"
	MessageOwnRole             = "You cannot change your own role"
	MessageOwnAccount          = "You cannot delete your own account"
	MessageWrongCurrent        = "Current password is incorrect"
	MessageWrongPassword       = "Incorrect password"
	MessageInvalidRole         = "Invalid role"
	MessageUserMissing         = "User not found"
	MessageTooManyAttempts     = "Too many login attempts. Please try again later."
)

// UserStore is the credential store the service reads and writes.
type UserStore interface {
	FindByID(ctx context.Context, id string) (*entities.User, error)
	FindOne(ctx context.Context, f users.Filter) (*entities.User, error)
	Create(ctx context.Context, user *entities.User) error
	UpdateByID(ctx context.Context, id string, upd users.Update) (*entities.User, error)
	DeleteByID(ctx context.Context, id string) (*entities.User, error)
	Count(ctx context.Context, f users.Filter) (int64, error)
}

// Session is the result of a successful registration or login.
type Session struct {
	User  *entities.User
	Token string
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
	AdminKey string
}

type LoginInput struct {
	Email    string
	Password string
	// ClientIP keys the login rate limiter.
	ClientIP string
}

// ProfileUpdate is a self-service change; nil fields are left alone.
type ProfileUpdate struct {
	Username *string
	Email    *string
	Role     *entities.UserRole
}

// AdminUpdate is a change made by a super-admin to any account.
type AdminUpdate struct {
	Username *string
	Email    *string
	Role     *entities.UserRole
}

type ServiceOptions struct {
	// AdminSecret promotes a registration to super-admin when supplied as its
	// admin key. Empty disables promotion by key.
	AdminSecret string
	Limiter     *RateLimiter
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
}

// Service implements registration, login and account management.
type Service struct {
	store       UserStore
	hasher      *PasswordHasher
	tokens      *TokenManager
	adminSecret string
	limiter     *RateLimiter
	metrics     *metrics.Metrics
	logger      *zap.Logger

	// serialises the count-then-create of registration so that only one of
	// two concurrent first registrations becomes super-admin
	registerMu sync.Mutex

	dummyOnce sync.Once
	dummyHash string
}

func NewService(store UserStore, hasher *PasswordHasher, tokens *TokenManager, opts ServiceOptions) *Service {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Service{
		store:       store,
		hasher:      hasher,
		tokens:      tokens,
		adminSecret: opts.AdminSecret,
		limiter:     opts.Limiter,
		metrics:     opts.Metrics,
		logger:      opts.Logger.Named("auth"),
	}
}

// Register creates an account and opens a session for it. The first account
// ever created, and any account presenting the admin secret, is a super-admin.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = entities.NormalizeEmail(in.Email)

	if in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, apperr.Validation(MessageFieldsRequired)
	}
	if err := validateUsername(in.Username); err != nil {
		return nil, err
	}
	if err := validateEmail(in.Email); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, passwordError(err)
	}

	user, err := s.createUser(ctx, in.Username, in.Email, hash, func(count int64) entities.UserRole {
		if count == 0 || s.adminKeyMatches(in.AdminKey) {
			return entities.RoleSuperAdmin
		}
		return entities.RoleUser
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return s.openSession(user)
}

// CreateAdmin seeds a super-admin account, bypassing the admin secret.
func (s *Service) CreateAdmin(ctx context.Context, username, email, password string) (*entities.User, error) {
	username = strings.TrimSpace(username)
	email = entities.NormalizeEmail(email)

	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, passwordError(err)
	}

	return s.createUser(ctx, username, email, hash, func(int64) entities.UserRole {
		return entities.RoleSuperAdmin
	})
}

func (s *Service) createUser(ctx context.Context, username, email, hash string, roleFor func(count int64) entities.UserRole) (*entities.User, error) {
	s.registerMu.Lock()
	defer s.registerMu.Unlock()

	if err := s.ensureAvailable(ctx, "", username, email, MessageUsernameExists, MessageEmailExists); err != nil {
		return nil, err
	}

	count, err := s.store.Count(ctx, users.Filter{})
	if err != nil {
		return nil, err
	}

	user := &entities.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         roleFor(count),
	}
	if err := s.store.Create(ctx, user); err != nil {
		return nil, duplicateError(err, MessageUsernameExists, MessageEmailExists)
	}
	return user, nil
}

// Login checks credentials and opens a session. Unknown emails and wrong
// passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, in LoginInput) (*Session, error) {
	email := entities.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, apperr.Validation(MessageCredentialsRequired)
	}

	if s.limiter != nil {
		if allowed, retryAfter := s.limiter.Allow(in.ClientIP, email); !allowed {
			s.metrics.ObserveLogin(metrics.ResultRateLimited)
			return nil, apperr.Wrap(apperr.KindRateLimited, MessageTooManyAttempts, &LockoutError{RetryAfter: retryAfter})
		}
	}

	user, err := s.store.FindOne(ctx, users.Filter{Email: email})
	if err != nil && !errors.Is(err, users.ErrNotFound) {
		return nil, err
	}

	if user == nil {
		// keep the response time of unknown emails close to a wrong password
		s.hasher.Verify(in.Password, s.timingHash())
		return nil, s.loginFailed(in.ClientIP, email, metrics.ResultUnknownUser)
	}
	if !s.hasher.Verify(in.Password, user.PasswordHash) {
		return nil, s.loginFailed(in.ClientIP, email, metrics.ResultInvalid)
	}

	if s.limiter != nil {
		s.limiter.RecordSuccess(in.ClientIP, email)
	}
	s.metrics.ObserveLogin(metrics.ResultSuccess)

	return s.openSession(user)
}

func (s *Service) loginFailed(ip, email, result string) error {
	s.metrics.ObserveLogin(result)
	if s.limiter != nil {
		if locked, d := s.limiter.RecordFailure(ip, email); locked {
			s.logger.Warn("login locked out", zap.String("ip", ip), zap.Duration("lockout", d))
		}
	}
	return apperr.InvalidCredential(MessageInvalidCredentials)
}

func (s *Service) timingHash() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash("timing-equaliser-password")
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}

func (s *Service) openSession(user *entities.User) (*Session, error) {
	token, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	if user.Bookmarks == nil {
		user.Bookmarks = []entities.Bookmark{}
	}
	return &Session{User: user, Token: token}, nil
}

// GetUser loads an account with its bookmarks.
func (s *Service) GetUser(ctx context.Context, id string) (*entities.User, error) {
	user, err := s.store.FindByID(ctx, id)
	if errors.Is(err, users.ErrNotFound) {
		return nil, apperr.NotFound(MessageUserMissing)
	}
	return user, err
}

// UpdateProfile applies a self-service change. Users cannot change their own role.
func (s *Service) UpdateProfile(ctx context.Context, self *entities.User, in ProfileUpdate) (*entities.User, error) {
	if in.Role != nil && *in.Role != self.Role {
		return nil, apperr.Validation(MessageOwnRole)
	}

	upd, err := s.prepareUpdate(ctx, self, in.Username, in.Email, MessageUsernameInUse, MessageEmailInUse)
	if err != nil {
		return nil, err
	}

	user, err := s.store.UpdateByID(ctx, self.ID, upd)
	if err != nil {
		return nil, s.updateError(err, MessageUsernameInUse, MessageEmailInUse)
	}
	return user, nil
}

// ChangePassword replaces the password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if current == "" || next == "" {
		return apperr.Validation("Current and new password are required")
	}
	if !s.hasher.Verify(current, user.PasswordHash) {
		return apperr.Validation(MessageWrongCurrent)
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return passwordError(err)
	}
	_, err = s.store.UpdateByID(ctx, userID, users.Update{PasswordHash: &hash})
	return s.updateError(err, "", "")
}

// DeleteAccount removes the caller's own account after a password check.
func (s *Service) DeleteAccount(ctx context.Context, userID, password string) error {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return apperr.Validation(MessageWrongPassword)
	}

	_, err = s.store.DeleteByID(ctx, userID)
	return s.updateError(err, "", "")
}

// AdminUpdateUser changes any account. An admin cannot demote themselves.
func (s *Service) AdminUpdateUser(ctx context.Context, actorID, targetID string, in AdminUpdate) (*entities.User, error) {
	target, err := s.GetUser(ctx, targetID)
	if err != nil {
		return nil, err
	}

	if in.Role != nil {
		if !in.Role.Valid() {
			return nil, apperr.Validation(MessageInvalidRole)
		}
		if actorID == targetID && *in.Role != entities.RoleSuperAdmin {
			return nil, apperr.Validation(MessageOwnRole)
		}
	}

	upd, err := s.prepareUpdate(ctx, target, in.Username, in.Email, MessageUsernameTaken, MessageEmailTaken)
	if err != nil {
		return nil, err
	}
	upd.Role = in.Role

	user, err := s.store.UpdateByID(ctx, targetID, upd)
	if err != nil {
		return nil, s.updateError(err, MessageUsernameTaken, MessageEmailTaken)
	}
	return user, nil
}

// AdminDeleteUser removes any account except the caller's own.
func (s *Service) AdminDeleteUser(ctx context.Context, actorID, targetID string) (*entities.User, error) {
	if actorID == targetID {
		return nil, apperr.Validation(MessageOwnAccount)
	}

	deleted, err := s.store.DeleteByID(ctx, targetID)
	if err != nil {
		return nil, s.updateError(err, "", "")
	}
	return deleted, nil
}

// prepareUpdate validates username and email changes of target and checks
// they are not held by another account.
func (s *Service) prepareUpdate(ctx context.Context, target *entities.User, username, email *string, usernameMsg, emailMsg string) (users.Update, error) {
	var upd users.Update

	if username != nil {
		name := strings.TrimSpace(*username)
		if name != target.Username {
			if err := validateUsername(name); err != nil {
				return upd, err
			}
			upd.Username = &name
		}
	}
	if email != nil {
		addr := entities.NormalizeEmail(*email)
		if addr != target.Email {
			if err := validateEmail(addr); err != nil {
				return upd, err
			}
			upd.Email = &addr
		}
	}

	var checkName, checkEmail string
	if upd.Username != nil {
		checkName = *upd.Username
	}
	if upd.Email != nil {
		checkEmail = *upd.Email
	}
	return upd, s.ensureAvailable(ctx, target.ID, checkName, checkEmail, usernameMsg, emailMsg)
}

// ensureAvailable fails when username or email belongs to an account other
// than excludeID. Empty values are not checked.
func (s *Service) ensureAvailable(ctx context.Context, excludeID, username, email, usernameMsg, emailMsg string) error {
	if email != "" {
		if _, err := s.store.FindOne(ctx, users.Filter{Email: email, ExcludeID: excludeID}); err == nil {
			return apperr.Conflict(emailMsg)
		} else if !errors.Is(err, users.ErrNotFound) {
			return err
		}
	}
	if username != "" {
		if _, err := s.store.FindOne(ctx, users.Filter{Username: username, ExcludeID: excludeID}); err == nil {
			return apperr.Conflict(usernameMsg)
		} else if !errors.Is(err, users.ErrNotFound) {
			return err
		}
	}
	return nil
}

func (s *Service) updateError(err error, usernameMsg, emailMsg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, users.ErrNotFound) {
		return apperr.NotFound(MessageUserMissing)
	}
	if usernameMsg == "" {
		return err
	}
	return duplicateError(err, usernameMsg, emailMsg)
}

// duplicateError rewrites a store-level uniqueness failure, which can still
// happen when two requests race past ensureAvailable.
func duplicateError(err error, usernameMsg, emailMsg string) error {
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind != apperr.KindDuplicate {
		return err
	}
	switch ae.Field {
	case "email":
		return apperr.Wrap(apperr.KindConflict, emailMsg, err)
	case "username":
		return apperr.Wrap(apperr.KindConflict, usernameMsg, err)
	}
	return err
}

func (s *Service) adminKeyMatches(key string) bool {
	if s.adminSecret == "" || key == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(s.adminSecret)) == 1
}

func validateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return apperr.Validation(MessageUsernameInvalid)
	}
	return nil
}

func validateEmail(email string) error {
	if len(email) > 254 || !emailPattern.MatchString(email) {
		return apperr.Validation(MessageEmailInvalid)
	}
	return nil
}

func passwordError(err error) error {
	switch {
	case errors.Is(err, ErrPasswordRequired):
		return apperr.Wrap(apperr.KindValidation, "Password is required", err)
	case errors.Is(err, ErrPasswordTooShort):
		return apperr.Wrap(apperr.KindValidation, "Password must be at least 8 characters", err)
	case errors.Is(err, ErrPasswordTooLong):
		return apperr.Wrap(apperr.KindValidation, "Password must be at most 72 bytes", err)
	}
	return err
}
