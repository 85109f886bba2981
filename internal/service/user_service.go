package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/prn-tf/inkwell/internal/config"
	"github.com/prn-tf/inkwell/internal/domain"
	"github.com/prn-tf/inkwell/internal/lock"
	"github.com/prn-tf/inkwell/internal/metrics"
	"github.com/prn-tf/inkwell/internal/pkg/crypto"
	"github.com/prn-tf/inkwell/internal/query"
	"github.com/prn-tf/inkwell/internal/repository"
)

// UserService handles accounts, credentials and sessions.
type UserService struct {
	users    repository.UserRepository
	sessions repository.Cache
	locker   lock.Locker
	metrics  *metrics.Metrics
	cfg      config.AuthConfig
	logger   zerolog.Logger
	now      func() time.Time
}

// NewUserService creates a new UserService. m may be nil.
func NewUserService(
	users repository.UserRepository,
	sessions repository.Cache,
	locker lock.Locker,
	m *metrics.Metrics,
	cfg config.AuthConfig,
	logger zerolog.Logger,
) *UserService {
	return &UserService{
		users:    users,
		sessions: sessions,
		locker:   locker,
		metrics:  m,
		cfg:      cfg,
		logger:   logger.With().Str("service", "user").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RegisterInput contains the data needed to create an account.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Session is an issued bearer session.
type Session struct {
	Token     string       `json:"accessToken"`
	TokenType string       `json:"tokenType"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *domain.User `json:"-"`
}

// Register creates an account. Sign-ups for the same email are serialized so the
// existence check and the insert cannot interleave.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (user *domain.User, err error) {
	defer func() { s.metrics.ObserveAuth("register", err) }()

	if err := s.validateCredentials(input.Email, input.Password); err != nil {
		return nil, err
	}

	err = lock.WithLock(ctx, s.locker, lock.Keys.Registration(input.Email), s.cfg.LockTTL, func(ctx context.Context) error {
		exists, err := s.users.ExistsByEmail(ctx, input.Email)
		if err != nil {
			return err
		}
		if exists {
			return ErrEmailTaken
		}

		hash, err := s.hash(input.Password)
		if err != nil {
			return err
		}

		user, err = s.users.Create(ctx, domain.NewUser(input.Email, hash, input.FirstName, input.LastName))
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) && !errors.Is(err, ErrEmailTaken) {
			// the unique index caught a concurrent sign-up on another node
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	s.logger.Info().
		Str("user_id", user.ID.String()).
		Str("email", user.Email).
		Msg("user registered")
	return user, nil
}

// Login verifies credentials, records the login and issues a session.
func (s *UserService) Login(ctx context.Context, email, password string) (session *Session, err error) {
	defer func() { s.metrics.ObserveAuth("login", err) }()

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// don't expose whether the email exists
			s.logger.Debug().Str("email", email).Msg("unknown email during login")
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.CanAuthenticate() {
		s.logger.Debug().Str("user_id", user.ID.String()).Msg("inactive user attempted login")
		return nil, domain.ErrUserInactive
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Debug().Str("user_id", user.ID.String()).Msg("invalid password during login")
		return nil, domain.ErrInvalidCredentials
	}

	now := s.now()
	user, err = s.users.UpdateLastLogin(ctx, user.ID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}

	token, err := crypto.NewToken()
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Set(ctx, sessionKey(token), []byte(user.ID), s.cfg.SessionTTL); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	s.logger.Info().Str("user_id", user.ID.String()).Msg("user logged in")
	return &Session{
		Token:     token,
		TokenType: "Bearer",
		ExpiresAt: now.Add(s.cfg.SessionTTL),
		User:      user,
	}, nil
}

// Authenticate resolves a bearer token to its live, active user.
func (s *UserService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, ErrInvalidSession
	}
	raw, err := s.sessions.Get(ctx, sessionKey(token))
	if err != nil {
		if errors.Is(err, repository.ErrCacheMiss) {
			return nil, ErrInvalidSession
		}
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	user, err := s.users.FindOneByID(ctx, domain.ID(raw))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, err
	}
	if !user.CanAuthenticate() {
		return nil, domain.ErrUserInactive
	}

	if s.cfg.SlidingSessions {
		if err := s.sessions.Expire(ctx, sessionKey(token), s.cfg.SessionTTL); err != nil {
			s.logger.Warn().Err(err).Str("user_id", user.ID.String()).Msg("failed to extend session")
		}
	}
	return user, nil
}

// Logout revokes a session. Revoking an unknown token is not an error.
func (s *UserService) Logout(ctx context.Context, token string) (err error) {
	defer func() { s.metrics.ObserveAuth("logout", err) }()

	if err := s.sessions.Delete(ctx, sessionKey(token)); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// ChangePasswordInput contains the data needed to change a password.
type ChangePasswordInput struct {
	UserID          domain.ID
	CurrentPassword string
	NewPassword     string
}

// ChangePassword replaces the password after verifying the current one.
func (s *UserService) ChangePassword(ctx context.Context, input ChangePasswordInput) error {
	user, err := s.users.FindOneByID(ctx, input.UserID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.CurrentPassword)); err != nil {
		return ErrWrongPassword
	}
	if len(input.NewPassword) < s.cfg.MinPasswordLength {
		return ErrInvalidPassword
	}

	hash, err := s.hash(input.NewPassword)
	if err != nil {
		return err
	}
	if _, err := s.users.UpdateOneByID(ctx, user.ID, repository.SetFields{"passwordHash": hash}); err != nil {
		return err
	}

	s.logger.Info().Str("user_id", user.ID.String()).Msg("password updated")
	return nil
}

// GetByID retrieves an active user.
func (s *UserService) GetByID(ctx context.Context, id domain.ID) (*domain.User, error) {
	user, err := s.users.FindOneByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !user.CanAuthenticate() {
		return nil, domain.NotFound(domain.EntityUser, "user is inactive")
	}
	return user, nil
}

// List returns a page of users.
func (s *UserService) List(ctx context.Context, p query.Pagination) (*query.Page[*domain.User], error) {
	return s.users.ListPaginated(ctx, nil, p)
}

// UpdateProfileInput holds optional profile changes. Nil fields are left alone.
type UpdateProfileInput struct {
	FirstName *string
	LastName  *string
	Bio       *string
	Avatar    *string
}

// UpdateProfile applies profile changes.
func (s *UserService) UpdateProfile(ctx context.Context, id domain.ID, input UpdateProfileInput) (*domain.User, error) {
	set := repository.SetFields{}
	putString(set, "firstName", input.FirstName)
	putString(set, "lastName", input.LastName)
	putString(set, "bio", input.Bio)
	putString(set, "avatar", input.Avatar)
	if len(set) == 0 {
		return s.users.FindOneByID(ctx, id)
	}
	return s.users.UpdateOneByID(ctx, id, set)
}

// SetRole changes a user's role.
func (s *UserService) SetRole(ctx context.Context, id domain.ID, role domain.Role) (*domain.User, error) {
	user, err := s.users.SetRole(ctx, id, role)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_id", id.String()).Str("role", string(role)).Msg("role changed")
	return user, nil
}

// SetActive enables or disables an account.
func (s *UserService) SetActive(ctx context.Context, id domain.ID, active bool) (*domain.User, error) {
	if active {
		return s.users.Activate(ctx, id)
	}
	return s.users.Deactivate(ctx, id)
}

func (s *UserService) validateCredentials(email, password string) error {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || addr.Address != strings.TrimSpace(email) {
		return ErrInvalidEmail
	}
	if len(password) < s.cfg.MinPasswordLength {
		return ErrInvalidPassword
	}
	return nil
}

func (s *UserService) hash(password string) (string, error) {
	cost := s.cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", domain.Internal(fmt.Errorf("failed to hash password: %w", err))
	}
	return string(hash), nil
}

// putString adds a pointer-valued field to set when present.
func putString(set repository.SetFields, field string, v *string) {
	if v != nil {
		set[field] = *v
	}
}

func sessionKey(token string) string {
	return repository.CacheKey{}.Session(crypto.Fingerprint(token))
}
