package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/makersmarket/session-auth-service/internal/domain"
	"github.com/makersmarket/session-auth-service/internal/observability"
	"github.com/makersmarket/session-auth-service/internal/repository"
	"github.com/makersmarket/session-auth-service/internal/security"
	"github.com/makersmarket/session-auth-service/internal/store"
)

var (
	// ErrInvalidCredentials covers both unknown email and wrong
	// password, so a caller cannot probe which accounts exist.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)

// enumerationDummyDigest is verified against when the email is unknown
// so both login failure paths cost one bcrypt comparison.
const enumerationDummyDigest = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	UserID    uint
}

type SessionView struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	IsCurrent bool      `json:"is_current"`
}

type AuthService struct {
	users    repository.UserRepository
	sessions store.Store
	tracer   trace.Tracer
}

func NewAuthService(users repository.UserRepository, sessions store.Store) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		tracer:   otel.Tracer("session-auth-service"),
	}
}

func (s *AuthService) Register(ctx context.Context, email, name, password string) (*domain.User, error) {
	ctx, span := s.tracer.Start(ctx, "auth.register")
	defer span.End()

	if len(password) < 8 {
		return nil, ErrWeakPassword
	}
	digest, err := security.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		Email:        normalizeEmail(email),
		Name:         strings.TrimSpace(name),
		PasswordHash: digest,
	}
	if err := s.users.Create(user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	ctx, span := s.tracer.Start(ctx, "auth.login")
	defer span.End()

	user, err := s.users.FindByEmail(normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			security.VerifyPassword(enumerationDummyDigest, password)
			observability.RecordAuthLogin(ctx, "failure")
			return nil, ErrInvalidCredentials
		}
		observability.RecordAuthLogin(ctx, "error")
		return nil, err
	}
	if !security.VerifyPassword(user.PasswordHash, password) {
		observability.RecordAuthLogin(ctx, "failure")
		return nil, ErrInvalidCredentials
	}
	sess, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		observability.RecordAuthLogin(ctx, "error")
		return nil, err
	}
	observability.RecordAuthLogin(ctx, "success")
	return &LoginResult{Token: sess.Token, ExpiresAt: sess.ExpiresAt, UserID: user.ID}, nil
}

func (s *AuthService) Logout(ctx context.Context, token string) (bool, error) {
	removed, err := s.sessions.Delete(ctx, token)
	if err != nil {
		observability.RecordAuthLogout(ctx, "one", "error")
		return false, err
	}
	observability.RecordAuthLogout(ctx, "one", "success")
	return removed, nil
}

func (s *AuthService) LogoutAll(ctx context.Context, userID uint) (int, error) {
	removed, err := s.sessions.DeleteByUser(ctx, userID)
	if err != nil {
		observability.RecordAuthLogout(ctx, "all", "error")
		return 0, err
	}
	observability.RecordAuthLogout(ctx, "all", "success")
	return removed, nil
}

func (s *AuthService) Profile(ctx context.Context, userID uint) (*domain.User, error) {
	return s.users.FindByID(userID)
}

func (s *AuthService) Sessions(ctx context.Context, userID uint, currentSessionID string) ([]SessionView, error) {
	sessions, err := s.sessions.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	views := make([]SessionView, 0, len(sessions))
	for _, sess := range sessions {
		views = append(views, SessionView{
			ID:        sess.ID,
			CreatedAt: sess.CreatedAt,
			ExpiresAt: sess.ExpiresAt,
			IsCurrent: sess.ID == currentSessionID,
		})
	}
	return views, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
