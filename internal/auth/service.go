package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"tripplanner/internal/domain"
	"tripplanner/internal/storage"
)

// Config tunes the Service.
type Config struct {
	SessionTTL        time.Duration
	MinPasswordLength int
}

// SignUpInput is the payload of a password sign-up.
type SignUpInput struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// ExternalIdentity is a user vouched for by an OIDC provider.
type ExternalIdentity struct {
	Issuer  string
	Subject string
	Email   string
	Name    string
}

// Service signs users up and in and resolves request identities.
type Service struct {
	profiles storage.ProfileStore
	sessions SessionStore
	tokens   *Tokens
	cfg      Config

	dummyOnce sync.Once
	dummyHash []byte
}

// NewService wires the profile store and session store. tokens may be nil,
// in which case bearer tokens are disabled.
func NewService(profiles storage.ProfileStore, sessions SessionStore, tokens *Tokens, cfg Config) *Service {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionDuration
	}
	return &Service{profiles: profiles, sessions: sessions, tokens: tokens, cfg: cfg}
}

// SessionTTL is the lifetime given to new sessions.
func (s *Service) SessionTTL() time.Duration { return s.cfg.SessionTTL }

// SignUp creates a password profile on the free plan.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (domain.Profile, error) {
	email := storage.NormalizeEmail(in.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return domain.Profile{}, fmt.Errorf("invalid email: %w", storage.ErrValidation)
	}
	if err := ValidatePassword(in.Password, s.cfg.MinPasswordLength); err != nil {
		return domain.Profile{}, fmt.Errorf("%w: %w", storage.ErrValidation, err)
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("hash password: %w", err)
	}
	return s.profiles.CreateProfile(ctx, domain.Profile{
		Email:        email,
		DisplayName:  strings.TrimSpace(in.DisplayName),
		Plan:         domain.PlanFree,
		PasswordHash: string(hash),
	})
}

// SignIn checks an email and password. Unknown emails cost the same bcrypt
// comparison as known ones.
func (s *Service) SignIn(ctx context.Context, email, password string) (domain.Profile, error) {
	p, err := s.profiles.GetProfileByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && p.PasswordHash == "") {
		_ = VerifyPassword(password, s.dummy())
		return domain.Profile{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.Profile{}, err
	}
	if err := VerifyPassword(password, []byte(p.PasswordHash)); err != nil {
		return domain.Profile{}, ErrInvalidCredentials
	}
	return p, nil
}

func (s *Service) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = HashPassword("tripplanner-dummy-password")
	})
	return s.dummyHash
}

// SignInExternal finds the profile for an OIDC identity, linking by email
// when the subject is new, and creates one on first sign-in.
func (s *Service) SignInExternal(ctx context.Context, ext ExternalIdentity) (domain.Profile, error) {
	if ext.Subject == "" {
		return domain.Profile{}, fmt.Errorf("missing subject: %w", storage.ErrValidation)
	}
	p, err := s.profiles.GetProfileByOIDC(ctx, ext.Issuer, ext.Subject)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return domain.Profile{}, err
	}
	if ext.Email == "" {
		return domain.Profile{}, fmt.Errorf("identity provider returned no email: %w", storage.ErrValidation)
	}
	p, err = s.profiles.GetProfileByEmail(ctx, ext.Email)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return domain.Profile{}, err
	}
	return s.profiles.CreateProfile(ctx, domain.Profile{
		Email:       ext.Email,
		DisplayName: ext.Name,
		Plan:        domain.PlanFree,
		OIDCIssuer:  ext.Issuer,
		OIDCSubject: ext.Subject,
	})
}

// StartSession creates a browser session for userID.
func (s *Service) StartSession(ctx context.Context, userID string) (*Session, error) {
	session, err := NewSession(userID, s.cfg.SessionTTL)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// EndSession deletes a session. Unknown ids are not an error.
func (s *Service) EndSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return err
	}
	return nil
}

// TokensEnabled reports whether bearer tokens can be issued.
func (s *Service) TokensEnabled() bool { return s.tokens != nil }

// IssueToken signs a bearer token for p.
func (s *Service) IssueToken(p domain.Profile) (string, time.Time, error) {
	if s.tokens == nil {
		return "", time.Time{}, errors.New("bearer tokens are not configured")
	}
	return s.tokens.Issue(p.ID, p.Email)
}

// Authenticate resolves the caller from a bearer token or, failing that, a
// session id. A presented but invalid bearer token is an error even when a
// session id is also present.
func (s *Service) Authenticate(ctx context.Context, sessionID, bearer string) (Identity, error) {
	if bearer != "" {
		if s.tokens == nil {
			return Identity{}, ErrInvalidToken
		}
		claims, err := s.tokens.Verify(bearer)
		if err != nil {
			return Identity{}, err
		}
		return Identity{UserID: claims.Subject, Email: claims.Email, Method: MethodToken}, nil
	}
	if sessionID == "" {
		return Identity{}, ErrUnauthenticated
	}
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return Identity{}, err
	}
	if session == nil {
		return Identity{}, ErrSessionNotFound
	}
	return Identity{UserID: session.UserID, Method: MethodSession, SessionID: session.ID}, nil
}
