// Package auth keeps the bearer token and user profile for the current user.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"

	"github.com/verte-zerg/mockprep/internal/api"
	"github.com/verte-zerg/mockprep/internal/model"
)

// Password length bounds, counted in characters.
const (
	MinRegisterPassword = 6
	MinLoginPassword    = 1
	MaxPassword         = 128
)

var (
	ErrNameRequired       = errors.New("name is required")
	ErrEmailRequired      = errors.New("email is required")
	ErrLoginRequired      = errors.New("email or telegram handle is required")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrInvalidCredentials = errors.New("invalid login or password")
	ErrNotAuthenticated   = errors.New("not signed in")
	ErrSessionExpired     = errors.New("session expired, please sign in again")
)

// PasswordLengthError reports a password outside the allowed bounds.
type PasswordLengthError struct {
	Min int
	Max int
}

func (e *PasswordLengthError) Error() string {
	return fmt.Sprintf("password must be between %d and %d characters", e.Min, e.Max)
}

// Backend is the subset of the API client used for authentication.
type Backend interface {
	Register(ctx context.Context, req api.RegisterRequest) (model.AuthResult, error)
	Login(ctx context.Context, req api.LoginRequest) (model.AuthResult, error)
	Me(ctx context.Context) (model.UserProfile, error)
}

// Store persists credentials between runs.
type Store interface {
	SaveAuth(ctx context.Context, token string, profile *model.UserProfile) error
	LoadAuth(ctx context.Context) (string, *model.UserProfile, error)
	ClearAuth(ctx context.Context) error
}

// RegisterInput is the registration form.
type RegisterInput struct {
	Name             string
	Email            string
	TelegramUsername string
	Password         string
	RepeatPassword   string
}

// Manager owns the credentials. It is safe for concurrent use.
type Manager struct {
	backend Backend
	store   Store
	now     func() time.Time

	mu      sync.RWMutex
	token   string
	profile *model.UserProfile
}

// NewManager creates a manager. Call Load to restore stored credentials.
func NewManager(backend Backend, store Store) *Manager {
	return &Manager{backend: backend, store: store, now: time.Now}
}

// Load restores the stored token and profile.
func (m *Manager) Load(ctx context.Context) error {
	token, profile, err := m.store.LoadAuth(ctx)
	if err != nil {
		return fmt.Errorf("failed to load credentials: %w", err)
	}
	m.mu.Lock()
	m.token = token
	m.profile = profile
	m.mu.Unlock()
	return nil
}

// Token returns the bearer token, or an empty string.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// Profile returns a copy of the cached profile, or nil.
func (m *Manager) Profile() *model.UserProfile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.profile == nil {
		return nil
	}
	p := *m.profile
	return &p
}

// IsAuthenticated reports whether both a token and a profile are held.
func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token != "" && m.profile != nil
}

// Register validates the form, creates the account and stores the credentials.
func (m *Manager) Register(ctx context.Context, in RegisterInput) (*model.UserProfile, error) {
	if in.Password != in.RepeatPassword {
		return nil, ErrPasswordMismatch
	}
	if err := checkPassword(in.Password, MinRegisterPassword); err != nil {
		return nil, err
	}
	email := strings.TrimSpace(in.Email)
	if email == "" {
		return nil, ErrEmailRequired
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	res, err := m.backend.Register(ctx, api.RegisterRequest{
		Name:             name,
		Email:            email,
		TelegramUsername: strings.TrimSpace(in.TelegramUsername),
		Password:         in.Password,
	})
	if err != nil {
		return nil, err
	}
	return m.accept(ctx, res)
}

// Login signs in with an email or telegram handle.
func (m *Manager) Login(ctx context.Context, identifier, password string) (*model.UserProfile, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, ErrLoginRequired
	}
	if err := checkPassword(password, MinLoginPassword); err != nil {
		return nil, err
	}
	res, err := m.backend.Login(ctx, api.LoginRequest{Login: identifier, Password: password})
	if err != nil {
		if api.IsUnauthorized(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	return m.accept(ctx, res)
}

func (m *Manager) accept(ctx context.Context, res model.AuthResult) (*model.UserProfile, error) {
	if res.AccessToken == "" {
		return nil, errors.New("server returned no access token")
	}
	profile := res.User
	if err := m.store.SaveAuth(ctx, res.AccessToken, &profile); err != nil {
		return nil, fmt.Errorf("failed to save credentials: %w", err)
	}
	m.mu.Lock()
	m.token = res.AccessToken
	m.profile = &profile
	m.mu.Unlock()
	return m.Profile(), nil
}

// Refresh re-fetches the profile. Missing, expired or rejected tokens sign the
// user out.
func (m *Manager) Refresh(ctx context.Context) (*model.UserProfile, error) {
	token := m.Token()
	if token == "" {
		return nil, errors.Join(ErrNotAuthenticated, m.Logout(ctx))
	}
	if expired(token, m.now()) {
		return nil, errors.Join(ErrSessionExpired, m.Logout(ctx))
	}
	profile, err := m.backend.Me(ctx)
	if err != nil {
		if api.IsUnauthorized(err) {
			return nil, errors.Join(ErrSessionExpired, m.Logout(ctx))
		}
		return nil, err
	}
	m.mu.Lock()
	// A logout may have raced the request.
	if m.token != token {
		m.mu.Unlock()
		return nil, ErrNotAuthenticated
	}
	m.profile = &profile
	m.mu.Unlock()
	if err := m.store.SaveAuth(ctx, token, &profile); err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}
	return m.Profile(), nil
}

// Logout forgets the credentials in memory and on disk.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	m.token = ""
	m.profile = nil
	m.mu.Unlock()
	if err := m.store.ClearAuth(ctx); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	return nil
}

func checkPassword(password string, min int) error {
	n := utf8.RuneCountInString(password)
	if n < min || n > MaxPassword {
		return &PasswordLengthError{Min: min, Max: MaxPassword}
	}
	return nil
}

// expired reads the exp claim without verifying the signature; the server
// remains the authority and rejects forged tokens itself.
func expired(token string, now time.Time) bool {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !now.Before(claims.ExpiresAt.Time)
}
