package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/verte-zerg/mockprep/internal/api"
	"github.com/verte-zerg/mockprep/internal/model"
)

type stubBackend struct {
	calls    int
	register api.RegisterRequest
	login    api.LoginRequest
	result   model.AuthResult
	me       model.UserProfile
	err      error
}

func (b *stubBackend) Register(_ context.Context, req api.RegisterRequest) (model.AuthResult, error) {
	b.calls++
	b.register = req
	return b.result, b.err
}

func (b *stubBackend) Login(_ context.Context, req api.LoginRequest) (model.AuthResult, error) {
	b.calls++
	b.login = req
	return b.result, b.err
}

func (b *stubBackend) Me(context.Context) (model.UserProfile, error) {
	b.calls++
	return b.me, b.err
}

type stubStore struct {
	token   string
	profile *model.UserProfile
	saves   int
	clears  int
}

func (s *stubStore) SaveAuth(_ context.Context, token string, profile *model.UserProfile) error {
	s.saves++
	s.token = token
	s.profile = profile
	return nil
}

func (s *stubStore) LoadAuth(context.Context) (string, *model.UserProfile, error) {
	return s.token, s.profile, nil
}

func (s *stubStore) ClearAuth(context.Context) error {
	s.clears++
	s.token = ""
	s.profile = nil
	return nil
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	raw, err := tok.SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return raw
}

func TestRegisterValidatesBeforeNetwork(t *testing.T) {
	tests := []struct {
		name string
		in   RegisterInput
		want error
	}{
		{"mismatch", RegisterInput{Email: "a@b.c", Password: "secret1", RepeatPassword: "secret2"}, ErrPasswordMismatch},
		{"missing email", RegisterInput{Name: "Ada", Email: "   ", Password: "secret1", RepeatPassword: "secret1"}, ErrEmailRequired},
		{"blank name", RegisterInput{Name: " \t", Email: "a@b.c", Password: "secret1", RepeatPassword: "secret1"}, ErrNameRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &stubBackend{}
			m := NewManager(backend, &stubStore{})
			if _, err := m.Register(context.Background(), tt.in); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if backend.calls != 0 {
				t.Fatalf("expected no backend calls, got %d", backend.calls)
			}
		})
	}
}

func TestPasswordBounds(t *testing.T) {
	backend := &stubBackend{}
	m := NewManager(backend, &stubStore{})
	var lengthErr *PasswordLengthError

	_, err := m.Register(context.Background(), RegisterInput{Email: "a@b.c", Password: "12345", RepeatPassword: "12345"})
	if !errors.As(err, &lengthErr) || lengthErr.Min != MinRegisterPassword {
		t.Fatalf("expected register length error, got %v", err)
	}
	long := make([]rune, MaxPassword+1)
	for i := range long {
		long[i] = 'ж'
	}
	_, err = m.Login(context.Background(), "ada", string(long))
	if !errors.As(err, &lengthErr) {
		t.Fatalf("expected login length error, got %v", err)
	}
	_, err = m.Login(context.Background(), "ada", "")
	if !errors.As(err, &lengthErr) || lengthErr.Min != MinLoginPassword {
		t.Fatalf("expected empty password error, got %v", err)
	}
	if _, err := m.Login(context.Background(), "  ", "x"); !errors.Is(err, ErrLoginRequired) {
		t.Fatalf("expected ErrLoginRequired, got %v", err)
	}
	if backend.calls != 0 {
		t.Fatalf("expected no backend calls, got %d", backend.calls)
	}
}

func TestRegisterStoresCredentials(t *testing.T) {
	backend := &stubBackend{result: model.AuthResult{AccessToken: "tok", User: model.UserProfile{UserID: "u1", TrialQuestionFlag: true}}}
	store := &stubStore{}
	m := NewManager(backend, store)

	profile, err := m.Register(context.Background(), RegisterInput{
		Name:             " Ada ",
		Email:            " ada@example.com ",
		TelegramUsername: "  ",
		Password:         "secret1",
		RepeatPassword:   "secret1",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if profile.UserID != "u1" || !m.IsAuthenticated() || m.Token() != "tok" {
		t.Fatalf("expected authenticated manager, got profile=%+v token=%q", profile, m.Token())
	}
	if backend.register.Email != "ada@example.com" || backend.register.TelegramUsername != "" || backend.register.Name != "Ada" {
		t.Fatalf("unexpected request: %+v", backend.register)
	}
	if store.saves != 1 || store.token != "tok" {
		t.Fatalf("expected one store write, got saves=%d token=%q", store.saves, store.token)
	}
}

func TestLoginUnauthorizedMapsToInvalidCredentials(t *testing.T) {
	backend := &stubBackend{err: &api.Error{Status: 401, Message: "Invalid login or password"}}
	m := NewManager(backend, &stubStore{})
	_, err := m.Login(context.Background(), " ada@example.com ", "pw")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if backend.login.Login != "ada@example.com" {
		t.Fatalf("expected trimmed login, got %q", backend.login.Login)
	}
	if m.IsAuthenticated() {
		t.Fatalf("expected unauthenticated manager")
	}
}

func TestRefreshWithoutToken(t *testing.T) {
	backend := &stubBackend{}
	store := &stubStore{}
	m := NewManager(backend, store)
	if _, err := m.Refresh(context.Background()); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	if backend.calls != 0 || store.clears != 1 {
		t.Fatalf("expected logout without calls, got calls=%d clears=%d", backend.calls, store.clears)
	}
}

func TestRefreshExpiredTokenSkipsNetwork(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	backend := &stubBackend{}
	store := &stubStore{token: signedToken(t, now.Add(-time.Minute)), profile: &model.UserProfile{UserID: "u1"}}
	m := NewManager(backend, store)
	m.now = func() time.Time { return now }
	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := m.Refresh(context.Background()); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if backend.calls != 0 {
		t.Fatalf("expected no backend calls, got %d", backend.calls)
	}
	if m.IsAuthenticated() || store.token != "" {
		t.Fatalf("expected credentials to be cleared")
	}
}

func TestRefreshUnauthorizedLogsOut(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	backend := &stubBackend{err: &api.Error{Status: 401, Message: "expired"}}
	store := &stubStore{token: signedToken(t, now.Add(time.Hour)), profile: &model.UserProfile{UserID: "u1"}}
	m := NewManager(backend, store)
	m.now = func() time.Time { return now }
	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := m.Refresh(context.Background()); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if m.IsAuthenticated() {
		t.Fatalf("expected logout after 401")
	}
}

func TestRefreshKeepsStateOnOtherErrors(t *testing.T) {
	backend := &stubBackend{err: &api.Error{Status: 503, Message: api.ServerUnavailableMessage}}
	store := &stubStore{token: "opaque-token", profile: &model.UserProfile{UserID: "u1", PaidQuestionsLeft: 2}}
	m := NewManager(backend, store)
	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := m.Refresh(context.Background()); api.StatusOf(err) != 503 {
		t.Fatalf("expected 503 error, got %v", err)
	}
	if !m.IsAuthenticated() || m.Profile().PaidQuestionsLeft != 2 {
		t.Fatalf("expected state to be kept")
	}

	backend.err = nil
	backend.me = model.UserProfile{UserID: "u1", PaidQuestionsLeft: 7}
	profile, err := m.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if profile.PaidQuestionsLeft != 7 || store.profile.PaidQuestionsLeft != 7 {
		t.Fatalf("expected refreshed profile to be stored, got %+v", store.profile)
	}
}
