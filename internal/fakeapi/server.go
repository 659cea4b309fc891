// Package fakeapi implements an in-memory interview backend for tests and local development.
package fakeapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/verte-zerg/mockprep/internal/model"
)

const (
	maxTasksPerSession = 3
	maxAnswerLength    = 3000
	defaultTimeLimit   = 20
)

// Config controls the fake backend.
type Config struct {
	// TestMode exposes the mock payment completion endpoint.
	TestMode bool
	Secret   []byte
	TokenTTL time.Duration
	Now      func() time.Time
	// BaseURL is used to build confirmation URLs.
	BaseURL string
}

type user struct {
	profile      model.UserProfile
	password     string
	trial        bool
	paidLeft     int
	telegramKey  string
	emailKey     string
	paymentCount int
}

type session struct {
	id        string
	userID    string
	selection model.Selection
	tasks     []model.Task
	index     int
	feedbacks []model.Feedback
	status    string
	report    *model.FinalReport
}

type payment struct {
	id        string
	userID    string
	plan      model.Plan
	completed bool
}

type failure struct {
	status int
	times  int
}

// Server is the fake backend.
type Server struct {
	mu       sync.Mutex
	cfg      Config
	router   chi.Router
	users    map[string]*user
	logins   map[string]string
	sessions map[string]*session
	payments map[string]*payment
	calls    map[string]int
	failures map[string]*failure
	nextTask int
}

// New returns a fake backend.
func New(cfg Config) *Server {
	if len(cfg.Secret) == 0 {
		cfg.Secret = []byte("mockprep-dev-secret")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8000"
	}
	s := &Server{
		cfg:      cfg,
		users:    map[string]*user{},
		logins:   map[string]string{},
		sessions: map[string]*session{},
		payments: map[string]*payment{},
		calls:    map[string]int{},
		failures: map[string]*failure{},
		nextTask: 100,
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Route names accepted by Calls and FailNext.
const (
	RouteRegister     = "register"
	RouteLogin        = "login"
	RouteMe           = "me"
	RouteOptions      = "options"
	RouteStart        = "start"
	RouteSession      = "session"
	RouteAnswer       = "answer"
	RouteFinish       = "finish"
	RoutePlans        = "plans"
	RouteCreatePay    = "create_payment"
	RouteMockComplete = "mock_complete"
)

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", s.track(RouteRegister, s.handleRegister))
		r.Post("/login", s.track(RouteLogin, s.handleLogin))
		r.With(s.requireAuth).Get("/me", s.track(RouteMe, s.handleMe))
	})

	r.Route("/interview", func(r chi.Router) {
		opts := model.DefaultOptions()
		r.Get("/specializations", s.track(RouteOptions, s.handleOptions("specializations", opts.Specializations)))
		r.Get("/experience-levels", s.track(RouteOptions, s.handleOptions("levels", opts.ExperienceLevels)))
		r.Get("/company-tiers", s.track(RouteOptions, s.handleOptions("tiers", opts.CompanyTiers)))
		r.Get("/topics", s.track(RouteOptions, s.handleOptions("topics", opts.Topics)))
		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Post("/start", s.track(RouteStart, s.handleStart))
			r.Get("/session/{sessionID}", s.track(RouteSession, s.handleSession))
			r.Post("/session/{sessionID}/answer", s.track(RouteAnswer, s.handleAnswer))
			r.Post("/session/{sessionID}/finish", s.track(RouteFinish, s.handleFinish))
		})
	})

	r.Route("/payment", func(r chi.Router) {
		r.Get("/plans", s.track(RoutePlans, s.handlePlans))
		r.With(s.requireAuth).Post("/create", s.track(RouteCreatePay, s.handleCreatePayment))
		if s.cfg.TestMode {
			r.With(s.requireAuth).Post("/mock-complete/{paymentID}", s.track(RouteMockComplete, s.handleMockComplete))
		}
	})
	return r
}

// track counts calls per route and serves injected failures.
func (s *Server) track(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[route]++
		var status int
		if f := s.failures[route]; f != nil && f.times > 0 {
			f.times--
			status = f.status
		}
		s.mu.Unlock()

		if status != 0 {
			writeDetail(w, status, "injected failure")
			return
		}
		next(w, r)
	}
}

// Calls returns how many requests reached the named route.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// FailNext makes the next n requests to route fail with status.
func (s *Server) FailNext(route string, status, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = &failure{status: status, times: n}
}

// SetCredits overrides the balance of the user with the given email.
func (s *Server) SetCredits(email string, trial bool, paid int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.logins[normalizeLogin(email)]
	if !ok {
		return false
	}
	u := s.users[id]
	u.trial = trial
	u.paidLeft = paid
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]any{"detail": detail})
}

type validationItem struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

func writeValidation(w http.ResponseWriter, items ...validationItem) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": items})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}
