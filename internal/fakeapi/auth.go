package fakeapi

import (
	"context"
	"net/http"
	"strings"
	"unicode/utf8"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/verte-zerg/mockprep/internal/model"
)

type userCtxKey struct{}

func normalizeLogin(login string) string {
	login = strings.ToLower(strings.TrimSpace(login))
	return strings.TrimPrefix(login, "@")
}

func (s *Server) issueToken(userID string) (string, error) {
	now := s.cfg.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.Secret)
}

func (s *Server) parseToken(raw string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.cfg.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.cfg.Now))
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			writeDetail(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		userID, err := s.parseToken(strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")))
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		s.mu.Lock()
		_, ok := s.users[userID]
		s.mu.Unlock()
		if !ok {
			writeDetail(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userCtxKey{}, userID)))
	})
}

func userIDFrom(r *http.Request) string {
	id, _ := r.Context().Value(userCtxKey{}).(string)
	return id
}

// profileLocked must be called with s.mu held.
func (u *user) profileLocked() model.UserProfile {
	p := u.profile
	p.TrialQuestionFlag = u.trial
	p.PaidQuestionsLeft = u.paidLeft
	p.QuestionsRemaining = u.credits()
	return p
}

func (u *user) credits() int {
	n := u.paidLeft
	if u.trial {
		n++
	}
	return n
}

// consume spends the trial question first, then a paid one.
func (u *user) consume() bool {
	if u.trial {
		u.trial = false
		return true
	}
	if u.paidLeft > 0 {
		u.paidLeft--
		return true
	}
	return false
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name             string `json:"name"`
		Email            string `json:"email"`
		TelegramUsername string `json:"telegram_username"`
		Password         string `json:"password"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	n := utf8.RuneCountInString(req.Password)
	if n < 6 || n > 128 {
		writeValidation(w, validationItem{
			Loc:  []string{"body", "password"},
			Msg:  "String should have between 6 and 128 characters",
			Type: "string_length",
		})
		return
	}
	email := normalizeLogin(req.Email)
	if email == "" {
		writeValidation(w, validationItem{Loc: []string{"body", "email"}, Msg: "Field required", Type: "missing"})
		return
	}
	telegram := normalizeLogin(req.TelegramUsername)

	s.mu.Lock()
	if _, exists := s.logins[email]; exists {
		s.mu.Unlock()
		writeDetail(w, http.StatusBadRequest, "Email already registered")
		return
	}
	if telegram != "" {
		if _, exists := s.logins[telegram]; exists {
			s.mu.Unlock()
			writeDetail(w, http.StatusBadRequest, "Telegram username already registered")
			return
		}
	}
	id := uuid.NewString()
	u := &user{
		profile: model.UserProfile{
			UserID: id,
			Name:   strings.TrimSpace(req.Name),
			Email:  strings.TrimSpace(req.Email),
		},
		password: req.Password,
		trial:    true,
		emailKey: email,
	}
	if telegram != "" {
		handle := telegram
		u.profile.TelegramUsername = &handle
		u.telegramKey = telegram
		s.logins[telegram] = id
	}
	s.users[id] = u
	s.logins[email] = id
	profile := u.profileLocked()
	s.mu.Unlock()

	token, err := s.issueToken(id)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "token error")
		return
	}
	writeJSON(w, http.StatusOK, model.AuthResult{AccessToken: token, TokenType: "bearer", User: profile})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Login    string `json:"login"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	s.mu.Lock()
	id, ok := s.logins[normalizeLogin(req.Login)]
	var profile model.UserProfile
	if ok {
		u := s.users[id]
		if u.password != req.Password {
			ok = false
		} else {
			profile = u.profileLocked()
		}
	}
	s.mu.Unlock()
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Invalid login or password")
		return
	}
	token, err := s.issueToken(id)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "token error")
		return
	}
	writeJSON(w, http.StatusOK, model.AuthResult{AccessToken: token, TokenType: "bearer", User: profile})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	profile := s.users[userIDFrom(r)].profileLocked()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, profile)
}
