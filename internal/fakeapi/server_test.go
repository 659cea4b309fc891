package fakeapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func register(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/auth/register", "", map[string]string{
		"name": "Ann", "email": "ann@example.com", "password": "secret1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("register: %d %s", rec.Code, rec.Body.String())
	}
	var res struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode register: %v", err)
	}
	return res.AccessToken
}

func TestMockCompleteHiddenOutsideTestMode(t *testing.T) {
	srv := New(Config{})
	token := register(t, srv.Handler())
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/payment/mock-complete/x", token, nil)
	if rec.Code != http.StatusNotFound && rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected mock-complete to be unrouted, got %d", rec.Code)
	}
	if srv.Calls(RouteMockComplete) != 0 {
		t.Fatalf("expected no mock-complete calls")
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	srv := New(Config{TokenTTL: time.Minute, Now: func() time.Time { return now }})
	token := register(t, srv.Handler())
	now = now.Add(2 * time.Minute)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/auth/me", token, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %d", rec.Code)
	}
}

func TestFailNextInjectsStatus(t *testing.T) {
	srv := New(Config{})
	srv.FailNext(RoutePlans, http.StatusServiceUnavailable, 1)
	if rec := doJSON(t, srv.Handler(), http.MethodGet, "/payment/plans", "", nil); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected injected 503, got %d", rec.Code)
	}
	if rec := doJSON(t, srv.Handler(), http.MethodGet, "/payment/plans", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected recovery, got %d", rec.Code)
	}
	if got := srv.Calls(RoutePlans); got != 2 {
		t.Fatalf("expected 2 plan calls, got %d", got)
	}
}

func TestStartBoundedByCredits(t *testing.T) {
	srv := New(Config{})
	token := register(t, srv.Handler())
	sel := map[string]string{"specialization": "product_analyst", "experience_level": "junior", "company_tier": "tier1", "topic": "sql"}

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/interview/start", token, sel)
	if rec.Code != http.StatusOK {
		t.Fatalf("start: %d %s", rec.Code, rec.Body.String())
	}
	var res struct {
		Tasks []json.RawMessage `json:"tasks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode start: %v", err)
	}
	if len(res.Tasks) != 1 {
		t.Fatalf("trial user should get exactly 1 task, got %d", len(res.Tasks))
	}

	srv.SetCredits("ann@example.com", false, 0)
	rec = doJSON(t, srv.Handler(), http.MethodPost, "/interview/start", token, sel)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without credits, got %d", rec.Code)
	}
}
