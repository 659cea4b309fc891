package fakeapi

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/verte-zerg/mockprep/internal/model"
)

// Plans are the question packs sold by the fake backend.
var Plans = []model.Plan{
	{PlanID: "3_questions", Name: "3 questions", QuestionsCount: 3, Price: 299, Currency: "RUB", Description: "One full interview"},
	{PlanID: "6_questions", Name: "6 questions", QuestionsCount: 6, Price: 499, Currency: "RUB", Description: "Two full interviews"},
	{PlanID: "12_questions", Name: "12 questions", QuestionsCount: 12, Price: 899, Currency: "RUB", Description: "Four full interviews"},
	{PlanID: "24_questions", Name: "24 questions", QuestionsCount: 24, Price: 1499, Currency: "RUB", Description: "Eight full interviews"},
}

func findPlan(id string) (model.Plan, bool) {
	for _, p := range Plans {
		if p.PlanID == id {
			return p, true
		}
	}
	return model.Plan{}, false
}

func (s *Server) handlePlans(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"plans": Plans})
}

func (s *Server) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlanID    string `json:"plan_id"`
		ReturnURL string `json:"return_url"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	plan, ok := findPlan(req.PlanID)
	if !ok {
		writeDetail(w, http.StatusBadRequest, "Unknown plan: "+req.PlanID)
		return
	}
	p := &payment{id: uuid.NewString(), userID: userIDFrom(r), plan: plan}

	s.mu.Lock()
	s.payments[p.id] = p
	s.users[p.userID].paymentCount++
	s.mu.Unlock()

	confirm := s.cfg.BaseURL + "/payment/mock?payment_id=" + url.QueryEscape(p.id)
	if req.ReturnURL != "" {
		confirm += "&return_url=" + url.QueryEscape(req.ReturnURL)
	}
	writeJSON(w, http.StatusOK, model.Payment{
		PaymentID:       p.id,
		ConfirmationURL: confirm,
		Status:          "pending",
		Amount:          plan.Price,
		Currency:        plan.Currency,
	})
}

func (s *Server) handleMockComplete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "paymentID")
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok || p.userID != userIDFrom(r) {
		writeDetail(w, http.StatusNotFound, "Payment not found")
		return
	}
	if !p.completed {
		p.completed = true
		s.users[p.userID].paidLeft += p.plan.QuestionsCount
	}
	writeJSON(w, http.StatusOK, model.PaymentStatus{Status: "success", Message: "Payment completed successfully"})
}
