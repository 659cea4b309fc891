// Package payment presents question plans and hands checkout to the browser.
package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/verte-zerg/mockprep/internal/model"
)

// ErrTestModeDisabled is returned when mock completion is used outside test mode.
var ErrTestModeDisabled = errors.New("payment completion is only available in test mode")

// Backend is the subset of the API client used for payments.
type Backend interface {
	Plans(ctx context.Context) ([]model.Plan, error)
	CreatePayment(ctx context.Context, planID, returnURL string) (model.Payment, error)
	MockCompletePayment(ctx context.Context, paymentID string) (model.PaymentStatus, error)
}

// Opener shows a confirmation URL to the user.
type Opener interface {
	Open(url string) error
}

// Config controls the gate.
type Config struct {
	TestMode  bool
	ReturnURL string
}

// Gate runs the purchase flow. The server stays the authority on credits.
type Gate struct {
	backend Backend
	opener  Opener
	cfg     Config
}

// NewGate creates a payment gate.
func NewGate(backend Backend, opener Opener, cfg Config) *Gate {
	return &Gate{backend: backend, opener: opener, cfg: cfg}
}

// TestMode reports whether mock completion is enabled.
func (g *Gate) TestMode() bool {
	return g.cfg.TestMode
}

// Presentation is one showing of the plan list.
type Presentation struct {
	gate *Gate

	mu     sync.Mutex
	plans  []model.Plan
	loaded bool
}

// Present starts a new presentation with an empty plan cache.
func (g *Gate) Present() *Presentation {
	return &Presentation{gate: g}
}

// Plans returns the plans, fetching them once per presentation.
func (p *Presentation) Plans(ctx context.Context) ([]model.Plan, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loaded {
		return p.plans, nil
	}
	plans, err := p.gate.backend.Plans(ctx)
	if err != nil {
		return nil, err
	}
	p.plans = plans
	p.loaded = true
	return plans, nil
}

// Checkout creates a payment for planID and opens its confirmation URL
// unchanged. Failures are returned as is and never retried.
func (g *Gate) Checkout(ctx context.Context, planID string) (model.Payment, error) {
	pay, err := g.backend.CreatePayment(ctx, planID, g.cfg.ReturnURL)
	if err != nil {
		return model.Payment{}, err
	}
	if pay.ConfirmationURL == "" {
		return pay, errors.New("server returned no confirmation url")
	}
	if g.opener != nil {
		if err := g.opener.Open(pay.ConfirmationURL); err != nil {
			return pay, fmt.Errorf("failed to open confirmation page: %w", err)
		}
	}
	return pay, nil
}

// MockComplete marks a payment as paid on a test-mode backend.
func (g *Gate) MockComplete(ctx context.Context, paymentID string) (model.PaymentStatus, error) {
	if !g.cfg.TestMode {
		return model.PaymentStatus{}, ErrTestModeDisabled
	}
	return g.backend.MockCompletePayment(ctx, paymentID)
}
