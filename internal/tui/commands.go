package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/mockprep/internal/auth"
	"github.com/verte-zerg/mockprep/internal/interview"
	"github.com/verte-zerg/mockprep/internal/model"
	"github.com/verte-zerg/mockprep/internal/payment"
)

const defaultRequestTimeout = 90 * time.Second

type profileMsg struct {
	profile *model.UserProfile
	err     error
}

type authDoneMsg struct {
	profile *model.UserProfile
	err     error
}

type optionsMsg struct {
	opts model.Options
	err  error
}

type startedMsg struct {
	err error
}

type submittedMsg struct {
	sessionID string
	outcome   interview.Outcome
	err       error
}

type finishedMsg struct {
	sessionID string
	report    model.FinalReport
	err       error
}

type reconciledMsg struct {
	sessionID string
	changed   bool
	err       error
}

type plansMsg struct {
	pres  *payment.Presentation
	plans []model.Plan
	err   error
}

type checkoutMsg struct {
	payment model.Payment
	err     error
}

type completedMsg struct {
	status model.PaymentStatus
	err    error
}

type tickMsg struct {
	id int
}

// run executes fn off the UI loop with a bounded context.
func (m *Model) run(fn func(ctx context.Context) tea.Msg) tea.Cmd {
	timeout := m.deps.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return fn(ctx)
	}
}

// startRequest marks the UI busy and runs cmd with the spinner.
func (m *Model) startRequest(cmd tea.Cmd) tea.Cmd {
	m.busy = true
	m.errMsg = ""
	return tea.Batch(cmd, m.spinner.Tick)
}

func (m *Model) refreshProfileCmd() tea.Cmd {
	mgr := m.deps.Auth
	return m.run(func(ctx context.Context) tea.Msg {
		profile, err := mgr.Refresh(ctx)
		return profileMsg{profile: profile, err: err}
	})
}

func (m *Model) loginCmd(identifier, password string) tea.Cmd {
	mgr := m.deps.Auth
	return m.run(func(ctx context.Context) tea.Msg {
		profile, err := mgr.Login(ctx, identifier, password)
		return authDoneMsg{profile: profile, err: err}
	})
}

func (m *Model) registerCmd(in auth.RegisterInput) tea.Cmd {
	mgr := m.deps.Auth
	return m.run(func(ctx context.Context) tea.Msg {
		profile, err := mgr.Register(ctx, in)
		return authDoneMsg{profile: profile, err: err}
	})
}

func (m *Model) optionsCmd() tea.Cmd {
	src := m.deps.Options
	return m.run(func(ctx context.Context) tea.Msg {
		opts, err := src.Options(ctx)
		return optionsMsg{opts: opts, err: err}
	})
}

func (m *Model) startCmd(sel model.Selection) tea.Cmd {
	ctl := m.deps.Interview
	return m.run(func(ctx context.Context) tea.Msg {
		return startedMsg{err: ctl.Start(ctx, sel)}
	})
}

func (m *Model) submitCmd(content string) tea.Cmd {
	ctl := m.deps.Interview
	sessionID := ctl.SessionID()
	return m.run(func(ctx context.Context) tea.Msg {
		outcome, err := ctl.Submit(ctx, content)
		return submittedMsg{sessionID: sessionID, outcome: outcome, err: err}
	})
}

func (m *Model) finishCmd() tea.Cmd {
	ctl := m.deps.Interview
	sessionID := ctl.SessionID()
	return m.run(func(ctx context.Context) tea.Msg {
		report, err := ctl.Finish(ctx)
		return finishedMsg{sessionID: sessionID, report: report, err: err}
	})
}

func (m *Model) reconcileCmd() tea.Cmd {
	ctl := m.deps.Interview
	sessionID := ctl.SessionID()
	return m.run(func(ctx context.Context) tea.Msg {
		changed, err := ctl.Reconcile(ctx)
		return reconciledMsg{sessionID: sessionID, changed: changed, err: err}
	})
}

func (m *Model) plansCmd(pres *payment.Presentation) tea.Cmd {
	return m.run(func(ctx context.Context) tea.Msg {
		plans, err := pres.Plans(ctx)
		return plansMsg{pres: pres, plans: plans, err: err}
	})
}

func (m *Model) checkoutCmd(planID string) tea.Cmd {
	gate := m.deps.Payments
	return m.run(func(ctx context.Context) tea.Msg {
		pay, err := gate.Checkout(ctx, planID)
		return checkoutMsg{payment: pay, err: err}
	})
}

func (m *Model) completeCmd(paymentID string) tea.Cmd {
	gate := m.deps.Payments
	return m.run(func(ctx context.Context) tea.Msg {
		status, err := gate.MockComplete(ctx, paymentID)
		return completedMsg{status: status, err: err}
	})
}

func tickCmd(id int) tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return tickMsg{id: id}
	})
}
