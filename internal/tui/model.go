// Package tui provides the Bubble Tea interview interface.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/mockprep/internal/api"
	"github.com/verte-zerg/mockprep/internal/auth"
	"github.com/verte-zerg/mockprep/internal/credit"
	"github.com/verte-zerg/mockprep/internal/interview"
	"github.com/verte-zerg/mockprep/internal/model"
	"github.com/verte-zerg/mockprep/internal/payment"
)

type screen int

const (
	screenLanding screen = iota
	screenAuth
	screenSelection
	screenInterview
	screenReport
	screenPayment
)

// OptionsSource loads the selection enumerations.
type OptionsSource interface {
	Options(ctx context.Context) (model.Options, error)
}

// Deps wires the UI to the application services.
type Deps struct {
	Auth                  *auth.Manager
	Options               OptionsSource
	Interview             *interview.Controller
	Payments              *payment.Gate
	DefaultSpecialization string
	RequestTimeout        time.Duration
}

// Model implements the Bubble Tea interview UI.
type Model struct {
	deps Deps

	width  int
	height int

	screen  screen
	errMsg  string
	notice  string
	busy    bool
	spinner spinner.Model
	profile *model.UserProfile

	// refreshing is set when a profile refresh holds the busy flag.
	refreshing bool

	form authForm

	wizard        *interview.Wizard
	options       model.Options
	optionsLoaded bool
	choices       list.Model

	answer         textarea.Model
	confirmAbandon bool
	tickID         int

	reportView viewport.Model

	presentation   *payment.Presentation
	plans          list.Model
	pendingPayment *model.Payment
}

// NewModel constructs the UI and resumes the stored interview phase.
func NewModel(deps Deps) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = codeStyle

	m := &Model{
		deps:       deps,
		spinner:    sp,
		profile:    deps.Auth.Profile(),
		form:       newAuthForm(modeLogin),
		choices:    newChoiceList(),
		plans:      newChoiceList(),
		answer:     newAnswerArea(),
		reportView: viewport.New(80, 20),
	}
	m.resume()
	return m
}

func (m *Model) resume() {
	switch m.deps.Interview.Phase() {
	case model.PhaseInProgress:
		m.screen = screenInterview
	case model.PhaseFinished:
		m.openReport()
	case model.PhaseAuthRequired:
		m.screen = screenAuth
	case model.PhaseSelecting:
		m.screen = screenSelection
	default:
		m.screen = screenLanding
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{}
	if m.deps.Auth.Token() != "" {
		cmds = append(cmds, m.refreshProfileCmd())
	}
	switch m.screen {
	case screenInterview:
		cmds = append(cmds, m.answer.Focus(), m.restartTimer(), m.startRequest(m.reconcileCmd()))
	case screenSelection:
		cmds = append(cmds, m.openSelection())
	case screenAuth:
		cmds = append(cmds, m.form.focusCurrent())
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		return m, nil
	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tickMsg:
		if msg.id != m.tickID || m.screen != screenInterview {
			return m, nil
		}
		return m, tickCmd(m.tickID)
	case profileMsg:
		return m, m.handleProfile(msg)
	case authDoneMsg:
		return m, m.handleAuthDone(msg)
	case optionsMsg:
		return m, m.handleOptions(msg)
	case startedMsg:
		return m, m.handleStarted(msg)
	case submittedMsg:
		return m, m.handleSubmitted(msg)
	case finishedMsg:
		return m, m.handleFinished(msg)
	case reconciledMsg:
		return m, m.handleReconciled(msg)
	case plansMsg:
		return m, m.handlePlans(msg)
	case checkoutMsg:
		return m, m.handleCheckout(msg)
	case completedMsg:
		return m, m.handleCompleted(msg)
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.errMsg != "" && msg.Type == tea.KeyEsc {
			m.errMsg = ""
			return m, nil
		}
		if m.busy {
			return m, nil
		}
		switch m.screen {
		case screenAuth:
			return m, m.updateAuth(msg)
		case screenSelection:
			return m, m.updateSelection(msg)
		case screenInterview:
			return m, m.updateInterview(msg)
		case screenReport:
			return m, m.updateReport(msg)
		case screenPayment:
			return m, m.updatePayment(msg)
		default:
			return m, m.updateLanding(msg)
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	var body string
	switch m.screen {
	case screenAuth:
		body = m.viewAuth()
	case screenSelection:
		body = m.viewSelection()
	case screenInterview:
		body = m.viewInterview()
	case screenReport:
		body = m.viewReport()
	case screenPayment:
		body = m.viewPayment()
	default:
		body = m.viewLanding()
	}

	parts := []string{}
	if m.errMsg != "" {
		parts = append(parts, errorStyle.Render(m.errMsg+"  (esc to dismiss)"))
	}
	if m.notice != "" {
		parts = append(parts, mutedStyle.Render(m.notice))
	}
	parts = append(parts, body)
	if m.busy {
		parts = append(parts, m.spinner.View()+" "+mutedStyle.Render("Please wait..."))
	}
	content := lipgloss.JoinVertical(lipgloss.Left, parts...)

	footer := m.renderFooter()
	if m.width == 0 || m.height < 3 {
		return content + "\n" + footer
	}
	contentWidth := m.contentWidth()
	content = lipgloss.NewStyle().Width(contentWidth).Render(content)
	bodyHeight := m.height - 1
	placed := lipgloss.Place(m.width, bodyHeight, lipgloss.Center, lipgloss.Center, content)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
	return placed + "\n" + footerLine
}

func (m *Model) contentWidth() int {
	if m.width == 0 {
		return 80
	}
	return max(20, int(float64(m.width)*0.70))
}

func (m *Model) updateLayout() {
	w := m.contentWidth()
	listHeight := max(8, m.height-8)
	m.choices.SetSize(w, listHeight)
	m.plans.SetSize(w, listHeight)
	m.answer.SetWidth(w)
	m.answer.SetHeight(max(4, m.height/4))
	m.reportView.Width = w
	m.reportView.Height = max(5, m.height-4)
	if m.screen == screenReport {
		m.openReport()
	}
}

func (m *Model) renderFooter() string {
	segments := []string{}
	if m.profile == nil {
		segments = append(segments, "Not signed in")
	} else {
		who := m.profile.Email
		if who == "" {
			who = m.profile.Name
		}
		segments = append(segments, "Signed in as "+who)
		if m.profile.TrialQuestionFlag {
			segments = append(segments, "Trial available")
		}
		segments = append(segments, fmt.Sprintf("Paid %d", m.profile.PaidQuestionsLeft))
	}
	if help := m.helpLine(); help != "" {
		segments = append(segments, help)
	}
	return footerStyle.Render(strings.Join(segments, " · "))
}

func (m *Model) helpLine() string {
	switch m.screen {
	case screenAuth:
		return "tab next · ctrl+t login/register · enter submit · esc back"
	case screenSelection:
		return "enter choose · esc back"
	case screenInterview:
		if m.deps.Interview.State().AwaitingDecision {
			return "c continue · f finish · esc abandon"
		}
		return "ctrl+s submit · esc abandon"
	case screenReport:
		return "r new interview · esc done"
	case screenPayment:
		if m.deps.Payments.TestMode() {
			return "enter buy · c complete (test) · r refresh · esc back"
		}
		return "enter buy · r refresh · esc back"
	default:
		return "enter start · b buy · l login · o logout · q quit"
	}
}

func (m *Model) handleProfile(msg profileMsg) tea.Cmd {
	if m.refreshing {
		m.refreshing = false
		m.busy = false
	}
	if msg.err != nil {
		if errors.Is(msg.err, auth.ErrSessionExpired) || errors.Is(msg.err, auth.ErrNotAuthenticated) {
			m.profile = nil
			m.notice = api.Message(msg.err)
			return m.signedOut()
		}
		log.Printf("profile refresh failed: %v", msg.err)
		return nil
	}
	m.profile = msg.profile
	m.deps.Interview.SyncCredits(context.Background(), msg.profile)
	return nil
}

// adoptProfile reads back the profile the controller refreshed after a
// request. It reports false when that refresh signed the user out.
func (m *Model) adoptProfile() bool {
	m.profile = m.deps.Auth.Profile()
	if m.profile == nil {
		m.notice = auth.ErrSessionExpired.Error()
		return false
	}
	return true
}

// signedOut moves an active interview back to sign-in.
func (m *Model) signedOut() tea.Cmd {
	ctl := m.deps.Interview
	if ctl.Phase() == model.PhaseIdle {
		return nil
	}
	if err := ctl.LoggedOut(context.Background()); err != nil {
		log.Printf("failed to apply logout: %v", err)
		return nil
	}
	m.answer.Blur()
	m.screen = screenAuth
	m.form = newAuthForm(modeLogin)
	return m.form.focusCurrent()
}

func (m *Model) updateLanding(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q":
		return tea.Quit
	case "enter":
		return m.beginInterview()
	case "b":
		return m.openPayment()
	case "l":
		m.screen = screenAuth
		m.form = newAuthForm(modeLogin)
		return m.form.focusCurrent()
	case "o":
		if err := m.deps.Auth.Logout(context.Background()); err != nil {
			m.errMsg = err.Error()
			return nil
		}
		m.profile = nil
		m.notice = "Signed out."
	}
	return nil
}

func (m *Model) viewLanding() string {
	lines := []string{
		titleStyle.Render("mockprep"),
		"",
		"Mock interviews for analysts: pick a topic, answer up to three",
		"tasks and get a scored report with study recommendations.",
		"",
	}
	if m.profile != nil {
		lines = append(lines, fmt.Sprintf("Questions available: %d", credit.Available(m.profile)))
	}
	lines = append(lines, mutedStyle.Render("Press enter to start."))
	return strings.Join(lines, "\n")
}
