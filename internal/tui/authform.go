package tui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/mockprep/internal/api"
	"github.com/verte-zerg/mockprep/internal/auth"
	"github.com/verte-zerg/mockprep/internal/model"
)

type authMode int

const (
	modeLogin authMode = iota
	modeRegister
)

type authField struct {
	label    string
	password bool
}

var (
	loginFields = []authField{
		{label: "Email or Telegram"},
		{label: "Password", password: true},
	}
	registerFields = []authField{
		{label: "Name"},
		{label: "Email"},
		{label: "Telegram (optional)"},
		{label: "Password", password: true},
		{label: "Repeat password", password: true},
	}
)

type authForm struct {
	mode   authMode
	fields []authField
	inputs []textinput.Model
	focus  int
}

func newAuthForm(mode authMode) authForm {
	fields := loginFields
	if mode == modeRegister {
		fields = registerFields
	}
	inputs := make([]textinput.Model, len(fields))
	for i, f := range fields {
		ti := textinput.New()
		ti.Prompt = ""
		ti.CharLimit = 128
		ti.Width = 40
		if f.password {
			ti.EchoMode = textinput.EchoPassword
			ti.EchoCharacter = '•'
		}
		inputs[i] = ti
	}
	return authForm{mode: mode, fields: fields, inputs: inputs}
}

func (f *authForm) focusCurrent() tea.Cmd {
	for i := range f.inputs {
		f.inputs[i].Blur()
	}
	return f.inputs[f.focus].Focus()
}

func (f *authForm) move(delta int) tea.Cmd {
	n := len(f.inputs)
	f.focus = ((f.focus+delta)%n + n) % n
	return f.focusCurrent()
}

func (f *authForm) value(i int) string {
	return f.inputs[i].Value()
}

func (f *authForm) onLastField() bool {
	return f.focus == len(f.inputs)-1
}

func (f *authForm) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd
}

func (m *Model) updateAuth(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.screen = screenLanding
		if err := m.deps.Interview.Abandon(context.Background()); err != nil {
			m.errMsg = err.Error()
		}
		return nil
	case "ctrl+t":
		next := modeRegister
		if m.form.mode == modeRegister {
			next = modeLogin
		}
		m.form = newAuthForm(next)
		return m.form.focusCurrent()
	case "tab", "down":
		return m.form.move(1)
	case "shift+tab", "up":
		return m.form.move(-1)
	case "enter":
		if !m.form.onLastField() {
			return m.form.move(1)
		}
		return m.submitAuth()
	}
	return m.form.update(msg)
}

func (m *Model) submitAuth() tea.Cmd {
	if m.form.mode == modeLogin {
		return m.startRequest(m.loginCmd(m.form.value(0), m.form.value(1)))
	}
	return m.startRequest(m.registerCmd(auth.RegisterInput{
		Name:             m.form.value(0),
		Email:            m.form.value(1),
		TelegramUsername: m.form.value(2),
		Password:         m.form.value(3),
		RepeatPassword:   m.form.value(4),
	}))
}

func (m *Model) handleAuthDone(msg authDoneMsg) tea.Cmd {
	m.busy = false
	if msg.err != nil {
		m.errMsg = authErrorText(msg.err)
		return nil
	}
	m.profile = msg.profile
	m.notice = ""
	m.form = newAuthForm(modeLogin)
	ctl := m.deps.Interview
	ctl.SyncCredits(context.Background(), msg.profile)
	if ctl.Phase() == model.PhaseAuthRequired {
		if err := ctl.Authenticated(context.Background()); err != nil {
			m.errMsg = err.Error()
			return nil
		}
		return m.routeAfterAuth()
	}
	m.screen = screenLanding
	return nil
}

func authErrorText(err error) string {
	var lengthErr *auth.PasswordLengthError
	switch {
	case errors.As(err, &lengthErr):
		return lengthErr.Error()
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrPasswordMismatch),
		errors.Is(err, auth.ErrEmailRequired),
		errors.Is(err, auth.ErrNameRequired),
		errors.Is(err, auth.ErrLoginRequired):
		return err.Error()
	default:
		return api.Message(err)
	}
}

func (m *Model) viewAuth() string {
	loginTab, registerTab := activeTabStyle, inactiveTabStyle
	title := "Sign in"
	if m.form.mode == modeRegister {
		loginTab, registerTab = inactiveTabStyle, activeTabStyle
		title = "Create an account"
	}
	var b strings.Builder
	b.WriteString(loginTab.Render("Login") + " " + registerTab.Render("Register"))
	b.WriteString("\n\n")
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n\n")
	for i, f := range m.form.fields {
		label := mutedStyle.Render(f.label)
		if i == m.form.focus {
			label = codeStyle.Render("> " + f.label)
		}
		b.WriteString(label + "\n")
		b.WriteString(cardStyle.Render(m.form.inputs[i].View()) + "\n")
	}
	return b.String()
}
