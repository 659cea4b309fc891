package tui

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/mockprep/internal/api"
	"github.com/verte-zerg/mockprep/internal/credit"
	"github.com/verte-zerg/mockprep/internal/interview"
	"github.com/verte-zerg/mockprep/internal/model"
)

type choiceItem struct {
	id    string
	title string
	desc  string
}

func (i choiceItem) Title() string       { return i.title }
func (i choiceItem) Description() string { return i.desc }
func (i choiceItem) FilterValue() string { return i.title }

func newChoiceList() list.Model {
	l := list.New(nil, list.NewDefaultDelegate(), 60, 16)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.Styles.Title = titleStyle
	return l
}

func optionItems(opts []model.Option) []list.Item {
	items := make([]list.Item, 0, len(opts))
	for _, o := range opts {
		items = append(items, choiceItem{id: o.ID, title: o.Name, desc: o.Description})
	}
	return items
}

// beginInterview routes the start action through the paywall.
func (m *Model) beginInterview() tea.Cmd {
	ctx := context.Background()
	ctl := m.deps.Interview
	if m.profile == nil {
		if err := ctl.Begin(ctx, false); err != nil {
			m.errMsg = err.Error()
			return nil
		}
		m.screen = screenAuth
		m.notice = "Sign in to start an interview."
		m.form = newAuthForm(modeLogin)
		return m.form.focusCurrent()
	}
	if credit.Route(m.profile, credit.StartThreshold) == credit.ToPayment {
		m.notice = "You have no questions left."
		return m.openPayment()
	}
	if err := ctl.Begin(ctx, true); err != nil {
		m.errMsg = err.Error()
		return nil
	}
	return m.openSelection()
}

// routeAfterAuth continues an interview that waited for sign-in.
func (m *Model) routeAfterAuth() tea.Cmd {
	if credit.Route(m.profile, credit.StartThreshold) == credit.ToPayment {
		m.notice = "You have no questions left."
		if err := m.deps.Interview.Abandon(context.Background()); err != nil {
			log.Printf("failed to leave selection: %v", err)
		}
		return m.openPayment()
	}
	return m.openSelection()
}

func (m *Model) openSelection() tea.Cmd {
	m.screen = screenSelection
	if !m.optionsLoaded {
		return m.startRequest(m.optionsCmd())
	}
	m.wizard = interview.NewWizard(m.options, m.deps.DefaultSpecialization)
	m.syncChoices()
	return nil
}

func (m *Model) handleOptions(msg optionsMsg) tea.Cmd {
	m.busy = false
	opts := msg.opts
	if msg.err != nil {
		log.Printf("failed to load options, using defaults: %v", msg.err)
		opts = model.DefaultOptions()
	}
	m.options = opts
	m.optionsLoaded = true
	if m.screen != screenSelection {
		return nil
	}
	m.wizard = interview.NewWizard(m.options, m.deps.DefaultSpecialization)
	m.syncChoices()
	return nil
}

func (m *Model) syncChoices() {
	if m.wizard == nil || m.wizard.Done() {
		return
	}
	pos, total := m.wizard.Position()
	m.choices.Title = fmt.Sprintf("%s (%d/%d)", m.wizard.Step(), pos, total-1)
	opts := m.wizard.Options()
	m.choices.SetItems(optionItems(opts))
	selected := 0
	for i, o := range opts {
		if o.ID == m.wizard.Chosen() {
			selected = i
		}
	}
	m.choices.Select(selected)
}

func (m *Model) updateSelection(msg tea.KeyMsg) tea.Cmd {
	if m.wizard == nil {
		if msg.String() == "esc" {
			return m.leaveSelection()
		}
		return nil
	}
	switch msg.String() {
	case "esc", "backspace":
		if !m.wizard.Back() {
			return m.leaveSelection()
		}
		m.syncChoices()
		return nil
	case "enter":
		if m.wizard.Done() {
			sel, err := m.wizard.Selection()
			if err != nil {
				m.errMsg = err.Error()
				return nil
			}
			return m.startRequest(m.startCmd(sel))
		}
		item, ok := m.choices.SelectedItem().(choiceItem)
		if !ok {
			return nil
		}
		if err := m.wizard.Choose(item.id); err != nil {
			m.errMsg = err.Error()
			return nil
		}
		m.syncChoices()
		return nil
	}
	if m.wizard.Done() {
		return nil
	}
	var cmd tea.Cmd
	m.choices, cmd = m.choices.Update(msg)
	return cmd
}

func (m *Model) leaveSelection() tea.Cmd {
	if err := m.deps.Interview.Abandon(context.Background()); err != nil {
		m.errMsg = err.Error()
	}
	m.wizard = nil
	m.screen = screenLanding
	return nil
}

func (m *Model) handleStarted(msg startedMsg) tea.Cmd {
	m.busy = false
	if msg.err != nil {
		if errors.Is(msg.err, interview.ErrPaymentRequired) {
			m.notice = msg.err.Error()
			if err := m.deps.Interview.Abandon(context.Background()); err != nil {
				log.Printf("failed to leave selection: %v", err)
			}
			return m.openPayment()
		}
		m.errMsg = api.Message(msg.err)
		return nil
	}
	m.wizard = nil
	m.notice = ""
	return m.openInterview()
}

func (m *Model) viewSelection() string {
	if m.wizard == nil {
		return mutedStyle.Render("Loading options...")
	}
	if !m.wizard.Done() {
		return m.choices.View()
	}
	sel, err := m.wizard.Selection()
	if err != nil {
		return err.Error()
	}
	rows := []struct {
		step interview.Step
		id   string
	}{
		{interview.StepSpecialization, sel.Specialization},
		{interview.StepExperience, sel.ExperienceLevel},
		{interview.StepTier, sel.CompanyTier},
		{interview.StepTopic, sel.Topic},
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("Ready to start") + "\n\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "%s: %s\n", mutedStyle.Render(r.step.String()), m.wizard.Describe(r.step, r.id))
	}
	b.WriteString("\n" + mutedStyle.Render("Press enter to begin, esc to change."))
	return b.String()
}
