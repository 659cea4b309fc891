package tui

import (
	"context"
	"errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/mockprep/internal/interview"
	"github.com/verte-zerg/mockprep/internal/report"
)

// openReport renders the final report into the scrollable view.
func (m *Model) openReport() {
	m.screen = screenReport
	st := m.deps.Interview.State()
	if st.FinalReport == nil {
		m.reportView.SetContent(mutedStyle.Render("No report available."))
		return
	}
	var b strings.Builder
	if err := report.Render(&b, *st.FinalReport); err != nil {
		m.errMsg = err.Error()
	}
	m.reportView.SetContent(wrapPlain(b.String(), m.reportView.Width))
	m.reportView.GotoTop()
}

func (m *Model) updateReport(msg tea.KeyMsg) tea.Cmd {
	ctx := context.Background()
	ctl := m.deps.Interview
	switch msg.String() {
	case "r":
		if err := ctl.Retry(ctx, m.profile); err != nil {
			if errors.Is(err, interview.ErrPaymentRequired) {
				m.notice = "A new interview needs three questions of credit."
				return m.openPayment()
			}
			m.errMsg = err.Error()
			return nil
		}
		m.screen = screenLanding
		return m.beginInterview()
	case "esc", "q":
		if err := ctl.Abandon(ctx); err != nil {
			m.errMsg = err.Error()
			return nil
		}
		m.screen = screenLanding
		return nil
	}
	var cmd tea.Cmd
	m.reportView, cmd = m.reportView.Update(msg)
	return cmd
}

func (m *Model) viewReport() string {
	return m.reportView.View()
}
