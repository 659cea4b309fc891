package tui

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/mockprep/internal/api"
	"github.com/verte-zerg/mockprep/internal/interview"
)

func newAnswerArea() textarea.Model {
	ta := textarea.New()
	ta.Placeholder = "Type your answer. Wrap code in backticks."
	ta.CharLimit = interview.MaxAnswerChars
	ta.ShowLineNumbers = false
	ta.SetWidth(60)
	ta.SetHeight(6)
	return ta
}

func (m *Model) openInterview() tea.Cmd {
	m.screen = screenInterview
	m.confirmAbandon = false
	m.answer.Reset()
	return tea.Batch(m.answer.Focus(), m.restartTimer())
}

// restartTimer invalidates any running tick loop and starts a new one.
func (m *Model) restartTimer() tea.Cmd {
	m.tickID++
	return tickCmd(m.tickID)
}

func (m *Model) updateInterview(msg tea.KeyMsg) tea.Cmd {
	ctl := m.deps.Interview
	if m.confirmAbandon {
		m.confirmAbandon = false
		if msg.String() != "y" {
			return nil
		}
		if err := ctl.Abandon(context.Background()); err != nil {
			m.errMsg = err.Error()
			return nil
		}
		m.answer.Reset()
		m.answer.Blur()
		m.screen = screenLanding
		m.notice = "Interview abandoned."
		return nil
	}

	if ctl.State().AwaitingDecision {
		switch msg.String() {
		case "c":
			if err := ctl.Continue(context.Background()); err != nil {
				m.errMsg = err.Error()
				return nil
			}
			return m.openInterview()
		case "f":
			return m.startRequest(m.finishCmd())
		case "esc":
			m.confirmAbandon = true
		}
		return nil
	}

	switch msg.String() {
	case "ctrl+s":
		return m.startRequest(m.submitCmd(m.answer.Value()))
	case "esc":
		m.confirmAbandon = true
		return nil
	}
	var cmd tea.Cmd
	m.answer, cmd = m.answer.Update(msg)
	return cmd
}

func (m *Model) handleSubmitted(msg submittedMsg) tea.Cmd {
	m.busy = false
	if msg.sessionID != m.deps.Interview.SessionID() {
		return nil
	}
	if msg.err != nil {
		switch {
		case errors.Is(msg.err, interview.ErrStaleResponse):
			return nil
		case errors.Is(msg.err, interview.ErrPaymentRequired):
			m.profile = m.deps.Auth.Profile()
			m.notice = "You have no questions left. Buy a plan, then submit again."
			m.answer.Blur()
			return m.openPayment()
		}
		m.errMsg = api.Message(msg.err)
		return nil
	}
	if !m.adoptProfile() {
		return m.signedOut()
	}
	m.answer.Blur()
	if msg.outcome == interview.MustFinish {
		m.notice = "That was the last task. Preparing your report."
		return m.startRequest(m.finishCmd())
	}
	m.notice = ""
	return nil
}

func (m *Model) handleReconciled(msg reconciledMsg) tea.Cmd {
	m.busy = false
	if msg.sessionID != m.deps.Interview.SessionID() {
		return nil
	}
	if msg.err != nil {
		if !errors.Is(msg.err, interview.ErrStaleResponse) {
			log.Printf("failed to reconcile interview: %v", msg.err)
		}
		return nil
	}
	if !msg.changed {
		return nil
	}
	m.answer.Blur()
	if !m.deps.Interview.CanContinue() {
		m.notice = "Your last answer was already scored. Preparing your report."
		return m.startRequest(m.finishCmd())
	}
	m.notice = "Your last answer was already scored."
	return nil
}

func (m *Model) handleFinished(msg finishedMsg) tea.Cmd {
	m.busy = false
	if msg.sessionID != m.deps.Interview.SessionID() {
		return nil
	}
	if msg.err != nil {
		if errors.Is(msg.err, interview.ErrStaleResponse) {
			return nil
		}
		m.errMsg = api.Message(msg.err) + " Press f to try again."
		return nil
	}
	m.notice = ""
	m.openReport()
	if !m.adoptProfile() {
		return m.signedOut()
	}
	return nil
}

func (m *Model) viewInterview() string {
	ctl := m.deps.Interview
	task, ok := ctl.CurrentTask()
	if !ok {
		return mutedStyle.Render("No task loaded.")
	}
	st := ctl.State()
	width := m.contentWidth()

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Task %d of %d", st.CurrentTaskIndex+1, len(st.Tasks))))
	b.WriteString("  ")
	b.WriteString(m.renderTimer())
	b.WriteString("\n\n")
	b.WriteString(wrapStyledRunes(buildStyledRunes(task.TaskQuestion, questionStyle, codeStyle), width))
	b.WriteString("\n\n")

	if m.confirmAbandon {
		b.WriteString(errorStyle.Render("Abandon this interview? y to confirm, any key to cancel"))
		return b.String()
	}

	if !st.AwaitingDecision || len(st.Feedbacks) == 0 {
		b.WriteString(m.answer.View())
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render(fmt.Sprintf("%d/%d characters", len([]rune(m.answer.Value())), interview.MaxAnswerChars)))
		return b.String()
	}

	fb := st.Feedbacks[len(st.Feedbacks)-1]
	b.WriteString(scoreStyle.Render(fmt.Sprintf("Score: %d/100", fb.Score)))
	b.WriteString("\n")
	if fb.DetailedFeedback != "" {
		b.WriteString(wrapPlain(fb.DetailedFeedback, width))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	if st.CanContinue {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("%d task(s) left. c to continue, f to finish.", st.TasksRemaining)))
	} else {
		b.WriteString(mutedStyle.Render("Press f to get your report."))
	}
	return b.String()
}

func (m *Model) renderTimer() string {
	ctl := m.deps.Interview
	text := fmt.Sprintf("%s / %s", formatClock(ctl.Elapsed()), formatClock(ctl.TimeLimit()))
	if ctl.Overtime() {
		return overtimeStyle.Render(text + " overtime")
	}
	return timerStyle.Render(text)
}

func formatClock(d time.Duration) string {
	secs := int(d / time.Second)
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
