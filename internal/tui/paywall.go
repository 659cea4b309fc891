package tui

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/verte-zerg/mockprep/internal/api"
	"github.com/verte-zerg/mockprep/internal/model"
	"github.com/verte-zerg/mockprep/internal/payment"
)

type planItem struct {
	plan model.Plan
}

func (i planItem) Title() string {
	return fmt.Sprintf("%s: %d questions", i.plan.Name, i.plan.QuestionsCount)
}

func (i planItem) Description() string {
	price := fmt.Sprintf("%s %s", humanize.CommafWithDigits(i.plan.Price, 2), i.plan.Currency)
	if i.plan.Description == "" {
		return price
	}
	return price + " · " + i.plan.Description
}

func (i planItem) FilterValue() string { return i.plan.Name }

// openPayment shows the paywall with a fresh plan fetch.
func (m *Model) openPayment() tea.Cmd {
	m.screen = screenPayment
	m.pendingPayment = nil
	m.presentation = m.deps.Payments.Present()
	m.plans.Title = "Buy questions"
	m.plans.SetItems(nil)
	return m.startRequest(m.plansCmd(m.presentation))
}

func (m *Model) handlePlans(msg plansMsg) tea.Cmd {
	m.busy = false
	if msg.pres != m.presentation {
		return nil
	}
	if msg.err != nil {
		m.errMsg = api.Message(msg.err)
		return nil
	}
	items := make([]list.Item, 0, len(msg.plans))
	for _, p := range msg.plans {
		items = append(items, planItem{plan: p})
	}
	m.plans.SetItems(items)
	return nil
}

func (m *Model) updatePayment(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.presentation = nil
		switch m.deps.Interview.Phase() {
		case model.PhaseInProgress:
			m.screen = screenInterview
			return tea.Batch(m.answer.Focus(), m.restartTimer())
		case model.PhaseFinished:
			m.openReport()
			return nil
		}
		m.screen = screenLanding
		return nil
	case "enter":
		item, ok := m.plans.SelectedItem().(planItem)
		if !ok {
			return nil
		}
		return m.startRequest(m.checkoutCmd(item.plan.PlanID))
	case "r":
		m.refreshing = true
		return m.startRequest(m.refreshProfileCmd())
	case "c":
		if !m.deps.Payments.TestMode() || m.pendingPayment == nil {
			return nil
		}
		return m.startRequest(m.completeCmd(m.pendingPayment.PaymentID))
	}
	var cmd tea.Cmd
	m.plans, cmd = m.plans.Update(msg)
	return cmd
}

func (m *Model) handleCheckout(msg checkoutMsg) tea.Cmd {
	m.busy = false
	if msg.err != nil && !errors.Is(msg.err, payment.ErrCopiedToClipboard) {
		if msg.payment.ConfirmationURL != "" {
			m.pendingPayment = &msg.payment
			m.errMsg = fmt.Sprintf("%v. Open %s to pay.", msg.err, msg.payment.ConfirmationURL)
			return nil
		}
		m.errMsg = api.Message(msg.err)
		return nil
	}
	m.pendingPayment = &msg.payment
	if msg.err != nil {
		m.notice = payment.ErrCopiedToClipboard.Error()
	} else {
		m.notice = "Payment page opened. Press r once you have paid."
	}
	return nil
}

func (m *Model) handleCompleted(msg completedMsg) tea.Cmd {
	m.busy = false
	if msg.err != nil {
		m.errMsg = api.Message(msg.err)
		return nil
	}
	log.Printf("payment completed: %s %s", msg.status.Status, msg.status.Message)
	m.notice = "Payment " + msg.status.Status + "."
	m.pendingPayment = nil
	m.refreshing = true
	return m.startRequest(m.refreshProfileCmd())
}

func (m *Model) viewPayment() string {
	var b strings.Builder
	if len(m.plans.Items()) == 0 {
		b.WriteString(titleStyle.Render("Buy questions"))
		b.WriteString("\n\n")
		b.WriteString(mutedStyle.Render("Loading plans..."))
	} else {
		b.WriteString(m.plans.View())
	}
	if m.pendingPayment != nil {
		b.WriteString("\n\n")
		b.WriteString(mutedStyle.Render("Pending payment " + m.pendingPayment.PaymentID))
		if m.pendingPayment.ConfirmationURL != "" {
			b.WriteString("\n")
			b.WriteString(wrapPlain(m.pendingPayment.ConfirmationURL, m.contentWidth()))
		}
	}
	return b.String()
}
