// Package credit decides whether the user can spend interview questions.
package credit

import "github.com/verte-zerg/mockprep/internal/model"

// Thresholds of paid questions required when no trial is available.
const (
	StartThreshold    = 1
	RetryThreshold    = 3
	ContinueThreshold = 1
)

// Destination is where the user is sent by the paywall.
type Destination int

const (
	ToAuth Destination = iota
	ToSelection
	ToPayment
)

func (d Destination) String() string {
	switch d {
	case ToSelection:
		return "selection"
	case ToPayment:
		return "payment"
	default:
		return "auth"
	}
}

// CanStart reports whether the profile allows spending questions.
func CanStart(p *model.UserProfile, threshold int) bool {
	if p == nil {
		return false
	}
	return p.TrialQuestionFlag || p.PaidQuestionsLeft >= threshold
}

// Available returns the number of questions the profile can spend.
func Available(p *model.UserProfile) int {
	if p == nil {
		return 0
	}
	n := p.PaidQuestionsLeft
	if p.TrialQuestionFlag {
		n++
	}
	return n
}

// Route picks where the user should go next for the given threshold.
func Route(p *model.UserProfile, threshold int) Destination {
	switch {
	case p == nil:
		return ToAuth
	case CanStart(p, threshold):
		return ToSelection
	default:
		return ToPayment
	}
}
