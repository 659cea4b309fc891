package credit

import (
	"testing"

	"github.com/verte-zerg/mockprep/internal/model"
)

func TestRoute(t *testing.T) {
	tests := []struct {
		name      string
		profile   *model.UserProfile
		threshold int
		want      Destination
	}{
		{"no profile", nil, StartThreshold, ToAuth},
		{"trial only", &model.UserProfile{TrialQuestionFlag: true}, RetryThreshold, ToSelection},
		{"paid at start threshold", &model.UserProfile{PaidQuestionsLeft: 1}, StartThreshold, ToSelection},
		{"paid below retry threshold", &model.UserProfile{PaidQuestionsLeft: 2}, RetryThreshold, ToPayment},
		{"paid at retry threshold", &model.UserProfile{PaidQuestionsLeft: 3}, RetryThreshold, ToSelection},
		{"no credits", &model.UserProfile{}, ContinueThreshold, ToPayment},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Route(tt.profile, tt.threshold); got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestAvailable(t *testing.T) {
	if got := Available(nil); got != 0 {
		t.Fatalf("expected 0 for nil profile, got %d", got)
	}
	if got := Available(&model.UserProfile{TrialQuestionFlag: true, PaidQuestionsLeft: 2}); got != 3 {
		t.Fatalf("expected trial plus paid, got %d", got)
	}
}
