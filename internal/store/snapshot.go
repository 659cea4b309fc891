package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/verte-zerg/mockprep/internal/model"
)

// snapshotV1 is the first persisted layout. It had no explicit phase and
// kept answers without timing.
type snapshotV1 struct {
	Selection *struct {
		Specialization  string `json:"specialization"`
		ExperienceLevel string `json:"experienceLevel"`
		CompanyTier     string `json:"companyTier"`
		Topic           string `json:"topic"`
	} `json:"selection"`
	SessionID        *string          `json:"sessionId"`
	Tasks            []model.Task     `json:"tasks"`
	CurrentTaskIndex int              `json:"currentTaskIndex"`
	Answers          []answerV1       `json:"answers"`
	Feedbacks        []model.Feedback `json:"feedbacks"`
	FinalReport      *reportV1        `json:"finalReport"`

	HasTrialAvailable      *bool `json:"hasTrialAvailable"`
	PaidQuestionsRemaining int   `json:"paidQuestionsRemaining"`
}

type answerV1 struct {
	TaskID int    `json:"taskId"`
	Answer string `json:"answer"`
}

type reportV1 struct {
	model.FinalReport
	CompletedAt string `json:"completed_at"`
}

// DecodeInterview decodes a stored snapshot of the given schema version and
// returns it at the current version.
func DecodeInterview(version int, payload []byte) (model.InterviewState, error) {
	switch version {
	case model.InterviewSchemaVersion:
		state := model.NewInterviewState()
		if err := json.Unmarshal(payload, &state); err != nil {
			return model.InterviewState{}, fmt.Errorf("failed to decode interview state: %w", err)
		}
		state.SchemaVersion = model.InterviewSchemaVersion
		return state, nil
	case 1:
		var old snapshotV1
		if err := json.Unmarshal(payload, &old); err != nil {
			return model.InterviewState{}, fmt.Errorf("failed to decode v1 interview state: %w", err)
		}
		return migrateV1(old), nil
	default:
		return model.InterviewState{}, fmt.Errorf("unsupported interview schema version %d", version)
	}
}

func migrateV1(old snapshotV1) model.InterviewState {
	state := model.NewInterviewState()
	if old.Selection != nil {
		state.Selection = &model.Selection{
			Specialization:  old.Selection.Specialization,
			ExperienceLevel: old.Selection.ExperienceLevel,
			CompanyTier:     old.Selection.CompanyTier,
			Topic:           old.Selection.Topic,
		}
	}
	if old.SessionID != nil {
		state.SessionID = *old.SessionID
	}
	state.Tasks = old.Tasks
	state.CurrentTaskIndex = old.CurrentTaskIndex
	state.Feedbacks = old.Feedbacks
	for _, a := range old.Answers {
		state.Answers = append(state.Answers, model.Answer{TaskID: a.TaskID, Content: a.Answer})
	}
	if old.HasTrialAvailable != nil {
		state.HasTrialAvailable = *old.HasTrialAvailable
	}
	state.PaidQuestionsRemaining = old.PaidQuestionsRemaining

	switch {
	case old.FinalReport != nil:
		report := old.FinalReport.FinalReport
		if ts, err := parseLegacyTime(old.FinalReport.CompletedAt); err == nil {
			report.CompletedAt = ts
		}
		state.FinalReport = &report
		state.Phase = model.PhaseFinished
	case state.SessionID != "" && len(state.Tasks) > 0:
		state.Phase = model.PhaseInProgress
		// Older clients advanced only after feedback arrived, so an answered
		// current task means the user still owes a decision.
		if len(state.Answers) > state.CurrentTaskIndex {
			state.AwaitingDecision = true
			remaining := len(state.Tasks) - len(state.Answers)
			state.TasksRemaining = remaining
			state.CanContinue = remaining > 0
		}
		// Timing was not kept; restart the clock for the current task.
		state.TaskShownAt = time.Now()
	default:
		state.Phase = model.PhaseIdle
		state.Selection = nil
		state.SessionID = ""
		state.Tasks = nil
		state.CurrentTaskIndex = 0
		state.Answers = nil
		state.Feedbacks = nil
	}
	return state
}

var legacyLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

func parseLegacyTime(value string) (time.Time, error) {
	for _, layout := range legacyLayouts {
		if ts, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", value)
}
