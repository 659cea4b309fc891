// Package model defines shared data structures.
package model

import "time"

// Selection holds the interview parameters chosen in the wizard.
type Selection struct {
	Specialization  string `json:"specialization"`
	ExperienceLevel string `json:"experience_level"`
	CompanyTier     string `json:"company_tier"`
	Topic           string `json:"topic"`
}

// Complete reports whether every field is populated.
func (s Selection) Complete() bool {
	return s.Specialization != "" && s.ExperienceLevel != "" && s.CompanyTier != "" && s.Topic != ""
}

// Option is one choice of a selection step.
type Option struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Options lists the closed enumerations offered by the selection wizard.
type Options struct {
	Specializations  []Option
	ExperienceLevels []Option
	CompanyTiers     []Option
	Topics           []Option
}

// DefaultOptions returns the client-side fallback enumerations.
func DefaultOptions() Options {
	return Options{
		Specializations: []Option{
			{ID: "product_analyst", Name: "Product Analyst"},
			{ID: "data_analyst", Name: "Data Analyst"},
		},
		ExperienceLevels: []Option{
			{ID: "junior", Name: "Junior"},
			{ID: "middle", Name: "Middle +"},
		},
		CompanyTiers: []Option{
			{ID: "tier1", Name: "Tier 1", Description: "Yandex, VK, Tinkoff, Ozon, Avito and similar"},
			{ID: "tier2", Name: "Tier 2", Description: "Large companies with strong teams"},
		},
		Topics: []Option{
			{ID: "statistics", Name: "Statistics"},
			{ID: "ab_testing", Name: "A/B testing"},
			{ID: "probability", Name: "Probability theory"},
			{ID: "python", Name: "Python"},
			{ID: "sql", Name: "SQL"},
			{ID: "algebra_and_geometry", Name: "Algebra and geometry"},
			{ID: "random", Name: "Random"},
		},
	}
}

// Task is a single interview question.
type Task struct {
	TaskID           int    `json:"task_id"`
	TaskQuestion     string `json:"task_question"`
	TaskNumber       int    `json:"task_number"`
	TotalTasks       int    `json:"total_tasks"`
	TimeLimitMinutes int    `json:"time_limit_minutes"`
}

// Answer is a submitted response to a task.
type Answer struct {
	TaskID         int    `json:"task_id"`
	Content        string `json:"content"`
	ElapsedSeconds int    `json:"elapsed_seconds"`
}

// Feedback is the backend evaluation of one answer.
type Feedback struct {
	TaskID           int      `json:"task_id"`
	TaskQuestion     string   `json:"task_question"`
	UserAnswer       string   `json:"user_answer"`
	Score            int      `json:"score"`
	Strengths        []string `json:"strengths"`
	Improvements     []string `json:"improvements"`
	DetailedFeedback string   `json:"detailed_feedback"`
}

// FinalReport aggregates the evaluation of a finished session.
type FinalReport struct {
	SessionID            string     `json:"session_id"`
	OverallScore         int        `json:"overall_score"`
	TaskFeedbacks        []Feedback `json:"task_feedbacks"`
	OverallStrengths     []string   `json:"overall_strengths"`
	AreasToImprove       []string   `json:"areas_to_improve"`
	StudyRecommendations []string   `json:"study_recommendations"`
	MotivationalMessage  string     `json:"motivational_message"`
	CompletedAt          time.Time  `json:"completed_at"`
}

// UserProfile is the server-side view of the current user.
type UserProfile struct {
	UserID             string  `json:"user_id"`
	Name               string  `json:"name"`
	Email              string  `json:"email"`
	TelegramUsername   *string `json:"telegram_username"`
	QuestionsRemaining int     `json:"questions_remaining"`
	TrialQuestionFlag  bool    `json:"trial_question_flg"`
	PaidQuestionsLeft  int     `json:"paid_questions_number_left"`
}

// Plan is a purchasable question pack.
type Plan struct {
	PlanID         string  `json:"plan_id"`
	Name           string  `json:"name"`
	QuestionsCount int     `json:"questions_count"`
	Price          float64 `json:"price"`
	Currency       string  `json:"currency"`
	Description    string  `json:"description,omitempty"`
}

// Payment is a created payment intent.
type Payment struct {
	PaymentID       string  `json:"payment_id"`
	ConfirmationURL string  `json:"confirmation_url"`
	Status          string  `json:"status"`
	Amount          float64 `json:"amount"`
	Currency        string  `json:"currency"`
}

// PaymentStatus is returned by the test-mode completion endpoint.
type PaymentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// AuthResult is returned by register and login.
type AuthResult struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type,omitempty"`
	User        UserProfile `json:"user"`
}

// StartResult is returned when an interview session is created.
type StartResult struct {
	SessionID string `json:"session_id"`
	Tasks     []Task `json:"tasks"`
	Message   string `json:"message,omitempty"`
}

// AnswerRequest is the body of an answer submission.
type AnswerRequest struct {
	SessionID        string `json:"session_id"`
	TaskID           int    `json:"task_id"`
	Answer           string `json:"answer"`
	TimeSpentSeconds int    `json:"time_spent_seconds"`
}

// SubmitResult is returned after an answer submission.
type SubmitResult struct {
	Feedback       Feedback `json:"feedback"`
	CanContinue    bool     `json:"can_continue"`
	TasksCompleted int      `json:"tasks_completed"`
	TasksRemaining int      `json:"tasks_remaining"`
}

// SessionStatus is the server view of a session.
type SessionStatus struct {
	SessionID      string     `json:"session_id"`
	Status         string     `json:"status"`
	CurrentTask    *Task      `json:"current_task"`
	TasksCompleted int        `json:"tasks_completed"`
	TasksRemaining int        `json:"tasks_remaining"`
	CanContinue    bool       `json:"can_continue"`
	Feedbacks      []Feedback `json:"feedbacks"`
}

// Phase is a state of the interview session machine.
type Phase string

// Interview phases.
const (
	PhaseIdle         Phase = "idle"
	PhaseAuthRequired Phase = "auth_required"
	PhaseSelecting    Phase = "selecting"
	PhaseInProgress   Phase = "in_progress"
	PhaseFinished     Phase = "finished"
)

// InterviewSchemaVersion is the current version of the persisted snapshot.
const InterviewSchemaVersion = 2

// InterviewState is the persisted interview snapshot.
type InterviewState struct {
	SchemaVersion          int          `json:"schema_version"`
	Phase                  Phase        `json:"phase"`
	Selection              *Selection   `json:"selection,omitempty"`
	SessionID              string       `json:"session_id,omitempty"`
	Tasks                  []Task       `json:"tasks"`
	CurrentTaskIndex       int          `json:"current_task_index"`
	Answers                []Answer     `json:"answers"`
	Feedbacks              []Feedback   `json:"feedbacks"`
	FinalReport            *FinalReport `json:"final_report,omitempty"`
	AwaitingDecision       bool         `json:"awaiting_decision"`
	CanContinue            bool         `json:"can_continue"`
	TasksRemaining         int          `json:"tasks_remaining"`
	TaskShownAt            time.Time    `json:"task_shown_at"`
	HasTrialAvailable      bool         `json:"has_trial_available"`
	PaidQuestionsRemaining int          `json:"paid_questions_remaining"`
}

// NewInterviewState returns an empty snapshot in the idle phase.
func NewInterviewState() InterviewState {
	return InterviewState{
		SchemaVersion:     InterviewSchemaVersion,
		Phase:             PhaseIdle,
		HasTrialAvailable: true,
	}
}

// ReportSummary is a finished session as kept in local history.
type ReportSummary struct {
	SessionID    string
	Selection    Selection
	OverallScore int
	TaskCount    int
	CompletedAt  time.Time
}

// HistoryFilter narrows history queries.
type HistoryFilter struct {
	Topic string
	Since *time.Time
	Last  int
}
