package interview

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/verte-zerg/mockprep/internal/credit"
	"github.com/verte-zerg/mockprep/internal/model"
)

const (
	// MaxAnswerChars is the longest answer accepted, in characters.
	MaxAnswerChars = 3000
	// MaxTasks is the most tasks a session may contain.
	MaxTasks = 3
	// DefaultTimeLimit is the advisory time per task.
	DefaultTimeLimit = 20 * time.Minute
)

var (
	ErrNotInProgress    = errors.New("no interview in progress")
	ErrNoCurrentTask    = errors.New("no current task")
	ErrAlreadyAnswered  = errors.New("current task is already answered")
	ErrEmptyAnswer      = errors.New("answer is empty")
	ErrAnswerTooLong    = fmt.Errorf("answer exceeds %d characters", MaxAnswerChars)
	ErrRequestInFlight  = errors.New("a request is already in progress")
	ErrInvalidTaskCount = errors.New("server returned an invalid number of tasks")
	ErrCannotContinue   = errors.New("no further task is available")
	ErrNoSession        = errors.New("interview has no session")
	ErrPaymentRequired  = errors.New("not enough questions left, please buy a plan")
	ErrStaleResponse    = errors.New("interview changed while the request was running")
	ErrSessionMismatch  = errors.New("saved interview does not match the server session")
)

// Backend is the subset of the API client used by an interview.
type Backend interface {
	StartInterview(ctx context.Context, sel model.Selection) (model.StartResult, error)
	SubmitAnswer(ctx context.Context, req model.AnswerRequest) (model.SubmitResult, error)
	FinishInterview(ctx context.Context, sessionID string) (model.FinalReport, error)
}

// Store persists the interview snapshot and finished reports.
type Store interface {
	SaveInterview(ctx context.Context, state model.InterviewState) error
	InsertReport(ctx context.Context, sel model.Selection, report model.FinalReport) error
}

// SessionReader reads the server view of a session. Backends that implement
// it let a resumed interview catch up with answers the server already took.
type SessionReader interface {
	Session(ctx context.Context, sessionID string) (model.SessionStatus, error)
}

// ProfileRefresher re-fetches the user profile from the server.
type ProfileRefresher interface {
	Refresh(ctx context.Context) (*model.UserProfile, error)
}

// Outcome tells the caller what the user may do after an answer.
type Outcome int

// Submit outcomes.
const (
	Decide Outcome = iota
	MustFinish
)

// Option configures a Controller.
type Option func(*Controller)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// WithDefaultTimeLimit sets the advisory limit for tasks that carry none.
func WithDefaultTimeLimit(limit time.Duration) Option {
	return func(c *Controller) {
		if limit > 0 {
			c.timeLimit = limit
		}
	}
}

// Controller owns the interview state. It is safe for concurrent use and
// allows one backend request at a time.
type Controller struct {
	backend  Backend
	store    Store
	profiles ProfileRefresher

	now       func() time.Time
	timeLimit time.Duration

	mu       sync.Mutex
	state    model.InterviewState
	inFlight bool
}

// NewController resumes from a stored snapshot.
func NewController(state model.InterviewState, backend Backend, store Store, profiles ProfileRefresher, opts ...Option) *Controller {
	c := &Controller{
		backend:   backend,
		store:     store,
		profiles:  profiles,
		now:       time.Now,
		timeLimit: DefaultTimeLimit,
		state:     state,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.state.Phase == "" {
		c.state.Phase = model.PhaseIdle
	}
	if c.state.Phase == model.PhaseInProgress && c.state.TaskShownAt.IsZero() {
		c.state.TaskShownAt = c.now()
	}
	return c
}

// State returns a copy of the current snapshot.
func (c *Controller) State() model.InterviewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneState(c.state)
}

// Phase returns the current phase.
func (c *Controller) Phase() model.Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Phase
}

// SessionID returns the active session id, or an empty string.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.SessionID
}

// Busy reports whether a backend request is running.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// CurrentTask returns the task on screen.
func (c *Controller) CurrentTask() (model.Task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentTaskLocked()
}

// Begin leaves the idle phase towards selection or sign-in.
func (c *Controller) Begin(ctx context.Context, authenticated bool) error {
	event := EventBegin
	if !authenticated {
		event = EventRequireAuth
	}
	return c.fireAndSave(ctx, event)
}

// Authenticated moves a waiting interview on to selection.
func (c *Controller) Authenticated(ctx context.Context) error {
	return c.fireAndSave(ctx, EventAuthenticated)
}

// LoggedOut drops back to sign-in.
func (c *Controller) LoggedOut(ctx context.Context) error {
	return c.fireAndSave(ctx, EventLoggedOut)
}

// Abandon discards the session locally without notifying the backend.
func (c *Controller) Abandon(ctx context.Context) error {
	c.mu.Lock()
	if !canFire(c.state.Phase, EventAbandon) {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	return c.fireAndSave(ctx, EventAbandon)
}

// Start creates a backend session for sel.
func (c *Controller) Start(ctx context.Context, sel model.Selection) error {
	if !sel.Complete() {
		return ErrIncompleteSelection
	}
	c.mu.Lock()
	if _, err := Fire(c.state.Phase, EventSessionCreated); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.inFlight {
		c.mu.Unlock()
		return ErrRequestInFlight
	}
	c.inFlight = true
	c.mu.Unlock()

	res, err := c.backend.StartInterview(ctx, sel)

	c.mu.Lock()
	c.inFlight = false
	c.mu.Unlock()
	if err != nil {
		if profile, perr := c.refreshProfile(ctx); perr == nil && !credit.CanStart(profile, credit.StartThreshold) {
			return ErrPaymentRequired
		}
		return err
	}
	if len(res.Tasks) == 0 || len(res.Tasks) > MaxTasks {
		return fmt.Errorf("%w: %d", ErrInvalidTaskCount, len(res.Tasks))
	}

	c.mu.Lock()
	t, err := Fire(c.state.Phase, EventSessionCreated)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrStaleResponse, err)
	}
	selection := sel
	c.state.Selection = &selection
	c.state.SessionID = res.SessionID
	c.state.Tasks = res.Tasks
	c.state.CurrentTaskIndex = 0
	c.state.Answers = nil
	c.state.Feedbacks = nil
	c.state.FinalReport = nil
	c.state.AwaitingDecision = false
	c.state.CanContinue = true
	c.state.TasksRemaining = len(res.Tasks)
	c.applyLocked(ctx, t)
	c.mu.Unlock()
	return nil
}

// Submit sends content as the answer to the current task.
func (c *Controller) Submit(ctx context.Context, content string) (Outcome, error) {
	c.mu.Lock()
	req, err := c.prepareSubmitLocked(content)
	if err != nil {
		c.mu.Unlock()
		return MustFinish, err
	}
	c.inFlight = true
	index := c.state.CurrentTaskIndex
	c.mu.Unlock()

	res, err := c.backend.SubmitAnswer(ctx, req)

	c.mu.Lock()
	c.inFlight = false
	c.mu.Unlock()
	if err != nil {
		if profile, perr := c.refreshProfile(ctx); perr == nil && !credit.CanStart(profile, credit.ContinueThreshold) {
			c.SyncCredits(ctx, profile)
			return MustFinish, ErrPaymentRequired
		}
		return MustFinish, err
	}

	c.mu.Lock()
	if c.state.SessionID != req.SessionID || c.state.CurrentTaskIndex != index || c.state.Phase != model.PhaseInProgress {
		c.mu.Unlock()
		return MustFinish, ErrStaleResponse
	}
	t, err := Fire(c.state.Phase, EventAnswerAccepted)
	if err != nil {
		c.mu.Unlock()
		return MustFinish, err
	}
	c.state.Answers = append(c.state.Answers, model.Answer{
		TaskID:         req.TaskID,
		Content:        req.Answer,
		ElapsedSeconds: req.TimeSpentSeconds,
	})
	c.state.Feedbacks = append(c.state.Feedbacks, res.Feedback)
	c.state.AwaitingDecision = true
	c.state.CanContinue = res.CanContinue
	c.state.TasksRemaining = res.TasksRemaining
	c.applyLocked(ctx, t)
	outcome := c.outcomeLocked()
	c.mu.Unlock()

	if profile, err := c.refreshProfile(ctx); err == nil {
		c.SyncCredits(ctx, profile)
	}
	return outcome, nil
}

func (c *Controller) prepareSubmitLocked(content string) (model.AnswerRequest, error) {
	if c.state.Phase != model.PhaseInProgress {
		return model.AnswerRequest{}, ErrNotInProgress
	}
	task, ok := c.currentTaskLocked()
	if !ok {
		return model.AnswerRequest{}, ErrNoCurrentTask
	}
	if c.state.AwaitingDecision || len(c.state.Answers) > c.state.CurrentTaskIndex {
		return model.AnswerRequest{}, ErrAlreadyAnswered
	}
	if strings.TrimSpace(content) == "" {
		return model.AnswerRequest{}, ErrEmptyAnswer
	}
	if utf8.RuneCountInString(content) > MaxAnswerChars {
		return model.AnswerRequest{}, ErrAnswerTooLong
	}
	if c.inFlight {
		return model.AnswerRequest{}, ErrRequestInFlight
	}
	return model.AnswerRequest{
		SessionID:        c.state.SessionID,
		TaskID:           task.TaskID,
		Answer:           content,
		TimeSpentSeconds: int(c.elapsedLocked() / time.Second),
	}, nil
}

func (c *Controller) outcomeLocked() Outcome {
	if c.canContinueLocked() {
		return Decide
	}
	return MustFinish
}

func (c *Controller) canContinueLocked() bool {
	return c.state.AwaitingDecision &&
		c.state.CanContinue &&
		c.state.TasksRemaining > 0 &&
		c.state.CurrentTaskIndex+1 < len(c.state.Tasks)
}

// CanContinue reports whether the user may move on to another task.
func (c *Controller) CanContinue() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canContinueLocked()
}

// Continue shows the next task.
func (c *Controller) Continue(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Phase != model.PhaseInProgress {
		return ErrNotInProgress
	}
	if c.inFlight {
		return ErrRequestInFlight
	}
	if !c.canContinueLocked() {
		return ErrCannotContinue
	}
	t, err := Fire(c.state.Phase, EventAdvance)
	if err != nil {
		return err
	}
	c.state.CurrentTaskIndex++
	c.state.AwaitingDecision = false
	c.applyLocked(ctx, t)
	return nil
}

// Reconcile compares a resumed session with the server. An answer the
// server accepted before the snapshot was saved is adopted with the server
// feedback, so the task is not sent twice. It reports whether the snapshot
// changed.
func (c *Controller) Reconcile(ctx context.Context) (bool, error) {
	reader, ok := c.backend.(SessionReader)
	if !ok {
		return false, nil
	}
	c.mu.Lock()
	if c.state.Phase != model.PhaseInProgress || c.state.AwaitingDecision || c.state.SessionID == "" {
		c.mu.Unlock()
		return false, nil
	}
	if c.inFlight {
		c.mu.Unlock()
		return false, ErrRequestInFlight
	}
	c.inFlight = true
	sessionID := c.state.SessionID
	index := c.state.CurrentTaskIndex
	c.mu.Unlock()

	status, err := reader.Session(ctx, sessionID)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false
	if err != nil {
		return false, fmt.Errorf("failed to load session: %w", err)
	}
	if c.state.SessionID != sessionID || c.state.CurrentTaskIndex != index ||
		c.state.Phase != model.PhaseInProgress || c.state.AwaitingDecision {
		return false, ErrStaleResponse
	}
	task, ok := c.currentTaskLocked()
	if !ok {
		return false, ErrNoCurrentTask
	}
	answered := len(c.state.Answers)
	if status.TasksCompleted == answered {
		if status.CurrentTask != nil && status.CurrentTask.TaskID != task.TaskID {
			return false, fmt.Errorf("%w: server expects task %d, local task %d",
				ErrSessionMismatch, status.CurrentTask.TaskID, task.TaskID)
		}
		return false, nil
	}
	if answered != index || status.TasksCompleted != index+1 || len(status.Feedbacks) < status.TasksCompleted {
		return false, fmt.Errorf("%w: server completed %d tasks, %d answered locally",
			ErrSessionMismatch, status.TasksCompleted, answered)
	}
	t, err := Fire(c.state.Phase, EventAnswerAccepted)
	if err != nil {
		return false, err
	}
	c.state.Answers = append(c.state.Answers, model.Answer{
		TaskID:         task.TaskID,
		ElapsedSeconds: int(c.elapsedLocked() / time.Second),
	})
	c.state.Feedbacks = append([]model.Feedback(nil), status.Feedbacks[:status.TasksCompleted]...)
	c.state.AwaitingDecision = true
	c.state.CanContinue = status.CanContinue
	c.state.TasksRemaining = status.TasksRemaining
	c.applyLocked(ctx, t)
	return true, nil
}

// Finish asks the backend for the final report. It is safe to call again
// after a failure, and returns the stored report once finished.
func (c *Controller) Finish(ctx context.Context) (model.FinalReport, error) {
	c.mu.Lock()
	if c.state.Phase == model.PhaseFinished && c.state.FinalReport != nil {
		report := *c.state.FinalReport
		c.mu.Unlock()
		return report, nil
	}
	if c.state.Phase != model.PhaseInProgress {
		c.mu.Unlock()
		return model.FinalReport{}, ErrNotInProgress
	}
	if c.state.SessionID == "" {
		c.mu.Unlock()
		return model.FinalReport{}, ErrNoSession
	}
	if c.inFlight {
		c.mu.Unlock()
		return model.FinalReport{}, ErrRequestInFlight
	}
	c.inFlight = true
	sessionID := c.state.SessionID
	c.mu.Unlock()

	report, err := c.backend.FinishInterview(ctx, sessionID)

	c.mu.Lock()
	c.inFlight = false
	if err != nil {
		c.mu.Unlock()
		return model.FinalReport{}, err
	}
	if c.state.SessionID != sessionID {
		c.mu.Unlock()
		return model.FinalReport{}, ErrStaleResponse
	}
	t, err := Fire(c.state.Phase, EventReportReady)
	if err != nil {
		c.mu.Unlock()
		return model.FinalReport{}, err
	}
	if report.SessionID == "" {
		report.SessionID = sessionID
	}
	c.state.FinalReport = &report
	c.state.AwaitingDecision = false
	c.applyLocked(ctx, t)
	c.mu.Unlock()

	if profile, err := c.refreshProfile(ctx); err == nil {
		c.SyncCredits(ctx, profile)
	}
	return report, nil
}

// Retry clears a finished interview so a new one can be selected. It needs
// enough credit for a full session.
func (c *Controller) Retry(ctx context.Context, profile *model.UserProfile) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := Fire(c.state.Phase, EventRetry); err != nil {
		return err
	}
	if !credit.CanStart(profile, credit.RetryThreshold) {
		return ErrPaymentRequired
	}
	t, err := Fire(c.state.Phase, EventRetry)
	if err != nil {
		return err
	}
	c.applyLocked(ctx, t)
	return nil
}

// SyncCredits mirrors the server credit fields into the snapshot.
func (c *Controller) SyncCredits(ctx context.Context, profile *model.UserProfile) {
	if profile == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.HasTrialAvailable = profile.TrialQuestionFlag
	c.state.PaidQuestionsRemaining = profile.PaidQuestionsLeft
	c.saveLocked(ctx)
}

// Elapsed returns the time spent on the current task. Once answered, it is
// the time that was submitted.
func (c *Controller) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsedLocked()
}

func (c *Controller) elapsedLocked() time.Duration {
	if c.state.Phase != model.PhaseInProgress {
		return 0
	}
	if c.state.AwaitingDecision && len(c.state.Answers) > 0 {
		return time.Duration(c.state.Answers[len(c.state.Answers)-1].ElapsedSeconds) * time.Second
	}
	d := c.now().Sub(c.state.TaskShownAt)
	if d < 0 {
		return 0
	}
	return d
}

// TimeLimit returns the advisory limit of the current task.
func (c *Controller) TimeLimit() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timeLimitLocked()
}

func (c *Controller) timeLimitLocked() time.Duration {
	if task, ok := c.currentTaskLocked(); ok && task.TimeLimitMinutes > 0 {
		return time.Duration(task.TimeLimitMinutes) * time.Minute
	}
	return c.timeLimit
}

// Overtime reports whether the current task has run past its advisory limit.
func (c *Controller) Overtime() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsedLocked() > c.timeLimitLocked()
}

func (c *Controller) currentTaskLocked() (model.Task, bool) {
	i := c.state.CurrentTaskIndex
	if i < 0 || i >= len(c.state.Tasks) {
		return model.Task{}, false
	}
	return c.state.Tasks[i], true
}

func (c *Controller) fireAndSave(ctx context.Context, event Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight && event != EventLoggedOut && event != EventAbandon {
		return ErrRequestInFlight
	}
	t, err := Fire(c.state.Phase, event)
	if err != nil {
		return err
	}
	c.applyLocked(ctx, t)
	return nil
}

func (c *Controller) applyLocked(ctx context.Context, t Transition) {
	c.state.Phase = t.Next
	switch t.Effect {
	case EffectStartTask, EffectResetTimer:
		c.state.TaskShownAt = c.now()
	case EffectPersistReport:
		if c.state.FinalReport != nil && c.state.Selection != nil {
			if err := c.store.InsertReport(ctx, *c.state.Selection, *c.state.FinalReport); err != nil {
				log.Printf("failed to store report %s: %v", c.state.SessionID, err)
			}
		}
	case EffectReset:
		fresh := model.NewInterviewState()
		fresh.Phase = t.Next
		fresh.HasTrialAvailable = c.state.HasTrialAvailable
		fresh.PaidQuestionsRemaining = c.state.PaidQuestionsRemaining
		c.state = fresh
	}
	c.saveLocked(ctx)
}

func (c *Controller) saveLocked(ctx context.Context) {
	if err := c.store.SaveInterview(ctx, c.state); err != nil {
		log.Printf("failed to persist interview state: %v", err)
	}
}

func (c *Controller) refreshProfile(ctx context.Context) (*model.UserProfile, error) {
	if c.profiles == nil {
		return nil, errors.New("no profile source")
	}
	profile, err := c.profiles.Refresh(ctx)
	if err != nil {
		log.Printf("failed to refresh profile: %v", err)
		return nil, err
	}
	return profile, nil
}

func cloneState(s model.InterviewState) model.InterviewState {
	out := s
	if s.Selection != nil {
		sel := *s.Selection
		out.Selection = &sel
	}
	if s.FinalReport != nil {
		report := *s.FinalReport
		out.FinalReport = &report
	}
	out.Tasks = append([]model.Task(nil), s.Tasks...)
	out.Answers = append([]model.Answer(nil), s.Answers...)
	out.Feedbacks = append([]model.Feedback(nil), s.Feedbacks...)
	return out
}
