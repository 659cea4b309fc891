package fakeapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/verte-zerg/mockprep/internal/model"
)

var topicQuestions = map[string][]string{
	"statistics": {
		"Explain the difference between a confidence interval and a credible interval.",
		"When would you prefer the median over the mean as a summary metric?",
		"How does the central limit theorem justify a z-test on conversion rates?",
	},
	"ab_testing": {
		"How do you choose the sample size for an A/B test on checkout conversion?",
		"What is peeking and why does it inflate the false positive rate?",
		"The test variant wins on clicks but loses on revenue. What do you do?",
	},
	"probability": {
		"Two dice are thrown. What is the probability that the sum is 8?",
		"Explain Bayes' theorem using a medical test example.",
		"What is the expected number of coin flips to get two heads in a row?",
	},
	"python": {
		"What is the difference between a list and a tuple in Python?",
		"How would you deduplicate a list while preserving order?",
		"Explain how a generator differs from a list comprehension.",
	},
	"sql": {
		"Write a query returning the second highest salary per department.",
		"Explain the difference between WHERE and HAVING.",
		"How would you compute 7-day retention from an events table?",
	},
	"algebra_and_geometry": {
		"Solve for x: 3x + 7 = 22.",
		"What is the area of a triangle with sides 3, 4 and 5?",
		"Find the intersection point of y = 2x + 1 and y = -x + 4.",
	},
}

func (s *Server) questionsFor(topic string) []string {
	if qs, ok := topicQuestions[topic]; ok {
		return qs
	}
	return []string{
		topicQuestions["statistics"][0],
		topicQuestions["sql"][1],
		topicQuestions["probability"][2],
	}
}

func (s *Server) handleOptions(key string, opts []model.Option) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{key: opts})
	}
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var sel model.Selection
	if err := decodeBody(r, &sel); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !sel.Complete() {
		writeDetail(w, http.StatusBadRequest, "All selection fields are required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[userIDFrom(r)]
	credits := u.credits()
	if credits <= 0 {
		writeDetail(w, http.StatusBadRequest, "No questions available. Purchase a question pack.")
		return
	}
	questions := s.questionsFor(sel.Topic)
	count := minInt(maxTasksPerSession, minInt(credits, len(questions)))
	tasks := make([]model.Task, 0, count)
	for i := 0; i < count; i++ {
		s.nextTask++
		tasks = append(tasks, model.Task{
			TaskID:           s.nextTask,
			TaskQuestion:     questions[i],
			TaskNumber:       i + 1,
			TotalTasks:       count,
			TimeLimitMinutes: defaultTimeLimit,
		})
	}
	sess := &session{
		id:        uuid.NewString(),
		userID:    u.profile.UserID,
		selection: sel,
		tasks:     tasks,
		status:    "active",
	}
	s.sessions[sess.id] = sess
	writeJSON(w, http.StatusOK, model.StartResult{
		SessionID: sess.id,
		Tasks:     tasks,
		Message:   fmt.Sprintf("The interview begins! You have %d tasks, about %d minutes each.", count, defaultTimeLimit),
	})
}

// lookupLocked must be called with s.mu held.
func (s *Server) lookupLocked(w http.ResponseWriter, r *http.Request) (*session, bool) {
	sess, ok := s.sessions[chi.URLParam(r, "sessionID")]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Session not found")
		return nil, false
	}
	if sess.userID != userIDFrom(r) {
		writeDetail(w, http.StatusForbidden, "Access denied")
		return nil, false
	}
	return sess, true
}

func (sess *session) currentTask() *model.Task {
	if sess.status != "active" || sess.index >= len(sess.tasks) {
		return nil
	}
	t := sess.tasks[sess.index]
	return &t
}

// progressLocked must be called with s.mu held.
func (s *Server) progressLocked(sess *session) (canContinue bool, completed, remaining int) {
	completed = sess.index
	remaining = len(sess.tasks) - completed
	canContinue = remaining > 0 && sess.status == "active" && s.users[sess.userID].credits() > 0
	return canContinue, completed, remaining
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.lookupLocked(w, r)
	if !ok {
		return
	}
	canContinue, completed, remaining := s.progressLocked(sess)
	writeJSON(w, http.StatusOK, model.SessionStatus{
		SessionID:      sess.id,
		Status:         sess.status,
		CurrentTask:    sess.currentTask(),
		TasksCompleted: completed,
		TasksRemaining: remaining,
		CanContinue:    canContinue,
		Feedbacks:      append([]model.Feedback{}, sess.feedbacks...),
	})
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req model.AnswerRequest
	if err := decodeBody(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.SessionID != chi.URLParam(r, "sessionID") {
		writeDetail(w, http.StatusBadRequest, "Session ID mismatch")
		return
	}
	if utf8.RuneCountInString(req.Answer) > maxAnswerLength {
		writeValidation(w, validationItem{
			Loc:  []string{"body", "answer"},
			Msg:  fmt.Sprintf("String should have at most %d characters", maxAnswerLength),
			Type: "string_too_long",
		})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.lookupLocked(w, r)
	if !ok {
		return
	}
	task := sess.currentTask()
	if task == nil {
		writeDetail(w, http.StatusBadRequest, "Session is not active")
		return
	}
	if task.TaskID != req.TaskID {
		writeDetail(w, http.StatusBadRequest, "Task ID mismatch")
		return
	}
	u := s.users[sess.userID]
	if !u.consume() {
		writeDetail(w, http.StatusBadRequest, "No questions available. Purchase a question pack.")
		return
	}
	fb := scoreAnswer(*task, req.Answer)
	sess.feedbacks = append(sess.feedbacks, fb)
	sess.index++
	canContinue, completed, remaining := s.progressLocked(sess)
	writeJSON(w, http.StatusOK, model.SubmitResult{
		Feedback:       fb,
		CanContinue:    canContinue,
		TasksCompleted: completed,
		TasksRemaining: remaining,
	})
}

func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.lookupLocked(w, r)
	if !ok {
		return
	}
	if sess.report == nil {
		sess.status = "completed"
		sess.report = buildReport(sess, s.cfg.Now().UTC())
	}
	rep := *sess.report
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":            rep.SessionID,
		"overall_score":         rep.OverallScore,
		"task_feedbacks":        rep.TaskFeedbacks,
		"overall_strengths":     rep.OverallStrengths,
		"areas_to_improve":      rep.AreasToImprove,
		"study_recommendations": rep.StudyRecommendations,
		"motivational_message":  rep.MotivationalMessage,
		// Zone-less ISO timestamp, as the production backend sends it.
		"completed_at": rep.CompletedAt.Format("2006-01-02T15:04:05.000000"),
	})
}

// scoreAnswer grades by answer length so tests get stable scores.
func scoreAnswer(task model.Task, answer string) model.Feedback {
	words := len(strings.Fields(answer))
	score := minInt(100, words*10)
	fb := model.Feedback{
		TaskID:           task.TaskID,
		TaskQuestion:     task.TaskQuestion,
		UserAnswer:       answer,
		Score:            score,
		Strengths:        []string{},
		Improvements:     []string{},
		DetailedFeedback: fmt.Sprintf("Your answer has %d words.", words),
	}
	if words >= 5 {
		fb.Strengths = append(fb.Strengths, "Answer is structured")
	}
	if score < 100 {
		fb.Improvements = append(fb.Improvements, "Give a more detailed explanation")
	}
	return fb
}

func buildReport(sess *session, now time.Time) *model.FinalReport {
	total := 0
	for _, fb := range sess.feedbacks {
		total += fb.Score
	}
	overall := 0
	if len(sess.feedbacks) > 0 {
		overall = total / len(sess.feedbacks)
	}
	rep := &model.FinalReport{
		SessionID:            sess.id,
		OverallScore:         overall,
		TaskFeedbacks:        append([]model.Feedback{}, sess.feedbacks...),
		OverallStrengths:     []string{"Consistent reasoning"},
		AreasToImprove:       []string{"Depth of explanations"},
		StudyRecommendations: []string{fmt.Sprintf("Review %s fundamentals", sess.selection.Topic)},
		MotivationalMessage:  "Keep practicing, you are on the right track!",
		CompletedAt:          now.Truncate(time.Microsecond),
	}
	return rep
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
