package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/verte-zerg/mockprep/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "nested", "mockprep.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return st
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mockprep.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}
	st, err = Open(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	}()
	version, err := st.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("schema version: %v", err)
	}
	if version != len(migrations) {
		t.Fatalf("expected schema version %d, got %d", len(migrations), version)
	}
}

func TestAuthRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	token, profile, err := st.LoadAuth(ctx)
	if err != nil {
		t.Fatalf("load empty auth: %v", err)
	}
	if token != "" || profile != nil {
		t.Fatalf("expected empty auth, got %q %+v", token, profile)
	}

	handle := "ada"
	in := &model.UserProfile{UserID: "u1", Name: "Ada", Email: "ada@example.com", TelegramUsername: &handle, TrialQuestionFlag: true}
	if err := st.SaveAuth(ctx, "tok-1", in); err != nil {
		t.Fatalf("save auth: %v", err)
	}
	in.PaidQuestionsLeft = 5
	if err := st.SaveAuth(ctx, "tok-2", in); err != nil {
		t.Fatalf("overwrite auth: %v", err)
	}
	token, profile, err = st.LoadAuth(ctx)
	if err != nil {
		t.Fatalf("load auth: %v", err)
	}
	if token != "tok-2" {
		t.Fatalf("expected latest token, got %q", token)
	}
	if profile == nil || profile.PaidQuestionsLeft != 5 || profile.TelegramUsername == nil || *profile.TelegramUsername != "ada" {
		t.Fatalf("unexpected profile: %+v", profile)
	}

	if err := st.ClearAuth(ctx); err != nil {
		t.Fatalf("clear auth: %v", err)
	}
	token, _, err = st.LoadAuth(ctx)
	if err != nil || token != "" {
		t.Fatalf("expected cleared auth, got %q err=%v", token, err)
	}
}

func TestInterviewRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	state, err := st.LoadInterview(ctx)
	if err != nil {
		t.Fatalf("load empty interview: %v", err)
	}
	if state.Phase != model.PhaseIdle || !state.HasTrialAvailable {
		t.Fatalf("expected fresh idle state, got %+v", state)
	}

	shown := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	state.Phase = model.PhaseInProgress
	state.Selection = &model.Selection{Specialization: "data_analyst", ExperienceLevel: "junior", CompanyTier: "tier1", Topic: "sql"}
	state.SessionID = "s1"
	state.Tasks = []model.Task{{TaskID: 1, TaskQuestion: "q1", TaskNumber: 1, TotalTasks: 2}, {TaskID: 2, TaskQuestion: "q2", TaskNumber: 2, TotalTasks: 2}}
	state.Answers = []model.Answer{{TaskID: 1, Content: "a1", ElapsedSeconds: 42}}
	state.Feedbacks = []model.Feedback{{TaskID: 1, Score: 70}}
	state.AwaitingDecision = true
	state.TaskShownAt = shown
	if err := st.SaveInterview(ctx, state); err != nil {
		t.Fatalf("save interview: %v", err)
	}

	got, err := st.LoadInterview(ctx)
	if err != nil {
		t.Fatalf("load interview: %v", err)
	}
	if got.SchemaVersion != model.InterviewSchemaVersion {
		t.Fatalf("expected schema version %d, got %d", model.InterviewSchemaVersion, got.SchemaVersion)
	}
	if got.SessionID != "s1" || len(got.Tasks) != 2 || len(got.Answers) != 1 || got.Answers[0].ElapsedSeconds != 42 {
		t.Fatalf("unexpected state: %+v", got)
	}
	if !got.TaskShownAt.Equal(shown) {
		t.Fatalf("expected shown-at %v, got %v", shown, got.TaskShownAt)
	}

	if err := st.ClearInterview(ctx); err != nil {
		t.Fatalf("clear interview: %v", err)
	}
	got, err = st.LoadInterview(ctx)
	if err != nil || got.Phase != model.PhaseIdle || got.SessionID != "" {
		t.Fatalf("expected idle state after clear, got %+v err=%v", got, err)
	}
}

func TestDecodeInterviewMigratesV1(t *testing.T) {
	payload := []byte(`{
		"selection": {"specialization": "product_analyst", "experienceLevel": "middle", "companyTier": "tier2", "topic": "ab_testing"},
		"sessionId": "legacy",
		"tasks": [{"task_id": 7, "task_question": "q", "task_number": 1, "total_tasks": 2, "time_limit_minutes": 20},
		          {"task_id": 8, "task_question": "q2", "task_number": 2, "total_tasks": 2, "time_limit_minutes": 20}],
		"currentTaskIndex": 0,
		"answers": [{"taskId": 7, "answer": "my answer"}],
		"feedbacks": [{"task_id": 7, "score": 55}],
		"finalReport": null,
		"hasTrialAvailable": false,
		"paidQuestionsRemaining": 4
	}`)
	state, err := DecodeInterview(1, payload)
	if err != nil {
		t.Fatalf("decode v1: %v", err)
	}
	if state.SchemaVersion != model.InterviewSchemaVersion {
		t.Fatalf("expected migrated schema version, got %d", state.SchemaVersion)
	}
	if state.Phase != model.PhaseInProgress || !state.AwaitingDecision {
		t.Fatalf("expected in-progress awaiting decision, got phase=%s awaiting=%v", state.Phase, state.AwaitingDecision)
	}
	if state.Selection == nil || state.Selection.ExperienceLevel != "middle" || state.Selection.CompanyTier != "tier2" {
		t.Fatalf("unexpected selection: %+v", state.Selection)
	}
	if len(state.Answers) != 1 || state.Answers[0].TaskID != 7 || state.Answers[0].Content != "my answer" {
		t.Fatalf("unexpected answers: %+v", state.Answers)
	}
	if state.HasTrialAvailable || state.PaidQuestionsRemaining != 4 {
		t.Fatalf("unexpected credits: trial=%v paid=%d", state.HasTrialAvailable, state.PaidQuestionsRemaining)
	}
	if !state.CanContinue || state.TasksRemaining != 1 {
		t.Fatalf("expected one remaining task, got can=%v remaining=%d", state.CanContinue, state.TasksRemaining)
	}
}

func TestDecodeInterviewV1Finished(t *testing.T) {
	payload := []byte(`{
		"sessionId": "legacy",
		"tasks": [],
		"answers": [],
		"feedbacks": [],
		"finalReport": {"session_id": "legacy", "overall_score": 80, "task_feedbacks": [], "completed_at": "2026-01-02T03:04:05.123456"},
		"hasTrialAvailable": true,
		"paidQuestionsRemaining": 0
	}`)
	state, err := DecodeInterview(1, payload)
	if err != nil {
		t.Fatalf("decode v1: %v", err)
	}
	if state.Phase != model.PhaseFinished || state.FinalReport == nil {
		t.Fatalf("expected finished state, got %+v", state)
	}
	want := time.Date(2026, 1, 2, 3, 4, 5, 123456000, time.UTC)
	if !state.FinalReport.CompletedAt.Equal(want) {
		t.Fatalf("expected completed at %v, got %v", want, state.FinalReport.CompletedAt)
	}
}

func TestDecodeInterviewRejectsUnknownVersion(t *testing.T) {
	if _, err := DecodeInterview(99, []byte(`{}`)); err == nil {
		t.Fatalf("expected error for unknown schema version")
	}
}

func TestReportsHistory(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	insert := func(id, topic string, score int, at time.Time) {
		t.Helper()
		sel := model.Selection{Specialization: "data_analyst", ExperienceLevel: "junior", CompanyTier: "tier1", Topic: topic}
		report := model.FinalReport{
			SessionID:     id,
			OverallScore:  score,
			TaskFeedbacks: []model.Feedback{{TaskID: 1, Score: score}},
			CompletedAt:   at,
		}
		if err := st.InsertReport(ctx, sel, report); err != nil {
			t.Fatalf("insert report %s: %v", id, err)
		}
	}
	insert("s1", "sql", 40, base)
	insert("s2", "python", 60, base.Add(time.Hour))
	insert("s3", "sql", 80, base.Add(2*time.Hour))
	// Replaying the same session must not duplicate it.
	insert("s3", "sql", 85, base.Add(2*time.Hour))

	all, err := st.ListReports(ctx, model.HistoryFilter{})
	if err != nil {
		t.Fatalf("list reports: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 reports, got %d", len(all))
	}
	if all[0].SessionID != "s1" || all[2].SessionID != "s3" || all[2].OverallScore != 85 {
		t.Fatalf("unexpected order or score: %+v", all)
	}

	sqlOnly, err := st.ListReports(ctx, model.HistoryFilter{Topic: "sql"})
	if err != nil || len(sqlOnly) != 2 {
		t.Fatalf("expected 2 sql reports, got %d err=%v", len(sqlOnly), err)
	}

	since := base.Add(30 * time.Minute)
	recent, err := st.ListReports(ctx, model.HistoryFilter{Since: &since})
	if err != nil || len(recent) != 2 {
		t.Fatalf("expected 2 recent reports, got %d err=%v", len(recent), err)
	}

	last, err := st.ListReports(ctx, model.HistoryFilter{Last: 1})
	if err != nil || len(last) != 1 || last[0].SessionID != "s3" {
		t.Fatalf("expected last report s3, got %+v err=%v", last, err)
	}

	report, err := st.GetReport(ctx, "s2")
	if err != nil {
		t.Fatalf("get report: %v", err)
	}
	if report.OverallScore != 60 || len(report.TaskFeedbacks) != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if _, err := st.GetReport(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
