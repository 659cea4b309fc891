package tui

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/mockprep/internal/api"
	"github.com/verte-zerg/mockprep/internal/auth"
	"github.com/verte-zerg/mockprep/internal/fakeapi"
	"github.com/verte-zerg/mockprep/internal/interview"
	"github.com/verte-zerg/mockprep/internal/model"
	"github.com/verte-zerg/mockprep/internal/payment"
	"github.com/verte-zerg/mockprep/internal/store"
)

const flowEmail = "ada@example.com"

var flowSelection = model.Selection{
	Specialization:  "data_analyst",
	ExperienceLevel: "junior",
	CompanyTier:     "tier1",
	Topic:           "sql",
}

// flow runs the UI model against the fake backend with a signed-in user.
type flow struct {
	fake   *fakeapi.Server
	client *api.Client
	mgr    *auth.Manager
	store  *store.Store
	m      *Model
}

func newFlow(t *testing.T) *flow {
	t.Helper()
	fake := fakeapi.New(fakeapi.Config{TestMode: true})
	srv := httptest.NewServer(fake.Handler())
	t.Cleanup(srv.Close)

	st, err := store.Open(filepath.Join(t.TempDir(), "mockprep.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	var mgr *auth.Manager
	client := api.NewClient(srv.URL, api.WithTokenSource(func() string { return mgr.Token() }))
	mgr = auth.NewManager(client, st)
	_, err = mgr.Register(context.Background(), auth.RegisterInput{
		Name:           "Ada",
		Email:          flowEmail,
		Password:       "secret1",
		RepeatPassword: "secret1",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	f := &flow{fake: fake, client: client, mgr: mgr, store: st}
	f.m = f.newModel(model.NewInterviewState())
	return f
}

func (f *flow) newModel(state model.InterviewState) *Model {
	ctl := interview.NewController(state, f.client, f.store, f.mgr)
	return NewModel(Deps{
		Auth:           f.mgr,
		Options:        f.client,
		Interview:      ctl,
		Payments:       payment.NewGate(f.client, nil, payment.Config{TestMode: true}),
		RequestTimeout: 5 * time.Second,
	})
}

// start walks from landing into the first task.
func (f *flow) start(t *testing.T) {
	t.Helper()
	f.m.beginInterview()
	if f.m.screen != screenSelection {
		t.Fatalf("expected selection, got screen %v", f.m.screen)
	}
	f.m.Update(f.m.startCmd(flowSelection)())
	if f.m.screen != screenInterview {
		t.Fatalf("expected interview, got screen %v (err %q)", f.m.screen, f.m.errMsg)
	}
}

// runRequest executes a command built by startRequest and returns the
// messages it produced, without the spinner ticks.
func runRequest(t *testing.T, cmd tea.Cmd) []tea.Msg {
	t.Helper()
	if cmd == nil {
		t.Fatalf("expected a request command")
	}
	batch, ok := cmd().(tea.BatchMsg)
	if !ok {
		t.Fatalf("expected a batched request")
	}
	var msgs []tea.Msg
	for _, c := range batch {
		msg := c()
		if _, tick := msg.(spinner.TickMsg); tick {
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestLastAnswerRequestsReport(t *testing.T) {
	f := newFlow(t)
	f.start(t)

	_, cmd := f.m.Update(f.m.submitCmd("I would join orders to users and group by month")())
	if !f.m.busy {
		t.Fatalf("expected the report request to hold the busy flag")
	}
	if got := f.m.deps.Interview.Phase(); got != model.PhaseInProgress {
		t.Fatalf("expected in_progress before the report arrives, got %s", got)
	}
	if calls := f.fake.Calls(fakeapi.RouteFinish); calls != 0 {
		t.Fatalf("report requested before the command ran: %d calls", calls)
	}

	msgs := runRequest(t, cmd)
	if len(msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(msgs))
	}
	finished, ok := msgs[0].(finishedMsg)
	if !ok {
		t.Fatalf("expected finishedMsg, got %T", msgs[0])
	}
	if finished.err != nil {
		t.Fatalf("finish: %v", finished.err)
	}
	f.m.Update(finished)
	if f.m.screen != screenReport {
		t.Fatalf("expected report screen, got %v", f.m.screen)
	}
	if got := f.m.deps.Interview.Phase(); got != model.PhaseFinished {
		t.Fatalf("expected finished, got %s", got)
	}
	if f.m.busy {
		t.Fatalf("expected busy flag to clear")
	}
}

func TestRetryAfterTrialOpensPayment(t *testing.T) {
	f := newFlow(t)
	if !f.m.profile.TrialQuestionFlag {
		t.Fatalf("expected a fresh account to hold the trial")
	}
	f.start(t)
	_, cmd := f.m.Update(f.m.submitCmd("a window function over departments")())
	for _, msg := range runRequest(t, cmd) {
		f.m.Update(msg)
	}
	if f.m.screen != screenReport {
		t.Fatalf("expected report screen, got %v", f.m.screen)
	}
	if f.m.profile == nil || f.m.profile.TrialQuestionFlag || f.m.profile.PaidQuestionsLeft != 0 {
		t.Fatalf("expected the spent trial to show, got %+v", f.m.profile)
	}

	_, cmd = f.m.Update(key("r"))
	if f.m.screen != screenPayment {
		t.Fatalf("expected payment screen, got %v", f.m.screen)
	}
	if got := f.m.deps.Interview.Phase(); got != model.PhaseFinished {
		t.Fatalf("expected the report to stay, got %s", got)
	}
	if cmd == nil {
		t.Fatalf("expected a plans request")
	}
	for _, msg := range runRequest(t, cmd) {
		f.m.Update(msg)
	}
	f.m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if f.m.screen != screenReport {
		t.Fatalf("expected to return to the report, got %v", f.m.screen)
	}
}

func TestExpiredTokenAfterAnswerSignsOut(t *testing.T) {
	f := newFlow(t)
	f.start(t)
	f.fake.FailNext(fakeapi.RouteMe, http.StatusUnauthorized, 1)

	f.m.Update(f.m.submitCmd("group by and having")())
	if f.m.screen != screenAuth {
		t.Fatalf("expected sign-in screen, got %v", f.m.screen)
	}
	if f.m.profile != nil {
		t.Fatalf("expected profile to be cleared")
	}
	if got := f.m.deps.Interview.Phase(); got != model.PhaseAuthRequired {
		t.Fatalf("expected auth_required, got %s", got)
	}
	if f.m.busy {
		t.Fatalf("expected no report request after sign-out")
	}
	if calls := f.fake.Calls(fakeapi.RouteFinish); calls != 0 {
		t.Fatalf("expected no report request, got %d", calls)
	}
	if out := f.m.renderFooter(); !containsAll(out, []string{"Not signed in"}) {
		t.Fatalf("footer still signed in: %s", out)
	}
}

func TestOutOfCreditsMidSessionOpensPayment(t *testing.T) {
	f := newFlow(t)
	if !f.fake.SetCredits(flowEmail, false, 5) {
		t.Fatalf("unknown user")
	}
	f.start(t)

	_, cmd := f.m.Update(f.m.submitCmd("first answer")())
	if cmd != nil {
		t.Fatalf("expected no command while the user decides")
	}
	f.m.Update(key("c"))
	if got := f.m.deps.Interview.State().CurrentTaskIndex; got != 1 {
		t.Fatalf("expected second task, got index %d", got)
	}

	f.fake.SetCredits(flowEmail, false, 0)
	_, cmd = f.m.Update(f.m.submitCmd("second answer")())
	if f.m.screen != screenPayment {
		t.Fatalf("expected payment screen, got %v (err %q)", f.m.screen, f.m.errMsg)
	}
	if f.m.errMsg != "" {
		t.Fatalf("expected no raw error, got %q", f.m.errMsg)
	}
	for _, msg := range runRequest(t, cmd) {
		f.m.Update(msg)
	}
	if len(f.m.plans.Items()) == 0 {
		t.Fatalf("expected plans to load")
	}

	f.m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if f.m.screen != screenInterview {
		t.Fatalf("expected to return to the open task, got %v", f.m.screen)
	}
	st := f.m.deps.Interview.State()
	if st.Phase != model.PhaseInProgress || st.AwaitingDecision || len(st.Answers) != 1 {
		t.Fatalf("expected the second task to stay open, got %+v", st)
	}
}

func TestResumedAnswerIsReconciled(t *testing.T) {
	f := newFlow(t)
	f.start(t)
	saved, err := f.store.LoadInterview(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := f.m.deps.Interview.Submit(context.Background(), "answer sent before the crash"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	m := f.newModel(saved)
	if m.screen != screenInterview {
		t.Fatalf("expected resumed interview, got %v", m.screen)
	}
	_, cmd := m.Update(m.reconcileCmd()())
	if !m.deps.Interview.State().AwaitingDecision {
		t.Fatalf("expected the accepted answer to be adopted")
	}
	msgs := runRequest(t, cmd)
	if len(msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(msgs))
	}
	if _, ok := msgs[0].(finishedMsg); !ok {
		t.Fatalf("expected finishedMsg, got %T", msgs[0])
	}
	if calls := f.fake.Calls(fakeapi.RouteAnswer); calls != 1 {
		t.Fatalf("expected the answer to be sent once, got %d", calls)
	}
}
