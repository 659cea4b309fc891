package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/mockprep/internal/fakeapi"
	"github.com/verte-zerg/mockprep/internal/model"
)

func newFakeClient(t *testing.T, cfg fakeapi.Config) (*Client, *fakeapi.Server, *string) {
	t.Helper()
	fake := fakeapi.New(cfg)
	srv := httptest.NewServer(fake.Handler())
	t.Cleanup(srv.Close)
	token := new(string)
	client := NewClient(srv.URL, WithTokenSource(func() string { return *token }))
	return client, fake, token
}

func TestParseErrorDetailShapes(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"string detail", 400, `{"detail":"Session not found"}`, "Session not found"},
		{"validation list", 422, `{"detail":[{"loc":["body","password"],"msg":"too short","type":"x"},{"loc":["body"],"msg":"bad body"}]}`, "password: too short; bad body"},
		{"object detail", 400, `{"detail":{"message":"plan disabled"}}`, "plan disabled"},
		{"missing detail", 404, `{"error":"x"}`, RequestFailedMessage},
		{"non json", 400, `<html>oops</html>`, RequestFailedMessage},
		{"server error hides text", 500, `{"detail":"Traceback..."}`, ServerUnavailableMessage},
		{"bad gateway", 502, ``, ServerUnavailableMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := parseError(tt.status, []byte(tt.body))
			assert.Equal(t, tt.status, err.Status)
			assert.Equal(t, tt.want, err.Message)
		})
	}
}

func TestAuthenticatedCallWithoutTokenSkipsNetwork(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL)
	_, err := client.Me(context.Background())
	require.ErrorIs(t, err, ErrNoToken)
	assert.Equal(t, 0, hits)
}

func TestRequestHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user_id":"u1","trial_question_flg":true,"paid_questions_number_left":2}`))
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL+"/", WithTokenSource(func() string { return "tok" }), WithUserAgent("mockprep-test"))
	profile, err := client.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", profile.UserID)
	assert.True(t, profile.TrialQuestionFlag)
	assert.Equal(t, 2, profile.PaidQuestionsLeft)
	assert.Equal(t, "Bearer tok", got.Get("Authorization"))
	assert.Equal(t, "mockprep-test", got.Get("User-Agent"))
	assert.NotEmpty(t, got.Get("X-Request-ID"))
}

func TestNetworkErrorIsTyped(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClient(url, WithTimeout(time.Second))
	_, err := client.Plans(context.Background())
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 0, apiErr.Status)
	assert.Equal(t, NetworkErrorMessage, Message(err))
	assert.NotNil(t, errors.Unwrap(err))
}

func TestLoginUnauthorized(t *testing.T) {
	client, _, _ := newFakeClient(t, fakeapi.Config{})
	_, err := client.Login(context.Background(), LoginRequest{Login: "nobody@example.com", Password: "secret1"})
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, "Invalid login or password", Message(err))
}

func TestInterviewRoundTrip(t *testing.T) {
	client, fake, token := newFakeClient(t, fakeapi.Config{TestMode: true})
	ctx := context.Background()

	auth, err := client.Register(ctx, RegisterRequest{Name: "Ann", Email: "ann@example.com", Password: "secret1"})
	require.NoError(t, err)
	require.NotEmpty(t, auth.AccessToken)
	assert.True(t, auth.User.TrialQuestionFlag)
	*token = auth.AccessToken

	opts, err := client.Options(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, opts.Specializations)
	assert.NotEmpty(t, opts.ExperienceLevels)
	assert.NotEmpty(t, opts.CompanyTiers)
	assert.NotEmpty(t, opts.Topics)

	start, err := client.StartInterview(ctx, model.Selection{
		Specialization: "product_analyst", ExperienceLevel: "junior", CompanyTier: "tier1", Topic: "sql",
	})
	require.NoError(t, err)
	require.NotEmpty(t, start.SessionID)
	require.GreaterOrEqual(t, len(start.Tasks), 1)
	require.LessOrEqual(t, len(start.Tasks), 3)

	status, err := client.Session(ctx, start.SessionID)
	require.NoError(t, err)
	before := status.TasksRemaining
	require.NotNil(t, status.CurrentTask)
	assert.Equal(t, start.Tasks[0].TaskID, status.CurrentTask.TaskID)

	res, err := client.SubmitAnswer(ctx, model.AnswerRequest{
		SessionID: start.SessionID, TaskID: start.Tasks[0].TaskID, Answer: "use a window function over salaries", TimeSpentSeconds: 42,
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.Feedback.Score, 0)
	assert.LessOrEqual(t, res.Feedback.Score, 100)
	assert.Equal(t, before-1, res.TasksRemaining)

	first, err := client.FinishInterview(ctx, start.SessionID)
	require.NoError(t, err)
	second, err := client.FinishInterview(ctx, start.SessionID)
	require.NoError(t, err)
	assert.Equal(t, first.OverallScore, second.OverallScore)
	assert.Equal(t, start.SessionID, first.SessionID)
	assert.False(t, first.CompletedAt.IsZero())
	assert.Equal(t, 2, fake.Calls(fakeapi.RouteFinish))
}

func TestPaymentEndpoints(t *testing.T) {
	client, _, token := newFakeClient(t, fakeapi.Config{TestMode: true})
	ctx := context.Background()

	plans, err := client.Plans(ctx)
	require.NoError(t, err)
	require.Len(t, plans, len(fakeapi.Plans))

	_, err = client.CreatePayment(ctx, plans[0].PlanID, "")
	require.ErrorIs(t, err, ErrNoToken)

	auth, err := client.Register(ctx, RegisterRequest{Name: "Bob", Email: "bob@example.com", Password: "secret1"})
	require.NoError(t, err)
	*token = auth.AccessToken

	pay, err := client.CreatePayment(ctx, plans[0].PlanID, "mockprep://done")
	require.NoError(t, err)
	assert.NotEmpty(t, pay.ConfirmationURL)

	st, err := client.MockCompletePayment(ctx, pay.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, "success", st.Status)

	me, err := client.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, plans[0].QuestionsCount, me.PaidQuestionsLeft)
}

func TestParseTimestamp(t *testing.T) {
	got, err := parseTimestamp("2025-02-03T10:11:12.123456")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 2, 3, 10, 11, 12, 123456000, time.UTC), got)

	got, err = parseTimestamp("2025-02-03T10:11:12+03:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 2, 3, 7, 11, 12, 0, time.UTC), got)

	_, err = parseTimestamp("yesterday")
	assert.Error(t, err)
}
