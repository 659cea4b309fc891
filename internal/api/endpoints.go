package api

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/verte-zerg/mockprep/internal/model"
)

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Name             string `json:"name"`
	Email            string `json:"email"`
	TelegramUsername string `json:"telegram_username,omitempty"`
	Password         string `json:"password"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Register creates an account and returns its token and profile.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (model.AuthResult, error) {
	var res model.AuthResult
	if err := c.post(ctx, "/auth/register", false, req, &res); err != nil {
		return model.AuthResult{}, err
	}
	return res, nil
}

// Login exchanges an email or telegram handle and password for a token.
func (c *Client) Login(ctx context.Context, req LoginRequest) (model.AuthResult, error) {
	var res model.AuthResult
	if err := c.post(ctx, "/auth/login", false, req, &res); err != nil {
		return model.AuthResult{}, err
	}
	return res, nil
}

// Me returns the profile of the token owner.
func (c *Client) Me(ctx context.Context) (model.UserProfile, error) {
	var res model.UserProfile
	if err := c.get(ctx, "/auth/me", true, &res); err != nil {
		return model.UserProfile{}, err
	}
	return res, nil
}

// Specializations lists the available specializations.
func (c *Client) Specializations(ctx context.Context) ([]model.Option, error) {
	var res struct {
		Specializations []model.Option `json:"specializations"`
	}
	if err := c.get(ctx, "/interview/specializations", false, &res); err != nil {
		return nil, err
	}
	return res.Specializations, nil
}

// ExperienceLevels lists the available experience levels.
func (c *Client) ExperienceLevels(ctx context.Context) ([]model.Option, error) {
	var res struct {
		Levels []model.Option `json:"levels"`
	}
	if err := c.get(ctx, "/interview/experience-levels", false, &res); err != nil {
		return nil, err
	}
	return res.Levels, nil
}

// CompanyTiers lists the available company tiers.
func (c *Client) CompanyTiers(ctx context.Context) ([]model.Option, error) {
	var res struct {
		Tiers []model.Option `json:"tiers"`
	}
	if err := c.get(ctx, "/interview/company-tiers", false, &res); err != nil {
		return nil, err
	}
	return res.Tiers, nil
}

// Topics lists the available interview topics.
func (c *Client) Topics(ctx context.Context) ([]model.Option, error) {
	var res struct {
		Topics []model.Option `json:"topics"`
	}
	if err := c.get(ctx, "/interview/topics", false, &res); err != nil {
		return nil, err
	}
	return res.Topics, nil
}

// Options fetches every selection enumeration concurrently.
func (c *Client) Options(ctx context.Context) (model.Options, error) {
	var opts model.Options
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := c.Specializations(gctx)
		opts.Specializations = v
		return err
	})
	g.Go(func() error {
		v, err := c.ExperienceLevels(gctx)
		opts.ExperienceLevels = v
		return err
	})
	g.Go(func() error {
		v, err := c.CompanyTiers(gctx)
		opts.CompanyTiers = v
		return err
	})
	g.Go(func() error {
		v, err := c.Topics(gctx)
		opts.Topics = v
		return err
	})
	if err := g.Wait(); err != nil {
		return model.Options{}, err
	}
	return opts, nil
}

// StartInterview creates a session for the selection.
func (c *Client) StartInterview(ctx context.Context, sel model.Selection) (model.StartResult, error) {
	var res model.StartResult
	if err := c.post(ctx, "/interview/start", true, sel, &res); err != nil {
		return model.StartResult{}, err
	}
	return res, nil
}

// Session returns the server view of a session.
func (c *Client) Session(ctx context.Context, sessionID string) (model.SessionStatus, error) {
	var res model.SessionStatus
	if err := c.get(ctx, sessionPath(sessionID, ""), true, &res); err != nil {
		return model.SessionStatus{}, err
	}
	return res, nil
}

// SubmitAnswer sends the answer for a task and returns its feedback.
func (c *Client) SubmitAnswer(ctx context.Context, req model.AnswerRequest) (model.SubmitResult, error) {
	var res model.SubmitResult
	if err := c.post(ctx, sessionPath(req.SessionID, "/answer"), true, req, &res); err != nil {
		return model.SubmitResult{}, err
	}
	return res, nil
}

type finalReportWire struct {
	SessionID            string           `json:"session_id"`
	OverallScore         int              `json:"overall_score"`
	TaskFeedbacks        []model.Feedback `json:"task_feedbacks"`
	OverallStrengths     []string         `json:"overall_strengths"`
	AreasToImprove       []string         `json:"areas_to_improve"`
	StudyRecommendations []string         `json:"study_recommendations"`
	MotivationalMessage  string           `json:"motivational_message"`
	CompletedAt          string           `json:"completed_at"`
}

// FinishInterview requests the aggregated report. The call carries only the
// session id, so repeating it never resends answers.
func (c *Client) FinishInterview(ctx context.Context, sessionID string) (model.FinalReport, error) {
	var res finalReportWire
	if err := c.post(ctx, sessionPath(sessionID, "/finish"), true, nil, &res); err != nil {
		return model.FinalReport{}, err
	}
	completedAt, err := parseTimestamp(res.CompletedAt)
	if err != nil {
		return model.FinalReport{}, &Error{Status: 200, Message: RequestFailedMessage, Err: err}
	}
	if res.SessionID == "" {
		res.SessionID = sessionID
	}
	return model.FinalReport{
		SessionID:            res.SessionID,
		OverallScore:         res.OverallScore,
		TaskFeedbacks:        res.TaskFeedbacks,
		OverallStrengths:     res.OverallStrengths,
		AreasToImprove:       res.AreasToImprove,
		StudyRecommendations: res.StudyRecommendations,
		MotivationalMessage:  res.MotivationalMessage,
		CompletedAt:          completedAt,
	}, nil
}

// Plans lists the purchasable question packs.
func (c *Client) Plans(ctx context.Context) ([]model.Plan, error) {
	var res struct {
		Plans []model.Plan `json:"plans"`
	}
	if err := c.get(ctx, "/payment/plans", false, &res); err != nil {
		return nil, err
	}
	return res.Plans, nil
}

// CreatePayment creates a payment intent for a plan.
func (c *Client) CreatePayment(ctx context.Context, planID, returnURL string) (model.Payment, error) {
	body := struct {
		PlanID    string `json:"plan_id"`
		ReturnURL string `json:"return_url,omitempty"`
	}{PlanID: planID, ReturnURL: returnURL}
	var res model.Payment
	if err := c.post(ctx, "/payment/create", true, body, &res); err != nil {
		return model.Payment{}, err
	}
	return res, nil
}

// MockCompletePayment simulates provider confirmation on test backends.
func (c *Client) MockCompletePayment(ctx context.Context, paymentID string) (model.PaymentStatus, error) {
	var res model.PaymentStatus
	if err := c.post(ctx, "/payment/mock-complete/"+url.PathEscape(paymentID), true, nil, &res); err != nil {
		return model.PaymentStatus{}, err
	}
	return res, nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// parseTimestamp accepts RFC 3339 and the zone-less ISO form; the latter is read as UTC.
func parseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", value)
}
