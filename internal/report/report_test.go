package report

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/mockprep/internal/model"
	"github.com/verte-zerg/mockprep/internal/store"
)

func seedHistory(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "mockprep.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})

	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	seed := []struct {
		id    string
		topic string
		score int
	}{
		{"s1", "sql", 40},
		{"s2", "python", 90},
		{"s3", "sql", 60},
	}
	for i, s := range seed {
		sel := model.Selection{Specialization: "data_analyst", ExperienceLevel: "junior", CompanyTier: "tier1", Topic: s.topic}
		rep := model.FinalReport{
			SessionID:     s.id,
			OverallScore:  s.score,
			TaskFeedbacks: []model.Feedback{{TaskID: i, Score: s.score}},
			CompletedAt:   base.Add(time.Duration(i) * time.Hour),
		}
		if err := st.InsertReport(ctx, sel, rep); err != nil {
			t.Fatalf("insert report: %v", err)
		}
	}
	return st
}

func TestBuildHistory(t *testing.T) {
	st := seedHistory(t)
	ctx := context.Background()

	h, err := BuildHistory(ctx, st, model.HistoryFilter{})
	if err != nil {
		t.Fatalf("build history: %v", err)
	}
	if len(h.Reports) != 3 {
		t.Fatalf("expected 3 reports, got %d", len(h.Reports))
	}
	if h.Average != 190.0/3 {
		t.Fatalf("unexpected average %.2f", h.Average)
	}
	if h.Best != 90 {
		t.Fatalf("expected best 90, got %d", h.Best)
	}
	if len(h.Trend) != 3 {
		t.Fatalf("expected 3 trend points, got %d", len(h.Trend))
	}
	if len(h.Topics) != 2 || h.Topics[0].Topic != "sql" || h.Topics[0].Average != 50 {
		t.Fatalf("expected sql to be the weakest topic, got %+v", h.Topics)
	}

	last, err := BuildHistory(ctx, st, model.HistoryFilter{Topic: "sql", Last: 1})
	if err != nil {
		t.Fatalf("build filtered history: %v", err)
	}
	if len(last.Reports) != 1 || last.Reports[0].SessionID != "s3" {
		t.Fatalf("unexpected filtered history: %+v", last.Reports)
	}
}

func TestRenderHistory(t *testing.T) {
	st := seedHistory(t)
	h, err := BuildHistory(context.Background(), st, model.HistoryFilter{})
	if err != nil {
		t.Fatalf("build history: %v", err)
	}
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	if err := RenderHistory(&buf, h, now); err != nil {
		t.Fatalf("render history: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"When", "3 days ago", "Avg score: 63.3", "Best score: 90", "Trend: [", "Per topic (weakest first)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := RenderHistory(&buf, History{}, now); err != nil {
		t.Fatalf("render empty history: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "No interviews found." {
		t.Fatalf("unexpected empty output: %q", buf.String())
	}
}

func TestRenderReport(t *testing.T) {
	rep := model.FinalReport{
		SessionID:    "s1",
		OverallScore: 72,
		TaskFeedbacks: []model.Feedback{{
			TaskQuestion:     "Explain the difference between WHERE and HAVING.",
			Score:            72,
			Strengths:        []string{"Clear"},
			Improvements:     []string{"Add an example"},
			DetailedFeedback: "Good start.",
		}},
		OverallStrengths:     []string{"Consistent reasoning"},
		AreasToImprove:       []string{"Depth"},
		StudyRecommendations: []string{"Review aggregation"},
		MotivationalMessage:  "Keep going!",
	}
	var buf bytes.Buffer
	if err := Render(&buf, rep); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"Overall score: 72/100",
		"Question",
		"Task 1: Explain the difference",
		"  Strengths:\n    - Clear",
		"Areas to improve:\n  - Depth",
		"Study recommendations:",
		"Keep going!",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestExport(t *testing.T) {
	reports := []model.ReportSummary{{
		SessionID:    "s1",
		Selection:    model.Selection{Topic: "sql"},
		OverallScore: 80,
		TaskCount:    2,
		CompletedAt:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}}

	var buf bytes.Buffer
	if err := Export(&buf, reports, FormatJSON); err != nil {
		t.Fatalf("export json: %v", err)
	}
	var decoded []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if len(decoded) != 1 || decoded[0]["topic"] != "sql" || decoded[0]["overall_score"] != float64(80) {
		t.Fatalf("unexpected json export: %v", decoded)
	}

	buf.Reset()
	if err := Export(&buf, reports, FormatYAML); err != nil {
		t.Fatalf("export yaml: %v", err)
	}
	var fromYAML []map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &fromYAML); err != nil {
		t.Fatalf("decode yaml: %v", err)
	}
	if len(fromYAML) != 1 || fromYAML[0]["session_id"] != "s1" || fromYAML[0]["task_count"] != 2 {
		t.Fatalf("unexpected yaml export: %v", fromYAML)
	}

	if err := Export(&buf, reports, FormatTable); err == nil {
		t.Fatalf("expected error for table export")
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat(" JSON "); err != nil || f != FormatJSON {
		t.Fatalf("expected json, got %q err=%v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Fatalf("expected error for xml")
	}
}
