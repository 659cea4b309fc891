package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/mockprep/internal/model"
)

const (
	questionWidth = 48
	trendWindow   = 3
)

// Lister loads history summaries.
type Lister interface {
	ListReports(ctx context.Context, filter model.HistoryFilter) ([]model.ReportSummary, error)
}

// History contains precomputed data for history rendering.
type History struct {
	Reports []model.ReportSummary
	Average float64
	Best    int
	Trend   []float64
	Topics  []TopicScore
}

// BuildHistory loads and prepares history for rendering.
func BuildHistory(ctx context.Context, st Lister, filter model.HistoryFilter) (History, error) {
	reports, err := st.ListReports(ctx, filter)
	if err != nil {
		return History{}, fmt.Errorf("failed to load history: %w", err)
	}
	h := History{Reports: reports}
	if len(reports) == 0 {
		return h, nil
	}
	scores := make([]float64, len(reports))
	var total float64
	for i, r := range reports {
		scores[i] = float64(r.OverallScore)
		total += scores[i]
		h.Best = max(h.Best, r.OverallScore)
	}
	h.Average = total / float64(len(reports))
	h.Trend = MovingAverage(scores, trendWindow)
	h.Topics = TopicScores(reports)
	return h, nil
}

// Render prints a finished interview report.
func Render(w io.Writer, r model.FinalReport) error {
	p := &printer{w: w}
	p.linef("Interview report")
	p.linef("Overall score: %d/100", r.OverallScore)
	if !r.CompletedAt.IsZero() {
		p.linef("Completed: %s", r.CompletedAt.Local().Format("2006-01-02 15:04"))
	}
	p.blank()

	if len(r.TaskFeedbacks) > 0 {
		rows := make([][]string, 0, len(r.TaskFeedbacks))
		for i, fb := range r.TaskFeedbacks {
			rows = append(rows, []string{
				strconv.Itoa(i + 1),
				truncate(oneLine(fb.TaskQuestion), questionWidth),
				strconv.Itoa(fb.Score),
			})
		}
		for _, line := range formatTable([]string{"#", "Question", "Score"}, rows, map[int]bool{0: true, 2: true}) {
			p.linef("%s", line)
		}
		p.blank()
		for i, fb := range r.TaskFeedbacks {
			p.linef("Task %d: %s", i+1, oneLine(fb.TaskQuestion))
			if fb.DetailedFeedback != "" {
				p.linef("  %s", fb.DetailedFeedback)
			}
			p.bullets("  Strengths", fb.Strengths)
			p.bullets("  Improve", fb.Improvements)
		}
		p.blank()
	}

	p.bullets("Strengths", r.OverallStrengths)
	p.bullets("Areas to improve", r.AreasToImprove)
	p.bullets("Study recommendations", r.StudyRecommendations)
	if r.MotivationalMessage != "" {
		p.blank()
		p.linef("%s", r.MotivationalMessage)
	}
	return p.err
}

// RenderHistory prints a table of past interviews with a score trend.
func RenderHistory(w io.Writer, h History, now time.Time) error {
	p := &printer{w: w}
	if len(h.Reports) == 0 {
		p.linef("No interviews found.")
		return p.err
	}
	rows := make([][]string, 0, len(h.Reports))
	for _, r := range h.Reports {
		rows = append(rows, []string{
			humanize.RelTime(r.CompletedAt, now, "ago", "from now"),
			r.Selection.Topic,
			r.Selection.ExperienceLevel,
			r.Selection.CompanyTier,
			strconv.Itoa(r.TaskCount),
			strconv.Itoa(r.OverallScore),
		})
	}
	headers := []string{"When", "Topic", "Level", "Tier", "Tasks", "Score"}
	for _, line := range formatTable(headers, rows, map[int]bool{4: true, 5: true}) {
		p.linef("%s", line)
	}
	p.blank()
	p.linef("Interviews: %s", humanize.Comma(int64(len(h.Reports))))
	p.linef("Avg score: %.1f", h.Average)
	p.linef("Best score: %d", h.Best)
	p.linef("Trend: [%s]", Sparkline(h.Trend))

	if len(h.Topics) > 1 {
		p.blank()
		p.linef("Per topic (weakest first)")
		topicRows := make([][]string, 0, len(h.Topics))
		for _, t := range h.Topics {
			topicRows = append(topicRows, []string{t.Topic, strconv.Itoa(t.Count), fmt.Sprintf("%.1f", t.Average)})
		}
		for _, line := range formatTable([]string{"Topic", "Count", "Avg"}, topicRows, map[int]bool{1: true, 2: true}) {
			p.linef("%s", line)
		}
	}
	return p.err
}

// Format is an export encoding.
type Format string

// Export formats.
const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat validates a format name.
func ParseFormat(value string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(value))); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (want table, json or yaml)", value)
	}
}

type exportRecord struct {
	SessionID       string    `json:"session_id" yaml:"session_id"`
	Specialization  string    `json:"specialization" yaml:"specialization"`
	ExperienceLevel string    `json:"experience_level" yaml:"experience_level"`
	CompanyTier     string    `json:"company_tier" yaml:"company_tier"`
	Topic           string    `json:"topic" yaml:"topic"`
	OverallScore    int       `json:"overall_score" yaml:"overall_score"`
	TaskCount       int       `json:"task_count" yaml:"task_count"`
	CompletedAt     time.Time `json:"completed_at" yaml:"completed_at"`
}

// Export writes history summaries as JSON or YAML.
func Export(w io.Writer, reports []model.ReportSummary, format Format) error {
	records := make([]exportRecord, 0, len(reports))
	for _, r := range reports {
		records = append(records, exportRecord{
			SessionID:       r.SessionID,
			Specialization:  r.Selection.Specialization,
			ExperienceLevel: r.Selection.ExperienceLevel,
			CompanyTier:     r.Selection.CompanyTier,
			Topic:           r.Selection.Topic,
			OverallScore:    r.OverallScore,
			TaskCount:       r.TaskCount,
			CompletedAt:     r.CompletedAt.UTC(),
		})
	}
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("export does not support format %q", format)
	}
}

// TopicScore aggregates scores for one topic.
type TopicScore struct {
	Topic   string
	Count   int
	Average float64
}

// TopicScores groups reports by topic, lowest average first.
func TopicScores(reports []model.ReportSummary) []TopicScore {
	sums := map[string]int{}
	counts := map[string]int{}
	for _, r := range reports {
		sums[r.Selection.Topic] += r.OverallScore
		counts[r.Selection.Topic]++
	}
	out := make([]TopicScore, 0, len(counts))
	for topic, n := range counts {
		out = append(out, TopicScore{Topic: topic, Count: n, Average: float64(sums[topic]) / float64(n)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Average == out[j].Average {
			return out[i].Topic < out[j].Topic
		}
		return out[i].Average < out[j].Average
	})
	return out
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// printer keeps the first write error so rendering code stays linear.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) linef(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *printer) blank() {
	p.linef("")
}

func (p *printer) bullets(title string, items []string) {
	if len(items) == 0 {
		return
	}
	p.linef("%s:", title)
	indent := strings.Repeat(" ", len(title)-len(strings.TrimLeft(title, " ")))
	for _, item := range items {
		p.linef("%s  - %s", indent, item)
	}
}
