// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/verte-zerg/mockprep/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Fixed width keeps lexical order equal to time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store wraps SQLite access for auth, interview and history data.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection keeps writes serialized and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	store := &Store{db: db, now: time.Now}
	if err := store.migrate(context.Background()); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS auth (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		token TEXT NOT NULL,
		profile TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS interview_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		schema_version INTEGER NOT NULL,
		payload TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS reports (
		session_id TEXT PRIMARY KEY,
		specialization TEXT NOT NULL,
		experience_level TEXT NOT NULL,
		company_tier TEXT NOT NULL,
		topic TEXT NOT NULL,
		overall_score INTEGER NOT NULL,
		task_count INTEGER NOT NULL,
		payload TEXT NOT NULL,
		completed_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reports_completed_at ON reports(completed_at);
	CREATE INDEX IF NOT EXISTS idx_reports_topic ON reports(topic);`,
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY)`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	var current int
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	for i := current; i < len(migrations); i++ {
		version := i + 1
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		for _, stmt := range splitStatements(migrations[i]) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("failed to apply migration %d: %w", version, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

func splitStatements(script string) []string {
	parts := strings.Split(script, ";")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if stmt := strings.TrimSpace(part); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

// SchemaVersion returns the number of applied migrations.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&v)
	return v, err
}

// SaveAuth stores the bearer token and profile in one write.
func (s *Store) SaveAuth(ctx context.Context, token string, profile *model.UserProfile) error {
	payload, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO auth (id, token, profile, updated_at) VALUES (1, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET token = excluded.token, profile = excluded.profile, updated_at = excluded.updated_at`,
		token, string(payload), s.now().UTC().Format(timeLayout))
	return err
}

// LoadAuth returns the stored token and profile. A missing row yields an empty token.
func (s *Store) LoadAuth(ctx context.Context) (string, *model.UserProfile, error) {
	var token, payload string
	err := s.db.QueryRowContext(ctx, `SELECT token, profile FROM auth WHERE id = 1`).Scan(&token, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, nil
	}
	if err != nil {
		return "", nil, err
	}
	var profile *model.UserProfile
	if err := json.Unmarshal([]byte(payload), &profile); err != nil {
		return "", nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	return token, profile, nil
}

// ClearAuth removes the stored credentials.
func (s *Store) ClearAuth(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM auth WHERE id = 1`)
	return err
}

// SaveInterview stores the interview snapshot at the current schema version.
func (s *Store) SaveInterview(ctx context.Context, state model.InterviewState) error {
	state.SchemaVersion = model.InterviewSchemaVersion
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode interview state: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO interview_state (id, schema_version, payload, updated_at) VALUES (1, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET schema_version = excluded.schema_version, payload = excluded.payload, updated_at = excluded.updated_at`,
		state.SchemaVersion, string(payload), s.now().UTC().Format(timeLayout))
	return err
}

// LoadInterview returns the stored snapshot, migrated to the current schema.
// A missing row yields a fresh idle state.
func (s *Store) LoadInterview(ctx context.Context) (model.InterviewState, error) {
	var version int
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT schema_version, payload FROM interview_state WHERE id = 1`).Scan(&version, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return model.NewInterviewState(), nil
	}
	if err != nil {
		return model.InterviewState{}, err
	}
	return DecodeInterview(version, []byte(payload))
}

// ClearInterview removes the stored snapshot.
func (s *Store) ClearInterview(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM interview_state WHERE id = 1`)
	return err
}

// InsertReport stores a finished session in history. Re-inserting the same
// session replaces the row.
func (s *Store) InsertReport(ctx context.Context, sel model.Selection, report model.FinalReport) error {
	if report.SessionID == "" {
		return fmt.Errorf("report has no session id")
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	completedAt := report.CompletedAt
	if completedAt.IsZero() {
		completedAt = s.now()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reports (session_id, specialization, experience_level, company_tier, topic, overall_score, task_count, payload, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
			overall_score = excluded.overall_score,
			task_count = excluded.task_count,
			payload = excluded.payload,
			completed_at = excluded.completed_at`,
		report.SessionID,
		sel.Specialization,
		sel.ExperienceLevel,
		sel.CompanyTier,
		sel.Topic,
		report.OverallScore,
		len(report.TaskFeedbacks),
		string(payload),
		completedAt.UTC().Format(timeLayout),
	)
	return err
}

// ListReports returns history summaries ordered by completion time.
func (s *Store) ListReports(ctx context.Context, filter model.HistoryFilter) ([]model.ReportSummary, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if filter.Topic != "" {
		clauses = append(clauses, "topic = ?")
		args = append(args, filter.Topic)
	}
	if filter.Since != nil {
		clauses = append(clauses, "completed_at >= ?")
		args = append(args, filter.Since.UTC().Format(timeLayout))
	}
	query := fmt.Sprintf(`SELECT session_id, specialization, experience_level, company_tier, topic, overall_score, task_count, completed_at
		FROM reports
		WHERE %s
		ORDER BY completed_at ASC`, strings.Join(clauses, " AND "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var out []model.ReportSummary
	for rows.Next() {
		var r model.ReportSummary
		var completedAt string
		if err := rows.Scan(&r.SessionID, &r.Selection.Specialization, &r.Selection.ExperienceLevel,
			&r.Selection.CompanyTier, &r.Selection.Topic, &r.OverallScore, &r.TaskCount, &completedAt); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(timeLayout, completedAt)
		if err != nil {
			return nil, err
		}
		r.CompletedAt = parsed
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if filter.Last > 0 && len(out) > filter.Last {
		out = out[len(out)-filter.Last:]
	}
	return out, nil
}

// GetReport returns the full report for a session.
func (s *Store) GetReport(ctx context.Context, sessionID string) (model.FinalReport, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM reports WHERE session_id = ?`, sessionID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return model.FinalReport{}, ErrNotFound
	}
	if err != nil {
		return model.FinalReport{}, err
	}
	var report model.FinalReport
	if err := json.Unmarshal([]byte(payload), &report); err != nil {
		return model.FinalReport{}, fmt.Errorf("failed to decode report: %w", err)
	}
	return report, nil
}
