// Package store persists analysis sessions and calibration records in sqlite.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	migrate "github.com/rubenv/sql-migrate"

	"github.com/alexshd/rheobench/internal/artifact"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ErrNotFound is returned when a session or calibration does not exist.
var ErrNotFound = errors.New("not found")

// Session is the stored summary of one pipeline run.
type Session struct {
	ID             string
	Name           string
	CreatedAt      time.Time
	CorrectionType string
	BestModel      string
	RSquared       float64
	PointCount     int
	Datasets       []string // dataset IDs analysed in the session
	Failures       []string // stage failures, one message each
	Model          *artifact.ModelRecord
}

// Store is a sqlite-backed session store.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the database at path and applies pending
// migrations. ":memory:" gives a private in-process database.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	// One connection: sqlite serialises writers and ":memory:" is per connection.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	s := &Store{
		db:     db,
		logger: logger.With(slog.String("component", "session_store")),
	}
	if err := s.RunMigrations(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// RunMigrations applies every pending schema migration.
func (s *Store) RunMigrations() error {
	src := &migrate.EmbedFileSystemMigrationSource{
		FileSystem: migrations,
		Root:       "migrations",
	}
	n, err := migrate.Exec(s.db, "sqlite3", src, migrate.Up)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	s.logger.Debug("performed migrations", "count", n)
	return nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts or updates a session. An empty ID is assigned a new UUID and
// a zero CreatedAt the current time; both are written back into sess.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now()
	}

	datasets, err := json.Marshal(nonNil(sess.Datasets))
	if err != nil {
		return err
	}
	failures, err := json.Marshal(nonNil(sess.Failures))
	if err != nil {
		return err
	}
	var model sql.NullString
	if sess.Model != nil {
		b, err := json.Marshal(sess.Model)
		if err != nil {
			return err
		}
		model = sql.NullString{String: string(b), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO sessions
		(id, name, created_at, correction_type, best_model, r_squared, point_count, datasets, failures, model_record)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			created_at = excluded.created_at,
			correction_type = excluded.correction_type,
			best_model = excluded.best_model,
			r_squared = excluded.r_squared,
			point_count = excluded.point_count,
			datasets = excluded.datasets,
			failures = excluded.failures,
			model_record = excluded.model_record`,
		sess.ID, sess.Name, formatTime(sess.CreatedAt), sess.CorrectionType, sess.BestModel,
		sess.RSquared, sess.PointCount, string(datasets), string(failures), model)
	if err != nil {
		return fmt.Errorf("saving session %s: %w", sess.ID, err)
	}
	s.logger.Debug("session saved", "id", sess.ID, "model", sess.BestModel)
	return nil
}

const sessionColumns = `id, name, created_at, correction_type, best_model, r_squared, point_count, datasets, failures, model_record`

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var (
		sess               Session
		created            string
		rsq                sql.NullFloat64
		datasets, failures string
		model              sql.NullString
	)
	if err := row.Scan(&sess.ID, &sess.Name, &created, &sess.CorrectionType, &sess.BestModel,
		&rsq, &sess.PointCount, &datasets, &failures, &model); err != nil {
		return nil, err
	}

	var err error
	if sess.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("session %s created_at: %w", sess.ID, err)
	}
	sess.RSquared = rsq.Float64
	if err := json.Unmarshal([]byte(datasets), &sess.Datasets); err != nil {
		return nil, fmt.Errorf("session %s datasets: %w", sess.ID, err)
	}
	if err := json.Unmarshal([]byte(failures), &sess.Failures); err != nil {
		return nil, fmt.Errorf("session %s failures: %w", sess.ID, err)
	}
	if model.Valid {
		var rec artifact.ModelRecord
		if err := json.Unmarshal([]byte(model.String), &rec); err != nil {
			return nil, fmt.Errorf("session %s model record: %w", sess.ID, err)
		}
		sess.Model = &rec
	}
	return &sess, nil
}

// Get returns the session with the given ID.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return sess, err
}

// List returns up to limit sessions, newest first. A non-positive limit
// returns every session.
func (s *Store) List(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sess)
	}
	return out, rows.Err()
}

// Delete removes a session; its calibrations are kept and detached.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return nil
}

// SaveCalibration stores a calibration record, optionally linked to the
// session that produced it, and returns its new ID.
func (s *Store) SaveCalibration(ctx context.Context, sessionID string, rec artifact.CalibrationRecord) (string, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	body, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	session := sql.NullString{String: sessionID, Valid: sessionID != ""}

	_, err = s.db.ExecContext(ctx, `INSERT INTO calibrations (id, session_id, created_at, correction_type, record)
		VALUES (?, ?, ?, ?, ?)`, id, session, formatTime(rec.CreatedAt), rec.CorrectionType, string(body))
	if err != nil {
		return "", fmt.Errorf("saving calibration: %w", err)
	}
	s.logger.Info("calibration saved", "id", id, "correction", rec.CorrectionType, "points", len(rec.Points.Stress))
	return id, nil
}

// LatestCalibration returns the most recently created calibration record.
func (s *Store) LatestCalibration(ctx context.Context) (artifact.CalibrationRecord, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM calibrations ORDER BY created_at DESC, rowid DESC LIMIT 1`).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return artifact.CalibrationRecord{}, fmt.Errorf("calibration: %w", ErrNotFound)
	}
	if err != nil {
		return artifact.CalibrationRecord{}, fmt.Errorf("loading calibration: %w", err)
	}

	var rec artifact.CalibrationRecord
	if err := json.Unmarshal([]byte(body), &rec); err != nil {
		return artifact.CalibrationRecord{}, fmt.Errorf("decoding calibration: %w", err)
	}
	return rec, nil
}

// formatTime renders t in UTC with fixed-width nanoseconds so that text
// ordering matches time ordering.
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
