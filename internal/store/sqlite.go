package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/joescharf/bugboard/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore is the persistent Store, backed by the pure-Go modernc driver.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var sqlitePragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA foreign_keys=ON",
}

// NewSQLiteStore opens the database at dbPath, creating it and its parent
// directory when missing. Call Migrate before use.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection: SQLite has a single writer and the API server would
	// otherwise see "database is locked".
	db.SetMaxOpenConns(1)

	for _, pragma := range sqlitePragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Migrate applies the embedded migrations that have not run yet, in file
// name order. Each migration and its bookkeeping row commit together.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		name       TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	applied, err := s.appliedMigrations(ctx)
	if err != nil {
		return err
	}
	names, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	slices.Sort(names)

	for _, path := range names {
		name := filepath.Base(path)
		if applied[name] {
			continue
		}
		script, err := migrationsFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("migration %s: %w", name, err)
		}
		if err := s.applyMigration(ctx, name, string(script)); err != nil {
			return fmt.Errorf("migration %s: %w", name, err)
		}
	}
	return nil
}

func (s *SQLiteStore) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	applied := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		applied[name] = true
	}
	return applied, rows.Err()
}

func (s *SQLiteStore) applyMigration(ctx context.Context, name, script string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, script); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (name) VALUES (?)", name); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Bugs ---

const bugColumns = `id, title, description, severity, status, reporter, assignee, tags, created_at, updated_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanBug(row rowScanner) (*models.Bug, error) {
	b := &models.Bug{}
	var severity, status, tagsJSON string
	if err := row.Scan(&b.ID, &b.Title, &b.Description, &severity, &status,
		&b.Reporter, &b.Assignee, &tagsJSON, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.Severity = models.Severity(severity)
	b.Status = models.Status(status)
	if err := json.Unmarshal([]byte(tagsJSON), &b.Tags); err != nil || b.Tags == nil {
		b.Tags = []string{}
	}
	return b, nil
}

func encodeTags(tags []string) string {
	if tags == nil {
		tags = []string{}
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func (s *SQLiteStore) ListBugs(ctx context.Context) ([]*models.Bug, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+bugColumns+` FROM bugs ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list bugs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	bugs := []*models.Bug{}
	for rows.Next() {
		b, err := scanBug(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bug: %w", err)
		}
		bugs = append(bugs, b)
	}
	return bugs, rows.Err()
}

func (s *SQLiteStore) GetBug(ctx context.Context, id int64) (*models.Bug, error) {
	b, err := scanBug(s.db.QueryRowContext(ctx, `SELECT `+bugColumns+` FROM bugs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("bug %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get bug: %w", err)
	}
	return b, nil
}

func (s *SQLiteStore) CreateBug(ctx context.Context, in models.BugInput) (*models.Bug, error) {
	in = in.WithDefaults()
	now := s.now()

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO bugs (title, description, severity, status, reporter, assignee, tags, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.Title, in.Description, string(in.Severity), string(in.Status),
		in.Reporter, in.Assignee, encodeTags(in.Tags), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create bug: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create bug: %w", err)
	}

	return &models.Bug{
		ID:          id,
		Title:       in.Title,
		Description: in.Description,
		Severity:    in.Severity,
		Status:      in.Status,
		Reporter:    in.Reporter,
		Assignee:    in.Assignee,
		Tags:        append([]string{}, in.Tags...),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (s *SQLiteStore) UpdateBug(ctx context.Context, id int64, patch models.BugPatch) (*models.Bug, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	b, err := scanBug(tx.QueryRowContext(ctx, `SELECT `+bugColumns+` FROM bugs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("bug %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("update bug: %w", err)
	}

	patch.Apply(b, s.now())

	_, err = tx.ExecContext(ctx,
		`UPDATE bugs SET title=?, description=?, severity=?, status=?, reporter=?, assignee=?, tags=?, updated_at=?
		WHERE id=?`,
		b.Title, b.Description, string(b.Severity), string(b.Status),
		b.Reporter, b.Assignee, encodeTags(b.Tags), b.UpdatedAt, b.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update bug: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return b, nil
}

func (s *SQLiteStore) DeleteBug(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM bugs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete bug: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("bug %d: %w", id, ErrNotFound)
	}
	return nil
}

// --- Comments ---

func (s *SQLiteStore) scanComments(ctx context.Context, query string, args ...any) ([]*models.Comment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	comments := []*models.Comment{}
	for rows.Next() {
		c := &models.Comment{}
		if err := rows.Scan(&c.ID, &c.BugID, &c.Author, &c.Content, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (s *SQLiteStore) ListComments(ctx context.Context) ([]*models.Comment, error) {
	return s.scanComments(ctx,
		`SELECT id, bug_id, author, content, created_at FROM comments ORDER BY created_at, id`)
}

func (s *SQLiteStore) ListCommentsByBug(ctx context.Context, bugID int64) ([]*models.Comment, error) {
	return s.scanComments(ctx,
		`SELECT id, bug_id, author, content, created_at FROM comments WHERE bug_id = ? ORDER BY created_at, id`, bugID)
}

func (s *SQLiteStore) CreateComment(ctx context.Context, c *models.Comment) error {
	if c.ID == "" {
		c.ID = newULID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO comments (id, bug_id, author, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.BugID, c.Author, c.Content, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteComment(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM comments WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("comment %s: %w", id, ErrNotFound)
	}
	return nil
}

// --- Activities ---

func (s *SQLiteStore) scanActivities(ctx context.Context, query string, args ...any) ([]*models.Activity, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	activities := []*models.Activity{}
	for rows.Next() {
		a := &models.Activity{}
		var action string
		if err := rows.Scan(&a.ID, &a.BugID, &action, &a.Detail, &a.Timestamp); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		a.Action = models.ActivityAction(action)
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

func (s *SQLiteStore) ListActivities(ctx context.Context) ([]*models.Activity, error) {
	return s.scanActivities(ctx,
		`SELECT id, bug_id, action, detail, timestamp FROM activities ORDER BY timestamp, id`)
}

func (s *SQLiteStore) ListActivitiesByBug(ctx context.Context, bugID int64) ([]*models.Activity, error) {
	return s.scanActivities(ctx,
		`SELECT id, bug_id, action, detail, timestamp FROM activities WHERE bug_id = ? ORDER BY timestamp, id`, bugID)
}

func (s *SQLiteStore) CreateActivity(ctx context.Context, a *models.Activity) error {
	if a.ID == "" {
		a.ID = newULID()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = s.now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO activities (id, bug_id, action, detail, timestamp) VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.BugID, string(a.Action), a.Detail, a.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("create activity: %w", err)
	}
	return nil
}
