package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // Register SQLite driver
	"github.com/sirupsen/logrus"

	"github.com/rossigee/irp-integration/pkg/types"
)

// Journal statuses written before the remote workflow reports its own.
const (
	StatusSubmitted = "SUBMITTED"
	StatusError     = "ERROR"
)

// Submission kinds.
const (
	KindPortfolio = "portfolio"
	KindGeohaz    = "geohaz"
	KindImport    = "mri_import"
	KindWorkflow  = "workflow"
)

// ErrNotFound is returned when no submission matches.
var ErrNotFound = errors.New("submission not found")

// SubmissionRecord represents a submission stored in the journal
type SubmissionRecord struct {
	ID           string
	Kind         string
	RemoteID     int64
	Name         string
	Status       string
	Strategy     string
	RequestJSON  string
	ResultJSON   string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
}

// StatusUpdate is the outcome recorded against a submission.
type StatusUpdate struct {
	Status       string
	Strategy     string
	ResultJSON   string
	ErrorMessage string
}

// Store provides SQLite-based submission persistence
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
	now    func() time.Time
}

// NewStore initializes a new SQLite store
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Every connection to :memory: is its own database
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(5)
	}
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	store := &Store{
		db:     db,
		dbPath: dbPath,
		now:    time.Now,
	}

	if err := store.initSchema(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logrus.WithError(closeErr).Warn("Failed to close database connection after init error")
		}
		return nil, err
	}

	logrus.WithField("db_path", dbPath).Debug("Initialized submission journal")
	return store, nil
}

// initSchema applies all pending migrations
func (s *Store) initSchema() error {
	currentVersion := 0
	row := s.db.QueryRowContext(context.Background(), "SELECT COALESCE(MAX(version), 0) FROM schema_version")
	_ = row.Scan(&currentVersion) // Ignore error - schema_version table may not exist yet

	for _, migration := range Migrations {
		if migration.Version <= currentVersion {
			continue
		}

		logrus.WithField("version", migration.Version).Info("Applying schema migration")

		if _, err := s.db.ExecContext(context.Background(), migration.SQL); err != nil {
			return fmt.Errorf("failed to apply migration v%d: %w", migration.Version, err)
		}

		if _, err := s.db.ExecContext(context.Background(),
			"INSERT INTO schema_version (version, applied_at) VALUES (?, ?)",
			migration.Version,
			time.Now().Unix(),
		); err != nil {
			return fmt.Errorf("failed to record migration v%d: %w", migration.Version, err)
		}

		currentVersion = migration.Version
	}

	return nil
}

// SchemaVersion returns the highest applied migration.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// SaveSubmission persists or updates a submission record. A record without
// an ID is given a new one; zero timestamps are set to now.
func (s *Store) SaveSubmission(ctx context.Context, record *SubmissionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = now
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				logrus.WithError(rollbackErr).Warn("Failed to rollback transaction")
			}
		}
	}()

	var exists bool
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM submissions WHERE id = ?", record.ID).Scan(&exists)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check submission existence: %w", err)
	}

	if exists {
		_, err := tx.ExecContext(ctx,
			`UPDATE submissions
			 SET status = ?, strategy = ?, result_json = ?, error_message = ?,
			     updated_at = ?, completed_at = ?
			 WHERE id = ?`,
			record.Status,
			record.Strategy,
			record.ResultJSON,
			record.ErrorMessage,
			record.UpdatedAt.Unix(),
			timeToUnixPtr(record.CompletedAt),
			record.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update submission: %w", err)
		}
	} else {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO submissions
			 (id, kind, remote_id, name, status, strategy, request_json, result_json,
			  error_message, created_at, updated_at, completed_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			record.ID,
			record.Kind,
			record.RemoteID,
			record.Name,
			record.Status,
			record.Strategy,
			record.RequestJSON,
			record.ResultJSON,
			record.ErrorMessage,
			record.CreatedAt.Unix(),
			record.UpdatedAt.Unix(),
			timeToUnixPtr(record.CompletedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to insert submission: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true

	return nil
}

// UpdateStatus records an outcome against the latest submission of kind
// with the given remote ID. A completed status also sets the completion time.
func (s *Store) UpdateStatus(ctx context.Context, kind string, remoteID int64, update StatusUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().Unix()
	var completedAt interface{}
	if types.IsCompleted(update.Status) || update.Status == StatusError {
		completedAt = now
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE submissions
		 SET status = ?, strategy = ?, result_json = ?, error_message = ?,
		     updated_at = ?, completed_at = ?
		 WHERE id = (SELECT id FROM submissions WHERE kind = ? AND remote_id = ?
		             ORDER BY created_at DESC, rowid DESC LIMIT 1)`,
		update.Status,
		update.Strategy,
		update.ResultJSON,
		update.ErrorMessage,
		now,
		completedAt,
		kind,
		remoteID,
	)
	if err != nil {
		return fmt.Errorf("failed to update %s %d: %w", kind, remoteID, err)
	}

	updated, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if updated == 0 {
		return fmt.Errorf("%w: %s %d", ErrNotFound, kind, remoteID)
	}
	return nil
}

const selectColumns = `SELECT id, kind, remote_id, name, status, strategy, request_json,
	result_json, error_message, created_at, updated_at, completed_at FROM submissions`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*SubmissionRecord, error) {
	record := &SubmissionRecord{}
	var name, resultJSON, errorMessage sql.NullString
	var createdAtUnix, updatedAtUnix int64
	var completedAtUnix *int64

	if err := row.Scan(
		&record.ID,
		&record.Kind,
		&record.RemoteID,
		&name,
		&record.Status,
		&record.Strategy,
		&record.RequestJSON,
		&resultJSON,
		&errorMessage,
		&createdAtUnix,
		&updatedAtUnix,
		&completedAtUnix,
	); err != nil {
		return nil, err
	}

	record.Name = name.String
	record.ResultJSON = resultJSON.String
	record.ErrorMessage = errorMessage.String
	record.CreatedAt = time.Unix(createdAtUnix, 0)
	record.UpdatedAt = time.Unix(updatedAtUnix, 0)
	if completedAtUnix != nil {
		t := time.Unix(*completedAtUnix, 0)
		record.CompletedAt = &t
	}
	return record, nil
}

// GetSubmission retrieves a submission by ID
func (s *Store) GetSubmission(ctx context.Context, id string) (*SubmissionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, err := scanRecord(s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to query submission: %w", err)
	}
	return record, nil
}

// ListSubmissionsFilter defines filtering options for ListSubmissions
type ListSubmissionsFilter struct {
	Kind   string // optional: filter by kind
	Status string // optional: filter by status
	Limit  int    // default: 100
	Offset int    // default: 0
}

// ListSubmissions retrieves submissions, most recently updated first
func (s *Store) ListSubmissions(ctx context.Context, filter ListSubmissionsFilter) ([]*SubmissionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if filter.Limit == 0 {
		filter.Limit = 100
	}
	if filter.Limit > 10000 {
		filter.Limit = 10000 // Cap limit to prevent excessive queries
	}

	query := selectColumns + " WHERE 1 = 1"
	args := []interface{}{}

	if filter.Kind != "" {
		query += " AND kind = ?"
		args = append(args, filter.Kind)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}

	query += " ORDER BY updated_at DESC, rowid DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			logrus.WithError(closeErr).Warn("Failed to close database rows")
		}
	}()

	var records []*SubmissionRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating submissions: %w", err)
	}

	return records, nil
}

// CountByStatus returns the count of submissions with a given status
func (s *Store) CountByStatus(ctx context.Context, status string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM submissions WHERE status = ?", status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get submission count: %w", err)
	}

	return count, nil
}

// DeleteOldSubmissions deletes settled submissions not updated within
// olderThan and returns how many were removed.
func (s *Store) DeleteOldSubmissions(ctx context.Context, olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-olderThan).Unix()

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM submissions
		 WHERE completed_at IS NOT NULL AND updated_at < ?`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old submissions: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	if deleted > 0 {
		logrus.WithField("deleted_count", deleted).Debug("Cleaned up old submission records")
	}

	return deleted, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}
	return nil
}

// timeToUnixPtr converts a time pointer to Unix timestamp pointer
func timeToUnixPtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Unix()
}
