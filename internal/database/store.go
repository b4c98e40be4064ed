package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tutorbot/tutorbot/internal/text"
)

// Store defines the interface for database operations.
// Methods should accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// UpsertUser inserts the user or refreshes its names and last-seen time.
	// An existing user is always marked active again.
	UpsertUser(ctx context.Context, user *User) error

	// GetUser returns the user with the given ID. Returns nil, nil if not found.
	GetUser(ctx context.Context, userID int64) (*User, error)

	// SetUserActive flips the active flag of a user.
	SetUserActive(ctx context.Context, userID int64, active bool) error

	// ListUsers returns every known user, oldest first.
	ListUsers(ctx context.Context) ([]User, error)

	// ListActiveUserIDs returns the IDs of users that can receive broadcasts.
	ListActiveUserIDs(ctx context.Context) ([]int64, error)

	// CountUsers returns the number of known and active users.
	CountUsers(ctx context.Context) (total int, active int, err error)

	// SaveMessageLog appends a log entry, truncating its content.
	SaveMessageLog(ctx context.Context, entry *MessageLog) error

	// DeleteAllMessageLogs removes every message log and returns how many were deleted.
	DeleteAllMessageLogs(ctx context.Context) (int64, error)

	// DeleteMessageLogsBefore removes log entries older than cutoff.
	DeleteMessageLogsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// GetStats summarizes users and message logs.
	GetStats(ctx context.Context) (*Stats, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db            *sqlx.DB
	dialect       Dialect
	maxLogContent int
	logger        *slog.Logger
	now           func() time.Time
}

// NewStore creates a new Store implementation backed by sqlx.
// Message log content longer than maxLogContent runes is truncated; zero keeps it whole.
func NewStore(db *sqlx.DB, maxLogContent int, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	dialect := DialectSQLite
	if db.DriverName() == DialectPostgres.driverName() {
		dialect = DialectPostgres
	}
	return &sqlxStore{
		db:            db,
		dialect:       dialect,
		maxLogContent: maxLogContent,
		logger:        logger.With("component", "store"),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlxStore) UpsertUser(ctx context.Context, user *User) error {
	if user == nil {
		return fmt.Errorf("cannot save nil user")
	}
	if user.ID == 0 {
		return fmt.Errorf("user must have a non-zero id")
	}

	now := s.now()
	if user.JoinedAt.IsZero() {
		user.JoinedAt = now
	}
	user.LastSeenAt = now
	user.IsActive = true

	query := `
        INSERT INTO users (id, first_name, username, is_active, joined_at, last_seen_at)
        VALUES (:id, :first_name, :username, :is_active, :joined_at, :last_seen_at)
        ON CONFLICT (id) DO UPDATE SET
            first_name = excluded.first_name,
            username = excluded.username,
            is_active = excluded.is_active,
            last_seen_at = excluded.last_seen_at;
    `
	if _, err := s.db.NamedExecContext(ctx, query, user); err != nil {
		s.logger.ErrorContext(ctx, "Error upserting user", "user_id", user.ID, "error", err)
		return fmt.Errorf("failed to upsert user %d: %w", user.ID, err)
	}

	s.logger.DebugContext(ctx, "User upserted", "user_id", user.ID)
	return nil
}

func (s *sqlxStore) GetUser(ctx context.Context, userID int64) (*User, error) {
	if userID == 0 {
		return nil, fmt.Errorf("user_id cannot be zero")
	}

	var user User
	query := s.db.Rebind(`
        SELECT id, first_name, username, is_active, joined_at, last_seen_at
        FROM users
        WHERE id = ?;
    `)
	if err := s.db.GetContext(ctx, &user, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		s.logger.ErrorContext(ctx, "Error fetching user", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	return &user, nil
}

func (s *sqlxStore) SetUserActive(ctx context.Context, userID int64, active bool) error {
	query := s.db.Rebind(`UPDATE users SET is_active = ? WHERE id = ?;`)
	result, err := s.db.ExecContext(ctx, query, active, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error updating user active flag", "user_id", userID, "active", active, "error", err)
		return fmt.Errorf("failed to set user %d active=%t: %w", userID, active, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		s.logger.WarnContext(ctx, "No user found to update active flag", "user_id", userID)
	}
	return nil
}

func (s *sqlxStore) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	query := `
        SELECT id, first_name, username, is_active, joined_at, last_seen_at
        FROM users
        ORDER BY joined_at ASC, id ASC;
    `
	if err := s.db.SelectContext(ctx, &users, query); err != nil {
		s.logger.ErrorContext(ctx, "Error listing users", "error", err)
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (s *sqlxStore) ListActiveUserIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	query := s.db.Rebind(`SELECT id FROM users WHERE is_active = ? ORDER BY id ASC;`)
	if err := s.db.SelectContext(ctx, &ids, query, true); err != nil {
		s.logger.ErrorContext(ctx, "Error listing active users", "error", err)
		return nil, fmt.Errorf("failed to list active users: %w", err)
	}
	return ids, nil
}

func (s *sqlxStore) CountUsers(ctx context.Context) (int, int, error) {
	var total, active int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM users;`); err != nil {
		return 0, 0, fmt.Errorf("failed to count users: %w", err)
	}
	query := s.db.Rebind(`SELECT COUNT(*) FROM users WHERE is_active = ?;`)
	if err := s.db.GetContext(ctx, &active, query, true); err != nil {
		return 0, 0, fmt.Errorf("failed to count active users: %w", err)
	}
	return total, active, nil
}

// SaveMessageLog inserts a log entry inside a transaction and stores the
// generated ID back into entry.
func (s *sqlxStore) SaveMessageLog(ctx context.Context, entry *MessageLog) error {
	if entry == nil {
		return fmt.Errorf("cannot save nil message log")
	}
	if entry.UserID == 0 {
		return fmt.Errorf("message log must have a non-zero user_id")
	}
	if entry.Type == "" {
		return fmt.Errorf("message log must have a type")
	}

	if s.maxLogContent > 0 {
		entry.Content = text.Truncate(entry.Content, s.maxLogContent)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for saving message log",
			"user_id", entry.UserID, "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				if !errors.Is(rollbackErr, sql.ErrTxDone) {
					s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
				}
			}
		}
	}()

	query := tx.Rebind(`
        INSERT INTO message_logs (user_id, type, content, created_at)
        VALUES (?, ?, ?, ?)
        RETURNING id;
    `)
	if err := tx.QueryRowxContext(ctx, query, entry.UserID, entry.Type, entry.Content, entry.CreatedAt).Scan(&entry.ID); err != nil {
		s.logger.ErrorContext(ctx, "Error saving message log", "user_id", entry.UserID, "type", entry.Type, "error", err)
		return fmt.Errorf("failed to save message log (user %d): %w", entry.UserID, err)
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit transaction", "user_id", entry.UserID, "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	// Successfully committed, set tx to nil to avoid rollback
	tx = nil

	s.logger.DebugContext(ctx, "Message log saved", "user_id", entry.UserID, "log_id", entry.ID, "type", entry.Type)
	return nil
}

func (s *sqlxStore) DeleteAllMessageLogs(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM message_logs;`)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deleting message logs", "error", err)
		return 0, fmt.Errorf("failed to delete message logs: %w", err)
	}
	deleted, _ := result.RowsAffected()
	s.logger.InfoContext(ctx, "Deleted all message logs", "deleted", deleted)
	return deleted, nil
}

func (s *sqlxStore) DeleteMessageLogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := s.db.Rebind(`DELETE FROM message_logs WHERE created_at < ?;`)
	result, err := s.db.ExecContext(ctx, query, cutoff.UTC())
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deleting old message logs", "cutoff", cutoff, "error", err)
		return 0, fmt.Errorf("failed to delete message logs before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	deleted, _ := result.RowsAffected()
	s.logger.DebugContext(ctx, "Deleted old message logs", "cutoff", cutoff, "deleted", deleted)
	return deleted, nil
}

func (s *sqlxStore) GetStats(ctx context.Context) (*Stats, error) {
	total, active, err := s.CountUsers(ctx)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		Type  LogType `db:"type"`
		Count int     `db:"count"`
	}
	query := `SELECT type, COUNT(*) AS count FROM message_logs GROUP BY type;`
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		s.logger.ErrorContext(ctx, "Error counting message logs", "error", err)
		return nil, fmt.Errorf("failed to count message logs: %w", err)
	}

	stats := &Stats{
		TotalUsers:  total,
		ActiveUsers: active,
		LogsByType:  make(map[LogType]int, len(rows)),
	}
	for _, row := range rows {
		stats.LogsByType[row.Type] = row.Count
		stats.TotalLogs += row.Count
	}
	return stats, nil
}

// RunSQLMaintenance executes VACUUM, which must run outside a transaction.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...", "dialect", s.dialect)

	statement := "VACUUM;"
	if s.dialect == DialectPostgres {
		statement = "VACUUM ANALYZE;"
	} else if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		s.logger.WarnContext(ctx, "Failed to set busy timeout", "error", err)
	}

	_, err := s.db.ExecContext(ctx, statement)
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)

	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)

	default:
		s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	}
	return nil
}
