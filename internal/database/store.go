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
)

// Store defines the interface for conversation history operations.
// Methods accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// AppendTurns appends turns to a session in a single transaction. The
	// generated IDs are written back into the given turns.
	AppendTurns(ctx context.Context, sessionID string, turns []*Turn) error

	// GetRecentTurns returns at most limit most recent turns of a session,
	// oldest first.
	GetRecentTurns(ctx context.Context, sessionID string, limit int) ([]*Turn, error)

	// GetTurnsAfter returns every turn of a session with an ID greater than
	// afterID, oldest first.
	GetTurnsAfter(ctx context.Context, sessionID string, afterID int64) ([]*Turn, error)

	// GetSummary returns the running summary of a session, or nil, nil if
	// there is none.
	GetSummary(ctx context.Context, sessionID string) (*Summary, error)

	// SaveSummary inserts or replaces the running summary of a session.
	SaveSummary(ctx context.Context, summary *Summary) error

	// ClearSession deletes every turn and the summary of a session.
	ClearSession(ctx context.Context, sessionID string) error

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// withTx runs fn inside a transaction, committing on success and rolling
// back otherwise.
func (s *sqlxStore) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *sqlxStore) AppendTurns(ctx context.Context, sessionID string, turns []*Turn) error {
	if sessionID == "" {
		return errors.New("session_id cannot be empty")
	}
	if len(turns) == 0 {
		return nil
	}
	for i, turn := range turns {
		if turn == nil {
			return fmt.Errorf("turn %d is nil", i)
		}
		if turn.Role == "" {
			return fmt.Errorf("turn %d must have a role", i)
		}
	}

	query := s.db.Rebind(`
        INSERT INTO message_store (session_id, role, content, created_at)
        VALUES (?, ?, ?, ?)
        RETURNING id;
    `)

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		now := time.Now().UTC()
		for _, turn := range turns {
			turn.SessionID = sessionID
			if turn.CreatedAt.IsZero() {
				turn.CreatedAt = now
			}
			if err := tx.QueryRowxContext(ctx, query, turn.SessionID, turn.Role, turn.Content, turn.CreatedAt).Scan(&turn.ID); err != nil {
				return fmt.Errorf("failed to insert %s turn: %w", turn.Role, err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Error appending turns", "session_id", sessionID, "count", len(turns), "error", err)
		return fmt.Errorf("failed to append turns to session %s: %w", sessionID, err)
	}

	s.logger.DebugContext(ctx, "Turns appended", "session_id", sessionID, "count", len(turns), "last_id", turns[len(turns)-1].ID)
	return nil
}

func (s *sqlxStore) GetRecentTurns(ctx context.Context, sessionID string, limit int) ([]*Turn, error) {
	if sessionID == "" {
		return nil, errors.New("session_id cannot be empty")
	}
	if limit <= 0 {
		return []*Turn{}, nil
	}

	query := s.db.Rebind(`
        SELECT id, session_id, role, content, created_at
        FROM (
            SELECT id, session_id, role, content, created_at
            FROM message_store
            WHERE session_id = ?
            ORDER BY id DESC
            LIMIT ?
        ) AS recent
        ORDER BY id ASC;
    `)

	turns := []*Turn{}
	if err := s.db.SelectContext(ctx, &turns, query, sessionID, limit); err != nil {
		s.logger.ErrorContext(ctx, "Error getting recent turns", "session_id", sessionID, "limit", limit, "error", err)
		return nil, fmt.Errorf("failed to get recent turns for session %s: %w", sessionID, err)
	}

	return turns, nil
}

func (s *sqlxStore) GetTurnsAfter(ctx context.Context, sessionID string, afterID int64) ([]*Turn, error) {
	if sessionID == "" {
		return nil, errors.New("session_id cannot be empty")
	}

	query := s.db.Rebind(`
        SELECT id, session_id, role, content, created_at
        FROM message_store
        WHERE session_id = ? AND id > ?
        ORDER BY id ASC;
    `)

	turns := []*Turn{}
	if err := s.db.SelectContext(ctx, &turns, query, sessionID, afterID); err != nil {
		s.logger.ErrorContext(ctx, "Error getting turns", "session_id", sessionID, "after_id", afterID, "error", err)
		return nil, fmt.Errorf("failed to get turns for session %s: %w", sessionID, err)
	}

	return turns, nil
}

func (s *sqlxStore) GetSummary(ctx context.Context, sessionID string) (*Summary, error) {
	if sessionID == "" {
		return nil, errors.New("session_id cannot be empty")
	}

	query := s.db.Rebind(`
        SELECT session_id, content, last_turn_id, updated_at
        FROM session_summaries
        WHERE session_id = ?;
    `)

	var summary Summary
	err := s.db.GetContext(ctx, &summary, query, sessionID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil

	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting session summary", "session_id", sessionID, "error", err)
		return nil, fmt.Errorf("failed to get summary for session %s: %w", sessionID, err)
	}

	return &summary, nil
}

func (s *sqlxStore) SaveSummary(ctx context.Context, summary *Summary) error {
	if summary == nil {
		return errors.New("cannot save nil summary")
	}
	if summary.SessionID == "" {
		return errors.New("summary must have a session_id")
	}
	summary.UpdatedAt = time.Now().UTC()

	query := `
        INSERT INTO session_summaries (session_id, content, last_turn_id, updated_at)
        VALUES (:session_id, :content, :last_turn_id, :updated_at)
        ON CONFLICT (session_id) DO UPDATE SET
            content = excluded.content,
            last_turn_id = excluded.last_turn_id,
            updated_at = excluded.updated_at;
    `

	if _, err := s.db.NamedExecContext(ctx, query, summary); err != nil {
		s.logger.ErrorContext(ctx, "Error saving session summary", "session_id", summary.SessionID, "error", err)
		return fmt.Errorf("failed to save summary for session %s: %w", summary.SessionID, err)
	}

	s.logger.DebugContext(ctx, "Session summary saved", "session_id", summary.SessionID, "last_turn_id", summary.LastTurnID)
	return nil
}

func (s *sqlxStore) ClearSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return errors.New("session_id cannot be empty")
	}

	var turnsDeleted int64
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM message_store WHERE session_id = ?`), sessionID)
		if err != nil {
			return fmt.Errorf("failed to delete turns: %w", err)
		}
		turnsDeleted, _ = res.RowsAffected()

		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM session_summaries WHERE session_id = ?`), sessionID); err != nil {
			return fmt.Errorf("failed to delete summary: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Error clearing session", "session_id", sessionID, "error", err)
		return fmt.Errorf("failed to clear session %s: %w", sessionID, err)
	}

	s.logger.InfoContext(ctx, "Session cleared", "session_id", sessionID, "turns_deleted", turnsDeleted)
	return nil
}

func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting maintenance", "error", ctx.Err())
		return ctx.Err()
	}

	// VACUUM must run outside a transaction on both dialects.
	statement := "VACUUM;"
	if s.db.DriverName() == DriverPostgres {
		statement = "VACUUM ANALYZE;"
	}

	s.logger.InfoContext(ctx, "Starting database maintenance", "statement", statement)

	_, err := s.db.ExecContext(ctx, statement)
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "Database maintenance timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance timed out: %w", err)

	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance failed", "error", err)
		return fmt.Errorf("failed to execute %s: %w", statement, err)
	}

	s.logger.InfoContext(ctx, "Database maintenance completed successfully")
	return nil
}
