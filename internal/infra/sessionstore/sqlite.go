package sessionstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/boddenberg/alugueis-admin-go/internal/domain"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLite persists sessions of variants with the persistent token policy.
type SQLite struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLite opens (or creates) the session database at path.
// Use ":memory:" for tests.
func NewSQLite(path string, logger *zap.Logger) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serializes
	// writers.
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling WAL mode: %w", err)
		}
	}

	s := &SQLite{db: db, logger: logger}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("session store initialized", zap.String("path", path))
	return s, nil
}

func (s *SQLite) createSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			variant TEXT NOT NULL,
			token TEXT NOT NULL,
			username TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT '',
			generation INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			expires_at DATETIME
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_expires_at
			ON sessions(expires_at);
	`)
	return err
}

// Get loads a persisted session. The returned session must be validated
// against the backend before its token is trusted.
func (s *SQLite) Get(ctx context.Context, id string) (*domain.Session, bool, error) {
	var (
		v         domain.SessionView
		variant   string
		expiresAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, variant, token, username, role, generation, created_at, expires_at
		FROM sessions WHERE id = ?`, id,
	).Scan(&v.ID, &variant, &v.Token, &v.Username, &v.Role, &v.Generation, &v.CreatedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("loading session: %w", err)
	}

	v.Variant = domain.Variant(variant)
	v.Persist = true
	v.State = domain.StateAuthenticated
	if expiresAt.Valid {
		v.ExpiresAt = expiresAt.Time
	}
	return domain.SessionFromView(v), true, nil
}

// Save upserts an authenticated session. Anonymous sessions are removed
// instead, so a cleared credential never lingers on disk.
func (s *SQLite) Save(ctx context.Context, sess *domain.Session) error {
	v := sess.View()
	if v.Token == "" || v.Username == "" {
		return s.Delete(ctx, v.ID)
	}

	var expires any
	if !v.ExpiresAt.IsZero() {
		expires = v.ExpiresAt.UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, variant, token, username, role, generation, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			token = excluded.token,
			username = excluded.username,
			role = excluded.role,
			generation = excluded.generation,
			expires_at = excluded.expires_at`,
		v.ID, string(v.Variant), v.Token, v.Username, v.Role, v.Generation, v.CreatedAt.UTC(), expires,
	)
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// Delete removes a persisted session.
func (s *SQLite) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// DeleteExpired removes sessions whose token expired before now.
func (s *SQLite) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at IS NOT NULL AND expires_at < ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
