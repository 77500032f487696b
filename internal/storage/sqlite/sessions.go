package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/atelierhq/atelier/internal/types"
)

// CreateSession stores a new session
func (s *SQLiteStorage) CreateSession(ctx context.Context, session *types.Session) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("invalid session: %w", err)
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO sessions (id, name, reference_image, created_at) VALUES (?, ?, ?, ?)",
		session.ID, session.Name, session.ReferenceImage, session.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create session %s: %w", session.ID, err)
	}
	return nil
}

// GetSession retrieves a session by id
func (s *SQLiteStorage) GetSession(ctx context.Context, id string) (*types.Session, error) {
	var session types.Session
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, reference_image, created_at FROM sessions WHERE id = ?", id).
		Scan(&session.ID, &session.Name, &session.ReferenceImage, &session.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	return &session, nil
}

// ListSessions returns all sessions, newest first
func (s *SQLiteStorage) ListSessions(ctx context.Context) ([]*types.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, reference_image, created_at FROM sessions ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*types.Session
	for rows.Next() {
		var session types.Session
		if err := rows.Scan(&session.ID, &session.Name, &session.ReferenceImage, &session.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, &session)
	}
	return sessions, rows.Err()
}
