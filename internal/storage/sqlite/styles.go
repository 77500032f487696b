package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/atelierhq/atelier/internal/types"
)

// SaveStyleVersion persists a style description. When Version is zero
// the next version number for the session is assigned inside the same
// transaction, so concurrent writers cannot mint the same version.
func (s *SQLiteStorage) SaveStyleVersion(ctx context.Context, style *types.StyleDescription) error {
	if style.SessionID == "" {
		return fmt.Errorf("style description has no session id")
	}
	if style.CreatedAt.IsZero() {
		style.CreatedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if style.Version == 0 {
		var max sql.NullInt64
		err := tx.QueryRowContext(ctx,
			"SELECT MAX(version) FROM style_versions WHERE session_id = ?", style.SessionID).Scan(&max)
		if err != nil {
			return fmt.Errorf("failed to query max style version: %w", err)
		}
		style.Version = int(max.Int64) + 1
	}

	payload, err := json.Marshal(style)
	if err != nil {
		return fmt.Errorf("failed to marshal style description: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO style_versions (session_id, version, payload, created_at) VALUES (?, ?, ?, ?)",
		style.SessionID, style.Version, string(payload), style.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save style version %d for session %s: %w",
			style.Version, style.SessionID, err)
	}

	return tx.Commit()
}

// GetLatestStyle returns the highest-versioned style for the session
func (s *SQLiteStorage) GetLatestStyle(ctx context.Context, sessionID string) (*types.StyleDescription, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		"SELECT payload FROM style_versions WHERE session_id = ? ORDER BY version DESC LIMIT 1",
		sessionID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no style versions for session %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest style for session %s: %w", sessionID, err)
	}
	return unmarshalStyle(payload)
}

// GetStyleVersion returns one specific style version
func (s *SQLiteStorage) GetStyleVersion(ctx context.Context, sessionID string, version int) (*types.StyleDescription, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		"SELECT payload FROM style_versions WHERE session_id = ? AND version = ?",
		sessionID, version).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("style version %d for session %s: %w", version, sessionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get style version %d for session %s: %w", version, sessionID, err)
	}
	return unmarshalStyle(payload)
}

func unmarshalStyle(payload string) (*types.StyleDescription, error) {
	var style types.StyleDescription
	if err := json.Unmarshal([]byte(payload), &style); err != nil {
		return nil, fmt.Errorf("failed to unmarshal style description: %w", err)
	}
	return &style, nil
}
