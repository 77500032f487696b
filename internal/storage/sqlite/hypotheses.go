package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/atelierhq/atelier/internal/types"
)

// SaveHypothesisSet persists an exploration run's hypothesis set
func (s *SQLiteStorage) SaveHypothesisSet(ctx context.Context, set *types.HypothesisSet) error {
	if set.SessionID == "" {
		return fmt.Errorf("hypothesis set has no session id")
	}
	if len(set.Hypotheses) < 2 {
		return fmt.Errorf("hypothesis set must hold at least 2 hypotheses (got %d)", len(set.Hypotheses))
	}
	if set.SelectedHypothesisID != "" && set.Find(set.SelectedHypothesisID) == nil {
		return fmt.Errorf("selected hypothesis %s: %w", set.SelectedHypothesisID, ErrUnknownHypothesis)
	}
	if set.CreatedAt.IsZero() {
		set.CreatedAt = time.Now()
	}

	payload, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("failed to marshal hypothesis set: %w", err)
	}

	var selected interface{}
	if set.SelectedHypothesisID != "" {
		selected = set.SelectedHypothesisID
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO hypothesis_sets (session_id, payload, selected_hypothesis_id, created_at) VALUES (?, ?, ?, ?)",
		set.SessionID, string(payload), selected, set.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save hypothesis set for session %s: %w", set.SessionID, err)
	}
	return nil
}

// GetHypothesisSet returns the session's most recent hypothesis set
func (s *SQLiteStorage) GetHypothesisSet(ctx context.Context, sessionID string) (*types.HypothesisSet, error) {
	var payload string
	var selected sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, selected_hypothesis_id FROM hypothesis_sets
		 WHERE session_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		sessionID).Scan(&payload, &selected)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no hypothesis set for session %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get hypothesis set for session %s: %w", sessionID, err)
	}

	var set types.HypothesisSet
	if err := json.Unmarshal([]byte(payload), &set); err != nil {
		return nil, fmt.Errorf("failed to unmarshal hypothesis set: %w", err)
	}
	// The column is authoritative for selection; it may have been set
	// after the payload was written
	if selected.Valid {
		set.SelectedHypothesisID = selected.String
	}
	return &set, nil
}

// SetSelectedHypothesis records the chosen hypothesis for the session's
// latest set. The id must be a member of that set; on error the stored
// set is left unmodified.
func (s *SQLiteStorage) SetSelectedHypothesis(ctx context.Context, sessionID, hypothesisID string) error {
	set, err := s.GetHypothesisSet(ctx, sessionID)
	if err != nil {
		return err
	}
	if set.Find(hypothesisID) == nil {
		return fmt.Errorf("hypothesis %s in session %s: %w", hypothesisID, sessionID, ErrUnknownHypothesis)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE hypothesis_sets SET selected_hypothesis_id = ?
		 WHERE rowid = (SELECT rowid FROM hypothesis_sets WHERE session_id = ?
		                ORDER BY created_at DESC, rowid DESC LIMIT 1)`,
		hypothesisID, sessionID)
	if err != nil {
		return fmt.Errorf("failed to set selected hypothesis: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("no hypothesis set for session %s: %w", sessionID, ErrNotFound)
	}
	return nil
}
