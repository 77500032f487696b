package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/atelierhq/atelier/internal/types"
)

// SaveIteration persists a frozen iteration record. Both approved and
// rejected iterations are stored - rejections are never silently
// dropped.
func (s *SQLiteStorage) SaveIteration(ctx context.Context, iter *types.Iteration) error {
	if iter.SessionID == "" {
		return fmt.Errorf("iteration has no session id")
	}
	if iter.Seq < 1 {
		return fmt.Errorf("iteration seq must be >= 1 (got %d)", iter.Seq)
	}
	if iter.CreatedAt.IsZero() {
		iter.CreatedAt = time.Now()
	}

	scores, err := json.Marshal(iter.Scores)
	if err != nil {
		return fmt.Errorf("failed to marshal scores: %w", err)
	}

	var approved interface{}
	if iter.Approved != nil {
		if *iter.Approved {
			approved = 1
		} else {
			approved = 0
		}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO iterations (session_id, seq, prompt, image_ref, scores, approved, feedback, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		iter.SessionID, iter.Seq, iter.Prompt, iter.ImageRef, string(scores), approved, iter.Feedback, iter.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save iteration %d for session %s: %w", iter.Seq, iter.SessionID, err)
	}
	return nil
}

// ListIterations returns a session's iterations ordered by sequence
func (s *SQLiteStorage) ListIterations(ctx context.Context, sessionID string) ([]*types.Iteration, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, seq, prompt, image_ref, scores, approved, feedback, created_at
		 FROM iterations WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list iterations for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var iterations []*types.Iteration
	for rows.Next() {
		var iter types.Iteration
		var scores string
		var approved sql.NullInt64
		var feedback sql.NullString
		if err := rows.Scan(&iter.SessionID, &iter.Seq, &iter.Prompt, &iter.ImageRef,
			&scores, &approved, &feedback, &iter.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan iteration: %w", err)
		}
		if err := json.Unmarshal([]byte(scores), &iter.Scores); err != nil {
			return nil, fmt.Errorf("failed to unmarshal scores: %w", err)
		}
		if approved.Valid {
			v := approved.Int64 == 1
			iter.Approved = &v
		}
		iter.Feedback = feedback.String
		iterations = append(iterations, &iter)
	}
	return iterations, rows.Err()
}

// NextIterationSeq returns the next 1-based sequence number for the session
func (s *SQLiteStorage) NextIterationSeq(ctx context.Context, sessionID string) (int, error) {
	var max sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT MAX(seq) FROM iterations WHERE session_id = ?", sessionID).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("failed to query max iteration seq: %w", err)
	}
	return int(max.Int64) + 1, nil
}
