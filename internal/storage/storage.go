// Package storage persists sessions, style versions, iterations, and
// hypothesis sets. The core reads and writes whole entities by id and
// version; it never depends on backend internals.
package storage

import (
	"context"
	"errors"

	"github.com/atelierhq/atelier/internal/storage/sqlite"
	"github.com/atelierhq/atelier/internal/types"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = sqlite.ErrNotFound

// ErrUnknownHypothesis is returned when a selection references an id
// absent from its hypothesis set
var ErrUnknownHypothesis = sqlite.ErrUnknownHypothesis

// IsNotFound reports whether err means "no such entity"
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Storage defines the persistence interface for training state
type Storage interface {
	// Sessions
	CreateSession(ctx context.Context, session *types.Session) error
	GetSession(ctx context.Context, id string) (*types.Session, error)
	ListSessions(ctx context.Context) ([]*types.Session, error)

	// Style versions. SaveStyleVersion assigns the next version number
	// for the session when Version is zero; version numbers are strictly
	// increasing and never reused.
	SaveStyleVersion(ctx context.Context, style *types.StyleDescription) error
	GetLatestStyle(ctx context.Context, sessionID string) (*types.StyleDescription, error)
	GetStyleVersion(ctx context.Context, sessionID string, version int) (*types.StyleDescription, error)

	// Iterations, ordered by sequence number
	SaveIteration(ctx context.Context, iter *types.Iteration) error
	ListIterations(ctx context.Context, sessionID string) ([]*types.Iteration, error)
	NextIterationSeq(ctx context.Context, sessionID string) (int, error)

	// Hypothesis sets. SetSelectedHypothesis fails with
	// ErrUnknownHypothesis if the id is not a member of the stored set.
	SaveHypothesisSet(ctx context.Context, set *types.HypothesisSet) error
	GetHypothesisSet(ctx context.Context, sessionID string) (*types.HypothesisSet, error)
	SetSelectedHypothesis(ctx context.Context, sessionID, hypothesisID string) error

	// Config key-value store
	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error

	// Lifecycle
	Close() error
}

// Config holds database configuration
type Config struct {
	// Path is the SQLite database file path.
	// Default: ".atelier/atelier.db"
	// Special value ":memory:" creates an in-memory database (tests).
	Path string
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{Path: ".atelier/atelier.db"}
}

// NewStorage creates a new SQLite storage backend
func NewStorage(ctx context.Context, cfg *Config) (Storage, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Path == "" {
		cfg.Path = ".atelier/atelier.db"
	}
	return sqlite.New(cfg.Path)
}
