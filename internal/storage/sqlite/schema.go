package sqlite

// schema initializes the database. Style descriptions and hypothesis
// sets carry their structured payload as JSON; version and sequence
// invariants are enforced with UNIQUE constraints so a reused version
// number is a storage error, not a silent overwrite.
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	reference_image TEXT NOT NULL,
	created_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS style_versions (
	session_id TEXT NOT NULL REFERENCES sessions(id),
	version    INTEGER NOT NULL,
	payload    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(session_id, version)
);

CREATE INDEX IF NOT EXISTS idx_style_versions_session
	ON style_versions(session_id, version DESC);

CREATE TABLE IF NOT EXISTS iterations (
	session_id TEXT NOT NULL REFERENCES sessions(id),
	seq        INTEGER NOT NULL,
	prompt     TEXT NOT NULL,
	image_ref  TEXT NOT NULL,
	scores     TEXT NOT NULL,
	approved   INTEGER,
	feedback   TEXT,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(session_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_iterations_session
	ON iterations(session_id, seq);

CREATE TABLE IF NOT EXISTS hypothesis_sets (
	session_id             TEXT NOT NULL REFERENCES sessions(id),
	payload                TEXT NOT NULL,
	selected_hypothesis_id TEXT,
	created_at             TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_hypothesis_sets_session
	ON hypothesis_sets(session_id, created_at DESC);

CREATE TABLE IF NOT EXISTS config (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`
