package store

// migration is one schema step; versions are sequential from 1.
type migration struct {
	version int
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS classifications (
	message_id    TEXT PRIMARY KEY,
	category      TEXT NOT NULL,
	classified_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshot (
	id       INTEGER PRIMARY KEY CHECK (id = 1),
	run_id   TEXT NOT NULL,
	saved_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshot_messages (
	position   INTEGER PRIMARY KEY,
	message_id TEXT NOT NULL,
	thread_id  TEXT NOT NULL DEFAULT '',
	subject    TEXT NOT NULL DEFAULT '',
	sender     TEXT NOT NULL DEFAULT '',
	snippet    TEXT NOT NULL DEFAULT '',
	sent_at    INTEGER NOT NULL,
	unread     INTEGER NOT NULL DEFAULT 0,
	labels     TEXT NOT NULL DEFAULT '[]',
	category   TEXT NOT NULL DEFAULT ''
);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_classifications_at ON classifications(classified_at);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
	{
		version: 3,
		sql: `
ALTER TABLE snapshot_messages ADD COLUMN degraded INTEGER NOT NULL DEFAULT 0;

-- earlier versions cached failed exchanges as uncategorized
DELETE FROM classifications WHERE category = 'uncategorized';

INSERT INTO schema_version (version) VALUES (3);
`,
	},
}
