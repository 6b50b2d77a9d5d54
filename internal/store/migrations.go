package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
	user_id    TEXT NOT NULL,
	id         INTEGER NOT NULL,
	folder     TEXT NOT NULL DEFAULT 'active' CHECK(folder IN ('active', 'trash')),
	title      TEXT NOT NULL DEFAULT '',
	message    TEXT NOT NULL DEFAULT '',
	type       TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	read       INTEGER NOT NULL DEFAULT 0 CHECK(read IN (0, 1)),
	read_at    DATETIME,
	action     TEXT NOT NULL DEFAULT '',
	url        TEXT NOT NULL DEFAULT '',
	metadata   TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (user_id, id)
);

CREATE INDEX IF NOT EXISTS idx_notifications_partition
	ON notifications(user_id, folder, created_at);
CREATE INDEX IF NOT EXISTS idx_notifications_unread
	ON notifications(user_id, folder, read);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
