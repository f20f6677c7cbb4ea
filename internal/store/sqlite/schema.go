package sqlite

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id           TEXT PRIMARY KEY,
	status       TEXT NOT NULL CHECK(status IN ('pending','in_progress','success','failed')),
	payload      BLOB NOT NULL,
	value        BLOB,
	error        TEXT,
	traceback    TEXT,
	available_at TEXT NOT NULL,
	enqueued_at  TEXT NOT NULL,
	started_at   TEXT,
	finished_at  TEXT
);
CREATE INDEX IF NOT EXISTS idx_tasks_status_available ON tasks(status, available_at);
`

// timeLayout is RFC 3339 with a fixed nine-digit fraction (unlike
// time.RFC3339Nano, which trims trailing zeros) and an explicit UTC
// offset, chosen so lexicographic text comparison matches chronological
// order for the available_at/enqueued_at tie-break in Reserve.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
