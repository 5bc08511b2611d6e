package storage

// migrations is the ordered schema history. Migrations are additive only:
// never drop or rename in place, add a superseding migration instead.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "sessions and activity logs",
		Steps: []Step{
			// One row per logical day; everything else hangs off it.
			CreateTable{Table: "sessions", DDL: `
CREATE TABLE sessions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    date TEXT NOT NULL UNIQUE,
    created_at TEXT NOT NULL
)`},
			CreateTable{Table: "step_completions", DDL: `
CREATE TABLE step_completions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id INTEGER NOT NULL REFERENCES sessions(id),
    step TEXT NOT NULL,
    completed_at TEXT NOT NULL,
    UNIQUE(session_id, step)
)`},
			// Append-only; subject to the retention sweep.
			CreateTable{Table: "time_logs", DDL: `
CREATE TABLE time_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id INTEGER NOT NULL REFERENCES sessions(id),
    seconds INTEGER NOT NULL CHECK(seconds >= 0),
    source TEXT NOT NULL DEFAULT '',
    logged_at TEXT NOT NULL
)`},
			CreateIndex{Index: "idx_time_logs_session", DDL: `CREATE INDEX idx_time_logs_session ON time_logs(session_id)`},
		},
	},
	{
		Version: 2,
		Name:    "reviewable items",
		Steps: []Step{
			CreateTable{Table: "review_items", DDL: `
CREATE TABLE review_items (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    repetitions INTEGER NOT NULL DEFAULT 0 CHECK(repetitions >= 0),
    interval_days INTEGER NOT NULL DEFAULT 0 CHECK(interval_days >= 0),
    easiness_factor REAL NOT NULL DEFAULT 2.5 CHECK(easiness_factor >= 1.3),
    last_quality INTEGER NOT NULL DEFAULT 0 CHECK(last_quality BETWEEN 0 AND 5),
    next_review_date TEXT NOT NULL,
    last_reviewed_at TEXT,
    created_at TEXT NOT NULL
)`},
			CreateIndex{Index: "idx_review_items_due", DDL: `CREATE INDEX idx_review_items_due ON review_items(next_review_date)`},
			CreateTable{Table: "review_log", DDL: `
CREATE TABLE review_log (
    id TEXT PRIMARY KEY,
    item_id TEXT NOT NULL REFERENCES review_items(id),
    quality INTEGER NOT NULL,
    interval_days INTEGER NOT NULL,
    easiness_factor REAL NOT NULL,
    reviewed_at TEXT NOT NULL
)`},
			CreateIndex{Index: "idx_review_log_item", DDL: `CREATE INDEX idx_review_log_item ON review_log(item_id)`},
		},
	},
	{
		Version: 3,
		Name:    "session card counts",
		Steps: []Step{
			AddColumn{Table: "sessions", Column: "cards_reviewed", Definition: "INTEGER NOT NULL DEFAULT 0"},
		},
	},
	{
		Version: 4,
		Name:    "commits",
		Steps: []Step{
			CreateTable{Table: "commits", DDL: `
CREATE TABLE commits (
    hash TEXT PRIMARY KEY,
    repo TEXT NOT NULL DEFAULT '',
    authored_at TEXT NOT NULL,
    logical_date TEXT NOT NULL
)`},
			CreateIndex{Index: "idx_commits_date", DDL: `CREATE INDEX idx_commits_date ON commits(logical_date)`},
		},
	},
	{
		Version: 5,
		Name:    "daily summaries",
		Steps: []Step{
			CreateTable{Table: "daily_summaries", DDL: `
CREATE TABLE daily_summaries (
    date TEXT PRIMARY KEY,
    coding_seconds INTEGER NOT NULL DEFAULT 0,
    commit_count INTEGER NOT NULL DEFAULT 0,
    items_reviewed INTEGER NOT NULL DEFAULT 0,
    steps_completed INTEGER NOT NULL DEFAULT 0,
    activity_level INTEGER NOT NULL DEFAULT 0,
    rebuilt_at TEXT NOT NULL
)`},
		},
	},
	{
		Version: 6,
		Name:    "item sources and archiving",
		Steps: []Step{
			AddColumn{Table: "review_items", Column: "source", Definition: "TEXT NOT NULL DEFAULT ''"},
			AddColumn{Table: "review_items", Column: "archived", Definition: "INTEGER NOT NULL DEFAULT 0"},
			CreateIndex{Index: "idx_review_items_kind", DDL: `CREATE INDEX idx_review_items_kind ON review_items(kind, source)`},
		},
	},
}
