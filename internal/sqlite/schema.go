package sqlite

// Schema DDL. The database is rebuilt from the JSONL files on every Attach,
// so there are no migrations.
const (
	createRuns = `CREATE TABLE runs (
    run_id TEXT PRIMARY KEY,
    created_at TEXT NOT NULL
);`

	createModules = `CREATE TABLE modules (
    name TEXT PRIMARY KEY,
    description TEXT,
    version TEXT,
    position INTEGER NOT NULL,
    run_id TEXT NOT NULL
);`

	createTrees = `CREATE TABLE trees (
    category TEXT PRIMARY KEY,
    content TEXT NOT NULL,
    run_id TEXT NOT NULL
);`

	// entries holds every node of every tree keyed by its dotted path.
	createEntries = `CREATE TABLE entries (
    category TEXT NOT NULL,
    path TEXT NOT NULL,
    kind TEXT NOT NULL,
    value TEXT NOT NULL,
    PRIMARY KEY (category, path),
    FOREIGN KEY (category) REFERENCES trees(category)
);`
)

const (
	idxModulesPosition = `CREATE INDEX idx_modules_position ON modules(position);`
	idxEntriesKind     = `CREATE INDEX idx_entries_kind ON entries(category, kind);`
)

// schemaDDL lists all CREATE TABLE statements in dependency order.
var schemaDDL = []string{
	createRuns,
	createModules,
	createTrees,
	createEntries,
}

var indexDDL = []string{
	idxModulesPosition,
	idxEntriesKind,
}

// JSONL files in the data directory. They are the source of truth.
const (
	runsJSONL    = "runs.jsonl"
	modulesJSONL = "modules.jsonl"
	treesJSONL   = "trees.jsonl"
)

var jsonlFiles = []string{runsJSONL, modulesJSONL, treesJSONL}

// dbFile is the SQLite query cache inside the data directory.
const dbFile = "era.db"
