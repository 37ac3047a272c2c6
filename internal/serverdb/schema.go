package serverdb

// SchemaVersion is the current server database schema version.
const SchemaVersion = 2

const schemaInfoTable = `CREATE TABLE IF NOT EXISTS schema_info (key TEXT PRIMARY KEY, value TEXT NOT NULL)`

// Migration is a forward-only schema change. Each statement must run on both
// SQLite and Postgres.
type Migration struct {
	Version     int
	Description string
	Statements  []string
}

// Migrations in version order.
var Migrations = []Migration{
	{
		Version:     1,
		Description: "locations table",
		Statements: []string{`CREATE TABLE IF NOT EXISTS locations (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    category TEXT NOT NULL DEFAULT 'poi',
    description TEXT NOT NULL DEFAULT '',
    address TEXT NOT NULL DEFAULT '',
    lng DOUBLE PRECISION NOT NULL,
    lat DOUBLE PRECISION NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
)`},
	},
	{
		Version:     2,
		Description: "free-form properties and category index",
		Statements: []string{
			`ALTER TABLE locations ADD COLUMN properties TEXT NOT NULL DEFAULT '{}'`,
			`CREATE INDEX IF NOT EXISTS idx_locations_category ON locations(category)`,
		},
	},
}
