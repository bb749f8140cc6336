// Package storage keeps a local SQLite journal of everything submitted to
// the Risk Modeler API and the status each submission finished with.
package storage

// Schema definitions for the submission journal
const (
	// SchemaV1 is the initial database schema
	SchemaV1 = `
CREATE TABLE IF NOT EXISTS submissions (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	remote_id INTEGER NOT NULL,
	name TEXT,
	status TEXT NOT NULL,
	request_json TEXT NOT NULL,
	result_json TEXT,
	error_message TEXT,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	completed_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_submissions_remote ON submissions(kind, remote_id);
CREATE INDEX IF NOT EXISTS idx_submissions_status ON submissions(status);
CREATE INDEX IF NOT EXISTS idx_submissions_updated_at ON submissions(updated_at);

CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY,
	applied_at INTEGER NOT NULL
);
`

	// SchemaV2 records which poll strategy settled a submission
	SchemaV2 = `
ALTER TABLE submissions ADD COLUMN strategy TEXT NOT NULL DEFAULT '';
`
)

// Migrations represents all available migrations
var Migrations = []struct {
	Version int
	SQL     string
}{
	{
		Version: 1,
		SQL:     SchemaV1,
	},
	{
		Version: 2,
		SQL:     SchemaV2,
	},
}
