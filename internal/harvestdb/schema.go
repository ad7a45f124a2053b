package harvestdb

// SQL schemas for the harvest database. The main table is the success
// cache; attempted is the failure ledger that drives the retry window.

const mainSchema = `
CREATE TABLE IF NOT EXISTS main (
	isbn TEXT PRIMARY KEY NOT NULL,
	lccn TEXT,
	nlmcn TEXT,
	classification TEXT,
	source TEXT NOT NULL,
	date_added DATETIME NOT NULL
);
`

const attemptedSchema = `
CREATE TABLE IF NOT EXISTS attempted (
	isbn TEXT PRIMARY KEY NOT NULL,
	last_target TEXT,
	last_attempted DATETIME NOT NULL,
	fail_count INTEGER NOT NULL DEFAULT 1,
	last_error TEXT
);

CREATE INDEX IF NOT EXISTS idx_attempted_last_attempted ON attempted(last_attempted);
`

var allSchemas = []string{
	mainSchema,
	attemptedSchema,
}
