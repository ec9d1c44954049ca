package store

import (
	"database/sql"
	"fmt"
)

const ddl = `
PRAGMA journal_mode=WAL;

CREATE TABLE IF NOT EXISTS passages (
    id      INTEGER PRIMARY KEY AUTOINCREMENT,
    source  TEXT NOT NULL,
    page    INTEGER NOT NULL DEFAULT 0,
    content TEXT NOT NULL
);

CREATE VIRTUAL TABLE IF NOT EXISTS vec_passages USING vec0(
    passage_id INTEGER PRIMARY KEY,
    embedding float[%d]
);

CREATE TABLE IF NOT EXISTS meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// Init creates the schema if it doesn't exist. vec0 tables fix their
// dimension at creation, so dim must match the embedding model in use.
func Init(db *sql.DB, dim int) error {
	_, err := db.Exec(fmt.Sprintf(ddl, dim))
	return err
}
