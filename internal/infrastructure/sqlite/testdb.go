package sqlite

import (
	"database/sql"
	"testing"
)

// OpenTestDB opens a fresh in-memory ledger database with the schema
// applied and closes it when the test finishes.
func OpenTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory ledger: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
