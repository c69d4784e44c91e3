// Package testdb provides an in-memory SQLite catalog for tests.
package testdb

import (
	"testing"

	"tunestream/config"
	"tunestream/db"

	"gorm.io/gorm"
)

// New opens an in-memory SQLite database with the catalog schema migrated.
// The database is closed when the test finishes.
func New(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.Open(&config.Config{DBDriver: config.DriverSQLite, DBPath: ":memory:"})
	if err != nil {
		t.Fatalf("testdb.New: open database: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		_ = db.Close(gdb)
		t.Fatalf("testdb.New: auto migrate: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(gdb) })
	return gdb
}
