package testutil

import (
	"strings"
	"testing"

	"github.com/smith3v/mathquiz/pkg/config"
	"github.com/smith3v/mathquiz/pkg/db"
	"gorm.io/gorm"
)

// OpenTestDB returns a migrated, seeded in-memory sqlite database private to
// the calling test.
func OpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	gdb, err := db.Open(config.DatabaseConfig{
		Driver: config.DriverSQLite,
		Path:   "file:" + name + "?mode=memory&cache=shared",
	}, config.LoggingConfig{GormLevel: "silent"})
	if err != nil {
		t.Fatalf("failed to open sqlite database: %v", err)
	}

	t.Cleanup(func() {
		if err := db.Close(gdb); err != nil {
			t.Fatalf("failed to close database: %v", err)
		}
	})
	return gdb
}
