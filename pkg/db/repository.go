// pkg/db/repository.go
package db

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/smith3v/mathquiz/pkg/config"
	"github.com/smith3v/mathquiz/pkg/logger"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FocusAreaNames is the fixed focus-area vocabulary in seed order; the
// position plus one is the row id.
var FocusAreaNames = []string{
	"Electrical",
	"Dynamics",
	"Calculus",
	"Physics",
	"Mechanical",
	"Probability",
	"Other",
}

// Open connects to the configured store, migrates it and seeds reference
// data. The caller owns the returned handle and must Close it.
func Open(cfg config.DatabaseConfig, logging config.LoggingConfig) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}
	gormLogger, gormErr := newGormLogger(logging.GormLevel)
	if gormErr != nil {
		logger.Error("invalid gorm log level", "value", logging.GormLevel, "error", gormErr)
	}
	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		logger.Error("failed to connect to database", "driver", dialector.Name(), "error", err)
		return nil, err
	}
	if err := limitConnections(gdb); err != nil {
		_ = Close(gdb)
		return nil, err
	}
	if err := Migrate(gdb); err != nil {
		logger.Error("failed to migrate database", "error", err)
		_ = Close(gdb)
		return nil, err
	}
	return gdb, nil
}

func dialectorFor(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", config.DriverSQLite:
		return sqlite.Open(SQLiteDSN(cfg.Path)), nil
	case config.DriverPostgres:
		dsn := "host=" + cfg.Host +
			" user=" + cfg.User +
			" password=" + cfg.Password +
			" dbname=" + cfg.DBName +
			" port=" + strconv.Itoa(cfg.Port) +
			" sslmode=" + cfg.SSLMode
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// SQLiteDSN turns a file path into a DSN with foreign keys enforced, which
// the cascade rules depend on.
func SQLiteDSN(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		path = "mathquiz.db"
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	return path + sep + "_foreign_keys=on&_busy_timeout=5000"
}

// limitConnections pins sqlite to a single connection so that callers from
// several goroutines are serialized on it.
func limitConnections(gdb *gorm.DB) error {
	if gdb.Dialector.Name() != "sqlite" {
		return nil
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	return nil
}

func Migrate(gdb *gorm.DB) error {
	if gdb == nil {
		return errors.New("nil database handle")
	}
	if err := gdb.AutoMigrate(Models()...); err != nil {
		return err
	}
	if err := seedFocusAreas(gdb); err != nil {
		return err
	}
	return migrateQuestionLibrary(gdb)
}

func seedFocusAreas(gdb *gorm.DB) error {
	rows := make([]FocusArea, 0, len(FocusAreaNames))
	for i, name := range FocusAreaNames {
		rows = append(rows, FocusArea{ID: uint(i + 1), Name: name})
	}
	if err := gdb.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
		return err
	}
	if gdb.Dialector.Name() == "postgres" {
		// Explicit ids do not advance the serial sequence.
		return gdb.Exec(`
SELECT setval(pg_get_serial_sequence('focus_areas', 'id'), (SELECT MAX(id) FROM focus_areas))
`).Error
	}
	return nil
}

// migrateQuestionLibrary copies rows from the question_library table used by
// the earlier desktop schema into questions, once, when questions is empty.
func migrateQuestionLibrary(gdb *gorm.DB) error {
	migrator := gdb.Migrator()
	if !migrator.HasTable("question_library") {
		return nil
	}
	var count int64
	if err := gdb.Model(&Question{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	res := gdb.Exec(`
INSERT INTO questions (focus_area_id, question, answer, reference, created_at)
SELECT focus_area_id, question, answer, reference, created_at
FROM question_library
ORDER BY question_id
`)
	if res.Error != nil {
		return res.Error
	}
	logger.Info("migrated legacy question library", "rows", res.RowsAffected)
	return nil
}

func Close(gdb *gorm.DB) error {
	if gdb == nil {
		return nil
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
