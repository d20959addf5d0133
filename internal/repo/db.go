// Package repo is the persistence layer: GORM over the pure-Go SQLite
// driver. This file bootstraps the database, runs schema migration, and
// defines the error sentinels every repository function shares.
package repo

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/quieromudarme/go-housing-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates a uniqueness violation: the row being inserted
// collides with an existing one on a unique index (watch exclusivity,
// housing natural key, search triple, receipt key). The service layer
// decides whether to retry the write as an update.
var ErrDuplicate = errors.New("duplicate")

// IsDuplicateErr reports whether err is a unique-constraint violation,
// either our own sentinel or a driver-level error. glebarez/sqlite often
// returns plain-text errors for UNIQUE violations.
func IsDuplicateErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDuplicate) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key")
}

// sqlitePragmas are applied on every open. WAL plus a busy timeout keeps
// concurrent ingest writers from tripping over SQLITE_BUSY.
var sqlitePragmas = []string{
	"PRAGMA journal_mode=WAL;",
	"PRAGMA synchronous=NORMAL;",
	"PRAGMA foreign_keys=ON;",
	"PRAGMA busy_timeout=5000;",
}

// OpenSQLite opens (or creates) a SQLite database, applies the standard
// PRAGMAs, and sizes the connection pool.
func OpenSQLite(path string) (*gorm.DB, error) {
	// A missing parent directory surfaces from sqlite as the cryptic
	// "out of memory (14)", so check it up front.
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	for _, pragma := range sqlitePragmas {
		db.Exec(pragma)
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// AutoMigrate creates or updates the schema for all persisted entities.
// Order matters for foreign keys: owners before dependents.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.HousingSearch{},
		&domain.Housing{},
		&domain.HousingRevision{},
		&domain.HousingWatch{},
		&domain.IngestReceipt{},
	)
}
