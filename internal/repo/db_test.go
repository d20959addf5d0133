package repo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/quieromudarme/go-housing-backend/internal/domain"
)

// newRepoDB opens a throwaway on-disk SQLite database with the full schema.
func newRepoDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, telegramID int64) *domain.User {
	t.Helper()
	u, err := CreateUser(context.Background(), db, telegramID, nil)
	if err != nil {
		t.Fatalf("seed user %d: %v", telegramID, err)
	}
	return u
}

func seedSearch(t *testing.T, db *gorm.DB, userID, url string) *domain.HousingSearch {
	t.Helper()
	s, err := CreateSearch(context.Background(), db, userID, domain.ProviderZonaProp, url, nil)
	if err != nil {
		t.Fatalf("seed search %s: %v", url, err)
	}
	return s
}

func seedHousing(t *testing.T, db *gorm.DB, postID string, price int64) *domain.Housing {
	t.Helper()
	snap := &domain.PostSnapshot{
		Provider: domain.ProviderZonaProp,
		PostID:   postID,
		URL:      "https://example.com/" + postID,
		Title:    "Listing " + postID,
		Price:    decimal.NewFromInt(price),
		Currency: domain.CurrencyARS,
	}
	h, err := CreateHousing(context.Background(), db, snap)
	if err != nil {
		t.Fatalf("seed housing %s: %v", postID, err)
	}
	return h
}

func TestOpenSQLite_CreatesFileAndPool(t *testing.T) {
	path := filepath.Join(t.TempDir(), "open_test.db")
	db, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	defer sqlDB.Close()
	if err := sqlDB.Ping(); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestIsDuplicateErr(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("UNIQUE constraint failed: users.telegram_id"), true},
		{errors.New("constraint failed: UNIQUE constraint failed"), true},
		{errors.New("duplicate key value violates unique constraint"), true},
		{gorm.ErrDuplicatedKey, true},
		{gorm.ErrRecordNotFound, false},
		{errors.New("disk I/O error"), false},
	}
	for _, tc := range cases {
		if got := IsDuplicateErr(tc.err); got != tc.want {
			t.Fatalf("IsDuplicateErr(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestStats_CountsAllTables(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	u := seedUser(t, db, 1)
	s := seedSearch(t, db, u.ID, "https://example.com/q1")
	h := seedHousing(t, db, "p1", 1000)
	cur, err := CurrentRevision(ctx, db, h.ID)
	if err != nil {
		t.Fatalf("current revision: %v", err)
	}
	if _, err := CreateWatch(ctx, db, s.ID, u.ID, h.ID, cur.ID, nil); err != nil {
		t.Fatalf("create watch: %v", err)
	}

	stats, err := Stats(ctx, db)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Users != 1 || stats.Searches != 1 || stats.Housings != 1 || stats.Revisions != 1 || stats.Watches != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
