package services

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/quieromudarme/go-housing-backend/internal/domain"
	"github.com/quieromudarme/go-housing-backend/internal/repo"
)

// newServiceDB opens a throwaway on-disk SQLite database with the full schema.
func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("services_test_%d.db", time.Now().UnixNano()))
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
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func mkUser(t *testing.T, db *gorm.DB, telegramID int64) *domain.User {
	t.Helper()
	u, err := repo.CreateUser(context.Background(), db, telegramID, nil)
	if err != nil {
		t.Fatalf("mkUser %d: %v", telegramID, err)
	}
	return u
}

func mkSearch(t *testing.T, db *gorm.DB, userID, url string) *domain.HousingSearch {
	t.Helper()
	s, err := repo.CreateSearch(context.Background(), db, userID, domain.ProviderZonaProp, url, nil)
	if err != nil {
		t.Fatalf("mkSearch %s: %v", url, err)
	}
	return s
}

func snapFor(postID string, price int64) domain.PostSnapshot {
	return domain.PostSnapshot{
		Provider: domain.ProviderZonaProp,
		PostID:   postID,
		URL:      "https://example.com/" + postID,
		Title:    "Listing " + postID,
		Price:    decimal.NewFromInt(price),
		Currency: domain.CurrencyARS,
	}
}
