// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// by the health endpoint and operational logging. Each function is
// context-aware and safe to call from services or handlers.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/quieromudarme/go-housing-backend/internal/domain"
)

// CatalogStats is a point-in-time row count of every core entity. Cheap to
// compute on SQLite and useful for the /health payload and post-ETL logs.
type CatalogStats struct {
	Users     int64 `json:"users"`
	Searches  int64 `json:"searches"`
	Housings  int64 `json:"housings"`
	Revisions int64 `json:"revisions"`
	Watches   int64 `json:"watches"`
}

// Stats counts rows of each core table. The five counts are read without a
// shared transaction; treat the result as an operational snapshot, not an
// invariant check.
func Stats(ctx context.Context, db *gorm.DB) (CatalogStats, error) {
	var s CatalogStats
	h := db.WithContext(ctx)
	if err := h.Model(&domain.User{}).Count(&s.Users).Error; err != nil {
		return s, err
	}
	if err := h.Model(&domain.HousingSearch{}).Count(&s.Searches).Error; err != nil {
		return s, err
	}
	if err := h.Model(&domain.Housing{}).Count(&s.Housings).Error; err != nil {
		return s, err
	}
	if err := h.Model(&domain.HousingRevision{}).Count(&s.Revisions).Error; err != nil {
		return s, err
	}
	if err := h.Model(&domain.HousingWatch{}).Count(&s.Watches).Error; err != nil {
		return s, err
	}
	return s, nil
}
