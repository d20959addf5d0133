// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the IngestReceipt
// model used to implement safe-retry semantics for ingest batches.
package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quieromudarme/go-housing-backend/internal/domain"
)

// GetReceipt returns a non-expired ingest receipt or ErrNotFound.
func GetReceipt(ctx context.Context, db *gorm.DB, searchID, key string, now time.Time) (*domain.IngestReceipt, error) {
	if strings.TrimSpace(searchID) == "" || strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	var rec domain.IngestReceipt
	err := db.WithContext(ctx).
		Where("search_id = ? AND key = ? AND expires_at > ?", searchID, key, now).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateReceipt inserts a receipt and returns ErrDuplicate on unique
// violation (a racing replay already recorded one).
func CreateReceipt(ctx context.Context, db *gorm.DB, rec *domain.IngestReceipt, ttl time.Duration) (*domain.IngestReceipt, error) {
	now := time.Now().UTC()
	rec.ID = uuid.NewString()
	rec.CreatedAt = now
	rec.ExpiresAt = now.Add(ttl)
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if IsDuplicateErr(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}
