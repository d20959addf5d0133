// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// HousingSearch model.
//
// Error semantics:
//   - When a search is not found, functions return ErrNotFound.
//   - Creating a search that collides on (user, provider, url) returns
//     ErrDuplicate.
//   - On other DB errors, the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/quieromudarme/go-housing-backend/internal/domain"
)

// CreateSearch inserts a saved query owned by userID. The (user, provider,
// url) triple must be unique; collisions return ErrDuplicate.
func CreateSearch(ctx context.Context, db *gorm.DB, userID string, provider domain.Provider, url string, payload datatypes.JSON) (*domain.HousingSearch, error) {
	s := &domain.HousingSearch{
		ID:        uuid.NewString(),
		UserID:    userID,
		Provider:  provider,
		URL:       url,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		if IsDuplicateErr(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return s, nil
}

// GetSearch fetches a search by primary key, or ErrNotFound.
func GetSearch(ctx context.Context, db *gorm.DB, id string) (*domain.HousingSearch, error) {
	var s domain.HousingSearch
	if err := db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSearchesByUser returns all searches owned by userID, most recent first.
func ListSearchesByUser(ctx context.Context, db *gorm.DB, userID string) ([]domain.HousingSearch, error) {
	var out []domain.HousingSearch
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// CountSearchesByUser returns the number of searches owned by userID.
func CountSearchesByUser(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.HousingSearch{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// TouchLastSearchAt sets the search's last_search_at marker. Reconciliation
// calls this unconditionally for every completed scrape, even when the result
// set produced no watch changes. Returns ErrNotFound when the search is gone.
func TouchLastSearchAt(ctx context.Context, db *gorm.DB, id string, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.HousingSearch{}).
		Where("id = ?", id).
		Update("last_search_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSearch hard-deletes a search row. Watches owned by the search must be
// removed in the same transaction by the caller (see services.WatchService);
// the FK cascade is a backstop, not the contract.
func DeleteSearch(ctx context.Context, db *gorm.DB, id string) (int64, error) {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.HousingSearch{})
	return res.RowsAffected, res.Error
}
