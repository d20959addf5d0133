// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// HousingWatch model.
//
// The exclusivity invariant (at most one watch per (user, housing), across
// all of that user's searches) is backed by the ux_watches_user_housing
// unique index. CreateWatch surfaces the violation as ErrDuplicate so the
// service layer can convert the insert into an update instead of failing the
// reconciliation.
//
// Watches are removed only as a cascade of their owning search's deletion;
// DeleteWatchesBySearch is called inside that transaction.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quieromudarme/go-housing-backend/internal/domain"
)

// GetWatchForUserHousing returns the watch a user holds on a housing through
// any of their searches, or ErrNotFound. This is the global-exclusivity
// lookup: the search that created the watch is irrelevant.
func GetWatchForUserHousing(ctx context.Context, db *gorm.DB, userID, housingID string) (*domain.HousingWatch, error) {
	var w domain.HousingWatch
	err := db.WithContext(ctx).
		Where("user_id = ? AND housing_id = ?", userID, housingID).
		First(&w).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// CreateWatch inserts a watch owned by searchID for (userID, housingID),
// pinned at revisionID. notifiedAt non-nil marks the watch as already
// notified (used for a search's first scrape, which must not flood the user).
//
// Returns ErrDuplicate when the user already watches this housing.
func CreateWatch(ctx context.Context, db *gorm.DB, searchID, userID, housingID string, revisionID uint64, notifiedAt *time.Time) (*domain.HousingWatch, error) {
	w := &domain.HousingWatch{
		ID:                uuid.NewString(),
		SearchID:          searchID,
		UserID:            userID,
		HousingID:         housingID,
		HousingRevisionID: revisionID,
		NotifiedAt:        notifiedAt,
		CreatedAt:         time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(w).Error; err != nil {
		if IsDuplicateErr(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return w, nil
}

// AdvanceWatch moves a watch's pinned revision and notified marker in one
// write. Rewriting the same values is a no-op by construction, which is what
// makes delivery confirmation idempotent. Returns the number of rows touched:
// zero means the watch vanished (cascade of a search deletion), which callers
// count and skip rather than treat as fatal.
func AdvanceWatch(ctx context.Context, db *gorm.DB, watchID string, revisionID uint64, notifiedAt time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.HousingWatch{}).
		Where("id = ?", watchID).
		Updates(map[string]any{
			"housing_revision_id": revisionID,
			"notified_at":         notifiedAt,
		})
	return res.RowsAffected, res.Error
}

// ListStaleWatches returns every watch whose pinned revision differs from its
// housing's current revision, with the owning search, its user, the housing,
// and the pinned revision preloaded. Ordering is deterministic: watch
// creation time ascending, id as tiebreak. Run it inside a transaction when a
// consistent snapshot across watches is required.
func ListStaleWatches(ctx context.Context, db *gorm.DB) ([]domain.HousingWatch, error) {
	var out []domain.HousingWatch
	err := db.WithContext(ctx).
		Preload("Search").
		Preload("Search.User").
		Preload("Housing").
		Preload("Revision").
		Where(`housing_revision_id <> (
			SELECT r.id FROM housing_revisions r
			WHERE r.housing_id = housing_watches.housing_id
			ORDER BY r.created_at DESC, r.id DESC
			LIMIT 1
		)`).
		Order("created_at asc").
		Order("id asc").
		Find(&out).Error
	return out, err
}

// DeleteWatchesBySearch removes every watch owned by searchID and reports how
// many rows went away. Part of the search-deletion cascade; never called on
// its own.
func DeleteWatchesBySearch(ctx context.Context, db *gorm.DB, searchID string) (int64, error) {
	res := db.WithContext(ctx).
		Where("search_id = ?", searchID).
		Delete(&domain.HousingWatch{})
	return res.RowsAffected, res.Error
}

// CountWatchesBySearch returns the number of watches owned by searchID.
func CountWatchesBySearch(ctx context.Context, db *gorm.DB, searchID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.HousingWatch{}).
		Where("search_id = ?", searchID).
		Count(&total).Error
	return total, err
}
