// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Housing and
// HousingRevision models.
//
// Revisions are append-only: there is no update or delete function here, and
// the model hooks reject both at the store boundary. "Current revision" is
// always the most recent by creation time, with the insertion-ordered primary
// key as tiebreak, so it is never ambiguous.
//
// Error semantics:
//   - When a housing is not found, functions return ErrNotFound.
//   - Creating a housing that collides on (provider, post_id) returns
//     ErrDuplicate; the caller retries its upsert as the update path.
//   - On other DB errors, the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/quieromudarme/go-housing-backend/internal/domain"
)

// GetHousingByKey fetches a housing by its natural key (provider, post_id),
// or ErrNotFound.
func GetHousingByKey(ctx context.Context, db *gorm.DB, provider domain.Provider, postID string) (*domain.Housing, error) {
	var h domain.Housing
	err := db.WithContext(ctx).
		Where("provider = ? AND post_id = ?", provider, postID).
		First(&h).Error
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// GetHousing fetches a housing by primary key, or ErrNotFound.
func GetHousing(ctx context.Context, db *gorm.DB, id string) (*domain.Housing, error) {
	var h domain.Housing
	if err := db.WithContext(ctx).Where("id = ?", id).First(&h).Error; err != nil {
		return nil, err
	}
	return &h, nil
}

// CreateHousing inserts a new housing together with its initial revision in
// one write. Collisions on (provider, post_id) return ErrDuplicate so a
// racing upsert can fall back to the update path.
func CreateHousing(ctx context.Context, db *gorm.DB, snap *domain.PostSnapshot) (*domain.Housing, error) {
	now := time.Now().UTC()
	h := &domain.Housing{
		ID:            uuid.NewString(),
		Provider:      snap.Provider,
		PostID:        snap.PostID,
		URL:           snap.URL,
		Title:         snap.Title,
		MainImageURL:  snap.MainImageURL,
		WhatsappPhone: snap.WhatsappPhone,
		PublisherID:   snap.PublisherID,
		ModifiedAt:    snap.ModifiedAt,
		Raw:           []byte(snap.Raw),
		CreatedAt:     now,
		Revisions: []domain.HousingRevision{{
			Price:     snap.Price,
			Currency:  snap.Currency,
			CreatedAt: now,
		}},
	}
	if err := db.WithContext(ctx).Create(h).Error; err != nil {
		if IsDuplicateErr(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return h, nil
}

// UpdateHousingDisplay overwrites the denormalized display fields with the
// latest snapshot values. Display fields follow the newest scrape
// unconditionally; only revisions are change-gated. Returns ErrNotFound when
// the housing row is gone.
func UpdateHousingDisplay(ctx context.Context, db *gorm.DB, id string, snap *domain.PostSnapshot) error {
	res := db.WithContext(ctx).
		Model(&domain.Housing{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"url":            snap.URL,
			"title":          snap.Title,
			"main_image_url": snap.MainImageURL,
			"whatsapp_phone": snap.WhatsappPhone,
			"publisher_id":   snap.PublisherID,
			"modified_at":    snap.ModifiedAt,
			"raw":            []byte(snap.Raw),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AddRevision appends a new (price, currency) revision for housingID.
func AddRevision(ctx context.Context, db *gorm.DB, housingID string, price decimal.Decimal, currency domain.Currency) (*domain.HousingRevision, error) {
	r := &domain.HousingRevision{
		HousingID: housingID,
		Price:     price,
		Currency:  currency,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		return nil, err
	}
	return r, nil
}

// CurrentRevision returns the most recent revision of housingID: greatest
// created_at, ties broken by the insertion-ordered primary key. Every
// persisted housing has at least one revision, so ErrNotFound here indicates
// a dangling housing id.
func CurrentRevision(ctx context.Context, db *gorm.DB, housingID string) (*domain.HousingRevision, error) {
	var r domain.HousingRevision
	err := db.WithContext(ctx).
		Where("housing_id = ?", housingID).
		Order("created_at DESC").
		Order("id DESC").
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CountRevisions returns the number of revisions recorded for housingID.
func CountRevisions(ctx context.Context, db *gorm.DB, housingID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.HousingRevision{}).
		Where("housing_id = ?", housingID).
		Count(&total).Error
	return total, err
}

// ListHousingsPage returns a paginated slice of the catalog, most recently
// updated first. Used by the ops listing endpoint, not by the core flows.
func ListHousingsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Housing, error) {
	var out []domain.Housing
	err := db.WithContext(ctx).
		Order("updated_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountHousings returns the total number of listings in the catalog.
func CountHousings(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Housing{}).Count(&total).Error
	return total, err
}
