// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a user is not found, functions return ErrNotFound.
//   - Deleting a user always fails with domain.ErrUserUndeletable (enforced
//     by the model's BeforeDelete hook, surfaced here untranslated).
//   - On other DB errors, the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quieromudarme/go-housing-backend/internal/domain"
)

// CreateUser inserts a new User row for the given messaging-account identity.
// The user starts on the free tier; username may be nil.
//
// Returns ErrDuplicate when the telegram id (or username) is already taken.
func CreateUser(ctx context.Context, db *gorm.DB, telegramID int64, username *string) (*domain.User, error) {
	u := &domain.User{
		ID:               uuid.NewString(),
		TelegramID:       telegramID,
		TelegramUsername: username,
		Tier:             domain.TierFree,
		CreatedAt:        time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		if IsDuplicateErr(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return u, nil
}

// GetUser fetches a user by primary key, or ErrNotFound.
func GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByTelegramID fetches a user by their messaging-account identifier,
// or ErrNotFound.
func GetUserByTelegramID(ctx context.Context, db *gorm.DB, telegramID int64) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateUserUsername updates the display handle of a user. If no rows are
// affected (user missing), it returns ErrNotFound.
func UpdateUserUsername(ctx context.Context, db *gorm.DB, id string, username *string) error {
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Update("telegram_username", username)
	if res.Error != nil {
		if IsDuplicateErr(res.Error) {
			return ErrDuplicate
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateUserTier moves a user between subscription tiers. If no rows are
// affected (user missing), it returns ErrNotFound.
func UpdateUserTier(ctx context.Context, db *gorm.DB, id string, tier domain.Tier) error {
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Update("tier", tier)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUser attempts to delete a user. It always fails: the model's
// BeforeDelete hook returns domain.ErrUserUndeletable. The function exists so
// the rule is exercised through the same path callers would use.
func DeleteUser(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).Delete(&domain.User{ID: id}).Error
}
