// Package services – UserService
//
// This file implements the user and saved-search lifecycle: first-contact
// registration from the messaging gateway, tier changes, and search
// creation. Users can never be deleted; searches can, with a cascade to
// their watches (that path lives on WatchService, which owns watches).
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/quieromudarme/go-housing-backend/internal/domain"
	"github.com/quieromudarme/go-housing-backend/internal/repo"
)

// UserService implements user and search use-cases.
//
// The free-tier search cap is a designed-but-unenforced rule inherited from
// the product: the constant exists (default 2) but enforcement ships dark
// until product intent is reconfirmed. EnforceSearchLimit turns it on.
type UserService struct {
	// DB is the database handle used for all user operations.
	DB *gorm.DB

	// FreeSearchLimit is the number of searches a free user may keep when
	// enforcement is on. Values <= 0 mean unlimited.
	FreeSearchLimit int

	// EnforceSearchLimit gates the cap. Off by default.
	EnforceSearchLimit bool
}

// RegisterContact upserts a user from their first (or any) contact with the
// messaging gateway. Unknown telegram ids create a free-tier user; known
// ones refresh the username when it changed. A racing create is resolved by
// re-reading the row the other writer won with.
func (s *UserService) RegisterContact(ctx context.Context, telegramID int64, username string) (*domain.User, error) {
	var handle *string
	if v := strings.TrimSpace(username); v != "" {
		handle = &v
	}

	u, err := repo.GetUserByTelegramID(ctx, s.DB, telegramID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		u, err = repo.CreateUser(ctx, s.DB, telegramID, handle)
		if errors.Is(err, repo.ErrDuplicate) {
			u, err = repo.GetUserByTelegramID(ctx, s.DB, telegramID)
		}
		if err != nil {
			return nil, err
		}
		return u, nil
	} else if err != nil {
		return nil, err
	}

	if handle != nil && (u.TelegramUsername == nil || *u.TelegramUsername != *handle) {
		if err := repo.UpdateUserUsername(ctx, s.DB, u.ID, handle); err != nil && !errors.Is(err, repo.ErrDuplicate) {
			return nil, err
		}
		u.TelegramUsername = handle
	}
	return u, nil
}

// ChangeTier moves a user between free and premium.
func (s *UserService) ChangeTier(ctx context.Context, userID string, tier domain.Tier) error {
	if tier != domain.TierFree && tier != domain.TierPremium {
		return ErrInvalidTier
	}
	err := repo.UpdateUserTier(ctx, s.DB, userID, tier)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}

// DeleteUser always fails with ErrUserUndeletable: user records are
// append-only. The method exists so callers hit the rule through the front
// door instead of discovering it as a bare store error.
func (s *UserService) DeleteUser(ctx context.Context, userID string) error {
	err := repo.DeleteUser(ctx, s.DB, userID)
	if err == nil {
		// The hook guarantees this cannot happen; guard anyway.
		return ErrUserUndeletable
	}
	return err
}

// CreateSearch saves a query for userID. The (user, provider, url) triple
// must be unique; duplicates return ErrDuplicateSearch. When enforcement is
// on, free users at FreeSearchLimit get ErrSearchLimit.
func (s *UserService) CreateSearch(ctx context.Context, userID string, provider domain.Provider, url string, payload datatypes.JSON) (*domain.HousingSearch, error) {
	u, err := repo.GetUser(ctx, s.DB, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	} else if err != nil {
		return nil, err
	}

	if s.EnforceSearchLimit && s.FreeSearchLimit > 0 && !u.IsPremium() {
		n, err := repo.CountSearchesByUser(ctx, s.DB, userID)
		if err != nil {
			return nil, err
		}
		if n >= int64(s.FreeSearchLimit) {
			return nil, ErrSearchLimit
		}
	}

	search, err := repo.CreateSearch(ctx, s.DB, userID, provider, url, payload)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil, ErrDuplicateSearch
	}
	return search, err
}

// ListSearches returns the user's saved searches, newest first.
func (s *UserService) ListSearches(ctx context.Context, userID string) ([]domain.HousingSearch, error) {
	return repo.ListSearchesByUser(ctx, s.DB, userID)
}
