// Package services – WatchService
//
// This file implements watch reconciliation: keeping the many-to-many link
// between a user's saved searches and the listings they currently match,
// under the exclusivity rule that a user watches any given housing at most
// once, whichever search led them to it.
//
// Watches, once created, persist until their owning search is deleted.
// Listings that drop out of a search's result set keep their watches;
// whether such stale watches should ever be pruned is an unresolved product
// question, deliberately not guessed at here.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/quieromudarme/go-housing-backend/internal/repo"
)

// WatchService owns the HousingWatch lifecycle exclusively. It is
// context-aware and safe for concurrent invocation, including overlapping
// reconciliations of the same search or the same user: the (user, housing)
// unique index arbitrates races, and the losing insert is retried as an
// update.
type WatchService struct {
	// DB is the database handle used for all watch operations.
	DB *gorm.DB
}

// ReconcileSummary reports what one reconciliation pass changed.
type ReconcileSummary struct {
	Created   int `json:"created"`
	Advanced  int `json:"advanced"`
	Unchanged int `json:"unchanged"`
	// Skipped counts housing ids that vanished between upsert and
	// reconciliation. They are logged and do not abort the pass.
	Skipped int `json:"skipped"`
}

// ReconcileSearchResults records the outcome of one completed scrape of
// searchID: the set of housings the search currently matches.
//
// Semantics (per housing id, isolated per item):
//   - The search's last_search_at is set to observedAt unconditionally.
//   - If the search's user already watches the housing (through this or any
//     other of their searches) the watch is left untouched, unless
//     asNotified is set, in which case its revision pointer is advanced to
//     the housing's current revision and notified_at is stamped.
//   - Otherwise a watch is inserted for this search at the housing's current
//     revision, pre-notified iff asNotified.
//
// Exclusivity under concurrency: the lookup-then-insert may race a
// reconciliation of another search of the same user. The unique index makes
// the second insert fail; that failure is converted into the
// already-watched path rather than surfaced. Two concurrent reconciliations
// can never leave two watch rows for one (user, housing).
func (s *WatchService) ReconcileSearchResults(ctx context.Context, searchID string, housingIDs []string, observedAt time.Time, asNotified bool) (*ReconcileSummary, error) {
	search, err := repo.GetSearch(ctx, s.DB, searchID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSearchNotFound
	} else if err != nil {
		return nil, err
	}
	if err := repo.TouchLastSearchAt(ctx, s.DB, searchID, observedAt); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var notifiedAt *time.Time
	if asNotified {
		notifiedAt = &now
	}

	sum := &ReconcileSummary{}
	for _, housingID := range housingIDs {
		if err := s.reconcileOne(ctx, search.UserID, searchID, housingID, notifiedAt, sum); err != nil {
			return sum, err
		}
	}

	log.Debug().
		Str("search_id", searchID).
		Int("created", sum.Created).
		Int("advanced", sum.Advanced).
		Int("unchanged", sum.Unchanged).
		Int("skipped", sum.Skipped).
		Msg("reconciled search results")
	return sum, nil
}

// reconcileOne applies the watch rules for a single (user, housing) pair in
// its own transaction.
func (s *WatchService) reconcileOne(ctx context.Context, userID, searchID, housingID string, notifiedAt *time.Time, sum *ReconcileSummary) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cur, err := repo.CurrentRevision(ctx, tx, housingID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			sum.Skipped++
			log.Warn().Str("housing_id", housingID).Msg("housing vanished before reconciliation")
			return nil
		} else if err != nil {
			return err
		}

		w, err := repo.GetWatchForUserHousing(ctx, tx, userID, housingID)
		if err == nil {
			return s.advanceExisting(ctx, tx, w.ID, cur.ID, notifiedAt, sum)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if _, err = repo.CreateWatch(ctx, tx, searchID, userID, housingID, cur.ID, notifiedAt); err == nil {
			sum.Created++
			return nil
		}
		if !errors.Is(err, repo.ErrDuplicate) {
			return err
		}
		// Lost the exclusivity race to a sibling search; re-read and apply
		// the already-watched rules.
		w, err = repo.GetWatchForUserHousing(ctx, tx, userID, housingID)
		if err != nil {
			return err
		}
		return s.advanceExisting(ctx, tx, w.ID, cur.ID, notifiedAt, sum)
	})
}

// advanceExisting applies the already-watched branch: untouched unless the
// pass runs asNotified, in which case the pointer and marker advance.
func (s *WatchService) advanceExisting(ctx context.Context, tx *gorm.DB, watchID string, revisionID uint64, notifiedAt *time.Time, sum *ReconcileSummary) error {
	if notifiedAt == nil {
		sum.Unchanged++
		return nil
	}
	rows, err := repo.AdvanceWatch(ctx, tx, watchID, revisionID, *notifiedAt)
	if err != nil {
		return err
	}
	if rows == 0 {
		sum.Skipped++
		return nil
	}
	sum.Advanced++
	return nil
}

// DeleteSearch hard-deletes a search and cascades to every watch it owns, in
// one transaction: either the search and all its watches go, or nothing
// does. Watches owned by the user's other searches are untouched.
//
// Returns the number of cascaded watches. ErrSearchNotFound when the id does
// not exist; ErrCascadeFailed (wrapping the cause) when the cascade could
// not complete.
func (s *WatchService) DeleteSearch(ctx context.Context, searchID string) (int64, error) {
	var cascaded int64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.GetSearch(ctx, tx, searchID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSearchNotFound
			}
			return err
		}
		n, err := repo.DeleteWatchesBySearch(ctx, tx, searchID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCascadeFailed, err)
		}
		cascaded = n
		rows, err := repo.DeleteSearch(ctx, tx, searchID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCascadeFailed, err)
		}
		if rows == 0 {
			return ErrSearchNotFound
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	log.Info().Str("search_id", searchID).Int64("watches", cascaded).Msg("search deleted with cascade")
	return cascaded, nil
}
