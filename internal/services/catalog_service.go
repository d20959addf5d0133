// Package services – CatalogService
//
// This file implements the ingest side of the core: upserting scraped
// listings into the catalog and deciding when a price change is meaningful
// enough to record as a new revision.
//
// The revision policy is deliberately asymmetric. A new revision is created
// only for: a relative price drop of at least the configured threshold, a
// transition to or from the unpublished state (price zero), or a currency
// change. Price increases, of any size, and drops smaller than the
// threshold never create a revision on their own. Rising and marginally
// moving prices would otherwise flood users with notification noise.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/quieromudarme/go-housing-backend/internal/domain"
	"github.com/quieromudarme/go-housing-backend/internal/repo"
)

// DefaultPriceDropThreshold is the relative drop (θ) that makes a price
// change worth a revision: new ≤ (1−θ)·old.
var DefaultPriceDropThreshold = decimal.RequireFromString("0.05")

// CatalogService implements listing ingestion. It owns the Housing and
// HousingRevision lifecycle exclusively: no other component writes to either
// table. The service is context-aware; each upsert runs in its own
// transaction so concurrent upserts for the same (provider, post_id)
// serialize at the store and at most one revision per meaningful change
// survives.
type CatalogService struct {
	// DB is the database handle used for all catalog operations.
	DB *gorm.DB

	// Threshold is the relative price-drop threshold θ. Zero value falls
	// back to DefaultPriceDropThreshold.
	Threshold decimal.Decimal

	// ExcessiveWarn is the batch size above which IngestBatch logs a
	// warning (a scrape returning hundreds of results usually means the
	// search is too broad or the provider page changed). Zero disables it.
	ExcessiveWarn int

	// Watches, when set, is used by IngestBatch to reconcile the
	// originating search after the upserts. Nil skips reconciliation
	// (callers then drive it themselves).
	Watches *WatchService
}

// UpsertResult reports what one snapshot did to the catalog.
type UpsertResult struct {
	Housing *domain.Housing `json:"housing"`
	// IsNew is true when the snapshot created the housing (with its initial
	// revision).
	IsNew bool `json:"is_new"`
	// AddedRevision is true when the snapshot appended a revision to an
	// existing housing.
	AddedRevision bool `json:"added_revision"`
}

// IngestSummary aggregates a whole batch. Failures are isolated per item.
type IngestSummary struct {
	Ingested     int `json:"ingested"`
	NewHousings  int `json:"new_housings"`
	NewRevisions int `json:"new_revisions"`
	Invalid      int `json:"invalid"`
	Failed       int `json:"failed"`

	// HousingIDs are the catalog ids of every successfully upserted
	// snapshot, in batch order. They feed watch reconciliation.
	HousingIDs []string `json:"-"`

	// AsNotified is true when this was the first scrape of the search, in
	// which case the watches were created pre-notified so the user is not
	// flooded with everything the search matched on day one.
	AsNotified bool `json:"as_notified"`
}

// ShouldAddRevision is the revision-creation policy: given the current
// revision's (price, currency) and a fresh snapshot's, it decides whether a
// new revision must be recorded.
//
// A revision is due iff any of:
//   - the price dropped by at least threshold: new > 0 and new ≤ (1−θ)·old;
//   - the listing became unpublished: old > 0 and new = 0;
//   - the listing was republished: old = 0 and new > 0;
//   - the currency changed.
//
// Increases never create a revision, whatever their size. Exported so the
// policy can be tested as the pure function it is.
func ShouldAddRevision(oldPrice, newPrice decimal.Decimal, oldCurrency, newCurrency domain.Currency, threshold decimal.Decimal) bool {
	if newCurrency != oldCurrency {
		return true
	}
	oldPos, newPos := oldPrice.IsPositive(), newPrice.IsPositive()
	switch {
	case oldPos && !newPos:
		return true // unpublished
	case !oldPos && newPos:
		return true // republished
	case !oldPos && !newPos:
		return false
	}
	limit := decimal.NewFromInt(1).Sub(threshold).Mul(oldPrice)
	return newPrice.LessThanOrEqual(limit)
}

// UpsertListing ingests one snapshot.
//
// Semantics:
//   - The snapshot is normalized and validated first; a malformed one is
//     rejected with ErrInvalidSnapshot before any write.
//   - Unknown (provider, post_id): the housing is created with its initial
//     revision; IsNew is set.
//   - Known: display fields are overwritten unconditionally with the
//     snapshot values, then ShouldAddRevision gates an appended revision.
//   - Re-running with an unchanged snapshot is a no-op on revisions.
//
// Concurrency: the lookup and write run in one transaction. A create that
// loses the natural-key race falls through to the update path instead of
// failing, so two concurrent first-sights of a listing yield one housing and
// one initial revision.
func (s *CatalogService) UpsertListing(ctx context.Context, snap *domain.PostSnapshot) (*UpsertResult, error) {
	snap.Normalize()
	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}

	var res UpsertResult
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		h, err := repo.GetHousingByKey(ctx, tx, snap.Provider, snap.PostID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			created, cerr := repo.CreateHousing(ctx, tx, snap)
			if cerr == nil {
				res = UpsertResult{Housing: created, IsNew: true}
				return nil
			}
			if !errors.Is(cerr, repo.ErrDuplicate) {
				return cerr
			}
			// Lost the create race; treat as existing.
			if h, err = repo.GetHousingByKey(ctx, tx, snap.Provider, snap.PostID); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		if err := repo.UpdateHousingDisplay(ctx, tx, h.ID, snap); err != nil {
			return err
		}
		cur, err := repo.CurrentRevision(ctx, tx, h.ID)
		if err != nil {
			return err
		}
		if ShouldAddRevision(cur.Price, snap.Price, cur.Currency, snap.Currency, s.threshold()) {
			if _, err := repo.AddRevision(ctx, tx, h.ID, snap.Price, snap.Currency); err != nil {
				return err
			}
			res.AddedRevision = true
		}
		res.Housing = h
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// IngestBatch processes one completed scrape of a search: it upserts every
// snapshot with per-item failure isolation and then reconciles the search's
// watches (when Watches is wired).
//
// Behavior carried over from the production ETL:
//   - duplicate post ids inside a batch are collapsed (last one wins) and
//     logged, since providers occasionally repeat results across pages;
//   - a batch larger than ExcessiveWarn logs a warning;
//   - the first scrape of a search (last_search_at still unset) creates its
//     watches as already notified.
func (s *CatalogService) IngestBatch(ctx context.Context, searchID string, snaps []domain.PostSnapshot, observedAt time.Time) (*IngestSummary, error) {
	tr := otel.Tracer("services/CatalogService")
	ctx, span := tr.Start(ctx, "IngestBatch",
		trace.WithAttributes(
			attribute.String("search.id", searchID),
			attribute.Int("batch.size", len(snaps)),
		),
	)
	defer span.End()

	search, err := repo.GetSearch(ctx, s.DB, searchID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSearchNotFound
	} else if err != nil {
		return nil, err
	}

	snaps = dedupeSnapshots(snaps)
	if s.ExcessiveWarn > 0 && len(snaps) > s.ExcessiveWarn {
		log.Warn().
			Str("search_id", searchID).
			Int("results", len(snaps)).
			Msg("excessive scrape results; search may be too broad")
	}

	sum := &IngestSummary{AsNotified: search.LastSearchAt == nil}
	for i := range snaps {
		res, err := s.UpsertListing(ctx, &snaps[i])
		switch {
		case errors.Is(err, ErrInvalidSnapshot):
			sum.Invalid++
			log.Warn().Err(err).
				Str("search_id", searchID).
				Str("post_id", snaps[i].PostID).
				Msg("rejected snapshot")
		case err != nil:
			sum.Failed++
			log.Error().Err(err).
				Str("search_id", searchID).
				Str("post_id", snaps[i].PostID).
				Msg("upsert failed")
		default:
			sum.Ingested++
			if res.IsNew {
				sum.NewHousings++
			}
			if res.AddedRevision {
				sum.NewRevisions++
			}
			sum.HousingIDs = append(sum.HousingIDs, res.Housing.ID)
		}
	}

	if s.Watches != nil {
		if _, err := s.Watches.ReconcileSearchResults(ctx, searchID, sum.HousingIDs, observedAt, sum.AsNotified); err != nil {
			return sum, err
		}
	}

	log.Info().
		Str("search_id", searchID).
		Int("fetched", len(snaps)).
		Int("new_housings", sum.NewHousings).
		Int("new_revisions", sum.NewRevisions).
		Int("invalid", sum.Invalid).
		Int("failed", sum.Failed).
		Bool("as_notified", sum.AsNotified).
		Msg("ingest batch done")
	return sum, nil
}

// dedupeSnapshots collapses repeated (provider, post_id) pairs, keeping the
// last occurrence and preserving first-seen order.
func dedupeSnapshots(snaps []domain.PostSnapshot) []domain.PostSnapshot {
	type key struct {
		p  domain.Provider
		id string
	}
	idx := make(map[key]int, len(snaps))
	out := make([]domain.PostSnapshot, 0, len(snaps))
	for _, snap := range snaps {
		k := key{snap.Provider, snap.PostID}
		if at, seen := idx[k]; seen {
			out[at] = snap
			continue
		}
		idx[k] = len(out)
		out = append(out, snap)
	}
	if len(out) != len(snaps) {
		log.Warn().
			Int("fetched", len(snaps)).
			Int("unique", len(out)).
			Msg("provider returned duplicate post ids in one batch")
	}
	return out
}

// threshold returns the configured θ or the default.
func (s *CatalogService) threshold() decimal.Decimal {
	if s.Threshold.IsZero() {
		return DefaultPriceDropThreshold
	}
	return s.Threshold
}
