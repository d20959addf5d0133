// Package services – NotifyService
//
// This file implements the notification batcher: collecting stale watches
// into per-user groups ordered by delivery priority, and the idempotent
// confirmation that advances watch state once the messaging gateway has
// delivered (or is presumed to have delivered) each notification.
package services

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/quieromudarme/go-housing-backend/internal/domain"
	"github.com/quieromudarme/go-housing-backend/internal/repo"
	"github.com/quieromudarme/go-housing-backend/internal/utils"
)

// NotifyService implements the notification batching use-cases. Collection
// is read-only and snapshot-consistent; confirmation is independently
// idempotent per watch.
type NotifyService struct {
	// DB is the database handle used for all batching operations.
	DB *gorm.DB

	// MaxPerUser caps how many entries a single user's group may carry per
	// collection pass. A search matching hundreds of updated listings at
	// once almost always signals a scraping bug, not hundreds of genuine
	// changes; the overflow is reported on the group instead of delivered.
	// Zero disables the cap.
	MaxPerUser int
}

// NotificationEntry is one stale watch prepared for rendering: the watched
// housing, the revision the user last saw and the revision they should be
// told about, plus the search that owns the watch.
type NotificationEntry struct {
	WatchID     string                  `json:"watch_id"`
	Search      domain.HousingSearch    `json:"search"`
	Housing     domain.Housing          `json:"housing"`
	OldRevision domain.HousingRevision  `json:"old_revision"`
	NewRevision domain.HousingRevision  `json:"new_revision"`
	// Slug is an ascii-safe identifier derived from the listing title,
	// handy for gateway deep links and log lines.
	Slug string `json:"slug"`
}

// NotificationGroup is everything the gateway needs to notify one user, in
// the order entries should be rendered.
type NotificationGroup struct {
	User    domain.User         `json:"user"`
	Entries []NotificationEntry `json:"entries"`
	// Overflow counts stale watches beyond MaxPerUser that were withheld
	// from this pass. They surface again on the next one.
	Overflow int `json:"overflow,omitempty"`
}

// ConfirmPair identifies one delivered notification: the watch and the
// revision the user was told about.
type ConfirmPair struct {
	WatchID    string `json:"watch_id" binding:"required"`
	RevisionID uint64 `json:"revision_id" binding:"required"`
}

// ConfirmSummary reports a confirmation batch: how many watches advanced,
// how many had vanished (cascade of a concurrent search deletion), and how
// many failed on store errors. Partial success is the expected shape, not an
// error.
type ConfirmSummary struct {
	Updated int `json:"updated"`
	Missing int `json:"missing"`
	Failed  int `json:"failed"`
}

// CollectPendingNotifications builds the orderly batch of everything users
// must be told about.
//
// A watch is due when its pinned revision is no longer its housing's current
// revision. Groups are ordered premium tier first, then by user account age
// (oldest first), with the user id as a stable tiebreak; the order is
// deterministic for a given store state and dictates delivery order to the
// gateway. Within a group, entries follow watch creation order.
//
// The scan runs inside one read transaction so no watch is observed
// half-updated by a concurrent reconciliation or confirmation.
func (s *NotifyService) CollectPendingNotifications(ctx context.Context) ([]NotificationGroup, error) {
	tr := otel.Tracer("services/NotifyService")
	ctx, span := tr.Start(ctx, "CollectPendingNotifications")
	defer span.End()

	var groups []NotificationGroup
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stale, err := repo.ListStaleWatches(ctx, tx)
		if err != nil {
			return err
		}

		byUser := make(map[string]*NotificationGroup)
		var order []string
		for i := range stale {
			w := &stale[i]
			cur, err := repo.CurrentRevision(ctx, tx, w.HousingID)
			if err != nil {
				return err
			}
			g, ok := byUser[w.UserID]
			if !ok {
				g = &NotificationGroup{User: w.Search.User}
				byUser[w.UserID] = g
				order = append(order, w.UserID)
			}
			if s.MaxPerUser > 0 && len(g.Entries) >= s.MaxPerUser {
				g.Overflow++
				continue
			}
			g.Entries = append(g.Entries, NotificationEntry{
				WatchID:     w.ID,
				Search:      w.Search,
				Housing:     w.Housing,
				OldRevision: w.Revision,
				NewRevision: *cur,
				Slug:        utils.Slugify(w.Housing.Title),
			})
		}

		groups = make([]NotificationGroup, 0, len(order))
		for _, uid := range order {
			groups = append(groups, *byUser[uid])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(groups, func(i, j int) bool {
		gi, gj := &groups[i], &groups[j]
		if gi.User.IsPremium() != gj.User.IsPremium() {
			return gi.User.IsPremium()
		}
		if !gi.User.CreatedAt.Equal(gj.User.CreatedAt) {
			return gi.User.CreatedAt.Before(gj.User.CreatedAt)
		}
		return gi.User.ID < gj.User.ID
	})

	if n := len(groups); n > 0 {
		total := 0
		for i := range groups {
			total += len(groups[i].Entries)
		}
		log.Info().Int("users", n).Int("watches", total).Msg("pending notifications collected")
	}
	return groups, nil
}

// ConfirmDelivered records that the gateway delivered the given
// (watch, revision) pairs at notifiedAt: each watch's pinned revision and
// notified marker are advanced. Pairs are processed independently: a watch
// that vanished (its search was deleted meanwhile) is skipped and counted, a
// store error on one pair does not abort the rest, and re-confirming the
// same pairs just rewrites identical values.
func (s *NotifyService) ConfirmDelivered(ctx context.Context, notifiedAt time.Time, pairs []ConfirmPair) (*ConfirmSummary, error) {
	tr := otel.Tracer("services/NotifyService")
	ctx, span := tr.Start(ctx, "ConfirmDelivered",
		trace.WithAttributes(attribute.Int("pairs", len(pairs))),
	)
	defer span.End()

	sum := &ConfirmSummary{}
	for _, p := range pairs {
		rows, err := repo.AdvanceWatch(ctx, s.DB, p.WatchID, p.RevisionID, notifiedAt)
		switch {
		case err != nil:
			sum.Failed++
			log.Error().Err(err).Str("watch_id", p.WatchID).Msg("confirm failed")
		case rows == 0:
			sum.Missing++
		default:
			sum.Updated++
		}
	}
	return sum, nil
}
