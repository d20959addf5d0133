// Ingest HTTP handler.
//
// This file exposes the endpoint the scraping collaborator posts result
// batches to:
//   - POST /ingest
//
// A batch carries the originating search id and the scraped snapshots. The
// handler honors Idempotency-Key replays via ingest receipts: a retried
// batch returns the originally produced summary without re-executing the
// upserts.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/quieromudarme/go-housing-backend/internal/domain"
	"github.com/quieromudarme/go-housing-backend/internal/http/middleware"
	"github.com/quieromudarme/go-housing-backend/internal/repo"
	"github.com/quieromudarme/go-housing-backend/internal/services"
)

// IngestRequest is the JSON payload for submitting a scraped result batch.
type IngestRequest struct {
	SearchID string `json:"search_id" binding:"required,uuid" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
	// ObservedAt is when the scraper captured the batch; defaults to now.
	ObservedAt *time.Time `json:"observed_at,omitempty"`
	// Posts are the scraped listing snapshots. Duplicated post ids within
	// the batch collapse to the last occurrence.
	Posts []domain.PostSnapshot `json:"posts" binding:"required"`
}

// IngestResponse reports what a batch did to the catalog and watch sets.
type IngestResponse struct {
	SearchID     string `json:"search_id"`
	Ingested     int    `json:"ingested"`
	NewHousings  int    `json:"new_housings"`
	NewRevisions int    `json:"new_revisions"`
	Invalid      int    `json:"invalid"`
	Failed       int    `json:"failed"`
	// AsNotified is true on the first scrape of a search, whose watches are
	// stored pre-notified.
	AsNotified bool `json:"as_notified"`
	// Replayed is true when the response was served from an ingest receipt
	// instead of re-processing the batch.
	Replayed bool `json:"replayed"`
}

// Ingest godoc
// @ID          ingestBatch
// @Summary     Submit a scraped result batch
// @Description Upserts the batch into the housing catalog, applies the revision policy, and reconciles the originating search's watches. With an Idempotency-Key header, retried batches replay the stored summary.
// @Tags        Ingest
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string  false  "Client-chosen batch key for safe retries"
// @Param       body             body    handlers.IngestRequest  true  "Scraped batch"
//
// @Success     200  {object}  handlers.IngestResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid payload"
// @Failure     404  {object}  handlers.ErrorResponse  "Search not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Ingest failed"
// @Router      /ingest [post]
func (h *Handlers) Ingest(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "search_id and posts are required")
		return
	}
	ctx := c.Request.Context()

	key, hasKey := middleware.GetIdempotencyKey(c)
	if hasKey {
		if rec, err := repo.GetReceipt(ctx, h.db, req.SearchID, key, time.Now().UTC()); err == nil {
			middleware.LoggerFrom(c).Info().
				Str("search_id", req.SearchID).
				Str("idempotency_key", key).
				Msg("ingest replayed from receipt")
			ok(c, http.StatusOK, IngestResponse{
				SearchID:     rec.SearchID,
				Ingested:     rec.Ingested,
				NewHousings:  rec.NewHousings,
				NewRevisions: rec.NewRevisions,
				Invalid:      rec.Invalid,
				Failed:       rec.Failed,
				Replayed:     true,
			})
			return
		}
	}

	observedAt := time.Now().UTC()
	if req.ObservedAt != nil {
		observedAt = req.ObservedAt.UTC()
	}

	sum, err := h.ingest.IngestBatch(ctx, req.SearchID, req.Posts, observedAt)
	if err != nil {
		if errors.Is(err, services.ErrSearchNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "search not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeIngestFailed, err.Error())
		return
	}

	if hasKey {
		rec := &domain.IngestReceipt{
			SearchID:     req.SearchID,
			Key:          key,
			Ingested:     sum.Ingested,
			NewHousings:  sum.NewHousings,
			NewRevisions: sum.NewRevisions,
			Invalid:      sum.Invalid,
			Failed:       sum.Failed,
		}
		// A racing retry may have stored the receipt first; replays read
		// whichever row won.
		if _, err := repo.CreateReceipt(ctx, h.db, rec, h.receiptTTL); err != nil && !errors.Is(err, repo.ErrDuplicate) {
			middleware.LoggerFrom(c).Warn().Err(err).
				Str("search_id", req.SearchID).
				Msg("ingest receipt not stored")
		}
	}

	ok(c, http.StatusOK, IngestResponse{
		SearchID:     req.SearchID,
		Ingested:     sum.Ingested,
		NewHousings:  sum.NewHousings,
		NewRevisions: sum.NewRevisions,
		Invalid:      sum.Invalid,
		Failed:       sum.Failed,
		AsNotified:   sum.AsNotified,
	})
}
