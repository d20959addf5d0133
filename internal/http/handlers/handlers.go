// Handler wiring for the housing-alert API.
//
// This file defines the service contracts consumed by the HTTP layer, the
// Handlers aggregate, and small helpers shared by the endpoint files.
// Handlers are transport-thin: they validate input, call application
// services, and translate domain/service errors into HTTP results.
package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/quieromudarme/go-housing-backend/internal/domain"
	"github.com/quieromudarme/go-housing-backend/internal/services"
	"github.com/quieromudarme/go-housing-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// AccountService defines user and saved-search lifecycle operations consumed
// by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type AccountService interface {
	// RegisterContact upserts a user by telegram contact.
	RegisterContact(ctx context.Context, telegramID int64, username string) (*domain.User, error)
	// ChangeTier switches a user between free and premium.
	ChangeTier(ctx context.Context, userID string, tier domain.Tier) error
	// CreateSearch saves a new search for a user.
	CreateSearch(ctx context.Context, userID string, provider domain.Provider, url string, payload datatypes.JSON) (*domain.HousingSearch, error)
	// ListSearches returns all saved searches for a user.
	ListSearches(ctx context.Context, userID string) ([]domain.HousingSearch, error)
}

// IngestService defines batch listing ingestion.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type IngestService interface {
	// IngestBatch upserts a scraped result batch into the catalog and
	// reconciles the originating search's watches.
	IngestBatch(ctx context.Context, searchID string, snaps []domain.PostSnapshot, observedAt time.Time) (*services.IngestSummary, error)
}

// SearchAdminService defines the destructive search operations that cascade
// into watches.
type SearchAdminService interface {
	// DeleteSearch removes a search and its watches, returning how many
	// watches were cascaded.
	DeleteSearch(ctx context.Context, searchID string) (int64, error)
}

// NotificationService defines pending-notification collection and delivery
// confirmation.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type NotificationService interface {
	// CollectPendingNotifications returns the ordered per-user groups due
	// for delivery.
	CollectPendingNotifications(ctx context.Context) ([]services.NotificationGroup, error)
	// ConfirmDelivered marks delivered notifications on their watches.
	ConfirmDelivered(ctx context.Context, notifiedAt time.Time, pairs []services.ConfirmPair) (*services.ConfirmSummary, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for users, searches, ingest, and
// notifications. It depends on abstract service interfaces to keep transport
// concerns separate from business logic. The raw DB handle is used only for
// read-side extras (catalog browsing, ingest receipts, health stats).
type Handlers struct {
	accounts AccountService
	ingest   IngestService
	admin    SearchAdminService
	notify   NotificationService

	db         *gorm.DB
	receiptTTL time.Duration
}

// New constructs a Handlers instance bound to the given services.
//
// receiptTTL bounds how long ingest receipts answer idempotent replays;
// values <= 0 default to 24h.
func New(accounts AccountService, ingest IngestService, admin SearchAdminService, notify NotificationService, db *gorm.DB, receiptTTL time.Duration) *Handlers {
	if receiptTTL <= 0 {
		receiptTTL = 24 * time.Hour
	}
	return &Handlers{
		accounts:   accounts,
		ingest:     ingest,
		admin:      admin,
		notify:     notify,
		db:         db,
		receiptTTL: receiptTTL,
	}
}

//
// Shared DTOs and helpers
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}
