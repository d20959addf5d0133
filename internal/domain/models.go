// Package domain defines the persistence models for users, saved housing
// searches, listings ("housings"), their immutable price revisions, and the
// per-user watches that drive notifications. These types are mapped with GORM
// and form the core data layer of the housing-alert backend.
package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Store-boundary invariants. These are returned by GORM hooks so that the
// rules hold even for callers that bypass the service layer.
var (
	// ErrRevisionImmutable is returned on any attempt to update or delete a
	// HousingRevision. Revisions are append-only history.
	ErrRevisionImmutable = errors.New("housing revision is immutable")

	// ErrUserUndeletable is returned on any attempt to delete a User. The
	// user record model is append-only: tier and username may change, but
	// the row never goes away.
	ErrUserUndeletable = errors.New("user records cannot be deleted")
)

// Tier is a user's subscription level. It controls notification batch
// priority (premium groups are delivered first).
type Tier string

// Supported subscription tiers.
const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// Provider identifies the external listing source a search or housing
// belongs to.
type Provider string

// Known listing providers.
const (
	ProviderZonaProp     Provider = "ZonaProp"
	ProviderMercadoLibre Provider = "MercadoLibre"
	ProviderAirbnb       Provider = "Airbnb"
)

// Currency is an ISO-4217 currency code carried by revisions.
type Currency string

// Supported price currencies.
const (
	CurrencyUSD Currency = "USD"
	CurrencyARS Currency = "ARS"
	CurrencyEUR Currency = "EUR"
)

// User represents one end user, keyed by their messaging-account identity.
// Users are created on first contact from the messaging gateway and can
// never be hard-deleted.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - TelegramID: unique external messaging-account identifier.
//   - TelegramUsername: optional display handle; unique when present.
//   - Tier: subscription tier ("free" or "premium").
//   - CreatedAt / UpdatedAt: timestamps managed by GORM. CreatedAt doubles
//     as the fairness key inside a notification tier (older users first).
type User struct {
	ID               string    `json:"id"                gorm:"type:char(36);primaryKey"`
	TelegramID       int64     `json:"telegram_id"       gorm:"not null;uniqueIndex:ux_users_telegram_id"`
	TelegramUsername *string   `json:"telegram_username" gorm:"type:varchar(64);uniqueIndex:ux_users_telegram_username"`
	Tier             Tier      `json:"tier"              gorm:"type:varchar(16);not null;default:'free';check:tier IN ('free','premium')"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// BeforeDelete blocks deletion unconditionally. See ErrUserUndeletable.
func (User) BeforeDelete(*gorm.DB) error { return ErrUserUndeletable }

// IsPremium reports whether the user is on the premium tier.
func (u *User) IsPremium() bool { return u.Tier == TierPremium }

// HousingSearch is a user's saved query against one provider. Searches are
// matched periodically by the external scraper; each completed scrape feeds
// the ingest path with the listings it currently returns.
//
// Uniqueness: a user cannot save the same (provider, url) twice.
// Deleting a search cascades to the watches it owns.
type HousingSearch struct {
	ID           string         `json:"id"             gorm:"type:char(36);primaryKey"`
	UserID       string         `json:"user_id"        gorm:"type:char(36);not null;index;uniqueIndex:ux_searches_user_provider_url,priority:1"`
	Provider     Provider       `json:"provider"       gorm:"type:varchar(32);not null;uniqueIndex:ux_searches_user_provider_url,priority:2;check:provider IN ('ZonaProp','MercadoLibre','Airbnb')"`
	URL          string         `json:"url"            gorm:"type:varchar(2048);not null;uniqueIndex:ux_searches_user_provider_url,priority:3"`
	Payload      datatypes.JSON `json:"payload"        gorm:"type:jsonb"`
	LastSearchAt *time.Time     `json:"last_search_at"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`

	// User is the owning account. Users are undeletable, so the restrict
	// constraint is never exercised in practice.
	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName returns the database table name for HousingSearch.
func (HousingSearch) TableName() string { return "housing_searches" }

// Housing is one listing from one provider, identified by the provider's own
// post id. The row carries denormalized display fields refreshed on every
// ingest; price/currency history lives in HousingRevision rows. Housings are
// created and updated only by the ingest path and never deleted.
type Housing struct {
	ID            string         `json:"id"             gorm:"type:char(36);primaryKey"`
	Provider      Provider       `json:"provider"       gorm:"type:varchar(32);not null;uniqueIndex:ux_housings_provider_post,priority:1"`
	PostID        string         `json:"post_id"        gorm:"type:varchar(128);not null;uniqueIndex:ux_housings_provider_post,priority:2"`
	URL           string         `json:"url"            gorm:"type:varchar(2048);not null"`
	Title         string         `json:"title"          gorm:"type:varchar(512);not null"`
	MainImageURL  string         `json:"main_image_url" gorm:"type:varchar(2048)"`
	WhatsappPhone string         `json:"whatsapp_phone" gorm:"type:varchar(32)"`
	PublisherID   string         `json:"publisher_id"   gorm:"type:varchar(128)"`
	ModifiedAt    *time.Time     `json:"modified_at"`
	Raw           datatypes.JSON `json:"raw"            gorm:"type:jsonb"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`

	// Revisions is the append-only price history. Never empty for a
	// persisted row: creation always writes the initial revision in the
	// same transaction.
	Revisions []HousingRevision `json:"-" gorm:"foreignKey:HousingID;references:ID"`
}

// TableName returns the database table name for Housing.
func (Housing) TableName() string { return "housings" }

// HousingRevision is an immutable snapshot of (price, currency) for one
// housing at one point in time. The integer primary key is assigned by the
// database in insertion order and breaks creation-timestamp ties, so the
// "current" revision of a housing is never ambiguous.
type HousingRevision struct {
	ID        uint64          `json:"id"         gorm:"primaryKey;autoIncrement"`
	HousingID string          `json:"housing_id" gorm:"type:char(36);not null;index"`
	Price     decimal.Decimal `json:"price"      gorm:"type:decimal(16,2);not null"`
	Currency  Currency        `json:"currency"   gorm:"type:varchar(8);not null;check:currency IN ('USD','ARS','EUR')"`
	CreatedAt time.Time       `json:"created_at" gorm:"index"`

	// Housing is the owning listing; a revision without one is an
	// integrity violation.
	Housing Housing `json:"-" gorm:"foreignKey:HousingID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName returns the database table name for HousingRevision.
func (HousingRevision) TableName() string { return "housing_revisions" }

// BeforeUpdate blocks any mutation of a persisted revision.
func (HousingRevision) BeforeUpdate(*gorm.DB) error { return ErrRevisionImmutable }

// BeforeDelete blocks deletion of a persisted revision.
func (HousingRevision) BeforeDelete(*gorm.DB) error { return ErrRevisionImmutable }

// Unpublished reports whether this revision represents a delisted state
// (providers signal it with a zero price).
func (r *HousingRevision) Unpublished() bool { return r.Price.IsZero() }

// HousingWatch records that a user tracks one housing through one of their
// searches, pinned at the revision they were last notified about (or the
// revision current at discovery time). A watch whose pinned revision is older
// than the housing's current revision is "stale" and due for notification.
//
// UserID is written once from the owning search at insert time and backs the
// (user_id, housing_id) unique index: a user watches a given housing at most
// once, no matter how many of their searches match it. Searches never change
// owner, so the column cannot drift from Search.UserID.
type HousingWatch struct {
	ID                string     `json:"id"                  gorm:"type:char(36);primaryKey"`
	SearchID          string     `json:"search_id"           gorm:"type:char(36);not null;index"`
	UserID            string     `json:"user_id"             gorm:"type:char(36);not null;uniqueIndex:ux_watches_user_housing,priority:1"`
	HousingID         string     `json:"housing_id"          gorm:"type:char(36);not null;index;uniqueIndex:ux_watches_user_housing,priority:2"`
	HousingRevisionID uint64     `json:"housing_revision_id" gorm:"not null"`
	NotifiedAt        *time.Time `json:"notified_at"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`

	// Search is the owning saved query. Deleting it cascades to its watches;
	// that is the only path that ever removes a watch.
	Search HousingSearch `json:"-" gorm:"foreignKey:SearchID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`

	// Housing is the watched listing.
	Housing Housing `json:"-" gorm:"foreignKey:HousingID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`

	// Revision is the price state the user last saw.
	Revision HousingRevision `json:"-" gorm:"foreignKey:HousingRevisionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName returns the database table name for HousingWatch.
func (HousingWatch) TableName() string { return "housing_watches" }

// Notified reports whether the user has been notified about the pinned
// revision.
func (w *HousingWatch) Notified() bool { return w.NotifiedAt != nil }
