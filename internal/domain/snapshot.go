// Package domain – PostSnapshot
//
// This file defines the ingest DTO produced by the external scraping
// collaborator: one decoded listing as a provider currently shows it. A
// snapshot is validated and normalized before any write happens; a snapshot
// that fails validation is rejected outright and never touches the store.
package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// snapshotValidator is shared; validator.Validate is safe for concurrent use.
var snapshotValidator = validator.New(validator.WithRequiredStructEnabled())

// ErrNegativePrice rejects snapshots with a negative price. Zero is legal
// (unpublished), negative is always scraper garbage.
var ErrNegativePrice = errors.New("price must not be negative")

// PostSnapshot is one freshly scraped listing state. Price zero means the
// provider currently shows the post as unpublished.
type PostSnapshot struct {
	Provider      Provider        `json:"provider"       validate:"required,oneof=ZonaProp MercadoLibre Airbnb"`
	PostID        string          `json:"post_id"        validate:"required,max=128"`
	URL           string          `json:"url"            validate:"required,url,max=2048"`
	Title         string          `json:"title"          validate:"required,max=512"`
	Price         decimal.Decimal `json:"price"`
	Currency      Currency        `json:"currency"       validate:"required,oneof=USD ARS EUR"`
	MainImageURL  string          `json:"main_image_url" validate:"omitempty,url,max=2048"`
	WhatsappPhone string          `json:"whatsapp_phone" validate:"omitempty,max=32"`
	PublisherID   string          `json:"publisher_id"   validate:"omitempty,max=128"`
	ModifiedAt    *time.Time      `json:"modified_at"`
	Raw           json.RawMessage `json:"raw"`
}

// Validate checks required fields and value ranges. It must be called before
// any persistence; UpsertListing rejects snapshots that fail it.
func (s *PostSnapshot) Validate() error {
	if err := snapshotValidator.Struct(s); err != nil {
		return err
	}
	if s.Price.IsNegative() {
		return ErrNegativePrice
	}
	return nil
}

// Normalize canonicalizes free-form provider fields in place. Phone numbers
// arrive with spaces, dashes and leading "+"/zeros depending on the provider.
func (s *PostSnapshot) Normalize() {
	s.PostID = strings.TrimSpace(s.PostID)
	s.Title = strings.TrimSpace(s.Title)
	s.WhatsappPhone = NormalizePhone(s.WhatsappPhone)
}

// NormalizePhone strips separators and leading "+"/zero prefixes from a
// contact phone number. Returns "" when nothing usable remains.
func NormalizePhone(v string) string {
	v = strings.ReplaceAll(v, " ", "")
	v = strings.ReplaceAll(v, "-", "")
	v = strings.TrimLeft(v, "+0")
	return strings.TrimSpace(v)
}
