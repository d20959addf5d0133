// Package domain defines the core persistence models for the application.
// These types are used by GORM for database schema mapping and are shared
// across the repository and service layers.
package domain

import "time"

// IngestReceipt records the outcome of a previously processed ingest batch,
// keyed by (search_id, key). The external scraper retries whole batches on
// network failures; replaying a key returns the originally produced summary
// without re-executing the upserts.
type IngestReceipt struct {
	ID           string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	SearchID     string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_receipt_search_key,priority:1"`
	Key          string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_receipt_search_key,priority:2"`
	Ingested     int       `gorm:"type:INTEGER NOT NULL"`
	NewHousings  int       `gorm:"type:INTEGER NOT NULL"`
	NewRevisions int       `gorm:"type:INTEGER NOT NULL"`
	Invalid      int       `gorm:"type:INTEGER NOT NULL"`
	Failed       int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt    time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt    time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (IngestReceipt) TableName() string { return "ingest_receipts" }
