// Package services defines the business logic for the housing-alert core:
// listing ingestion and revisioning, watch reconciliation, notification
// batching, and user/search lifecycle. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// The sentinels implement the core's error taxonomy:
//
//   - validation:   ErrInvalidSnapshot: malformed ingest input, rejected
//     before any write.
//   - conflict:     ErrWatchConflict, ErrDuplicateSearch: a uniqueness or
//     exclusivity rule tripped on a concurrent write; callers retry as an
//     update or surface the collision.
//   - immutability: ErrRevisionImmutable, ErrUserUndeletable: the mutation
//     is permanently forbidden and must never be retried.
//   - not found:    ErrUserNotFound, ErrSearchNotFound, ErrHousingNotFound:
//     a referenced id vanished; batch operations skip and count these.
//   - cascade:      ErrCascadeFailed: a referential cascade could not
//     complete and was rolled back rather than partially applied.
//
// Translation into HTTP status codes is performed at the handler layer.
package services

import (
	"errors"

	"github.com/quieromudarme/go-housing-backend/internal/domain"
)

var (
	// ErrInvalidSnapshot is returned when an ingested listing snapshot fails
	// validation. Nothing is written in that case.
	ErrInvalidSnapshot = errors.New("invalid listing snapshot")

	// ErrWatchConflict indicates that a user already watches a housing when a
	// second watch insert was attempted. Reconciliation converts it into the
	// update path; other callers surface it.
	ErrWatchConflict = errors.New("housing already watched by this user")

	// ErrDuplicateSearch is returned when a user saves a search whose
	// (provider, url) pair they already have.
	ErrDuplicateSearch = errors.New("search already exists")

	// ErrSearchLimit is returned when the free-tier search cap is enforced
	// and a free user is at their limit.
	ErrSearchLimit = errors.New("free tier search limit reached")

	// ErrUserNotFound indicates the referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrSearchNotFound indicates the referenced search does not exist
	// (possibly deleted concurrently).
	ErrSearchNotFound = errors.New("search not found")

	// ErrHousingNotFound indicates the referenced housing does not exist.
	ErrHousingNotFound = errors.New("housing not found")

	// ErrCascadeFailed indicates a search-deletion cascade could not
	// complete; the whole deletion was rolled back.
	ErrCascadeFailed = errors.New("cascade delete failed")

	// ErrRevisionImmutable re-exports the store-boundary rule that revisions
	// can never be updated or deleted.
	ErrRevisionImmutable = domain.ErrRevisionImmutable

	// ErrUserUndeletable re-exports the store-boundary rule that user rows
	// can never be deleted.
	ErrUserUndeletable = domain.ErrUserUndeletable

	// ErrInvalidTier is returned when a tier change names an unknown tier.
	ErrInvalidTier = errors.New("tier must be free or premium")
)
