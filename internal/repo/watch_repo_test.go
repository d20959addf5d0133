package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quieromudarme/go-housing-backend/internal/domain"
)

func TestCreateWatch_ExclusivityAcrossSearches(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	u := seedUser(t, db, 1)
	s1 := seedSearch(t, db, u.ID, "https://example.com/a")
	s2 := seedSearch(t, db, u.ID, "https://example.com/b")
	h := seedHousing(t, db, "p1", 1000)
	cur, _ := CurrentRevision(ctx, db, h.ID)

	if _, err := CreateWatch(ctx, db, s1.ID, u.ID, h.ID, cur.ID, nil); err != nil {
		t.Fatalf("first watch: %v", err)
	}
	// Same user, different search, same housing: the unique index must trip.
	if _, err := CreateWatch(ctx, db, s2.ID, u.ID, h.ID, cur.ID, nil); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	// A different user may watch the same housing.
	u2 := seedUser(t, db, 2)
	s3 := seedSearch(t, db, u2.ID, "https://example.com/a")
	if _, err := CreateWatch(ctx, db, s3.ID, u2.ID, h.ID, cur.ID, nil); err != nil {
		t.Fatalf("other user's watch: %v", err)
	}
}

func TestGetWatchForUserHousing_IgnoresOwningSearch(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	u := seedUser(t, db, 1)
	s := seedSearch(t, db, u.ID, "https://example.com/a")
	h := seedHousing(t, db, "p1", 1000)
	cur, _ := CurrentRevision(ctx, db, h.ID)
	w, err := CreateWatch(ctx, db, s.ID, u.ID, h.ID, cur.ID, nil)
	if err != nil {
		t.Fatalf("create watch: %v", err)
	}

	got, err := GetWatchForUserHousing(ctx, db, u.ID, h.ID)
	if err != nil {
		t.Fatalf("GetWatchForUserHousing: %v", err)
	}
	if got.ID != w.ID || got.SearchID != s.ID {
		t.Fatalf("wrong watch: %+v", got)
	}

	if _, err := GetWatchForUserHousing(ctx, db, u.ID, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAdvanceWatch_IdempotentAndMissing(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	u := seedUser(t, db, 1)
	s := seedSearch(t, db, u.ID, "https://example.com/a")
	h := seedHousing(t, db, "p1", 1000)
	cur, _ := CurrentRevision(ctx, db, h.ID)
	w, _ := CreateWatch(ctx, db, s.ID, u.ID, h.ID, cur.ID, nil)

	next, err := AddRevision(ctx, db, h.ID, decimal.NewFromInt(900), domain.CurrencyARS)
	if err != nil {
		t.Fatalf("AddRevision: %v", err)
	}

	at := time.Now().UTC()
	rows, err := AdvanceWatch(ctx, db, w.ID, next.ID, at)
	if err != nil || rows != 1 {
		t.Fatalf("AdvanceWatch = %d, %v", rows, err)
	}
	// Re-confirming the same pair rewrites identical values without error.
	rows, err = AdvanceWatch(ctx, db, w.ID, next.ID, at)
	if err != nil || rows != 1 {
		t.Fatalf("repeat AdvanceWatch = %d, %v", rows, err)
	}

	got, _ := GetWatchForUserHousing(ctx, db, u.ID, h.ID)
	if got.HousingRevisionID != next.ID || !got.Notified() {
		t.Fatalf("watch not advanced: %+v", got)
	}

	rows, err = AdvanceWatch(ctx, db, "missing", next.ID, at)
	if err != nil || rows != 0 {
		t.Fatalf("missing watch should report 0 rows, got %d, %v", rows, err)
	}
}

func TestListStaleWatches(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	u := seedUser(t, db, 1)
	s := seedSearch(t, db, u.ID, "https://example.com/a")

	fresh := seedHousing(t, db, "fresh", 1000)
	stale := seedHousing(t, db, "stale", 1000)
	curFresh, _ := CurrentRevision(ctx, db, fresh.ID)
	curStale, _ := CurrentRevision(ctx, db, stale.ID)

	if _, err := CreateWatch(ctx, db, s.ID, u.ID, fresh.ID, curFresh.ID, nil); err != nil {
		t.Fatalf("watch fresh: %v", err)
	}
	wStale, err := CreateWatch(ctx, db, s.ID, u.ID, stale.ID, curStale.ID, nil)
	if err != nil {
		t.Fatalf("watch stale: %v", err)
	}
	if _, err := AddRevision(ctx, db, stale.ID, decimal.NewFromInt(900), domain.CurrencyARS); err != nil {
		t.Fatalf("AddRevision: %v", err)
	}

	got, err := ListStaleWatches(ctx, db)
	if err != nil {
		t.Fatalf("ListStaleWatches: %v", err)
	}
	if len(got) != 1 || got[0].ID != wStale.ID {
		t.Fatalf("expected exactly the stale watch, got %+v", got)
	}
	// Preloads used by the notification batcher.
	if got[0].Search.ID != s.ID || got[0].Search.User.ID != u.ID {
		t.Fatalf("search/user not preloaded: %+v", got[0].Search)
	}
	if got[0].Housing.ID != stale.ID || got[0].Revision.ID != curStale.ID {
		t.Fatalf("housing/revision not preloaded")
	}
}

func TestDeleteWatchesBySearch_ScopedToOneSearch(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	u := seedUser(t, db, 1)
	s1 := seedSearch(t, db, u.ID, "https://example.com/a")
	s2 := seedSearch(t, db, u.ID, "https://example.com/b")
	h1 := seedHousing(t, db, "p1", 1000)
	h2 := seedHousing(t, db, "p2", 1000)
	c1, _ := CurrentRevision(ctx, db, h1.ID)
	c2, _ := CurrentRevision(ctx, db, h2.ID)

	if _, err := CreateWatch(ctx, db, s1.ID, u.ID, h1.ID, c1.ID, nil); err != nil {
		t.Fatalf("watch s1: %v", err)
	}
	if _, err := CreateWatch(ctx, db, s2.ID, u.ID, h2.ID, c2.ID, nil); err != nil {
		t.Fatalf("watch s2: %v", err)
	}

	rows, err := DeleteWatchesBySearch(ctx, db, s1.ID)
	if err != nil || rows != 1 {
		t.Fatalf("DeleteWatchesBySearch = %d, %v", rows, err)
	}
	if n, _ := CountWatchesBySearch(ctx, db, s1.ID); n != 0 {
		t.Fatalf("s1 watches should be gone, got %d", n)
	}
	if n, _ := CountWatchesBySearch(ctx, db, s2.ID); n != 1 {
		t.Fatalf("s2 watches must survive, got %d", n)
	}
}
