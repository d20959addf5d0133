package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quieromudarme/go-housing-backend/internal/domain"
	"github.com/quieromudarme/go-housing-backend/internal/repo"
)

func d(v string) decimal.Decimal   { return decimal.RequireFromString(v) }
func dint(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestShouldAddRevision_Policy(t *testing.T) {
	theta := DefaultPriceDropThreshold // 0.05

	cases := []struct {
		name     string
		old, new string
		oldCur   domain.Currency
		newCur   domain.Currency
		want     bool
	}{
		{"drop below threshold", "1000", "960", domain.CurrencyARS, domain.CurrencyARS, false},
		{"drop exactly at threshold", "1000", "950", domain.CurrencyARS, domain.CurrencyARS, true},
		{"drop beyond threshold", "1000", "940", domain.CurrencyARS, domain.CurrencyARS, true},
		{"one cent above threshold", "1000", "950.01", domain.CurrencyARS, domain.CurrencyARS, false},
		{"any increase", "1000", "1200", domain.CurrencyARS, domain.CurrencyARS, false},
		{"tiny increase", "1000", "1000.01", domain.CurrencyARS, domain.CurrencyARS, false},
		{"unchanged", "1000", "1000", domain.CurrencyARS, domain.CurrencyARS, false},
		{"unpublished", "500", "0", domain.CurrencyARS, domain.CurrencyARS, true},
		{"republished", "0", "500", domain.CurrencyARS, domain.CurrencyARS, true},
		{"still unpublished", "0", "0", domain.CurrencyARS, domain.CurrencyARS, false},
		{"currency change same amount", "1000", "1000", domain.CurrencyARS, domain.CurrencyUSD, true},
		{"currency change with increase", "1000", "1200", domain.CurrencyARS, domain.CurrencyUSD, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ShouldAddRevision(d(tc.old), d(tc.new), tc.oldCur, tc.newCur, theta)
			if got != tc.want {
				t.Fatalf("ShouldAddRevision(%s→%s %s→%s) = %v, want %v",
					tc.old, tc.new, tc.oldCur, tc.newCur, got, tc.want)
			}
		})
	}
}

func TestShouldAddRevision_ExactBoundaryNotFloat(t *testing.T) {
	// 0.95 * 1000 is not representable in binary floating point; the decimal
	// arithmetic must still treat 950 as exactly at the boundary.
	if !ShouldAddRevision(d("1000"), d("950"), domain.CurrencyARS, domain.CurrencyARS, d("0.05")) {
		t.Fatal("950 must be within the 5% drop boundary of 1000")
	}
	if ShouldAddRevision(d("1000"), d("950.000001"), domain.CurrencyARS, domain.CurrencyARS, d("0.05")) {
		t.Fatal("950.000001 must be outside the boundary")
	}
}

func TestUpsertListing_CreatesHousingWithInitialRevision(t *testing.T) {
	db := newServiceDB(t)
	svc := &CatalogService{DB: db}
	ctx := context.Background()

	snap := snapFor("p1", 1000)
	res, err := svc.UpsertListing(ctx, &snap)
	if err != nil {
		t.Fatalf("UpsertListing: %v", err)
	}
	if !res.IsNew || res.AddedRevision {
		t.Fatalf("first sight should create, not revise: %+v", res)
	}
	if n, _ := repo.CountRevisions(ctx, db, res.Housing.ID); n != 1 {
		t.Fatalf("expected 1 initial revision, got %d", n)
	}
}

func TestUpsertListing_RepeatedIdenticalIsNoOp(t *testing.T) {
	db := newServiceDB(t)
	svc := &CatalogService{DB: db}
	ctx := context.Background()

	var housingID string
	for i := 0; i < 5; i++ {
		snap := snapFor("p1", 1000)
		res, err := svc.UpsertListing(ctx, &snap)
		if err != nil {
			t.Fatalf("upsert %d: %v", i, err)
		}
		if housingID == "" {
			housingID = res.Housing.ID
		} else if res.Housing.ID != housingID {
			t.Fatalf("same post produced a second housing")
		}
	}

	if n, _ := repo.CountHousings(ctx, db); n != 1 {
		t.Fatalf("expected 1 housing after 5 identical ingests, got %d", n)
	}
	if n, _ := repo.CountRevisions(ctx, db, housingID); n != 1 {
		t.Fatalf("expected 1 revision after 5 identical ingests, got %d", n)
	}
}

func TestUpsertListing_RevisionPolicyOnUpdates(t *testing.T) {
	db := newServiceDB(t)
	svc := &CatalogService{DB: db}
	ctx := context.Background()

	first := snapFor("p1", 1000)
	res, err := svc.UpsertListing(ctx, &first)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	id := res.Housing.ID

	steps := []struct {
		price        int64
		wantRevision bool
	}{
		{960, false}, // 4% drop: noise
		{1200, false},
		{940, true}, // ≥5% drop from 1000
		{0, true},   // unpublished
		{500, true}, // republished
	}
	wantCount := int64(1)
	for _, st := range steps {
		snap := snapFor("p1", st.price)
		res, err := svc.UpsertListing(ctx, &snap)
		if err != nil {
			t.Fatalf("upsert price=%d: %v", st.price, err)
		}
		if res.AddedRevision != st.wantRevision {
			t.Fatalf("price=%d: AddedRevision=%v, want %v", st.price, res.AddedRevision, st.wantRevision)
		}
		if st.wantRevision {
			wantCount++
		}
		if n, _ := repo.CountRevisions(ctx, db, id); n != wantCount {
			t.Fatalf("price=%d: revision count %d, want %d", st.price, n, wantCount)
		}
	}

	cur, err := repo.CurrentRevision(ctx, db, id)
	if err != nil {
		t.Fatalf("CurrentRevision: %v", err)
	}
	if !cur.Price.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("current price %s, want 500", cur.Price)
	}
}

func TestUpsertListing_DisplayFieldsFollowLatestSnapshot(t *testing.T) {
	db := newServiceDB(t)
	svc := &CatalogService{DB: db}
	ctx := context.Background()

	first := snapFor("p1", 1000)
	res, _ := svc.UpsertListing(ctx, &first)

	second := snapFor("p1", 1000) // no revision due
	second.Title = "Rebranded headline"
	second.WhatsappPhone = "+54 11 5555-0000"
	if _, err := svc.UpsertListing(ctx, &second); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := repo.GetHousing(ctx, db, res.Housing.ID)
	if err != nil {
		t.Fatalf("GetHousing: %v", err)
	}
	if got.Title != "Rebranded headline" {
		t.Fatalf("title not refreshed: %q", got.Title)
	}
	if got.WhatsappPhone != "541155550000" {
		t.Fatalf("phone not normalized on the way in: %q", got.WhatsappPhone)
	}
}

func TestUpsertListing_RejectsInvalidBeforeWrite(t *testing.T) {
	db := newServiceDB(t)
	svc := &CatalogService{DB: db}
	ctx := context.Background()

	snap := snapFor("p1", 1000)
	snap.URL = "not a url"
	if _, err := svc.UpsertListing(ctx, &snap); !errors.Is(err, ErrInvalidSnapshot) {
		t.Fatalf("expected ErrInvalidSnapshot, got %v", err)
	}
	if n, _ := repo.CountHousings(ctx, db); n != 0 {
		t.Fatalf("invalid snapshot must not write, got %d housings", n)
	}

	neg := snapFor("p2", 0)
	neg.Price = decimal.NewFromInt(-10)
	if _, err := svc.UpsertListing(ctx, &neg); !errors.Is(err, ErrInvalidSnapshot) {
		t.Fatalf("expected ErrInvalidSnapshot for negative price, got %v", err)
	}
}

func TestIngestBatch_UnknownSearch(t *testing.T) {
	db := newServiceDB(t)
	svc := &CatalogService{DB: db}

	_, err := svc.IngestBatch(context.Background(), "missing", nil, time.Now().UTC())
	if !errors.Is(err, ErrSearchNotFound) {
		t.Fatalf("expected ErrSearchNotFound, got %v", err)
	}
}

func TestIngestBatch_CountsAndItemIsolation(t *testing.T) {
	db := newServiceDB(t)
	svc := &CatalogService{DB: db}
	ctx := context.Background()

	u := mkUser(t, db, 1)
	s := mkSearch(t, db, u.ID, "https://example.com/q")

	bad := snapFor("bad", 100)
	bad.Title = ""
	batch := []domain.PostSnapshot{snapFor("a", 100), bad, snapFor("b", 200)}

	sum, err := svc.IngestBatch(ctx, s.ID, batch, time.Now().UTC())
	if err != nil {
		t.Fatalf("IngestBatch: %v", err)
	}
	if sum.Ingested != 2 || sum.NewHousings != 2 || sum.Invalid != 1 || sum.Failed != 0 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	if !sum.AsNotified {
		t.Fatalf("first scrape must run as-notified")
	}
	if len(sum.HousingIDs) != 2 {
		t.Fatalf("expected 2 housing ids, got %d", len(sum.HousingIDs))
	}
}

func TestIngestBatch_BatchDedupe_LastWins(t *testing.T) {
	db := newServiceDB(t)
	svc := &CatalogService{DB: db}
	ctx := context.Background()

	u := mkUser(t, db, 1)
	s := mkSearch(t, db, u.ID, "https://example.com/q")

	early := snapFor("p1", 1000)
	late := snapFor("p1", 2000)
	late.Title = "Later page wins"

	sum, err := svc.IngestBatch(ctx, s.ID, []domain.PostSnapshot{early, late}, time.Now().UTC())
	if err != nil {
		t.Fatalf("IngestBatch: %v", err)
	}
	if sum.Ingested != 1 || sum.NewHousings != 1 {
		t.Fatalf("duplicate post ids must collapse: %+v", sum)
	}

	h, err := repo.GetHousingByKey(ctx, db, domain.ProviderZonaProp, "p1")
	if err != nil {
		t.Fatalf("GetHousingByKey: %v", err)
	}
	if h.Title != "Later page wins" {
		t.Fatalf("last occurrence must win, got %q", h.Title)
	}
	cur, _ := repo.CurrentRevision(ctx, db, h.ID)
	if !cur.Price.Equal(decimal.NewFromInt(2000)) {
		t.Fatalf("initial revision should carry the last price, got %s", cur.Price)
	}
}

func TestIngestBatch_SecondScrapeNotAsNotified(t *testing.T) {
	db := newServiceDB(t)
	watches := &WatchService{DB: db}
	svc := &CatalogService{DB: db, Watches: watches}
	ctx := context.Background()

	u := mkUser(t, db, 1)
	s := mkSearch(t, db, u.ID, "https://example.com/q")

	if _, err := svc.IngestBatch(ctx, s.ID, []domain.PostSnapshot{snapFor("p1", 1000)}, time.Now().UTC()); err != nil {
		t.Fatalf("first batch: %v", err)
	}
	sum, err := svc.IngestBatch(ctx, s.ID, []domain.PostSnapshot{snapFor("p1", 1000)}, time.Now().UTC())
	if err != nil {
		t.Fatalf("second batch: %v", err)
	}
	if sum.AsNotified {
		t.Fatalf("second scrape must not run as-notified")
	}
}

func TestCatalogService_ThresholdFallback(t *testing.T) {
	svc := &CatalogService{}
	if !svc.threshold().Equal(DefaultPriceDropThreshold) {
		t.Fatalf("zero threshold should fall back to default")
	}
	svc.Threshold = d("0.10")
	if !svc.threshold().Equal(d("0.10")) {
		t.Fatalf("explicit threshold ignored")
	}
}
