package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/quieromudarme/go-housing-backend/internal/domain"
	"github.com/quieromudarme/go-housing-backend/internal/repo"
)

func TestListHousings_PaginatesCatalog(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newHandlersDB(t)
	h := newTestHandlers(db)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		snap := domain.PostSnapshot{
			Provider: domain.ProviderZonaProp,
			PostID:   fmt.Sprintf("p%d", i),
			URL:      fmt.Sprintf("https://x.test/p%d", i),
			Title:    fmt.Sprintf("Listing %d", i),
			Price:    decimal.NewFromInt(1000),
			Currency: domain.CurrencyARS,
		}
		if _, err := repo.CreateHousing(ctx, db, &snap); err != nil {
			t.Fatalf("seed housing %d: %v", i, err)
		}
	}

	r := gin.New()
	r.GET("/housings", h.ListHousings)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/housings?page=1&page_size=2", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list -> %d body=%s", w.Code, w.Body.String())
	}

	var out ListHousingsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(out.Housings) != 2 {
		t.Fatalf("page size 2, got %d housings", len(out.Housings))
	}
	p := out.Pagination
	if p.Total != 5 || p.TotalPages != 3 || !p.HasNext || p.Page != 1 || p.PageSize != 2 {
		t.Fatalf("unexpected pagination: %+v", p)
	}

	// Last page has no next.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/housings?page=3&page_size=2", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("last page -> %d", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(out.Housings) != 1 || out.Pagination.HasNext {
		t.Fatalf("last page unexpected: %d housings, has_next=%v", len(out.Housings), out.Pagination.HasNext)
	}
}
