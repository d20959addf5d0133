// Housing catalog HTTP handlers.
//
// This file exposes read-only catalog browsing:
//   - GET /housings  (paginated listing inventory)
//
// The catalog is append-only from the API's point of view; nothing here
// mutates housings or revisions.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quieromudarme/go-housing-backend/internal/domain"
	"github.com/quieromudarme/go-housing-backend/internal/repo"
)

// ListHousingsResponse wraps a page of catalog housings with their revision
// history and pagination information.
type ListHousingsResponse struct {
	Housings   []domain.Housing `json:"housings"`
	Pagination Pagination       `json:"pagination"`
}

// ListHousings godoc
// @ID          listHousings
// @Summary     Browse the housing catalog (paginated)
// @Description Returns a page of tracked housings, each with its full revision history, newest housings first.
// @Tags        Housings
// @Produce     json
//
// @Param       page       query  int  false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int  false  "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.ListHousingsResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /housings [get]
func (h *Handlers) ListHousings(c *gin.Context) {
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)

	total, err := repo.CountHousings(ctx, h.db)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	items, err := repo.ListHousingsPage(ctx, h.db, (page-1)*pageSize, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListHousingsResponse{
		Housings: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}
