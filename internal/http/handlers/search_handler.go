// Saved-search HTTP handlers.
//
// This file exposes REST endpoints for saved searches:
//   - POST   /searches       (save a search for a user)
//   - GET    /searches       (list a user's searches)
//   - DELETE /searches/{id}  (delete a search; cascades into its watches)
//
// Deleting a search is the only cascading mutation in the API: the search's
// watches go with it, watches of the same housings held through other
// searches stay untouched.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/quieromudarme/go-housing-backend/internal/domain"
	"github.com/quieromudarme/go-housing-backend/internal/services"
)

// CreateSearchRequest is the JSON payload for saving a search.
type CreateSearchRequest struct {
	UserID   string `json:"user_id" binding:"required,uuid" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
	Provider string `json:"provider" binding:"required,oneof=ZonaProp MercadoLibre Airbnb" example:"ZonaProp"`
	// URL is the provider results page the scraper will poll.
	URL string `json:"url" binding:"required,url,max=2048" example:"https://www.zonaprop.com.ar/departamentos-alquiler-palermo.html"`
	// Payload carries provider-specific query parameters, stored verbatim.
	Payload json.RawMessage `json:"payload,omitempty" swaggertype:"object"`
}

// ListSearchesResponse wraps a user's saved searches.
type ListSearchesResponse struct {
	Searches []domain.HousingSearch `json:"searches"`
}

// DeleteSearchResponse reports a completed search deletion and its cascade.
type DeleteSearchResponse struct {
	// CascadedWatches is how many of the search's watches were removed
	// with it.
	CascadedWatches int64 `json:"cascaded_watches"`
}

// CreateSearch godoc
// @ID          createSearch
// @Summary     Save a search
// @Description Saves a provider search for a user. A user cannot save the same (provider, url) pair twice.
// @Tags        Searches
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.CreateSearchRequest  true  "Search payload"
//
// @Success     201  {object}  domain.HousingSearch
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid payload"
// @Failure     403  {object}  handlers.ErrorResponse  "Free tier search limit reached"
// @Failure     404  {object}  handlers.ErrorResponse  "User not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Search already exists"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /searches [post]
func (h *Handlers) CreateSearch(c *gin.Context) {
	var req CreateSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user_id, provider and url are required")
		return
	}

	s, err := h.accounts.CreateSearch(c.Request.Context(), req.UserID,
		domain.Provider(req.Provider), req.URL, datatypes.JSON(req.Payload))
	switch {
	case err == nil:
		ok(c, http.StatusCreated, s)
	case errors.Is(err, services.ErrUserNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "user not found")
	case errors.Is(err, services.ErrSearchLimit):
		fail(c, http.StatusForbidden, ErrCodeSearchLimit, "free tier search limit reached")
	case errors.Is(err, services.ErrDuplicateSearch):
		fail(c, http.StatusConflict, ErrCodeConflict, "search already exists")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
	}
}

// ListSearches godoc
// @ID          listSearches
// @Summary     List a user's saved searches
// @Tags        Searches
// @Produce     json
//
// @Param       user_id  query  string  true  "User ID (UUID)"  format(uuid)
//
// @Success     200  {object}  handlers.ListSearchesResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Missing or invalid user_id"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /searches [get]
func (h *Handlers) ListSearches(c *gin.Context) {
	userID := c.Query("user_id")
	if _, err := uuid.Parse(userID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user_id query parameter must be a UUID")
		return
	}

	items, err := h.accounts.ListSearches(c.Request.Context(), userID)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListSearchesResponse{Searches: items})
}

// DeleteSearch godoc
// @ID          deleteSearch
// @Summary     Delete a saved search
// @Description Removes the search and every watch it owns, atomically. Watches held through other searches are unaffected. The housing catalog is never touched.
// @Tags        Searches
// @Produce     json
//
// @Param       id  path  string  true  "Search ID (UUID)"  format(uuid)
//
// @Success     200  {object}  handlers.DeleteSearchResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid id"
// @Failure     404  {object}  handlers.ErrorResponse  "Search not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Cascade failed"
// @Router      /searches/{id} [delete]
func (h *Handlers) DeleteSearch(c *gin.Context) {
	searchID := c.Param("id")
	if _, err := uuid.Parse(searchID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "search id must be a UUID")
		return
	}

	cascaded, err := h.admin.DeleteSearch(c.Request.Context(), searchID)
	switch {
	case err == nil:
		ok(c, http.StatusOK, DeleteSearchResponse{CascadedWatches: cascaded})
	case errors.Is(err, services.ErrSearchNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "search not found")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}
