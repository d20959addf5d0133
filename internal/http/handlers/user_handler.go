// User HTTP handlers.
//
// This file exposes REST endpoints for user accounts:
//   - POST /users/contact     (register or refresh a telegram contact)
//   - PUT  /users/{id}/tier   (switch between free and premium)
//
// Registration is an upsert: the bot gateway posts the contact on every
// /start, and an existing account simply gets its username refreshed.
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/quieromudarme/go-housing-backend/internal/domain"
	"github.com/quieromudarme/go-housing-backend/internal/services"
)

// RegisterContactRequest is the JSON payload for registering a user contact.
type RegisterContactRequest struct {
	// TelegramID is the stable numeric identity of the telegram account.
	TelegramID int64 `json:"telegram_id" binding:"required" example:"123456789"`
	// Username is the optional telegram @handle, without the "@".
	Username string `json:"username" example:"mudanza_fan"`
}

// ChangeTierRequest is the JSON payload for switching a user's tier.
type ChangeTierRequest struct {
	Tier string `json:"tier" binding:"required,oneof=free premium" example:"premium"`
}

// RegisterContact godoc
// @ID          registerContact
// @Summary     Register or refresh a user contact
// @Description Upserts a user by telegram id. Existing accounts get their username refreshed; registration is idempotent.
// @Tags        Users
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.RegisterContactRequest  true  "Contact payload"
//
// @Success     200  {object}  domain.User
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid payload"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /users/contact [post]
func (h *Handlers) RegisterContact(c *gin.Context) {
	var req RegisterContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "telegram_id required")
		return
	}

	u, err := h.accounts.RegisterContact(c.Request.Context(), req.TelegramID, strings.TrimSpace(req.Username))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, u)
}

// ChangeTier godoc
// @ID          changeTier
// @Summary     Change a user's tier
// @Description Switches a user between the free and premium tiers. Tier affects notification ordering and the optional saved-search cap.
// @Tags        Users
// @Accept      json
// @Produce     json
//
// @Param       id    path  string  true  "User ID (UUID)"  format(uuid)
// @Param       body  body  handlers.ChangeTierRequest  true  "New tier"
//
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid tier"
// @Failure     404  {object}  handlers.ErrorResponse  "User not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /users/{id}/tier [put]
func (h *Handlers) ChangeTier(c *gin.Context) {
	userID := c.Param("id")
	if _, err := uuid.Parse(userID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user id must be a UUID")
		return
	}

	var req ChangeTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "tier must be free or premium")
		return
	}

	err := h.accounts.ChangeTier(c.Request.Context(), userID, domain.Tier(req.Tier))
	switch {
	case err == nil:
		noContent(c)
	case errors.Is(err, services.ErrInvalidTier):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "tier must be free or premium")
	case errors.Is(err, services.ErrUserNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "user not found")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}
