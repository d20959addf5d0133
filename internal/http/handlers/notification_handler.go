// Notification HTTP handlers.
//
// This file exposes the notification batching endpoints the bot gateway
// polls:
//   - GET  /notifications/pending  (ordered per-user groups due for delivery)
//   - POST /notifications/confirm  (mark delivered notifications)
//
// Collection never mutates state; only an explicit confirmation advances the
// underlying watches, so a crashed gateway re-polls the exact same batch.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/quieromudarme/go-housing-backend/internal/services"
)

// PendingNotificationsResponse wraps the ordered groups due for delivery.
type PendingNotificationsResponse struct {
	Groups []services.NotificationGroup `json:"groups"`
	// Users is the number of groups, i.e. distinct users with something to
	// be told.
	Users int `json:"users"`
}

// ConfirmDeliveredRequest is the JSON payload for confirming deliveries.
type ConfirmDeliveredRequest struct {
	// NotifiedAt is when the gateway actually delivered; defaults to now.
	NotifiedAt *time.Time `json:"notified_at,omitempty"`
	// Deliveries pairs each delivered watch with the revision the user was
	// shown.
	Deliveries []services.ConfirmPair `json:"deliveries" binding:"required,min=1,dive"`
}

// PendingNotifications godoc
// @ID          pendingNotifications
// @Summary     Collect pending notifications
// @Description Returns everything users should be told about, grouped per user. Premium users come first, then older accounts. Collection is read-only and repeatable until confirmed.
// @Tags        Notifications
// @Produce     json
//
// @Success     200  {object}  handlers.PendingNotificationsResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /notifications/pending [get]
func (h *Handlers) PendingNotifications(c *gin.Context) {
	groups, err := h.notify.CollectPendingNotifications(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, PendingNotificationsResponse{Groups: groups, Users: len(groups)})
}

// ConfirmDelivered godoc
// @ID          confirmDelivered
// @Summary     Confirm delivered notifications
// @Description Advances each delivered watch to the confirmed revision. Confirmation is idempotent per (watch, revision); watches removed by a concurrent search deletion are counted as missing, not errors.
// @Tags        Notifications
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.ConfirmDeliveredRequest  true  "Delivered pairs"
//
// @Success     200  {object}  services.ConfirmSummary
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid payload"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /notifications/confirm [post]
func (h *Handlers) ConfirmDelivered(c *gin.Context) {
	var req ConfirmDeliveredRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "deliveries with watch_id and revision_id are required")
		return
	}

	notifiedAt := time.Now().UTC()
	if req.NotifiedAt != nil {
		notifiedAt = req.NotifiedAt.UTC()
	}

	sum, err := h.notify.ConfirmDelivered(c.Request.Context(), notifiedAt, req.Deliveries)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, sum)
}
