package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/talentbridge-io/talentbridge/internal/auth"
	"github.com/talentbridge-io/talentbridge/internal/models"
)

const notificationPageSize = 100

// ListNotifications lists the caller's notifications, newest first
// @Summary      List Notifications
// @Description  Lists notifications addressed to the caller, newest first
// @Id           ListNotifications
// @Tags         Notifications
// @Accept       json
// @Produce      json
// @Success      200  {object}  []models.Notification
// @Failure      401  {object}  models.BaseError
// @Failure      403  {object}  models.NotAllowedError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/notifications [get]
func (api *API) ListNotifications(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "ListNotifications")
	defer span.End()

	actor := api.CurrentActor(c)
	switch actor.Kind {
	case auth.KindProfessional:
		items, err := api.notifier.ListForUser(ctx, actor.Candidate.ID, notificationPageSize)
		if err != nil {
			api.SendInternalServerError(c, err)
			return
		}
		c.JSON(http.StatusOK, items)
	case auth.KindSponsor:
		items, err := api.notifier.ListForUser(ctx, actor.Sponsor.ID, notificationPageSize)
		if err != nil {
			api.SendInternalServerError(c, err)
			return
		}
		c.JSON(http.StatusOK, items)
	default:
		c.JSON(http.StatusForbidden, models.NewNotAllowedError("no notification inbox for this account kind"))
	}
}
