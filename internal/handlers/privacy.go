package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/talentbridge-io/talentbridge/internal/models"
)

// BlockOrganization blocks an organization from seeing the caller's profile
// @Summary      Block an Organization
// @Description  Appends a block event for the acting candidate against the organization. The block overrides every other visibility rule, including accepted introductions. Blocking an already blocked organization is a no-op.
// @Id           BlockOrganization
// @Tags         Privacy
// @Accept       json
// @Produce      json
// @Param        Block  body     models.UpdateFirewall  true  "Organization to block"
// @Success      201  {object}  models.PrivacyFirewallEvent
// @Failure      400  {object}  models.ValidationError
// @Failure      401  {object}  models.BaseError
// @Failure      403  {object}  models.NotAllowedError
// @Failure      404  {object}  models.NotFoundError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/privacy/block [post]
func (api *API) BlockOrganization(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "BlockOrganization")
	defer span.End()

	candidate, ok := api.CurrentCandidate(c)
	if !ok {
		return
	}

	orgID, ok := api.bindFirewallTarget(c)
	if !ok {
		return
	}

	event, err := api.firewall.Block(ctx, candidate.ID, orgID)
	if err != nil {
		api.SendInternalServerError(c, err)
		return
	}
	c.JSON(http.StatusCreated, event)
}

// UnblockOrganization lifts a block on an organization
// @Summary      Unblock an Organization
// @Description  Appends an unblock event for the acting candidate against the organization. Visibility reverts to the privacy settings and relationship that existed before the block.
// @Id           UnblockOrganization
// @Tags         Privacy
// @Accept       json
// @Produce      json
// @Param        Unblock  body     models.UpdateFirewall  true  "Organization to unblock"
// @Success      201  {object}  models.PrivacyFirewallEvent
// @Failure      400  {object}  models.ValidationError
// @Failure      401  {object}  models.BaseError
// @Failure      403  {object}  models.NotAllowedError
// @Failure      404  {object}  models.NotFoundError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/privacy/unblock [post]
func (api *API) UnblockOrganization(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "UnblockOrganization")
	defer span.End()

	candidate, ok := api.CurrentCandidate(c)
	if !ok {
		return
	}

	orgID, ok := api.bindFirewallTarget(c)
	if !ok {
		return
	}

	event, err := api.firewall.Unblock(ctx, candidate.ID, orgID)
	if err != nil {
		api.SendInternalServerError(c, err)
		return
	}
	c.JSON(http.StatusCreated, event)
}

func (api *API) bindFirewallTarget(c *gin.Context) (uuid.UUID, bool) {
	var request models.UpdateFirewall
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, models.NewBadPayloadError())
		return uuid.Nil, false
	}
	if request.OrganizationID == uuid.Nil {
		c.JSON(http.StatusBadRequest, models.NewFieldNotPresentError("organization_id"))
		return uuid.Nil, false
	}

	var org models.Organization
	if res := api.db.WithContext(c.Request.Context()).First(&org, "id = ?", request.OrganizationID); res.Error != nil {
		c.JSON(http.StatusNotFound, models.NewNotFoundError("organization"))
		return uuid.Nil, false
	}
	return request.OrganizationID, true
}

// GetPrivacyStatus summarizes the caller's privacy firewall
// @Summary      Get Privacy Status
// @Description  Returns the number of organizations the acting candidate currently blocks and the most recent firewall event
// @Id           GetPrivacyStatus
// @Tags         Privacy
// @Accept       json
// @Produce      json
// @Success      200  {object}  models.FirewallStatus
// @Failure      401  {object}  models.BaseError
// @Failure      403  {object}  models.NotAllowedError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/privacy/status [get]
func (api *API) GetPrivacyStatus(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "GetPrivacyStatus")
	defer span.End()

	candidate, ok := api.CurrentCandidate(c)
	if !ok {
		return
	}

	status, err := api.firewall.Status(ctx, candidate.ID)
	if err != nil {
		api.SendInternalServerError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}
