package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/talentbridge-io/talentbridge/internal/auth"
	"github.com/talentbridge-io/talentbridge/internal/models"
	"github.com/talentbridge-io/talentbridge/internal/visibility"
)

// GetCandidate fetches a candidate profile as seen by the caller
// @Summary      Get a Candidate
// @Description  Fetches a candidate profile projected through the caller's relationship and the candidate's privacy settings
// @Id           GetCandidate
// @Tags         Candidates
// @Accept       json
// @Produce      json
// @Param        candidate  path      string  true  "Candidate ID"
// @Success      200  {object}  visibility.CandidateView
// @Failure      400  {object}  models.ValidationError
// @Failure      401  {object}  models.BaseError
// @Failure      403  {object}  models.NotAllowedError
// @Failure      404  {object}  models.NotFoundError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/candidates/{candidate} [get]
func (api *API) GetCandidate(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "GetCandidate")
	defer span.End()

	k, err := uuid.Parse(c.Param("candidate"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.NewBadPathParameterError("candidate"))
		return
	}

	actor := api.CurrentActor(c)

	// Candidates read their own stored profile unredacted.
	if actor.Kind == auth.KindProfessional {
		if actor.Candidate.ID != k {
			c.JSON(http.StatusNotFound, models.NewNotFoundError("candidate"))
			return
		}
		var candidate models.Candidate
		if res := api.db.WithContext(ctx).First(&candidate, "id = ?", k); res.Error != nil {
			c.JSON(http.StatusNotFound, models.NewNotFoundError("candidate"))
			return
		}
		c.JSON(http.StatusOK, candidate)
		return
	}

	if actor.Kind != auth.KindSponsor && actor.Kind != auth.KindAdmin {
		c.JSON(http.StatusForbidden, models.NewNotAllowedError("unsupported account kind"))
		return
	}

	var candidate models.Candidate
	if res := api.db.WithContext(ctx).First(&candidate, "id = ?", k); res.Error != nil {
		c.JSON(http.StatusNotFound, models.NewNotFoundError("candidate"))
		return
	}

	if actor.Kind == auth.KindAdmin {
		c.JSON(http.StatusOK, candidate)
		return
	}

	orgID := actor.Sponsor.OrganizationID

	blockedOrgs, err := api.firewall.BlockedOrgs(ctx, candidate.ID)
	if err != nil {
		api.SendInternalServerError(c, err)
		return
	}
	blocked := blockedOrgs[orgID] || candidate.HiddenFrom(orgID)

	rel, err := api.relationship(ctx, api.db, candidate.ID, orgID)
	if err != nil {
		api.SendInternalServerError(c, err)
		return
	}

	view := visibility.Project(&candidate, orgID, rel, blocked)
	c.JSON(http.StatusOK, view)
}

// GetCurrentCandidate returns the caller's own profile
// @Summary      Get the current Candidate
// @Description  Returns the acting candidate's stored profile, unredacted
// @Id           GetCurrentCandidate
// @Tags         Candidates
// @Accept       json
// @Produce      json
// @Success      200  {object}  models.Candidate
// @Failure      401  {object}  models.BaseError
// @Failure      403  {object}  models.NotAllowedError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/candidates/me [get]
func (api *API) GetCurrentCandidate(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "GetCurrentCandidate")
	defer span.End()

	candidate, ok := api.CurrentCandidate(c)
	if !ok {
		return
	}

	var current models.Candidate
	if res := api.db.WithContext(ctx).First(&current, "id = ?", candidate.ID); res.Error != nil {
		api.SendInternalServerError(c, res.Error)
		return
	}
	c.JSON(http.StatusOK, current)
}

// UpdateCurrentCandidate patches the caller's profile and privacy settings
// @Summary      Update the current Candidate
// @Description  Applies a partial update to the acting candidate's profile and privacy settings. Omitted fields are left unchanged.
// @Id           UpdateCurrentCandidate
// @Tags         Candidates
// @Accept       json
// @Produce      json
// @Param        update  body      models.UpdateCandidate  true  "Candidate update"
// @Success      200  {object}  models.Candidate
// @Failure      400  {object}  models.ValidationError
// @Failure      401  {object}  models.BaseError
// @Failure      403  {object}  models.NotAllowedError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/candidates/me [patch]
func (api *API) UpdateCurrentCandidate(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "UpdateCurrentCandidate")
	defer span.End()

	candidate, ok := api.CurrentCandidate(c)
	if !ok {
		return
	}

	var request models.UpdateCandidate
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, models.NewBadPayloadError())
		return
	}

	if request.HideFromOrgIDs != nil {
		for _, id := range *request.HideFromOrgIDs {
			if _, err := uuid.Parse(id); err != nil {
				c.JSON(http.StatusBadRequest, models.NewFieldValidationError("hide_from_org_ids", "must contain organization ids"))
				return
			}
		}
	}

	updates := map[string]interface{}{}
	if request.Headline != nil {
		updates["headline"] = *request.Headline
	}
	if request.Employer != nil {
		updates["employer"] = *request.Employer
	}
	if request.Title != nil {
		updates["title"] = *request.Title
	}
	if request.Skills != nil {
		updates["skills"] = pq.StringArray(*request.Skills)
	}
	if request.ProfileURLs != nil {
		updates["profile_urls"] = pq.StringArray(*request.ProfileURLs)
	}
	if request.OpenToOpportunities != nil {
		updates["open_to_opportunities"] = *request.OpenToOpportunities
	}
	if request.ConfidentialSearch != nil {
		updates["confidential_search"] = *request.ConfidentialSearch
	}
	if request.HideFromOrgIDs != nil {
		updates["hide_from_org_ids"] = pq.StringArray(*request.HideFromOrgIDs)
	}

	var current models.Candidate
	if len(updates) > 0 {
		res := api.db.WithContext(ctx).Model(&models.Candidate{}).
			Where("id = ?", candidate.ID).
			Updates(updates)
		if res.Error != nil {
			api.SendInternalServerError(c, res.Error)
			return
		}
	}
	if res := api.db.WithContext(ctx).First(&current, "id = ?", candidate.ID); res.Error != nil {
		api.SendInternalServerError(c, res.Error)
		return
	}
	c.JSON(http.StatusOK, current)
}
