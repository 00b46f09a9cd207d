package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/talentbridge-io/talentbridge/internal/auth"
	"github.com/talentbridge-io/talentbridge/internal/models"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// CreateJobRole creates a new job role in DRAFT
// @Summary      Create a Job Role
// @Description  Creates a job role for the sponsor's organization. Roles always start in DRAFT.
// @Id           CreateJobRole
// @Tags         JobRoles
// @Accept       json
// @Produce      json
// @Param        JobRole  body     models.AddJobRole  true  "Add Job Role"
// @Success      201  {object}  models.JobRole
// @Failure      400  {object}  models.ValidationError
// @Failure      401  {object}  models.BaseError
// @Failure      403  {object}  models.NotAllowedError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/job-roles [post]
func (api *API) CreateJobRole(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "CreateJobRole")
	defer span.End()

	sponsor, ok := api.CurrentSponsor(c)
	if !ok {
		return
	}
	if !sponsor.CanCreateRoles {
		c.JSON(http.StatusForbidden, models.NewNotAllowedError("sponsor may not create job roles"))
		return
	}

	var request models.AddJobRole
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, models.NewBadPayloadError())
		return
	}
	if request.Title == "" {
		c.JSON(http.StatusBadRequest, models.NewFieldNotPresentError("title"))
		return
	}

	role := models.JobRole{
		OrganizationID: sponsor.OrganizationID,
		CreatedBy:      sponsor.ID,
		Title:          request.Title,
		Description:    request.Description,
		Status:         models.JobRoleDraft,
		IsConfidential: request.IsConfidential,
	}
	if res := api.db.WithContext(ctx).Create(&role); res.Error != nil {
		api.SendInternalServerError(c, res.Error)
		return
	}
	span.SetAttributes(attribute.String("id", role.ID.String()))

	c.JSON(http.StatusCreated, role)
}

// ListJobRoles lists the caller's organization's job roles
// @Summary      List Job Roles
// @Description  Lists job roles belonging to the sponsor's organization
// @Id           ListJobRoles
// @Tags         JobRoles
// @Accept       json
// @Produce      json
// @Success      200  {object}  []models.JobRole
// @Failure      401  {object}  models.BaseError
// @Failure      403  {object}  models.NotAllowedError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/job-roles [get]
func (api *API) ListJobRoles(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "ListJobRoles")
	defer span.End()

	scope, ok := api.jobRoleScope(c)
	if !ok {
		return
	}

	var roles []models.JobRole
	res := api.db.WithContext(ctx).
		Scopes(scope, FilterAndPaginate(&models.JobRole{}, c, "created_at desc")).
		Find(&roles)
	if res.Error != nil {
		api.SendInternalServerError(c, res.Error)
		return
	}
	c.JSON(http.StatusOK, roles)
}

// GetJobRole fetches a single job role
// @Summary      Get a Job Role
// @Description  Fetches a job role belonging to the sponsor's organization
// @Id           GetJobRole
// @Tags         JobRoles
// @Accept       json
// @Produce      json
// @Param        job-role  path      string  true  "Job Role ID"
// @Success      200  {object}  models.JobRole
// @Failure      400  {object}  models.ValidationError
// @Failure      401  {object}  models.BaseError
// @Failure      404  {object}  models.NotFoundError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/job-roles/{job-role} [get]
func (api *API) GetJobRole(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "GetJobRole")
	defer span.End()

	k, err := uuid.Parse(c.Param("job-role"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.NewBadPathParameterError("job-role"))
		return
	}

	scope, ok := api.jobRoleScope(c)
	if !ok {
		return
	}

	var role models.JobRole
	res := api.db.WithContext(ctx).Scopes(scope).First(&role, "id = ?", k)
	if res.Error != nil {
		c.JSON(http.StatusNotFound, models.NewNotFoundError("job_role"))
		return
	}
	c.JSON(http.StatusOK, role)
}

// jobRoleScope restricts job role reads to the sponsor's organization.
// Roles in other organizations are indistinguishable from missing ones.
func (api *API) jobRoleScope(c *gin.Context) (func(db *gorm.DB) *gorm.DB, bool) {
	actor := api.CurrentActor(c)
	switch actor.Kind {
	case auth.KindSponsor:
		orgID := actor.Sponsor.OrganizationID
		return func(db *gorm.DB) *gorm.DB {
			return db.Where("organization_id = ?", orgID)
		}, true
	case auth.KindAdmin:
		return func(db *gorm.DB) *gorm.DB { return db }, true
	}
	c.JSON(http.StatusForbidden, models.NewNotAllowedError("sponsor account required"))
	return nil, false
}

// UpdateJobRole applies a lifecycle transition to a job role
// @Summary      Transition a Job Role
// @Description  Moves a job role through its lifecycle. Terminal transitions notify candidates with pending introductions for the role.
// @Id           UpdateJobRole
// @Tags         JobRoles
// @Accept       json
// @Produce      json
// @Param        job-role  path      string                      true  "Job Role ID"
// @Param        update    body      models.UpdateJobRoleStatus  true  "Status update"
// @Success      200  {object}  models.JobRole
// @Failure      400  {object}  models.ValidationError
// @Failure      401  {object}  models.BaseError
// @Failure      403  {object}  models.NotAllowedError
// @Failure      404  {object}  models.NotFoundError
// @Failure      409  {object}  models.InvalidTransitionError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/job-roles/{job-role}/status [patch]
func (api *API) UpdateJobRole(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "UpdateJobRole")
	defer span.End()

	sponsor, ok := api.CurrentSponsor(c)
	if !ok {
		return
	}

	k, err := uuid.Parse(c.Param("job-role"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.NewBadPathParameterError("job-role"))
		return
	}

	var request models.UpdateJobRoleStatus
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, models.NewBadPayloadError())
		return
	}
	if !request.Status.Valid() {
		c.JSON(http.StatusBadRequest, models.NewFieldValidationError("status",
			fmt.Sprintf("unknown status %q", request.Status)))
		return
	}

	now := time.Now()
	var role models.JobRole
	err = api.transaction(ctx, func(tx *gorm.DB) error {
		if res := tx.First(&role, "id = ? AND organization_id = ?", k, sponsor.OrganizationID); res.Error != nil {
			return errJobRoleNotFound
		}
		if !role.Status.CanTransitionTo(request.Status) {
			return errInvalidTransition{From: string(role.Status), To: string(request.Status)}
		}

		updates := map[string]interface{}{"status": request.Status}
		switch request.Status {
		case models.JobRoleActive:
			if role.PublishedAt == nil {
				updates["published_at"] = now
				role.PublishedAt = &now
			}
		case models.JobRoleFilled:
			updates["filled_at"] = now
			role.FilledAt = &now
		case models.JobRoleClosed:
			updates["closed_at"] = now
			role.ClosedAt = &now
		}

		// The status guard makes concurrent transitions race safely.
		res := tx.Model(&models.JobRole{}).
			Where("id = ? AND status = ?", role.ID, role.Status).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errInvalidTransition{From: string(role.Status), To: string(request.Status)}
		}
		role.Status = request.Status
		return nil
	})

	if err != nil {
		var invalid errInvalidTransition
		switch {
		case errors.Is(err, errJobRoleNotFound):
			c.JSON(http.StatusNotFound, models.NewNotFoundError("job_role"))
		case errors.As(err, &invalid):
			c.JSON(http.StatusConflict, models.NewInvalidTransitionError(invalid.From, invalid.To))
		default:
			api.SendInternalServerError(c, err)
		}
		return
	}

	if role.Status.Terminal() {
		if err := api.notifyRoleClosure(ctx, &role); err != nil {
			api.Logger(ctx).Warnw("role closure notifications incomplete", "error", err, "job_role", role.ID)
		}
	}

	c.JSON(http.StatusOK, role)
}

// notifyRoleClosure tells every candidate with a pending introduction
// for the role that it is no longer open. Introduction statuses are left
// alone: the candidate keeps the right to respond until expiry, and the
// conversation may matter even if this role is gone. The dedup key is
// derived from the introduction ID, so re-running the cascade after a
// partial failure delivers each notification at most once.
func (api *API) notifyRoleClosure(ctx context.Context, role *models.JobRole) error {
	now := time.Now()
	var intros []models.IntroductionRequest
	res := api.db.WithContext(ctx).
		Where("job_role_id = ? AND status = ?", role.ID, models.IntroductionPending).
		Find(&intros)
	if res.Error != nil {
		return res.Error
	}

	var firstErr error
	for i := range intros {
		if intros[i].EffectiveStatus(now) != models.IntroductionPending {
			continue
		}
		var candidate models.Candidate
		if res := api.db.WithContext(ctx).First(&candidate, "id = ?", intros[i].CandidateID); res.Error != nil {
			if firstErr == nil {
				firstErr = res.Error
			}
			continue
		}
		_, err := api.notifier.Notify(ctx, models.Notification{
			UserID:        candidate.ID,
			Type:          models.NotificationJobRoleNoLongerOpen,
			Title:         "A role you were introduced to is no longer open",
			Body:          fmt.Sprintf("The role %q has been %s.", role.Title, role.Status),
			RelatedEntity: intros[i].ID,
			DedupKey:      fmt.Sprintf("%s:%s", models.NotificationJobRoleNoLongerOpen, intros[i].ID),
		}, candidate.Email)
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
