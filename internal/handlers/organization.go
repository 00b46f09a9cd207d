package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/talentbridge-io/talentbridge/internal/auth"
	"github.com/talentbridge-io/talentbridge/internal/database"
	"github.com/talentbridge-io/talentbridge/internal/models"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

type errDuplicateOrganization struct {
	ID string
}

func (e errDuplicateOrganization) Error() string {
	return "organization already exists"
}

// CreateOrganization creates a new Organization
// @Summary      Create an Organization
// @Description  Creates a named organization with an initial introduction credit balance. Admin only.
// @Id           CreateOrganization
// @Tags         Organizations
// @Accept       json
// @Produce      json
// @Param        Organization  body     models.AddOrganization  true  "Add Organization"
// @Success      201  {object}  models.Organization
// @Failure      400  {object}  models.ValidationError
// @Failure      401  {object}  models.BaseError
// @Failure      403  {object}  models.NotAllowedError
// @Failure      409  {object}  models.ConflictsError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/organizations [post]
func (api *API) CreateOrganization(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "CreateOrganization")
	defer span.End()

	actor := api.CurrentActor(c)
	if actor.Kind != auth.KindAdmin {
		c.JSON(http.StatusForbidden, models.NewNotAllowedError("admin account required"))
		return
	}

	var request models.AddOrganization
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, models.NewBadPayloadError())
		return
	}
	if request.Name == "" {
		c.JSON(http.StatusBadRequest, models.NewFieldNotPresentError("name"))
		return
	}
	if request.InitialCredits < 0 {
		c.JSON(http.StatusBadRequest, models.NewFieldValidationError("initial_credits", "must not be negative"))
		return
	}

	var org models.Organization
	err := api.transaction(ctx, func(tx *gorm.DB) error {
		org = models.Organization{
			Name:          request.Name,
			Description:   request.Description,
			CreditBalance: request.InitialCredits,
		}
		if res := tx.Create(&org); res.Error != nil {
			if database.IsDuplicateError(res.Error) {
				return errDuplicateOrganization{ID: org.ID.String()}
			}
			return res.Error
		}
		span.SetAttributes(attribute.String("id", org.ID.String()))
		return nil
	})

	if err != nil {
		var duplicate errDuplicateOrganization
		if errors.As(err, &duplicate) {
			c.JSON(http.StatusConflict, models.NewConflictsError(duplicate.ID))
		} else {
			api.SendInternalServerError(c, err)
		}
		return
	}

	c.JSON(http.StatusCreated, org)
}

// GetOrganizationCredits returns the caller's organization credit balance
// @Summary      Get Organization Credits
// @Description  Returns the sponsor's organization introduction credit balance and subscription expiry
// @Id           GetOrganizationCredits
// @Tags         Organizations
// @Accept       json
// @Produce      json
// @Success      200  {object}  models.OrganizationCredits
// @Failure      401  {object}  models.BaseError
// @Failure      403  {object}  models.NotAllowedError
// @Failure      404  {object}  models.NotFoundError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/organizations/me/credits [get]
func (api *API) GetOrganizationCredits(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "GetOrganizationCredits")
	defer span.End()

	sponsor, ok := api.CurrentSponsor(c)
	if !ok {
		return
	}

	var org models.Organization
	if res := api.db.WithContext(ctx).First(&org, "id = ?", sponsor.OrganizationID); res.Error != nil {
		c.JSON(http.StatusNotFound, models.NewNotFoundError("organization"))
		return
	}

	c.JSON(http.StatusOK, models.OrganizationCredits{
		OrganizationID:        org.ID.String(),
		CreditBalance:         org.CreditBalance,
		SubscriptionExpiresAt: org.SubscriptionExpiresAt,
	})
}
