package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/talentbridge-io/talentbridge/internal/auth"
	"github.com/talentbridge-io/talentbridge/internal/ledger"
	"github.com/talentbridge-io/talentbridge/internal/models"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// CreateIntroduction sends an introduction to a candidate
// @Summary      Send an Introduction
// @Description  Sends a consent-gated introduction to a candidate for one of the sponsor's active job roles. Debits one credit from the organization.
// @Id           CreateIntroduction
// @Tags         Introductions
// @Accept       json
// @Produce      json
// @Param        Introduction  body     models.AddIntroduction  true  "Add Introduction"
// @Success      201  {object}  models.IntroductionRequest
// @Failure      400  {object}  models.ValidationError
// @Failure      401  {object}  models.BaseError
// @Failure      403  {object}  models.NotAllowedError
// @Failure      404  {object}  models.NotFoundError
// @Failure      409  {object}  models.ConflictsError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/introductions [post]
func (api *API) CreateIntroduction(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "CreateIntroduction")
	defer span.End()

	sponsor, ok := api.CurrentSponsor(c)
	if !ok {
		return
	}
	if !sponsor.CanSendIntroductions {
		c.JSON(http.StatusForbidden, models.NewNotAllowedError("sponsor may not send introductions"))
		return
	}

	var request models.AddIntroduction
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, models.NewBadPayloadError())
		return
	}
	if request.JobRoleID == uuid.Nil {
		c.JSON(http.StatusBadRequest, models.NewFieldNotPresentError("job_role_id"))
		return
	}
	if request.CandidateID == uuid.Nil {
		c.JSON(http.StatusBadRequest, models.NewFieldNotPresentError("candidate_id"))
		return
	}
	if messageLen := utf8.RuneCountInString(request.Message); messageLen < models.IntroductionMessageMinLen || messageLen > models.IntroductionMessageMaxLen {
		c.JSON(http.StatusBadRequest, models.NewFieldValidationError("message",
			fmt.Sprintf("must be between %d and %d characters", models.IntroductionMessageMinLen, models.IntroductionMessageMaxLen)))
		return
	}

	allowDuplicates, err := api.fflags.GetFlag("duplicate-introductions")
	if err != nil {
		api.SendInternalServerError(c, err)
		return
	}

	blocked, err := api.firewall.BlockedOrgs(ctx, request.CandidateID)
	if err != nil {
		api.SendInternalServerError(c, err)
		return
	}

	now := time.Now()
	var intro models.IntroductionRequest
	var candidate models.Candidate
	err = api.transaction(ctx, func(tx *gorm.DB) error {
		var role models.JobRole
		if res := tx.First(&role, "id = ? AND organization_id = ?", request.JobRoleID, sponsor.OrganizationID); res.Error != nil {
			return errJobRoleNotFound
		}
		if role.Status != models.JobRoleActive {
			return errRoleNotActive{Status: string(role.Status)}
		}

		if res := tx.First(&candidate, "id = ?", request.CandidateID); res.Error != nil {
			return errCandidateNotFound
		}
		// A blocked or hidden-from organization is told the candidate does
		// not exist rather than that it was blocked.
		if blocked[sponsor.OrganizationID] || candidate.HiddenFrom(sponsor.OrganizationID) {
			return errCandidateNotFound
		}

		balance, err := api.ledger.TryDebit(ctx, tx, sponsor.OrganizationID, 1)
		if err != nil {
			if errors.Is(err, ledger.ErrInsufficientCredits) {
				return errInsufficientCredits{Balance: balance}
			}
			if errors.Is(err, ledger.ErrOrganizationNotFound) {
				return errOrganizationNotFound
			}
			return err
		}

		// The debit's update locks the organization row, so concurrent
		// sends run this scan one at a time and each sees the rows the
		// previous one committed. Scanning before the debit would let two
		// racing sends both pass the check. A duplicate rolls the whole
		// transaction back, debit included.
		if !allowDuplicates {
			var existing []models.IntroductionRequest
			res := tx.Where("candidate_id = ? AND job_role_id = ?", request.CandidateID, request.JobRoleID).
				Find(&existing)
			if res.Error != nil {
				return res.Error
			}
			for i := range existing {
				s := existing[i].EffectiveStatus(now)
				if s == models.IntroductionPending || s == models.IntroductionAccepted {
					return errDuplicateIntroduction{ID: existing[i].ID.String()}
				}
			}
		}

		intro = models.IntroductionRequest{
			JobRoleID:       request.JobRoleID,
			OrganizationID:  sponsor.OrganizationID,
			SentBySponsorID: sponsor.ID,
			CandidateID:     request.CandidateID,
			Status:          models.IntroductionPending,
			SentAt:          now,
			ExpiresAt:       now.Add(models.IntroductionTTL),
			Message:         request.Message,
		}
		if res := tx.Create(&intro); res.Error != nil {
			return res.Error
		}
		span.SetAttributes(attribute.String("id", intro.ID.String()))
		return nil
	})

	if err != nil {
		var notActive errRoleNotActive
		var duplicate errDuplicateIntroduction
		var noCredits errInsufficientCredits
		switch {
		case errors.Is(err, errJobRoleNotFound):
			c.JSON(http.StatusNotFound, models.NewNotFoundError("job_role"))
		case errors.Is(err, errCandidateNotFound):
			c.JSON(http.StatusNotFound, models.NewNotFoundError("candidate"))
		case errors.Is(err, errOrganizationNotFound):
			c.JSON(http.StatusNotFound, models.NewNotFoundError("organization"))
		case errors.As(err, &notActive):
			c.JSON(http.StatusConflict, models.NewInvalidStateError("job role is not active", notActive.Status))
		case errors.As(err, &duplicate):
			c.JSON(http.StatusConflict, models.NewConflictsError(duplicate.ID))
		case errors.As(err, &noCredits):
			c.JSON(http.StatusConflict, models.NewInsufficientCreditsError(noCredits.Balance))
		default:
			api.SendInternalServerError(c, err)
		}
		return
	}

	api.notifyIntroduction(ctx, models.NotificationIntroductionReceived, &intro, candidate.ID, candidate.Email,
		"You have a new introduction",
		fmt.Sprintf("An organization would like to introduce you to a role: %s", intro.Message))

	c.JSON(http.StatusCreated, intro)
}

// ListIntroductions lists introductions visible to the caller
// @Summary      List Introductions
// @Description  Lists the caller's introductions: the organization's for sponsors, the candidate's own for professionals
// @Id           ListIntroductions
// @Tags         Introductions
// @Accept       json
// @Produce      json
// @Success      200  {object}  []models.IntroductionRequest
// @Failure      401  {object}  models.BaseError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/introductions [get]
func (api *API) ListIntroductions(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "ListIntroductions")
	defer span.End()

	scope, ok := api.introductionScope(c)
	if !ok {
		return
	}

	var intros []models.IntroductionRequest
	db := api.db.WithContext(ctx)
	result := db.Scopes(scope, FilterAndPaginate(&models.IntroductionRequest{}, c, "sent_at desc")).
		Find(&intros)
	if result.Error != nil {
		api.SendInternalServerError(c, result.Error)
		return
	}

	now := time.Now()
	for i := range intros {
		intros[i].Status = intros[i].EffectiveStatus(now)
	}
	c.JSON(http.StatusOK, intros)
}

// GetIntroduction fetches a single introduction
// @Summary      Get an Introduction
// @Description  Fetches an introduction the caller is a party to
// @Id           GetIntroduction
// @Tags         Introductions
// @Accept       json
// @Produce      json
// @Param        introduction  path      string  true  "Introduction ID"
// @Success      200  {object}  models.IntroductionRequest
// @Failure      400  {object}  models.ValidationError
// @Failure      401  {object}  models.BaseError
// @Failure      404  {object}  models.NotFoundError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/introductions/{introduction} [get]
func (api *API) GetIntroduction(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "GetIntroduction")
	defer span.End()

	k, err := uuid.Parse(c.Param("introduction"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.NewBadPathParameterError("introduction"))
		return
	}

	scope, ok := api.introductionScope(c)
	if !ok {
		return
	}

	var intro models.IntroductionRequest
	res := api.db.WithContext(ctx).Scopes(scope).First(&intro, "id = ?", k)
	if res.Error != nil {
		c.JSON(http.StatusNotFound, models.NewNotFoundError("introduction"))
		return
	}

	// First read by the candidate marks the introduction as viewed.
	actor := api.CurrentActor(c)
	if actor.Kind == auth.KindProfessional && !intro.ViewedByCandidate {
		intro.ViewedByCandidate = true
		if res := api.db.WithContext(ctx).Model(&intro).Update("viewed_by_candidate", true); res.Error != nil {
			api.Logger(ctx).Warnw("failed to mark introduction viewed", "error", res.Error, "id", intro.ID)
		}
	}

	intro.Status = intro.EffectiveStatus(time.Now())
	c.JSON(http.StatusOK, intro)
}

// introductionScope restricts introduction reads to rows the caller is a
// party to. Missing rows and rows belonging to someone else are
// indistinguishable to the caller.
func (api *API) introductionScope(c *gin.Context) (func(db *gorm.DB) *gorm.DB, bool) {
	actor := api.CurrentActor(c)
	switch actor.Kind {
	case auth.KindSponsor:
		orgID := actor.Sponsor.OrganizationID
		return func(db *gorm.DB) *gorm.DB {
			return db.Where("organization_id = ?", orgID)
		}, true
	case auth.KindProfessional:
		candidateID := actor.Candidate.ID
		return func(db *gorm.DB) *gorm.DB {
			return db.Where("candidate_id = ?", candidateID)
		}, true
	case auth.KindAdmin:
		return func(db *gorm.DB) *gorm.DB { return db }, true
	}
	c.JSON(http.StatusForbidden, models.NewNotAllowedError("unsupported account kind"))
	return nil, false
}

// UpdateIntroduction applies a lifecycle transition to an introduction
// @Summary      Respond to or withdraw an Introduction
// @Description  Candidates accept or decline a pending introduction; sponsors withdraw one. Expired introductions reject all transitions.
// @Id           UpdateIntroduction
// @Tags         Introductions
// @Accept       json
// @Produce      json
// @Param        introduction  path      string                           true  "Introduction ID"
// @Param        update        body      models.UpdateIntroductionStatus  true  "Status update"
// @Success      200  {object}  models.IntroductionRequest
// @Failure      400  {object}  models.ValidationError
// @Failure      401  {object}  models.BaseError
// @Failure      403  {object}  models.NotAllowedError
// @Failure      404  {object}  models.NotFoundError
// @Failure      409  {object}  models.AlreadyExpiredError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/introductions/{introduction}/status [patch]
func (api *API) UpdateIntroduction(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "UpdateIntroduction")
	defer span.End()

	k, err := uuid.Parse(c.Param("introduction"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.NewBadPathParameterError("introduction"))
		return
	}

	var request models.UpdateIntroductionStatus
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, models.NewBadPayloadError())
		return
	}

	switch request.Status {
	case models.IntroductionAccepted, models.IntroductionDeclined:
		api.respondToIntroduction(c, ctx, k, request.Status)
	case models.IntroductionWithdrawn:
		api.withdrawIntroduction(c, ctx, k)
	default:
		c.JSON(http.StatusBadRequest, models.NewFieldValidationError("status",
			"must be one of accepted, declined, withdrawn"))
	}
}

func (api *API) respondToIntroduction(c *gin.Context, ctx context.Context, id uuid.UUID, status models.IntroductionStatus) {
	candidate, ok := api.CurrentCandidate(c)
	if !ok {
		return
	}

	now := time.Now()
	var intro models.IntroductionRequest
	err := api.transaction(ctx, func(tx *gorm.DB) error {
		if res := tx.First(&intro, "id = ? AND candidate_id = ?", id, candidate.ID); res.Error != nil {
			return errIntroductionNotFound
		}
		switch intro.EffectiveStatus(now) {
		case models.IntroductionPending:
		case models.IntroductionExpired:
			return errAlreadyExpired
		default:
			return errAlreadyResolved
		}

		// The status guard makes concurrent responses race safely: the
		// loser sees zero rows updated.
		res := tx.Model(&models.IntroductionRequest{}).
			Where("id = ? AND status = ?", intro.ID, models.IntroductionPending).
			Updates(map[string]interface{}{
				"status":              status,
				"responded_at":        now,
				"viewed_by_candidate": true,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errAlreadyResolved
		}
		intro.Status = status
		intro.RespondedAt = &now
		intro.ViewedByCandidate = true
		return nil
	})

	if err != nil {
		switch {
		case errors.Is(err, errIntroductionNotFound):
			c.JSON(http.StatusNotFound, models.NewNotFoundError("introduction"))
		case errors.Is(err, errAlreadyExpired):
			c.JSON(http.StatusConflict, models.NewAlreadyExpiredError(id.String()))
		case errors.Is(err, errAlreadyResolved):
			c.JSON(http.StatusConflict, models.NewInvalidStateError("introduction is already resolved", string(intro.Status)))
		default:
			api.SendInternalServerError(c, err)
		}
		return
	}

	notifType := models.NotificationIntroductionAccepted
	title := "Your introduction was accepted"
	if status == models.IntroductionDeclined {
		notifType = models.NotificationIntroductionDeclined
		title = "Your introduction was declined"
	}
	var sponsor models.Sponsor
	if res := api.db.WithContext(ctx).First(&sponsor, "id = ?", intro.SentBySponsorID); res.Error == nil {
		api.notifyIntroduction(ctx, notifType, &intro, sponsor.ID, sponsor.Email, title,
			fmt.Sprintf("The candidate has %s your introduction.", status))
	}

	c.JSON(http.StatusOK, intro)
}

func (api *API) withdrawIntroduction(c *gin.Context, ctx context.Context, id uuid.UUID) {
	sponsor, ok := api.CurrentSponsor(c)
	if !ok {
		return
	}

	now := time.Now()
	var intro models.IntroductionRequest
	err := api.transaction(ctx, func(tx *gorm.DB) error {
		if res := tx.First(&intro, "id = ? AND organization_id = ?", id, sponsor.OrganizationID); res.Error != nil {
			return errIntroductionNotFound
		}
		switch intro.EffectiveStatus(now) {
		case models.IntroductionPending:
		case models.IntroductionExpired:
			return errAlreadyExpired
		default:
			return errAlreadyResolved
		}

		// A withdrawal does not refund the credit. The candidate already
		// saw the outreach; the spend stands.
		res := tx.Model(&models.IntroductionRequest{}).
			Where("id = ? AND status = ?", intro.ID, models.IntroductionPending).
			Update("status", models.IntroductionWithdrawn)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errAlreadyResolved
		}
		intro.Status = models.IntroductionWithdrawn
		return nil
	})

	if err != nil {
		switch {
		case errors.Is(err, errIntroductionNotFound):
			c.JSON(http.StatusNotFound, models.NewNotFoundError("introduction"))
		case errors.Is(err, errAlreadyExpired):
			c.JSON(http.StatusConflict, models.NewAlreadyExpiredError(id.String()))
		case errors.Is(err, errAlreadyResolved):
			c.JSON(http.StatusConflict, models.NewInvalidStateError("introduction is already resolved", string(intro.Status)))
		default:
			api.SendInternalServerError(c, err)
		}
		return
	}

	var candidate models.Candidate
	if res := api.db.WithContext(ctx).First(&candidate, "id = ?", intro.CandidateID); res.Error == nil {
		api.notifyIntroduction(ctx, models.NotificationIntroductionWithdrawn, &intro, candidate.ID, candidate.Email,
			"An introduction was withdrawn", "The sponsor has withdrawn their introduction.")
	}

	c.JSON(http.StatusOK, intro)
}

// notifyIntroduction emits a best-effort deduplicated notification about
// an introduction. Delivery failures are logged, never surfaced to the
// API caller.
func (api *API) notifyIntroduction(ctx context.Context, t models.NotificationType, intro *models.IntroductionRequest, userID uuid.UUID, toEmail, title, body string) {
	_, err := api.notifier.Notify(ctx, models.Notification{
		UserID:        userID,
		Type:          t,
		Title:         title,
		Body:          body,
		RelatedEntity: intro.ID,
		DedupKey:      fmt.Sprintf("%s:%s", t, intro.ID),
	}, toEmail)
	if err != nil {
		api.Logger(ctx).Warnw("failed to send notification", "error", err, "type", t, "introduction", intro.ID)
	}
}

// SweepExpiredIntroductions rewrites stored PENDING rows past their
// deadline to EXPIRED. Reads never depend on the sweep because effective
// status is computed lazily; the sweep keeps stored rows and analytics
// converging on the truth.
func (api *API) SweepExpiredIntroductions(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "SweepExpiredIntroductions")
	defer span.End()

	refund, err := api.fflags.GetFlag("credit-refund-on-expiry")
	if err != nil {
		return err
	}

	now := time.Now()
	return api.transaction(ctx, func(tx *gorm.DB) error {
		var stale []models.IntroductionRequest
		res := tx.Where("status = ? AND expires_at < ?", models.IntroductionPending, now).
			Find(&stale)
		if res.Error != nil {
			return res.Error
		}
		for i := range stale {
			res := tx.Model(&models.IntroductionRequest{}).
				Where("id = ? AND status = ?", stale[i].ID, models.IntroductionPending).
				Update("status", models.IntroductionExpired)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				continue
			}
			if refund {
				if _, err := api.ledger.Refund(ctx, tx, stale[i].OrganizationID, 1); err != nil {
					return err
				}
			}
		}
		if len(stale) > 0 {
			api.Logger(ctx).Infow("expired stale introductions", "count", len(stale))
		}
		return nil
	})
}
