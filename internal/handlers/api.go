package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/talentbridge-io/talentbridge/internal/auth"
	"github.com/talentbridge-io/talentbridge/internal/database"
	"github.com/talentbridge-io/talentbridge/internal/fflags"
	"github.com/talentbridge-io/talentbridge/internal/firewall"
	"github.com/talentbridge-io/talentbridge/internal/ledger"
	"github.com/talentbridge-io/talentbridge/internal/models"
	"github.com/talentbridge-io/talentbridge/internal/notifications"
	"github.com/talentbridge-io/talentbridge/internal/util"
	"github.com/talentbridge-io/talentbridge/internal/visibility"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var tracer trace.Tracer

func init() {
	tracer = otel.Tracer("github.com/talentbridge-io/talentbridge/internal/handlers")
}

type API struct {
	logger      *zap.SugaredLogger
	db          *gorm.DB
	fflags      *fflags.FFlags
	transaction database.TransactionFunc
	dialect     database.Dialect
	ledger      *ledger.Ledger
	firewall    *firewall.Store
	notifier    *notifications.Service
	Redis       *redis.Client
	URL         string
}

func NewAPI(
	parent context.Context,
	logger *zap.SugaredLogger,
	db *gorm.DB,
	fflags *fflags.FFlags,
	redis *redis.Client,
) (*API, error) {
	_, span := tracer.Start(parent, "NewAPI")
	defer span.End()

	transactionFunc, dialect, err := database.GetTransactionFunc(db)
	if err != nil {
		return nil, err
	}

	api := &API{
		logger:      logger,
		db:          db,
		fflags:      fflags,
		transaction: transactionFunc,
		dialect:     dialect,
		ledger:      ledger.New(logger),
		firewall:    firewall.New(logger, db),
		notifier:    notifications.New(logger, db, redis),
		Redis:       redis,
	}

	return api, nil
}

func (api *API) Logger(ctx context.Context) *zap.SugaredLogger {
	return util.WithTrace(ctx, api.logger)
}

// Notifier exposes the notification sink so the server entry point can
// wire SMTP delivery settings.
func (api *API) Notifier() *notifications.Service {
	return api.notifier
}

func (api *API) SendInternalServerError(c *gin.Context, err error) {
	SendInternalServerError(c, api.logger, err)
}

func SendInternalServerError(c *gin.Context, logger *zap.SugaredLogger, err error) {
	ctx := c.Request.Context()
	util.WithTrace(ctx, logger).Errorw("internal server error", "error", err)

	result := models.InternalServerError{
		BaseError: models.BaseError{
			Error: "internal server error",
		},
	}
	sc := trace.SpanFromContext(ctx).SpanContext()
	if sc.HasTraceID() {
		result.TraceId = sc.TraceID().String()
	}
	c.JSON(http.StatusInternalServerError, result)
}

// CurrentActor returns the actor the auth middleware resolved for this
// request. A missing actor is a programming error in route wiring.
func (api *API) CurrentActor(c *gin.Context) *auth.Actor {
	actor, found := auth.FromContext(c)
	if !found {
		api.SendInternalServerError(c, fmt.Errorf("no current actor found"))
		panic("no current actor found")
	}
	return actor
}

// CurrentSponsor returns the acting sponsor, or replies 403 and returns
// false when the actor is not on the sponsor side.
func (api *API) CurrentSponsor(c *gin.Context) (*models.Sponsor, bool) {
	actor := api.CurrentActor(c)
	if actor.Kind != auth.KindSponsor || actor.Sponsor == nil {
		c.JSON(http.StatusForbidden, models.NewNotAllowedError("sponsor account required"))
		return nil, false
	}
	return actor.Sponsor, true
}

// CurrentCandidate returns the acting candidate, or replies 403 and
// returns false when the actor is not a professional.
func (api *API) CurrentCandidate(c *gin.Context) (*models.Candidate, bool) {
	actor := api.CurrentActor(c)
	if actor.Kind != auth.KindProfessional || actor.Candidate == nil {
		c.JSON(http.StatusForbidden, models.NewNotAllowedError("candidate account required"))
		return nil, false
	}
	return actor.Candidate, true
}

func (api *API) FlagCheck(c *gin.Context, name string) bool {
	enabled, err := api.fflags.GetFlag(name)
	if err != nil {
		api.SendInternalServerError(c, err)
		return false
	}
	if !enabled {
		c.JSON(http.StatusMethodNotAllowed, models.NewNotAllowedError(fmt.Sprintf("%s support is disabled", name)))
		return false
	}
	return enabled
}

// relationship folds the introduction history between a candidate and an
// organization into the most advanced relationship. Lazy expiry applies:
// a stored PENDING past its deadline carries no weight.
func (api *API) relationship(ctx context.Context, db *gorm.DB, candidateID, orgID uuid.UUID) (visibility.Relationship, error) {
	var intros []models.IntroductionRequest
	res := db.WithContext(ctx).
		Where("candidate_id = ? AND organization_id = ?", candidateID, orgID).
		Find(&intros)
	if res.Error != nil {
		return visibility.RelationshipNone, res.Error
	}
	now := time.Now()
	statuses := make([]models.IntroductionStatus, 0, len(intros))
	for i := range intros {
		statuses = append(statuses, intros[i].EffectiveStatus(now))
	}
	return visibility.MostAdvanced(statuses), nil
}

