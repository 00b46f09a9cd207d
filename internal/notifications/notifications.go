// Package notifications is the best-effort side channel of the engine.
// Records are persisted for the in-app feed and optionally mailed out;
// delivery failures are logged and never fail the primary operation.
package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/talentbridge-io/talentbridge/internal/email"
	"github.com/talentbridge-io/talentbridge/internal/models"
	"github.com/talentbridge-io/talentbridge/internal/util"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var tracer trace.Tracer

func init() {
	tracer = otel.Tracer("github.com/talentbridge-io/talentbridge/internal/notifications")
}

const redisDedupTTL = 24 * time.Hour

type Service struct {
	logger     *zap.SugaredLogger
	db         *gorm.DB
	redis      *redis.Client
	SmtpServer email.SmtpServer
	SmtpFrom   string
}

func New(logger *zap.SugaredLogger, db *gorm.DB, redisClient *redis.Client) *Service {
	return &Service{
		logger: logger,
		db:     db,
		redis:  redisClient,
	}
}

// Notify persists the notification and mails it out when an address is
// given. When the notification carries a dedup key, replays are dropped:
// redis answers the common case fast and the unique index on the
// notifications table is the authoritative check. Returns true when the
// notification was newly recorded.
func (s *Service) Notify(ctx context.Context, n models.Notification, toEmail string) (bool, error) {
	ctx, span := tracer.Start(ctx, "Notify")
	defer span.End()

	if n.DedupKey == "" {
		n.DedupKey = fmt.Sprintf("%s:%s:%s", n.Type, n.UserID, n.RelatedEntity)
	}

	if s.redis != nil {
		set, err := s.redis.SetNX(ctx, "notify:"+n.DedupKey, 1, redisDedupTTL).Result()
		if err != nil {
			// redis is a fast path only, fall through to the table
			util.WithTrace(ctx, s.logger).Warnw("notification dedup cache unavailable", "error", err)
		} else if !set {
			return false, nil
		}
	}

	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "dedup_key"}},
			DoNothing: true,
		}).
		Create(&n)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	if toEmail != "" {
		s.deliver(ctx, n, toEmail)
	}
	return true, nil
}

func (s *Service) deliver(ctx context.Context, n models.Notification, toEmail string) {
	if s.SmtpServer.HostPort == "" {
		return
	}
	message := email.Message{
		From:         s.SmtpFrom,
		To:           []string{toEmail},
		Subject:      n.Title,
		PlainMessage: n.Body,
	}
	if err := email.Send(s.SmtpServer, message); err != nil {
		util.WithTrace(ctx, s.logger).Warnw("notification email delivery failed",
			"user", n.UserID, "type", n.Type, "error", err)
	}
}

// ListForUser returns the persisted notification feed for a user, newest
// first.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Notification, error) {
	var items []models.Notification
	res := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(limit).
		Find(&items)
	return items, res.Error
}
