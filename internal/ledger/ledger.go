// Package ledger meters the introduction credits an organization spends
// when it sends introductions. All balance mutations go through here.
package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/talentbridge-io/talentbridge/internal/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var tracer trace.Tracer

func init() {
	tracer = otel.Tracer("github.com/talentbridge-io/talentbridge/internal/ledger")
}

var (
	// ErrInsufficientCredits is returned when the conditional decrement
	// matches no row. It is not fatal; the caller reports it and rolls
	// back.
	ErrInsufficientCredits  = errors.New("insufficient introduction credits")
	ErrOrganizationNotFound = errors.New("organization not found")
)

type Ledger struct {
	logger *zap.SugaredLogger
}

func New(logger *zap.SugaredLogger) *Ledger {
	return &Ledger{logger: logger}
}

// TryDebit atomically spends amount credits from the organization's
// balance. It must be called with the same transaction that creates the
// introduction request, so both commit or roll back together. The
// decrement is a single conditional UPDATE: two concurrent debits against
// a balance of one serialize on the row and only one matches.
func (l *Ledger) TryDebit(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, amount int) (int, error) {
	ctx, span := tracer.Start(ctx, "TryDebit", trace.WithAttributes(
		attribute.String("organization", orgID.String()),
		attribute.Int("amount", amount),
	))
	defer span.End()

	res := tx.WithContext(ctx).Model(&models.Organization{}).
		Where("id = ? AND credit_balance >= ?", orgID, amount).
		UpdateColumn("credit_balance", gorm.Expr("credit_balance - ?", amount))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		balance, err := l.Balance(ctx, tx, orgID)
		if err != nil {
			return 0, err
		}
		l.logger.Infow("debit refused", "organization", orgID, "balance", balance, "amount", amount)
		return balance, ErrInsufficientCredits
	}
	return l.Balance(ctx, tx, orgID)
}

// Refund returns amount credits to the organization. Only the expiry sweep
// calls this, and only when the refund-on-expiry flag is on; the default
// product policy is that declined, withdrawn and expired introductions are
// not refunded.
func (l *Ledger) Refund(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, amount int) (int, error) {
	ctx, span := tracer.Start(ctx, "Refund", trace.WithAttributes(
		attribute.String("organization", orgID.String()),
		attribute.Int("amount", amount),
	))
	defer span.End()

	res := tx.WithContext(ctx).Model(&models.Organization{}).
		Where("id = ?", orgID).
		UpdateColumn("credit_balance", gorm.Expr("credit_balance + ?", amount))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, ErrOrganizationNotFound
	}
	return l.Balance(ctx, tx, orgID)
}

// Balance reads the current credit balance.
func (l *Ledger) Balance(ctx context.Context, db *gorm.DB, orgID uuid.UUID) (int, error) {
	var org models.Organization
	if res := db.WithContext(ctx).Select("credit_balance").First(&org, "id = ?", orgID); res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return 0, ErrOrganizationNotFound
		}
		return 0, res.Error
	}
	return org.CreditBalance, nil
}
