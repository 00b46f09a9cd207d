// Package firewall keeps the append-only block/unblock log that lets a
// candidate shut specific organizations out of their profile entirely.
// Events are never mutated or deleted; the current blocked set is derived
// by folding the log and keeping the latest event per organization.
package firewall

import (
	"context"
	"sync"
	"time"

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
	tracer = otel.Tracer("github.com/talentbridge-io/talentbridge/internal/firewall")
}

type Store struct {
	logger *zap.SugaredLogger
	db     *gorm.DB

	// appends for the same candidate are serialized so concurrent
	// block/unblock calls from multiple tabs cannot interleave into a
	// flipped final state
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func New(logger *zap.SugaredLogger, db *gorm.DB) *Store {
	return &Store{
		logger: logger,
		db:     db,
		locks:  map[uuid.UUID]*sync.Mutex{},
	}
}

func (s *Store) candidateLock(candidateID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, found := s.locks[candidateID]
	if !found {
		lock = &sync.Mutex{}
		s.locks[candidateID] = lock
	}
	return lock
}

// Block appends a block event for the (candidate, organization) pair.
func (s *Store) Block(ctx context.Context, candidateID, orgID uuid.UUID) (*models.PrivacyFirewallEvent, error) {
	return s.append(ctx, candidateID, orgID, models.FirewallBlock)
}

// Unblock appends an unblock event for the (candidate, organization) pair.
// The block events stay in the log for audit.
func (s *Store) Unblock(ctx context.Context, candidateID, orgID uuid.UUID) (*models.PrivacyFirewallEvent, error) {
	return s.append(ctx, candidateID, orgID, models.FirewallUnblock)
}

func (s *Store) append(ctx context.Context, candidateID, orgID uuid.UUID, eventType models.FirewallEventType) (*models.PrivacyFirewallEvent, error) {
	ctx, span := tracer.Start(ctx, "FirewallAppend", trace.WithAttributes(
		attribute.String("candidate", candidateID.String()),
		attribute.String("organization", orgID.String()),
		attribute.String("event_type", string(eventType)),
	))
	defer span.End()

	lock := s.candidateLock(candidateID)
	lock.Lock()
	defer lock.Unlock()

	event := models.PrivacyFirewallEvent{
		CandidateID:    candidateID,
		OrganizationID: orgID,
		EventType:      eventType,
		OccurredAt:     time.Now().UTC(),
	}
	if res := s.db.WithContext(ctx).Create(&event); res.Error != nil {
		return nil, res.Error
	}
	s.logger.Infow("firewall event appended",
		"candidate", candidateID, "organization", orgID, "event_type", eventType)
	return &event, nil
}

// BlockedOrgs folds the candidate's event log, ordered by occurrence,
// into the set of organizations with a net block.
func (s *Store) BlockedOrgs(ctx context.Context, candidateID uuid.UUID) (map[uuid.UUID]bool, error) {
	ctx, span := tracer.Start(ctx, "BlockedOrgs", trace.WithAttributes(
		attribute.String("candidate", candidateID.String()),
	))
	defer span.End()

	var events []models.PrivacyFirewallEvent
	res := s.db.WithContext(ctx).
		Where("candidate_id = ?", candidateID).
		Order("occurred_at, created_at").
		Find(&events)
	if res.Error != nil {
		return nil, res.Error
	}

	blocked := map[uuid.UUID]bool{}
	for _, event := range events {
		if event.EventType == models.FirewallBlock {
			blocked[event.OrganizationID] = true
		} else {
			delete(blocked, event.OrganizationID)
		}
	}
	return blocked, nil
}

// Status summarizes the firewall for the candidate's privacy settings
// page: how many organizations are currently blocked and the most recent
// event.
func (s *Store) Status(ctx context.Context, candidateID uuid.UUID) (*models.FirewallStatus, error) {
	blocked, err := s.BlockedOrgs(ctx, candidateID)
	if err != nil {
		return nil, err
	}

	status := models.FirewallStatus{
		BlockedOrganizations: len(blocked),
	}
	var last models.PrivacyFirewallEvent
	res := s.db.WithContext(ctx).
		Where("candidate_id = ?", candidateID).
		Order("occurred_at desc, created_at desc").
		Limit(1).
		Find(&last)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected > 0 {
		status.LastEvent = &last
	}
	return &status, nil
}
