package models

import (
	"time"

	"github.com/google/uuid"
)

type FirewallEventType string

const (
	FirewallBlock   FirewallEventType = "block"
	FirewallUnblock FirewallEventType = "unblock"
)

// PrivacyFirewallEvent is one entry in the append-only block/unblock log
// for a (candidate, organization) pair. Events are never mutated or
// deleted; the current blocked set is derived by keeping the latest event
// per organization.
type PrivacyFirewallEvent struct {
	Base
	CandidateID    uuid.UUID         `gorm:"index" json:"candidate_id"`
	OrganizationID uuid.UUID         `gorm:"index" json:"organization_id"`
	EventType      FirewallEventType `json:"event_type" example:"block"`
	OccurredAt     time.Time         `gorm:"index" json:"occurred_at"`
}

// UpdateFirewall is the payload for the block/unblock endpoints.
type UpdateFirewall struct {
	OrganizationID uuid.UUID `json:"organization_id"`
}

// FirewallStatus summarizes a candidate's firewall for the status
// endpoint.
type FirewallStatus struct {
	BlockedOrganizations int                   `json:"blocked_organizations"`
	LastEvent            *PrivacyFirewallEvent `json:"last_event"`
}
