package models

import (
	"time"

	"github.com/google/uuid"
)

type IntroductionStatus string

const (
	IntroductionPending   IntroductionStatus = "pending"
	IntroductionAccepted  IntroductionStatus = "accepted"
	IntroductionDeclined  IntroductionStatus = "declined"
	IntroductionExpired   IntroductionStatus = "expired"
	IntroductionWithdrawn IntroductionStatus = "withdrawn"
)

// Terminal reports whether no further lifecycle transition is possible.
// PENDING is the only non-terminal status.
func (s IntroductionStatus) Terminal() bool {
	return s != IntroductionPending
}

const (
	// IntroductionTTL is how long a candidate has to respond before a
	// pending introduction expires.
	IntroductionTTL = 7 * 24 * time.Hour

	IntroductionMessageMinLen = 50
	IntroductionMessageMaxLen = 1000
)

// IntroductionRequest is a consent-gated connection offer from a sponsor to
// a candidate, tied to a job role. Rows are never physically deleted;
// terminal states are retained for audit and analytics.
type IntroductionRequest struct {
	Base
	JobRoleID         uuid.UUID          `gorm:"index" json:"job_role_id"`
	OrganizationID    uuid.UUID          `gorm:"index" json:"organization_id"`
	SentBySponsorID   uuid.UUID          `json:"sent_by_sponsor_id"`
	CandidateID       uuid.UUID          `gorm:"index" json:"candidate_id"`
	Status            IntroductionStatus `gorm:"index" json:"status" example:"pending"`
	SentAt            time.Time          `json:"sent_at"`
	ExpiresAt         time.Time          `json:"expires_at"`
	RespondedAt       *time.Time         `json:"responded_at"`
	ViewedByCandidate bool               `json:"viewed_by_candidate"`
	Message           string             `json:"message"`
}

// EffectiveStatus applies the lazy expiry rule: a stored PENDING past its
// expiry is reported as EXPIRED even though no sweep has rewritten the row
// yet. Every read path must go through this.
func (r *IntroductionRequest) EffectiveStatus(now time.Time) IntroductionStatus {
	if r.Status == IntroductionPending && now.After(r.ExpiresAt) {
		return IntroductionExpired
	}
	return r.Status
}

// AddIntroduction is the payload to send an introduction.
type AddIntroduction struct {
	JobRoleID   uuid.UUID `json:"job_role_id"`
	CandidateID uuid.UUID `json:"candidate_id"`
	Message     string    `json:"message"`
}

// UpdateIntroductionStatus is the payload for a candidate response or a
// sponsor withdrawal.
type UpdateIntroductionStatus struct {
	Status IntroductionStatus `json:"status" example:"accepted"`
}
