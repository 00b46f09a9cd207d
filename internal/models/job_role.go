package models

import (
	"time"

	"github.com/google/uuid"
)

type JobRoleStatus string

const (
	JobRoleDraft  JobRoleStatus = "draft"
	JobRoleActive JobRoleStatus = "active"
	JobRolePaused JobRoleStatus = "paused"
	JobRoleFilled JobRoleStatus = "filled"
	JobRoleClosed JobRoleStatus = "closed"
)

// jobRoleTransitions is the allowed transition table. CLOSED is terminal.
var jobRoleTransitions = map[JobRoleStatus][]JobRoleStatus{
	JobRoleDraft:  {JobRoleActive, JobRoleClosed},
	JobRoleActive: {JobRolePaused, JobRoleFilled, JobRoleClosed},
	JobRolePaused: {JobRoleActive, JobRoleClosed},
	JobRoleFilled: {JobRoleClosed},
	JobRoleClosed: {},
}

// Valid reports whether s is a known job role status.
func (s JobRoleStatus) Valid() bool {
	_, ok := jobRoleTransitions[s]
	return ok
}

// CanTransitionTo reports whether the transition s -> to is allowed.
func (s JobRoleStatus) CanTransitionTo(to JobRoleStatus) bool {
	for _, next := range jobRoleTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether introductions attached to a role in this status
// should be told the role is no longer open.
func (s JobRoleStatus) Terminal() bool {
	return s == JobRoleFilled || s == JobRoleClosed
}

// JobRole is a hiring role that introductions are attached to.
type JobRole struct {
	Base
	OrganizationID uuid.UUID     `gorm:"index" json:"organization_id"`
	CreatedBy      uuid.UUID     `json:"created_by"`
	Title          string        `json:"title" example:"Senior Backend Engineer"`
	Description    string        `json:"description"`
	Status         JobRoleStatus `gorm:"index" json:"status" example:"active"`
	IsConfidential bool          `json:"is_confidential"`
	PublishedAt    *time.Time    `json:"published_at"`
	FilledAt       *time.Time    `json:"filled_at"`
	ClosedAt       *time.Time    `json:"closed_at"`
}

// AddJobRole is the payload to create a JobRole. Roles always start in
// DRAFT.
type AddJobRole struct {
	Title          string `json:"title" example:"Senior Backend Engineer"`
	Description    string `json:"description"`
	IsConfidential bool   `json:"is_confidential"`
}

// UpdateJobRoleStatus is the payload for a status transition request.
type UpdateJobRoleStatus struct {
	Status JobRoleStatus `json:"status" example:"active"`
}
