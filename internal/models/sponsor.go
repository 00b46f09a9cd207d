package models

import (
	"github.com/google/uuid"
)

// Sponsor is a hiring representative. Each sponsor belongs to exactly one
// organization; the role flags gate which lifecycle operations they may
// perform.
type Sponsor struct {
	Base
	// IdpID is the subject claim from the identity provider. We have no
	// control over its format.
	IdpID                string    `gorm:"index" json:"-"`
	OrganizationID       uuid.UUID `gorm:"index" json:"organization_id"`
	UserName             string    `json:"username" example:"grace"`
	Email                string    `json:"email" example:"grace@acme.example.com"`
	CanSendIntroductions bool      `json:"can_send_introductions"`
	CanCreateRoles       bool      `json:"can_create_roles"`
}
