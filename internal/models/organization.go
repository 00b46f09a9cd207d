package models

import (
	"time"
)

// Organization is a company on the sponsor side of the platform. Its
// introduction credit balance is mutated exclusively by the credit ledger.
type Organization struct {
	Base
	Name                  string     `gorm:"uniqueIndex" json:"name" example:"acme-hiring"`
	Description           string     `json:"description" example:"Acme Corp talent team"`
	CreditBalance         int        `json:"credit_balance" example:"25"`
	SubscriptionExpiresAt *time.Time `json:"subscription_expires_at"`
	Sponsors              []*Sponsor `json:"-"`
	JobRoles              []*JobRole `json:"-"`
}

// AddOrganization is the payload to create an Organization.
type AddOrganization struct {
	Name           string `json:"name" example:"acme-hiring"`
	Description    string `json:"description" example:"Acme Corp talent team"`
	InitialCredits int    `json:"initial_credits" example:"25"`
}

// OrganizationCredits is the balance view returned to sponsors so the UI
// can offer a purchase flow before sends start failing.
type OrganizationCredits struct {
	OrganizationID        string     `json:"organization_id"`
	CreditBalance         int        `json:"credit_balance"`
	SubscriptionExpiresAt *time.Time `json:"subscription_expires_at"`
}
