package models

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// VerificationStatus tracks how far a candidate has gone through identity
// and employment verification.
type VerificationStatus string

const (
	VerificationUnverified VerificationStatus = "unverified"
	VerificationBasic      VerificationStatus = "basic"
	VerificationFull       VerificationStatus = "full"
	VerificationPremium    VerificationStatus = "premium"
)

// Candidate is a professional profile. The stored record always carries
// the full profile; what a viewing organization sees is computed per
// request from the candidate's privacy settings and the relationship
// between the two parties.
type Candidate struct {
	Base
	IdpID               string             `json:"-" gorm:"index"`
	FirstName           string             `json:"first_name"`
	LastName            string             `json:"last_name"`
	Email               string             `json:"email"`
	Headline            string             `json:"headline"`
	Employer            string             `json:"employer"`
	Title               string             `json:"title"`
	Skills              pq.StringArray     `json:"skills" gorm:"type:text[]" swaggertype:"array,string"`
	ProfileURLs         pq.StringArray     `json:"profile_urls" gorm:"type:text[]" swaggertype:"array,string"`
	OpenToOpportunities bool               `json:"open_to_opportunities"`
	ConfidentialSearch  bool               `json:"confidential_search"`
	HideFromOrgIDs      pq.StringArray     `json:"hide_from_org_ids" gorm:"type:text[]" swaggertype:"array,string"`
	VerificationStatus  VerificationStatus `json:"verification_status"`
}

// HiddenFrom reports whether the candidate explicitly hid their profile
// from the given organization.
func (c *Candidate) HiddenFrom(orgID uuid.UUID) bool {
	for _, id := range c.HideFromOrgIDs {
		if id == orgID.String() {
			return true
		}
	}
	return false
}

// UpdateCandidate is the patch payload for a candidate's own profile and
// privacy settings. Nil fields are left unchanged.
type UpdateCandidate struct {
	Headline            *string   `json:"headline"`
	Employer            *string   `json:"employer"`
	Title               *string   `json:"title"`
	Skills              *[]string `json:"skills"`
	ProfileURLs         *[]string `json:"profile_urls"`
	OpenToOpportunities *bool     `json:"open_to_opportunities"`
	ConfidentialSearch  *bool     `json:"confidential_search"`
	HideFromOrgIDs      *[]string `json:"hide_from_org_ids"`
}
