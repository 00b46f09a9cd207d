// Package visibility computes the viewer-specific projection of a
// candidate profile. Project is a pure function over its inputs: no
// database access, no clock, no side effects, so it can be called
// concurrently and unit tested in isolation. Every endpoint that returns a
// candidate view must go through it rather than re-implementing
// field-by-field checks.
package visibility

import (
	"strings"

	"github.com/google/uuid"
	"github.com/talentbridge-io/talentbridge/internal/models"
)

// Relationship is the most advanced introduction status between a
// candidate and a viewing organization, across all job roles that
// organization has sent to the candidate. An accepted introduction for any
// role upgrades the relationship for all future projections.
type Relationship string

const (
	RelationshipNone     Relationship = "none"
	RelationshipPending  Relationship = "pending"
	RelationshipAccepted Relationship = "accepted"
)

// MostAdvanced folds introduction statuses into a Relationship. Expired,
// declined and withdrawn introductions carry no visibility weight.
func MostAdvanced(statuses []models.IntroductionStatus) Relationship {
	rel := RelationshipNone
	for _, s := range statuses {
		switch s {
		case models.IntroductionAccepted:
			return RelationshipAccepted
		case models.IntroductionPending:
			rel = RelationshipPending
		}
	}
	return rel
}

// Confidential is the placeholder shown in place of redacted identifying
// fields.
const Confidential = "Confidential"

// CandidateView is the per-viewer projection of a candidate profile.
type CandidateView struct {
	ID                  uuid.UUID                 `json:"id"`
	DisplayName         string                    `json:"display_name"`
	Headline            string                    `json:"headline,omitempty"`
	Employer            string                    `json:"employer,omitempty"`
	Title               string                    `json:"title,omitempty"`
	Skills              []string                  `json:"skills,omitempty"`
	ProfileURLs         []string                  `json:"profile_urls,omitempty"`
	Email               string                    `json:"email,omitempty"`
	OpenToOpportunities bool                      `json:"open_to_opportunities"`
	VerificationStatus  models.VerificationStatus `json:"verification_status,omitempty"`
	Relationship        Relationship              `json:"relationship"`
	Blocked             bool                      `json:"-"`
}

// Project applies the redaction rules in order:
//
//  1. A blocked viewer gets the minimal public stub regardless of any
//     other rule. The firewall is an absolute override: it wins even over
//     an accepted introduction.
//  2. Without confidential search, the full profile is visible except
//     contact fields.
//  3. With confidential search, employer and external profile URLs are
//     redacted unless the relationship is accepted.
//  4. Email is revealed only on an accepted relationship, independent of
//     confidential search.
//
// The display name is truncated to a last initial whenever confidential
// search is on, regardless of relationship: name redaction is a coarser
// rule than contact-field redaction.
func Project(c *models.Candidate, viewerOrgID uuid.UUID, rel Relationship, blocked bool) CandidateView {
	if blocked {
		return CandidateView{
			ID:           c.ID,
			DisplayName:  initials(c.FirstName, c.LastName),
			Relationship: RelationshipNone,
			Blocked:      true,
		}
	}

	view := CandidateView{
		ID:                  c.ID,
		DisplayName:         displayName(c),
		Headline:            c.Headline,
		Employer:            c.Employer,
		Title:               c.Title,
		Skills:              c.Skills,
		OpenToOpportunities: c.OpenToOpportunities,
		VerificationStatus:  c.VerificationStatus,
		Relationship:        rel,
	}

	accepted := rel == RelationshipAccepted

	if c.ConfidentialSearch && !accepted {
		view.Employer = Confidential
	}
	if accepted {
		view.Email = c.Email
		view.ProfileURLs = c.ProfileURLs
	}
	return view
}

func displayName(c *models.Candidate) string {
	if c.ConfidentialSearch {
		return strings.TrimSpace(c.FirstName + " " + initial(c.LastName))
	}
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

func initials(first, last string) string {
	return strings.TrimSpace(initial(first) + " " + initial(last))
}

func initial(name string) string {
	for _, r := range name {
		return string(r) + "."
	}
	return ""
}
