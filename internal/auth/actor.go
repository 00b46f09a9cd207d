// Package auth resolves the authenticated identity into a closed actor
// union once at the request boundary. Handlers receive the resolved actor
// and never re-derive role information from token claims downstream.
package auth

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/talentbridge-io/talentbridge/internal/firewall"
	"github.com/talentbridge-io/talentbridge/internal/models"
	"gorm.io/gorm"
)

// ActorKey is the gin context key the resolved actor is stored under.
const ActorKey = "_talentbridge.Actor"

type Kind int

const (
	KindProfessional Kind = iota
	KindSponsor
	KindAdmin
)

// Actor is the resolved identity behind a request. Exactly one of
// Candidate or Sponsor is set for the professional and sponsor kinds;
// admins carry neither.
type Actor struct {
	Kind      Kind
	Candidate *models.Candidate
	Sponsor   *models.Sponsor
}

// OrganizationID returns the sponsor's organization, or uuid.Nil for
// other kinds.
func (a *Actor) OrganizationID() uuid.UUID {
	if a.Kind == KindSponsor && a.Sponsor != nil {
		return a.Sponsor.OrganizationID
	}
	return uuid.Nil
}

var ErrUnknownIdentity = errors.New("identity is not registered on the platform")

// Resolve looks up the actor behind an identity-provider subject. A user
// who is both a candidate and a sponsor resolves to the kind the request
// was authenticated for; sponsor identities take precedence because the
// sponsor surface is the one permission flags attach to. The dual role
// also trips the candidate's privacy firewall against the sponsoring
// organization, so an employer can never view its own employee's profile
// through the employee's sponsor seat.
func Resolve(ctx context.Context, db *gorm.DB, fw *firewall.Store, idpID string, admin bool) (*Actor, error) {
	if admin {
		return &Actor{Kind: KindAdmin}, nil
	}

	var sponsor models.Sponsor
	res := db.WithContext(ctx).First(&sponsor, "idp_id = ?", idpID)
	if res.Error == nil {
		if err := blockOwnEmployer(ctx, db, fw, &sponsor); err != nil {
			return nil, err
		}
		return &Actor{Kind: KindSponsor, Sponsor: &sponsor}, nil
	}
	if !errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, res.Error
	}

	var candidate models.Candidate
	res = db.WithContext(ctx).First(&candidate, "idp_id = ?", idpID)
	if res.Error == nil {
		return &Actor{Kind: KindProfessional, Candidate: &candidate}, nil
	}
	if !errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, res.Error
	}
	return nil, ErrUnknownIdentity
}

// blockOwnEmployer appends a firewall block for the sponsor's
// organization when the same subject also holds a candidate profile.
// Already-blocked pairs append nothing, so repeated resolutions leave a
// single event in the log.
func blockOwnEmployer(ctx context.Context, db *gorm.DB, fw *firewall.Store, sponsor *models.Sponsor) error {
	var candidate models.Candidate
	res := db.WithContext(ctx).First(&candidate, "idp_id = ?", sponsor.IdpID)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil
		}
		return res.Error
	}

	blocked, err := fw.BlockedOrgs(ctx, candidate.ID)
	if err != nil {
		return err
	}
	if blocked[sponsor.OrganizationID] {
		return nil
	}
	_, err = fw.Block(ctx, candidate.ID, sponsor.OrganizationID)
	return err
}

// FromContext returns the actor a middleware stored on the gin context.
func FromContext(c *gin.Context) (*Actor, bool) {
	v, found := c.Get(ActorKey)
	if !found {
		return nil, false
	}
	actor, ok := v.(*Actor)
	return actor, ok
}
