package migration_20250815_0000

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	. "github.com/talentbridge-io/talentbridge/internal/database/migrations"
)

type Base struct {
	ID        uuid.UUID  `gorm:"type:uuid;primary_key;"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time `sql:"index"`
}

type Candidate struct {
	Base
	IdpID               string `gorm:"index"`
	FirstName           string
	LastName            string
	Email               string
	Headline            string
	Employer            string
	Title               string
	Skills              pq.StringArray `gorm:"type:text[]"`
	ProfileURLs         pq.StringArray `gorm:"type:text[]"`
	OpenToOpportunities bool
	ConfidentialSearch  bool
	HideFromOrgIDs      pq.StringArray `gorm:"type:text[]"`
	VerificationStatus  string
}

type Organization struct {
	Base
	Name                  string `gorm:"uniqueIndex"`
	Description           string
	CreditBalance         int
	SubscriptionExpiresAt *time.Time
}

type Sponsor struct {
	Base
	IdpID                string    `gorm:"index"`
	OrganizationID       uuid.UUID `gorm:"index"`
	UserName             string
	Email                string
	CanSendIntroductions bool
	CanCreateRoles       bool
}

type JobRole struct {
	Base
	OrganizationID uuid.UUID `gorm:"index"`
	CreatedBy      uuid.UUID
	Title          string
	Description    string
	Status         string `gorm:"index"`
	IsConfidential bool
	PublishedAt    *time.Time
	FilledAt       *time.Time
	ClosedAt       *time.Time
}

type IntroductionRequest struct {
	Base
	JobRoleID         uuid.UUID `gorm:"index"`
	OrganizationID    uuid.UUID `gorm:"index"`
	SentBySponsorID   uuid.UUID
	CandidateID       uuid.UUID `gorm:"index"`
	Status            string    `gorm:"index"`
	SentAt            time.Time
	ExpiresAt         time.Time
	RespondedAt       *time.Time
	ViewedByCandidate bool
	Message           string
}

type PrivacyFirewallEvent struct {
	Base
	CandidateID    uuid.UUID `gorm:"index"`
	OrganizationID uuid.UUID `gorm:"index"`
	EventType      string
	OccurredAt     time.Time `gorm:"index"`
}

type Notification struct {
	Base
	UserID        uuid.UUID `gorm:"index"`
	Type          string
	Title         string
	Body          string
	RelatedEntity uuid.UUID
	Link          string
	DedupKey      string `gorm:"uniqueIndex"`
}

func init() {
	migrationId := "20250815-0000"
	Register(CreateMigrationFromActions(migrationId,
		CreateTableAction(&Candidate{}),
		CreateTableAction(&Organization{}),
		CreateTableAction(&Sponsor{}),
		CreateTableAction(&JobRole{}),
		CreateTableAction(&IntroductionRequest{}),
		// relationship lookups and the duplicate-active check both hit this pair
		ExecAction(
			`CREATE INDEX IF NOT EXISTS "idx_introduction_requests_candidate_org" ON "introduction_requests" ("candidate_id","organization_id")`,
			`DROP INDEX IF EXISTS idx_introduction_requests_candidate_org`,
		),
		ExecAction(
			`CREATE INDEX IF NOT EXISTS "idx_introduction_requests_candidate_role" ON "introduction_requests" ("candidate_id","job_role_id")`,
			`DROP INDEX IF EXISTS idx_introduction_requests_candidate_role`,
		),
		CreateTableAction(&PrivacyFirewallEvent{}),
		CreateTableAction(&Notification{}),
	))
}
