package models

import (
	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationIntroductionReceived  NotificationType = "introduction.received"
	NotificationIntroductionAccepted  NotificationType = "introduction.accepted"
	NotificationIntroductionDeclined  NotificationType = "introduction.declined"
	NotificationIntroductionWithdrawn NotificationType = "introduction.withdrawn"
	NotificationJobRoleNoLongerOpen   NotificationType = "job_role.no_longer_open"
)

// Notification is a fire-and-forget side effect record handed to the
// notification sink. DedupKey makes replays idempotent: re-running the same
// cascade produces the same key and the second insert is dropped.
type Notification struct {
	Base
	UserID        uuid.UUID        `gorm:"index" json:"user_id"`
	Type          NotificationType `json:"type" example:"introduction.received"`
	Title         string           `json:"title"`
	Body          string           `json:"body"`
	RelatedEntity uuid.UUID        `json:"related_entity"`
	Link          string           `json:"link"`
	DedupKey      string           `gorm:"uniqueIndex" json:"-"`
}
