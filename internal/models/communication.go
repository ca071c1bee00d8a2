package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	NotificationHelpRequested = "help_requested"
	NotificationHelpAnswered  = "help_answered"
	NotificationHelpResolved  = "help_resolved"
	NotificationTaskCompleted = "task_completed"
)

// Notification represents a push notification targeted to a specific user.
type Notification struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	UserID    string            `gorm:"size:64;index" json:"user_id"`
	Type      string            `gorm:"size:64" json:"type"`
	Message   string            `gorm:"type:text" json:"message"`
	Metadata  datatypes.JSONMap `json:"metadata"`
	Read      bool              `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}
