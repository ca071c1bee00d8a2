package database

import (
	"gorm.io/gorm"

	"github.com/noah-isme/gema-tasks-api/internal/models"
)

// Models lists every table owned by the service, in dependency order.
func Models() []interface{} {
	return []interface{}{
		&models.Group{},
		&models.GroupMember{},
		&models.Task{},
		&models.TaskField{},
		&models.TaskAssignee{},
		&models.TaskSubmission{},
		&models.HelpMessage{},
		&models.TaskFolder{},
		&models.TaskFolderAssignment{},
		&models.Notification{},
	}
}

// Migrate creates or updates the schema for all service tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
