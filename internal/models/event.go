package models

import (
	"time"

	"gorm.io/gorm"
)

// OperationKind categorizes what an event notifies about or what an
// action performs against its target resource.
type OperationKind string

const (
	OperationSelect  OperationKind = "select"
	OperationNew     OperationKind = "new"
	OperationUpdate  OperationKind = "update"
	OperationDelete  OperationKind = "delete"
	OperationProcess OperationKind = "process"
)

// Event is a notification type a producer system can raise.
type Event struct {
	ID          int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	SystemID    int64          `gorm:"not null;index" json:"system_id"`
	System      System         `gorm:"foreignKey:SystemID" json:"system,omitempty"`
	Identifier  string         `gorm:"not null;unique" json:"identifier"`
	Name        string         `gorm:"not null" json:"name"`
	Operation   OperationKind  `gorm:"type:varchar(16);not null" json:"operation"`
	Description string         `json:"description"`
	CreatedAt   time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Event) TableName() string {
	return "events"
}
