package models

import (
	"time"

	"gorm.io/gorm"
)

// Contract binds one event to one action. Order is the execution tier:
// contracts sharing an order value run concurrently, distinct values run
// in ascending sequence.
type Contract struct {
	ID         int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Identifier string         `gorm:"not null" json:"identifier"`
	Name       string         `gorm:"not null" json:"name"`
	EventID    int64          `gorm:"not null;index" json:"event_id"`
	Event      Event          `gorm:"foreignKey:EventID" json:"event,omitempty"`
	ActionID   int64          `gorm:"not null;index" json:"action_id"`
	Action     Action         `gorm:"foreignKey:ActionID" json:"action,omitempty"`
	Order      int            `gorm:"column:order;not null;default:0" json:"order"`
	Active     bool           `gorm:"not null;default:true" json:"active"`
	CreatedAt  time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Contract) TableName() string {
	return "contracts"
}
