package models

import (
	"time"

	"gorm.io/gorm"
)

// SystemClass classifies an integration participant by what it owns:
// producers raise events, consumers expose actions, hybrids do both.
type SystemClass string

const (
	SystemProducer SystemClass = "producer"
	SystemConsumer SystemClass = "consumer"
	SystemHybrid   SystemClass = "hybrid"
)

type System struct {
	ID          int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string         `gorm:"not null" json:"name"`
	Class       SystemClass    `gorm:"type:varchar(16);not null" json:"class"`
	Description string         `json:"description"`
	CreatedAt   time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (System) TableName() string {
	return "systems"
}

// Client is the credential a producer system authenticates with when it
// raises an event. AccessToken holds a bcrypt hash of a static token; when
// empty the caller is expected to present a signed token instead.
type Client struct {
	ID          int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	SystemID    int64          `gorm:"not null;index" json:"system_id"`
	System      System         `gorm:"foreignKey:SystemID" json:"system,omitempty"`
	Name        string         `gorm:"not null" json:"name"`
	AccessToken *string        `gorm:"type:text" json:"-"`
	Revoked     bool           `gorm:"not null;default:false" json:"revoked"`
	CreatedAt   time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Client) TableName() string {
	return "clients"
}
